package domain

import "errors"

var (
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrAttemptNotFound indicates an unknown attempt ID.
	ErrAttemptNotFound = errors.New("attempt not found")
	// ErrWrongPassword is returned on a password mismatch. Nothing is
	// persisted and the caller may retry indefinitely.
	ErrWrongPassword = errors.New("wrong quiz password")
	// ErrNotYetOpen is returned when entry (or content release) is requested
	// before the quiz's window permits it.
	ErrNotYetOpen = errors.New("quiz not yet open")
	// ErrEnded is returned when the quiz's window has closed.
	ErrEnded = errors.New("quiz has ended")
	// ErrAttemptLimitReached is returned when the learner has used up every
	// permitted attempt.
	ErrAttemptLimitReached = errors.New("attempt limit reached")
	// ErrAttemptFinished is returned on writes against a terminal attempt.
	ErrAttemptFinished = errors.New("attempt already finished")
	// ErrQuestionNotFound indicates a submitted question ID is invalid.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrOptionNotFound indicates a submitted option ID is invalid.
	ErrOptionNotFound = errors.New("option not found")
)
