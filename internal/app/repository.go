package app

import (
	"context"
	"time"

	"campus-quiz-service/internal/domain"
)

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// AttemptRepository abstracts attempt and answer persistence (in-memory,
// Postgres, etc). Answer upserts key on (attemptID, questionID) with
// last-write-wins semantics.
type AttemptRepository interface {
	CreateAttempt(ctx context.Context, attempt domain.Attempt) error
	GetAttempt(ctx context.Context, attemptID string) (domain.Attempt, error)
	// AttemptsFor returns every attempt for (quiz, user), any status.
	AttemptsFor(ctx context.Context, quizID, userID string) ([]domain.Attempt, error)
	// FinishedAttempts returns all terminal attempts for a quiz.
	FinishedAttempts(ctx context.Context, quizID string) ([]domain.Attempt, error)
	// FinalizeAttempt moves an attempt from IN_PROGRESS to the given terminal
	// status as a conditional update. It reports false when the attempt was
	// already finalized by a concurrent submission.
	FinalizeAttempt(ctx context.Context, attemptID string, status domain.AttemptStatus, submittedAt time.Time, timeRemainingSeconds int) (bool, error)
	// SaveScore writes the four aggregate scoring fields onto the attempt.
	SaveScore(ctx context.Context, attemptID string, totalQuestions, correctAnswers, totalPoints int, scorePercentage float64) error

	UpsertAnswer(ctx context.Context, answer domain.Answer) error
	DeleteAnswer(ctx context.Context, attemptID, questionID string) error
	AnswersByAttempt(ctx context.Context, attemptID string) ([]domain.Answer, error)
}
