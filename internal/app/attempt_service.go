package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"campus-quiz-service/internal/domain"
)

// ResumePhase tells the caller what state a returning learner lands in.
type ResumePhase string

const (
	// ResumeNone means no attempt exists yet; the password gate applies.
	ResumeNone ResumePhase = "NONE"
	// ResumeGatedWait means an attempt exists but the LIVE quiz has not
	// started; content stays held back until the countdown reaches zero.
	ResumeGatedWait ResumePhase = "GATED_WAIT"
	// ResumeActive means the attempt is running with time on the clock.
	ResumeActive ResumePhase = "ACTIVE"
	// ResumeTerminal routes to the results view; the gate never re-prompts.
	ResumeTerminal ResumePhase = "TERMINAL"
)

// ResumeState is the answer to "what should this learner see right now",
// recomputed from persisted instants on every call.
type ResumeState struct {
	Phase   ResumePhase    `json:"phase"`
	Attempt domain.Attempt `json:"attempt,omitempty"`
	// Seconds is the gated-wait countdown in GATED_WAIT, the remaining
	// attempt time in ACTIVE, and zero otherwise.
	Seconds int `json:"seconds"`
}

// AttemptService owns the lifecycle of a single user-quiz attempt: gating,
// start, in-progress autosaves, submission and scoring.
type AttemptService struct {
	quizzes   QuizRepository
	attempts  AttemptRepository
	scorer    *Scorer
	autosaver *Autosaver
	now       func() time.Time
}

// NewAttemptService wires the state machine to its collaborators. The clock
// is explicit so tests can drive time deterministically.
func NewAttemptService(quizzes QuizRepository, attempts AttemptRepository, scorer *Scorer, autosaver *Autosaver, now func() time.Time) *AttemptService {
	return &AttemptService{
		quizzes:   quizzes,
		attempts:  attempts,
		scorer:    scorer,
		autosaver: autosaver,
		now:       now,
	}
}

// Authenticate is the password gate. On success it creates (or silently
// resumes) the learner's IN_PROGRESS attempt with startedAt set once.
// A mismatch changes nothing and the learner may retry; a closed window or
// an exhausted attempt budget refuses entry before the password is checked
// against persisted state.
func (s *AttemptService) Authenticate(ctx context.Context, quizID, userID, password string) (domain.Attempt, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.Attempt{}, err
	}

	existing, err := s.attempts.AttemptsFor(ctx, quizID, userID)
	if err != nil {
		return domain.Attempt{}, fmt.Errorf("load attempts: %w", err)
	}
	// A learner who already holds an open attempt skips the gate entirely.
	for _, attempt := range existing {
		if attempt.Status == domain.AttemptInProgress {
			return attempt, nil
		}
	}

	now := s.now()
	switch EvaluateAccess(quiz, now) {
	case domain.AccessUpcoming:
		return domain.Attempt{}, domain.ErrNotYetOpen
	case domain.AccessEnded:
		return domain.Attempt{}, domain.ErrEnded
	}

	if len(existing) >= maxAttempts(quiz) {
		return domain.Attempt{}, domain.ErrAttemptLimitReached
	}

	if quiz.Password != password {
		return domain.Attempt{}, domain.ErrWrongPassword
	}

	attempt := domain.Attempt{
		ID:        newAttemptID(),
		QuizID:    quizID,
		UserID:    userID,
		Status:    domain.AttemptInProgress,
		StartedAt: now,
	}
	if err := s.attempts.CreateAttempt(ctx, attempt); err != nil {
		// All-or-nothing: the learner stays at the gate, no partial state.
		return domain.Attempt{}, fmt.Errorf("create attempt: %w", err)
	}
	return attempt, nil
}

// GetOrResume recomputes the learner's position in the state machine from
// persisted state. Terminal attempts always route to results; an open
// attempt restores into gated-wait or active with fresh countdown values.
func (s *AttemptService) GetOrResume(ctx context.Context, quizID, userID string) (ResumeState, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return ResumeState{}, err
	}
	attempts, err := s.attempts.AttemptsFor(ctx, quizID, userID)
	if err != nil {
		return ResumeState{}, fmt.Errorf("load attempts: %w", err)
	}

	var open *domain.Attempt
	var latestTerminal *domain.Attempt
	for i := range attempts {
		attempt := attempts[i]
		if attempt.Status == domain.AttemptInProgress {
			open = &attempts[i]
			continue
		}
		if latestTerminal == nil {
			latestTerminal = &attempts[i]
		} else if attempt.SubmittedAt != nil && latestTerminal.SubmittedAt != nil &&
			attempt.SubmittedAt.After(*latestTerminal.SubmittedAt) {
			latestTerminal = &attempts[i]
		}
	}

	now := s.now()
	if open != nil {
		if wait := SecondsUntilStart(quiz, now); wait > 0 {
			return ResumeState{Phase: ResumeGatedWait, Attempt: *open, Seconds: wait}, nil
		}
		remaining := RemainingSeconds(quiz, open.StartedAt, now)
		return ResumeState{Phase: ResumeActive, Attempt: *open, Seconds: remaining}, nil
	}
	if latestTerminal != nil {
		return ResumeState{Phase: ResumeTerminal, Attempt: *latestTerminal}, nil
	}
	return ResumeState{Phase: ResumeNone}, nil
}

// SessionState recomputes a single attempt's position in the state machine,
// for callers that hold an attempt ID (the session websocket). Same
// semantics as GetOrResume, derived from persisted instants only.
func (s *AttemptService) SessionState(ctx context.Context, attemptID string) (ResumeState, error) {
	attempt, err := s.attempts.GetAttempt(ctx, attemptID)
	if err != nil {
		return ResumeState{}, err
	}
	if attempt.Status.Terminal() {
		return ResumeState{Phase: ResumeTerminal, Attempt: attempt}, nil
	}
	quiz, err := s.quizzes.GetQuiz(ctx, attempt.QuizID)
	if err != nil {
		return ResumeState{}, err
	}
	now := s.now()
	if wait := SecondsUntilStart(quiz, now); wait > 0 {
		return ResumeState{Phase: ResumeGatedWait, Attempt: attempt, Seconds: wait}, nil
	}
	return ResumeState{Phase: ResumeActive, Attempt: attempt, Seconds: RemainingSeconds(quiz, attempt.StartedAt, now)}, nil
}

// Questions returns the quiz content for an attempt with the answer key
// stripped while the attempt is open. During gated-wait it refuses, so LIVE
// content cannot leak before the start instant.
func (s *AttemptService) Questions(ctx context.Context, attemptID string) ([]domain.Question, error) {
	attempt, err := s.attempts.GetAttempt(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	quiz, err := s.quizzes.GetQuiz(ctx, attempt.QuizID)
	if err != nil {
		return nil, err
	}
	if SecondsUntilStart(quiz, s.now()) > 0 {
		return nil, domain.ErrNotYetOpen
	}

	questions := orderedQuestions(quiz)
	if attempt.Status == domain.AttemptInProgress || !quiz.ShowCorrectAnswers {
		for i := range questions {
			sanitized := make([]domain.Option, len(questions[i].Options))
			copy(sanitized, questions[i].Options)
			for j := range sanitized {
				sanitized[j].Correct = false
			}
			questions[i].Options = sanitized
			questions[i].Explanation = ""
		}
	}
	return questions, nil
}

// SetAnswer validates the selection and hands it to the autosave channel.
// It returns before the write is persisted; failures are logged, not
// surfaced, and the last successfully saved value stands.
func (s *AttemptService) SetAnswer(ctx context.Context, attemptID, questionID, optionID string) error {
	_, quiz, err := s.openAttempt(ctx, attemptID)
	if err != nil {
		return err
	}
	question, ok := quiz.QuestionByID(questionID)
	if !ok {
		return domain.ErrQuestionNotFound
	}
	valid := false
	for _, opt := range question.Options {
		if opt.ID == optionID {
			valid = true
			break
		}
	}
	if !valid {
		return domain.ErrOptionNotFound
	}
	s.autosaver.SetAnswer(attemptID, questionID, optionID)
	return nil
}

// ClearAnswer removes the learner's selection for a question.
func (s *AttemptService) ClearAnswer(ctx context.Context, attemptID, questionID string) error {
	_, quiz, err := s.openAttempt(ctx, attemptID)
	if err != nil {
		return err
	}
	if _, ok := quiz.QuestionByID(questionID); !ok {
		return domain.ErrQuestionNotFound
	}
	s.autosaver.ClearAnswer(attemptID, questionID)
	return nil
}

// AutosaveDegraded surfaces the autosave channel's health to the transport.
func (s *AttemptService) AutosaveDegraded() bool {
	return s.autosaver.Degraded()
}

// Submit finalizes the attempt: drains pending autosaves, scores
// synchronously, then flips IN_PROGRESS to the terminal status with a
// conditional update. Losing the update race (a second tab submitting at
// the same moment) is benign: the loser re-reads the terminal attempt and
// returns the identical scored result.
func (s *AttemptService) Submit(ctx context.Context, attemptID string, reason domain.SubmitReason) (domain.ScoredResult, error) {
	attempt, err := s.attempts.GetAttempt(ctx, attemptID)
	if err != nil {
		return domain.ScoredResult{}, err
	}
	if attempt.Status.Terminal() {
		return resultFromAttempt(attempt), nil
	}
	quiz, err := s.quizzes.GetQuiz(ctx, attempt.QuizID)
	if err != nil {
		return domain.ScoredResult{}, err
	}

	if err := s.autosaver.Flush(ctx); err != nil {
		return domain.ScoredResult{}, fmt.Errorf("flush autosaves: %w", err)
	}

	result, err := s.scorer.Score(ctx, attemptID)
	if err != nil {
		return domain.ScoredResult{}, err
	}

	now := s.now()
	status := domain.AttemptSubmitted
	if reason == domain.SubmitTimeExpired {
		status = domain.AttemptAutoSubmitted
	}
	remaining := RemainingSeconds(quiz, attempt.StartedAt, now)

	applied, err := s.attempts.FinalizeAttempt(ctx, attemptID, status, now, remaining)
	if err != nil {
		return domain.ScoredResult{}, fmt.Errorf("finalize attempt: %w", err)
	}
	if !applied {
		// Another submission won; its persisted result is authoritative.
		final, err := s.attempts.GetAttempt(ctx, attemptID)
		if err != nil {
			return domain.ScoredResult{}, err
		}
		return resultFromAttempt(final), nil
	}

	result.Status = status
	result.SubmittedAt = now
	return result, nil
}

func (s *AttemptService) openAttempt(ctx context.Context, attemptID string) (domain.Attempt, domain.Quiz, error) {
	attempt, err := s.attempts.GetAttempt(ctx, attemptID)
	if err != nil {
		return domain.Attempt{}, domain.Quiz{}, err
	}
	if attempt.Status.Terminal() {
		return domain.Attempt{}, domain.Quiz{}, domain.ErrAttemptFinished
	}
	quiz, err := s.quizzes.GetQuiz(ctx, attempt.QuizID)
	if err != nil {
		return domain.Attempt{}, domain.Quiz{}, err
	}
	return attempt, quiz, nil
}

func resultFromAttempt(attempt domain.Attempt) domain.ScoredResult {
	result := domain.ScoredResult{
		AttemptID: attempt.ID,
		QuizID:    attempt.QuizID,
		UserID:    attempt.UserID,
		Status:    attempt.Status,
	}
	if attempt.SubmittedAt != nil {
		result.SubmittedAt = *attempt.SubmittedAt
	}
	if attempt.TotalQuestions != nil {
		result.TotalQuestions = *attempt.TotalQuestions
	}
	if attempt.CorrectAnswers != nil {
		result.CorrectAnswers = *attempt.CorrectAnswers
	}
	if attempt.TotalPoints != nil {
		result.TotalPoints = *attempt.TotalPoints
	}
	if attempt.ScorePercentage != nil {
		result.ScorePercentage = *attempt.ScorePercentage
	}
	return result
}

func maxAttempts(quiz domain.Quiz) int {
	if quiz.MaxAttempts <= 0 {
		return 1
	}
	return quiz.MaxAttempts
}

func newAttemptID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		panic(err) // crypto/rand never fails on supported platforms
	}
	return hex.EncodeToString(buf)
}
