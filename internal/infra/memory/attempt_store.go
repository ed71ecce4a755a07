package memory

import (
	"context"
	"sync"
	"time"

	"campus-quiz-service/internal/domain"
)

// AttemptStore is an in-memory implementation of app.AttemptRepository,
// used when no Postgres is configured and throughout unit tests.
type AttemptStore struct {
	mu       sync.RWMutex
	attempts map[string]domain.Attempt
	// answers holds one row per (attempt, question); upserts replace.
	answers map[string]map[string]domain.Answer
}

func NewAttemptStore() *AttemptStore {
	return &AttemptStore{
		attempts: make(map[string]domain.Attempt),
		answers:  make(map[string]map[string]domain.Answer),
	}
}

func (s *AttemptStore) CreateAttempt(_ context.Context, attempt domain.Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts[attempt.ID] = attempt
	return nil
}

func (s *AttemptStore) GetAttempt(_ context.Context, attemptID string) (domain.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	attempt, ok := s.attempts[attemptID]
	if !ok {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	return attempt, nil
}

func (s *AttemptStore) AttemptsFor(_ context.Context, quizID, userID string) ([]domain.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Attempt
	for _, attempt := range s.attempts {
		if attempt.QuizID == quizID && attempt.UserID == userID {
			out = append(out, attempt)
		}
	}
	return out, nil
}

func (s *AttemptStore) FinishedAttempts(_ context.Context, quizID string) ([]domain.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Attempt
	for _, attempt := range s.attempts {
		if attempt.QuizID == quizID && attempt.Status.Terminal() {
			out = append(out, attempt)
		}
	}
	return out, nil
}

func (s *AttemptStore) FinalizeAttempt(_ context.Context, attemptID string, status domain.AttemptStatus, submittedAt time.Time, timeRemainingSeconds int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	attempt, ok := s.attempts[attemptID]
	if !ok {
		return false, domain.ErrAttemptNotFound
	}
	if attempt.Status != domain.AttemptInProgress {
		return false, nil
	}
	attempt.Status = status
	attempt.SubmittedAt = &submittedAt
	attempt.TimeRemainingSeconds = &timeRemainingSeconds
	s.attempts[attemptID] = attempt
	return true, nil
}

func (s *AttemptStore) SaveScore(_ context.Context, attemptID string, totalQuestions, correctAnswers, totalPoints int, scorePercentage float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	attempt, ok := s.attempts[attemptID]
	if !ok {
		return domain.ErrAttemptNotFound
	}
	attempt.TotalQuestions = &totalQuestions
	attempt.CorrectAnswers = &correctAnswers
	attempt.TotalPoints = &totalPoints
	attempt.ScorePercentage = &scorePercentage
	s.attempts[attemptID] = attempt
	return nil
}

func (s *AttemptStore) UpsertAnswer(_ context.Context, answer domain.Answer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.attempts[answer.AttemptID]; !ok {
		return domain.ErrAttemptNotFound
	}
	rows, ok := s.answers[answer.AttemptID]
	if !ok {
		rows = make(map[string]domain.Answer)
		s.answers[answer.AttemptID] = rows
	}
	rows[answer.QuestionID] = answer
	return nil
}

func (s *AttemptStore) DeleteAnswer(_ context.Context, attemptID, questionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rows, ok := s.answers[attemptID]; ok {
		delete(rows, questionID)
	}
	return nil
}

func (s *AttemptStore) AnswersByAttempt(_ context.Context, attemptID string) ([]domain.Answer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows := s.answers[attemptID]
	out := make([]domain.Answer, 0, len(rows))
	for _, answer := range rows {
		out = append(out, answer)
	}
	return out, nil
}
