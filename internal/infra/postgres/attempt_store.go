package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"campus-quiz-service/internal/clock"
	"campus-quiz-service/internal/domain"
	"github.com/uptrace/bun"
)

// AttemptStore persists attempts and answers through bun. It implements
// app.AttemptRepository; answer upserts resolve on the (attempt_id,
// question_id) primary key with last-write-wins semantics, and finalization
// is a conditional update so racing submissions converge on one winner.
type AttemptStore struct {
	db *bun.DB
}

func NewAttemptStore(db *bun.DB) *AttemptStore {
	return &AttemptStore{db: db}
}

func (s *AttemptStore) CreateAttempt(ctx context.Context, attempt domain.Attempt) error {
	if _, err := s.db.NewInsert().Model(&attempt).Exec(ctx); err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}
	return nil
}

func (s *AttemptStore) GetAttempt(ctx context.Context, attemptID string) (domain.Attempt, error) {
	var attempt domain.Attempt
	err := s.db.NewSelect().Model(&attempt).Where("a.id = ?", attemptID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	if err != nil {
		return domain.Attempt{}, fmt.Errorf("select attempt: %w", err)
	}
	normalizeAttemptTimes(&attempt)
	return attempt, nil
}

func (s *AttemptStore) AttemptsFor(ctx context.Context, quizID, userID string) ([]domain.Attempt, error) {
	var attempts []domain.Attempt
	err := s.db.NewSelect().Model(&attempts).
		Where("a.quiz_id = ?", quizID).
		Where("a.user_id = ?", userID).
		Order("a.started_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select attempts: %w", err)
	}
	for i := range attempts {
		normalizeAttemptTimes(&attempts[i])
	}
	return attempts, nil
}

func (s *AttemptStore) FinishedAttempts(ctx context.Context, quizID string) ([]domain.Attempt, error) {
	var attempts []domain.Attempt
	err := s.db.NewSelect().Model(&attempts).
		Where("a.quiz_id = ?", quizID).
		Where("a.status IN (?)", bun.In([]domain.AttemptStatus{domain.AttemptSubmitted, domain.AttemptAutoSubmitted})).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select finished attempts: %w", err)
	}
	for i := range attempts {
		normalizeAttemptTimes(&attempts[i])
	}
	return attempts, nil
}

func (s *AttemptStore) FinalizeAttempt(ctx context.Context, attemptID string, status domain.AttemptStatus, submittedAt time.Time, timeRemainingSeconds int) (bool, error) {
	res, err := s.db.NewUpdate().Model((*domain.Attempt)(nil)).
		Set("status = ?", status).
		Set("submitted_at = ?", submittedAt).
		Set("time_remaining_seconds = ?", timeRemainingSeconds).
		Where("a.id = ?", attemptID).
		Where("a.status = ?", domain.AttemptInProgress).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("finalize attempt: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

func (s *AttemptStore) SaveScore(ctx context.Context, attemptID string, totalQuestions, correctAnswers, totalPoints int, scorePercentage float64) error {
	_, err := s.db.NewUpdate().Model((*domain.Attempt)(nil)).
		Set("total_questions = ?", totalQuestions).
		Set("correct_answers = ?", correctAnswers).
		Set("total_points = ?", totalPoints).
		Set("score_percentage = ?", scorePercentage).
		Where("a.id = ?", attemptID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("save score: %w", err)
	}
	return nil
}

func (s *AttemptStore) UpsertAnswer(ctx context.Context, answer domain.Answer) error {
	_, err := s.db.NewInsert().Model(&answer).
		On("CONFLICT (attempt_id, question_id) DO UPDATE").
		Set("selected_option_id = EXCLUDED.selected_option_id").
		Set("is_correct = EXCLUDED.is_correct").
		Set("points_earned = EXCLUDED.points_earned").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("upsert answer: %w", err)
	}
	return nil
}

func (s *AttemptStore) DeleteAnswer(ctx context.Context, attemptID, questionID string) error {
	_, err := s.db.NewDelete().Model((*domain.Answer)(nil)).
		Where("ans.attempt_id = ?", attemptID).
		Where("ans.question_id = ?", questionID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete answer: %w", err)
	}
	return nil
}

func (s *AttemptStore) AnswersByAttempt(ctx context.Context, attemptID string) ([]domain.Answer, error) {
	var answers []domain.Answer
	err := s.db.NewSelect().Model(&answers).
		Where("ans.attempt_id = ?", attemptID).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select answers: %w", err)
	}
	return answers, nil
}

func normalizeAttemptTimes(attempt *domain.Attempt) {
	attempt.StartedAt = clock.In(attempt.StartedAt)
	if attempt.SubmittedAt != nil {
		t := clock.In(*attempt.SubmittedAt)
		attempt.SubmittedAt = &t
	}
}
