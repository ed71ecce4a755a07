package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"campus-quiz-service/internal/clock"
	"campus-quiz-service/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// QuizLoader loads quiz JSONB documents from Postgres. The admin CRUD
// screens that author quizzes live outside this service; we only consume
// the documents they write.
type QuizLoader struct {
	pool *pgxpool.Pool
}

func NewQuizLoader(pool *pgxpool.Pool) *QuizLoader {
	return &QuizLoader{pool: pool}
}

func (l *QuizLoader) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	var raw []byte
	err := l.pool.QueryRow(ctx, `SELECT data FROM quizzes WHERE id=$1`, quizID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("load quiz: %w", err)
	}
	var quiz domain.Quiz
	if err := json.Unmarshal(raw, &quiz); err != nil {
		return domain.Quiz{}, fmt.Errorf("unmarshal quiz: %w", err)
	}
	normalizeQuizTimes(&quiz)
	return quiz, nil
}

// normalizeQuizTimes pins every stored instant to IST so window arithmetic
// compares like with like regardless of how the document was authored.
func normalizeQuizTimes(quiz *domain.Quiz) {
	if !quiz.StartTime.IsZero() {
		quiz.StartTime = clock.In(quiz.StartTime)
	}
	if quiz.Deadline != nil {
		d := clock.In(*quiz.Deadline)
		quiz.Deadline = &d
	}
}
