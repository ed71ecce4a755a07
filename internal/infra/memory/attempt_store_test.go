package memory

import (
	"context"
	"testing"
	"time"

	"campus-quiz-service/internal/clock"
	"campus-quiz-service/internal/domain"
)

func TestAttemptStoreFinalizeIsConditional(t *testing.T) {
	ctx := context.Background()
	store := NewAttemptStore()
	started := time.Date(2025, 3, 10, 10, 0, 0, 0, clock.IST)

	attempt := domain.Attempt{
		ID: "att-1", QuizID: "quiz-1", UserID: "u1",
		Status: domain.AttemptInProgress, StartedAt: started,
	}
	if err := store.CreateAttempt(ctx, attempt); err != nil {
		t.Fatalf("create: %v", err)
	}

	submitted := started.Add(10 * time.Minute)
	applied, err := store.FinalizeAttempt(ctx, "att-1", domain.AttemptSubmitted, submitted, 120)
	if err != nil || !applied {
		t.Fatalf("expected first finalize to apply, got applied=%v err=%v", applied, err)
	}

	// Second finalize loses the race and must not touch the row.
	applied, err = store.FinalizeAttempt(ctx, "att-1", domain.AttemptAutoSubmitted, submitted.Add(time.Second), 0)
	if err != nil || applied {
		t.Fatalf("expected second finalize to be a no-op, got applied=%v err=%v", applied, err)
	}

	got, err := store.GetAttempt(ctx, "att-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != domain.AttemptSubmitted || !got.SubmittedAt.Equal(submitted) {
		t.Fatalf("terminal state mutated: %+v", got)
	}
	if got.TimeRemainingSeconds == nil || *got.TimeRemainingSeconds != 120 {
		t.Fatalf("expected snapshotted remaining time 120, got %+v", got.TimeRemainingSeconds)
	}
}

func TestAttemptStoreAnswerUpsertAndClear(t *testing.T) {
	ctx := context.Background()
	store := NewAttemptStore()
	started := time.Date(2025, 3, 10, 10, 0, 0, 0, clock.IST)
	_ = store.CreateAttempt(ctx, domain.Attempt{
		ID: "att-1", QuizID: "quiz-1", UserID: "u1",
		Status: domain.AttemptInProgress, StartedAt: started,
	})

	optB := "o2"
	optC := "o3"
	if err := store.UpsertAnswer(ctx, domain.Answer{AttemptID: "att-1", QuestionID: "q1", SelectedOptionID: &optB, UpdatedAt: started}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	// Last write wins on the composite key.
	if err := store.UpsertAnswer(ctx, domain.Answer{AttemptID: "att-1", QuestionID: "q1", SelectedOptionID: &optC, UpdatedAt: started.Add(time.Second)}); err != nil {
		t.Fatalf("upsert 2: %v", err)
	}

	answers, err := store.AnswersByAttempt(ctx, "att-1")
	if err != nil {
		t.Fatalf("answers: %v", err)
	}
	if len(answers) != 1 || *answers[0].SelectedOptionID != optC {
		t.Fatalf("expected single row with o3, got %+v", answers)
	}

	if err := store.DeleteAnswer(ctx, "att-1", "q1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	answers, _ = store.AnswersByAttempt(ctx, "att-1")
	if len(answers) != 0 {
		t.Fatalf("expected no rows after clear, got %+v", answers)
	}
}

func TestAttemptStoreUpsertUnknownAttempt(t *testing.T) {
	store := NewAttemptStore()
	err := store.UpsertAnswer(context.Background(), domain.Answer{AttemptID: "ghost", QuestionID: "q1"})
	if err != domain.ErrAttemptNotFound {
		t.Fatalf("expected ErrAttemptNotFound, got %v", err)
	}
}
