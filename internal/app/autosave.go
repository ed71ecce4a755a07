package app

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"campus-quiz-service/internal/domain"
)

// degradedAfter is the consecutive-failure streak at which the autosaver
// starts reporting itself degraded so the transport can surface a warning.
const degradedAfter = 3

type saveOp struct {
	attemptID  string
	questionID string
	optionID   *string
	clear      bool
	flush      chan struct{} // non-nil marks a flush barrier
}

// Autosaver is the incremental answer-persistence channel. Writes are
// fire-and-forget: callers enqueue and return immediately, a single worker
// applies them in order with last-write-wins semantics. A transient store
// failure never blocks navigation; the authoritative resolution happens at
// scoring time, which re-derives "unanswered" for any question with no row.
type Autosaver struct {
	attempts   AttemptRepository
	now        func() time.Time
	queue      chan saveOp
	done       chan struct{}
	failStreak atomic.Int32
}

// NewAutosaver starts the worker goroutine. Callers must Close it.
func NewAutosaver(attempts AttemptRepository, now func() time.Time) *Autosaver {
	a := &Autosaver{
		attempts: attempts,
		now:      now,
		queue:    make(chan saveOp, 64),
		done:     make(chan struct{}),
	}
	go a.run()
	return a
}

// SetAnswer enqueues an upsert for (attemptID, questionID).
func (a *Autosaver) SetAnswer(attemptID, questionID, optionID string) {
	a.queue <- saveOp{attemptID: attemptID, questionID: questionID, optionID: &optionID}
}

// ClearAnswer enqueues a delete for (attemptID, questionID).
func (a *Autosaver) ClearAnswer(attemptID, questionID string) {
	a.queue <- saveOp{attemptID: attemptID, questionID: questionID, clear: true}
}

// Flush blocks until every previously enqueued write has been applied (or
// failed and been logged). Submission calls this before scoring so the last
// successfully persisted state is what gets graded.
func (a *Autosaver) Flush(ctx context.Context) error {
	barrier := make(chan struct{})
	select {
	case a.queue <- saveOp{flush: barrier}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-barrier:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Degraded reports whether recent writes have been failing in a streak.
// Saves are still non-fatal, but the caller should show a visible warning
// since the staleness window is bounded only by the next successful write.
func (a *Autosaver) Degraded() bool {
	return a.failStreak.Load() >= degradedAfter
}

// Close stops the worker after draining the queue.
func (a *Autosaver) Close() {
	close(a.queue)
	<-a.done
}

func (a *Autosaver) run() {
	defer close(a.done)
	for op := range a.queue {
		if op.flush != nil {
			close(op.flush)
			continue
		}
		a.apply(op)
	}
}

func (a *Autosaver) apply(op saveOp) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var err error
	if op.clear {
		err = a.attempts.DeleteAnswer(ctx, op.attemptID, op.questionID)
	} else {
		err = a.attempts.UpsertAnswer(ctx, domain.Answer{
			AttemptID:        op.attemptID,
			QuestionID:       op.questionID,
			SelectedOptionID: op.optionID,
			UpdatedAt:        a.now(),
		})
	}
	if err != nil {
		streak := a.failStreak.Add(1)
		log.Printf("autosave: attempt %s question %s failed (streak %d): %v", op.attemptID, op.questionID, streak, err)
		return
	}
	a.failStreak.Store(0)
}
