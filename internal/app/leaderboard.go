package app

import (
	"context"
	"sort"
	"time"

	"campus-quiz-service/internal/domain"
)

// Ranker derives a total order over a quiz's completed attempts. Ranks are
// recomputed on every read so they never go stale as new attempts finish.
type Ranker struct {
	attempts AttemptRepository
	now      func() time.Time
}

func NewRanker(attempts AttemptRepository, now func() time.Time) *Ranker {
	return &Ranker{attempts: attempts, now: now}
}

// Leaderboard orders terminal attempts by score percentage descending, then
// submission instant ascending (earlier submission wins ties), and assigns
// 1-based ranks.
func (r *Ranker) Leaderboard(ctx context.Context, quizID string) (domain.Leaderboard, error) {
	attempts, err := r.attempts.FinishedAttempts(ctx, quizID)
	if err != nil {
		return domain.Leaderboard{}, err
	}

	entries := make([]domain.LeaderboardEntry, 0, len(attempts))
	for _, attempt := range attempts {
		entry := domain.LeaderboardEntry{
			AttemptID: attempt.ID,
			UserID:    attempt.UserID,
		}
		if attempt.ScorePercentage != nil {
			entry.ScorePercentage = *attempt.ScorePercentage
		}
		if attempt.TotalPoints != nil {
			entry.TotalPoints = *attempt.TotalPoints
		}
		if attempt.SubmittedAt != nil {
			entry.SubmittedAt = *attempt.SubmittedAt
		}
		entries = append(entries, entry)
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].ScorePercentage != entries[j].ScorePercentage {
			return entries[i].ScorePercentage > entries[j].ScorePercentage
		}
		if !entries[i].SubmittedAt.Equal(entries[j].SubmittedAt) {
			return entries[i].SubmittedAt.Before(entries[j].SubmittedAt)
		}
		return entries[i].AttemptID < entries[j].AttemptID
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}

	return domain.Leaderboard{
		QuizID:    quizID,
		Entries:   entries,
		UpdatedAt: r.now(),
	}, nil
}

// Rank returns a single learner's best position on the quiz's leaderboard.
func (r *Ranker) Rank(ctx context.Context, quizID, userID string) (int, error) {
	leaderboard, err := r.Leaderboard(ctx, quizID)
	if err != nil {
		return 0, err
	}
	for _, entry := range leaderboard.Entries {
		if entry.UserID == userID {
			return entry.Rank, nil
		}
	}
	return 0, domain.ErrAttemptNotFound
}
