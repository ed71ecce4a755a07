package app

import (
	"time"

	"campus-quiz-service/internal/domain"
)

// EvaluateAccess decides whether "now" falls inside the quiz's permitted
// entry window. Pure; callers re-evaluate on every tick rather than caching
// the verdict.
//
// LIVE quizzes partition time into three contiguous ranges around
// [startTime-loginWindow, startTime) and [startTime, startTime+duration].
// UNLIVE quizzes are open until their deadline, or forever without one.
func EvaluateAccess(quiz domain.Quiz, now time.Time) domain.AccessState {
	if quiz.Mode == domain.ModeLive {
		loginOpen := quiz.StartTime.Add(-time.Duration(quiz.LoginWindowSeconds) * time.Second)
		end := quiz.StartTime.Add(time.Duration(quiz.DurationSeconds) * time.Second)
		switch {
		case now.Before(loginOpen):
			return domain.AccessUpcoming
		case now.Before(quiz.StartTime):
			return domain.AccessLoginWindow
		case !now.After(end):
			return domain.AccessActive
		default:
			return domain.AccessEnded
		}
	}
	if quiz.Deadline != nil && now.After(*quiz.Deadline) {
		return domain.AccessEnded
	}
	return domain.AccessActive
}

// IsAvailable reports whether a learner may enter the quiz at this instant.
// The login window counts as available even though content stays held back.
func IsAvailable(quiz domain.Quiz, now time.Time) bool {
	switch EvaluateAccess(quiz, now) {
	case domain.AccessLoginWindow, domain.AccessActive:
		return true
	default:
		return false
	}
}

// SecondsUntilStart returns the gated-wait countdown for a LIVE quiz,
// clamped at zero. Always recomputed from the quiz's start instant, never
// from a decrement history.
func SecondsUntilStart(quiz domain.Quiz, now time.Time) int {
	if quiz.Mode != domain.ModeLive || !now.Before(quiz.StartTime) {
		return 0
	}
	return int(quiz.StartTime.Sub(now) / time.Second)
}

// RemainingSeconds returns the attempt's authoritative remaining time,
// derived from the persisted start instant so a reload mid-attempt resumes
// with the correct value instead of resetting the clock.
func RemainingSeconds(quiz domain.Quiz, startedAt, now time.Time) int {
	base := startedAt
	if quiz.Mode == domain.ModeLive && quiz.StartTime.After(startedAt) {
		// A learner who authenticated during the login window only starts
		// consuming duration once the quiz itself starts.
		base = quiz.StartTime
	}
	elapsed := now.Sub(base)
	remaining := time.Duration(quiz.DurationSeconds)*time.Second - elapsed
	if remaining < 0 {
		return 0
	}
	return int(remaining / time.Second)
}
