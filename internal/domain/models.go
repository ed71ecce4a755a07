package domain

import (
	"time"

	"github.com/uptrace/bun"
)

// QuizMode distinguishes synchronized quizzes from self-paced ones.
type QuizMode string

const (
	// ModeLive quizzes have a fixed start instant shared by all learners.
	ModeLive QuizMode = "LIVE"
	// ModeUnlive quizzes are self-paced, optionally bounded by a deadline.
	ModeUnlive QuizMode = "UNLIVE"
)

// QuestionType enumerates the supported question kinds.
type QuestionType string

const (
	QuestionMultipleChoice QuestionType = "MULTIPLE_CHOICE"
	QuestionTrueFalse      QuestionType = "TRUE_FALSE"
	QuestionShortAnswer    QuestionType = "SHORT_ANSWER"
)

// AttemptStatus tracks the lifecycle of a learner's attempt.
type AttemptStatus string

const (
	AttemptInProgress    AttemptStatus = "IN_PROGRESS"
	AttemptSubmitted     AttemptStatus = "SUBMITTED"
	AttemptAutoSubmitted AttemptStatus = "AUTO_SUBMITTED"
)

// Terminal reports whether the status is one of the immutable end states.
func (s AttemptStatus) Terminal() bool {
	return s == AttemptSubmitted || s == AttemptAutoSubmitted
}

// AccessState is the window evaluator's verdict for (quiz, now).
type AccessState string

const (
	// AccessUpcoming means the login window has not opened yet.
	AccessUpcoming AccessState = "UPCOMING"
	// AccessLoginWindow means a learner may authenticate and wait, but
	// question content is not released until the start instant.
	AccessLoginWindow AccessState = "LOGIN_WINDOW_OPEN"
	AccessActive      AccessState = "ACTIVE"
	AccessEnded       AccessState = "ENDED"
)

// SubmitReason records why an attempt was finalized.
type SubmitReason string

const (
	SubmitManual      SubmitReason = "MANUAL"
	SubmitTimeExpired SubmitReason = "TIME_EXPIRED"
)

// Option is one answer choice of a question. Letters follow ordinal
// position (A, B, C, D).
type Option struct {
	ID      string `json:"id"`
	Letter  string `json:"letter"`
	Text    string `json:"text"`
	Correct bool   `json:"correct"`
}

// Question belongs to exactly one quiz. Ordinal is 1-based and unique per
// quiz; it defines both navigation and scoring iteration order.
type Question struct {
	ID          string       `json:"id"`
	Ordinal     int          `json:"ordinal"`
	Type        QuestionType `json:"type"`
	Prompt      string       `json:"prompt"`
	Points      int          `json:"points"` // defaults to 1 if zero
	Explanation string       `json:"explanation,omitempty"`
	Options     []Option     `json:"options,omitempty"`
}

// CorrectOption returns the question's single correct option, if any.
// SHORT_ANSWER questions have none by construction.
func (q Question) CorrectOption() (Option, bool) {
	for _, opt := range q.Options {
		if opt.Correct {
			return opt, true
		}
	}
	return Option{}, false
}

// Quiz is the content plus the entry policy for one quiz.
type Quiz struct {
	ID                 string     `json:"id"`
	Title              string     `json:"title"`
	Description        string     `json:"description,omitempty"`
	Mode               QuizMode   `json:"mode"`
	DurationSeconds    int        `json:"durationSeconds"`
	StartTime          time.Time  `json:"startTime,omitempty"`          // LIVE only
	LoginWindowSeconds int        `json:"loginWindowSeconds,omitempty"` // LIVE only
	Deadline           *time.Time `json:"deadline,omitempty"`           // UNLIVE only; nil means open-ended
	Password           string     `json:"password"`
	Instructions       string     `json:"instructions,omitempty"`
	MaxAttempts        int        `json:"maxAttempts"` // defaults to 1 if zero
	ShowResultsNow     bool       `json:"showResultsImmediately"`
	ShowCorrectAnswers bool       `json:"showCorrectAnswers"`
	AllowReview        bool       `json:"allowReview"`
	Questions          []Question `json:"questions"`
}

// QuestionByID looks a question up within the quiz.
func (q Quiz) QuestionByID(questionID string) (Question, bool) {
	for _, question := range q.Questions {
		if question.ID == questionID {
			return question, true
		}
	}
	return Question{}, false
}

// Attempt is one learner's single pass through a quiz. StartedAt is set once
// at creation and never changes; the remaining-time computation always
// derives from it rather than from any client-held countdown.
type Attempt struct {
	bun.BaseModel `bun:"table:attempts,alias:a" json:"-"`

	ID                   string        `bun:"id,pk" json:"id"`
	QuizID               string        `bun:"quiz_id,notnull" json:"quizId"`
	UserID               string        `bun:"user_id,notnull" json:"userId"`
	Status               AttemptStatus `bun:"status,notnull" json:"status"`
	StartedAt            time.Time     `bun:"started_at,notnull" json:"startedAt"`
	SubmittedAt          *time.Time    `bun:"submitted_at" json:"submittedAt,omitempty"`
	TimeRemainingSeconds *int          `bun:"time_remaining_seconds" json:"timeRemainingSeconds,omitempty"`
	TotalQuestions       *int          `bun:"total_questions" json:"totalQuestions,omitempty"`
	CorrectAnswers       *int          `bun:"correct_answers" json:"correctAnswers,omitempty"`
	TotalPoints          *int          `bun:"total_points" json:"totalPoints,omitempty"`
	ScorePercentage      *float64      `bun:"score_percentage" json:"scorePercentage,omitempty"`
}

// Answer is the learner's (possibly absent) selection for one question,
// unique per (attempt, question). Scoring fields stay nil until the attempt
// is finalized.
type Answer struct {
	bun.BaseModel `bun:"table:answers,alias:ans" json:"-"`

	AttemptID        string    `bun:"attempt_id,pk" json:"attemptId"`
	QuestionID       string    `bun:"question_id,pk" json:"questionId"`
	SelectedOptionID *string   `bun:"selected_option_id" json:"selectedOptionId,omitempty"`
	IsCorrect        *bool     `bun:"is_correct" json:"isCorrect,omitempty"`
	PointsEarned     *int      `bun:"points_earned" json:"pointsEarned,omitempty"`
	UpdatedAt        time.Time `bun:"updated_at,notnull" json:"updatedAt"`
}

// ScoredResult is the outcome of scoring one attempt.
type ScoredResult struct {
	AttemptID       string        `json:"attemptId"`
	QuizID          string        `json:"quizId"`
	UserID          string        `json:"userId"`
	Status          AttemptStatus `json:"status"`
	SubmittedAt     time.Time     `json:"submittedAt"`
	TotalQuestions  int           `json:"totalQuestions"`
	CorrectAnswers  int           `json:"correctAnswers"`
	TotalPoints     int           `json:"totalPoints"`
	ScorePercentage float64       `json:"scorePercentage"`
}

// LeaderboardEntry is one row of a quiz's ranking.
type LeaderboardEntry struct {
	Rank            int       `json:"rank"`
	AttemptID       string    `json:"attemptId"`
	UserID          string    `json:"userId"`
	ScorePercentage float64   `json:"scorePercentage"`
	TotalPoints     int       `json:"totalPoints"`
	SubmittedAt     time.Time `json:"submittedAt"`
}

// Leaderboard is the full ordering of completed attempts for a quiz.
type Leaderboard struct {
	QuizID    string             `json:"quizId"`
	Entries   []LeaderboardEntry `json:"entries"`
	UpdatedAt time.Time          `json:"updatedAt"`
}
