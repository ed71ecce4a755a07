package app

import (
	"context"
	"fmt"
	"log"
	"math"
	"sort"

	"campus-quiz-service/internal/domain"
)

// Scorer computes and persists the result of one attempt. Scoring is a pure
// function of the quiz content and the persisted answers at call time, so
// re-running it yields identical values.
type Scorer struct {
	quizzes  QuizRepository
	attempts AttemptRepository
}

// NewScorer wires the scoring engine to its stores.
func NewScorer(quizzes QuizRepository, attempts AttemptRepository) *Scorer {
	return &Scorer{quizzes: quizzes, attempts: attempts}
}

// Score walks the quiz's questions in ordinal order, grades each persisted
// answer against the single correct option, fills in zero-value rows for
// unanswered questions, and writes the aggregates onto the attempt. After it
// returns, exactly one answer row exists per question.
func (s *Scorer) Score(ctx context.Context, attemptID string) (domain.ScoredResult, error) {
	attempt, err := s.attempts.GetAttempt(ctx, attemptID)
	if err != nil {
		return domain.ScoredResult{}, err
	}
	quiz, err := s.quizzes.GetQuiz(ctx, attempt.QuizID)
	if err != nil {
		return domain.ScoredResult{}, err
	}
	answers, err := s.attempts.AnswersByAttempt(ctx, attemptID)
	if err != nil {
		return domain.ScoredResult{}, err
	}

	byQuestion := make(map[string]domain.Answer, len(answers))
	for _, answer := range answers {
		byQuestion[answer.QuestionID] = answer
	}

	correctCount := 0
	totalPoints := 0
	for _, question := range orderedQuestions(quiz) {
		answer, answered := byQuestion[question.ID]
		if !answered {
			answer = domain.Answer{AttemptID: attemptID, QuestionID: question.ID}
		}

		correctOption, hasKey := question.CorrectOption()
		if !hasKey && question.Type != domain.QuestionShortAnswer {
			// Data-integrity gap: an auto-gradable question without a key
			// scores incorrect for everyone instead of blocking submission.
			log.Printf("scoring: question %s of quiz %s has no correct option", question.ID, quiz.ID)
		}

		isCorrect := answered && answer.SelectedOptionID != nil &&
			hasKey && *answer.SelectedOptionID == correctOption.ID
		points := 0
		if isCorrect {
			points = questionPoints(question)
			correctCount++
			totalPoints += points
		}

		answer.IsCorrect = &isCorrect
		answer.PointsEarned = &points
		if err := s.attempts.UpsertAnswer(ctx, answer); err != nil {
			return domain.ScoredResult{}, fmt.Errorf("persist scored answer: %w", err)
		}
	}

	total := len(quiz.Questions)
	percentage := 0.0
	if total > 0 {
		// Percentage is over question count, not point-weighted; leaderboards
		// and result copy depend on the count-based definition.
		percentage = math.Round(float64(correctCount)/float64(total)*1000) / 10
	}

	if err := s.attempts.SaveScore(ctx, attemptID, total, correctCount, totalPoints, percentage); err != nil {
		return domain.ScoredResult{}, fmt.Errorf("persist attempt score: %w", err)
	}

	result := domain.ScoredResult{
		AttemptID:       attemptID,
		QuizID:          quiz.ID,
		UserID:          attempt.UserID,
		Status:          attempt.Status,
		TotalQuestions:  total,
		CorrectAnswers:  correctCount,
		TotalPoints:     totalPoints,
		ScorePercentage: percentage,
	}
	if attempt.SubmittedAt != nil {
		result.SubmittedAt = *attempt.SubmittedAt
	}
	return result, nil
}

func questionPoints(q domain.Question) int {
	if q.Points <= 0 {
		return 1
	}
	return q.Points
}

// orderedQuestions returns the quiz's questions sorted by ordinal.
func orderedQuestions(quiz domain.Quiz) []domain.Question {
	questions := make([]domain.Question, len(quiz.Questions))
	copy(questions, quiz.Questions)
	sort.Slice(questions, func(i, j int) bool {
		return questions[i].Ordinal < questions[j].Ordinal
	})
	return questions
}
