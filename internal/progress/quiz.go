package progress

import (
	"github.com/shopspring/decimal"

	"github.com/victornm/learnxp/internal/domain"
)

type QuizStats struct {
	Attempts     int                        `json:"attempts"`
	Passed       int                        `json:"passed"`
	AverageScore decimal.Decimal            `json:"average_score"`
	Best         map[string]decimal.Decimal `json:"best"`
}

// Quizzes folds quiz attempts. Passed counts distinct quizzes with a passing
// attempt, so retakes of one quiz are counted once.
func Quizzes(attempts []domain.QuizAttempt) QuizStats {
	st := QuizStats{
		Attempts:     len(attempts),
		AverageScore: decimal.Zero,
		Best:         make(map[string]decimal.Decimal),
	}
	if len(attempts) == 0 {
		return st
	}

	sum := decimal.Zero
	for _, a := range attempts {
		sum = sum.Add(a.Score)
		if b, ok := st.Best[a.QuizID]; !ok || a.Score.GreaterThan(b) {
			st.Best[a.QuizID] = a.Score
		}
	}

	st.Passed = len(PassedQuizzes(attempts))
	st.AverageScore = sum.Div(decimal.NewFromInt(int64(len(attempts)))).Round(2)
	return st
}
