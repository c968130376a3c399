package content

import (
	"github.com/shopspring/decimal"

	"github.com/victornm/learnxp/internal/domain"
	"github.com/victornm/learnxp/internal/level"
)

// PassPercent is the share of correct answers needed to pass any quiz.
const PassPercent = 70

type Grade struct {
	Correct int
	Total   int
	Score   decimal.Decimal
	Passed  bool
}

// GradeQuiz matches answers (question ID -> chosen option) against the quiz.
// Unanswered questions count as wrong.
func GradeQuiz(q domain.Quiz, answers map[string]string) Grade {
	g := Grade{Total: len(q.Questions)}
	for _, qq := range q.Questions {
		if a, ok := answers[qq.QuestionID]; ok && a == qq.Answer {
			g.Correct++
		}
	}

	pct := level.Percent(int64(g.Correct), int64(g.Total))
	g.Score = decimal.NewFromInt(int64(pct))
	g.Passed = g.Total > 0 && g.Correct*100 >= PassPercent*g.Total

	return g
}
