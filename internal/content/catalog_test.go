package content_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/learnxp/internal/content"
)

func TestLoad_Default(t *testing.T) {
	c, err := content.Load("")
	require.NoError(t, err)

	require.Len(t, c.Courses(), 2)
	assert.Equal(t, 12, c.LessonCount())

	loc, ok := c.Lesson("sql-l1")
	require.True(t, ok)
	assert.Equal(t, "sql", loc.Course.CourseID)
	assert.Equal(t, 0, loc.SectionIndex)
	assert.Equal(t, int64(50), loc.Lesson.XPReward)

	loc, ok = c.Lesson("py-l2")
	require.True(t, ok)
	assert.Equal(t, int64(content.DefaultLessonXP), loc.Lesson.XPReward, "lessons without xp get the default reward")

	q, ok := c.Quiz("sql-q2")
	require.True(t, ok)
	assert.Equal(t, 1, q.SectionIndex)
	assert.Len(t, q.Quiz().Questions, 3)

	_, ok = c.Lesson("nope")
	assert.False(t, ok)
	_, ok = c.Course("nope")
	assert.False(t, ok)
}

func TestParse_Invalid(t *testing.T) {
	tests := map[string]string{
		"no courses": `courses: []`,
		"duplicate lesson id": `
courses:
  - id: c
    title: C
    sections:
      - id: s
        title: S
        lessons:
          - {id: l1, title: A}
          - {id: l1, title: B}
        quiz:
          id: q
          questions:
            - {id: q1, prompt: P, options: [a, b], answer: a}
`,
		"answer outside options": `
courses:
  - id: c
    title: C
    sections:
      - id: s
        title: S
        lessons:
          - {id: l1, title: A}
        quiz:
          id: q
          questions:
            - {id: q1, prompt: P, options: [a, b], answer: c}
`,
		"section without quiz": `
courses:
  - id: c
    title: C
    sections:
      - id: s
        title: S
        lessons:
          - {id: l1, title: A}
`,
		"negative xp": `
courses:
  - id: c
    title: C
    sections:
      - id: s
        title: S
        lessons:
          - {id: l1, title: A, xp: -5}
        quiz:
          id: q
          questions:
            - {id: q1, prompt: P, options: [a, b], answer: a}
`,
		"unknown badge rule": `
courses:
  - id: c
    title: C
    sections:
      - id: s
        title: S
        lessons:
          - {id: l1, title: A}
        quiz:
          id: q
          questions:
            - {id: q1, prompt: P, options: [a, b], answer: a}
badges:
  - {id: b, name: B, rule: {kind: streak, threshold: 3}}
`,
	}

	for name, doc := range tests {
		doc := doc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			_, err := content.Parse([]byte(doc))
			require.Error(t, err)
		})
	}
}

func TestParse_Badges(t *testing.T) {
	c, err := content.Parse([]byte(`
courses:
  - id: c
    title: C
    sections:
      - id: s
        title: S
        lessons:
          - {id: l1, title: A}
        quiz:
          id: q
          questions:
            - {id: q1, prompt: P, options: [a, b], answer: a}
badges:
  - {id: c-done, name: C Done, rule: {kind: course_completed, course_id: c}}
`))
	require.NoError(t, err)
	require.Len(t, c.Badges(), 1)
	assert.Equal(t, "c", c.Badges()[0].Rule.CourseID)
}

func TestGradeQuiz(t *testing.T) {
	c, err := content.Load("")
	require.NoError(t, err)
	loc, ok := c.Quiz("sql-q1")
	require.True(t, ok)
	quiz := loc.Quiz()

	tests := map[string]struct {
		answers map[string]string
		want    content.Grade
	}{
		"all correct": {
			answers: map[string]string{"sql-q1-1": "WHERE", "sql-q1-2": "*", "sql-q1-3": "ORDER BY", "sql-q1-4": "LIMIT"},
			want:    content.Grade{Correct: 4, Total: 4, Score: decimal.NewFromInt(100), Passed: true},
		},
		"3 of 4 passes": {
			answers: map[string]string{"sql-q1-1": "WHERE", "sql-q1-2": "*", "sql-q1-3": "ORDER BY", "sql-q1-4": "TOP"},
			want:    content.Grade{Correct: 3, Total: 4, Score: decimal.NewFromInt(75), Passed: true},
		},
		"2 of 4 fails": {
			answers: map[string]string{"sql-q1-1": "WHERE", "sql-q1-2": "*"},
			want:    content.Grade{Correct: 2, Total: 4, Score: decimal.NewFromInt(50), Passed: false},
		},
		"no answers": {
			answers: nil,
			want:    content.Grade{Correct: 0, Total: 4, Score: decimal.NewFromInt(0), Passed: false},
		},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got := content.GradeQuiz(quiz, tt.answers)
			assert.Equal(t, tt.want.Correct, got.Correct)
			assert.Equal(t, tt.want.Total, got.Total)
			assert.True(t, tt.want.Score.Equal(got.Score), "score: want %s, got %s", tt.want.Score, got.Score)
			assert.Equal(t, tt.want.Passed, got.Passed)
		})
	}
}
