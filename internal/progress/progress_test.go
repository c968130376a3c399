package progress_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/learnxp/internal/domain"
	"github.com/victornm/learnxp/internal/progress"
)

var course = domain.Course{
	CourseID: "sql",
	Title:    "SQL",
	Sections: []domain.Section{
		{
			SectionID: "s1",
			Lessons:   []domain.Lesson{{LessonID: "l1"}, {LessonID: "l2"}},
			Quiz:      domain.Quiz{QuizID: "q1"},
		},
		{
			SectionID: "s2",
			Lessons:   []domain.Lesson{{LessonID: "l3"}},
			Quiz:      domain.Quiz{QuizID: "q2"},
		},
	},
}

func TestCourse(t *testing.T) {
	tests := map[string]struct {
		course    domain.Course
		completed progress.Set
		want      progress.Completion
	}{
		"nothing done": {
			course: course,
			want:   progress.Completion{Done: 0, Total: 3, Percent: 0},
		},
		"one of three rounds to 33": {
			course:    course,
			completed: progress.Set{"l1": true},
			want:      progress.Completion{Done: 1, Total: 3, Percent: 33},
		},
		"two of three rounds to 67": {
			course:    course,
			completed: progress.Set{"l1": true, "l3": true},
			want:      progress.Completion{Done: 2, Total: 3, Percent: 67},
		},
		"lessons of other courses are ignored": {
			course:    course,
			completed: progress.Set{"py-l1": true},
			want:      progress.Completion{Done: 0, Total: 3, Percent: 0},
		},
		"empty course never divides by zero": {
			course: domain.Course{CourseID: "empty"},
			want:   progress.Completion{Done: 0, Total: 0, Percent: 0},
		},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, progress.Course(tt.course, tt.completed))
		})
	}
}

func TestNextLesson(t *testing.T) {
	next, ok := progress.NextLesson(course, nil)
	require.True(t, ok)
	assert.Equal(t, "l1", next.LessonID)

	next, ok = progress.NextLesson(course, progress.Set{"l1": true})
	require.True(t, ok)
	assert.Equal(t, "l2", next.LessonID)

	next, ok = progress.NextLesson(course, progress.Set{"l1": true, "l2": true})
	require.True(t, ok)
	assert.Equal(t, "l3", next.LessonID, "should move on to the next section")

	next, ok = progress.NextLesson(course, progress.Set{"l2": true, "l3": true})
	require.True(t, ok)
	assert.Equal(t, "l1", next.LessonID, "should return the first gap, not the last completed + 1")

	_, ok = progress.NextLesson(course, progress.Set{"l1": true, "l2": true, "l3": true})
	assert.False(t, ok)
}

func TestSection(t *testing.T) {
	s := course.Sections[0]

	st := progress.Section(s, progress.Set{"l1": true}, nil)
	assert.False(t, st.QuizUnlocked)
	assert.Equal(t, progress.Completion{Done: 1, Total: 2, Percent: 50}, st.Lessons)

	st = progress.Section(s, progress.Set{"l1": true, "l2": true}, progress.Set{"q1": true})
	assert.True(t, st.QuizUnlocked)
	assert.True(t, st.QuizPassed)
	assert.Equal(t, "q1", st.QuizID)
}

func TestSummarize(t *testing.T) {
	other := domain.Course{
		CourseID: "py",
		Sections: []domain.Section{{SectionID: "p1", Lessons: []domain.Lesson{{LessonID: "p1"}}, Quiz: domain.Quiz{QuizID: "pq"}}},
	}

	o := progress.Summarize([]domain.Course{course, other}, progress.Set{"l1": true, "l2": true, "l3": true}, nil)

	require.Len(t, o.Courses, 2)
	assert.Nil(t, o.Courses[0].NextLesson)
	assert.Equal(t, 100, o.Courses[0].Completion.Percent)
	require.NotNil(t, o.Courses[1].NextLesson)
	assert.Equal(t, "p1", o.Courses[1].NextLesson.LessonID)
	assert.Equal(t, progress.Completion{Done: 3, Total: 4, Percent: 75}, o.Global)

	done := progress.CompletedCourses([]domain.Course{course, other}, progress.Set{"l1": true, "l2": true, "l3": true})
	assert.Equal(t, map[string]bool{"sql": true, "py": false}, done)
}

func TestCompletedLessons(t *testing.T) {
	s := progress.CompletedLessons([]domain.LessonCompletion{
		{LessonID: "l1", Completed: true},
		{LessonID: "l2", Completed: false},
	})

	assert.Equal(t, progress.Set{"l1": true}, s)
}

func TestQuizzes(t *testing.T) {
	st := progress.Quizzes(nil)
	assert.Equal(t, 0, st.Attempts)
	assert.True(t, st.AverageScore.IsZero())

	st = progress.Quizzes([]domain.QuizAttempt{
		{QuizID: "q1", Score: decimal.NewFromInt(50), Passed: false},
		{QuizID: "q1", Score: decimal.NewFromInt(75), Passed: true},
		{QuizID: "q1", Score: decimal.NewFromInt(100), Passed: true},
		{QuizID: "q2", Score: decimal.NewFromInt(66), Passed: false},
	})

	assert.Equal(t, 4, st.Attempts)
	assert.Equal(t, 1, st.Passed, "retakes of a passed quiz count once")
	assert.Equal(t, "72.75", st.AverageScore.String())
	assert.True(t, decimal.NewFromInt(100).Equal(st.Best["q1"]))
	assert.True(t, decimal.NewFromInt(66).Equal(st.Best["q2"]))
}
