// Package progress turns completion records and content trees into
// display-ready aggregates. Nothing here mutates state.
package progress

import (
	"github.com/victornm/learnxp/internal/domain"
	"github.com/victornm/learnxp/internal/level"
)

// Set is a membership set of IDs (completed lessons, passed quizzes).
type Set map[string]bool

// CompletedLessons builds the set of lessons whose record is completed.
func CompletedLessons(records []domain.LessonCompletion) Set {
	s := make(Set, len(records))
	for _, r := range records {
		if r.Completed {
			s[r.LessonID] = true
		}
	}
	return s
}

// PassedQuizzes builds the set of quizzes with at least one passing attempt.
func PassedQuizzes(attempts []domain.QuizAttempt) Set {
	s := make(Set)
	for _, a := range attempts {
		if a.Passed {
			s[a.QuizID] = true
		}
	}
	return s
}

type Completion struct {
	Done    int `json:"done"`
	Total   int `json:"total"`
	Percent int `json:"percent"`
}

func newCompletion(done, total int) Completion {
	return Completion{Done: done, Total: total, Percent: level.Percent(int64(done), int64(total))}
}

func (c Completion) Complete() bool {
	return c.Total > 0 && c.Done == c.Total
}

// Course returns how many of the course's lessons are completed.
func Course(c domain.Course, completed Set) Completion {
	var done, total int
	for _, s := range c.Sections {
		for _, l := range s.Lessons {
			total++
			if completed[l.LessonID] {
				done++
			}
		}
	}

	return newCompletion(done, total)
}

// NextLesson returns the first incomplete lesson in declared order. It
// returns false when every lesson of the course is completed.
func NextLesson(c domain.Course, completed Set) (*domain.Lesson, bool) {
	for _, s := range c.Sections {
		for _, l := range s.Lessons {
			if !completed[l.LessonID] {
				l := l
				return &l, true
			}
		}
	}

	return nil, false
}

type SectionStatus struct {
	SectionID    string     `json:"section_id"`
	QuizID       string     `json:"quiz_id"`
	Lessons      Completion `json:"lessons"`
	QuizUnlocked bool       `json:"quiz_unlocked"`
	QuizPassed   bool       `json:"quiz_passed"`
}

// Section reports the section's completion. The quiz unlocks once every
// lesson of the section is completed.
func Section(s domain.Section, completed, passed Set) SectionStatus {
	var done int
	for _, l := range s.Lessons {
		if completed[l.LessonID] {
			done++
		}
	}

	c := newCompletion(done, len(s.Lessons))
	return SectionStatus{
		SectionID:    s.SectionID,
		QuizID:       s.Quiz.QuizID,
		Lessons:      c,
		QuizUnlocked: c.Done == c.Total,
		QuizPassed:   passed[s.Quiz.QuizID],
	}
}

type LessonRef struct {
	LessonID string `json:"lesson_id"`
	Title    string `json:"title"`
	XPReward int64  `json:"xp_reward"`
}

type CourseProgress struct {
	CourseID   string          `json:"course_id"`
	Title      string          `json:"title"`
	Completion Completion      `json:"completion"`
	NextLesson *LessonRef      `json:"next_lesson,omitempty"`
	Sections   []SectionStatus `json:"sections"`
}

type Overview struct {
	Courses []CourseProgress `json:"courses"`
	Global  Completion       `json:"global"`
}

// Summarize computes per-course rows and the global completion over every course.
func Summarize(courses []domain.Course, completed, passed Set) Overview {
	o := Overview{Courses: make([]CourseProgress, 0, len(courses))}

	var done, total int
	for _, c := range courses {
		cp := CourseProgress{
			CourseID:   c.CourseID,
			Title:      c.Title,
			Completion: Course(c, completed),
			Sections:   make([]SectionStatus, 0, len(c.Sections)),
		}
		if next, ok := NextLesson(c, completed); ok {
			cp.NextLesson = &LessonRef{LessonID: next.LessonID, Title: next.Title, XPReward: next.XPReward}
		}
		for _, s := range c.Sections {
			cp.Sections = append(cp.Sections, Section(s, completed, passed))
		}

		done += cp.Completion.Done
		total += cp.Completion.Total
		o.Courses = append(o.Courses, cp)
	}

	o.Global = newCompletion(done, total)
	return o
}

// CompletedCourses returns the IDs of fully completed courses.
func CompletedCourses(courses []domain.Course, completed Set) map[string]bool {
	m := make(map[string]bool, len(courses))
	for _, c := range courses {
		m[c.CourseID] = Course(c, completed).Complete()
	}
	return m
}
