package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/victornm/learnxp/internal/domain"
	"github.com/victornm/learnxp/internal/errors"
	"github.com/victornm/learnxp/internal/progress"
)

type (
	CourseSummary struct {
		CourseID    string               `json:"course_id"`
		Title       string               `json:"title"`
		Description string               `json:"description"`
		Completion  *progress.Completion `json:"completion,omitempty"`
	}

	Lesson struct {
		LessonID  string `json:"lesson_id"`
		Title     string `json:"title"`
		XPReward  int64  `json:"xp_reward"`
		Completed bool   `json:"completed"`
	}

	Question struct {
		QuestionID string   `json:"question_id"`
		Prompt     string   `json:"prompt"`
		Options    []string `json:"options"`
	}

	Quiz struct {
		QuizID    string     `json:"quiz_id"`
		Title     string     `json:"title"`
		Questions []Question `json:"questions"`
		Unlocked  bool       `json:"unlocked"`
		Passed    bool       `json:"passed"`
	}

	Section struct {
		SectionID string   `json:"section_id"`
		Title     string   `json:"title"`
		Lessons   []Lesson `json:"lessons"`
		Quiz      Quiz     `json:"quiz"`
	}

	CourseResponse struct {
		CourseSummary
		Sections []Section `json:"sections"`
	}
)

func (a *API) ListCourses(c *gin.Context) {
	completed, _, err := a.progress(c)
	if err != nil {
		a.renderError(c, err)
		return
	}

	courses := a.catalog.Courses()
	resp := make([]CourseSummary, 0, len(courses))
	for _, co := range courses {
		resp = append(resp, newCourseSummary(co, completed))
	}

	c.JSON(http.StatusOK, gin.H{"courses": resp})
}

// GetCourse returns the course tree. Quiz answers are never included.
func (a *API) GetCourse(c *gin.Context) {
	co, ok := a.catalog.Course(c.Param("id"))
	if !ok {
		a.renderError(c, errors.NotFound("course not found: id=%s", c.Param("id")))
		return
	}

	completed, passed, err := a.progress(c)
	if err != nil {
		a.renderError(c, err)
		return
	}

	resp := CourseResponse{
		CourseSummary: newCourseSummary(co, completed),
		Sections:      make([]Section, 0, len(co.Sections)),
	}

	for _, s := range co.Sections {
		st := progress.Section(s, completed, passed)

		sec := Section{
			SectionID: s.SectionID,
			Title:     s.Title,
			Lessons:   make([]Lesson, 0, len(s.Lessons)),
			Quiz: Quiz{
				QuizID:    s.Quiz.QuizID,
				Title:     s.Quiz.Title,
				Questions: make([]Question, 0, len(s.Quiz.Questions)),
				Unlocked:  st.QuizUnlocked,
				Passed:    st.QuizPassed,
			},
		}
		for _, l := range s.Lessons {
			sec.Lessons = append(sec.Lessons, Lesson{
				LessonID:  l.LessonID,
				Title:     l.Title,
				XPReward:  l.XPReward,
				Completed: completed[l.LessonID],
			})
		}
		for _, q := range s.Quiz.Questions {
			sec.Quiz.Questions = append(sec.Quiz.Questions, Question{
				QuestionID: q.QuestionID,
				Prompt:     q.Prompt,
				Options:    q.Options,
			})
		}

		resp.Sections = append(resp.Sections, sec)
	}

	c.JSON(http.StatusOK, resp)
}

// progress loads the caller's sets, or empty sets for anonymous callers.
func (a *API) progress(c *gin.Context) (completed, passed progress.Set, err error) {
	id := identity(c)
	if id.UserID == "" {
		return progress.Set{}, progress.Set{}, nil
	}

	return a.ps.Progress(c.Request.Context(), id.UserID)
}

func newCourseSummary(co domain.Course, completed progress.Set) CourseSummary {
	s := CourseSummary{
		CourseID:    co.CourseID,
		Title:       co.Title,
		Description: co.Description,
	}
	if len(completed) > 0 {
		cc := progress.Course(co, completed)
		s.Completion = &cc
	}
	return s
}
