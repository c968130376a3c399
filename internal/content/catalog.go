package content

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/victornm/learnxp/internal/badge"
	"github.com/victornm/learnxp/internal/domain"
)

//go:embed default.yaml
var defaultCatalog []byte

const DefaultLessonXP = 50

type file struct {
	Courses []courseFile  `yaml:"courses" validate:"required,min=1,dive"`
	Badges  []badge.Badge `yaml:"badges" validate:"dive"`
}

type courseFile struct {
	ID          string        `yaml:"id" validate:"required"`
	Title       string        `yaml:"title" validate:"required"`
	Description string        `yaml:"description"`
	Sections    []sectionFile `yaml:"sections" validate:"required,min=1,dive"`
}

type sectionFile struct {
	ID      string       `yaml:"id" validate:"required"`
	Title   string       `yaml:"title" validate:"required"`
	Lessons []lessonFile `yaml:"lessons" validate:"required,min=1,dive"`
	Quiz    quizFile     `yaml:"quiz"`
}

type lessonFile struct {
	ID    string `yaml:"id" validate:"required"`
	Title string `yaml:"title" validate:"required"`
	XP    *int64 `yaml:"xp" validate:"omitempty,gte=0"`
}

type quizFile struct {
	ID        string         `yaml:"id" validate:"required"`
	Title     string         `yaml:"title"`
	Questions []questionFile `yaml:"questions" validate:"required,min=1,dive"`
}

type questionFile struct {
	ID      string   `yaml:"id" validate:"required"`
	Prompt  string   `yaml:"prompt" validate:"required"`
	Options []string `yaml:"options" validate:"required,min=2"`
	Answer  string   `yaml:"answer" validate:"required"`
}

type lessonRef struct {
	lesson  domain.Lesson
	section int
	course  int
}

type quizRef struct {
	section int
	course  int
}

// Catalog is the read-only content tree with lookup indexes.
type Catalog struct {
	courses []domain.Course
	badges  []badge.Badge

	courseByID map[string]int
	lessons    map[string]lessonRef
	quizzes    map[string]quizRef
}

// Load reads the catalog at path, or the embedded default when path is empty.
func Load(path string) (*Catalog, error) {
	b := defaultCatalog
	if path != "" {
		var err error
		if b, err = os.ReadFile(path); err != nil {
			return nil, fmt.Errorf("content: read %s: %w", path, err)
		}
	}

	return Parse(b)
}

func Parse(b []byte) (*Catalog, error) {
	var f file
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("content: decode: %w", err)
	}

	if err := validator.New().Struct(f); err != nil {
		return nil, fmt.Errorf("content: validate: %w", err)
	}

	return build(f)
}

func build(f file) (*Catalog, error) {
	c := &Catalog{
		badges:     f.Badges,
		courseByID: make(map[string]int),
		lessons:    make(map[string]lessonRef),
		quizzes:    make(map[string]quizRef),
	}

	seen := make(map[string]string)
	claim := func(kind, id string) error {
		if prev, ok := seen[id]; ok {
			return fmt.Errorf("content: duplicate id %q (%s and %s)", id, prev, kind)
		}
		seen[id] = kind
		return nil
	}

	for ci, cf := range f.Courses {
		if err := claim("course", cf.ID); err != nil {
			return nil, err
		}

		course := domain.Course{CourseID: cf.ID, Title: cf.Title, Description: cf.Description}
		for si, sf := range cf.Sections {
			if err := claim("section", sf.ID); err != nil {
				return nil, err
			}

			s := domain.Section{SectionID: sf.ID, Title: sf.Title}
			for _, lf := range sf.Lessons {
				if err := claim("lesson", lf.ID); err != nil {
					return nil, err
				}

				xp := int64(DefaultLessonXP)
				if lf.XP != nil {
					xp = *lf.XP
				}
				l := domain.Lesson{LessonID: lf.ID, Title: lf.Title, XPReward: xp}
				s.Lessons = append(s.Lessons, l)
				c.lessons[l.LessonID] = lessonRef{lesson: l, section: si, course: ci}
			}

			if err := claim("quiz", sf.Quiz.ID); err != nil {
				return nil, err
			}
			q, err := buildQuiz(sf.Quiz)
			if err != nil {
				return nil, err
			}
			s.Quiz = q
			c.quizzes[q.QuizID] = quizRef{section: si, course: ci}

			course.Sections = append(course.Sections, s)
		}

		c.courseByID[course.CourseID] = ci
		c.courses = append(c.courses, course)
	}

	return c, nil
}

func buildQuiz(qf quizFile) (domain.Quiz, error) {
	q := domain.Quiz{QuizID: qf.ID, Title: qf.Title}
	ids := make(map[string]bool)
	for _, qq := range qf.Questions {
		if ids[qq.ID] {
			return q, fmt.Errorf("content: quiz %s: duplicate question %q", qf.ID, qq.ID)
		}
		ids[qq.ID] = true

		if !contains(qq.Options, qq.Answer) {
			return q, fmt.Errorf("content: quiz %s: question %s: answer is not one of the options", qf.ID, qq.ID)
		}

		q.Questions = append(q.Questions, domain.Question{
			QuestionID: qq.ID,
			Prompt:     qq.Prompt,
			Options:    qq.Options,
			Answer:     qq.Answer,
		})
	}

	return q, nil
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}

func (c *Catalog) Courses() []domain.Course {
	return c.courses
}

// Badges returns the badge catalog declared in the content file, if any.
func (c *Catalog) Badges() []badge.Badge {
	return c.badges
}

func (c *Catalog) Course(id string) (domain.Course, bool) {
	i, ok := c.courseByID[id]
	if !ok {
		return domain.Course{}, false
	}
	return c.courses[i], true
}

// LessonLocation places a lesson inside its course.
type LessonLocation struct {
	Lesson       domain.Lesson
	Course       domain.Course
	SectionIndex int
}

func (l LessonLocation) Section() domain.Section {
	return l.Course.Sections[l.SectionIndex]
}

func (c *Catalog) Lesson(id string) (LessonLocation, bool) {
	ref, ok := c.lessons[id]
	if !ok {
		return LessonLocation{}, false
	}

	return LessonLocation{
		Lesson:       ref.lesson,
		Course:       c.courses[ref.course],
		SectionIndex: ref.section,
	}, true
}

type QuizLocation struct {
	Course       domain.Course
	SectionIndex int
}

func (l QuizLocation) Section() domain.Section {
	return l.Course.Sections[l.SectionIndex]
}

func (l QuizLocation) Quiz() domain.Quiz {
	return l.Section().Quiz
}

func (c *Catalog) Quiz(id string) (QuizLocation, bool) {
	ref, ok := c.quizzes[id]
	if !ok {
		return QuizLocation{}, false
	}

	return QuizLocation{Course: c.courses[ref.course], SectionIndex: ref.section}, true
}

// LessonCount returns the number of lessons across all courses.
func (c *Catalog) LessonCount() int {
	return len(c.lessons)
}
