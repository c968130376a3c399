package badge

import (
	"github.com/victornm/learnxp/internal/level"
)

type RuleKind string

const (
	RuleLessonsCompleted RuleKind = "lessons_completed"
	RuleQuizzesPassed    RuleKind = "quizzes_passed"
	RuleTotalXP          RuleKind = "total_xp"
	RuleLevel            RuleKind = "level"
	// RuleCourseCompleted holds when CourseID is fully completed, or any course when CourseID is empty.
	RuleCourseCompleted RuleKind = "course_completed"
)

type Rule struct {
	Kind      RuleKind `yaml:"kind" validate:"required,oneof=lessons_completed quizzes_passed total_xp level course_completed"`
	Threshold int64    `yaml:"threshold" validate:"gte=0"`
	CourseID  string   `yaml:"course_id"`
}

type Badge struct {
	ID          string `yaml:"id" json:"id" validate:"required"`
	Name        string `yaml:"name" json:"name" validate:"required"`
	Description string `yaml:"description" json:"description"`
	Icon        string `yaml:"icon" json:"icon"`
	Rule        Rule   `yaml:"rule" json:"-"`
}

// Stats is the aggregate view of a user that badge rules are evaluated against.
type Stats struct {
	LessonsCompleted int
	QuizzesPassed    int
	TotalXP          int64
	CompletedCourses map[string]bool
}

func (r Rule) satisfied(s Stats) bool {
	switch r.Kind {
	case RuleLessonsCompleted:
		return int64(s.LessonsCompleted) >= r.Threshold
	case RuleQuizzesPassed:
		return int64(s.QuizzesPassed) >= r.Threshold
	case RuleTotalXP:
		return s.TotalXP >= r.Threshold
	case RuleLevel:
		return int64(level.FromXP(s.TotalXP)) >= r.Threshold
	case RuleCourseCompleted:
		if r.CourseID != "" {
			return s.CompletedCourses[r.CourseID]
		}
		for _, done := range s.CompletedCourses {
			if done {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// DefaultCatalog is used when the content catalog declares no badges.
func DefaultCatalog() []Badge {
	return []Badge{
		{ID: "first-steps", Name: "First Steps", Description: "Complete your first lesson", Icon: "footprints", Rule: Rule{Kind: RuleLessonsCompleted, Threshold: 1}},
		{ID: "bookworm", Name: "Bookworm", Description: "Complete 5 lessons", Icon: "book-open", Rule: Rule{Kind: RuleLessonsCompleted, Threshold: 5}},
		{ID: "marathon", Name: "Marathon", Description: "Complete 25 lessons", Icon: "medal", Rule: Rule{Kind: RuleLessonsCompleted, Threshold: 25}},
		{ID: "quiz-whiz", Name: "Quiz Whiz", Description: "Pass your first quiz", Icon: "check-circle", Rule: Rule{Kind: RuleQuizzesPassed, Threshold: 1}},
		{ID: "triple-threat", Name: "Triple Threat", Description: "Pass 3 quizzes", Icon: "award", Rule: Rule{Kind: RuleQuizzesPassed, Threshold: 3}},
		{ID: "xp-1000", Name: "Rising Star", Description: "Earn 1,000 XP", Icon: "star", Rule: Rule{Kind: RuleTotalXP, Threshold: 1000}},
		{ID: "xp-5000", Name: "Powerhouse", Description: "Earn 5,000 XP", Icon: "zap", Rule: Rule{Kind: RuleTotalXP, Threshold: 5000}},
		{ID: "level-5", Name: "High Five", Description: "Reach level 5", Icon: "trending-up", Rule: Rule{Kind: RuleLevel, Threshold: 5}},
		{ID: "graduate", Name: "Graduate", Description: "Complete a whole course", Icon: "graduation-cap", Rule: Rule{Kind: RuleCourseCompleted}},
	}
}
