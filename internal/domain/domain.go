package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// User is a learner. TotalXP only grows; Level is a cache of level.FromXP(TotalXP).
type User struct {
	UserID      string
	DisplayName string
	TotalXP     int64
	Level       int
	CreateTime  time.Time
}

// LedgerEntry is an immutable record of one XP grant.
type LedgerEntry struct {
	EntryID    string
	UserID     string
	Amount     int64
	Reason     string
	CreateTime time.Time
}

const (
	ReasonLessonCompleted = "Completed lesson"
	ReasonQuizPassed      = "Passed quiz"
)

// LessonCompletion marks that a user finished a lesson. At most one per (user, lesson).
type LessonCompletion struct {
	UserID       string
	LessonID     string
	Completed    bool
	CompleteTime time.Time
}

// QuizAttempt is one graded submission. Every submission is kept.
type QuizAttempt struct {
	AttemptID  string
	UserID     string
	QuizID     string
	Score      decimal.Decimal
	Passed     bool
	XPEarned   int64
	SubmitTime time.Time
}

// UserBadge records when a derived badge was first observed for a user.
type UserBadge struct {
	UserID     string
	BadgeID    string
	UnlockTime time.Time
}

// Course is read-only content: sections in declared order.
type Course struct {
	CourseID    string
	Title       string
	Description string
	Sections    []Section
}

type Section struct {
	SectionID string
	Title     string
	Lessons   []Lesson
	Quiz      Quiz
}

type Lesson struct {
	LessonID string
	Title    string
	XPReward int64
}

type Quiz struct {
	QuizID    string
	Title     string
	Questions []Question
}

type Question struct {
	QuestionID string
	Prompt     string
	Options    []string
	Answer     string
}

// Standing is the raw input of the leaderboard ranker.
type Standing struct {
	UserID      string
	DisplayName string
	TotalXP     int64
}

// Leaderboard is a list of users ordered by total XP, descending.
type Leaderboard struct {
	Entries []LeaderboardEntry
}

type LeaderboardEntry struct {
	Rank        int
	Medal       string
	UserID      string
	DisplayName string
	TotalXP     int64
	Level       int
	Title       string
}

type UserRank struct {
	UserID     string
	Rank       int
	TotalXP    int64
	TotalUsers int
	Percentile float64
}
