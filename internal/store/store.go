// Package store declares the persistence contract shared by the postgres and
// memory implementations.
package store

import (
	"context"
	"time"

	"github.com/victornm/learnxp/internal/domain"
)

// Tx is the write side. Every call made through one Tx commits or rolls back together.
type Tx interface {
	// EnsureUser creates the user row on first sight and refreshes a non-empty display name.
	EnsureUser(ctx context.Context, userID, displayName string, now time.Time) error
	GetUser(ctx context.Context, userID string) (*domain.User, error)
	GetCompletion(ctx context.Context, userID, lessonID string) (*domain.LessonCompletion, error)
	// MarkLessonCompleted transitions (user, lesson) to completed. It reports
	// false, without writing, when the lesson was already completed.
	MarkLessonCompleted(ctx context.Context, userID, lessonID string, at time.Time) (bool, error)
	// IncrementUserXP adds amount to the user's total and returns the updated row.
	IncrementUserXP(ctx context.Context, userID string, amount int64) (*domain.User, error)
	AppendLedgerEntry(ctx context.Context, e domain.LedgerEntry) error
	SetUserLevel(ctx context.Context, userID string, level int) error
	InsertQuizAttempt(ctx context.Context, a domain.QuizAttempt) error
	// AwardBadges stores the badges not yet stored for the user and returns those it inserted.
	AwardBadges(ctx context.Context, userID string, badgeIDs []string, at time.Time) ([]string, error)
}

// Reader is the read side.
type Reader interface {
	GetUser(ctx context.Context, userID string) (*domain.User, error)
	GetUsers(ctx context.Context, userIDs []string) ([]domain.User, error)
	GetCompletion(ctx context.Context, userID, lessonID string) (*domain.LessonCompletion, error)
	ListCompletions(ctx context.Context, userID string) ([]domain.LessonCompletion, error)
	ListQuizAttempts(ctx context.Context, userID string) ([]domain.QuizAttempt, error)
	ListLedger(ctx context.Context, userID string) ([]domain.LedgerEntry, error)
	ListUserBadges(ctx context.Context, userID string) ([]domain.UserBadge, error)
	// ListUsersByXPDescending orders by total XP desc, then user ID asc. A
	// limit <= 0 returns every user.
	ListUsersByXPDescending(ctx context.Context, limit int) ([]domain.User, error)
	CountUsers(ctx context.Context) (int, error)
}

type Store interface {
	Reader
	// InTx runs fn in a transaction. An error from fn rolls everything back.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
