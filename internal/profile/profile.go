package profile

import (
	"context"
	"fmt"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/victornm/learnxp/internal/badge"
	"github.com/victornm/learnxp/internal/content"
	"github.com/victornm/learnxp/internal/domain"
	"github.com/victornm/learnxp/internal/errors"
	"github.com/victornm/learnxp/internal/level"
	"github.com/victornm/learnxp/internal/progress"
	"github.com/victornm/learnxp/internal/store"
)

const recentActivity = 10

type Config struct {
	Store   store.Reader
	Catalog *content.Catalog
	Badges  *badge.Evaluator
}

type Service struct {
	store   store.Reader
	catalog *content.Catalog
	badges  *badge.Evaluator
}

func NewService(c Config) *Service {
	return &Service{
		store:   c.Store,
		catalog: c.Catalog,
		badges:  c.Badges,
	}
}

type Profile struct {
	User     domain.User
	Level    level.Progress
	Title    string
	Courses  progress.Overview
	Quizzes  progress.QuizStats
	Badges   []EarnedBadge
	// Activity holds the latest ledger entries, newest first.
	Activity []domain.LedgerEntry
}

type EarnedBadge struct {
	badge.Badge
	// UnlockTime is nil until the unlock has been recorded.
	UnlockTime *time.Time
}

// GetProfile assembles everything the learner dashboard shows. A user with no
// recorded activity gets an empty level 1 profile.
func (s *Service) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	if userID == "" {
		return nil, errors.Unauthenticated("sign in to see your profile")
	}

	var (
		user        *domain.User
		completions []domain.LessonCompletion
		attempts    []domain.QuizAttempt
		unlocked    []domain.UserBadge
		ledger      []domain.LedgerEntry
	)

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		u, err := s.store.GetUser(ctx, userID)
		if errors.Is(err, errors.CodeNotFound) {
			user = &domain.User{UserID: userID, Level: 1}
			return nil
		}
		if err != nil {
			return fmt.Errorf("get user: %w", err)
		}
		user = u
		return nil
	})
	eg.Go(func() (err error) {
		completions, err = s.store.ListCompletions(ctx, userID)
		return err
	})
	eg.Go(func() (err error) {
		attempts, err = s.store.ListQuizAttempts(ctx, userID)
		return err
	})
	eg.Go(func() (err error) {
		unlocked, err = s.store.ListUserBadges(ctx, userID)
		return err
	})
	eg.Go(func() (err error) {
		ledger, err = s.store.ListLedger(ctx, userID)
		return err
	})
	if err := eg.Wait(); err != nil {
		return nil, errors.Convert(err)
	}

	completed := progress.CompletedLessons(completions)
	passed := progress.PassedQuizzes(attempts)
	courses := s.catalog.Courses()

	stats := Stats(user.TotalXP, completed, passed, courses)

	at := make(map[string]time.Time, len(unlocked))
	for _, b := range unlocked {
		at[b.BadgeID] = b.UnlockTime
	}

	earned := make([]EarnedBadge, 0)
	for _, id := range s.badges.Evaluate(stats) {
		b, _ := s.badges.Badge(id)
		eb := EarnedBadge{Badge: b}
		if t, ok := at[id]; ok {
			eb.UnlockTime = &t
		}
		earned = append(earned, eb)
	}

	activity := slices.Clone(ledger)
	slices.Reverse(activity)
	if len(activity) > recentActivity {
		activity = activity[:recentActivity]
	}

	lp := level.ProgressInLevel(user.TotalXP)
	return &Profile{
		User:     *user,
		Level:    lp,
		Title:    level.Title(lp.Level),
		Courses:  progress.Summarize(courses, completed, passed),
		Quizzes:  progress.Quizzes(attempts),
		Badges:   earned,
		Activity: activity,
	}, nil
}

// Stats aggregates what badge rules look at.
func Stats(totalXP int64, completed, passed progress.Set, courses []domain.Course) badge.Stats {
	return badge.Stats{
		LessonsCompleted: len(completed),
		QuizzesPassed:    len(passed),
		TotalXP:          totalXP,
		CompletedCourses: progress.CompletedCourses(courses, completed),
	}
}

// Progress returns the user's completed lessons and passed quizzes.
func (s *Service) Progress(ctx context.Context, userID string) (completed, passed progress.Set, err error) {
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		c, err := s.store.ListCompletions(ctx, userID)
		completed = progress.CompletedLessons(c)
		return err
	})
	eg.Go(func() error {
		a, err := s.store.ListQuizAttempts(ctx, userID)
		passed = progress.PassedQuizzes(a)
		return err
	})
	if err := eg.Wait(); err != nil {
		return nil, nil, errors.Convert(err)
	}

	return completed, passed, nil
}
