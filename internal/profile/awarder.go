package profile

import (
	"context"
	"fmt"
	"time"

	"github.com/victornm/learnxp/internal/badge"
	"github.com/victornm/learnxp/internal/content"
	"github.com/victornm/learnxp/internal/domain"
	"github.com/victornm/learnxp/internal/event"
	"github.com/victornm/learnxp/internal/progress"
	"github.com/victornm/learnxp/internal/store"
	"github.com/victornm/learnxp/internal/telemetry"
)

type AwarderConfig struct {
	Store    store.Store
	Catalog  *content.Catalog
	Badges   *badge.Evaluator
	EventBus *event.Bus
	Now      func() time.Time
}

// Awarder records badge unlocks after XP is granted. Badges are derived from
// the user's records; the stored row only keeps the first time it was seen.
type Awarder struct {
	store   store.Store
	catalog *content.Catalog
	badges  *badge.Evaluator
	eb      *event.Bus
	now     func() time.Time
}

func NewAwarder(c AwarderConfig) *Awarder {
	now := c.Now
	if now == nil {
		now = time.Now
	}

	a := &Awarder{
		store:   c.Store,
		catalog: c.Catalog,
		badges:  c.Badges,
		eb:      c.EventBus,
		now:     now,
	}

	a.eb.Subscribe(domain.EventNameXPAwarded, func(ctx context.Context, e event.Event) error {
		_, err := a.Award(ctx, e.(domain.EventXPAwarded).UserID)
		return err
	})

	return a
}

// Award stores every satisfied badge the user does not have yet and returns
// the ones it stored. Running it again is a no-op.
func (a *Awarder) Award(ctx context.Context, userID string) ([]string, error) {
	u, err := a.store.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	completions, err := a.store.ListCompletions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list completions: %w", err)
	}

	attempts, err := a.store.ListQuizAttempts(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list quiz attempts: %w", err)
	}

	stored, err := a.store.ListUserBadges(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list user badges: %w", err)
	}

	earned := make(map[string]bool, len(stored))
	for _, b := range stored {
		earned[b.BadgeID] = true
	}

	stats := Stats(u.TotalXP, progress.CompletedLessons(completions), progress.PassedQuizzes(attempts), a.catalog.Courses())
	unlocked := a.badges.NewlyUnlocked(stats, earned)
	if len(unlocked) == 0 {
		return nil, nil
	}

	// A concurrent run may store some of them first, AwardBadges skips those.
	var inserted []string
	err = a.store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		inserted, err = tx.AwardBadges(ctx, userID, unlocked, a.now())
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("award badges: %w", err)
	}

	if len(inserted) > 0 {
		telemetry.RecordBadgesAwarded(inserted)
		a.eb.Publish(ctx, domain.EventBadgesUnlocked{
			UserID:   userID,
			BadgeIDs: inserted,
		})
	}

	return inserted, nil
}
