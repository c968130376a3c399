package api

import (
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/victornm/learnxp/internal/domain"
)

const maxConcurrent = 100

type (
	Notification struct {
		Event string `json:"event"`
		Data  any    `json:"data"`
	}

	LevelUp struct {
		Level         int    `json:"level"`
		PreviousLevel int    `json:"previous_level"`
		Title         string `json:"title"`
	}

	BadgesUnlocked struct {
		Badges []Badge `json:"badges"`
	}
)

// PublishLeaderboardUpdated pushes the new board to every user on it.
func (a *API) PublishLeaderboardUpdated(ctx context.Context, e domain.EventLeaderboardUpdated) error {
	l := e.Leaderboard

	data := Leaderboard{
		Entries: make([]LeaderboardEntry, 0, len(l.Entries)),
	}

	for _, entry := range l.Entries {
		data.Entries = append(data.Entries, LeaderboardEntry{
			Rank:        entry.Rank,
			Medal:       entry.Medal,
			UserID:      entry.UserID,
			DisplayName: entry.DisplayName,
			TotalXP:     entry.TotalXP,
			Level:       entry.Level,
			Title:       entry.Title,
		})
	}

	var eg errgroup.Group
	eg.SetLimit(maxConcurrent)

	for _, entry := range data.Entries {
		eg.Go(func() error {
			return a.publishNotification(ctx, entry.UserID, e.Name(), data)
		})
	}

	return eg.Wait()
}

func (a *API) PublishLevelUp(ctx context.Context, e domain.EventLevelUp) error {
	return a.publishNotification(ctx, e.UserID, e.Name(), LevelUp{
		Level:         e.Level,
		PreviousLevel: e.PreviousLevel,
		Title:         e.Title,
	})
}

func (a *API) PublishBadgesUnlocked(ctx context.Context, e domain.EventBadgesUnlocked) error {
	data := BadgesUnlocked{Badges: make([]Badge, 0, len(e.BadgeIDs))}
	for _, id := range e.BadgeIDs {
		b := Badge{ID: id}
		if cb, ok := a.badge(id); ok {
			b.Name, b.Description, b.Icon = cb.Name, cb.Description, cb.Icon
		}
		data.Badges = append(data.Badges, b)
	}

	return a.publishNotification(ctx, e.UserID, e.Name(), data)
}

func (a *API) publishNotification(ctx context.Context, user, event string, data any) error {
	n := Notification{
		Event: event,
		Data:  data,
	}

	b, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("pubsub: marshal %s: %v", event, err)
	}

	return a.redis.Publish(ctx, fmt.Sprintf("%s:user:%s", a.prefix, user), b).Err()
}
