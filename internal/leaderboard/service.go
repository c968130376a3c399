package leaderboard

import (
	"context"
	stderrors "errors"
	"fmt"
	"math"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/victornm/learnxp/internal/domain"
	"github.com/victornm/learnxp/internal/errors"
	"github.com/victornm/learnxp/internal/event"
	"github.com/victornm/learnxp/internal/store"
)

const (
	publishInterval = 200 * time.Millisecond

	DefaultLimit = 10
	MaxLimit     = 100
)

type Config struct {
	EventBus *event.Bus
	Store    store.Reader
	Redis    redis.UniversalClient
	Prefix   string
}

// Service keeps a sorted set of user totals in redis. Scores are stored negated
// so an ascending range yields the highest totals first, and redis breaks ties
// between equal scores by member, which is the user ID.
type Service struct {
	eb     *event.Bus
	store  store.Reader
	redis  redis.UniversalClient
	prefix string
}

func NewService(c Config) *Service {
	s := &Service{
		eb:     c.EventBus,
		store:  c.Store,
		redis:  c.Redis,
		prefix: c.Prefix,
	}

	s.eb.Subscribe(domain.EventNameXPAwarded, func(ctx context.Context, e event.Event) error {
		return s.UpdateStanding(ctx, e.(domain.EventXPAwarded))
	})

	return s
}

type GetLeaderboardRequest struct {
	// Limit defaults to DefaultLimit and may not exceed MaxLimit.
	Limit int
}

// GetLeaderboard returns the top users by total XP.
func (s *Service) GetLeaderboard(ctx context.Context, req GetLeaderboardRequest) (*domain.Leaderboard, error) {
	limit := req.Limit
	switch {
	case limit < 0 || limit > MaxLimit:
		return nil, errors.InvalidArgument("limit must be between 1 and %d: %d", MaxLimit, limit)
	case limit == 0:
		limit = DefaultLimit
	}

	if err := s.warm(ctx); err != nil {
		return nil, errors.Unavailable(err)
	}

	res, err := s.redis.ZRangeWithScores(ctx, s.getLeaderboardKey(), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, errors.Unavailable(fmt.Errorf("get leaderboard: %w", err))
	}

	ids := make([]string, 0, len(res))
	for _, z := range res {
		ids = append(ids, z.Member.(string))
	}

	users, err := s.store.GetUsers(ctx, ids)
	if err != nil {
		return nil, errors.Internal(fmt.Errorf("get users: %w", err))
	}

	names := make(map[string]string, len(users))
	for _, u := range users {
		names[u.UserID] = u.DisplayName
	}

	standings := make([]domain.Standing, 0, len(res))
	for _, z := range res {
		id := z.Member.(string)
		standings = append(standings, domain.Standing{
			UserID:      id,
			DisplayName: names[id],
			TotalXP:     int64(-z.Score),
		})
	}

	return &domain.Leaderboard{Entries: Rank(standings)}, nil
}

// GetUserRank returns the user's position among all ranked users.
func (s *Service) GetUserRank(ctx context.Context, userID string) (*domain.UserRank, error) {
	if userID == "" {
		return nil, errors.Unauthenticated("sign in to see your rank")
	}

	if err := s.warm(ctx); err != nil {
		return nil, errors.Unavailable(err)
	}

	key := s.getLeaderboardKey()
	rank, err := s.redis.ZRank(ctx, key, userID).Result()
	if stderrors.Is(err, redis.Nil) {
		return nil, errors.NotFound("user has no standing yet: id=%s", userID)
	}
	if err != nil {
		return nil, errors.Unavailable(fmt.Errorf("get rank: %w", err))
	}

	score, err := s.redis.ZScore(ctx, key, userID).Result()
	if err != nil {
		return nil, errors.Unavailable(fmt.Errorf("get score: %w", err))
	}

	total, err := s.redis.ZCard(ctx, key).Result()
	if err != nil {
		return nil, errors.Unavailable(fmt.Errorf("count standings: %w", err))
	}

	r := int(rank) + 1
	return &domain.UserRank{
		UserID:     userID,
		Rank:       r,
		TotalXP:    int64(-score),
		TotalUsers: int(total),
		// Top X percent.
		Percentile: math.Round(float64(r)/float64(total)*1000) / 10,
	}, nil
}

// UpdateStanding records the user's new total. Totals only grow, so a stale
// event arriving late never overwrites a higher total.
func (s *Service) UpdateStanding(ctx context.Context, e domain.EventXPAwarded) error {
	if err := s.redis.ZAddLT(ctx, s.getLeaderboardKey(), redis.Z{
		Score:  -float64(e.TotalXP),
		Member: e.UserID,
	}).Err(); err != nil {
		return fmt.Errorf("update standing: %w", err)
	}

	return s.schedulePublishLeaderboard(ctx)
}

// warm loads every user's total from the store the first time the sorted set
// is read after redis lost it, and again whenever the store holds users the
// set is missing. Users created without an XP grant, such as by a failed first
// quiz, never produce an xp.awarded event.
func (s *Service) warm(ctx context.Context) error {
	n, err := s.redis.Exists(ctx, s.getWarmKey()).Result()
	if err != nil {
		return fmt.Errorf("check warm: %w", err)
	}
	if n > 0 {
		ranked, err := s.redis.ZCard(ctx, s.getLeaderboardKey()).Result()
		if err != nil {
			return fmt.Errorf("count standings: %w", err)
		}

		users, err := s.store.CountUsers(ctx)
		if err != nil {
			return fmt.Errorf("count users: %w", err)
		}

		if ranked >= int64(users) {
			return nil
		}
	}

	users, err := s.store.ListUsersByXPDescending(ctx, 0)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}

	pipe := s.redis.TxPipeline()
	for _, u := range users {
		pipe.ZAddLT(ctx, s.getLeaderboardKey(), redis.Z{
			Score:  -float64(u.TotalXP),
			Member: u.UserID,
		})
	}
	pipe.Set(ctx, s.getWarmKey(), time.Now().UnixMilli(), 0)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("warm leaderboard: %w", err)
	}
	return nil
}

// schedulePublishLeaderboard publishes at most one leaderboard.updated per
// interval across every instance sharing the redis.
func (s *Service) schedulePublishLeaderboard(ctx context.Context) error {
	ok, err := s.redis.SetNX(ctx, s.getLeaderboardTimeKey(), time.Now().UnixMilli(), publishInterval).Result()
	if err != nil {
		return fmt.Errorf("setnx: %w", err)
	}

	if !ok {
		return nil
	}

	l, err := s.GetLeaderboard(ctx, GetLeaderboardRequest{})
	if err != nil {
		return fmt.Errorf("get leaderboard failed: %w", err)
	}

	s.eb.Publish(ctx, domain.EventLeaderboardUpdated{
		Leaderboard: *l,
	})

	return nil
}

func (s *Service) getLeaderboardKey() string {
	return fmt.Sprintf("%s:xp", s.prefix)
}

func (s *Service) getWarmKey() string {
	return fmt.Sprintf("%s:xp:warm", s.prefix)
}

func (s *Service) getLeaderboardTimeKey() string {
	return fmt.Sprintf("%s:xp:time", s.prefix)
}
