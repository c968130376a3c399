package memory_test

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/learnxp/internal/domain"
	"github.com/victornm/learnxp/internal/errors"
	"github.com/victornm/learnxp/internal/store"
	"github.com/victornm/learnxp/internal/store/memory"
)

var now = time.Date(2024, 9, 1, 10, 0, 0, 0, time.UTC)

func TestStore_InTx_Rollback(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	boom := stderrors.New("boom")
	err := s.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		require.NoError(t, tx.EnsureUser(ctx, "u1", "Ada", now))
		ok, err := tx.MarkLessonCompleted(ctx, "u1", "l1", now)
		require.NoError(t, err)
		require.True(t, ok)
		_, err = tx.IncrementUserXP(ctx, "u1", 50)
		require.NoError(t, err)
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = s.GetUser(ctx, "u1")
	assert.True(t, errors.Is(err, errors.CodeNotFound), "user should not exist after rollback")

	c, err := s.GetCompletion(ctx, "u1", "l1")
	require.NoError(t, err)
	assert.Nil(t, c, "completion should not exist after rollback")
}

func TestStore_MarkLessonCompleted_OnlyOnce(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	var first, second bool
	require.NoError(t, s.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := tx.EnsureUser(ctx, "u1", "", now); err != nil {
			return err
		}
		var err error
		first, err = tx.MarkLessonCompleted(ctx, "u1", "l1", now)
		return err
	}))
	require.NoError(t, s.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		second, err = tx.MarkLessonCompleted(ctx, "u1", "l1", now.Add(time.Hour))
		return err
	}))

	assert.True(t, first)
	assert.False(t, second)

	c, err := s.GetCompletion(ctx, "u1", "l1")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, now, c.CompleteTime, "completion time should not be overwritten")
}

func TestStore_ListUsersByXPDescending(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	for id, xp := range map[string]int64{"c": 500, "a": 500, "b": 300, "d": 900} {
		require.NoError(t, s.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
			if err := tx.EnsureUser(ctx, id, id, now); err != nil {
				return err
			}
			_, err := tx.IncrementUserXP(ctx, id, xp)
			return err
		}))
	}

	users, err := s.ListUsersByXPDescending(ctx, 3)
	require.NoError(t, err)

	ids := make([]string, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.UserID)
	}
	assert.Equal(t, []string{"d", "a", "c"}, ids)

	n, err := s.CountUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestStore_AwardBadges(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	var got [][]string
	for i := 0; i < 2; i++ {
		require.NoError(t, s.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
			if err := tx.EnsureUser(ctx, "u1", "", now); err != nil {
				return err
			}
			ids, err := tx.AwardBadges(ctx, "u1", []string{"first-steps", "quiz-whiz"}, now)
			got = append(got, ids)
			return err
		}))
	}

	assert.Equal(t, []string{"first-steps", "quiz-whiz"}, got[0])
	assert.Empty(t, got[1])

	badges, err := s.ListUserBadges(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []domain.UserBadge{
		{UserID: "u1", BadgeID: "first-steps", UnlockTime: now},
		{UserID: "u1", BadgeID: "quiz-whiz", UnlockTime: now},
	}, badges)
}
