package award_test

import (
	"context"
	stderrors "errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/victornm/learnxp/internal/award"
	"github.com/victornm/learnxp/internal/content"
	"github.com/victornm/learnxp/internal/domain"
	"github.com/victornm/learnxp/internal/errors"
	"github.com/victornm/learnxp/internal/event"
	"github.com/victornm/learnxp/internal/store"
	"github.com/victornm/learnxp/internal/store/memory"
)

var now = time.Date(2024, 9, 1, 10, 0, 0, 0, time.UTC)

type fixture struct {
	svc   *award.Service
	store store.Store
	bus   *event.Bus

	mu     sync.Mutex
	events []event.Event
}

func newFixture(t *testing.T, s store.Store, enforce bool) *fixture {
	t.Helper()

	catalog, err := content.Load("")
	require.NoError(t, err)

	f := &fixture{store: s, bus: event.NewBus()}
	record := func(_ context.Context, e event.Event) error {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.events = append(f.events, e)
		return nil
	}
	f.bus.Subscribe(domain.EventNameXPAwarded, record)
	f.bus.Subscribe(domain.EventNameLevelUp, record)

	f.svc = award.NewService(award.Config{
		Store:                s,
		Catalog:              catalog,
		EventBus:             f.bus,
		EnforcePrerequisites: enforce,
		Now:                  func() time.Time { return now },
	})
	return f
}

// published waits for in-flight handlers and returns the recorded events.
func (f *fixture) published() []event.Event {
	f.bus.Stop()
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.events
}

func xp(v int64) *int64 { return &v }

func TestService_CompleteLesson(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, memory.New(), true)

	res, err := f.svc.CompleteLesson(ctx, award.CompleteLessonRequest{UserID: "u1", DisplayName: "Ada", LessonID: "sql-l1"})
	require.NoError(t, err)
	assert.Equal(t, &award.Result{UserID: "u1", XPAwarded: 50, TotalXP: 50, Level: 1, PreviousLevel: 1}, res)

	again, err := f.svc.CompleteLesson(ctx, award.CompleteLessonRequest{UserID: "u1", LessonID: "sql-l1"})
	require.NoError(t, err)
	assert.True(t, again.AlreadyCompleted)
	assert.Equal(t, int64(0), again.XPAwarded)
	assert.Equal(t, int64(50), again.TotalXP)

	ledger, err := f.store.ListLedger(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, ledger, 1)
	assert.Equal(t, int64(50), ledger[0].Amount)
	assert.Equal(t, domain.ReasonLessonCompleted, ledger[0].Reason)

	u, err := f.store.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Ada", u.DisplayName)
	assert.Equal(t, int64(50), u.TotalXP)
	assert.Equal(t, 1, u.Level)

	events := f.published()
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventXPAwarded{
		UserID:        "u1",
		Amount:        50,
		Reason:        domain.ReasonLessonCompleted,
		TotalXP:       50,
		Level:         1,
		PreviousLevel: 1,
	}, events[0])
}

func TestService_CompleteLesson_Validation(t *testing.T) {
	tests := map[string]struct {
		req  award.CompleteLessonRequest
		code errors.Code
	}{
		"no user": {
			req:  award.CompleteLessonRequest{LessonID: "sql-l1"},
			code: errors.CodeUnauthenticated,
		},
		"no lesson": {
			req:  award.CompleteLessonRequest{UserID: "u1"},
			code: errors.CodeInvalidArgument,
		},
		"unknown lesson": {
			req:  award.CompleteLessonRequest{UserID: "u1", LessonID: "nope"},
			code: errors.CodeNotFound,
		},
		"negative xp": {
			req:  award.CompleteLessonRequest{UserID: "u1", LessonID: "sql-l1", XPReward: xp(-1)},
			code: errors.CodeInvalidArgument,
		},
		"locked section": {
			req:  award.CompleteLessonRequest{UserID: "u1", LessonID: "sql-l4"},
			code: errors.CodeFailedPrecondition,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, memory.New(), true)

			_, err := f.svc.CompleteLesson(context.Background(), tc.req)
			assert.True(t, errors.Is(err, tc.code), "got %v", err)

			n, err := f.store.CountUsers(context.Background())
			require.NoError(t, err)
			assert.Zero(t, n, "a rejected request must not create the user")
		})
	}
}

func TestService_GradeQuiz_PassLevelsUp(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, memory.New(), false)

	_, err := f.svc.CompleteLesson(ctx, award.CompleteLessonRequest{UserID: "u1", LessonID: "sql-l1", XPReward: xp(99)})
	require.NoError(t, err)

	res, err := f.svc.GradeQuiz(ctx, award.GradeQuizRequest{
		UserID:   "u1",
		QuizID:   "sql-q1",
		Score:    decimal.NewFromInt(80),
		Passed:   true,
		XPEarned: xp(200),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(200), res.XPAwarded)
	assert.Equal(t, int64(299), res.TotalXP)
	assert.Equal(t, 2, res.Level)
	assert.Equal(t, 1, res.PreviousLevel)
	assert.True(t, res.LeveledUp())
	assert.True(t, res.Attempt.Passed)
	assert.True(t, res.Attempt.Score.Equal(decimal.NewFromInt(80)))

	u, err := f.store.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, u.Level)

	events := f.published()
	assert.Contains(t, events, event.Event(domain.EventLevelUp{
		UserID:        "u1",
		Level:         2,
		PreviousLevel: 1,
		Title:         "Apprentice",
	}))
}

func TestService_GradeQuiz_FailGrantsNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, memory.New(), false)

	res, err := f.svc.GradeQuiz(ctx, award.GradeQuizRequest{
		UserID:   "u1",
		QuizID:   "sql-q1",
		Score:    decimal.NewFromInt(40),
		Passed:   false,
		XPEarned: xp(20),
	})
	require.NoError(t, err)
	assert.Zero(t, res.XPAwarded)
	assert.Zero(t, res.TotalXP)
	assert.Zero(t, res.Attempt.XPEarned)

	attempts, err := f.store.ListQuizAttempts(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, attempts, 1)

	ledger, err := f.store.ListLedger(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, ledger)

	assert.Empty(t, f.published())
}

func TestService_GradeQuiz_Reward(t *testing.T) {
	tests := map[string]struct {
		xp     *int64
		expect int64
	}{
		"omitted uses the default": {xp: nil, expect: award.DefaultQuizXP},
		"explicit zero":            {xp: xp(0), expect: 0},
		"explicit amount":          {xp: xp(120), expect: 120},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, memory.New(), false)

			res, err := f.svc.GradeQuiz(context.Background(), award.GradeQuizRequest{
				UserID:   "u1",
				QuizID:   "sql-q1",
				Score:    decimal.NewFromInt(90),
				Passed:   true,
				XPEarned: tc.xp,
			})
			require.NoError(t, err)
			assert.Equal(t, tc.expect, res.XPAwarded)
			assert.Equal(t, tc.expect, res.TotalXP)
			assert.Equal(t, tc.expect, res.Attempt.XPEarned)
		})
	}
}

func TestService_GradeQuiz_ScoreRounded(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, memory.New(), false)

	res, err := f.svc.GradeQuiz(ctx, award.GradeQuizRequest{
		UserID: "u1",
		QuizID: "sql-q1",
		Score:  decimal.RequireFromString("66.6666"),
	})
	require.NoError(t, err)
	assert.True(t, res.Attempt.Score.Equal(decimal.RequireFromString("66.67")), "got %s", res.Attempt.Score)

	attempts, err := f.store.ListQuizAttempts(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	assert.True(t, attempts[0].Score.Equal(decimal.RequireFromString("66.67")), "got %s", attempts[0].Score)
}

func TestService_GradeQuiz_Validation(t *testing.T) {
	tests := map[string]struct {
		req  award.GradeQuizRequest
		code errors.Code
	}{
		"no user": {
			req:  award.GradeQuizRequest{QuizID: "sql-q1"},
			code: errors.CodeUnauthenticated,
		},
		"no quiz": {
			req:  award.GradeQuizRequest{UserID: "u1"},
			code: errors.CodeInvalidArgument,
		},
		"unknown quiz": {
			req:  award.GradeQuizRequest{UserID: "u1", QuizID: "nope"},
			code: errors.CodeNotFound,
		},
		"score above 100": {
			req:  award.GradeQuizRequest{UserID: "u1", QuizID: "sql-q1", Score: decimal.NewFromInt(101)},
			code: errors.CodeInvalidArgument,
		},
		"negative score": {
			req:  award.GradeQuizRequest{UserID: "u1", QuizID: "sql-q1", Score: decimal.NewFromInt(-1)},
			code: errors.CodeInvalidArgument,
		},
		"negative xp": {
			req:  award.GradeQuizRequest{UserID: "u1", QuizID: "sql-q1", XPEarned: xp(-5)},
			code: errors.CodeInvalidArgument,
		},
		"lessons not completed": {
			req:  award.GradeQuizRequest{UserID: "u1", QuizID: "sql-q1", Score: decimal.NewFromInt(90), Passed: true},
			code: errors.CodeFailedPrecondition,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, memory.New(), true)

			_, err := f.svc.GradeQuiz(context.Background(), tc.req)
			assert.True(t, errors.Is(err, tc.code), "got %v", err)
		})
	}
}

func TestService_Prerequisites(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, memory.New(), true)

	for _, id := range []string{"sql-l1", "sql-l2", "sql-l3"} {
		_, err := f.svc.CompleteLesson(ctx, award.CompleteLessonRequest{UserID: "u1", LessonID: id})
		require.NoError(t, err)
	}

	_, err := f.svc.CompleteLesson(ctx, award.CompleteLessonRequest{UserID: "u1", LessonID: "sql-l4"})
	assert.True(t, errors.Is(err, errors.CodeFailedPrecondition), "got %v", err)

	res, err := f.svc.SubmitQuiz(ctx, award.SubmitQuizRequest{
		UserID: "u1",
		QuizID: "sql-q1",
		Answers: map[string]string{
			"sql-q1-1": "WHERE",
			"sql-q1-2": "*",
			"sql-q1-3": "ORDER BY",
			"sql-q1-4": "LIMIT",
		},
	})
	require.NoError(t, err)
	require.True(t, res.Attempt.Passed)
	assert.Equal(t, 4, res.Correct)
	assert.Equal(t, int64(award.DefaultQuizXP), res.XPAwarded)

	lesson, err := f.svc.CompleteLesson(ctx, award.CompleteLessonRequest{UserID: "u1", LessonID: "sql-l4"})
	require.NoError(t, err)
	assert.Equal(t, int64(75), lesson.XPAwarded)
	assert.Equal(t, int64(3*50+200+75), lesson.TotalXP)
}

func TestService_SubmitQuiz_Fail(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, memory.New(), false)

	res, err := f.svc.SubmitQuiz(ctx, award.SubmitQuizRequest{
		UserID:  "u1",
		QuizID:  "sql-q1",
		Answers: map[string]string{"sql-q1-1": "WHERE", "sql-q1-2": "ALL"},
	})
	require.NoError(t, err)
	assert.False(t, res.Attempt.Passed)
	assert.Equal(t, 1, res.Correct)
	assert.Equal(t, 4, res.Total)
	assert.True(t, res.Attempt.Score.Equal(decimal.NewFromInt(25)))
	assert.Zero(t, res.TotalXP)
}

func TestService_LedgerMatchesTotal(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, memory.New(), false)

	for _, id := range []string{"sql-l1", "sql-l2", "sql-l2", "py-l1", "sql-l6"} {
		_, err := f.svc.CompleteLesson(ctx, award.CompleteLessonRequest{UserID: "u1", LessonID: id})
		require.NoError(t, err)
	}
	for _, passed := range []bool{false, true, true} {
		_, err := f.svc.GradeQuiz(ctx, award.GradeQuizRequest{UserID: "u1", QuizID: "py-q1", Score: decimal.NewFromInt(70), Passed: passed})
		require.NoError(t, err)
	}

	ledger, err := f.store.ListLedger(ctx, "u1")
	require.NoError(t, err)

	var sum int64
	for _, e := range ledger {
		sum += e.Amount
	}

	u, err := f.store.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, sum, u.TotalXP)
	assert.Equal(t, int64(50+50+50+100+200+200), u.TotalXP)
}

func TestService_LessonStatus(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, memory.New(), true)

	done, err := f.svc.LessonStatus(ctx, "u1", "sql-l1")
	require.NoError(t, err)
	assert.False(t, done)

	_, err = f.svc.CompleteLesson(ctx, award.CompleteLessonRequest{UserID: "u1", LessonID: "sql-l1"})
	require.NoError(t, err)

	done, err = f.svc.LessonStatus(ctx, "u1", "sql-l1")
	require.NoError(t, err)
	assert.True(t, done)

	_, err = f.svc.LessonStatus(ctx, "", "sql-l1")
	assert.True(t, errors.Is(err, errors.CodeUnauthenticated))

	_, err = f.svc.LessonStatus(ctx, "u1", "nope")
	assert.True(t, errors.Is(err, errors.CodeNotFound))
}

func TestService_RollbackOnStoreFailure(t *testing.T) {
	ctx := context.Background()
	s := &failingStore{Store: memory.New(), err: stderrors.New("disk full")}
	f := newFixture(t, s, false)

	_, err := f.svc.CompleteLesson(ctx, award.CompleteLessonRequest{UserID: "u1", LessonID: "sql-l1"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.CodeInternal), "got %v", err)

	c, err := s.GetCompletion(ctx, "u1", "sql-l1")
	require.NoError(t, err)
	assert.Nil(t, c, "completion must roll back with the ledger write")

	_, err = s.GetUser(ctx, "u1")
	assert.True(t, errors.Is(err, errors.CodeNotFound))

	assert.Empty(t, f.published())
}

type failingStore struct {
	store.Store
	err error
}

func (s *failingStore) InTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	return s.Store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return fn(ctx, failingTx{Tx: tx, err: s.err})
	})
}

type failingTx struct {
	store.Tx
	err error
}

func (t failingTx) AppendLedgerEntry(context.Context, domain.LedgerEntry) error {
	return t.err
}

func TestService_CompleteLesson_Concurrent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, memory.New(), false)

	const callers = 50

	var fresh atomic.Int32
	var eg errgroup.Group
	for i := 0; i < callers; i++ {
		eg.Go(func() error {
			res, err := f.svc.CompleteLesson(ctx, award.CompleteLessonRequest{UserID: "u1", LessonID: "sql-l1"})
			if err != nil {
				return err
			}
			if !res.AlreadyCompleted {
				fresh.Add(1)
			}
			return nil
		})
	}
	require.NoError(t, eg.Wait())

	assert.Equal(t, int32(1), fresh.Load())

	ledger, err := f.store.ListLedger(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, ledger, 1)

	u, err := f.store.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(50), u.TotalXP)
	assert.Equal(t, ledger[0].Amount, u.TotalXP)
}
