// Package memory is an in-process store. A transaction works on a copy of the
// state and swaps it in on commit, so a failed transaction leaves nothing behind.
package memory

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/victornm/learnxp/internal/domain"
	"github.com/victornm/learnxp/internal/errors"
	"github.com/victornm/learnxp/internal/store"
)

type completionKey struct {
	user   string
	lesson string
}

type state struct {
	users       map[string]domain.User
	completions map[completionKey]domain.LessonCompletion
	attempts    map[string][]domain.QuizAttempt
	ledger      map[string][]domain.LedgerEntry
	badges      map[string][]domain.UserBadge
}

func newState() *state {
	return &state{
		users:       make(map[string]domain.User),
		completions: make(map[completionKey]domain.LessonCompletion),
		attempts:    make(map[string][]domain.QuizAttempt),
		ledger:      make(map[string][]domain.LedgerEntry),
		badges:      make(map[string][]domain.UserBadge),
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.completions {
		c.completions[k] = v
	}
	for k, v := range s.attempts {
		c.attempts[k] = slices.Clone(v)
	}
	for k, v := range s.ledger {
		c.ledger[k] = slices.Clone(v)
	}
	for k, v := range s.badges {
		c.badges[k] = slices.Clone(v)
	}
	return c
}

type Store struct {
	mu sync.RWMutex
	s  *state
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{s: newState()}
}

func (m *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t := &tx{s: m.s.clone()}
	if err := fn(ctx, t); err != nil {
		return err
	}

	m.s = t.s
	return nil
}

func (m *Store) GetUser(_ context.Context, userID string) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.s.users[userID]
	if !ok {
		return nil, errors.NotFound("user not found: id=%s", userID)
	}
	return &u, nil
}

func (m *Store) GetUsers(_ context.Context, userIDs []string) ([]domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	users := make([]domain.User, 0, len(userIDs))
	for _, id := range userIDs {
		if u, ok := m.s.users[id]; ok {
			users = append(users, u)
		}
	}
	return users, nil
}

func (m *Store) GetCompletion(_ context.Context, userID, lessonID string) (*domain.LessonCompletion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.s.completion(userID, lessonID), nil
}

func (m *Store) ListCompletions(_ context.Context, userID string) ([]domain.LessonCompletion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []domain.LessonCompletion
	for k, c := range m.s.completions {
		if k.user == userID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CompleteTime.Equal(out[j].CompleteTime) {
			return out[i].CompleteTime.Before(out[j].CompleteTime)
		}
		return out[i].LessonID < out[j].LessonID
	})
	return out, nil
}

func (m *Store) ListQuizAttempts(_ context.Context, userID string) ([]domain.QuizAttempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return slices.Clone(m.s.attempts[userID]), nil
}

func (m *Store) ListLedger(_ context.Context, userID string) ([]domain.LedgerEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return slices.Clone(m.s.ledger[userID]), nil
}

func (m *Store) ListUserBadges(_ context.Context, userID string) ([]domain.UserBadge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return slices.Clone(m.s.badges[userID]), nil
}

func (m *Store) ListUsersByXPDescending(_ context.Context, limit int) ([]domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	users := make([]domain.User, 0, len(m.s.users))
	for _, u := range m.s.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].TotalXP != users[j].TotalXP {
			return users[i].TotalXP > users[j].TotalXP
		}
		return users[i].UserID < users[j].UserID
	})

	if limit > 0 && len(users) > limit {
		users = users[:limit]
	}
	return users, nil
}

func (m *Store) CountUsers(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.s.users), nil
}

func (s *state) completion(userID, lessonID string) *domain.LessonCompletion {
	c, ok := s.completions[completionKey{user: userID, lesson: lessonID}]
	if !ok {
		return nil
	}
	return &c
}

type tx struct {
	s *state
}

func (t *tx) EnsureUser(_ context.Context, userID, displayName string, now time.Time) error {
	u, ok := t.s.users[userID]
	if !ok {
		t.s.users[userID] = domain.User{UserID: userID, DisplayName: displayName, Level: 1, CreateTime: now}
		return nil
	}

	if displayName != "" {
		u.DisplayName = displayName
		t.s.users[userID] = u
	}
	return nil
}

func (t *tx) GetUser(_ context.Context, userID string) (*domain.User, error) {
	u, ok := t.s.users[userID]
	if !ok {
		return nil, errors.NotFound("user not found: id=%s", userID)
	}
	return &u, nil
}

func (t *tx) GetCompletion(_ context.Context, userID, lessonID string) (*domain.LessonCompletion, error) {
	return t.s.completion(userID, lessonID), nil
}

func (t *tx) MarkLessonCompleted(_ context.Context, userID, lessonID string, at time.Time) (bool, error) {
	k := completionKey{user: userID, lesson: lessonID}
	if c, ok := t.s.completions[k]; ok && c.Completed {
		return false, nil
	}

	t.s.completions[k] = domain.LessonCompletion{UserID: userID, LessonID: lessonID, Completed: true, CompleteTime: at}
	return true, nil
}

func (t *tx) IncrementUserXP(_ context.Context, userID string, amount int64) (*domain.User, error) {
	u, ok := t.s.users[userID]
	if !ok {
		return nil, errors.NotFound("user not found: id=%s", userID)
	}

	u.TotalXP += amount
	t.s.users[userID] = u
	return &u, nil
}

func (t *tx) AppendLedgerEntry(_ context.Context, e domain.LedgerEntry) error {
	if _, ok := t.s.users[e.UserID]; !ok {
		return errors.NotFound("user not found: id=%s", e.UserID)
	}

	t.s.ledger[e.UserID] = append(t.s.ledger[e.UserID], e)
	return nil
}

func (t *tx) SetUserLevel(_ context.Context, userID string, level int) error {
	u, ok := t.s.users[userID]
	if !ok {
		return errors.NotFound("user not found: id=%s", userID)
	}

	u.Level = level
	t.s.users[userID] = u
	return nil
}

func (t *tx) InsertQuizAttempt(_ context.Context, a domain.QuizAttempt) error {
	if _, ok := t.s.users[a.UserID]; !ok {
		return errors.NotFound("user not found: id=%s", a.UserID)
	}

	t.s.attempts[a.UserID] = append(t.s.attempts[a.UserID], a)
	return nil
}

func (t *tx) AwardBadges(_ context.Context, userID string, badgeIDs []string, at time.Time) ([]string, error) {
	have := make(map[string]bool)
	for _, b := range t.s.badges[userID] {
		have[b.BadgeID] = true
	}

	var inserted []string
	for _, id := range badgeIDs {
		if have[id] {
			continue
		}
		have[id] = true
		t.s.badges[userID] = append(t.s.badges[userID], domain.UserBadge{UserID: userID, BadgeID: id, UnlockTime: at})
		inserted = append(inserted, id)
	}
	return inserted, nil
}
