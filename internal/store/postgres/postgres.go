package postgres

import (
	"context"
	_ "embed"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/victornm/learnxp/internal/domain"
	"github.com/victornm/learnxp/internal/errors"
	"github.com/victornm/learnxp/internal/store"
)

//go:embed schema.sql
var schema string

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Config struct {
	DB *pgxpool.Pool
}

type Store struct {
	db *pgxpool.Pool
}

var _ store.Store = (*Store)(nil)

func New(c Config) *Store {
	return &Store{db: c.DB}
}

// Migrate creates the tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) (err error) {
	pgTx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			err = stderrors.Join(err, pgTx.Rollback(ctx))
		}
	}()

	if err = fn(ctx, &tx{q: pgTx}); err != nil {
		return err
	}

	if err = pgTx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

const userColumns = `user_id, display_name, total_xp, level, create_time`

func scanUser(r pgx.Row) (domain.User, error) {
	var u domain.User
	err := r.Scan(&u.UserID, &u.DisplayName, &u.TotalXP, &u.Level, &u.CreateTime)
	return u, err
}

func (s *Store) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	return getUser(ctx, s.db, userID)
}

func getUser(ctx context.Context, q querier, userID string) (*domain.User, error) {
	u, err := scanUser(q.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE user_id = $1;`, userID))
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.NotFound("user not found: id=%s", userID)
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

func (s *Store) GetUsers(ctx context.Context, userIDs []string) ([]domain.User, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}

	rows, err := s.db.Query(ctx, `SELECT `+userColumns+` FROM users WHERE user_id = ANY($1);`, userIDs)
	if err != nil {
		return nil, fmt.Errorf("get users: %w", err)
	}

	return pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.User, error) {
		return scanUser(r)
	})
}

func (s *Store) GetCompletion(ctx context.Context, userID, lessonID string) (*domain.LessonCompletion, error) {
	return getCompletion(ctx, s.db, userID, lessonID)
}

func getCompletion(ctx context.Context, q querier, userID, lessonID string) (*domain.LessonCompletion, error) {
	const stmt = `
SELECT completed, complete_time
FROM lesson_completions
WHERE user_id = $1 AND lesson_id = $2;`

	c := domain.LessonCompletion{UserID: userID, LessonID: lessonID}
	var at *time.Time
	err := q.QueryRow(ctx, stmt, userID, lessonID).Scan(&c.Completed, &at)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get completion: %w", err)
	}
	if at != nil {
		c.CompleteTime = *at
	}
	return &c, nil
}

func (s *Store) ListCompletions(ctx context.Context, userID string) ([]domain.LessonCompletion, error) {
	const stmt = `
SELECT lesson_id, completed, complete_time
FROM lesson_completions
WHERE user_id = $1
ORDER BY complete_time, lesson_id;`

	rows, err := s.db.Query(ctx, stmt, userID)
	if err != nil {
		return nil, fmt.Errorf("list completions: %w", err)
	}

	return pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.LessonCompletion, error) {
		c := domain.LessonCompletion{UserID: userID}
		var at *time.Time
		if err := r.Scan(&c.LessonID, &c.Completed, &at); err != nil {
			return domain.LessonCompletion{}, err
		}
		if at != nil {
			c.CompleteTime = *at
		}
		return c, nil
	})
}

func (s *Store) ListQuizAttempts(ctx context.Context, userID string) ([]domain.QuizAttempt, error) {
	const stmt = `
SELECT attempt_id, quiz_id, score, passed, xp_earned, submit_time
FROM quiz_attempts
WHERE user_id = $1
ORDER BY submit_time, attempt_id;`

	rows, err := s.db.Query(ctx, stmt, userID)
	if err != nil {
		return nil, fmt.Errorf("list quiz attempts: %w", err)
	}

	return pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.QuizAttempt, error) {
		a := domain.QuizAttempt{UserID: userID}
		if err := r.Scan(&a.AttemptID, &a.QuizID, &a.Score, &a.Passed, &a.XPEarned, &a.SubmitTime); err != nil {
			return domain.QuizAttempt{}, err
		}
		return a, nil
	})
}

func (s *Store) ListLedger(ctx context.Context, userID string) ([]domain.LedgerEntry, error) {
	const stmt = `
SELECT entry_id, amount, reason, create_time
FROM xp_ledger
WHERE user_id = $1
ORDER BY create_time, entry_id;`

	rows, err := s.db.Query(ctx, stmt, userID)
	if err != nil {
		return nil, fmt.Errorf("list ledger: %w", err)
	}

	return pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.LedgerEntry, error) {
		e := domain.LedgerEntry{UserID: userID}
		if err := r.Scan(&e.EntryID, &e.Amount, &e.Reason, &e.CreateTime); err != nil {
			return domain.LedgerEntry{}, err
		}
		return e, nil
	})
}

func (s *Store) ListUserBadges(ctx context.Context, userID string) ([]domain.UserBadge, error) {
	const stmt = `
SELECT badge_id, unlock_time
FROM user_badges
WHERE user_id = $1
ORDER BY unlock_time, badge_id;`

	rows, err := s.db.Query(ctx, stmt, userID)
	if err != nil {
		return nil, fmt.Errorf("list user badges: %w", err)
	}

	return pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.UserBadge, error) {
		b := domain.UserBadge{UserID: userID}
		if err := r.Scan(&b.BadgeID, &b.UnlockTime); err != nil {
			return domain.UserBadge{}, err
		}
		return b, nil
	})
}

func (s *Store) ListUsersByXPDescending(ctx context.Context, limit int) ([]domain.User, error) {
	const stmt = `SELECT ` + userColumns + ` FROM users ORDER BY total_xp DESC, user_id ASC LIMIT NULLIF(GREATEST($1::int, 0), 0);`

	rows, err := s.db.Query(ctx, stmt, limit)
	if err != nil {
		return nil, fmt.Errorf("list users by xp: %w", err)
	}

	return pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.User, error) {
		return scanUser(r)
	})
}

func (s *Store) CountUsers(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM users;`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}
