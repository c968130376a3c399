package postgres

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/victornm/learnxp/internal/domain"
	"github.com/victornm/learnxp/internal/errors"
)

type tx struct {
	q querier
}

func (t *tx) EnsureUser(ctx context.Context, userID, displayName string, now time.Time) error {
	const stmt = `
INSERT INTO users (user_id, display_name, create_time)
VALUES ($1, $2, $3)
ON CONFLICT (user_id) DO UPDATE SET display_name = EXCLUDED.display_name
WHERE EXCLUDED.display_name <> '' AND users.display_name <> EXCLUDED.display_name;`

	if _, err := t.q.Exec(ctx, stmt, userID, displayName, now); err != nil {
		return fmt.Errorf("ensure user: %w", err)
	}
	return nil
}

func (t *tx) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	return getUser(ctx, t.q, userID)
}

func (t *tx) GetCompletion(ctx context.Context, userID, lessonID string) (*domain.LessonCompletion, error) {
	return getCompletion(ctx, t.q, userID, lessonID)
}

// MarkLessonCompleted relies on the row lock taken by ON CONFLICT: a concurrent
// transaction on the same (user, lesson) waits, then sees completed = true and
// updates nothing.
func (t *tx) MarkLessonCompleted(ctx context.Context, userID, lessonID string, at time.Time) (bool, error) {
	const stmt = `
INSERT INTO lesson_completions (user_id, lesson_id, completed, complete_time)
VALUES ($1, $2, true, $3)
ON CONFLICT (user_id, lesson_id) DO UPDATE SET completed = true, complete_time = EXCLUDED.complete_time
WHERE lesson_completions.completed = false
RETURNING true;`

	var ok bool
	err := t.q.QueryRow(ctx, stmt, userID, lessonID, at).Scan(&ok)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("mark lesson completed: %w", err)
	}
	return ok, nil
}

func (t *tx) IncrementUserXP(ctx context.Context, userID string, amount int64) (*domain.User, error) {
	const stmt = `
UPDATE users SET total_xp = total_xp + $2
WHERE user_id = $1
RETURNING ` + userColumns + `;`

	u, err := scanUser(t.q.QueryRow(ctx, stmt, userID, amount))
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.NotFound("user not found: id=%s", userID)
	}
	if err != nil {
		return nil, fmt.Errorf("increment user xp: %w", err)
	}
	return &u, nil
}

func (t *tx) AppendLedgerEntry(ctx context.Context, e domain.LedgerEntry) error {
	const stmt = `
INSERT INTO xp_ledger (entry_id, user_id, amount, reason, create_time)
VALUES ($1, $2, $3, $4, $5);`

	if _, err := t.q.Exec(ctx, stmt, e.EntryID, e.UserID, e.Amount, e.Reason, e.CreateTime); err != nil {
		return fmt.Errorf("append ledger entry: %w", err)
	}
	return nil
}

func (t *tx) SetUserLevel(ctx context.Context, userID string, level int) error {
	tag, err := t.q.Exec(ctx, `UPDATE users SET level = $2 WHERE user_id = $1;`, userID, level)
	if err != nil {
		return fmt.Errorf("set user level: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errors.NotFound("user not found: id=%s", userID)
	}
	return nil
}

func (t *tx) InsertQuizAttempt(ctx context.Context, a domain.QuizAttempt) error {
	const stmt = `
INSERT INTO quiz_attempts (attempt_id, user_id, quiz_id, score, passed, xp_earned, submit_time)
VALUES ($1, $2, $3, $4, $5, $6, $7);`

	if _, err := t.q.Exec(ctx, stmt, a.AttemptID, a.UserID, a.QuizID, a.Score, a.Passed, a.XPEarned, a.SubmitTime); err != nil {
		return fmt.Errorf("insert quiz attempt: %w", err)
	}
	return nil
}

func (t *tx) AwardBadges(ctx context.Context, userID string, badgeIDs []string, at time.Time) ([]string, error) {
	const stmt = `
INSERT INTO user_badges (user_id, badge_id, unlock_time)
SELECT $1, b, $3 FROM unnest($2::text[]) AS b
ON CONFLICT (user_id, badge_id) DO NOTHING
RETURNING badge_id;`

	if len(badgeIDs) == 0 {
		return nil, nil
	}

	rows, err := t.q.Query(ctx, stmt, userID, badgeIDs, at)
	if err != nil {
		return nil, fmt.Errorf("award badges: %w", err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("award badges: %w", err)
	}
	return ids, nil
}
