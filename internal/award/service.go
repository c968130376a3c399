// Package award grants XP for learning activity. Each grant is a single store
// transaction: the completion or attempt record, the user's XP total, the
// ledger entry and the level commit together or not at all.
package award

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/victornm/learnxp/internal/content"
	"github.com/victornm/learnxp/internal/domain"
	"github.com/victornm/learnxp/internal/errors"
	"github.com/victornm/learnxp/internal/event"
	"github.com/victornm/learnxp/internal/level"
	"github.com/victornm/learnxp/internal/progress"
	"github.com/victornm/learnxp/internal/store"
	"github.com/victornm/learnxp/internal/telemetry"
)

const DefaultQuizXP = 200

var maxScore = decimal.NewFromInt(100)

type Config struct {
	Store    store.Store
	Catalog  *content.Catalog
	EventBus *event.Bus

	// EnforcePrerequisites rejects lessons whose previous section quiz is not
	// passed, and quizzes whose section still has open lessons.
	EnforcePrerequisites bool

	// Now defaults to time.Now.
	Now func() time.Time
}

type Service struct {
	store   store.Store
	catalog *content.Catalog
	eb      *event.Bus
	enforce bool
	now     func() time.Time
}

func NewService(c Config) *Service {
	now := c.Now
	if now == nil {
		now = time.Now
	}

	return &Service{
		store:   c.Store,
		catalog: c.Catalog,
		eb:      c.EventBus,
		enforce: c.EnforcePrerequisites,
		now:     now,
	}
}

// Result is the outcome of a grant as seen by the learner.
type Result struct {
	UserID        string
	XPAwarded     int64
	TotalXP       int64
	Level         int
	PreviousLevel int
	// AlreadyCompleted is set when the lesson had been completed before. No XP
	// is granted in that case and the totals are the stored ones.
	AlreadyCompleted bool
}

func (r Result) LeveledUp() bool {
	return r.Level > r.PreviousLevel
}

type CompleteLessonRequest struct {
	UserID      string
	DisplayName string
	LessonID    string
	// XPReward overrides the lesson's configured reward when set.
	XPReward *int64
}

// CompleteLesson marks a lesson completed for the user and grants its XP. A
// second call for the same lesson is a no-op that reports AlreadyCompleted.
func (s *Service) CompleteLesson(ctx context.Context, req CompleteLessonRequest) (*Result, error) {
	if req.UserID == "" {
		return nil, errors.Unauthenticated("sign in to record progress")
	}
	if req.LessonID == "" {
		return nil, errors.InvalidArgument("lesson id is required")
	}
	if req.XPReward != nil && *req.XPReward < 0 {
		return nil, errors.InvalidArgument("xp must not be negative: %d", *req.XPReward)
	}

	loc, ok := s.catalog.Lesson(req.LessonID)
	if !ok {
		return nil, errors.NotFound("lesson not found: id=%s", req.LessonID)
	}

	if s.enforce {
		if err := s.checkLessonUnlocked(ctx, req.UserID, loc); err != nil {
			return nil, err
		}
	}

	xp := loc.Lesson.XPReward
	if req.XPReward != nil {
		xp = *req.XPReward
	}

	var res *Result
	err := s.store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		now := s.now()
		if err := tx.EnsureUser(ctx, req.UserID, req.DisplayName, now); err != nil {
			return err
		}

		done, err := tx.MarkLessonCompleted(ctx, req.UserID, req.LessonID, now)
		if err != nil {
			return err
		}
		if !done {
			res, err = current(ctx, tx, req.UserID)
			if err != nil {
				return err
			}
			res.AlreadyCompleted = true
			return nil
		}

		res, err = grant(ctx, tx, req.UserID, xp, domain.ReasonLessonCompleted, now)
		return err
	})
	if err != nil {
		slog.ErrorContext(ctx, "award: complete lesson failed",
			"error", err,
			"user_id", req.UserID,
			"lesson_id", req.LessonID,
		)
		return nil, errors.Convert(err)
	}

	if !res.AlreadyCompleted {
		telemetry.RecordLessonCompleted()
		s.publish(ctx, res, domain.ReasonLessonCompleted)
	}

	return res, nil
}

func (s *Service) checkLessonUnlocked(ctx context.Context, userID string, loc content.LessonLocation) error {
	if loc.SectionIndex == 0 {
		return nil
	}

	c, err := s.store.GetCompletion(ctx, userID, loc.Lesson.LessonID)
	if err != nil {
		return errors.Internal(fmt.Errorf("get completion: %w", err))
	}
	if c != nil && c.Completed {
		return nil
	}

	attempts, err := s.store.ListQuizAttempts(ctx, userID)
	if err != nil {
		return errors.Internal(fmt.Errorf("list quiz attempts: %w", err))
	}

	prev := loc.Course.Sections[loc.SectionIndex-1].Quiz.QuizID
	if !progress.PassedQuizzes(attempts)[prev] {
		return errors.FailedPrecondition("lesson %s is locked: pass quiz %s first", loc.Lesson.LessonID, prev)
	}
	return nil
}

type GradeQuizRequest struct {
	UserID      string
	DisplayName string
	QuizID      string
	// Score is the percentage of correct answers, 0 to 100.
	Score  decimal.Decimal
	Passed bool
	// XPEarned is granted on a pass. Nil means DefaultQuizXP.
	XPEarned *int64
}

type QuizResult struct {
	Result
	Attempt domain.QuizAttempt
}

// GradeQuiz records a quiz attempt. A passing attempt grants XP; a failing one
// is recorded with zero XP and leaves the user's total untouched.
func (s *Service) GradeQuiz(ctx context.Context, req GradeQuizRequest) (*QuizResult, error) {
	if req.UserID == "" {
		return nil, errors.Unauthenticated("sign in to record progress")
	}
	if req.QuizID == "" {
		return nil, errors.InvalidArgument("quiz id is required")
	}
	if req.Score.IsNegative() || req.Score.GreaterThan(maxScore) {
		return nil, errors.InvalidArgument("score must be between 0 and 100: %s", req.Score)
	}
	if req.XPEarned != nil && *req.XPEarned < 0 {
		return nil, errors.InvalidArgument("xp must not be negative: %d", *req.XPEarned)
	}

	loc, ok := s.catalog.Quiz(req.QuizID)
	if !ok {
		return nil, errors.NotFound("quiz not found: id=%s", req.QuizID)
	}

	if s.enforce {
		if err := s.checkQuizUnlocked(ctx, req.UserID, loc); err != nil {
			return nil, err
		}
	}

	xp := int64(0)
	if req.Passed {
		xp = DefaultQuizXP
		if req.XPEarned != nil {
			xp = *req.XPEarned
		}
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, errors.Internal(fmt.Errorf("generate attempt ID: %w", err))
	}

	var res *QuizResult
	err = s.store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		now := s.now()
		if err := tx.EnsureUser(ctx, req.UserID, req.DisplayName, now); err != nil {
			return err
		}

		a := domain.QuizAttempt{
			AttemptID:  id.String(),
			UserID:     req.UserID,
			QuizID:     req.QuizID,
			Score:      req.Score.Round(2),
			Passed:     req.Passed,
			XPEarned:   xp,
			SubmitTime: now,
		}
		if err := tx.InsertQuizAttempt(ctx, a); err != nil {
			return err
		}

		var r *Result
		var err error
		if req.Passed {
			r, err = grant(ctx, tx, req.UserID, xp, domain.ReasonQuizPassed, now)
		} else {
			r, err = current(ctx, tx, req.UserID)
		}
		if err != nil {
			return err
		}

		res = &QuizResult{Result: *r, Attempt: a}
		return nil
	})
	if err != nil {
		slog.ErrorContext(ctx, "award: grade quiz failed",
			"error", err,
			"user_id", req.UserID,
			"quiz_id", req.QuizID,
		)
		return nil, errors.Convert(err)
	}

	telemetry.RecordQuizAttempt(req.Passed)
	if req.Passed {
		s.publish(ctx, &res.Result, domain.ReasonQuizPassed)
	}

	return res, nil
}

func (s *Service) checkQuizUnlocked(ctx context.Context, userID string, loc content.QuizLocation) error {
	completions, err := s.store.ListCompletions(ctx, userID)
	if err != nil {
		return errors.Internal(fmt.Errorf("list completions: %w", err))
	}

	st := progress.Section(loc.Section(), progress.CompletedLessons(completions), nil)
	if !st.QuizUnlocked {
		return errors.FailedPrecondition("quiz %s is locked: complete %d more lesson(s) first",
			loc.Quiz().QuizID, st.Lessons.Total-st.Lessons.Done)
	}
	return nil
}

type SubmitQuizRequest struct {
	UserID      string
	DisplayName string
	QuizID      string
	// Answers maps question ID to the chosen option.
	Answers map[string]string
}

type SubmitQuizResult struct {
	QuizResult
	Correct int
	Total   int
}

// SubmitQuiz grades the answers against the quiz and records the attempt with
// the standard pass reward.
func (s *Service) SubmitQuiz(ctx context.Context, req SubmitQuizRequest) (*SubmitQuizResult, error) {
	if req.UserID == "" {
		return nil, errors.Unauthenticated("sign in to record progress")
	}
	if req.QuizID == "" {
		return nil, errors.InvalidArgument("quiz id is required")
	}

	loc, ok := s.catalog.Quiz(req.QuizID)
	if !ok {
		return nil, errors.NotFound("quiz not found: id=%s", req.QuizID)
	}

	g := content.GradeQuiz(loc.Quiz(), req.Answers)
	res, err := s.GradeQuiz(ctx, GradeQuizRequest{
		UserID:      req.UserID,
		DisplayName: req.DisplayName,
		QuizID:      req.QuizID,
		Score:       g.Score,
		Passed:      g.Passed,
	})
	if err != nil {
		return nil, err
	}

	return &SubmitQuizResult{QuizResult: *res, Correct: g.Correct, Total: g.Total}, nil
}

// LessonStatus reports whether the user has completed the lesson.
func (s *Service) LessonStatus(ctx context.Context, userID, lessonID string) (bool, error) {
	if userID == "" {
		return false, errors.Unauthenticated("sign in to read progress")
	}
	if lessonID == "" {
		return false, errors.InvalidArgument("lesson id is required")
	}
	if _, ok := s.catalog.Lesson(lessonID); !ok {
		return false, errors.NotFound("lesson not found: id=%s", lessonID)
	}

	c, err := s.store.GetCompletion(ctx, userID, lessonID)
	if err != nil {
		return false, errors.Internal(fmt.Errorf("get completion: %w", err))
	}

	return c != nil && c.Completed, nil
}

func grant(ctx context.Context, tx store.Tx, userID string, amount int64, reason string, now time.Time) (*Result, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate ledger entry ID: %w", err)
	}

	u, err := tx.IncrementUserXP(ctx, userID, amount)
	if err != nil {
		return nil, err
	}

	err = tx.AppendLedgerEntry(ctx, domain.LedgerEntry{
		EntryID:    id.String(),
		UserID:     userID,
		Amount:     amount,
		Reason:     reason,
		CreateTime: now,
	})
	if err != nil {
		return nil, err
	}

	prev := u.Level
	lvl := level.FromXP(u.TotalXP)
	if lvl != prev {
		if err := tx.SetUserLevel(ctx, userID, lvl); err != nil {
			return nil, err
		}
	}

	return &Result{
		UserID:        userID,
		XPAwarded:     amount,
		TotalXP:       u.TotalXP,
		Level:         lvl,
		PreviousLevel: prev,
	}, nil
}

func current(ctx context.Context, tx store.Tx, userID string) (*Result, error) {
	u, err := tx.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &Result{
		UserID:        userID,
		TotalXP:       u.TotalXP,
		Level:         u.Level,
		PreviousLevel: u.Level,
	}, nil
}

func (s *Service) publish(ctx context.Context, r *Result, reason string) {
	telemetry.RecordXPAwarded(reason, r.XPAwarded)

	s.eb.Publish(ctx, domain.EventXPAwarded{
		UserID:        r.UserID,
		Amount:        r.XPAwarded,
		Reason:        reason,
		TotalXP:       r.TotalXP,
		Level:         r.Level,
		PreviousLevel: r.PreviousLevel,
	})

	if r.LeveledUp() {
		telemetry.RecordLevelUp()
		s.eb.Publish(ctx, domain.EventLevelUp{
			UserID:        r.UserID,
			Level:         r.Level,
			PreviousLevel: r.PreviousLevel,
			Title:         level.Title(r.Level),
		})
	}
}
