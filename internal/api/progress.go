package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/victornm/learnxp/internal/award"
	"github.com/victornm/learnxp/internal/level"
)

type (
	CompleteLessonRequest struct {
		XP *int64 `json:"xp" validate:"omitempty,gte=0"`
	}

	RecordQuizResultRequest struct {
		Score  *decimal.Decimal `json:"score" validate:"required"`
		Passed *bool            `json:"passed" validate:"required"`
		XP     *int64           `json:"xp" validate:"omitempty,gte=0"`
	}

	SubmitQuizRequest struct {
		Answers map[string]string `json:"answers" validate:"required,min=1"`
	}

	AwardResponse struct {
		XPAwarded     int64  `json:"xp_awarded"`
		TotalXP       int64  `json:"total_xp"`
		Level         int    `json:"level"`
		PreviousLevel int    `json:"previous_level"`
		LeveledUp     bool   `json:"leveled_up"`
		Title         string `json:"title"`
	}

	CompleteLessonResponse struct {
		AwardResponse
		LessonID         string `json:"lesson_id"`
		Completed        bool   `json:"completed"`
		AlreadyCompleted bool   `json:"already_completed"`
	}

	LessonProgressResponse struct {
		LessonID  string `json:"lesson_id"`
		Completed bool   `json:"completed"`
	}

	QuizAttempt struct {
		AttemptID string          `json:"attempt_id"`
		QuizID    string          `json:"quiz_id"`
		Score     decimal.Decimal `json:"score"`
		Passed    bool            `json:"passed"`
		XPEarned  int64           `json:"xp_earned"`
	}

	QuizResultResponse struct {
		AwardResponse
		Attempt QuizAttempt `json:"attempt"`
	}

	SubmitQuizResponse struct {
		QuizResultResponse
		Correct int `json:"correct"`
		Total   int `json:"total"`
	}
)

func newAwardResponse(r award.Result) AwardResponse {
	return AwardResponse{
		XPAwarded:     r.XPAwarded,
		TotalXP:       r.TotalXP,
		Level:         r.Level,
		PreviousLevel: r.PreviousLevel,
		LeveledUp:     r.LeveledUp(),
		Title:         level.Title(r.Level),
	}
}

func newQuizResultResponse(r award.QuizResult) QuizResultResponse {
	return QuizResultResponse{
		AwardResponse: newAwardResponse(r.Result),
		Attempt: QuizAttempt{
			AttemptID: r.Attempt.AttemptID,
			QuizID:    r.Attempt.QuizID,
			Score:     r.Attempt.Score,
			Passed:    r.Attempt.Passed,
			XPEarned:  r.Attempt.XPEarned,
		},
	}
}

func (a *API) CompleteLesson(c *gin.Context) {
	var req CompleteLessonRequest
	if err := a.bind(c, &req); err != nil {
		a.renderError(c, err)
		return
	}

	id := identity(c)
	res, err := a.as.CompleteLesson(c.Request.Context(), award.CompleteLessonRequest{
		UserID:      id.UserID,
		DisplayName: id.DisplayName,
		LessonID:    c.Param("id"),
		XPReward:    req.XP,
	})
	if err != nil {
		a.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, CompleteLessonResponse{
		AwardResponse:    newAwardResponse(*res),
		LessonID:         c.Param("id"),
		Completed:        true,
		AlreadyCompleted: res.AlreadyCompleted,
	})
}

func (a *API) GetLessonProgress(c *gin.Context) {
	done, err := a.as.LessonStatus(c.Request.Context(), identity(c).UserID, c.Param("id"))
	if err != nil {
		a.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, LessonProgressResponse{
		LessonID:  c.Param("id"),
		Completed: done,
	})
}

func (a *API) RecordQuizResult(c *gin.Context) {
	var req RecordQuizResultRequest
	if err := a.bind(c, &req); err != nil {
		a.renderError(c, err)
		return
	}

	id := identity(c)
	res, err := a.as.GradeQuiz(c.Request.Context(), award.GradeQuizRequest{
		UserID:      id.UserID,
		DisplayName: id.DisplayName,
		QuizID:      c.Param("id"),
		Score:       *req.Score,
		Passed:      *req.Passed,
		XPEarned:    req.XP,
	})
	if err != nil {
		a.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, newQuizResultResponse(*res))
}

func (a *API) SubmitQuiz(c *gin.Context) {
	var req SubmitQuizRequest
	if err := a.bind(c, &req); err != nil {
		a.renderError(c, err)
		return
	}

	id := identity(c)
	res, err := a.as.SubmitQuiz(c.Request.Context(), award.SubmitQuizRequest{
		UserID:      id.UserID,
		DisplayName: id.DisplayName,
		QuizID:      c.Param("id"),
		Answers:     req.Answers,
	})
	if err != nil {
		a.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, SubmitQuizResponse{
		QuizResultResponse: newQuizResultResponse(res.QuizResult),
		Correct:            res.Correct,
		Total:              res.Total,
	})
}
