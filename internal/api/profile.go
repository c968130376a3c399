package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/victornm/learnxp/internal/errors"
	"github.com/victornm/learnxp/internal/leaderboard"
	"github.com/victornm/learnxp/internal/level"
	"github.com/victornm/learnxp/internal/profile"
	"github.com/victornm/learnxp/internal/progress"
)

type (
	LevelProgress struct {
		Level     int    `json:"level"`
		Title     string `json:"title"`
		Current   int64  `json:"current"`
		Needed    int64  `json:"needed"`
		Percent   int    `json:"percent"`
		NextTitle string `json:"next_title"`
	}

	Badge struct {
		ID          string     `json:"id"`
		Name        string     `json:"name"`
		Description string     `json:"description"`
		Icon        string     `json:"icon"`
		UnlockTime  *time.Time `json:"unlock_time,omitempty"`
	}

	Activity struct {
		Amount     int64     `json:"amount"`
		Reason     string    `json:"reason"`
		CreateTime time.Time `json:"create_time"`
	}

	ProfileResponse struct {
		UserID      string             `json:"user_id"`
		DisplayName string             `json:"display_name"`
		TotalXP     int64              `json:"total_xp"`
		Level       LevelProgress      `json:"level"`
		Courses     progress.Overview  `json:"courses"`
		Quizzes     progress.QuizStats `json:"quizzes"`
		Badges      []Badge            `json:"badges"`
		Activity    []Activity         `json:"activity"`
	}

	LeaderboardEntry struct {
		Rank        int    `json:"rank"`
		Medal       string `json:"medal,omitempty"`
		UserID      string `json:"user_id"`
		DisplayName string `json:"display_name"`
		TotalXP     int64  `json:"total_xp"`
		Level       int    `json:"level"`
		Title       string `json:"title"`
		IsMe        bool   `json:"is_me,omitempty"`
	}

	Leaderboard struct {
		Entries []LeaderboardEntry `json:"entries"`
	}

	UserRankResponse struct {
		UserID     string  `json:"user_id"`
		Rank       int     `json:"rank"`
		TotalXP    int64   `json:"total_xp"`
		TotalUsers int     `json:"total_users"`
		Percentile float64 `json:"percentile"`
	}
)

func newProfileResponse(p *profile.Profile) ProfileResponse {
	resp := ProfileResponse{
		UserID:      p.User.UserID,
		DisplayName: p.User.DisplayName,
		TotalXP:     p.User.TotalXP,
		Level: LevelProgress{
			Level:     p.Level.Level,
			Title:     p.Title,
			Current:   p.Level.Current,
			Needed:    p.Level.Needed,
			Percent:   p.Level.Percent,
			NextTitle: level.Title(p.Level.Level + 1),
		},
		Courses:  p.Courses,
		Quizzes:  p.Quizzes,
		Badges:   make([]Badge, 0, len(p.Badges)),
		Activity: make([]Activity, 0, len(p.Activity)),
	}

	for _, b := range p.Badges {
		resp.Badges = append(resp.Badges, Badge{
			ID:          b.ID,
			Name:        b.Name,
			Description: b.Description,
			Icon:        b.Icon,
			UnlockTime:  b.UnlockTime,
		})
	}

	for _, e := range p.Activity {
		resp.Activity = append(resp.Activity, Activity{
			Amount:     e.Amount,
			Reason:     e.Reason,
			CreateTime: e.CreateTime,
		})
	}

	return resp
}

func (a *API) GetMe(c *gin.Context) {
	p, err := a.ps.GetProfile(c.Request.Context(), identity(c).UserID)
	if err != nil {
		a.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, newProfileResponse(p))
}

func (a *API) GetLeaderboard(c *gin.Context) {
	var limit int
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			a.renderError(c, errors.InvalidArgument("limit must be a positive integer: %q", v))
			return
		}
		limit = n
	}

	l, err := a.ls.GetLeaderboard(c.Request.Context(), leaderboard.GetLeaderboardRequest{
		Limit: limit,
	})
	if err != nil {
		a.renderError(c, err)
		return
	}

	me := identity(c).UserID
	resp := Leaderboard{
		Entries: make([]LeaderboardEntry, 0, len(l.Entries)),
	}
	for _, e := range l.Entries {
		resp.Entries = append(resp.Entries, LeaderboardEntry{
			Rank:        e.Rank,
			Medal:       e.Medal,
			UserID:      e.UserID,
			DisplayName: e.DisplayName,
			TotalXP:     e.TotalXP,
			Level:       e.Level,
			Title:       e.Title,
			IsMe:        me != "" && e.UserID == me,
		})
	}

	c.JSON(http.StatusOK, resp)
}

func (a *API) GetMyRank(c *gin.Context) {
	r, err := a.ls.GetUserRank(c.Request.Context(), identity(c).UserID)
	if err != nil {
		a.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, UserRankResponse{
		UserID:     r.UserID,
		Rank:       r.Rank,
		TotalXP:    r.TotalXP,
		TotalUsers: r.TotalUsers,
		Percentile: r.Percentile,
	})
}
