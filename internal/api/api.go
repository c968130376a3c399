package api

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthv1 "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/victornm/learnxp/internal/auth"
	"github.com/victornm/learnxp/internal/award"
	"github.com/victornm/learnxp/internal/badge"
	"github.com/victornm/learnxp/internal/content"
	"github.com/victornm/learnxp/internal/domain"
	"github.com/victornm/learnxp/internal/errors"
	"github.com/victornm/learnxp/internal/event"
	"github.com/victornm/learnxp/internal/leaderboard"
	"github.com/victornm/learnxp/internal/profile"
)

const serviceName = "learnxp.v1"

type Config struct {
	Router       gin.IRouter
	GRPC         *grpc.Server
	EventBus     *event.Bus
	Award        *award.Service
	Profile      *profile.Service
	Leaderboard  *leaderboard.Service
	Catalog      *content.Catalog
	Badges       *badge.Evaluator
	Tokens       *auth.Tokens
	Lock         *auth.Lock
	Redis        Redis
	PubsubPrefix string
}

type Redis interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

type API struct {
	as *award.Service
	ps *profile.Service
	ls *leaderboard.Service

	catalog  *content.Catalog
	badges   *badge.Evaluator
	validate *validator.Validate

	redis  Redis
	prefix string
}

func New(c Config) *API {
	a := &API{
		as:       c.Award,
		ps:       c.Profile,
		ls:       c.Leaderboard,
		catalog:  c.Catalog,
		badges:   c.Badges,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		redis:    c.Redis,
		prefix:   c.PubsubPrefix,
	}

	// HTTP APIs
	r := c.Router
	r.GET("/healthz", a.Healthz)
	if c.Lock != nil {
		r.POST("/unlock", c.Lock.Unlock)
	}

	v1 := r.Group("/api/v1")
	{
		required := v1.Group("", c.Tokens.Required())
		required.POST("/lessons/:id/complete", a.CompleteLesson)
		required.GET("/lessons/:id/progress", a.GetLessonProgress)
		required.POST("/quizzes/:id/result", a.RecordQuizResult)
		required.POST("/quizzes/:id/submit", a.SubmitQuiz)
		required.GET("/me", a.GetMe)
		required.GET("/leaderboard/me", a.GetMyRank)

		optional := v1.Group("", c.Tokens.Optional())
		optional.GET("/leaderboard", a.GetLeaderboard)
		optional.GET("/courses", a.ListCourses)
		optional.GET("/courses/:id", a.GetCourse)
	}

	// gRPC APIs
	if c.GRPC != nil {
		hs := health.NewServer()
		hs.SetServingStatus(serviceName, healthv1.HealthCheckResponse_SERVING)
		healthv1.RegisterHealthServer(c.GRPC, hs)
	}

	// Register event handlers
	c.EventBus.Subscribe(domain.EventNameLeaderboardUpdated, func(ctx context.Context, e event.Event) error {
		return a.PublishLeaderboardUpdated(ctx, e.(domain.EventLeaderboardUpdated))
	})
	c.EventBus.Subscribe(domain.EventNameLevelUp, func(ctx context.Context, e event.Event) error {
		return a.PublishLevelUp(ctx, e.(domain.EventLevelUp))
	})
	c.EventBus.Subscribe(domain.EventNameBadgesUnlocked, func(ctx context.Context, e event.Event) error {
		return a.PublishBadgesUnlocked(ctx, e.(domain.EventBadgesUnlocked))
	})

	return a
}

func (a *API) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// bind decodes an optional JSON body into req and validates it.
func (a *API) bind(c *gin.Context, req any) error {
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(req); err != nil {
			return errors.InvalidArgument("malformed body: %v", err)
		}
	}

	if err := a.validate.Struct(req); err != nil {
		var ve validator.ValidationErrors
		if !stderrors.As(err, &ve) {
			return errors.Internal(fmt.Errorf("validate: %w", err))
		}

		fields := make([]string, 0, len(ve))
		for _, fe := range ve {
			fields = append(fields, fmt.Sprintf("%s: %s", strings.ToLower(fe.Field()), fe.Tag()))
		}
		return errors.InvalidArgument("invalid body: %s", strings.Join(fields, ", "))
	}

	return nil
}

func (a *API) renderError(c *gin.Context, err error) {
	e := errors.Convert(err)
	if e.Code == errors.CodeInternal {
		slog.ErrorContext(c, "api: request failed",
			"error", err,
			"method", c.Request.Method,
			"path", c.FullPath(),
		)
	}

	c.AbortWithStatusJSON(e.HTTPStatusCode(), e)
}

func (a *API) badge(id string) (badge.Badge, bool) {
	if a.badges == nil {
		return badge.Badge{}, false
	}
	return a.badges.Badge(id)
}

func identity(c *gin.Context) auth.Identity {
	id, _ := auth.FromContext(c)
	return id
}
