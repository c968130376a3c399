package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/victornm/learnxp/internal/api"
	"github.com/victornm/learnxp/internal/auth"
	"github.com/victornm/learnxp/internal/award"
	"github.com/victornm/learnxp/internal/badge"
	"github.com/victornm/learnxp/internal/content"
	"github.com/victornm/learnxp/internal/event"
	"github.com/victornm/learnxp/internal/leaderboard"
	"github.com/victornm/learnxp/internal/profile"
	"github.com/victornm/learnxp/internal/store"
	"github.com/victornm/learnxp/internal/store/memory"
	"github.com/victornm/learnxp/internal/store/postgres"
	"github.com/victornm/learnxp/internal/telemetry"
)

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

type Config struct {
	HTTP struct {
		Port int32
	}

	GRPC struct {
		Port int32
	}

	Redis struct {
		Leaderboard struct {
			Addrs  []string
			Pass   string
			Prefix string
		}

		Pubsub struct {
			Addrs  []string
			Pass   string
			Prefix string
		}
	}

	Postgres struct {
		Addr string
		User string
		Pass string
		Name string
	}

	Storage struct {
		// Driver is either "postgres" or "memory".
		Driver string
	}

	Content struct {
		// Path to a YAML catalog. The embedded catalog is used when empty.
		Path string
	}

	Auth struct {
		JWTSecret string
	}

	SiteLock struct {
		Enabled    bool
		SecretHash string
	}

	Progression struct {
		EnforcePrerequisites bool
	}

	Event struct {
		PoolSize int
		Timeout  time.Duration
	}
}

// DefaultConfig holds the values used for every key the config file omits.
func DefaultConfig() Config {
	var c Config
	c.HTTP.Port = 8080
	c.GRPC.Port = 9090
	c.Redis.Leaderboard.Addrs = []string{"localhost:6379"}
	c.Redis.Leaderboard.Prefix = "learnxp"
	c.Redis.Pubsub.Addrs = []string{"localhost:6379"}
	c.Redis.Pubsub.Prefix = "learnxp"
	c.Storage.Driver = StoragePostgres
	c.Progression.EnforcePrerequisites = true
	c.Event.PoolSize = 1000
	c.Event.Timeout = 30 * time.Second
	return c
}

type Server struct {
	c Config

	eb *event.Bus

	infra struct {
		redis struct {
			leaderboard redis.UniversalClient
			pubsub      redis.UniversalClient
		}

		postgres *pgxpool.Pool
		store    store.Store
		catalog  *content.Catalog
	}

	service struct {
		award       *award.Service
		profile     *profile.Service
		awarder     *profile.Awarder
		leaderboard *leaderboard.Service
		badges      *badge.Evaluator
	}

	http *http.Server
	grpc *grpc.Server
}

func Init(c Config) (*Server, error) {
	s := &Server{c: c}

	s.eb = event.NewBus(
		event.WithPoolSize(c.Event.PoolSize),
		event.WithTimeout(c.Event.Timeout),
	)

	if err := s.initInfra(); err != nil {
		return nil, fmt.Errorf("server: init infra: %w", err)
	}

	s.initService()
	s.initAPI()
	return s, nil
}

func (s *Server) initInfra() error {
	if err := s.initRedis(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}

	if err := s.initStore(); err != nil {
		return fmt.Errorf("store: %w", err)
	}

	catalog, err := content.Load(s.c.Content.Path)
	if err != nil {
		return fmt.Errorf("content: %w", err)
	}
	s.infra.catalog = catalog

	slog.Info("server: content loaded",
		"courses", len(catalog.Courses()),
		"lessons", catalog.LessonCount(),
		"badges", len(catalog.Badges()),
	)

	return nil
}

func (s *Server) initRedis() error {
	connect := func(name string, addrs []string, pass string) (redis.UniversalClient, error) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		r := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    addrs,
			Password: pass,
		})

		if err := telemetry.MonitorRedis(name, r); err != nil {
			return nil, err
		}

		if err := r.Ping(ctx).Err(); err != nil {
			return nil, err
		}

		return r, nil
	}

	var err error
	s.infra.redis.leaderboard, err = connect("leaderboard", s.c.Redis.Leaderboard.Addrs, s.c.Redis.Leaderboard.Pass)
	if err != nil {
		return fmt.Errorf("leaderboard: %w", err)
	}

	s.infra.redis.pubsub, err = connect("pubsub", s.c.Redis.Pubsub.Addrs, s.c.Redis.Pubsub.Pass)
	if err != nil {
		return fmt.Errorf("pubsub: %w", err)
	}

	return nil
}

func (s *Server) initStore() error {
	switch s.c.Storage.Driver {
	case StorageMemory:
		slog.Warn("server: using in-memory storage, data is lost on restart")
		s.infra.store = memory.New()
		return nil

	case StoragePostgres, "":
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		p := s.c.Postgres
		cc, err := pgxpool.ParseConfig(fmt.Sprintf("postgres://%s:%s@%s/%s", p.User, p.Pass, p.Addr, p.Name))
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}

		db, err := pgxpool.NewWithConfig(ctx, cc)
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}

		if err := db.Ping(ctx); err != nil {
			db.Close()
			return fmt.Errorf("postgres: %w", err)
		}

		st := postgres.New(postgres.Config{DB: db})
		if err := st.Migrate(ctx); err != nil {
			db.Close()
			return fmt.Errorf("postgres: %w", err)
		}

		s.infra.postgres = db
		s.infra.store = st
		return nil

	default:
		return fmt.Errorf("unknown storage driver %q", s.c.Storage.Driver)
	}
}

func (s *Server) initService() {
	s.service.badges = badge.NewEvaluator(s.infra.catalog.Badges())

	s.service.award = award.NewService(award.Config{
		Store:                s.infra.store,
		Catalog:              s.infra.catalog,
		EventBus:             s.eb,
		EnforcePrerequisites: s.c.Progression.EnforcePrerequisites,
	})

	s.service.profile = profile.NewService(profile.Config{
		Store:   s.infra.store,
		Catalog: s.infra.catalog,
		Badges:  s.service.badges,
	})

	s.service.awarder = profile.NewAwarder(profile.AwarderConfig{
		Store:    s.infra.store,
		Catalog:  s.infra.catalog,
		Badges:   s.service.badges,
		EventBus: s.eb,
	})

	s.service.leaderboard = leaderboard.NewService(leaderboard.Config{
		EventBus: s.eb,
		Store:    s.infra.store,
		Redis:    s.infra.redis.leaderboard,
		Prefix:   s.c.Redis.Leaderboard.Prefix,
	})
}

func (s *Server) initAPI() {
	tokens := auth.NewTokens(s.c.Auth.JWTSecret)
	lock := auth.NewLock(auth.LockConfig{
		Enabled:    s.c.SiteLock.Enabled,
		SecretHash: s.c.SiteLock.SecretHash,
		Tokens:     tokens,
	})

	e := gin.New()
	e.GET("/metrics", gin.WrapH(promhttp.Handler()))
	e.Use(gin.Recovery(), lock.Middleware())
	pprof.Register(e, "/debug/pprof")

	s.grpc = grpc.NewServer(telemetry.GRPCServerOptions(slog.Default())...)

	api.New(api.Config{
		Router:       e,
		GRPC:         s.grpc,
		EventBus:     s.eb,
		Award:        s.service.award,
		Profile:      s.service.profile,
		Leaderboard:  s.service.leaderboard,
		Catalog:      s.infra.catalog,
		Badges:       s.service.badges,
		Tokens:       tokens,
		Lock:         lock,
		Redis:        s.infra.redis.pubsub,
		PubsubPrefix: s.c.Redis.Pubsub.Prefix,
	})

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.c.HTTP.Port),
		Handler:           e,
		ReadHeaderTimeout: 60 * time.Second,
	}
}

func (s *Server) Start() {
	ctx := context.TODO()

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.c.GRPC.Port))
	if err != nil {
		slog.ErrorContext(ctx, "grpc server: listen failed", "error", err)
		panic(err)
	}

	var eg errgroup.Group
	eg.Go(func() error {
		slog.InfoContext(ctx, fmt.Sprintf("server: gRPC listening on port %d", s.c.GRPC.Port))
		return s.grpc.Serve(lis)
	})

	eg.Go(func() error {
		slog.InfoContext(ctx, fmt.Sprintf("server: HTTP listening on port %d", s.c.HTTP.Port))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	err = eg.Wait()
	if err != nil {
		slog.ErrorContext(ctx, "server: shutdown with error", "error", err)
	}
}

func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.grpc.GracefulStop()
	if err := s.http.Shutdown(ctx); err != nil {
		slog.ErrorContext(ctx, "server: shutdown HTTP failed", "error", err)
	}

	// Handlers still write to redis and the store, close them after.
	s.eb.Stop()

	for name, r := range map[string]redis.UniversalClient{
		"leaderboard": s.infra.redis.leaderboard,
		"pubsub":      s.infra.redis.pubsub,
	} {
		if err := r.Close(); err != nil {
			slog.ErrorContext(ctx, "server: close redis failed", "client", name, "error", err)
		}
	}
	if s.infra.postgres != nil {
		s.infra.postgres.Close()
	}

	slog.InfoContext(ctx, "server: shutdown completed")
}
