package apiapp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/campusmatch/backend/internal/config"
	"github.com/campusmatch/backend/internal/jobs/cleanup"
	pgrepo "github.com/campusmatch/backend/internal/repo/postgres"
	redrepo "github.com/campusmatch/backend/internal/repo/redis"
	authsvc "github.com/campusmatch/backend/internal/services/auth"
	chatsvc "github.com/campusmatch/backend/internal/services/chat"
	matchingsvc "github.com/campusmatch/backend/internal/services/matching"
	"github.com/campusmatch/backend/internal/services/notify"
	profilesvc "github.com/campusmatch/backend/internal/services/profiles"
	ratesvc "github.com/campusmatch/backend/internal/services/rate"
)

type App struct {
	cfg        config.Config
	logger     *zap.Logger
	server     *http.Server
	postgres   *pgxpool.Pool
	redis      *goredis.Client
	httpRouter http.Handler
	cleanupJob *cleanup.Job
}

func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		return nil, fmt.Errorf("logger is nil")
	}

	r := chi.NewRouter()
	ApplyMiddlewares(r, log)

	var pool *pgxpool.Pool
	if p, err := pgrepo.NewPool(ctx, cfg.Postgres.DSN); err != nil {
		log.Warn("postgres init failed, continuing in degraded mode", zap.Error(err))
	} else {
		pool = p
	}

	redisClient := redrepo.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	sessionRepo := redrepo.NewSessionRepo(redisClient)
	rateRepo := redrepo.NewRateRepo(redisClient)
	publishRepo := redrepo.NewPublishRepo(redisClient)
	verificationRepo := redrepo.NewVerificationRepo(redisClient)

	userRepo := pgrepo.NewUserRepo(pool)
	profileRepo := pgrepo.NewProfileRepo(pool)
	photoRepo := pgrepo.NewPhotoRepo(pool)
	relationshipRepo := pgrepo.NewRelationshipRepo(pool)
	matchRepo := pgrepo.NewMatchRepo(pool)
	candidateRepo := pgrepo.NewCandidateRepo(pool)
	conversationRepo := pgrepo.NewConversationRepo(pool)
	messageRepo := pgrepo.NewMessageRepo(pool)

	bridge := notify.NewRedisBridge(publishRepo, log)

	jwtManager := authsvc.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.JWTAccessTTL)
	authService := authsvc.NewService(authsvc.Dependencies{
		JWT:            jwtManager,
		Sessions:       sessionRepo,
		Users:          userRepo,
		Profiles:       profileRepo,
		Verifications:  verificationRepo,
		Bridge:         bridge,
		AllowedDomains: cfg.Auth.AllowedDomains,
		RefreshTTL:     cfg.Auth.RefreshTTL,
	})
	rateLimiter := ratesvc.NewLimiter(rateRepo, cfg.Matching.LikeRatePerMinute, cfg.Matching.LikeRatePer10Sec)

	matchingService := matchingsvc.NewService(matchingsvc.Dependencies{
		Pool:          pool,
		Candidates:    candidateRepo,
		Relationships: relationshipRepo,
		Matches:       matchRepo,
		Users:         userRepo,
		Summaries:     profileRepo,
		Conversations: conversationRepo,
		RateLimiter:   rateLimiter,
		Bridge:        bridge,
	}, matchingsvc.Config{
		CandidateLimit:  cfg.Matching.CandidateLimit,
		DefaultRadiusKM: cfg.Matching.DefaultRadiusKM,
	})

	chatService := chatsvc.NewService(chatsvc.Dependencies{
		Pool:          pool,
		Conversations: conversationRepo,
		Messages:      messageRepo,
		Matches:       matchRepo,
		Bridge:        bridge,
	}, chatsvc.Config{
		DefaultPageSize: cfg.Chat.PageSize,
		MaxPageSize:     cfg.Chat.MaxPageSize,
		MaxContentLen:   cfg.Chat.MaxContentLen,
	})

	profileService := profilesvc.NewService(profilesvc.Dependencies{
		Pool:     pool,
		Profiles: profileRepo,
		Photos:   photoRepo,
	})

	cleanupJob := cleanup.New(
		relationshipRepo,
		conversationRepo,
		cfg.Cleanup.DislikeRetention,
		cfg.Cleanup.InactiveRetention,
		log,
	)

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      r,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	RegisterRoutes(r, Dependencies{
		AuthService:     authService,
		MatchingService: matchingService,
		ChatService:     chatService,
		ProfileService:  profileService,
		Logger:          log,
		Config:          cfg,
	})

	return &App{
		cfg:        cfg,
		logger:     log,
		server:     server,
		postgres:   pool,
		redis:      redisClient,
		httpRouter: r,
		cleanupJob: cleanupJob,
	}, nil
}

// RunCleanup drives the retention sweep until the context is cancelled.
func (a *App) RunCleanup(ctx context.Context) {
	if a.cleanupJob == nil || a.postgres == nil {
		return
	}

	interval := a.cfg.Cleanup.Interval
	if interval <= 0 {
		interval = 6 * time.Hour
	}

	if err := a.cleanupJob.Run(ctx); err != nil {
		a.logger.Error("cleanup run failed", zap.Error(err))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := a.cleanupJob.Run(ctx); err != nil {
				a.logger.Error("cleanup run failed", zap.Error(err))
			}
		}
	}
}

func (a *App) Run() error {
	a.logger.Info("api server started", zap.String("addr", a.cfg.HTTP.Addr))
	err := a.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error

	if err := a.server.Shutdown(ctx); err != nil {
		shutdownErr = err
	}
	if a.postgres != nil {
		a.postgres.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil && shutdownErr == nil {
			shutdownErr = err
		}
	}

	return shutdownErr
}

func (a *App) Handler() http.Handler {
	return a.httpRouter
}
