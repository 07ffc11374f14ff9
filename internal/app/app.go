package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/priazovimpact/auth-service/internal/cleanup"
	"github.com/priazovimpact/auth-service/internal/config"
	"github.com/priazovimpact/auth-service/internal/http/handler"
	"github.com/priazovimpact/auth-service/internal/http/router"
	"github.com/priazovimpact/auth-service/internal/mail"
	"github.com/priazovimpact/auth-service/internal/observability"
	"github.com/priazovimpact/auth-service/internal/repository"
	"github.com/priazovimpact/auth-service/internal/security"
	"github.com/priazovimpact/auth-service/internal/service"
)

type App struct {
	Config        *config.Config
	Logger        *slog.Logger
	Server        *http.Server
	Sweeper       *cleanup.Sweeper
	Observability *observability.Runtime
}

// New wires the whole auth core from configuration. Construction is the
// only place dependencies are assembled; everything downstream receives
// them through constructors.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	runtime, err := observability.InitRuntime(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	db, err := repository.Open(cfg)
	if err != nil {
		return nil, err
	}

	principals := repository.NewPrincipalRepository(db)
	sessions := repository.NewSessionRepository(db)
	resetTokens := repository.NewResetTokenRepository(db)
	denylist := repository.NewRevokedTokenRepository(db)

	codec := security.NewTokenCodec(
		cfg.Issuer, cfg.Audience,
		cfg.AccessTokenSecret, cfg.RefreshTokenSecret,
		cfg.AccessTokenTTL, cfg.RefreshTokenTTL,
	)
	hasher := security.NewPasswordHasher(cfg.BcryptCost)

	var cache service.TokenValidationCache
	switch cfg.CacheBackend {
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		cache = service.NewRedisTokenValidationCache(client, "")
	case "memory":
		cache = service.NewInMemoryTokenValidationCache()
	default:
		cache = service.NewNoopTokenValidationCache()
	}

	var mailer service.EmailSender
	if cfg.ResendAPIKey != "" {
		mailer = mail.NewResendSender(cfg.ResendAPIKey, cfg.MailFrom, logger)
	} else {
		logger.Warn("no mail delivery key configured, password-reset emails disabled")
		mailer = service.NewNoopEmailSender()
	}

	authService := service.NewAuthService(codec, hasher, principals, sessions, denylist, cache, logger)
	resetService := service.NewPasswordResetService(hasher, principals, resetTokens, sessions, mailer, logger)

	h := router.NewRouter(router.Dependencies{
		AuthHandler:     handler.NewAuthHandler(authService),
		PasswordHandler: handler.NewPasswordHandler(resetService),
		AccessValidator: authService,
		EnableOTelHTTP:  cfg.OTELMetricsEnabled,
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       time.Minute,
	}

	sweeper := cleanup.NewSweeper(logger,
		cleanup.Target{Name: "sessions", Interval: cfg.SessionSweepInterval, Delete: sessions.DeleteExpired},
		cleanup.Target{Name: "reset_tokens", Interval: cfg.ResetTokenSweepInterval, Delete: resetTokens.DeleteExpired},
		cleanup.Target{Name: "revoked_tokens", Interval: cfg.DenylistSweepInterval, Delete: denylist.DeleteExpired},
	)

	return &App{
		Config:        cfg,
		Logger:        logger,
		Server:        server,
		Sweeper:       sweeper,
		Observability: runtime,
	}, nil
}

// Run serves HTTP and the cleanup sweeper until ctx is cancelled, then
// drains connections and shuts observability down.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.Info("http server listening", "addr", a.Server.Addr)
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return a.Sweeper.Run(ctx)
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return a.Server.Shutdown(shutdownCtx)
	})

	err := g.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if obsErr := a.Observability.Shutdown(shutdownCtx); obsErr != nil {
		a.Logger.Error("observability shutdown failed", "error", obsErr)
	}
	return err
}
