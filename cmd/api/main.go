package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/lgc13/gateway-service-example/internal/api/http"
	"github.com/lgc13/gateway-service-example/internal/api/http/handlers"
	"github.com/lgc13/gateway-service-example/internal/auth"
	"github.com/lgc13/gateway-service-example/internal/config"
	"github.com/lgc13/gateway-service-example/internal/observability"
	"github.com/lgc13/gateway-service-example/internal/persistence"
	"github.com/lgc13/gateway-service-example/internal/repository"
	"github.com/lgc13/gateway-service-example/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	userRepo := repository.NewUserRepository(pg.PoolHandle())
	verifier := auth.NewCredentialVerifier(userRepo, logger)
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL())
	limiter := auth.NewLoginLimiter(redis.ClientHandle(), cfg.Auth.LoginMaxAttempts, cfg.Auth.LoginAttemptWindow(), logger)

	authService := service.NewAuthService(cfg.Auth, service.Dependencies{
		UserRepo: userRepo,
		Verifier: verifier,
		Tokens:   tokens,
		Limiter:  limiter,
	}, logger)
	authMiddleware := auth.NewMiddleware(tokens, userRepo, logger)

	metrics := observability.NewMetrics()

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.Proxy.AllowedOrigin, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Auth:           handlers.NewAuthHandler(authService),
		Users:          handlers.NewUsersHandler(authService),
		Proxy:          handlers.NewProxyHandler(cfg.Proxy.UpstreamURL, logger),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
