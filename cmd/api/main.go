package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/meetup-service/internal/api/http/handlers"
	"github.com/spec-kit/meetup-service/internal/auth"
	"github.com/spec-kit/meetup-service/internal/cache"
	"github.com/spec-kit/meetup-service/internal/config"
	"github.com/spec-kit/meetup-service/internal/events"
	"github.com/spec-kit/meetup-service/internal/observability"
	"github.com/spec-kit/meetup-service/internal/persistence"
	"github.com/spec-kit/meetup-service/internal/repository"
	"github.com/spec-kit/meetup-service/internal/service"
	"github.com/spec-kit/meetup-service/internal/worker"

	apihttp "github.com/spec-kit/meetup-service/internal/api/http"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()

	postgres, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("postgres connection failed", zap.Error(err))
	}
	defer postgres.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, postgres.PoolHandle(), logger); err != nil {
			logger.Fatal("migrations failed", zap.Error(err))
		}
	}

	redisStore := persistence.NewRedis(cfg.Redis, logger)
	defer redisStore.Close()

	pool := postgres.PoolHandle()
	userRepo := repository.NewUserRepository(pool)
	requestRepo := repository.NewRequestRepository(pool)
	matchRepo := repository.NewMatchRepository(pool)
	messageRepo := repository.NewMessageRepository(pool)

	matchCache := cache.NewMatchViewCache(redisStore, cfg.Matching.MatchCacheTTL(), logger)
	dispatcher := events.NewInMemoryDispatcher()
	metrics := observability.NewMetrics()

	authService := service.NewAuthService(cfg.Auth, userRepo)
	matchService := service.NewMatchService(service.MatchDependencies{
		UserRepo:    userRepo,
		RequestRepo: requestRepo,
		MatchRepo:   matchRepo,
		Tx:          postgres,
		ViewCache:   matchCache,
		Dispatcher:  dispatcher,
		Metrics:     metrics,
	})
	threadService := service.NewThreadService(service.ThreadDependencies{
		MatchRepo:   matchRepo,
		MessageRepo: messageRepo,
		Dispatcher:  dispatcher,
	})
	notificationService := service.NewNotificationService(dispatcher, logger, cfg.Notification)
	worker.StartNotificationWorker(notificationService)

	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), userRepo)

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: cfg.App.Env == "production",
	})

	apihttp.RegisterMiddlewares(app, logger, metrics, cfg.App)
	apihttp.RegisterRoutes(app, apihttp.RouteConfig{
		Health:   handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, postgres, redisStore),
		Users:    handlers.NewUsersHandler(authService),
		Requests: handlers.NewRequestsHandler(matchService),
		Matches:  handlers.NewMatchesHandler(matchService),
		Messages: handlers.NewMessagesHandler(threadService),
		Auth:     authMiddleware,
	})

	go func() {
		logger.Info("server starting", zap.String("addr", cfg.App.Addr()))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("server stopped", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
	logger.Info("server stopped cleanly")
}

func waitForShutdown(logger *zap.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logger.Info("shutdown signal received", zap.String("signal", sig.String()))
}
