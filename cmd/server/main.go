package main

import (
	"context"
	"log"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	apiHandler "github.com/orgdesk/backend/api/handler"
	"github.com/orgdesk/backend/internal/config"
	"github.com/orgdesk/backend/internal/infrastructure/monitor"
	"github.com/orgdesk/backend/internal/infrastructure/outbox"
	pgInfra "github.com/orgdesk/backend/internal/infrastructure/postgres"
	redisInfra "github.com/orgdesk/backend/internal/infrastructure/redis"
	"github.com/orgdesk/backend/internal/middleware"
	"github.com/orgdesk/backend/internal/router"
	"github.com/orgdesk/backend/internal/services"
	"github.com/orgdesk/backend/internal/services/lifecycle"
	"github.com/orgdesk/backend/pkg/httpcontext"
	"github.com/orgdesk/backend/pkg/logger"
	"github.com/orgdesk/backend/repository/postgres"
	redisRepo "github.com/orgdesk/backend/repository/redis"
	authUC "github.com/orgdesk/backend/usecase/auth"
	groupsUC "github.com/orgdesk/backend/usecase/groups"
	tasksUC "github.com/orgdesk/backend/usecase/tasks"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	zapLogger, err := logger.New(logger.Config{
		Level:    cfg.Logger.Level,
		Encoding: cfg.Logger.Encoding,
	})
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer zapLogger.Sync()

	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	manager := lifecycle.New(cfg.Context.ShutdownTimeout, zapLogger)
	manager.Listen(cancel)

	if err := pgInfra.RunMigrations(cfg, zapLogger); err != nil {
		zapLogger.Fatal("migrations failed", zap.Error(err))
	}

	pool, err := pgInfra.NewPool(appCtx, cfg.Database, zapLogger)
	if err != nil {
		zapLogger.Fatal("postgres connection failed", zap.Error(err))
	}
	manager.Register("postgres", func(ctx context.Context) error {
		pool.Close()
		return nil
	})

	redisClient, err := redisInfra.NewClient(cfg.Redis)
	if err != nil {
		zapLogger.Fatal("redis connection failed", zap.Error(err))
	}
	manager.Register("redis", func(ctx context.Context) error {
		return redisClient.Close()
	})

	outboxStore, err := outbox.Open(cfg.Outbox.Path, "notifications")
	if err != nil {
		zapLogger.Fatal("failed to open notification outbox", zap.Error(err))
	}
	manager.Register("outbox", func(ctx context.Context) error {
		return outboxStore.Close()
	})

	mon := monitor.New(pool, redisClient, outboxStore, 10*time.Second, zapLogger)
	mon.Start()
	manager.Register("monitor", func(ctx context.Context) error {
		mon.Stop()
		return nil
	})

	userRepo := postgres.NewUserRepository(pool)
	taskRepo := postgres.NewTaskRepository(pool)
	groupRepo := postgres.NewGroupRepository(pool)
	notificationRepo := postgres.NewNotificationRepository(pool)
	sessionRepo := redisRepo.NewSessionRepository(redisClient, 24*time.Hour)

	notifier := services.NewNotifier(outboxStore, notificationRepo, zapLogger, services.NotifierConfig{
		Interval:   cfg.Outbox.DrainInterval,
		BatchSize:  cfg.Outbox.BatchSize,
		MaxRetries: cfg.Outbox.MaxRetry,
		Retention:  time.Duration(cfg.Outbox.RetentionHours) * time.Hour,
	})
	notifier.Start()
	manager.Register("notifier", func(ctx context.Context) error {
		notifier.Stop(ctx)
		return nil
	})

	watchHub := services.NewWatchHub(taskRepo, cfg.Watch.PollInterval, zapLogger)
	watchHub.Start()
	manager.Register("watch_hub", func(ctx context.Context) error {
		watchHub.Stop()
		return nil
	})

	authUseCase := authUC.New(userRepo, sessionRepo, zapLogger)
	groupService := groupsUC.New(groupRepo, userRepo, zapLogger)
	taskEngine := tasksUC.New(
		taskRepo,
		groupRepo,
		userRepo,
		notifier,
		tasksUC.NewRosterAuthorizer(groupRepo),
		watchHub,
		zapLogger,
	)

	ctxAdapter := httpcontext.NewAdapter(cfg.Context.RequestTimeout)

	handlers := router.Handlers{
		Auth:         apiHandler.NewAuthHandler(authUseCase, ctxAdapter, zapLogger, time.Hour),
		Task:         apiHandler.NewTaskHandler(taskEngine, userRepo, ctxAdapter, zapLogger),
		Workload:     apiHandler.NewWorkloadHandler(taskEngine, groupService, ctxAdapter, zapLogger),
		Group:        apiHandler.NewGroupHandler(groupService, ctxAdapter, zapLogger),
		Notification: apiHandler.NewNotificationHandler(notificationRepo, ctxAdapter, zapLogger),
		Health:       apiHandler.NewHealthHandler(mon, ctxAdapter, zapLogger),
	}

	authMiddleware := middleware.JWTAuth(cfg.JWT.Secret, zapLogger)
	r := router.New(handlers, authMiddleware)

	server := &fasthttp.Server{
		Handler:      r.Handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
		Name:         cfg.AppName,
	}

	go func() {
		zapLogger.Info("server started", zap.String("address", cfg.Address()))
		if err := server.ListenAndServe(cfg.Address()); err != nil {
			zapLogger.Fatal("server crashed", zap.Error(err))
		}
	}()

	manager.Register("http_server", func(ctx context.Context) error {
		return server.Shutdown()
	})

	<-appCtx.Done()

	if err := manager.Shutdown(context.Background()); err != nil {
		zapLogger.Error("graceful shutdown error", zap.Error(err))
	}
}
