package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/vetlink/consultation-service/internal/api/http"
	"github.com/vetlink/consultation-service/internal/api/http/handlers"
	"github.com/vetlink/consultation-service/internal/auth"
	"github.com/vetlink/consultation-service/internal/cache"
	"github.com/vetlink/consultation-service/internal/config"
	"github.com/vetlink/consultation-service/internal/events"
	"github.com/vetlink/consultation-service/internal/observability"
	"github.com/vetlink/consultation-service/internal/persistence"
	"github.com/vetlink/consultation-service/internal/realtime"
	"github.com/vetlink/consultation-service/internal/repository"
	"github.com/vetlink/consultation-service/internal/service"
	"github.com/vetlink/consultation-service/internal/worker"
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

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher(func(event events.Event, err error) {
		logger.Warn("event handler failed",
			zap.String("event_type", string(event.Type)),
			zap.String("consultation_id", event.ConsultationID),
			zap.Error(err))
	})

	pool := pg.PoolHandle()
	consultationRepo := repository.NewConsultationRepository(pool)
	historyRepo := repository.NewConsultationHistoryRepository(pool)
	soapNoteRepo := repository.NewSoapNoteRepository(pool)
	threadRepo := repository.NewFollowUpThreadRepository(pool)
	messageRepo := repository.NewFollowUpMessageRepository(pool)

	invalidator := cache.NewRedisInvalidator(redis.Client)
	messageBus := realtime.NewRedisMessageBus(redis.Client, logger)

	consultationService := service.NewConsultationService(consultationRepo, historyRepo, logger)
	editorService := service.NewSoapEditorService(soapNoteRepo, consultationRepo, dispatcher, cfg.Consultation.AutosaveInterval(), logger, metrics)
	followUpService := service.NewFollowUpService(service.FollowUpDependencies{
		ThreadRepo:  threadRepo,
		MessageRepo: messageRepo,
		Bus:         messageBus,
		Dispatcher:  dispatcher,
		Validity:    cfg.Consultation.FollowUpValidity(),
		Logger:      logger,
		Metrics:     metrics,
	})
	completionService := service.NewCompletionService(service.CompletionDependencies{
		Consultations: consultationService,
		Editor:        editorService,
		Invalidator:   invalidator,
		Provisioner:   followUpService,
		Dispatcher:    dispatcher,
		Logger:        logger,
		Metrics:       metrics,
	})
	notificationService := service.NewNotificationService(dispatcher, logger, cfg.Notification)
	worker.StartNotificationWorker(notificationService)

	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	authMiddleware := auth.NewAuthMiddleware(tokenManager)

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Consultations:  handlers.NewConsultationsHandler(consultationService, completionService),
		SoapNotes:      handlers.NewSoapNotesHandler(editorService),
		FollowUp:       handlers.NewFollowUpHandler(followUpService, consultationService),
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
