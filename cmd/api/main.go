package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/support-desk/internal/api/http"
	"github.com/spec-kit/support-desk/internal/api/http/handlers"
	"github.com/spec-kit/support-desk/internal/auth"
	"github.com/spec-kit/support-desk/internal/config"
	"github.com/spec-kit/support-desk/internal/events"
	"github.com/spec-kit/support-desk/internal/intent"
	"github.com/spec-kit/support-desk/internal/observability"
	"github.com/spec-kit/support-desk/internal/persistence"
	"github.com/spec-kit/support-desk/internal/repository"
	"github.com/spec-kit/support-desk/internal/routing"
	"github.com/spec-kit/support-desk/internal/scheduler"
	"github.com/spec-kit/support-desk/internal/service"
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

	pool := pg.PoolHandle()
	userRepo := repository.NewUserRepository(pool)
	ticketRepo := repository.NewTicketRepository(pool)
	chatRepo := repository.NewChatRepository(pool)

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()

	notifications := service.NewNotificationService(dispatcher, userRepo, logger, cfg.Notification)
	notifications.RegisterHandlers()

	var chatModel model.BaseChatModel
	if cfg.OpenAI.APIKey != "" {
		chatModel, err = openai.NewChatModel(ctx, &openai.ChatModelConfig{
			BaseURL: cfg.OpenAI.BaseURL,
			Model:   cfg.OpenAI.Model,
			APIKey:  cfg.OpenAI.APIKey,
		})
		if err != nil {
			logger.Fatal("failed to init chat model", zap.Error(err))
		}
	} else {
		logger.Warn("no OpenAI API key configured, model paths degrade to fallbacks")
	}

	var labeler routing.Labeler
	if chatModel != nil {
		labeler = routing.NewModelLabelerWith(chatModel)
	}
	router := routing.NewRouter(labeler, cfg.Routing, logger, metrics)

	detector := intent.NewDetector(
		intent.NewModelDetector(chatModel, logger),
		intent.NewRuleDetector(),
	)

	agentService := service.NewAgentService(service.AgentDependencies{
		TicketRepo: ticketRepo,
		Router:     router,
		Dispatcher: dispatcher,
		Logger:     logger,
	})

	conversationService := service.NewConversationService(cfg.Chat, service.ConversationDependencies{
		ChatRepo:   chatRepo,
		TicketRepo: ticketRepo,
		Detector:   detector,
		Executor:   agentService,
		Responder:  service.NewModelResponder(chatModel, logger),
		Logger:     logger,
	})

	revoker := auth.NewRedisRevoker(redis.Client)
	authService := service.NewAuthService(*cfg, service.AuthDependencies{
		UserRepo: userRepo,
		Revoker:  revoker,
	})
	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), userRepo, revoker)

	sweeper := scheduler.New(cfg.Scheduler, scheduler.Dependencies{
		TicketRepo: ticketRepo,
		Dispatcher: dispatcher,
		Logger:     logger,
		Metrics:    metrics,
	})
	sweeper.Start(ctx)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Users:          handlers.NewUsersHandler(authService),
		Tickets:        handlers.NewTicketsHandler(agentService),
		Chat:           handlers.NewChatHandler(conversationService, logger),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	sweeper.Stop()
	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
