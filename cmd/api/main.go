package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/canna-agent/backend/internal/agent"
	"github.com/canna-agent/backend/internal/api/handlers"
	cacheRedis "github.com/canna-agent/backend/internal/cache/redis"
	"github.com/canna-agent/backend/internal/dispatch"
	"github.com/canna-agent/backend/internal/llm"
	"github.com/canna-agent/backend/internal/metrics"
	"github.com/canna-agent/backend/internal/middleware/ratelimit"
	"github.com/canna-agent/backend/internal/middleware/security"
	"github.com/canna-agent/backend/internal/middleware/validation"
	"github.com/canna-agent/backend/internal/orchestrator"
	"github.com/canna-agent/backend/internal/storage/sqlite"
	"github.com/canna-agent/backend/internal/verification"
	"github.com/canna-agent/backend/pkg/config"
	appLogger "github.com/canna-agent/backend/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting Canna Agent API Server")

	metrics.Init()

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	err = sqliteClient.InitSchema()
	if err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	var cacheClient *cacheRedis.Client
	if cfg.Redis.Enabled {
		cacheClient, err = cacheRedis.NewClient(
			cfg.Redis.Host,
			cfg.Redis.Port,
			cfg.Redis.Password,
			cfg.Redis.DB,
		)
		if err != nil {
			appLogger.Warn("Redis unavailable, running without response cache", zap.Error(err))
			cacheClient = nil
		} else {
			defer cacheClient.Close()
		}
	}

	llmClient := llm.NewClient(
		cfg.LLM.APIKey,
		cfg.LLM.Model,
		cfg.LLM.Temperature,
		cfg.LLM.MaxTokens,
		cfg.LLM.TimeoutSec,
	)

	registry := agent.NewRegistry()
	cacheTTL := time.Duration(cfg.Redis.CacheTTL) * time.Second
	for _, agentType := range cfg.Orchestrator.AgentTypes {
		registry.Register(agent.NewLLMAgent(agentType, llmClient, cacheClient, cacheTTL))
	}
	appLogger.Info("Agent registry populated", zap.Strings("agent_types", registry.Types()))

	verifierService := verification.NewService(cfg.Orchestrator.Tolerance)

	policy := orchestrator.Policy{
		ConfidenceThreshold: cfg.Orchestrator.ConfidenceThreshold,
		RiskAgentTypes:      cfg.Orchestrator.RiskAgentTypes,
		RiskKeywords:        cfg.Orchestrator.RiskKeywords,
		Adjacency:           cfg.Orchestrator.Adjacency,
		MaxVerifiers:        cfg.Orchestrator.MaxVerifiers,
	}

	orch := orchestrator.New(sqliteClient, registry, verifierService, policy)

	dispatcher := dispatch.New(orch, cfg.Orchestrator.QueueSize, cfg.Orchestrator.Workers)
	dispatchCtx, cancelDispatch := context.WithCancel(context.Background())
	defer cancelDispatch()
	dispatcher.Start(dispatchCtx)

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{}))

	limiter := ratelimit.New(ratelimit.Config{
		Logger: appLogger.GetLogger(),
	})
	app.Use(limiter.Middleware())

	app.Use(validation.Middleware(validation.Config{
		Logger: appLogger.GetLogger(),
	}))

	queryHandler := handlers.NewQueryHandler(sqliteClient, registry, dispatcher)
	agentsHandler := handlers.NewAgentsHandler(sqliteClient, registry)
	wsHandler := handlers.NewWebSocketHandler(sqliteClient)

	api := app.Group("/api/v1")

	api.Post("/queries", queryHandler.SubmitQuery)
	api.Get("/queries/:id", queryHandler.GetQuery)
	api.Get("/queries/:id/responses", queryHandler.ListResponses)
	api.Get("/queries/:id/verifications", queryHandler.ListVerifications)

	api.Get("/agents", agentsHandler.ListAgents)
	api.Post("/agents/:type/heartbeat", agentsHandler.Heartbeat)

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

	app.Get("/metrics", metrics.MetricsHandler())

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/queries", websocket.New(wsHandler.HandleConnection))

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	app.Shutdown()
	dispatcher.Stop()
	appLogger.Info("Server stopped")
}
