package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/latemark-go-api/internal/config"
	"github.com/noah-isme/latemark-go-api/internal/database"
	"github.com/noah-isme/latemark-go-api/internal/handler"
	"github.com/noah-isme/latemark-go-api/internal/middleware"
	"github.com/noah-isme/latemark-go-api/internal/models"
	"github.com/noah-isme/latemark-go-api/internal/policy"
	"github.com/noah-isme/latemark-go-api/internal/repository"
	"github.com/noah-isme/latemark-go-api/internal/router"
	"github.com/noah-isme/latemark-go-api/internal/service"
	"github.com/noah-isme/latemark-go-api/pkg/ai"
	cloud "github.com/noah-isme/latemark-go-api/pkg/cloudinary"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	location, err := cfg.Location()
	if err != nil {
		log.Fatalf("failed to resolve ledger timezone: %v", err)
	}

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(&models.Student{}, &models.AuditLog{}); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(cfg.RedisURL)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
	} else {
		logger.Warn().Msg("redis not configured, report caching and cross-node feed disabled")
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer natsConn.Close()
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	ledgerRepo := repository.NewLedgerRepository(db)
	auditRepo := repository.NewAuditLogRepository(db)

	engine := policy.NewEngine(policy.Config{
		ExcuseDays:     cfg.ExcuseDays,
		FinePerDay:     cfg.FinePerDay,
		AlertThreshold: cfg.AlertThreshold,
	})

	rootCtx, stopServices := context.WithCancel(context.Background())
	defer stopServices()

	auditService := service.NewAuditService(auditRepo, logger)
	feedService := service.NewFeedService(redisClient, "latemark", natsConn, logger)
	feedService.Start(rootCtx)

	ledgerService := service.NewLedgerService(ledgerRepo, auditService, feedService, engine, validate, logger, service.LedgerOptions{
		UndoWindow:      cfg.UndoWindow,
		StoreTimeout:    cfg.StoreTimeout,
		ConflictRetries: cfg.ConflictRetries,
		Location:        location,
	})

	reportService := service.NewReportService(ledgerRepo, redisClient, logger, service.ReportOptions{
		CacheTTL: cfg.ReportCacheTTL,
		Location: location,
	})

	var summarizer ai.Summarizer
	switch cfg.AIProvider {
	case "openai":
		if cfg.OpenAIAPIKey != "" {
			openaiSummarizer, err := ai.NewOpenAISummarizer(ai.OpenAIConfig{
				APIKey: cfg.OpenAIAPIKey,
				Logger: logger,
			})
			if err != nil {
				log.Fatalf("failed to create openai summarizer: %v", err)
			}
			summarizer = openaiSummarizer
		}
	case "anthropic":
		if cfg.AnthropicAPIKey != "" {
			anthropicSummarizer, err := ai.NewAnthropicSummarizer(ai.AnthropicConfig{APIKey: cfg.AnthropicAPIKey})
			if err != nil {
				log.Fatalf("failed to create anthropic summarizer: %v", err)
			}
			summarizer = anthropicSummarizer
		}
	}
	if summarizer == nil {
		logger.Warn().Msg("ai summarizer not configured, insight narratives disabled")
	}

	insightsService := service.NewInsightsService(ledgerRepo, logger, service.InsightsOptions{
		Summarizer: summarizer,
		Location:   location,
	})

	var evidenceHandler *handler.EvidenceHandler
	if cfg.CloudinaryCloudName != "" {
		uploader, err := cloud.New(cloud.Config{
			CloudName: cfg.CloudinaryCloudName,
			APIKey:    cfg.CloudinaryAPIKey,
			APISecret: cfg.CloudinaryAPISecret,
			Folder:    cfg.CloudinaryFolder,
		}, logger)
		if err != nil {
			log.Fatalf("failed to create cloudinary client: %v", err)
		}

		evidenceService := service.NewEvidenceService(uploader, cfg.EvidenceMaxSizeMB, logger)
		evidenceHandler = handler.NewEvidenceHandler(evidenceService, logger)
	} else {
		logger.Warn().Msg("cloudinary not configured, evidence uploads disabled")
	}

	ledgerHandler := handler.NewLedgerHandler(ledgerService, logger)
	reportHandler := handler.NewReportHandler(reportService, logger)
	auditHandler := handler.NewAuditHandler(auditService, logger)
	insightsHandler := handler.NewInsightsHandler(insightsService, logger)
	feedHandler := handler.NewFeedHandler(feedService, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		LedgerHandler:   ledgerHandler,
		ReportHandler:   reportHandler,
		AuditHandler:    auditHandler,
		InsightsHandler: insightsHandler,
		EvidenceHandler: evidenceHandler,
		FeedHandler:     feedHandler,
		JWTMiddleware:   middleware.JWTProtected(cfg.JWTSecret),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app, stopServices)
}

func waitForShutdown(app *fiber.App, stopServices context.CancelFunc) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()
	stopServices()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
