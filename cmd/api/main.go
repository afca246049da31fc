package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-activity-log/internal/config"
	"github.com/noah-isme/gema-activity-log/internal/database"
	"github.com/noah-isme/gema-activity-log/internal/handler"
	"github.com/noah-isme/gema-activity-log/internal/middleware"
	"github.com/noah-isme/gema-activity-log/internal/models"
	"github.com/noah-isme/gema-activity-log/internal/repository"
	"github.com/noah-isme/gema-activity-log/internal/router"
	"github.com/noah-isme/gema-activity-log/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", cfg.AppName).Logger()
	if cfg.AppEnv == "development" {
		logger = logger.Level(zerolog.DebugLevel)
	} else {
		logger = logger.Level(zerolog.InfoLevel)
	}

	db, err := database.Connect(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := database.Migrate(db); err != nil {
		log.Fatalf("%v", err)
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(context.Background(), cfg.RedisURL)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName, logger)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer natsConn.Drain()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	validate := validator.New(validator.WithRequiredStructEnabled())

	activityRepo := repository.NewActivityLogRepository(db)
	userRepo := repository.NewUserRepository(db)
	productRepo := repository.NewProductRepository(db)
	contactRepo := repository.NewContactMessageRepository(db)

	events := service.NewActivityEventBus(redisClient, cfg.NATSSubject, natsConn, logger)
	events.Start(ctx)

	activityService := service.NewActivityService(activityRepo, validate, service.NewMetadataSchemas(), events, redisClient, logger)
	activityWriter := service.NewActivityWriter(activityService, logger, cfg.WriterQueueSize, cfg.WriterWorkers)

	var background sync.WaitGroup
	background.Add(1)
	go func() {
		defer background.Done()
		activityWriter.Run(ctx)
	}()

	registry := service.NewEntityRegistry(logger)
	if _, err := service.RegisterModel[models.Product](registry, db); err != nil {
		log.Fatalf("failed to register product entity: %v", err)
	}
	if _, err := service.RegisterModel[models.ContactMessage](registry, db); err != nil {
		log.Fatalf("failed to register contact entity: %v", err)
	}
	if _, err := service.RegisterModel[models.User](registry, db); err != nil {
		log.Fatalf("failed to register user entity: %v", err)
	}

	retention := service.NewRetentionService(activityRepo, service.RetentionPolicy{
		UserDays:  cfg.RetentionUserDays,
		GuestDays: cfg.RetentionGuestDays,
	}, logger)
	background.Add(1)
	go func() {
		defer background.Done()
		retention.Run(ctx, cfg.RetentionInterval)
	}()

	queryService := service.NewActivityQueryService(activityRepo, validate, redisClient, cfg.QueryCacheTTL, logger)
	summaryService := service.NewActivitySummaryService(repository.NewActivityStatsRepository(db), redisClient, cfg.QueryCacheTTL, logger)
	productService := service.NewProductService(productRepo, validate, activityWriter, logger)
	userService := service.NewUserService(userRepo, validate, activityWriter, logger)
	contactService := service.NewContactService(contactRepo, redisClient, validate, activityWriter, logger)

	probes := []handler.HealthProbe{{
		Name: "database",
		Check: func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}}
	if redisClient != nil {
		probes = append(probes, handler.HealthProbe{
			Name:  "redis",
			Check: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		})
	}
	if natsConn != nil {
		probes = append(probes, handler.HealthProbe{
			Name: "nats",
			Check: func(context.Context) error {
				if !natsConn.IsConnected() {
					return fmt.Errorf("nats status %s", natsConn.Status())
				}
				return nil
			},
		})
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		Immutable:    true,
	})

	middleware.Register(app, middleware.Config{Logger: &logger, AllowOrigins: cfg.CORSAllowOrigins})
	router.Register(app, cfg, router.Dependencies{
		ActivityHandler:        handler.NewActivityHandler(queryService, activityService, registry, validate, logger),
		ActivityStreamHandler:  handler.NewActivityStreamHandler(events, logger),
		ActivitySummaryHandler: handler.NewActivitySummaryHandler(summaryService, logger),
		ProductHandler:         handler.NewProductHandler(productService, logger),
		ContactHandler:         handler.NewContactHandler(contactService, logger),
		UserHandler:            handler.NewUserHandler(userService, logger),
		JWTMiddleware:          middleware.JWTProtected(cfg.JWTSecret),
		OptionalJWTMiddleware:  middleware.OptionalJWT(cfg.JWTSecret),
		HealthProbes:           probes,
		Logger:                 logger,
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)

	// Stop the background workers only after the server has stopped accepting
	// requests, so queued activity records are flushed.
	cancel()
	background.Wait()
	log.Println("activity writer drained")
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
