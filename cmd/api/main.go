package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/sujet-portal-api/internal/config"
	"github.com/noah-isme/sujet-portal-api/internal/database"
	"github.com/noah-isme/sujet-portal-api/internal/handler"
	"github.com/noah-isme/sujet-portal-api/internal/middleware"
	"github.com/noah-isme/sujet-portal-api/internal/models"
	"github.com/noah-isme/sujet-portal-api/internal/repository"
	"github.com/noah-isme/sujet-portal-api/internal/router"
	"github.com/noah-isme/sujet-portal-api/internal/service"
	"github.com/noah-isme/sujet-portal-api/pkg/ai"
	cloud "github.com/noah-isme/sujet-portal-api/pkg/cloudinary"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", cfg.AppName).Logger()

	db, err := database.Connect(cfg.DatabaseURL, database.PoolOptions{
		MaxOpenConns:    cfg.DatabaseMaxOpenConns,
		MaxIdleConns:    cfg.DatabaseMaxIdleConns,
		ConnMaxLifetime: cfg.DatabaseConnLifetime,
	})
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer func() {
		if err := database.Close(db); err != nil {
			logger.Warn().Err(err).Msg("failed to close database")
		}
	}()

	if err := db.AutoMigrate(models.All()...); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	if redisClient == nil {
		logger.Warn().Msg("redis url not set, view cache disabled")
	} else {
		defer redisClient.Close()
	}

	natsConn, err := database.ConnectNATS(cfg.NATSURL, cfg.AppName)
	if err != nil {
		log.Fatalf("failed to connect to nats: %v", err)
	}
	if natsConn != nil {
		defer natsConn.Close()
	}

	var archiver service.SubmissionArchiver
	if cfg.ArchiveEnabled() {
		uploader, err := cloud.New(cloud.Config{
			CloudName: cfg.CloudinaryCloudName,
			APIKey:    cfg.CloudinaryAPIKey,
			APISecret: cfg.CloudinaryAPISecret,
			Folder:    cfg.CloudinaryUploadFolder,
		}, logger)
		if err != nil {
			log.Fatalf("failed to create cloudinary client: %v", err)
		}
		archiver = uploader
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	maxUpload := int64(cfg.UploadMaxSizeMB) << 20

	userRepo := repository.NewUserRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	gradeRepo := repository.NewGradeRepository(db)
	activityRepo := repository.NewActivityLogRepository(db)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	viewEvents := service.NewViewEventService(redisClient, natsConn, cfg.NATSSubjectPrefix, logger)
	viewEvents.Start(ctx)

	activityService := service.NewActivityService(activityRepo, logger)
	authService := service.NewAuthService(userRepo, viewEvents, validate, cfg.JWTSecret, cfg.JWTTTL, logger)
	statsService := service.NewStatsService(userRepo, assignmentRepo, submissionRepo, gradeRepo, redisClient, service.StatsOptions{
		DashboardTTL: cfg.DashboardCacheTTL,
		RankingTTL:   cfg.RankingCacheTTL,
		Timeout:      cfg.RequestTimeout,
	}, logger)
	exerciseService := service.NewExerciseService(assignmentRepo, submissionRepo, gradeRepo, redisClient, service.ExerciseOptions{
		CacheTTL:      cfg.DashboardCacheTTL,
		Timeout:       cfg.RequestTimeout,
		ReportOverdue: cfg.ReportOverdue,
	}, logger)
	submissionService := service.NewSubmissionService(submissionRepo, assignmentRepo, viewEvents, archiver, activityService, validate, service.SubmissionOptions{
		MaxSizeBytes: maxUpload,
		Timeout:      cfg.RequestTimeout,
	}, logger)
	assignmentService := service.NewAssignmentService(assignmentRepo, viewEvents, activityService, validate, maxUpload, logger)
	gradeService := service.NewGradeService(gradeRepo, userRepo, assignmentRepo, viewEvents, activityService, validate, logger)
	rosterService := service.NewStudentRosterService(repository.NewStudentRosterRepository(db), validate, activityService, logger)
	analyticsService := service.NewAnalyticsService(userRepo, assignmentRepo, submissionRepo, gradeRepo, cfg.RequestTimeout, logger)

	var evaluationService service.EvaluationService
	if cfg.OpenAIAPIKey != "" {
		evaluator, err := ai.NewOpenAIEvaluator(ai.OpenAIConfig{
			APIKey: cfg.OpenAIAPIKey,
			Model:  cfg.OpenAIModel,
			Logger: logger,
		})
		if err != nil {
			log.Fatalf("failed to create ai evaluator: %v", err)
		}
		evaluationService = service.NewEvaluationService(submissionRepo, assignmentRepo, evaluator, activityService, logger)
	}

	checks := map[string]handler.DependencyCheck{
		"database": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}
	if natsConn != nil {
		checks["nats"] = func(context.Context) error {
			if !natsConn.IsConnected() {
				return fmt.Errorf("nats status %s", natsConn.Status())
			}
			return nil
		}
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    int(maxUpload) + 1<<20,
	})

	var limiterStorage fiber.Storage
	if redisClient != nil {
		limiterStorage = database.NewRedisStorage(redisClient, "ratelimit:")
	}

	middleware.Register(app, middleware.Config{Logger: &logger, AllowOrigins: cfg.CORSAllowOrigins})
	router.Register(app, cfg, router.Dependencies{
		AuthHandler:             handler.NewAuthHandler(authService, validate, logger),
		StudentDashboardHandler: handler.NewStudentDashboardHandler(statsService, exerciseService, logger),
		AssignmentHandler:       handler.NewAssignmentHandler(assignmentService, validate, maxUpload, logger),
		SubmissionHandler:       handler.NewSubmissionHandler(submissionService, evaluationService, maxUpload, logger),
		GradeHandler:            handler.NewGradeHandler(gradeService, validate, logger),
		AnalyticsHandler:        handler.NewAnalyticsHandler(analyticsService, logger),
		ActivityHandler:         handler.NewActivityHandler(activityService, logger),
		StudentRosterHandler:    handler.NewStudentRosterHandler(rosterService, validate, logger),
		EventHandler:            handler.NewEventHandler(viewEvents, logger),
		DependencyChecks:        checks,
		JWTMiddleware:           middleware.JWTProtected(cfg.JWTSecret),
		SubmitRateLimit: middleware.RateLimit(middleware.RateLimitConfig{
			Name: "submissions", Max: 5, Window: time.Minute, Storage: limiterStorage,
		}),
		CredentialRateLimit: middleware.RateLimit(middleware.RateLimitConfig{
			Name: "credentials", Max: 10, Window: time.Minute, Storage: limiterStorage,
			Message: "trop de tentatives de connexion, réessayez dans une minute",
		}),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	logger.Info().Str("address", cfg.HTTPAddress()).Msg("server started")

	waitForShutdown(ctx, app, logger)
}

func waitForShutdown(ctx context.Context, app *fiber.App, logger zerolog.Logger) {
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	logger.Info().Msg("server stopped")
}
