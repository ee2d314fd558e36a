package main

import (
	"context"
	_ "embed"
	"flag"
	"log"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/sujet-portal-api/internal/config"
	"github.com/noah-isme/sujet-portal-api/internal/database"
	"github.com/noah-isme/sujet-portal-api/internal/models"
	"github.com/noah-isme/sujet-portal-api/internal/repository"
	"github.com/noah-isme/sujet-portal-api/internal/service"
)

//go:embed fixtures/default.json
var defaultFixture []byte

func main() {
	fixturePath := flag.String("fixture", "", "path to a JSON fixture (defaults to the embedded demo data)")
	timeout := flag.Duration("timeout", time.Minute, "maximum duration of the seeding run")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", "seed").Logger()

	document := defaultFixture
	if *fixturePath != "" {
		document, err = os.ReadFile(*fixturePath)
		if err != nil {
			log.Fatalf("failed to read fixture: %v", err)
		}
	}

	db, err := database.Connect(cfg.DatabaseURL, database.PoolOptions{MaxOpenConns: 1})
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer func() { _ = database.Close(db) }()

	if err := db.AutoMigrate(models.All()...); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	natsConn, err := database.ConnectNATS(cfg.NATSURL, cfg.AppName+"-seed")
	if err != nil {
		log.Fatalf("failed to connect to nats: %v", err)
	}
	if natsConn != nil {
		defer func() {
			if err := natsConn.Flush(); err != nil {
				logger.Warn().Err(err).Msg("failed to flush view events")
			}
			natsConn.Close()
		}()
	}

	seeder, err := service.NewSeedService(
		repository.NewUserRepository(db),
		repository.NewAssignmentRepository(db),
		repository.NewSubmissionRepository(db),
		repository.NewGradeRepository(db),
		service.NewViewEventService(redisClient, natsConn, cfg.NATSSubjectPrefix, logger),
		logger,
	)
	if err != nil {
		log.Fatalf("failed to build seeder: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	report, err := seeder.Seed(ctx, document)
	if err != nil {
		logger.Error().Err(err).Msg("seeding failed")
		os.Exit(1)
	}

	logger.Info().
		Int("users", report.Users).
		Int("assignments", report.Assignments).
		Int("submissions", report.Submissions).
		Int("grades", report.Grades).
		Msg("seeding completed")
}
