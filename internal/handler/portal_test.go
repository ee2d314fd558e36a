package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/sujet-portal-api/internal/config"
	"github.com/noah-isme/sujet-portal-api/internal/handler"
	"github.com/noah-isme/sujet-portal-api/internal/middleware"
	"github.com/noah-isme/sujet-portal-api/internal/models"
	"github.com/noah-isme/sujet-portal-api/internal/repository"
	"github.com/noah-isme/sujet-portal-api/internal/router"
	"github.com/noah-isme/sujet-portal-api/internal/service"
)

const portalSecret = "portal-secret"

type portal struct {
	app         *fiber.App
	db          *gorm.DB
	users       repository.UserRepository
	assignments repository.AssignmentRepository
	events      service.ViewEventService
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Meta    json.RawMessage `json:"meta"`
}

func setupPortal(t *testing.T) *portal {
	t.Helper()

	dsn := "file:handler_" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared&_foreign_keys=on"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(models.All()...))

	mini, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mini.Close)
	redisClient := redis.NewClient(&redis.Options{Addr: mini.Addr()})
	t.Cleanup(func() { _ = redisClient.Close() })

	logger := zerolog.Nop()
	validate := validator.New(validator.WithRequiredStructEnabled())
	const maxBytes = 1 << 20

	users := repository.NewUserRepository(db)
	assignments := repository.NewAssignmentRepository(db)
	submissions := repository.NewSubmissionRepository(db)
	grades := repository.NewGradeRepository(db)
	activityRepo := repository.NewActivityLogRepository(db)

	events := service.NewViewEventService(redisClient, nil, "", logger)
	activity := service.NewActivityService(activityRepo, logger)
	authService := service.NewAuthService(users, events, validate, portalSecret, time.Hour, logger)
	stats := service.NewStatsService(users, assignments, submissions, grades, redisClient, service.StatsOptions{
		DashboardTTL: time.Minute, RankingTTL: time.Minute, Timeout: 5 * time.Second,
	}, logger)
	exercises := service.NewExerciseService(assignments, submissions, grades, redisClient, service.ExerciseOptions{
		CacheTTL: time.Minute, Timeout: 5 * time.Second,
	}, logger)
	submissionService := service.NewSubmissionService(submissions, assignments, events, nil, activity, validate, service.SubmissionOptions{
		MaxSizeBytes: maxBytes, Timeout: 5 * time.Second,
	}, logger)
	assignmentService := service.NewAssignmentService(assignments, events, activity, validate, maxBytes, logger)
	gradeService := service.NewGradeService(grades, users, assignments, events, activity, validate, logger)
	roster := service.NewStudentRosterService(repository.NewStudentRosterRepository(db), validate, activity, logger)
	analytics := service.NewAnalyticsService(users, assignments, submissions, grades, 5*time.Second, logger)

	app := fiber.New()
	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, config.Config{AppName: "Test", AppEnv: "test", JWTSecret: portalSecret}, router.Dependencies{
		AuthHandler:             handler.NewAuthHandler(authService, validate, logger),
		StudentDashboardHandler: handler.NewStudentDashboardHandler(stats, exercises, logger),
		AssignmentHandler:       handler.NewAssignmentHandler(assignmentService, validate, maxBytes, logger),
		SubmissionHandler:       handler.NewSubmissionHandler(submissionService, nil, maxBytes, logger),
		GradeHandler:            handler.NewGradeHandler(gradeService, validate, logger),
		AnalyticsHandler:        handler.NewAnalyticsHandler(analytics, logger),
		ActivityHandler:         handler.NewActivityHandler(activity, logger),
		StudentRosterHandler:    handler.NewStudentRosterHandler(roster, validate, logger),
		EventHandler:            handler.NewEventHandler(events, logger),
		DependencyChecks: map[string]handler.DependencyCheck{
			"redis": func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		},
		JWTMiddleware: middleware.JWTProtected(portalSecret),
	})

	return &portal{app: app, db: db, users: users, assignments: assignments, events: events}
}

func (p *portal) user(t *testing.T, email, role string) (models.User, string) {
	t.Helper()
	hashed, err := service.HashPassword("secret123")
	require.NoError(t, err)
	user := models.User{Email: email, PasswordHash: hashed, FirstName: "Test", LastName: email, Active: true}
	require.NoError(t, p.users.Create(context.Background(), &user, role))

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   strconv.FormatUint(uint64(user.ID), 10),
		"email": email,
		"role":  role,
		"exp":   time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(portalSecret))
	require.NoError(t, err)
	return user, signed
}

func (p *portal) assignment(t *testing.T, title string, open, deadline time.Time) models.Assignment {
	t.Helper()
	assignment := models.Assignment{
		Title:    title,
		Status:   models.AssignmentStatusPublished,
		OpenDate: open,
		Deadline: deadline,
	}
	require.NoError(t, p.assignments.Create(context.Background(), &assignment))
	return assignment
}

func (p *portal) do(t *testing.T, method, path, token string, body io.Reader, contentType string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := p.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func (p *portal) doJSON(t *testing.T, method, path, token string, payload interface{}) *http.Response {
	t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}
	return p.do(t, method, path, token, body, fiber.MIMEApplicationJSON)
}

func (p *portal) submit(t *testing.T, token string, assignmentID uint, fileName string, content []byte, comment string) *http.Response {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	require.NoError(t, writer.WriteField("assignment_id", strconv.FormatUint(uint64(assignmentID), 10)))
	if comment != "" {
		require.NoError(t, writer.WriteField("comment", comment))
	}
	if content != nil {
		part, err := writer.CreateFormFile("file", fileName)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return p.do(t, http.MethodPost, "/api/v1/student/submissions", token, body, writer.FormDataContentType())
}

func decodeEnvelope(t *testing.T, resp *http.Response, data interface{}) envelope {
	t.Helper()
	defer resp.Body.Close()
	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	if data != nil {
		require.NoError(t, json.Unmarshal(env.Data, data))
	}
	return env
}
