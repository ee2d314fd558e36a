package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/sujet-portal-api/internal/dto"
	"github.com/noah-isme/sujet-portal-api/internal/models"
	"github.com/noah-isme/sujet-portal-api/internal/repository"
)

type testRepos struct {
	db          *gorm.DB
	users       repository.UserRepository
	assignments repository.AssignmentRepository
	submissions repository.SubmissionRepository
	grades      repository.GradeRepository
	activity    repository.ActivityLogRepository
}

func newTestRepos(t *testing.T) testRepos {
	t.Helper()
	dsn := "file:svc_" + strings.NewReplacer("/", "_", " ", "_").Replace(t.Name()) + "?mode=memory&cache=shared&_foreign_keys=on"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(models.All()...))

	return testRepos{
		db:          db,
		users:       repository.NewUserRepository(db),
		assignments: repository.NewAssignmentRepository(db),
		submissions: repository.NewSubmissionRepository(db),
		grades:      repository.NewGradeRepository(db),
		activity:    repository.NewActivityLogRepository(db),
	}
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mini, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mini.Close)
	client := redis.NewClient(&redis.Options{Addr: mini.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mini, client
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func testValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}

func (r testRepos) user(t *testing.T, email string, roles ...string) models.User {
	t.Helper()
	hashed, err := HashPassword("secret123")
	require.NoError(t, err)
	user := models.User{Email: email, PasswordHash: hashed, FirstName: "Test", LastName: email, Active: true}
	require.NoError(t, r.users.Create(context.Background(), &user, roles...))
	return user
}

func (r testRepos) assignment(t *testing.T, title, status string, open, deadline time.Time) models.Assignment {
	t.Helper()
	assignment := models.Assignment{Title: title, Status: status, OpenDate: open, Deadline: deadline}
	require.NoError(t, r.assignments.Create(context.Background(), &assignment))
	return assignment
}

func (r testRepos) grade(t *testing.T, studentID, assignmentID uint, value float64) {
	t.Helper()
	grade := models.Grade{StudentID: studentID, AssignmentID: assignmentID, Value: value}
	require.NoError(t, r.grades.Upsert(context.Background(), &grade))
}

func (r testRepos) submission(t *testing.T, studentID, assignmentID uint) models.Submission {
	t.Helper()
	submission := models.Submission{
		StudentID:    studentID,
		AssignmentID: assignmentID,
		Payload:      []byte("SELECT 1;"),
		FileName:     "reponse.sql",
		MimeType:     "text/plain; charset=utf-8",
		SizeBytes:    9,
		SubmittedAt:  time.Now().UTC(),
	}
	require.NoError(t, r.submissions.Upsert(context.Background(), &submission))
	return submission
}

type recordingInvalidator struct {
	mu          sync.Mutex
	views       [][2]uint
	grades      [][2]uint
	assignments []uint
	rankings    int
	err         error
}

func (r *recordingInvalidator) InvalidateViews(_ context.Context, assignmentID, studentID uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.views = append(r.views, [2]uint{assignmentID, studentID})
	return r.err
}

func (r *recordingInvalidator) InvalidateGrades(_ context.Context, assignmentID, studentID uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.grades = append(r.grades, [2]uint{assignmentID, studentID})
	return r.err
}

func (r *recordingInvalidator) InvalidateAssignment(_ context.Context, assignmentID uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.assignments = append(r.assignments, assignmentID)
	return r.err
}

func (r *recordingInvalidator) InvalidateRanking(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rankings++
	return r.err
}

type stubActivityRecorder struct {
	mu      sync.Mutex
	entries []ActivityEntry
}

func (s *stubActivityRecorder) Record(_ context.Context, entry ActivityEntry) (dto.ActivityResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return dto.ActivityResponse{Action: entry.Action}, nil
}

func (s *stubActivityRecorder) actions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	actions := make([]string, 0, len(s.entries))
	for _, entry := range s.entries {
		actions = append(actions, entry.Action)
	}
	return actions
}

func ptrUint(v uint) *uint {
	return &v
}
