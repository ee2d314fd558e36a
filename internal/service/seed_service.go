package service

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gorm.io/gorm"

	"github.com/noah-isme/sujet-portal-api/internal/models"
	"github.com/noah-isme/sujet-portal-api/internal/repository"
)

//go:embed seed_fixture.schema.json
var seedFixtureSchema []byte

// ErrInvalidFixture indicates the seed document does not match the fixture schema.
var ErrInvalidFixture = errors.New("invalid seed fixture")

// SeedFixture is the document loaded by the seeding tool.
type SeedFixture struct {
	Users       []SeedUser       `json:"users"`
	Assignments []SeedAssignment `json:"assignments"`
	Submissions []SeedSubmission `json:"submissions"`
	Grades      []SeedGrade      `json:"grades"`
}

// SeedUser describes an account to create.
type SeedUser struct {
	Email         string   `json:"email"`
	Password      string   `json:"password"`
	FirstName     string   `json:"first_name"`
	LastName      string   `json:"last_name"`
	StudentNumber string   `json:"student_number"`
	Active        *bool    `json:"active"`
	Roles         []string `json:"roles"`
}

// SeedAssignment describes an assignment to create.
type SeedAssignment struct {
	Title          string    `json:"title"`
	Subtitle       string    `json:"subtitle"`
	Description    string    `json:"description"`
	Type           string    `json:"type"`
	Status         string    `json:"status"`
	OpenDate       time.Time `json:"open_date"`
	Deadline       time.Time `json:"deadline"`
	ProfessorEmail string    `json:"professor_email"`
}

// SeedSubmission describes a text submission to store.
type SeedSubmission struct {
	StudentEmail    string     `json:"student_email"`
	AssignmentTitle string     `json:"assignment_title"`
	FileName        string     `json:"file_name"`
	Content         string     `json:"content"`
	Comment         string     `json:"comment"`
	SubmittedAt     *time.Time `json:"submitted_at"`
}

// SeedGrade describes a grade to record.
type SeedGrade struct {
	StudentEmail    string  `json:"student_email"`
	AssignmentTitle string  `json:"assignment_title"`
	Value           float64 `json:"value"`
}

// SeedReport counts the rows written by a seeding run.
type SeedReport struct {
	Users       int `json:"users"`
	Assignments int `json:"assignments"`
	Submissions int `json:"submissions"`
	Grades      int `json:"grades"`
}

// SeedService loads fixtures into the database. Existing users and
// assignments are matched by email and title, so runs are repeatable.
type SeedService interface {
	Seed(ctx context.Context, document []byte) (SeedReport, error)
}

type seedService struct {
	users       repository.UserRepository
	assignments repository.AssignmentRepository
	submissions repository.SubmissionRepository
	grades      repository.GradeRepository
	views       ViewInvalidator
	schema      *jsonschema.Schema
	logger      zerolog.Logger
	now         func() time.Time
}

// NewSeedService constructs a seeding service. views may be nil when no view
// cache has to be cleared after a run.
func NewSeedService(users repository.UserRepository, assignments repository.AssignmentRepository, submissions repository.SubmissionRepository, grades repository.GradeRepository, views ViewInvalidator, logger zerolog.Logger) (SeedService, error) {
	schema, err := compileSeedSchema()
	if err != nil {
		return nil, err
	}

	return &seedService{
		users:       users,
		assignments: assignments,
		submissions: submissions,
		grades:      grades,
		views:       views,
		schema:      schema,
		logger:      logger.With().Str("component", "seed_service").Logger(),
		now:         time.Now,
	}, nil
}

func compileSeedSchema() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	compiler.AssertFormat = true
	if err := compiler.AddResource("seed_fixture.schema.json", bytes.NewReader(seedFixtureSchema)); err != nil {
		return nil, fmt.Errorf("load seed schema: %w", err)
	}
	schema, err := compiler.Compile("seed_fixture.schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile seed schema: %w", err)
	}
	return schema, nil
}

func (s *seedService) Seed(ctx context.Context, document []byte) (SeedReport, error) {
	var raw interface{}
	if err := json.Unmarshal(document, &raw); err != nil {
		return SeedReport{}, fmt.Errorf("%w: %v", ErrInvalidFixture, err)
	}
	if err := s.schema.Validate(raw); err != nil {
		return SeedReport{}, fmt.Errorf("%w: %v", ErrInvalidFixture, err)
	}

	var fixture SeedFixture
	if err := json.Unmarshal(document, &fixture); err != nil {
		return SeedReport{}, fmt.Errorf("%w: %v", ErrInvalidFixture, err)
	}

	report := SeedReport{}
	users := make(map[string]models.User, len(fixture.Users))
	for _, item := range fixture.Users {
		user, created, err := s.seedUser(ctx, item)
		if err != nil {
			return report, err
		}
		users[user.Email] = user
		if created {
			report.Users++
		}
	}

	assignments := make(map[string]models.Assignment, len(fixture.Assignments))
	for _, item := range fixture.Assignments {
		assignment, created, err := s.seedAssignment(ctx, item, users)
		if err != nil {
			return report, err
		}
		assignments[assignment.Title] = assignment
		if created {
			report.Assignments++
		}
	}

	for _, item := range fixture.Submissions {
		studentID, assignmentID, err := s.resolvePair(ctx, item.StudentEmail, item.AssignmentTitle, users, assignments)
		if err != nil {
			return report, err
		}
		submittedAt := s.now().UTC()
		if item.SubmittedAt != nil {
			submittedAt = item.SubmittedAt.UTC()
		}
		fileName := item.FileName
		if fileName == "" {
			fileName = fmt.Sprintf("soumission-%d.txt", assignmentID)
		}
		submission := models.Submission{
			StudentID:    studentID,
			AssignmentID: assignmentID,
			Payload:      []byte(item.Content),
			FileName:     fileName,
			MimeType:     "text/plain; charset=utf-8",
			SizeBytes:    int64(len(item.Content)),
			Comment:      item.Comment,
			SubmittedAt:  submittedAt,
		}
		if err := s.submissions.Upsert(ctx, &submission); err != nil {
			return report, fmt.Errorf("seed submission for %s: %w", item.StudentEmail, err)
		}
		report.Submissions++
	}

	for _, item := range fixture.Grades {
		studentID, assignmentID, err := s.resolvePair(ctx, item.StudentEmail, item.AssignmentTitle, users, assignments)
		if err != nil {
			return report, err
		}
		grade := models.Grade{StudentID: studentID, AssignmentID: assignmentID, Value: item.Value}
		if err := s.grades.Upsert(ctx, &grade); err != nil {
			return report, fmt.Errorf("seed grade for %s: %w", item.StudentEmail, err)
		}
		report.Grades++
	}

	if report != (SeedReport{}) {
		s.invalidate(ctx, assignments)
	}

	s.logger.Info().
		Int("users", report.Users).
		Int("assignments", report.Assignments).
		Int("submissions", report.Submissions).
		Int("grades", report.Grades).
		Msg("fixture seeded")

	return report, nil
}

func (s *seedService) invalidate(ctx context.Context, assignments map[string]models.Assignment) {
	if s.views == nil {
		return
	}
	for _, assignment := range assignments {
		if err := s.views.InvalidateAssignment(ctx, assignment.ID); err != nil {
			s.logger.Warn().Err(err).Uint("assignment_id", assignment.ID).Msg("failed to invalidate seeded assignment views")
		}
	}
	if err := s.views.InvalidateRanking(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("failed to invalidate ranking after seeding")
	}
}

func (s *seedService) seedUser(ctx context.Context, item SeedUser) (models.User, bool, error) {
	email := strings.ToLower(strings.TrimSpace(item.Email))
	existing, err := s.users.GetByEmail(ctx, email)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return models.User{}, false, fmt.Errorf("seed user %s: %w", email, err)
	}

	hashed, err := HashPassword(item.Password)
	if err != nil {
		return models.User{}, false, err
	}

	active := true
	if item.Active != nil {
		active = *item.Active
	}

	user := models.User{
		Email:         email,
		PasswordHash:  hashed,
		FirstName:     item.FirstName,
		LastName:      item.LastName,
		StudentNumber: item.StudentNumber,
		Active:        active,
	}
	if err := s.users.Create(ctx, &user, item.Roles...); err != nil {
		return models.User{}, false, fmt.Errorf("seed user %s: %w", email, err)
	}
	return user, true, nil
}

func (s *seedService) seedAssignment(ctx context.Context, item SeedAssignment, users map[string]models.User) (models.Assignment, bool, error) {
	existing, err := s.assignments.GetByTitle(ctx, item.Title)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Assignment{}, false, fmt.Errorf("seed assignment %q: %w", item.Title, err)
	}

	if !item.Deadline.After(item.OpenDate) {
		return models.Assignment{}, false, fmt.Errorf("%w: assignment %q closes before it opens", ErrInvalidFixture, item.Title)
	}

	status := item.Status
	if status == "" {
		status = models.AssignmentStatusDraft
	}

	assignment := models.Assignment{
		Title:       item.Title,
		Subtitle:    item.Subtitle,
		Description: item.Description,
		Type:        item.Type,
		Status:      status,
		OpenDate:    item.OpenDate.UTC(),
		Deadline:    item.Deadline.UTC(),
	}
	if item.ProfessorEmail != "" {
		professor, ok := users[strings.ToLower(item.ProfessorEmail)]
		if !ok {
			return models.Assignment{}, false, fmt.Errorf("%w: unknown professor %s", ErrInvalidFixture, item.ProfessorEmail)
		}
		assignment.ProfessorID = &professor.ID
	}

	if err := s.assignments.Create(ctx, &assignment); err != nil {
		return models.Assignment{}, false, fmt.Errorf("seed assignment %q: %w", item.Title, err)
	}
	return assignment, true, nil
}

func (s *seedService) resolvePair(ctx context.Context, email, title string, users map[string]models.User, assignments map[string]models.Assignment) (uint, uint, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, ok := users[email]
	if !ok {
		found, err := s.users.GetByEmail(ctx, email)
		if err != nil {
			return 0, 0, fmt.Errorf("%w: unknown student %s", ErrInvalidFixture, email)
		}
		user = found
	}

	assignment, ok := assignments[title]
	if !ok {
		found, err := s.assignments.GetByTitle(ctx, title)
		if err != nil {
			return 0, 0, fmt.Errorf("%w: unknown assignment %q", ErrInvalidFixture, title)
		}
		assignment = found
	}

	return user.ID, assignment.ID, nil
}
