package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/sujet-portal-api/internal/dto"
	"github.com/noah-isme/sujet-portal-api/internal/models"
	"github.com/noah-isme/sujet-portal-api/internal/observability"
	"github.com/noah-isme/sujet-portal-api/internal/repository"
)

var allowedSubmissionTypes = []string{
	"application/pdf",
	"application/zip",
	"application/x-zip-compressed",
	"text/plain",
}

// SubmissionArchiver keeps an external copy of a submitted file and returns
// where it lives.
type SubmissionArchiver interface {
	Archive(ctx context.Context, assignmentID, studentID uint, fileName string, content io.Reader) (string, error)
}

// SubmitInput is a student's upload for one assignment.
type SubmitInput struct {
	StudentID    uint
	AssignmentID uint
	FileName     string
	Content      []byte
	Comment      string
}

// SubmissionService orchestrates submission workflows.
type SubmissionService interface {
	Submit(ctx context.Context, input SubmitInput) (dto.SubmissionAck, error)
	ListMine(ctx context.Context, studentID uint) ([]dto.SubmissionSummary, error)
	List(ctx context.Context, actor Actor, filter dto.SubmissionFilter) ([]dto.SubmissionResponse, error)
	Download(ctx context.Context, actor Actor, id uint) (dto.SubmissionFile, error)
}

// SubmissionOptions tunes upload limits.
type SubmissionOptions struct {
	MaxSizeBytes int64
	Timeout      time.Duration
}

type submissionService struct {
	submissions repository.SubmissionRepository
	assignments repository.AssignmentRepository
	views       ViewInvalidator
	archiver    SubmissionArchiver
	activity    ActivityRecorder
	validator   *validator.Validate
	sanitizer   *bluemonday.Policy
	maxSize     int64
	timeout     time.Duration
	logger      zerolog.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

// NewSubmissionService constructs a SubmissionService instance. archiver and
// activity may be nil.
func NewSubmissionService(subRepo repository.SubmissionRepository, assignmentRepo repository.AssignmentRepository, views ViewInvalidator, archiver SubmissionArchiver, activity ActivityRecorder, validate *validator.Validate, opts SubmissionOptions, logger zerolog.Logger) SubmissionService {
	return &submissionService{
		submissions: subRepo,
		assignments: assignmentRepo,
		views:       views,
		archiver:    archiver,
		activity:    activity,
		validator:   validate,
		sanitizer:   bluemonday.StrictPolicy(),
		maxSize:     opts.MaxSizeBytes,
		timeout:     opts.Timeout,
		logger:      logger.With().Str("component", "submission_service").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/sujet-portal-api/internal/service/submission"),
		now:         time.Now,
	}
}

func (s *submissionService) Submit(ctx context.Context, input SubmitInput) (dto.SubmissionAck, error) {
	if err := requireID("student id", input.StudentID); err != nil {
		return dto.SubmissionAck{}, err
	}
	if err := requireID("assignment id", input.AssignmentID); err != nil {
		return dto.SubmissionAck{}, err
	}
	if len(input.Content) == 0 {
		return dto.SubmissionAck{}, ErrMissingPayload
	}
	if s.maxSize > 0 && int64(len(input.Content)) > s.maxSize {
		return dto.SubmissionAck{}, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(input.Content))
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	ctx, span := s.tracer.Start(ctx, "submissions.submit", trace.WithAttributes(
		attribute.Int64("student.id", int64(input.StudentID)),
		attribute.Int64("assignment.id", int64(input.AssignmentID)),
	))
	defer span.End()

	assignment, err := s.assignments.GetByID(ctx, input.AssignmentID)
	if err != nil {
		span.RecordError(err)
		return dto.SubmissionAck{}, wrapWrite("load assignment", err)
	}
	if !assignment.IsPublished() {
		return dto.SubmissionAck{}, fmt.Errorf("%w: assignment %d", ErrNotFound, input.AssignmentID)
	}

	now := s.now().UTC()
	if !assignment.IsOpen(now) {
		return dto.SubmissionAck{}, fmt.Errorf("%w: window is %s to %s", ErrSubmissionClosed,
			assignment.OpenDate.Format(time.RFC3339), assignment.Deadline.Format(time.RFC3339))
	}

	detected, err := detectSubmissionType(input.Content)
	if err != nil {
		return dto.SubmissionAck{}, err
	}

	submission := models.Submission{
		StudentID:    input.StudentID,
		AssignmentID: input.AssignmentID,
		Payload:      input.Content,
		FileName:     submissionFileName(input, detected),
		MimeType:     detected.String(),
		SizeBytes:    int64(len(input.Content)),
		Comment:      strings.TrimSpace(s.sanitizer.Sanitize(input.Comment)),
		SubmittedAt:  now,
	}

	if err := s.submissions.Upsert(ctx, &submission); err != nil {
		span.RecordError(err)
		return dto.SubmissionAck{}, wrapWrite("upsert submission", err)
	}

	replaced := submission.UpdatedAt.After(submission.CreatedAt)
	observability.SubmissionUpserts().WithLabelValues(strconv.FormatBool(replaced)).Inc()

	if err := s.views.InvalidateViews(ctx, input.AssignmentID, input.StudentID); err != nil {
		s.logger.Warn().Err(err).Uint("submission_id", submission.ID).Msg("failed to invalidate views after submission")
	}

	s.archive(ctx, &submission, input.Content)

	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		ActorID:   input.StudentID,
		ActorRole: models.RoleStudent,
		Action:    models.ActionSubmissionUpserted,
		EntityID:  &submission.ID,
		Metadata: map[string]interface{}{
			"assignment_id": input.AssignmentID,
			"file_name":     submission.FileName,
			"size_bytes":    submission.SizeBytes,
			"replaced":      replaced,
		},
	})

	s.logger.Info().
		Uint("submission_id", submission.ID).
		Uint("assignment_id", input.AssignmentID).
		Bool("replaced", replaced).
		Msg("submission stored")

	return dto.SubmissionAck{
		ID:           submission.ID,
		AssignmentID: submission.AssignmentID,
		SubmittedAt:  submission.SubmittedAt,
		Replaced:     replaced,
	}, nil
}

func (s *submissionService) ListMine(ctx context.Context, studentID uint) ([]dto.SubmissionSummary, error) {
	if err := requireID("student id", studentID); err != nil {
		return nil, err
	}

	submissions, err := s.submissions.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, wrapRead("list student submissions", err)
	}

	summaries := make([]dto.SubmissionSummary, 0, len(submissions))
	for _, submission := range submissions {
		summaries = append(summaries, dto.NewSubmissionSummary(submission))
	}
	return summaries, nil
}

func (s *submissionService) List(ctx context.Context, actor Actor, filter dto.SubmissionFilter) ([]dto.SubmissionResponse, error) {
	if !actor.IsStaff() {
		return nil, ErrUnauthorized
	}
	if err := s.validator.Struct(filter); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	repoFilter := repository.SubmissionFilter{
		AssignmentID: filter.AssignmentID,
		StudentID:    filter.StudentID,
	}
	if filter.Mine {
		repoFilter.ProfessorID = &actor.ID
	}

	submissions, err := s.submissions.List(ctx, repoFilter)
	if err != nil {
		return nil, wrapRead("list submissions", err)
	}

	return dto.NewSubmissionResponseSlice(submissions), nil
}

func (s *submissionService) Download(ctx context.Context, actor Actor, id uint) (dto.SubmissionFile, error) {
	if err := requireID("submission id", id); err != nil {
		return dto.SubmissionFile{}, err
	}

	submission, err := s.submissions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionFile{}, fmt.Errorf("%w: submission %d", ErrNotFound, id)
		}
		return dto.SubmissionFile{}, wrapRead("load submission", err)
	}

	if submission.StudentID != actor.ID && !actor.IsStaff() {
		return dto.SubmissionFile{}, ErrUnauthorized
	}

	return dto.SubmissionFile{
		FileName: submission.FileName,
		MimeType: submission.MimeType,
		Content:  submission.Payload,
	}, nil
}

func (s *submissionService) archive(ctx context.Context, submission *models.Submission, content []byte) {
	if s.archiver == nil {
		return
	}

	url, err := s.archiver.Archive(ctx, submission.AssignmentID, submission.StudentID, submission.FileName, bytes.NewReader(content))
	if err != nil {
		s.logger.Warn().Err(err).Uint("submission_id", submission.ID).Msg("failed to archive submission")
		return
	}

	if err := s.submissions.SetArchiveURL(ctx, submission.ID, url); err != nil {
		s.logger.Warn().Err(err).Uint("submission_id", submission.ID).Msg("failed to store archive url")
		return
	}
	submission.ArchiveURL = url
}

// detectSubmissionType accepts content whose detected type or one of its
// ancestors is allowed, so text/csv and application/json pass as text.
func detectSubmissionType(content []byte) (*mimetype.MIME, error) {
	detected := mimetype.Detect(content)
	for m := detected; m != nil; m = m.Parent() {
		for _, allowed := range allowedSubmissionTypes {
			if m.Is(allowed) {
				return detected, nil
			}
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedFileType, detected.String())
}

func submissionFileName(input SubmitInput, detected *mimetype.MIME) string {
	name := filepath.Base(strings.TrimSpace(input.FileName))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return fmt.Sprintf("soumission-%d%s", input.AssignmentID, detected.Extension())
	}
	return name
}
