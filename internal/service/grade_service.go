package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"

	"github.com/noah-isme/sujet-portal-api/internal/dto"
	"github.com/noah-isme/sujet-portal-api/internal/models"
	"github.com/noah-isme/sujet-portal-api/internal/repository"
)

// GradeService encapsulates grading workflows for professors.
type GradeService interface {
	Upsert(ctx context.Context, actor Actor, payload dto.GradeUpsertRequest) (dto.GradeResponse, error)
	ListByStudent(ctx context.Context, studentID uint) ([]dto.GradeResponse, error)
	Delete(ctx context.Context, actor Actor, studentID, assignmentID uint) error
}

type gradeService struct {
	grades      repository.GradeRepository
	users       repository.UserRepository
	assignments repository.AssignmentRepository
	views       ViewInvalidator
	activity    ActivityRecorder
	validator   *validator.Validate
	logger      zerolog.Logger
}

// NewGradeService constructs the grading service.
func NewGradeService(grades repository.GradeRepository, users repository.UserRepository, assignments repository.AssignmentRepository, views ViewInvalidator, activity ActivityRecorder, validate *validator.Validate, logger zerolog.Logger) GradeService {
	return &gradeService{
		grades:      grades,
		users:       users,
		assignments: assignments,
		views:       views,
		activity:    activity,
		validator:   validate,
		logger:      logger.With().Str("component", "grade_service").Logger(),
	}
}

func (s *gradeService) Upsert(ctx context.Context, actor Actor, payload dto.GradeUpsertRequest) (dto.GradeResponse, error) {
	tracer := otel.Tracer("github.com/noah-isme/sujet-portal-api/internal/service/grade")
	ctx, span := tracer.Start(ctx, "grades.upsert")
	span.SetAttributes(
		attribute.Int64("grade.student_id", int64(payload.StudentID)),
		attribute.Int64("grade.assignment_id", int64(payload.AssignmentID)),
		attribute.Int64("grade.actor_id", int64(actor.ID)),
	)
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation_failed")
		return dto.GradeResponse{}, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	student, err := s.users.GetByID(ctx, payload.StudentID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "student_lookup_failed")
		return dto.GradeResponse{}, wrapWrite("load student", err)
	}
	if !student.HasRole(models.RoleStudent) {
		span.SetStatus(codes.Error, "not_a_student")
		return dto.GradeResponse{}, fmt.Errorf("%w: user %d is not a student", ErrNotFound, payload.StudentID)
	}

	assignment, err := s.assignments.GetByID(ctx, payload.AssignmentID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "assignment_lookup_failed")
		return dto.GradeResponse{}, wrapWrite("load assignment", err)
	}

	grade := models.Grade{
		StudentID:    payload.StudentID,
		AssignmentID: payload.AssignmentID,
		Value:        payload.Value,
	}
	if actor.ID > 0 {
		gradedBy := actor.ID
		grade.GradedBy = &gradedBy
	}

	if err := s.grades.Upsert(ctx, &grade); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "grade_upsert_failed")
		return dto.GradeResponse{}, wrapWrite("upsert grade", err)
	}
	grade.Assignment = assignment

	if err := s.views.InvalidateGrades(ctx, grade.AssignmentID, grade.StudentID); err != nil {
		s.logger.Warn().Err(err).Uint("student_id", grade.StudentID).Msg("failed to invalidate views after grading")
	}

	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		ActorID:   actor.ID,
		ActorRole: actor.Role,
		Action:    models.ActionGradeUpserted,
		EntityID:  &grade.ID,
		Metadata: map[string]interface{}{
			"student_id":    grade.StudentID,
			"assignment_id": grade.AssignmentID,
			"value":         grade.Value,
		},
	})

	span.SetAttributes(attribute.Float64("grade.value", grade.Value))
	return dto.NewGradeResponse(grade), nil
}

func (s *gradeService) ListByStudent(ctx context.Context, studentID uint) ([]dto.GradeResponse, error) {
	if err := requireID("student id", studentID); err != nil {
		return nil, err
	}

	grades, err := s.grades.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, wrapRead("list grades", err)
	}
	return dto.NewGradeResponseSlice(grades), nil
}

func (s *gradeService) Delete(ctx context.Context, actor Actor, studentID, assignmentID uint) error {
	if err := requireID("student id", studentID); err != nil {
		return err
	}
	if err := requireID("assignment id", assignmentID); err != nil {
		return err
	}

	if err := s.grades.Delete(ctx, studentID, assignmentID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: no grade for student %d on assignment %d", ErrNotFound, studentID, assignmentID)
		}
		return wrapWrite("delete grade", err)
	}

	if err := s.views.InvalidateGrades(ctx, assignmentID, studentID); err != nil {
		s.logger.Warn().Err(err).Uint("student_id", studentID).Msg("failed to invalidate views after grade removal")
	}

	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		ActorID:   actor.ID,
		ActorRole: actor.Role,
		Action:    models.ActionGradeDeleted,
		Metadata: map[string]interface{}{
			"student_id":    studentID,
			"assignment_id": assignmentID,
		},
	})
	return nil
}
