package service

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/noah-isme/sujet-portal-api/internal/dto"
	"github.com/noah-isme/sujet-portal-api/internal/models"
	"github.com/noah-isme/sujet-portal-api/internal/repository"
)

// StudentRosterService lets staff browse students and suspend their accounts.
type StudentRosterService interface {
	List(ctx context.Context, actor Actor, req dto.StudentListRequest) (dto.StudentListResponse, error)
	Get(ctx context.Context, actor Actor, id uint) (dto.StudentResponse, error)
	Update(ctx context.Context, actor Actor, id uint, payload dto.StudentUpdateRequest) (dto.StudentResponse, error)
}

type studentRosterService struct {
	repo      repository.StudentRosterRepository
	validator *validator.Validate
	activity  ActivityRecorder
	logger    zerolog.Logger
}

// NewStudentRosterService constructs the roster service. activity may be nil.
func NewStudentRosterService(repo repository.StudentRosterRepository, validate *validator.Validate, activity ActivityRecorder, logger zerolog.Logger) StudentRosterService {
	return &studentRosterService{
		repo:      repo,
		validator: validate,
		activity:  activity,
		logger:    logger.With().Str("component", "student_roster_service").Logger(),
	}
}

func (s *studentRosterService) List(ctx context.Context, actor Actor, req dto.StudentListRequest) (dto.StudentListResponse, error) {
	if !actor.IsStaff() {
		return dto.StudentListResponse{}, ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return dto.StudentListResponse{}, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	students, total, err := s.repo.List(ctx, repository.StudentFilter{
		Search:   req.Search,
		Active:   req.Active,
		Sort:     req.Sort,
		Page:     req.Page,
		PageSize: req.PageSize,
	})
	if err != nil {
		return dto.StudentListResponse{}, wrapRead("list students", err)
	}

	items := make([]dto.StudentResponse, 0, len(students))
	for _, student := range students {
		items = append(items, dto.NewStudentResponse(student))
	}

	return dto.StudentListResponse{
		Items:      items,
		Pagination: dto.NewPaginationMeta(req.Page, req.PageSize, total),
	}, nil
}

func (s *studentRosterService) Get(ctx context.Context, actor Actor, id uint) (dto.StudentResponse, error) {
	if !actor.IsStaff() {
		return dto.StudentResponse{}, ErrUnauthorized
	}
	if err := requireID("student id", id); err != nil {
		return dto.StudentResponse{}, err
	}

	student, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return dto.StudentResponse{}, wrapRead("load student", err)
	}
	return dto.NewStudentResponse(student), nil
}

func (s *studentRosterService) Update(ctx context.Context, actor Actor, id uint, payload dto.StudentUpdateRequest) (dto.StudentResponse, error) {
	if !actor.IsStaff() {
		return dto.StudentResponse{}, ErrUnauthorized
	}
	if err := requireID("student id", id); err != nil {
		return dto.StudentResponse{}, err
	}
	if err := s.validator.Struct(payload); err != nil {
		return dto.StudentResponse{}, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	if err := s.repo.SetActive(ctx, id, *payload.Active); err != nil {
		return dto.StudentResponse{}, wrapWrite("update student", err)
	}

	student, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return dto.StudentResponse{}, wrapRead("reload student", err)
	}

	action := models.ActionStudentDeactivated
	if student.Active {
		action = models.ActionStudentActivated
	}
	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		ActorID:   actor.ID,
		ActorRole: actor.Role,
		Action:    action,
		EntityID:  &id,
		Metadata:  map[string]interface{}{"email": student.Email},
	})

	s.logger.Info().Uint("student_id", id).Bool("active", student.Active).Msg("student account updated")
	return dto.NewStudentResponse(student), nil
}
