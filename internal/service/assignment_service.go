package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/sujet-portal-api/internal/dto"
	"github.com/noah-isme/sujet-portal-api/internal/models"
	"github.com/noah-isme/sujet-portal-api/internal/repository"
)

// AssignmentService exposes assignment management for professors.
type AssignmentService interface {
	List(ctx context.Context, actor Actor, req dto.AssignmentListRequest) (dto.AssignmentListResponse, error)
	Get(ctx context.Context, id uint) (dto.AssignmentResponse, error)
	Create(ctx context.Context, actor Actor, payload dto.AssignmentCreateRequest, file *dto.AssignmentFile) (dto.AssignmentResponse, error)
	Update(ctx context.Context, actor Actor, id uint, payload dto.AssignmentUpdateRequest, file *dto.AssignmentFile) (dto.AssignmentResponse, error)
	SetPublished(ctx context.Context, actor Actor, id uint, published bool) (dto.AssignmentResponse, error)
	Delete(ctx context.Context, actor Actor, id uint) error
	DownloadPrompt(ctx context.Context, actor Actor, id uint) (dto.SubmissionFile, error)
}

type assignmentService struct {
	repo      repository.AssignmentRepository
	views     ViewInvalidator
	activity  ActivityRecorder
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	maxSize   int64
	logger    zerolog.Logger
}

// NewAssignmentService constructs the assignment service.
func NewAssignmentService(repo repository.AssignmentRepository, views ViewInvalidator, activity ActivityRecorder, validate *validator.Validate, maxSizeBytes int64, logger zerolog.Logger) AssignmentService {
	return &assignmentService{
		repo:      repo,
		views:     views,
		activity:  activity,
		validator: validate,
		sanitizer: bluemonday.UGCPolicy(),
		maxSize:   maxSizeBytes,
		logger:    logger.With().Str("component", "assignment_service").Logger(),
	}
}

func (s *assignmentService) List(ctx context.Context, actor Actor, req dto.AssignmentListRequest) (dto.AssignmentListResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.AssignmentListResponse{}, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	filter := repository.AssignmentFilter{
		Search:   req.Search,
		Status:   req.Status,
		Sort:     req.Sort,
		Page:     req.Page,
		PageSize: req.PageSize,
	}
	if req.Mine {
		filter.ProfessorID = &actor.ID
	}

	assignments, total, err := s.repo.ListWithFilter(ctx, filter)
	if err != nil {
		return dto.AssignmentListResponse{}, wrapRead("list assignments", err)
	}

	return dto.AssignmentListResponse{
		Items:      dto.NewAssignmentResponseSlice(assignments),
		Pagination: dto.NewPaginationMeta(req.Page, req.PageSize, total),
	}, nil
}

func (s *assignmentService) Get(ctx context.Context, id uint) (dto.AssignmentResponse, error) {
	assignment, err := s.load(ctx, id)
	if err != nil {
		return dto.AssignmentResponse{}, err
	}
	return dto.NewAssignmentResponse(assignment), nil
}

func (s *assignmentService) Create(ctx context.Context, actor Actor, payload dto.AssignmentCreateRequest, file *dto.AssignmentFile) (dto.AssignmentResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.AssignmentResponse{}, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	openDate, err := dto.ParseTimestamp(payload.OpenDate)
	if err != nil {
		return dto.AssignmentResponse{}, fmt.Errorf("%w: open_date: %v", ErrInvalidArgument, err)
	}
	deadline, err := dto.ParseTimestamp(payload.Deadline)
	if err != nil {
		return dto.AssignmentResponse{}, fmt.Errorf("%w: deadline: %v", ErrInvalidArgument, err)
	}

	status := payload.Status
	if status == "" {
		status = models.AssignmentStatusDraft
	}

	assignment := models.Assignment{
		Title:       strings.TrimSpace(payload.Title),
		Subtitle:    strings.TrimSpace(payload.Subtitle),
		Description: s.sanitizer.Sanitize(strings.TrimSpace(payload.Description)),
		Type:        strings.TrimSpace(payload.Type),
		Status:      status,
		OpenDate:    openDate.UTC(),
		Deadline:    deadline.UTC(),
	}
	if actor.ID > 0 {
		professorID := actor.ID
		assignment.ProfessorID = &professorID
	}
	if err := validateWindow(assignment); err != nil {
		return dto.AssignmentResponse{}, err
	}
	if err := s.attach(&assignment, file); err != nil {
		return dto.AssignmentResponse{}, err
	}

	if err := s.repo.Create(ctx, &assignment); err != nil {
		return dto.AssignmentResponse{}, wrapWrite("create assignment", err)
	}

	s.afterChange(ctx, actor, assignment, models.ActionAssignmentCreated, nil)
	return dto.NewAssignmentResponse(assignment), nil
}

func (s *assignmentService) Update(ctx context.Context, actor Actor, id uint, payload dto.AssignmentUpdateRequest, file *dto.AssignmentFile) (dto.AssignmentResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.AssignmentResponse{}, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	assignment, err := s.load(ctx, id)
	if err != nil {
		return dto.AssignmentResponse{}, err
	}

	changed := make([]string, 0)
	if payload.Title != nil {
		assignment.Title = strings.TrimSpace(*payload.Title)
		changed = append(changed, "title")
	}
	if payload.Subtitle != nil {
		assignment.Subtitle = strings.TrimSpace(*payload.Subtitle)
		changed = append(changed, "subtitle")
	}
	if payload.Description != nil {
		assignment.Description = s.sanitizer.Sanitize(strings.TrimSpace(*payload.Description))
		changed = append(changed, "description")
	}
	if payload.Type != nil {
		assignment.Type = strings.TrimSpace(*payload.Type)
		changed = append(changed, "type")
	}
	if payload.Status != nil {
		assignment.Status = *payload.Status
		changed = append(changed, "status")
	}
	if payload.OpenDate != nil {
		openDate, err := dto.ParseTimestamp(*payload.OpenDate)
		if err != nil {
			return dto.AssignmentResponse{}, fmt.Errorf("%w: open_date: %v", ErrInvalidArgument, err)
		}
		assignment.OpenDate = openDate.UTC()
		changed = append(changed, "open_date")
	}
	if payload.Deadline != nil {
		deadline, err := dto.ParseTimestamp(*payload.Deadline)
		if err != nil {
			return dto.AssignmentResponse{}, fmt.Errorf("%w: deadline: %v", ErrInvalidArgument, err)
		}
		assignment.Deadline = deadline.UTC()
		changed = append(changed, "deadline")
	}
	if err := validateWindow(assignment); err != nil {
		return dto.AssignmentResponse{}, err
	}
	if file != nil {
		if err := s.attach(&assignment, file); err != nil {
			return dto.AssignmentResponse{}, err
		}
		changed = append(changed, "file")
	}

	if err := s.repo.Update(ctx, &assignment); err != nil {
		return dto.AssignmentResponse{}, wrapWrite("update assignment", err)
	}

	s.afterChange(ctx, actor, assignment, models.ActionAssignmentUpdated, map[string]interface{}{"fields": changed})
	return dto.NewAssignmentResponse(assignment), nil
}

func (s *assignmentService) SetPublished(ctx context.Context, actor Actor, id uint, published bool) (dto.AssignmentResponse, error) {
	assignment, err := s.load(ctx, id)
	if err != nil {
		return dto.AssignmentResponse{}, err
	}

	assignment.Status = models.AssignmentStatusDraft
	action := models.ActionAssignmentHidden
	if published {
		assignment.Status = models.AssignmentStatusPublished
		action = models.ActionAssignmentPublished
	}

	if err := s.repo.Update(ctx, &assignment); err != nil {
		return dto.AssignmentResponse{}, wrapWrite("publish assignment", err)
	}

	s.afterChange(ctx, actor, assignment, action, nil)
	return dto.NewAssignmentResponse(assignment), nil
}

func (s *assignmentService) Delete(ctx context.Context, actor Actor, id uint) error {
	if err := requireID("assignment id", id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return wrapWrite("delete assignment", err)
	}

	s.afterChange(ctx, actor, models.Assignment{ID: id}, models.ActionAssignmentDeleted, nil)
	return nil
}

func (s *assignmentService) DownloadPrompt(ctx context.Context, actor Actor, id uint) (dto.SubmissionFile, error) {
	assignment, err := s.load(ctx, id)
	if err != nil {
		return dto.SubmissionFile{}, err
	}
	if !actor.IsStaff() && !assignment.IsPublished() {
		return dto.SubmissionFile{}, fmt.Errorf("%w: assignment %d", ErrNotFound, id)
	}
	if !assignment.HasPayload() {
		return dto.SubmissionFile{}, fmt.Errorf("%w: assignment %d has no file", ErrNotFound, id)
	}

	return dto.SubmissionFile{
		FileName: assignment.FileName,
		MimeType: assignment.MimeType,
		Content:  assignment.Payload,
	}, nil
}

func (s *assignmentService) load(ctx context.Context, id uint) (models.Assignment, error) {
	if err := requireID("assignment id", id); err != nil {
		return models.Assignment{}, err
	}
	assignment, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Assignment{}, fmt.Errorf("%w: assignment %d", ErrNotFound, id)
		}
		return models.Assignment{}, wrapRead("load assignment", err)
	}
	return assignment, nil
}

func (s *assignmentService) attach(assignment *models.Assignment, file *dto.AssignmentFile) error {
	if file == nil || len(file.Content) == 0 {
		return nil
	}
	if s.maxSize > 0 && int64(len(file.Content)) > s.maxSize {
		return fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(file.Content))
	}

	detected, err := detectSubmissionType(file.Content)
	if err != nil {
		return err
	}

	name := filepath.Base(strings.TrimSpace(file.Name))
	if name == "" || name == "." {
		name = "sujet" + detected.Extension()
	}

	assignment.Payload = file.Content
	assignment.FileName = name
	assignment.MimeType = detected.String()
	return nil
}

func (s *assignmentService) afterChange(ctx context.Context, actor Actor, assignment models.Assignment, action string, metadata map[string]interface{}) {
	if err := s.views.InvalidateAssignment(ctx, assignment.ID); err != nil {
		s.logger.Warn().Err(err).Uint("assignment_id", assignment.ID).Msg("failed to invalidate assignment views")
	}

	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	metadata["assignment_id"] = assignment.ID
	if assignment.Status != "" {
		metadata["status"] = assignment.Status
	}

	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		ActorID:   actor.ID,
		ActorRole: actor.Role,
		Action:    action,
		EntityID:  &assignment.ID,
		Metadata:  metadata,
	})
}

func validateWindow(assignment models.Assignment) error {
	if !assignment.Deadline.After(assignment.OpenDate) {
		return fmt.Errorf("%w: deadline must be after open_date", ErrInvalidArgument)
	}
	return nil
}
