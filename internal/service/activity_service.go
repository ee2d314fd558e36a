package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"gorm.io/datatypes"

	"github.com/noah-isme/sujet-portal-api/internal/dto"
	"github.com/noah-isme/sujet-portal-api/internal/middleware"
	"github.com/noah-isme/sujet-portal-api/internal/models"
	"github.com/noah-isme/sujet-portal-api/internal/repository"
)

// Actor identifies the authenticated user performing an operation.
type Actor struct {
	ID   uint
	Role string
}

// IsStaff reports whether the actor is a professor or an admin.
func (a Actor) IsStaff() bool {
	return a.Role == models.RoleProfessor || a.Role == models.RoleAdmin
}

// ActivityEntry is an audit record before persistence. The entity type is
// taken from the action prefix ("grade.upserted" concerns a grade).
type ActivityEntry struct {
	ActorID   uint
	ActorRole string
	Action    string
	EntityID  *uint
	Metadata  map[string]interface{}
}

// ActivityRecorder defines behaviour for recording activity logs.
type ActivityRecorder interface {
	Record(ctx context.Context, entry ActivityEntry) (dto.ActivityResponse, error)
}

// ActivityService exposes methods to query and persist activity logs.
type ActivityService interface {
	ActivityRecorder
	List(ctx context.Context, req dto.ActivityListRequest) (dto.ActivityListResponse, error)
}

type activityService struct {
	repo   repository.ActivityLogRepository
	logger zerolog.Logger
}

// NewActivityService constructs the activity log service.
func NewActivityService(repo repository.ActivityLogRepository, logger zerolog.Logger) ActivityService {
	return &activityService{
		repo:   repo,
		logger: logger.With().Str("component", "activity_service").Logger(),
	}
}

func (s *activityService) Record(ctx context.Context, entry ActivityEntry) (dto.ActivityResponse, error) {
	action := strings.ToLower(strings.TrimSpace(entry.Action))
	entity := models.ActionEntity(action)
	if entity == "" || strings.HasSuffix(action, ".") {
		return dto.ActivityResponse{}, fmt.Errorf("%w: action %q must look like entity.verb", ErrInvalidArgument, entry.Action)
	}

	model := models.ActivityLog{
		ActorID:       entry.ActorID,
		ActorRole:     normalizeRole(entry.ActorRole),
		Action:        action,
		EntityType:    entity,
		EntityID:      entry.EntityID,
		CorrelationID: middleware.CorrelationIDFromContext(ctx),
		Metadata:      sanitizeMetadata(entry.Metadata),
	}

	if err := s.repo.Create(ctx, &model); err != nil {
		s.logger.Error().Err(err).Str("action", model.Action).Msg("failed to persist activity log")
		return dto.ActivityResponse{}, wrapWrite("record activity", err)
	}

	return dto.NewActivityResponse(model), nil
}

func (s *activityService) List(ctx context.Context, req dto.ActivityListRequest) (dto.ActivityListResponse, error) {
	filter := repository.ActivityLogFilter{
		Page:       req.Page,
		PageSize:   req.PageSize,
		Action:     strings.ToLower(strings.TrimSpace(req.Action)),
		EntityType: strings.ToLower(strings.TrimSpace(req.EntityType)),
		EntityID:   req.EntityID,
		Since:      req.Since,
	}
	if req.ActorID > 0 {
		filter.ActorID = &req.ActorID
	}

	entries, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return dto.ActivityListResponse{}, wrapRead("list activity", err)
	}

	responses := make([]dto.ActivityResponse, 0, len(entries))
	for _, entry := range entries {
		responses = append(responses, dto.NewActivityResponse(entry))
	}

	return dto.ActivityListResponse{
		Items:      responses,
		Pagination: dto.NewPaginationMeta(req.Page, req.PageSize, total),
	}, nil
}

// recordActivity persists an audit entry without failing the caller.
func recordActivity(ctx context.Context, recorder ActivityRecorder, logger zerolog.Logger, entry ActivityEntry) {
	if recorder == nil {
		return
	}
	if _, err := recorder.Record(ctx, entry); err != nil {
		logger.Warn().Err(err).Str("action", entry.Action).Msg("failed to record activity")
	}
}

var maskedMetadataKeys = []string{"email", "token", "password", "secret"}

func sanitizeMetadata(metadata map[string]interface{}) datatypes.JSONMap {
	sanitized := make(datatypes.JSONMap, len(metadata))
	for key, value := range metadata {
		sanitized[key] = value
		lower := strings.ToLower(key)
		for _, masked := range maskedMetadataKeys {
			if strings.Contains(lower, masked) {
				sanitized[key] = "***"
				break
			}
		}
	}
	return sanitized
}

func normalizeRole(role string) string {
	r := strings.ToLower(strings.TrimSpace(role))
	if r == "" {
		return "system"
	}
	return r
}
