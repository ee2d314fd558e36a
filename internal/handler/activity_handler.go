package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/sujet-portal-api/internal/dto"
	"github.com/noah-isme/sujet-portal-api/internal/service"
	"github.com/noah-isme/sujet-portal-api/internal/utils"
)

// ActivityHandler serves the audit trail to professors and admins.
type ActivityHandler struct {
	service service.ActivityService
	logger  zerolog.Logger
}

// NewActivityHandler constructs the handler.
func NewActivityHandler(service service.ActivityService, logger zerolog.Logger) *ActivityHandler {
	return &ActivityHandler{
		service: service,
		logger:  logger.With().Str("component", "activity_handler").Logger(),
	}
}

// Register attaches activity log routes to the router group.
func (h *ActivityHandler) Register(router fiber.Router) {
	router.Get("/activity", h.list)
}

func (h *ActivityHandler) list(c *fiber.Ctx) error {
	page, err := parseQueryInt(c, "page")
	if err != nil {
		return handleError(c, h.logger, err)
	}
	if page <= 0 {
		page = 1
	}

	pageSize, err := parseQueryInt(c, "page_size")
	if err != nil {
		return handleError(c, h.logger, err)
	}
	if pageSize <= 0 {
		pageSize = 25
	} else if pageSize > 200 {
		pageSize = 200
	}

	actorID, err := parseQueryUint(c, "actor_id")
	if err != nil {
		return handleError(c, h.logger, err)
	}
	entityID, err := parseQueryUint(c, "entity_id")
	if err != nil {
		return handleError(c, h.logger, err)
	}
	since, err := parseQueryTime(c, "since")
	if err != nil {
		return handleError(c, h.logger, err)
	}

	req := dto.ActivityListRequest{
		Page:       page,
		PageSize:   pageSize,
		Action:     c.Query("action"),
		EntityType: c.Query("entity_type"),
		EntityID:   entityID,
		Since:      since,
	}
	if actorID != nil {
		req.ActorID = *actorID
	}

	response, err := h.service.List(c.UserContext(), req)
	if err != nil {
		return handleError(c, h.logger, err)
	}

	return utils.OK(c, response.Items, "journal d'activité", response.Pagination)
}
