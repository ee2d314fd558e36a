package handler

import (
	"fmt"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/sujet-portal-api/internal/dto"
	"github.com/noah-isme/sujet-portal-api/internal/service"
	"github.com/noah-isme/sujet-portal-api/internal/utils"
)

// StudentRosterHandler exposes the student roster to professors.
type StudentRosterHandler struct {
	service   service.StudentRosterService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewStudentRosterHandler constructs the handler.
func NewStudentRosterHandler(service service.StudentRosterService, validator *validator.Validate, logger zerolog.Logger) *StudentRosterHandler {
	return &StudentRosterHandler{
		service:   service,
		validator: validator,
		logger:    logger.With().Str("component", "student_roster_handler").Logger(),
	}
}

// Register attaches roster routes to the professor group.
func (h *StudentRosterHandler) Register(router fiber.Router) {
	router.Get("/students", h.list)
	router.Get("/students/:studentId", h.get)
	router.Patch("/students/:studentId", h.update)
}

func (h *StudentRosterHandler) list(c *fiber.Ctx) error {
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
		pageSize = 20
	} else if pageSize > 100 {
		pageSize = 100
	}

	req := dto.StudentListRequest{
		Search:   c.Query("search"),
		Sort:     c.Query("sort"),
		Page:     page,
		PageSize: pageSize,
	}
	if raw := c.Query("active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			return handleError(c, h.logger, fmt.Errorf("%w: active must be a boolean", service.ErrInvalidArgument))
		}
		req.Active = &active
	}

	response, err := h.service.List(c.UserContext(), actorFromContext(c), req)
	if err != nil {
		return handleError(c, h.logger, err)
	}

	return utils.OK(c, response.Items, "étudiants récupérés", response.Pagination)
}

func (h *StudentRosterHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "studentId")
	if err != nil {
		return handleError(c, h.logger, err)
	}

	student, err := h.service.Get(c.UserContext(), actorFromContext(c), id)
	if err != nil {
		return handleError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "étudiant récupéré", student)
}

func (h *StudentRosterHandler) update(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "studentId")
	if err != nil {
		return handleError(c, h.logger, err)
	}

	var payload dto.StudentUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "corps de requête invalide")
	}
	if err := h.validator.Struct(payload); err != nil {
		return handleError(c, h.logger, err)
	}

	student, err := h.service.Update(c.UserContext(), actorFromContext(c), id, payload)
	if err != nil {
		return handleError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "étudiant mis à jour", student)
}
