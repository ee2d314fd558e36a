package handler

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/sujet-portal-api/internal/dto"
	"github.com/noah-isme/sujet-portal-api/internal/service"
	"github.com/noah-isme/sujet-portal-api/internal/utils"
)

// AssignmentHandler exposes assignment management to professors and the
// prompt download to students.
type AssignmentHandler struct {
	service   service.AssignmentService
	validator *validator.Validate
	maxBytes  int64
	logger    zerolog.Logger
}

// NewAssignmentHandler constructs an assignment handler.
func NewAssignmentHandler(service service.AssignmentService, validator *validator.Validate, maxBytes int64, logger zerolog.Logger) *AssignmentHandler {
	return &AssignmentHandler{
		service:   service,
		validator: validator,
		maxBytes:  maxBytes,
		logger:    logger.With().Str("component", "assignment_handler").Logger(),
	}
}

// RegisterProfessor attaches management endpoints to the professor group.
func (h *AssignmentHandler) RegisterProfessor(router fiber.Router) {
	router.Get("/assignments", h.list)
	router.Post("/assignments", h.create)
	router.Get("/assignments/:id", h.get)
	router.Put("/assignments/:id", h.update)
	router.Post("/assignments/:id/publish", h.publish)
	router.Post("/assignments/:id/unpublish", h.unpublish)
	router.Delete("/assignments/:id", h.delete)
	router.Get("/assignments/:id/prompt", h.downloadPrompt)
}

// RegisterStudent attaches the prompt download to the student group.
func (h *AssignmentHandler) RegisterStudent(router fiber.Router) {
	router.Get("/assignments/:id/prompt", h.downloadPrompt)
}

func (h *AssignmentHandler) list(c *fiber.Ctx) error {
	page, err := parseQueryInt(c, "page")
	if err != nil {
		return handleError(c, h.logger, err)
	}
	pageSize, err := parseQueryInt(c, "page_size")
	if err != nil {
		return handleError(c, h.logger, err)
	}

	req := dto.AssignmentListRequest{
		Search:   c.Query("search"),
		Status:   strings.ToLower(c.Query("status")),
		Sort:     c.Query("sort"),
		Page:     page,
		PageSize: pageSize,
		Mine:     c.QueryBool("mine", false),
	}

	result, err := h.service.List(c.UserContext(), actorFromContext(c), req)
	if err != nil {
		return handleError(c, h.logger, err)
	}

	return utils.OK(c, result.Items, "sujets récupérés", result.Pagination)
}

func (h *AssignmentHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return handleError(c, h.logger, err)
	}

	assignment, err := h.service.Get(c.UserContext(), id)
	if err != nil {
		return handleError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "sujet récupéré", assignment)
}

func (h *AssignmentHandler) create(c *fiber.Ctx) error {
	var payload dto.AssignmentCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "corps de requête invalide")
	}
	if err := h.validator.Struct(payload); err != nil {
		return handleError(c, h.logger, err)
	}

	file, err := readFormFile(c, "file", h.maxBytes)
	if err != nil {
		return handleError(c, h.logger, err)
	}

	assignment, err := h.service.Create(c.UserContext(), actorFromContext(c), payload, file)
	if err != nil {
		return handleError(c, h.logger, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "sujet créé", assignment)
}

func (h *AssignmentHandler) update(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return handleError(c, h.logger, err)
	}

	var payload dto.AssignmentUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "corps de requête invalide")
	}
	if err := h.validator.Struct(payload); err != nil {
		return handleError(c, h.logger, err)
	}

	file, err := readFormFile(c, "file", h.maxBytes)
	if err != nil {
		return handleError(c, h.logger, err)
	}

	assignment, err := h.service.Update(c.UserContext(), actorFromContext(c), id, payload, file)
	if err != nil {
		return handleError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "sujet mis à jour", assignment)
}

func (h *AssignmentHandler) publish(c *fiber.Ctx) error {
	return h.setPublished(c, true)
}

func (h *AssignmentHandler) unpublish(c *fiber.Ctx) error {
	return h.setPublished(c, false)
}

func (h *AssignmentHandler) setPublished(c *fiber.Ctx, published bool) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return handleError(c, h.logger, err)
	}

	assignment, err := h.service.SetPublished(c.UserContext(), actorFromContext(c), id, published)
	if err != nil {
		return handleError(c, h.logger, err)
	}

	message := "sujet dépublié"
	if published {
		message = "sujet publié"
	}
	return utils.SendSuccess(c, message, assignment)
}

func (h *AssignmentHandler) delete(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return handleError(c, h.logger, err)
	}

	if err := h.service.Delete(c.UserContext(), actorFromContext(c), id); err != nil {
		return handleError(c, h.logger, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *AssignmentHandler) downloadPrompt(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return handleError(c, h.logger, err)
	}

	file, err := h.service.DownloadPrompt(c.UserContext(), actorFromContext(c), id)
	if err != nil {
		return handleError(c, h.logger, err)
	}

	return sendFile(c, file)
}
