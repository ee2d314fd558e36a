package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/sujet-portal-api/internal/dto"
	"github.com/noah-isme/sujet-portal-api/internal/service"
	"github.com/noah-isme/sujet-portal-api/internal/utils"
)

// GradeHandler exposes grade endpoints.
type GradeHandler struct {
	service   service.GradeService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewGradeHandler constructs a grade handler.
func NewGradeHandler(service service.GradeService, validator *validator.Validate, logger zerolog.Logger) *GradeHandler {
	return &GradeHandler{
		service:   service,
		validator: validator,
		logger:    logger.With().Str("component", "grade_handler").Logger(),
	}
}

// RegisterStudent lets students read their own grades.
func (h *GradeHandler) RegisterStudent(router fiber.Router) {
	router.Get("/grades", h.listMine)
}

// RegisterProfessor attaches grading routes.
func (h *GradeHandler) RegisterProfessor(router fiber.Router) {
	router.Put("/grades", h.upsert)
	router.Get("/students/:studentId/grades", h.listForStudent)
	router.Delete("/students/:studentId/grades/:assignmentId", h.delete)
}

func (h *GradeHandler) upsert(c *fiber.Ctx) error {
	var payload dto.GradeUpsertRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "corps de requête invalide")
	}
	if err := h.validator.Struct(payload); err != nil {
		return handleError(c, h.logger, err)
	}

	grade, err := h.service.Upsert(c.UserContext(), actorFromContext(c), payload)
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "note enregistrée", grade)
}

func (h *GradeHandler) listMine(c *fiber.Ctx) error {
	grades, err := h.service.ListByStudent(c.UserContext(), userIDFromContext(c))
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "notes récupérées", grades)
}

func (h *GradeHandler) listForStudent(c *fiber.Ctx) error {
	studentID, err := parseUintParam(c, "studentId")
	if err != nil {
		return handleError(c, h.logger, err)
	}

	grades, err := h.service.ListByStudent(c.UserContext(), studentID)
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "notes récupérées", grades)
}

func (h *GradeHandler) delete(c *fiber.Ctx) error {
	studentID, err := parseUintParam(c, "studentId")
	if err != nil {
		return handleError(c, h.logger, err)
	}
	assignmentID, err := parseUintParam(c, "assignmentId")
	if err != nil {
		return handleError(c, h.logger, err)
	}

	if err := h.service.Delete(c.UserContext(), actorFromContext(c), studentID, assignmentID); err != nil {
		return handleError(c, h.logger, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
