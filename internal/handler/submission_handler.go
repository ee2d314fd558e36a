package handler

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/sujet-portal-api/internal/dto"
	"github.com/noah-isme/sujet-portal-api/internal/service"
	"github.com/noah-isme/sujet-portal-api/internal/utils"
)

// SubmissionHandler manages submission endpoints.
type SubmissionHandler struct {
	service    service.SubmissionService
	evaluation service.EvaluationService
	maxBytes   int64
	logger     zerolog.Logger
}

// NewSubmissionHandler builds a submission handler instance. evaluation may
// be nil, in which case the evaluation route is not registered.
func NewSubmissionHandler(service service.SubmissionService, evaluation service.EvaluationService, maxBytes int64, logger zerolog.Logger) *SubmissionHandler {
	return &SubmissionHandler{
		service:    service,
		evaluation: evaluation,
		maxBytes:   maxBytes,
		logger:     logger.With().Str("component", "submission_handler").Logger(),
	}
}

// RegisterStudent attaches the student submission routes. submitGuards run
// before the upload handler, e.g. a rate limiter.
func (h *SubmissionHandler) RegisterStudent(router fiber.Router, submitGuards ...fiber.Handler) {
	router.Post("/submissions", chain(submitGuards, h.submit)...)
	router.Get("/submissions", h.listMine)
	router.Get("/submissions/:id/file", h.download)
}

// RegisterProfessor attaches the staff submission routes.
func (h *SubmissionHandler) RegisterProfessor(router fiber.Router) {
	router.Get("/submissions", h.list)
	router.Get("/submissions/:id/file", h.download)
	if h.evaluation != nil {
		router.Post("/submissions/:id/evaluation", h.evaluate)
	}
}

func (h *SubmissionHandler) submit(c *fiber.Ctx) error {
	var req dto.SubmitRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "corps de requête invalide")
	}
	if req.AssignmentID == 0 {
		return handleError(c, h.logger, fmt.Errorf("%w: assignment_id is required", service.ErrInvalidArgument))
	}

	file, err := readFormFile(c, "file", h.maxBytes)
	if err != nil {
		return handleError(c, h.logger, err)
	}
	if file == nil {
		return handleError(c, h.logger, service.ErrMissingPayload)
	}

	ack, err := h.service.Submit(c.UserContext(), service.SubmitInput{
		StudentID:    userIDFromContext(c),
		AssignmentID: req.AssignmentID,
		FileName:     file.Name,
		Content:      file.Content,
		Comment:      req.Comment,
	})
	if err != nil {
		return handleError(c, h.logger, err)
	}

	status := fiber.StatusCreated
	message := "soumission enregistrée"
	if ack.Replaced {
		status = fiber.StatusOK
		message = "soumission remplacée"
	}
	return utils.SendSuccessWithStatus(c, status, message, ack)
}

func (h *SubmissionHandler) listMine(c *fiber.Ctx) error {
	submissions, err := h.service.ListMine(c.UserContext(), userIDFromContext(c))
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "soumissions récupérées", submissions)
}

func (h *SubmissionHandler) list(c *fiber.Ctx) error {
	filter := dto.SubmissionFilter{Mine: c.QueryBool("mine", false)}

	assignmentID, err := parseQueryUint(c, "assignment_id")
	if err != nil {
		return handleError(c, h.logger, err)
	}
	filter.AssignmentID = assignmentID

	studentID, err := parseQueryUint(c, "student_id")
	if err != nil {
		return handleError(c, h.logger, err)
	}
	filter.StudentID = studentID

	submissions, err := h.service.List(c.UserContext(), actorFromContext(c), filter)
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "soumissions récupérées", submissions)
}

func (h *SubmissionHandler) download(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return handleError(c, h.logger, err)
	}

	file, err := h.service.Download(c.UserContext(), actorFromContext(c), id)
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return sendFile(c, file)
}

func (h *SubmissionHandler) evaluate(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return handleError(c, h.logger, err)
	}

	result, err := h.evaluation.Evaluate(c.UserContext(), actorFromContext(c), id)
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "évaluation générée", result)
}
