package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/sujet-portal-api/internal/service"
	"github.com/noah-isme/sujet-portal-api/internal/utils"
)

// StudentDashboardHandler exposes the student statistics and exercise views.
type StudentDashboardHandler struct {
	stats     service.StatsService
	exercises service.ExerciseService
	logger    zerolog.Logger
}

// NewStudentDashboardHandler creates a new handler instance.
func NewStudentDashboardHandler(stats service.StatsService, exercises service.ExerciseService, logger zerolog.Logger) *StudentDashboardHandler {
	return &StudentDashboardHandler{
		stats:     stats,
		exercises: exercises,
		logger:    logger.With().Str("component", "student_dashboard_handler").Logger(),
	}
}

// Register attaches the dashboard and exercise endpoints.
func (h *StudentDashboardHandler) Register(router fiber.Router) {
	router.Get("/dashboard", h.getDashboard)
	router.Get("/exercises", h.listExercises)
	router.Get("/exercises/:id", h.getExercise)
}

func (h *StudentDashboardHandler) getDashboard(c *fiber.Ctx) error {
	studentID := userIDFromContext(c)

	stats, err := h.stats.StudentStats(c.UserContext(), studentID)
	if err != nil {
		return handleError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "tableau de bord récupéré", stats)
}

func (h *StudentDashboardHandler) listExercises(c *fiber.Ctx) error {
	limit, err := parseQueryInt(c, "limit")
	if err != nil {
		return handleError(c, h.logger, err)
	}

	exercises, err := h.exercises.ListExercises(c.UserContext(), userIDFromContext(c), limit)
	if err != nil {
		return handleError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "exercices récupérés", exercises)
}

func (h *StudentDashboardHandler) getExercise(c *fiber.Ctx) error {
	assignmentID, err := parseUintParam(c, "id")
	if err != nil {
		return handleError(c, h.logger, err)
	}

	detail, err := h.exercises.GetExercise(c.UserContext(), userIDFromContext(c), assignmentID)
	if err != nil {
		return handleError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "exercice récupéré", detail)
}
