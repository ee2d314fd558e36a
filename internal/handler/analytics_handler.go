package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/sujet-portal-api/internal/service"
	"github.com/noah-isme/sujet-portal-api/internal/utils"
)

// AnalyticsHandler exposes class analytics to professors.
type AnalyticsHandler struct {
	service service.AnalyticsService
	logger  zerolog.Logger
}

// NewAnalyticsHandler constructs the handler.
func NewAnalyticsHandler(service service.AnalyticsService, logger zerolog.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{
		service: service,
		logger:  logger.With().Str("component", "analytics_handler").Logger(),
	}
}

// Register attaches analytics routes to the router group.
func (h *AnalyticsHandler) Register(router fiber.Router) {
	router.Get("/analytics", h.get)
}

func (h *AnalyticsHandler) get(c *fiber.Ctx) error {
	summary, err := h.service.ClassSummary(c.UserContext())
	if err != nil {
		return handleError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "statistiques de la classe", summary)
}
