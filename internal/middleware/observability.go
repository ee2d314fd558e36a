package middleware

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/sujet-portal-api/internal/observability"
)

// AccessLog records one structured log line and the request metrics for every
// call under /api/. Routes are labelled by their template so ids do not
// explode metric cardinality.
func AccessLog(logger zerolog.Logger) fiber.Handler {
	observability.RegisterMetrics()

	return func(c *fiber.Ctx) error {
		if !strings.HasPrefix(c.Path(), "/api/") {
			return c.Next()
		}

		start := time.Now()
		err := c.Next()
		elapsed := time.Since(start)

		status := responseStatus(c, err)
		route := c.Path()
		if r := c.Route(); r != nil && r.Path != "" {
			route = r.Path
		}
		method := c.Method()
		code := strconv.Itoa(status)

		observability.APIRequests().WithLabelValues(method, route, code).Inc()
		observability.APILatency().WithLabelValues(method, route).Observe(elapsed.Seconds())

		var event *zerolog.Event
		switch {
		case status >= fiber.StatusInternalServerError:
			observability.APIErrors().WithLabelValues(method, route, code).Inc()
			event = logger.Error()
		case status >= fiber.StatusBadRequest:
			observability.APIErrors().WithLabelValues(method, route, code).Inc()
			event = logger.Warn()
		default:
			event = logger.Info()
		}

		if id, ok := c.Locals("user_id").(uint); ok {
			event = event.Uint("user_id", id)
		}
		if role, ok := c.Locals("user_role").(string); ok && role != "" {
			event = event.Str("role", role)
		}

		event.
			Str("correlation_id", GetCorrelationID(c)).
			Str("method", method).
			Str("route", route).
			Int("status", status).
			Dur("latency", elapsed).
			Msg("request handled")

		return err
	}
}

// responseStatus reports the status the client will see, including errors
// still to be rendered by the app error handler.
func responseStatus(c *fiber.Ctx, err error) int {
	if err != nil {
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return fiberErr.Code
		}
		return fiber.StatusInternalServerError
	}
	return c.Response().StatusCode()
}
