package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/sujet-portal-api/internal/dto"
	"github.com/noah-isme/sujet-portal-api/internal/middleware"
	"github.com/noah-isme/sujet-portal-api/internal/service"
)

const (
	eventWriteTimeout = 5 * time.Second
	eventPingInterval = 30 * time.Second
)

// EventHandler streams view invalidation events to connected students.
type EventHandler struct {
	events service.ViewEventService
	logger zerolog.Logger
}

// NewEventHandler creates the websocket handler.
func NewEventHandler(events service.ViewEventService, logger zerolog.Logger) *EventHandler {
	return &EventHandler{
		events: events,
		logger: logger.With().Str("component", "event_handler").Logger(),
	}
}

// Register binds the websocket upgrade under the provided router group.
func (h *EventHandler) Register(router fiber.Router) {
	router.Use("/events/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			ctx := c.UserContext()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx = middleware.ContextWithCorrelation(ctx, middleware.GetCorrelationID(c))
			c.Locals("request_ctx", ctx)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	router.Get("/events/ws", websocket.New(h.handleConnection))
}

func (h *EventHandler) handleConnection(conn *websocket.Conn) {
	studentID, _ := conn.Locals("user_id").(uint)
	if studentID == 0 {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "user id missing"))
		_ = conn.Close()
		return
	}

	events, cancel := h.events.Subscribe(studentID)
	defer cancel()

	logger := h.logger.With().Uint("student_id", studentID).Logger()
	if ctx, ok := conn.Locals("request_ctx").(context.Context); ok {
		if correlation := middleware.CorrelationIDFromContext(ctx); correlation != "" {
			logger = logger.With().Str("correlation_id", correlation).Logger()
		}
	}
	logger.Info().Msg("events websocket connected")
	defer logger.Info().Msg("events websocket disconnected")

	if err := h.write(conn, dto.ViewEvent{StudentID: studentID, Views: []string{}, Reason: "connected", OccurredAt: time.Now().UTC()}); err != nil {
		return
	}

	// Reads only detect the client going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(eventPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := h.write(conn, event); err != nil {
				logger.Debug().Err(err).Msg("events write failed")
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(eventWriteTimeout)); err != nil {
				return
			}
		}
	}
}

func (h *EventHandler) write(conn *websocket.Conn, event dto.ViewEvent) error {
	if err := conn.SetWriteDeadline(time.Now().Add(eventWriteTimeout)); err != nil {
		return err
	}
	return conn.WriteJSON(event)
}
