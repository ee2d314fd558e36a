package handler

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"

	"github.com/noah-isme/sujet-portal-api/internal/dto"
	"github.com/noah-isme/sujet-portal-api/internal/middleware"
	"github.com/noah-isme/sujet-portal-api/internal/service"
	"github.com/noah-isme/sujet-portal-api/internal/utils"
)

// chain returns guards followed by final in a fresh slice.
func chain(guards []fiber.Handler, final fiber.Handler) []fiber.Handler {
	handlers := make([]fiber.Handler, 0, len(guards)+1)
	handlers = append(handlers, guards...)
	return append(handlers, final)
}

func parseQueryInt(c *fiber.Ctx, key string) (int, error) {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return 0, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 0 {
		return 0, fmt.Errorf("%w: %s must be a positive integer", service.ErrInvalidArgument, key)
	}
	return parsed, nil
}

func parseQueryUint(c *fiber.Ctx, key string) (*uint, error) {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return nil, nil
	}
	parsed, err := service.ParseID(value)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

// parseQueryTime accepts RFC 3339 timestamps or plain dates (YYYY-MM-DD).
func parseQueryTime(c *fiber.Ctx, key string) (*time.Time, error) {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if parsed, err := time.Parse(layout, value); err == nil {
			parsed = parsed.UTC()
			return &parsed, nil
		}
	}
	return nil, fmt.Errorf("%w: %s must be an RFC 3339 timestamp or a date", service.ErrInvalidArgument, key)
}

func parseUintParam(c *fiber.Ctx, key string) (uint, error) {
	return service.ParseID(c.Params(key))
}

func userIDFromContext(c *fiber.Ctx) uint {
	switch v := c.Locals("user_id").(type) {
	case uint:
		return v
	case int:
		if v < 0 {
			return 0
		}
		return uint(v)
	case string:
		parsed, err := strconv.ParseUint(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0
		}
		return uint(parsed)
	default:
		return 0
	}
}

func userRoleFromContext(c *fiber.Ctx) string {
	if role, ok := c.Locals("user_role").(string); ok {
		return strings.ToLower(strings.TrimSpace(role))
	}
	return ""
}

func actorFromContext(c *fiber.Ctx) service.Actor {
	return service.Actor{
		ID:   userIDFromContext(c),
		Role: userRoleFromContext(c),
	}
}

func requestLogger(base zerolog.Logger, c *fiber.Ctx) *zerolog.Logger {
	logger := base
	if c != nil {
		if correlation := middleware.GetCorrelationID(c); correlation != "" {
			logger = base.With().Str("correlation_id", correlation).Logger()
		}
	}
	return &logger
}

func isValidationError(err error) bool {
	var validationErrors validator.ValidationErrors
	return errors.As(err, &validationErrors)
}

func validationDetails(err error) map[string]string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return nil
	}
	details := make(map[string]string, len(validationErrors))
	for _, fieldErr := range validationErrors {
		details[fieldErr.Field()] = fieldErr.Tag()
	}
	return details
}

// handleError maps domain error kinds to HTTP responses. The cause is only
// logged; clients receive a generic message.
func handleError(c *fiber.Ctx, base zerolog.Logger, err error) error {
	logger := requestLogger(base, c)

	switch {
	case isValidationError(err):
		return utils.Fail(c, fiber.StatusBadRequest, "requête invalide", validationDetails(err))
	case errors.Is(err, service.ErrInvalidArgument):
		return utils.SendError(c, fiber.StatusBadRequest, "requête invalide")
	case errors.Is(err, service.ErrMissingPayload):
		return utils.SendError(c, fiber.StatusBadRequest, "fichier manquant")
	case errors.Is(err, service.ErrInvalidCredentials):
		return utils.SendError(c, fiber.StatusUnauthorized, "identifiants invalides")
	case errors.Is(err, service.ErrUnauthorized):
		return utils.SendError(c, fiber.StatusForbidden, "accès refusé")
	case errors.Is(err, service.ErrNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "ressource introuvable")
	case errors.Is(err, service.ErrSubmissionClosed):
		return utils.SendError(c, fiber.StatusConflict, "le dépôt n'est pas ouvert pour ce sujet")
	case errors.Is(err, service.ErrEmailTaken):
		return utils.SendError(c, fiber.StatusConflict, "adresse e-mail déjà utilisée")
	case errors.Is(err, service.ErrPayloadTooLarge):
		return utils.SendError(c, fiber.StatusRequestEntityTooLarge, "fichier trop volumineux")
	case errors.Is(err, service.ErrUnsupportedFileType):
		return utils.SendError(c, fiber.StatusUnsupportedMediaType, "type de fichier non autorisé")
	case errors.Is(err, service.ErrEvaluationDisabled):
		return utils.SendError(c, fiber.StatusServiceUnavailable, "évaluation automatique indisponible")
	case errors.Is(err, service.ErrTimeout):
		logger.Warn().Err(err).Msg("request timed out")
		return utils.SendError(c, fiber.StatusGatewayTimeout, "le service met trop de temps à répondre")
	case errors.Is(err, service.ErrAggregationFailure):
		logger.Error().Err(err).Msg("aggregation failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "impossible de calculer les données demandées")
	default:
		logger.Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "erreur interne du serveur")
	}
}

func readFormFile(c *fiber.Ctx, field string, maxBytes int64) (*dto.AssignmentFile, error) {
	header, err := c.FormFile(field)
	if err != nil {
		if errors.Is(err, fasthttp.ErrMissingFile) || errors.Is(err, fasthttp.ErrNoMultipartForm) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", service.ErrInvalidArgument, err)
	}
	if maxBytes > 0 && header.Size > maxBytes {
		return nil, fmt.Errorf("%w: %d bytes", service.ErrPayloadTooLarge, header.Size)
	}
	content, err := readMultipartFile(header)
	if err != nil {
		return nil, err
	}
	return &dto.AssignmentFile{Name: header.Filename, Content: content}, nil
}

func readMultipartFile(header *multipart.FileHeader) ([]byte, error) {
	file, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	return content, nil
}

func sendFile(c *fiber.Ctx, file dto.SubmissionFile) error {
	mimeType := file.MimeType
	if mimeType == "" {
		mimeType = fiber.MIMEOctetStream
	}
	c.Set(fiber.HeaderContentType, mimeType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", file.FileName))
	return c.Status(fiber.StatusOK).Send(file.Content)
}
