package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/sujet-portal-api/internal/config"
	"github.com/noah-isme/sujet-portal-api/internal/handler"
	"github.com/noah-isme/sujet-portal-api/internal/middleware"
	"github.com/noah-isme/sujet-portal-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	AuthHandler             *handler.AuthHandler
	StudentDashboardHandler *handler.StudentDashboardHandler
	AssignmentHandler       *handler.AssignmentHandler
	SubmissionHandler       *handler.SubmissionHandler
	GradeHandler            *handler.GradeHandler
	AnalyticsHandler        *handler.AnalyticsHandler
	ActivityHandler         *handler.ActivityHandler
	StudentRosterHandler    *handler.StudentRosterHandler
	EventHandler            *handler.EventHandler
	DependencyChecks        map[string]handler.DependencyCheck
	JWTMiddleware           fiber.Handler
	SubmitRateLimit         fiber.Handler
	CredentialRateLimit     fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.DependencyChecks))

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	if deps.AuthHandler != nil {
		var guards []fiber.Handler
		if deps.CredentialRateLimit != nil {
			guards = append(guards, deps.CredentialRateLimit)
		}
		deps.AuthHandler.Register(api.Group("/auth"), jwtMiddleware, guards...)
	}

	student := api.Group("/student", jwtMiddleware, middleware.RequireRole(middleware.AuthRoleStudent))
	professor := api.Group("/professor", jwtMiddleware, middleware.RequireRole(middleware.AuthRoleStaff))

	if deps.StudentDashboardHandler != nil {
		deps.StudentDashboardHandler.Register(student)
	}
	if deps.EventHandler != nil {
		deps.EventHandler.Register(student)
	}

	if deps.AssignmentHandler != nil {
		deps.AssignmentHandler.RegisterStudent(student)
		deps.AssignmentHandler.RegisterProfessor(professor)
	}

	if deps.SubmissionHandler != nil {
		var guards []fiber.Handler
		if deps.SubmitRateLimit != nil {
			guards = append(guards, deps.SubmitRateLimit)
		}
		deps.SubmissionHandler.RegisterStudent(student, guards...)
		deps.SubmissionHandler.RegisterProfessor(professor)
	}

	if deps.GradeHandler != nil {
		deps.GradeHandler.RegisterStudent(student)
		deps.GradeHandler.RegisterProfessor(professor)
	}

	if deps.AnalyticsHandler != nil {
		deps.AnalyticsHandler.Register(professor)
	}

	if deps.ActivityHandler != nil {
		deps.ActivityHandler.Register(professor)
	}

	if deps.StudentRosterHandler != nil {
		deps.StudentRosterHandler.Register(professor)
	}
}
