package handler

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/sujet-portal-api/internal/config"
	"github.com/noah-isme/sujet-portal-api/internal/utils"
)

const dependencyCheckTimeout = 2 * time.Second

// DependencyCheck pings one backing dependency (database, redis, nats).
type DependencyCheck func(ctx context.Context) error

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status        string            `json:"status"`
	Timestamp     time.Time         `json:"timestamp"`
	Service       string            `json:"service"`
	Environment   string            `json:"environment"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Dependencies  map[string]string `json:"dependencies,omitempty"`
}

// HealthCheck pings every dependency in parallel. Any failing check marks the
// service degraded and answers 503 with the same body.
func HealthCheck(cfg config.Config, checks map[string]DependencyCheck) fiber.Handler {
	started := time.Now()

	return func(c *fiber.Ctx) error {
		now := time.Now()
		payload := HealthResponse{
			Status:        "ok",
			Timestamp:     now.UTC(),
			Service:       cfg.AppName,
			Environment:   cfg.AppEnv,
			UptimeSeconds: int64(now.Sub(started).Seconds()),
			Dependencies:  runChecks(c.UserContext(), checks),
		}
		for _, state := range payload.Dependencies {
			if state != "up" {
				payload.Status = "degraded"
			}
		}

		if payload.Status != "ok" {
			return c.Status(fiber.StatusServiceUnavailable).JSON(utils.APIResponse{
				Success: false,
				Data:    payload,
				Message: "service dégradé",
			})
		}
		return utils.SendSuccess(c, "service opérationnel", payload)
	}
}

func runChecks(parent context.Context, checks map[string]DependencyCheck) map[string]string {
	if len(checks) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(parent, dependencyCheckTimeout)
	defer cancel()

	var (
		mu     sync.Mutex
		states = make(map[string]string, len(checks))
		group  errgroup.Group
	)
	for name, check := range checks {
		group.Go(func() error {
			state := "up"
			if err := check(ctx); err != nil {
				state = "down"
			}
			mu.Lock()
			states[name] = state
			mu.Unlock()
			return nil
		})
	}
	_ = group.Wait()
	return states
}
