package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// ServiceHealth is the process-wide readiness snapshot, computed once at
// startup and read-only afterwards.
type ServiceHealth struct {
	Environment string `json:"environment"`
	Stripe      bool   `json:"stripe"`
	Database    bool   `json:"database"`
	Email       bool   `json:"email"`
}

// StatusRoutes serves the liveness endpoint.
type StatusRoutes struct {
	health ServiceHealth
}

// NewStatusRoutes constructs status routes from the startup snapshot.
func NewStatusRoutes(health ServiceHealth) *StatusRoutes {
	return &StatusRoutes{health: health}
}

// RegisterRoutes registers the status endpoint.
func (s *StatusRoutes) RegisterRoutes(e *echo.Echo) {
	e.GET("/", s.handleStatus)
}

func (s *StatusRoutes) handleStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":      "ok",
		"environment": s.health.Environment,
		"services": map[string]bool{
			"stripe":   s.health.Stripe,
			"database": s.health.Database,
			"email":    s.health.Email,
		},
	})
}
