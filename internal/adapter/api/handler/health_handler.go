package handler

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/labstack/echo/v4"
)

// HealthCheck reports whether a dependency answers.
type HealthCheck func(ctx context.Context) error

type HealthHandler struct {
	checks map[string]HealthCheck
}

var healthHandler *HealthHandler

func NewHealthHandler(checks map[string]HealthCheck) *HealthHandler {
	if checks == nil {
		checks = map[string]HealthCheck{}
	}
	return &HealthHandler{
		checks: checks,
	}
}

func SetupHealthHandler(checks map[string]HealthCheck) {
	healthHandler = NewHealthHandler(checks)
}

func GetHealthHandler() *HealthHandler {
	return healthHandler
}

func (h *HealthHandler) CheckHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "Server is running",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// CheckDependencies runs every registered check and answers 503 when any
// of them fails.
func (h *HealthHandler) CheckDependencies(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := http.StatusOK
	results := make(map[string]string, len(names))
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			results[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		results[name] = "ok"
	}

	return c.JSON(status, map[string]interface{}{
		"status": http.StatusText(status),
		"checks": results,
		"time":   time.Now().Format(time.RFC3339),
	})
}
