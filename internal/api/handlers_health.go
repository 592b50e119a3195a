// handlers_health.go - Health check handlers
package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// SessionCounter reports how many conversion sessions are tracked.
type SessionCounter interface {
	Len() int
}

// HealthHandlerImpl implements the HealthHandler interface
type HealthHandlerImpl struct {
	version     string
	started     time.Time
	sessions    SessionCounter
	persistence bool
}

// NewHealthHandler creates a new health handler. sessions may be nil.
func NewHealthHandler(version string, sessions SessionCounter, persistence bool) HealthHandler {
	return &HealthHandlerImpl{
		version:     version,
		started:     time.Now(),
		sessions:    sessions,
		persistence: persistence,
	}
}

// HandleHealth returns server health status
func (h *HealthHandlerImpl) HandleHealth(c echo.Context) error {
	resp := map[string]interface{}{
		"status":      "ok",
		"version":     h.version,
		"uptime":      time.Since(h.started).Round(time.Second).String(),
		"persistence": h.persistence,
	}
	if h.sessions != nil {
		resp["sessions"] = h.sessions.Len()
	}
	return c.JSON(http.StatusOK, resp)
}
