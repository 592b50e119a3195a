// handlers_rungs.go - Persisted rung queries
package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/ladderscan/backend/internal/rungstore"
)

const (
	defaultRungLimit = 100
	maxRungLimit     = 10000
)

// RungHandlerImpl implements the RungHandler interface
type RungHandlerImpl struct {
	rungs RungQuerier
}

// NewRungHandler creates a rung query handler; rungs may be nil when
// persistence is disabled.
func NewRungHandler(rungs RungQuerier) RungHandler {
	return &RungHandlerImpl{rungs: rungs}
}

// HandleQueryRungs returns stored rungs containing ?mnemonic= as a token
func (h *RungHandlerImpl) HandleQueryRungs(c echo.Context) error {
	if h.rungs == nil {
		return NewServiceUnavailableError("rung persistence is disabled")
	}

	mnemonic := strings.ToUpper(strings.TrimSpace(c.QueryParam("mnemonic")))

	limit := defaultRungLimit
	if l := c.QueryParam("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 1 {
			return NewBadRequestError("limit must be a positive integer", err)
		}
		limit = min(n, maxRungLimit)
	}

	rungs, err := h.rungs.QueryRungs(c.Request().Context(), mnemonic, limit)
	if err != nil {
		return NewInternalError("failed to query rungs", err)
	}
	if rungs == nil {
		rungs = []rungstore.RungRecord{}
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"mnemonic": mnemonic,
		"count":    len(rungs),
		"rungs":    rungs,
	})
}
