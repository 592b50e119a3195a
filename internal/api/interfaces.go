// interfaces.go - Handler interface definitions for clean separation of concerns
package api

import (
	"context"

	"github.com/labstack/echo/v4"
	"github.com/ladderscan/backend/internal/ladder"
	"github.com/ladderscan/backend/internal/models"
	"github.com/ladderscan/backend/internal/rungstore"
	"github.com/ladderscan/backend/internal/session"
)

// ConvertHandler handles one-shot synchronous conversion
type ConvertHandler interface {
	HandleConvert(c echo.Context) error
}

// FileHandler handles uploaded ladder files
type FileHandler interface {
	HandleUploadFile(c echo.Context) error
	HandleGetRecentFiles(c echo.Context) error
	HandleGetFile(c echo.Context) error
	HandleGetConverted(c echo.Context) error
	HandleDeleteFile(c echo.Context) error
	HandleRenameFile(c echo.Context) error
}

// ConversionHandler handles asynchronous conversion sessions
type ConversionHandler interface {
	HandleStartConversion(c echo.Context) error
	HandleConversionStatus(c echo.Context) error
	HandleConversionMsgpack(c echo.Context) error
	HandleConversionFindings(c echo.Context) error
	HandleConversionSummary(c echo.Context) error
	HandleDeleteConversion(c echo.Context) error
	HandleSessionKeepAlive(c echo.Context) error
}

// RungHandler handles queries against persisted rungs
type RungHandler interface {
	HandleQueryRungs(c echo.Context) error
}

// HealthHandler handles health check operations
type HealthHandler interface {
	HandleHealth(c echo.Context) error
}

// SessionManager defines the interface for session management
// This allows mocking in tests
type SessionManager interface {
	StartSession(fileIDs []string, strategy ladder.Strategy) (*models.ConversionSession, error)
	GetSession(id string) (*models.ConversionSession, bool)
	GetResults(id string) ([]*session.FileResult, bool, bool)
	TouchSession(id string) bool
	DeleteSession(ctx context.Context, id string) error
}

// SummaryReader returns the markdown summary written for a session.
// *session.ResultStore implements it.
type SummaryReader interface {
	Summary(sessionID string) (string, error)
}

// RungQuerier reads back persisted rungs and findings.
// *rungstore.Store implements it.
type RungQuerier interface {
	QueryRungs(ctx context.Context, mnemonic string, limit int) ([]rungstore.RungRecord, error)
	CountFindings(ctx context.Context, sessionID string) (map[string]int, error)
}

var (
	_ SessionManager = (*session.Manager)(nil)
	_ SummaryReader  = (*session.ResultStore)(nil)
	_ RungQuerier    = (*rungstore.Store)(nil)
)
