// routes.go - Route registration helpers
// This file provides a clean way to register all API routes
package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/ladderscan/backend/internal/ladder"
	"github.com/ladderscan/backend/internal/storage"
)

// HTTPRecorder counts served requests. *metrics.Registry implements it.
type HTTPRecorder interface {
	RecordHTTPRequest(method, path string, status int)
}

// Dependencies holds all handler dependencies
type Dependencies struct {
	Store      storage.Store
	SessionMgr SessionManager
	Sessions   SessionCounter
	Summaries  SummaryReader
	Rungs      RungQuerier
	Converter  *ladder.Converter
	Metrics    ConversionRecorder
	Extensions []string
	Version    string
	Logger     *slog.Logger
}

// Handlers holds all handler instances
type Handlers struct {
	Health      HealthHandler
	Convert     ConvertHandler
	Files       FileHandler
	Conversions ConversionHandler
	Rungs       RungHandler
	Progress    *WebSocketHandler
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	converter := deps.Converter
	if converter == nil {
		converter = ladder.NewConverter()
	}
	return &Handlers{
		Health:      NewHealthHandler(deps.Version, deps.Sessions, deps.Rungs != nil),
		Convert:     NewConvertHandler(converter, deps.Extensions, deps.Metrics),
		Files:       NewFileHandler(deps.Store, deps.Extensions),
		Conversions: NewConversionHandler(deps.SessionMgr, deps.Summaries, deps.Rungs, converter.Strategy()),
		Rungs:       NewRungHandler(deps.Rungs),
		Progress:    NewWebSocketHandler(deps.SessionMgr, DefaultProgressInterval, deps.Logger),
	}
}

// RegisterRoutes registers all API routes under g (normally /api)
func RegisterRoutes(g *echo.Group, handlers *Handlers) {
	g.GET("/health", handlers.Health.HandleHealth)

	// One-shot conversion, nothing stored
	g.POST("/convert", handlers.Convert.HandleConvert)

	// Uploaded files
	files := g.Group("/files")
	files.POST("", handlers.Files.HandleUploadFile)
	files.GET("/recent", handlers.Files.HandleGetRecentFiles)
	files.GET("/:id", handlers.Files.HandleGetFile)
	files.GET("/:id/converted", handlers.Files.HandleGetConverted)
	files.DELETE("/:id", handlers.Files.HandleDeleteFile)
	files.PUT("/:id", handlers.Files.HandleRenameFile)

	// Conversion sessions
	conversions := g.Group("/conversions")
	conversions.POST("", handlers.Conversions.HandleStartConversion)
	conversions.GET("/:id", handlers.Conversions.HandleConversionStatus)
	conversions.GET("/:id/msgpack", handlers.Conversions.HandleConversionMsgpack)
	conversions.GET("/:id/findings", handlers.Conversions.HandleConversionFindings)
	conversions.GET("/:id/summary", handlers.Conversions.HandleConversionSummary)
	conversions.GET("/:id/ws", handlers.Progress.HandleProgress)
	conversions.POST("/:id/keepalive", handlers.Conversions.HandleSessionKeepAlive)
	conversions.DELETE("/:id", handlers.Conversions.HandleDeleteConversion)

	g.GET("/rungs", handlers.Rungs.HandleQueryRungs)
}

// RegisterMetricsRoute exposes a Prometheus handler at /metrics
func RegisterMetricsRoute(e *echo.Echo, h http.Handler) {
	e.GET("/metrics", echo.WrapHandler(h))
}

// SetupMiddleware installs the error handler and, when rec is non-nil,
// per-route request counting
func SetupMiddleware(e *echo.Echo, rec HTTPRecorder) {
	e.HTTPErrorHandler = ErrorHandler
	if rec != nil {
		e.Use(RequestMetrics(rec))
	}
}

// RequestMetrics counts requests by method, route pattern and status
func RequestMetrics(rec HTTPRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)

			status := c.Response().Status
			if err != nil {
				var apiErr *APIError
				var httpErr *echo.HTTPError
				switch {
				case errors.As(err, &apiErr):
					status = apiErr.Status
				case errors.As(err, &httpErr):
					status = httpErr.Code
				default:
					status = http.StatusInternalServerError
				}
			}

			path := c.Path()
			if path == "" {
				path = "unmatched"
			}
			rec.RecordHTTPRequest(c.Request().Method, path, status)
			return err
		}
	}
}
