// handlers_convert.go - Synchronous single-file conversion
package api

import (
	"net/http"
	"path/filepath"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/ladderscan/backend/internal/ladder"
	"github.com/ladderscan/backend/internal/metrics"
)

// ConversionRecorder receives per-request conversion outcomes.
// *metrics.Registry implements it.
type ConversionRecorder interface {
	RecordConversion(strategy ladder.Strategy, status string, duration time.Duration)
}

// ConvertHandlerImpl implements the ConvertHandler interface
type ConvertHandlerImpl struct {
	converter  *ladder.Converter
	extensions []string
	metrics    ConversionRecorder
}

// NewConvertHandler creates a convert handler. extensions are lower-cased
// with a leading dot; recorder may be nil.
func NewConvertHandler(converter *ladder.Converter, extensions []string, recorder ConversionRecorder) ConvertHandler {
	return &ConvertHandlerImpl{
		converter:  converter,
		extensions: extensions,
		metrics:    recorder,
	}
}

type convertResponse struct {
	Converted  string `json:"converted,omitempty"`
	Filename   string `json:"filename,omitempty"`
	Rungs      int    `json:"rungs"`
	Diagnostic string `json:"diagnostic,omitempty"`
	Success    bool   `json:"success"`
	Error      string `json:"error,omitempty"`
}

// HandleConvert converts an uploaded ladder file in the request and returns
// the text without storing anything.
func (h *ConvertHandlerImpl) HandleConvert(c echo.Context) error {
	file, err := c.FormFile("file")
	if err != nil {
		return NewBadRequestError("no file provided", err)
	}
	name := filepath.Base(file.Filename)
	if file.Filename == "" || name == "." || name == "/" {
		return NewValidationError("file")
	}
	if !hasExtension(name, h.extensions) {
		return NewBadRequestError("file must be XML or L5X format", nil)
	}

	src, err := file.Open()
	if err != nil {
		return NewInternalError("failed to open uploaded file", err)
	}
	defer src.Close()

	start := time.Now()
	conv, err := h.converter.ConvertReader(name, src)
	if h.metrics != nil {
		h.metrics.RecordConversion(h.converter.Strategy(), metrics.ConversionStatus(conv, err), time.Since(start))
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, convertResponse{
			Error:   "Error converting file: " + err.Error(),
			Success: false,
		})
	}

	return c.JSON(http.StatusOK, convertResponse{
		Converted:  conv.Text(),
		Filename:   ladder.OutputName(name),
		Rungs:      conv.RungCount(),
		Diagnostic: conv.Diagnostic,
		Success:    true,
	})
}
