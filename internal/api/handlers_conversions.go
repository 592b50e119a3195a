// handlers_conversions.go - Conversion session handlers
package api

import (
	"bytes"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/ladderscan/backend/internal/ladder"
	"github.com/ladderscan/backend/internal/models"
	"github.com/ladderscan/backend/internal/session"
	"github.com/ladderscan/backend/internal/storage"
	"github.com/vmihailenco/msgpack/v5"
)

// ConversionHandlerImpl implements the ConversionHandler interface
type ConversionHandlerImpl struct {
	sessionMgr SessionManager
	summaries  SummaryReader
	rungs      RungQuerier
	strategy   ladder.Strategy
}

// NewConversionHandler creates a conversion handler. summaries and rungs
// may be nil when result files or persistence are disabled.
func NewConversionHandler(sessionMgr SessionManager, summaries SummaryReader, rungs RungQuerier, strategy ladder.Strategy) ConversionHandler {
	if strategy == "" {
		strategy = ladder.StrategyTrace
	}
	return &ConversionHandlerImpl{
		sessionMgr: sessionMgr,
		summaries:  summaries,
		rungs:      rungs,
		strategy:   strategy,
	}
}

// HandleStartConversion starts a conversion session for one or more files
func (h *ConversionHandlerImpl) HandleStartConversion(c echo.Context) error {
	var req startConversionRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	fileIDs := req.normalizeFileIDs()
	if len(fileIDs) == 0 {
		return NewValidationError("fileId or fileIds")
	}

	strategy := h.strategy
	if req.Strategy != "" {
		strategy = ladder.Strategy(req.Strategy)
	}

	sess, err := h.sessionMgr.StartSession(fileIDs, strategy)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return &APIError{Status: http.StatusNotFound, Code: "NOT_FOUND", Message: err.Error()}
		}
		if errors.Is(err, session.ErrTooManySessions) || errors.Is(err, session.ErrManagerClosed) {
			return NewServiceUnavailableError(err.Error())
		}
		return NewInternalError("failed to start session", err)
	}

	return c.JSON(http.StatusAccepted, sess)
}

type conversionStatusResponse struct {
	Session *models.ConversionSession `json:"session" msgpack:"session"`
	Results []*session.FileResult     `json:"results,omitempty" msgpack:"results,omitempty"`
}

// HandleConversionStatus returns the session and, once finished, its results
func (h *ConversionHandlerImpl) HandleConversionStatus(c echo.Context) error {
	resp, err := h.status(c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

// HandleConversionMsgpack returns the same payload as HandleConversionStatus
// encoded as MessagePack
func (h *ConversionHandlerImpl) HandleConversionMsgpack(c echo.Context) error {
	resp, err := h.status(c.Param("id"))
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	enc.UseCompactInts(true)
	if err := enc.Encode(resp); err != nil {
		return NewInternalError("failed to encode msgpack", err)
	}
	return c.Blob(http.StatusOK, "application/msgpack", buf.Bytes())
}

func (h *ConversionHandlerImpl) status(id string) (*conversionStatusResponse, error) {
	if id == "" {
		return nil, NewValidationError("id")
	}

	sess, ok := h.sessionMgr.GetSession(id)
	if !ok {
		return nil, NewNotFoundError("session", id)
	}

	// Touch session to prevent cleanup while being viewed
	h.sessionMgr.TouchSession(id)

	resp := &conversionStatusResponse{Session: sess}
	if results, done, _ := h.sessionMgr.GetResults(id); done {
		resp.Results = results
	}
	return resp, nil
}

type fileFindings struct {
	FileID     string                 `json:"fileId"`
	OutputName string                 `json:"outputName"`
	Findings   []models.PatternResult `json:"findings"`
}

type findingsResponse struct {
	SessionID  string         `json:"sessionId"`
	Files      []fileFindings `json:"files"`
	BySeverity map[string]int `json:"bySeverity,omitempty"`
}

// HandleConversionFindings returns the scanner findings of a finished session
func (h *ConversionHandlerImpl) HandleConversionFindings(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	results, done, ok := h.sessionMgr.GetResults(id)
	if !ok {
		return NewNotFoundError("session", id)
	}
	if !done {
		return NewConflictError("session is still converting")
	}

	resp := findingsResponse{SessionID: id, Files: []fileFindings{}}
	for _, r := range results {
		if len(r.Findings) == 0 {
			continue
		}
		resp.Files = append(resp.Files, fileFindings{
			FileID:     r.FileID,
			OutputName: r.OutputName,
			Findings:   r.Findings,
		})
	}

	if h.rungs != nil {
		counts, err := h.rungs.CountFindings(c.Request().Context(), id)
		if err != nil {
			return NewInternalError("failed to count findings", err)
		}
		resp.BySeverity = counts
	}

	return c.JSON(http.StatusOK, resp)
}

// HandleConversionSummary returns the markdown summary of a finished session
func (h *ConversionHandlerImpl) HandleConversionSummary(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}
	if h.summaries == nil {
		return NewServiceUnavailableError("analysis results are not stored")
	}

	summary, err := h.summaries.Summary(id)
	if err != nil {
		return FromStoreError("summary", id, err)
	}

	return c.Blob(http.StatusOK, "text/markdown; charset=utf-8", []byte(summary))
}

// HandleDeleteConversion removes a finished session and its stored results
func (h *ConversionHandlerImpl) HandleDeleteConversion(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	if err := h.sessionMgr.DeleteSession(c.Request().Context(), id); err != nil {
		if errors.Is(err, session.ErrSessionActive) {
			return NewConflictError(err.Error())
		}
		return FromStoreError("session", id, err)
	}

	return c.NoContent(http.StatusNoContent)
}

// HandleSessionKeepAlive extends session lifetime for active viewing
func (h *ConversionHandlerImpl) HandleSessionKeepAlive(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	if ok := h.sessionMgr.TouchSession(id); !ok {
		return NewNotFoundError("session", id)
	}

	return c.NoContent(http.StatusNoContent)
}

type startConversionRequest struct {
	FileID   string   `json:"fileId"`
	FileIDs  []string `json:"fileIds" validate:"omitempty,max=100,dive,required"`
	Strategy string   `json:"strategy" validate:"omitempty,oneof=trace positional"`
}

// normalizeFileIDs merges the single and multi-file forms, dropping duplicates
func (r *startConversionRequest) normalizeFileIDs() []string {
	var ids []string
	seen := make(map[string]bool)
	add := func(id string) {
		if id != "" && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	add(r.FileID)
	for _, id := range r.FileIDs {
		add(id)
	}
	return ids
}
