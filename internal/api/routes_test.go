package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/ladderscan/backend/internal/ladder"
	"github.com/ladderscan/backend/internal/metrics"
	"github.com/ladderscan/backend/internal/models"
	"github.com/ladderscan/backend/internal/rungstore"
	"github.com/ladderscan/backend/internal/session"
	"github.com/ladderscan/backend/internal/testutil"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, rungs RungQuerier) (*echo.Echo, *testutil.MockStorage, *metrics.Registry) {
	t.Helper()
	store := testutil.NewMockStorage(t.TempDir())
	reg := metrics.NewRegistry()
	mgr := session.NewManager(store, session.Options{Metrics: reg})

	e := echo.New()
	SetupMiddleware(e, reg)
	RegisterRoutes(e.Group("/api"), NewHandlers(&Dependencies{
		Store:      store,
		SessionMgr: mgr,
		Sessions:   mgr,
		Rungs:      rungs,
		Converter:  ladder.NewConverter(ladder.WithObserver(reg)),
		Metrics:    reg,
		Extensions: testExtensions,
		Version:    "test",
	}))
	RegisterMetricsRoute(e, reg.Handler())
	return e, store, reg
}

func serve(e *echo.Echo, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestRoutes_UploadAndConvertSession(t *testing.T) {
	e, store, reg := newTestServer(t, nil)

	rec := serve(e, multipartRequest(t, "/api/files", "file", "pump.xml", testutil.SimpleRungXML))
	require.Equal(t, http.StatusCreated, rec.Code)
	var info models.FileInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))

	rec = serve(e, jsonRequest(t, http.MethodPost, "/api/conversions", map[string]string{"fileId": info.ID}))
	require.Equal(t, http.StatusAccepted, rec.Code)
	var sess models.ConversionSession
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sess))

	var status struct {
		Session models.ConversionSession `json:"session"`
		Results []session.FileResult     `json:"results"`
	}
	require.Eventually(t, func() bool {
		rec := serve(e, httpGet("/api/conversions/"+sess.ID))
		if rec.Code != http.StatusOK {
			return false
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
			return false
		}
		return status.Session.Finished()
	}, 5*time.Second, 10*time.Millisecond)

	assert.Equal(t, models.SessionStatusComplete, status.Session.Status)
	require.Len(t, status.Results, 1)
	assert.Equal(t, "pump.txt", status.Results[0].OutputName)
	assert.Contains(t, status.Results[0].Text, "XIC Start XIO Stop OTE Motor")

	converted, ok := store.GetConverted(info.ID)
	require.True(t, ok)
	assert.Equal(t, status.Results[0].Text, converted)

	assert.Equal(t, float64(1), promtest.ToFloat64(reg.HTTPRequestsTotal.WithLabelValues("POST", "/api/conversions", "202")))
	assert.Equal(t, float64(1), promtest.ToFloat64(reg.ConversionsTotal.WithLabelValues("trace", metrics.StatusSuccess)))

	rec = serve(e, httptestRequest(http.MethodDelete, "/api/conversions/"+sess.ID))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRoutes_ErrorsAreJSON(t *testing.T) {
	e, _, reg := newTestServer(t, nil)

	rec := serve(e, httpGet("/api/files/missing"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	var apiErr APIError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &apiErr))
	assert.Equal(t, "NOT_FOUND", apiErr.Code)
	assert.Equal(t, float64(1), promtest.ToFloat64(reg.HTTPRequestsTotal.WithLabelValues("GET", "/api/files/:id", "404")))

	rec = serve(e, httpGet("/api/rungs"))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = serve(e, httpGet("/api/nothing-here"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &apiErr))
	assert.Equal(t, "HTTP_ERROR", apiErr.Code)
}

func TestRoutes_HealthAndMetrics(t *testing.T) {
	e, _, _ := newTestServer(t, &mockRungs{})

	rec := serve(e, httpGet("/api/health"))
	require.Equal(t, http.StatusOK, rec.Code)
	var health map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "ok", health["status"])
	assert.Equal(t, "test", health["version"])
	assert.Equal(t, true, health["persistence"])
	assert.Equal(t, float64(0), health["sessions"])

	rec = serve(e, httpGet("/metrics"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "ladderscan_http_requests_total"))
}

func TestRungHandler_HandleQueryRungs(t *testing.T) {
	stored := []rungstore.RungRecord{{SessionID: "s", FileName: "pump.xml", Text: "XIC A OTE B"}}

	tests := []struct {
		name         string
		query        string
		wantErrCode  string
		wantMnemonic string
		wantLimit    int
	}{
		{name: "defaults", query: "", wantMnemonic: "", wantLimit: defaultRungLimit},
		{name: "mnemonic upper-cased", query: "?mnemonic=%20xic", wantMnemonic: "XIC", wantLimit: defaultRungLimit},
		{name: "limit capped", query: "?limit=999999", wantLimit: maxRungLimit},
		{name: "bad limit", query: "?limit=abc", wantErrCode: "BAD_REQUEST"},
		{name: "zero limit", query: "?limit=0", wantErrCode: "BAD_REQUEST"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rungs := &mockRungs{rungs: stored}
			handler := NewRungHandler(rungs)
			c, rec := newContext(httpGet("/api/rungs"+tt.query), nil, nil)
			err := handler.HandleQueryRungs(c)
			if tt.wantErrCode != "" {
				requireAPIError(t, err, http.StatusBadRequest, tt.wantErrCode)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, []string{tt.wantMnemonic}, rungs.mnemonics)
			assert.Equal(t, []int{tt.wantLimit}, rungs.limits)

			var body struct {
				Count int                    `json:"count"`
				Rungs []rungstore.RungRecord `json:"rungs"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, 1, body.Count)
			assert.Equal(t, stored, body.Rungs)
		})
	}

	failing := NewRungHandler(&mockRungs{err: errors.New("boom")})
	c, _ := newContext(httpGet("/api/rungs"), nil, nil)
	requireAPIError(t, failing.HandleQueryRungs(c), http.StatusInternalServerError, "INTERNAL_ERROR")
}

func TestFromStoreError(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, FromStoreError("session", "x", session.ErrSessionNotFound).Status)
	assert.Equal(t, http.StatusInternalServerError, FromStoreError("file", "x", errors.New("disk full")).Status)
}
