package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/ladderscan/backend/internal/ladder"
	"github.com/ladderscan/backend/internal/models"
	"github.com/ladderscan/backend/internal/rungstore"
	"github.com/ladderscan/backend/internal/session"
	"github.com/ladderscan/backend/internal/storage"
	"github.com/stretchr/testify/require"
)

var testExtensions = []string{".xml", ".l5x"}

// multipartRequest builds a POST with a single "file" part. An empty field
// name produces a form without the file.
func multipartRequest(t *testing.T, target, field, filename, content string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if field != "" {
		part, err := w.CreateFormFile(field, filename)
		require.NoError(t, err)
		_, err = io.WriteString(part, content)
		require.NoError(t, err)
	} else {
		require.NoError(t, w.WriteField("other", "value"))
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	return req
}

func jsonRequest(t *testing.T, method, target string, v interface{}) *http.Request {
	t.Helper()
	body, err := json.Marshal(v)
	require.NoError(t, err)
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func newContext(req *http.Request, names []string, values []string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if len(names) > 0 {
		c.SetParamNames(names...)
		c.SetParamValues(values...)
	}
	return c, rec
}

// requireAPIError asserts err is an *APIError with the given status and code
func requireAPIError(t *testing.T, err error, status int, code string) *APIError {
	t.Helper()
	require.Error(t, err)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr), "expected APIError, got %T", err)
	require.Equal(t, status, apiErr.Status)
	require.Equal(t, code, apiErr.Code)
	return apiErr
}

// mockSessionManager is a SessionManager with canned sessions
type mockSessionManager struct {
	mu        sync.Mutex
	sessions  map[string]*models.ConversionSession
	results   map[string][]*session.FileResult
	known     map[string]bool
	started   [][]string
	strategy  ladder.Strategy
	deleteErr error
	startErr  error
	touched   []string
}

func newMockSessionManager(knownFiles ...string) *mockSessionManager {
	m := &mockSessionManager{
		sessions: make(map[string]*models.ConversionSession),
		results:  make(map[string][]*session.FileResult),
		known:    make(map[string]bool),
	}
	for _, id := range knownFiles {
		m.known[id] = true
	}
	return m
}

func (m *mockSessionManager) StartSession(fileIDs []string, strategy ladder.Strategy) (*models.ConversionSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.startErr != nil {
		return nil, m.startErr
	}
	for _, id := range fileIDs {
		if !m.known[id] {
			return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, id)
		}
	}
	m.started = append(m.started, fileIDs)
	m.strategy = strategy
	sess := models.NewConversionSession(fmt.Sprintf("sess-%d", len(m.started)), fileIDs, string(strategy))
	sess.Status = models.SessionStatusConverting
	m.sessions[sess.ID] = sess
	return sess.Clone(), nil
}

func (m *mockSessionManager) addFinished(id string, results ...*session.FileResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess := models.NewConversionSession(id, []string{"f1"}, string(ladder.StrategyTrace))
	sess.Status = models.SessionStatusComplete
	sess.Progress = 100
	m.sessions[id] = sess
	m.results[id] = results
}

func (m *mockSessionManager) GetSession(id string) (*models.ConversionSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	return sess.Clone(), true
}

func (m *mockSessionManager) GetResults(id string) ([]*session.FileResult, bool, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	if !ok {
		return nil, false, false
	}
	if !sess.Finished() {
		return nil, false, true
	}
	return m.results[id], true, true
}

func (m *mockSessionManager) TouchSession(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.touched = append(m.touched, id)
	_, ok := m.sessions[id]
	return ok
}

func (m *mockSessionManager) DeleteSession(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	if _, ok := m.sessions[id]; !ok {
		return fmt.Errorf("%w: %s", session.ErrSessionNotFound, id)
	}
	delete(m.sessions, id)
	return nil
}

// mockRungs is a RungQuerier over a fixed slice
type mockRungs struct {
	rungs     []rungstore.RungRecord
	counts    map[string]int
	err       error
	mnemonics []string
	limits    []int
}

func (m *mockRungs) QueryRungs(_ context.Context, mnemonic string, limit int) ([]rungstore.RungRecord, error) {
	m.mnemonics = append(m.mnemonics, mnemonic)
	m.limits = append(m.limits, limit)
	if m.err != nil {
		return nil, m.err
	}
	return m.rungs, nil
}

func (m *mockRungs) CountFindings(_ context.Context, _ string) (map[string]int, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.counts, nil
}

type summaryMap map[string]string

func (s summaryMap) Summary(id string) (string, error) {
	text, ok := s[id]
	if !ok {
		return "", fmt.Errorf("%w: %s", session.ErrSessionNotFound, id)
	}
	return text, nil
}

func httptestRequest(method, target string) *http.Request {
	return httptest.NewRequest(method, target, nil)
}

func httpGet(target string) *http.Request {
	return httptestRequest(http.MethodGet, target)
}
