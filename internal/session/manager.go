// Package session runs asynchronous conversion sessions over uploaded files.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ladderscan/backend/internal/ladder"
	"github.com/ladderscan/backend/internal/logging"
	"github.com/ladderscan/backend/internal/metrics"
	"github.com/ladderscan/backend/internal/models"
	"github.com/ladderscan/backend/internal/scanner"
	"github.com/ladderscan/backend/internal/storage"
	"golang.org/x/sync/errgroup"
)

// MaxSessions limits concurrent sessions to prevent memory exhaustion
const MaxSessions = 10

// SessionMaxAge is how long to keep completed sessions before cleanup
const SessionMaxAge = 30 * time.Minute

// SessionKeepAliveWindow is how long to keep sessions that are actively being used
const SessionKeepAliveWindow = 5 * time.Minute

// ErrSessionNotFound is returned for unknown or already cleaned up sessions.
var ErrSessionNotFound = errors.New("session not found")

// ErrSessionActive is returned when deleting a session that is still converting.
var ErrSessionActive = errors.New("session is still converting")

// ErrTooManySessions is returned when MaxSessions are tracked and none of
// them has finished.
var ErrTooManySessions = errors.New("too many active sessions")

// ErrManagerClosed is returned by StartSession after Close.
var ErrManagerClosed = errors.New("session manager closed")

// RungSink persists converted rungs and findings. *rungstore.Store
// implements it.
type RungSink interface {
	SaveConversion(ctx context.Context, sessionID string, conv *ladder.Conversion) (int, error)
	SaveFindings(ctx context.Context, sessionID, fileName string, results []models.PatternResult) (int, error)
	DeleteSession(ctx context.Context, sessionID string) error
}

// Recorder receives conversion statistics. *metrics.Registry implements it.
type Recorder interface {
	ladder.Observer
	RecordConversion(strategy ladder.Strategy, status string, duration time.Duration)
	RecordFindings(results []models.PatternResult)
}

// Options configures a Manager. Zero values are usable.
type Options struct {
	Scanner            *scanner.Scanner
	Rungs              RungSink
	Results            *ResultStore
	Metrics            Recorder
	Logger             *slog.Logger
	MaxConcurrentFiles int
}

// FileResult is the converted and scanned form of one uploaded file.
type FileResult struct {
	FileID     string                 `json:"fileId" msgpack:"fileId"`
	Conversion *ladder.Conversion     `json:"conversion" msgpack:"conversion"`
	OutputName string                 `json:"outputName" msgpack:"outputName"`
	Text       string                 `json:"text" msgpack:"text"`
	Findings   []models.PatternResult `json:"findings" msgpack:"findings"`
}

// Manager handles active conversion sessions.
type Manager struct {
	sessions map[string]*SessionState
	mu       sync.RWMutex

	store   storage.Store
	scanner *scanner.Scanner
	rungs   RungSink
	results *ResultStore
	metrics Recorder
	logger  *slog.Logger
	workers int

	// ctx is cancelled by Close; running conversions observe it
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed bool
}

// SessionState holds the session metadata and its per-file results.
type SessionState struct {
	Session      *models.ConversionSession
	Results      []*FileResult // indexed like Session.FileIDs; nil for failed files
	LastAccessed time.Time     // Last time the session was accessed (for keep-alive)
}

// NewManager creates a new session manager over the given file store.
func NewManager(store storage.Store, opts Options) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		ctx:      ctx,
		cancel:   cancel,
		sessions: make(map[string]*SessionState),
		store:    store,
		scanner:  opts.Scanner,
		rungs:    opts.Rungs,
		results:  opts.Results,
		metrics:  opts.Metrics,
		logger:   opts.Logger,
		workers:  opts.MaxConcurrentFiles,
	}
	if m.scanner == nil {
		m.scanner = scanner.New(nil)
	}
	if m.logger == nil {
		m.logger = logging.Discard()
	}
	if m.workers <= 0 {
		m.workers = 1
	}
	return m
}

// StartSession begins converting the given files in the background.
func (m *Manager) StartSession(fileIDs []string, strategy ladder.Strategy) (*models.ConversionSession, error) {
	if len(fileIDs) == 0 {
		return nil, fmt.Errorf("no files to convert")
	}
	for _, id := range fileIDs {
		if _, err := m.store.Get(id); err != nil {
			return nil, err
		}
	}

	sessionID := uuid.New().String()
	session := models.NewConversionSession(sessionID, fileIDs, string(strategy))
	session.Status = models.SessionStatusConverting
	session.StartTime = time.Now().UnixMilli()

	state := &SessionState{
		Session:      session,
		Results:      make([]*FileResult, len(fileIDs)),
		LastAccessed: time.Now(),
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrManagerClosed
	}
	// Capacity check, eviction and insert happen under one lock
	if !m.makeRoomLocked() {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: limit is %d", ErrTooManySessions, MaxSessions)
	}
	m.sessions[sessionID] = state
	m.wg.Add(1)
	m.mu.Unlock()

	snapshot := session.Clone()
	go func() {
		defer m.wg.Done()
		m.runConversion(m.ctx, sessionID, append([]string(nil), fileIDs...), strategy)
	}()

	return snapshot, nil
}

func (m *Manager) runConversion(ctx context.Context, sessionID string, fileIDs []string, strategy ladder.Strategy) {
	start := time.Now()
	log := m.logger.With("session", shortID(sessionID))
	log.Info("conversion started", "files", len(fileIDs), "strategy", strategy)

	opts := []ladder.Option{ladder.WithStrategy(strategy), ladder.WithLogger(log)}
	if m.metrics != nil {
		opts = append(opts, ladder.WithObserver(m.metrics))
	}
	conv := ladder.NewConverter(opts...)

	var g errgroup.Group
	g.SetLimit(m.workers)
	for i, fileID := range fileIDs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				m.recordFile(sessionID, i, fileID, nil, fmt.Errorf("conversion cancelled: %w", err))
				return nil
			}
			res, err := m.convertFile(ctx, sessionID, conv, fileID, log)
			m.recordFile(sessionID, i, fileID, res, err)
			return nil
		})
	}
	_ = g.Wait()

	m.finish(sessionID, time.Since(start), log)
}

// convertFile converts, stores and scans one uploaded file.
func (m *Manager) convertFile(ctx context.Context, sessionID string, conv *ladder.Converter, fileID string, log *slog.Logger) (res *FileResult, err error) {
	// Recover from panics to prevent backend crash
	defer func() {
		if r := recover(); r != nil {
			log.Error("conversion panicked", "file", fileID, "panic", r)
			err = fmt.Errorf("conversion panicked: %v", r)
		}
		if err != nil {
			_ = m.store.SetStatus(fileID, models.FileStatusError)
		}
	}()

	info, err := m.store.Get(fileID)
	if err != nil {
		return nil, err
	}
	path, err := m.store.GetFilePath(fileID)
	if err != nil {
		return nil, err
	}
	_ = m.store.SetStatus(fileID, models.FileStatusConverting)

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", info.Name, err)
	}
	defer f.Close()

	began := time.Now()
	c, err := conv.ConvertReader(info.Name, f)
	if m.metrics != nil {
		m.metrics.RecordConversion(conv.Strategy(), metrics.ConversionStatus(c, err), time.Since(began))
	}
	if err != nil {
		return nil, err
	}

	res = &FileResult{
		FileID:     fileID,
		Conversion: c,
		OutputName: ladder.OutputName(info.Name),
		Findings:   []models.PatternResult{},
	}
	if c.HasContent() {
		res.Text = c.Text()
		if _, err := m.store.SaveConverted(fileID, res.Text); err != nil {
			return nil, err
		}
		res.Findings = m.scanner.ScanText(res.Text)
		if m.metrics != nil {
			m.metrics.RecordFindings(res.Findings)
		}
	}

	if m.rungs != nil {
		if _, err := m.rungs.SaveConversion(ctx, sessionID, c); err != nil {
			return nil, fmt.Errorf("storing rungs: %w", err)
		}
		if _, err := m.rungs.SaveFindings(ctx, sessionID, res.OutputName, res.Findings); err != nil {
			return nil, fmt.Errorf("storing findings: %w", err)
		}
	}

	_ = m.store.SetStatus(fileID, models.FileStatusConverted)
	log.Debug("file converted", "file", info.Name, "diagrams", len(c.Diagrams), "rungs", c.RungCount())
	return res, nil
}

func (m *Manager) recordFile(sessionID string, index int, fileID string, res *FileResult, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.sessions[sessionID]
	if !ok {
		return
	}

	s := state.Session
	s.FilesDone++
	// Clamp below 100% until the session is finalized
	s.Progress = min(99.9, float64(s.FilesDone)*100/float64(len(s.FileIDs)))

	if err != nil {
		s.Errors = append(s.Errors, models.SessionError{FileID: fileID, Reason: err.Error()})
		return
	}
	state.Results[index] = res
	s.DiagramCount += len(res.Conversion.Diagrams)
	s.RungCount += res.Conversion.RungCount()
	for _, f := range res.Findings {
		s.FindingCount += f.Occurrences
	}
}

func (m *Manager) finish(sessionID string, elapsed time.Duration, log *slog.Logger) {
	m.mu.Lock()
	state, ok := m.sessions[sessionID]
	if !ok {
		m.mu.Unlock()
		return
	}

	s := state.Session
	s.Progress = 100
	s.ProcessingTimeMs = elapsed.Milliseconds()
	s.EndTime = time.Now().UnixMilli()
	if len(s.Errors) == len(s.FileIDs) {
		s.Status = models.SessionStatusError
	} else {
		s.Status = models.SessionStatusComplete
	}
	summary := s.Clone()
	findings := findingsByOutput(state.Results)
	m.mu.Unlock()

	if m.results != nil && summary.Status == models.SessionStatusComplete {
		if err := m.results.Save(sessionID, findings); err != nil {
			log.Warn("failed to write analysis results", "error", err)
		}
	}

	log.Info("conversion finished",
		"status", summary.Status,
		"files", len(summary.FileIDs),
		"failed", len(summary.Errors),
		"rungs", summary.RungCount,
		"findings", summary.FindingCount,
		"elapsed", elapsed.Round(time.Millisecond))
}

// findingsByOutput keys scan results by converted file name, skipping files
// that produced no text.
func findingsByOutput(results []*FileResult) map[string][]models.PatternResult {
	out := make(map[string][]models.PatternResult)
	for _, r := range results {
		if r != nil && r.Text != "" {
			out[r.OutputName] = r.Findings
		}
	}
	return out
}

// makeRoomLocked evicts the least recently accessed finished sessions until
// one more fits. It reports false when every tracked session is still
// converting. m.mu must be held.
func (m *Manager) makeRoomLocked() bool {
	if len(m.sessions) < MaxSessions {
		return true
	}

	// Evict the least recently accessed finished sessions first
	var oldest []string
	for id, state := range m.sessions {
		if state.Session.Finished() {
			oldest = append(oldest, id)
		}
	}
	sortByAccess(oldest, m.sessions)

	toFree := len(m.sessions) - MaxSessions + 1
	for i := 0; i < toFree && i < len(oldest); i++ {
		delete(m.sessions, oldest[i])
		m.logger.Info("evicted session to stay under limit", "session", shortID(oldest[i]))
	}
	return len(m.sessions) < MaxSessions
}

// CleanupOldSessions removes sessions older than maxAge,
// but keeps sessions that have been accessed within SessionKeepAliveWindow.
// Rows already persisted to the rung store are kept.
func (m *Manager) CleanupOldSessions(maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-maxAge)
	keepAliveCutoff := now.Add(-SessionKeepAliveWindow)

	removed := 0
	for id, state := range m.sessions {
		// Only clean up completed/error sessions
		if !state.Session.Finished() {
			continue
		}

		// Don't clean up sessions that are actively being used
		if state.LastAccessed.After(keepAliveCutoff) {
			continue
		}

		if state.LastAccessed.Before(cutoff) {
			delete(m.sessions, id)
			removed++
			m.logger.Info("cleaned up aged session",
				"session", shortID(id),
				"idle", now.Sub(state.LastAccessed).Round(time.Second))
		}
	}
	return removed
}

// GetSession returns a snapshot of a session by ID.
func (m *Manager) GetSession(id string) (*models.ConversionSession, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	return state.Session.Clone(), true
}

// GetResults returns the per-file results of a finished session. Failed
// files are omitted. ok is false if the session is unknown; done is false
// while it is still converting.
func (m *Manager) GetResults(id string) (results []*FileResult, done bool, ok bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.sessions[id]
	if !ok {
		return nil, false, false
	}
	if !state.Session.Finished() {
		return nil, false, true
	}
	for _, r := range state.Results {
		if r != nil {
			results = append(results, r)
		}
	}
	return results, true, true
}

// TouchSession updates the LastAccessed timestamp for a session.
// This should be called whenever a session is actively being used
// to prevent it from being cleaned up.
func (m *Manager) TouchSession(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.sessions[id]
	if !ok {
		return false
	}
	state.LastAccessed = time.Now()
	return true
}

// DeleteSession drops a finished session together with its persisted rungs
// and analysis results.
func (m *Manager) DeleteSession(ctx context.Context, id string) error {
	m.mu.Lock()
	state, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if !state.Session.Finished() {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrSessionActive, shortID(id))
	}
	delete(m.sessions, id)
	m.mu.Unlock()

	if m.rungs != nil {
		if err := m.rungs.DeleteSession(ctx, id); err != nil {
			return err
		}
	}
	if m.results != nil {
		return m.results.Delete(id)
	}
	return nil
}

// Len returns the number of tracked sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Close stops accepting sessions, cancels running conversions and waits for
// them to return. Files not yet started are recorded as failed.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	m.cancel()
	m.wg.Wait()
}
