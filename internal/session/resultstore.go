package session

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/ladderscan/backend/internal/logging"
	"github.com/ladderscan/backend/internal/models"
	"github.com/ladderscan/backend/internal/scanner"
)

// shortID safely truncates an ID for logging (handles short IDs gracefully)
func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

func sortByAccess(ids []string, sessions map[string]*SessionState) {
	sort.Slice(ids, func(i, j int) bool {
		return sessions[ids[i]].LastAccessed.Before(sessions[ids[j]].LastAccessed)
	})
}

// ResultStore keeps analysis results on disk, one directory per session,
// so they outlive the in-memory session. Each directory holds one JSON file
// per converted file and a summary.md.
type ResultStore struct {
	dir    string
	logger *slog.Logger
	mu     sync.RWMutex
	// cache tracks which sessions have results on disk (sessionID -> dir)
	cache map[string]string
}

// NewResultStore creates a result store rooted at dir and indexes the
// session directories already present.
func NewResultStore(dir string, logger *slog.Logger) (*ResultStore, error) {
	if logger == nil {
		logger = logging.Discard()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating results directory: %w", err)
	}

	rs := &ResultStore{
		dir:    dir,
		logger: logger,
		cache:  make(map[string]string),
	}
	rs.scanExisting()
	return rs, nil
}

// scanExisting indexes session directories left by a previous run.
func (rs *ResultStore) scanExisting() {
	entries, err := os.ReadDir(rs.dir)
	if err != nil {
		rs.logger.Warn("failed to scan results directory", "error", err)
		return
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		path := filepath.Join(rs.dir, entry.Name())
		if _, err := os.Stat(filepath.Join(path, scanner.SummaryFileName)); err == nil {
			rs.cache[entry.Name()] = path
		}
	}

	rs.logger.Info("scanned existing analysis results", "sessions", len(rs.cache))
}

// Path returns the directory holding a session's results.
func (rs *ResultStore) Path(sessionID string) string {
	return filepath.Join(rs.dir, sessionID)
}

// Save writes a session's results, replacing any earlier ones.
func (rs *ResultStore) Save(sessionID string, results map[string][]models.PatternResult) error {
	if len(results) == 0 {
		return nil
	}
	path := rs.Path(sessionID)
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("clearing old results: %w", err)
	}
	if err := scanner.WriteResults(path, results); err != nil {
		return err
	}

	rs.mu.Lock()
	rs.cache[sessionID] = path
	rs.mu.Unlock()
	rs.logger.Debug("analysis results saved", "session", shortID(sessionID), "files", len(results))
	return nil
}

// Has reports whether results exist for a session.
func (rs *ResultStore) Has(sessionID string) bool {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	_, ok := rs.cache[sessionID]
	return ok
}

// Summary returns the markdown summary of a session.
func (rs *ResultStore) Summary(sessionID string) (string, error) {
	rs.mu.RLock()
	path, ok := rs.cache[sessionID]
	rs.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	data, err := os.ReadFile(filepath.Join(path, scanner.SummaryFileName))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Delete removes a session's results.
func (rs *ResultStore) Delete(sessionID string) error {
	rs.mu.Lock()
	delete(rs.cache, sessionID)
	rs.mu.Unlock()

	if err := os.RemoveAll(rs.Path(sessionID)); err != nil {
		return fmt.Errorf("failed to delete results: %w", err)
	}
	return nil
}

// List returns the IDs of all sessions with stored results, sorted.
func (rs *ResultStore) List() []string {
	rs.mu.RLock()
	defer rs.mu.RUnlock()

	ids := make([]string, 0, len(rs.cache))
	for id := range rs.cache {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
