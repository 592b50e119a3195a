package session

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ladderscan/backend/internal/ladder"
	"github.com/ladderscan/backend/internal/metrics"
	"github.com/ladderscan/backend/internal/models"
	"github.com/ladderscan/backend/internal/testutil"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memSink records what the manager persists.
type memSink struct {
	mu       sync.Mutex
	rungs    map[string]int
	findings map[string]int
	deleted  []string
}

func newMemSink() *memSink {
	return &memSink{rungs: map[string]int{}, findings: map[string]int{}}
}

func (s *memSink) SaveConversion(_ context.Context, sessionID string, conv *ladder.Conversion) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := conv.RungCount()
	s.rungs[sessionID] += n
	return n, nil
}

func (s *memSink) SaveFindings(_ context.Context, sessionID, _ string, results []models.PatternResult) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range results {
		n += len(r.Snippets)
	}
	s.findings[sessionID] += n
	return n, nil
}

func (s *memSink) DeleteSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, sessionID)
	return nil
}

func waitFinished(t *testing.T, m *Manager, id string) *models.ConversionSession {
	t.Helper()
	var s *models.ConversionSession
	require.Eventually(t, func() bool {
		var ok bool
		s, ok = m.GetSession(id)
		return ok && s.Finished()
	}, 5*time.Second, 10*time.Millisecond)
	return s
}

func TestSessionManager_Convert(t *testing.T) {
	store := testutil.NewMockStorage(t.TempDir())
	store.AddFile("f1", "pump.xml", []byte(testutil.SimpleRungXML))
	store.AddFile("f2", "tank.L5X", []byte(testutil.PositionalXML))

	sink := newMemSink()
	reg := metrics.NewRegistry()
	results, err := NewResultStore(filepath.Join(t.TempDir(), "results"), nil)
	require.NoError(t, err)

	m := NewManager(store, Options{Rungs: sink, Metrics: reg, Results: results, MaxConcurrentFiles: 2})

	sess, err := m.StartSession([]string{"f1", "f2"}, ladder.StrategyTrace)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusConverting, sess.Status)

	done := waitFinished(t, m, sess.ID)
	assert.Equal(t, models.SessionStatusComplete, done.Status)
	assert.Equal(t, 100.0, done.Progress)
	assert.Equal(t, 2, done.FilesDone)
	assert.Equal(t, 2, done.DiagramCount)
	assert.Equal(t, 3, done.RungCount)
	assert.Empty(t, done.Errors)

	res, finished, ok := m.GetResults(sess.ID)
	require.True(t, ok)
	require.True(t, finished)
	require.Len(t, res, 2)

	// Results keep the order of the requested files.
	assert.Equal(t, "f1", res[0].FileID)
	assert.Equal(t, "pump.txt", res[0].OutputName)
	assert.Equal(t, []string{"XIC Start XIO Stop OTE Motor", ladder.EndOfDiagramMarker}, res[0].Conversion.Lines)
	assert.Equal(t, "tank.txt", res[1].OutputName)
	assert.Equal(t, []string{"XIC A OTE B", "XIC HMI_Reset OTU B", ladder.EndOfDiagramMarker}, res[1].Conversion.Lines)

	text, ok := store.GetConverted("f1")
	require.True(t, ok)
	assert.Equal(t, "// Converted from pump.xml\nXIC Start XIO Stop OTE Motor\n// End of ladder diagram", text)
	assert.Equal(t, models.FileStatusConverted, store.GetStatus("f2"))

	assert.Equal(t, 3, sink.rungs[sess.ID])
	assert.Equal(t, sink.findings[sess.ID], done.FindingCount)
	assert.True(t, results.Has(sess.ID))

	assert.Equal(t, 2.0, promtest.ToFloat64(reg.ConversionsTotal.WithLabelValues("trace", "success")))
	assert.Equal(t, 1.0, promtest.ToFloat64(reg.DiagramsTotal.WithLabelValues("positional")))
}

func TestSessionManager_FileErrors(t *testing.T) {
	store := testutil.NewMockStorage(t.TempDir())
	store.AddFile("good", "a.xml", []byte(testutil.SimpleRungXML))
	store.AddFile("empty", "b.xml", []byte(testutil.NoLadderXML))

	m := NewManager(store, Options{})

	_, err := m.StartSession([]string{"missing"}, ladder.StrategyTrace)
	assert.Error(t, err)
	_, err = m.StartSession(nil, ladder.StrategyTrace)
	assert.Error(t, err)

	sess, err := m.StartSession([]string{"good", "empty"}, ladder.StrategyPositional)
	require.NoError(t, err)
	done := waitFinished(t, m, sess.ID)

	// A file without ladder logic is not an error; it just has no text.
	assert.Equal(t, models.SessionStatusComplete, done.Status)
	res, _, _ := m.GetResults(sess.ID)
	require.Len(t, res, 2)
	assert.Equal(t, ladder.ErrNoLadderLogic.Error(), res[1].Conversion.Diagnostic)
	assert.Empty(t, res[1].Text)
	assert.Empty(t, res[1].Findings)
	_, saved := store.GetConverted("empty")
	assert.False(t, saved)
}

func TestSessionManager_AllFilesFail(t *testing.T) {
	store := testutil.NewMockStorage(t.TempDir())
	store.AddFile("f1", "a.xml", []byte(testutil.SimpleRungXML))
	path, err := store.GetFilePath("f1")
	require.NoError(t, err)
	// Metadata survives but the upload itself is gone.
	require.NoError(t, os.Remove(path))

	m := NewManager(store, Options{})
	sess, err := m.StartSession([]string{"f1"}, ladder.StrategyTrace)
	require.NoError(t, err)

	done := waitFinished(t, m, sess.ID)
	assert.Equal(t, models.SessionStatusError, done.Status)
	require.Len(t, done.Errors, 1)
	assert.Equal(t, "f1", done.Errors[0].FileID)
	assert.Equal(t, models.FileStatusError, store.GetStatus("f1"))

	res, finished, ok := m.GetResults(sess.ID)
	assert.True(t, ok)
	assert.True(t, finished)
	assert.Empty(t, res)
}

func TestSessionManager_Cleanup(t *testing.T) {
	store := testutil.NewMockStorage(t.TempDir())
	store.AddFile("f1", "a.xml", []byte(testutil.SimpleRungXML))
	sink := newMemSink()
	m := NewManager(store, Options{Rungs: sink})

	sess, err := m.StartSession([]string{"f1"}, ladder.StrategyTrace)
	require.NoError(t, err)
	waitFinished(t, m, sess.ID)

	// Recently touched sessions survive.
	assert.Equal(t, 0, m.CleanupOldSessions(0))

	m.mu.Lock()
	m.sessions[sess.ID].LastAccessed = time.Now().Add(-time.Hour)
	m.mu.Unlock()
	assert.True(t, m.TouchSession(sess.ID))
	assert.Equal(t, 0, m.CleanupOldSessions(time.Minute))

	m.mu.Lock()
	m.sessions[sess.ID].LastAccessed = time.Now().Add(-time.Hour)
	m.mu.Unlock()
	assert.Equal(t, 1, m.CleanupOldSessions(time.Minute))
	_, ok := m.GetSession(sess.ID)
	assert.False(t, ok)
	assert.False(t, m.TouchSession(sess.ID))
	// Persisted rows are not touched by cleanup.
	assert.Empty(t, sink.deleted)
}

func TestSessionManager_Delete(t *testing.T) {
	store := testutil.NewMockStorage(t.TempDir())
	store.AddFile("f1", "a.xml", []byte(testutil.SimpleRungXML))
	sink := newMemSink()
	results, err := NewResultStore(t.TempDir(), nil)
	require.NoError(t, err)
	m := NewManager(store, Options{Rungs: sink, Results: results})

	sess, err := m.StartSession([]string{"f1"}, ladder.StrategyTrace)
	require.NoError(t, err)
	waitFinished(t, m, sess.ID)
	require.True(t, results.Has(sess.ID))

	require.NoError(t, m.DeleteSession(context.Background(), sess.ID))
	assert.Equal(t, []string{sess.ID}, sink.deleted)
	assert.False(t, results.Has(sess.ID))
	assert.Equal(t, 0, m.Len())

	assert.ErrorIs(t, m.DeleteSession(context.Background(), sess.ID), ErrSessionNotFound)
}

func TestSessionManager_EvictsAtCapacity(t *testing.T) {
	store := testutil.NewMockStorage(t.TempDir())
	store.AddFile("f1", "a.xml", []byte(testutil.SimpleRungXML))
	m := NewManager(store, Options{})

	for i := 0; i < MaxSessions+3; i++ {
		sess, err := m.StartSession([]string{"f1"}, ladder.StrategyTrace)
		require.NoError(t, err)
		waitFinished(t, m, sess.ID)
	}
	assert.LessOrEqual(t, m.Len(), MaxSessions)
}

// blockingSink holds every conversion in SaveConversion until release is
// closed or the conversion context is cancelled.
type blockingSink struct {
	*memSink
	release chan struct{}
}

func newBlockingSink() *blockingSink {
	return &blockingSink{memSink: newMemSink(), release: make(chan struct{})}
}

func (s *blockingSink) SaveConversion(ctx context.Context, sessionID string, conv *ladder.Conversion) (int, error) {
	select {
	case <-s.release:
		return s.memSink.SaveConversion(ctx, sessionID, conv)
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func TestSessionManager_RejectsWhenAllConverting(t *testing.T) {
	store := testutil.NewMockStorage(t.TempDir())
	store.AddFile("f1", "a.xml", []byte(testutil.SimpleRungXML))
	sink := newBlockingSink()
	m := NewManager(store, Options{Rungs: sink})
	t.Cleanup(m.Close)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted []string
		rejected int
	)
	for i := 0; i < MaxSessions+5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sess, err := m.StartSession([]string{"f1"}, ladder.StrategyTrace)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				assert.ErrorIs(t, err, ErrTooManySessions)
				rejected++
				return
			}
			accepted = append(accepted, sess.ID)
		}()
	}
	wg.Wait()

	assert.Len(t, accepted, MaxSessions)
	assert.Equal(t, 5, rejected)
	assert.Equal(t, MaxSessions, m.Len())

	close(sink.release)
	for _, id := range accepted {
		waitFinished(t, m, id)
	}

	// Finished sessions make room again.
	sess, err := m.StartSession([]string{"f1"}, ladder.StrategyTrace)
	require.NoError(t, err)
	waitFinished(t, m, sess.ID)
	assert.Equal(t, MaxSessions, m.Len())
}

func TestSessionManager_CloseCancelsConversions(t *testing.T) {
	store := testutil.NewMockStorage(t.TempDir())
	store.AddFile("f1", "a.xml", []byte(testutil.SimpleRungXML))
	store.AddFile("f2", "b.xml", []byte(testutil.SimpleRungXML))
	m := NewManager(store, Options{Rungs: newBlockingSink()})

	sess, err := m.StartSession([]string{"f1", "f2"}, ladder.StrategyTrace)
	require.NoError(t, err)

	closed := make(chan struct{})
	go func() {
		m.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not return")
	}

	got, ok := m.GetSession(sess.ID)
	require.True(t, ok)
	assert.Equal(t, models.SessionStatusError, got.Status)
	require.Len(t, got.Errors, 2)
	for _, e := range got.Errors {
		assert.Contains(t, e.Reason, context.Canceled.Error())
	}

	_, err = m.StartSession([]string{"f1"}, ladder.StrategyTrace)
	assert.ErrorIs(t, err, ErrManagerClosed)
}
