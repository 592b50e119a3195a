// Package rungstore persists converted rungs and scanner findings in DuckDB
// so they can be queried across conversion sessions.
package rungstore

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ladderscan/backend/internal/ladder"
	"github.com/ladderscan/backend/internal/logging"
	"github.com/ladderscan/backend/internal/models"
	"github.com/marcboeker/go-duckdb"
)

// Options tunes the DuckDB connection.
type Options struct {
	Threads     int
	MemoryLimit string
	Logger      *slog.Logger
}

// RungRecord is one stored rung line.
type RungRecord struct {
	SessionID string `json:"sessionId"`
	FileName  string `json:"fileName"`
	Diagram   int    `json:"diagram"`
	RungIndex int    `json:"rungIndex"`
	Strategy  string `json:"strategy"`
	Source    string `json:"source"`
	Text      string `json:"text"`
}

// Store is a DuckDB-backed rung and finding index.
type Store struct {
	db     *sql.DB
	path   string
	logger *slog.Logger

	// appenders need exclusive use of a connection
	writeMu sync.Mutex
}

var schema = []string{`
CREATE TABLE IF NOT EXISTS rungs (
	session_id VARCHAR NOT NULL,
	file_name  VARCHAR NOT NULL,
	diagram    INTEGER NOT NULL,
	rung_index INTEGER NOT NULL,
	strategy   VARCHAR NOT NULL,
	source     VARCHAR NOT NULL,
	text       VARCHAR NOT NULL
)`, `
CREATE TABLE IF NOT EXISTS findings (
	session_id VARCHAR NOT NULL,
	file_name  VARCHAR NOT NULL,
	code       VARCHAR NOT NULL,
	name       VARCHAR NOT NULL,
	line       INTEGER NOT NULL,
	severity   VARCHAR NOT NULL
)`,
}

// Open opens (or creates) the store at path. An empty path opens an
// in-memory database.
func Open(path string, opts Options) (*Store, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	if opts.Threads <= 0 {
		opts.Threads = 2
	}
	if opts.MemoryLimit == "" {
		opts.MemoryLimit = "512MB"
	}

	connector, err := duckdb.NewConnector(path, func(execer driver.ExecerContext) error {
		pragmas := []string{
			fmt.Sprintf("PRAGMA memory_limit='%s'", opts.MemoryLimit),
			fmt.Sprintf("PRAGMA threads=%d", opts.Threads),
			"PRAGMA enable_progress_bar=false",
		}
		for _, pragma := range pragmas {
			if _, err := execer.ExecContext(context.Background(), pragma, nil); err != nil {
				return fmt.Errorf("%s: %w", pragma, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create DuckDB connector: %w", err)
	}

	db := sql.OpenDB(connector)
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create tables: %w", err)
		}
	}

	logger.Info("rung store opened", "path", displayPath(path))
	return &Store{db: db, path: path, logger: logger}, nil
}

func displayPath(path string) string {
	if path == "" {
		return ":memory:"
	}
	return path
}

// SaveConversion stores every rung line of a conversion and returns how
// many rows were written. End-of-diagram markers are not stored.
func (s *Store) SaveConversion(ctx context.Context, sessionID string, conv *ladder.Conversion) (int, error) {
	rows := 0
	err := s.appendRows(ctx, "rungs", func(app *duckdb.Appender) error {
		for _, d := range conv.Diagrams {
			for i, line := range d.Lines {
				if err := app.AppendRow(
					sessionID,
					conv.FileName,
					int32(d.Index),
					int32(i),
					string(conv.Strategy),
					string(d.Source),
					line,
				); err != nil {
					return fmt.Errorf("failed to append rung %d of diagram %d: %w", i, d.Index, err)
				}
				rows++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.logger.Debug("rungs stored", "session", sessionID, "file", conv.FileName, "rows", rows)
	return rows, nil
}

// SaveFindings stores one row per matched snippet.
func (s *Store) SaveFindings(ctx context.Context, sessionID, fileName string, results []models.PatternResult) (int, error) {
	rows := 0
	err := s.appendRows(ctx, "findings", func(app *duckdb.Appender) error {
		for _, r := range results {
			for _, sn := range r.Snippets {
				if err := app.AppendRow(sessionID, fileName, r.Code, r.Name, int32(sn.LineStart), sn.Severity); err != nil {
					return fmt.Errorf("failed to append finding %s: %w", r.Code, err)
				}
				rows++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return rows, nil
}

// appendRows writes through the native Appender API on a dedicated
// connection.
func (s *Store) appendRows(ctx context.Context, table string, fill func(*duckdb.Appender) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to get connection: %w", err)
	}
	defer conn.Close()

	err = conn.Raw(func(driverConn interface{}) error {
		dConn, ok := driverConn.(*duckdb.Conn)
		if !ok {
			return fmt.Errorf("failed to cast to duckdb.Conn")
		}

		appender, err := duckdb.NewAppenderFromConn(dConn, "", table)
		if err != nil {
			return fmt.Errorf("failed to create appender: %w", err)
		}
		defer appender.Close()

		if err := fill(appender); err != nil {
			return err
		}
		return appender.Flush()
	})
	if err != nil {
		return fmt.Errorf("appender error: %w", err)
	}
	return nil
}

// QueryRungs returns stored rungs containing the given instruction mnemonic
// as a whole token. An empty mnemonic matches every rung. limit <= 0 means
// no limit.
func (s *Store) QueryRungs(ctx context.Context, mnemonic string, limit int) ([]RungRecord, error) {
	query := `SELECT session_id, file_name, diagram, rung_index, strategy, source, text FROM rungs`
	var args []interface{}
	if mnemonic != "" {
		query += ` WHERE list_contains(string_split(text, ' '), ?)`
		args = append(args, mnemonic)
	}
	query += ` ORDER BY session_id, file_name, diagram, rung_index`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying rungs: %w", err)
	}
	defer rows.Close()

	var out []RungRecord
	for rows.Next() {
		var r RungRecord
		if err := rows.Scan(&r.SessionID, &r.FileName, &r.Diagram, &r.RungIndex, &r.Strategy, &r.Source, &r.Text); err != nil {
			return nil, fmt.Errorf("scanning rung: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// CountFindings returns the number of stored findings per severity for a
// session.
func (s *Store) CountFindings(ctx context.Context, sessionID string) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT severity, COUNT(*) FROM findings WHERE session_id = ? GROUP BY severity`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("counting findings: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var severity string
		var n int
		if err := rows.Scan(&severity, &n); err != nil {
			return nil, err
		}
		counts[severity] = n
	}
	return counts, rows.Err()
}

// DeleteSession removes everything stored for a session.
func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	for _, table := range []string{"rungs", "findings"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table+" WHERE session_id = ?", sessionID); err != nil {
			return fmt.Errorf("deleting from %s: %w", table, err)
		}
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
