// Package eventlog provides read-only access to the coordinator's SQLite
// operation journal, for the logs command and the dashboard.
package eventlog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"empacy/pkg/protocol"

	_ "modernc.org/sqlite" // SQLite driver
)

// sqliteTime is the layout of SQLite's datetime('now').
const sqliteTime = "2006-01-02 15:04:05"

// QueryOpts specifies filter criteria for querying events. Zero values match
// everything.
type QueryOpts struct {
	// AgentID filters to operations that concerned one agent.
	AgentID string

	// Op filters to one operation name (e.g., "spawnAgent").
	Op string

	// FailuresOnly keeps operations that answered success=false.
	FailuresOnly bool

	// After and Before bound created_at, inclusive.
	After  *time.Time
	Before *time.Time

	// Limit restricts the number of results (0 = no limit).
	Limit int
}

// OpCount is one row of Reader.Summary.
type OpCount struct {
	Op       string `json:"op"`
	Total    int    `json:"total"`
	Failures int    `json:"failures"`
}

// Reader provides read-only access to the journal.
type Reader struct {
	db *sql.DB
}

// NewReader opens the journal in read-only mode. Returns an error if the
// database doesn't exist or cannot be opened.
func NewReader(dbPath string) (*Reader, error) {
	if _, err := os.Stat(dbPath); err != nil {
		return nil, fmt.Errorf("journal not found: %w", err)
	}

	// Read-only so a running coordinator is never blocked.
	dsn := fmt.Sprintf("file:%s?mode=ro", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping journal: %w", err)
	}
	return &Reader{db: db}, nil
}

// Close releases the database connection. Safe to call multiple times.
func (r *Reader) Close() error {
	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	return err
}

// Query returns matching events, newest first. Returns an empty slice if no
// events match.
func (r *Reader) Query(ctx context.Context, opts QueryOpts) ([]protocol.Event, error) {
	query, args := buildQuery(opts)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []protocol.Event{}
	for rows.Next() {
		var e protocol.Event
		if err := rows.Scan(&e.ID, &e.Type, &e.Source, &e.AgentID, &e.Success, &e.Payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// Summary counts events per operation, most frequent first.
func (r *Reader) Summary(ctx context.Context) ([]OpCount, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT type, COUNT(*), SUM(CASE WHEN success = 0 THEN 1 ELSE 0 END)
		 FROM events GROUP BY type ORDER BY COUNT(*) DESC, type`)
	if err != nil {
		return nil, fmt.Errorf("summarize events: %w", err)
	}
	defer rows.Close()

	var out []OpCount
	for rows.Next() {
		var c OpCount
		if err := rows.Scan(&c.Op, &c.Total, &c.Failures); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate summary: %w", err)
	}
	return out, nil
}

// ParseTime parses a created_at value as stored by SQLite (UTC).
func ParseTime(s string) (time.Time, error) {
	t, err := time.ParseInLocation(sqliteTime, s, time.UTC)
	if err != nil {
		return time.Parse(time.RFC3339, s)
	}
	return t, nil
}

func buildQuery(opts QueryOpts) (string, []any) {
	var conditions []string
	var args []any

	query := `SELECT id, type, source, COALESCE(agent_id, ''), success, COALESCE(payload, ''), created_at FROM events`

	if opts.AgentID != "" {
		conditions = append(conditions, "agent_id = ?")
		args = append(args, opts.AgentID)
	}
	if opts.Op != "" {
		conditions = append(conditions, "type = ?")
		args = append(args, opts.Op)
	}
	if opts.FailuresOnly {
		conditions = append(conditions, "success = 0")
	}
	if opts.After != nil {
		conditions = append(conditions, "created_at >= ?")
		args = append(args, opts.After.UTC().Format(sqliteTime))
	}
	if opts.Before != nil {
		conditions = append(conditions, "created_at <= ?")
		args = append(args, opts.Before.UTC().Format(sqliteTime))
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY id DESC"
	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", opts.Limit)
	}
	return query, args
}

// DefaultDBPath returns the default journal path, ~/.empacy/journal.db.
func DefaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, protocol.EmpacyDir, protocol.JournalFile)
}
