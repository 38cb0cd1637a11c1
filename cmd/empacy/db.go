package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"empacy/pkg/coordinator"

	_ "modernc.org/sqlite"
)

// openDB opens the SQLite journal at path, creating its directory, and
// enforces WAL journal mode and a 5-second busy timeout so that readers such
// as `empacy logs` never block the server.
func openDB(ctx context.Context, path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create journal dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite %s: %w", path, err)
	}
	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s on %s: %w", pragma, path, err)
		}
	}
	return db, nil
}

// openJournal opens the journal database at path and prepares its schema.
func openJournal(ctx context.Context, path string) (*sql.DB, *coordinator.Journal, error) {
	db, err := openDB(ctx, path)
	if err != nil {
		return nil, nil, err
	}
	j, err := coordinator.NewJournal(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return db, j, nil
}
