package coordinator

import (
	"context"
	"database/sql"
	"fmt"

	"empacy/pkg/protocol"
)

// journalSource tags events written by the coordinator.
const journalSource = "coordinator"

// Journal appends one row per handled operation to the events table. It is an
// audit trail only; registries are never rebuilt from it.
type Journal struct {
	db *sql.DB
}

// NewJournal applies the events schema to db and returns a Journal over it.
func NewJournal(ctx context.Context, db *sql.DB) (*Journal, error) {
	if _, err := db.ExecContext(ctx, protocol.SchemaDDL); err != nil {
		return nil, fmt.Errorf("init journal schema: %w", err)
	}
	return &Journal{db: db}, nil
}

// Record inserts one event. payload carries the error message of a failed
// operation and is stored as NULL when empty.
func (j *Journal) Record(ctx context.Context, evType, source, agentID string, success bool, payload string) error {
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO events (type, source, agent_id, success, payload) VALUES (?, ?, ?, ?, ?)`,
		evType, source, nullable(agentID), success, nullable(payload))
	if err != nil {
		return fmt.Errorf("log event: %w", err)
	}
	return nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
