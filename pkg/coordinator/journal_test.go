package coordinator

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"empacy/pkg/protocol"

	_ "modernc.org/sqlite"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestJournal_RecordsEveryOperation(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	j, err := NewJournal(ctx, db)
	if err != nil {
		t.Fatalf("NewJournal: %v", err)
	}
	c := newTestCoordinator(t, WithJournal(j))

	out := mustSucceed(t, c, protocol.OpSpawnAgent, map[string]any{"role": "cto"})
	id := out["agentId"].(string)
	mustFail(t, c, protocol.OpGetAgentStatus, map[string]any{"agentId": "agent_nope"}, "agent not found")

	rows, err := db.QueryContext(ctx, `SELECT type, source, COALESCE(agent_id, ''), success, COALESCE(payload, '') FROM events ORDER BY id`)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	defer rows.Close()

	var got []protocol.Event
	for rows.Next() {
		var e protocol.Event
		if err := rows.Scan(&e.Type, &e.Source, &e.AgentID, &e.Success, &e.Payload); err != nil {
			t.Fatalf("scan: %v", err)
		}
		got = append(got, e)
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("rows: %v", err)
	}

	want := []protocol.Event{
		{Type: "spawnAgent", Source: journalSource, AgentID: id, Success: true},
		{Type: "getAgentStatus", Source: journalSource, AgentID: "agent_nope", Success: false, Payload: "agent not found: agent_nope"},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d events, want %d: %+v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestNewJournal_Idempotent(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	for i := range 2 {
		if _, err := NewJournal(ctx, db); err != nil {
			t.Fatalf("NewJournal #%d: %v", i+1, err)
		}
	}
}
