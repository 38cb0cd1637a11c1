package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"empacy/pkg/agent"
	"empacy/pkg/bundle"
	"empacy/pkg/coordinator"
	"empacy/pkg/eventlog"
	"empacy/pkg/language"
	"empacy/pkg/protocol"
)

// failureLimit caps the journal failures shown on the journal view.
const failureLimit = 20

// Health mirrors the coordinator health reply.
type Health struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	UptimeSeconds int64  `json:"uptimeSeconds"`
	Agents        int    `json:"agents"`
	Contexts      int    `json:"contexts"`
	Concepts      int    `json:"concepts"`
}

// Snapshot is one poll of the coordinator and the journal.
type Snapshot struct {
	Online    bool             `json:"online"`
	Health    Health           `json:"health"`
	Agents    []agent.Agent    `json:"agents"`
	Context   bundle.Stats     `json:"context"`
	Language  language.Stats   `json:"language"`
	Failures  []protocol.Event `json:"failures"`
	FetchedAt time.Time        `json:"fetchedAt"`
	Err       string           `json:"error,omitempty"`
}

// fetchSnapshot polls the coordinator at socket and reads recent failures
// from the journal at dbPath. An unreachable coordinator yields an offline
// snapshot rather than an error. dbPath may be empty.
func fetchSnapshot(ctx context.Context, socket, dbPath string) Snapshot {
	snap := Snapshot{FetchedAt: time.Now()}

	if err := fetchCoordinator(ctx, socket, &snap); err != nil {
		snap.Online = false
		snap.Err = err.Error()
	}

	if dbPath != "" {
		failures, err := fetchFailures(ctx, dbPath)
		if err != nil && snap.Err == "" {
			snap.Err = err.Error()
		}
		snap.Failures = failures
	}
	return snap
}

func fetchCoordinator(ctx context.Context, socket string, snap *Snapshot) error {
	cl, err := coordinator.Dial(ctx, socket)
	if err != nil {
		return err
	}
	defer cl.Close()

	health, err := callInto[Health](ctx, cl, protocol.OpHealth, "")
	if err != nil {
		return err
	}
	snap.Online = true
	snap.Health = health

	if snap.Agents, err = callInto[[]agent.Agent](ctx, cl, protocol.OpListAgents, "agents"); err != nil {
		return err
	}
	if snap.Context, err = callInto[bundle.Stats](ctx, cl, protocol.OpGetContextStats, "stats"); err != nil {
		return err
	}
	if snap.Language, err = callInto[language.Stats](ctx, cl, protocol.OpGetLanguageStats, "stats"); err != nil {
		return err
	}
	return nil
}

// callInto issues op and decodes the result field named key into T. An empty
// key decodes the whole result.
func callInto[T any](ctx context.Context, cl *coordinator.Client, op protocol.Op, key string) (T, error) {
	var out T
	resp, err := cl.Call(ctx, op, nil)
	if err != nil {
		return out, err
	}
	if !resp.Success {
		return out, fmt.Errorf("%s: %s", op, resp.Error)
	}
	var src any = resp.Result
	if key != "" {
		src = resp.Result[key]
	}
	raw, err := json.Marshal(src)
	if err != nil {
		return out, fmt.Errorf("%s: re-encode result: %w", op, err)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("%s: decode result: %w", op, err)
	}
	return out, nil
}

func fetchFailures(ctx context.Context, dbPath string) ([]protocol.Event, error) {
	if _, err := os.Stat(dbPath); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	r, err := eventlog.NewReader(dbPath)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return r.Query(ctx, eventlog.QueryOpts{FailuresOnly: true, Limit: failureLimit})
}
