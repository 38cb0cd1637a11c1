// Package coordinator exposes the agent, context and language managers, plus
// the scaffolding helpers, as named request/response operations. Every
// operation answers with the uniform {success, ...} envelope; no manager
// error or panic escapes Handle.
package coordinator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"empacy/pkg/agent"
	"empacy/pkg/bundle"
	"empacy/pkg/language"
	"empacy/pkg/logging"
	"empacy/pkg/protocol"
	"empacy/pkg/scaffold"
)

// handlerFunc runs one operation. The returned map becomes the response body.
type handlerFunc func(ctx context.Context, params json.RawMessage) (map[string]any, error)

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger; nil discards.
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) { c.logger = logging.Component(l, "coordinator") }
}

// WithJournal records every operation in j.
func WithJournal(j *Journal) Option {
	return func(c *Coordinator) { c.journal = j }
}

// WithMetrics records operation counters, latencies and registry gauges.
func WithMetrics(m *Metrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// WithWatcher tracks every distributed package for on-disk changes.
func WithWatcher(w *bundle.Watcher) Option {
	return func(c *Coordinator) { c.watcher = w }
}

// WithVersion sets the version reported by the health operation.
func WithVersion(v string) Option {
	return func(c *Coordinator) { c.version = v }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.nowFunc = now }
}

// Coordinator routes operations to the managers it was built with. It owns no
// registry state of its own.
type Coordinator struct {
	agents    *agent.Manager
	contexts  *bundle.Manager
	language  *language.Manager
	scaffold  *scaffold.Scaffolder
	journal   *Journal
	metrics   *Metrics
	watcher   *bundle.Watcher
	logger    *slog.Logger
	version   string
	startedAt time.Time
	nowFunc   func() time.Time

	handlers map[protocol.Op]handlerFunc
}

// New wires a Coordinator over the given managers.
func New(agents *agent.Manager, contexts *bundle.Manager, lang *language.Manager, sc *scaffold.Scaffolder, opts ...Option) *Coordinator {
	c := &Coordinator{
		agents:   agents,
		contexts: contexts,
		language: lang,
		scaffold: sc,
		logger:   logging.Component(nil, "coordinator"),
		version:  "dev",
		nowFunc:  time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.startedAt = c.nowFunc()
	c.handlers = c.routes()
	c.updateGauges()
	return c
}

// Ops lists the supported operations.
func (c *Coordinator) Ops() []protocol.Op {
	out := make([]protocol.Op, 0, len(c.handlers))
	for op := range c.handlers {
		out = append(out, op)
	}
	return out
}

// Handle executes req and always returns a response; failures are reported
// as {success:false, error}.
func (c *Coordinator) Handle(ctx context.Context, req protocol.Request) (resp protocol.Response) {
	start := c.nowFunc()
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("operation panicked", "op", req.Op, "panic", r)
			resp = protocol.Fail(fmt.Errorf("internal error in %s: %v", req.Op, r))
		}
		resp.ID = req.ID
		c.observe(ctx, req, resp, c.nowFunc().Sub(start))
	}()

	h, ok := c.handlers[req.Op]
	if !ok {
		return protocol.Fail(&protocol.ValidationError{Field: "op", Reason: fmt.Sprintf("unknown operation %q", req.Op)})
	}

	result, err := h(ctx, req.Params)
	if err != nil {
		c.logger.Error("operation failed", "op", req.Op, "error", err)
		return protocol.Fail(err)
	}
	return protocol.OK(result)
}

func (c *Coordinator) observe(ctx context.Context, req protocol.Request, resp protocol.Response, elapsed time.Duration) {
	if c.metrics != nil {
		c.metrics.ObserveOperation(string(req.Op), resp.Success, elapsed)
		c.updateGauges()
	}
	if c.journal != nil {
		agentID := agentIDOf(req.Params, resp.Result)
		if err := c.journal.Record(ctx, string(req.Op), journalSource, agentID, resp.Success, resp.Error); err != nil {
			c.logger.Warn("journal write failed", "op", req.Op, "error", err)
		}
	}
}

func (c *Coordinator) updateGauges() {
	if c.metrics == nil {
		return
	}
	c.metrics.SetRegistrySizes(c.agents.Count(), c.contexts.Count(), c.language.Count())
}

// agentIDOf picks the agent an operation concerned, from the result or the
// request params.
func agentIDOf(params json.RawMessage, result map[string]any) string {
	if id, ok := result["agentId"].(string); ok {
		return id
	}
	var p struct {
		AgentID string `json:"agentId"`
	}
	if len(params) > 0 {
		_ = json.Unmarshal(params, &p)
	}
	return p.AgentID
}

// decode unmarshals params into T. Absent params decode to the zero value.
func decode[T any](params json.RawMessage) (T, error) {
	var v T
	if len(params) == 0 || string(params) == "null" {
		return v, nil
	}
	if err := json.Unmarshal(params, &v); err != nil {
		return v, &protocol.ValidationError{Field: "params", Reason: err.Error()}
	}
	return v, nil
}

func require(field, value string) error {
	if value == "" {
		return &protocol.ValidationError{Field: field, Reason: "is required"}
	}
	return nil
}
