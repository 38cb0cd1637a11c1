// Package agent implements the agent type catalog and the Agent Lifecycle
// Manager: spawning, role-specific initialization, status updates, queries and
// termination of agents. The registry is process-lifetime state owned by a
// Manager instance; nothing is persisted and terminated agents leave no
// tombstone.
package agent

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"empacy/pkg/logging"
	"empacy/pkg/protocol"

	"github.com/google/uuid"
)

// Agent is a tracked unit of work. Values returned by Manager are copies;
// mutating them does not affect the registry.
type Agent struct {
	ID             string               `json:"id"`
	Role           protocol.Role        `json:"role"`
	Type           TypeDescriptor       `json:"type"`
	Context        map[string]any       `json:"context"`
	Status         protocol.AgentStatus `json:"status"`
	CreatedAt      time.Time            `json:"createdAt"`
	LastActivity   time.Time            `json:"lastActivity"`
	Capabilities   []string             `json:"capabilities"`
	Metadata       map[string]any       `json:"metadata"`
	MissingContext []string             `json:"missingContext,omitempty"`

	seq uint64
}

// Status is the snapshot returned by GetAgentStatus.
type Status struct {
	ID           string               `json:"id"`
	Role         protocol.Role        `json:"role"`
	Status       protocol.AgentStatus `json:"status"`
	LastActivity time.Time            `json:"lastActivity"`
	Capabilities []string             `json:"capabilities"`
	Metadata     map[string]any       `json:"metadata"`
}

// Summary is the compact listing form returned by GetAllAgents and GetAgentsByRole.
type Summary struct {
	ID           string               `json:"id"`
	Role         protocol.Role        `json:"role"`
	Status       protocol.AgentStatus `json:"status"`
	LastActivity time.Time            `json:"lastActivity"`
}

func (a *Agent) clone() Agent {
	out := *a
	out.Type = a.Type.clone()
	out.Context = maps.Clone(a.Context)
	out.Capabilities = slices.Clone(a.Capabilities)
	out.Metadata = maps.Clone(a.Metadata)
	out.MissingContext = slices.Clone(a.MissingContext)
	return out
}

func (a *Agent) summary() Summary {
	return Summary{ID: a.ID, Role: a.Role, Status: a.Status, LastActivity: a.LastActivity}
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger; nil discards.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = logging.Component(l, "agent") }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.nowFunc = now }
}

// WithInitializer replaces the built-in initializer for one role.
func WithInitializer(role protocol.Role, fn Initializer) Option {
	return func(m *Manager) { m.initializers[role] = fn }
}

// Manager owns the agent registry. All read-modify-write sequences (spawn,
// update, terminate) run under a single mutex.
type Manager struct {
	mu           sync.Mutex
	agents       map[string]*Agent
	nextSeq      uint64
	initializers map[protocol.Role]Initializer

	logger  *slog.Logger
	nowFunc func() time.Time
}

// NewManager creates an empty registry with the built-in role initializers.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		agents:       make(map[string]*Agent),
		nextSeq:      1,
		initializers: make(map[protocol.Role]Initializer),
		logger:       logging.Component(nil, "agent"),
		nowFunc:      time.Now,
	}
	for _, r := range protocol.Roles() {
		fn, err := defaultInitializer(r)
		if err != nil {
			panic(err) // catalog and initializer switch out of sync
		}
		m.initializers[r] = fn
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger.Info("agent manager initialized", "types", len(catalog))
	return m
}

// generateID must be called with m.mu held.
func (m *Manager) generateID() (string, uint64) {
	seq := m.nextSeq
	m.nextSeq++
	suffix := uuid.New().String()[:8]
	return fmt.Sprintf("agent_%d_%s", seq, suffix), seq
}

// SpawnAgent creates, initializes and registers an agent for role. Missing
// required context is reported in Agent.MissingContext and logged, never
// fatal. If the role initializer fails the agent stays registered with status
// "error", the message recorded under metadata["error"], and the error is
// returned alongside the agent.
func (m *Manager) SpawnAgent(role protocol.Role, supplied map[string]any) (Agent, error) {
	desc, ok := Lookup(role)
	if !ok {
		return Agent{}, &protocol.UnknownRoleError{Role: string(role)}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	id, seq := m.generateID()
	now := m.nowFunc()
	a := &Agent{
		ID:           id,
		Role:         role,
		Type:         desc,
		Context:      maps.Clone(supplied),
		Status:       protocol.StatusInitializing,
		CreatedAt:    now,
		LastActivity: now,
		Capabilities: slices.Clone(desc.Capabilities),
		Metadata:     make(map[string]any),
		seq:          seq,
	}
	if a.Context == nil {
		a.Context = make(map[string]any)
	}

	a.MissingContext = MissingContext(desc.RequiredContext, a.Context)
	if len(a.MissingContext) > 0 {
		m.logger.Warn("agent missing required context", "agentId", id, "missing", a.MissingContext)
	}

	m.agents[id] = a

	if err := m.initializers[role](a); err != nil {
		a.Status = protocol.StatusError
		a.Metadata["error"] = err.Error()
		a.LastActivity = m.nowFunc()
		m.logger.Error("agent initialization failed", "agentId", id, "role", role, "error", err)
		return a.clone(), fmt.Errorf("initialize agent %s: %w", id, err)
	}

	a.Status = protocol.StatusReady
	a.LastActivity = m.nowFunc()
	m.logger.Info("agent spawned", "agentId", id, "role", role)
	return a.clone(), nil
}

// GetAgent returns the full agent record.
func (m *Manager) GetAgent(id string) (Agent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.agents[id]
	if !ok {
		return Agent{}, &protocol.NotFoundError{Kind: "agent", ID: id}
	}
	return a.clone(), nil
}

// GetAgentStatus returns a status snapshot.
func (m *Manager) GetAgentStatus(id string) (Status, error) {
	a, err := m.GetAgent(id)
	if err != nil {
		return Status{}, err
	}
	return Status{
		ID:           a.ID,
		Role:         a.Role,
		Status:       a.Status,
		LastActivity: a.LastActivity,
		Capabilities: a.Capabilities,
		Metadata:     a.Metadata,
	}, nil
}

// GetAllAgents lists every registered agent in spawn order.
func (m *Manager) GetAllAgents() []Summary {
	return m.list(func(*Agent) bool { return true })
}

// GetAgentsByRole lists agents with the given role in spawn order.
func (m *Manager) GetAgentsByRole(role protocol.Role) []Summary {
	return m.list(func(a *Agent) bool { return a.Role == role })
}

func (m *Manager) list(keep func(*Agent) bool) []Summary {
	m.mu.Lock()
	defer m.mu.Unlock()

	matched := make([]*Agent, 0, len(m.agents))
	for _, a := range m.agents {
		if keep(a) {
			matched = append(matched, a)
		}
	}
	slices.SortFunc(matched, func(x, y *Agent) int {
		switch {
		case x.seq < y.seq:
			return -1
		case x.seq > y.seq:
			return 1
		default:
			return 0
		}
	})

	out := make([]Summary, len(matched))
	for i, a := range matched {
		out[i] = a.summary()
	}
	return out
}

// Count returns the registry size.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.agents)
}

// UpdateAgentStatus overwrites status, shallow-merges patch into metadata and
// refreshes the last-activity timestamp.
func (m *Manager) UpdateAgentStatus(id string, status protocol.AgentStatus, patch map[string]any) (Agent, error) {
	if !status.Valid() {
		return Agent{}, &protocol.ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", status)}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.agents[id]
	if !ok {
		return Agent{}, &protocol.NotFoundError{Kind: "agent", ID: id}
	}
	a.Status = status
	a.LastActivity = m.nowFunc()
	maps.Copy(a.Metadata, patch)

	m.logger.Info("agent status updated", "agentId", id, "status", status)
	return a.clone(), nil
}

// TerminateAgent runs role cleanup, marks the agent terminated and removes it
// from the registry. The returned record is the last state the agent had.
func (m *Manager) TerminateAgent(id string) (Agent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.agents[id]
	if !ok {
		return Agent{}, &protocol.NotFoundError{Kind: "agent", ID: id}
	}

	cleanup(m.logger, a, len(m.agents)-1)
	a.Status = protocol.StatusTerminated
	a.LastActivity = m.nowFunc()
	delete(m.agents, id)

	m.logger.Info("agent terminated", "agentId", id, "role", a.Role)
	return a.clone(), nil
}

// Reset drops every agent and restarts id sequencing. Test isolation hook.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.agents = make(map[string]*Agent)
	m.nextSeq = 1
}
