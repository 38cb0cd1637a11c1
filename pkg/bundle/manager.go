// Package bundle implements the Context Distribution Manager: validating
// context files, assembling them into a versioned package per agent, the
// distribution access log, age-based cleanup and aggregate statistics.
package bundle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"empacy/pkg/logging"
	"empacy/pkg/protocol"

	"golang.org/x/sync/errgroup"
)

// DefaultMaxAge is the cleanup cutoff used when the caller passes a negative
// max age.
const DefaultMaxAge = 24 * time.Hour

// DefaultAccessLogLimit is the GetAccessLog limit used when the caller passes
// a non-positive value.
const DefaultAccessLogLimit = 100

// FileRecord is one validated context file.
type FileRecord struct {
	File         string               `json:"file"`
	Path         string               `json:"path"`
	Size         int64                `json:"size"`
	LastModified time.Time            `json:"lastModified"`
	Content      string               `json:"content"`
	Type         protocol.ContentType `json:"type"`
}

// PackageMetadata aggregates a package's records.
type PackageMetadata struct {
	TotalFiles int                    `json:"totalFiles"`
	TotalSize  int64                  `json:"totalSize"`
	FileTypes  []protocol.ContentType `json:"fileTypes"`
}

// Package is the current context bundle of one agent.
type Package struct {
	AgentID      string          `json:"agentId"`
	Timestamp    time.Time       `json:"timestamp"`
	ContextFiles []FileRecord    `json:"contextFiles"`
	Summary      Summary         `json:"summary"`
	Metadata     PackageMetadata `json:"metadata"`
	Version      int             `json:"version"`
}

// AccessRecord is one access-log entry.
type AccessRecord struct {
	Timestamp    time.Time `json:"timestamp"`
	AgentID      string    `json:"agentId"`
	ContextFiles []string  `json:"contextFiles"`
	Action       string    `json:"action"`
}

// Stats aggregates every stored package.
type Stats struct {
	TotalAgents          int                          `json:"totalAgents"`
	TotalContextFiles    int                          `json:"totalContextFiles"`
	TotalContextSize     int64                        `json:"totalContextSize"`
	FileTypeDistribution map[protocol.ContentType]int `json:"fileTypeDistribution"`
	RecentActivity       []AccessRecord               `json:"recentActivity"`
}

func (p *Package) clone() Package {
	out := *p
	out.ContextFiles = slices.Clone(p.ContextFiles)
	out.Summary.Files = slices.Clone(p.Summary.Files)
	out.Metadata.FileTypes = slices.Clone(p.Metadata.FileTypes)
	return out
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger; nil discards.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = logging.Component(l, "context") }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.nowFunc = now }
}

// WithBaseDir resolves relative file names against dir instead of the
// working directory.
func WithBaseDir(dir string) Option {
	return func(m *Manager) { m.baseDir = dir }
}

// WithParallelism bounds concurrent file validation. Values below 1 mean 1.
func WithParallelism(n int) Option {
	return func(m *Manager) { m.parallelism = max(n, 1) }
}

// Manager owns the context packages, version counters and access log.
type Manager struct {
	mu        sync.Mutex
	packages  map[string]*Package
	versions  map[string]int
	requested map[string][]string
	accessLog []AccessRecord

	baseDir     string
	parallelism int
	logger      *slog.Logger
	nowFunc     func() time.Time
}

// NewManager returns an empty Manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		packages:    make(map[string]*Package),
		versions:    make(map[string]int),
		requested:   make(map[string][]string),
		parallelism: 4,
		logger:      logging.Component(nil, "context"),
		nowFunc:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger.Info("context manager initialized")
	return m
}

// DistributeContext validates files and stores them as the agent's current
// package, replacing any prior one and bumping its version by one. Files that
// are missing, unreadable or not regular are logged and skipped; an empty
// package is valid. Only context cancellation fails the call.
func (m *Manager) DistributeContext(ctx context.Context, agentID string, files []string) (Package, error) {
	m.logger.Info("distributing context", "agentId", agentID, "files", len(files))

	records, err := m.validateFiles(ctx, files)
	if err != nil {
		return Package{}, fmt.Errorf("distribute context to %s: %w", agentID, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	pkg := m.buildPackage(agentID, records)
	m.packages[agentID] = pkg
	m.versions[agentID]++
	pkg.Version = m.versions[agentID]
	m.requested[agentID] = slices.Clone(files)
	m.record(agentID, files)

	m.logger.Info("context distributed", "agentId", agentID, "version", pkg.Version, "valid", len(records), "requested", len(files))
	return pkg.clone(), nil
}

// UpdateContext is DistributeContext under another name; creation and update
// differ only in whether a prior package existed.
func (m *Manager) UpdateContext(ctx context.Context, agentID string, files []string) (Package, error) {
	return m.DistributeContext(ctx, agentID, files)
}

// validateFiles reads files with bounded parallelism. The returned records
// keep input order.
func (m *Manager) validateFiles(ctx context.Context, files []string) ([]FileRecord, error) {
	slots := make([]*FileRecord, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.parallelism)
	for i, name := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rec, err := m.validateFile(name)
			if err != nil {
				m.logger.Warn("context file skipped", "file", name, "error", err)
				return nil
			}
			slots[i] = rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	records := make([]FileRecord, 0, len(files))
	for _, rec := range slots {
		if rec != nil {
			records = append(records, *rec)
		}
	}
	return records, nil
}

func (m *Manager) validateFile(name string) (*FileRecord, error) {
	path, err := m.resolve(name)
	if err != nil {
		return nil, &protocol.IOError{Op: "stat", Path: name, Err: err}
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, &protocol.IOError{Op: "stat", Path: path, Err: err}
	}
	if !info.Mode().IsRegular() {
		return nil, &protocol.ValidationError{Field: "contextFile", Reason: fmt.Sprintf("%s is not a regular file", name)}
	}
	data, err := os.ReadFile(path) //nolint:gosec // path is a caller-supplied context file
	if err != nil {
		return nil, &protocol.IOError{Op: "read", Path: path, Err: err}
	}
	content := string(data)
	return &FileRecord{
		File:         name,
		Path:         path,
		Size:         info.Size(),
		LastModified: info.ModTime(),
		Content:      content,
		Type:         DetectContentType(name, content),
	}, nil
}

func (m *Manager) resolve(name string) (string, error) {
	if name == "" {
		return "", errors.New("empty file name")
	}
	if m.baseDir != "" && !filepath.IsAbs(name) {
		name = filepath.Join(m.baseDir, name)
	}
	return filepath.Abs(name)
}

// buildPackage must be called with m.mu held.
func (m *Manager) buildPackage(agentID string, records []FileRecord) *Package {
	var total int64
	var types []protocol.ContentType
	for _, r := range records {
		total += r.Size
		if !slices.Contains(types, r.Type) {
			types = append(types, r.Type)
		}
	}
	if types == nil {
		types = []protocol.ContentType{}
	}
	return &Package{
		AgentID:      agentID,
		Timestamp:    m.nowFunc(),
		ContextFiles: records,
		Summary:      summarize(records, total),
		Metadata: PackageMetadata{
			TotalFiles: len(records),
			TotalSize:  total,
			FileTypes:  types,
		},
	}
}

// record must be called with m.mu held.
func (m *Manager) record(agentID string, files []string) {
	m.accessLog = append(m.accessLog, AccessRecord{
		Timestamp:    m.nowFunc(),
		AgentID:      agentID,
		ContextFiles: slices.Clone(files),
		Action:       protocol.ActionContextDistributed,
	})
	if over := len(m.accessLog) - protocol.MaxAccessLogRecords; over > 0 {
		m.accessLog = slices.Clone(m.accessLog[over:])
	}
}

// GetContext returns the agent's current package.
func (m *Manager) GetContext(agentID string) (Package, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.packages[agentID]
	if !ok {
		return Package{}, &protocol.NotFoundError{Kind: "context", ID: agentID}
	}
	return p.clone(), nil
}

// lastRequested returns the file names of the agent's latest distribution,
// including ones that failed validation, or fallback if none is stored.
func (m *Manager) lastRequested(agentID string, fallback []string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if files, ok := m.requested[agentID]; ok {
		return slices.Clone(files)
	}
	return fallback
}

// GetContextVersion returns the agent's version counter, 0 if none.
func (m *Manager) GetContextVersion(agentID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.versions[agentID]
}

// GetAccessLog returns the most recent limit records, optionally filtered by
// agent. An empty agentID matches every agent.
func (m *Manager) GetAccessLog(agentID string, limit int) []AccessRecord {
	if limit <= 0 {
		limit = DefaultAccessLogLimit
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var matched []AccessRecord
	for _, r := range m.accessLog {
		if agentID == "" || r.AgentID == agentID {
			matched = append(matched, r)
		}
	}
	if len(matched) > limit {
		matched = matched[len(matched)-limit:]
	}
	out := make([]AccessRecord, len(matched))
	for i, r := range matched {
		r.ContextFiles = slices.Clone(r.ContextFiles)
		out[i] = r
	}
	return out
}

// CleanupOldContext drops every package created before now-maxAge together
// with its version counter, and returns how many were dropped. A negative
// maxAge means DefaultMaxAge; zero drops everything not created in the future.
func (m *Manager) CleanupOldContext(maxAge time.Duration) int {
	if maxAge < 0 {
		maxAge = DefaultMaxAge
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.nowFunc().Add(-maxAge)
	cleaned := 0
	for id, p := range m.packages {
		if !p.Timestamp.After(cutoff) {
			delete(m.packages, id)
			delete(m.versions, id)
			delete(m.requested, id)
			cleaned++
		}
	}
	m.logger.Info("cleaned up old context", "count", cleaned, "maxAge", maxAge)
	return cleaned
}

// GetContextStats aggregates the stored packages. The type distribution
// counts packages containing each type.
func (m *Manager) GetContextStats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Stats{
		TotalAgents:          len(m.packages),
		FileTypeDistribution: make(map[protocol.ContentType]int),
	}
	for _, p := range m.packages {
		s.TotalContextFiles += len(p.ContextFiles)
		s.TotalContextSize += p.Metadata.TotalSize
		for _, t := range p.Metadata.FileTypes {
			s.FileTypeDistribution[t]++
		}
	}
	recent := m.accessLog[max(0, len(m.accessLog)-protocol.RecentActivityLimit):]
	s.RecentActivity = make([]AccessRecord, len(recent))
	copy(s.RecentActivity, recent)
	return s
}

// Count returns the number of stored packages.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.packages)
}

// Reset drops every package, version and access record.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.packages = make(map[string]*Package)
	m.versions = make(map[string]int)
	m.requested = make(map[string][]string)
	m.accessLog = nil
}
