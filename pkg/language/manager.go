// Package language implements the Ubiquitous Language Manager: the concept
// registry shared by every agent, its domain index, acronym registry, change
// history, search and YAML interchange.
package language

import (
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"empacy/pkg/logging"
	"empacy/pkg/protocol"

	"github.com/google/uuid"
)

// Acronym is an acronym registry entry.
type Acronym struct {
	Acronym     string    `json:"acronym" yaml:"acronym"`
	ConceptName string    `json:"conceptName" yaml:"conceptName"`
	Domain      string    `json:"domain" yaml:"domain"`
	Definition  string    `json:"definition" yaml:"definition"`
	CreatedAt   time.Time `json:"createdAt" yaml:"createdAt"`
}

// HistoryChanges is the snapshot stored with each history record.
type HistoryChanges struct {
	Definition string `json:"definition"`
	Domain     string `json:"domain"`
	ShortName  string `json:"shortName"`
}

// HistoryRecord is appended for every processed concept.
type HistoryRecord struct {
	Timestamp   time.Time      `json:"timestamp"`
	ConceptName string         `json:"conceptName"`
	Action      string         `json:"action"`
	Changes     HistoryChanges `json:"changes"`
}

// UpdateResult reports a completed batch.
type UpdateResult struct {
	ConceptsProcessed int `json:"conceptsProcessed"`
}

// Stats summarizes the registry.
type Stats struct {
	TotalConcepts   int            `json:"totalConcepts"`
	TotalDomains    int            `json:"totalDomains"`
	TotalAcronyms   int            `json:"totalAcronyms"`
	TotalHistory    int            `json:"totalHistory"`
	DomainBreakdown map[string]int `json:"domainBreakdown"`
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger; nil discards.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = logging.Component(l, "language") }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.nowFunc = now }
}

// Manager owns the concept registry. Batches run under a single mutex, so a
// batch is never interleaved with another writer.
type Manager struct {
	mu       sync.Mutex
	concepts map[string]*Concept
	order    []string // concept names in creation order
	domains  map[string]map[string]bool
	acronyms map[string]Acronym
	acrOrder []string
	history  []HistoryRecord

	logger  *slog.Logger
	nowFunc func() time.Time
}

// NewManager returns an empty registry.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		logger:  logging.Component(nil, "language"),
		nowFunc: time.Now,
	}
	m.clear()
	for _, opt := range opts {
		opt(m)
	}
	m.logger.Info("language manager initialized")
	return m
}

func (m *Manager) clear() {
	m.concepts = make(map[string]*Concept)
	m.order = nil
	m.domains = make(map[string]map[string]bool)
	m.acronyms = make(map[string]Acronym)
	m.acrOrder = nil
	m.history = nil
}

// UpdateConcepts processes concepts in order, creating or merging each one,
// then refreshes short names, acronyms and the domain index. The batch is not
// transactional: a ValidationError aborts at the failing item and the items
// before it stay committed.
func (m *Manager) UpdateConcepts(concepts []ConceptInput) (UpdateResult, error) {
	m.logger.Info("updating ubiquitous language", "concepts", len(concepts))

	m.mu.Lock()
	defer m.mu.Unlock()

	processed := 0
	defer func() {
		if processed > 0 {
			m.generateAcronyms()
			m.rebuildDomainIndex()
		}
	}()

	for i := range concepts {
		if err := m.process(&concepts[i]); err != nil {
			m.logger.Error("concept rejected", "index", i, "name", concepts[i].Name, "error", err)
			return UpdateResult{ConceptsProcessed: processed}, err
		}
		processed++
	}
	return UpdateResult{ConceptsProcessed: processed}, nil
}

// process must be called with m.mu held.
func (m *Manager) process(in *ConceptInput) error {
	if err := in.Validate(); err != nil {
		return err
	}

	action := protocol.ActionConceptUpdated
	c, ok := m.concepts[in.Name]
	if ok {
		m.merge(c, in)
	} else {
		c = m.create(in)
		action = protocol.ActionConceptCreated
	}

	m.history = append(m.history, HistoryRecord{
		Timestamp:   m.nowFunc(),
		ConceptName: in.Name,
		Action:      action,
		Changes:     HistoryChanges{Definition: in.Definition, Domain: in.Domain, ShortName: c.ShortName},
	})
	if over := len(m.history) - protocol.MaxHistoryRecords; over > 0 {
		m.history = slices.Clone(m.history[over:])
	}
	return nil
}

func (m *Manager) create(in *ConceptInput) *Concept {
	now := m.nowFunc()
	short := in.ShortName
	if short == "" {
		short = ShortName(in.Name)
	}

	meta := map[string]any{
		"source":     orDefault(in.Source, "user-input"),
		"confidence": orDefault(in.Confidence, "high"),
		"tags":       slices.Clone(in.Tags),
	}
	if in.Tags == nil {
		meta["tags"] = []string{}
	}
	maps.Copy(meta, in.Metadata)

	c := &Concept{
		ID:              "concept_" + uuid.NewString(),
		Name:            in.Name,
		ShortName:       short,
		Domain:          in.Domain,
		Definition:      in.Definition,
		Synonyms:        nonNil(union(nil, in.Synonyms)),
		RelatedConcepts: nonNil(union(nil, in.RelatedConcepts)),
		CreatedAt:       now,
		LastUpdated:     now,
		Version:         1,
		Metadata:        meta,
	}
	m.concepts[c.Name] = c
	m.order = append(m.order, c.Name)
	m.index(c.Domain, c.Name)
	m.checkAcronym(c)

	m.logger.Info("concept created", "name", c.Name, "shortName", c.ShortName, "domain", c.Domain)
	return c
}

// merge replaces definition and domain when provided, unions the lists and
// shallow-merges metadata. The short name is left untouched.
func (m *Manager) merge(c *Concept, in *ConceptInput) {
	if in.Definition != "" {
		c.Definition = in.Definition
	}
	if in.Domain != "" && in.Domain != c.Domain {
		if names := m.domains[c.Domain]; names != nil {
			delete(names, c.Name)
			if len(names) == 0 {
				delete(m.domains, c.Domain)
			}
		}
		c.Domain = in.Domain
		m.index(c.Domain, c.Name)
	}
	c.Synonyms = union(c.Synonyms, in.Synonyms)
	c.RelatedConcepts = union(c.RelatedConcepts, in.RelatedConcepts)
	maps.Copy(c.Metadata, in.Metadata)
	c.Version++
	c.LastUpdated = m.nowFunc()

	m.logger.Info("concept updated", "name", c.Name, "version", c.Version)
}

func (m *Manager) index(domain, name string) {
	if m.domains[domain] == nil {
		m.domains[domain] = make(map[string]bool)
	}
	m.domains[domain][name] = true
}

func (m *Manager) checkAcronym(c *Concept) {
	if !IsAcronym(c.Name, c.ShortName) {
		return
	}
	if _, exists := m.acronyms[c.ShortName]; !exists {
		m.acrOrder = append(m.acrOrder, c.ShortName)
	}
	m.acronyms[c.ShortName] = Acronym{
		Acronym:     c.ShortName,
		ConceptName: c.Name,
		Domain:      c.Domain,
		Definition:  c.Definition,
		CreatedAt:   c.CreatedAt,
	}
	m.logger.Debug("acronym registered", "acronym", c.ShortName, "concept", c.Name)
}

// generateAcronyms derives short names that are missing or shorter than two
// characters, then re-tests every concept for the acronym registry.
func (m *Manager) generateAcronyms() {
	generated := 0
	for _, name := range m.order {
		c := m.concepts[name]
		if len([]rune(c.ShortName)) < 2 {
			c.ShortName = ShortName(c.Name)
			generated++
		}
		m.checkAcronym(c)
	}
	m.logger.Debug("short names generated", "count", generated)
}

// rebuildDomainIndex discards the domain index and rebuilds it from the
// concepts.
func (m *Manager) rebuildDomainIndex() {
	m.domains = make(map[string]map[string]bool)
	for _, name := range m.order {
		m.index(m.concepts[name].Domain, name)
	}
}

// GetConcept returns a concept by name.
func (m *Manager) GetConcept(name string) (Concept, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.concepts[name]
	if !ok {
		return Concept{}, &protocol.NotFoundError{Kind: "concept", ID: name}
	}
	return c.clone(), nil
}

// GetConceptsByDomain returns the concepts of domain in creation order.
func (m *Manager) GetConceptsByDomain(domain string) []Concept {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byDomain(domain)
}

func (m *Manager) byDomain(domain string) []Concept {
	names := m.domains[domain]
	out := make([]Concept, 0, len(names))
	for _, name := range m.order {
		if names[name] {
			out = append(out, m.concepts[name].clone())
		}
	}
	return out
}

// GetAllConcepts returns every concept in creation order.
func (m *Manager) GetAllConcepts() []Concept {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Concept, len(m.order))
	for i, name := range m.order {
		out[i] = m.concepts[name].clone()
	}
	return out
}

// GetAcronymRegistry returns the acronym entries in registration order.
func (m *Manager) GetAcronymRegistry() []Acronym {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.acronymList()
}

func (m *Manager) acronymList() []Acronym {
	out := make([]Acronym, len(m.acrOrder))
	for i, a := range m.acrOrder {
		out[i] = m.acronyms[a]
	}
	return out
}

// GetHistory returns the change history, oldest first.
func (m *Manager) GetHistory() []HistoryRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.history)
}

// GetStats summarizes the registry.
func (m *Manager) GetStats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := Stats{
		TotalConcepts:   len(m.concepts),
		TotalDomains:    len(m.domains),
		TotalAcronyms:   len(m.acronyms),
		TotalHistory:    len(m.history),
		DomainBreakdown: make(map[string]int, len(m.domains)),
	}
	for d, names := range m.domains {
		s.DomainBreakdown[d] = len(names)
	}
	return s
}

// Count returns the number of concepts.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.concepts)
}

// Reset empties the registry.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clear()
}

func (c *Concept) clone() Concept {
	out := *c
	out.Synonyms = slices.Clone(c.Synonyms)
	out.RelatedConcepts = slices.Clone(c.RelatedConcepts)
	out.Metadata = maps.Clone(c.Metadata)
	return out
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
