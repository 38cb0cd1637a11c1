package language

import (
	"fmt"
	"time"

	"empacy/pkg/protocol"

	"gopkg.in/yaml.v3"
)

// Document is the YAML interchange form of the registry.
type Document struct {
	Domains  []DomainDoc `yaml:"domains"`
	Acronyms []Acronym   `yaml:"acronyms,omitempty"`
	Metadata DocMetadata `yaml:"metadata"`
}

// DomainDoc groups the concepts of one domain.
type DomainDoc struct {
	Name     string       `yaml:"name"`
	Concepts []ConceptDoc `yaml:"concepts"`
}

// ConceptDoc is a concept without its registry bookkeeping.
type ConceptDoc struct {
	Name            string         `yaml:"name"`
	ShortName       string         `yaml:"shortName,omitempty"`
	Definition      string         `yaml:"definition"`
	Synonyms        []string       `yaml:"synonyms"`
	RelatedConcepts []string       `yaml:"relatedConcepts"`
	Metadata        map[string]any `yaml:"metadata,omitempty"`
}

// DocMetadata carries aggregate counts. It is informational on import.
type DocMetadata struct {
	TotalConcepts int       `yaml:"totalConcepts"`
	TotalDomains  int       `yaml:"totalDomains"`
	TotalAcronyms int       `yaml:"totalAcronyms"`
	LastUpdated   time.Time `yaml:"lastUpdated"`
}

// ImportResult reports a completed import.
type ImportResult struct {
	ConceptsImported int `json:"conceptsImported"`
	TotalConcepts    int `json:"totalConcepts"`
}

// ExportYAML serializes the registry grouped by domain.
func (m *Manager) ExportYAML() ([]byte, error) {
	m.mu.Lock()
	doc := Document{
		Acronyms: m.acronymList(),
		Metadata: DocMetadata{
			TotalConcepts: len(m.concepts),
			TotalDomains:  len(m.domains),
			TotalAcronyms: len(m.acronyms),
			LastUpdated:   m.nowFunc().UTC(),
		},
	}
	seen := make(map[string]bool, len(m.domains))
	for _, name := range m.order {
		d := m.concepts[name].Domain
		if seen[d] {
			continue
		}
		seen[d] = true
		dd := DomainDoc{Name: d}
		for _, c := range m.byDomain(d) {
			dd.Concepts = append(dd.Concepts, ConceptDoc{
				Name:            c.Name,
				ShortName:       c.ShortName,
				Definition:      c.Definition,
				Synonyms:        c.Synonyms,
				RelatedConcepts: c.RelatedConcepts,
				Metadata:        c.Metadata,
			})
		}
		doc.Domains = append(doc.Domains, dd)
	}
	m.mu.Unlock()

	out, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal language: %w", err)
	}
	return out, nil
}

// ImportYAML replays every concept of a Document through the same create and
// merge path as UpdateConcepts, so versions and history grow on every import.
// The document's acronym list and counts are ignored and recomputed.
func (m *Manager) ImportYAML(data []byte) (ImportResult, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return ImportResult{}, &protocol.ValidationError{Field: "yaml", Reason: err.Error()}
	}

	var batch []ConceptInput
	for _, d := range doc.Domains {
		for _, c := range d.Concepts {
			batch = append(batch, ConceptInput{
				Name:            c.Name,
				ShortName:       c.ShortName,
				Domain:          d.Name,
				Definition:      c.Definition,
				Synonyms:        c.Synonyms,
				RelatedConcepts: c.RelatedConcepts,
				Metadata:        c.Metadata,
			})
		}
	}

	res, err := m.UpdateConcepts(batch)
	if err != nil {
		return ImportResult{ConceptsImported: res.ConceptsProcessed, TotalConcepts: m.Count()}, fmt.Errorf("import language: %w", err)
	}
	m.logger.Info("ubiquitous language imported", "concepts", res.ConceptsProcessed)
	return ImportResult{ConceptsImported: res.ConceptsProcessed, TotalConcepts: m.Count()}, nil
}
