package language

import (
	"cmp"
	"slices"
	"strings"
)

// Search weights per matched field.
const (
	scoreName       = 10
	scoreShortName  = 8
	scoreDefinition = 5
	scoreDomain     = 3
	scoreSynonym    = 4
)

// SearchOptions narrows SearchConcepts. A zero Limit means no limit.
type SearchOptions struct {
	Domain string `json:"domain,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

// ScoredConcept is one search hit.
type ScoredConcept struct {
	Concept Concept `json:"concept"`
	Score   int     `json:"score"`
}

// SearchConcepts scores every concept by case-insensitive substring matches
// and returns the non-zero hits by descending score, ties broken by name.
func (m *Manager) SearchConcepts(query string, opts SearchOptions) []ScoredConcept {
	term := strings.ToLower(query)

	m.mu.Lock()
	defer m.mu.Unlock()

	var results []ScoredConcept
	for _, name := range m.order {
		c := m.concepts[name]
		score := scoreOf(c, term)
		if score == 0 {
			continue
		}
		if opts.Domain != "" && c.Domain != opts.Domain {
			continue
		}
		results = append(results, ScoredConcept{Concept: c.clone(), Score: score})
	}

	slices.SortStableFunc(results, func(a, b ScoredConcept) int {
		if a.Score != b.Score {
			return cmp.Compare(b.Score, a.Score)
		}
		return cmp.Compare(a.Concept.Name, b.Concept.Name)
	})
	if opts.Limit > 0 && len(results) > opts.Limit {
		results = results[:opts.Limit]
	}
	return results
}

func scoreOf(c *Concept, term string) int {
	contains := func(s string) bool { return strings.Contains(strings.ToLower(s), term) }

	score := 0
	if contains(c.Name) {
		score += scoreName
	}
	if c.ShortName != "" && contains(c.ShortName) {
		score += scoreShortName
	}
	if contains(c.Definition) {
		score += scoreDefinition
	}
	if contains(c.Domain) {
		score += scoreDomain
	}
	if slices.ContainsFunc(c.Synonyms, contains) {
		score += scoreSynonym
	}
	return score
}
