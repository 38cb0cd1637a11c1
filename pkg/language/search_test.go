package language

import "testing"

func seedSearch(t *testing.T) *Manager {
	t.Helper()
	m := newTestManager()
	mustUpdate(t, m,
		ConceptInput{Name: "Session", Domain: "Identity", Definition: "a logged-in period", Synonyms: []string{"auth-token"}},
		ConceptInput{Name: "Authentication", Domain: "Identity", Definition: "proving who you are"},
		ConceptInput{Name: "Invoice", Domain: "Billing", Definition: "request for payment"},
		ConceptInput{Name: "Authorization Hold", ShortName: "AH", Domain: "Billing", Definition: "reserved funds"},
	)
	return m
}

func TestSearchConcepts_Ranking(t *testing.T) {
	m := seedSearch(t)
	res := m.SearchConcepts("auth", SearchOptions{})
	if len(res) != 3 {
		t.Fatalf("expected 3 hits, got %d: %+v", len(res), res)
	}

	// Authentication: name 10 + short name AUTH 8; Authorization Hold: name 10; Session: synonym 4.
	want := []struct {
		name  string
		score int
	}{
		{"Authentication", 18},
		{"Authorization Hold", 10},
		{"Session", 4},
	}
	for i, w := range want {
		if res[i].Concept.Name != w.name || res[i].Score != w.score {
			t.Errorf("hit %d = %s(%d), want %s(%d)", i, res[i].Concept.Name, res[i].Score, w.name, w.score)
		}
	}
}

func TestSearchConcepts_CaseInsensitiveAndFieldWeights(t *testing.T) {
	m := seedSearch(t)

	res := m.SearchConcepts("BILLING", SearchOptions{})
	if len(res) != 2 {
		t.Fatalf("domain search hits = %d", len(res))
	}
	for _, r := range res {
		if r.Score != 3 {
			t.Errorf("%s score = %d, want 3", r.Concept.Name, r.Score)
		}
	}
	if res[0].Concept.Name != "Authorization Hold" || res[1].Concept.Name != "Invoice" {
		t.Errorf("ties not broken by name: %s, %s", res[0].Concept.Name, res[1].Concept.Name)
	}

	if res := m.SearchConcepts("payment", SearchOptions{}); len(res) != 1 || res[0].Score != 5 {
		t.Errorf("definition match = %+v", res)
	}
}

func TestSearchConcepts_FilterLimitAndMiss(t *testing.T) {
	m := seedSearch(t)

	res := m.SearchConcepts("auth", SearchOptions{Domain: "Identity"})
	if len(res) != 2 || res[0].Concept.Name != "Authentication" {
		t.Errorf("domain-filtered = %+v", res)
	}

	res = m.SearchConcepts("auth", SearchOptions{Limit: 1})
	if len(res) != 1 || res[0].Concept.Name != "Authentication" {
		t.Errorf("limited = %+v", res)
	}

	if res := m.SearchConcepts("zzz", SearchOptions{}); len(res) != 0 {
		t.Errorf("expected no hits, got %+v", res)
	}
}
