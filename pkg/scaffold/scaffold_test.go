package scaffold

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"empacy/pkg/protocol"

	"gopkg.in/yaml.v3"
)

func newTestScaffolder(t *testing.T) *Scaffolder {
	t.Helper()
	now := time.Date(2025, 4, 1, 8, 0, 0, 0, time.UTC)
	return New(t.TempDir(), WithClock(func() time.Time { return now }))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

func TestCreateProject_Tree(t *testing.T) {
	s := newTestScaffolder(t)
	p, err := s.CreateProject("Shop", "An online shop", []string{"Billing", "Order Management"})
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	if !strings.HasPrefix(p.ID, "project_") || p.Status != "initializing" {
		t.Errorf("project = %+v", p)
	}

	dir := s.ProjectDir(p.ID)
	for _, sub := range []string{
		"domains/Billing/phases", "domains/Billing/implementation", "domains/Billing/tests",
		"domains/Order Management/tests", "shared", "docs", "ci-cd",
	} {
		if info, err := os.Stat(filepath.Join(dir, sub)); err != nil || !info.IsDir() {
			t.Errorf("missing directory %s", sub)
		}
	}

	var cfg Project
	if err := json.Unmarshal([]byte(readFile(t, filepath.Join(dir, "project-config.json"))), &cfg); err != nil {
		t.Fatalf("project-config.json: %v", err)
	}
	if cfg.ID != p.ID || cfg.Name != "Shop" || len(cfg.Domains) != 2 {
		t.Errorf("config = %+v", cfg)
	}

	readme := readFile(t, filepath.Join(dir, "README.md"))
	for _, want := range []string{"# Shop", "An online shop", "**Domains**: Billing, Order Management", "### Order Management"} {
		if !strings.Contains(readme, want) {
			t.Errorf("README missing %q", want)
		}
	}

	var lang struct {
		Domains []projectDomain `yaml:"domains"`
	}
	if err := yaml.Unmarshal([]byte(readFile(t, filepath.Join(dir, "ubiquitous-language.yaml"))), &lang); err != nil {
		t.Fatalf("ubiquitous-language.yaml: %v", err)
	}
	if len(lang.Domains) != 2 || lang.Domains[1].ShortName != "ORDERMANAGEMENT" ||
		lang.Domains[1].Definition != "Domain for order management functionality" {
		t.Errorf("language seed = %+v", lang.Domains)
	}
}

func TestCreateProject_Validation(t *testing.T) {
	s := newTestScaffolder(t)
	var ve *protocol.ValidationError
	if _, err := s.CreateProject("", "d", nil); !errors.As(err, &ve) {
		t.Errorf("empty name: %v", err)
	}
	if _, err := s.CreateProject("P", "d", []string{"../escape"}); !errors.As(err, &ve) {
		t.Errorf("traversal domain: %v", err)
	}
}

func TestGetProjectState(t *testing.T) {
	s := newTestScaffolder(t)
	p, err := s.CreateProject("Shop", "d", []string{"Billing", "Catalog"})
	if err != nil {
		t.Fatal(err)
	}
	dir := s.ProjectDir(p.ID)

	st, err := s.GetProjectState(p.ID)
	if err != nil {
		t.Fatalf("GetProjectState: %v", err)
	}
	if st.OverallStatus != "completed" {
		t.Errorf("fresh scaffold has implementation dirs, got %q", st.OverallStatus)
	}
	if st.Schedule.Exists {
		t.Error("schedule should not exist yet")
	}

	if err := os.RemoveAll(filepath.Join(dir, "domains", "Catalog", "implementation")); err != nil {
		t.Fatal(err)
	}
	st, _ = s.GetProjectState(p.ID)
	if st.Domains[1].Status != "planned" || st.OverallStatus != "in-progress" {
		t.Errorf("state = %+v", st)
	}

	if err := os.RemoveAll(filepath.Join(dir, "domains", "Billing", "implementation")); err != nil {
		t.Fatal(err)
	}
	st, _ = s.GetProjectState(p.ID)
	if st.OverallStatus != "planned" {
		t.Errorf("overall = %q, want planned", st.OverallStatus)
	}

	if err := os.RemoveAll(filepath.Join(dir, "domains", "Billing")); err != nil {
		t.Fatal(err)
	}
	st, _ = s.GetProjectState(p.ID)
	if st.Domains[0].Status != "pending" || st.OverallStatus != "pending" {
		t.Errorf("state = %+v", st)
	}

	if _, err := s.ScheduleProject(p.ID, nil, nil); err != nil {
		t.Fatal(err)
	}
	st, _ = s.GetProjectState(p.ID)
	if !st.Schedule.Exists {
		t.Error("schedule not detected")
	}
}

func TestGetProjectState_NotFound(t *testing.T) {
	s := newTestScaffolder(t)
	_, err := s.GetProjectState("project_missing")
	var nf *protocol.NotFoundError
	if !errors.As(err, &nf) || nf.Kind != "project" {
		t.Fatalf("expected project NotFoundError, got %v", err)
	}
}

func TestOverallStatus(t *testing.T) {
	ds := func(statuses ...string) []DomainState {
		out := make([]DomainState, len(statuses))
		for i, s := range statuses {
			out[i] = DomainState{Status: s}
		}
		return out
	}
	tests := []struct {
		in   []DomainState
		want string
	}{
		{nil, "pending"},
		{ds("implemented", "implemented"), "completed"},
		{ds("implemented", "pending"), "in-progress"},
		{ds("planned", "planned"), "planned"},
		{ds("planned", "pending"), "pending"},
	}
	for _, tc := range tests {
		if got := overallStatus(tc.in); got != tc.want {
			t.Errorf("overallStatus(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestReadWriteFile(t *testing.T) {
	s := newTestScaffolder(t)
	path := filepath.Join(s.Root(), "nested", "dir", "note.txt")

	if err := s.WriteFile(path, "hello"); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	got, err := s.ReadFile(path)
	if err != nil || got != "hello" {
		t.Fatalf("ReadFile = %q, %v", got, err)
	}

	var nf *protocol.NotFoundError
	if _, err := s.ReadFile(filepath.Join(s.Root(), "absent")); !errors.As(err, &nf) {
		t.Errorf("expected NotFoundError, got %v", err)
	}
	var ve *protocol.ValidationError
	if err := s.WriteFile("", "x"); !errors.As(err, &ve) {
		t.Errorf("expected ValidationError, got %v", err)
	}
}
