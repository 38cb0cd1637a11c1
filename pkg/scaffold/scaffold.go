// Package scaffold writes project trees and the planning documents agents
// exchange: READMEs, phase plans, schedules, assignments, completion reports,
// releases and PlantUML diagrams. It holds no state beyond the filesystem.
package scaffold

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"empacy/pkg/logging"
	"empacy/pkg/protocol"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// DefaultProject is the project used by document operations when the caller
// names none.
const DefaultProject = "current"

// Option configures a Scaffolder.
type Option func(*Scaffolder)

// WithLogger sets the logger; nil discards.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scaffolder) { s.logger = logging.Component(l, "scaffold") }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Scaffolder) { s.nowFunc = now }
}

// Scaffolder writes under a projects root directory.
type Scaffolder struct {
	root    string
	logger  *slog.Logger
	nowFunc func() time.Time
}

// New returns a Scaffolder rooted at root.
func New(root string, opts ...Option) *Scaffolder {
	s := &Scaffolder{
		root:    root,
		logger:  logging.Component(nil, "scaffold"),
		nowFunc: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Root returns the projects root directory.
func (s *Scaffolder) Root() string { return s.root }

// ProjectDir returns the directory of projectID, DefaultProject if empty.
func (s *Scaffolder) ProjectDir(projectID string) string {
	if projectID == "" {
		projectID = DefaultProject
	}
	return filepath.Join(s.root, projectID)
}

// checkName rejects names that would escape their parent directory.
func checkName(field, name string) error {
	if name == "" {
		return &protocol.ValidationError{Field: field, Reason: "must not be empty"}
	}
	if name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return &protocol.ValidationError{Field: field, Reason: fmt.Sprintf("%q is not a valid path segment", name)}
	}
	return nil
}

func newID(prefix string) string {
	return prefix + "_" + uuid.NewString()
}

func mkdir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &protocol.IOError{Op: "mkdir", Path: dir, Err: err}
	}
	return nil
}

func writeFile(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0o644); err != nil { //nolint:gosec // project documents are shared
		return &protocol.IOError{Op: "write", Path: path, Err: err}
	}
	return nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	return writeFile(path, data)
}

// CreateProject writes a new project tree: per-domain phases, implementation
// and tests directories, the shared, docs and ci-cd directories, and
// project-config.json, README.md and ubiquitous-language.yaml.
func (s *Scaffolder) CreateProject(name, description string, domains []string) (Project, error) {
	if strings.TrimSpace(name) == "" {
		return Project{}, &protocol.ValidationError{Field: "name", Reason: "project must have a name"}
	}
	for _, d := range domains {
		if err := checkName("domain", d); err != nil {
			return Project{}, err
		}
	}
	if domains == nil {
		domains = []string{}
	}

	p := Project{
		ID:          newID("project"),
		Name:        name,
		Description: description,
		Domains:     domains,
		CreatedAt:   s.nowFunc(),
		Status:      "initializing",
	}
	dir := s.ProjectDir(p.ID)
	s.logger.Info("creating project", "projectId", p.ID, "name", name, "domains", len(domains))

	for _, d := range domains {
		for _, sub := range []string{"phases", "implementation", "tests"} {
			if err := mkdir(filepath.Join(dir, "domains", d, sub)); err != nil {
				return Project{}, err
			}
		}
	}
	for _, sub := range []string{"shared", "docs", "ci-cd"} {
		if err := mkdir(filepath.Join(dir, sub)); err != nil {
			return Project{}, err
		}
	}

	if err := writeJSON(filepath.Join(dir, "project-config.json"), p); err != nil {
		return Project{}, err
	}
	readme, err := render("readme.md", p)
	if err != nil {
		return Project{}, err
	}
	if err := writeFile(filepath.Join(dir, "README.md"), []byte(readme)); err != nil {
		return Project{}, err
	}
	lang, err := projectLanguage(domains)
	if err != nil {
		return Project{}, err
	}
	if err := writeFile(filepath.Join(dir, "ubiquitous-language.yaml"), lang); err != nil {
		return Project{}, err
	}

	s.logger.Info("project created", "projectId", p.ID, "dir", dir)
	return p, nil
}

type projectDomain struct {
	Name       string   `yaml:"name"`
	ShortName  string   `yaml:"short-name"`
	Definition string   `yaml:"definition"`
	Concepts   []string `yaml:"concepts"`
	Acronyms   []string `yaml:"acronyms"`
}

// projectLanguage seeds a project's ubiquitous-language.yaml with one entry
// per domain.
func projectLanguage(domains []string) ([]byte, error) {
	doc := struct {
		Domains []projectDomain `yaml:"domains"`
	}{Domains: []projectDomain{}}
	for _, d := range domains {
		doc.Domains = append(doc.Domains, projectDomain{
			Name:       d,
			ShortName:  strings.ToUpper(strings.Join(strings.Fields(d), "")),
			Definition: fmt.Sprintf("Domain for %s functionality", strings.ToLower(d)),
			Concepts:   []string{},
			Acronyms:   []string{},
		})
	}
	out, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal project language: %w", err)
	}
	return out, nil
}

// GetProjectState reads a project's config and derives domain and overall
// status from the directories present. A missing or unreadable config is a
// NotFoundError.
func (s *Scaffolder) GetProjectState(projectID string) (ProjectState, error) {
	if err := checkName("projectId", projectID); err != nil {
		return ProjectState{}, err
	}
	dir := s.ProjectDir(projectID)

	data, err := os.ReadFile(filepath.Join(dir, "project-config.json")) //nolint:gosec // path built from validated id
	if err != nil {
		s.logger.Warn("project config unreadable", "projectId", projectID, "error", err)
		return ProjectState{}, &protocol.NotFoundError{Kind: "project", ID: projectID}
	}
	var cfg Project
	if err := json.Unmarshal(data, &cfg); err != nil {
		s.logger.Warn("project config invalid", "projectId", projectID, "error", err)
		return ProjectState{}, &protocol.NotFoundError{Kind: "project", ID: projectID}
	}

	domains := make([]DomainState, 0, len(cfg.Domains))
	for _, d := range cfg.Domains {
		ds := DomainState{Name: d}
		entries, err := os.ReadDir(filepath.Join(dir, "domains", d))
		if err == nil {
			for _, e := range entries {
				switch e.Name() {
				case "phases":
					ds.HasPhases = true
				case "implementation":
					ds.HasImplementation = true
				}
			}
		}
		switch {
		case ds.HasImplementation:
			ds.Status = "implemented"
		case ds.HasPhases:
			ds.Status = "planned"
		default:
			ds.Status = "pending"
		}
		domains = append(domains, ds)
	}

	sched := ScheduleState{}
	schedPath := filepath.Join(dir, "project-schedule.md")
	if _, err := os.Stat(schedPath); err == nil {
		sched = ScheduleState{Exists: true, Path: schedPath}
	}

	return ProjectState{
		ProjectID:     projectID,
		Config:        cfg,
		Domains:       domains,
		Schedule:      sched,
		OverallStatus: overallStatus(domains),
		LastUpdated:   s.nowFunc(),
	}, nil
}

func overallStatus(domains []DomainState) string {
	if len(domains) == 0 {
		return "pending"
	}
	all := func(status string) bool {
		for _, d := range domains {
			if d.Status != status {
				return false
			}
		}
		return true
	}
	anyImplemented := false
	for _, d := range domains {
		if d.Status == "implemented" {
			anyImplemented = true
			break
		}
	}
	switch {
	case all("implemented"):
		return "completed"
	case anyImplemented:
		return "in-progress"
	case all("planned"):
		return "planned"
	default:
		return "pending"
	}
}

// ReadFile returns a file's content.
func (s *Scaffolder) ReadFile(path string) (string, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from the readFile request
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", &protocol.NotFoundError{Kind: "file", ID: path}
		}
		return "", &protocol.IOError{Op: "read", Path: path, Err: err}
	}
	return string(data), nil
}

// WriteFile writes content to path, creating parent directories.
func (s *Scaffolder) WriteFile(path, content string) error {
	if path == "" {
		return &protocol.ValidationError{Field: "path", Reason: "must not be empty"}
	}
	if err := mkdir(filepath.Dir(path)); err != nil {
		return err
	}
	if err := writeFile(path, []byte(content)); err != nil {
		return err
	}
	s.logger.Info("file written", "path", path, "bytes", len(content))
	return nil
}
