package scaffold

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"empacy/pkg/protocol"
)

// GeneratorVersion is stamped into release manifests.
const GeneratorVersion = "1.0.0"

// GeneratePlantUML wraps content in a PlantUML document of the given diagram
// type and writes it to outputPath.
func (s *Scaffolder) GeneratePlantUML(diagramType, content, outputPath string) (Diagram, error) {
	if outputPath == "" {
		return Diagram{}, &protocol.ValidationError{Field: "outputPath", Reason: "must not be empty"}
	}
	if err := mkdir(filepath.Dir(outputPath)); err != nil {
		return Diagram{}, err
	}
	doc := fmt.Sprintf("@startuml %s\n!theme plain\n\n%s\n@enduml", diagramType, content)
	if err := writeFile(outputPath, []byte(doc)); err != nil {
		return Diagram{}, err
	}
	s.logger.Info("plantuml diagram generated", "type", diagramType, "path", outputPath)
	return Diagram{Path: outputPath, Type: diagramType, Content: doc}, nil
}

// CreateDomainPhase writes phase-plan.md and context-digest.md under
// domains/<domain>/phases/<phase> of the project.
func (s *Scaffolder) CreateDomainPhase(projectID, domain, phaseName string, tasks []Task, context []ContextItem) (Phase, error) {
	if projectID == "" {
		projectID = DefaultProject
	}
	for _, c := range []struct{ field, v string }{{"projectId", projectID}, {"domain", domain}, {"phaseName", phaseName}} {
		if err := checkName(c.field, c.v); err != nil {
			return Phase{}, err
		}
	}

	now := s.nowFunc()
	ph := Phase{
		ID:        newID("phase"),
		ProjectID: projectID,
		Domain:    domain,
		Name:      phaseName,
		Tasks:     tasks,
		Context:   context,
		CreatedAt: now,
		Status:    "planned",
		Dir:       filepath.Join(s.ProjectDir(projectID), "domains", domain, "phases", phaseName),
	}
	if err := mkdir(ph.Dir); err != nil {
		return Phase{}, err
	}

	plan, err := render("phase-plan.md", ph)
	if err != nil {
		return Phase{}, err
	}
	if err := writeFile(filepath.Join(ph.Dir, "phase-plan.md"), []byte(plan)); err != nil {
		return Phase{}, err
	}
	digest, err := render("context-digest.md", struct {
		Items   []ContextItem
		Updated time.Time
	}{context, now})
	if err != nil {
		return Phase{}, err
	}
	if err := writeFile(filepath.Join(ph.Dir, "context-digest.md"), []byte(digest)); err != nil {
		return Phase{}, err
	}

	s.logger.Info("domain phase created", "projectId", projectID, "domain", domain, "phase", phaseName)
	return ph, nil
}

// ScheduleProject writes project-schedule.md with a per-phase timeline.
func (s *Scaffolder) ScheduleProject(projectID string, phases []SchedulePhase, deps []Dependency) (Schedule, error) {
	if projectID == "" {
		projectID = DefaultProject
	}
	if err := checkName("projectId", projectID); err != nil {
		return Schedule{}, err
	}

	dir := s.ProjectDir(projectID)
	sc := Schedule{
		ID:           newID("schedule"),
		ProjectID:    projectID,
		Phases:       phases,
		Dependencies: deps,
		CreatedAt:    s.nowFunc(),
		Status:       "scheduled",
		Path:         filepath.Join(dir, "project-schedule.md"),
	}
	if err := mkdir(dir); err != nil {
		return Schedule{}, err
	}
	doc, err := render("project-schedule.md", sc)
	if err != nil {
		return Schedule{}, err
	}
	if err := writeFile(sc.Path, []byte(doc)); err != nil {
		return Schedule{}, err
	}

	s.logger.Info("project scheduled", "projectId", projectID, "phases", len(phases))
	return sc, nil
}

// AssignWork writes assignments/<assignment id>.md in the project.
func (s *Scaffolder) AssignWork(projectID, agentID, taskID string, context []string) (Assignment, error) {
	if projectID == "" {
		projectID = DefaultProject
	}
	if err := checkName("projectId", projectID); err != nil {
		return Assignment{}, err
	}
	if agentID == "" {
		return Assignment{}, &protocol.ValidationError{Field: "agentId", Reason: "must not be empty"}
	}

	dir := filepath.Join(s.ProjectDir(projectID), "assignments")
	a := Assignment{
		ID:         newID("assignment"),
		ProjectID:  projectID,
		AgentID:    agentID,
		TaskID:     taskID,
		Context:    context,
		AssignedAt: s.nowFunc(),
		Status:     "assigned",
	}
	a.Path = filepath.Join(dir, a.ID+".md")

	if err := mkdir(dir); err != nil {
		return Assignment{}, err
	}
	doc, err := render("assignment.md", a)
	if err != nil {
		return Assignment{}, err
	}
	if err := writeFile(a.Path, []byte(doc)); err != nil {
		return Assignment{}, err
	}

	s.logger.Info("work assigned", "agentId", agentID, "taskId", taskID, "assignmentId", a.ID)
	return a, nil
}

// MarkDomainComplete writes completion-report.md and status.json into an
// existing domain directory. A missing domain directory is a NotFoundError.
func (s *Scaffolder) MarkDomainComplete(projectID, domain string, data CompletionData) (CompletionReport, error) {
	for _, c := range []struct{ field, v string }{{"projectId", projectID}, {"domain", domain}} {
		if err := checkName(c.field, c.v); err != nil {
			return CompletionReport{}, err
		}
	}

	dir := filepath.Join(s.ProjectDir(projectID), "domains", domain)
	info, err := os.Stat(dir)
	switch {
	case errors.Is(err, fs.ErrNotExist), err == nil && !info.IsDir():
		return CompletionReport{}, &protocol.NotFoundError{Kind: "domain", ID: domain}
	case err != nil:
		return CompletionReport{}, &protocol.IOError{Op: "stat", Path: dir, Err: err}
	}

	now := s.nowFunc()
	r := CompletionReport{
		Domain:         domain,
		ProjectID:      projectID,
		CompletedAt:    now,
		Artifacts:      data.Artifacts,
		Notes:          data.Notes,
		QualityMetrics: data.QualityMetrics,
	}
	if r.Artifacts == nil {
		r.Artifacts = []Artifact{}
	}
	if r.QualityMetrics == nil {
		r.QualityMetrics = map[string]any{}
	}

	doc, err := render("completion-report.md", r)
	if err != nil {
		return CompletionReport{}, err
	}
	if err := writeFile(filepath.Join(dir, "completion-report.md"), []byte(doc)); err != nil {
		return CompletionReport{}, err
	}
	status := DomainStatus{Domain: domain, ProjectID: projectID, Status: "completed", CompletedAt: now, LastUpdated: now}
	if err := writeJSON(filepath.Join(dir, "status.json"), status); err != nil {
		return CompletionReport{}, err
	}

	s.logger.Info("domain marked complete", "projectId", projectID, "domain", domain)
	return r, nil
}

// CreateRelease writes release-notes.md and manifest.json under
// releases/<version> of the project.
func (s *Scaffolder) CreateRelease(projectID, version, description string, artifacts []Artifact) (Release, error) {
	for _, c := range []struct{ field, v string }{{"projectId", projectID}, {"version", version}} {
		if err := checkName(c.field, c.v); err != nil {
			return Release{}, err
		}
	}
	if artifacts == nil {
		artifacts = []Artifact{}
	}

	now := s.nowFunc()
	rel := Release{
		ID:          newID("release"),
		ProjectID:   projectID,
		Version:     version,
		Description: description,
		Artifacts:   artifacts,
		CreatedAt:   now,
		Status:      "created",
		Dir:         filepath.Join(s.ProjectDir(projectID), "releases", version),
	}
	if err := mkdir(rel.Dir); err != nil {
		return Release{}, err
	}

	notes, err := render("release-notes.md", rel)
	if err != nil {
		return Release{}, err
	}
	if err := writeFile(filepath.Join(rel.Dir, "release-notes.md"), []byte(notes)); err != nil {
		return Release{}, err
	}
	if err := writeJSON(filepath.Join(rel.Dir, "manifest.json"), manifestOf(rel, now)); err != nil {
		return Release{}, err
	}

	s.logger.Info("release created", "projectId", projectID, "version", version)
	return rel, nil
}

func manifestOf(rel Release, now time.Time) Manifest {
	m := Manifest{
		ReleaseID:   rel.ID,
		ProjectID:   rel.ProjectID,
		Version:     rel.Version,
		Description: rel.Description,
		CreatedAt:   rel.CreatedAt,
		Status:      rel.Status,
		Artifacts:   make([]ManifestArtifact, len(rel.Artifacts)),
		Metadata: ManifestMetadata{
			GeneratedBy:      "Empacy",
			GeneratorVersion: GeneratorVersion,
			Timestamp:        now,
		},
	}
	for i, a := range rel.Artifacts {
		ma := ManifestArtifact{Name: a.Name, Type: a.Type, Path: a.Path, Version: a.Version}
		if a.Checksum != "" {
			ma.Checksum = &a.Checksum
		}
		m.Artifacts[i] = ma
	}
	return m
}
