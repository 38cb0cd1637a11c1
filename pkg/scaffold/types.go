package scaffold

import (
	"encoding/json"
	"fmt"
	"time"
)

// Project is the record written to project-config.json.
type Project struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Domains     []string  `json:"domains"`
	CreatedAt   time.Time `json:"createdAt"`
	Status      string    `json:"status"`
}

// DomainState is the on-disk status of one project domain.
type DomainState struct {
	Name              string `json:"name"`
	HasPhases         bool   `json:"hasPhases"`
	HasImplementation bool   `json:"hasImplementation"`
	Status            string `json:"status"`
}

// ScheduleState reports whether a project schedule has been written.
type ScheduleState struct {
	Exists bool   `json:"exists"`
	Path   string `json:"path,omitempty"`
}

// ProjectState is the result of GetProjectState.
type ProjectState struct {
	ProjectID     string        `json:"projectId"`
	Config        Project       `json:"config"`
	Domains       []DomainState `json:"domains"`
	Schedule      ScheduleState `json:"schedule"`
	OverallStatus string        `json:"overallStatus"`
	LastUpdated   time.Time     `json:"lastUpdated"`
}

// Diagram is a generated PlantUML file.
type Diagram struct {
	Path    string `json:"path"`
	Type    string `json:"type"`
	Content string `json:"content"`
}

// Task is one entry of a phase plan.
type Task struct {
	Title              string   `json:"title"`
	Description        string   `json:"description"`
	EstimatedEffort    string   `json:"estimatedEffort"`
	Dependencies       []string `json:"dependencies"`
	AcceptanceCriteria string   `json:"acceptanceCriteria"`
}

// ContextItem is a phase context entry. It decodes from either a plain string
// or an object with title, description, details and references.
type ContextItem struct {
	Text        string   `json:"-"`
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	Details     string   `json:"details,omitempty"`
	References  []string `json:"references,omitempty"`
}

// UnmarshalJSON accepts a string or an object.
func (c *ContextItem) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*c = ContextItem{Text: s}
		return nil
	}
	type plain ContextItem
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("context item must be a string or object: %w", err)
	}
	*c = ContextItem(p)
	return nil
}

// MarshalJSON writes plain-text items back as strings.
func (c ContextItem) MarshalJSON() ([]byte, error) {
	if c.Text != "" {
		return json.Marshal(c.Text)
	}
	type plain ContextItem
	return json.Marshal(plain(c))
}

// Label is the one-line form used in phase plans.
func (c ContextItem) Label() string {
	if c.Text != "" {
		return c.Text
	}
	if c.Title != "" {
		return c.Title
	}
	return c.Description
}

// Heading is the digest section title.
func (c ContextItem) Heading() string {
	if c.Title != "" {
		return c.Title
	}
	return "Context Item"
}

// Body is the digest section text.
func (c ContextItem) Body() string {
	if c.Description != "" {
		return c.Description
	}
	return c.Text
}

// Phase is a planned phase of a domain.
type Phase struct {
	ID        string        `json:"id"`
	ProjectID string        `json:"projectId"`
	Domain    string        `json:"domain"`
	Name      string        `json:"name"`
	Tasks     []Task        `json:"tasks"`
	Context   []ContextItem `json:"context"`
	CreatedAt time.Time     `json:"createdAt"`
	Status    string        `json:"status"`
	Dir       string        `json:"dir"`
}

// SchedulePhase is one scheduled phase. Dates are RFC 3339 or YYYY-MM-DD.
type SchedulePhase struct {
	Name         string   `json:"name"`
	Domain       string   `json:"domain"`
	Duration     string   `json:"duration"`
	StartDate    string   `json:"startDate"`
	EndDate      string   `json:"endDate"`
	Dependencies []string `json:"dependencies"`
}

// Dependency links two scheduled phases.
type Dependency struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Type     string `json:"type"`
	Critical bool   `json:"critical"`
}

// Schedule is a written project schedule.
type Schedule struct {
	ID           string          `json:"id"`
	ProjectID    string          `json:"projectId"`
	Phases       []SchedulePhase `json:"phases"`
	Dependencies []Dependency    `json:"dependencies"`
	CreatedAt    time.Time       `json:"createdAt"`
	Status       string          `json:"status"`
	Path         string          `json:"path"`
}

// Assignment is a work assignment document.
type Assignment struct {
	ID         string    `json:"id"`
	ProjectID  string    `json:"projectId"`
	AgentID    string    `json:"agentId"`
	TaskID     string    `json:"taskId"`
	Context    []string  `json:"context"`
	AssignedAt time.Time `json:"assignedAt"`
	Status     string    `json:"status"`
	Path       string    `json:"path"`
}

// Artifact is a delivered or released artifact.
type Artifact struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Path        string `json:"path"`
	Description string `json:"description,omitempty"`
	Version     string `json:"version,omitempty"`
	Checksum    string `json:"checksum,omitempty"`
}

// CompletionData is the caller-supplied part of a completion report.
type CompletionData struct {
	Artifacts      []Artifact     `json:"artifacts"`
	Notes          string         `json:"notes"`
	QualityMetrics map[string]any `json:"qualityMetrics"`
}

// CompletionReport is the result of MarkDomainComplete.
type CompletionReport struct {
	Domain         string         `json:"domain"`
	ProjectID      string         `json:"projectId"`
	CompletedAt    time.Time      `json:"completedAt"`
	Artifacts      []Artifact     `json:"artifacts"`
	Notes          string         `json:"notes"`
	QualityMetrics map[string]any `json:"qualityMetrics"`
}

// DomainStatus is written to a completed domain's status.json.
type DomainStatus struct {
	Domain      string    `json:"domain"`
	ProjectID   string    `json:"projectId"`
	Status      string    `json:"status"`
	CompletedAt time.Time `json:"completedAt"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// Release is a created project release.
type Release struct {
	ID          string     `json:"id"`
	ProjectID   string     `json:"projectId"`
	Version     string     `json:"version"`
	Description string     `json:"description"`
	Artifacts   []Artifact `json:"artifacts"`
	CreatedAt   time.Time  `json:"createdAt"`
	Status      string     `json:"status"`
	Dir         string     `json:"dir"`
}

// Manifest is written to a release's manifest.json.
type Manifest struct {
	ReleaseID   string             `json:"releaseId"`
	ProjectID   string             `json:"projectId"`
	Version     string             `json:"version"`
	Description string             `json:"description"`
	CreatedAt   time.Time          `json:"createdAt"`
	Status      string             `json:"status"`
	Artifacts   []ManifestArtifact `json:"artifacts"`
	Metadata    ManifestMetadata   `json:"metadata"`
}

// ManifestArtifact always carries a checksum field, null when unknown.
type ManifestArtifact struct {
	Name     string  `json:"name"`
	Type     string  `json:"type"`
	Path     string  `json:"path"`
	Version  string  `json:"version,omitempty"`
	Checksum *string `json:"checksum"`
}

// ManifestMetadata identifies the generator.
type ManifestMetadata struct {
	GeneratedBy      string    `json:"generatedBy"`
	GeneratorVersion string    `json:"generatorVersion"`
	Timestamp        time.Time `json:"timestamp"`
}
