package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"time"

	"empacy/pkg/language"
	"empacy/pkg/protocol"
	"empacy/pkg/scaffold"
)

func (c *Coordinator) routes() map[protocol.Op]handlerFunc {
	return map[protocol.Op]handlerFunc{
		protocol.OpSpawnAgent:               c.spawnAgent,
		protocol.OpGetAgentStatus:           c.getAgentStatus,
		protocol.OpListAgents:               c.listAgents,
		protocol.OpUpdateAgentStatus:        c.updateAgentStatus,
		protocol.OpTerminateAgent:           c.terminateAgent,
		protocol.OpDistributeContext:        c.distributeContext,
		protocol.OpUpdateContext:            c.updateContext,
		protocol.OpGetContext:               c.getContext,
		protocol.OpGetContextVersion:        c.getContextVersion,
		protocol.OpGetContextStats:          c.getContextStats,
		protocol.OpGetAccessLog:             c.getAccessLog,
		protocol.OpCleanupContext:           c.cleanupContext,
		protocol.OpUpdateUbiquitousLanguage: c.updateLanguage,
		protocol.OpSearchConcepts:           c.searchConcepts,
		protocol.OpGetConcept:               c.getConcept,
		protocol.OpExportLanguage:           c.exportLanguage,
		protocol.OpImportLanguage:           c.importLanguage,
		protocol.OpGetLanguageStats:         c.getLanguageStats,
		protocol.OpHealth:                   c.health,
		protocol.OpCreateProject:            c.createProject,
		protocol.OpGetProjectState:          c.getProjectState,
		protocol.OpGeneratePlantUML:         c.generatePlantUML,
		protocol.OpGeneratePlantUMLDiagram:  c.generatePlantUML,
		protocol.OpCreateDomainPhase:        c.createDomainPhase,
		protocol.OpScheduleProject:          c.scheduleProject,
		protocol.OpAssignWork:               c.assignWork,
		protocol.OpMarkDomainComplete:       c.markDomainComplete,
		protocol.OpCreateRelease:            c.createRelease,
		protocol.OpReadFile:                 c.readFile,
		protocol.OpWriteFile:                c.writeFile,
	}
}

// --- agents ---

type agentParams struct {
	AgentID string `json:"agentId"`
}

func (c *Coordinator) spawnAgent(_ context.Context, raw json.RawMessage) (map[string]any, error) {
	p, err := decode[struct {
		Role    protocol.Role  `json:"role"`
		Context map[string]any `json:"context"`
	}](raw)
	if err != nil {
		return nil, err
	}
	a, err := c.agents.SpawnAgent(p.Role, p.Context)
	if err != nil {
		return nil, err
	}
	out := map[string]any{"agentId": a.ID, "status": a.Status}
	if len(a.MissingContext) > 0 {
		out["missingContext"] = a.MissingContext
	}
	return out, nil
}

func (c *Coordinator) getAgentStatus(_ context.Context, raw json.RawMessage) (map[string]any, error) {
	p, err := decode[agentParams](raw)
	if err != nil {
		return nil, err
	}
	if err := require("agentId", p.AgentID); err != nil {
		return nil, err
	}
	s, err := c.agents.GetAgentStatus(p.AgentID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"status": s}, nil
}

func (c *Coordinator) listAgents(_ context.Context, raw json.RawMessage) (map[string]any, error) {
	p, err := decode[struct {
		Role protocol.Role `json:"role"`
	}](raw)
	if err != nil {
		return nil, err
	}
	agents := c.agents.GetAllAgents()
	if p.Role != "" {
		agents = c.agents.GetAgentsByRole(p.Role)
	}
	return map[string]any{"agents": agents, "count": len(agents)}, nil
}

func (c *Coordinator) updateAgentStatus(_ context.Context, raw json.RawMessage) (map[string]any, error) {
	p, err := decode[struct {
		AgentID  string               `json:"agentId"`
		Status   protocol.AgentStatus `json:"status"`
		Metadata map[string]any       `json:"metadata"`
	}](raw)
	if err != nil {
		return nil, err
	}
	if err := require("agentId", p.AgentID); err != nil {
		return nil, err
	}
	a, err := c.agents.UpdateAgentStatus(p.AgentID, p.Status, p.Metadata)
	if err != nil {
		return nil, err
	}
	return map[string]any{"agentId": a.ID, "status": a.Status, "metadata": a.Metadata}, nil
}

func (c *Coordinator) terminateAgent(_ context.Context, raw json.RawMessage) (map[string]any, error) {
	p, err := decode[agentParams](raw)
	if err != nil {
		return nil, err
	}
	if err := require("agentId", p.AgentID); err != nil {
		return nil, err
	}
	a, err := c.agents.TerminateAgent(p.AgentID)
	if err != nil {
		return nil, err
	}
	if c.watcher != nil {
		c.watcher.Untrack(a.ID)
	}
	return map[string]any{"agentId": a.ID, "status": a.Status}, nil
}

// --- context ---

type contextFilesParams struct {
	AgentID      string   `json:"agentId"`
	ContextFiles []string `json:"contextFiles"`
}

func (c *Coordinator) distributeContext(ctx context.Context, raw json.RawMessage) (map[string]any, error) {
	return c.distribute(ctx, raw, "context_distributed")
}

func (c *Coordinator) updateContext(ctx context.Context, raw json.RawMessage) (map[string]any, error) {
	return c.distribute(ctx, raw, "context_updated")
}

func (c *Coordinator) distribute(ctx context.Context, raw json.RawMessage, status string) (map[string]any, error) {
	p, err := decode[contextFilesParams](raw)
	if err != nil {
		return nil, err
	}
	if err := require("agentId", p.AgentID); err != nil {
		return nil, err
	}
	pkg, err := c.contexts.DistributeContext(ctx, p.AgentID, p.ContextFiles)
	if err != nil {
		return nil, err
	}
	if c.watcher != nil {
		if err := c.watcher.Track(p.AgentID); err != nil {
			c.logger.Warn("cannot watch context files", "agentId", p.AgentID, "error", err)
		}
	}
	return map[string]any{
		"agentId": p.AgentID,
		"status":  status,
		"version": pkg.Version,
		"files":   pkg.Metadata.TotalFiles,
		"summary": pkg.Summary.Overview,
	}, nil
}

func (c *Coordinator) getContext(_ context.Context, raw json.RawMessage) (map[string]any, error) {
	p, err := decode[agentParams](raw)
	if err != nil {
		return nil, err
	}
	pkg, err := c.contexts.GetContext(p.AgentID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"context": pkg}, nil
}

func (c *Coordinator) getContextVersion(_ context.Context, raw json.RawMessage) (map[string]any, error) {
	p, err := decode[agentParams](raw)
	if err != nil {
		return nil, err
	}
	if err := require("agentId", p.AgentID); err != nil {
		return nil, err
	}
	return map[string]any{"agentId": p.AgentID, "version": c.contexts.GetContextVersion(p.AgentID)}, nil
}

func (c *Coordinator) getContextStats(context.Context, json.RawMessage) (map[string]any, error) {
	return map[string]any{"stats": c.contexts.GetContextStats()}, nil
}

func (c *Coordinator) getAccessLog(_ context.Context, raw json.RawMessage) (map[string]any, error) {
	p, err := decode[struct {
		AgentID string `json:"agentId"`
		Limit   int    `json:"limit"`
	}](raw)
	if err != nil {
		return nil, err
	}
	return map[string]any{"records": c.contexts.GetAccessLog(p.AgentID, p.Limit)}, nil
}

func (c *Coordinator) cleanupContext(_ context.Context, raw json.RawMessage) (map[string]any, error) {
	p, err := decode[struct {
		MaxAgeMillis *int64 `json:"maxAgeMillis"`
	}](raw)
	if err != nil {
		return nil, err
	}
	maxAge := time.Duration(-1)
	if p.MaxAgeMillis != nil {
		if *p.MaxAgeMillis < 0 {
			return nil, &protocol.ValidationError{Field: "maxAgeMillis", Reason: "must not be negative"}
		}
		maxAge = time.Duration(*p.MaxAgeMillis) * time.Millisecond
	}
	return map[string]any{"cleaned": c.contexts.CleanupOldContext(maxAge)}, nil
}

// --- language ---

func (c *Coordinator) updateLanguage(_ context.Context, raw json.RawMessage) (map[string]any, error) {
	p, err := decode[struct {
		Concepts []language.ConceptInput `json:"concepts"`
	}](raw)
	if err != nil {
		return nil, err
	}
	res, err := c.language.UpdateConcepts(p.Concepts)
	if err != nil {
		return nil, err
	}
	return map[string]any{"status": "language_updated", "conceptsProcessed": res.ConceptsProcessed}, nil
}

func (c *Coordinator) searchConcepts(_ context.Context, raw json.RawMessage) (map[string]any, error) {
	p, err := decode[struct {
		Query  string `json:"query"`
		Domain string `json:"domain"`
		Limit  int    `json:"limit"`
	}](raw)
	if err != nil {
		return nil, err
	}
	if err := require("query", p.Query); err != nil {
		return nil, err
	}
	res := c.language.SearchConcepts(p.Query, language.SearchOptions{Domain: p.Domain, Limit: p.Limit})
	return map[string]any{"results": res, "count": len(res)}, nil
}

func (c *Coordinator) getConcept(_ context.Context, raw json.RawMessage) (map[string]any, error) {
	p, err := decode[struct {
		Name string `json:"name"`
	}](raw)
	if err != nil {
		return nil, err
	}
	concept, err := c.language.GetConcept(p.Name)
	if err != nil {
		return nil, err
	}
	return map[string]any{"concept": concept}, nil
}

func (c *Coordinator) exportLanguage(context.Context, json.RawMessage) (map[string]any, error) {
	out, err := c.language.ExportYAML()
	if err != nil {
		return nil, err
	}
	return map[string]any{"yaml": string(out)}, nil
}

func (c *Coordinator) importLanguage(_ context.Context, raw json.RawMessage) (map[string]any, error) {
	p, err := decode[struct {
		YAML string `json:"yaml"`
	}](raw)
	if err != nil {
		return nil, err
	}
	if err := require("yaml", p.YAML); err != nil {
		return nil, err
	}
	res, err := c.language.ImportYAML([]byte(p.YAML))
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"status":           "language_imported",
		"conceptsImported": res.ConceptsImported,
		"totalConcepts":    res.TotalConcepts,
	}, nil
}

func (c *Coordinator) getLanguageStats(context.Context, json.RawMessage) (map[string]any, error) {
	return map[string]any{"stats": c.language.GetStats()}, nil
}

func (c *Coordinator) health(context.Context, json.RawMessage) (map[string]any, error) {
	return map[string]any{
		"status":        "healthy",
		"version":       c.version,
		"uptimeSeconds": int64(c.nowFunc().Sub(c.startedAt).Seconds()),
		"agents":        c.agents.Count(),
		"contexts":      c.contexts.Count(),
		"concepts":      c.language.Count(),
	}, nil
}

// --- projects and documents ---

func (c *Coordinator) createProject(ctx context.Context, raw json.RawMessage) (map[string]any, error) {
	p, err := decode[struct {
		Name        string   `json:"name"`
		Description string   `json:"description"`
		Domains     []string `json:"domains"`
	}](raw)
	if err != nil {
		return nil, err
	}
	proj, err := c.scaffold.CreateProject(p.Name, p.Description, p.Domains)
	if err != nil {
		return nil, err
	}

	agentIDs, err := c.spawnProjectAgents(ctx, proj)
	if err != nil {
		return nil, err
	}
	return map[string]any{"projectId": proj.ID, "status": "created", "agents": agentIDs}, nil
}

// spawnProjectAgents starts the assistant and principal engineer of a new
// project and hands each the project's seed files.
func (c *Coordinator) spawnProjectAgents(ctx context.Context, proj scaffold.Project) ([]string, error) {
	dir := c.scaffold.ProjectDir(proj.ID)
	files := []string{
		filepath.Join(dir, "ubiquitous-language.yaml"),
		filepath.Join(dir, "project-config.json"),
	}
	supplied := map[string]any{
		"projectId":                proj.ID,
		"ubiquitous-language.yaml": files[0],
		"project-config.json":      files[1],
	}

	var ids []string
	for _, role := range []protocol.Role{protocol.RoleCTOAssistant, protocol.RolePrincipalEngineer} {
		a, err := c.agents.SpawnAgent(role, supplied)
		if err != nil {
			return ids, err
		}
		ids = append(ids, a.ID)
		if _, err := c.contexts.DistributeContext(ctx, a.ID, files); err != nil {
			return ids, err
		}
	}
	c.logger.Info("project agents spawned", "projectId", proj.ID, "agents", ids)
	return ids, nil
}

func (c *Coordinator) getProjectState(_ context.Context, raw json.RawMessage) (map[string]any, error) {
	p, err := decode[struct {
		ProjectID string `json:"projectId"`
	}](raw)
	if err != nil {
		return nil, err
	}
	st, err := c.scaffold.GetProjectState(p.ProjectID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"state": st, "status": "project_state_retrieved"}, nil
}

func (c *Coordinator) generatePlantUML(_ context.Context, raw json.RawMessage) (map[string]any, error) {
	p, err := decode[struct {
		Type       string `json:"type"`
		Content    string `json:"content"`
		OutputPath string `json:"outputPath"`
	}](raw)
	if err != nil {
		return nil, err
	}
	d, err := c.scaffold.GeneratePlantUML(p.Type, p.Content, p.OutputPath)
	if err != nil {
		return nil, err
	}
	return map[string]any{"diagramPath": d.Path, "status": "diagram_generated"}, nil
}

func (c *Coordinator) createDomainPhase(_ context.Context, raw json.RawMessage) (map[string]any, error) {
	p, err := decode[struct {
		ProjectID string                 `json:"projectId"`
		Domain    string                 `json:"domain"`
		PhaseName string                 `json:"phaseName"`
		Tasks     []scaffold.Task        `json:"tasks"`
		Context   []scaffold.ContextItem `json:"context"`
	}](raw)
	if err != nil {
		return nil, err
	}
	ph, err := c.scaffold.CreateDomainPhase(p.ProjectID, p.Domain, p.PhaseName, p.Tasks, p.Context)
	if err != nil {
		return nil, err
	}
	return map[string]any{"phaseId": ph.ID, "status": "phase_created"}, nil
}

func (c *Coordinator) scheduleProject(_ context.Context, raw json.RawMessage) (map[string]any, error) {
	p, err := decode[struct {
		ProjectID    string                   `json:"projectId"`
		Phases       []scaffold.SchedulePhase `json:"phases"`
		Dependencies []scaffold.Dependency    `json:"dependencies"`
	}](raw)
	if err != nil {
		return nil, err
	}
	sc, err := c.scaffold.ScheduleProject(p.ProjectID, p.Phases, p.Dependencies)
	if err != nil {
		return nil, err
	}
	return map[string]any{"scheduleId": sc.ID, "status": "project_scheduled"}, nil
}

func (c *Coordinator) assignWork(_ context.Context, raw json.RawMessage) (map[string]any, error) {
	p, err := decode[struct {
		ProjectID string   `json:"projectId"`
		AgentID   string   `json:"agentId"`
		TaskID    string   `json:"taskId"`
		Context   []string `json:"context"`
	}](raw)
	if err != nil {
		return nil, err
	}
	if _, err := c.agents.GetAgent(p.AgentID); err != nil {
		var nf *protocol.NotFoundError
		if !errors.As(err, &nf) || p.AgentID == "" {
			return nil, err
		}
		c.logger.Warn("assigning work to unregistered agent", "agentId", p.AgentID)
	}
	a, err := c.scaffold.AssignWork(p.ProjectID, p.AgentID, p.TaskID, p.Context)
	if err != nil {
		return nil, err
	}
	return map[string]any{"assignmentId": a.ID, "status": "work_assigned"}, nil
}

func (c *Coordinator) markDomainComplete(_ context.Context, raw json.RawMessage) (map[string]any, error) {
	p, err := decode[struct {
		ProjectID      string                  `json:"projectId"`
		Domain         string                  `json:"domain"`
		CompletionData scaffold.CompletionData `json:"completionData"`
	}](raw)
	if err != nil {
		return nil, err
	}
	r, err := c.scaffold.MarkDomainComplete(p.ProjectID, p.Domain, p.CompletionData)
	if err != nil {
		return nil, err
	}
	return map[string]any{"status": "domain_completed", "data": r}, nil
}

func (c *Coordinator) createRelease(_ context.Context, raw json.RawMessage) (map[string]any, error) {
	p, err := decode[struct {
		ProjectID   string              `json:"projectId"`
		Version     string              `json:"version"`
		Description string              `json:"description"`
		Artifacts   []scaffold.Artifact `json:"artifacts"`
	}](raw)
	if err != nil {
		return nil, err
	}
	rel, err := c.scaffold.CreateRelease(p.ProjectID, p.Version, p.Description, p.Artifacts)
	if err != nil {
		return nil, err
	}
	return map[string]any{"releaseId": rel.ID, "status": "release_created"}, nil
}

type fileParams struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

func (c *Coordinator) readFile(_ context.Context, raw json.RawMessage) (map[string]any, error) {
	p, err := decode[fileParams](raw)
	if err != nil {
		return nil, err
	}
	if err := require("path", p.Path); err != nil {
		return nil, err
	}
	content, err := c.scaffold.ReadFile(p.Path)
	if err != nil {
		return nil, err
	}
	return map[string]any{"content": content, "status": "file_read"}, nil
}

func (c *Coordinator) writeFile(_ context.Context, raw json.RawMessage) (map[string]any, error) {
	p, err := decode[fileParams](raw)
	if err != nil {
		return nil, err
	}
	if err := c.scaffold.WriteFile(p.Path, p.Content); err != nil {
		return nil, err
	}
	return map[string]any{"status": "file_written"}, nil
}
