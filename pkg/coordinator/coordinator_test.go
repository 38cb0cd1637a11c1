package coordinator

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"empacy/pkg/agent"
	"empacy/pkg/bundle"
	"empacy/pkg/language"
	"empacy/pkg/protocol"
	"empacy/pkg/scaffold"
)

func newTestCoordinator(t *testing.T, opts ...Option) *Coordinator {
	t.Helper()
	return New(
		agent.NewManager(),
		bundle.NewManager(),
		language.NewManager(),
		scaffold.New(filepath.Join(t.TempDir(), "projects")),
		opts...,
	)
}

// call runs op and returns the response as it would appear on the wire.
func call(t *testing.T, c *Coordinator, op protocol.Op, params any) map[string]any {
	t.Helper()
	req := protocol.Request{ID: "t", Op: op}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			t.Fatalf("marshal params: %v", err)
		}
		req.Params = raw
	}
	data, err := json.Marshal(c.Handle(context.Background(), req))
	if err != nil {
		t.Fatalf("marshal response: %v", err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if out["id"] != "t" {
		t.Errorf("%s: id = %v, want t", op, out["id"])
	}
	return out
}

func mustSucceed(t *testing.T, c *Coordinator, op protocol.Op, params any) map[string]any {
	t.Helper()
	out := call(t, c, op, params)
	if out["success"] != true {
		t.Fatalf("%s failed: %v", op, out["error"])
	}
	return out
}

func mustFail(t *testing.T, c *Coordinator, op protocol.Op, params any, wantErr string) {
	t.Helper()
	out := call(t, c, op, params)
	if out["success"] != false {
		t.Fatalf("%s succeeded, want failure: %v", op, out)
	}
	if msg, _ := out["error"].(string); !strings.Contains(msg, wantErr) {
		t.Errorf("%s error = %q, want substring %q", op, msg, wantErr)
	}
}

func TestHandle_UnknownOp(t *testing.T) {
	c := newTestCoordinator(t)
	mustFail(t, c, "launchRockets", nil, `unknown operation "launchRockets"`)
}

func TestHandle_MalformedParams(t *testing.T) {
	c := newTestCoordinator(t)
	resp := c.Handle(context.Background(), protocol.Request{Op: protocol.OpSpawnAgent, Params: json.RawMessage(`[1,2]`)})
	if resp.Success || !strings.HasPrefix(resp.Error, "invalid params") {
		t.Errorf("resp = %+v", resp)
	}
}

func TestHandle_RecoversPanics(t *testing.T) {
	c := newTestCoordinator(t)
	c.handlers["boom"] = func(context.Context, json.RawMessage) (map[string]any, error) {
		panic("kaboom")
	}
	resp := c.Handle(context.Background(), protocol.Request{ID: "p", Op: "boom"})
	if resp.Success || resp.ID != "p" || !strings.Contains(resp.Error, "kaboom") {
		t.Errorf("resp = %+v", resp)
	}
}

func TestOps_CoversEveryOperation(t *testing.T) {
	c := newTestCoordinator(t)
	if got := len(c.Ops()); got != 30 {
		t.Errorf("len(Ops) = %d, want 30", got)
	}
}

func TestAgentLifecycle(t *testing.T) {
	c := newTestCoordinator(t)

	out := mustSucceed(t, c, protocol.OpSpawnAgent, map[string]any{"role": "cto"})
	id, _ := out["agentId"].(string)
	if !strings.HasPrefix(id, "agent_1_") || out["status"] != "ready" {
		t.Fatalf("spawn = %v", out)
	}
	missing, _ := out["missingContext"].([]any)
	if len(missing) != 2 {
		t.Errorf("missingContext = %v, want 2 entries", out["missingContext"])
	}

	out = mustSucceed(t, c, protocol.OpGetAgentStatus, map[string]any{"agentId": id})
	st, _ := out["status"].(map[string]any)
	if st["role"] != "cto" || st["status"] != "ready" {
		t.Errorf("status = %v", st)
	}

	mustSucceed(t, c, protocol.OpSpawnAgent, map[string]any{"role": "project-manager"})
	out = mustSucceed(t, c, protocol.OpListAgents, nil)
	if out["count"] != float64(2) {
		t.Errorf("count = %v, want 2", out["count"])
	}
	out = mustSucceed(t, c, protocol.OpListAgents, map[string]any{"role": "cto"})
	if out["count"] != float64(1) {
		t.Errorf("cto count = %v, want 1", out["count"])
	}

	out = mustSucceed(t, c, protocol.OpUpdateAgentStatus, map[string]any{
		"agentId": id, "status": "error", "metadata": map[string]any{"note": "stuck"},
	})
	md, _ := out["metadata"].(map[string]any)
	if out["status"] != "error" || md["note"] != "stuck" || md["decisionAuthority"] != "strategic" {
		t.Errorf("update = %v", out)
	}

	out = mustSucceed(t, c, protocol.OpTerminateAgent, map[string]any{"agentId": id})
	if out["status"] != "terminated" {
		t.Errorf("terminate = %v", out)
	}
	mustFail(t, c, protocol.OpGetAgentStatus, map[string]any{"agentId": id}, "agent not found: "+id)
}

func TestAgentErrors(t *testing.T) {
	c := newTestCoordinator(t)
	mustFail(t, c, protocol.OpSpawnAgent, map[string]any{"role": "intern"}, "unknown agent type: intern")
	mustFail(t, c, protocol.OpGetAgentStatus, nil, "invalid agentId")
	mustFail(t, c, protocol.OpTerminateAgent, map[string]any{"agentId": "agent_x"}, "agent not found")
	mustFail(t, c, protocol.OpUpdateAgentStatus, map[string]any{"agentId": "agent_x", "status": "ready"}, "agent not found")
}

func TestContextOperations(t *testing.T) {
	c := newTestCoordinator(t)
	dir := t.TempDir()
	apiFile := filepath.Join(dir, "api.yaml")
	if err := os.WriteFile(apiFile, []byte("openapi: 3.0.0\npaths: {}\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	params := map[string]any{"agentId": "agent_a", "contextFiles": []string{apiFile, filepath.Join(dir, "missing.md")}}
	out := mustSucceed(t, c, protocol.OpDistributeContext, params)
	if out["status"] != "context_distributed" || out["version"] != float64(1) || out["files"] != float64(1) {
		t.Errorf("distribute = %v", out)
	}
	out = mustSucceed(t, c, protocol.OpUpdateContext, params)
	if out["status"] != "context_updated" || out["version"] != float64(2) {
		t.Errorf("update = %v", out)
	}

	out = mustSucceed(t, c, protocol.OpGetContext, map[string]any{"agentId": "agent_a"})
	pkg, _ := out["context"].(map[string]any)
	files, _ := pkg["contextFiles"].([]any)
	if len(files) != 1 || files[0].(map[string]any)["type"] != "yaml" {
		t.Errorf("context files = %v", files)
	}
	mustFail(t, c, protocol.OpGetContext, map[string]any{"agentId": "agent_b"}, "no context found for agent: agent_b")

	out = mustSucceed(t, c, protocol.OpGetContextVersion, map[string]any{"agentId": "agent_b"})
	if out["version"] != float64(0) {
		t.Errorf("unknown agent version = %v", out["version"])
	}

	out = mustSucceed(t, c, protocol.OpGetAccessLog, map[string]any{"agentId": "agent_a"})
	if recs, _ := out["records"].([]any); len(recs) != 2 {
		t.Errorf("records = %v", out["records"])
	}

	out = mustSucceed(t, c, protocol.OpGetContextStats, nil)
	stats, _ := out["stats"].(map[string]any)
	if stats["totalAgents"] != float64(1) {
		t.Errorf("stats = %v", stats)
	}

	mustFail(t, c, protocol.OpCleanupContext, map[string]any{"maxAgeMillis": -5}, "invalid maxAgeMillis")
	out = mustSucceed(t, c, protocol.OpCleanupContext, map[string]any{"maxAgeMillis": 60_000})
	if out["cleaned"] != float64(0) {
		t.Errorf("cleaned = %v, want 0 for a fresh package", out["cleaned"])
	}
	out = mustSucceed(t, c, protocol.OpCleanupContext, map[string]any{"maxAgeMillis": 0})
	if out["cleaned"] != float64(1) {
		t.Errorf("cleaned = %v, want 1", out["cleaned"])
	}
}

func TestDistributeContext_AllFilesInvalid(t *testing.T) {
	c := newTestCoordinator(t)
	out := mustSucceed(t, c, protocol.OpDistributeContext, map[string]any{
		"agentId": "agent_a", "contextFiles": []string{"/nonexistent/a.md"},
	})
	if out["files"] != float64(0) || out["version"] != float64(1) {
		t.Errorf("distribute = %v", out)
	}
}

func TestLanguageOperations(t *testing.T) {
	c := newTestCoordinator(t)
	concepts := []map[string]any{
		{"name": "Order", "domain": "Sales", "definition": "A customer purchase"},
		{"name": "Customer Order Line", "domain": "Sales", "definition": "One line of an order"},
	}
	out := mustSucceed(t, c, protocol.OpUpdateUbiquitousLanguage, map[string]any{"concepts": concepts})
	if out["status"] != "language_updated" || out["conceptsProcessed"] != float64(2) {
		t.Errorf("update = %v", out)
	}

	out = mustSucceed(t, c, protocol.OpSearchConcepts, map[string]any{"query": "order"})
	results, _ := out["results"].([]any)
	if len(results) != 2 {
		t.Fatalf("results = %v", results)
	}
	first := results[0].(map[string]any)["concept"].(map[string]any)
	if first["name"] != "Customer Order Line" {
		t.Errorf("top result = %v, want the name and definition match first", first["name"])
	}
	mustFail(t, c, protocol.OpSearchConcepts, nil, "invalid query")

	out = mustSucceed(t, c, protocol.OpGetConcept, map[string]any{"name": "Order"})
	if concept, _ := out["concept"].(map[string]any); concept["domain"] != "Sales" {
		t.Errorf("concept = %v", concept)
	}
	mustFail(t, c, protocol.OpGetConcept, map[string]any{"name": "Refund"}, "concept not found: Refund")

	out = mustSucceed(t, c, protocol.OpExportLanguage, nil)
	doc, _ := out["yaml"].(string)
	if !strings.Contains(doc, "Customer Order Line") {
		t.Fatalf("export = %q", doc)
	}

	fresh := newTestCoordinator(t)
	out = mustSucceed(t, fresh, protocol.OpImportLanguage, map[string]any{"yaml": doc})
	if out["status"] != "language_imported" || out["conceptsImported"] != float64(2) || out["totalConcepts"] != float64(2) {
		t.Errorf("import = %v", out)
	}
	mustFail(t, fresh, protocol.OpImportLanguage, map[string]any{"yaml": "domains: [unterminated"}, "invalid yaml")

	out = mustSucceed(t, fresh, protocol.OpGetLanguageStats, nil)
	if stats, _ := out["stats"].(map[string]any); stats["totalConcepts"] != float64(2) {
		t.Errorf("stats = %v", stats)
	}
}

func TestUpdateLanguage_InvalidConcept(t *testing.T) {
	c := newTestCoordinator(t)
	mustFail(t, c, protocol.OpUpdateUbiquitousLanguage, map[string]any{
		"concepts": []map[string]any{
			{"name": "Order", "domain": "Sales", "definition": "A purchase"},
			{"name": "Refund", "domain": "Sales"},
		},
	}, "definition")
	if c.language.Count() != 1 {
		t.Errorf("Count = %d, want 1 (earlier items stay committed)", c.language.Count())
	}
}

func TestUpdateLanguage_NonObjectConcept(t *testing.T) {
	c := newTestCoordinator(t)
	resp := c.Handle(context.Background(), protocol.Request{
		ID:     "n",
		Op:     protocol.OpUpdateUbiquitousLanguage,
		Params: json.RawMessage(`{"concepts":[{"name":"Order","domain":"Sales","definition":"A purchase"},42]}`),
	})
	if resp.Success || resp.Error != "invalid concept: must be an object" {
		t.Fatalf("resp = %+v", resp)
	}
	if _, err := c.language.GetConcept("Order"); err != nil {
		t.Errorf("GetConcept(Order): %v (earlier items stay committed)", err)
	}
}

func TestHealth(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	now := start
	c := newTestCoordinator(t, WithVersion("1.2.3"), WithClock(func() time.Time { return now }))
	now = start.Add(90 * time.Second)

	out := mustSucceed(t, c, protocol.OpHealth, nil)
	if out["status"] != "healthy" || out["version"] != "1.2.3" || out["uptimeSeconds"] != float64(90) {
		t.Errorf("health = %v", out)
	}
}

func TestCreateProject_SpawnsSeedAgents(t *testing.T) {
	c := newTestCoordinator(t)
	out := mustSucceed(t, c, protocol.OpCreateProject, map[string]any{
		"name": "Shop", "description": "Online shop", "domains": []string{"Billing"},
	})
	projectID, _ := out["projectId"].(string)
	agents, _ := out["agents"].([]any)
	if out["status"] != "created" || len(agents) != 2 {
		t.Fatalf("createProject = %v", out)
	}

	for _, a := range agents {
		id := a.(string)
		ag, err := c.agents.GetAgent(id)
		if err != nil {
			t.Fatalf("GetAgent(%s): %v", id, err)
		}
		if ag.Role == protocol.RoleCTOAssistant && len(ag.MissingContext) != 0 {
			t.Errorf("%s missing context %v", ag.Role, ag.MissingContext)
		}
		pkg, err := c.contexts.GetContext(id)
		if err != nil {
			t.Fatalf("GetContext(%s): %v", id, err)
		}
		if pkg.Metadata.TotalFiles != 2 {
			t.Errorf("%s context files = %d, want 2", id, pkg.Metadata.TotalFiles)
		}
	}

	out = mustSucceed(t, c, protocol.OpGetProjectState, map[string]any{"projectId": projectID})
	state, _ := out["state"].(map[string]any)
	if out["status"] != "project_state_retrieved" || state["projectId"] != projectID {
		t.Errorf("state = %v", out)
	}
	mustFail(t, c, protocol.OpGetProjectState, map[string]any{"projectId": "project_none"}, "project not found")
}

func TestDocumentOperations(t *testing.T) {
	c := newTestCoordinator(t)
	root := c.scaffold.Root()

	out := mustSucceed(t, c, protocol.OpGeneratePlantUML, map[string]any{
		"type": "sequence", "content": "A -> B", "outputPath": filepath.Join(root, "diagrams", "flow.puml"),
	})
	if out["status"] != "diagram_generated" {
		t.Errorf("plantuml = %v", out)
	}
	out = mustSucceed(t, c, protocol.OpGeneratePlantUMLDiagram, map[string]any{
		"type": "class", "content": "class A", "outputPath": filepath.Join(root, "diagrams", "model.puml"),
	})
	if out["diagramPath"] != filepath.Join(root, "diagrams", "model.puml") {
		t.Errorf("plantuml alias = %v", out)
	}

	out = mustSucceed(t, c, protocol.OpCreateDomainPhase, map[string]any{
		"domain": "Billing", "phaseName": "Discovery",
		"tasks":   []map[string]any{{"title": "Interview finance"}},
		"context": []any{"Invoices are monthly", map[string]any{"title": "Tax", "description": "VAT rules"}},
	})
	if out["status"] != "phase_created" || out["phaseId"] == "" {
		t.Errorf("phase = %v", out)
	}

	out = mustSucceed(t, c, protocol.OpScheduleProject, map[string]any{
		"phases": []map[string]any{{"name": "Discovery", "startDate": "2025-01-01", "endDate": "2025-01-15"}},
	})
	if out["status"] != "project_scheduled" {
		t.Errorf("schedule = %v", out)
	}

	spawn := mustSucceed(t, c, protocol.OpSpawnAgent, map[string]any{"role": "domain-director"})
	out = mustSucceed(t, c, protocol.OpAssignWork, map[string]any{
		"agentId": spawn["agentId"], "taskId": "task-1", "context": []string{"README.md"},
	})
	if out["status"] != "work_assigned" {
		t.Errorf("assign = %v", out)
	}

	out = mustSucceed(t, c, protocol.OpCreateRelease, map[string]any{
		"projectId": "current", "version": "1.0.0", "description": "First cut",
		"artifacts": []map[string]any{{"name": "api", "type": "binary", "path": "bin/api"}},
	})
	if out["status"] != "release_created" {
		t.Errorf("release = %v", out)
	}
}

func TestFileOperations(t *testing.T) {
	c := newTestCoordinator(t)
	path := filepath.Join(t.TempDir(), "notes", "a.txt")

	mustSucceed(t, c, protocol.OpWriteFile, map[string]any{"path": path, "content": "hello"})
	out := mustSucceed(t, c, protocol.OpReadFile, map[string]any{"path": path})
	if out["content"] != "hello" || out["status"] != "file_read" {
		t.Errorf("read = %v", out)
	}
	mustFail(t, c, protocol.OpReadFile, map[string]any{"path": path + ".missing"}, "file not found")
	mustFail(t, c, protocol.OpReadFile, nil, "invalid path")
}
