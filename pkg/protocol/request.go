package protocol

import (
	"encoding/json"
	"fmt"
)

// Op names a coordinator operation.
type Op string

// Core coordination operations.
const (
	OpSpawnAgent               Op = "spawnAgent"
	OpGetAgentStatus           Op = "getAgentStatus"
	OpListAgents               Op = "listAgents"
	OpUpdateAgentStatus        Op = "updateAgentStatus"
	OpTerminateAgent           Op = "terminateAgent"
	OpDistributeContext        Op = "distributeContext"
	OpUpdateContext            Op = "updateContext"
	OpGetContext               Op = "getContext"
	OpGetContextVersion        Op = "getContextVersion"
	OpGetContextStats          Op = "getContextStats"
	OpGetAccessLog             Op = "getAccessLog"
	OpCleanupContext           Op = "cleanupContext"
	OpUpdateUbiquitousLanguage Op = "updateUbiquitousLanguage"
	OpSearchConcepts           Op = "searchConcepts"
	OpGetConcept               Op = "getConcept"
	OpExportLanguage           Op = "exportLanguage"
	OpImportLanguage           Op = "importLanguage"
	OpGetLanguageStats         Op = "getLanguageStats"
	OpHealth                   Op = "health"
)

// Pass-through scaffolding and templating operations.
const (
	OpCreateProject           Op = "createProject"
	OpGetProjectState         Op = "getProjectState"
	OpGeneratePlantUML        Op = "generatePlantUML"
	// OpGeneratePlantUMLDiagram is the long-form name of OpGeneratePlantUML.
	OpGeneratePlantUMLDiagram Op = "generatePlantUMLDiagram"
	OpCreateDomainPhase       Op = "createDomainPhase"
	OpScheduleProject         Op = "scheduleProject"
	OpAssignWork              Op = "assignWork"
	OpMarkDomainComplete      Op = "markDomainComplete"
	OpCreateRelease           Op = "createRelease"
	OpReadFile                Op = "readFile"
	OpWriteFile               Op = "writeFile"
)

// Request is one line-delimited JSON request sent to the coordinator.
type Request struct {
	ID     string          `json:"id,omitempty"`
	Op     Op              `json:"op"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Response is the uniform reply to a Request. On the wire the fields of Result
// are flattened next to "success", so a spawn reply reads
// {"success":true,"agentId":"...","status":"ready"}.
type Response struct {
	ID      string
	Success bool
	Error   string
	Result  map[string]any
}

// OK builds a successful response carrying result fields.
func OK(result map[string]any) Response {
	return Response{Success: true, Result: result}
}

// Fail builds a failure response from err.
func Fail(err error) Response {
	return Response{Success: false, Error: err.Error()}
}

// MarshalJSON flattens Result into the top-level object.
func (r Response) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Result)+3)
	for k, v := range r.Result {
		out[k] = v
	}
	if r.ID != "" {
		out["id"] = r.ID
	}
	out["success"] = r.Success
	if !r.Success {
		out["error"] = r.Error
	}
	return json.Marshal(out)
}

// UnmarshalJSON splits the reserved keys back out of the flattened object.
func (r *Response) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	*r = Response{Result: make(map[string]any)}
	for k, v := range raw {
		switch k {
		case "id":
			r.ID, _ = v.(string)
		case "success":
			r.Success, _ = v.(bool)
		case "error":
			r.Error, _ = v.(string)
		default:
			r.Result[k] = v
		}
	}
	return nil
}

// Decode re-marshals the flattened result into v, for clients that want typed fields.
func (r Response) Decode(v any) error {
	data, err := json.Marshal(r.Result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode result: %w", err)
	}
	return nil
}
