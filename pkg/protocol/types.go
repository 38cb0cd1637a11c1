package protocol

// Role identifies an agent type in the catalog.
type Role string

// Catalog roles. The set is closed; every role has exactly one initializer
// and one cleanup handler in pkg/agent.
const (
	RoleCTO               Role = "cto"
	RoleCTOAssistant      Role = "cto-assistant"
	RolePrincipalEngineer Role = "principal-engineer"
	RoleDomainDirector    Role = "domain-director"
	RoleProjectManager    Role = "project-manager"
)

// Roles returns every catalog role in declaration order.
func Roles() []Role {
	return []Role{RoleCTO, RoleCTOAssistant, RolePrincipalEngineer, RoleDomainDirector, RoleProjectManager}
}

// Valid reports whether r is one of the five catalog roles.
func (r Role) Valid() bool {
	switch r {
	case RoleCTO, RoleCTOAssistant, RolePrincipalEngineer, RoleDomainDirector, RoleProjectManager:
		return true
	default:
		return false
	}
}

// AgentStatus is the lifecycle state of an agent.
type AgentStatus string

// Agent status constants.
const (
	StatusInitializing AgentStatus = "initializing"
	StatusReady        AgentStatus = "ready"
	StatusError        AgentStatus = "error"
	StatusTerminated   AgentStatus = "terminated"
)

// Valid reports whether s is a known agent status.
func (s AgentStatus) Valid() bool {
	switch s {
	case StatusInitializing, StatusReady, StatusError, StatusTerminated:
		return true
	default:
		return false
	}
}

// ContentType is the detected type of a context file.
type ContentType string

// Content type constants.
const (
	ContentYAML     ContentType = "yaml"
	ContentJSON     ContentType = "json"
	ContentMarkdown ContentType = "markdown"
	ContentText     ContentType = "text"
)

// Access-log and history action tags.
const (
	ActionContextDistributed = "context_distributed"
	ActionConceptCreated     = "concept_created"
	ActionConceptUpdated     = "concept_updated"
)
