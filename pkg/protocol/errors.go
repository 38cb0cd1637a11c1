package protocol

import "fmt"

// UnknownRoleError is returned when an agent is spawned with a role that is not
// in the agent type catalog.
type UnknownRoleError struct {
	Role string
}

func (e *UnknownRoleError) Error() string {
	return fmt.Sprintf("unknown agent type: %s", e.Role)
}

// NotFoundError represents a lookup failure for any registry or project entity.
// Kind names the entity ("agent", "context", "project", "domain", "concept", "file").
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	switch e.Kind {
	case "context":
		return fmt.Sprintf("no context found for agent: %s", e.ID)
	default:
		return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
	}
}

// ValidationError reports malformed concept, context-file, or request input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Reason)
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IOError wraps an underlying file-system failure. The wrapped error is
// reachable through errors.Is / errors.As.
type IOError struct {
	Op   string // read | write | mkdir | stat | readdir
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}
