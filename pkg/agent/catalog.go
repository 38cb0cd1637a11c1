package agent

import (
	"slices"
	"strings"

	"empacy/pkg/protocol"
)

// TypeDescriptor is an immutable agent type catalog entry.
type TypeDescriptor struct {
	Role            protocol.Role `json:"role"`
	Name            string        `json:"name"`
	Description     string        `json:"description"`
	Capabilities    []string      `json:"capabilities"`
	RequiredContext []string      `json:"requiredContext"`
}

// catalog is built once at package init and never mutated; Lookup and
// Catalog hand out copies.
//
//nolint:gochecknoglobals // fixed startup data
var catalog = map[protocol.Role]TypeDescriptor{
	protocol.RoleCTO: {
		Role:            protocol.RoleCTO,
		Name:            "CTO",
		Description:     "Strategic decision maker and orchestrator",
		Capabilities:    []string{"vision", "strategy", "coordination"},
		RequiredContext: []string{"ubiquitous-language.yaml", "vision.md"},
	},
	protocol.RoleCTOAssistant: {
		Role:            protocol.RoleCTOAssistant,
		Name:            "CTO-Assistant",
		Description:     "Content refinement and ubiquitous language management",
		Capabilities:    []string{"summarization", "language-management", "content-quality"},
		RequiredContext: []string{"ubiquitous-language.yaml"},
	},
	protocol.RolePrincipalEngineer: {
		Role:            protocol.RolePrincipalEngineer,
		Name:            "Principal Engineer",
		Description:     "Technical architecture and infrastructure",
		Capabilities:    []string{"architecture", "infrastructure", "quality-tools"},
		RequiredContext: []string{"project-config.json", "domain-design.md"},
	},
	protocol.RoleDomainDirector: {
		Role:            protocol.RoleDomainDirector,
		Name:            "Domain Director",
		Description:     "Domain-specific planning and task breakdown",
		Capabilities:    []string{"planning", "task-breakdown", "context-digest"},
		RequiredContext: []string{"project-config.json", "ubiquitous-language.yaml"},
	},
	protocol.RoleProjectManager: {
		Role:            protocol.RoleProjectManager,
		Name:            "Project Manager",
		Description:     "Task scheduling and dependency management",
		Capabilities:    []string{"scheduling", "dependency-management", "conflict-resolution"},
		RequiredContext: []string{"project-config.json", "domain-phases"},
	},
}

func (d TypeDescriptor) clone() TypeDescriptor {
	d.Capabilities = slices.Clone(d.Capabilities)
	d.RequiredContext = slices.Clone(d.RequiredContext)
	return d
}

// Lookup returns the descriptor for role.
func Lookup(role protocol.Role) (TypeDescriptor, bool) {
	d, ok := catalog[role]
	if !ok {
		return TypeDescriptor{}, false
	}
	return d.clone(), true
}

// Catalog returns every descriptor in protocol.Roles() order.
func Catalog() []TypeDescriptor {
	out := make([]TypeDescriptor, 0, len(catalog))
	for _, r := range protocol.Roles() {
		out = append(out, catalog[r].clone())
	}
	return out
}

// MissingContext is the soft required-context check. A required name is
// satisfied by the exact key or by the key with a ".yaml" suffix stripped.
// It never fails; callers log the returned names as warnings.
func MissingContext(required []string, supplied map[string]any) []string {
	var missing []string
	for _, name := range required {
		if present(supplied, name) || present(supplied, strings.TrimSuffix(name, ".yaml")) {
			continue
		}
		missing = append(missing, name)
	}
	return missing
}

// present mirrors a truthiness check: nil, false and "" count as absent.
func present(m map[string]any, key string) bool {
	v, ok := m[key]
	if !ok || v == nil {
		return false
	}
	switch x := v.(type) {
	case bool:
		return x
	case string:
		return x != ""
	default:
		return true
	}
}
