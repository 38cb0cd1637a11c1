package agent

import (
	"fmt"
	"log/slog"

	"empacy/pkg/protocol"
)

// Initializer stamps role-specific metadata onto a freshly built agent.
type Initializer func(a *Agent) error

// defaultInitializer returns the built-in initializer for role. Every catalog
// role must have a case here; catalog_test.go walks protocol.Roles() to keep the
// switch exhaustive.
func defaultInitializer(role protocol.Role) (Initializer, error) {
	switch role {
	case protocol.RoleCTO:
		return initCTO, nil
	case protocol.RoleCTOAssistant:
		return initCTOAssistant, nil
	case protocol.RolePrincipalEngineer:
		return initPrincipalEngineer, nil
	case protocol.RoleDomainDirector:
		return initDomainDirector, nil
	case protocol.RoleProjectManager:
		return initProjectManager, nil
	default:
		return nil, fmt.Errorf("no initializer for role %q", role)
	}
}

func stamp(a *Agent, role, authority, reporting, access string, spawn, distribute bool) {
	a.Metadata["role"] = role
	a.Metadata["decisionAuthority"] = authority
	a.Metadata["reportingStructure"] = reporting
	a.Metadata["accessLevel"] = access
	a.Metadata["canSpawnAgents"] = spawn
	a.Metadata["canDistributeContext"] = distribute
}

func initCTO(a *Agent) error {
	stamp(a, "strategic", "full", "top-level", "full", true, true)
	return nil
}

func initCTOAssistant(a *Agent) error {
	stamp(a, "support", "limited", "reports-to-cto", "content-focused", false, false)
	a.Metadata["canUpdateUbiquitousLanguage"] = true
	return nil
}

func initPrincipalEngineer(a *Agent) error {
	stamp(a, "technical", "technical-decisions", "reports-to-cto", "technical-full", false, false)
	a.Metadata["canMakeTechnicalDecisions"] = true
	return nil
}

func initDomainDirector(a *Agent) error {
	stamp(a, "planning", "domain-planning", "reports-to-cto", "domain-specific", false, false)
	a.Metadata["canPlanDomainImplementation"] = true
	return nil
}

func initProjectManager(a *Agent) error {
	stamp(a, "coordination", "scheduling-decisions", "reports-to-cto", "scheduling-full", false, false)
	a.Metadata["canManageSchedule"] = true
	return nil
}

// cleanup runs role-specific teardown. remaining is the number of other agents
// still registered. Only the CTO reacts, and only with a warning: it never
// terminates the agents it leaves behind.
func cleanup(logger *slog.Logger, a *Agent, remaining int) {
	switch a.Role {
	case protocol.RoleCTO:
		if remaining > 0 {
			logger.Warn("CTO termination with remaining agents", "agentId", a.ID, "remaining", remaining)
		}
	case protocol.RoleCTOAssistant, protocol.RolePrincipalEngineer,
		protocol.RoleDomainDirector, protocol.RoleProjectManager:
		// nothing held outside the registry
	}
}
