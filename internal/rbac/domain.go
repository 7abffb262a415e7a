// Package rbac implements the role and capability model for Meridian.
// Roles form a closed set; each role maps to a fixed capability set that
// is never mutated at runtime.
package rbac

import (
	"fmt"
	"strings"
)

// Role is a named bundle of capabilities assigned to an actor.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleAgent   Role = "agent"
)

// ParseRole validates a role token. Unknown tokens are a construction-time
// error so they can never flow into permission evaluation.
func ParseRole(token string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(token))) {
	case RoleAdmin:
		return RoleAdmin, nil
	case RoleManager:
		return RoleManager, nil
	case RoleAgent:
		return RoleAgent, nil
	default:
		return "", fmt.Errorf("rbac: unknown role %q", token)
	}
}

// Valid reports whether the role is one of the known constants.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleAgent:
		return true
	}
	return false
}

// Capability is an atomic permission token.
type Capability string

const (
	// Lead capabilities.
	CapViewAllLeads      Capability = "view_all_leads"
	CapViewAssignedLeads Capability = "view_assigned_leads"
	CapCreateLeads       Capability = "create_leads"
	CapEditAllLeads      Capability = "edit_all_leads"
	CapEditAssignedLeads Capability = "edit_assigned_leads"
	CapDeleteLeads       Capability = "delete_leads"

	// User capabilities.
	CapViewAllUsers Capability = "view_all_users"
	CapCreateUsers  Capability = "create_users"
	CapEditUsers    Capability = "edit_users"
	CapDeleteUsers  Capability = "delete_users"

	// Team capabilities.
	CapViewAllTeams Capability = "view_all_teams"
	CapManageTeams  Capability = "manage_teams"

	// Reporting capabilities.
	CapViewReports Capability = "view_reports"
	CapExportData  Capability = "export_data"

	// Settings capabilities.
	CapManageSettings     Capability = "manage_settings"
	CapManageIntegrations Capability = "manage_integrations"
)

// rolePermissions is the static role to capability mapping. Agents hold the
// most restrictive set and double as the fail-closed fallback.
var rolePermissions = map[Role][]Capability{
	RoleAdmin: {
		CapViewAllLeads,
		CapCreateLeads,
		CapEditAllLeads,
		CapDeleteLeads,
		CapViewAllUsers,
		CapCreateUsers,
		CapEditUsers,
		CapDeleteUsers,
		CapViewAllTeams,
		CapManageTeams,
		CapViewReports,
		CapExportData,
		CapManageSettings,
		CapManageIntegrations,
	},
	RoleManager: {
		CapViewAllLeads,
		CapCreateLeads,
		CapEditAllLeads,
		CapViewAllUsers,
		CapViewAllTeams,
		CapViewReports,
		CapExportData,
	},
	RoleAgent: {
		CapViewAssignedLeads,
		CapCreateLeads,
		CapEditAssignedLeads,
	},
}

// RolePermissions returns the fixed capability set granted to a role. An
// unrecognized role yields the agent set so a bad token can only narrow
// access, never widen it.
func RolePermissions(role Role) []Capability {
	caps, ok := rolePermissions[role]
	if !ok {
		caps = rolePermissions[RoleAgent]
	}
	out := make([]Capability, len(caps))
	copy(out, caps)
	return out
}

// AllCapabilities enumerates every known capability token.
func AllCapabilities() []Capability {
	return []Capability{
		CapViewAllLeads,
		CapViewAssignedLeads,
		CapCreateLeads,
		CapEditAllLeads,
		CapEditAssignedLeads,
		CapDeleteLeads,
		CapViewAllUsers,
		CapCreateUsers,
		CapEditUsers,
		CapDeleteUsers,
		CapViewAllTeams,
		CapManageTeams,
		CapViewReports,
		CapExportData,
		CapManageSettings,
		CapManageIntegrations,
	}
}

// ParseCapability validates a capability token.
func ParseCapability(token string) (Capability, error) {
	c := Capability(strings.ToLower(strings.TrimSpace(token)))
	for _, known := range AllCapabilities() {
		if c == known {
			return c, nil
		}
	}
	return "", fmt.Errorf("rbac: unknown capability %q", token)
}

// Actor is the authenticated identity on whose behalf operations run.
// Overrides extend the role set with explicitly granted capabilities.
type Actor struct {
	ID        string
	Role      Role
	TeamID    *string
	Overrides []Capability
	IsActive  bool
}
