package rbac

import "sort"

// LeadScope classifies how far an actor's lead visibility reaches.
type LeadScope int

const (
	// ScopeNone grants no visibility at all.
	ScopeNone LeadScope = iota
	// ScopeOwner restricts visibility to leads owned by the actor.
	ScopeOwner
	// ScopeAll grants unrestricted visibility.
	ScopeAll
)

// LeadFilter is the effective permission filter derived from an actor:
// either unrestricted, restricted to an owner id, or deny-all. Every list,
// read and subscribe path must derive and apply exactly one per request.
type LeadFilter struct {
	Scope   LeadScope
	OwnerID string
}

// Matches reports whether a lead owned by ownerID passes the filter.
func (f LeadFilter) Matches(ownerID string) bool {
	switch f.Scope {
	case ScopeAll:
		return true
	case ScopeOwner:
		return ownerID == f.OwnerID
	default:
		return false
	}
}

// Evaluator answers capability questions for one actor snapshot. It holds
// only immutable data and is safe to share across concurrent requests.
type Evaluator struct {
	actor Actor
	caps  map[Capability]struct{}
}

// NewEvaluator builds an Evaluator from an actor snapshot. The capability
// set is the union of the role's fixed grants and the actor's explicit
// overrides, resolved once at construction.
func NewEvaluator(actor Actor) Evaluator {
	caps := make(map[Capability]struct{})
	for _, c := range RolePermissions(actor.Role) {
		caps[c] = struct{}{}
	}
	for _, c := range actor.Overrides {
		caps[c] = struct{}{}
	}
	return Evaluator{actor: actor, caps: caps}
}

// Actor returns the wrapped actor snapshot.
func (e Evaluator) Actor() Actor {
	return e.actor
}

// HasCapability reports whether the token is granted by role or override.
func (e Evaluator) HasCapability(c Capability) bool {
	_, ok := e.caps[c]
	return ok
}

// Capabilities returns the effective capability set in sorted order.
func (e Evaluator) Capabilities() []Capability {
	out := make([]Capability, 0, len(e.caps))
	for c := range e.caps {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (e Evaluator) CanViewAll() bool          { return e.HasCapability(CapViewAllLeads) }
func (e Evaluator) CanViewAssignedOnly() bool { return e.HasCapability(CapViewAssignedLeads) }
func (e Evaluator) CanCreate() bool           { return e.HasCapability(CapCreateLeads) }
func (e Evaluator) CanEditAll() bool          { return e.HasCapability(CapEditAllLeads) }
func (e Evaluator) CanEditAssignedOnly() bool { return e.HasCapability(CapEditAssignedLeads) }
func (e Evaluator) CanDelete() bool           { return e.HasCapability(CapDeleteLeads) }
func (e Evaluator) CanViewReports() bool      { return e.HasCapability(CapViewReports) }
func (e Evaluator) CanExportData() bool       { return e.HasCapability(CapExportData) }
func (e Evaluator) CanManageSettings() bool   { return e.HasCapability(CapManageSettings) }
func (e Evaluator) CanManageTeams() bool      { return e.HasCapability(CapManageTeams) }

// CanManageUsers is true when the actor may either list or create users.
func (e Evaluator) CanManageUsers() bool {
	return e.HasCapability(CapViewAllUsers) || e.HasCapability(CapCreateUsers)
}

// DeriveLeadFilter produces the query-time predicate for this actor.
func (e Evaluator) DeriveLeadFilter() LeadFilter {
	if e.CanViewAll() {
		return LeadFilter{Scope: ScopeAll}
	}
	if e.CanViewAssignedOnly() {
		return LeadFilter{Scope: ScopeOwner, OwnerID: e.actor.ID}
	}
	return LeadFilter{Scope: ScopeNone}
}

// CanAccessLead is the row-level read gate, applied post-fetch as a second
// layer so a store-side filter bug cannot leak foreign rows on its own.
func (e Evaluator) CanAccessLead(ownerID string) bool {
	if e.CanViewAll() {
		return true
	}
	return e.CanViewAssignedOnly() && ownerID == e.actor.ID
}

// CanEditLead is the row-level write gate, evaluated against the stored
// owner, never a client-supplied one.
func (e Evaluator) CanEditLead(ownerID string) bool {
	if e.CanEditAll() {
		return true
	}
	return e.CanEditAssignedOnly() && ownerID == e.actor.ID
}
