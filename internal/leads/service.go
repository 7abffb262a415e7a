package leads

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-crm/meridian-crm/internal/rbac"
	"github.com/meridian-crm/meridian-crm/internal/shared"
)

// TaskEnqueuer schedules background work for freshly created leads.
type TaskEnqueuer interface {
	EnqueueFirstTouch(ctx context.Context, lead Lead) error
}

// Service mediates every lead operation through the permission evaluator.
// It is bound to one actor at construction and holds only immutable state,
// so a caller may reuse it across concurrent requests for the same actor.
type Service struct {
	logger    *slog.Logger
	repo      Repository
	publisher Publisher
	tasks     TaskEnqueuer
	audit     *shared.AuditLogger
	eval      rbac.Evaluator
}

// NewService builds a Service acting on behalf of the given actor.
// publisher, tasks and audit may be nil in contexts without redis,
// asynq or an audit trail.
func NewService(logger *slog.Logger, repo Repository, publisher Publisher, tasks TaskEnqueuer, audit *shared.AuditLogger, actor rbac.Actor) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		logger:    logger,
		repo:      repo,
		publisher: publisher,
		tasks:     tasks,
		audit:     audit,
		eval:      rbac.NewEvaluator(actor),
	}
}

// Evaluator exposes the per-actor evaluator for collaborators such as the
// change relay and HTTP handlers.
func (s *Service) Evaluator() rbac.Evaluator {
	return s.eval
}

// List returns the leads visible to the actor, newest first, plus the total
// matching count. The derived permission filter is ANDed with caller filters
// at query time, and every returned row is re-checked before it leaves this
// package. An empty result is not an error.
func (s *Service) List(ctx context.Context, req ListLeadsRequest) ([]Lead, int, error) {
	filter := s.eval.DeriveLeadFilter()
	if filter.Scope == rbac.ScopeNone {
		return []Lead{}, 0, nil
	}

	rows, total, err := s.repo.List(ctx, req, filter)
	if err != nil {
		return nil, 0, err
	}

	// Row-level re-check. A mismatch here means the store-side filter and
	// the evaluator disagree; drop the row and leave a trace.
	visible := make([]Lead, 0, len(rows))
	for _, lead := range rows {
		if !s.eval.CanAccessLead(lead.AssignedTo) {
			s.logger.Warn("lead leaked past query filter, discarding",
				slog.String("lead_id", lead.ID),
				slog.String("actor_id", s.eval.Actor().ID))
			total--
			continue
		}
		visible = append(visible, lead)
	}
	return visible, total, nil
}

// Get fetches a single lead. A missing record surfaces as NotFound; an
// existing record the actor may not see surfaces as PermissionDenied. The
// two stay distinguishable for audit purposes.
func (s *Service) Get(ctx context.Context, id string) (*Lead, error) {
	lead, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.eval.CanAccessLead(lead.AssignedTo) {
		s.auditDenied(ctx, "get", lead.ID)
		return nil, fmt.Errorf("lead %s: %w", id, shared.ErrPermissionDenied)
	}
	return lead, nil
}

// Create persists a new lead. The owner defaults to the acting actor when
// the request leaves it unset.
func (s *Service) Create(ctx context.Context, req CreateLeadRequest) (*Lead, error) {
	if !s.eval.CanCreate() {
		s.auditDenied(ctx, "create", "")
		return nil, fmt.Errorf("create lead: %w", shared.ErrPermissionDenied)
	}
	if err := validateCreate(&req); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	status := StatusNew
	if req.Status != nil {
		status = *req.Status
	}
	assignedTo := s.eval.Actor().ID
	if req.AssignedTo != nil && *req.AssignedTo != "" {
		assignedTo = *req.AssignedTo
	}
	var consentAt *time.Time
	if req.Consent {
		consentAt = &now
	}

	lead := Lead{
		ID:           uuid.NewString(),
		Name:         req.Name,
		Phone:        req.Phone,
		Email:        req.Email,
		Company:      req.Company,
		State:        req.State,
		Status:       status,
		Source:       req.Source,
		Value:        req.Value,
		Notes:        req.Notes,
		Consent:      req.Consent,
		ConsentAt:    consentAt,
		NextFollowUp: req.NextFollowUp,
		AssignedTo:   assignedTo,
		CreatedBy:    s.eval.Actor().ID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.Create(ctx, lead); err != nil {
		return nil, err
	}

	s.publish(ctx, ChangeEvent{Kind: ChangeInsert, Lead: lead, OccurredAt: now})
	if s.tasks != nil {
		if err := s.tasks.EnqueueFirstTouch(ctx, lead); err != nil {
			s.logger.Warn("enqueue first touch", slog.String("lead_id", lead.ID), slog.Any("error", err))
		}
	}
	return &lead, nil
}

// Update patches a lead. The fetch-then-authorize-then-write order is
// mandatory: authorization runs against the currently stored owner, never a
// client-supplied one.
func (s *Service) Update(ctx context.Context, id string, req UpdateLeadRequest) (*Lead, error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.eval.CanEditLead(existing.AssignedTo) {
		s.auditDenied(ctx, "update", existing.ID)
		return nil, fmt.Errorf("lead %s: %w", id, shared.ErrPermissionDenied)
	}
	if err := validateUpdate(&req); err != nil {
		return nil, err
	}

	updates := make(map[string]any)
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Phone != nil {
		updates["phone"] = *req.Phone
	}
	if req.Email != nil {
		updates["email"] = *req.Email
	}
	if req.Company != nil {
		updates["company"] = *req.Company
	}
	if req.State != nil {
		updates["state"] = *req.State
	}
	if req.Status != nil {
		updates["status"] = string(*req.Status)
	}
	if req.Source != nil {
		updates["source"] = *req.Source
	}
	if req.Value != nil {
		updates["value"] = *req.Value
	}
	if req.Notes != nil {
		updates["notes"] = *req.Notes
	}
	if req.Consent != nil {
		updates["consent"] = *req.Consent
		if *req.Consent && existing.ConsentAt == nil {
			updates["consent_at"] = time.Now().UTC()
		}
	}
	if req.NextFollowUp != nil {
		updates["next_follow_up"] = *req.NextFollowUp
	}

	if len(updates) == 0 {
		return existing, nil
	}

	updated, err := s.repo.Update(ctx, id, updates)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, ChangeEvent{Kind: ChangeUpdate, Lead: *updated, OccurredAt: time.Now().UTC()})
	return updated, nil
}

// Delete removes a lead. The capability is global rather than row-scoped:
// deletion is owner-blind and only admins hold it.
func (s *Service) Delete(ctx context.Context, id string) error {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !s.eval.CanDelete() {
		s.auditDenied(ctx, "delete", existing.ID)
		return fmt.Errorf("lead %s: %w", id, shared.ErrPermissionDenied)
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.publish(ctx, ChangeEvent{
		Kind:           ChangeDelete,
		Lead:           *existing,
		PrevAssignedTo: existing.AssignedTo,
		OccurredAt:     time.Now().UTC(),
	})
	return nil
}

// Assign moves ownership of a lead. This is the only path that may change
// assigned_to and it is gated on edit-all, independently of CanEditLead, so
// agents can never reassign leads to themselves or anyone else.
func (s *Service) Assign(ctx context.Context, id, newOwnerID string) (*Lead, error) {
	if !s.eval.CanEditAll() {
		s.auditDenied(ctx, "assign", id)
		return nil, fmt.Errorf("lead %s: %w", id, shared.ErrPermissionDenied)
	}
	if newOwnerID == "" {
		return nil, fmt.Errorf("assign lead: owner id required: %w", shared.ErrValidation)
	}

	// The read of the current owner and the reassignment run in one
	// transaction so a concurrent assign cannot slip between them and
	// leave the relayed prev-owner stale.
	var existing, updated *Lead
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		var err error
		existing, err = repo.Get(ctx, id)
		if err != nil {
			return err
		}
		if !s.eval.CanAccessLead(existing.AssignedTo) {
			s.auditDenied(ctx, "assign", existing.ID)
			return fmt.Errorf("lead %s: %w", id, shared.ErrPermissionDenied)
		}
		updated, err = repo.Update(ctx, id, map[string]any{"assigned_to": newOwnerID})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, ChangeEvent{
		Kind:           ChangeUpdate,
		Lead:           *updated,
		PrevAssignedTo: existing.AssignedTo,
		OccurredAt:     time.Now().UTC(),
	})
	return updated, nil
}

// Stats reduces the actor's visible leads into per-status counts. It runs
// through List with no caller filters, so the counts can never include a
// lead the actor may not see.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	rows, _, err := s.List(ctx, ListLeadsRequest{})
	if err != nil {
		return nil, err
	}

	stats := Stats{Total: len(rows)}
	for _, lead := range rows {
		switch lead.Status {
		case StatusNew:
			stats.New++
		case StatusContacted:
			stats.Contacted++
		case StatusQualified:
			stats.Qualified++
		case StatusLost:
			stats.Lost++
		case StatusConverted:
			stats.Converted++
		case StatusFollowup:
			stats.Followup++
		}
	}
	return &stats, nil
}

func (s *Service) publish(ctx context.Context, evt ChangeEvent) {
	if s.publisher == nil {
		return
	}
	s.publisher.PublishChange(ctx, evt)
}

func (s *Service) auditDenied(ctx context.Context, op, leadID string) {
	actor := s.eval.Actor()
	s.logger.Warn("lead access denied",
		slog.String("op", op),
		slog.String("lead_id", leadID),
		slog.String("actor_id", actor.ID),
		slog.String("actor_role", string(actor.Role)))
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.ID,
		Action:   "lead." + op + ".denied",
		Entity:   "lead",
		EntityID: leadID,
		Meta:     map[string]any{"role": string(actor.Role)},
	}); err != nil {
		s.logger.Warn("audit record", slog.Any("error", err))
	}
}
