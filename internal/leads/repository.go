package leads

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-crm/meridian-crm/internal/platform/db"
	"github.com/meridian-crm/meridian-crm/internal/rbac"
	"github.com/meridian-crm/meridian-crm/internal/shared"
)

// Repository is the row-store surface the lead engine depends on. The
// permission filter arrives as an explicit argument so the store layer can
// apply it as an additional AND constraint; it is never derived from caller
// input.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	Get(ctx context.Context, id string) (*Lead, error)
	List(ctx context.Context, req ListLeadsRequest, filter rbac.LeadFilter) ([]Lead, int, error)
	Create(ctx context.Context, lead Lead) error
	Update(ctx context.Context, id string, updates map[string]any) (*Lead, error)
	Delete(ctx context.Context, id string) error
}

type dbtx interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

type repository struct {
	db   dbtx
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL backed lead repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool, pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &repository{db: tx, pool: r.pool})
	})
}

const leadColumns = `id, name, phone, email, company, state, status, source, value,
	notes, consent, consent_at, next_follow_up, assigned_to, created_by,
	created_at, updated_at`

func (r *repository) Get(ctx context.Context, id string) (*Lead, error) {
	row := r.db.QueryRow(ctx, fmt.Sprintf(`SELECT %s FROM leads WHERE id = $1`, leadColumns), id)
	lead, err := scanLead(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("lead %s: %w", id, shared.ErrNotFound)
		}
		return nil, storeError("get lead", err)
	}
	return lead, nil
}

func (r *repository) List(ctx context.Context, req ListLeadsRequest, filter rbac.LeadFilter) ([]Lead, int, error) {
	// Deny-all never reaches the store.
	if filter.Scope == rbac.ScopeNone {
		return nil, 0, nil
	}

	var conditions []string
	var args []any
	argPos := 1

	// The derived permission filter is ANDed first and cannot be widened
	// by any caller-supplied condition below.
	if filter.Scope == rbac.ScopeOwner {
		conditions = append(conditions, fmt.Sprintf("assigned_to = $%d", argPos))
		args = append(args, filter.OwnerID)
		argPos++
	}

	if req.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argPos))
		args = append(args, string(*req.Status))
		argPos++
	}
	if req.AssignedTo != nil {
		conditions = append(conditions, fmt.Sprintf("assigned_to = $%d", argPos))
		args = append(args, *req.AssignedTo)
		argPos++
	}
	if req.Company != nil {
		conditions = append(conditions, fmt.Sprintf("company = $%d", argPos))
		args = append(args, *req.Company)
		argPos++
	}
	if req.State != nil {
		conditions = append(conditions, fmt.Sprintf("state = $%d", argPos))
		args = append(args, *req.State)
		argPos++
	}
	if req.Consent != nil {
		conditions = append(conditions, fmt.Sprintf("consent = $%d", argPos))
		args = append(args, *req.Consent)
		argPos++
	}
	if req.Search != nil && *req.Search != "" {
		pattern := "%" + *req.Search + "%"
		conditions = append(conditions, fmt.Sprintf("(name ILIKE $%d OR email ILIKE $%d OR phone ILIKE $%d)", argPos, argPos, argPos))
		args = append(args, pattern)
		argPos++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM leads %s", whereClause)
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, storeError("count leads", err)
	}

	query := fmt.Sprintf("SELECT %s FROM leads %s ORDER BY created_at DESC", leadColumns, whereClause)
	if req.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argPos, argPos+1)
		args = append(args, req.Limit, req.Offset)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, storeError("list leads", err)
	}
	defer rows.Close()

	var leads []Lead
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, 0, storeError("scan lead", err)
		}
		leads = append(leads, *lead)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, storeError("list leads", err)
	}
	return leads, total, nil
}

func (r *repository) Create(ctx context.Context, lead Lead) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO leads (id, name, phone, email, company, state, status, source,
			value, notes, consent, consent_at, next_follow_up, assigned_to,
			created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`,
		lead.ID, lead.Name, lead.Phone, lead.Email, lead.Company, lead.State,
		string(lead.Status), lead.Source, lead.Value, lead.Notes, lead.Consent,
		lead.ConsentAt, lead.NextFollowUp, lead.AssignedTo, lead.CreatedBy,
		lead.CreatedAt, lead.UpdatedAt,
	)
	if err != nil {
		return storeError("create lead", err)
	}
	return nil
}

// updatableColumns pins the patchable column set. The service layer keeps
// assigned_to out of patch payloads; only Assign writes it.
var updatableColumns = map[string]struct{}{
	"name": {}, "phone": {}, "email": {}, "company": {}, "state": {},
	"status": {}, "source": {}, "value": {}, "notes": {}, "consent": {},
	"consent_at": {}, "next_follow_up": {}, "assigned_to": {},
}

func (r *repository) Update(ctx context.Context, id string, updates map[string]any) (*Lead, error) {
	if len(updates) == 0 {
		return r.Get(ctx, id)
	}

	setClauses := make([]string, 0, len(updates)+1)
	args := make([]any, 0, len(updates)+2)
	argPos := 1
	for col, val := range updates {
		if _, ok := updatableColumns[col]; !ok {
			return nil, fmt.Errorf("leads: column %q not updatable: %w", col, shared.ErrValidation)
		}
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", col, argPos))
		args = append(args, val)
		argPos++
	}
	setClauses = append(setClauses, "updated_at = NOW()")
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE leads SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(setClauses, ", "), argPos, leadColumns)

	row := r.db.QueryRow(ctx, query, args...)
	lead, err := scanLead(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("lead %s: %w", id, shared.ErrNotFound)
		}
		return nil, storeError("update lead", err)
	}
	return lead, nil
}

func (r *repository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM leads WHERE id = $1`, id)
	if err != nil {
		return storeError("delete lead", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("lead %s: %w", id, shared.ErrNotFound)
	}
	return nil
}

func scanLead(row pgx.Row) (*Lead, error) {
	var l Lead
	var email, company, state, source, notes pgtype.Text
	var value pgtype.Float8
	var consentAt, nextFollowUp pgtype.Timestamptz

	err := row.Scan(
		&l.ID, &l.Name, &l.Phone, &email, &company, &state, &l.Status, &source,
		&value, &notes, &l.Consent, &consentAt, &nextFollowUp, &l.AssignedTo,
		&l.CreatedBy, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if email.Valid {
		l.Email = &email.String
	}
	if company.Valid {
		l.Company = &company.String
	}
	if state.Valid {
		l.State = &state.String
	}
	if source.Valid {
		l.Source = &source.String
	}
	if notes.Valid {
		l.Notes = &notes.String
	}
	if value.Valid {
		l.Value = &value.Float64
	}
	if consentAt.Valid {
		l.ConsentAt = &consentAt.Time
	}
	if nextFollowUp.Valid {
		l.NextFollowUp = &nextFollowUp.Time
	}
	return &l, nil
}

// storeError wraps persistence failures so callers can match on
// ErrStoreUnavailable. Context cancellation lands here too: a cancelled
// write must never be reported as success.
func storeError(op string, err error) error {
	return fmt.Errorf("leads: %s: %w: %v", op, shared.ErrStoreUnavailable, err)
}
