package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-crm/meridian-crm/internal/rbac"
	"github.com/meridian-crm/meridian-crm/internal/shared"
)

// Repository defines persistence for user accounts.
type Repository interface {
	Get(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context, req ListUsersRequest) ([]User, int, error)
	Create(ctx context.Context, user User) error
	Update(ctx context.Context, id string, updates map[string]any) (*User, error)
	SetActive(ctx context.Context, id string, active bool) error
	SetTeam(ctx context.Context, id string, teamID *string) error
	SetPermissions(ctx context.Context, id string, perms []rbac.Capability) error
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL backed user repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const userColumns = `id, email, first_name, last_name, role, team_id, permissions,
	is_active, password_hash, created_at, updated_at`

func (r *repository) Get(ctx context.Context, id string) (*User, error) {
	row := r.pool.QueryRow(ctx, fmt.Sprintf(`SELECT %s FROM users WHERE id = $1`, userColumns), id)
	return scanUser(row, "user "+id)
}

func (r *repository) GetByEmail(ctx context.Context, email string) (*User, error) {
	row := r.pool.QueryRow(ctx, fmt.Sprintf(`SELECT %s FROM users WHERE LOWER(email) = LOWER($1)`, userColumns), email)
	return scanUser(row, "user "+email)
}

func (r *repository) List(ctx context.Context, req ListUsersRequest) ([]User, int, error) {
	var conditions []string
	var args []any
	argPos := 1

	if req.Role != nil {
		conditions = append(conditions, fmt.Sprintf("role = $%d", argPos))
		args = append(args, *req.Role)
		argPos++
	}
	if req.TeamID != nil {
		conditions = append(conditions, fmt.Sprintf("team_id = $%d", argPos))
		args = append(args, *req.TeamID)
		argPos++
	}
	if req.IsActive != nil {
		conditions = append(conditions, fmt.Sprintf("is_active = $%d", argPos))
		args = append(args, *req.IsActive)
		argPos++
	}
	if req.Search != nil && *req.Search != "" {
		pattern := "%" + *req.Search + "%"
		conditions = append(conditions, fmt.Sprintf("(first_name ILIKE $%d OR last_name ILIKE $%d OR email ILIKE $%d)", argPos, argPos, argPos))
		args = append(args, pattern)
		argPos++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM users %s", whereClause), args...).Scan(&total); err != nil {
		return nil, 0, storeError("count users", err)
	}

	query := fmt.Sprintf("SELECT %s FROM users %s ORDER BY created_at DESC", userColumns, whereClause)
	if req.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argPos, argPos+1)
		args = append(args, req.Limit, req.Offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, storeError("list users", err)
	}
	defer rows.Close()

	var result []User
	for rows.Next() {
		user, err := scanUser(rows, "user")
		if err != nil {
			return nil, 0, err
		}
		result = append(result, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, storeError("list users", err)
	}
	return result, total, nil
}

func (r *repository) Create(ctx context.Context, user User) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO users (id, email, first_name, last_name, role, team_id,
			permissions, is_active, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		user.ID, user.Email, user.FirstName, user.LastName, string(user.Role),
		user.TeamID, capabilityStrings(user.Permissions), user.IsActive,
		user.PasswordHash, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		return storeError("create user", err)
	}
	return nil
}

var updatableUserColumns = map[string]struct{}{
	"email": {}, "first_name": {}, "last_name": {}, "role": {},
}

func (r *repository) Update(ctx context.Context, id string, updates map[string]any) (*User, error) {
	if len(updates) == 0 {
		return r.Get(ctx, id)
	}

	setClauses := make([]string, 0, len(updates)+1)
	args := make([]any, 0, len(updates)+1)
	argPos := 1
	for col, val := range updates {
		if _, ok := updatableUserColumns[col]; !ok {
			return nil, fmt.Errorf("users: column %q not updatable: %w", col, shared.ErrValidation)
		}
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", col, argPos))
		args = append(args, val)
		argPos++
	}
	setClauses = append(setClauses, "updated_at = NOW()")
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE users SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(setClauses, ", "), argPos, userColumns)
	return scanUser(r.pool.QueryRow(ctx, query, args...), "user "+id)
}

func (r *repository) SetActive(ctx context.Context, id string, active bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET is_active = $1, updated_at = NOW() WHERE id = $2`, active, id)
	if err != nil {
		return storeError("set user active", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user %s: %w", id, shared.ErrNotFound)
	}
	return nil
}

func (r *repository) SetTeam(ctx context.Context, id string, teamID *string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET team_id = $1, updated_at = NOW() WHERE id = $2`, teamID, id)
	if err != nil {
		return storeError("set user team", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user %s: %w", id, shared.ErrNotFound)
	}
	return nil
}

func (r *repository) SetPermissions(ctx context.Context, id string, perms []rbac.Capability) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET permissions = $1, updated_at = NOW() WHERE id = $2`,
		capabilityStrings(perms), id)
	if err != nil {
		return storeError("set user permissions", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user %s: %w", id, shared.ErrNotFound)
	}
	return nil
}

func scanUser(row pgx.Row, what string) (*User, error) {
	var u User
	var teamID pgtype.Text
	var perms []string
	var role string

	err := row.Scan(
		&u.ID, &u.Email, &u.FirstName, &u.LastName, &role, &teamID, &perms,
		&u.IsActive, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", what, shared.ErrNotFound)
		}
		return nil, storeError("scan user", err)
	}

	parsed, err := rbac.ParseRole(role)
	if err != nil {
		// Fail closed rather than reject the row outright: an unknown role
		// in storage collapses to agent-level access.
		parsed = rbac.RoleAgent
	}
	u.Role = parsed

	if teamID.Valid {
		u.TeamID = &teamID.String
	}
	u.Permissions = make([]rbac.Capability, 0, len(perms))
	for _, p := range perms {
		if c, err := rbac.ParseCapability(p); err == nil {
			u.Permissions = append(u.Permissions, c)
		}
	}
	return &u, nil
}

func capabilityStrings(caps []rbac.Capability) []string {
	out := make([]string, len(caps))
	for i, c := range caps {
		out[i] = string(c)
	}
	return out
}

func storeError(op string, err error) error {
	return fmt.Errorf("users: %s: %w: %v", op, shared.ErrStoreUnavailable, err)
}
