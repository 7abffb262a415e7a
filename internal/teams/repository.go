package teams

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-crm/meridian-crm/internal/shared"
)

// Repository is the persistence boundary for team records.
type Repository interface {
	Get(ctx context.Context, id string) (*Team, error)
	List(ctx context.Context, req ListTeamsRequest) ([]Team, int, error)
	Create(ctx context.Context, team Team) error
	Update(ctx context.Context, id string, updates map[string]any) (*Team, error)
	Delete(ctx context.Context, id string) error
	Members(ctx context.Context, teamID string) ([]Member, error)
}

// Member is the slim projection of a user account shown on a team page.
type Member struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      string `json:"role"`
	IsActive  bool   `json:"is_active"`
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const teamColumns = `id, name, description, manager_id, is_active, created_at, updated_at`

func (r *repository) Get(ctx context.Context, id string) (*Team, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+teamColumns+` FROM teams WHERE id = $1`, id)
	team, err := scanTeam(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("team %s: %w", id, shared.ErrNotFound)
	}
	if err != nil {
		return nil, storeError("get team", err)
	}
	return team, nil
}

func (r *repository) List(ctx context.Context, req ListTeamsRequest) ([]Team, int, error) {
	where := make([]string, 0, 1)
	args := make([]any, 0, 1)
	if req.IsActive != nil {
		args = append(args, *req.IsActive)
		where = append(where, fmt.Sprintf("is_active = $%d", len(args)))
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM teams`+clause, args...).Scan(&total); err != nil {
		return nil, 0, storeError("count teams", err)
	}

	query := `SELECT ` + teamColumns + ` FROM teams` + clause + ` ORDER BY name ASC`
	if req.Limit > 0 {
		args = append(args, req.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if req.Offset > 0 {
		args = append(args, req.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, storeError("list teams", err)
	}
	defer rows.Close()

	teams := make([]Team, 0)
	for rows.Next() {
		team, err := scanTeam(rows)
		if err != nil {
			return nil, 0, storeError("scan team", err)
		}
		teams = append(teams, *team)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, storeError("list teams", err)
	}
	return teams, total, nil
}

func (r *repository) Create(ctx context.Context, team Team) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO teams (id, name, description, manager_id, is_active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		team.ID, team.Name, team.Description, team.ManagerID, team.IsActive, team.CreatedAt, team.UpdatedAt)
	if err != nil {
		return storeError("create team", err)
	}
	return nil
}

var updatableTeamColumns = map[string]struct{}{
	"name":        {},
	"description": {},
	"manager_id":  {},
	"is_active":   {},
}

func (r *repository) Update(ctx context.Context, id string, updates map[string]any) (*Team, error) {
	if len(updates) == 0 {
		return r.Get(ctx, id)
	}

	set := make([]string, 0, len(updates)+1)
	args := make([]any, 0, len(updates)+2)
	for col, val := range updates {
		if _, ok := updatableTeamColumns[col]; !ok {
			return nil, fmt.Errorf("column %q is not updatable: %w", col, shared.ErrValidation)
		}
		args = append(args, val)
		set = append(set, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	set = append(set, "updated_at = NOW()")
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE teams SET %s WHERE id = $%d RETURNING `+teamColumns,
		strings.Join(set, ", "), len(args))
	row := r.pool.QueryRow(ctx, query, args...)
	team, err := scanTeam(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("team %s: %w", id, shared.ErrNotFound)
	}
	if err != nil {
		return nil, storeError("update team", err)
	}
	return team, nil
}

func (r *repository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM teams WHERE id = $1`, id)
	if err != nil {
		return storeError("delete team", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("team %s: %w", id, shared.ErrNotFound)
	}
	return nil
}

func (r *repository) Members(ctx context.Context, teamID string) ([]Member, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, email, first_name, last_name, role, is_active
		 FROM users WHERE team_id = $1 ORDER BY last_name, first_name`, teamID)
	if err != nil {
		return nil, storeError("list members", err)
	}
	defer rows.Close()

	members := make([]Member, 0)
	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.ID, &m.Email, &m.FirstName, &m.LastName, &m.Role, &m.IsActive); err != nil {
			return nil, storeError("scan member", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("list members", err)
	}
	return members, nil
}

func scanTeam(row pgx.Row) (*Team, error) {
	var (
		team        Team
		description pgtype.Text
		managerID   pgtype.Text
	)
	err := row.Scan(&team.ID, &team.Name, &description, &managerID,
		&team.IsActive, &team.CreatedAt, &team.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if description.Valid {
		team.Description = &description.String
	}
	if managerID.Valid {
		team.ManagerID = &managerID.String
	}
	return &team, nil
}

func storeError(op string, err error) error {
	return fmt.Errorf("teams: %s: %w: %v", op, shared.ErrStoreUnavailable, err)
}
