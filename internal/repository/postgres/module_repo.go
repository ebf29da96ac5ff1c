package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/and161185/noodle/internal/errs"
	"github.com/and161185/noodle/internal/model"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
)

const moduleColumns = `id, user_id, name, COALESCE(description, ''), code, icon, color, archived, credits, created_at, modified_at, last_visited`

// ModuleRepo implements ModuleRepository using PostgreSQL.
type ModuleRepo struct{ db *DB }

// NewModuleRepo constructs a module repository.
func NewModuleRepo(db *DB) *ModuleRepo { return &ModuleRepo{db: db} }

func scanModule(row pgx.Row) (model.Module, error) {
	var m model.Module
	err := row.Scan(&m.ID, &m.UserID, &m.Name, &m.Description, &m.Code, &m.Icon, &m.Color,
		&m.Archived, &m.Credits, &m.CreatedAt, &m.ModifiedAt, &m.LastVisited)
	return m, err
}

// Create inserts a new module row.
func (r *ModuleRepo) Create(ctx context.Context, m *model.Module) error {
	const q = `
INSERT INTO modules (id, user_id, name, description, code, icon, color, archived, credits, created_at, modified_at, last_visited)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`
	_, err := r.db.Pool.Exec(ctx, q, m.ID, m.UserID, m.Name, m.Description, m.Code, m.Icon, m.Color,
		m.Archived, m.Credits, m.CreatedAt, m.ModifiedAt, m.LastVisited)
	if isUniqueViolation(err) {
		return errs.ErrConflict
	}
	return err
}

// GetByID selects a module by owner and id.
func (r *ModuleRepo) GetByID(ctx context.Context, userID string, id uuid.UUID) (*model.Module, error) {
	const q = `SELECT ` + moduleColumns + `
FROM modules WHERE user_id=$1 AND id=$2`
	m, err := scanModule(r.db.Pool.QueryRow(ctx, q, userID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

// GetAnchor returns the (last_visited, id) pair of an owned module.
func (r *ModuleRepo) GetAnchor(ctx context.Context, userID string, id uuid.UUID) (model.Anchor, error) {
	const q = `SELECT last_visited, id FROM modules WHERE user_id=$1 AND id=$2`
	var a model.Anchor
	if err := r.db.Pool.QueryRow(ctx, q, userID, id).Scan(&a.LastVisited, &a.ID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Anchor{}, errs.ErrNotFound
		}
		return model.Anchor{}, err
	}
	return a, nil
}

// ListByUser returns one keyset page of the owner's modules. The id column breaks
// ties between equal last_visited values so pages never overlap or skip rows.
func (r *ModuleRepo) ListByUser(ctx context.Context, userID string, f model.ListFilter) ([]model.Module, error) {
	const first = `SELECT ` + moduleColumns + `
FROM modules
WHERE user_id=$1 AND ($2::boolean IS NULL OR archived=$2)
ORDER BY last_visited DESC, id DESC
LIMIT $3`
	const after = `SELECT ` + moduleColumns + `
FROM modules
WHERE user_id=$1 AND ($2::boolean IS NULL OR archived=$2) AND (last_visited, id) < ($3, $4)
ORDER BY last_visited DESC, id DESC
LIMIT $5`

	var (
		rows pgx.Rows
		err  error
	)
	if f.After != nil {
		rows, err = r.db.Pool.Query(ctx, after, userID, f.Archived, f.After.LastVisited, f.After.ID, f.Limit)
	} else {
		rows, err = r.db.Pool.Query(ctx, first, userID, f.Archived, f.Limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.Module, 0, f.Limit)
	for rows.Next() {
		m, err := scanModule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Update applies non-nil patch fields. modified_at never moves backward.
func (r *ModuleRepo) Update(
	ctx context.Context, userID string, id uuid.UUID, p model.ModulePatch, now time.Time,
) (*model.Module, error) {
	const q = `
UPDATE modules SET
  name = COALESCE($3, name),
  description = COALESCE($4, description),
  code = COALESCE($5, code),
  icon = COALESCE($6, icon),
  color = COALESCE($7, color),
  credits = COALESCE($8, credits),
  modified_at = GREATEST(modified_at, $9)
WHERE user_id=$1 AND id=$2
RETURNING ` + moduleColumns
	m, err := scanModule(r.db.Pool.QueryRow(ctx, q, userID, id,
		p.Name, p.Description, p.Code, p.Icon, p.Color, p.Credits, now))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

// SetArchived flips the archived flag. Zero matched rows means not found.
func (r *ModuleRepo) SetArchived(ctx context.Context, userID string, id uuid.UUID, archived bool) error {
	const q = `UPDATE modules SET archived=$3 WHERE user_id=$1 AND id=$2`
	tag, err := r.db.Pool.Exec(ctx, q, userID, id, archived)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// TouchLastVisited moves last_visited forward to now.
func (r *ModuleRepo) TouchLastVisited(ctx context.Context, userID string, id uuid.UUID, now time.Time) error {
	const q = `UPDATE modules SET last_visited = GREATEST(last_visited, $3) WHERE user_id=$1 AND id=$2`
	tag, err := r.db.Pool.Exec(ctx, q, userID, id, now)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}
