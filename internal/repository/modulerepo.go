// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"
	"time"

	"github.com/and161185/noodle/internal/model"
	"github.com/gofrs/uuid/v5"
)

// ModuleRepository provides owner-scoped access to modules. Every method takes the
// owner explicitly; rows owned by someone else behave exactly like missing rows.
type ModuleRepository interface {
	// Create inserts a fully populated module.
	Create(ctx context.Context, m *model.Module) error

	// GetByID loads a module owned by userID.
	GetByID(ctx context.Context, userID string, id uuid.UUID) (*model.Module, error)

	// GetAnchor resolves the keyset position of a module owned by userID.
	GetAnchor(ctx context.Context, userID string, id uuid.UUID) (model.Anchor, error)

	// ListByUser returns up to f.Limit modules ordered by last_visited DESC, id DESC.
	ListByUser(ctx context.Context, userID string, f model.ListFilter) ([]model.Module, error)

	// Update applies a patch and advances modified_at to at least now.
	Update(ctx context.Context, userID string, id uuid.UUID, p model.ModulePatch, now time.Time) (*model.Module, error)

	// SetArchived sets or clears the archived flag.
	SetArchived(ctx context.Context, userID string, id uuid.UUID, archived bool) error

	// TouchLastVisited advances last_visited to at least now.
	TouchLastVisited(ctx context.Context, userID string, id uuid.UUID, now time.Time) error
}
