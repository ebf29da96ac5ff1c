// Package service contains the application services behind the module API.
package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid/v5"

	"github.com/and161185/noodle/internal/errs"
	"github.com/and161185/noodle/internal/model"
	"github.com/and161185/noodle/internal/repository"
)

// ModuleService defines the owner-scoped module operations. Every method takes the
// caller's user id, already verified by the transport layer.
type ModuleService interface {
	// GetByID returns a module owned by the caller.
	GetByID(ctx context.Context, userID string, in model.ModuleIDInput) (*model.Module, error)
	// ListUserModules returns one page of the caller's modules, most recently visited first.
	ListUserModules(ctx context.Context, userID string, in model.ListModulesInput) (model.Page, error)
	// Create inserts a new module owned by the caller.
	Create(ctx context.Context, userID string, in model.CreateModuleInput) (*model.Module, error)
	// Update applies field changes to an owned module.
	Update(ctx context.Context, userID string, in model.UpdateModuleInput) (*model.Module, error)
	// Archive marks an owned module archived.
	Archive(ctx context.Context, userID string, in model.ModuleIDInput) error
	// Recover clears the archived flag of an owned module.
	Recover(ctx context.Context, userID string, in model.ModuleIDInput) error
	// UpdateLastVisited moves the module's last-visited time to now.
	UpdateLastVisited(ctx context.Context, userID string, in model.ModuleIDInput) error
	// Validate checks an operation input without touching the store.
	Validate(in any) error
}

type ModuleServiceImpl struct {
	repo     repository.ModuleRepository
	validate *validator.Validate
	now      func() time.Time
}

// Option customizes ModuleServiceImpl.
type Option func(*ModuleServiceImpl)

// WithClock overrides the time source used for module timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *ModuleServiceImpl) { s.now = now }
}

// NewModuleService constructs ModuleService over a repository.
func NewModuleService(repo repository.ModuleRepository, opts ...Option) *ModuleServiceImpl {
	s := &ModuleServiceImpl{repo: repo, validate: newValidator(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// timestamp is truncated to the store's microsecond resolution so values read back
// compare equal to values written.
func (s *ModuleServiceImpl) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

// GetByID fetches a single owned module.
func (s *ModuleServiceImpl) GetByID(ctx context.Context, userID string, in model.ModuleIDInput) (*model.Module, error) {
	id, err := s.moduleID(userID, in)
	if err != nil {
		return nil, err
	}
	m, err := s.repo.GetByID(ctx, userID, id)
	if err != nil {
		return nil, storeErr("get module", err)
	}
	return m, nil
}

// ListUserModules resolves the cursor to its keyset anchor, then fetches one row
// more than requested to learn whether another page exists.
func (s *ModuleServiceImpl) ListUserModules(ctx context.Context, userID string, in model.ListModulesInput) (model.Page, error) {
	if err := requireUser(userID); err != nil {
		return model.Page{}, err
	}
	if err := s.check(in); err != nil {
		return model.Page{}, err
	}
	limit := in.Limit
	if limit == 0 {
		limit = model.DefaultPageSize
	}

	f := model.ListFilter{Archived: in.Archived, Limit: limit + 1}
	if in.Cursor != nil {
		cursorID := uuid.FromStringOrNil(*in.Cursor)
		anchor, err := s.repo.GetAnchor(ctx, userID, cursorID)
		if err != nil {
			if errors.Is(err, errs.ErrNotFound) {
				return model.Page{}, errs.Validation("invalid cursor",
					map[string]string{"cursor": "does not reference a module"})
			}
			return model.Page{}, storeErr("resolve cursor", err)
		}
		f.After = &anchor
	}

	rows, err := s.repo.ListByUser(ctx, userID, f)
	if err != nil {
		return model.Page{}, storeErr("list modules", err)
	}

	page := model.Page{Items: rows}
	if len(rows) > limit {
		page.Items = rows[:limit]
		page.NextCursor = page.Items[limit-1].ID.String()
	}
	if page.Items == nil {
		page.Items = []model.Module{}
	}
	return page, nil
}

// Create validates input, fills defaults and stores a new module.
func (s *ModuleServiceImpl) Create(ctx context.Context, userID string, in model.CreateModuleInput) (*model.Module, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	in = normalizeCreate(in)
	if err := s.check(in); err != nil {
		return nil, err
	}

	id, err := uuid.NewV4()
	if err != nil {
		return nil, errs.Internal("generate module id", err)
	}
	now := s.timestamp()
	m := &model.Module{
		ID:          id,
		UserID:      userID,
		Name:        in.Name,
		Description: deref(in.Description),
		Code:        in.Code,
		Icon:        tokenOrDefault(in.Icon),
		Color:       tokenOrDefault(in.Color),
		Credits:     deref(in.Credits),
		CreatedAt:   now,
		ModifiedAt:  now,
		LastVisited: now,
	}
	if err := s.repo.Create(ctx, m); err != nil {
		return nil, storeErr("create module", err)
	}
	return m, nil
}

// Update applies the provided fields. Validation runs before the store is touched.
func (s *ModuleServiceImpl) Update(ctx context.Context, userID string, in model.UpdateModuleInput) (*model.Module, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	in = normalizeUpdate(in)
	if err := s.check(in); err != nil {
		return nil, err
	}
	patch := updatePatch(in)
	if patch.Empty() {
		return nil, errs.Validation("nothing to update", nil)
	}

	m, err := s.repo.Update(ctx, userID, uuid.FromStringOrNil(in.ID), patch, s.timestamp())
	if err != nil {
		return nil, storeErr("update module", err)
	}
	return m, nil
}

// Archive sets the archived flag; archiving an archived module is a no-op.
func (s *ModuleServiceImpl) Archive(ctx context.Context, userID string, in model.ModuleIDInput) error {
	return s.setArchived(ctx, userID, in, true)
}

// Recover clears the archived flag; recovering an active module is a no-op.
func (s *ModuleServiceImpl) Recover(ctx context.Context, userID string, in model.ModuleIDInput) error {
	return s.setArchived(ctx, userID, in, false)
}

func (s *ModuleServiceImpl) setArchived(ctx context.Context, userID string, in model.ModuleIDInput, archived bool) error {
	id, err := s.moduleID(userID, in)
	if err != nil {
		return err
	}
	if err := s.repo.SetArchived(ctx, userID, id, archived); err != nil {
		return storeErr("set archived", err)
	}
	return nil
}

// UpdateLastVisited records a visit.
func (s *ModuleServiceImpl) UpdateLastVisited(ctx context.Context, userID string, in model.ModuleIDInput) error {
	id, err := s.moduleID(userID, in)
	if err != nil {
		return err
	}
	if err := s.repo.TouchLastVisited(ctx, userID, id, s.timestamp()); err != nil {
		return storeErr("update last visited", err)
	}
	return nil
}

// Validate runs the checks the matching operation runs before reaching the store,
// so callers can reject bad input before spending any other resource on it.
func (s *ModuleServiceImpl) Validate(in any) error {
	switch v := in.(type) {
	case model.CreateModuleInput:
		return s.check(normalizeCreate(v))
	case model.UpdateModuleInput:
		v = normalizeUpdate(v)
		if err := s.check(v); err != nil {
			return err
		}
		if updatePatch(v).Empty() {
			return errs.Validation("nothing to update", nil)
		}
		return nil
	default:
		return s.check(in)
	}
}

func normalizeCreate(in model.CreateModuleInput) model.CreateModuleInput {
	in.Name = strings.TrimSpace(in.Name)
	in.Code = strings.TrimSpace(in.Code)
	return in
}

func normalizeUpdate(in model.UpdateModuleInput) model.UpdateModuleInput {
	in.Name = trimPtr(in.Name)
	in.Code = trimPtr(in.Code)
	return in
}

func updatePatch(in model.UpdateModuleInput) model.ModulePatch {
	patch := model.ModulePatch{
		Name:        in.Name,
		Description: in.Description,
		Code:        in.Code,
		Credits:     in.Credits,
	}
	if in.Icon != nil {
		v := tokenOrDefault(in.Icon)
		patch.Icon = &v
	}
	if in.Color != nil {
		v := tokenOrDefault(in.Color)
		patch.Color = &v
	}
	return patch
}

func (s *ModuleServiceImpl) moduleID(userID string, in model.ModuleIDInput) (uuid.UUID, error) {
	if err := requireUser(userID); err != nil {
		return uuid.Nil, err
	}
	if err := s.check(in); err != nil {
		return uuid.Nil, err
	}
	return uuid.FromStringOrNil(in.ID), nil
}

func requireUser(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return errs.Unauthorized("missing caller identity")
	}
	return nil
}

// storeErr maps repository failures onto the taxonomy. Not-found keeps one message
// for absent and foreign modules alike.
func storeErr(op string, err error) error {
	if errors.Is(err, errs.ErrNotFound) {
		return errs.NotFound("module not found")
	}
	return errs.Classify(err, op)
}

func tokenOrDefault(v *string) string {
	if v == nil || strings.TrimSpace(*v) == "" {
		return model.DefaultToken
	}
	return strings.TrimSpace(*v)
}

func trimPtr(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	return &t
}

func deref[T any](v *T) T {
	var zero T
	if v == nil {
		return zero
	}
	return *v
}
