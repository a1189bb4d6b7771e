package persistence

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/iota-uz/orgsync/modules/organization/domain/aggregates/orgunit"
)

// MemoryOrgUnitRepository keeps the tree in an ID-indexed arena. It backs tests and
// offline previews; all values crossing its boundary are copies.
type MemoryOrgUnitRepository struct {
	mu              sync.RWMutex
	units           map[uuid.UUID]*orgunit.Unit
	byTOOI          map[string]uuid.UUID
	classifications map[string]orgunit.Classification
	now             func() time.Time
}

func NewMemoryOrgUnitRepository() *MemoryOrgUnitRepository {
	return &MemoryOrgUnitRepository{
		units:           make(map[uuid.UUID]*orgunit.Unit),
		byTOOI:          make(map[string]uuid.UUID),
		classifications: make(map[string]orgunit.Classification),
		now:             time.Now,
	}
}

func (r *MemoryOrgUnitRepository) GetByID(_ context.Context, id uuid.UUID) (*orgunit.Unit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.units[id]
	if !ok || u.IsDeleted() {
		return nil, orgunit.ErrNotFound
	}
	return u.Clone(), nil
}

func (r *MemoryOrgUnitRepository) GetByIDWithDeleted(_ context.Context, id uuid.UUID) (*orgunit.Unit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.units[id]
	if !ok {
		return nil, orgunit.ErrNotFound
	}
	return u.Clone(), nil
}

func (r *MemoryOrgUnitRepository) FindByTOOI(_ context.Context, tooi string) (*orgunit.Unit, error) {
	if tooi == "" {
		return nil, orgunit.ErrNotFound
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byTOOI[tooi]
	if !ok {
		return nil, orgunit.ErrNotFound
	}
	return r.units[id].Clone(), nil
}

func (r *MemoryOrgUnitRepository) FindByNameAndParent(_ context.Context, name string, parentID *uuid.UUID) (*orgunit.Unit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var found *orgunit.Unit
	for _, u := range r.units {
		if u.IsDeleted() || !orgunit.SameParent(u.ParentID, parentID) || u.Name != name {
			continue
		}
		if found == nil || preferNameMatch(u, found) {
			found = u
		}
	}
	if found == nil {
		return nil, orgunit.ErrNotFound
	}
	return found.Clone(), nil
}

// preferNameMatch orders name matches: units without a TOOI first, then oldest.
func preferNameMatch(a, b *orgunit.Unit) bool {
	if (a.TOOI == "") != (b.TOOI == "") {
		return a.TOOI == ""
	}
	return a.CreatedAt.Before(b.CreatedAt)
}

func (r *MemoryOrgUnitRepository) List(_ context.Context, params *orgunit.FindParams) ([]*orgunit.Unit, error) {
	if params == nil {
		params = &orgunit.FindParams{}
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*orgunit.Unit, 0, len(r.units))
	for _, u := range r.units {
		if matches(u, params) {
			out = append(out, u.Clone())
		}
	}
	slices.SortFunc(out, func(a, b *orgunit.Unit) int {
		if c := strings.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return strings.Compare(a.ID.String(), b.ID.String())
	})
	return out, nil
}

func matches(u *orgunit.Unit, p *orgunit.FindParams) bool {
	if !p.IncludeDeleted && u.IsDeleted() {
		return false
	}
	if p.ActiveOnly && !u.IsActive {
		return false
	}
	if p.RootsOnly && u.ParentID != nil {
		return false
	}
	if len(p.ParentIDs) > 0 && (u.ParentID == nil || !slices.Contains(p.ParentIDs, *u.ParentID)) {
		return false
	}
	if p.SuccessorID != nil && (u.SuccessorID == nil || *u.SuccessorID != *p.SuccessorID) {
		return false
	}
	if len(p.Types) > 0 && !slices.Contains(p.Types, u.Type) {
		return false
	}
	return true
}

func (r *MemoryOrgUnitRepository) Ancestors(_ context.Context, id uuid.UUID) ([]*orgunit.Unit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.units[id]
	if !ok {
		return nil, orgunit.ErrNotFound
	}
	var out []*orgunit.Unit
	seen := map[uuid.UUID]struct{}{id: {}}
	for u.ParentID != nil {
		parent, ok := r.units[*u.ParentID]
		if !ok {
			break
		}
		if _, dup := seen[parent.ID]; dup {
			break
		}
		seen[parent.ID] = struct{}{}
		out = append(out, parent.Clone())
		u = parent
	}
	return out, nil
}

func (r *MemoryOrgUnitRepository) Create(_ context.Context, u *orgunit.Unit) (*orgunit.Unit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := u.Clone()
	if stored.ID == uuid.Nil {
		stored.ID = uuid.New()
	}
	if _, exists := r.units[stored.ID]; exists {
		return nil, errors.Errorf("organization unit %s already exists", stored.ID)
	}
	if err := r.checkRefs(stored); err != nil {
		return nil, err
	}
	if stored.TOOI != "" {
		if _, taken := r.byTOOI[stored.TOOI]; taken {
			return nil, orgunit.ErrDuplicateTOOI
		}
		r.byTOOI[stored.TOOI] = stored.ID
	}
	now := r.now()
	stored.CreatedAt = now
	stored.UpdatedAt = now
	r.units[stored.ID] = stored
	return stored.Clone(), nil
}

func (r *MemoryOrgUnitRepository) Update(_ context.Context, u *orgunit.Unit) (*orgunit.Unit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.units[u.ID]
	if !ok {
		return nil, orgunit.ErrNotFound
	}
	stored := u.Clone()
	if err := r.checkRefs(stored); err != nil {
		return nil, err
	}
	if stored.TOOI != existing.TOOI && stored.TOOI != "" {
		if owner, taken := r.byTOOI[stored.TOOI]; taken && owner != stored.ID {
			return nil, orgunit.ErrDuplicateTOOI
		}
	}
	if existing.TOOI != "" && existing.TOOI != stored.TOOI {
		delete(r.byTOOI, existing.TOOI)
	}
	if stored.TOOI != "" {
		r.byTOOI[stored.TOOI] = stored.ID
	}
	stored.CreatedAt = existing.CreatedAt
	stored.DeletedAt = existing.DeletedAt
	stored.UpdatedAt = r.now()
	r.units[stored.ID] = stored
	return stored.Clone(), nil
}

// checkRefs mirrors the foreign keys of the SQL schema.
func (r *MemoryOrgUnitRepository) checkRefs(u *orgunit.Unit) error {
	if u.ParentID != nil {
		if _, ok := r.units[*u.ParentID]; !ok {
			return orgunit.ErrParentNotFound
		}
	}
	if u.SuccessorID != nil {
		if _, ok := r.units[*u.SuccessorID]; !ok {
			return orgunit.ErrNotFound
		}
	}
	return nil
}

func (r *MemoryOrgUnitRepository) SoftDelete(_ context.Context, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.units[id]
	if !ok || u.IsDeleted() {
		return orgunit.ErrNotFound
	}
	u.DeletedAt = &at
	u.UpdatedAt = r.now()
	return nil
}

func (r *MemoryOrgUnitRepository) Restore(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.units[id]
	if !ok {
		return orgunit.ErrNotFound
	}
	u.DeletedAt = nil
	u.UpdatedAt = r.now()
	return nil
}

func (r *MemoryOrgUnitRepository) HardDelete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.units[id]
	if !ok {
		return orgunit.ErrNotFound
	}
	for _, other := range r.units {
		if other.ParentID != nil && *other.ParentID == id {
			return orgunit.ErrHasChildren
		}
	}
	for _, other := range r.units {
		if other.SuccessorID != nil && *other.SuccessorID == id {
			other.SuccessorID = nil
		}
	}
	if u.TOOI != "" {
		delete(r.byTOOI, u.TOOI)
	}
	delete(r.units, id)
	return nil
}

func (r *MemoryOrgUnitRepository) EnsureClassifications(_ context.Context, names []string) ([]orgunit.Classification, error) {
	names = orgunit.NormalizeNames(names)
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]orgunit.Classification, 0, len(names))
	for _, name := range names {
		c, ok := r.classifications[name]
		if !ok {
			c = orgunit.Classification{ID: uuid.New(), Name: name}
			r.classifications[name] = c
		}
		out = append(out, c)
	}
	return out, nil
}

// Len returns the number of stored units, soft-deleted ones included.
func (r *MemoryOrgUnitRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.units)
}
