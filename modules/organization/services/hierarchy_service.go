package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/orgsync/modules/organization/domain/aggregates/orgunit"
)

const (
	pathSeparator      = " > "
	defaultSearchLimit = 20
)

// ValidationError carries per-field messages of rejected input.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s %s", k, e.Fields[k]))
	}
	return "invalid organization unit: " + strings.Join(parts, "; ")
}

// HierarchyService holds the administrative operations on the tree. Every mutation
// runs the placement, cycle and deletion rules of the orgunit package first.
type HierarchyService struct {
	repo orgunit.Repository
	now  func() time.Time
}

func NewHierarchyService(repo orgunit.Repository) *HierarchyService {
	return &HierarchyService{repo: repo, now: time.Now}
}

func (s *HierarchyService) Create(ctx context.Context, dto *orgunit.CreateDTO) (*orgunit.Unit, error) {
	if errs, ok := dto.Ok(); !ok {
		return nil, &ValidationError{Fields: errs}
	}
	u, err := dto.ToEntity()
	if err != nil {
		return nil, err
	}
	parent, err := s.parent(ctx, u.ParentID)
	if err != nil {
		return nil, err
	}
	if err := orgunit.ValidatePlacement(u, parent); err != nil {
		return nil, err
	}
	if u.TOOI != "" {
		if _, err := s.repo.FindByTOOI(ctx, u.TOOI); err == nil {
			return nil, orgunit.ErrDuplicateTOOI
		} else if !errors.Is(err, orgunit.ErrNotFound) {
			return nil, errors.Wrap(err, "check tooi")
		}
	}

	created, err := s.repo.Create(ctx, u)
	if err != nil {
		return nil, errors.Wrap(err, "create organization unit")
	}
	logWithFields(ctx, logrus.InfoLevel, "created organization unit", logrus.Fields{
		"id":   created.ID.String(),
		"name": created.Name,
		"type": string(created.Type),
	})
	return created, nil
}

func (s *HierarchyService) Get(ctx context.Context, id uuid.UUID) (*orgunit.Unit, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *HierarchyService) List(ctx context.Context, params *orgunit.FindParams) ([]*orgunit.Unit, error) {
	return s.repo.List(ctx, params)
}

// Move reparents a unit; parentID nil makes it a root.
func (s *HierarchyService) Move(ctx context.Context, id uuid.UUID, parentID *uuid.UUID) (*orgunit.Unit, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if orgunit.SameParent(u.ParentID, parentID) {
		return u, nil
	}
	parent, err := s.parent(ctx, parentID)
	if err != nil {
		return nil, err
	}
	if err := orgunit.ValidatePlacement(u, parent); err != nil {
		return nil, err
	}
	if err := orgunit.CheckNoCycle(ctx, s.repo, id, parentID); err != nil {
		return nil, err
	}

	from := u.ParentID
	u.ParentID = parentID
	moved, err := s.repo.Update(ctx, u)
	if err != nil {
		return nil, errors.Wrap(err, "move organization unit")
	}
	logWithFields(ctx, logrus.InfoLevel, "moved organization unit", logrus.Fields{
		"id":   id.String(),
		"from": idString(from),
		"to":   idString(parentID),
	})
	return moved, nil
}

// Rename records the old name in the unit's history.
func (s *HierarchyService) Rename(ctx context.Context, id uuid.UUID, name string) (*orgunit.Unit, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &ValidationError{Fields: map[string]string{"Name": "is required"}}
	}
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	old := u.Name
	if !u.Rename(name, s.now()) {
		return u, nil
	}
	renamed, err := s.repo.Update(ctx, u)
	if err != nil {
		return nil, errors.Wrap(err, "rename organization unit")
	}
	logWithFields(ctx, logrus.InfoLevel, "renamed organization unit", logrus.Fields{
		"id":   id.String(),
		"from": old,
		"to":   name,
	})
	return renamed, nil
}

// Dissolve deactivates a unit, optionally recording the unit that took over.
func (s *HierarchyService) Dissolve(ctx context.Context, id uuid.UUID, successorID *uuid.UUID) (*orgunit.Unit, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if successorID != nil {
		successor, err := s.repo.GetByIDWithDeleted(ctx, *successorID)
		if err != nil {
			return nil, errors.Wrap(err, "load successor")
		}
		if successor.IsDeleted() {
			return nil, orgunit.ErrSuccessorDeleted
		}
		if err := orgunit.CheckSuccession(ctx, s.repo, id, *successorID); err != nil {
			return nil, err
		}
	}
	u.Dissolve(successorID)
	dissolved, err := s.repo.Update(ctx, u)
	if err != nil {
		return nil, errors.Wrap(err, "dissolve organization unit")
	}
	logWithFields(ctx, logrus.InfoLevel, "dissolved organization unit", logrus.Fields{
		"id":        id.String(),
		"successor": idString(successorID),
	})
	return dissolved, nil
}

// Delete soft-deletes a unit. Registry-sourced units and units with children are refused.
func (s *HierarchyService) Delete(ctx context.Context, id uuid.UUID) error {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if u.IsProtected() {
		return orgunit.ErrProtected
	}
	children, err := s.repo.List(ctx, &orgunit.FindParams{ParentIDs: []uuid.UUID{id}})
	if err != nil {
		return errors.Wrap(err, "list children")
	}
	if len(children) > 0 {
		return orgunit.ErrHasChildren
	}
	if err := s.repo.SoftDelete(ctx, id, s.now()); err != nil {
		return errors.Wrap(err, "delete organization unit")
	}
	logWithFields(ctx, logrus.InfoLevel, "deleted organization unit", logrus.Fields{"id": id.String(), "name": u.Name})
	return nil
}

func (s *HierarchyService) Restore(ctx context.Context, id uuid.UUID) (*orgunit.Unit, error) {
	u, err := s.repo.GetByIDWithDeleted(ctx, id)
	if err != nil {
		return nil, err
	}
	if !u.IsDeleted() {
		return nil, orgunit.ErrNotDeleted
	}
	if _, err := s.parent(ctx, u.ParentID); err != nil {
		return nil, err
	}
	if err := s.repo.Restore(ctx, id); err != nil {
		return nil, errors.Wrap(err, "restore organization unit")
	}
	logWithFields(ctx, logrus.InfoLevel, "restored organization unit", logrus.Fields{"id": id.String(), "name": u.Name})
	return s.repo.GetByID(ctx, id)
}

// Purge removes a soft-deleted, unprotected, childless unit for good.
func (s *HierarchyService) Purge(ctx context.Context, id uuid.UUID) error {
	u, err := s.repo.GetByIDWithDeleted(ctx, id)
	if err != nil {
		return err
	}
	if !u.IsDeleted() {
		return orgunit.ErrNotDeleted
	}
	if u.IsProtected() {
		return orgunit.ErrProtected
	}
	children, err := s.repo.List(ctx, &orgunit.FindParams{ParentIDs: []uuid.UUID{id}, IncludeDeleted: true})
	if err != nil {
		return errors.Wrap(err, "list children")
	}
	if len(children) > 0 {
		return orgunit.ErrHasChildren
	}
	if err := s.repo.HardDelete(ctx, id); err != nil {
		return errors.Wrap(err, "purge organization unit")
	}
	logWithFields(ctx, logrus.WarnLevel, "purged organization unit", logrus.Fields{"id": id.String(), "name": u.Name})
	return nil
}

// Ancestors returns the parent chain, direct parent first.
func (s *HierarchyService) Ancestors(ctx context.Context, id uuid.UUID) ([]*orgunit.Unit, error) {
	return s.repo.Ancestors(ctx, id)
}

// Descendants returns all non-deleted units below id, level by level.
func (s *HierarchyService) Descendants(ctx context.Context, id uuid.UUID) ([]*orgunit.Unit, error) {
	var out []*orgunit.Unit
	seen := map[uuid.UUID]struct{}{id: {}}
	level := []uuid.UUID{id}
	for len(level) > 0 {
		children, err := s.repo.List(ctx, &orgunit.FindParams{ParentIDs: level})
		if err != nil {
			return nil, err
		}
		level = level[:0]
		for _, c := range children {
			if _, ok := seen[c.ID]; ok {
				continue
			}
			seen[c.ID] = struct{}{}
			out = append(out, c)
			level = append(level, c.ID)
		}
	}
	return out, nil
}

// WithDescendants expands ids with every unit below them. Roots come first, in input order.
func (s *HierarchyService) WithDescendants(ctx context.Context, ids []uuid.UUID) ([]uuid.UUID, error) {
	out := make([]uuid.UUID, 0, len(ids))
	seen := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	level := append([]uuid.UUID(nil), out...)
	for len(level) > 0 {
		children, err := s.repo.List(ctx, &orgunit.FindParams{ParentIDs: level})
		if err != nil {
			return nil, err
		}
		level = level[:0]
		for _, c := range children {
			if _, ok := seen[c.ID]; ok {
				continue
			}
			seen[c.ID] = struct{}{}
			out = append(out, c.ID)
			level = append(level, c.ID)
		}
	}
	return out, nil
}

// FullPath renders the names from the root down to the unit, e.g. "BZK > DGDOO > Directie X".
func (s *HierarchyService) FullPath(ctx context.Context, id uuid.UUID) (string, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	ancestors, err := s.repo.Ancestors(ctx, id)
	if err != nil {
		return "", err
	}
	names := make([]string, 0, len(ancestors)+1)
	for i := len(ancestors) - 1; i >= 0; i-- {
		names = append(names, ancestors[i].Name)
	}
	names = append(names, u.Name)
	return strings.Join(names, pathSeparator), nil
}

// Root returns the top of the unit's tree, the unit itself when it has no parent.
func (s *HierarchyService) Root(ctx context.Context, id uuid.UUID) (*orgunit.Unit, error) {
	ancestors, err := s.repo.Ancestors(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(ancestors) > 0 {
		return ancestors[len(ancestors)-1], nil
	}
	return s.repo.GetByID(ctx, id)
}

// SuccessorChain follows successor links from the unit, nearest first.
func (s *HierarchyService) SuccessorChain(ctx context.Context, id uuid.UUID) ([]*orgunit.Unit, error) {
	u, err := s.repo.GetByIDWithDeleted(ctx, id)
	if err != nil {
		return nil, err
	}
	var chain []*orgunit.Unit
	seen := map[uuid.UUID]struct{}{id: {}}
	for u.SuccessorID != nil {
		if _, ok := seen[*u.SuccessorID]; ok {
			return chain, orgunit.ErrCircularSuccession
		}
		seen[*u.SuccessorID] = struct{}{}
		next, err := s.repo.GetByIDWithDeleted(ctx, *u.SuccessorID)
		if err != nil {
			if errors.Is(err, orgunit.ErrNotFound) {
				break
			}
			return nil, err
		}
		chain = append(chain, next)
		u = next
	}
	return chain, nil
}

// CurrentSuccessor returns the end of the successor chain, or nil when the unit has no successor.
func (s *HierarchyService) CurrentSuccessor(ctx context.Context, id uuid.UUID) (*orgunit.Unit, error) {
	chain, err := s.SuccessorChain(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(chain) == 0 {
		return nil, nil
	}
	return chain[len(chain)-1], nil
}

// Predecessors returns the units directly succeeded by id.
func (s *HierarchyService) Predecessors(ctx context.Context, id uuid.UUID) ([]*orgunit.Unit, error) {
	return s.repo.List(ctx, &orgunit.FindParams{SuccessorID: &id, IncludeDeleted: true})
}

// AllPredecessors returns the full merger history behind id, depth first.
func (s *HierarchyService) AllPredecessors(ctx context.Context, id uuid.UUID) ([]*orgunit.Unit, error) {
	var out []*orgunit.Unit
	seen := map[uuid.UUID]struct{}{id: {}}
	var walk func(uuid.UUID) error
	walk = func(current uuid.UUID) error {
		preds, err := s.Predecessors(ctx, current)
		if err != nil {
			return err
		}
		for _, p := range preds {
			if _, ok := seen[p.ID]; ok {
				continue
			}
			seen[p.ID] = struct{}{}
			out = append(out, p)
			if err := walk(p.ID); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(id); err != nil {
		return nil, err
	}
	return out, nil
}

// Search ranks non-deleted units by fuzzy match on name, label and abbreviations.
func (s *HierarchyService) Search(ctx context.Context, query string, limit int) ([]*orgunit.Unit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	units, err := s.repo.List(ctx, &orgunit.FindParams{})
	if err != nil {
		return nil, err
	}

	var words []string
	var owners []int
	for i, u := range units {
		words = append(words, u.Name)
		owners = append(owners, i)
		if u.Label != "" && u.Label != u.Name {
			words = append(words, u.Label)
			owners = append(owners, i)
		}
		for _, a := range u.Abbreviations {
			words = append(words, a)
			owners = append(owners, i)
		}
	}
	ranks := fuzzy.RankFindNormalizedFold(query, words)
	sort.Stable(ranks)

	result := make([]*orgunit.Unit, 0, min(limit, len(ranks)))
	picked := make(map[int]struct{}, len(ranks))
	for _, rank := range ranks {
		owner := owners[rank.OriginalIndex]
		if _, ok := picked[owner]; ok {
			continue
		}
		picked[owner] = struct{}{}
		result = append(result, units[owner])
		if len(result) == limit {
			break
		}
	}
	return result, nil
}

// parent loads a prospective parent; nil id means root.
func (s *HierarchyService) parent(ctx context.Context, id *uuid.UUID) (*orgunit.Unit, error) {
	if id == nil {
		return nil, nil
	}
	p, err := s.repo.GetByID(ctx, *id)
	if err != nil {
		if errors.Is(err, orgunit.ErrNotFound) {
			return nil, orgunit.ErrParentNotFound
		}
		return nil, err
	}
	return p, nil
}

func idString(id *uuid.UUID) string {
	if id == nil {
		return ""
	}
	return id.String()
}
