package orgunit

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Lookup resolves units by ID, soft-deleted ones included.
type Lookup interface {
	GetByIDWithDeleted(ctx context.Context, id uuid.UUID) (*Unit, error)
}

// CheckPlacement validates that a unit of type child may sit under a parent of type
// parentType. hasParent=false means the unit is a root and parentType is ignored.
func CheckPlacement(child Type, parentType Type, hasParent bool) error {
	if !hasParent {
		if child.RequiresParent() {
			return fmt.Errorf("%w: %s", ErrParentRequired, child.Label())
		}
		return nil
	}
	if child.IsRoot() {
		return fmt.Errorf("%w: %s", ErrRootTypeWithParent, child.Label())
	}
	if !child.AcceptsParent(parentType) {
		return fmt.Errorf("%w: %s under %s", ErrIncompatibleParent, child.Label(), parentType.Label())
	}
	return nil
}

func ValidatePlacement(u *Unit, parent *Unit) error {
	if parent == nil {
		return CheckPlacement(u.Type, "", false)
	}
	return CheckPlacement(u.Type, parent.Type, true)
}

// CheckNoCycle walks up from newParentID and fails when unitID is reached.
func CheckNoCycle(ctx context.Context, lookup Lookup, unitID uuid.UUID, newParentID *uuid.UUID) error {
	if newParentID == nil {
		return nil
	}
	if unitID == uuid.Nil {
		return nil
	}
	seen := make(map[uuid.UUID]struct{})
	current := *newParentID
	for {
		if current == unitID {
			return ErrCircularReference
		}
		if _, ok := seen[current]; ok {
			return nil
		}
		seen[current] = struct{}{}

		u, err := lookup.GetByIDWithDeleted(ctx, current)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil
			}
			return err
		}
		if u.ParentID == nil {
			return nil
		}
		current = *u.ParentID
	}
}

// CheckSuccession fails when pointing unitID at successorID would close a loop.
func CheckSuccession(ctx context.Context, lookup Lookup, unitID uuid.UUID, successorID uuid.UUID) error {
	if unitID == successorID {
		return ErrCircularSuccession
	}
	seen := make(map[uuid.UUID]struct{})
	current := successorID
	for {
		if _, ok := seen[current]; ok {
			return ErrCircularSuccession
		}
		seen[current] = struct{}{}

		u, err := lookup.GetByIDWithDeleted(ctx, current)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil
			}
			return err
		}
		if u.SuccessorID == nil {
			return nil
		}
		if *u.SuccessorID == unitID {
			return ErrCircularSuccession
		}
		current = *u.SuccessorID
	}
}
