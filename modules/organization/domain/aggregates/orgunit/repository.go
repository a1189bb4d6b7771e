package orgunit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type FindParams struct {
	IncludeDeleted bool
	ActiveOnly     bool
	RootsOnly      bool
	ParentIDs      []uuid.UUID
	SuccessorID    *uuid.UUID
	Types          []Type
}

// Repository is the persistence surface of the organization tree.
// Lookups return ErrNotFound when nothing matches.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Unit, error)
	GetByIDWithDeleted(ctx context.Context, id uuid.UUID) (*Unit, error)
	// FindByTOOI includes soft-deleted units.
	FindByTOOI(ctx context.Context, tooi string) (*Unit, error)
	// FindByNameAndParent skips soft-deleted units and prefers units without a TOOI,
	// then the oldest. A nil parentID searches the roots.
	FindByNameAndParent(ctx context.Context, name string, parentID *uuid.UUID) (*Unit, error)
	List(ctx context.Context, params *FindParams) ([]*Unit, error)
	// Ancestors returns the chain from the direct parent up to the root.
	Ancestors(ctx context.Context, id uuid.UUID) ([]*Unit, error)
	Create(ctx context.Context, u *Unit) (*Unit, error)
	Update(ctx context.Context, u *Unit) (*Unit, error)
	SoftDelete(ctx context.Context, id uuid.UUID, at time.Time) error
	Restore(ctx context.Context, id uuid.UUID) error
	HardDelete(ctx context.Context, id uuid.UUID) error
	// EnsureClassifications returns the classifications with the given names, creating missing ones.
	EnsureClassifications(ctx context.Context, names []string) ([]Classification, error)
}
