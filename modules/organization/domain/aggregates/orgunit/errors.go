package orgunit

import "errors"

var (
	ErrNotFound           = errors.New("organization unit not found")
	ErrInvalidType        = errors.New("invalid organization type")
	ErrCircularReference  = errors.New("organization unit cannot be its own ancestor")
	ErrRootTypeWithParent = errors.New("root organization type cannot have a parent")
	ErrParentRequired     = errors.New("organization type requires a parent")
	ErrIncompatibleParent = errors.New("organization type cannot be placed under this parent type")
	ErrDuplicateTOOI      = errors.New("tooi identifier already in use")
	ErrProtected          = errors.New("organization unit is sourced from the registry and cannot be deleted")
	ErrHasChildren        = errors.New("organization unit has children")
	ErrCircularSuccession = errors.New("succession chain cannot contain a cycle")
	ErrNotDeleted         = errors.New("organization unit is not soft-deleted")
	ErrParentNotFound     = errors.New("parent organization unit not found")
	ErrSuccessorDeleted   = errors.New("successor organization unit is deleted")
)
