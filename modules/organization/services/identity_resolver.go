package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/orgsync/modules/organization/domain/aggregates/orgunit"
	"github.com/iota-uz/orgsync/modules/organization/infrastructure/registry"
)

const (
	conflictIdentifiedUnit = "identified_unit"
	conflictTOOIMismatch   = "tooi_mismatch"
)

// IdentityResolver finds the stored unit a registry node refers to.
//
// A TOOI match is authoritative and wins regardless of name or position. Without one,
// a unit with the same name under the same parent (or among the roots) is reused,
// unless that unit carries a TOOI the node does not confirm: it belongs to a different
// organization and the node becomes a new unit instead.
type IdentityResolver struct {
	repo orgunit.Repository
}

func NewIdentityResolver(repo orgunit.Repository) *IdentityResolver {
	return &IdentityResolver{repo: repo}
}

// Resolve returns the matching unit or nil when the node should be created.
// parent is the already reconciled parent unit, nil for roots.
func (r *IdentityResolver) Resolve(ctx context.Context, node registry.Node, parent *orgunit.Unit) (*orgunit.Unit, error) {
	u, err := r.ResolveDetached(ctx, node)
	if err != nil || u != nil {
		return u, err
	}
	var parentID *uuid.UUID
	if parent != nil {
		parentID = &parent.ID
	}
	return r.byName(ctx, node, parentID)
}

// ResolveDetached matches by TOOI only. It serves nodes whose parent does not
// exist yet, so no sibling can be looked up by name.
func (r *IdentityResolver) ResolveDetached(ctx context.Context, node registry.Node) (*orgunit.Unit, error) {
	if node.TOOI == "" {
		return nil, nil
	}
	u, err := r.repo.FindByTOOI(ctx, node.TOOI)
	if err != nil {
		if errors.Is(err, orgunit.ErrNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "find by tooi")
	}
	return u, nil
}

func (r *IdentityResolver) byName(ctx context.Context, node registry.Node, parentID *uuid.UUID) (*orgunit.Unit, error) {
	u, err := r.repo.FindByNameAndParent(ctx, node.Name, parentID)
	if err != nil {
		if errors.Is(err, orgunit.ErrNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "find by name and parent")
	}
	if u.TOOI == "" {
		return u, nil
	}

	reason := ""
	switch {
	case node.TOOI == "":
		reason = conflictIdentifiedUnit
	case node.TOOI != u.TOOI:
		reason = conflictTOOIMismatch
	default:
		return u, nil
	}
	recordMatchConflict(reason)
	logWithFields(ctx, logrus.InfoLevel, "rejected name match carrying another identity", logrus.Fields{
		"name":         node.Name,
		"node_tooi":    node.TOOI,
		"matched_id":   u.ID.String(),
		"matched_tooi": u.TOOI,
		"parent_id":    idString(parentID),
		"reason":       reason,
	})
	return nil, nil
}
