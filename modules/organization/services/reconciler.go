package services

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/orgsync/modules/organization/domain/aggregates/orgunit"
	"github.com/iota-uz/orgsync/modules/organization/infrastructure/registry"
	"github.com/iota-uz/orgsync/pkg/composables"
)

type ReconcileOptions struct {
	// InferTypes lets nested units without a specific registry type be typed from
	// their name ("Directie ...", "Afdeling ...").
	InferTypes bool
}

// Reconciler applies a registry subtree onto the stored tree.
type Reconciler struct {
	repo            orgunit.Repository
	resolver        *IdentityResolver
	classifications *classificationCache
	opts            ReconcileOptions
}

func NewReconciler(repo orgunit.Repository, opts ReconcileOptions) *Reconciler {
	return &Reconciler{
		repo:            repo,
		resolver:        NewIdentityResolver(repo),
		classifications: newClassificationCache(),
		opts:            opts,
	}
}

type outcome int

const (
	outcomeUnchanged outcome = iota
	outcomeCreated
	outcomeUpdated
)

func (o outcome) String() string {
	switch o {
	case outcomeCreated:
		return "created"
	case outcomeUpdated:
		return "updated"
	default:
		return "unchanged"
	}
}

// placement is the position a node is reconciled into. In dry-run a nested node's
// parent may not exist yet: unit is then nil and typ holds the type the parent would
// be created with.
type placement struct {
	unit   *orgunit.Unit
	typ    orgunit.Type
	nested bool
}

func (p placement) parentID() *uuid.UUID {
	if p.unit == nil {
		return nil
	}
	id := p.unit.ID
	return &id
}

// pending reports a parent that only exists in a dry-run.
func (p placement) pending() bool { return p.nested && p.unit == nil }

// Reconcile syncs node and its descendants under parent (nil for roots).
// Failures of a single node are reported in SyncResult.Errors and skip that node's
// subtree; the returned error is reserved for context cancellation.
func (r *Reconciler) Reconcile(ctx context.Context, node registry.Node, parent *orgunit.Unit, dryRun bool) (SyncResult, error) {
	at := placement{}
	if parent != nil {
		at = placement{unit: parent, typ: parent.Type, nested: true}
	}
	return r.reconcile(ctx, node, at, dryRun)
}

func (r *Reconciler) reconcile(ctx context.Context, node registry.Node, at placement, dryRun bool) (SyncResult, error) {
	if err := ctx.Err(); err != nil {
		return SyncResult{}, err
	}

	unit, typ, out, err := r.reconcileNode(ctx, node, at, dryRun)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return SyncResult{}, ctxErr
		}
		recordNode("error")
		logWithFields(ctx, logrus.ErrorLevel, "failed to reconcile registry node", logrus.Fields{
			"name":    node.Name,
			"tooi":    node.TOOI,
			"dry_run": dryRun,
			"error":   err.Error(),
		})
		return SyncResult{Errors: []string{fmt.Sprintf("Error processing %s: %v", nodeName(node), err)}}, nil
	}

	var result SyncResult
	switch out {
	case outcomeCreated:
		result.Created = 1
	case outcomeUpdated:
		result.Updated = 1
	default:
		result.Unchanged = 1
	}
	recordNode(out.String())

	next := placement{unit: unit, typ: typ, nested: true}
	for _, child := range node.Children {
		res, err := r.reconcile(ctx, child, next, dryRun)
		result = result.Add(res)
		if err != nil {
			return result, err
		}
	}
	return result, nil
}

// reconcileNode returns the unit children attach to (nil for a dry-run create), its
// structural type and what happened.
func (r *Reconciler) reconcileNode(ctx context.Context, node registry.Node, at placement, dryRun bool) (*orgunit.Unit, orgunit.Type, outcome, error) {
	existing, err := r.resolve(ctx, node, at)
	if err != nil {
		return nil, "", outcomeUnchanged, err
	}
	classNames := orgunit.NormalizeNames(node.TypeNames)

	if existing == nil {
		typ := deriveType(node, at, r.opts.InferTypes)
		if err := orgunit.CheckPlacement(typ, at.typ, at.nested); err != nil {
			return nil, "", outcomeUnchanged, err
		}
		if dryRun {
			logWithFields(ctx, logrus.DebugLevel, "would create organization unit", logrus.Fields{
				"name": node.Name,
				"type": string(typ),
				"tooi": node.TOOI,
			})
			return nil, typ, outcomeCreated, nil
		}
		u := orgunit.New(node.Name, typ, at.parentID())
		applyNode(u, node)
		created, err := r.create(ctx, u, classNames)
		if err != nil {
			return nil, "", outcomeUnchanged, err
		}
		logWithFields(ctx, logrus.InfoLevel, "created organization unit", logrus.Fields{
			"id":   created.ID.String(),
			"name": created.Name,
			"type": string(created.Type),
		})
		return created, created.Type, outcomeCreated, nil
	}

	if err := orgunit.CheckPlacement(existing.Type, at.typ, at.nested); err != nil {
		return nil, "", outcomeUnchanged, err
	}
	desired := existing.Clone()
	applyNode(desired, node)
	desired.ParentID = at.parentID()
	// In a dry run the stored ancestors have not moved yet, so only apply mode can
	// tell a real cycle from a pending move.
	if !dryRun && desired.ParentID != nil && !orgunit.SameParent(existing.ParentID, desired.ParentID) {
		if err := orgunit.CheckNoCycle(ctx, r.repo, existing.ID, desired.ParentID); err != nil {
			return nil, "", outcomeUnchanged, err
		}
	}

	changes := diffUnit(existing, desired, classNames)
	if at.pending() && !slices.Contains(changes, "parent") {
		changes = append(changes, "parent")
	}
	if len(changes) == 0 {
		return existing, existing.Type, outcomeUnchanged, nil
	}
	if dryRun {
		logWithFields(ctx, logrus.DebugLevel, "would update organization unit", logrus.Fields{
			"id":      existing.ID.String(),
			"name":    node.Name,
			"changes": changes,
		})
		return existing, existing.Type, outcomeUpdated, nil
	}

	updated, err := r.update(ctx, desired, classNames)
	if err != nil {
		return nil, "", outcomeUnchanged, err
	}
	logWithFields(ctx, logrus.InfoLevel, "updated organization unit", logrus.Fields{
		"id":      updated.ID.String(),
		"name":    updated.Name,
		"changes": changes,
	})
	return updated, updated.Type, outcomeUpdated, nil
}

func (r *Reconciler) create(ctx context.Context, u *orgunit.Unit, classNames []string) (*orgunit.Unit, error) {
	cs, err := r.classifications.Resolve(ctx, r.repo, classNames)
	if err != nil {
		return nil, errors.Wrap(err, "resolve classifications")
	}
	u.Classifications = cs

	var created *orgunit.Unit
	err = composables.InSavepoint(ctx, func(ctx context.Context) error {
		var err error
		created, err = r.repo.Create(ctx, u)
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "create unit")
	}
	return created, nil
}

func (r *Reconciler) update(ctx context.Context, u *orgunit.Unit, classNames []string) (*orgunit.Unit, error) {
	cs, err := r.classifications.Resolve(ctx, r.repo, classNames)
	if err != nil {
		return nil, errors.Wrap(err, "resolve classifications")
	}
	u.Classifications = cs

	var updated *orgunit.Unit
	err = composables.InSavepoint(ctx, func(ctx context.Context) error {
		var err error
		updated, err = r.repo.Update(ctx, u)
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "update unit")
	}
	return updated, nil
}

// applyNode copies the registry-owned attributes onto u. A stored TOOI is never
// cleared by a node that lacks one.
func applyNode(u *orgunit.Unit, node registry.Node) {
	u.Name = strings.TrimSpace(node.Name)
	u.Label = node.Label
	if u.Label == "" {
		u.Label = u.Name
	}
	u.Abbreviations = slices.Clone(node.Abbreviations)
	u.RelatedMinistryTOOI = node.RelatedMinistryTOOI
	if node.TOOI != "" {
		u.TOOI = node.TOOI
	}
	u.SystemID = node.SystemID
	u.SourceURL = node.SourceURL
}

// diffUnit lists the registry-owned fields that differ. Classifications compare as
// name sets.
func diffUnit(current, desired *orgunit.Unit, classNames []string) []string {
	var changes []string
	if current.Name != desired.Name {
		changes = append(changes, "name")
	}
	if current.Label != desired.Label {
		changes = append(changes, "label")
	}
	if !slices.Equal(current.Abbreviations, desired.Abbreviations) {
		changes = append(changes, "abbreviations")
	}
	if current.RelatedMinistryTOOI != desired.RelatedMinistryTOOI {
		changes = append(changes, "related_ministry_tooi")
	}
	if !orgunit.SameParent(current.ParentID, desired.ParentID) {
		changes = append(changes, "parent")
	}
	if current.TOOI != desired.TOOI {
		changes = append(changes, "tooi")
	}
	if current.SystemID != desired.SystemID {
		changes = append(changes, "system_id")
	}
	if current.SourceURL != desired.SourceURL {
		changes = append(changes, "source_url")
	}
	if !slices.Equal(current.ClassificationNames(), classNames) {
		changes = append(changes, "types")
	}
	return changes
}

func (r *Reconciler) resolve(ctx context.Context, node registry.Node, at placement) (*orgunit.Unit, error) {
	if at.pending() {
		return r.resolver.ResolveDetached(ctx, node)
	}
	return r.resolver.Resolve(ctx, node, at.unit)
}

func nodeName(n registry.Node) string {
	if n.Name == "" {
		return "unknown"
	}
	return n.Name
}
