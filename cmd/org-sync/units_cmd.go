package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/iota-uz/orgsync/modules/organization/domain/aggregates/orgunit"
	"github.com/iota-uz/orgsync/modules/organization/services"
)

type unitsOptions struct {
	backend string
	format  string
}

func newUnitsCmd() *cobra.Command {
	opts := &unitsOptions{}

	cmd := &cobra.Command{
		Use:   "units",
		Short: "Inspect and maintain organization units",
	}
	cmd.PersistentFlags().StringVar(&opts.backend, "backend", backendDB, "Backend: db or memory")
	cmd.PersistentFlags().StringVar(&opts.format, "format", formatText, "Output format: text, json or yaml")

	cmd.AddCommand(
		newUnitsListCmd(opts),
		newUnitsShowCmd(opts),
		newUnitsSearchCmd(opts),
		newUnitsDescendantsCmd(opts),
		newUnitsCreateCmd(opts),
		newUnitsMoveCmd(opts),
		newUnitsRenameCmd(opts),
		newUnitsDissolveCmd(opts),
		newUnitsDeleteCmd(opts),
		newUnitsRestoreCmd(opts),
		newUnitsPurgeCmd(opts),
	)
	return cmd
}

// run executes fn in one store transaction. Output is buffered and only written
// once the transaction committed.
func (o *unitsOptions) run(cmd *cobra.Command, fn func(ctx context.Context, svc *services.HierarchyService, w io.Writer) error) error {
	if err := checkFormat(o.format); err != nil {
		return err
	}
	conf := useConfig()
	ctx := withLogger(cmd.Context(), conf)

	st, err := openStore(ctx, conf, o.backend)
	if err != nil {
		return err
	}
	defer st.Close()

	var buf bytes.Buffer
	err = st.Run(ctx, func(ctx context.Context, repo orgunit.Repository) error {
		return fn(ctx, services.NewHierarchyService(repo), &buf)
	})
	if err != nil {
		return unitsError(err)
	}
	_, err = buf.WriteTo(cmd.OutOrStdout())
	return err
}

func newUnitsListCmd(opts *unitsOptions) *cobra.Command {
	var (
		types          []string
		parent         string
		roots          bool
		active         bool
		includeDeleted bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List organization units",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			params := &orgunit.FindParams{RootsOnly: roots, ActiveOnly: active, IncludeDeleted: includeDeleted}
			for _, t := range types {
				typ, err := orgunit.ParseType(t)
				if err != nil {
					return withCode(exitUsage, err)
				}
				params.Types = append(params.Types, typ)
			}
			if parent != "" {
				id, err := parseID("--parent", parent)
				if err != nil {
					return err
				}
				params.ParentIDs = []uuid.UUID{id}
			}
			return opts.run(cmd, func(ctx context.Context, svc *services.HierarchyService, w io.Writer) error {
				units, err := svc.List(ctx, params)
				if err != nil {
					return err
				}
				return writeUnits(w, opts.format, units)
			})
		},
	}
	cmd.Flags().StringArrayVar(&types, "type", nil, "Only units of this type (repeatable), e.g. ministerie")
	cmd.Flags().StringVar(&parent, "parent", "", "Only direct children of this unit")
	cmd.Flags().BoolVar(&roots, "roots", false, "Only top-level units")
	cmd.Flags().BoolVar(&active, "active", false, "Only active (not dissolved) units")
	cmd.Flags().BoolVar(&includeDeleted, "include-deleted", false, "Include soft-deleted units")
	return cmd
}

type unitDetail struct {
	unitView       `yaml:",inline"`
	Path           string     `json:"path" yaml:"path"`
	SuccessorChain []unitView `json:"successor_chain,omitempty" yaml:"successor_chain,omitempty"`
	Predecessors   []unitView `json:"predecessors,omitempty" yaml:"predecessors,omitempty"`
}

func newUnitsShowCmd(opts *unitsOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show a unit with its path and succession",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("ID", args[0])
			if err != nil {
				return err
			}
			return opts.run(cmd, func(ctx context.Context, svc *services.HierarchyService, w io.Writer) error {
				u, err := svc.Get(ctx, id)
				if err != nil {
					return err
				}
				path, err := svc.FullPath(ctx, id)
				if err != nil {
					return err
				}
				chain, err := svc.SuccessorChain(ctx, id)
				if err != nil {
					return err
				}
				preds, err := svc.Predecessors(ctx, id)
				if err != nil {
					return err
				}
				if opts.format != formatText {
					return writeStructured(w, opts.format, unitDetail{
						unitView:       newUnitView(u),
						Path:           path,
						SuccessorChain: newUnitViews(chain),
						Predecessors:   newUnitViews(preds),
					})
				}
				return writeUnitDetail(w, u, path, chain, preds)
			})
		},
	}
}

func writeUnitDetail(w io.Writer, u *orgunit.Unit, path string, chain, preds []*orgunit.Unit) error {
	st := newStyles(w)
	if _, err := fmt.Fprintln(w, st.title.Render(u.DisplayName())); err != nil {
		return err
	}
	previous := make([]string, 0, len(u.PreviousNames))
	for _, p := range u.PreviousNames {
		previous = append(previous, fmt.Sprintf("%s (until %s)", p.Name, p.Until))
	}
	return writeFields(w, st, [][2]string{
		{"ID", u.ID.String()},
		{"Label", u.Label},
		{"Type", fmt.Sprintf("%s (%s)", u.Type.Label(), u.Type)},
		{"Status", unitStatus(u)},
		{"Path", path},
		{"Abbreviations", strings.Join(u.Abbreviations, ", ")},
		{"TOOI", u.TOOI},
		{"OIN", u.OIN},
		{"System ID", u.SystemID},
		{"Source", u.SourceURL},
		{"Ministry", u.RelatedMinistryTOOI},
		{"Classifications", strings.Join(u.ClassificationNames(), ", ")},
		{"Previous names", strings.Join(previous, "; ")},
		{"Succeeded by", joinNames(chain, " -> ")},
		{"Predecessors", joinNames(preds, ", ")},
	})
}

func joinNames(units []*orgunit.Unit, sep string) string {
	names := make([]string, 0, len(units))
	for _, u := range units {
		names = append(names, u.Name)
	}
	return strings.Join(names, sep)
}

func newUnitsSearchCmd(opts *unitsOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "search QUERY",
		Short: "Fuzzy search by name, label or abbreviation",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return opts.run(cmd, func(ctx context.Context, svc *services.HierarchyService, w io.Writer) error {
				units, err := svc.Search(ctx, query, limit)
				if err != nil {
					return err
				}
				return writeUnits(w, opts.format, units)
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of results")
	return cmd
}

func newUnitsDescendantsCmd(opts *unitsOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "descendants ID",
		Short: "List every unit below ID, level by level",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("ID", args[0])
			if err != nil {
				return err
			}
			return opts.run(cmd, func(ctx context.Context, svc *services.HierarchyService, w io.Writer) error {
				units, err := svc.Descendants(ctx, id)
				if err != nil {
					return err
				}
				return writeUnits(w, opts.format, units)
			})
		},
	}
}

func newUnitsCreateCmd(opts *unitsOptions) *cobra.Command {
	var (
		dto    orgunit.CreateDTO
		parent string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a unit by hand",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if parent != "" {
				id, err := parseID("--parent", parent)
				if err != nil {
					return err
				}
				dto.ParentID = &id
			}
			return opts.run(cmd, func(ctx context.Context, svc *services.HierarchyService, w io.Writer) error {
				u, err := svc.Create(ctx, &dto)
				if err != nil {
					return err
				}
				return writeUnitResult(w, opts.format, "Created", u)
			})
		},
	}
	cmd.Flags().StringVar(&dto.Name, "name", "", "Name (required)")
	cmd.Flags().StringVar(&dto.Type, "type", "", "Organization type (required), e.g. directie")
	cmd.Flags().StringArrayVar(&dto.Abbreviations, "abbr", nil, "Abbreviation (repeatable)")
	cmd.Flags().StringVar(&dto.TOOI, "tooi", "", "TOOI identifier")
	cmd.Flags().StringVar(&dto.OIN, "oin", "", "Organisatie-identificatienummer (20 digits)")
	cmd.Flags().StringVar(&dto.RelatedMinistryTOOI, "ministry-tooi", "", "TOOI of the related ministry")
	cmd.Flags().StringVar(&parent, "parent", "", "Parent unit ID")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func newUnitsMoveCmd(opts *unitsOptions) *cobra.Command {
	var (
		parent string
		root   bool
	)
	cmd := &cobra.Command{
		Use:   "move ID",
		Short: "Move a unit under another parent, or to the top level with --root",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (parent == "") == !root {
				return withCode(exitUsage, fmt.Errorf("exactly one of --parent or --root is required"))
			}
			id, err := parseID("ID", args[0])
			if err != nil {
				return err
			}
			var parentID *uuid.UUID
			if !root {
				p, err := parseID("--parent", parent)
				if err != nil {
					return err
				}
				parentID = &p
			}
			return opts.run(cmd, func(ctx context.Context, svc *services.HierarchyService, w io.Writer) error {
				u, err := svc.Move(ctx, id, parentID)
				if err != nil {
					return err
				}
				return writeUnitResult(w, opts.format, "Moved", u)
			})
		},
	}
	cmd.Flags().StringVar(&parent, "parent", "", "New parent unit ID")
	cmd.Flags().BoolVar(&root, "root", false, "Detach the unit from its parent")
	return cmd
}

func newUnitsRenameCmd(opts *unitsOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rename ID NAME",
		Short: "Rename a unit, keeping the old name in its history",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("ID", args[0])
			if err != nil {
				return err
			}
			name := strings.Join(args[1:], " ")
			return opts.run(cmd, func(ctx context.Context, svc *services.HierarchyService, w io.Writer) error {
				u, err := svc.Rename(ctx, id, name)
				if err != nil {
					return err
				}
				return writeUnitResult(w, opts.format, "Renamed", u)
			})
		},
	}
}

func newUnitsDissolveCmd(opts *unitsOptions) *cobra.Command {
	var successor string
	cmd := &cobra.Command{
		Use:   "dissolve ID",
		Short: "Mark a unit inactive, optionally naming the unit that took over",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("ID", args[0])
			if err != nil {
				return err
			}
			var successorID *uuid.UUID
			if successor != "" {
				s, err := parseID("--successor", successor)
				if err != nil {
					return err
				}
				successorID = &s
			}
			return opts.run(cmd, func(ctx context.Context, svc *services.HierarchyService, w io.Writer) error {
				u, err := svc.Dissolve(ctx, id, successorID)
				if err != nil {
					return err
				}
				return writeUnitResult(w, opts.format, "Dissolved", u)
			})
		},
	}
	cmd.Flags().StringVar(&successor, "successor", "", "Successor unit ID")
	return cmd
}

func newUnitsDeleteCmd(opts *unitsOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Soft-delete a manually created unit without children",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("ID", args[0])
			if err != nil {
				return err
			}
			return opts.run(cmd, func(ctx context.Context, svc *services.HierarchyService, w io.Writer) error {
				if err := svc.Delete(ctx, id); err != nil {
					return err
				}
				return writeAck(w, opts.format, "deleted", id)
			})
		},
	}
}

func newUnitsRestoreCmd(opts *unitsOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "restore ID",
		Short: "Undo a soft delete",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("ID", args[0])
			if err != nil {
				return err
			}
			return opts.run(cmd, func(ctx context.Context, svc *services.HierarchyService, w io.Writer) error {
				u, err := svc.Restore(ctx, id)
				if err != nil {
					return err
				}
				return writeUnitResult(w, opts.format, "Restored", u)
			})
		},
	}
}

func newUnitsPurgeCmd(opts *unitsOptions) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "purge ID",
		Short: "Permanently remove a soft-deleted unit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("ID", args[0])
			if err != nil {
				return err
			}
			if !yes {
				ok, err := confirm(cmd.InOrStdin(), cmd.OutOrStdout(), fmt.Sprintf("Permanently remove %s? [y/N] ", id))
				if err != nil {
					return withCode(exitUsage, err)
				}
				if !ok {
					fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
					return nil
				}
			}
			return opts.run(cmd, func(ctx context.Context, svc *services.HierarchyService, w io.Writer) error {
				if err := svc.Purge(ctx, id); err != nil {
					return err
				}
				return writeAck(w, opts.format, "purged", id)
			})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "Do not ask for confirmation")
	return cmd
}

func parseID(name, raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, withCode(exitUsage, fmt.Errorf("invalid %s: %w", name, err))
	}
	return id, nil
}

func writeUnitResult(w io.Writer, format, verb string, u *orgunit.Unit) error {
	if format != formatText {
		return writeStructured(w, format, newUnitView(u))
	}
	_, err := fmt.Fprintf(w, "%s %s (%s)\n", verb, u.DisplayName(), u.ID)
	return err
}

type ack struct {
	ID     string `json:"id" yaml:"id"`
	Status string `json:"status" yaml:"status"`
}

func writeAck(w io.Writer, format, status string, id uuid.UUID) error {
	if format != formatText {
		return writeStructured(w, format, ack{ID: id.String(), Status: status})
	}
	_, err := fmt.Fprintf(w, "%s %s\n", id, status)
	return err
}

var ruleViolations = []error{
	orgunit.ErrNotFound,
	orgunit.ErrInvalidType,
	orgunit.ErrCircularReference,
	orgunit.ErrRootTypeWithParent,
	orgunit.ErrParentRequired,
	orgunit.ErrIncompatibleParent,
	orgunit.ErrDuplicateTOOI,
	orgunit.ErrProtected,
	orgunit.ErrHasChildren,
	orgunit.ErrCircularSuccession,
	orgunit.ErrNotDeleted,
	orgunit.ErrParentNotFound,
	orgunit.ErrSuccessorDeleted,
}

// unitsError maps domain rule violations to exitValidation; anything else failed in the store.
func unitsError(err error) error {
	if err == nil {
		return nil
	}
	var ce *cliError
	if as(err, &ce) {
		return err
	}
	var verr *services.ValidationError
	if as(err, &verr) {
		return withCode(exitValidation, err)
	}
	for _, target := range ruleViolations {
		if is(err, target) {
			return withCode(exitValidation, err)
		}
	}
	return withCode(exitDBWrite, err)
}
