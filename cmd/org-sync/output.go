package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"gopkg.in/yaml.v3"

	"github.com/iota-uz/orgsync/modules/organization/domain/aggregates/orgunit"
)

const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

func checkFormat(format string) error {
	switch format {
	case formatText, formatJSON, formatYAML:
		return nil
	default:
		return withCode(exitUsage, fmt.Errorf("invalid --format %q (want text, json or yaml)", format))
	}
}

// writeStructured encodes v as a single JSON or YAML document.
func writeStructured(w io.Writer, format string, v any) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("json encode: %w", err)
		}
		return nil
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("yaml encode: %w", err)
		}
		return enc.Close()
	default:
		return checkFormat(format)
	}
}

// styles render with the color profile of w, so output piped to a file stays plain.
type styles struct {
	r     *lipgloss.Renderer
	title lipgloss.Style
	muted lipgloss.Style
	bad   lipgloss.Style
}

func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		r:     r,
		title: r.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF")),
		muted: r.NewStyle().Foreground(lipgloss.Color("#AAAAAA")),
		bad:   r.NewStyle().Foreground(lipgloss.Color("#E5484D")),
	}
}

type unitView struct {
	ID                  string                 `json:"id" yaml:"id"`
	Name                string                 `json:"name" yaml:"name"`
	Label               string                 `json:"label" yaml:"label"`
	Abbreviations       []string               `json:"abbreviations,omitempty" yaml:"abbreviations,omitempty"`
	Type                string                 `json:"type" yaml:"type"`
	Status              string                 `json:"status" yaml:"status"`
	TOOI                string                 `json:"tooi,omitempty" yaml:"tooi,omitempty"`
	OIN                 string                 `json:"oin,omitempty" yaml:"oin,omitempty"`
	SystemID            string                 `json:"system_id,omitempty" yaml:"system_id,omitempty"`
	SourceURL           string                 `json:"source_url,omitempty" yaml:"source_url,omitempty"`
	RelatedMinistryTOOI string                 `json:"related_ministry_tooi,omitempty" yaml:"related_ministry_tooi,omitempty"`
	ParentID            string                 `json:"parent_id,omitempty" yaml:"parent_id,omitempty"`
	SuccessorID         string                 `json:"successor_id,omitempty" yaml:"successor_id,omitempty"`
	PreviousNames       []orgunit.PreviousName `json:"previous_names,omitempty" yaml:"previous_names,omitempty"`
	Classifications     []string               `json:"classifications,omitempty" yaml:"classifications,omitempty"`
}

func newUnitView(u *orgunit.Unit) unitView {
	v := unitView{
		ID:                  u.ID.String(),
		Name:                u.Name,
		Label:               u.Label,
		Abbreviations:       u.Abbreviations,
		Type:                string(u.Type),
		Status:              unitStatus(u),
		TOOI:                u.TOOI,
		OIN:                 u.OIN,
		SystemID:            u.SystemID,
		SourceURL:           u.SourceURL,
		RelatedMinistryTOOI: u.RelatedMinistryTOOI,
		PreviousNames:       u.PreviousNames,
		Classifications:     u.ClassificationNames(),
	}
	if u.ParentID != nil {
		v.ParentID = u.ParentID.String()
	}
	if u.SuccessorID != nil {
		v.SuccessorID = u.SuccessorID.String()
	}
	return v
}

func newUnitViews(units []*orgunit.Unit) []unitView {
	out := make([]unitView, 0, len(units))
	for _, u := range units {
		out = append(out, newUnitView(u))
	}
	return out
}

func unitStatus(u *orgunit.Unit) string {
	switch {
	case u.IsDeleted():
		return "deleted"
	case !u.IsActive:
		return "dissolved"
	default:
		return "active"
	}
}

func writeUnits(w io.Writer, format string, units []*orgunit.Unit) error {
	if format != formatText {
		return writeStructured(w, format, newUnitViews(units))
	}
	st := newStyles(w)
	if len(units) == 0 {
		_, err := fmt.Fprintln(w, st.muted.Render("No organization units."))
		return err
	}
	rows := make([][]string, 0, len(units))
	for _, u := range units {
		rows = append(rows, []string{u.ID.String(), string(u.Type), u.DisplayName(), unitStatus(u)})
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(st.muted).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return st.title.Padding(0, 1)
			}
			return st.r.NewStyle().Padding(0, 1)
		}).
		Headers("ID", "TYPE", "NAME", "STATUS").
		Rows(rows...)
	_, err := fmt.Fprintln(w, t.Render())
	return err
}

// writeFields prints aligned "key: value" lines, skipping empty values.
func writeFields(w io.Writer, st styles, fields [][2]string) error {
	width := 0
	for _, f := range fields {
		width = max(width, len(f[0]))
	}
	var b strings.Builder
	for _, f := range fields {
		if f[1] == "" {
			continue
		}
		key := st.muted.Render(fmt.Sprintf("%-*s", width+1, f[0]+":"))
		fmt.Fprintf(&b, "%s %s\n", key, f[1])
	}
	_, err := io.WriteString(w, b.String())
	return err
}
