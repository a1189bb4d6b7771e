package orgunit

import (
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

type PreviousName struct {
	Name  string `json:"name"`
	Until string `json:"until"`
}

// Unit is a node of the organization tree. Edges (parent, successor) are stored as IDs.
type Unit struct {
	ID                  uuid.UUID
	Name                string
	Label               string
	Abbreviations       []string
	Type                Type
	TOOI                string
	OIN                 string
	SystemID            string
	SourceURL           string
	RelatedMinistryTOOI string
	ParentID            *uuid.UUID
	SuccessorID         *uuid.UUID
	IsActive            bool
	PreviousNames       []PreviousName
	Classifications     []Classification
	DeletedAt           *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

func New(name string, typ Type, parentID *uuid.UUID) *Unit {
	name = strings.TrimSpace(name)
	return &Unit{
		Name:     name,
		Label:    name,
		Type:     typ,
		ParentID: cloneID(parentID),
		IsActive: true,
	}
}

func (u *Unit) IsRoot() bool       { return u.ParentID == nil }
func (u *Unit) IsDeleted() bool    { return u.DeletedAt != nil }
func (u *Unit) IsProtected() bool  { return u.TOOI != "" }
func (u *Unit) HasSuccessor() bool { return u.SuccessorID != nil }

// DisplayName renders "Name (ABBR)" using the first abbreviation.
func (u *Unit) DisplayName() string {
	if len(u.Abbreviations) > 0 {
		return u.Name + " (" + u.Abbreviations[0] + ")"
	}
	return u.Name
}

// Rename records the current name in PreviousNames and switches to name.
func (u *Unit) Rename(name string, at time.Time) bool {
	name = strings.TrimSpace(name)
	if name == "" || name == u.Name {
		return false
	}
	u.PreviousNames = append(u.PreviousNames, PreviousName{
		Name:  u.Name,
		Until: at.Format(time.DateOnly),
	})
	if u.Label == u.Name {
		u.Label = name
	}
	u.Name = name
	return true
}

// Dissolve deactivates the unit, optionally pointing it at the unit that took over.
func (u *Unit) Dissolve(successorID *uuid.UUID) {
	u.IsActive = false
	if successorID != nil {
		u.SuccessorID = cloneID(successorID)
	}
}

func (u *Unit) ClassificationNames() []string {
	return ClassificationNames(u.Classifications)
}

func (u *Unit) Clone() *Unit {
	if u == nil {
		return nil
	}
	c := *u
	c.Abbreviations = slices.Clone(u.Abbreviations)
	c.PreviousNames = slices.Clone(u.PreviousNames)
	c.Classifications = slices.Clone(u.Classifications)
	c.ParentID = cloneID(u.ParentID)
	c.SuccessorID = cloneID(u.SuccessorID)
	if u.DeletedAt != nil {
		t := *u.DeletedAt
		c.DeletedAt = &t
	}
	return &c
}

func SameParent(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func cloneID(id *uuid.UUID) *uuid.UUID {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}
