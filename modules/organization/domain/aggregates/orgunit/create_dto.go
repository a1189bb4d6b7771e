package orgunit

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/iota-uz/orgsync/pkg/constants"
)

const tooiPrefix = "https://identifier.overheid.nl/tooi/"

type CreateDTO struct {
	Name                string     `json:"name" validate:"required,max=200"`
	Type                string     `json:"type" validate:"required"`
	Abbreviations       []string   `json:"abbreviations" validate:"dive,max=20"`
	TOOI                string     `json:"tooi" validate:"omitempty,startswith=https://identifier.overheid.nl/tooi/,max=200"`
	OIN                 string     `json:"oin" validate:"omitempty,numeric,len=20"`
	RelatedMinistryTOOI string     `json:"related_ministry_tooi" validate:"omitempty,startswith=https://identifier.overheid.nl/tooi/"`
	ParentID            *uuid.UUID `json:"parent_id"`
}

func (d *CreateDTO) Normalize() {
	d.Name = strings.TrimSpace(d.Name)
	d.Type = strings.ToLower(strings.TrimSpace(d.Type))
	d.TOOI = strings.TrimSpace(d.TOOI)
	d.OIN = strings.TrimSpace(d.OIN)
	d.RelatedMinistryTOOI = strings.TrimSpace(d.RelatedMinistryTOOI)
	abbrs := make([]string, 0, len(d.Abbreviations))
	for _, a := range d.Abbreviations {
		if a = strings.TrimSpace(a); a != "" {
			abbrs = append(abbrs, a)
		}
	}
	d.Abbreviations = abbrs
}

// Ok returns field -> message for every failed rule.
func (d *CreateDTO) Ok() (map[string]string, bool) {
	d.Normalize()

	errs := map[string]string{}
	if err := constants.Validate.Struct(d); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			errs["_"] = err.Error()
			return errs, false
		}
		for _, fe := range verrs {
			errs[fe.Field()] = validationMessage(fe)
		}
	}
	if d.Type != "" && !Type(d.Type).Valid() {
		errs["Type"] = fmt.Sprintf("unknown organization type %q", d.Type)
	}
	return errs, len(errs) == 0
}

func (d *CreateDTO) ToEntity() (*Unit, error) {
	t, err := ParseType(d.Type)
	if err != nil {
		return nil, err
	}
	u := New(d.Name, t, d.ParentID)
	u.Abbreviations = append([]string(nil), d.Abbreviations...)
	u.TOOI = d.TOOI
	u.OIN = d.OIN
	u.RelatedMinistryTOOI = d.RelatedMinistryTOOI
	return u, nil
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "startswith":
		return fmt.Sprintf("must start with %s", tooiPrefix)
	case "numeric", "len":
		return "must be exactly 20 digits"
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
