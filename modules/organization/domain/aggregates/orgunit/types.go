package orgunit

import (
	"fmt"
	"strings"
)

// Type is the structural organization type. The set is closed; free-form registry
// classifications live in Classification.
type Type string

const (
	TypeMinisterie                   Type = "ministerie"
	TypeGemeente                     Type = "gemeente"
	TypeProvincie                    Type = "provincie"
	TypeWaterschap                   Type = "waterschap"
	TypeZelfstandigBestuursorgaan    Type = "zelfstandig_bestuursorgaan"
	TypeRechtspersoonWettelijkeTaak  Type = "rechtspersoon_wettelijke_taak"
	TypeStichting                    Type = "stichting"
	TypeStaatsdeelneming             Type = "staatsdeelneming"
	TypeHoogCollegeVanStaat          Type = "hoog_college_van_staat"
	TypeRechtspraak                  Type = "rechtspraak"
	TypePolitie                      Type = "politie"
	TypeKabinetVanDeKoning           Type = "kabinet_van_de_koning"
	TypePubliekrechtelijkeInstelling Type = "publiekrechtelijke_instelling"
	TypeSpeciaalSectorbedrijf        Type = "speciaal_sectorbedrijf"
	TypeGemeenschappelijkeRegeling   Type = "gemeenschappelijke_regeling"
	TypeCaribischOpenbaarLichaam     Type = "caribisch_openbaar_lichaam"

	TypeDirectoraatGeneraal      Type = "directoraat_generaal"
	TypeDirectie                 Type = "directie"
	TypeAfdeling                 Type = "afdeling"
	TypeAgentschap               Type = "agentschap"
	TypeSharedServiceOrganisatie Type = "shared_service_organisatie"
	TypePlanbureau               Type = "planbureau"
	TypeAdviescollege            Type = "adviescollege"
	TypeInspectie                Type = "inspectie"
	TypeOrganisatieonderdeel     Type = "organisatieonderdeel"
)

type typeConfig struct {
	label string
	root  bool
	// name used by the registry export, empty when the type is never imported
	registryName string
}

var typeConfigs = map[Type]typeConfig{
	TypeMinisterie:                   {label: "Ministerie", root: true, registryName: "Ministerie"},
	TypeGemeente:                     {label: "Gemeente", root: true, registryName: "Gemeente"},
	TypeProvincie:                    {label: "Provincie", root: true, registryName: "Provincie"},
	TypeWaterschap:                   {label: "Waterschap", root: true, registryName: "Waterschap"},
	TypeZelfstandigBestuursorgaan:    {label: "Zelfstandig Bestuursorgaan", root: true, registryName: "Zelfstandig bestuursorgaan"},
	TypeRechtspersoonWettelijkeTaak:  {label: "Rechtspersoon met Wettelijke Taak", root: true},
	TypeStichting:                    {label: "Stichting", root: true},
	TypeStaatsdeelneming:             {label: "Staatsdeelneming", root: true},
	TypeHoogCollegeVanStaat:          {label: "Hoog College van Staat", root: true, registryName: "Hoog College van Staat"},
	TypeRechtspraak:                  {label: "Rechtspraak", root: true, registryName: "Rechtspraak"},
	TypePolitie:                      {label: "Politie", root: true, registryName: "Politie en brandweer"},
	TypeKabinetVanDeKoning:           {label: "Kabinet van de Koning", root: true, registryName: "Kabinet van de Koning"},
	TypePubliekrechtelijkeInstelling: {label: "Publiekrechtelijke Instelling", root: true},
	TypeSpeciaalSectorbedrijf:        {label: "Speciaal Sectorbedrijf", root: true},
	TypeGemeenschappelijkeRegeling:   {label: "Gemeenschappelijke Regeling", root: true, registryName: "Gemeenschappelijke regeling"},
	TypeCaribischOpenbaarLichaam:     {label: "Caribisch Openbaar Lichaam", root: true, registryName: "Caribisch openbaar lichaam"},

	TypeDirectoraatGeneraal:      {label: "Directoraat-Generaal"},
	TypeDirectie:                 {label: "Directie"},
	TypeAfdeling:                 {label: "Afdeling"},
	TypeAgentschap:               {label: "Agentschap", registryName: "Agentschap"},
	TypeSharedServiceOrganisatie: {label: "Shared Service Organisatie"},
	TypePlanbureau:               {label: "Planbureau"},
	TypeAdviescollege:            {label: "Adviescollege", registryName: "Adviescollege"},
	TypeInspectie:                {label: "Inspectie"},
	TypeOrganisatieonderdeel:     {label: "Organisatieonderdeel", registryName: "Organisatieonderdeel"},
}

// allowedParents lists, per child type, the parent types it may be nested under.
// Types without an entry may sit under any parent.
var allowedParents = map[Type][]Type{
	TypeDirectoraatGeneraal: {TypeMinisterie},
	TypeDirectie: {
		TypeDirectoraatGeneraal,
		TypeMinisterie,
		TypeAgentschap,
		TypeGemeente,
		TypeProvincie,
		TypeWaterschap,
	},
	TypeAfdeling: {
		TypeDirectie,
		TypeDirectoraatGeneraal,
		TypeAgentschap,
		TypeGemeente,
		TypeProvincie,
		TypeAfdeling,
	},
	TypeAgentschap:               {TypeMinisterie},
	TypeSharedServiceOrganisatie: {TypeMinisterie},
	TypePlanbureau:               {TypeMinisterie},
	TypeInspectie:                {TypeMinisterie, TypeDirectoraatGeneraal},
	TypeAdviescollege:            {TypeMinisterie, TypeDirectoraatGeneraal},
}

var parentRequired = map[Type]bool{
	TypeDirectoraatGeneraal: true,
	TypeDirectie:            true,
	TypeAfdeling:            true,
}

var orderedTypes = []Type{
	TypeMinisterie, TypeGemeente, TypeProvincie, TypeWaterschap, TypeZelfstandigBestuursorgaan,
	TypeRechtspersoonWettelijkeTaak, TypeStichting, TypeStaatsdeelneming, TypeHoogCollegeVanStaat,
	TypeRechtspraak, TypePolitie, TypeKabinetVanDeKoning, TypePubliekrechtelijkeInstelling,
	TypeSpeciaalSectorbedrijf, TypeGemeenschappelijkeRegeling, TypeCaribischOpenbaarLichaam,
	TypeDirectoraatGeneraal, TypeDirectie, TypeAfdeling, TypeAgentschap, TypeSharedServiceOrganisatie,
	TypePlanbureau, TypeAdviescollege, TypeInspectie, TypeOrganisatieonderdeel,
}

// AllTypes returns every structural type, root types first.
func AllTypes() []Type {
	out := make([]Type, len(orderedTypes))
	copy(out, orderedTypes)
	return out
}

func ParseType(v string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(v)))
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidType, v)
	}
	return t, nil
}

// TypeFromRegistryName maps a registry type name such as "Ministerie" onto the enumeration.
func TypeFromRegistryName(name string) (Type, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", false
	}
	for _, t := range orderedTypes {
		rn := typeConfigs[t].registryName
		if rn != "" && strings.EqualFold(rn, name) {
			return t, true
		}
	}
	return "", false
}

func (t Type) Valid() bool {
	_, ok := typeConfigs[t]
	return ok
}

func (t Type) Label() string {
	if c, ok := typeConfigs[t]; ok {
		return c.label
	}
	return string(t)
}

func (t Type) IsRoot() bool {
	return typeConfigs[t].root
}

func (t Type) RequiresParent() bool {
	return parentRequired[t]
}

// AllowedParents returns nil when the type may be placed under any parent.
func (t Type) AllowedParents() []Type {
	return allowedParents[t]
}

func (t Type) AcceptsParent(parent Type) bool {
	allowed, restricted := allowedParents[t]
	if !restricted {
		return true
	}
	for _, p := range allowed {
		if p == parent {
			return true
		}
	}
	return false
}
