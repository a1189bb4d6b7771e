package services

import (
	"strings"

	"github.com/iota-uz/orgsync/modules/organization/domain/aggregates/orgunit"
	"github.com/iota-uz/orgsync/modules/organization/infrastructure/registry"
)

var namePrefixTypes = []struct {
	prefix string
	typ    orgunit.Type
}{
	{"Directoraat-generaal", orgunit.TypeDirectoraatGeneraal},
	{"DG ", orgunit.TypeDirectoraatGeneraal},
	{"Directie", orgunit.TypeDirectie},
	{"Afdeling", orgunit.TypeAfdeling},
}

func inferTypeFromName(name string) (orgunit.Type, bool) {
	for _, p := range namePrefixTypes {
		if len(name) >= len(p.prefix) && strings.EqualFold(name[:len(p.prefix)], p.prefix) {
			return p.typ, true
		}
	}
	return "", false
}

// deriveType picks the structural type a new unit is created with: the first
// specific registry type, then (optionally) the name-based guess, then the generic
// organisatieonderdeel. Candidates that cannot sit at the given placement are skipped.
func deriveType(node registry.Node, at placement, infer bool) orgunit.Type {
	candidates := make([]orgunit.Type, 0, len(node.TypeNames)+2)
	for _, name := range node.TypeNames {
		t, ok := orgunit.TypeFromRegistryName(name)
		if ok && t != orgunit.TypeOrganisatieonderdeel {
			candidates = append(candidates, t)
		}
	}
	if infer && at.nested {
		if t, ok := inferTypeFromName(node.Name); ok {
			candidates = append(candidates, t)
		}
	}
	candidates = append(candidates, orgunit.TypeOrganisatieonderdeel)

	for _, t := range candidates {
		if orgunit.CheckPlacement(t, at.typ, at.nested) == nil {
			return t
		}
	}
	return candidates[0]
}
