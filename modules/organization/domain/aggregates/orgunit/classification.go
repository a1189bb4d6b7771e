package orgunit

import (
	"slices"
	"strings"

	"github.com/google/uuid"
)

// Classification is an entry of the open type vocabulary published by the registry
// ("Ministerie", "Organisatieonderdeel", ...). Units may carry several.
type Classification struct {
	ID   uuid.UUID
	Name string
}

// ClassificationNames returns the sorted, de-duplicated names.
func ClassificationNames(cs []Classification) []string {
	names := make([]string, 0, len(cs))
	for _, c := range cs {
		names = append(names, c.Name)
	}
	return NormalizeNames(names)
}

// NormalizeNames trims, drops empties, sorts and de-duplicates.
func NormalizeNames(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n != "" {
			out = append(out, n)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
