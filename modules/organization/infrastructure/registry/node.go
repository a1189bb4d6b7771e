package registry

import "strings"

// Node is one organization of a parsed registry document together with its nested units.
type Node struct {
	Name                string
	SystemID            string
	Label               string
	TypeNames           []string
	TOOI                string
	Abbreviations       []string
	SourceURL           string
	RelatedMinistryTOOI string
	Children            []Node
}

// PrimaryType returns the first declared type name, or "" when the node has none.
func (n Node) PrimaryType() string {
	if len(n.TypeNames) == 0 {
		return ""
	}
	return n.TypeNames[0]
}

func (n Node) HasType(name string) bool {
	for _, t := range n.TypeNames {
		if strings.EqualFold(t, name) {
			return true
		}
	}
	return false
}

// Count returns the number of nodes in the subtree rooted at n, n included.
func (n Node) Count() int {
	total := 1
	for _, c := range n.Children {
		total += c.Count()
	}
	return total
}

// CountAll sums Count over a forest.
func CountAll(nodes []Node) int {
	total := 0
	for _, n := range nodes {
		total += n.Count()
	}
	return total
}
