package services

import "fmt"

// SyncResult counts the outcome of a (partial) sync. Results of sibling subtrees are
// folded with Add.
type SyncResult struct {
	Created   int      `json:"created" yaml:"created"`
	Updated   int      `json:"updated" yaml:"updated"`
	Unchanged int      `json:"unchanged" yaml:"unchanged"`
	Errors    []string `json:"errors" yaml:"errors"`
}

// Add returns the component-wise sum; errors keep their order, r's first.
func (r SyncResult) Add(other SyncResult) SyncResult {
	out := SyncResult{
		Created:   r.Created + other.Created,
		Updated:   r.Updated + other.Updated,
		Unchanged: r.Unchanged + other.Unchanged,
	}
	if len(r.Errors)+len(other.Errors) > 0 {
		out.Errors = make([]string, 0, len(r.Errors)+len(other.Errors))
		out.Errors = append(out.Errors, r.Errors...)
		out.Errors = append(out.Errors, other.Errors...)
	}
	return out
}

func (r SyncResult) HasChanges() bool { return r.Created > 0 || r.Updated > 0 }

func (r SyncResult) HasErrors() bool { return len(r.Errors) > 0 }

// Total is the number of nodes that were processed without error.
func (r SyncResult) Total() int { return r.Created + r.Updated + r.Unchanged }

func (r SyncResult) String() string {
	return fmt.Sprintf("%d created, %d updated, %d unchanged, %d errors", r.Created, r.Updated, r.Unchanged, len(r.Errors))
}
