package services

import (
	"context"
	"sync"

	"github.com/iota-uz/orgsync/modules/organization/domain/aggregates/orgunit"
	"github.com/iota-uz/orgsync/pkg/composables"
)

// classificationCache keeps the shared type vocabulary for one sync run so each
// name is resolved against storage once.
type classificationCache struct {
	mu      sync.RWMutex
	entries map[string]orgunit.Classification
}

func newClassificationCache() *classificationCache {
	return &classificationCache{entries: make(map[string]orgunit.Classification)}
}

func (c *classificationCache) Get(name string) (orgunit.Classification, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.entries[name]
	return v, ok
}

func (c *classificationCache) Set(cs ...orgunit.Classification) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, cl := range cs {
		if cl.Name == "" {
			continue
		}
		c.entries[cl.Name] = cl
	}
}

// Resolve returns the classifications for names (already normalized), creating the
// missing ones. Entries are cached only after storage accepted them.
func (c *classificationCache) Resolve(ctx context.Context, repo orgunit.Repository, names []string) ([]orgunit.Classification, error) {
	out := make([]orgunit.Classification, 0, len(names))
	var missing []string
	for _, name := range names {
		if cl, ok := c.Get(name); ok {
			recordCacheRequest("classification", true)
			out = append(out, cl)
			continue
		}
		recordCacheRequest("classification", false)
		missing = append(missing, name)
	}
	if len(missing) == 0 {
		return out, nil
	}

	var created []orgunit.Classification
	err := composables.InSavepoint(ctx, func(ctx context.Context) error {
		var err error
		created, err = repo.EnsureClassifications(ctx, missing)
		return err
	})
	if err != nil {
		return nil, err
	}
	c.Set(created...)
	return append(out, created...), nil
}
