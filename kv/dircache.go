package kv

import (
	"sync"

	"github.com/recordgraph/rg/tuple"
)

// DirectoryCache maps a type/index name to its resolved Subspace. It is
// insert-only during a type's lifetime (spec.md §5 "Shared resources":
// "Directory cache ... guarded by a mutex; insert-only during a type's
// lifetime"). Renamed or removed directories require constructing a
// new DirectoryCache (and hence a new Container) — see DESIGN.md's
// resolution of the §9 Open Question.
type DirectoryCache struct {
	mu    sync.Mutex
	paths map[string]Subspace
	root  Subspace
}

// NewDirectoryCache returns a cache rooted at root.
func NewDirectoryCache(root Subspace) *DirectoryCache {
	return &DirectoryCache{paths: make(map[string]Subspace), root: root}
}

// CreateOrOpen returns the subspace for name, creating it deterministically
// from the root on first use (mirrors the KV collaborator's directory
// layer `createOrOpen(path, type)`, spec.md §6.1).
func (d *DirectoryCache) CreateOrOpen(category, name string) Subspace {
	key := category + "/" + name
	d.mu.Lock()
	defer d.mu.Unlock()
	if sub, ok := d.paths[key]; ok {
		return sub
	}
	sub := d.root.Sub(tuple.Str(category), tuple.Str(name))
	d.paths[key] = sub
	return sub
}
