package workspace

import "sync"

// Expansion tracks which folder ids are expanded. The zero value is ready to
// use; an absent id means collapsed. It holds no data and never talks to the
// backend.
type Expansion struct {
	mu  sync.RWMutex
	ids map[string]struct{}
}

// NewExpansion returns an expansion set with the given folders expanded.
func NewExpansion(ids ...string) *Expansion {
	e := &Expansion{}
	for _, id := range ids {
		e.Expand(id)
	}
	return e
}

// IsExpanded reports whether the folder is expanded.
func (e *Expansion) IsExpanded(id string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.ids[id]
	return ok
}

// Expand marks the folder expanded.
func (e *Expansion) Expand(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ids == nil {
		e.ids = make(map[string]struct{})
	}
	e.ids[id] = struct{}{}
}

// Collapse marks the folder collapsed.
func (e *Expansion) Collapse(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.ids, id)
}

// Toggle flips the folder's state and returns the new one.
func (e *Expansion) Toggle(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.ids[id]; ok {
		delete(e.ids, id)
		return false
	}
	if e.ids == nil {
		e.ids = make(map[string]struct{})
	}
	e.ids[id] = struct{}{}
	return true
}

// Len returns the number of expanded folders.
func (e *Expansion) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.ids)
}

// Reset collapses everything.
func (e *Expansion) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ids = nil
}

// Prune forgets ids that no longer name a folder in idx.
func (e *Expansion) Prune(idx *Index) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for id := range e.ids {
		if _, ok := idx.Folder(id); !ok {
			delete(e.ids, id)
		}
	}
}

// Visible flattens the forest in display order, descending only into
// expanded folders.
func Visible(nodes []*Node, exp *Expansion) []*Node {
	var out []*Node
	Walk(nodes, func(n *Node) bool {
		out = append(out, n)
		return n.IsFolder() && exp != nil && exp.IsExpanded(n.ID)
	})
	return out
}
