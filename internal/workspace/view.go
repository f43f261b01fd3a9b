package workspace

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Fetcher loads a full index snapshot for a project.
type Fetcher interface {
	FetchWorkspace(ctx context.Context, projectID string) (*Index, error)
}

// View is a read-through cache of one project's index and its derived tree.
// It is only ever replaced wholesale by Refresh, never patched in place, so
// readers may see a stale tree until a refresh completes.
type View struct {
	fetcher   Fetcher
	projectID string
	log       *zap.Logger

	mu         sync.RWMutex
	index      *Index
	tree       []*Node
	generation uint64
	started    uint64 // fetches begun
	installed  uint64 // sequence of the fetch behind index
	subs       []func()
}

// NewView creates an empty view. Call Refresh to load data.
func NewView(f Fetcher, projectID string, log *zap.Logger) *View {
	if log == nil {
		log = zap.NewNop()
	}
	return &View{
		fetcher:   f,
		projectID: projectID,
		log:       log,
		index:     NewIndex(nil, nil),
	}
}

// ProjectID returns the project this view mirrors.
func (v *View) ProjectID() string {
	return v.projectID
}

// Refresh refetches the index and rebuilds the tree. On failure the previous
// snapshot stays in place. When refreshes overlap, a fetch that started
// before the installed one is discarded.
func (v *View) Refresh(ctx context.Context) error {
	v.mu.Lock()
	v.started++
	seq := v.started
	v.mu.Unlock()

	idx, err := v.fetcher.FetchWorkspace(ctx, v.projectID)
	if err != nil {
		return fmt.Errorf("refresh workspace: %w", err)
	}
	if idx == nil {
		idx = NewIndex(nil, nil)
	}
	tree := Build(idx, v.log)

	v.mu.Lock()
	if seq < v.installed {
		v.mu.Unlock()
		v.log.Debug("discarding stale workspace snapshot",
			zap.String("project", v.projectID),
			zap.Uint64("seq", seq),
			zap.Uint64("installed", v.installed),
		)
		return nil
	}
	v.installed = seq
	v.index = idx
	v.tree = tree
	v.generation++
	subs := append([]func(){}, v.subs...)
	v.mu.Unlock()

	v.log.Debug("workspace refreshed",
		zap.String("project", v.projectID),
		zap.Int("entries", idx.Len()),
	)
	for _, fn := range subs {
		fn()
	}
	return nil
}

// Index returns the current snapshot.
func (v *View) Index() *Index {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.index
}

// Tree returns the tree derived from the current snapshot. Callers must not
// modify it.
func (v *View) Tree() []*Node {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.tree
}

// Generation counts successful refreshes.
func (v *View) Generation() uint64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.generation
}

// Subscribe registers fn to run after every successful refresh.
func (v *View) Subscribe(fn func()) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.subs = append(v.subs, fn)
}
