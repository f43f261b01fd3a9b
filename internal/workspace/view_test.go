package workspace

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/codespace/internal/models"
)

type fakeFetcher struct {
	idx   *Index
	err   error
	calls int
}

func (f *fakeFetcher) FetchWorkspace(_ context.Context, _ string) (*Index, error) {
	f.calls++
	return f.idx, f.err
}

func TestView_Refresh(t *testing.T) {
	f := &fakeFetcher{idx: NewIndex([]models.Folder{{ID: "f1", Name: "src"}}, nil)}
	v := NewView(f, "p1", nil)

	notified := 0
	v.Subscribe(func() { notified++ })

	assert.Empty(t, v.Tree())
	require.NoError(t, v.Refresh(context.Background()))
	assert.Equal(t, uint64(1), v.Generation())
	assert.Equal(t, 1, notified)
	assert.Equal(t, []string{"src"}, names(v.Tree()))
	assert.Equal(t, "p1", v.ProjectID())
}

func TestView_RefreshFailureKeepsSnapshot(t *testing.T) {
	f := &fakeFetcher{idx: NewIndex([]models.Folder{{ID: "f1", Name: "src"}}, nil)}
	v := NewView(f, "p1", nil)
	require.NoError(t, v.Refresh(context.Background()))

	boom := errors.New("boom")
	f.err = boom
	f.idx = nil
	err := v.Refresh(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, uint64(1), v.Generation())
	assert.Equal(t, []string{"src"}, names(v.Tree()))
}

// gatedFetcher answers each call with its own index, holding a call open
// until its gate is closed.
type gatedFetcher struct {
	mu      sync.Mutex
	calls   int
	results []*Index
	gates   []chan struct{}
	entered chan int
}

func (f *gatedFetcher) FetchWorkspace(_ context.Context, _ string) (*Index, error) {
	f.mu.Lock()
	n := f.calls
	f.calls++
	f.mu.Unlock()
	f.entered <- n
	<-f.gates[n]
	return f.results[n], nil
}

func TestView_OverlappingRefreshKeepsNewest(t *testing.T) {
	f := &gatedFetcher{
		results: []*Index{
			NewIndex(nil, nil),
			NewIndex(nil, []models.File{{ID: "x1", Name: "a.py"}}),
		},
		gates:   []chan struct{}{make(chan struct{}), make(chan struct{})},
		entered: make(chan int, 2),
	}
	v := NewView(f, "p1", nil)
	ctx := context.Background()

	first := make(chan error, 1)
	go func() { first <- v.Refresh(ctx) }()
	require.Equal(t, 0, <-f.entered)

	second := make(chan error, 1)
	go func() { second <- v.Refresh(ctx) }()
	require.Equal(t, 1, <-f.entered)

	close(f.gates[1])
	require.NoError(t, <-second)
	assert.Equal(t, []string{"a.py"}, names(v.Tree()))

	close(f.gates[0])
	require.NoError(t, <-first)
	assert.Equal(t, []string{"a.py"}, names(v.Tree()))
	assert.Equal(t, uint64(1), v.Generation())
}

func TestView_SequentialRefreshesInstallEach(t *testing.T) {
	f := &fakeFetcher{idx: NewIndex(nil, nil)}
	v := NewView(f, "p1", nil)
	require.NoError(t, v.Refresh(context.Background()))

	f.idx = NewIndex(nil, []models.File{{ID: "x1", Name: "a.py"}})
	require.NoError(t, v.Refresh(context.Background()))
	assert.Equal(t, []string{"a.py"}, names(v.Tree()))
	assert.Equal(t, uint64(2), v.Generation())
}
