package mutation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/codespace/internal/backend"
	"github.com/joescharf/codespace/internal/models"
	"github.com/joescharf/codespace/internal/workspace"
)

// fakeBackend keeps an in-memory index and doubles as the view's fetcher.
type fakeBackend struct {
	idx       *workspace.Index
	fetches   int
	requests  int
	createErr error
	deleteErr error
	upload    *backend.UploadResult
	lastReq   backend.CreateEntryRequest
	lastPath  string
	buildCmd  string
	nextID    int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{idx: workspace.NewIndex(nil, nil)}
}

func (f *fakeBackend) FetchWorkspace(_ context.Context, _ string) (*workspace.Index, error) {
	f.fetches++
	folders := make([]models.Folder, 0, len(f.idx.Folders))
	for _, v := range f.idx.Folders {
		folders = append(folders, v)
	}
	files := make([]models.File, 0, len(f.idx.Files))
	for _, v := range f.idx.Files {
		files = append(files, v)
	}
	return workspace.NewIndex(folders, files), nil
}

func (f *fakeBackend) CreateEntry(_ context.Context, _ string, req backend.CreateEntryRequest) (models.Entry, error) {
	f.requests++
	f.lastReq = req
	if f.createErr != nil {
		return models.Entry{}, f.createErr
	}
	f.nextID++
	id := string(rune('a'+f.nextID-1)) + "1"
	if req.Type == models.KindFolder {
		rec := models.Folder{ID: id, Name: req.Name, Path: req.Path}
		f.idx.Folders[id] = rec
		return models.Entry{Kind: models.KindFolder, Folder: &rec}, nil
	}
	rec := models.File{ID: id, Name: req.Name, Path: req.Path, Content: req.Content, Language: req.Language}
	f.idx.Files[id] = rec
	return models.Entry{Kind: models.KindFile, File: &rec}, nil
}

func (f *fakeBackend) DeleteEntry(_ context.Context, _ string, id string) error {
	f.requests++
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.idx.Folders, id)
	delete(f.idx.Files, id)
	return nil
}

func (f *fakeBackend) Upload(_ context.Context, _ string, path string, blobs []backend.Blob) (*backend.UploadResult, error) {
	f.requests++
	f.lastPath = path
	if f.upload != nil {
		return f.upload, nil
	}
	res := &backend.UploadResult{}
	for _, b := range blobs {
		res.Accepted = append(res.Accepted, b.Name)
	}
	return res, nil
}

func (f *fakeBackend) BuildCommand(context.Context, string) (string, error) {
	return f.buildCmd, nil
}

func (f *fakeBackend) SetBuildCommand(_ context.Context, _ string, cmd string) error {
	f.buildCmd = cmd
	return nil
}

func setup(t *testing.T) (*Gateway, *fakeBackend, *workspace.View) {
	t.Helper()
	fb := newFakeBackend()
	view := workspace.NewView(fb, "p1", nil)
	require.NoError(t, view.Refresh(context.Background()))
	fb.fetches = 0
	return New(fb, view, nil), fb, view
}

func TestCreateEntry_RootFile(t *testing.T) {
	g, fb, view := setup(t)

	e, err := g.CreateEntry(context.Background(), CreateRequest{Kind: models.KindFile, Name: "a.py"})
	require.NoError(t, err)
	assert.Equal(t, models.KindFile, e.Kind)
	assert.Equal(t, 1, fb.fetches)
	assert.Equal(t, "python", fb.lastReq.Language)

	tree := view.Tree()
	require.Len(t, tree, 1)
	assert.Equal(t, "a.py", tree[0].Name)
	assert.Equal(t, 0, tree[0].Depth)
}

func TestCreateEntry_FolderOmitsContent(t *testing.T) {
	g, fb, _ := setup(t)

	_, err := g.CreateEntry(context.Background(), CreateRequest{Kind: models.KindFolder, Name: "src", ParentPath: "/", Content: "ignored"})
	require.NoError(t, err)
	assert.Empty(t, fb.lastReq.Content)
	assert.Empty(t, fb.lastReq.Language)
	assert.Equal(t, "", fb.lastReq.Path)
}

func TestCreateEntry_Validation(t *testing.T) {
	tests := []struct {
		name string
		req  CreateRequest
	}{
		{"empty name", CreateRequest{Kind: models.KindFile, Name: ""}},
		{"blank name", CreateRequest{Kind: models.KindFile, Name: "   "}},
		{"slash in name", CreateRequest{Kind: models.KindFile, Name: "a/b.py"}},
		{"unknown kind", CreateRequest{Kind: "link", Name: "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, fb, _ := setup(t)
			_, err := g.CreateEntry(context.Background(), tt.req)
			require.Error(t, err)
			assert.True(t, backend.IsValidation(err))
			assert.Equal(t, 0, fb.requests)
			assert.Equal(t, 0, fb.fetches)
		})
	}
}

func TestCreateEntry_RejectionNoRefresh(t *testing.T) {
	g, fb, _ := setup(t)
	fb.createErr = &backend.ServerRejection{Status: 409, Message: "already exists"}

	_, err := g.CreateEntry(context.Background(), CreateRequest{Kind: models.KindFile, Name: "a.py"})
	require.Error(t, err)
	assert.Equal(t, "already exists", err.Error())
	assert.Equal(t, 0, fb.fetches)
}

func TestDeleteEntry_Confirmed(t *testing.T) {
	g, fb, view := setup(t)
	e, err := g.CreateEntry(context.Background(), CreateRequest{Kind: models.KindFile, Name: "a.py"})
	require.NoError(t, err)
	fb.fetches = 0

	var asked models.Entry
	err = g.DeleteEntry(context.Background(), e.ID(), func(entry models.Entry) bool {
		asked = entry
		return true
	})
	require.NoError(t, err)
	assert.Equal(t, "a.py", asked.Name())
	assert.Equal(t, 1, fb.fetches)
	assert.Empty(t, view.Tree())
}

func TestDeleteEntry_Declined(t *testing.T) {
	g, fb, view := setup(t)
	e, err := g.CreateEntry(context.Background(), CreateRequest{Kind: models.KindFile, Name: "a.py"})
	require.NoError(t, err)
	fb.fetches, fb.requests = 0, 0

	err = g.DeleteEntry(context.Background(), e.ID(), func(models.Entry) bool { return false })
	assert.ErrorIs(t, err, ErrCancelled)
	assert.Equal(t, 0, fb.requests)
	assert.Equal(t, 0, fb.fetches)
	assert.Len(t, view.Tree(), 1)
}

func approve(models.Entry) bool { return true }

func TestDeleteEntry_NilConfirmerDeclines(t *testing.T) {
	g, fb, view := setup(t)
	_, err := g.CreateEntry(context.Background(), CreateRequest{Kind: models.KindFile, Name: "a.py"})
	require.NoError(t, err)
	fb.requests, fb.fetches = 0, 0

	err = g.DeleteEntry(context.Background(), "a1", nil)
	assert.ErrorIs(t, err, ErrCancelled)
	assert.Equal(t, 0, fb.requests)
	assert.Equal(t, 0, fb.fetches)
	assert.Len(t, view.Tree(), 1)
}

func TestDeleteEntry_UnknownID(t *testing.T) {
	g, fb, _ := setup(t)
	err := g.DeleteEntry(context.Background(), "nope", approve)
	assert.True(t, backend.IsValidation(err))
	assert.Equal(t, 0, fb.requests)
}

func TestDeleteEntry_TransportFailure(t *testing.T) {
	g, fb, _ := setup(t)
	_, err := g.CreateEntry(context.Background(), CreateRequest{Kind: models.KindFile, Name: "a.py"})
	require.NoError(t, err)
	fb.fetches = 0
	fb.deleteErr = &backend.TransportFailure{Op: "delete entry", Err: errors.New("connection refused")}

	err = g.DeleteEntry(context.Background(), "a1", approve)
	assert.True(t, backend.IsTransport(err))
	assert.Equal(t, 0, fb.fetches)
}

func TestUploadEntries(t *testing.T) {
	g, fb, _ := setup(t)

	res, err := g.UploadEntries(context.Background(), []Blob{{Name: "a.py"}, {Name: "b.py"}}, "/src/")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.py", "b.py"}, res.Accepted)
	assert.Equal(t, "src", fb.lastPath)
	assert.Equal(t, 1, fb.fetches)
}

func TestUploadEntries_Partial(t *testing.T) {
	g, fb, _ := setup(t)
	fb.upload = &backend.UploadResult{
		Accepted: []string{"a.py"},
		Rejected: []string{"b.py"},
		Errors:   []string{"b.py: already exists"},
	}

	_, err := g.UploadEntries(context.Background(), []Blob{{Name: "a.py"}, {Name: "b.py"}}, "")
	require.Error(t, err)
	sr, ok := backend.AsRejection(err)
	require.True(t, ok)
	assert.Equal(t, "upload failed: 1 of 2 files rejected: b.py: already exists", sr.Message)
	assert.Equal(t, 1, fb.fetches)
}

func TestUploadEntries_AllRejectedNoRefresh(t *testing.T) {
	g, fb, _ := setup(t)
	fb.upload = &backend.UploadResult{Rejected: []string{"a.py"}}

	_, err := g.UploadEntries(context.Background(), []Blob{{Name: "a.py"}}, "")
	require.Error(t, err)
	assert.Equal(t, 0, fb.fetches)
}

func TestUploadEntries_Validation(t *testing.T) {
	g, fb, _ := setup(t)

	_, err := g.UploadEntries(context.Background(), nil, "")
	assert.True(t, backend.IsValidation(err))

	_, err = g.UploadEntries(context.Background(), []Blob{{Name: ""}}, "")
	assert.True(t, backend.IsValidation(err))
	assert.Equal(t, 0, fb.requests)
}

func TestBuildCommand(t *testing.T) {
	g, fb, _ := setup(t)
	require.NoError(t, g.SetBuildCommand(context.Background(), "make all"))
	got, err := g.BuildCommand(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "make all", got)
	assert.Equal(t, 0, fb.fetches)
}
