package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/codespace/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")

	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)

	err = s.Migrate(context.Background())
	require.NoError(t, err)

	t.Cleanup(func() { s.Close() })
	return s
}

func newTestProject(t *testing.T, s *SQLiteStore) *models.Project {
	t.Helper()
	p := &models.Project{Name: "demo", Description: "demo project"}
	require.NoError(t, s.CreateProject(context.Background(), p))
	return p
}

func TestNewSQLiteStore_CreatesDirectory(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "subdir", "test.db")

	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(filepath.Join(dir, "subdir"))
	assert.NoError(t, err, "should create parent directory")
}

func TestMigrate_Idempotent(t *testing.T) {
	s := newTestStore(t)
	assert.NoError(t, s.Migrate(context.Background()))
}

// --- Project CRUD ---

func TestProjectCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := newTestProject(t, s)
	assert.NotEmpty(t, p.ID)
	assert.False(t, p.CreatedAt.IsZero())

	got, err := s.GetProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "demo", got.Name)
	assert.Equal(t, "demo project", got.Description)

	byName, err := s.GetProjectByName(ctx, "demo")
	require.NoError(t, err)
	assert.Equal(t, p.ID, byName.ID)

	got.BuildCommand = "make"
	require.NoError(t, s.UpdateProject(ctx, got))
	got, err = s.GetProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "make", got.BuildCommand)

	list, err := s.ListProjects(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, s.DeleteProject(ctx, p.ID))
	_, err = s.GetProject(ctx, p.ID)
	assert.ErrorContains(t, err, "not found")
}

func TestProject_DuplicateName(t *testing.T) {
	s := newTestStore(t)
	newTestProject(t, s)

	err := s.CreateProject(context.Background(), &models.Project{Name: "demo"})
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestProject_NotFound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	assert.ErrorContains(t, s.DeleteProject(ctx, "nope"), "not found")
	assert.ErrorContains(t, s.UpdateProject(ctx, &models.Project{ID: "nope"}), "not found")
}

// --- Entries ---

func TestFolderAndFileCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p := newTestProject(t, s)

	src := &models.Folder{Name: "src", Path: "/"}
	require.NoError(t, s.CreateFolder(ctx, p.ID, src))
	assert.Equal(t, "", src.Path)

	ok, err := s.FolderExists(ctx, p.ID, "src")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.FolderExists(ctx, p.ID, "lib")
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = s.FolderExists(ctx, p.ID, "")
	require.NoError(t, err)
	assert.True(t, ok)

	f := &models.File{Name: "main.py", Path: "src", Content: "print(1)", Language: "python"}
	require.NoError(t, s.CreateFile(ctx, p.ID, f))

	got, err := s.GetFile(ctx, p.ID, f.ID)
	require.NoError(t, err)
	assert.Equal(t, "print(1)", got.Content)

	updated, err := s.UpdateFileContent(ctx, p.ID, f.ID, "print(2)")
	require.NoError(t, err)
	assert.Equal(t, "print(2)", updated.Content)
	assert.False(t, updated.UpdatedAt.Before(got.UpdatedAt))

	folders, err := s.ListFolders(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, folders, 1)
	files, err := s.ListFiles(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, files, 1)

	_, err = s.UpdateFileContent(ctx, p.ID, "nope", "x")
	assert.ErrorContains(t, err, "not found")
}

func TestDuplicateEntries(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p := newTestProject(t, s)

	require.NoError(t, s.CreateFile(ctx, p.ID, &models.File{Name: "a.py"}))
	err := s.CreateFile(ctx, p.ID, &models.File{Name: "a.py"})
	assert.ErrorIs(t, err, ErrAlreadyExists)

	require.NoError(t, s.CreateFolder(ctx, p.ID, &models.Folder{Name: "src"}))
	err = s.CreateFolder(ctx, p.ID, &models.Folder{Name: "src"})
	assert.ErrorIs(t, err, ErrAlreadyExists)

	// Same name in a different folder is fine.
	require.NoError(t, s.CreateFile(ctx, p.ID, &models.File{Name: "a.py", Path: "src"}))
}

func TestDeleteEntry_File(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p := newTestProject(t, s)

	f := &models.File{Name: "a.py"}
	require.NoError(t, s.CreateFile(ctx, p.ID, f))

	res, err := s.DeleteEntry(ctx, p.ID, f.ID)
	require.NoError(t, err)
	assert.Equal(t, DeleteResult{Files: 1}, res)

	_, err = s.DeleteEntry(ctx, p.ID, f.ID)
	assert.ErrorContains(t, err, "not found")
}

func TestDeleteEntry_FolderCascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p := newTestProject(t, s)

	src := &models.Folder{Name: "src"}
	require.NoError(t, s.CreateFolder(ctx, p.ID, src))
	require.NoError(t, s.CreateFolder(ctx, p.ID, &models.Folder{Name: "lib", Path: "src"}))
	require.NoError(t, s.CreateFile(ctx, p.ID, &models.File{Name: "a.py", Path: "src"}))
	require.NoError(t, s.CreateFile(ctx, p.ID, &models.File{Name: "b.py", Path: "src/lib"}))
	// Siblings sharing the prefix must survive.
	require.NoError(t, s.CreateFolder(ctx, p.ID, &models.Folder{Name: "src2"}))
	require.NoError(t, s.CreateFile(ctx, p.ID, &models.File{Name: "c.py", Path: "src2"}))
	require.NoError(t, s.CreateFile(ctx, p.ID, &models.File{Name: "README.md"}))

	res, err := s.DeleteEntry(ctx, p.ID, src.ID)
	require.NoError(t, err)
	assert.Equal(t, DeleteResult{Folders: 2, Files: 2}, res)

	folders, err := s.ListFolders(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, folders, 1)
	assert.Equal(t, "src2", folders[0].Name)

	files, err := s.ListFiles(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

func TestDeleteProject_CascadesEntries(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p := newTestProject(t, s)
	require.NoError(t, s.CreateFile(ctx, p.ID, &models.File{Name: "a.py"}))

	require.NoError(t, s.DeleteProject(ctx, p.ID))
	files, err := s.ListFiles(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestEntriesScopedByProject(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := newTestProject(t, s)
	b := &models.Project{Name: "other"}
	require.NoError(t, s.CreateProject(ctx, b))

	f := &models.File{Name: "a.py"}
	require.NoError(t, s.CreateFile(ctx, a.ID, f))

	_, err := s.GetFile(ctx, b.ID, f.ID)
	assert.ErrorContains(t, err, "not found")
	_, err = s.DeleteEntry(ctx, b.ID, f.ID)
	assert.ErrorContains(t, err, "not found")
}
