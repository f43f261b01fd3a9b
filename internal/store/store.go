package store

import (
	"context"
	"errors"

	"github.com/joescharf/codespace/internal/models"
)

// ErrAlreadyExists is wrapped by errors for entries or projects whose
// identity collides with an existing one.
var ErrAlreadyExists = errors.New("already exists")

// DeleteResult counts what a delete removed.
type DeleteResult struct {
	Folders int64 `json:"folders"`
	Files   int64 `json:"files"`
}

// Store defines the persistence interface for codespace.
type Store interface {
	// Projects
	CreateProject(ctx context.Context, p *models.Project) error
	GetProject(ctx context.Context, id string) (*models.Project, error)
	GetProjectByName(ctx context.Context, name string) (*models.Project, error)
	ListProjects(ctx context.Context) ([]*models.Project, error)
	UpdateProject(ctx context.Context, p *models.Project) error
	DeleteProject(ctx context.Context, id string) error

	// Folders
	CreateFolder(ctx context.Context, projectID string, f *models.Folder) error
	ListFolders(ctx context.Context, projectID string) ([]*models.Folder, error)
	FolderExists(ctx context.Context, projectID, fullPath string) (bool, error)

	// Files
	CreateFile(ctx context.Context, projectID string, f *models.File) error
	GetFile(ctx context.Context, projectID, id string) (*models.File, error)
	ListFiles(ctx context.Context, projectID string) ([]*models.File, error)
	UpdateFileContent(ctx context.Context, projectID, id, content string) (*models.File, error)

	// DeleteEntry removes a file, or a folder together with everything
	// beneath it.
	DeleteEntry(ctx context.Context, projectID, id string) (DeleteResult, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
