// Package mutation is the single path through which workspace entries are
// created, deleted or uploaded. Every successful mutation refreshes the
// workspace view exactly once; the tree is never edited locally.
package mutation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/joescharf/codespace/internal/backend"
	"github.com/joescharf/codespace/internal/language"
	"github.com/joescharf/codespace/internal/models"
	"github.com/joescharf/codespace/internal/pathcodec"
	"github.com/joescharf/codespace/internal/workspace"
)

// ErrCancelled is returned when the user declines a delete confirmation.
var ErrCancelled = errors.New("cancelled")

// Blob is one file in an upload batch.
type Blob = backend.Blob

// Backend is the subset of the service client the gateway needs.
type Backend interface {
	CreateEntry(ctx context.Context, projectID string, req backend.CreateEntryRequest) (models.Entry, error)
	DeleteEntry(ctx context.Context, projectID, entryID string) error
	Upload(ctx context.Context, projectID, folderPath string, blobs []backend.Blob) (*backend.UploadResult, error)
	BuildCommand(ctx context.Context, projectID string) (string, error)
	SetBuildCommand(ctx context.Context, projectID, command string) error
}

// Confirmer is asked before an entry is deleted. Returning false cancels the
// delete before any request is sent.
type Confirmer func(models.Entry) bool

// CreateRequest describes a new file or folder.
type CreateRequest struct {
	Kind       models.EntryKind
	Name       string
	ParentPath string
	Content    string
	Language   string
}

// Gateway applies mutations for one project.
type Gateway struct {
	client Backend
	view   *workspace.View
	log    *zap.Logger
}

// New creates a gateway that refreshes view after each successful mutation.
func New(client Backend, view *workspace.View, log *zap.Logger) *Gateway {
	if log == nil {
		log = zap.NewNop()
	}
	return &Gateway{client: client, view: view, log: log}
}

// CreateEntry creates a file or folder under req.ParentPath.
func (g *Gateway) CreateEntry(ctx context.Context, req CreateRequest) (models.Entry, error) {
	if err := validateName(req.Name); err != nil {
		return models.Entry{}, err
	}
	if !req.Kind.Valid() {
		return models.Entry{}, &backend.ValidationError{Field: "type", Reason: fmt.Sprintf("unknown entry kind %q", req.Kind)}
	}

	body := backend.CreateEntryRequest{
		Type: req.Kind,
		Name: req.Name,
		Path: pathcodec.Clean(req.ParentPath),
	}
	if req.Kind == models.KindFile {
		body.Content = req.Content
		body.Language = req.Language
		if body.Language == "" {
			body.Language = language.Detect(req.Name)
		}
	}

	entry, err := g.client.CreateEntry(ctx, g.view.ProjectID(), body)
	if err != nil {
		return models.Entry{}, err
	}
	g.log.Info("entry created",
		zap.String("id", entry.ID()),
		zap.String("kind", string(req.Kind)),
		zap.String("path", pathcodec.Join(body.Path, body.Name)),
	)
	return entry, g.refresh(ctx)
}

// DeleteEntry deletes the entry with the given id after confirm approves it.
// A nil confirm counts as declined. Deleting a folder removes its
// descendants on the backend.
func (g *Gateway) DeleteEntry(ctx context.Context, id string, confirm Confirmer) error {
	entry, ok := g.view.Index().Entry(id)
	if !ok {
		return &backend.ValidationError{Field: "id", Reason: fmt.Sprintf("no entry with id %q", id)}
	}
	if confirm == nil || !confirm(entry) {
		return ErrCancelled
	}

	if err := g.client.DeleteEntry(ctx, g.view.ProjectID(), id); err != nil {
		return err
	}
	g.log.Info("entry deleted",
		zap.String("id", id),
		zap.String("kind", string(entry.Kind)),
		zap.String("path", pathcodec.Join(entry.Path(), entry.Name())),
	)
	return g.refresh(ctx)
}

// UploadEntries sends all blobs in one request into targetFolderPath. If the
// backend rejects any of them the whole call fails with one aggregate
// rejection. The view is still refreshed when anything was accepted, so the
// tree shows what the backend actually stored.
func (g *Gateway) UploadEntries(ctx context.Context, blobs []Blob, targetFolderPath string) (*backend.UploadResult, error) {
	if len(blobs) == 0 {
		return nil, &backend.ValidationError{Field: "files", Reason: "nothing to upload"}
	}
	for _, b := range blobs {
		if err := validateName(b.Name); err != nil {
			return nil, err
		}
	}

	target := pathcodec.Clean(targetFolderPath)
	res, err := g.client.Upload(ctx, g.view.ProjectID(), target, blobs)
	if err != nil {
		return nil, err
	}
	if len(res.Rejected) > 0 {
		msg := fmt.Sprintf("upload failed: %d of %d files rejected", len(res.Rejected), len(blobs))
		if len(res.Errors) > 0 {
			msg += ": " + strings.Join(res.Errors, "; ")
		}
		g.log.Warn("upload rejected", zap.Strings("rejected", res.Rejected))
		if len(res.Accepted) > 0 {
			// Some files were stored, so the backend changed underneath us.
			_ = g.refresh(ctx)
		}
		return res, &backend.ServerRejection{Message: msg}
	}

	g.log.Info("files uploaded", zap.Int("count", len(blobs)), zap.String("path", target))
	return res, g.refresh(ctx)
}

// BuildCommand returns the project's stored build command.
func (g *Gateway) BuildCommand(ctx context.Context) (string, error) {
	return g.client.BuildCommand(ctx, g.view.ProjectID())
}

// SetBuildCommand stores the project's build command. The workspace tree is
// unaffected, so no refresh follows.
func (g *Gateway) SetBuildCommand(ctx context.Context, command string) error {
	return g.client.SetBuildCommand(ctx, g.view.ProjectID(), command)
}

func (g *Gateway) refresh(ctx context.Context) error {
	if err := g.view.Refresh(ctx); err != nil {
		g.log.Warn("refresh after mutation failed", zap.Error(err))
		return err
	}
	return nil
}

func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return &backend.ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if strings.Contains(name, pathcodec.Separator) {
		return &backend.ValidationError{Field: "name", Reason: "must not contain \"/\""}
	}
	return nil
}
