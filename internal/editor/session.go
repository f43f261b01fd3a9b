// Package editor holds the single open file, its edit buffer and the
// Empty/Clean/Dirty save state.
package editor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/joescharf/codespace/internal/models"
	"github.com/joescharf/codespace/internal/mutation"
)

// ErrNoFileOpen is returned by operations that need an open file.
var ErrNoFileOpen = errors.New("no file open")

// State is the save state of the session.
type State int

const (
	Empty State = iota
	Clean
	Dirty
)

func (s State) String() string {
	switch s {
	case Empty:
		return "empty"
	case Clean:
		return "clean"
	case Dirty:
		return "dirty"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Updater persists file content.
type Updater interface {
	UpdateContent(ctx context.Context, projectID, fileID, content string) (*models.File, error)
}

// Creator creates entries and refreshes the workspace afterwards.
type Creator interface {
	CreateEntry(ctx context.Context, req mutation.CreateRequest) (models.Entry, error)
}

// Refresher reloads the workspace index.
type Refresher interface {
	ProjectID() string
	Refresh(ctx context.Context) error
}

// Session is the editor for one project. It is safe for concurrent use.
type Session struct {
	updater   Updater
	creator   Creator
	workspace Refresher
	log       *zap.Logger

	mu     sync.Mutex
	state  State
	saved  models.File
	buffer string
	rev    uint64
}

// New creates an empty session.
func New(updater Updater, creator Creator, ws Refresher, log *zap.Logger) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	return &Session{updater: updater, creator: creator, workspace: ws, log: log}
}

// State returns the current save state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Current returns the open file as last saved, and false when nothing is
// open.
func (s *Session) Current() (models.File, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saved, s.state != Empty
}

// Buffer returns the edit buffer.
func (s *Session) Buffer() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buffer
}

// Open loads f into the buffer. Any unsaved edits are dropped; discarded
// reports whether that happened.
func (s *Session) Open(f models.File) (discarded bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	discarded = s.state == Dirty
	if discarded {
		s.log.Info("discarding unsaved edits", zap.String("file", s.saved.ID))
	}
	s.saved = f
	s.buffer = f.Content
	s.state = Clean
	s.rev++
	return discarded
}

// Edit replaces the buffer. Any edit marks the session dirty, even one that
// restores the saved text.
func (s *Session) Edit(content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Empty {
		return ErrNoFileOpen
	}
	s.buffer = content
	s.state = Dirty
	s.rev++
	return nil
}

// Save writes a dirty buffer back to the open file. Saving a clean file does
// nothing. On failure the session stays dirty. After a successful write the
// workspace is refreshed; a refresh failure is returned but the file counts
// as saved.
func (s *Session) Save(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case Empty:
		s.mu.Unlock()
		return ErrNoFileOpen
	case Clean:
		s.mu.Unlock()
		return nil
	}
	id, content, rev := s.saved.ID, s.buffer, s.rev
	s.mu.Unlock()

	updated, err := s.updater.UpdateContent(ctx, s.workspace.ProjectID(), id, content)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.state != Empty && s.saved.ID == id {
		if updated != nil {
			s.saved = *updated
		}
		s.saved.Content = content
		// Edits made while the request was in flight keep the session dirty.
		if s.rev == rev {
			s.state = Clean
		}
	}
	s.mu.Unlock()
	s.log.Info("file saved", zap.String("file", id), zap.Int("bytes", len(content)))

	if err := s.workspace.Refresh(ctx); err != nil {
		return fmt.Errorf("saved, but refresh failed: %w", err)
	}
	return nil
}

// SaveAs creates a new file holding the buffer's content under name in
// parentPath. The open file and its state are left alone.
func (s *Session) SaveAs(ctx context.Context, name, parentPath string) (models.Entry, error) {
	s.mu.Lock()
	if s.state == Empty {
		s.mu.Unlock()
		return models.Entry{}, ErrNoFileOpen
	}
	content, lang := s.buffer, s.saved.Language
	s.mu.Unlock()

	return s.creator.CreateEntry(ctx, mutation.CreateRequest{
		Kind:       models.KindFile,
		Name:       name,
		ParentPath: parentPath,
		Content:    content,
		Language:   lang,
	})
}

// Revert drops unsaved edits.
func (s *Session) Revert() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Empty {
		return ErrNoFileOpen
	}
	s.buffer = s.saved.Content
	s.state = Clean
	s.rev++
	return nil
}

// Close empties the session. discarded reports whether unsaved edits were
// dropped.
func (s *Session) Close() (discarded bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	discarded = s.state == Dirty
	s.saved = models.File{}
	s.buffer = ""
	s.state = Empty
	s.rev++
	return discarded
}

// Diff compares the saved content with the buffer line by line.
func (s *Session) Diff() ([]DiffLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Empty {
		return nil, ErrNoFileOpen
	}
	return LineDiff(s.saved.Content, s.buffer), nil
}
