// Package runsession runs files, builds and terminal commands against the
// backend and records everything in one transcript.
package runsession

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/joescharf/codespace/internal/backend"
	"github.com/joescharf/codespace/internal/models"
)

// ErrNoFileOpen is returned by RunCurrentFile when the editor is empty.
var ErrNoFileOpen = errors.New("no file open")

// Transcript line templates.
const (
	RunFailed      = "Run failed."
	BuildFailed    = "Build failed."
	TerminalFailed = "Terminal command failed."
	BuildLabel     = "build_project"
)

// Runner executes code on the backend.
type Runner interface {
	RunFile(ctx context.Context, projectID, code, lang string) (*models.ExecResult, error)
	Build(ctx context.Context, projectID string) (*models.ExecResult, error)
	Terminal(ctx context.Context, projectID, command string) (*models.ExecResult, error)
}

// FileSource exposes the file currently open in the editor.
type FileSource interface {
	Current() (models.File, bool)
	Buffer() string
}

// Session issues execution requests for one project.
type Session struct {
	runner     Runner
	editor     FileSource
	projectID  string
	transcript *Transcript
	log        *zap.Logger
}

// New creates a session with an empty transcript. editor may be nil, in which
// case RunCurrentFile is never available.
func New(runner Runner, editor FileSource, projectID string, log *zap.Logger) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	return &Session{
		runner:     runner,
		editor:     editor,
		projectID:  projectID,
		transcript: &Transcript{},
		log:        log,
	}
}

// Transcript returns the session's transcript.
func (s *Session) Transcript() *Transcript {
	return s.transcript
}

// CanRun reports whether a file is open and can be run.
func (s *Session) CanRun() bool {
	if s.editor == nil {
		return false
	}
	_, ok := s.editor.Current()
	return ok
}

// RunCurrentFile runs the editor buffer of the open file. It does not touch
// the transcript when no file is open.
func (s *Session) RunCurrentFile(ctx context.Context) error {
	if s.editor == nil {
		return ErrNoFileOpen
	}
	f, ok := s.editor.Current()
	if !ok {
		return ErrNoFileOpen
	}
	code := s.editor.Buffer()
	s.execute(ctx, "Run "+f.Name, RunFailed, func(ctx context.Context) (*models.ExecResult, error) {
		return s.runner.RunFile(ctx, s.projectID, code, f.Language)
	})
	return nil
}

// BuildProject runs the project's build command.
func (s *Session) BuildProject(ctx context.Context) {
	s.execute(ctx, BuildLabel, BuildFailed, func(ctx context.Context) (*models.ExecResult, error) {
		return s.runner.Build(ctx, s.projectID)
	})
}

// ExecuteCommand sends text to the backend as a shell command, verbatim.
// Blank commands are ignored.
func (s *Session) ExecuteCommand(ctx context.Context, text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	s.execute(ctx, text, TerminalFailed, func(ctx context.Context) (*models.ExecResult, error) {
		return s.runner.Terminal(ctx, s.projectID, text)
	})
}

func (s *Session) execute(ctx context.Context, label, failure string, call func(context.Context) (*models.ExecResult, error)) {
	s.transcript.Append("$ " + label)

	res, err := call(ctx)
	if err != nil {
		if sr, ok := backend.AsRejection(err); ok {
			s.transcript.Append("", "Error: "+sr.Message)
			return
		}
		s.log.Warn("execution request failed", zap.String("label", label), zap.Error(err))
		s.transcript.Append(failure)
		return
	}
	if res == nil {
		res = &models.ExecResult{}
	}

	lines := []string{res.Output}
	if res.HasError() {
		lines = append(lines, "Error: "+*res.Error)
	}
	s.transcript.Append(lines...)
}
