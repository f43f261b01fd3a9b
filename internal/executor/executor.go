// Package executor runs project code for the reference server: single files,
// build commands and terminal commands, each in a throwaway copy of the
// project's files.
package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/joescharf/codespace/internal/language"
	"github.com/joescharf/codespace/internal/models"
	"github.com/joescharf/codespace/internal/pathcodec"
)

// DefaultTimeout bounds a single execution when none is configured.
const DefaultTimeout = 30 * time.Second

// MaxOutput caps the captured output of one execution.
const MaxOutput = 1 << 20

// waitDelay bounds how long Run waits for output after the process is gone.
const waitDelay = time.Second

// Snapshot is the set of entries to materialize before running.
type Snapshot struct {
	Folders []*models.Folder
	Files   []*models.File
}

// Runner executes code. Results carry program failures in ExecResult.Error;
// the returned error is reserved for failures to start at all.
type Runner interface {
	RunFile(ctx context.Context, snap Snapshot, code, lang string) (*models.ExecResult, error)
	Run(ctx context.Context, snap Snapshot, command string) (*models.ExecResult, error)
}

// Executor is the os/exec backed Runner.
type Executor struct {
	Timeout time.Duration
	Shell   string
	TempDir string
	log     *zap.Logger
}

// New returns an executor with the given per-run timeout.
func New(timeout time.Duration, log *zap.Logger) *Executor {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Executor{Timeout: timeout, Shell: "sh", log: log}
}

// RunFile writes code to a scratch file inside the materialized project and
// runs it with the language's interpreter.
func (e *Executor) RunFile(ctx context.Context, snap Snapshot, code, lang string) (*models.ExecResult, error) {
	if lang == "" {
		lang = language.Default
	}
	argv, ok := language.Interpreter(lang)
	if !ok {
		return nil, fmt.Errorf("cannot run %s files", lang)
	}

	dir, cleanup, err := e.materialize(snap)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	script := filepath.Join(dir, ".codespace-run"+language.Extension(lang))
	if err := os.WriteFile(script, []byte(code), 0644); err != nil {
		return nil, fmt.Errorf("write script: %w", err)
	}
	args := append(argv[1:len(argv):len(argv)], script)
	return e.exec(ctx, dir, argv[0], args...), nil
}

// Run runs command through the shell inside the materialized project.
func (e *Executor) Run(ctx context.Context, snap Snapshot, command string) (*models.ExecResult, error) {
	dir, cleanup, err := e.materialize(snap)
	if err != nil {
		return nil, err
	}
	defer cleanup()
	return e.exec(ctx, dir, e.Shell, "-c", command), nil
}

func (e *Executor) exec(ctx context.Context, dir, name string, args ...string) *models.ExecResult {
	ctx, cancel := context.WithTimeout(ctx, e.Timeout)
	defer cancel()

	var out limitedBuffer
	out.limit = MaxOutput
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Stdout = &out
	cmd.Stderr = &out
	cmd.Env = append(os.Environ(), "CODESPACE_WORKDIR="+dir)
	// Background children can hold the output pipe open past the kill.
	cmd.WaitDelay = waitDelay
	configureCmd(cmd)

	start := time.Now()
	err := cmd.Run()
	e.log.Debug("execution finished",
		zap.String("cmd", name),
		zap.Duration("elapsed", time.Since(start)),
		zap.Error(err),
	)

	res := &models.ExecResult{Output: out.String()}
	switch {
	case err == nil:
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		msg := fmt.Sprintf("timed out after %s", e.Timeout)
		res.Error = &msg
	default:
		msg := err.Error()
		res.Error = &msg
	}
	return res
}

// materialize writes the snapshot into a new temporary directory.
func (e *Executor) materialize(snap Snapshot) (string, func(), error) {
	dir, err := os.MkdirTemp(e.TempDir, "codespace-*")
	if err != nil {
		return "", nil, fmt.Errorf("create work dir: %w", err)
	}
	cleanup := func() {
		if err := os.RemoveAll(dir); err != nil {
			e.log.Warn("remove work dir", zap.String("dir", dir), zap.Error(err))
		}
	}

	for _, f := range snap.Folders {
		p, err := localPath(dir, pathcodec.Join(f.Path, f.Name))
		if err != nil {
			cleanup()
			return "", nil, err
		}
		if err := os.MkdirAll(p, 0755); err != nil {
			cleanup()
			return "", nil, fmt.Errorf("create folder: %w", err)
		}
	}
	for _, f := range snap.Files {
		p, err := localPath(dir, pathcodec.Join(f.Path, f.Name))
		if err != nil {
			cleanup()
			return "", nil, err
		}
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			cleanup()
			return "", nil, fmt.Errorf("create folder: %w", err)
		}
		if err := os.WriteFile(p, []byte(f.Content), 0644); err != nil {
			cleanup()
			return "", nil, fmt.Errorf("write file: %w", err)
		}
	}
	return dir, cleanup, nil
}

func localPath(root, rel string) (string, error) {
	p := filepath.FromSlash(rel)
	if !filepath.IsLocal(p) {
		return "", fmt.Errorf("entry %q escapes the project", rel)
	}
	return filepath.Join(root, p), nil
}

// limitedBuffer keeps the first limit bytes written and drops the rest.
type limitedBuffer struct {
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	room := b.limit - b.buf.Len()
	if room <= 0 {
		b.truncated = true
		return len(p), nil
	}
	if len(p) > room {
		b.buf.Write(p[:room])
		b.truncated = true
		return len(p), nil
	}
	return b.buf.Write(p)
}

func (b *limitedBuffer) String() string {
	if b.truncated {
		return b.buf.String() + "\n[output truncated]"
	}
	return b.buf.String()
}
