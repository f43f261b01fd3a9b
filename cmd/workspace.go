package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/joescharf/codespace/internal/backend"
	"github.com/joescharf/codespace/internal/editor"
	"github.com/joescharf/codespace/internal/logging"
	"github.com/joescharf/codespace/internal/models"
	"github.com/joescharf/codespace/internal/mutation"
	"github.com/joescharf/codespace/internal/pathcodec"
	"github.com/joescharf/codespace/internal/runsession"
	"github.com/joescharf/codespace/internal/workspace"
)

// stdin is read by confirmation prompts; replaceable in tests.
var stdin io.Reader = os.Stdin

// newClient builds a backend client from flags and config.
func newClient() *backend.Client {
	url := serverFlag
	if url == "" {
		url = viper.GetString("server.url")
	}
	return backend.New(backend.Config{
		BaseURL:     url,
		Credentials: backend.StaticToken(viper.GetString("server.token")),
		Logger:      logging.Named("backend"),
	})
}

// projectRef returns the --project flag or the configured default.
func projectRef() (string, error) {
	ref := projectFlag
	if ref == "" {
		ref = viper.GetString("project")
	}
	if ref == "" {
		return "", fmt.Errorf("no project selected; pass --project or set 'project' in the config")
	}
	return ref, nil
}

// resolveProject finds a project by name first, then by ID.
func resolveProject(ctx context.Context, c *backend.Client, ref string) (*models.Project, error) {
	projects, err := c.ListProjects(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range projects {
		if p.Name == ref {
			return p, nil
		}
	}
	for _, p := range projects {
		if p.ID == ref {
			return p, nil
		}
	}
	return nil, fmt.Errorf("project not found: %s", ref)
}

// session bundles everything a command needs to work on one project.
type session struct {
	client  *backend.Client
	project *models.Project
	view    *workspace.View
	gateway *mutation.Gateway
}

// openSession resolves the selected project and loads its workspace.
func openSession(ctx context.Context) (*session, error) {
	ref, err := projectRef()
	if err != nil {
		return nil, err
	}
	c := newClient()
	p, err := resolveProject(ctx, c, ref)
	if err != nil {
		return nil, err
	}
	log := logging.Named("workspace")
	view := workspace.NewView(c, p.ID, log)
	if err := view.Refresh(ctx); err != nil {
		return nil, err
	}
	return &session{
		client:  c,
		project: p,
		view:    view,
		gateway: mutation.New(c, view, logging.Named("mutation")),
	}, nil
}

// fileAt returns the file at a full path in the current snapshot.
func (s *session) fileAt(full string) (models.File, error) {
	full = pathcodec.Clean(full)
	f, ok := s.view.Index().FileAt(pathcodec.Split(full))
	if !ok {
		return models.File{}, fmt.Errorf("no file at %s", full)
	}
	return f, nil
}

// confirm asks a yes/no question on stdin. Anything but y/yes declines.
func confirm(prompt string) bool {
	fmt.Fprintf(ui.Out, "%s [y/N] ", prompt)
	line, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

// describe names an entry for messages.
func describe(e models.Entry) string {
	full := pathcodec.Join(e.Path(), e.Name())
	if e.Kind == models.KindFolder {
		return "folder " + full
	}
	return "file " + full
}

// newEditor creates an editor session bound to s.
func (s *session) newEditor() *editor.Session {
	return editor.New(s.client, s.gateway, s.view, logging.Named("editor"))
}

// newRunner creates a run session fed by ed.
func (s *session) newRunner(ed *editor.Session) *runsession.Session {
	var src runsession.FileSource
	if ed != nil {
		src = ed
	}
	return runsession.New(s.client, src, s.project.ID, logging.Named("run"))
}
