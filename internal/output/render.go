package output

import (
	"fmt"
	"strings"

	"github.com/joescharf/codespace/internal/editor"
	"github.com/joescharf/codespace/internal/models"
	"github.com/joescharf/codespace/internal/workspace"
)

// Tree prints nodes with box-drawing connectors. When exp is non-nil only
// expanded folders show their children; collapsed folders get a trailing
// marker.
func (u *UI) Tree(nodes []*workspace.Node, exp *workspace.Expansion) {
	if len(nodes) == 0 {
		fmt.Fprintln(u.Out, "(empty)")
		return
	}
	u.treeLevel(nodes, exp, "")
}

func (u *UI) treeLevel(nodes []*workspace.Node, exp *workspace.Expansion, prefix string) {
	for i, n := range nodes {
		last := i == len(nodes)-1
		branch, indent := "├── ", "│   "
		if last {
			branch, indent = "└── ", "    "
		}

		label := n.Name
		open := true
		if n.IsFolder() {
			label = cyan(n.Name + "/")
			if exp != nil && !exp.IsExpanded(n.ID) {
				open = false
				if len(n.Children) > 0 {
					label += " …"
				}
			}
		}
		if u.Verbose {
			label += fmt.Sprintf(" (%s)", n.ID)
		}
		fmt.Fprintf(u.Out, "%s%s%s\n", prefix, branch, label)

		if n.IsFolder() && open {
			u.treeLevel(n.Children, exp, prefix+indent)
		}
	}
}

// Transcript prints transcript lines, highlighting command echoes and
// backend errors.
func (u *UI) Transcript(lines []string) {
	for _, l := range lines {
		fmt.Fprintln(u.Out, TranscriptLine(l))
	}
}

// TranscriptLine colors one transcript line.
func TranscriptLine(l string) string {
	switch {
	case strings.HasPrefix(l, "$ "):
		return cyan(l)
	case strings.HasPrefix(l, "Error: "):
		return red(l)
	default:
		return l
	}
}

// Diff prints a line diff with added lines in green and removed in red.
func (u *UI) Diff(lines []editor.DiffLine) {
	if !editor.Changed(lines) {
		u.Info("No changes")
		return
	}
	for _, l := range lines {
		switch l.Op {
		case editor.OpAdded:
			fmt.Fprintln(u.Out, green(l.String()))
		case editor.OpRemoved:
			fmt.Fprintln(u.Out, red(l.String()))
		default:
			fmt.Fprintln(u.Out, l.String())
		}
	}
}

// Projects prints a project table.
func (u *UI) Projects(projects []*models.Project) error {
	if len(projects) == 0 {
		u.Info("No projects")
		return nil
	}
	table := u.Table([]string{"ID", "Name", "Build Command", "Description"})
	for _, p := range projects {
		build := p.BuildCommand
		if build == "" {
			build = "-"
		}
		if err := table.Append([]string{p.ID, p.Name, build, p.Description}); err != nil {
			return err
		}
	}
	return table.Render()
}
