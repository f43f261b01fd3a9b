package cmd

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/joescharf/codespace/internal/explorer"
	"github.com/joescharf/codespace/internal/logging"
	"github.com/joescharf/codespace/internal/pathcodec"
	"github.com/joescharf/codespace/internal/workspace"
)

var browseCmd = &cobra.Command{
	Use:   "browse",
	Short: "Browse the project tree interactively",
	Long: `Browse the project tree in a terminal UI. Pressing enter on a file
prints its path and content after the browser exits.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return browseRun(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(browseCmd)
}

func browseRun(ctx context.Context) error {
	ref, err := projectRef()
	if err != nil {
		return err
	}
	c := newClient()
	p, err := resolveProject(ctx, c, ref)
	if err != nil {
		return err
	}

	view := workspace.NewView(c, p.ID, logging.Named("workspace"))
	m := explorer.New(view, workspace.NewExpansion(), p.Name)
	if _, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run(); err != nil {
		return fmt.Errorf("browser: %w", err)
	}

	if f, ok := m.Selected(); ok {
		ui.Info("%s (%s)", pathcodec.Join(f.Path, f.Name), f.Language)
		fmt.Fprint(ui.Out, f.Content)
	}
	return nil
}
