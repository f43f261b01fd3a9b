package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/joescharf/codespace/internal/output"
	"github.com/joescharf/codespace/internal/workspace"
)

var (
	projectDescription string
	projectYes         bool
	projectJSON        bool
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage projects",
	Long:  "Create, list, show and delete projects on the workspace service.",
}

var projectListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List projects",
	RunE: func(cmd *cobra.Command, args []string) error {
		return projectListRun(cmd.Context())
	},
}

var projectCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return projectCreateRun(cmd.Context(), args[0])
	},
}

var projectShowCmd = &cobra.Command{
	Use:   "show [name]",
	Short: "Show project details",
	Long:  "Show a project's details. Defaults to the selected project.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ref := ""
		if len(args) > 0 {
			ref = args[0]
		}
		return projectShowRun(cmd.Context(), ref)
	},
}

var projectRemoveCmd = &cobra.Command{
	Use:     "remove <name>",
	Aliases: []string{"rm"},
	Short:   "Delete a project and all its files",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return projectRemoveRun(cmd.Context(), args[0])
	},
}

var projectBuildCmd = &cobra.Command{
	Use:   "build-command [command]",
	Short: "Show or set the selected project's build command",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return buildCommandShowRun(cmd.Context())
		}
		return buildCommandSetRun(cmd.Context(), args[0])
	},
}

func init() {
	projectCreateCmd.Flags().StringVarP(&projectDescription, "description", "d", "", "Project description")
	projectRemoveCmd.Flags().BoolVarP(&projectYes, "yes", "y", false, "Do not ask for confirmation")
	projectListCmd.Flags().BoolVar(&projectJSON, "json", false, "Print JSON")

	projectCmd.AddCommand(projectListCmd)
	projectCmd.AddCommand(projectCreateCmd)
	projectCmd.AddCommand(projectShowCmd)
	projectCmd.AddCommand(projectRemoveCmd)
	projectCmd.AddCommand(projectBuildCmd)
	rootCmd.AddCommand(projectCmd)
}

func projectListRun(ctx context.Context) error {
	projects, err := newClient().ListProjects(ctx)
	if err != nil {
		return fmt.Errorf("list projects: %w", err)
	}
	if projectJSON {
		enc := json.NewEncoder(ui.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(projects)
	}
	if len(projects) == 0 {
		ui.Info("No projects. Use 'codespace project create <name>' to get started.")
		return nil
	}
	return ui.Projects(projects)
}

func projectCreateRun(ctx context.Context, name string) error {
	if dryRun {
		ui.DryRunMsg("Would create project: %s", name)
		return nil
	}
	p, err := newClient().CreateProject(ctx, name, projectDescription)
	if err != nil {
		return fmt.Errorf("create project: %w", err)
	}
	ui.Success("Created project: %s (%s)", output.Cyan(p.Name), p.ID)
	return nil
}

func projectShowRun(ctx context.Context, ref string) error {
	if ref == "" {
		var err error
		if ref, err = projectRef(); err != nil {
			return err
		}
	}
	c := newClient()
	p, err := resolveProject(ctx, c, ref)
	if err != nil {
		return err
	}
	idx, err := c.FetchWorkspace(ctx, p.ID)
	if err != nil {
		return err
	}
	folders, files := 0, 0
	workspace.Walk(workspace.Build(idx, nil), func(n *workspace.Node) bool {
		if n.IsFolder() {
			folders++
		} else {
			files++
		}
		return true
	})

	fmt.Fprintf(ui.Out, "%s\n", output.Cyan(p.Name))
	fmt.Fprintf(ui.Out, "  ID:         %s\n", p.ID)
	if p.Description != "" {
		fmt.Fprintf(ui.Out, "  Desc:       %s\n", p.Description)
	}
	build := p.BuildCommand
	if build == "" {
		build = "(none)"
	}
	fmt.Fprintf(ui.Out, "  Build:      %s\n", build)
	fmt.Fprintf(ui.Out, "  Entries:    %d folders, %d files\n", folders, files)
	if !p.CreatedAt.IsZero() {
		fmt.Fprintf(ui.Out, "  Created:    %s\n", timeAgo(p.CreatedAt))
	}
	if !p.UpdatedAt.IsZero() {
		fmt.Fprintf(ui.Out, "  Updated:    %s\n", timeAgo(p.UpdatedAt))
	}
	return nil
}

func projectRemoveRun(ctx context.Context, ref string) error {
	c := newClient()
	p, err := resolveProject(ctx, c, ref)
	if err != nil {
		return err
	}
	if dryRun {
		ui.DryRunMsg("Would delete project: %s", p.Name)
		return nil
	}
	if !projectYes && !confirm(fmt.Sprintf("Delete project %s and all its files?", p.Name)) {
		ui.Info("Cancelled")
		return nil
	}
	if err := c.DeleteProject(ctx, p.ID); err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	ui.Success("Deleted project: %s", output.Cyan(p.Name))
	return nil
}

func buildCommandShowRun(ctx context.Context) error {
	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	command, err := s.gateway.BuildCommand(ctx)
	if err != nil {
		return err
	}
	if command == "" {
		ui.Info("No build command configured for %s", s.project.Name)
		return nil
	}
	fmt.Fprintln(ui.Out, command)
	return nil
}

func buildCommandSetRun(ctx context.Context, command string) error {
	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	if dryRun {
		ui.DryRunMsg("Would set build command of %s to %q", s.project.Name, command)
		return nil
	}
	if err := s.gateway.SetBuildCommand(ctx, command); err != nil {
		return err
	}
	ui.Success("Build command set: %s", command)
	return nil
}

// timeAgo returns a human-readable duration from a time.
func timeAgo(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		days := int(d.Hours() / 24)
		if days == 1 {
			return "1d ago"
		}
		return fmt.Sprintf("%dd ago", days)
	}
}
