package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joescharf/codespace/internal/models"
	"github.com/joescharf/codespace/internal/mutation"
	"github.com/joescharf/codespace/internal/output"
	"github.com/joescharf/codespace/internal/pathcodec"
	"github.com/joescharf/codespace/internal/workspace"
)

var (
	treeJSON     bool
	newContent   string
	newFrom      string
	newLanguage  string
	rmYes        bool
	uploadTarget string
)

var treeCmd = &cobra.Command{
	Use:   "tree [folder]",
	Short: "Show the project's files as a tree",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return treeRun(cmd.Context(), firstArg(args))
	},
}

var lsCmd = &cobra.Command{
	Use:   "ls [folder]",
	Short: "List the entries of one folder",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return lsRun(cmd.Context(), firstArg(args))
	},
}

var catCmd = &cobra.Command{
	Use:   "cat <path>",
	Short: "Print a file's content",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return catRun(cmd.Context(), args[0])
	},
}

var mkdirCmd = &cobra.Command{
	Use:   "mkdir <path>",
	Short: "Create a folder",
	Long:  "Create a folder. Its parent folder must already exist.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return createRun(cmd.Context(), models.KindFolder, args[0])
	},
}

var newCmd = &cobra.Command{
	Use:     "new <path>",
	Aliases: []string{"touch"},
	Short:   "Create a file",
	Long: `Create a file. Its parent folder must already exist.

The language is detected from the file extension unless --lang is given.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return createRun(cmd.Context(), models.KindFile, args[0])
	},
}

var rmCmd = &cobra.Command{
	Use:   "rm <path>",
	Short: "Delete a file, or a folder and everything under it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return rmRun(cmd.Context(), args[0])
	},
}

var uploadCmd = &cobra.Command{
	Use:   "upload <file>...",
	Short: "Upload local files into a folder",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return uploadRun(cmd.Context(), args)
	},
}

func init() {
	treeCmd.Flags().BoolVar(&treeJSON, "json", false, "Print the tree as JSON")
	newCmd.Flags().StringVar(&newContent, "content", "", "Initial content")
	newCmd.Flags().StringVar(&newFrom, "from", "", "Read initial content from a local file")
	newCmd.Flags().StringVar(&newLanguage, "lang", "", "Language tag (default: detected from the name)")
	rmCmd.Flags().BoolVarP(&rmYes, "yes", "y", false, "Do not ask for confirmation")
	uploadCmd.Flags().StringVar(&uploadTarget, "to", "", "Target folder (default: project root)")

	rootCmd.AddCommand(treeCmd, lsCmd, catCmd, mkdirCmd, newCmd, rmCmd, uploadCmd)
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

// subtree returns the children of the folder at full, or the roots when
// full is empty.
func subtree(nodes []*workspace.Node, full string) ([]*workspace.Node, error) {
	full = pathcodec.Clean(full)
	if full == "" {
		return nodes, nil
	}
	n := workspace.FindByPath(nodes, full)
	if n == nil || !n.IsFolder() {
		return nil, fmt.Errorf("no folder at %s", full)
	}
	return n.Children, nil
}

func treeRun(ctx context.Context, folder string) error {
	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	nodes, err := subtree(s.view.Tree(), folder)
	if err != nil {
		return err
	}
	if treeJSON {
		if nodes == nil {
			nodes = []*workspace.Node{}
		}
		enc := json.NewEncoder(ui.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(nodes)
	}
	ui.Tree(nodes, nil)
	return nil
}

func lsRun(ctx context.Context, folder string) error {
	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	nodes, err := subtree(s.view.Tree(), folder)
	if err != nil {
		return err
	}
	if len(nodes) == 0 {
		ui.Info("Empty folder")
		return nil
	}
	table := ui.Table([]string{"Name", "Kind", "Language", "ID"})
	for _, n := range nodes {
		name, lang := n.Name, ""
		if n.IsFolder() {
			name = output.Cyan(n.Name + "/")
		} else if n.File != nil {
			lang = n.File.Language
		}
		_ = table.Append([]string{name, string(n.Kind), lang, n.ID})
	}
	return table.Render()
}

func catRun(ctx context.Context, full string) error {
	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	f, err := s.fileAt(full)
	if err != nil {
		return err
	}
	fmt.Fprint(ui.Out, f.Content)
	if f.Content != "" && !strings.HasSuffix(f.Content, "\n") {
		fmt.Fprintln(ui.Out)
	}
	return nil
}

func createRun(ctx context.Context, kind models.EntryKind, full string) error {
	parent, name := pathcodec.Split(full)
	req := mutation.CreateRequest{Kind: kind, Name: name, ParentPath: parent}
	if kind == models.KindFile {
		req.Content = newContent
		req.Language = newLanguage
		if newFrom != "" {
			data, err := os.ReadFile(newFrom)
			if err != nil {
				return err
			}
			req.Content = string(data)
		}
	}

	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	if dryRun {
		ui.DryRunMsg("Would create %s %s", kind, pathcodec.Join(parent, name))
		return nil
	}
	entry, err := s.gateway.CreateEntry(ctx, req)
	if err != nil {
		return err
	}
	ui.Success("Created %s", describe(entry))
	ui.VerboseLog("ID: %s", entry.ID())
	return nil
}

func rmRun(ctx context.Context, full string) error {
	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	entry, ok := s.view.Index().Lookup(full)
	if !ok {
		return fmt.Errorf("no entry at %s", pathcodec.Clean(full))
	}
	if dryRun {
		ui.DryRunMsg("Would delete %s", describe(entry))
		return nil
	}
	err = s.gateway.DeleteEntry(ctx, entry.ID(), func(e models.Entry) bool {
		if rmYes {
			return true
		}
		prompt := fmt.Sprintf("Delete %s?", describe(e))
		if e.Kind == models.KindFolder {
			prompt = fmt.Sprintf("Delete %s and everything under it?", describe(e))
		}
		return confirm(prompt)
	})
	if errors.Is(err, mutation.ErrCancelled) {
		ui.Info("Cancelled")
		return nil
	}
	if err != nil {
		return err
	}
	ui.Success("Deleted %s", describe(entry))
	return nil
}

func uploadRun(ctx context.Context, paths []string) error {
	blobs := make([]mutation.Blob, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		blobs = append(blobs, mutation.Blob{Name: filepath.Base(p), Data: data})
	}

	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	target := pathcodec.Clean(uploadTarget)
	if !slices.Contains(s.view.Index().FolderPaths(), target) {
		return fmt.Errorf("no folder at /%s", target)
	}
	if dryRun {
		ui.DryRunMsg("Would upload %d files to /%s", len(blobs), target)
		return nil
	}
	res, err := s.gateway.UploadEntries(ctx, blobs, target)
	if res != nil {
		for _, name := range res.Accepted {
			ui.Success("Uploaded %s", pathcodec.Join(target, name))
		}
	}
	return err
}
