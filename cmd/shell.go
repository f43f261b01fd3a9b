package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/codespace/internal/editor"
	"github.com/joescharf/codespace/internal/language"
	"github.com/joescharf/codespace/internal/models"
	"github.com/joescharf/codespace/internal/mutation"
	"github.com/joescharf/codespace/internal/output"
	"github.com/joescharf/codespace/internal/pathcodec"
	"github.com/joescharf/codespace/internal/runsession"
)

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Interactive session: edit files and run commands",
	Long: `Start an interactive session on the selected project.

Plain lines are sent to the workspace as shell commands. Lines starting
with ':' are session commands; type :help for the list.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return shellRun(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(shellCmd)
}

type shellCommand struct {
	name string
	args string
	help string
}

var shellCommands = []shellCommand{
	{":open", "<path>", "open a file in the editor buffer"},
	{":edit", "", "edit the buffer in $EDITOR"},
	{":save", "", "save the buffer"},
	{":saveas", "<path>", "save the buffer as a new file"},
	{":revert", "", "drop unsaved edits"},
	{":diff", "", "show unsaved edits"},
	{":close", "", "close the open file"},
	{":status", "", "show the open file and its state"},
	{":run", "", "run the open file"},
	{":build", "", "run the project's build command"},
	{":tree", "", "show the project tree"},
	{":mkdir", "<path>", "create a folder"},
	{":new", "<path>", "create an empty file and open it"},
	{":rm", "<path>", "delete a file or folder"},
	{":clear", "", "clear the transcript"},
	{":explain", "", "ask Claude to explain the recent output"},
	{":help", "", "show this help"},
	{":quit", "", "leave the shell"},
}

// errQuit ends the read loop.
var errQuit = errors.New("quit")

// editFunc opens path in the user's editor; replaceable in tests.
var editFunc = func(path string) error {
	name, err := editorName()
	if err != nil {
		return err
	}
	c := exec.Command(name, path)
	c.Stdin = os.Stdin
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr
	return c.Run()
}

type shell struct {
	s         *session
	ed        *editor.Session
	rs        *runsession.Session
	in        lineInput
	out       io.Writer
	quitArmed bool
}

func newShell(s *session, in lineInput) *shell {
	ed := s.newEditor()
	sh := &shell{s: s, ed: ed, rs: s.newRunner(ed), in: in, out: ui.Out}
	sh.rs.Transcript().Subscribe(func(line string) {
		fmt.Fprintln(sh.out, output.TranscriptLine(line))
	})
	s.view.Subscribe(sh.dropStale)
	return sh
}

// dropStale closes the buffer when a refresh no longer lists the open file.
func (sh *shell) dropStale() {
	f, ok := sh.ed.Current()
	if !ok {
		return
	}
	if _, still := sh.s.view.Index().File(f.ID); still {
		return
	}
	if sh.ed.Close() {
		ui.Warning("Open file was deleted; unsaved edits discarded")
		return
	}
	ui.Info("Closed %s; it no longer exists", f.Name)
}

func shellRun(ctx context.Context) error {
	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	in := newLineInput(filepath.Join(viper.GetString("state_dir"), "shell_history"))
	defer func() { _ = in.Close() }()

	ui.Info("Project %s. Type :help for commands, :quit to leave.", output.Cyan(s.project.Name))
	return newShell(s, in).loop(ctx)
}

func (sh *shell) prompt() string {
	p := sh.s.project.Name
	if f, ok := sh.ed.Current(); ok {
		p += ":" + pathcodec.Join(f.Path, f.Name)
		if sh.ed.State() == editor.Dirty {
			p += "*"
		}
	}
	return p + "> "
}

func (sh *shell) loop(ctx context.Context) error {
	for {
		line, err := sh.in.ReadLine(sh.prompt())
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := sh.handle(ctx, line); err != nil {
			if errors.Is(err, errQuit) {
				return nil
			}
			ui.Error("%v", err)
		}
	}
}

// handle executes one input line.
func (sh *shell) handle(ctx context.Context, line string) error {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, ":") {
		sh.rs.ExecuteCommand(ctx, line)
		return nil
	}

	name, arg, _ := strings.Cut(trimmed, " ")
	arg = strings.TrimSpace(arg)
	if name != ":quit" && name != ":q" {
		sh.quitArmed = false
	}

	switch name {
	case ":open", ":o":
		return sh.open(arg)
	case ":edit", ":e":
		return sh.edit()
	case ":save", ":w":
		if err := sh.ed.Save(ctx); err != nil {
			return err
		}
		ui.Success("Saved")
	case ":saveas":
		return sh.saveAs(ctx, arg)
	case ":revert":
		if err := sh.ed.Revert(); err != nil {
			return err
		}
		ui.Info("Reverted")
	case ":diff":
		lines, err := sh.ed.Diff()
		if err != nil {
			return err
		}
		ui.Diff(lines)
	case ":close":
		if sh.ed.Close() {
			ui.Warning("Discarded unsaved edits")
		}
	case ":status":
		sh.status()
	case ":run", ":r":
		if !sh.rs.CanRun() {
			return runsession.ErrNoFileOpen
		}
		return sh.rs.RunCurrentFile(ctx)
	case ":build", ":b":
		sh.rs.BuildProject(ctx)
	case ":tree", ":t":
		ui.Tree(sh.s.view.Tree(), nil)
	case ":mkdir":
		if err := needArg(name, arg); err != nil {
			return err
		}
		return sh.create(ctx, models.KindFolder, arg)
	case ":new":
		if err := needArg(name, arg); err != nil {
			return err
		}
		return sh.create(ctx, models.KindFile, arg)
	case ":rm":
		return sh.remove(ctx, arg)
	case ":clear":
		sh.rs.Transcript().Clear()
	case ":explain":
		return sh.explain(ctx)
	case ":help", ":h", ":?":
		sh.help()
	case ":quit", ":q":
		if sh.ed.State() == editor.Dirty && !sh.quitArmed {
			sh.quitArmed = true
			ui.Warning("Unsaved edits; :save first or :quit again to discard them")
			return nil
		}
		return errQuit
	default:
		return fmt.Errorf("unknown command %s (try :help)", name)
	}
	return nil
}

func needArg(cmd, arg string) error {
	if arg == "" {
		return fmt.Errorf("usage: %s <path>", cmd)
	}
	return nil
}

func (sh *shell) open(full string) error {
	if err := needArg(":open", full); err != nil {
		return err
	}
	f, err := sh.s.fileAt(full)
	if err != nil {
		return err
	}
	if sh.ed.Open(f) {
		ui.Warning("Discarded unsaved edits")
	}
	ui.Info("Opened %s (%s)", pathcodec.Join(f.Path, f.Name), f.Language)
	return nil
}

func (sh *shell) edit() error {
	f, ok := sh.ed.Current()
	if !ok {
		return editor.ErrNoFileOpen
	}
	ext := filepath.Ext(f.Name)
	if ext == "" {
		ext = language.Extension(f.Language)
	}
	tmp, err := os.CreateTemp("", "codespace-*"+ext)
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	before := sh.ed.Buffer()
	if _, err := tmp.WriteString(before); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := editFunc(tmp.Name()); err != nil {
		return fmt.Errorf("editor: %w", err)
	}
	data, err := os.ReadFile(tmp.Name())
	if err != nil {
		return err
	}
	if string(data) == before {
		ui.Info("No changes")
		return nil
	}
	return sh.ed.Edit(string(data))
}

func (sh *shell) saveAs(ctx context.Context, full string) error {
	if err := needArg(":saveas", full); err != nil {
		return err
	}
	parent, name := pathcodec.Split(full)
	entry, err := sh.ed.SaveAs(ctx, name, parent)
	if err != nil {
		return err
	}
	ui.Success("Created %s", describe(entry))
	return nil
}

func (sh *shell) create(ctx context.Context, kind models.EntryKind, full string) error {
	parent, name := pathcodec.Split(full)
	entry, err := sh.s.gateway.CreateEntry(ctx, mutation.CreateRequest{Kind: kind, Name: name, ParentPath: parent})
	if err != nil {
		return err
	}
	ui.Success("Created %s", describe(entry))
	if kind == models.KindFile && entry.File != nil {
		if sh.ed.Open(*entry.File) {
			ui.Warning("Discarded unsaved edits")
		}
	}
	return nil
}

func (sh *shell) remove(ctx context.Context, full string) error {
	if err := needArg(":rm", full); err != nil {
		return err
	}
	entry, ok := sh.s.view.Index().Lookup(full)
	if !ok {
		return fmt.Errorf("no entry at %s", pathcodec.Clean(full))
	}
	err := sh.s.gateway.DeleteEntry(ctx, entry.ID(), func(e models.Entry) bool {
		answer, err := sh.in.ReadLine(fmt.Sprintf("Delete %s? [y/N] ", describe(e)))
		if err != nil {
			return false
		}
		a := strings.ToLower(strings.TrimSpace(answer))
		return a == "y" || a == "yes"
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

func (sh *shell) status() {
	f, ok := sh.ed.Current()
	if !ok {
		ui.Info("No file open")
		return
	}
	ui.Info("%s (%s) %s", pathcodec.Join(f.Path, f.Name), f.Language, output.StateColor(sh.ed.State().String()))
}

func (sh *shell) explain(ctx context.Context) error {
	c := newAssistClient()
	if c == nil {
		return errNoAPIKey
	}
	var code, lang string
	if f, ok := sh.ed.Current(); ok {
		code, lang = sh.ed.Buffer(), f.Language
	}
	text, err := c.ExplainTranscript(ctx, sh.rs.Transcript().Tail(50), code, lang)
	if err != nil {
		return err
	}
	fmt.Fprintln(sh.out, text)
	return nil
}

func (sh *shell) help() {
	fmt.Fprintln(sh.out, "Plain lines run as shell commands in the workspace.")
	fmt.Fprintln(sh.out, "commands:")
	for _, c := range shellCommands {
		fmt.Fprintf(sh.out, "  %-8s %-7s %s\n", c.name, c.args, c.help)
	}
}
