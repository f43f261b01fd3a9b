package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/codespace/internal/assist"
	"github.com/joescharf/codespace/internal/runsession"
)

var explainLang string

var runCmd = &cobra.Command{
	Use:   "run <path>",
	Short: "Run a file on the workspace service",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runFileRun(cmd.Context(), args[0])
	},
}

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Run the project's build command",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return buildRun(cmd.Context())
	},
}

var execCmd = &cobra.Command{
	Use:   "exec <command>...",
	Short: "Run a shell command in the project's workspace",
	Long: `Run a shell command in the project's workspace. The arguments are
joined with spaces and sent verbatim.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return execRun(cmd.Context(), strings.Join(args, " "))
	},
}

var explainCmd = &cobra.Command{
	Use:   "explain <term>",
	Short: "Ask Claude to explain a programming term",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return explainRun(cmd.Context(), strings.Join(args, " "))
	},
}

func init() {
	explainCmd.Flags().StringVar(&explainLang, "lang", "", "Language the term belongs to")
	rootCmd.AddCommand(runCmd, buildCmd, execCmd, explainCmd)
}

func runFileRun(ctx context.Context, full string) error {
	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	f, err := s.fileAt(full)
	if err != nil {
		return err
	}
	ed := s.newEditor()
	ed.Open(f)
	rs := s.newRunner(ed)
	if err := rs.RunCurrentFile(ctx); err != nil {
		return err
	}
	return printTranscript(rs)
}

func buildRun(ctx context.Context) error {
	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	rs := s.newRunner(nil)
	rs.BuildProject(ctx)
	return printTranscript(rs)
}

func execRun(ctx context.Context, command string) error {
	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	rs := s.newRunner(nil)
	rs.ExecuteCommand(ctx, command)
	return printTranscript(rs)
}

// printTranscript prints a one-shot transcript. A failed request or a
// backend-reported error turns into a non-zero exit.
func printTranscript(rs *runsession.Session) error {
	lines := rs.Transcript().Lines()
	ui.Transcript(lines)
	for _, l := range lines {
		switch {
		case strings.HasPrefix(l, "Error: "),
			l == runsession.RunFailed, l == runsession.BuildFailed, l == runsession.TerminalFailed:
			return errExecFailed
		}
	}
	return nil
}

var errExecFailed = fmt.Errorf("execution failed")

// newAssistClient creates an explain client from config/env, or returns nil
// if no API key is configured.
func newAssistClient() *assist.Client {
	apiKey := viper.GetString("anthropic.api_key")
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil
	}
	return assist.NewClient(apiKey, viper.GetString("anthropic.model"))
}

func explainRun(ctx context.Context, term string) error {
	c := newAssistClient()
	if c == nil {
		return errNoAPIKey
	}
	text, err := c.ExplainTerm(ctx, term, explainLang)
	if err != nil {
		return err
	}
	fmt.Fprintln(ui.Out, text)
	return nil
}

var errNoAPIKey = fmt.Errorf("no Anthropic API key configured; set anthropic.api_key or $ANTHROPIC_API_KEY")
