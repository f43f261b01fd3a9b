package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/codespace/internal/logging"
	"github.com/joescharf/codespace/internal/output"
)

// Package-level shared dependencies, initialized in cobra.OnInitialize.
var (
	ui *output.UI

	verbose     bool
	dryRun      bool
	projectFlag string
	serverFlag  string
)

var rootCmd = &cobra.Command{
	Use:   "codespace",
	Short: "Browse, edit and run hosted coding projects",
	Long: `codespace works with projects stored on a workspace service.
It shows a project's files as a tree, creates, uploads and deletes entries,
edits files, and runs code, builds and shell commands on the service.

Run 'codespace serve' to host a workspace service locally.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	DisableAutoGenTag: true,
}

// Execute is the main entry point called from main.go.
func Execute(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	err := rootCmd.Execute()
	_ = logging.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initDeps)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&dryRun, "dry-run", "n", false, "Show what would happen without making changes")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/codespace/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&projectFlag, "project", "p", "", "Project name or ID (default: config 'project')")
	rootCmd.PersistentFlags().StringVar(&serverFlag, "server", "", "Workspace service URL (default: config 'server.url')")
}

// envPrefix prefixes every environment override, e.g. CODESPACE_SERVER_URL.
const envPrefix = "CODESPACE"

func initConfig() {
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		configDir, err := configDirFunc()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot find home directory: %v\n", err)
			os.Exit(1)
		}
		viper.AddConfigPath(configDir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	configDir, _ := configDirFunc()
	setDefaults(configDir)

	_ = viper.ReadInConfig()
}

// setDefaults registers a default for every config key.
func setDefaults(configDir string) {
	viper.SetDefault("state_dir", configDir)
	viper.SetDefault("server.url", "http://localhost:8080")
	viper.SetDefault("server.token", "")
	viper.SetDefault("project", "")
	viper.SetDefault("serve.port", 8080)
	viper.SetDefault("serve.db_path", filepath.Join(configDir, "codespace.db"))
	viper.SetDefault("serve.exec_timeout", "30s")
	viper.SetDefault("log.level", "warn")
	viper.SetDefault("log.format", "console")
	viper.SetDefault("anthropic.api_key", "")
	viper.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
}

func initDeps() {
	ui = output.New()
	ui.Verbose = verbose
	ui.DryRun = dryRun

	level := viper.GetString("log.level")
	if verbose {
		level = "debug"
	}
	if err := logging.Init(logging.Config{
		Level:  level,
		Format: viper.GetString("log.format"),
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: logging setup failed: %v\n", err)
	}
}
