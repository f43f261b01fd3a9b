package cmd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var configForce bool

var errNoEditor = fmt.Errorf("$EDITOR is not set; set it to your preferred editor (e.g. export EDITOR=vim)")

// configDirFunc returns the config directory path, replaceable in tests.
var configDirFunc = defaultConfigDir

func defaultConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "codespace"), nil
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or manage configuration",
	Long: `Show or manage codespace configuration.

Running bare 'codespace config' is the same as 'codespace config show'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create config file with commented defaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configInitRun()
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration with sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Open config file in $EDITOR",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configEditRun()
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite existing config file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configEditCmd)
	rootCmd.AddCommand(configCmd)
}

// configTemplate is the template for generating config.yaml with comments.
const configTemplate = `# codespace configuration
# See: codespace config show (for effective values and sources)

# State directory for the serve PID record and logs (default: ~/.config/codespace)
# state_dir: {{ .StateDir }}

# Default project (name or ID) for commands run without --project
project: "{{ .Project }}"

# Workspace service the CLI talks to
server:
  url: "{{ .ServerURL }}"
  # Bearer token sent with every request; leave empty for none
  token: "{{ .ServerToken }}"

# Local service started by 'codespace serve'
serve:
  port: {{ .ServePort }}
  db_path: "{{ .ServeDBPath }}"
  # Maximum run time of a single run, build or terminal command
  exec_timeout: "{{ .ServeExecTimeout }}"

# Diagnostic logging (debug, info, warn, error; console or json)
log:
  level: "{{ .LogLevel }}"
  format: "{{ .LogFormat }}"

# Anthropic API for ':explain' and 'codespace explain' (falls back to $ANTHROPIC_API_KEY)
anthropic:
  model: "{{ .AnthropicModel }}"
`

type configTemplateData struct {
	StateDir         string
	Project          string
	ServerURL        string
	ServerToken      string
	ServePort        int
	ServeDBPath      string
	ServeExecTimeout string
	LogLevel         string
	LogFormat        string
	AnthropicModel   string
}

func configFilePath() (string, error) {
	dir, err := configDirFunc()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

func configInitRun() error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(cfgPath); err == nil {
		if !configForce {
			return fmt.Errorf("config file already exists: %s (use --force to overwrite)", cfgPath)
		}
		ui.Warning("Overwriting existing config file")
	}

	data := configTemplateData{
		StateDir:         viper.GetString("state_dir"),
		Project:          viper.GetString("project"),
		ServerURL:        viper.GetString("server.url"),
		ServerToken:      viper.GetString("server.token"),
		ServePort:        viper.GetInt("serve.port"),
		ServeDBPath:      viper.GetString("serve.db_path"),
		ServeExecTimeout: viper.GetString("serve.exec_timeout"),
		LogLevel:         viper.GetString("log.level"),
		LogFormat:        viper.GetString("log.format"),
		AnthropicModel:   viper.GetString("anthropic.model"),
	}

	tmpl, err := template.New("config").Parse(configTemplate)
	if err != nil {
		return fmt.Errorf("template parse error: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("template execute error: %w", err)
	}

	if dryRun {
		ui.DryRunMsg("Would create config file: %s", cfgPath)
		fmt.Fprintln(ui.Out)
		fmt.Fprint(ui.Out, buf.String())
		return nil
	}

	dir := filepath.Dir(cfgPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(cfgPath, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	ui.Success("Config file created: %s", cfgPath)
	fmt.Fprintln(ui.Out)
	fmt.Fprint(ui.Out, buf.String())
	return nil
}

// configKey is one key shown by 'config show'.
type configKey struct {
	Key    string
	Secret bool
}

var configKeys = []configKey{
	{Key: "state_dir"},
	{Key: "project"},
	{Key: "server.url"},
	{Key: "server.token", Secret: true},
	{Key: "serve.port"},
	{Key: "serve.db_path"},
	{Key: "serve.exec_timeout"},
	{Key: "log.level"},
	{Key: "log.format"},
	{Key: "anthropic.api_key", Secret: true},
	{Key: "anthropic.model"},
}

// envVarFor returns the environment variable viper binds to key.
func envVarFor(key string) string {
	return envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

func configShowRun() error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(cfgPath); err == nil {
		ui.Info("Config file: %s", cfgPath)
	} else {
		ui.Info("Config file: (none)")
	}
	fmt.Fprintln(ui.Out)

	fileValues := readConfigFileValues(cfgPath)

	for _, k := range configKeys {
		val := viper.Get(k.Key)
		if k.Secret {
			val = maskSecret(viper.GetString(k.Key))
		}
		source := detectSource(k.Key, fileValues)
		fmt.Fprintf(ui.Out, "  %-22s %v  %s\n", k.Key, val, source)
	}

	return nil
}

// maskSecret hides all but the last four characters.
func maskSecret(v string) string {
	if v == "" {
		return ""
	}
	if len(v) <= 4 {
		return "****"
	}
	return "****" + v[len(v)-4:]
}

// readConfigFileValues returns the dotted keys set in the YAML file at path.
func readConfigFileValues(path string) map[string]bool {
	result := make(map[string]bool)
	data, err := os.ReadFile(path)
	if err != nil {
		return result
	}
	var parsed map[string]any
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return result
	}
	flattenKeys("", parsed, result)
	return result
}

func flattenKeys(prefix string, m map[string]any, result map[string]bool) {
	for key, val := range m {
		if prefix != "" {
			key = prefix + "." + key
		}
		if nested, ok := val.(map[string]any); ok {
			flattenKeys(key, nested, result)
			continue
		}
		result[key] = true
	}
}

// detectSource reports whether key comes from the environment, the config
// file or the built-in defaults.
func detectSource(key string, fileValues map[string]bool) string {
	env := envVarFor(key)
	switch {
	case os.Getenv(env) != "":
		return fmt.Sprintf("(env: %s)", env)
	case fileValues[key]:
		return "(file)"
	}
	return "(default)"
}

// editorName returns $EDITOR, falling back to $VISUAL.
func editorName() (string, error) {
	for _, env := range []string{"EDITOR", "VISUAL"} {
		if name := os.Getenv(env); name != "" {
			return name, nil
		}
	}
	return "", errNoEditor
}

func configEditRun() error {
	name, err := editorName()
	if err != nil {
		return err
	}
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}
	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s (run 'codespace config init' first)", cfgPath)
	}
	if dryRun {
		ui.DryRunMsg("Would open %s in %s", cfgPath, name)
		return nil
	}
	return editFunc(cfgPath)
}
