package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/codespace/internal/output"
)

// testEnv sets up an isolated config dir, viper and output for testing.
// Output written through ui is captured in the returned buffer.
func testEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	origFunc := configDirFunc
	configDirFunc = func() (string, error) { return dir, nil }
	t.Cleanup(func() { configDirFunc = origFunc })

	viper.Reset()
	setDefaults(dir)

	projectFlag = ""
	serverFlag = ""
	dryRun = false
	configForce = false

	color.NoColor = true
	ui = &output.UI{Out: &bytes.Buffer{}, ErrOut: &bytes.Buffer{}}
	return dir
}

// stdout returns what has been written to ui.Out since testEnv.
func stdout(t *testing.T) string {
	t.Helper()
	return ui.Out.(*bytes.Buffer).String()
}

func TestConfigInit_CreatesFile(t *testing.T) {
	dir := testEnv(t)

	require.NoError(t, configInitRun())

	data, err := os.ReadFile(filepath.Join(dir, "config.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "codespace configuration")
	assert.Contains(t, string(data), `url: "http://localhost:8080"`)
	assert.Contains(t, string(data), "port: 8080")
	assert.Contains(t, string(data), `exec_timeout: "30s"`)
}

func TestConfigInit_FileIsValidYAML(t *testing.T) {
	dir := testEnv(t)
	viper.Set("project", "demo")
	require.NoError(t, configInitRun())

	values := readConfigFileValues(filepath.Join(dir, "config.yaml"))
	assert.True(t, values["server.url"])
	assert.True(t, values["serve.db_path"])
	assert.True(t, values["anthropic.model"])
	assert.True(t, values["project"])
}

func TestConfigInit_RefusesOverwrite(t *testing.T) {
	dir := testEnv(t)
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("existing"), 0o644))

	err := configInitRun()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestConfigInit_ForceOverwrite(t *testing.T) {
	dir := testEnv(t)
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("existing"), 0o644))

	configForce = true
	require.NoError(t, configInitRun())

	data, err := os.ReadFile(cfgPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "codespace configuration")
}

func TestConfigInit_DryRun(t *testing.T) {
	dir := testEnv(t)
	dryRun = true
	ui.DryRun = true
	t.Cleanup(func() { dryRun = false })

	require.NoError(t, configInitRun())

	_, err := os.Stat(filepath.Join(dir, "config.yaml"))
	assert.True(t, os.IsNotExist(err), "config file should not exist in dry-run mode")
}

func TestConfigShow_NoFile(t *testing.T) {
	testEnv(t)

	require.NoError(t, configShowRun())
	out := stdout(t)
	assert.Contains(t, out, "(none)")
	assert.Contains(t, out, "server.url")
	assert.Contains(t, out, "(default)")
}

func TestConfigShow_MasksSecrets(t *testing.T) {
	testEnv(t)
	viper.Set("server.token", "supersecret1234")

	require.NoError(t, configShowRun())
	out := stdout(t)
	assert.NotContains(t, out, "supersecret")
	assert.Contains(t, out, "****1234")
}

func TestConfigShow_WithFile(t *testing.T) {
	testEnv(t)
	require.NoError(t, configInitRun())

	require.NoError(t, configShowRun())
	assert.Contains(t, stdout(t), "(file)")
}

func TestConfigEdit_NoEditor(t *testing.T) {
	testEnv(t)
	t.Setenv("EDITOR", "")
	t.Setenv("VISUAL", "")

	err := configEditRun()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "$EDITOR is not set")
}

func TestConfigEdit_NoConfigFile(t *testing.T) {
	testEnv(t)
	t.Setenv("EDITOR", "echo")

	err := configEditRun()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestDetectSource(t *testing.T) {
	fileValues := map[string]bool{"server.url": true}

	t.Setenv("CODESPACE_SERVER_TOKEN", "val")
	assert.Equal(t, "(env: CODESPACE_SERVER_TOKEN)", detectSource("server.token", fileValues))
	assert.Equal(t, "(file)", detectSource("server.url", fileValues))
	assert.Equal(t, "(default)", detectSource("log.level", fileValues))
}

func TestEnvVarFor(t *testing.T) {
	assert.Equal(t, "CODESPACE_SERVE_EXEC_TIMEOUT", envVarFor("serve.exec_timeout"))
	assert.Equal(t, "CODESPACE_STATE_DIR", envVarFor("state_dir"))
}

func TestFlattenKeys(t *testing.T) {
	input := map[string]any{
		"top": "val",
		"nested": map[string]any{
			"a": "1",
			"b": "2",
		},
	}

	result := make(map[string]bool)
	flattenKeys("", input, result)

	assert.True(t, result["top"])
	assert.True(t, result["nested.a"])
	assert.True(t, result["nested.b"])
	assert.False(t, result["nested"])
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "", maskSecret(""))
	assert.Equal(t, "****", maskSecret("abc"))
	assert.Equal(t, "****6789", maskSecret("123456789"))
}
