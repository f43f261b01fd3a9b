package cmd

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/joescharf/codespace/internal/daemon"
)

func TestPidFile_Path(t *testing.T) {
	dir := testEnv(t)
	assert.Equal(t, filepath.Join(dir, "codespace-serve.json"), pidFile().Path)
}

func TestServeLogPath(t *testing.T) {
	dir := testEnv(t)
	assert.Equal(t, filepath.Join(dir, "codespace-serve.log"), serveLogPath())
}

func TestServeAddr(t *testing.T) {
	testEnv(t)
	viper.Set("serve.port", 9123)
	assert.Equal(t, ":9123", serveAddr())
}

func TestServeStatusRun_NotRunning(t *testing.T) {
	testEnv(t)

	require.NoError(t, serveStatusRun())
	assert.Contains(t, stdout(t), "not running")
}

func TestServeStatusRun_Running(t *testing.T) {
	dir := testEnv(t)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"status":"ok"}`)
	}))
	defer ts.Close()

	u, err := url.Parse(ts.URL)
	require.NoError(t, err)
	pf := daemon.NewPIDFile(filepath.Join(dir, "codespace-serve.json"))
	require.NoError(t, pf.Write(":"+u.Port()))

	require.NoError(t, serveStatusRun())
	assert.Contains(t, stdout(t), "Server running")
	assert.Contains(t, stdout(t), "Healthy")
}

func TestServeStopRun_NotRunning(t *testing.T) {
	testEnv(t)

	err := serveStopRun()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not running")
}

func TestServeStartRun_AlreadyRunning(t *testing.T) {
	dir := testEnv(t)

	// Record the current, live process.
	pf := daemon.NewPIDFile(filepath.Join(dir, "codespace-serve.json"))
	require.NoError(t, pf.Write(":8080"))
	t.Cleanup(func() { _ = os.Remove(pf.Path) })

	err := serveStartRun()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already running")
}

func TestNewServiceHandler(t *testing.T) {
	dir := testEnv(t)
	viper.Set("serve.db_path", filepath.Join(dir, "data", "codespace.db"))

	handler, closeDB, err := newServiceHandler(context.Background(), zap.NewNop())
	require.NoError(t, err)
	defer func() { _ = closeDB() }()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	_, err = os.Stat(filepath.Join(dir, "data", "codespace.db"))
	assert.NoError(t, err)
}

func TestNewServiceHandler_BadTimeout(t *testing.T) {
	dir := testEnv(t)
	viper.Set("serve.db_path", filepath.Join(dir, "codespace.db"))
	viper.Set("serve.exec_timeout", "soon")

	_, _, err := newServiceHandler(context.Background(), zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "serve.exec_timeout")
}

