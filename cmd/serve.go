package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/joescharf/codespace/internal/backend"
	"github.com/joescharf/codespace/internal/daemon"
	"github.com/joescharf/codespace/internal/executor"
	"github.com/joescharf/codespace/internal/logging"
	"github.com/joescharf/codespace/internal/server"
	"github.com/joescharf/codespace/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the workspace service",
	Long: `Run the workspace service in the foreground: a REST API over a local
SQLite database that stores projects and runs their code.

Use 'serve start' to run it in the background, 'serve stop' to stop it and
'serve status' to check on it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveForegroundRun(cmd.Context())
	},
}

var serveStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the workspace service in the background",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveStartRun()
	},
}

var serveStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the background workspace service",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveStopRun()
	},
}

var serveStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether the background workspace service is running",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveStatusRun()
	},
}

func init() {
	serveCmd.PersistentFlags().Int("port", 8080, "port to listen on")
	_ = viper.BindPFlag("serve.port", serveCmd.PersistentFlags().Lookup("port"))

	serveCmd.AddCommand(serveStartCmd, serveStopCmd, serveStatusCmd)
	rootCmd.AddCommand(serveCmd)
}

// pidFile returns the record of the background server.
func pidFile() *daemon.PIDFile {
	return daemon.NewPIDFile(filepath.Join(viper.GetString("state_dir"), "codespace-serve.json"))
}

// serveLogPath is where the background server writes its output.
func serveLogPath() string {
	return filepath.Join(viper.GetString("state_dir"), "codespace-serve.log")
}

func serveAddr() string {
	return fmt.Sprintf(":%d", viper.GetInt("serve.port"))
}

// newServiceHandler opens the database and builds the service router. The
// returned closer releases the database.
func newServiceHandler(ctx context.Context, log *zap.Logger) (http.Handler, func() error, error) {
	dbPath := viper.GetString("serve.db_path")
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create data dir: %w", err)
	}
	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, nil, fmt.Errorf("migrate database: %w", err)
	}

	timeout, err := time.ParseDuration(viper.GetString("serve.exec_timeout"))
	if err != nil {
		_ = s.Close()
		return nil, nil, fmt.Errorf("invalid serve.exec_timeout: %w", err)
	}
	exe := executor.New(timeout, log.Named("executor"))
	srv := server.NewServer(s, exe, viper.GetString("server.token"), log)
	return srv.Router(), s.Close, nil
}

func serveForegroundRun(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	log := logging.Named("serve")
	handler, closeDB, err := newServiceHandler(ctx, log)
	if err != nil {
		return err
	}
	defer func() { _ = closeDB() }()

	addr := serveAddr()
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	pf := pidFile()
	if err := pf.Write(addr); err != nil {
		log.Warn("could not write PID file", zap.Error(err))
	}
	defer func() { _ = pf.Remove() }()

	ctx, stop := signal.NotifyContext(ctx, shutdownSignals()...)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()
	ui.Info("Serving workspace API at http://localhost%s", addr)
	log.Info("server started", zap.String("addr", addr), zap.String("db", viper.GetString("serve.db_path")))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func serveStartRun() error {
	pf := pidFile()
	if rec, err := pf.Live(); err == nil {
		return fmt.Errorf("server already running (pid %d, %s)", rec.PID, rec.Addr)
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("find executable: %w", err)
	}
	args := []string{"serve", "--port", strconv.Itoa(viper.GetInt("serve.port"))}
	if cfg := viper.ConfigFileUsed(); cfg != "" {
		args = append(args, "--config", cfg)
	}

	if dryRun {
		ui.DryRunMsg("Would start: %s %v", exe, args)
		return nil
	}

	if err := os.MkdirAll(viper.GetString("state_dir"), 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	logFile, err := os.OpenFile(serveLogPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer func() { _ = logFile.Close() }()

	child := exec.Command(exe, args...)
	child.Stdout = logFile
	child.Stderr = logFile
	setDaemonAttrs(child)
	if err := child.Start(); err != nil {
		return fmt.Errorf("start server: %w", err)
	}

	addr := serveAddr()
	if err := pf.WriteRecord(daemon.Record{PID: child.Process.Pid, Addr: addr, StartedAt: time.Now().UTC()}); err != nil {
		return err
	}
	_ = child.Process.Release()

	ui.Success("Server started (pid %d) at http://localhost%s", child.Process.Pid, addr)
	ui.VerboseLog("Logs: %s", serveLogPath())
	return nil
}

func serveStopRun() error {
	pf := pidFile()
	if dryRun {
		if rec, err := pf.Live(); err == nil {
			ui.DryRunMsg("Would stop server (pid %d)", rec.PID)
		}
		return nil
	}
	term, kill := stopSignals()
	err := pf.Stop(5*time.Second, term, kill)
	if errors.Is(err, daemon.ErrNotRunning) {
		return fmt.Errorf("server is not running")
	}
	if err != nil {
		return err
	}
	ui.Success("Server stopped")
	return nil
}

func serveStatusRun() error {
	rec, err := pidFile().Live()
	if errors.Is(err, daemon.ErrNotRunning) {
		ui.Info("Server is not running")
		return nil
	}
	if err != nil {
		return err
	}

	ui.Success("Server running (pid %d, up %s)", rec.PID, time.Since(rec.StartedAt).Round(time.Second))
	url := "http://localhost" + rec.Addr
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c := backend.New(backend.Config{BaseURL: url})
	if err := c.Health(ctx); err != nil {
		ui.Warning("Health check failed at %s: %v", url, err)
		return nil
	}
	ui.Info("Healthy at %s", url)
	return nil
}
