// Package daemon tracks a background `codespace serve` process through a
// small JSON record on disk.
package daemon

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"
)

// ErrNotRunning is returned when no live process is recorded.
var ErrNotRunning = errors.New("server is not running")

// Record describes a running server.
type Record struct {
	PID       int       `json:"pid"`
	Addr      string    `json:"addr"`
	StartedAt time.Time `json:"started_at"`
}

// PIDFile stores a Record at Path.
type PIDFile struct {
	Path string
}

// NewPIDFile creates a PIDFile for the given path.
func NewPIDFile(path string) *PIDFile {
	return &PIDFile{Path: path}
}

// Write records the current process as serving on addr.
func (p *PIDFile) Write(addr string) error {
	return p.WriteRecord(Record{PID: os.Getpid(), Addr: addr, StartedAt: time.Now().UTC()})
}

// WriteRecord replaces the file atomically.
func (p *PIDFile) WriteRecord(rec Record) error {
	if rec.PID <= 0 {
		return fmt.Errorf("invalid pid %d", rec.PID)
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p.Path), 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	tmp := p.Path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, p.Path)
}

// Read loads the record.
func (p *PIDFile) Read() (Record, error) {
	data, err := os.ReadFile(p.Path)
	if err != nil {
		return Record{}, err
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("invalid PID file content: %w", err)
	}
	if rec.PID <= 0 {
		return Record{}, fmt.Errorf("invalid PID file content: pid %d", rec.PID)
	}
	return rec, nil
}

// Remove deletes the file. A missing file is not an error.
func (p *PIDFile) Remove() error {
	if err := os.Remove(p.Path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Live returns the record if its process is alive. A record left behind by a
// dead process is removed.
func (p *PIDFile) Live() (Record, error) {
	rec, err := p.Read()
	if err != nil {
		if os.IsNotExist(err) {
			return Record{}, ErrNotRunning
		}
		return Record{}, err
	}
	if !alive(rec.PID) {
		_ = p.Remove()
		return Record{}, ErrNotRunning
	}
	return rec, nil
}

// Stop sends term to the recorded process and waits up to timeout for it to
// exit, then sends kill. The record is removed once the process is gone.
func (p *PIDFile) Stop(timeout time.Duration, term, kill syscall.Signal) error {
	rec, err := p.Live()
	if err != nil {
		return err
	}
	if err := signal(rec.PID, term); err != nil {
		return fmt.Errorf("signal %d: %w", rec.PID, err)
	}
	if !waitExit(rec.PID, timeout) {
		if err := signal(rec.PID, kill); err != nil {
			return fmt.Errorf("kill %d: %w", rec.PID, err)
		}
		waitExit(rec.PID, timeout)
	}
	return p.Remove()
}

func waitExit(pid int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if !alive(pid) {
			return true
		}
		time.Sleep(50 * time.Millisecond)
	}
	return !alive(pid)
}
