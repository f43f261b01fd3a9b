package daemon

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPIDFile_WriteAndRead(t *testing.T) {
	pf := NewPIDFile(filepath.Join(t.TempDir(), "serve.json"))

	started := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, pf.WriteRecord(Record{PID: 12345, Addr: ":8080", StartedAt: started}))

	rec, err := pf.Read()
	require.NoError(t, err)
	assert.Equal(t, 12345, rec.PID)
	assert.Equal(t, ":8080", rec.Addr)
	assert.True(t, started.Equal(rec.StartedAt))
}

func TestPIDFile_Write_CurrentProcess(t *testing.T) {
	pf := NewPIDFile(filepath.Join(t.TempDir(), "nested", "serve.json"))

	require.NoError(t, pf.Write("127.0.0.1:9000"))

	rec, err := pf.Read()
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), rec.PID)
	assert.Equal(t, "127.0.0.1:9000", rec.Addr)
	assert.False(t, rec.StartedAt.IsZero())
}

func TestPIDFile_WriteRecord_InvalidPID(t *testing.T) {
	pf := NewPIDFile(filepath.Join(t.TempDir(), "serve.json"))
	assert.Error(t, pf.WriteRecord(Record{PID: 0}))
}

func TestPIDFile_Read_MissingFile(t *testing.T) {
	pf := NewPIDFile(filepath.Join(t.TempDir(), "nonexistent.json"))

	_, err := pf.Read()
	assert.True(t, os.IsNotExist(err))
}

func TestPIDFile_Read_InvalidContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("not-json\n"), 0o644))

	_, err := NewPIDFile(path).Read()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid PID file content")
}

func TestPIDFile_Remove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "serve.json")
	pf := NewPIDFile(path)
	require.NoError(t, pf.WriteRecord(Record{PID: 1}))

	require.NoError(t, pf.Remove())
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	// a second remove is a no-op
	assert.NoError(t, pf.Remove())
}

func TestPIDFile_Live_CurrentProcess(t *testing.T) {
	pf := NewPIDFile(filepath.Join(t.TempDir(), "serve.json"))
	require.NoError(t, pf.Write(":8080"))

	rec, err := pf.Live()
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), rec.PID)
}

func TestPIDFile_Live_DeadProcessRemovesRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "serve.json")
	pf := NewPIDFile(path)
	// A PID this high almost certainly does not exist.
	require.NoError(t, pf.WriteRecord(Record{PID: 999999, Addr: ":8080"}))

	_, err := pf.Live()
	assert.ErrorIs(t, err, ErrNotRunning)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestPIDFile_Live_NoFile(t *testing.T) {
	pf := NewPIDFile(filepath.Join(t.TempDir(), "serve.json"))
	_, err := pf.Live()
	assert.ErrorIs(t, err, ErrNotRunning)
}
