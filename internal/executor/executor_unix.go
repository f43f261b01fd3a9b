//go:build !windows

package executor

import (
	"os/exec"
	"syscall"
)

// configureCmd runs the command in its own process group so cancellation
// kills everything it spawned.
func configureCmd(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
