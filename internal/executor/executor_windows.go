//go:build windows

package executor

import "os/exec"

func configureCmd(*exec.Cmd) {}
