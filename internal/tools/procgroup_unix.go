//go:build unix

package tools

import (
	"os/exec"
	"syscall"
)

// isolate runs cmd in its own process group so a timeout kills the whole tree.
func isolate(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
