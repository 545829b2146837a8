//go:build unix

package orchestrator

import (
	"os/exec"
	"syscall"
)

// configureTermination starts the command in its own process group and
// makes cancellation signal the whole group, so helpers spawned by build
// scripts stop together with the script.
func configureTermination(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGTERM)
	}
}
