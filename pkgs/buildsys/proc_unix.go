//go:build unix

package buildsys

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// killGroup starts cmd in its own process group and makes cancellation
// kill the whole group, so compilers spawned by make or cargo die too.
func killGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		err := unix.Kill(-cmd.Process.Pid, unix.SIGKILL)
		if err == unix.ESRCH {
			return nil
		}
		return err
	}
}
