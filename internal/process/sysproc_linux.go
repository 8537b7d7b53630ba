//go:build linux

package process

import (
	"os/exec"
	"syscall"
)

// configureSysProcAttr makes the child receive SIGTERM when the test binary
// dies, so a killed test run does not leave auxiliary services behind.
func configureSysProcAttr(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Pdeathsig = syscall.SIGTERM
}
