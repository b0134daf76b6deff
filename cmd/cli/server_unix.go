//go:build !windows

package main

import (
	"os/exec"
	"syscall"
)

// detach moves the child into its own process group so terminal signals
// sent to the CLI don't reach the server
func detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}
