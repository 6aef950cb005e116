//go:build unix

package proc

import (
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

// sysProcAttr puts the child in its own process group so signals reach the
// whole worker tree.
func sysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true}
}

func terminateGroup(p *os.Process) error {
	return unix.Kill(-p.Pid, unix.SIGTERM)
}

func killGroup(p *os.Process) error {
	return unix.Kill(-p.Pid, unix.SIGKILL)
}
