//go:build !unix

package proc

import (
	"os"
	"syscall"
)

// No process groups here: signals hit the direct child only, and the polite
// form degrades to a hard kill.
func sysProcAttr() *syscall.SysProcAttr {
	return nil
}

func terminateGroup(p *os.Process) error {
	return p.Kill()
}

func killGroup(p *os.Process) error {
	return p.Kill()
}
