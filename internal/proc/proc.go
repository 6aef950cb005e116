// Package proc starts and supervises worker child processes. Workers run
// out-of-process so a superseded extraction can be stopped by signal at any
// point, without cooperation from the code being cancelled.
package proc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"
)

// Handle is one running child process. It owns the process group, so
// Terminate and Kill reach any helpers the worker spawned.
//
// Output, Stderr, ExitCode, and the error from Wait are stable once Done is
// closed; reading them earlier returns placeholders.
type Handle struct {
	cmd    *exec.Cmd
	stdout bytes.Buffer
	stderr bytes.Buffer

	done    chan struct{}
	waitErr error
}

// Start launches name with args in its own process group and begins
// collecting its output.
func Start(name string, args ...string) (*Handle, error) {
	h := &Handle{done: make(chan struct{})}
	h.cmd = exec.Command(name, args...)
	h.cmd.Stdout = &h.stdout
	h.cmd.Stderr = &h.stderr
	h.cmd.SysProcAttr = sysProcAttr()

	if err := h.cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", name, err)
	}
	go func() {
		h.waitErr = h.cmd.Wait()
		close(h.done)
	}()
	return h, nil
}

// Pid returns the child's process ID.
func (h *Handle) Pid() int {
	return h.cmd.Process.Pid
}

// Done is closed when the process has exited and its output is settled.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the process exits or ctx is cancelled. It returns the
// process's wait error, which is non-nil for nonzero exits and signals.
func (h *Handle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return h.waitErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Terminate asks the process group to exit. Calling it after the process
// has exited is a no-op.
func (h *Handle) Terminate() error {
	return h.signalGroup(terminateGroup)
}

// Kill forcibly ends the process group. Calling it after the process has
// exited is a no-op.
func (h *Handle) Kill() error {
	return h.signalGroup(killGroup)
}

func (h *Handle) signalGroup(sig func(*os.Process) error) error {
	select {
	case <-h.done:
		return nil
	default:
	}
	err := sig(h.cmd.Process)
	if err == nil || errors.Is(err, os.ErrProcessDone) || errors.Is(err, syscall.ESRCH) {
		return nil
	}
	return err
}

// Exited reports whether the process has finished.
func (h *Handle) Exited() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// ExitCode returns the process's exit code, or -1 while it is still
// running or when it was ended by a signal.
func (h *Handle) ExitCode() int {
	if !h.Exited() {
		return -1
	}
	if state := h.cmd.ProcessState; state != nil {
		return state.ExitCode()
	}
	return -1
}

// Output returns everything the process wrote to stdout.
func (h *Handle) Output() []byte {
	if !h.Exited() {
		return nil
	}
	return h.stdout.Bytes()
}

// Stderr returns everything the process wrote to stderr.
func (h *Handle) Stderr() []byte {
	if !h.Exited() {
		return nil
	}
	return h.stderr.Bytes()
}
