package ingest

import (
	"bytes"
	"fmt"
	"os"
	"strconv"

	"github.com/mschirtzinger/savewatch/internal/extract"
	"github.com/mschirtzinger/savewatch/internal/proc"
)

// Runner launches one extraction job for a tier.
type Runner interface {
	Run(tier extract.Tier, path string) (Job, error)
}

// Job is one in-flight extraction. Result is valid once Done is closed.
type Job interface {
	Done() <-chan struct{}
	Result() (*extract.Payload, error)

	// Terminate asks the job to stop; Kill forces it. Both are safe to call
	// after the job has finished.
	Terminate() error
	Kill() error
}

// SubprocessRunner runs each tier by re-invoking the host binary with the
// hidden worker subcommand. The child writes a payload envelope to stdout
// and exits zero; anything else is a failure, read from its stderr.
type SubprocessRunner struct {
	// Binary is the executable to invoke.
	Binary string

	// ExtraArgs are appended to every worker invocation, e.g. a --profile
	// flag shared by all tiers.
	ExtraArgs []string
}

// NewSubprocessRunner builds a runner that re-invokes the current
// executable.
func NewSubprocessRunner(extraArgs ...string) (*SubprocessRunner, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to locate own executable: %w", err)
	}
	return &SubprocessRunner{Binary: exe, ExtraArgs: extraArgs}, nil
}

func (r *SubprocessRunner) Run(tier extract.Tier, path string) (Job, error) {
	args := []string{"worker", "--tier", strconv.Itoa(int(tier)), "--save", path}
	args = append(args, r.ExtraArgs...)

	h, err := proc.Start(r.Binary, args...)
	if err != nil {
		return nil, err
	}
	return &subprocessJob{h: h}, nil
}

type subprocessJob struct {
	h *proc.Handle
}

func (j *subprocessJob) Done() <-chan struct{} {
	return j.h.Done()
}

func (j *subprocessJob) Terminate() error {
	return j.h.Terminate()
}

func (j *subprocessJob) Kill() error {
	return j.h.Kill()
}

func (j *subprocessJob) Result() (*extract.Payload, error) {
	if !j.h.Exited() {
		return nil, fmt.Errorf("worker still running")
	}
	if code := j.h.ExitCode(); code != 0 {
		detail := string(bytes.TrimSpace(j.h.Stderr()))
		if code == -1 {
			// Ended by signal: a cancellation, or something outside killed it.
			return nil, fmt.Errorf("%w (pid %d)", ErrWorkerTerminated, j.h.Pid())
		}
		if detail == "" {
			return nil, fmt.Errorf("worker exited with code %d", code)
		}
		return nil, fmt.Errorf("worker exited with code %d: %s", code, detail)
	}

	p, err := extract.ReadPayload(bytes.NewReader(j.h.Output()))
	if err != nil {
		return nil, fmt.Errorf("worker produced an unreadable payload: %w", err)
	}
	return p, nil
}
