package ingest

import (
	"errors"
	"fmt"

	"github.com/mschirtzinger/savewatch/internal/extract"
)

// Operational errors. These are normal pipeline events: the coordinator logs
// them and keeps running, and the cache keeps serving its previous good
// result for the affected tier.
var (
	// ErrStaleResultDiscarded means a job finished after its generation had
	// been superseded, so its result was dropped.
	ErrStaleResultDiscarded = errors.New("stale result discarded")

	// ErrWorkerTerminated means a worker process was ended by a signal,
	// either a cancellation from the coordinator or an outside kill.
	ErrWorkerTerminated = errors.New("worker terminated")

	// ErrInputUnreadable means the candidate file could not be opened or
	// statted when the pipeline needed it.
	ErrInputUnreadable = errors.New("input unreadable")
)

// WorkerError wraps a tier job failure with its dispatch identity.
type WorkerError struct {
	Tier       extract.Tier
	Generation uint64
	Err        error
}

func (e *WorkerError) Error() string {
	return fmt.Sprintf("tier %s worker (generation %d): %v", e.Tier, e.Generation, e.Err)
}

func (e *WorkerError) Unwrap() error {
	return e.Err
}

// IsOperational reports whether err is one of the expected pipeline failures
// that must never escape as a crash of the host.
func IsOperational(err error) bool {
	return errors.Is(err, ErrStaleResultDiscarded) ||
		errors.Is(err, ErrWorkerTerminated) ||
		errors.Is(err, ErrInputUnreadable)
}
