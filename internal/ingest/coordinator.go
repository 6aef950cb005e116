package ingest

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/mschirtzinger/savewatch/internal/extract"
)

// Config holds configuration for the Coordinator.
type Config struct {
	// DebounceWindow is how long a candidate's size and mtime must hold
	// still before it is considered complete and dispatched.
	DebounceWindow time.Duration

	// IdleDelay is how long after dispatching tiers 0 and 1 the coordinator
	// waits, with no new candidates, before dispatching the expensive full
	// tier on its own.
	IdleDelay time.Duration

	// KillGrace is how long a cancelled worker gets to exit after the
	// polite signal before it is forcibly killed.
	KillGrace time.Duration

	// EventBuffer is the capacity of the Events channel.
	EventBuffer int

	// Logger for coordinator activity.
	Logger *log.Logger

	// Clock drives debounce and idle timing. Nil means the system clock.
	Clock Clock
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		DebounceWindow: 500 * time.Millisecond,
		IdleDelay:      2 * time.Second,
		KillGrace:      2 * time.Second,
		EventBuffer:    16,
		Logger:         log.New(os.Stderr, "[ingest] ", log.LstdFlags),
		Clock:          RealClock(),
	}
}

// EventKind classifies coordinator events.
type EventKind int

const (
	// EventDispatched means a generation-tagged job was started for a tier.
	EventDispatched EventKind = iota
	// EventCommitted means a job's result became the tier's cached result.
	EventCommitted
	// EventDiscarded means a finished job's generation was no longer the
	// latest, so the cache refused it.
	EventDiscarded
	// EventSuperseded means an in-flight job was cancelled because a newer
	// candidate arrived.
	EventSuperseded
	// EventFailed means a job could not start, exited nonzero, or produced
	// an unreadable payload.
	EventFailed
	// EventUnreadable means the candidate file could not be statted during
	// the stability check.
	EventUnreadable
)

func (k EventKind) String() string {
	switch k {
	case EventDispatched:
		return "dispatched"
	case EventCommitted:
		return "committed"
	case EventDiscarded:
		return "discarded"
	case EventSuperseded:
		return "superseded"
	case EventFailed:
		return "failed"
	case EventUnreadable:
		return "unreadable"
	default:
		return "unknown"
	}
}

// Event reports one pipeline transition. Tier and Generation are meaningful
// for job events; EventUnreadable carries only the path.
type Event struct {
	Kind       EventKind
	Tier       extract.Tier
	Generation uint64
	Path       string
	Err        error
	Time       time.Time
}

// candidate is the single tracked pending input with its last observation.
type candidate struct {
	path   string
	size   int64
	mtime  time.Time
	statOK bool
}

func (cd *candidate) observe() error {
	info, err := os.Stat(cd.path)
	if err != nil {
		cd.statOK = false
		return err
	}
	cd.statOK = true
	cd.size = info.Size()
	cd.mtime = info.ModTime()
	return nil
}

type tierJob struct {
	job        Job
	generation uint64
	path       string
	startedAt  time.Time
}

// Coordinator owns the candidate state machine: it debounces file-change
// notifications down to one stable candidate, dispatches generation-tagged
// tier jobs for it, and commits their results into the cache.
//
// All scheduling state lives in a single run goroutine; the exported
// methods communicate with it over channels and never block.
type Coordinator struct {
	config *Config
	cache  *Cache
	runner Runner
	clock  Clock

	notifyCh chan string
	demandCh chan extract.Tier
	events   chan Event

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	started bool

	// Owned by the run goroutine.
	candidate  *candidate
	debounce   Timer
	idle       Timer
	jobs       [extract.NumTiers]*tierJob
	stablePath string
	pending    [extract.NumTiers]bool
}

// New creates a Coordinator committing into cache and running jobs through
// runner. A nil config uses DefaultConfig.
func New(cache *Cache, runner Runner, config *Config) (*Coordinator, error) {
	if cache == nil {
		return nil, fmt.Errorf("cache cannot be nil")
	}
	if runner == nil {
		return nil, fmt.Errorf("runner cannot be nil")
	}
	if config == nil {
		config = DefaultConfig()
	}
	defaults := DefaultConfig()
	if config.DebounceWindow <= 0 {
		config.DebounceWindow = defaults.DebounceWindow
	}
	if config.IdleDelay <= 0 {
		config.IdleDelay = defaults.IdleDelay
	}
	if config.KillGrace <= 0 {
		config.KillGrace = defaults.KillGrace
	}
	if config.EventBuffer <= 0 {
		config.EventBuffer = defaults.EventBuffer
	}
	if config.Logger == nil {
		config.Logger = defaults.Logger
	}
	clock := config.Clock
	if clock == nil {
		clock = RealClock()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		config:   config,
		cache:    cache,
		runner:   runner,
		clock:    clock,
		notifyCh: make(chan string, 1),
		demandCh: make(chan extract.Tier, 2*extract.NumTiers),
		events:   make(chan Event, config.EventBuffer),
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Start launches the run goroutine. Calling Start twice is an error.
func (c *Coordinator) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return fmt.Errorf("coordinator already started")
	}
	c.started = true
	c.wg.Add(1)
	go c.run()
	return nil
}

// Stop cancels in-flight jobs and waits for the run goroutine and the
// cancellation supervisors to finish.
func (c *Coordinator) Stop() {
	c.cancel()
	c.wg.Wait()
}

// NotifyFileChanged records path as the new candidate. The previous pending
// candidate, if any, is overwritten, never queued. Never blocks: under a
// burst, older unprocessed notifications are dropped in favor of the
// newest.
func (c *Coordinator) NotifyFileChanged(path string) {
	for {
		select {
		case c.notifyCh <- path:
			return
		case <-c.ctx.Done():
			return
		default:
		}

		// Slot is full; drop the stale path so the newest wins.
		select {
		case <-c.notifyCh:
		default:
		}
	}
}

// RequestTierNow asks for tier to run as soon as possible: immediately if a
// stable input exists, otherwise at the next stable dispatch. Invalid tiers
// are ignored. Never blocks.
func (c *Coordinator) RequestTierNow(tier extract.Tier) {
	if !tier.Valid() {
		return
	}
	select {
	case c.demandCh <- tier:
	case <-c.ctx.Done():
	default:
	}
}

// Result returns the latest committed result for tier.
func (c *Coordinator) Result(tier extract.Tier) (*TierResult, bool) {
	return c.cache.Result(tier)
}

// Events returns the coordinator's event stream. The channel is owned by
// the coordinator and never closed; under backpressure the oldest events
// are dropped so the stream always ends on the newest.
func (c *Coordinator) Events() <-chan Event {
	return c.events
}

func (c *Coordinator) emit(kind EventKind, tier extract.Tier, generation uint64, path string, err error) {
	ev := Event{Kind: kind, Tier: tier, Generation: generation, Path: path, Err: err, Time: c.clock.Now()}
	for {
		select {
		case c.events <- ev:
			return
		default:
		}
		select {
		case <-c.events:
		default:
		}
	}
}

func (c *Coordinator) run() {
	defer c.wg.Done()

	for {
		var debounceC, idleC <-chan time.Time
		if c.debounce != nil {
			debounceC = c.debounce.C()
		}
		if c.idle != nil {
			idleC = c.idle.C()
		}

		select {
		case <-c.ctx.Done():
			c.shutdown()
			return

		case path := <-c.notifyCh:
			c.onNotify(path)

		case tier := <-c.demandCh:
			c.onDemand(tier)

		case <-debounceC:
			c.onDebounce()

		case <-idleC:
			c.idle = nil
			c.onIdle()

		case <-c.jobDone(extract.TierMeta):
			c.onJobExit(extract.TierMeta)

		case <-c.jobDone(extract.TierStatus):
			c.onJobExit(extract.TierStatus)

		case <-c.jobDone(extract.TierFull):
			c.onJobExit(extract.TierFull)
		}
	}
}

func (c *Coordinator) jobDone(tier extract.Tier) <-chan struct{} {
	if j := c.jobs[tier]; j != nil {
		return j.job.Done()
	}
	return nil
}

// onNotify supersedes anything in flight and starts debouncing the new
// candidate. It does not wait for cancelled workers to exit.
func (c *Coordinator) onNotify(path string) {
	for tier := range c.jobs {
		c.supersede(extract.Tier(tier))
	}
	c.stopIdle()

	cand := &candidate{path: path}
	cand.observe()
	c.candidate = cand
	c.rearmDebounce()
	c.config.Logger.Printf("Candidate: %s", path)
}

// onDebounce checks the candidate's stability. An unchanged size and mtime
// across the window means the writer is done; anything else restarts the
// window. A candidate that never stabilizes just keeps waiting.
func (c *Coordinator) onDebounce() {
	cand := c.candidate
	if cand == nil {
		c.debounce = nil
		return
	}

	prevOK, prevSize, prevMtime := cand.statOK, cand.size, cand.mtime
	if err := cand.observe(); err != nil {
		c.emit(EventUnreadable, 0, 0, cand.path, fmt.Errorf("%w: %v", ErrInputUnreadable, err))
		c.rearmDebounce()
		return
	}
	if !prevOK || cand.size != prevSize || !cand.mtime.Equal(prevMtime) {
		c.rearmDebounce()
		return
	}

	// Stable. The candidate is consumed into dispatched generations.
	c.debounce = nil
	c.candidate = nil
	c.stablePath = cand.path

	c.dispatch(extract.TierMeta, cand.path)
	c.dispatch(extract.TierStatus, cand.path)
	c.pending[extract.TierMeta] = false
	c.pending[extract.TierStatus] = false
	if c.pending[extract.TierFull] {
		c.pending[extract.TierFull] = false
		c.dispatch(extract.TierFull, cand.path)
	} else {
		c.armIdle()
	}
}

// onIdle fires when no new candidate arrived for the whole idle delay: the
// system is quiet enough to afford the full tier.
func (c *Coordinator) onIdle() {
	if c.stablePath == "" {
		return
	}
	c.dispatch(extract.TierFull, c.stablePath)
}

func (c *Coordinator) onDemand(tier extract.Tier) {
	if c.stablePath == "" || c.candidate != nil {
		// Nothing stable yet, or a newer candidate is settling: remember
		// the demand and serve it with the next stable dispatch.
		c.pending[tier] = true
		return
	}
	if c.jobs[tier] != nil {
		// Already computing the latest stable input.
		return
	}
	if tier == extract.TierFull {
		c.stopIdle()
	}
	c.dispatch(tier, c.stablePath)
}

func (c *Coordinator) dispatch(tier extract.Tier, path string) {
	generation := c.cache.NextGeneration(tier)
	job, err := c.runner.Run(tier, path)
	if err != nil {
		werr := &WorkerError{Tier: tier, Generation: generation, Err: err}
		c.config.Logger.Printf("Dispatch failed: %v", werr)
		c.emit(EventFailed, tier, generation, path, werr)
		return
	}
	c.jobs[tier] = &tierJob{job: job, generation: generation, path: path, startedAt: c.clock.Now()}
	c.config.Logger.Printf("Dispatched tier %s generation %d: %s", tier, generation, path)
	c.emit(EventDispatched, tier, generation, path, nil)
}

// supersede detaches tier's in-flight job and hands it to a supervisor that
// escalates from the polite signal to a kill after the grace period. The
// job's result is never committed.
func (c *Coordinator) supersede(tier extract.Tier) {
	j := c.jobs[tier]
	if j == nil {
		return
	}
	c.jobs[tier] = nil

	c.config.Logger.Printf("Superseding tier %s generation %d", tier, j.generation)
	if err := j.job.Terminate(); err != nil {
		c.config.Logger.Printf("Terminate failed for tier %s: %v", tier, err)
	}

	grace := c.config.KillGrace
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		select {
		case <-j.job.Done():
		case <-time.After(grace):
			j.job.Kill()
			<-j.job.Done()
		}
		c.emit(EventSuperseded, tier, j.generation, j.path, ErrStaleResultDiscarded)
	}()
}

func (c *Coordinator) onJobExit(tier extract.Tier) {
	j := c.jobs[tier]
	if j == nil {
		return
	}
	c.jobs[tier] = nil
	took := c.clock.Now().Sub(j.startedAt)

	payload, err := j.job.Result()
	if err != nil {
		werr := &WorkerError{Tier: tier, Generation: j.generation, Err: err}
		c.config.Logger.Printf("Worker failed: %v", werr)
		c.emit(EventFailed, tier, j.generation, j.path, werr)
		return
	}

	if err := c.cache.Commit(tier, j.generation, payload, took); err != nil {
		c.config.Logger.Printf("Commit refused: %v", err)
		c.emit(EventDiscarded, tier, j.generation, j.path, err)
		return
	}
	c.config.Logger.Printf("Committed tier %s generation %d in %s", tier, j.generation, took.Round(time.Millisecond))
	c.emit(EventCommitted, tier, j.generation, j.path, nil)
}

func (c *Coordinator) shutdown() {
	for tier := range c.jobs {
		c.supersede(extract.Tier(tier))
	}
	if c.debounce != nil {
		c.debounce.Stop()
		c.debounce = nil
	}
	c.stopIdle()
}

// rearmDebounce starts or restarts the stability window, draining a tick
// that fired but was not yet received.
func (c *Coordinator) rearmDebounce() {
	if c.debounce == nil {
		c.debounce = c.clock.NewTimer(c.config.DebounceWindow)
		return
	}
	if !c.debounce.Stop() {
		select {
		case <-c.debounce.C():
		default:
		}
	}
	c.debounce.Reset(c.config.DebounceWindow)
}

func (c *Coordinator) stopIdle() {
	if c.idle == nil {
		return
	}
	if !c.idle.Stop() {
		select {
		case <-c.idle.C():
		default:
		}
	}
	c.idle = nil
}

func (c *Coordinator) armIdle() {
	c.stopIdle()
	c.idle = c.clock.NewTimer(c.config.IdleDelay)
}
