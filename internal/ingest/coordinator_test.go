package ingest

import (
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/mschirtzinger/savewatch/internal/extract"
)

// fakeClock drives the coordinator's debounce and idle timers by hand.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) NewTimer(d time.Duration) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	ft := &fakeTimer{
		clock:    c,
		ch:       make(chan time.Time, 1),
		deadline: c.now.Add(d),
		active:   true,
	}
	c.timers = append(c.timers, ft)
	return ft
}

// Advance moves the clock and fires every timer whose deadline has passed.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now
	var due []*fakeTimer
	for _, ft := range c.timers {
		if ft.active && !ft.deadline.After(now) {
			ft.active = false
			due = append(due, ft)
		}
	}
	c.mu.Unlock()

	for _, ft := range due {
		select {
		case ft.ch <- now:
		default:
		}
	}
}

func (c *fakeClock) nextDeadline() (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var best time.Time
	found := false
	for _, ft := range c.timers {
		if ft.active && (!found || ft.deadline.Before(best)) {
			best = ft.deadline
			found = true
		}
	}
	return best, found
}

type fakeTimer struct {
	clock    *fakeClock
	ch       chan time.Time
	deadline time.Time
	active   bool
}

func (ft *fakeTimer) C() <-chan time.Time {
	return ft.ch
}

func (ft *fakeTimer) Stop() bool {
	ft.clock.mu.Lock()
	defer ft.clock.mu.Unlock()
	was := ft.active
	ft.active = false
	return was
}

func (ft *fakeTimer) Reset(d time.Duration) bool {
	ft.clock.mu.Lock()
	defer ft.clock.mu.Unlock()
	was := ft.active
	ft.deadline = ft.clock.now.Add(d)
	ft.active = true
	select {
	case <-ft.ch:
	default:
	}
	return was
}

// stubJob is a controllable in-process stand-in for a worker process.
type stubJob struct {
	tier     extract.Tier
	path     string
	stubborn bool

	done chan struct{}
	once sync.Once

	mu         sync.Mutex
	payload    *extract.Payload
	err        error
	terminated bool
	killed     bool
}

func (j *stubJob) Done() <-chan struct{} {
	return j.done
}

func (j *stubJob) Result() (*extract.Payload, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.payload, j.err
}

func (j *stubJob) Terminate() error {
	j.mu.Lock()
	j.terminated = true
	j.mu.Unlock()
	if j.stubborn {
		return nil
	}
	j.fail(ErrWorkerTerminated)
	return nil
}

func (j *stubJob) Kill() error {
	j.mu.Lock()
	j.killed = true
	j.mu.Unlock()
	j.fail(ErrWorkerTerminated)
	return nil
}

func (j *stubJob) succeed(p *extract.Payload) {
	j.mu.Lock()
	j.payload = p
	j.mu.Unlock()
	j.once.Do(func() { close(j.done) })
}

func (j *stubJob) fail(err error) {
	j.mu.Lock()
	if j.err == nil {
		j.err = err
	}
	j.mu.Unlock()
	j.once.Do(func() { close(j.done) })
}

func (j *stubJob) wasTerminated() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.terminated
}

func (j *stubJob) wasKilled() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.killed
}

type stubRunner struct {
	stubborn bool
	started  chan *stubJob
}

func newStubRunner() *stubRunner {
	return &stubRunner{started: make(chan *stubJob, 32)}
}

func (r *stubRunner) Run(tier extract.Tier, path string) (Job, error) {
	j := &stubJob{tier: tier, path: path, stubborn: r.stubborn, done: make(chan struct{})}
	r.started <- j
	return j, nil
}

// eventLog tails the coordinator's event stream for assertions.
type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func collectEvents(t *testing.T, co *Coordinator) *eventLog {
	t.Helper()
	el := &eventLog{}
	stop := make(chan struct{})
	t.Cleanup(func() { close(stop) })
	go func() {
		for {
			select {
			case ev := <-co.Events():
				el.mu.Lock()
				el.events = append(el.events, ev)
				el.mu.Unlock()
			case <-stop:
				return
			}
		}
	}()
	return el
}

func (el *eventLog) count(kind EventKind) int {
	el.mu.Lock()
	defer el.mu.Unlock()
	n := 0
	for _, ev := range el.events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

func (el *eventLog) all(kind EventKind) []Event {
	el.mu.Lock()
	defer el.mu.Unlock()
	var out []Event
	for _, ev := range el.events {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

func waitUntil(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// waitDebounceArmed waits until a timer with a full debounce window remains,
// which distinguishes a freshly armed debounce from a leftover idle timer.
func waitDebounceArmed(t *testing.T, fc *fakeClock) {
	t.Helper()
	waitUntil(t, "debounce armed", func() bool {
		d, ok := fc.nextDeadline()
		return ok && d.Sub(fc.Now()) == testWindow
	})
}

func waitStart(t *testing.T, r *stubRunner) *stubJob {
	t.Helper()
	select {
	case j := <-r.started:
		return j
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a job to start")
		return nil
	}
}

func assertNoStart(t *testing.T, r *stubRunner) {
	t.Helper()
	select {
	case j := <-r.started:
		t.Fatalf("unexpected %s job for %s", j.tier, j.path)
	case <-time.After(100 * time.Millisecond):
	}
}

func writeSave(t *testing.T, name, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatalf("write save: %v", err)
	}
	return path
}

const testWindow = 100 * time.Millisecond

func newTestCoordinator(t *testing.T, runner *stubRunner) (*Coordinator, *Cache, *fakeClock, *eventLog) {
	t.Helper()
	fc := newFakeClock()
	cache := NewCache()
	co, err := New(cache, runner, &Config{
		DebounceWindow: testWindow,
		IdleDelay:      time.Hour,
		KillGrace:      50 * time.Millisecond,
		Logger:         log.New(io.Discard, "", 0),
		Clock:          fc,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	el := collectEvents(t, co)
	if err := co.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(co.Stop)
	return co, cache, fc, el
}

// Two notifications inside one debounce window must coalesce into a single
// dispatch cycle for the later path; the earlier candidate is discarded.
func TestCoordinatorDebounceCoalescing(t *testing.T) {
	r := newStubRunner()
	co, cache, fc, el := newTestCoordinator(t, r)

	first := writeSave(t, "first.sav", "date=1.1.1")
	second := writeSave(t, "second.sav", "date=2.2.2")
	start := fc.Now()

	co.NotifyFileChanged(first)
	waitUntil(t, "debounce armed", func() bool {
		d, ok := fc.nextDeadline()
		return ok && d.Equal(start.Add(testWindow))
	})

	fc.Advance(50 * time.Millisecond)
	co.NotifyFileChanged(second)
	waitUntil(t, "debounce re-armed for the newer candidate", func() bool {
		d, ok := fc.nextDeadline()
		return ok && d.Equal(start.Add(50*time.Millisecond + testWindow))
	})

	fc.Advance(testWindow)

	j0 := waitStart(t, r)
	j1 := waitStart(t, r)
	if j0.tier != extract.TierMeta || j1.tier != extract.TierStatus {
		t.Errorf("dispatched tiers = %s, %s", j0.tier, j1.tier)
	}
	if j0.path != second || j1.path != second {
		t.Errorf("dispatched paths = %q, %q, want %q", j0.path, j1.path, second)
	}
	assertNoStart(t, r)

	if g := cache.LatestGeneration(extract.TierMeta); g != 1 {
		t.Errorf("meta generations dispatched = %d, want 1", g)
	}
	for _, ev := range el.all(EventDispatched) {
		if ev.Path != second {
			t.Errorf("dispatched for %q, want only %q", ev.Path, second)
		}
	}
}

// A candidate whose size keeps changing never stabilizes; dispatch happens
// only once a full window passes with no change.
func TestCoordinatorStabilityRestartsWindow(t *testing.T) {
	r := newStubRunner()
	co, _, fc, _ := newTestCoordinator(t, r)

	path := writeSave(t, "grow.sav", "date=1.1.1")
	start := fc.Now()

	co.NotifyFileChanged(path)
	waitDebounceArmed(t, fc)

	// The writer is still streaming: grow the file before the window ends.
	if err := os.WriteFile(path, []byte("date=1.1.1 player=\"ENG\" treasury=100"), 0644); err != nil {
		t.Fatalf("rewrite save: %v", err)
	}

	fc.Advance(testWindow)
	waitUntil(t, "window restarted after instability", func() bool {
		d, ok := fc.nextDeadline()
		return ok && d.Equal(start.Add(2*testWindow))
	})
	assertNoStart(t, r)

	fc.Advance(testWindow)
	if j := waitStart(t, r); j.path != path {
		t.Errorf("dispatched %q", j.path)
	}
	waitStart(t, r)
}

func TestCoordinatorCommitsResults(t *testing.T) {
	r := newStubRunner()
	co, cache, fc, el := newTestCoordinator(t, r)

	path := writeSave(t, "ok.sav", "date=1.1.1")
	co.NotifyFileChanged(path)
	waitDebounceArmed(t, fc)
	fc.Advance(testWindow)

	meta := waitStart(t, r)
	status := waitStart(t, r)

	mp := &extract.Payload{Tier: extract.TierMeta, Meta: &extract.Meta{Name: "ok"}}
	sp := &extract.Payload{Tier: extract.TierStatus, Status: &extract.Status{Player: "ENG"}}
	meta.succeed(mp)
	status.succeed(sp)

	waitUntil(t, "both commits", func() bool { return el.count(EventCommitted) == 2 })

	res, ok := cache.Result(extract.TierMeta)
	if !ok || res.Payload != mp || res.Generation != 1 {
		t.Errorf("meta result = %+v, %v", res, ok)
	}
	res, ok = cache.Result(extract.TierStatus)
	if !ok || res.Payload != sp {
		t.Errorf("status result = %+v, %v", res, ok)
	}
}

// A new candidate while jobs are in flight cancels them immediately; their
// results are discarded and the new candidate dispatches fresh generations.
func TestCoordinatorSupersedesInFlight(t *testing.T) {
	r := newStubRunner()
	co, cache, fc, el := newTestCoordinator(t, r)

	first := writeSave(t, "first.sav", "date=1.1.1")
	second := writeSave(t, "second.sav", "date=2.2.2")

	co.NotifyFileChanged(first)
	waitDebounceArmed(t, fc)
	fc.Advance(testWindow)
	j0 := waitStart(t, r)
	j1 := waitStart(t, r)

	co.NotifyFileChanged(second)
	waitUntil(t, "in-flight jobs cancelled", func() bool {
		return j0.wasTerminated() && j1.wasTerminated()
	})
	waitUntil(t, "superseded events", func() bool { return el.count(EventSuperseded) == 2 })
	waitDebounceArmed(t, fc)

	fc.Advance(testWindow)
	n0 := waitStart(t, r)
	n1 := waitStart(t, r)
	if n0.path != second || n1.path != second {
		t.Errorf("redispatched paths = %q, %q", n0.path, n1.path)
	}
	if g := cache.LatestGeneration(extract.TierMeta); g != 2 {
		t.Errorf("meta generation = %d, want 2", g)
	}
	if _, ok := cache.Result(extract.TierMeta); ok {
		t.Error("superseded job committed a result")
	}
}

// A worker ignoring the polite signal is killed once the grace period runs
// out; cancellation stays bounded regardless of worker behavior.
func TestCoordinatorKillEscalation(t *testing.T) {
	r := newStubRunner()
	r.stubborn = true
	co, _, fc, el := newTestCoordinator(t, r)

	path := writeSave(t, "stuck.sav", "date=1.1.1")
	co.NotifyFileChanged(path)
	waitDebounceArmed(t, fc)
	fc.Advance(testWindow)
	j0 := waitStart(t, r)
	j1 := waitStart(t, r)

	co.NotifyFileChanged(writeSave(t, "next.sav", "date=2.2.2"))
	waitUntil(t, "stubborn workers killed", func() bool {
		return j0.wasKilled() && j1.wasKilled()
	})
	waitUntil(t, "superseded events", func() bool { return el.count(EventSuperseded) == 2 })
}

// A failing tier keeps serving its previous committed result.
func TestCoordinatorFailureKeepsPreviousResult(t *testing.T) {
	r := newStubRunner()
	co, cache, fc, el := newTestCoordinator(t, r)

	path := writeSave(t, "save.sav", "date=1.1.1")
	co.NotifyFileChanged(path)
	waitDebounceArmed(t, fc)
	fc.Advance(testWindow)

	meta := waitStart(t, r)
	status := waitStart(t, r)
	good := &extract.Payload{Tier: extract.TierMeta, Meta: &extract.Meta{Name: "good"}}
	meta.succeed(good)
	status.succeed(&extract.Payload{Tier: extract.TierStatus, Status: &extract.Status{}})
	waitUntil(t, "first commits", func() bool { return el.count(EventCommitted) == 2 })

	co.NotifyFileChanged(path)
	waitDebounceArmed(t, fc)
	fc.Advance(testWindow)
	meta2 := waitStart(t, r)
	waitStart(t, r)

	meta2.fail(errors.New("exit status 2"))
	waitUntil(t, "failure event", func() bool { return el.count(EventFailed) >= 1 })

	res, ok := cache.Result(extract.TierMeta)
	if !ok || res.Payload != good || res.Generation != 1 {
		t.Errorf("meta tier stopped serving its last good result: %+v", res)
	}
	failures := el.all(EventFailed)
	var werr *WorkerError
	if !errors.As(failures[0].Err, &werr) {
		t.Errorf("failure event error = %T", failures[0].Err)
	}
}

// The full tier runs on its own only after the idle delay with no new
// candidates.
func TestCoordinatorIdleDispatchesFullTier(t *testing.T) {
	r := newStubRunner()
	fc := newFakeClock()
	cache := NewCache()
	co, err := New(cache, r, &Config{
		DebounceWindow: testWindow,
		IdleDelay:      500 * time.Millisecond,
		KillGrace:      50 * time.Millisecond,
		Logger:         log.New(io.Discard, "", 0),
		Clock:          fc,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := co.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(co.Stop)

	path := writeSave(t, "idle.sav", "date=1.1.1")
	start := fc.Now()
	co.NotifyFileChanged(path)
	waitDebounceArmed(t, fc)
	fc.Advance(testWindow)
	waitStart(t, r)
	waitStart(t, r)

	waitUntil(t, "idle timer armed", func() bool {
		d, ok := fc.nextDeadline()
		return ok && d.Equal(start.Add(testWindow+500*time.Millisecond))
	})
	assertNoStart(t, r)

	fc.Advance(500 * time.Millisecond)
	full := waitStart(t, r)
	if full.tier != extract.TierFull || full.path != path {
		t.Errorf("idle dispatch = %s %q", full.tier, full.path)
	}
}

// A demand arriving before any stable input is remembered and served with
// the next stable dispatch; a demand after stability runs immediately.
func TestCoordinatorRequestTierNow(t *testing.T) {
	r := newStubRunner()
	co, _, fc, el := newTestCoordinator(t, r)

	co.RequestTierNow(extract.TierFull)
	assertNoStart(t, r)

	path := writeSave(t, "demand.sav", "date=1.1.1")
	co.NotifyFileChanged(path)
	waitDebounceArmed(t, fc)
	fc.Advance(testWindow)

	tiers := map[extract.Tier]bool{}
	for i := 0; i < 3; i++ {
		j := waitStart(t, r)
		tiers[j.tier] = true
		j.succeed(&extract.Payload{Tier: j.tier, Meta: &extract.Meta{}})
	}
	if !tiers[extract.TierMeta] || !tiers[extract.TierStatus] || !tiers[extract.TierFull] {
		t.Errorf("stable dispatch tiers = %v, want all three", tiers)
	}
	waitUntil(t, "all commits", func() bool { return el.count(EventCommitted) == 3 })

	// Stable input exists and nothing is in flight: a demand dispatches
	// without any clock movement.
	co.RequestTierNow(extract.TierStatus)
	j := waitStart(t, r)
	if j.tier != extract.TierStatus || j.path != path {
		t.Errorf("demand dispatch = %s %q", j.tier, j.path)
	}
}

func TestCoordinatorStopCancelsInFlight(t *testing.T) {
	r := newStubRunner()
	fc := newFakeClock()
	co, err := New(NewCache(), r, &Config{
		DebounceWindow: testWindow,
		IdleDelay:      time.Hour,
		KillGrace:      50 * time.Millisecond,
		Logger:         log.New(io.Discard, "", 0),
		Clock:          fc,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := co.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	path := writeSave(t, "stop.sav", "date=1.1.1")
	co.NotifyFileChanged(path)
	waitDebounceArmed(t, fc)
	fc.Advance(testWindow)
	j0 := waitStart(t, r)
	j1 := waitStart(t, r)

	done := make(chan struct{})
	go func() {
		co.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return")
	}
	if !j0.wasTerminated() || !j1.wasTerminated() {
		t.Error("Stop left jobs running")
	}
}

func TestCoordinatorNotifyNeverBlocks(t *testing.T) {
	co, err := New(NewCache(), newStubRunner(), &Config{
		Logger: log.New(io.Discard, "", 0),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	// Not started: nothing consumes the channel. Notifications must still
	// return promptly, overwriting the stale slot.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			co.NotifyFileChanged("/saves/burst.sav")
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("NotifyFileChanged blocked")
	}
	co.Stop()
}

func TestCoordinatorStartTwice(t *testing.T) {
	co, err := New(NewCache(), newStubRunner(), &Config{
		Logger: log.New(io.Discard, "", 0),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := co.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(co.Stop)
	if err := co.Start(); err == nil {
		t.Error("second Start succeeded")
	}
}

func TestCoordinatorRejectsNilDeps(t *testing.T) {
	if _, err := New(nil, newStubRunner(), nil); err == nil {
		t.Error("nil cache accepted")
	}
	if _, err := New(NewCache(), nil, nil); err == nil {
		t.Error("nil runner accepted")
	}
}
