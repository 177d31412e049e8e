package scheduling

import (
	"context"
	"sync"
	"time"
)

// CheckState is the coordinator lifecycle: Idle -> Checking -> Resolved or
// Failed -> Idle (via Clear).
type CheckState int

const (
	CheckIdle CheckState = iota
	CheckChecking
	CheckResolved
	CheckFailed
)

// CheckFunc performs one conflict check. It is the only I/O boundary of the
// coordinator and must honor ctx cancellation.
type CheckFunc func(ctx context.Context, cand Candidate) (ConflictResult, error)

// Timer is the cancellable-timer seam: Stop reports whether the timer was
// stopped before firing. Production code uses time.AfterFunc behind this
// interface; tests inject a manual implementation so coalescing and stale
// discards are deterministic.
type Timer interface {
	Stop() bool
}

// TimerFactory schedules fn after d and returns its timer.
type TimerFactory func(d time.Duration, fn func()) Timer

type stdTimer struct{ t *time.Timer }

func (s stdTimer) Stop() bool { return s.t.Stop() }

func afterFunc(d time.Duration, fn func()) Timer {
	return stdTimer{t: time.AfterFunc(d, fn)}
}

// CheckSnapshot is the externally visible coordinator state.
type CheckSnapshot struct {
	State  CheckState
	Result ConflictResult
	Err    error
	Seq    uint64
}

// Coordinator coalesces rapid conflict-check requests. Debounced requests
// arriving within the quiescence window replace the pending one (the old
// timer is stopped, so a superseded call never executes); immediate requests
// bypass coalescing. Every issued check carries a monotonically increasing
// sequence token and only the latest token may publish its outcome, so a
// slow response for an older request is discarded even if it arrives last.
type Coordinator struct {
	check      CheckFunc
	quiescence time.Duration
	newTimer   TimerFactory
	onChange   func(CheckSnapshot)

	mu       sync.Mutex
	pending  Timer
	seq      uint64
	state    CheckState
	result   ConflictResult
	err      error
	inflight context.CancelFunc
}

// CoordinatorOption tweaks construction.
type CoordinatorOption func(*Coordinator)

// WithTimerFactory replaces the platform timer, for tests.
func WithTimerFactory(f TimerFactory) CoordinatorOption {
	return func(c *Coordinator) { c.newTimer = f }
}

// WithListener registers a callback invoked (without the lock held) after
// every published state change.
func WithListener(fn func(CheckSnapshot)) CoordinatorOption {
	return func(c *Coordinator) { c.onChange = fn }
}

// NewCoordinator builds a coordinator firing check after quiescence of
// debounced input.
func NewCoordinator(check CheckFunc, quiescence time.Duration, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		check:      check,
		quiescence: quiescence,
		newTimer:   afterFunc,
		state:      CheckIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Check schedules a debounced conflict check with the given arguments. A
// not-yet-fired pending check is cancelled and replaced; only the most
// recent arguments inside one quiescence window reach the CheckFunc.
func (c *Coordinator) Check(cand Candidate) {
	c.mu.Lock()
	if c.pending != nil {
		c.pending.Stop()
	}
	c.pending = c.newTimer(c.quiescence, func() {
		c.mu.Lock()
		c.pending = nil
		c.mu.Unlock()
		c.fire(cand)
	})
	c.mu.Unlock()
}

// CheckNow bypasses coalescing for final pre-submit validation and
// on-demand lookups. Any pending debounced check is discarded first. The
// call blocks for the round trip and returns this check's own outcome;
// publication still goes through the sequence token, so a CheckNow outcome
// that has been superseded concurrently is not published.
func (c *Coordinator) CheckNow(cand Candidate) (ConflictResult, error) {
	c.mu.Lock()
	if c.pending != nil {
		c.pending.Stop()
		c.pending = nil
	}
	c.mu.Unlock()
	return c.fire(cand)
}

// fire issues the check under a fresh sequence token, cancelling whatever
// was in flight.
func (c *Coordinator) fire(cand Candidate) (ConflictResult, error) {
	c.mu.Lock()
	c.seq++
	token := c.seq
	if c.inflight != nil {
		c.inflight()
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.inflight = cancel
	c.state = CheckChecking
	c.err = nil
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.notify(snap)

	result, err := c.check(ctx, cand)

	c.mu.Lock()
	if token != c.seq {
		// A newer request was issued while this one was in flight;
		// last-issued wins and this outcome is dropped.
		c.mu.Unlock()
		return result, err
	}
	c.inflight = nil
	if err != nil {
		c.state = CheckFailed
		c.err = err
	} else {
		c.state = CheckResolved
		c.result = result
	}
	snap = c.snapshotLocked()
	c.mu.Unlock()
	c.notify(snap)
	return result, err
}

// Clear synchronously drops pending and in-flight work and resets to Idle.
func (c *Coordinator) Clear() {
	c.mu.Lock()
	if c.pending != nil {
		c.pending.Stop()
		c.pending = nil
	}
	if c.inflight != nil {
		c.inflight()
		c.inflight = nil
	}
	c.seq++ // orphan anything still returning
	c.state = CheckIdle
	c.result = ConflictResult{}
	c.err = nil
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.notify(snap)
}

// Snapshot returns the current published state.
func (c *Coordinator) Snapshot() CheckSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Coordinator) snapshotLocked() CheckSnapshot {
	return CheckSnapshot{State: c.state, Result: c.result, Err: c.err, Seq: c.seq}
}

func (c *Coordinator) notify(snap CheckSnapshot) {
	if c.onChange != nil {
		c.onChange(snap)
	}
}
