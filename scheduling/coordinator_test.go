package scheduling

import (
	"context"
	"sync"
	"testing"
	"time"
)

type fakeTimer struct {
	fn      func()
	stopped bool
	fired   bool
}

func (f *fakeTimer) Stop() bool {
	if f.fired {
		return false
	}
	f.stopped = true
	return true
}

type fakeClock struct {
	timers []*fakeTimer
}

func (c *fakeClock) factory(d time.Duration, fn func()) Timer {
	t := &fakeTimer{fn: fn}
	c.timers = append(c.timers, t)
	return t
}

// firePending fires every timer that was neither stopped nor already fired,
// simulating the quiescence window elapsing.
func (c *fakeClock) firePending() int {
	fired := 0
	for _, t := range c.timers {
		if t.stopped || t.fired {
			continue
		}
		t.fired = true
		t.fn()
		fired++
	}
	return fired
}

func TestCoordinatorCoalescesBurst(t *testing.T) {
	clock := &fakeClock{}
	var mu sync.Mutex
	var calls []Candidate
	check := func(ctx context.Context, cand Candidate) (ConflictResult, error) {
		mu.Lock()
		calls = append(calls, cand)
		mu.Unlock()
		return ConflictResult{}, nil
	}
	c := NewCoordinator(check, 300*time.Millisecond, WithTimerFactory(clock.factory))

	// Five edits inside one quiescence window.
	for i := 1; i <= 5; i++ {
		c.Check(Candidate{RoomName: "A1", TeacherID: uint(i), Start: at(2, 9, 0), End: at(2, 10, 0)})
	}
	if fired := clock.firePending(); fired != 1 {
		t.Fatalf("expected exactly 1 live timer, fired %d", fired)
	}

	if len(calls) != 1 {
		t.Fatalf("expected exactly 1 remote invocation, got %d", len(calls))
	}
	if calls[0].TeacherID != 5 {
		t.Fatalf("fired with stale arguments: %+v", calls[0])
	}
	// The four superseded timers were stopped before firing, not merely
	// ignored afterwards.
	stopped := 0
	for _, timer := range clock.timers {
		if timer.stopped {
			stopped++
		}
	}
	if stopped != 4 {
		t.Fatalf("expected 4 cancelled timers, got %d", stopped)
	}
	if snap := c.Snapshot(); snap.State != CheckResolved {
		t.Fatalf("expected resolved state, got %d", snap.State)
	}
}

func TestCoordinatorCheckNowBypassesDebounce(t *testing.T) {
	clock := &fakeClock{}
	var calls []Candidate
	check := func(ctx context.Context, cand Candidate) (ConflictResult, error) {
		calls = append(calls, cand)
		return ConflictResult{HasConflicts: true}, nil
	}
	c := NewCoordinator(check, 300*time.Millisecond, WithTimerFactory(clock.factory))

	c.Check(Candidate{RoomName: "stale", Start: at(2, 9, 0), End: at(2, 10, 0)})
	res, err := c.CheckNow(Candidate{RoomName: "final", Start: at(2, 9, 0), End: at(2, 10, 0)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.HasConflicts {
		t.Fatalf("CheckNow must return its own outcome")
	}
	if fired := clock.firePending(); fired != 0 {
		t.Fatalf("pending debounced check should have been cancelled, fired %d", fired)
	}
	if len(calls) != 1 || calls[0].RoomName != "final" {
		t.Fatalf("expected only the immediate call, got %+v", calls)
	}
}

func TestCoordinatorStaleResponseDiscarded(t *testing.T) {
	started := make(chan string, 2)
	release := map[string]chan struct{}{
		"old": make(chan struct{}),
		"new": make(chan struct{}),
	}
	check := func(ctx context.Context, cand Candidate) (ConflictResult, error) {
		started <- cand.RoomName
		<-release[cand.RoomName]
		return ConflictResult{HasConflicts: cand.RoomName == "old"}, nil
	}
	c := NewCoordinator(check, time.Millisecond)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		c.CheckNow(Candidate{RoomName: "old", Start: at(2, 9, 0), End: at(2, 10, 0)})
	}()
	<-started
	go func() {
		defer wg.Done()
		c.CheckNow(Candidate{RoomName: "new", Start: at(2, 11, 0), End: at(2, 12, 0)})
	}()
	<-started

	// The newer request resolves first and is published.
	close(release["new"])
	deadline := time.After(2 * time.Second)
	for c.Snapshot().State != CheckResolved {
		select {
		case <-deadline:
			t.Fatal("newer check never resolved")
		case <-time.After(time.Millisecond):
		}
	}

	// The older response arrives afterwards and must be dropped.
	close(release["old"])
	wg.Wait()
	snap := c.Snapshot()
	if snap.State != CheckResolved || snap.Result.HasConflicts {
		t.Fatalf("stale response overwrote the newer result: %+v", snap)
	}
}

func TestCoordinatorClear(t *testing.T) {
	clock := &fakeClock{}
	calls := 0
	check := func(ctx context.Context, cand Candidate) (ConflictResult, error) {
		calls++
		return ConflictResult{HasConflicts: true}, nil
	}
	c := NewCoordinator(check, 300*time.Millisecond, WithTimerFactory(clock.factory))

	if _, err := c.CheckNow(Candidate{RoomName: "A1", Start: at(2, 9, 0), End: at(2, 10, 0)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c.Check(Candidate{RoomName: "A1", Start: at(2, 9, 0), End: at(2, 10, 0)})
	c.Clear()

	snap := c.Snapshot()
	if snap.State != CheckIdle || snap.Err != nil || snap.Result.HasConflicts {
		t.Fatalf("clear must reset synchronously: %+v", snap)
	}
	if fired := clock.firePending(); fired != 0 {
		t.Fatalf("cleared pending check still fired %d times", fired)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call total, got %d", calls)
	}
}

func TestCoordinatorListener(t *testing.T) {
	var states []CheckState
	check := func(ctx context.Context, cand Candidate) (ConflictResult, error) {
		return ConflictResult{}, nil
	}
	c := NewCoordinator(check, time.Millisecond, WithListener(func(s CheckSnapshot) {
		states = append(states, s.State)
	}))
	if _, err := c.CheckNow(Candidate{RoomName: "A1", Start: at(2, 9, 0), End: at(2, 10, 0)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(states) != 2 || states[0] != CheckChecking || states[1] != CheckResolved {
		t.Fatalf("expected checking then resolved, got %v", states)
	}
}
