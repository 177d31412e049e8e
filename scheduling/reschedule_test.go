package scheduling

import (
	"context"
	"errors"
	"sync"
	"testing"
)

type funcStore struct {
	update func(ctx context.Context, id uint, move SessionMove) (SessionInfo, error)
	get    func(ctx context.Context, id uint) (SessionInfo, error)
}

func (f *funcStore) UpdateSession(ctx context.Context, id uint, move SessionMove) (SessionInfo, error) {
	return f.update(ctx, id, move)
}

func (f *funcStore) GetSession(ctx context.Context, id uint) (SessionInfo, error) {
	return f.get(ctx, id)
}

func baseSession() SessionInfo {
	return SessionInfo{ID: 1, ClassID: 2, RoomName: "A1", Start: at(2, 9, 0), End: at(2, 10, 0)}
}

func TestMoveSuccessReconciles(t *testing.T) {
	authoritative := baseSession()
	authoritative.Start = at(2, 11, 0)
	authoritative.End = at(2, 12, 0)

	gets := 0
	store := &funcStore{
		update: func(ctx context.Context, id uint, move SessionMove) (SessionInfo, error) {
			return authoritative, nil
		},
		get: func(ctx context.Context, id uint) (SessionInfo, error) {
			gets++
			return authoritative, nil
		},
	}
	r := NewRescheduler(store, nil)
	r.Load([]SessionInfo{baseSession()})

	err := r.Move(context.Background(), 1, SessionMove{Start: at(2, 11, 0), End: at(2, 12, 0)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, _ := r.Session(1)
	if !got.Start.Equal(at(2, 11, 0)) {
		t.Fatalf("expected authoritative state, got %+v", got)
	}
	if gets != 1 {
		t.Fatalf("expected exactly one reconciliation fetch, got %d", gets)
	}
}

func TestMoveFailureRollsBack(t *testing.T) {
	boom := errors.New("persistence down")
	store := &funcStore{
		update: func(ctx context.Context, id uint, move SessionMove) (SessionInfo, error) {
			return SessionInfo{}, boom
		},
		get: func(ctx context.Context, id uint) (SessionInfo, error) {
			return baseSession(), nil
		},
	}
	var emitted []SessionInfo
	r := NewRescheduler(store, func(s SessionInfo) { emitted = append(emitted, s) })
	r.Load([]SessionInfo{baseSession()})

	err := r.Move(context.Background(), 1, SessionMove{Start: at(2, 14, 0), End: at(2, 15, 0)})
	if !errors.Is(err, boom) {
		t.Fatalf("expected surfaced store error, got %v", err)
	}
	got, _ := r.Session(1)
	if !got.Start.Equal(at(2, 9, 0)) || !got.End.Equal(at(2, 10, 0)) {
		t.Fatalf("expected verbatim snapshot restore, got %+v", got)
	}
	// Optimistic apply must have been visible before the rollback.
	if len(emitted) < 2 || !emitted[0].Start.Equal(at(2, 14, 0)) {
		t.Fatalf("optimistic state never emitted: %+v", emitted)
	}
}

func TestMoveValidationAndNotFound(t *testing.T) {
	store := &funcStore{
		update: func(ctx context.Context, id uint, move SessionMove) (SessionInfo, error) {
			t.Fatal("store must not be called for invalid input")
			return SessionInfo{}, nil
		},
		get: func(ctx context.Context, id uint) (SessionInfo, error) { return SessionInfo{}, nil },
	}
	r := NewRescheduler(store, nil)
	r.Load([]SessionInfo{baseSession()})

	if err := r.Move(context.Background(), 1, SessionMove{Start: at(2, 10, 0), End: at(2, 10, 0)}); !IsValidation(err) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	got, _ := r.Session(1)
	if !got.Start.Equal(at(2, 9, 0)) {
		t.Fatalf("validation failure must have no partial effect: %+v", got)
	}
	if err := r.Move(context.Background(), 99, SessionMove{Start: at(2, 10, 0), End: at(2, 11, 0)}); !IsNotFound(err) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestChainedMovesRollBackToPredecessor(t *testing.T) {
	// S at 9:00; move to 11:00, then to 13:00 before the first resolves.
	// The first move then fails: final state must be 13:00, never 9:00.
	type pending struct {
		move    SessionMove
		release chan error
	}
	started := make(chan *pending, 2)
	store := &funcStore{
		update: func(ctx context.Context, id uint, move SessionMove) (SessionInfo, error) {
			p := &pending{move: move, release: make(chan error)}
			started <- p
			if err := <-p.release; err != nil {
				return SessionInfo{}, err
			}
			s := baseSession()
			s.Start, s.End = move.Start, move.End
			return s, nil
		},
		get: func(ctx context.Context, id uint) (SessionInfo, error) {
			s := baseSession()
			s.Start, s.End = at(2, 13, 0), at(2, 14, 0)
			return s, nil
		},
	}
	r := NewRescheduler(store, nil)
	r.Load([]SessionInfo{baseSession()})

	var wg sync.WaitGroup
	wg.Add(2)
	var firstErr error
	go func() {
		defer wg.Done()
		firstErr = r.Move(context.Background(), 1, SessionMove{Start: at(2, 11, 0), End: at(2, 12, 0)})
	}()
	first := <-started

	go func() {
		defer wg.Done()
		_ = r.Move(context.Background(), 1, SessionMove{Start: at(2, 13, 0), End: at(2, 14, 0)})
	}()
	second := <-started

	// Fail the first move while the second is still in flight.
	first.release <- errors.New("conflict at store")
	second.release <- nil
	wg.Wait()

	if firstErr == nil {
		t.Fatal("superseded failing move should still surface its error")
	}
	got, _ := r.Session(1)
	if !got.Start.Equal(at(2, 13, 0)) {
		t.Fatalf("final state must be the second move's target, got %+v", got)
	}
}

func TestMoveTimeoutTreatedAsFailure(t *testing.T) {
	store := &funcStore{
		update: func(ctx context.Context, id uint, move SessionMove) (SessionInfo, error) {
			return SessionInfo{}, context.DeadlineExceeded
		},
		get: func(ctx context.Context, id uint) (SessionInfo, error) {
			return baseSession(), nil
		},
	}
	r := NewRescheduler(store, nil)
	r.Load([]SessionInfo{baseSession()})

	err := r.Move(context.Background(), 1, SessionMove{Start: at(2, 16, 0), End: at(2, 17, 0)})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected timeout surfaced, got %v", err)
	}
	got, _ := r.Session(1)
	if !got.Start.Equal(at(2, 9, 0)) {
		t.Fatalf("timeout must roll back like any failure: %+v", got)
	}
}
