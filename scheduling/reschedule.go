package scheduling

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// SessionMove is the mutable part of a reschedule: a new window and,
// optionally, a new room.
type SessionMove struct {
	Start    time.Time
	End      time.Time
	RoomName *string
}

// MoveStore is the persistence collaborator consumed by the Rescheduler.
// Timeouts are its responsibility; a timeout surfaces here as an error and
// triggers rollback.
type MoveStore interface {
	UpdateSession(ctx context.Context, id uint, move SessionMove) (SessionInfo, error)
	GetSession(ctx context.Context, id uint) (SessionInfo, error)
}

// Rescheduler applies session moves optimistically: local state flips to
// the new window immediately, the persistence call follows, and on failure
// the pre-move snapshot is restored verbatim. Each session has exactly one
// snapshot slot, overwritten when a new move is issued, so chained rapid
// moves roll back to their immediate predecessor and never to ancient
// history. After the latest move for a session resolves either way, a
// reconciliation fetch replaces local state with the store's truth.
type Rescheduler struct {
	store    MoveStore
	onChange func(SessionInfo)

	mu        sync.Mutex
	local     map[uint]SessionInfo
	snapshots map[uint]SessionInfo
	moveSeq   map[uint]uint64
}

// NewRescheduler builds a controller over the given store. onChange, when
// non-nil, observes every local-state transition (optimistic apply,
// rollback, reconciliation) and is invoked without the lock held.
func NewRescheduler(store MoveStore, onChange func(SessionInfo)) *Rescheduler {
	return &Rescheduler{
		store:     store,
		onChange:  onChange,
		local:     make(map[uint]SessionInfo),
		snapshots: make(map[uint]SessionInfo),
		moveSeq:   make(map[uint]uint64),
	}
}

// Load seeds or refreshes the local working copies, e.g. when the visible
// week changes.
func (r *Rescheduler) Load(sessions []SessionInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range sessions {
		r.local[s.ID] = s
	}
}

// Session returns the current local view of one session.
func (r *Rescheduler) Session(id uint) (SessionInfo, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.local[id]
	return s, ok
}

// Move reschedules a session. The local copy mutates before the store call;
// the call's outcome then either confirms it (authoritative response wins)
// or rolls it back to the snapshot taken at issue time. If a newer move for
// the same session was issued while this one was in flight, this outcome is
// ignored entirely: the newer move owns both the snapshot slot and the
// final reconciliation.
func (r *Rescheduler) Move(ctx context.Context, id uint, move SessionMove) error {
	if err := validateWindow(move.Start, move.End); err != nil {
		return err
	}

	r.mu.Lock()
	current, ok := r.local[id]
	if !ok {
		r.mu.Unlock()
		return &NotFoundError{Resource: "session", ID: id}
	}
	r.snapshots[id] = current
	optimistic := current
	optimistic.Start = move.Start
	optimistic.End = move.End
	if move.RoomName != nil {
		optimistic.RoomName = *move.RoomName
	}
	r.local[id] = optimistic
	r.moveSeq[id]++
	token := r.moveSeq[id]
	r.mu.Unlock()
	r.emit(optimistic)

	updated, err := r.store.UpdateSession(ctx, id, move)

	r.mu.Lock()
	if token != r.moveSeq[id] {
		// Superseded while in flight; the newer move's snapshot already
		// points at this move's optimistic value, so neither the response
		// nor a rollback may touch local state.
		r.mu.Unlock()
		if err != nil {
			return fmt.Errorf("superseded move for session %d: %w", id, err)
		}
		return nil
	}

	var after SessionInfo
	if err != nil {
		after = r.snapshots[id]
		r.local[id] = after
	} else {
		after = updated
		r.local[id] = after
	}
	delete(r.snapshots, id)
	r.mu.Unlock()
	r.emit(after)

	r.reconcile(ctx, id, token)

	if err != nil {
		return fmt.Errorf("reschedule session %d: %w", id, err)
	}
	return nil
}

// reconcile fetches the authoritative session once the latest move settled,
// so optimistic state never outlives one round trip. Fetch failures keep
// the last known value; the next load or move repairs it.
func (r *Rescheduler) reconcile(ctx context.Context, id uint, token uint64) {
	fresh, err := r.store.GetSession(ctx, id)
	if err != nil {
		return
	}
	r.mu.Lock()
	if token != r.moveSeq[id] {
		r.mu.Unlock()
		return
	}
	r.local[id] = fresh
	r.mu.Unlock()
	r.emit(fresh)
}

func (r *Rescheduler) emit(s SessionInfo) {
	if r.onChange != nil {
		r.onChange(s)
	}
}
