package services

import (
	"context"
	"sync"

	"classboard_go/scheduling"
)

// Broadcaster is the live-push surface the mover needs from the WebSocket
// hub.
type Broadcaster interface {
	BroadcastScheduleEvent(eventType string, sessionID uint, data interface{})
}

// SessionMover owns the long-lived optimistic-reschedule state shared by
// move requests: one Rescheduler whose local copies survive across requests,
// so chained rapid moves for the same session roll back to their immediate
// predecessor instead of whatever the database held before the burst.
// Every local transition (optimistic apply, rollback, reconciliation) is
// pushed to connected clients as a session.updated event.
type SessionMover struct {
	store   scheduling.MoveStore
	resched *scheduling.Rescheduler

	// seedMu serializes first-touch loading of a session into the
	// rescheduler so concurrent moves cannot double-seed.
	seedMu sync.Mutex
}

// NewSessionMover builds a mover over the given store. hub may be nil, which
// disables live pushes.
func NewSessionMover(store scheduling.MoveStore, hub Broadcaster) *SessionMover {
	m := &SessionMover{store: store}
	m.resched = scheduling.NewRescheduler(store, func(s scheduling.SessionInfo) {
		if hub != nil {
			hub.BroadcastScheduleEvent("session.updated", s.ID, s)
		}
	})
	return m
}

// Move reschedules one session through the optimistic controller and returns
// its local state after the move settled. Unknown sessions are seeded from
// the store on first touch; a store failure during the move itself rolls the
// local copy back and surfaces the error.
func (m *SessionMover) Move(ctx context.Context, id uint, move scheduling.SessionMove) (scheduling.SessionInfo, error) {
	if err := m.seed(ctx, id); err != nil {
		return scheduling.SessionInfo{}, err
	}
	if err := m.resched.Move(ctx, id, move); err != nil {
		return scheduling.SessionInfo{}, err
	}
	s, _ := m.resched.Session(id)
	return s, nil
}

// Session exposes the mover's local view, mostly for reconciliation checks.
func (m *SessionMover) Session(id uint) (scheduling.SessionInfo, bool) {
	return m.resched.Session(id)
}

func (m *SessionMover) seed(ctx context.Context, id uint) error {
	if _, ok := m.resched.Session(id); ok {
		return nil
	}
	m.seedMu.Lock()
	defer m.seedMu.Unlock()
	if _, ok := m.resched.Session(id); ok {
		return nil
	}
	s, err := m.store.GetSession(ctx, id)
	if err != nil {
		return err
	}
	m.resched.Load([]scheduling.SessionInfo{s})
	return nil
}
