package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"classboard_go/scheduling"
)

type fakeMoveStore struct {
	sessions map[uint]scheduling.SessionInfo
	updates  int
	gets     int
	failOnce error
}

func (f *fakeMoveStore) UpdateSession(ctx context.Context, id uint, move scheduling.SessionMove) (scheduling.SessionInfo, error) {
	f.updates++
	if f.failOnce != nil {
		err := f.failOnce
		f.failOnce = nil
		return scheduling.SessionInfo{}, err
	}
	s, ok := f.sessions[id]
	if !ok {
		return scheduling.SessionInfo{}, &scheduling.NotFoundError{Resource: "session", ID: id}
	}
	s.Start, s.End = move.Start, move.End
	if move.RoomName != nil {
		s.RoomName = *move.RoomName
	}
	f.sessions[id] = s
	return s, nil
}

func (f *fakeMoveStore) GetSession(ctx context.Context, id uint) (scheduling.SessionInfo, error) {
	f.gets++
	s, ok := f.sessions[id]
	if !ok {
		return scheduling.SessionInfo{}, &scheduling.NotFoundError{Resource: "session", ID: id}
	}
	return s, nil
}

type captureHub struct {
	events []string
	infos  []scheduling.SessionInfo
}

func (h *captureHub) BroadcastScheduleEvent(eventType string, sessionID uint, data interface{}) {
	h.events = append(h.events, eventType)
	if s, ok := data.(scheduling.SessionInfo); ok {
		h.infos = append(h.infos, s)
	}
}

func moverClock(h, m int) time.Time {
	return time.Date(2026, 3, 2, h, m, 0, 0, time.UTC)
}

func newFakeMoveStore() *fakeMoveStore {
	return &fakeMoveStore{sessions: map[uint]scheduling.SessionInfo{
		1: {ID: 1, ClassID: 2, RoomName: "A1", Start: moverClock(9, 0), End: moverClock(10, 0)},
	}}
}

func TestSessionMoverPersistsAndBroadcasts(t *testing.T) {
	store := newFakeMoveStore()
	hub := &captureHub{}
	mover := NewSessionMover(store, hub)

	got, err := mover.Move(context.Background(), 1, scheduling.SessionMove{
		Start: moverClock(11, 0),
		End:   moverClock(12, 0),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Start.Equal(moverClock(11, 0)) || !got.End.Equal(moverClock(12, 0)) {
		t.Fatalf("expected moved session back, got %+v", got)
	}
	if persisted := store.sessions[1]; !persisted.Start.Equal(moverClock(11, 0)) {
		t.Fatalf("store never saw the move: %+v", persisted)
	}
	if len(hub.events) == 0 {
		t.Fatal("expected session.updated pushes for the move")
	}
	for _, ev := range hub.events {
		if ev != "session.updated" {
			t.Fatalf("unexpected event type %q", ev)
		}
	}
}

func TestSessionMoverRollsBackOnStoreFailure(t *testing.T) {
	store := newFakeMoveStore()
	boom := errors.New("persistence down")
	store.failOnce = boom
	hub := &captureHub{}
	mover := NewSessionMover(store, hub)

	_, err := mover.Move(context.Background(), 1, scheduling.SessionMove{
		Start: moverClock(14, 0),
		End:   moverClock(15, 0),
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected surfaced store error, got %v", err)
	}
	if persisted := store.sessions[1]; !persisted.Start.Equal(moverClock(9, 0)) {
		t.Fatalf("failed move must leave the store untouched: %+v", persisted)
	}
	local, ok := mover.Session(1)
	if !ok || !local.Start.Equal(moverClock(9, 0)) {
		t.Fatalf("local state must roll back to the pre-move window: %+v", local)
	}
	// Clients saw the optimistic window before the rollback restored it.
	if len(hub.infos) < 2 || !hub.infos[0].Start.Equal(moverClock(14, 0)) {
		t.Fatalf("optimistic state never pushed: %+v", hub.infos)
	}
	if last := hub.infos[len(hub.infos)-1]; !last.Start.Equal(moverClock(9, 0)) {
		t.Fatalf("rollback never pushed: %+v", last)
	}
}

func TestSessionMoverSeedsOnce(t *testing.T) {
	store := newFakeMoveStore()
	mover := NewSessionMover(store, nil)

	if _, err := mover.Move(context.Background(), 1, scheduling.SessionMove{
		Start: moverClock(11, 0), End: moverClock(12, 0),
	}); err != nil {
		t.Fatalf("first move failed: %v", err)
	}
	if _, err := mover.Move(context.Background(), 1, scheduling.SessionMove{
		Start: moverClock(13, 0), End: moverClock(14, 0),
	}); err != nil {
		t.Fatalf("second move failed: %v", err)
	}
	// One seeding fetch plus one reconciliation fetch per settled move.
	if store.gets != 3 {
		t.Fatalf("expected 3 store reads (1 seed + 2 reconciliations), got %d", store.gets)
	}
	if store.updates != 2 {
		t.Fatalf("expected 2 store writes, got %d", store.updates)
	}
}

func TestSessionMoverUnknownSession(t *testing.T) {
	mover := NewSessionMover(newFakeMoveStore(), nil)
	_, err := mover.Move(context.Background(), 99, scheduling.SessionMove{
		Start: moverClock(11, 0), End: moverClock(12, 0),
	})
	if !scheduling.IsNotFound(err) {
		t.Fatalf("expected NotFoundError for unknown session, got %v", err)
	}
}
