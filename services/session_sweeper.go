package services

import (
	"context"
	"time"

	"classboard_go/store"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// SessionSweeper runs the periodic maintenance jobs: marking past sessions
// completed and emitting a daily digest of what the day holds.
type SessionSweeper struct {
	store *store.Store
	cron  *cron.Cron

	// Digest receives a summary once per day; nil disables the digest.
	Digest func(date time.Time, sessionCount int)
}

func NewSessionSweeper(st *store.Store) *SessionSweeper {
	return &SessionSweeper{
		store: st,
		cron:  cron.New(),
	}
}

// Start registers the jobs and launches the scheduler. The sweep runs every
// 15 minutes; the digest fires at 06:00 server time.
func (s *SessionSweeper) Start() error {
	if _, err := s.cron.AddFunc("*/15 * * * *", s.sweepCompleted); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc("0 6 * * *", s.dailyDigest); err != nil {
		return err
	}
	s.cron.Start()
	logrus.Info("Session sweeper started")
	return nil
}

// Stop halts the scheduler and waits for running jobs.
func (s *SessionSweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	logrus.Info("Session sweeper stopped")
}

func (s *SessionSweeper) sweepCompleted() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	n, err := s.store.MarkCompletedBefore(ctx, time.Now())
	if err != nil {
		logrus.WithError(err).Error("Session completion sweep failed")
		return
	}
	if n > 0 {
		logrus.WithField("sessions", n).Info("Marked past sessions completed")
	}
}

func (s *SessionSweeper) dailyDigest() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	now := time.Now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	sessions, err := s.store.ListSessionsInRange(ctx, dayStart, dayStart.AddDate(0, 0, 1))
	if err != nil {
		logrus.WithError(err).Error("Daily digest query failed")
		return
	}
	logrus.WithFields(logrus.Fields{
		"date":     dayStart.Format("2006-01-02"),
		"sessions": len(sessions),
	}).Info("Daily schedule digest")

	if s.Digest != nil {
		s.Digest(dayStart, len(sessions))
	}
}
