// Package notifications persists and delivers scheduling notices. Writes go
// through a Redis queue when enabled so request handlers never block on the
// notification table; the queue worker flushes batches to the database and
// pushes the live copy over WebSocket. If Redis is down the service degrades
// to direct inserts.
package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"classboard_go/config"
	"classboard_go/database"
	"classboard_go/models"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// queuedNotice is the minimal queue payload. NoticeID lets clients dedupe
// when a queue entry is flushed more than once.
type queuedNotice struct {
	NoticeID  string    `json:"notice_id"`
	UserIDs   []uint    `json:"user_ids"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Type      string    `json:"type"`
	Data      any       `json:"data,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

const redisListKey = "notifications:queue"

// WSHub is the broadcast surface the service needs from the WebSocket hub.
type WSHub interface {
	BroadcastToUser(userID uint, message interface{})
}

// Service exposes notice creation with an optional Redis queue.
type Service struct {
	db       *gorm.DB
	redis    *redis.Client
	useRedis bool
	wsHub    WSHub
}

var defaultHub WSHub

// SetDefaultWSHub sets the package-level hub used by new Service instances.
func SetDefaultWSHub(h WSHub) {
	defaultHub = h
}

func NewService() *Service {
	return &Service{
		db:       database.GetDB(),
		redis:    database.GetRedisClient(),
		useRedis: config.AppConfig != nil && config.AppConfig.UseRedisNotifications && database.GetRedisClient() != nil,
		wsHub:    defaultHub,
	}
}

// SetWebSocketHub overrides the hub for this instance.
func (s *Service) SetWebSocketHub(hub WSHub) {
	s.wsHub = hub
}

// Notice builds a queue payload for plain notices.
func Notice(title, message, typ string) queuedNotice {
	return queuedNotice{Title: title, Message: message, Type: typ}
}

// NoticeWithData attaches a structured payload (deep links, session ids).
func NoticeWithData(title, message, typ string, data any) queuedNotice {
	return queuedNotice{Title: title, Message: message, Type: typ, Data: data}
}

// OverrideNotice describes a session that was saved despite known conflicts.
func OverrideNotice(sessionID uint, conflictingIDs []uint, actor string) queuedNotice {
	return NoticeWithData(
		"Session saved with conflicts",
		fmt.Sprintf("Session %d was saved by %s despite %d conflicting session(s)", sessionID, actor, len(conflictingIDs)),
		"warning",
		map[string]interface{}{
			"session_id":      sessionID,
			"conflicting_ids": conflictingIDs,
			"overridden_by":   actor,
		},
	)
}

// ExpansionNotice summarizes a recurrence expansion run.
func ExpansionNotice(scheduleID uint, created, skipped int) queuedNotice {
	return NoticeWithData(
		"Schedule expanded",
		fmt.Sprintf("Recurring schedule %d expanded: %d session(s) created, %d already existed", scheduleID, created, skipped),
		"info",
		map[string]interface{}{
			"recurring_schedule_id": scheduleID,
			"created":               created,
			"skipped":               skipped,
		},
	)
}

// EnqueueOrCreate stores notices via the Redis queue if enabled, else
// inserts directly.
func (s *Service) EnqueueOrCreate(userIDs []uint, n queuedNotice) error {
	if len(userIDs) == 0 {
		return errors.New("no user ids")
	}
	n.NoticeID = uuid.NewString()
	n.UserIDs = userIDs
	n.CreatedAt = time.Now().UTC()

	if s.useRedis {
		b, err := json.Marshal(n)
		if err != nil {
			return err
		}
		if err = s.redis.RPush(context.Background(), redisListKey, b).Err(); err == nil {
			return nil
		}
		log.Printf("[notif] Redis queue failed, falling back to direct insert: %v", err)
	}

	return s.createDirect(userIDs, n)
}

// createDirect writes to the database (used by the worker and as fallback).
func (s *Service) createDirect(userIDs []uint, n queuedNotice) error {
	if len(userIDs) == 0 {
		return nil
	}

	payload := map[string]interface{}{"notice_id": n.NoticeID}
	if n.Data != nil {
		payload["data"] = n.Data
	}
	dataJSON, err := json.Marshal(payload)
	if err != nil {
		dataJSON = []byte(`{}`)
	}

	notifs := make([]models.Notification, 0, len(userIDs))
	for _, uid := range userIDs {
		notifs = append(notifs, models.Notification{
			UserID:  uid,
			Title:   n.Title,
			Message: n.Message,
			Type:    n.Type,
			Read:    false,
			Data:    dataJSON,
		})
	}

	if err := s.db.Create(&notifs).Error; err != nil {
		return err
	}

	if s.wsHub != nil {
		for _, notif := range notifs {
			s.wsHub.BroadcastToUser(notif.UserID, map[string]interface{}{
				"type": "notification",
				"data": notif,
			})
		}
	}

	return nil
}

// StartWorker starts a background worker polling the Redis queue and
// flushing to the database.
func (s *Service) StartWorker(stop <-chan struct{}) {
	if !s.useRedis {
		log.Println("[notif] Redis notifications disabled; worker not started")
		return
	}
	go func() {
		log.Println("[notif] Redis notification worker started")
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()
		ctx := context.Background()
		batchSize := 200
		for {
			select {
			case <-stop:
				log.Println("[notif] Worker stopping")
				return
			case <-ticker.C:
				s.flushBatch(ctx, batchSize)
			}
		}
	}()
}

// flushBatch drains up to 5 sub-batches from the queue per tick. LRange +
// LTrim is best-effort; NoticeID dedup covers the duplicate window.
func (s *Service) flushBatch(ctx context.Context, batchSize int) {
	if s.redis == nil {
		return
	}
	for i := 0; i < 5; i++ {
		vals, err := s.redis.LRange(ctx, redisListKey, 0, int64(batchSize-1)).Result()
		if err != nil || len(vals) == 0 {
			return
		}
		if err = s.redis.LTrim(ctx, redisListKey, int64(len(vals)), -1).Err(); err != nil {
			log.Printf("[notif] LTrim failed: %v", err)
		}
		for _, raw := range vals {
			var q queuedNotice
			if err := json.Unmarshal([]byte(raw), &q); err != nil {
				continue
			}
			if err := s.createDirect(q.UserIDs, q); err != nil {
				log.Printf("[notif] DB insert failed: %v", err)
			}
		}
		if len(vals) < batchSize {
			return
		}
	}
}
