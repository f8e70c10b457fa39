package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/lib/pq"

	"github.com/familyboard/core/internal/domain/entities"
	"github.com/familyboard/core/internal/infrastructure/logger"
	"github.com/familyboard/core/internal/ports"
)

// ChangeChannel is the NOTIFY channel the tasks trigger publishes on.
const ChangeChannel = "tasks_changes"

const feedBuffer = 64

// changePayload is the JSON document sent by the tasks_notify_change trigger.
type changePayload struct {
	Op string `json:"op"`
	ID string `json:"id"`
}

type taskGetter func(ctx context.Context, id string) (*entities.Task, error)

// Subscribe opens a LISTEN connection and streams task changes until the
// subscription is closed or ctx is done.
func (r *TaskRepositoryImpl) Subscribe(ctx context.Context) (ports.Subscription, error) {
	listener := r.feed.NewListener(func(ev pq.ListenerEventType, err error) {
		if err != nil {
			r.logger.Warnw("Change feed connection event", "event", ev, "error", err)
		}
	})
	if err := listener.Listen(ChangeChannel); err != nil {
		_ = listener.Close()
		return nil, fmt.Errorf("listen %s: %w", ChangeChannel, err)
	}

	sub := newFeedSubscription(listener.Close, r.logger)
	go sub.pump(ctx, listener.Notify, r.feed.PingInterval(), listener.Ping, r.Get)
	return sub, nil
}

type feedSubscription struct {
	events    chan ports.ChangeEvent
	done      chan struct{}
	closeFn   func() error
	closeOnce sync.Once
	closeErr  error
	logger    *logger.Logger
}

func newFeedSubscription(closeFn func() error, logger *logger.Logger) *feedSubscription {
	return &feedSubscription{
		events:  make(chan ports.ChangeEvent, feedBuffer),
		done:    make(chan struct{}),
		closeFn: closeFn,
		logger:  logger,
	}
}

func (s *feedSubscription) Events() <-chan ports.ChangeEvent {
	return s.events
}

func (s *feedSubscription) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		if s.closeFn != nil {
			s.closeErr = s.closeFn()
		}
	})
	return s.closeErr
}

func (s *feedSubscription) pump(ctx context.Context, notify <-chan *pq.Notification, pingEvery time.Duration, ping func() error, get taskGetter) {
	defer close(s.events)

	idle := time.NewTimer(pingEvery)
	defer idle.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ctx.Done():
			return
		case n, ok := <-notify:
			if !ok {
				return
			}
			ev, emit := s.translate(ctx, n, get)
			if !emit {
				continue
			}
			select {
			case s.events <- ev:
			case <-s.done:
				return
			case <-ctx.Done():
				return
			}
		case <-idle.C:
			if ping != nil {
				if err := ping(); err != nil {
					s.logger.Warnw("Change feed ping failed", "error", err)
				}
			}
		}
		if !idle.Stop() {
			select {
			case <-idle.C:
			default:
			}
		}
		idle.Reset(pingEvery)
	}
}

// translate turns a notification into a change event. A nil notification
// means the listener reconnected and notifications may have been lost.
func (s *feedSubscription) translate(ctx context.Context, n *pq.Notification, get taskGetter) (ports.ChangeEvent, bool) {
	if n == nil {
		return ports.ChangeEvent{Kind: ports.ChangeResync}, true
	}

	var payload changePayload
	if err := json.Unmarshal([]byte(n.Extra), &payload); err != nil || payload.ID == "" {
		s.logger.Warnw("Malformed change notification", "payload", n.Extra, "error", err)
		return ports.ChangeEvent{}, false
	}

	switch strings.ToUpper(payload.Op) {
	case "DELETE":
		return ports.ChangeEvent{Kind: ports.ChangeDelete, Old: &entities.Task{ID: payload.ID}}, true
	case "INSERT", "UPDATE":
		task, err := get(ctx, payload.ID)
		if errors.Is(err, entities.ErrTaskNotFound) {
			// deleted before we could read it; the delete event follows
			return ports.ChangeEvent{}, false
		}
		if err != nil {
			s.logger.LogStoreFailure("feed_get", payload.ID, err)
			return ports.ChangeEvent{Kind: ports.ChangeResync}, true
		}
		kind := ports.ChangeUpdate
		if strings.EqualFold(payload.Op, "INSERT") {
			kind = ports.ChangeInsert
		}
		return ports.ChangeEvent{Kind: kind, New: task}, true
	default:
		s.logger.Warnw("Unknown change operation", "op", payload.Op)
		return ports.ChangeEvent{}, false
	}
}
