package session

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Channel carries identity changes between instances.
const Channel = "focusflow:session"

// RedisPublisher shares identity events with the other instances behind
// the same Redis. Each publisher tags what it sends with its own origin
// id so Listen can skip its own echo.
type RedisPublisher struct {
	client *redis.Client
	origin string
	log    *logrus.Entry
}

func NewRedisPublisher(client *redis.Client, log *logrus.Entry) *RedisPublisher {
	return &RedisPublisher{client: client, origin: uuid.NewString(), log: log}
}

type identityChanged struct {
	Origin    string `json:"origin"`
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id,omitempty"`
	Status    Status `json:"status"`
}

// Publish is meant to be passed to Provider.Subscribe.
func (p *RedisPublisher) Publish(ev Event) {
	payload, err := p.encode(ev)
	if err != nil {
		p.log.WithError(err).Error("marshal identity event")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := p.client.Publish(ctx, Channel, payload).Err(); err != nil {
		p.log.WithError(err).WithField("session_id", ev.SessionID).Warn("publish identity event")
	}
}

// Listen delivers sign-outs published by other instances to fn until ctx
// ends. Sign-ins are not forwarded: a workspace opens on the instance
// that serves the session's first request.
func (p *RedisPublisher) Listen(ctx context.Context, fn func(Event)) error {
	sub := p.client.Subscribe(ctx, Channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	p.log.WithField("channel", Channel).Info("listening for identity events")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			if ev, ok := p.decode(msg.Payload); ok {
				fn(ev)
			}
		}
	}
}

func (p *RedisPublisher) encode(ev Event) ([]byte, error) {
	return json.Marshal(identityChanged{
		Origin:    p.origin,
		SessionID: ev.SessionID,
		UserID:    ev.Identity.UserID(),
		Status:    ev.Identity.Status,
	})
}

// decode reports whether payload is a foreign sign-out worth acting on.
func (p *RedisPublisher) decode(payload string) (Event, bool) {
	var msg identityChanged
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		p.log.WithError(err).Warn("malformed identity event")
		return Event{}, false
	}
	if msg.Origin == p.origin || msg.SessionID == "" || msg.Status != StatusAbsent {
		return Event{}, false
	}
	return Event{SessionID: msg.SessionID, Identity: Absent()}, true
}
