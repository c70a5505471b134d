package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/ayush/skillswap/internal/metrics"
	"github.com/ayush/skillswap/internal/models"
)

// RelayChannel is the Redis pub/sub channel events travel on.
const RelayChannel = "skillswap:events"

type envelope struct {
	UserID models.UserID `json:"userId"`
	Event  Event         `json:"event"`
}

// Relay fans events out across server instances through Redis pub/sub.
// Emit publishes; Run subscribes and hands every event to the local
// Dispatcher, which delivers it if the user is connected to this instance.
// Events are counted once as "relayed" by the publisher, never as dropped
// by the instances that do not hold the user.
type Relay struct {
	rdb   *redis.Client
	local *Dispatcher
	log   zerolog.Logger
	ready chan struct{}
}

func NewRelay(rdb *redis.Client, local *Dispatcher, log zerolog.Logger) *Relay {
	return &Relay{
		rdb:   rdb,
		local: local,
		log:   log.With().Str("component", "relay").Logger(),
		ready: make(chan struct{}),
	}
}

// Emit publishes the event. Publish failures are logged, never returned.
func (r *Relay) Emit(ctx context.Context, userID models.UserID, eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		r.log.Error().Err(err).Str("event", eventType).Msg("marshal event payload")
		metrics.Event(eventType, "failed")
		return
	}
	msg, _ := json.Marshal(envelope{UserID: userID, Event: Event{Type: eventType, Data: data}})
	if err := r.rdb.Publish(ctx, RelayChannel, msg).Err(); err != nil {
		r.log.Warn().Err(err).Str("event", eventType).Str("user_id", userID.String()).Msg("publish event")
		metrics.Event(eventType, "failed")
		return
	}
	metrics.Event(eventType, "relayed")
}

// Ready is closed once the subscription is confirmed.
func (r *Relay) Ready() <-chan struct{} { return r.ready }

// Run consumes relayed events until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	sub := r.rdb.Subscribe(ctx, RelayChannel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", RelayChannel, err)
	}
	close(r.ready)

	msgs := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-msgs:
			if !ok {
				return nil
			}
			var env envelope
			if err := json.Unmarshal([]byte(m.Payload), &env); err != nil {
				r.log.Warn().Err(err).Msg("decode relayed event")
				continue
			}
			r.local.deliverLocal(ctx, env.UserID, env.Event)
		}
	}
}
