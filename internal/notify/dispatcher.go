package notify

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/ayush/skillswap/internal/metrics"
	"github.com/ayush/skillswap/internal/models"
)

// Dispatcher pushes events to the channels held by a Registry.
type Dispatcher struct {
	reg *Registry
	log zerolog.Logger
}

func NewDispatcher(reg *Registry, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{reg: reg, log: log.With().Str("component", "dispatcher").Logger()}
}

// Emit marshals payload and delivers it to every channel of userID.
// It never fails: problems are logged and counted.
func (d *Dispatcher) Emit(ctx context.Context, userID models.UserID, eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		d.log.Error().Err(err).Str("event", eventType).Msg("marshal event payload")
		metrics.Event(eventType, "failed")
		return
	}
	d.Deliver(ctx, userID, Event{Type: eventType, Data: data})
}

// Deliver sends an already encoded event.
func (d *Dispatcher) Deliver(ctx context.Context, userID models.UserID, ev Event) {
	if d.deliverLocal(ctx, userID, ev) == 0 {
		d.log.Debug().Str("user_id", userID.String()).Str("event", ev.Type).Msg("no live channel, event dropped")
		metrics.Event(ev.Type, "dropped")
	}
}

// deliverLocal sends ev to this instance's channels of userID and returns
// how many there were. It never counts a drop: with a relay, every
// instance without the user sees the event.
func (d *Dispatcher) deliverLocal(ctx context.Context, userID models.UserID, ev Event) int {
	chans := d.reg.Channels(userID)
	for _, ch := range chans {
		if err := ch.Send(ctx, ev); err != nil {
			d.log.Warn().Err(err).
				Str("user_id", userID.String()).
				Str("channel_id", ch.ID()).
				Str("event", ev.Type).
				Msg("event delivery failed")
			metrics.Event(ev.Type, "failed")
			continue
		}
		metrics.Event(ev.Type, "delivered")
	}
	return len(chans)
}
