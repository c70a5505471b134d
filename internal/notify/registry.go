// Package notify delivers request events to the live channels of a user.
//
// Delivery is best effort: an event for a user with no open channel is
// dropped, and a failing channel never fails the emitting caller. The
// request ledger stays the source of truth; clients re-fetch their requests
// after reconnecting.
package notify

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/ayush/skillswap/internal/metrics"
	"github.com/ayush/skillswap/internal/models"
)

// Event is what a channel receives.
type Event struct {
	Type string          `json:"event"`
	Data json.RawMessage `json:"data"`
}

// Channel is one open delivery path to a connected client.
// Send calls on a single channel are made one at a time, in emit order.
type Channel interface {
	ID() string
	Send(ctx context.Context, ev Event) error
	// Done is closed when the channel is gone.
	Done() <-chan struct{}
}

// Registry maps users to their open channels. Safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	channels map[models.UserID]map[string]Channel
}

func NewRegistry() *Registry {
	return &Registry{channels: make(map[models.UserID]map[string]Channel)}
}

// Register adds ch for userID. The channel is removed when ch.Done closes.
func (r *Registry) Register(userID models.UserID, ch Channel) {
	r.mu.Lock()
	set, ok := r.channels[userID]
	if !ok {
		set = make(map[string]Channel)
		r.channels[userID] = set
	}
	_, dup := set[ch.ID()]
	set[ch.ID()] = ch
	r.mu.Unlock()

	if dup {
		return
	}
	metrics.ChannelOpened()
	go func() {
		<-ch.Done()
		r.remove(userID, ch.ID())
	}()
}

func (r *Registry) remove(userID models.UserID, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.channels[userID]
	if !ok {
		return
	}
	if _, ok := set[id]; !ok {
		return
	}
	delete(set, id)
	if len(set) == 0 {
		delete(r.channels, userID)
	}
	metrics.ChannelClosed()
}

// Channels returns a snapshot of the user's open channels.
func (r *Registry) Channels(userID models.UserID) []Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.channels[userID]
	out := make([]Channel, 0, len(set))
	for _, ch := range set {
		out = append(out, ch)
	}
	return out
}

// Count returns how many channels userID has open.
func (r *Registry) Count(userID models.UserID) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.channels[userID])
}
