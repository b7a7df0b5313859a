package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/btittelbach/pubsub"

	"github.com/nerrad567/gray-logic-homegate/internal/state"
)

// topicState is the single pubsub topic every state change travels on.
const topicState = "state"

// DefaultSubscriberBuffer is used when Subscribe is given a non-positive size.
const DefaultSubscriberBuffer = 16

// Kind names the part of the house state an event is about.
type Kind string

const (
	KindSensor     Kind = "sensor"
	KindSecurity   Kind = "security"
	KindOTP        Kind = "otp"
	KindLighting   Kind = "lighting"
	KindHumidifier Kind = "humidifier"
	KindDoor       Kind = "door"
)

// Event is published after the ingestor applies an update.
type Event struct {
	Kind      Kind           `json:"kind"`
	State     state.Snapshot `json:"state"`
	Timestamp time.Time      `json:"timestamp"`
}

// Bus fans state events out to any number of in-process subscribers.
//
// Publish never blocks on a slow subscriber: each subscription has its own
// buffer and events that do not fit are dropped for that subscriber only.
type Bus struct {
	ps *pubsub.PubSub

	mu     sync.RWMutex
	closed bool

	dropped atomic.Uint64
}

// NewBus creates a bus whose internal dispatch queue holds capacity events.
func NewBus(capacity int) *Bus {
	if capacity < 1 {
		capacity = 1
	}
	return &Bus{ps: pubsub.New(capacity)}
}

// Publish delivers e to every current subscriber. It is a no-op after Close.
func (b *Bus) Publish(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	b.ps.Pub(e, topicState)
}

// Subscribe returns a channel of events and a cancel func. The channel is
// closed once cancel has been called or the bus is closed. cancel is safe to
// call more than once.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = DefaultSubscriberBuffer
	}
	out := make(chan Event, buffer)

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		close(out)
		return out, func() {}
	}
	raw := b.ps.Sub(topicState)
	b.mu.RUnlock()

	go func() {
		defer close(out)
		// raw is closed by Unsub or Shutdown; keep draining until then so
		// the pubsub loop never blocks on this subscriber.
		for msg := range raw {
			ev, ok := msg.(Event)
			if !ok {
				continue
			}
			select {
			case out <- ev:
			default:
				b.dropped.Add(1)
			}
		}
	}()

	var once sync.Once
	// Unsub runs under the read lock so it can never reach the pubsub loop
	// after Close has shut it down. It does not deadlock: the drain goroutine
	// above keeps raw empty while the loop processes the command.
	cancel := func() {
		once.Do(func() {
			b.mu.RLock()
			defer b.mu.RUnlock()
			if b.closed {
				return
			}
			b.ps.Unsub(raw, topicState)
		})
	}
	return out, cancel
}

// Dropped returns how many events were discarded because a subscriber's
// buffer was full.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}

// Close shuts the bus down and closes every subscriber channel.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	b.ps.Shutdown()
}
