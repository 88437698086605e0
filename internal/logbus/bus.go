package logbus

import (
	"sync"
	"time"

	"github.com/clawdshartavenger/alta-parking-app/internal/model"
)

// Event is one envelope on the bus. Type is "status" for monitor status
// lines, "monitor_state" for controller snapshots and "log" for diagnostics.
type Event struct {
	Type string `json:"type"`
	Time int64  `json:"time"`
	Data any    `json:"data"`
}

type LogData struct {
	Level  string         `json:"level"`
	Msg    string         `json:"msg"`
	Fields map[string]any `json:"fields,omitempty"`
}

// Bus is a ring-buffered publish/subscribe stream. Slow subscribers drop
// events instead of blocking publishers; the ring keeps the recent history
// so a late websocket client can catch up from a snapshot.
type Bus struct {
	mu     sync.RWMutex
	ring   []Event
	cap    int
	subs   map[chan Event]struct{}
	closed bool
}

func New(capacity int) *Bus {
	if capacity <= 0 {
		capacity = 200
	}
	return &Bus{
		cap:  capacity,
		ring: make([]Event, 0, capacity),
		subs: make(map[chan Event]struct{}),
	}
}

func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for ch := range b.subs {
		close(ch)
	}
	b.subs = nil
	b.ring = nil
}

// Snapshot returns a copy of the retained history, oldest first.
func (b *Bus) Snapshot() []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Event, len(b.ring))
	copy(out, b.ring)
	return out
}

func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan Event, buffer)
	b.mu.Lock()
	if b.closed {
		close(ch)
		b.mu.Unlock()
		return ch, func() {}
	}
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if b.subs != nil {
			if _, ok := b.subs[ch]; ok {
				delete(b.subs, ch)
				close(ch)
			}
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

// SubscribeWithReplay registers a subscriber and returns the retained history
// as it stood at that exact moment. Publish appends to the ring and fans out
// under the same lock, so an event is either in the returned history or on
// the channel, never both and never neither.
func (b *Bus) SubscribeWithReplay(buffer int) ([]Event, <-chan Event, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan Event, buffer)
	b.mu.Lock()
	if b.closed {
		close(ch)
		b.mu.Unlock()
		return nil, ch, func() {}
	}
	history := make([]Event, len(b.ring))
	copy(history, b.ring)
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if b.subs != nil {
			if _, ok := b.subs[ch]; ok {
				delete(b.subs, ch)
				close(ch)
			}
		}
		b.mu.Unlock()
	}
	return history, ch, cancel
}

func (b *Bus) Publish(typ string, data any) {
	evt := Event{
		Type: typ,
		Time: time.Now().UnixMilli(),
		Data: data,
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	if len(b.ring) < b.cap {
		b.ring = append(b.ring, evt)
	} else if b.cap > 0 {
		copy(b.ring, b.ring[1:])
		b.ring[b.cap-1] = evt
	}
	for ch := range b.subs {
		select {
		case ch <- evt:
		default:
		}
	}
	b.mu.Unlock()
}

func (b *Bus) Log(level, message string, fields map[string]any) {
	b.Publish("log", LogData{Level: level, Msg: message, Fields: fields})
}

// Status publishes one monitor status line. Timestamps are filled here so
// callers only say what happened.
func (b *Bus) Status(evt model.StatusEvent) {
	if evt.AtMs == 0 {
		evt.AtMs = time.Now().UnixMilli()
	}
	b.Publish("status", evt)
}
