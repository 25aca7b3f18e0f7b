// Package connectivity provides an online/offline signal for the adapter layer.
//
// A Monitor tracks a single boolean connectivity state and fans transitions
// out to subscribers. Each subscriber receives events through an unbounded
// channel, so a slow consumer can never block the signal source.
//
// The state can be driven manually (SetOnline) or by a Prober that
// periodically issues an HTTP request against a health endpoint.
package connectivity

import (
	"context"
	"sync"

	"github.com/realmorph/datakit/logger"
	"github.com/smallnest/chanx"
	"go.uber.org/zap"
)

// Event is a connectivity transition.
type Event string

const (
	// EventOnline is emitted when connectivity is regained
	EventOnline Event = "online"
	// EventOffline is emitted when connectivity is lost
	EventOffline Event = "offline"
)

// Monitor exposes the current connectivity state and transition events.
type Monitor interface {
	// Online reports the current connectivity state
	Online() bool

	// Subscribe registers for transition events.
	// The returned cancel function must be called to release the subscription.
	Subscribe() (<-chan Event, func())

	// SetOnline updates the state, emitting an event on transition.
	// Setting the current state again is a no-op.
	SetOnline(online bool)

	// Close releases all subscriptions
	Close()
}

type subscriber struct {
	ch *chanx.UnboundedChan[Event]
}

type monitor struct {
	logger logger.Logger

	mu     sync.Mutex
	online bool
	subs   map[int]*subscriber
	nextID int
	closed bool
}

// NewMonitor creates a Monitor in the given initial state.
func NewMonitor(log logger.Logger, initiallyOnline bool) Monitor {
	return &monitor{
		logger: log,
		online: initiallyOnline,
		subs:   make(map[int]*subscriber),
	}
}

func (m *monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

func (m *monitor) Subscribe() (<-chan Event, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sub := &subscriber{
		ch: chanx.NewUnboundedChan[Event](context.Background(), 1),
	}
	id := m.nextID
	m.nextID++

	if m.closed {
		close(sub.ch.In)
		return sub.ch.Out, func() {}
	}
	m.subs[id] = sub

	cancel := func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if s, ok := m.subs[id]; ok {
			delete(m.subs, id)
			close(s.ch.In)
		}
	}
	return sub.ch.Out, cancel
}

func (m *monitor) SetOnline(online bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || m.online == online {
		return
	}
	m.online = online

	event := EventOffline
	if online {
		event = EventOnline
	}

	m.logger.Info("connectivity changed", zap.String("event", string(event)))

	// send while holding the lock: a concurrent cancel closes the In side
	// under the same lock, so sending outside it can hit a closed channel.
	// The unbounded channel keeps these sends from ever blocking.
	for _, s := range m.subs {
		s.ch.In <- event
	}
}

func (m *monitor) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	for id, s := range m.subs {
		delete(m.subs, id)
		close(s.ch.In)
	}
}
