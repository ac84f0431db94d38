package replication

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"coldestland.ai/internal/sim/registry"
)

const DefaultQueueMax = 1024

var ErrClosed = errors.New("replication: subscription closed")

// Hub hands out per-region subscriptions on an authoritative manager.
type Hub struct {
	mgr      *registry.Manager
	queueMax int

	mu   sync.Mutex
	subs map[*Subscription]struct{}

	resyncs   atomic.Uint64
	delivered atomic.Uint64
}

func NewHub(mgr *registry.Manager, queueMax int) *Hub {
	if queueMax <= 0 {
		queueMax = DefaultQueueMax
	}
	return &Hub{mgr: mgr, queueMax: queueMax, subs: map[*Subscription]struct{}{}}
}

// Subscription is one consumer's ordered event stream for a region.
type Subscription struct {
	hub    *Hub
	region registry.Region
	reg    *registry.Registry
	cancel func()
	notify chan struct{}

	mu     sync.Mutex
	queue  []Event
	resync bool
	floor  uint64
	closed bool
}

// Subscribe starts a stream whose first event is a SNAPSHOT of region taken
// atomically with the subscription.
func (h *Hub) Subscribe(region registry.Region) *Subscription {
	reg := h.mgr.Registry(region)
	s := &Subscription{hub: h, region: region, reg: reg, notify: make(chan struct{}, 1)}

	// Holding s.mu keeps mutations committed right after Watch returns
	// behind the initial snapshot in the queue.
	s.mu.Lock()
	snap, cancel := reg.Watch(s.push)
	s.cancel = cancel
	s.queue = append(s.queue, snapshotEvent(snap))
	s.floor = snap.Seq()
	s.mu.Unlock()
	s.signal()

	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()
	return s
}

func (s *Subscription) Region() registry.Region { return s.region }

// push runs under the registry write lock.
func (s *Subscription) push(m registry.Mutation) {
	ev, ok := eventFromMutation(m)
	if !ok {
		return
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if s.resync {
		s.mu.Unlock()
		return
	}
	if len(s.queue) >= s.hub.queueMax {
		s.queue = nil
		s.resync = true
		s.hub.resyncs.Add(1)
	} else {
		s.queue = append(s.queue, ev)
	}
	s.mu.Unlock()
	s.signal()
}

func (s *Subscription) signal() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// Next blocks until the next event is available, the subscription is closed
// or ctx is done.
func (s *Subscription) Next(ctx context.Context) (Event, error) {
	for {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return Event{}, ErrClosed
		}
		if s.resync {
			// Later mutations are queued again from here on; those already
			// folded into the snapshot are dropped by seq.
			snap := s.reg.Snapshot()
			s.resync = false
			s.floor = snap.Seq()
			s.mu.Unlock()
			s.hub.delivered.Add(1)
			return snapshotEvent(snap), nil
		}
		for len(s.queue) > 0 {
			ev := s.queue[0]
			s.queue[0] = Event{}
			s.queue = s.queue[1:]
			if ev.Kind != KindSnapshot && ev.Seq <= s.floor {
				continue
			}
			s.mu.Unlock()
			s.hub.delivered.Add(1)
			return ev, nil
		}
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return Event{}, ctx.Err()
		case <-s.notify:
		}
	}
}

// Pending reports the number of queued events.
func (s *Subscription) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

func (s *Subscription) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.queue = nil
	s.mu.Unlock()
	s.cancel()
	s.signal()

	s.hub.mu.Lock()
	delete(s.hub.subs, s)
	s.hub.mu.Unlock()
}

// Close detaches every subscription.
func (h *Hub) Close() {
	h.mu.Lock()
	subs := make([]*Subscription, 0, len(h.subs))
	for s := range h.subs {
		subs = append(subs, s)
	}
	h.mu.Unlock()
	for _, s := range subs {
		s.Close()
	}
}

type HubStats struct {
	Subscribers int    `json:"subscribers"`
	QueueMax    int    `json:"queue_max"`
	Resyncs     uint64 `json:"resyncs"`
	Delivered   uint64 `json:"delivered"`
}

func (h *Hub) Stats() HubStats {
	h.mu.Lock()
	n := len(h.subs)
	h.mu.Unlock()
	return HubStats{Subscribers: n, QueueMax: h.queueMax, Resyncs: h.resyncs.Load(), Delivered: h.delivered.Load()}
}
