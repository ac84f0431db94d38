package replication

import (
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"

	"coldestland.ai/internal/sim/registry"
)

// maxPending caps deltas buffered for a region still waiting for its
// SNAPSHOT; the snapshot supersedes anything dropped.
const maxPending = 4096

type regionState struct {
	synced  bool
	epoch   uuid.UUID
	seq     uint64
	pending []Event
}

// Mirror applies replicated events onto a mirrored manager. Deliver may be
// called from any goroutine; the manager is only touched inside Flush.
type Mirror struct {
	mgr    *registry.Manager
	logger *log.Logger

	inboxMu sync.Mutex
	inbox   []Event

	mu      sync.Mutex
	regions map[registry.Region]*regionState
	stats   MirrorStats
}

type MirrorStats struct {
	Delivered uint64 `json:"delivered"`
	Applied   uint64 `json:"applied"`
	Skipped   uint64 `json:"skipped"`
	Buffered  uint64 `json:"buffered"`
	Gaps      uint64 `json:"gaps"`
	Failed    uint64 `json:"failed"`
	Synced    int    `json:"synced_regions"`
}

func NewMirror(mgr *registry.Manager, logger *log.Logger) (*Mirror, error) {
	if mgr.Role() != registry.RoleMirrored {
		return nil, fmt.Errorf("mirror: %w", registry.ErrNotMirrored)
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Mirror{mgr: mgr, logger: logger, regions: map[registry.Region]*regionState{}}, nil
}

func (m *Mirror) Manager() *registry.Manager { return m.mgr }

// Deliver queues ev for the next Flush.
func (m *Mirror) Deliver(ev Event) {
	m.inboxMu.Lock()
	m.inbox = append(m.inbox, ev)
	m.inboxMu.Unlock()
}

// Flush applies queued events in arrival order and returns how many changed
// the mirrored registry. Call it between simulation steps.
func (m *Mirror) Flush() int {
	m.inboxMu.Lock()
	batch := m.inbox
	m.inbox = nil
	m.inboxMu.Unlock()
	if len(batch) == 0 {
		return 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats.Delivered += uint64(len(batch))
	applied := 0
	for _, ev := range batch {
		applied += m.handle(ev)
	}
	return applied
}

func (m *Mirror) state(region registry.Region) *regionState {
	st, ok := m.regions[region]
	if !ok {
		st = &regionState{}
		m.regions[region] = st
	}
	return st
}

func (m *Mirror) handle(ev Event) int {
	st := m.state(ev.Region)
	if ev.Kind == KindSnapshot {
		return m.applySnapshot(st, ev)
	}
	if !st.synced || ev.Epoch != st.epoch {
		if st.synced {
			// A new epoch means a new authoritative registry: wait for its
			// snapshot.
			st.synced = false
			st.pending = nil
		}
		if len(st.pending) >= maxPending {
			st.pending = st.pending[1:]
		}
		st.pending = append(st.pending, ev)
		m.stats.Buffered++
		return 0
	}
	return m.applyDelta(st, ev)
}

func (m *Mirror) applySnapshot(st *regionState, ev Event) int {
	if st.synced && ev.Epoch == st.epoch && ev.Seq <= st.seq {
		m.stats.Skipped++
		return 0
	}
	if err := m.mgr.ApplySnapshot(ev.Region, ev.Barriers); err != nil {
		m.stats.Failed++
		m.logger.Printf("mirror: snapshot %s seq %d: %v", ev.Region, ev.Seq, err)
		return 0
	}
	st.synced, st.epoch, st.seq = true, ev.Epoch, ev.Seq
	m.stats.Applied++
	n := 1

	pending := st.pending
	st.pending = nil
	for _, d := range pending {
		if d.Epoch != st.epoch {
			m.stats.Skipped++
			continue
		}
		n += m.applyDelta(st, d)
	}
	return n
}

func (m *Mirror) applyDelta(st *regionState, ev Event) int {
	if ev.Seq <= st.seq {
		m.stats.Skipped++
		return 0
	}
	if ev.Seq != st.seq+1 {
		m.stats.Gaps++
	}
	var err error
	switch ev.Kind {
	case KindAdd:
		err = m.mgr.ApplyAdd(ev.Region, ev.Barrier)
	case KindRemove:
		err = m.mgr.ApplyRemove(ev.Region, ev.ID)
	}
	st.seq = ev.Seq
	if err != nil {
		m.stats.Failed++
		m.logger.Printf("mirror: %s %s seq %d: %v", ev.Kind, ev.Region, ev.Seq, err)
		return 0
	}
	m.stats.Applied++
	return 1
}

// Synced reports whether region has applied a snapshot and is following
// deltas.
func (m *Mirror) Synced(region registry.Region) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.regions[region]
	return ok && st.synced
}

func (m *Mirror) Stats() MirrorStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.stats
	for _, st := range m.regions {
		if st.synced {
			out.Synced++
		}
	}
	return out
}
