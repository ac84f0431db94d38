// Package replication streams registry mutations from an authoritative
// registry to mirrored ones: a SNAPSHOT first, then ADD and REMOVE in commit
// order.
package replication

import (
	"fmt"

	"github.com/google/uuid"

	"coldestland.ai/internal/protocol"
	"coldestland.ai/internal/sim/barrier"
	"coldestland.ai/internal/sim/registry"
)

type Kind uint8

const (
	KindSnapshot Kind = iota + 1
	KindAdd
	KindRemove
)

func (k Kind) String() string {
	switch k {
	case KindSnapshot:
		return protocol.TypeSnapshot
	case KindAdd:
		return protocol.TypeAdd
	case KindRemove:
		return protocol.TypeRemove
	}
	return "UNKNOWN"
}

// Event carries whole barrier bodies; applying it never needs prior state
// beyond the region's set.
type Event struct {
	Kind   Kind
	Region registry.Region
	Epoch  uuid.UUID
	Seq    uint64

	Barrier  *barrier.Barrier   // KindAdd
	ID       barrier.ID         // KindAdd, KindRemove
	Barriers []*barrier.Barrier // KindSnapshot
}

func snapshotEvent(s *registry.Snapshot) Event {
	return Event{Kind: KindSnapshot, Region: s.Region(), Epoch: s.Epoch(), Seq: s.Seq(), Barriers: s.All()}
}

func eventFromMutation(m registry.Mutation) (Event, bool) {
	switch m.Kind {
	case registry.MutationAdd:
		return Event{Kind: KindAdd, Region: m.Region, Epoch: m.Epoch, Seq: m.Seq, Barrier: m.Barrier, ID: m.ID}, true
	case registry.MutationRemove:
		return Event{Kind: KindRemove, Region: m.Region, Epoch: m.Epoch, Seq: m.Seq, ID: m.ID}, true
	case registry.MutationReset:
		return snapshotEvent(m.Snapshot), true
	}
	return Event{}, false
}

// Message converts ev to its wire message.
func (ev Event) Message() any {
	epoch := ev.Epoch.String()
	switch ev.Kind {
	case KindAdd:
		return protocol.AddMsg{
			Type: protocol.TypeAdd, ProtocolVersion: protocol.Version,
			WorldID: ev.Region.World, Dimension: ev.Region.Dimension,
			Epoch: epoch, Seq: ev.Seq, Barrier: protocol.BarrierToWire(ev.Barrier),
		}
	case KindRemove:
		return protocol.RemoveMsg{
			Type: protocol.TypeRemove, ProtocolVersion: protocol.Version,
			WorldID: ev.Region.World, Dimension: ev.Region.Dimension,
			Epoch: epoch, Seq: ev.Seq, BarrierID: ev.ID.String(),
		}
	default:
		bs := make([]protocol.Barrier, len(ev.Barriers))
		for i, b := range ev.Barriers {
			bs[i] = protocol.BarrierToWire(b)
		}
		return protocol.SnapshotMsg{
			Type: protocol.TypeSnapshot, ProtocolVersion: protocol.Version,
			WorldID: ev.Region.World, Dimension: ev.Region.Dimension,
			Epoch: epoch, Seq: ev.Seq, Barriers: bs,
		}
	}
}

// EventFromMessage converts a decoded wire message (as returned by
// protocol.Decode) into an Event, validating every barrier body.
func EventFromMessage(msg any) (Event, error) {
	switch m := msg.(type) {
	case *protocol.AddMsg:
		epoch, err := parseEpoch(m.Epoch)
		if err != nil {
			return Event{}, err
		}
		b, err := m.Barrier.ToBarrier()
		if err != nil {
			return Event{}, fmt.Errorf("ADD seq %d: %w", m.Seq, err)
		}
		return Event{Kind: KindAdd, Region: registry.Region{World: m.WorldID, Dimension: m.Dimension}, Epoch: epoch, Seq: m.Seq, Barrier: b, ID: b.ID}, nil
	case *protocol.RemoveMsg:
		epoch, err := parseEpoch(m.Epoch)
		if err != nil {
			return Event{}, err
		}
		id, err := barrier.ParseID(m.BarrierID)
		if err != nil {
			return Event{}, fmt.Errorf("%w: REMOVE barrier_id: %v", protocol.ErrBadFrame, err)
		}
		return Event{Kind: KindRemove, Region: registry.Region{World: m.WorldID, Dimension: m.Dimension}, Epoch: epoch, Seq: m.Seq, ID: id}, nil
	case *protocol.SnapshotMsg:
		epoch, err := parseEpoch(m.Epoch)
		if err != nil {
			return Event{}, err
		}
		bs := make([]*barrier.Barrier, len(m.Barriers))
		for i, w := range m.Barriers {
			if bs[i], err = w.ToBarrier(); err != nil {
				return Event{}, fmt.Errorf("SNAPSHOT barrier %d: %w", i, err)
			}
		}
		return Event{Kind: KindSnapshot, Region: registry.Region{World: m.WorldID, Dimension: m.Dimension}, Epoch: epoch, Seq: m.Seq, Barriers: bs}, nil
	}
	return Event{}, fmt.Errorf("%w: %T is not a replication event", protocol.ErrUnknownType, msg)
}

func parseEpoch(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: epoch: %v", protocol.ErrBadFrame, err)
	}
	return id, nil
}
