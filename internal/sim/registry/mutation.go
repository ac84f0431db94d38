package registry

import (
	"errors"

	"github.com/google/uuid"

	"coldestland.ai/internal/sim/barrier"
)

var (
	// ErrDuplicateID rejects a registration whose id is already present in
	// the region.
	ErrDuplicateID = errors.New("registry: duplicate barrier id")
	// ErrReadOnly rejects local writes on a mirrored registry.
	ErrReadOnly = errors.New("registry: mirrored registry is read-only")
	// ErrNotMirrored rejects replicated writes on an authoritative registry.
	ErrNotMirrored = errors.New("registry: apply requires a mirrored registry")
)

// Role decides which write paths a registry accepts.
type Role uint8

const (
	RoleAuthoritative Role = iota
	RoleMirrored
)

func (r Role) String() string {
	if r == RoleMirrored {
		return "mirrored"
	}
	return "authoritative"
}

type MutationKind uint8

const (
	MutationAdd MutationKind = iota + 1
	MutationRemove
	// MutationReset replaces the whole region; only mirrored registries
	// produce it.
	MutationReset
)

func (k MutationKind) String() string {
	switch k {
	case MutationAdd:
		return "ADD"
	case MutationRemove:
		return "REMOVE"
	case MutationReset:
		return "RESET"
	}
	return "UNKNOWN"
}

// Mutation describes one committed change. Seq is the registry sequence
// after the change.
type Mutation struct {
	Region Region
	Kind   MutationKind
	Epoch  uuid.UUID
	Seq    uint64

	// Barrier is set for MutationAdd, ID for MutationAdd and MutationRemove.
	Barrier *barrier.Barrier
	ID      barrier.ID
	// Removed is the barrier a MutationRemove took out.
	Removed *barrier.Barrier
	// Snapshot is the published view after a MutationReset.
	Snapshot *Snapshot
}

// Observer receives mutations synchronously under the registry write lock.
// It must not block or call back into the registry's write paths.
type Observer func(Mutation)
