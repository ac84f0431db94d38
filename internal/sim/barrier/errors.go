package barrier

import (
	"fmt"

	"github.com/google/uuid"
)

const (
	ReasonEmptyBoundingBoxes  = "EMPTY_BOUNDING_BOXES"
	ReasonEmptyCollisionShape = "EMPTY_COLLISION_SHAPE"
	ReasonInvalidBox          = "INVALID_BOX"
	ReasonShapeNotEnclosed    = "SHAPE_NOT_ENCLOSED"
	ReasonTooManyVoxels       = "TOO_MANY_VOXELS"
	ReasonInvalidOrientedBox  = "INVALID_ORIENTED_BOX"
	ReasonShapeTooDeep        = "SHAPE_TOO_DEEP"
)

// ValidationError rejects barrier geometry at construction or registration.
type ValidationError struct {
	ID     uuid.UUID
	Reason string
	Detail string
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("barrier %s: %s", e.ID, e.Reason)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}
