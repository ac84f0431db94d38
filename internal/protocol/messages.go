package protocol

// SUBSCRIBE (mirror -> hub)
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	WorldID         string `json:"world_id"`
	Dimension       string `json:"dimension"`
}

// ADD (hub -> mirror)
type AddMsg struct {
	Type            string  `json:"type"`
	ProtocolVersion string  `json:"protocol_version"`
	WorldID         string  `json:"world_id"`
	Dimension       string  `json:"dimension"`
	Epoch           string  `json:"epoch"`
	Seq             uint64  `json:"seq"`
	Barrier         Barrier `json:"barrier"`
}

// REMOVE (hub -> mirror)
type RemoveMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	WorldID         string `json:"world_id"`
	Dimension       string `json:"dimension"`
	Epoch           string `json:"epoch"`
	Seq             uint64 `json:"seq"`
	BarrierID       string `json:"barrier_id"`
}

// SNAPSHOT (hub -> mirror) replaces the whole region.
type SnapshotMsg struct {
	Type            string    `json:"type"`
	ProtocolVersion string    `json:"protocol_version"`
	WorldID         string    `json:"world_id"`
	Dimension       string    `json:"dimension"`
	Epoch           string    `json:"epoch"`
	Seq             uint64    `json:"seq"`
	Barriers        []Barrier `json:"barriers"`
}

type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Code            string `json:"code"`
	Message         string `json:"message"`
}

// Barrier carries a whole barrier body. Boxes are
// [minX,minY,minZ,maxX,maxY,maxZ].
type Barrier struct {
	BarrierID      string       `json:"barrier_id"`
	BoundingBoxes  [][6]float64 `json:"bounding_boxes"`
	CollisionShape []Shape      `json:"collision_shape"`
	Owner          string       `json:"owner,omitempty"`
	CreatedTick    uint64       `json:"created_tick,omitempty"`
	ExpiresTick    uint64       `json:"expires_tick,omitempty"`
}

const (
	ShapeBox      = "box"
	ShapeCompound = "compound"
	ShapeMesh     = "mesh"
)

type Shape struct {
	Kind     string       `json:"kind"`
	Box      *[6]float64  `json:"box,omitempty"`
	Parts    []Shape      `json:"parts,omitempty"`
	Vertices [][3]float64 `json:"vertices,omitempty"`
}

func NewSubscribe(worldID, dimension string) SubscribeMsg {
	return SubscribeMsg{Type: TypeSubscribe, ProtocolVersion: Version, WorldID: worldID, Dimension: dimension}
}

func NewError(code, message string) ErrorMsg {
	return ErrorMsg{Type: TypeError, ProtocolVersion: Version, Code: code, Message: message}
}
