package protocol

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"

	"coldestland.ai/internal/sim/barrier"
	"coldestland.ai/internal/sim/geom"
)

func TestBarrierWire_PreservesShapeStructure(t *testing.T) {
	unit := geom.NewBox(0, 0, 0, 1, 1, 1)
	half := geom.NewBox(0, 0, 0, 0.5, 0.5, 0.5)
	mesh := geom.NewConvexMesh([]geom.Vec3{geom.V(0, 0, 0), geom.V(1, 0, 0), geom.V(0, 1, 0), geom.V(0, 0, 1)})
	owner := uuid.New()
	b, err := barrier.New(barrier.NewID(), []geom.Box{unit}, []geom.Shape{geom.Compound{half, geom.Compound{unit}}, mesh}, barrier.Options{Owner: owner, CreatedTick: 5, ExpiresTick: 50})
	if err != nil {
		t.Fatalf("barrier.New: %v", err)
	}

	back, err := BarrierToWire(b).ToBarrier()
	if err != nil {
		t.Fatalf("ToBarrier: %v", err)
	}
	if back.ID != b.ID || back.Owner != owner || back.CreatedTick != 5 || back.ExpiresTick != 50 {
		t.Fatalf("header fields: %+v", back)
	}
	c, ok := back.CollisionShape[0].(geom.Compound)
	if !ok || len(c) != 2 {
		t.Fatalf("compound: got %#v", back.CollisionShape[0])
	}
	if _, ok := c[1].(geom.Compound); !ok {
		t.Fatalf("nested compound flattened")
	}
	if m, ok := back.CollisionShape[1].(geom.ConvexMesh); !ok || m.VertexCount() != 4 {
		t.Fatalf("mesh: got %#v", back.CollisionShape[1])
	}
}

func TestBarrierWire_RejectsInvalid(t *testing.T) {
	a := [6]float64{0, 0, 0, 2, 2, 2}
	w := Barrier{
		BarrierID:      uuid.NewString(),
		BoundingBoxes:  [][6]float64{{0, 0, 0, 1, 1, 1}},
		CollisionShape: []Shape{{Kind: ShapeBox, Box: &a}},
	}
	_, err := w.ToBarrier()
	var ve *barrier.ValidationError
	if !errors.As(err, &ve) || ve.Reason != barrier.ReasonShapeNotEnclosed {
		t.Fatalf("got %v want SHAPE_NOT_ENCLOSED", err)
	}

	w.BarrierID = "not-a-uuid"
	if _, err := w.ToBarrier(); err == nil {
		t.Fatalf("expected bad id error")
	}

	w.BarrierID = uuid.NewString()
	w.CollisionShape = []Shape{{Kind: "sphere"}}
	if _, err := w.ToBarrier(); !errors.Is(err, ErrBadFrame) {
		t.Fatalf("got %v want ErrBadFrame", err)
	}
}

func TestBarrierWire_LeaflessCompoundStillDecodes(t *testing.T) {
	unit := geom.NewBox(0, 0, 0, 1, 1, 1)
	b, err := barrier.New(barrier.NewID(), []geom.Box{unit}, []geom.Shape{unit, geom.Compound{}, geom.Compound{nil}}, barrier.Options{})
	if err != nil {
		t.Fatalf("barrier.New: %v", err)
	}
	raw, err := json.Marshal(AddMsg{
		Type: TypeAdd, ProtocolVersion: Version, WorldID: "w1", Dimension: "overworld",
		Epoch: uuid.NewString(), Seq: 1, Barrier: BarrierToWire(b),
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	msg, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	back, err := msg.(*AddMsg).Barrier.ToBarrier()
	if err != nil {
		t.Fatalf("ToBarrier: %v", err)
	}
	if len(back.CollisionShape) != 1 || back.CollisionShape[0] != unit {
		t.Fatalf("shapes: got %#v", back.CollisionShape)
	}
}
