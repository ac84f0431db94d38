package protocol

import (
	"bytes"
	"errors"
	"testing"
)

func TestFrame_SmallStaysPlain(t *testing.T) {
	data, compressed, err := EncodeFrame(NewSubscribe("w1", "overworld"), 1024)
	if err != nil {
		t.Fatalf("EncodeFrame: %v", err)
	}
	if compressed {
		t.Fatalf("small frame compressed")
	}
	raw, err := DecodeFrame(data, false)
	if err != nil || !bytes.Equal(raw, data) {
		t.Fatalf("DecodeFrame: %v", err)
	}
}

func TestFrame_LargeCompressed(t *testing.T) {
	msg := SnapshotMsg{Type: TypeSnapshot, ProtocolVersion: Version, WorldID: "w1", Dimension: "overworld", Epoch: "e"}
	for i := 0; i < 500; i++ {
		a := [6]float64{float64(i), 0, 0, float64(i) + 1, 1, 1}
		msg.Barriers = append(msg.Barriers, Barrier{
			BarrierID:      "b",
			BoundingBoxes:  [][6]float64{a},
			CollisionShape: []Shape{{Kind: ShapeBox, Box: &a}},
		})
	}
	data, compressed, err := EncodeFrame(msg, 1024)
	if err != nil {
		t.Fatalf("EncodeFrame: %v", err)
	}
	if !compressed {
		t.Fatalf("expected compression")
	}
	raw, err := DecodeFrame(data, true)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	if typ, err := Validate(raw); err != nil || typ != TypeSnapshot {
		t.Fatalf("Validate: %s %v", typ, err)
	}
}

func TestFrame_CorruptCompressed(t *testing.T) {
	if _, err := DecodeFrame([]byte("definitely not zstd"), true); !errors.Is(err, ErrBadFrame) {
		t.Fatalf("got %v want ErrBadFrame", err)
	}
}
