package log

import (
	"testing"
	"time"

	"coldestland.ai/internal/sim/barrier"
	"coldestland.ai/internal/sim/geom"
	"coldestland.ai/internal/sim/registry"
)

func TestMutationLogger_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	tick := uint64(40)
	l := NewMutationLogger(dir, func() uint64 { return tick })

	mgr := registry.NewManager(registry.RoleAuthoritative, 16)
	cancel := mgr.Observe(l.Observe)
	defer cancel()

	region := registry.Region{World: "w1", Dimension: "overworld"}
	box := geom.NewBox(0, 0, 0, 1, 1, 1)
	b, err := barrier.New(barrier.NewID(), []geom.Box{box}, []geom.Shape{box}, barrier.Options{ExpiresTick: 99})
	if err != nil {
		t.Fatalf("barrier.New: %v", err)
	}
	if err := mgr.Register(region, b); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := mgr.Unregister(region, b.ID); err != nil {
		t.Fatalf("Unregister: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	// Mutations after Close are ignored.
	_ = mgr.Register(region, b)

	files, err := JournalFiles(dir)
	if err != nil || len(files) != 1 {
		t.Fatalf("JournalFiles: %v %v", files, err)
	}
	var got []MutationEntry
	if err := ReadJournal(files[0], func(e MutationEntry) error {
		got = append(got, e)
		return nil
	}); err != nil {
		t.Fatalf("ReadJournal: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("entries: got %d want 2", len(got))
	}
	if got[0].Kind != "ADD" || got[0].Seq != 1 || got[0].Tick != 40 || got[0].Barrier == nil {
		t.Fatalf("first entry: %+v", got[0])
	}
	back, err := got[0].Barrier.ToBarrier()
	if err != nil || back.ID != b.ID || back.ExpiresTick != 99 {
		t.Fatalf("journaled barrier: %v %v", back, err)
	}
	if got[1].Kind != "REMOVE" || got[1].BarrierID != b.ID.String() || got[1].Region() != region {
		t.Fatalf("second entry: %+v", got[1])
	}
	if st := l.Stats(); st.Written != 2 || st.Dropped != 0 {
		t.Fatalf("stats: %+v", st)
	}
}

func TestJSONLZstdWriter_RotatesHourly(t *testing.T) {
	dir := t.TempDir()
	w := NewJSONLZstdWriter(dir, journalPrefix)
	now := time.Date(2026, 3, 1, 10, 59, 0, 0, time.UTC)
	w.now = func() time.Time { return now }
	if err := w.Write(MutationEntry{Kind: "ADD", Seq: 1}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	now = now.Add(2 * time.Minute)
	if err := w.Write(MutationEntry{Kind: "REMOVE", Seq: 2}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	files, _ := JournalFiles(dir)
	if len(files) != 2 {
		t.Fatalf("files: got %v", files)
	}
	var seqs []uint64
	for _, f := range files {
		_ = ReadJournal(f, func(e MutationEntry) error {
			seqs = append(seqs, e.Seq)
			return nil
		})
	}
	if len(seqs) != 2 || seqs[0] != 1 || seqs[1] != 2 {
		t.Fatalf("seqs: %v", seqs)
	}
}
