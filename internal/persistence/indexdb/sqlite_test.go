package indexdb

import (
	"context"
	"path/filepath"
	"testing"

	"coldestland.ai/internal/sim/barrier"
	"coldestland.ai/internal/sim/geom"
	"coldestland.ai/internal/sim/registry"
)

func newBarrier(t *testing.T, x float64, expires uint64) *barrier.Barrier {
	t.Helper()
	box := geom.NewBox(x, 0, 0, x+1, 2, 1)
	b, err := barrier.New(barrier.NewID(), []geom.Box{box}, []geom.Shape{box}, barrier.Options{ExpiresTick: expires})
	if err != nil {
		t.Fatalf("barrier.New: %v", err)
	}
	return b
}

func TestSQLiteIndex_IndexesMutations(t *testing.T) {
	ctx := context.Background()
	tick := uint64(7)
	idx, err := OpenSQLite(filepath.Join(t.TempDir(), "index.sqlite"), func() uint64 { return tick })
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer idx.Close()

	mgr := registry.NewManager(registry.RoleAuthoritative, 16)
	cancel := mgr.Observe(idx.Observe)
	defer cancel()

	region := registry.Region{World: "w1", Dimension: "overworld"}
	a := newBarrier(t, 0, 50)
	b := newBarrier(t, 4, 0)
	if err := mgr.Register(region, a); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := mgr.Register(region, b); err != nil {
		t.Fatalf("Register: %v", err)
	}
	tick = 9
	if _, err := mgr.Unregister(region, a.ID); err != nil {
		t.Fatalf("Unregister: %v", err)
	}
	if err := idx.Sync(ctx); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	n, err := idx.ActiveCount(ctx, region)
	if err != nil || n != 1 {
		t.Fatalf("ActiveCount: got %d (%v) want 1", n, err)
	}
	hist, err := idx.History(ctx, a.ID)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(hist) != 2 || hist[0].Kind != "ADD" || hist[1].Kind != "REMOVE" {
		t.Fatalf("history: %+v", hist)
	}
	if hist[0].Tick != 7 || hist[1].Tick != 9 || hist[1].Seq != 3 {
		t.Fatalf("history ticks/seq: %+v", hist)
	}
	if st := idx.Stats(); st.Written != 3 || st.Dropped != 0 {
		t.Fatalf("stats: %+v", st)
	}
}

func TestSQLiteIndex_ResetReplacesRegion(t *testing.T) {
	ctx := context.Background()
	idx, err := OpenSQLite(filepath.Join(t.TempDir(), "index.sqlite"), nil)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer idx.Close()

	mgr := registry.NewManager(registry.RoleMirrored, 16)
	cancel := mgr.Observe(idx.Observe)
	defer cancel()

	region := registry.Region{World: "w1", Dimension: "nether"}
	if err := mgr.ApplyAdd(region, newBarrier(t, 0, 0)); err != nil {
		t.Fatalf("ApplyAdd: %v", err)
	}
	keep := newBarrier(t, 10, 20)
	if err := mgr.ApplySnapshot(region, []*barrier.Barrier{keep, newBarrier(t, 20, 30)}); err != nil {
		t.Fatalf("ApplySnapshot: %v", err)
	}
	if err := idx.Sync(ctx); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	n, err := idx.ActiveCount(ctx, region)
	if err != nil || n != 2 {
		t.Fatalf("ActiveCount: got %d (%v) want 2", n, err)
	}
	exp, err := idx.ExpiringBefore(ctx, region, 25)
	if err != nil {
		t.Fatalf("ExpiringBefore: %v", err)
	}
	if len(exp) != 1 || exp[0].BarrierID != keep.ID.String() || exp[0].ExpiresTick != 20 {
		t.Fatalf("expiring: %+v", exp)
	}
}

func TestSQLiteIndex_DropsWhenQueueFull(t *testing.T) {
	s := &SQLiteIndex{ch: make(chan req, 1), tick: func() uint64 { return 0 }}
	m := registry.Mutation{Kind: registry.MutationRemove}
	s.Observe(m)
	s.Observe(m)
	s.Observe(m)

	st := s.Stats()
	if st.QueueDepth != 1 || st.QueueCapacity != 1 {
		t.Fatalf("queue: got %d/%d want 1/1", st.QueueDepth, st.QueueCapacity)
	}
	if st.Dropped != 2 {
		t.Fatalf("dropped: got %d want 2", st.Dropped)
	}
}
