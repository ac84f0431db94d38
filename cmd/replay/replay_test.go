package main

import (
	"io"
	"log"
	"testing"

	persistlog "coldestland.ai/internal/persistence/log"
	"coldestland.ai/internal/sim/barrier"
	"coldestland.ai/internal/sim/geom"
	"coldestland.ai/internal/sim/registry"
)

func mustBarrier(t *testing.T, x float64) *barrier.Barrier {
	t.Helper()
	box := geom.NewBox(x, 0, 0, x+1, 1, 1)
	b, err := barrier.New(barrier.NewID(), []geom.Box{box}, []geom.Shape{box}, barrier.Options{})
	if err != nil {
		t.Fatalf("barrier.New: %v", err)
	}
	return b
}

// runEpoch journals one authoritative process lifetime into dir.
func runEpoch(t *testing.T, dir string, tick *uint64, fn func(*registry.Manager)) *registry.Manager {
	t.Helper()
	l := persistlog.NewMutationLogger(dir, func() uint64 { return *tick })
	mgr := registry.NewManager(registry.RoleAuthoritative, 16)
	cancel := mgr.Observe(l.Observe)
	fn(mgr)
	cancel()
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	return mgr
}

func TestReplay_RebuildsAcrossEpochs(t *testing.T) {
	dir := t.TempDir()
	region := registry.Region{World: "w1", Dimension: "overworld"}
	other := registry.Region{World: "w1", Dimension: "nether"}
	tick := uint64(1)

	runEpoch(t, dir, &tick, func(mgr *registry.Manager) {
		a, b := mustBarrier(t, 0), mustBarrier(t, 5)
		_ = mgr.Register(region, a)
		_ = mgr.Register(region, b)
		tick = 2
		_, _ = mgr.Unregister(region, a.ID)
		_ = mgr.Register(other, mustBarrier(t, 0))
	})
	var keep *barrier.Barrier
	final := runEpoch(t, dir, &tick, func(mgr *registry.Manager) {
		tick = 10
		keep = mustBarrier(t, 9)
		_ = mgr.Register(region, keep)
	})

	res, err := replayDir(dir, 0, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("replayDir: %v", err)
	}
	if res.Entries != 5 || res.Mirror.Failed != 0 || res.Mirror.Gaps != 0 {
		t.Fatalf("result: %+v", res)
	}
	if len(res.Regions) != 2 {
		t.Fatalf("regions: got %d want 2", len(res.Regions))
	}
	nether, over := res.Regions[0], res.Regions[1]
	if over.Region != region || over.Epochs != 2 || over.Barriers != 1 || over.Partial {
		t.Fatalf("overworld: %+v", over)
	}
	if over.Epoch != final.Registry(region).Epoch().String() || over.Seq != 1 || over.LastTick != 10 {
		t.Fatalf("overworld position: %+v", over)
	}
	if _, ok := res.Manager.Get(region, keep.ID); !ok {
		t.Fatalf("replayed registry missing %s", keep.ID)
	}
	if nether.Region != other || nether.Barriers != 1 {
		t.Fatalf("nether: %+v", nether)
	}
}

func TestReplay_StopsAtTick(t *testing.T) {
	dir := t.TempDir()
	region := registry.Region{World: "w1", Dimension: "overworld"}
	tick := uint64(1)
	runEpoch(t, dir, &tick, func(mgr *registry.Manager) {
		_ = mgr.Register(region, mustBarrier(t, 0))
		tick = 5
		_ = mgr.Register(region, mustBarrier(t, 2))
	})

	res, err := replayDir(dir, 4, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("replayDir: %v", err)
	}
	if res.Entries != 1 || len(res.Regions) != 1 || res.Regions[0].Barriers != 1 {
		t.Fatalf("result: %+v", res)
	}
}
