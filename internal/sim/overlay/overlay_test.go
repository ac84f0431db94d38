package overlay

import (
	"sync"
	"sync/atomic"
	"testing"

	"coldestland.ai/internal/sim/barrier"
	"coldestland.ai/internal/sim/geom"
	"coldestland.ai/internal/sim/registry"
)

var region = registry.Region{World: "w1", Dimension: "overworld"}

func register(t *testing.T, m *registry.Manager, shapes []geom.Shape, boxes ...geom.Box) *barrier.Barrier {
	t.Helper()
	if shapes == nil {
		for _, b := range boxes {
			shapes = append(shapes, b)
		}
	}
	b, err := barrier.New(barrier.NewID(), boxes, shapes, barrier.Options{})
	if err != nil {
		t.Fatalf("barrier.New: %v", err)
	}
	if err := m.Register(region, b); err != nil {
		t.Fatalf("Register: %v", err)
	}
	return b
}

func TestGetBlockCollisions_NoOverlapReturnsNative(t *testing.T) {
	m := registry.NewManager(registry.RoleAuthoritative, 16)
	register(t, m, nil, geom.NewBox(10, 0, 10, 11, 1, 11))
	ov := New(m)
	native := []geom.Shape{geom.NewBox(0, 0, 0, 1, 1, 1)}
	area := geom.NewBox(0, 0, 0, 2, 2, 2)

	got := ov.GetBlockCollisions(region, "", area, native)
	if len(got) != 1 || &got[0] != &native[0] {
		t.Fatalf("expected the native slice back")
	}
	allocs := testing.AllocsPerRun(100, func() {
		_ = ov.GetBlockCollisions(region, "zombie-1", area, native)
	})
	if allocs != 0 {
		t.Fatalf("allocs: got %v want 0", allocs)
	}
	if got := ov.GetBlockCollisions(region, "", area, nil); got != nil {
		t.Fatalf("nil native: got %v want nil", got)
	}
}

func TestGetBlockCollisions_AppendsInSnapshotOrder(t *testing.T) {
	m := registry.NewManager(registry.RoleAuthoritative, 16)
	inner := geom.NewBox(0.25, 0, 0.25, 0.75, 1, 0.75)
	first := register(t, m, []geom.Shape{geom.Compound{inner, inner.Translate(geom.V(0.1, 0, 0))}}, geom.NewBox(0, 0, 0, 1, 1, 1))
	second := register(t, m, nil, geom.NewBox(1.5, 0, 0, 2.5, 1, 1))
	register(t, m, nil, geom.NewBox(50, 0, 0, 51, 1, 1))
	ov := New(m)

	n0, n1 := geom.NewBox(-1, -1, -1, 0, 0, 0), geom.NewBox(3, 3, 3, 4, 4, 4)
	native := []geom.Shape{n0, n1}
	got := ov.GetBlockCollisions(region, "", geom.NewBox(0.5, 0.5, 0.5, 2, 0.6, 0.6), native)

	want := []geom.Shape{n0, n1, first.CollisionShape[0], second.CollisionShape[0]}
	if len(got) != len(want) {
		t.Fatalf("got %d shapes want %d", len(got), len(want))
	}
	if got[0] != want[0] || got[1] != want[1] || got[3] != want[3] {
		t.Fatalf("order: got %v", got)
	}
	if _, ok := got[2].(geom.Compound); !ok {
		t.Fatalf("shape 2: got %T want Compound", got[2])
	}
	if len(native) != 2 || native[0] != n0 {
		t.Fatalf("native slice modified")
	}
}

func TestClip_WestFaceEntry(t *testing.T) {
	m := registry.NewManager(registry.RoleAuthoritative, 16)
	b := register(t, m, nil, geom.NewBox(0, 0, 0, 1, 1, 1))
	ov := New(m)
	start, end := geom.V(-1, 0.5, 0.5), geom.V(2, 0.5, 0.5)

	got := ov.ClipIncludingBorder(region, start, end, Miss(end))
	if got.Type != HitBlock || !got.FromBarrier() || got.Barrier != b.ID {
		t.Fatalf("expected barrier hit, got %+v", got)
	}
	if got.Location != geom.V(0, 0.5, 0.5) {
		t.Fatalf("location: got %v", got.Location)
	}
	if got.Face != geom.FaceWest {
		t.Fatalf("face: got %v want %v", got.Face, geom.FaceWest)
	}
	if got.Pos != (geom.BlockPos{0, 0, 0}) || got.Inside {
		t.Fatalf("pos/inside: got %v %v", got.Pos, got.Inside)
	}
}

func TestClip_NeverFartherThanNative(t *testing.T) {
	m := registry.NewManager(registry.RoleAuthoritative, 16)
	register(t, m, nil, geom.NewBox(0, 0, 0, 1, 1, 1))
	ov := New(m)
	start, end := geom.V(-1, 0.5, 0.5), geom.V(2, 0.5, 0.5)

	closer := HitResult{Type: HitBlock, Location: geom.V(-0.5, 0.5, 0.5), Face: geom.FaceWest, Pos: geom.BlockPos{-1, 0, 0}}
	if got := ov.ClipIncludingBorder(region, start, end, closer); got != closer {
		t.Fatalf("closer native replaced: %+v", got)
	}
	tied := HitResult{Type: HitBlock, Location: geom.V(0, 0.5, 0.5), Face: geom.FaceWest}
	if got := ov.ClipIncludingBorder(region, start, end, tied); got != tied {
		t.Fatalf("tie must keep native: %+v", got)
	}
	farther := HitResult{Type: HitBlock, Location: geom.V(1.5, 0.5, 0.5), Face: geom.FaceWest, Pos: geom.BlockPos{1, 0, 0}}
	if got := ov.ClipIncludingBorder(region, start, end, farther); !got.FromBarrier() {
		t.Fatalf("farther native kept: %+v", got)
	}
}

func TestClip_EarlierBarrierWinsTie(t *testing.T) {
	m := registry.NewManager(registry.RoleAuthoritative, 16)
	first := register(t, m, nil, geom.NewBox(0, 0, 0, 1, 1, 1))
	register(t, m, nil, geom.NewBox(0, 0, 0, 1, 2, 1))
	ov := New(m)
	end := geom.V(2, 0.5, 0.5)
	if got := ov.ClipIncludingBorder(region, geom.V(-1, 0.5, 0.5), end, Miss(end)); got.Barrier != first.ID {
		t.Fatalf("got barrier %s want %s", got.Barrier, first.ID)
	}
}

func TestClip_NearestBoxAcrossBarriers(t *testing.T) {
	m := registry.NewManager(registry.RoleAuthoritative, 16)
	register(t, m, nil, geom.NewBox(4, 0, 0, 5, 1, 1))
	near := register(t, m, nil, geom.NewBox(2, 0, 0, 3, 1, 1))
	ov := New(m)
	end := geom.V(6, 0.5, 0.5)
	got := ov.ClipIncludingBorder(region, geom.V(0, 0.5, 0.5), end, Miss(end))
	if got.Barrier != near.ID || got.Location != geom.V(2, 0.5, 0.5) {
		t.Fatalf("got %+v", got)
	}
}

func TestClip_MissCases(t *testing.T) {
	m := registry.NewManager(registry.RoleAuthoritative, 16)
	register(t, m, nil, geom.NewBox(0, 0, 0, 1, 1, 1))
	ov := New(m)
	cases := []struct {
		name       string
		start, end geom.Vec3
	}{
		{"zero length", geom.V(-0.5, 0.5, 0.5), geom.V(-0.5, 0.5, 0.5)},
		{"starts inside", geom.V(0.5, 0.5, 0.5), geom.V(3, 0.5, 0.5)},
		{"stops short", geom.V(-1, 0.5, 0.5), geom.V(-0.1, 0.5, 0.5)},
		{"passes above", geom.V(-1, 1.5, 0.5), geom.V(2, 1.5, 0.5)},
	}
	for _, tc := range cases {
		native := Miss(tc.end)
		if got := ov.ClipIncludingBorder(region, tc.start, tc.end, native); got != native {
			t.Fatalf("%s: got %+v want native", tc.name, got)
		}
	}
}

func TestClip_FacePriorityAtEdge(t *testing.T) {
	m := registry.NewManager(registry.RoleAuthoritative, 16)
	register(t, m, nil, geom.NewBox(0, 0, 0, 1, 1, 1))
	ov := New(m)
	// Enters exactly through the x=0,y=1 edge.
	end := geom.V(1, 0, 0.5)
	got := ov.ClipIncludingBorder(region, geom.V(-1, 2, 0.5), end, Miss(end))
	if !got.FromBarrier() || got.Face != geom.FaceWest {
		t.Fatalf("got %+v want west face", got)
	}
}

func TestClip_NoCandidatesNoAlloc(t *testing.T) {
	m := registry.NewManager(registry.RoleAuthoritative, 16)
	register(t, m, nil, geom.NewBox(100, 0, 100, 101, 1, 101))
	ov := New(m)
	start, end := geom.V(0, 0.5, 0.5), geom.V(3, 0.5, 0.5)
	native := Miss(end)
	allocs := testing.AllocsPerRun(100, func() {
		_ = ov.ClipIncludingBorder(region, start, end, native)
	})
	if allocs != 0 {
		t.Fatalf("allocs: got %v want 0", allocs)
	}
	other := registry.Region{World: "w9", Dimension: "end"}
	allocs = testing.AllocsPerRun(100, func() {
		_ = ov.ClipIncludingBorder(other, start, end, native)
	})
	if allocs != 0 {
		t.Fatalf("unknown region allocs: got %v want 0", allocs)
	}
}

type fakeWorld struct {
	shapes []geom.Shape
	hit    HitResult
	calls  int
}

func (f *fakeWorld) Region() registry.Region { return region }

func (f *fakeWorld) GetBlockCollisions(Requester, geom.Box) []geom.Shape {
	f.calls++
	return f.shapes
}

func (f *fakeWorld) ClipIncludingBorder(_, _ geom.Vec3, _ ClipOptions) HitResult {
	f.calls++
	return f.hit
}

func TestWrap_NativeFirstThenOverlay(t *testing.T) {
	m := registry.NewManager(registry.RoleAuthoritative, 16)
	b := register(t, m, nil, geom.NewBox(0, 0, 0, 1, 1, 1))
	native := &fakeWorld{shapes: []geom.Shape{geom.NewBox(5, 5, 5, 6, 6, 6)}, hit: Miss(geom.V(2, 0.5, 0.5))}
	w := Wrap(native, New(m))

	shapes := w.GetBlockCollisions("", geom.NewBox(0, 0, 0, 2, 2, 2))
	if len(shapes) != 2 || shapes[0] != native.shapes[0] {
		t.Fatalf("shapes: got %v", shapes)
	}
	hit := w.ClipIncludingBorder(geom.V(-1, 0.5, 0.5), geom.V(2, 0.5, 0.5), ClipOptions{})
	if hit.Barrier != b.ID {
		t.Fatalf("hit: got %+v", hit)
	}
	if native.calls != 2 {
		t.Fatalf("native calls: got %d want 2", native.calls)
	}
}

func TestGetBlockCollisions_NeverAppendsNil(t *testing.T) {
	m := registry.NewManager(registry.RoleAuthoritative, 16)
	unit := geom.NewBox(0, 0, 0, 1, 1, 1)
	register(t, m, []geom.Shape{nil, unit, nil}, unit)
	ov := New(m)

	got := ov.GetBlockCollisions(region, "", geom.NewBox(0.2, 0.2, 0.2, 0.8, 0.8, 0.8), nil)
	if len(got) != 1 {
		t.Fatalf("got %d shapes want 1", len(got))
	}
	for i, s := range got {
		if s == nil {
			t.Fatalf("shape %d is nil", i)
		}
	}
}

func TestOverlay_ConcurrentQueriesSeeWholeBarriers(t *testing.T) {
	m := registry.NewManager(registry.RoleAuthoritative, 16)
	ov := New(m)

	// Each barrier is three stacked unit boxes sharing one X column.
	column := func(x float64) *barrier.Barrier {
		boxes := []geom.Box{
			geom.NewBox(x, 0, 0, x+1, 1, 1),
			geom.NewBox(x, 1, 0, x+1, 2, 1),
			geom.NewBox(x, 2, 0, x+1, 3, 1),
		}
		b, err := barrier.New(barrier.NewID(), boxes, []geom.Shape{boxes[0], boxes[1], boxes[2]}, barrier.Options{})
		if err != nil {
			t.Fatalf("barrier.New: %v", err)
		}
		return b
	}
	pool := make([]*barrier.Barrier, 400)
	for i := range pool {
		pool[i] = column(float64(i%40) * 2)
	}

	var stop atomic.Bool
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i, b := range pool {
			if err := m.Register(region, b); err != nil {
				t.Errorf("Register: %v", err)
				return
			}
			if i >= 3 {
				_, _ = m.Unregister(region, pool[i-3].ID)
			}
		}
	}()

	native := []geom.Shape{geom.NewBox(-5, 0, 0, -4, 1, 1)}
	area := geom.NewBox(-1, 0.5, 0.2, 90, 2.5, 0.8)
	var rg sync.WaitGroup
	for r := 0; r < 4; r++ {
		rg.Add(1)
		go func() {
			defer rg.Done()
			for !stop.Load() {
				got := ov.GetBlockCollisions(region, "", area, native)
				if got[0] != native[0] {
					t.Errorf("native shape moved")
					return
				}
				extra := got[len(native):]
				if len(extra)%3 != 0 {
					t.Errorf("got %d barrier shapes, not whole barriers", len(extra))
					return
				}
				for i := 0; i < len(extra); i += 3 {
					x := extra[i].Bounds().Min[0]
					if extra[i+1].Bounds().Min[0] != x || extra[i+2].Bounds().Min[0] != x {
						t.Errorf("shapes of different barriers interleaved at %d", i)
						return
					}
				}

				start, end := geom.V(-1, 1.5, 0.5), geom.V(90, 1.5, 0.5)
				hit := ov.ClipIncludingBorder(region, start, end, Miss(end))
				if hit.Type == HitMiss {
					continue
				}
				if !hit.FromBarrier() || hit.Face != geom.FaceWest || hit.Location[0] < 0 || hit.Location[0] > 78 {
					t.Errorf("clip: got %+v", hit)
					return
				}
			}
		}()
	}

	wg.Wait()
	stop.Store(true)
	rg.Wait()
}
