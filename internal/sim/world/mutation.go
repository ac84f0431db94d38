package world

import (
	"context"
	"errors"

	"coldestland.ai/internal/sim/barrier"
	"coldestland.ai/internal/sim/geom"
	"coldestland.ai/internal/sim/registry"
)

type mutationOp int

const (
	opRegister mutationOp = iota + 1
	opConjure
	opUnregister
	opRemoveArea
	opDrop
)

type mutationReq struct {
	op       mutationOp
	region   registry.Region
	barrier  *barrier.Barrier
	oriented barrier.OrientedBox
	id       barrier.ID
	owner    barrier.ID
	area     geom.Box
	lifetime uint64
	resp     chan MutationResult
}

func (r mutationReq) reply(res MutationResult) {
	if r.resp == nil {
		return
	}
	select {
	case r.resp <- res:
	default:
	}
}

// MutationResult reports what a request did once the loop applied it.
type MutationResult struct {
	// Tick is the tick boundary the mutation landed on.
	Tick    uint64
	Barrier *barrier.Barrier
	Removed int
	Err     error
}

// Lifetime stamps newly registered barriers. Ticks == 0 falls back to the
// configured default.
type Lifetime struct {
	Owner barrier.ID
	Ticks uint64
}

// RequestRegister registers b at the next tick boundary. Barriers without a
// creation tick are stamped with the landing tick and, when a lifetime
// applies, an expiry.
func (w *World) RequestRegister(ctx context.Context, region registry.Region, b *barrier.Barrier, lt Lifetime) (MutationResult, error) {
	if b == nil {
		return MutationResult{}, errors.New("nil barrier")
	}
	return w.request(ctx, mutationReq{op: opRegister, region: region, barrier: b, owner: lt.Owner, lifetime: lt.Ticks})
}

// RequestConjure voxelizes an oriented box into a new barrier on the loop.
func (w *World) RequestConjure(ctx context.Context, region registry.Region, o barrier.OrientedBox, lt Lifetime) (MutationResult, error) {
	return w.request(ctx, mutationReq{op: opConjure, region: region, oriented: o, owner: lt.Owner, lifetime: lt.Ticks})
}

func (w *World) RequestUnregister(ctx context.Context, region registry.Region, id barrier.ID) (MutationResult, error) {
	return w.request(ctx, mutationReq{op: opUnregister, region: region, id: id})
}

func (w *World) RequestRemoveArea(ctx context.Context, region registry.Region, area geom.Box) (MutationResult, error) {
	return w.request(ctx, mutationReq{op: opRemoveArea, region: region, area: area})
}

func (w *World) RequestDrop(ctx context.Context, region registry.Region) (MutationResult, error) {
	return w.request(ctx, mutationReq{op: opDrop, region: region})
}

func (w *World) request(ctx context.Context, req mutationReq) (MutationResult, error) {
	if w == nil || w.mutate == nil {
		return MutationResult{}, errors.New("world loop not available")
	}
	select {
	case <-w.stop:
		return MutationResult{}, ErrStopped
	default:
	}
	req.resp = make(chan MutationResult, 1)
	select {
	case w.mutate <- req:
	case <-w.stop:
		return MutationResult{}, ErrStopped
	case <-ctx.Done():
		return MutationResult{}, ctx.Err()
	}
	select {
	case res := <-req.resp:
		return res, res.Err
	case <-w.stop:
		return MutationResult{}, ErrStopped
	case <-ctx.Done():
		return MutationResult{}, ctx.Err()
	}
}

func (w *World) apply(tick uint64, req mutationReq) {
	res := MutationResult{Tick: tick}
	defer func() { req.reply(res) }()

	switch req.op {
	case opRegister:
		b := req.barrier
		if b.CreatedTick == 0 {
			nb, err := barrier.New(b.ID, b.BoundingBoxes, b.CollisionShape, w.stamp(tick, req, b.Owner, b.ExpiresTick))
			if err != nil {
				res.Err = err
				return
			}
			b = nb
		}
		res.Err = w.mgr.Register(req.region, b)
		res.Barrier = b
	case opConjure:
		b, err := barrier.NewOriented(barrier.NewID(), req.oriented, w.cfg.MaxVoxels, w.stamp(tick, req, barrier.ID{}, 0))
		if err != nil {
			res.Err = err
			return
		}
		res.Err = w.mgr.Register(req.region, b)
		res.Barrier = b
	case opUnregister:
		ok, err := w.mgr.Unregister(req.region, req.id)
		if ok {
			res.Removed = 1
		}
		res.Err = err
	case opRemoveArea:
		res.Removed, res.Err = w.mgr.RemoveArea(req.region, req.area)
	case opDrop:
		res.Removed, res.Err = w.mgr.Drop(req.region)
	default:
		res.Err = errors.New("unknown mutation")
	}
	if res.Err != nil {
		res.Barrier = nil
		w.log.Printf("mutation region=%s op=%d tick=%d: %v", req.region, req.op, tick, res.Err)
	}
}

func (w *World) stamp(tick uint64, req mutationReq, owner barrier.ID, expires uint64) barrier.Options {
	if req.owner != (barrier.ID{}) {
		owner = req.owner
	}
	lifetime := req.lifetime
	if lifetime == 0 {
		lifetime = w.cfg.DefaultLifetimeTicks
	}
	if expires == 0 && lifetime > 0 {
		expires = tick + lifetime
	}
	return barrier.Options{Owner: owner, CreatedTick: tick, ExpiresTick: expires}
}
