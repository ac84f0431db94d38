// Package world is the reference host loop for the barrier overlay. It owns the
// tick counter and applies barrier mutations, expiry and mirror flushes at tick
// boundaries so the simulation never observes a half-applied batch.
package world

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"coldestland.ai/internal/sim/overlay"
	"coldestland.ai/internal/sim/registry"
	"coldestland.ai/internal/sim/replication"
)

type Config struct {
	TickRateHz int
	// MaxVoxels caps conjured oriented-box barriers.
	MaxVoxels int
	// DefaultLifetimeTicks applies to requests without a lifetime; 0 = forever.
	DefaultLifetimeTicks uint64
}

func (c *Config) applyDefaults() {
	if c.TickRateHz <= 0 {
		c.TickRateHz = 20
	}
	if c.MaxVoxels <= 0 {
		c.MaxVoxels = 4096
	}
}

var ErrStopped = errors.New("world loop stopped")

type World struct {
	cfg    Config
	mgr    *registry.Manager
	mirror *replication.Mirror
	ov     *overlay.Overlay
	log    *log.Logger

	tick atomic.Uint64

	mutate chan mutationReq
	stop   chan struct{}
	once   sync.Once

	applied atomic.Uint64
	expired atomic.Uint64
	flushed atomic.Uint64
}

// New builds a host loop around mgr. mirror may be nil; when set its buffered
// events are applied on every tick.
func New(cfg Config, mgr *registry.Manager, mirror *replication.Mirror, logger *log.Logger) (*World, error) {
	if mgr == nil {
		return nil, errors.New("nil registry manager")
	}
	if mirror != nil && mirror.Manager() != mgr {
		return nil, errors.New("mirror must feed the world's registry manager")
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[world] ", log.LstdFlags|log.Lmicroseconds)
	}
	cfg.applyDefaults()
	return &World{
		cfg:    cfg,
		mgr:    mgr,
		mirror: mirror,
		ov:     overlay.New(mgr),
		log:    logger,
		mutate: make(chan mutationReq, 1024),
		stop:   make(chan struct{}),
	}, nil
}

func (w *World) Config() Config { return w.cfg }
func (w *World) Manager() *registry.Manager { return w.mgr }
func (w *World) Mirror() *replication.Mirror { return w.mirror }
func (w *World) Overlay() *overlay.Overlay { return w.ov }
func (w *World) CurrentTick() uint64 { return w.tick.Load() }

func (w *World) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(w.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var pending []mutationReq
	defer func() { w.failAll(pending) }()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case req := <-w.mutate:
			pending = append(pending, req)
		case <-ticker.C:
			w.step(pending)
			clear(pending)
			pending = pending[:0]
		}
	}
}

func (w *World) Stop() { w.once.Do(func() { close(w.stop) }) }

// StepOnce drains queued requests and advances a single tick. It is meant for
// deterministic tests and replays; do not mix it with a running Run loop.
func (w *World) StepOnce() uint64 {
	var pending []mutationReq
	for {
		select {
		case req := <-w.mutate:
			pending = append(pending, req)
			continue
		default:
		}
		break
	}
	tick := w.tick.Load()
	w.step(pending)
	return tick
}

func (w *World) step(pending []mutationReq) {
	tick := w.tick.Load()
	for _, req := range pending {
		w.apply(tick, req)
	}
	w.applied.Add(uint64(len(pending)))

	if w.mgr.Role() == registry.RoleAuthoritative {
		n, err := w.mgr.Expire(tick)
		if err != nil {
			w.log.Printf("expire tick=%d: %v", tick, err)
		}
		if n > 0 {
			w.expired.Add(uint64(n))
		}
	}
	if w.mirror != nil {
		w.flushed.Add(uint64(w.mirror.Flush()))
	}
	w.tick.Add(1)
}

func (w *World) failAll(pending []mutationReq) {
	for _, req := range pending {
		req.reply(MutationResult{Tick: w.tick.Load(), Err: ErrStopped})
	}
}

type Stats struct {
	Tick     uint64 `json:"tick"`
	Applied  uint64 `json:"applied"`
	Expired  uint64 `json:"expired"`
	Flushed  uint64 `json:"mirror_flushed"`
	Queued   int    `json:"queued"`
	Role     string `json:"role"`
	TickRate int    `json:"tick_rate_hz"`
}

func (w *World) Stats() Stats {
	return Stats{
		Tick:     w.tick.Load(),
		Applied:  w.applied.Load(),
		Expired:  w.expired.Load(),
		Flushed:  w.flushed.Load(),
		Queued:   len(w.mutate),
		Role:     w.mgr.Role().String(),
		TickRate: w.cfg.TickRateHz,
	}
}
