package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"coldestland.ai/internal/sim/registry"
	"coldestland.ai/internal/sim/replication"
	"coldestland.ai/internal/sim/tuning"
	"coldestland.ai/internal/sim/world"
	"coldestland.ai/internal/transport/syncws"
)

const (
	minBackoff = 250 * time.Millisecond
	maxBackoff = 30 * time.Second
)

func main() {
	var (
		url        = flag.String("url", "ws://localhost:8080/v1/sync", "sync websocket url")
		worldID    = flag.String("world", "world_1", "world id")
		dims       = flag.String("dimensions", "overworld", "comma-separated dimensions to mirror")
		tuningPath = flag.String("tuning", "./configs/tuning.yaml", "path to tuning.yaml")
		statsEvery = flag.Duration("stats_every", 30*time.Second, "stats log interval (0 disables)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[mirror] ", log.LstdFlags|log.Lmicroseconds)

	tune, err := tuning.Load(*tuningPath)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		tune = tuning.Defaults()
	}

	mgr := registry.NewManager(registry.RoleMirrored, tune.CellSize)
	mirror, err := replication.NewMirror(mgr, logger)
	if err != nil {
		logger.Fatalf("mirror: %v", err)
	}
	// The host loop flushes buffered sync events once per tick.
	w, err := world.New(world.Config{TickRateHz: tune.TickRateHz}, mgr, mirror, logger)
	if err != nil {
		logger.Fatalf("world: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stop := make(chan os.Signal, 2)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-stop
		cancel()
	}()

	go func() { _ = w.Run(ctx) }()

	var wg sync.WaitGroup
	for _, d := range strings.Split(*dims, ",") {
		d = strings.TrimSpace(d)
		if d == "" {
			continue
		}
		region := registry.Region{World: *worldID, Dimension: d}
		wg.Add(1)
		go func() {
			defer wg.Done()
			follow(ctx, syncws.NewClient(*url, region, mirror, logger), logger)
		}()
	}

	if *statsEvery > 0 {
		go func() {
			t := time.NewTicker(*statsEvery)
			defer t.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-t.C:
					st := mirror.Stats()
					logger.Printf("tick=%d barriers=%d applied=%d skipped=%d gaps=%d failed=%d synced=%d",
						w.CurrentTick(), mgr.Stats().Barriers, st.Applied, st.Skipped, st.Gaps, st.Failed, st.Synced)
				}
			}
		}()
	}

	wg.Wait()
}

// follow keeps one region subscribed, reconnecting with capped exponential
// backoff. A connection that delivered frames resets the backoff.
func follow(ctx context.Context, c *syncws.Client, logger *log.Logger) {
	backoff := minBackoff
	for {
		frames, err := c.Run(ctx)
		if ctx.Err() != nil {
			return
		}
		if frames > 0 {
			backoff = minBackoff
		}
		logger.Printf("sync %s: disconnected after %d frames: %v (retry in %s)", c.Region, frames, err, backoff)
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}
