package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	persistlog "coldestland.ai/internal/persistence/log"
	"coldestland.ai/internal/sim/registry"
	"coldestland.ai/internal/sim/replication"
	"coldestland.ai/internal/sim/tuning"
	"coldestland.ai/internal/sim/world"
	"coldestland.ai/internal/transport/admin"
	"coldestland.ai/internal/transport/syncws"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		configDir  = flag.String("configs", "./configs", "config directory")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite mutation index")
		noJournal  = flag.Bool("disable_journal", false, "disable the mutation journal")
		syncRemote = flag.Bool("sync_allow_remote", false, "accept sync subscribers from non-loopback peers")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", tp)
		tune = tuning.Defaults()
	}
	if err := os.MkdirAll(*dataDir, 0o755); err != nil {
		logger.Fatalf("data dir: %v", err)
	}

	mgr := registry.NewManager(registry.RoleAuthoritative, tune.CellSize)
	w, err := world.New(world.Config{
		TickRateHz:           tune.TickRateHz,
		MaxVoxels:            tune.MaxVoxels,
		DefaultLifetimeTicks: tune.DefaultLifetimeTicks,
	}, mgr, nil, log.New(os.Stdout, "[world] ", log.LstdFlags|log.Lmicroseconds))
	if err != nil {
		logger.Fatalf("world: %v", err)
	}

	// Read models observe the registry; neither can block a mutation.
	var journal *persistlog.MutationLogger
	if tune.Journal.Enabled && !*noJournal {
		journal = persistlog.NewMutationLogger(filepath.Join(*dataDir, "journal"), w.CurrentTick)
		defer journal.Close()
		defer mgr.Observe(journal.Observe)()
	}
	idx, err := openIndex(*dataDir, tune.Index.Enabled && !*disableDB, w.CurrentTick)
	if err != nil {
		logger.Fatalf("open index backend: %v", err)
	}
	if idx != nil {
		defer idx.Close()
		defer mgr.Observe(idx.Observe)()
	}

	hub := replication.NewHub(mgr, tune.Sync.QueueMax)
	defer hub.Close()

	ctx, cancel := signalContext()
	defer cancel()

	go func() {
		if err := w.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("world stopped: %v", err)
		}
	}()

	syncSrv := syncws.NewServer(hub, logger, syncws.Options{
		LoopbackOnly:     !*syncRemote,
		CompressMinBytes: tune.Sync.CompressMinBytes,
		WriteTimeout:     time.Duration(tune.Sync.WriteTimeoutMS) * time.Millisecond,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", metricsHandler(w, hub, syncSrv, idx, journal))
	mux.HandleFunc("/v1/sync", syncSrv.WSHandler())

	enableAdminHTTP := envBool("CL_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP())
	enablePprofHTTP := envBool("CL_ENABLE_PPROF_HTTP", false)
	if enableAdminHTTP {
		admin.NewServer(admin.Deps{World: w, Hub: hub, Index: idx, Journal: journal}, logger, true).Register(mux)
	} else {
		logger.Printf("admin endpoints disabled (CL_ENABLE_ADMIN_HTTP=false)")
	}
	if enablePprofHTTP {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s (tick_rate_hz=%d cell_size=%g)", *addr, tune.TickRateHz, tune.CellSize)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return false
	default:
		return true
	}
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
