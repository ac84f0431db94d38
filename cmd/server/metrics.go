package main

import (
	"fmt"
	"net/http"

	"coldestland.ai/internal/persistence/indexdb"
	persistlog "coldestland.ai/internal/persistence/log"
	"coldestland.ai/internal/sim/replication"
	"coldestland.ai/internal/sim/world"
	"coldestland.ai/internal/transport/syncws"
)

// metricsHandler writes a minimal Prometheus exposition.
func metricsHandler(w *world.World, hub *replication.Hub, syncSrv *syncws.Server, idx *indexdb.SQLiteIndex, journal *persistlog.MutationLogger) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")

		ws := w.Stats()
		fmt.Fprintf(rw, "# HELP coldestland_world_tick Current host loop tick.\n")
		fmt.Fprintf(rw, "# TYPE coldestland_world_tick gauge\n")
		fmt.Fprintf(rw, "coldestland_world_tick %d\n", ws.Tick)

		fmt.Fprintf(rw, "# HELP coldestland_world_mutations_total Mutation requests applied at tick boundaries.\n")
		fmt.Fprintf(rw, "# TYPE coldestland_world_mutations_total counter\n")
		fmt.Fprintf(rw, "coldestland_world_mutations_total %d\n", ws.Applied)

		fmt.Fprintf(rw, "# HELP coldestland_barriers_expired_total Barriers removed by lifetime expiry.\n")
		fmt.Fprintf(rw, "# TYPE coldestland_barriers_expired_total counter\n")
		fmt.Fprintf(rw, "coldestland_barriers_expired_total %d\n", ws.Expired)

		fmt.Fprintf(rw, "# HELP coldestland_world_queue_depth Pending mutation requests.\n")
		fmt.Fprintf(rw, "# TYPE coldestland_world_queue_depth gauge\n")
		fmt.Fprintf(rw, "coldestland_world_queue_depth %d\n", ws.Queued)

		fmt.Fprintf(rw, "# HELP coldestland_barriers Registered barriers per region.\n")
		fmt.Fprintf(rw, "# TYPE coldestland_barriers gauge\n")
		for _, rs := range w.Manager().Stats().Regions {
			fmt.Fprintf(rw, "coldestland_barriers{world=%q,dimension=%q} %d\n", rs.Region.World, rs.Region.Dimension, rs.Barriers)
		}

		hs := hub.Stats()
		fmt.Fprintf(rw, "# HELP coldestland_sync_subscribers Active replication subscriptions.\n")
		fmt.Fprintf(rw, "# TYPE coldestland_sync_subscribers gauge\n")
		fmt.Fprintf(rw, "coldestland_sync_subscribers %d\n", hs.Subscribers)
		fmt.Fprintf(rw, "# HELP coldestland_sync_connections Open sync websocket connections.\n")
		fmt.Fprintf(rw, "# TYPE coldestland_sync_connections gauge\n")
		fmt.Fprintf(rw, "coldestland_sync_connections %d\n", syncSrv.Active())
		fmt.Fprintf(rw, "# HELP coldestland_sync_resyncs_total Subscriptions that overflowed and were resent a snapshot.\n")
		fmt.Fprintf(rw, "# TYPE coldestland_sync_resyncs_total counter\n")
		fmt.Fprintf(rw, "coldestland_sync_resyncs_total %d\n", hs.Resyncs)

		if journal != nil {
			js := journal.Stats()
			fmt.Fprintf(rw, "# HELP coldestland_journal_dropped_total Mutations dropped by the journal queue.\n")
			fmt.Fprintf(rw, "# TYPE coldestland_journal_dropped_total counter\n")
			fmt.Fprintf(rw, "coldestland_journal_dropped_total %d\n", js.Dropped)
		}
		if idx != nil {
			is := idx.Stats()
			fmt.Fprintf(rw, "# HELP coldestland_index_queue_depth Index writer backlog.\n")
			fmt.Fprintf(rw, "# TYPE coldestland_index_queue_depth gauge\n")
			fmt.Fprintf(rw, "coldestland_index_queue_depth %d\n", is.QueueDepth)
			fmt.Fprintf(rw, "# HELP coldestland_index_dropped_total Mutations dropped by the index queue.\n")
			fmt.Fprintf(rw, "# TYPE coldestland_index_dropped_total counter\n")
			fmt.Fprintf(rw, "coldestland_index_dropped_total %d\n", is.Dropped)
		}
	}
}
