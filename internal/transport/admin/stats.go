package admin

import (
	"context"
	"net/http"

	"coldestland.ai/internal/persistence/indexdb"
	journal "coldestland.ai/internal/persistence/log"
	"coldestland.ai/internal/protocol"
	"coldestland.ai/internal/sim/barrier"
	"coldestland.ai/internal/sim/registry"
	"coldestland.ai/internal/sim/replication"
	"coldestland.ai/internal/sim/world"
)

type statsResponse struct {
	World    world.Stats              `json:"world"`
	Registry registry.Stats           `json:"registry"`
	Hub      *replication.HubStats    `json:"hub,omitempty"`
	Mirror   *replication.MirrorStats `json:"mirror,omitempty"`
	Index    *indexdb.IndexStats      `json:"index,omitempty"`
	Journal  *journal.JournalStats    `json:"journal,omitempty"`
}

func (s *Server) handleStats(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	w := s.deps.World
	out := statsResponse{World: w.Stats(), Registry: w.Manager().Stats()}
	if s.deps.Hub != nil {
		st := s.deps.Hub.Stats()
		out.Hub = &st
	}
	if m := w.Mirror(); m != nil {
		st := m.Stats()
		out.Mirror = &st
	}
	if s.deps.Index != nil {
		st := s.deps.Index.Stats()
		out.Index = &st
	}
	if s.deps.Journal != nil {
		st := s.deps.Journal.Stats()
		out.Journal = &st
	}
	writeJSON(rw, http.StatusOK, out)
}

func (s *Server) handleHistory(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.deps.Index == nil {
		writeError(rw, http.StatusServiceUnavailable, protocol.ErrBusy, "index disabled")
		return
	}
	id, err := barrier.ParseID(r.URL.Query().Get("id"))
	if err != nil {
		writeError(rw, http.StatusBadRequest, protocol.ErrBadRequest, "id: "+err.Error())
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	// Commit queued mutations so a just-applied change is visible.
	if err := s.deps.Index.Sync(ctx); err != nil {
		writeError(rw, http.StatusServiceUnavailable, protocol.ErrBusy, err.Error())
		return
	}
	rows, err := s.deps.Index.History(ctx, id)
	if err != nil {
		s.log.Printf("history %s: %v", id, err)
		writeError(rw, http.StatusInternalServerError, protocol.ErrInternal, err.Error())
		return
	}
	if rows == nil {
		rows = []indexdb.HistoryRow{}
	}
	writeJSON(rw, http.StatusOK, struct {
		BarrierID string               `json:"barrier_id"`
		Entries   []indexdb.HistoryRow `json:"entries"`
	}{BarrierID: id.String(), Entries: rows})
}
