// Package admin serves the local /admin/v1 barrier endpoints: registration,
// removal, listing, ray/area probes, stats and mutation history.
package admin

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"coldestland.ai/internal/persistence/indexdb"
	journal "coldestland.ai/internal/persistence/log"
	"coldestland.ai/internal/protocol"
	"coldestland.ai/internal/sim/barrier"
	"coldestland.ai/internal/sim/registry"
	"coldestland.ai/internal/sim/replication"
	"coldestland.ai/internal/sim/world"
)

const requestTimeout = 5 * time.Second

// maxBodyBytes bounds admin request bodies; voxelized barriers can be large.
const maxBodyBytes = 8 << 20

// Deps are the components the admin surface reports on. Only World is
// required.
type Deps struct {
	World   *world.World
	Hub     *replication.Hub
	Index   *indexdb.SQLiteIndex
	Journal *journal.MutationLogger
}

type Server struct {
	deps         Deps
	log          *log.Logger
	loopbackOnly bool
}

func NewServer(deps Deps, logger *log.Logger, loopbackOnly bool) *Server {
	return &Server{deps: deps, log: logger, loopbackOnly: loopbackOnly}
}

// Register mounts every endpoint on mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("/admin/v1/barriers", s.guard(s.handleBarriers))
	mux.HandleFunc("/admin/v1/barriers/conjure", s.guard(s.handleConjure))
	mux.HandleFunc("/admin/v1/barriers/info", s.guard(s.handleInfo))
	mux.HandleFunc("/admin/v1/probe/clip", s.guard(s.handleProbeClip))
	mux.HandleFunc("/admin/v1/probe/collisions", s.guard(s.handleProbeCollisions))
	mux.HandleFunc("/admin/v1/stats", s.guard(s.handleStats))
	mux.HandleFunc("/admin/v1/history", s.guard(s.handleHistory))
}

func (s *Server) guard(h http.HandlerFunc) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if s.loopbackOnly && !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		h(rw, r)
	}
}

func (s *Server) handleBarriers(rw http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleList(rw, r)
	case http.MethodPost:
		s.handleRegister(rw, r)
	case http.MethodDelete:
		s.handleDelete(rw, r)
	default:
		rw.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}

func writeError(rw http.ResponseWriter, status int, code, msg string) {
	writeJSON(rw, status, protocol.NewError(code, msg))
}

// writeMutationError maps loop and registry failures onto error codes.
func writeMutationError(rw http.ResponseWriter, err error) {
	var verr *barrier.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(rw, http.StatusUnprocessableEntity, protocol.ErrInvalidBarrier, err.Error())
	case errors.Is(err, registry.ErrDuplicateID):
		writeError(rw, http.StatusConflict, protocol.ErrConflict, err.Error())
	case errors.Is(err, registry.ErrReadOnly):
		writeError(rw, http.StatusConflict, protocol.ErrReadOnly, err.Error())
	case errors.Is(err, world.ErrStopped), errors.Is(err, context.DeadlineExceeded):
		writeError(rw, http.StatusServiceUnavailable, protocol.ErrBusy, err.Error())
	default:
		writeError(rw, http.StatusInternalServerError, protocol.ErrInternal, err.Error())
	}
}

func decodeBody(rw http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(rw, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(rw, http.StatusBadRequest, protocol.ErrBadRequest, "bad json: "+err.Error())
		return false
	}
	return true
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
