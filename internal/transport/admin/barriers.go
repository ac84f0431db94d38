package admin

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"coldestland.ai/internal/protocol"
	"coldestland.ai/internal/sim/barrier"
	"coldestland.ai/internal/sim/geom"
	"coldestland.ai/internal/sim/registry"
	"coldestland.ai/internal/sim/world"
)

type registerRequest struct {
	WorldID       string           `json:"world_id"`
	Dimension     string           `json:"dimension"`
	Barrier       protocol.Barrier `json:"barrier"`
	LifetimeTicks uint64           `json:"lifetime_ticks,omitempty"`
}

type conjureRequest struct {
	WorldID       string     `json:"world_id"`
	Dimension     string     `json:"dimension"`
	Center        [3]float64 `json:"center"`
	Width         float64    `json:"width"`
	Height        float64    `json:"height"`
	Depth         float64    `json:"depth"`
	Yaw           float64    `json:"yaw,omitempty"`
	Pitch         float64    `json:"pitch,omitempty"`
	Precision     float64    `json:"precision,omitempty"`
	Owner         string     `json:"owner,omitempty"`
	LifetimeTicks uint64     `json:"lifetime_ticks,omitempty"`
}

type mutationResponse struct {
	OK      bool              `json:"ok"`
	Tick    uint64            `json:"tick"`
	Removed int               `json:"removed,omitempty"`
	Barrier *protocol.Barrier `json:"barrier,omitempty"`
}

type listResponse struct {
	WorldID   string             `json:"world_id"`
	Dimension string             `json:"dimension"`
	Epoch     string             `json:"epoch"`
	Seq       uint64             `json:"seq"`
	Barriers  []protocol.Barrier `json:"barriers"`
}

func regionOf(worldID, dimension string) (registry.Region, error) {
	if worldID == "" || dimension == "" {
		return registry.Region{}, fmt.Errorf("world_id and dimension are required")
	}
	return registry.Region{World: worldID, Dimension: dimension}, nil
}

func regionFromQuery(q url.Values) (registry.Region, error) {
	return regionOf(q.Get("world"), q.Get("dimension"))
}

// parseArea reads "minX,minY,minZ,maxX,maxY,maxZ".
func parseArea(s string) (geom.Box, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 6 {
		return geom.Box{}, fmt.Errorf("area needs 6 comma-separated numbers")
	}
	var a [6]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return geom.Box{}, fmt.Errorf("area[%d]: %w", i, err)
		}
		a[i] = v
	}
	box := geom.NewBox(a[0], a[1], a[2], a[3], a[4], a[5])
	if !box.Valid() {
		return geom.Box{}, fmt.Errorf("area must be finite with positive extent")
	}
	return box, nil
}

func (s *Server) handleRegister(rw http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeBody(rw, r, &req) {
		return
	}
	region, err := regionOf(req.WorldID, req.Dimension)
	if err != nil {
		writeError(rw, http.StatusBadRequest, protocol.ErrBadRequest, err.Error())
		return
	}
	if req.Barrier.BarrierID == "" {
		req.Barrier.BarrierID = barrier.NewID().String()
	}
	b, err := req.Barrier.ToBarrier()
	if err != nil {
		writeError(rw, http.StatusUnprocessableEntity, protocol.ErrInvalidBarrier, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	res, err := s.deps.World.RequestRegister(ctx, region, b, world.Lifetime{Ticks: req.LifetimeTicks})
	if err != nil {
		writeMutationError(rw, err)
		return
	}
	wb := protocol.BarrierToWire(res.Barrier)
	writeJSON(rw, http.StatusOK, mutationResponse{OK: true, Tick: res.Tick, Barrier: &wb})
}

func (s *Server) handleConjure(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req conjureRequest
	if !decodeBody(rw, r, &req) {
		return
	}
	region, err := regionOf(req.WorldID, req.Dimension)
	if err != nil {
		writeError(rw, http.StatusBadRequest, protocol.ErrBadRequest, err.Error())
		return
	}
	var owner uuid.UUID
	if req.Owner != "" {
		if owner, err = uuid.Parse(req.Owner); err != nil {
			writeError(rw, http.StatusBadRequest, protocol.ErrBadRequest, "owner: "+err.Error())
			return
		}
	}
	if req.Precision == 0 {
		req.Precision = 1
	}
	o := barrier.OrientedBox{
		Center:    geom.V(req.Center[0], req.Center[1], req.Center[2]),
		Width:     req.Width,
		Height:    req.Height,
		Depth:     req.Depth,
		Yaw:       req.Yaw,
		Pitch:     req.Pitch,
		Precision: req.Precision,
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	res, err := s.deps.World.RequestConjure(ctx, region, o, world.Lifetime{Owner: owner, Ticks: req.LifetimeTicks})
	if err != nil {
		writeMutationError(rw, err)
		return
	}
	wb := protocol.BarrierToWire(res.Barrier)
	writeJSON(rw, http.StatusOK, mutationResponse{OK: true, Tick: res.Tick, Barrier: &wb})
}

// handleDelete removes one barrier (id=), every barrier overlapping an area
// (area=), or the whole region (all=true).
func (s *Server) handleDelete(rw http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	region, err := regionFromQuery(q)
	if err != nil {
		writeError(rw, http.StatusBadRequest, protocol.ErrBadRequest, err.Error())
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	var res world.MutationResult
	switch {
	case q.Get("id") != "":
		id, perr := barrier.ParseID(q.Get("id"))
		if perr != nil {
			writeError(rw, http.StatusBadRequest, protocol.ErrBadRequest, "id: "+perr.Error())
			return
		}
		res, err = s.deps.World.RequestUnregister(ctx, region, id)
	case q.Get("area") != "":
		area, perr := parseArea(q.Get("area"))
		if perr != nil {
			writeError(rw, http.StatusBadRequest, protocol.ErrBadRequest, perr.Error())
			return
		}
		res, err = s.deps.World.RequestRemoveArea(ctx, region, area)
	case q.Get("all") == "true":
		res, err = s.deps.World.RequestDrop(ctx, region)
	default:
		writeError(rw, http.StatusBadRequest, protocol.ErrBadRequest, "one of id, area or all=true is required")
		return
	}
	if err != nil {
		writeMutationError(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, mutationResponse{OK: true, Tick: res.Tick, Removed: res.Removed})
}

func (s *Server) handleList(rw http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	region, err := regionFromQuery(q)
	if err != nil {
		writeError(rw, http.StatusBadRequest, protocol.ErrBadRequest, err.Error())
		return
	}
	snap := s.deps.World.Manager().Snapshot(region)
	bs := snap.All()
	if a := q.Get("area"); a != "" {
		area, err := parseArea(a)
		if err != nil {
			writeError(rw, http.StatusBadRequest, protocol.ErrBadRequest, err.Error())
			return
		}
		bs = snap.QueryArea(area)
	}
	out := listResponse{
		WorldID:   region.World,
		Dimension: region.Dimension,
		Epoch:     snap.Epoch().String(),
		Seq:       snap.Seq(),
		Barriers:  make([]protocol.Barrier, 0, len(bs)),
	}
	for _, b := range bs {
		out.Barriers = append(out.Barriers, protocol.BarrierToWire(b))
	}
	writeJSON(rw, http.StatusOK, out)
}

func (s *Server) handleInfo(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	region, err := regionFromQuery(q)
	if err != nil {
		writeError(rw, http.StatusBadRequest, protocol.ErrBadRequest, err.Error())
		return
	}
	id, err := barrier.ParseID(q.Get("id"))
	if err != nil {
		writeError(rw, http.StatusBadRequest, protocol.ErrBadRequest, "id: "+err.Error())
		return
	}
	b, ok := s.deps.World.Manager().Get(region, id)
	if !ok {
		writeError(rw, http.StatusNotFound, protocol.ErrNotFound, "no barrier "+id.String()+" in "+region.String())
		return
	}
	h := b.Bounds()
	writeJSON(rw, http.StatusOK, struct {
		Barrier      protocol.Barrier `json:"barrier"`
		Bounds       [6]float64       `json:"bounds"`
		Leaves       int              `json:"leaves"`
		RemainingTTL *uint64          `json:"remaining_ticks,omitempty"`
	}{
		Barrier:      protocol.BarrierToWire(b),
		Bounds:       h.Array(),
		Leaves:       countLeaves(b),
		RemainingTTL: remaining(b, s.deps.World.CurrentTick()),
	})
}

func countLeaves(b *barrier.Barrier) int {
	n := 0
	for _, s := range b.CollisionShape {
		n += geom.LeafCount(s)
	}
	return n
}

func remaining(b *barrier.Barrier, tick uint64) *uint64 {
	if b.ExpiresTick == 0 {
		return nil
	}
	var left uint64
	if b.ExpiresTick > tick {
		left = b.ExpiresTick - tick
	}
	return &left
}
