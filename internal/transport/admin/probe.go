package admin

import (
	"net/http"

	"coldestland.ai/internal/protocol"
	"coldestland.ai/internal/sim/geom"
	"coldestland.ai/internal/sim/overlay"
)

type clipRequest struct {
	WorldID   string     `json:"world_id"`
	Dimension string     `json:"dimension"`
	From      [3]float64 `json:"from"`
	To        [3]float64 `json:"to"`
}

type clipResponse struct {
	Type      string     `json:"type"`
	Location  [3]float64 `json:"location"`
	Face      string     `json:"face,omitempty"`
	Pos       [3]int     `json:"pos"`
	BarrierID string     `json:"barrier_id,omitempty"`
}

type collisionsRequest struct {
	WorldID   string     `json:"world_id"`
	Dimension string     `json:"dimension"`
	Area      [6]float64 `json:"area"`
}

// handleProbeClip traces a ray against barriers only; the native world is
// treated as a miss at the segment end.
func (s *Server) handleProbeClip(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req clipRequest
	if !decodeBody(rw, r, &req) {
		return
	}
	region, err := regionOf(req.WorldID, req.Dimension)
	if err != nil {
		writeError(rw, http.StatusBadRequest, protocol.ErrBadRequest, err.Error())
		return
	}
	from := geom.V(req.From[0], req.From[1], req.From[2])
	to := geom.V(req.To[0], req.To[1], req.To[2])
	hit := s.deps.World.Overlay().ClipIncludingBorder(region, from, to, overlay.Miss(to))

	out := clipResponse{
		Type:     hit.Type.String(),
		Location: [3]float64{hit.Location[0], hit.Location[1], hit.Location[2]},
		Pos:      [3]int(hit.Pos),
	}
	if hit.Type != overlay.HitMiss {
		out.Face = hit.Face.String()
	}
	if hit.FromBarrier() {
		out.BarrierID = hit.Barrier.String()
	}
	writeJSON(rw, http.StatusOK, out)
}

// handleProbeCollisions lists the barrier shapes the compositor would add to
// an empty native set for area.
func (s *Server) handleProbeCollisions(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req collisionsRequest
	if !decodeBody(rw, r, &req) {
		return
	}
	region, err := regionOf(req.WorldID, req.Dimension)
	if err != nil {
		writeError(rw, http.StatusBadRequest, protocol.ErrBadRequest, err.Error())
		return
	}
	area := geom.BoxFromArray(req.Area)
	if !area.Valid() {
		writeError(rw, http.StatusBadRequest, protocol.ErrBadRequest, "area must be finite with positive extent")
		return
	}
	shapes := s.deps.World.Overlay().GetBlockCollisions(region, overlay.Requester("admin"), area, nil)
	out := make([]protocol.Shape, 0, len(shapes))
	for _, sh := range shapes {
		out = append(out, protocol.ShapeToWire(sh))
	}
	writeJSON(rw, http.StatusOK, struct {
		Count  int              `json:"count"`
		Shapes []protocol.Shape `json:"shapes"`
	}{Count: len(out), Shapes: out})
}
