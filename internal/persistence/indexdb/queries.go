package indexdb

import (
	"context"

	"coldestland.ai/internal/sim/barrier"
	"coldestland.ai/internal/sim/registry"
)

type HistoryRow struct {
	WorldID    string `json:"world_id"`
	Dimension  string `json:"dimension"`
	Epoch      string `json:"epoch"`
	Seq        uint64 `json:"seq"`
	Tick       uint64 `json:"tick"`
	Kind       string `json:"kind"`
	RecordedAt string `json:"recorded_at"`
}

// History lists every recorded mutation of id, oldest first.
func (s *SQLiteIndex) History(ctx context.Context, id barrier.ID) ([]HistoryRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT world_id, dimension, epoch, seq, tick, kind, recorded_at FROM mutations WHERE barrier_id = ? ORDER BY recorded_at, seq`,
		id.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []HistoryRow
	for rows.Next() {
		var r HistoryRow
		var seq, tick int64
		if err := rows.Scan(&r.WorldID, &r.Dimension, &r.Epoch, &seq, &tick, &r.Kind, &r.RecordedAt); err != nil {
			return nil, err
		}
		r.Seq, r.Tick = uint64(seq), uint64(tick)
		out = append(out, r)
	}
	return out, rows.Err()
}

// ActiveCount is the number of indexed live barriers in region.
func (s *SQLiteIndex) ActiveCount(ctx context.Context, region registry.Region) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM barriers WHERE world_id = ? AND dimension = ?`,
		region.World, region.Dimension).Scan(&n)
	return n, err
}

type ExpiringRow struct {
	BarrierID   string `json:"barrier_id"`
	ExpiresTick uint64 `json:"expires_tick"`
}

// ExpiringBefore lists live barriers of region whose lifetime ends at or
// before tick, soonest first.
func (s *SQLiteIndex) ExpiringBefore(ctx context.Context, region registry.Region, tick uint64) ([]ExpiringRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT barrier_id, expires_tick FROM barriers WHERE world_id = ? AND dimension = ? AND expires_tick > 0 AND expires_tick <= ? ORDER BY expires_tick, barrier_id`,
		region.World, region.Dimension, int64(tick))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ExpiringRow
	for rows.Next() {
		var r ExpiringRow
		var exp int64
		if err := rows.Scan(&r.BarrierID, &exp); err != nil {
			return nil, err
		}
		r.ExpiresTick = uint64(exp)
		out = append(out, r)
	}
	return out, rows.Err()
}
