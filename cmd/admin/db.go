package main

import (
	"database/sql"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// dbCmd queries the mutation index offline, without a running server.
func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	dbPath := fs.String("db", "", "sqlite db path (optional)")
	worldID := fs.String("world", "", "world id filter")
	dimension := fs.String("dimension", "", "dimension filter")
	limit := fs.Int("limit", 20, "result limit")
	_ = fs.Parse(args)

	q := "mutations"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}
	path := strings.TrimSpace(*dbPath)
	if path == "" {
		path = filepath.Join(*dataDir, "index", "barriers.sqlite")
	}
	if *limit <= 0 {
		*limit = 20
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		fail("open: %v", err)
	}
	defer db.Close()

	where, params := regionFilter(*worldID, *dimension)
	switch q {
	case "mutations":
		rows, err := db.Query(`SELECT world_id,dimension,epoch,seq,tick,kind,barrier_id,recorded_at FROM mutations`+where+` ORDER BY recorded_at DESC, seq DESC LIMIT ?`, append(params, *limit)...)
		if err != nil {
			fail("query: %v", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				WorldID    string `json:"world_id"`
				Dimension  string `json:"dimension"`
				Epoch      string `json:"epoch"`
				Seq        int64  `json:"seq"`
				Tick       int64  `json:"tick"`
				Kind       string `json:"kind"`
				BarrierID  string `json:"barrier_id"`
				RecordedAt string `json:"recorded_at"`
			}
			if err := rows.Scan(&r.WorldID, &r.Dimension, &r.Epoch, &r.Seq, &r.Tick, &r.Kind, &r.BarrierID, &r.RecordedAt); err != nil {
				fail("scan: %v", err)
			}
			printJSON(r)
		}
		if err := rows.Err(); err != nil {
			fail("rows: %v", err)
		}

	case "barriers":
		rows, err := db.Query(`SELECT world_id,dimension,barrier_id,added_tick,expires_tick,owner,boxes,min_x,min_y,min_z,max_x,max_y,max_z FROM barriers`+where+` ORDER BY added_tick DESC LIMIT ?`, append(params, *limit)...)
		if err != nil {
			fail("query: %v", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				WorldID     string     `json:"world_id"`
				Dimension   string     `json:"dimension"`
				BarrierID   string     `json:"barrier_id"`
				AddedTick   int64      `json:"added_tick"`
				ExpiresTick int64      `json:"expires_tick"`
				Owner       string     `json:"owner,omitempty"`
				Boxes       int        `json:"boxes"`
				Bounds      [6]float64 `json:"bounds"`
			}
			b := &r.Bounds
			if err := rows.Scan(&r.WorldID, &r.Dimension, &r.BarrierID, &r.AddedTick, &r.ExpiresTick, &r.Owner, &r.Boxes, &b[0], &b[1], &b[2], &b[3], &b[4], &b[5]); err != nil {
				fail("scan: %v", err)
			}
			printJSON(r)
		}
		if err := rows.Err(); err != nil {
			fail("rows: %v", err)
		}

	case "counts":
		rows, err := db.Query(`SELECT world_id,dimension,COUNT(*) FROM barriers` + where + ` GROUP BY world_id,dimension ORDER BY world_id,dimension`, params...)
		if err != nil {
			fail("query: %v", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				WorldID   string `json:"world_id"`
				Dimension string `json:"dimension"`
				Barriers  int    `json:"barriers"`
			}
			if err := rows.Scan(&r.WorldID, &r.Dimension, &r.Barriers); err != nil {
				fail("scan: %v", err)
			}
			printJSON(r)
		}
		if err := rows.Err(); err != nil {
			fail("rows: %v", err)
		}

	default:
		fmt.Fprintf(os.Stderr, "unknown db query %q (mutations|barriers|counts)\n", q)
		os.Exit(2)
	}
}

func regionFilter(worldID, dimension string) (string, []any) {
	var conds []string
	var params []any
	if worldID != "" {
		conds = append(conds, "world_id = ?")
		params = append(params, worldID)
	}
	if dimension != "" {
		conds = append(conds, "dimension = ?")
		params = append(params, dimension)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), params
}
