package indexdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"coldestland.ai/internal/protocol"
	"coldestland.ai/internal/sim/barrier"
	"coldestland.ai/internal/sim/registry"
)

const schemaVersion = "1"

// recordedAtLayout is fixed width so recorded_at sorts as text.
const recordedAtLayout = "2006-01-02T15:04:05.000000000Z"

// SQLiteIndex is a queryable read model of registry mutations. It is fed from
// a registry observer and never blocks the writer that produced a mutation.
type SQLiteIndex struct {
	db   *sql.DB
	tick func() uint64

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.RWMutex
	closed bool

	dropped atomic.Uint64
	written atomic.Uint64
	errs    atomic.Uint64
}

type reqKind int

const (
	reqMutation reqKind = iota + 1
	reqSync
)

type req struct {
	kind reqKind

	mutation registry.Mutation
	tick     uint64
	at       time.Time
	done     chan error
}

func OpenSQLite(path string, tick func() uint64) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if tick == nil {
		tick = func() uint64 { return 0 }
	}

	s := &SQLiteIndex{
		db:   db,
		tick: tick,
		ch:   make(chan req, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	// WAL is much faster for append-style workloads.
	// NORMAL is a decent durability/perf tradeoff for a secondary index.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS barriers (
			world_id TEXT NOT NULL,
			dimension TEXT NOT NULL,
			barrier_id TEXT NOT NULL,
			epoch TEXT NOT NULL,
			added_seq INTEGER NOT NULL,
			added_tick INTEGER NOT NULL,
			expires_tick INTEGER NOT NULL,
			owner TEXT NOT NULL,
			boxes INTEGER NOT NULL,
			min_x REAL NOT NULL, min_y REAL NOT NULL, min_z REAL NOT NULL,
			max_x REAL NOT NULL, max_y REAL NOT NULL, max_z REAL NOT NULL,
			body_json TEXT NOT NULL,
			PRIMARY KEY (world_id, dimension, barrier_id)
		);`,
		`CREATE TABLE IF NOT EXISTS mutations (
			world_id TEXT NOT NULL,
			dimension TEXT NOT NULL,
			epoch TEXT NOT NULL,
			seq INTEGER NOT NULL,
			tick INTEGER NOT NULL,
			kind TEXT NOT NULL,
			barrier_id TEXT NOT NULL,
			recorded_at TEXT NOT NULL,
			PRIMARY KEY (world_id, dimension, epoch, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_mutations_barrier ON mutations(barrier_id, recorded_at);`,
		`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','` + schemaVersion + `');`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		close(s.ch)
		s.mu.Unlock()
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// Observe is a registry.Observer. Mutations are dropped when the writer falls
// behind; the JSONL journal remains the source of truth.
func (s *SQLiteIndex) Observe(m registry.Mutation) {
	if s == nil {
		return
	}
	r := req{kind: reqMutation, mutation: m, tick: s.tick(), at: time.Now()}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- r:
	default:
		s.dropped.Add(1)
	}
}

// Sync blocks until everything queued before it is committed.
func (s *SQLiteIndex) Sync(ctx context.Context) error {
	done := make(chan error, 1)
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return fmt.Errorf("index closed")
	}
	select {
	case s.ch <- req{kind: reqSync, done: done}:
	case <-ctx.Done():
		s.mu.RUnlock()
		return ctx.Err()
	}
	s.mu.RUnlock()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

type IndexStats struct {
	QueueDepth    int    `json:"queue_depth"`
	QueueCapacity int    `json:"queue_capacity"`
	Written       uint64 `json:"written"`
	Dropped       uint64 `json:"dropped"`
	Errors        uint64 `json:"errors"`
}

func (s *SQLiteIndex) Stats() IndexStats {
	return IndexStats{
		QueueDepth:    len(s.ch),
		QueueCapacity: cap(s.ch),
		Written:       s.written.Load(),
		Dropped:       s.dropped.Load(),
		Errors:        s.errs.Load(),
	}
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()
	insertMutation, _ := s.db.Prepare(`INSERT OR REPLACE INTO mutations(world_id,dimension,epoch,seq,tick,kind,barrier_id,recorded_at) VALUES(?,?,?,?,?,?,?,?)`)
	upsertBarrier, _ := s.db.Prepare(`INSERT OR REPLACE INTO barriers(world_id,dimension,barrier_id,epoch,added_seq,added_tick,expires_tick,owner,boxes,min_x,min_y,min_z,max_x,max_y,max_z,body_json) VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`)
	deleteBarrier, _ := s.db.Prepare(`DELETE FROM barriers WHERE world_id=? AND dimension=? AND barrier_id=?`)
	clearRegion, _ := s.db.Prepare(`DELETE FROM barriers WHERE world_id=? AND dimension=?`)
	defer func() {
		for _, st := range []*sql.Stmt{insertMutation, upsertBarrier, deleteBarrier, clearRegion} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			// If we can't start a tx, we can't do much; sleep a bit.
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() error {
		if tx == nil {
			return nil
		}
		err := tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
		return err
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
		s.errs.Add(1)
	}

	for r := range s.ch {
		if r.kind == reqSync {
			r.done <- commit()
			continue
		}
		begin()
		if tx == nil {
			s.errs.Add(1)
			continue
		}
		if err := s.apply(tx, r, insertMutation, upsertBarrier, deleteBarrier, clearRegion); err != nil {
			rollback()
			continue
		}
		opCount++
		s.written.Add(1)
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			_ = commit()
		}
	}

	_ = commit()
}

func (s *SQLiteIndex) apply(tx *sql.Tx, r req, insertMutation, upsertBarrier, deleteBarrier, clearRegion *sql.Stmt) error {
	if insertMutation == nil || upsertBarrier == nil || deleteBarrier == nil || clearRegion == nil {
		return fmt.Errorf("statements not prepared")
	}
	m := r.mutation
	w, d := m.Region.World, m.Region.Dimension
	epoch := m.Epoch.String()
	id := ""
	if m.Kind != registry.MutationReset {
		id = m.ID.String()
	}
	if _, err := tx.Stmt(insertMutation).Exec(w, d, epoch, int64(m.Seq), int64(r.tick), m.Kind.String(), id, r.at.UTC().Format(recordedAtLayout)); err != nil {
		return err
	}
	switch m.Kind {
	case registry.MutationAdd:
		return s.upsert(tx.Stmt(upsertBarrier), m.Region, epoch, m.Seq, r.tick, m.Barrier)
	case registry.MutationRemove:
		_, err := tx.Stmt(deleteBarrier).Exec(w, d, id)
		return err
	case registry.MutationReset:
		if _, err := tx.Stmt(clearRegion).Exec(w, d); err != nil {
			return err
		}
		ins := tx.Stmt(upsertBarrier)
		for _, b := range m.Snapshot.All() {
			if err := s.upsert(ins, m.Region, epoch, m.Seq, r.tick, b); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *SQLiteIndex) upsert(stmt *sql.Stmt, region registry.Region, epoch string, seq, tick uint64, b *barrier.Barrier) error {
	body, err := json.Marshal(protocol.BarrierToWire(b))
	if err != nil {
		return err
	}
	h := b.Bounds()
	owner := ""
	if b.Owner != (barrier.ID{}) {
		owner = b.Owner.String()
	}
	_, err = stmt.Exec(region.World, region.Dimension, b.ID.String(), epoch, int64(seq), int64(tick), int64(b.ExpiresTick), owner,
		len(b.BoundingBoxes), h.Min[0], h.Min[1], h.Min[2], h.Max[0], h.Max[1], h.Max[2], string(body))
	return err
}
