package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/klauspost/compress/zstd"

	"coldestland.ai/internal/protocol"
	"coldestland.ai/internal/sim/registry"
)

const journalPrefix = "mutations"

// MutationEntry is one journal line. Barrier is set for ADD, Barriers for
// RESET.
type MutationEntry struct {
	Time      string             `json:"ts"`
	Tick      uint64             `json:"tick"`
	WorldID   string             `json:"world_id"`
	Dimension string             `json:"dimension"`
	Epoch     string             `json:"epoch"`
	Seq       uint64             `json:"seq"`
	Kind      string             `json:"kind"`
	BarrierID string             `json:"barrier_id,omitempty"`
	Barrier   *protocol.Barrier  `json:"barrier,omitempty"`
	Barriers  []protocol.Barrier `json:"barriers,omitempty"`
}

func (e MutationEntry) Region() registry.Region {
	return registry.Region{World: e.WorldID, Dimension: e.Dimension}
}

// EntryFromMutation renders m as a journal entry.
func EntryFromMutation(m registry.Mutation, tick uint64, now time.Time) MutationEntry {
	e := MutationEntry{
		Time:      now.UTC().Format(time.RFC3339Nano),
		Tick:      tick,
		WorldID:   m.Region.World,
		Dimension: m.Region.Dimension,
		Epoch:     m.Epoch.String(),
		Seq:       m.Seq,
		Kind:      m.Kind.String(),
	}
	switch m.Kind {
	case registry.MutationAdd:
		w := protocol.BarrierToWire(m.Barrier)
		e.BarrierID, e.Barrier = w.BarrierID, &w
	case registry.MutationRemove:
		e.BarrierID = m.ID.String()
	case registry.MutationReset:
		for _, b := range m.Snapshot.All() {
			e.Barriers = append(e.Barriers, protocol.BarrierToWire(b))
		}
	}
	return e
}

// MutationLogger journals registry mutations from a background goroutine.
// Observe never blocks; entries are dropped when the queue is full.
type MutationLogger struct {
	w    *JSONLZstdWriter
	tick func() uint64

	mu     sync.RWMutex
	ch     chan MutationEntry
	wg     sync.WaitGroup
	closed bool

	written atomic.Uint64
	dropped atomic.Uint64
	errs    atomic.Uint64
}

func NewMutationLogger(dir string, tick func() uint64) *MutationLogger {
	if tick == nil {
		tick = func() uint64 { return 0 }
	}
	l := &MutationLogger{
		w:    NewJSONLZstdWriter(dir, journalPrefix),
		tick: tick,
		ch:   make(chan MutationEntry, 4096),
	}
	l.wg.Add(1)
	go l.loop()
	return l
}

// Observe is a registry.Observer.
func (l *MutationLogger) Observe(m registry.Mutation) {
	e := EntryFromMutation(m, l.tick(), time.Now())
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return
	}
	select {
	case l.ch <- e:
	default:
		l.dropped.Add(1)
	}
}

func (l *MutationLogger) loop() {
	defer l.wg.Done()
	const batchMax = 256
	lines := make([][]byte, 0, batchMax)
	for e := range l.ch {
		lines = lines[:0]
		lines = l.appendLine(lines, e)
	drain:
		for len(lines) < batchMax {
			select {
			case e2, ok := <-l.ch:
				if !ok {
					break drain
				}
				lines = l.appendLine(lines, e2)
			default:
				break drain
			}
		}
		if len(lines) == 0 {
			continue
		}
		if err := l.w.WriteBatch(lines); err != nil {
			l.errs.Add(1)
			continue
		}
		l.written.Add(uint64(len(lines)))
	}
}

func (l *MutationLogger) appendLine(lines [][]byte, e MutationEntry) [][]byte {
	b, err := json.Marshal(e)
	if err != nil {
		l.errs.Add(1)
		return lines
	}
	return append(lines, b)
}

// Close stops accepting entries, drains the queue and closes the file.
func (l *MutationLogger) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	close(l.ch)
	l.mu.Unlock()
	l.wg.Wait()
	return l.w.Close()
}

type JournalStats struct {
	Written uint64 `json:"written"`
	Dropped uint64 `json:"dropped"`
	Errors  uint64 `json:"errors"`
	Pending int    `json:"pending"`
}

func (l *MutationLogger) Stats() JournalStats {
	return JournalStats{Written: l.written.Load(), Dropped: l.dropped.Load(), Errors: l.errs.Load(), Pending: len(l.ch)}
}

// JournalFiles lists journal files in dir, oldest first.
func JournalFiles(dir string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, journalPrefix+"-*.jsonl.zst"))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// ReadJournal streams every entry of one journal file to fn.
func ReadJournal(path string, fn func(MutationEntry) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	zr, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer zr.Close()

	sc := bufio.NewScanner(zr)
	sc.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		if len(sc.Bytes()) == 0 {
			continue
		}
		var e MutationEntry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			return fmt.Errorf("%s:%d: %w", path, line, err)
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	return sc.Err()
}

// Message renders e as the sync frame that would have carried it: ADD, REMOVE,
// or SNAPSHOT for a reset.
func (e MutationEntry) Message() (any, error) {
	switch e.Kind {
	case registry.MutationAdd.String():
		if e.Barrier == nil {
			return nil, fmt.Errorf("ADD seq %d without barrier", e.Seq)
		}
		return &protocol.AddMsg{Type: protocol.TypeAdd, ProtocolVersion: protocol.Version, WorldID: e.WorldID, Dimension: e.Dimension, Epoch: e.Epoch, Seq: e.Seq, Barrier: *e.Barrier}, nil
	case registry.MutationRemove.String():
		return &protocol.RemoveMsg{Type: protocol.TypeRemove, ProtocolVersion: protocol.Version, WorldID: e.WorldID, Dimension: e.Dimension, Epoch: e.Epoch, Seq: e.Seq, BarrierID: e.BarrierID}, nil
	case registry.MutationReset.String():
		return &protocol.SnapshotMsg{Type: protocol.TypeSnapshot, ProtocolVersion: protocol.Version, WorldID: e.WorldID, Dimension: e.Dimension, Epoch: e.Epoch, Seq: e.Seq, Barriers: e.Barriers}, nil
	}
	return nil, fmt.Errorf("unknown journal kind %q", e.Kind)
}
