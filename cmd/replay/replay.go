package main

import (
	"fmt"
	"log"
	"sort"

	persistlog "coldestland.ai/internal/persistence/log"
	"coldestland.ai/internal/protocol"
	"coldestland.ai/internal/sim/registry"
	"coldestland.ai/internal/sim/replication"
)

type regionReport struct {
	Region   registry.Region
	Epoch    string
	Epochs   int
	Seq      uint64
	LastTick uint64
	Barriers int
	// Partial is set when an epoch's journal does not start at its first
	// mutation, so barriers registered earlier are missing.
	Partial bool
}

type replayResult struct {
	Files   int
	Entries int
	Mirror  replication.MirrorStats
	Regions []regionReport
	Manager *registry.Manager
}

// replayDir rebuilds registry state from a journal. Entries are fed through a
// Mirror exactly as sync frames would be, so ordering and epoch rules match a
// live mirror. Each epoch starts from an empty region: the authoritative
// registry never outlives a process.
func replayDir(dir string, toTick uint64, logger *log.Logger) (replayResult, error) {
	files, err := persistlog.JournalFiles(dir)
	if err != nil {
		return replayResult{}, err
	}
	mgr := registry.NewManager(registry.RoleMirrored, registry.DefaultCellSize)
	mirror, err := replication.NewMirror(mgr, logger)
	if err != nil {
		return replayResult{}, err
	}

	res := replayResult{Files: len(files), Manager: mgr}
	reports := map[registry.Region]*regionReport{}

	for _, path := range files {
		err := persistlog.ReadJournal(path, func(e persistlog.MutationEntry) error {
			if toTick > 0 && e.Tick > toTick {
				return nil
			}
			res.Entries++
			region := e.Region()
			rep := reports[region]
			if rep == nil {
				rep = &regionReport{Region: region}
				reports[region] = rep
			}
			if rep.Epoch != e.Epoch {
				rep.Epoch = e.Epoch
				rep.Epochs++
				if e.Kind != registry.MutationReset.String() && e.Seq > 0 {
					if e.Seq > 1 {
						rep.Partial = true
					}
					base := &protocol.SnapshotMsg{Type: protocol.TypeSnapshot, ProtocolVersion: protocol.Version, WorldID: e.WorldID, Dimension: e.Dimension, Epoch: e.Epoch, Seq: e.Seq - 1}
					if err := deliver(mirror, base); err != nil {
						return err
					}
				}
			}
			rep.Seq = e.Seq
			rep.LastTick = e.Tick

			msg, err := e.Message()
			if err != nil {
				return err
			}
			return deliver(mirror, msg)
		})
		if err != nil {
			return res, fmt.Errorf("%s: %w", path, err)
		}
		mirror.Flush()
	}

	res.Mirror = mirror.Stats()
	for region, rep := range reports {
		rep.Barriers = mgr.Snapshot(region).Len()
		res.Regions = append(res.Regions, *rep)
	}
	sort.Slice(res.Regions, func(i, j int) bool {
		return res.Regions[i].Region.String() < res.Regions[j].Region.String()
	})
	return res, nil
}

func deliver(m *replication.Mirror, msg any) error {
	ev, err := replication.EventFromMessage(msg)
	if err != nil {
		return err
	}
	m.Deliver(ev)
	return nil
}
