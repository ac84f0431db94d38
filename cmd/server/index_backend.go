package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"coldestland.ai/internal/persistence/indexdb"
)

// openIndex opens the optional read-model index. It never affects what the
// registry holds; a nil index just disables the history endpoint.
func openIndex(dataDir string, enabled bool, tick func() uint64) (*indexdb.SQLiteIndex, error) {
	if !enabled {
		return nil, nil
	}

	backend := strings.ToLower(strings.TrimSpace(os.Getenv("CL_INDEX_BACKEND")))
	if backend == "" {
		backend = "sqlite"
	}

	switch backend {
	case "none", "off", "disabled":
		return nil, nil
	case "sqlite":
		return indexdb.OpenSQLite(filepath.Join(dataDir, "index", "barriers.sqlite"), tick)
	default:
		return nil, fmt.Errorf("unsupported CL_INDEX_BACKEND: %s", backend)
	}
}
