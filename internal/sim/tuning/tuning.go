package tuning

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	TickRateHz int `yaml:"tick_rate_hz"`

	// CellSize is the XZ edge of a registry grid cell in blocks.
	CellSize float64 `yaml:"cell_size"`
	// MaxVoxels caps an oriented-box barrier after voxelization.
	MaxVoxels            int    `yaml:"max_voxels"`
	DefaultLifetimeTicks uint64 `yaml:"default_lifetime_ticks"`

	Sync    Sync   `yaml:"sync"`
	Index   Toggle `yaml:"index"`
	Journal Toggle `yaml:"journal"`
}

type Sync struct {
	QueueMax         int `yaml:"queue_max"`
	CompressMinBytes int `yaml:"compress_min_bytes"`
	WriteTimeoutMS   int `yaml:"write_timeout_ms"`
}

type Toggle struct {
	Enabled bool `yaml:"enabled"`
}

func Defaults() Tuning {
	return Tuning{
		TickRateHz:           20,
		CellSize:             16,
		MaxVoxels:            4096,
		DefaultLifetimeTicks: 0,
		Sync: Sync{
			QueueMax:         1024,
			CompressMinBytes: 16 * 1024,
			WriteTimeoutMS:   5000,
		},
		Index:   Toggle{Enabled: true},
		Journal: Toggle{Enabled: true},
	}
}

// Load reads path on top of Defaults. Keys missing from the file keep their
// default value.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	t.Normalize()
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

// Normalize replaces zero values with defaults.
func (t *Tuning) Normalize() {
	d := Defaults()
	if t.TickRateHz == 0 {
		t.TickRateHz = d.TickRateHz
	}
	if t.CellSize == 0 {
		t.CellSize = d.CellSize
	}
	if t.MaxVoxels == 0 {
		t.MaxVoxels = d.MaxVoxels
	}
	if t.Sync.QueueMax == 0 {
		t.Sync.QueueMax = d.Sync.QueueMax
	}
	if t.Sync.CompressMinBytes == 0 {
		t.Sync.CompressMinBytes = d.Sync.CompressMinBytes
	}
	if t.Sync.WriteTimeoutMS == 0 {
		t.Sync.WriteTimeoutMS = d.Sync.WriteTimeoutMS
	}
}

func (t Tuning) Validate() error {
	var errs []error
	if t.TickRateHz < 1 || t.TickRateHz > 1000 {
		errs = append(errs, fmt.Errorf("tick_rate_hz out of range: %d", t.TickRateHz))
	}
	if t.CellSize < 1 {
		errs = append(errs, fmt.Errorf("cell_size must be >= 1: %v", t.CellSize))
	}
	if t.MaxVoxels < 1 {
		errs = append(errs, fmt.Errorf("max_voxels must be positive: %d", t.MaxVoxels))
	}
	if t.Sync.QueueMax < 1 {
		errs = append(errs, fmt.Errorf("sync.queue_max must be positive: %d", t.Sync.QueueMax))
	}
	if t.Sync.CompressMinBytes < 0 {
		errs = append(errs, fmt.Errorf("sync.compress_min_bytes must be >= 0: %d", t.Sync.CompressMinBytes))
	}
	if t.Sync.WriteTimeoutMS < 0 {
		errs = append(errs, fmt.Errorf("sync.write_timeout_ms must be >= 0: %d", t.Sync.WriteTimeoutMS))
	}
	return errors.Join(errs...)
}
