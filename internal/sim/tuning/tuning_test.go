package tuning

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoad_RepoConfig(t *testing.T) {
	got, err := Load(filepath.Join("..", "..", "..", "configs", "tuning.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != Defaults() {
		t.Fatalf("repo config drifted from defaults: got %+v want %+v", got, Defaults())
	}
}

func TestLoad_PartialKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	raw := "cell_size: 32\nsync:\n  queue_max: 8\nindex:\n  enabled: false\n"
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.CellSize != 32 || got.Sync.QueueMax != 8 || got.Index.Enabled {
		t.Fatalf("overrides not applied: %+v", got)
	}
	if got.TickRateHz != 20 || got.Sync.CompressMinBytes != 16*1024 || !got.Journal.Enabled {
		t.Fatalf("defaults lost: %+v", got)
	}
}

func TestValidate_Rejects(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(path, []byte("tick_rate_hz: 5000\ncell_size: 0.5\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := Load(path)
	if err == nil {
		t.Fatalf("expected error")
	}
	for _, want := range []string{"tick_rate_hz", "cell_size"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q missing %q", err, want)
		}
	}
}
