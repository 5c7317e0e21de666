package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadWithMigration(t *testing.T) {
	tmpDir := t.TempDir()

	t.Run("empty path returns nil", func(t *testing.T) {
		cfg := NewConfig()
		if err := cfg.LoadWithMigration(""); err != nil {
			t.Errorf("expected nil for empty path: %v", err)
		}
	})

	t.Run("nonexistent file errors", func(t *testing.T) {
		cfg := NewConfig()
		err := cfg.LoadWithMigration(filepath.Join(tmpDir, "nope.json"))
		if err == nil {
			t.Error("expected error for nonexistent file")
		}
	})

	t.Run("directory path errors", func(t *testing.T) {
		cfg := NewConfig()
		err := cfg.LoadWithMigration(tmpDir)
		if err == nil {
			t.Error("expected error for directory path")
		}
	})

	t.Run("v0 migrates to current", func(t *testing.T) {
		path := filepath.Join(tmpDir, "v0.json")
		v0Json := `{
			"probe": {"urls": ["https://example.com/"], "method": "GET", "timeout_sec": 5},
			"system": {}
		}`
		os.WriteFile(path, []byte(v0Json), 0644)

		cfg := Config{}
		if err := cfg.LoadWithMigration(path); err != nil {
			t.Fatalf("LoadWithMigration failed: %v", err)
		}

		if cfg.Version != CurrentConfigVersion {
			t.Errorf("expected version %d, got %d", CurrentConfigVersion, cfg.Version)
		}
		if !cfg.Capture.Enabled {
			t.Error("migration should enable capture")
		}
		if cfg.Probe.MaxBodyBytes != DefaultConfig.Probe.MaxBodyBytes {
			t.Errorf("expected default body limit, got %d", cfg.Probe.MaxBodyBytes)
		}
		if cfg.Probe.PreviewChars != 10 {
			t.Errorf("expected preview 10, got %d", cfg.Probe.PreviewChars)
		}
		if cfg.Probe.TimeoutSec != 5 {
			t.Error("migration must keep existing values")
		}
	})

	t.Run("current version skips migration", func(t *testing.T) {
		path := filepath.Join(tmpDir, "current.json")
		cfg := NewConfig()
		cfg.Capture.Enabled = false
		cfg.SaveToFile(path)

		loaded := NewConfig()
		if err := loaded.LoadWithMigration(path); err != nil {
			t.Fatalf("LoadWithMigration failed: %v", err)
		}
		if loaded.Version != CurrentConfigVersion {
			t.Errorf("version should remain %d", CurrentConfigVersion)
		}
		if loaded.Capture.Enabled {
			t.Error("capture setting must survive when no migration runs")
		}
	})

	t.Run("newer version rejected", func(t *testing.T) {
		path := filepath.Join(tmpDir, "future.json")
		os.WriteFile(path, []byte(`{"version": 99}`), 0644)

		cfg := NewConfig()
		if err := cfg.LoadWithMigration(path); err == nil {
			t.Error("expected error for future version")
		}
	})
}

func TestMigrationRegistryComplete(t *testing.T) {
	if len(migrationRegistry) != CurrentConfigVersion {
		t.Fatalf("registry has %d migrations, current version is %d", len(migrationRegistry), CurrentConfigVersion)
	}
	for v := MinSupportedVersion; v < CurrentConfigVersion; v++ {
		if _, ok := migrationRegistry[v]; !ok {
			t.Errorf("missing migration from v%d", v)
		}
	}
}
