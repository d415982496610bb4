package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
)

func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
}

func TestDefaultsAreValid(t *testing.T) {
	cfg := Default()
	if errs := cfg.Validate(); len(errs) > 0 {
		// The default tracker backend requires a repo; everything else
		// must validate clean.
		for _, err := range errs {
			if err.Field != "tracker.repo" {
				t.Errorf("default config invalid: %v", err)
			}
		}
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	resetViper(t)
	SetDefaults()
	viper.Set("tracker.repo", "owner/repo")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Coordinator.Sessions != 3 {
		t.Errorf("Sessions = %d, want 3", cfg.Coordinator.Sessions)
	}
	if cfg.Lock.TTLMinutes != 30 {
		t.Errorf("TTLMinutes = %d, want 30", cfg.Lock.TTLMinutes)
	}
	if cfg.Coordinator.EmptyRoundThreshold != 3 {
		t.Errorf("EmptyRoundThreshold = %d, want 3", cfg.Coordinator.EmptyRoundThreshold)
	}
	if cfg.Lock.ReclaimFailed {
		t.Error("ReclaimFailed = true, want false by default")
	}
	if cfg.Ledger.Backend != "file" {
		t.Errorf("Ledger.Backend = %q, want file", cfg.Ledger.Backend)
	}
}

func TestLoadFromFile(t *testing.T) {
	resetViper(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := `
tracker:
  backend: fixture
  fixture_path: backlog.yaml
coordinator:
  sessions: 5
  max_rounds: 10
lock:
  ttl_minutes: 15
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	SetDefaults()
	viper.SetConfigFile(path)
	if err := viper.ReadInConfig(); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Coordinator.Sessions != 5 || cfg.Coordinator.MaxRounds != 10 {
		t.Errorf("coordinator = %+v", cfg.Coordinator)
	}
	if cfg.Lock.TTLMinutes != 15 {
		t.Errorf("TTLMinutes = %d, want 15", cfg.Lock.TTLMinutes)
	}
	// Untouched sections keep defaults.
	if cfg.Executor.TimeoutMinutes != 30 {
		t.Errorf("TimeoutMinutes = %d, want default 30", cfg.Executor.TimeoutMinutes)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	resetViper(t)
	SetDefaults()
	viper.Set("tracker.repo", "owner/repo")
	viper.Set("coordinator.sessions", 0)
	viper.Set("logging.level", "loud")

	_, err := Load()
	if err == nil {
		t.Fatal("Load() expected validation errors")
	}
	msg := err.Error()
	if !strings.Contains(msg, "coordinator.sessions") || !strings.Contains(msg, "logging.level") {
		t.Errorf("error does not aggregate all failures: %v", msg)
	}
}

func TestDurationHelpers(t *testing.T) {
	cfg := Default()
	if cfg.Lock.TTL().Minutes() != 30 {
		t.Errorf("TTL = %v", cfg.Lock.TTL())
	}
	if cfg.Lock.Wait().Seconds() != 10 {
		t.Errorf("Wait = %v", cfg.Lock.Wait())
	}
	if cfg.Executor.Timeout().Minutes() != 30 {
		t.Errorf("Timeout = %v", cfg.Executor.Timeout())
	}
	if cfg.Tracker.Timeout().Seconds() != 60 {
		t.Errorf("tracker Timeout = %v", cfg.Tracker.Timeout())
	}
}

func TestConfigDirRespectsXDG(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg-test")
	if got := ConfigDir(); got != "/tmp/xdg-test/fleet" {
		t.Errorf("ConfigDir() = %q", got)
	}
}
