package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STOCKLOCK_CONFIG", "")
	t.Setenv("POOL_SIZE", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.PoolSize != 10 || cfg.InitialStock != 1000 || cfg.ReservationTimeout != 10*time.Second {
		t.Fatalf("defaults = %+v", cfg)
	}
	if cfg.SimulationMaxOrders != 10000 || cfg.SimulationMaxCartSize != 8 {
		t.Fatalf("simulation limits = %d, %d", cfg.SimulationMaxOrders, cfg.SimulationMaxCartSize)
	}
	if cfg.PgDsn != "" || cfg.RabbitUri != "" {
		t.Fatalf("external deps enabled by default: %+v", cfg)
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stocklock.yaml")
	raw := `
httpPort: "9090"
poolSize: 4
initialStock: 25
reservationTimeout: 250ms
persistSnapshots: true
`
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("STOCKLOCK_CONFIG", path)
	t.Setenv("POOL_SIZE", "6")
	t.Setenv("OUTBOX_INTERVAL_MS", "750")
	t.Setenv("SIMULATION_PARALLELISM", "not-a-number")
	t.Setenv("SIMULATION_MAX_CART_SIZE", "4")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HttpPort != "9090" || cfg.InitialStock != 25 || !cfg.PersistSnapshots {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.ReservationTimeout != 250*time.Millisecond {
		t.Fatalf("ReservationTimeout = %s", cfg.ReservationTimeout)
	}
	if cfg.PoolSize != 6 {
		t.Fatalf("PoolSize = %d, env should win", cfg.PoolSize)
	}
	if cfg.OutboxInterval != 750*time.Millisecond {
		t.Fatalf("OutboxInterval = %s", cfg.OutboxInterval)
	}
	if cfg.SimulationMaxCartSize != 4 {
		t.Fatalf("SimulationMaxCartSize = %d, want 4", cfg.SimulationMaxCartSize)
	}
	if cfg.SimulationParallelism != 16 {
		t.Fatalf("SimulationParallelism = %d, want default on bad input", cfg.SimulationParallelism)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Setenv("STOCKLOCK_CONFIG", "")
	t.Setenv("POOL_SIZE", "0")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for zero pool size")
	}

	t.Setenv("POOL_SIZE", "")
	t.Setenv("SIMULATION_MAX_ORDERS", "0")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for zero simulation max orders")
	}

	t.Setenv("SIMULATION_MAX_ORDERS", "")
	t.Setenv("STOCKLOCK_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing file")
	}
}
