package ops

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	loaded, err := Load("")
	if err != nil {
		t.Fatalf("load defaults: %v", err)
	}
	if loaded.Venue.InitialBalance != 1_000_000 {
		t.Fatalf("default balance should be 1000000, got %f", loaded.Venue.InitialBalance)
	}
	if len(loaded.Rules) != 0 {
		t.Fatalf("no risk rules should be configured by default, got %d", len(loaded.Rules))
	}
	if loaded.Feed.IntervalMs != 1000 {
		t.Fatalf("default feed interval should be 1000ms, got %d", loaded.Feed.IntervalMs)
	}
	if loaded.Feed.Source != FeedSourceSim {
		t.Fatalf("default feed source should be sim, got %q", loaded.Feed.Source)
	}
}

func TestLoadFeedSource(t *testing.T) {
	write := func(t *testing.T, content string) string {
		t.Helper()
		path := filepath.Join(t.TempDir(), "config.json")
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write config: %v", err)
		}
		return path
	}

	loaded, err := Load(write(t, `{"feed": {"source": "binance", "symbols": ["BTCUSDT"]}}`))
	if err != nil {
		t.Fatalf("load binance source: %v", err)
	}
	if loaded.Feed.Source != FeedSourceBinance {
		t.Fatalf("source should be binance, got %q", loaded.Feed.Source)
	}
	if loaded.Feed.BinanceInterval != "1m" {
		t.Fatalf("binance interval should default to 1m, got %q", loaded.Feed.BinanceInterval)
	}

	if _, err := Load(write(t, `{"feed": {"source": "replay"}}`)); err == nil {
		t.Fatal("unknown feed source should be rejected")
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{
		"engine": {"workers": 8, "queueSize": 2048, "reconcileIntervalMs": 500},
		"venue": {"initialBalance": 500000, "slippageRate": 0.001, "commissionRate": 0.0003, "minLatencyMs": 50, "maxLatencyMs": 200},
		"risk": {"maxOrderValue": 100000, "maxPosition": 1000, "maxOrdersPerMinute": 5},
		"feed": {"symbols": ["600000"], "intervalMs": 200},
		"strategy": {"highOpen": [{"symbol": "600000", "positionSize": 200}]}
	}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Engine.Workers != 8 {
		t.Fatalf("workers should be 8, got %d", loaded.Engine.Workers)
	}
	if loaded.Engine.ReconcileInterval != 500*time.Millisecond {
		t.Fatalf("reconcile interval mismatch: %s", loaded.Engine.ReconcileInterval)
	}
	if loaded.Venue.MinLatency != 50*time.Millisecond || loaded.Venue.MaxLatency != 200*time.Millisecond {
		t.Fatalf("latency window mismatch: %s..%s", loaded.Venue.MinLatency, loaded.Venue.MaxLatency)
	}
	if len(loaded.Rules) != 3 {
		t.Fatalf("3 risk rules should be configured, got %d", len(loaded.Rules))
	}
	if len(loaded.Feed.Symbols) != 1 || loaded.Feed.Symbols[0] != "600000" {
		t.Fatalf("feed symbols mismatch: %v", loaded.Feed.Symbols)
	}
	if len(loaded.Strategy.HighOpen) != 1 {
		t.Fatalf("1 highOpen entry, got %d", len(loaded.Strategy.HighOpen))
	}
	entry := loaded.Strategy.HighOpen[0]
	if entry.PositionSize != 200 {
		t.Fatalf("position size should pass through, got %d", entry.PositionSize)
	}
	if entry.PrevClose != 10 {
		t.Fatalf("prevClose should default to the feed base price, got %f", entry.PrevClose)
	}
}

func TestLoadRejectsHighOpenWithoutSymbol(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{"strategy": {"highOpen": [{"positionSize": 100}]}}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("highOpen entry without symbol should be rejected")
	}
}

func TestLoadRejectsInvalidLatencyWindow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{"venue": {"minLatencyMs": 200, "maxLatencyMs": 50}}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("inverted latency window should be rejected")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("does-not-exist.json"); err == nil {
		t.Fatal("missing file should fail")
	}
}
