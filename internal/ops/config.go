package ops

import (
	"encoding/json"
	"os"
	"time"

	"github.com/yanun0323/errors"

	"main/internal/engine"
	"main/internal/obs"
	"main/internal/risk"
	"main/internal/venue"
)

// FileConfig mirrors the JSON config layout.
type FileConfig struct {
	Engine   EngineConfig   `json:"engine"`
	Venue    VenueConfig    `json:"venue"`
	Risk     RiskConfig     `json:"risk"`
	Storage  StorageConfig  `json:"storage"`
	Notify   NotifyConfig   `json:"notify"`
	Metrics  MetricsConfig  `json:"metrics"`
	Feed     FeedConfig     `json:"feed"`
	Strategy StrategyConfig `json:"strategy"`
	Profile  ProfileConfig  `json:"profile"`
}

// EngineConfig controls the dispatch and reconciliation loops.
type EngineConfig struct {
	Workers             int `json:"workers"`
	QueueSize           int `json:"queueSize"`
	ReconcileIntervalMs int `json:"reconcileIntervalMs"`
}

// VenueConfig describes the simulated venue account.
type VenueConfig struct {
	InitialBalance float64     `json:"initialBalance"`
	SlippageRate   float64     `json:"slippageRate"`
	CommissionRate float64     `json:"commissionRate"`
	MinLatencyMs   int         `json:"minLatencyMs"`
	MaxLatencyMs   int         `json:"maxLatencyMs"`
	Chaos          ChaosConfig `json:"chaos"`
}

// ChaosConfig enables fault injection around the venue when any rate
// is set.
type ChaosConfig struct {
	ErrorRate  float64 `json:"errorRate"`
	MaxDelayMs int     `json:"maxDelayMs"`
}

// RiskConfig describes the default rule chain.
type RiskConfig struct {
	MaxOrderValue      float64 `json:"maxOrderValue"`
	MaxPosition        int64   `json:"maxPosition"`
	MaxOrdersPerMinute int     `json:"maxOrdersPerMinute"`
}

// StorageConfig describes the PostgreSQL connection.
type StorageConfig struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
}

// NotifyConfig describes the webhook notifier.
type NotifyConfig struct {
	WebhookURL string `json:"webhookUrl"`
}

// MetricsConfig controls periodic snapshot export.
type MetricsConfig struct {
	ExportDir         string `json:"exportDir"`
	ExportIntervalSec int    `json:"exportIntervalSec"`
}

// Feed sources selectable via FeedConfig.Source.
const (
	FeedSourceSim     = "sim"
	FeedSourceBinance = "binance"
)

// FeedConfig selects the market data source and tunes the simulator.
// The binance source streams live klines; the simulator fields are
// ignored for it except Symbols.
type FeedConfig struct {
	Source          string   `json:"source"`
	Symbols         []string `json:"symbols"`
	IntervalMs      int      `json:"intervalMs"`
	BasePrice       float64  `json:"basePrice"`
	Volatility      float64  `json:"volatility"`
	BinanceInterval string   `json:"binanceInterval"`
}

// StrategyConfig lists the high-open entries to trade.
type StrategyConfig struct {
	HighOpen []HighOpenEntry `json:"highOpen"`
}

// HighOpenEntry configures one symbol's high-open strategy. Zero
// fields fall back to the strategy's own defaults.
type HighOpenEntry struct {
	Symbol        string  `json:"symbol"`
	PrevClose     float64 `json:"prevClose"`
	HighOpenRatio float64 `json:"highOpenRatio"`
	ProfitTarget  float64 `json:"profitTarget"`
	StopLoss      float64 `json:"stopLoss"`
	PositionSize  int64   `json:"positionSize"`
}

// ProfileConfig enables pyroscope profiling when an address is set.
type ProfileConfig struct {
	ServerAddress string `json:"serverAddress"`
}

// Loaded is the resolved configuration ready for use.
type Loaded struct {
	Engine   engine.Config
	Venue    venue.SimConfig
	Chaos    venue.ChaosConfig
	Rules    []risk.Rule
	Storage  StorageConfig
	Notify   NotifyConfig
	Metrics  obs.ExporterConfig
	Feed     FeedConfig
	Strategy StrategyConfig
	Profile  ProfileConfig
}

// Load reads a JSON config file and resolves it with defaults. An empty
// path yields the default configuration.
func Load(path string) (Loaded, error) {
	var cfg FileConfig
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Loaded{}, errors.Wrap(err, "read config")
		}
		if err := json.Unmarshal(data, &cfg); err != nil {
			return Loaded{}, errors.Wrap(err, "parse config")
		}
	}
	return resolve(cfg)
}

func resolve(cfg FileConfig) (Loaded, error) {
	if cfg.Venue.MinLatencyMs < 0 || cfg.Venue.MaxLatencyMs < cfg.Venue.MinLatencyMs {
		return Loaded{}, errors.New("venue latency window is invalid")
	}
	if cfg.Venue.SlippageRate < 0 || cfg.Venue.CommissionRate < 0 {
		return Loaded{}, errors.New("venue rates must be >= 0")
	}

	loaded := Loaded{
		Engine: engine.Config{
			Workers:           cfg.Engine.Workers,
			QueueSize:         cfg.Engine.QueueSize,
			ReconcileInterval: time.Duration(cfg.Engine.ReconcileIntervalMs) * time.Millisecond,
		},
		Venue: venue.SimConfig{
			InitialBalance: cfg.Venue.InitialBalance,
			SlippageRate:   cfg.Venue.SlippageRate,
			CommissionRate: cfg.Venue.CommissionRate,
			MinLatency:     time.Duration(cfg.Venue.MinLatencyMs) * time.Millisecond,
			MaxLatency:     time.Duration(cfg.Venue.MaxLatencyMs) * time.Millisecond,
		},
		Chaos: venue.ChaosConfig{
			ErrorRate: cfg.Venue.Chaos.ErrorRate,
			MaxDelay:  time.Duration(cfg.Venue.Chaos.MaxDelayMs) * time.Millisecond,
		},
		Storage: cfg.Storage,
		Notify:  cfg.Notify,
		Metrics: obs.ExporterConfig{
			Dir:      cfg.Metrics.ExportDir,
			Interval: time.Duration(cfg.Metrics.ExportIntervalSec) * time.Second,
		},
		Feed:     cfg.Feed,
		Strategy: cfg.Strategy,
		Profile:  cfg.Profile,
	}

	if loaded.Venue.InitialBalance == 0 {
		loaded.Venue.InitialBalance = 1_000_000
	}
	if loaded.Metrics.Dir == "" {
		loaded.Metrics.Dir = "metrics"
	}
	switch loaded.Feed.Source {
	case "":
		loaded.Feed.Source = FeedSourceSim
	case FeedSourceSim, FeedSourceBinance:
	default:
		return Loaded{}, errors.Errorf("unknown feed source %q", cfg.Feed.Source)
	}
	if loaded.Feed.BinanceInterval == "" {
		loaded.Feed.BinanceInterval = "1m"
	}
	if loaded.Feed.IntervalMs <= 0 {
		loaded.Feed.IntervalMs = 1000
	}
	if loaded.Feed.BasePrice <= 0 {
		loaded.Feed.BasePrice = 10
	}
	if loaded.Feed.Volatility <= 0 {
		loaded.Feed.Volatility = 0.002
	}

	for i := range loaded.Strategy.HighOpen {
		if loaded.Strategy.HighOpen[i].Symbol == "" {
			return Loaded{}, errors.New("strategy highOpen entry requires a symbol")
		}
		if loaded.Strategy.HighOpen[i].PrevClose <= 0 {
			loaded.Strategy.HighOpen[i].PrevClose = loaded.Feed.BasePrice
		}
	}

	if cfg.Risk.MaxOrderValue > 0 {
		loaded.Rules = append(loaded.Rules, risk.MaxOrderValueRule{MaxValue: cfg.Risk.MaxOrderValue})
	}
	if cfg.Risk.MaxPosition > 0 {
		loaded.Rules = append(loaded.Rules, risk.MaxPositionRule{MaxPosition: cfg.Risk.MaxPosition})
	}
	if cfg.Risk.MaxOrdersPerMinute > 0 {
		loaded.Rules = append(loaded.Rules, risk.OrderFrequencyRule{
			MaxOrders: cfg.Risk.MaxOrdersPerMinute,
			Window:    time.Minute,
		})
	}
	return loaded, nil
}
