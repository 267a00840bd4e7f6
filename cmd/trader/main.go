package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	pyroscope "github.com/grafana/pyroscope-go"
	"github.com/yanun0323/logs"

	"main/internal/engine"
	"main/internal/feed"
	"main/internal/notify"
	"main/internal/obs"
	"main/internal/ops"
	"main/internal/risk"
	"main/internal/storage"
	"main/internal/strategy"
	"main/internal/venue"
	"main/pkg/conn"
)

func main() {
	configPath := flag.String("config", "", "Path to JSON config")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loaded, err := ops.Load(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	if addr := loaded.Profile.ServerAddress; addr != "" {
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: "trader",
			ServerAddress:   addr,
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocObjects,
				pyroscope.ProfileAllocSpace,
				pyroscope.ProfileInuseObjects,
				pyroscope.ProfileInuseSpace,
			},
		})
		if err != nil {
			log.Fatalf("pyroscope start failed: %v", err)
		}
		defer func() {
			_ = profiler.Stop()
		}()
	}

	metrics := obs.NewMetrics()

	var store engine.Persister = storage.Nop{}
	if loaded.Storage.Enabled {
		client, err := conn.New(conn.Option{
			Host:     loaded.Storage.Host,
			Port:     loaded.Storage.Port,
			User:     loaded.Storage.User,
			Password: loaded.Storage.Password,
			Database: loaded.Storage.Database,
		})
		if err != nil {
			log.Fatalf("postgres connect failed: %v", err)
		}
		defer func() {
			_ = client.Close()
		}()
		pg, err := storage.NewPG(client)
		if err != nil {
			log.Fatalf("storage init failed: %v", err)
		}
		store = pg
	}

	var notifier engine.Notifier = notify.Nop{}
	if url := loaded.Notify.WebhookURL; url != "" {
		notifier = notify.NewWebhook(url)
	}

	sim := venue.NewSim(loaded.Venue)
	var exec venue.Venue = sim
	if loaded.Chaos.ErrorRate > 0 || loaded.Chaos.MaxDelay > 0 {
		chaotic, err := venue.NewChaos(loaded.Chaos, sim)
		if err != nil {
			log.Fatalf("chaos config invalid: %v", err)
		}
		exec = chaotic
		logs.Warnf("venue chaos enabled: errorRate=%.2f maxDelay=%s",
			loaded.Chaos.ErrorRate, loaded.Chaos.MaxDelay)
	}
	eng := engine.New(loaded.Engine, engine.Deps{
		Venue:    exec,
		Risk:     risk.NewChain(loaded.Rules...),
		Store:    store,
		Notifier: notifier,
		Metrics:  metrics,
	})

	for _, entry := range loaded.Strategy.HighOpen {
		eng.RegisterStrategy(strategy.NewHighOpen("high_open_"+entry.Symbol, strategy.HighOpenConfig{
			Symbol:        entry.Symbol,
			PrevClose:     entry.PrevClose,
			HighOpenRatio: entry.HighOpenRatio,
			ProfitTarget:  entry.ProfitTarget,
			StopLoss:      entry.StopLoss,
			PositionSize:  entry.PositionSize,
		}, eng))
	}

	eng.Start(ctx)
	logs.Info("trading engine started")

	exporter, err := obs.NewExporter(loaded.Metrics, metrics)
	if err != nil {
		log.Fatalf("metrics exporter init failed: %v", err)
	}
	go exporter.Run(ctx)

	symbols := loaded.Feed.Symbols
	if len(symbols) == 0 {
		for _, entry := range loaded.Strategy.HighOpen {
			symbols = append(symbols, entry.Symbol)
		}
	}
	var stopFeed func()
	switch loaded.Feed.Source {
	case ops.FeedSourceBinance:
		klines := feed.NewBinanceKlines(ctx)
		if err := klines.Start(ctx); err != nil {
			log.Fatalf("binance feed start failed: %v", err)
		}
		for _, symbol := range symbols {
			if err := klines.SubscribeKline(ctx, symbol, loaded.Feed.BinanceInterval); err != nil {
				log.Fatalf("binance subscribe %s failed: %v", symbol, err)
			}
		}
		unsubscribe := klines.Pump(ctx, eng)
		stopFeed = func() {
			unsubscribe()
			klines.Close()
		}
		logs.Infof("binance kline feed started: symbols=%v interval=%s",
			symbols, loaded.Feed.BinanceInterval)
	default:
		market := feed.NewSimulator(feed.SimulatorConfig{
			Symbols:    symbols,
			Interval:   time.Duration(loaded.Feed.IntervalMs) * time.Millisecond,
			BasePrice:  loaded.Feed.BasePrice,
			Volatility: loaded.Feed.Volatility,
		}, eng)
		if err := market.Start(ctx); err != nil {
			log.Fatalf("market feed start failed: %v", err)
		}
		stopFeed = market.Stop
	}

	<-ctx.Done()
	logs.Info("shutdown signal received")

	stopFeed()
	eng.Stop()

	if data, err := json.Marshal(metrics.Snapshot()); err == nil {
		logs.Infof("final metrics: %s", data)
	}
	account := sim.Account()
	logs.Infof("final account: balance=%s equity=%s", account.Balance, account.Equity)
	for _, pos := range sim.Positions() {
		logs.Infof("final position: %s qty=%d avgCost=%s", pos.Symbol, pos.Quantity, pos.AvgCost)
	}
}
