package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"realtime_strategies/internal/admin"
	"realtime_strategies/internal/alert"
	"realtime_strategies/internal/bootstrap"
	"realtime_strategies/internal/bus"
	"realtime_strategies/internal/config"
	"realtime_strategies/internal/core"
	"realtime_strategies/internal/dispatch"
	"realtime_strategies/internal/health"
	"realtime_strategies/internal/heartbeat"
	"realtime_strategies/internal/metricsrv"
	"realtime_strategies/internal/orderbook"
	"realtime_strategies/internal/params"
	"realtime_strategies/internal/publish"
	"realtime_strategies/internal/strategy"
	"realtime_strategies/internal/venues"
	"realtime_strategies/pkg/livetap"
	"realtime_strategies/pkg/retry"
	"realtime_strategies/pkg/telemetry"
)

const version = "1.2.0"

var (
	configFile  = flag.String("config", "configs/config.yaml", "Path to configuration file")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		return
	}

	if envConfig := os.Getenv("CONFIG_FILE"); envConfig != "" {
		*configFile = envConfig
	}

	app, err := bootstrap.NewApp(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "startup: %v\n", err)
		os.Exit(1)
	}
	cfg := app.Cfg
	logger := app.Logger

	logger.Info("Starting realtime strategies service",
		"version", version,
		"config", *configFile,
		"store_backend", cfg.Store.Backend)

	// Telemetry: full OTel pipeline when tracing is on, bare metrics otherwise.
	if cfg.Telemetry.EnableTracing {
		tel, err := telemetry.Setup(cfg.Service.Name)
		if err != nil {
			logger.Fatal("Failed to initialize telemetry", "error", err)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tel.Shutdown(ctx); err != nil {
				logger.Warn("Telemetry shutdown", "error", err)
			}
		}()
	} else if cfg.Telemetry.EnableMetrics {
		if err := telemetry.InitMetrics(); err != nil {
			logger.Fatal("Failed to initialize metrics", "error", err)
		}
	}

	// Parameter store and config manager. A dead store at boot is fatal:
	// running with silently unpersisted strategy parameters is worse than
	// not running at all.
	store, err := buildStore(cfg.Store)
	if err != nil {
		logger.Fatal("Failed to build parameter store", "error", err)
	}
	manager := params.NewManager(store, time.Duration(cfg.Strategy.CacheTTLSec)*time.Second, logger)

	startCtx, startCancel := context.WithTimeout(context.Background(), 30*time.Second)
	err = retry.Do(startCtx, retry.DefaultPolicy,
		func(error) bool { return true },
		func() error { return manager.Start(startCtx) })
	startCancel()
	if err != nil {
		logger.Fatal("Failed to start configuration manager", "error", err, "backend", cfg.Store.Backend)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := manager.Stop(ctx); err != nil {
			logger.Warn("Config manager stop", "error", err)
		}
	}()

	// Order-book state shared by the iceberg strategy and the admin market API.
	tracker := orderbook.NewTracker(orderbook.Config{
		HistoryWindow:      time.Duration(cfg.Tracker.WindowSeconds) * time.Second,
		MaxSymbols:         cfg.Tracker.MaxSymbols,
		MaxLevelsPerSymbol: cfg.Tracker.MaxLevels,
		MaxSamplesPerLevel: cfg.Tracker.SamplesPerLevel,
		PriceStep:          decimal.NewFromFloat(cfg.Tracker.PriceStep),
	}, logger)
	analyzer := orderbook.NewDepthAnalyzer(orderbook.DefaultAnalyzerConfig())

	// External venue quotes for the cross-exchange strategy.
	quotes := strategy.NewQuoteCache()
	var poller *venues.Poller
	if cfg.Venues.Enabled {
		coinbase := venues.NewCoinbase(cfg.Venues.CoinbaseURL,
			time.Duration(cfg.Venues.TimeoutSeconds)*time.Second)
		poller = venues.NewPoller(venues.PollerConfig{
			Symbols:           cfg.Venues.Symbols,
			Interval:          time.Duration(cfg.Venues.PollIntervalSeconds) * time.Second,
			RequestsPerSecond: cfg.Venues.RequestsPerSecond,
		}, quotes, []venues.Fetcher{coinbase}, logger)
	}

	registry := buildRegistry(cfg, tracker, quotes, logger)

	// Ingest bus. No bus, no service.
	natsBus, err := bus.Connect(cfg.Bus, logger)
	if err != nil {
		logger.Fatal("Failed to connect to NATS", "error", err, "url", cfg.Bus.URL)
	}
	defer natsBus.Close()

	publisher := publish.New(cfg.Bus, cfg.Publish, natsBus, logger)

	if cfg.Alert.Enabled {
		alerts := alert.NewManager(logger)
		alerts.AddChannel(alert.NewSlackChannel(string(cfg.Alert.WebhookURL)))
		publisher.SetBreakerListener(alerts.BreakerListener())
	}

	dispatcher := dispatch.New(cfg.Bus, cfg.Dispatch, natsBus, registry, manager, tracker, publisher, logger)
	dispatcher.SetAnalyzer(analyzer)

	monitor := health.NewManager(logger)
	monitor.Register("bus", func() error {
		if !natsBus.IsConnected() {
			return fmt.Errorf("nats disconnected")
		}
		return nil
	})
	monitor.Register("dispatcher", dispatcher.HealthStatus)
	monitor.Register("publisher", publisher.HealthStatus)
	monitor.Register("config_store", func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return manager.StoreHealthy(ctx)
	})

	runners := []bootstrap.Runner{dispatcher, publisher}

	if poller != nil {
		runners = append(runners, poller)
	}

	var hub *livetap.Hub
	if cfg.LiveTap.Enabled {
		hub = livetap.NewHub(logger)
		publisher.SetTap(hub.BroadcastSignal)
		runners = append(runners, hub)
	}

	if cfg.Heartbeat.Enabled {
		reporter := heartbeat.New(cfg.Heartbeat, dispatcher, publisher, monitor, logger)
		reporter.AddDetailSource("dispatcher", dispatcher)
		reporter.AddDetailSource("publisher", publisher)
		if poller != nil {
			reporter.AddDetailSource("venues", poller)
		}
		if hub != nil {
			reporter.SetTap(func(report map[string]interface{}) {
				hub.Broadcast(livetap.Message{Type: livetap.TypeHeartbeat, Data: report})
			})
		}
		runners = append(runners, reporter)
	}

	// HTTP surfaces start before the pipeline and stop after it.
	var stoppers []func(context.Context) error

	healthSrv := health.NewServer(cfg.Health.Port, cfg.Service.Name, version, monitor, logger)
	healthSrv.AddInfoSource("dispatcher", dispatcher.Metrics)
	healthSrv.AddInfoSource("publisher", publisher.Metrics)
	healthSrv.Start()
	stoppers = append(stoppers, healthSrv.Stop)

	if cfg.Telemetry.EnableMetrics {
		metricsSrv := metricsrv.NewServer(cfg.Telemetry.MetricsPort, logger)
		metricsSrv.Start()
		stoppers = append(stoppers, metricsSrv.Stop)
	}

	if cfg.Admin.Enabled {
		adminSrv := admin.NewServer(cfg.Admin, manager, analyzer, logger)
		adminSrv.Start()
		stoppers = append(stoppers, adminSrv.Stop)
	}

	if hub != nil {
		tapSrv := livetap.NewServer(hub, cfg.LiveTap.Port, cfg.LiveTap.AllowedOrigins, logger)
		tapSrv.Start()
		stoppers = append(stoppers, tapSrv.Stop)
	}

	err = app.Run(runners...)

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutCancel()
	for _, stop := range stoppers {
		if serr := stop(shutCtx); serr != nil {
			logger.Warn("Server shutdown", "error", serr)
		}
	}
	if derr := natsBus.Drain(); derr != nil {
		logger.Warn("Bus drain", "error", derr)
	}

	if err != nil {
		logger.Error("Service exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Service stopped")
}

// buildStore selects the parameter store backend. Mongo is the production
// choice; sqlite suits single-node deployments and memory is for tests and
// local development.
func buildStore(cfg config.StoreConfig) (params.Store, error) {
	switch cfg.Backend {
	case "mongo":
		uri := string(cfg.MongoURI)
		if uri == "" {
			return nil, fmt.Errorf("mongo backend requires store.mongo_uri")
		}
		return params.NewMongoStore(params.MongoConfig{
			URI:      uri,
			Database: cfg.Database,
			Timeout:  time.Duration(cfg.TimeoutMS) * time.Millisecond,
		}), nil
	case "sqlite":
		if cfg.SQLitePath == "" {
			return nil, fmt.Errorf("sqlite backend requires store.sqlite_path")
		}
		return params.NewSQLiteStore(cfg.SQLitePath), nil
	case "memory":
		return params.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

// buildRegistry registers every strategy, honoring per-strategy enable flags
// from config. Strategies absent from the map start enabled.
func buildRegistry(cfg *config.Config, tracker *orderbook.Tracker, quotes *strategy.QuoteCache,
	logger core.ILogger) *strategy.Registry {
	enabled := func(id string) bool {
		if v, ok := cfg.Strategy.Enabled[id]; ok {
			return v
		}
		return true
	}

	registry := strategy.NewRegistry()
	registry.Register(strategy.NewSkew(logger), enabled(params.StrategyOrderbookSkew))
	registry.Register(strategy.NewMomentum(logger), enabled(params.StrategyTradeMomentum))
	registry.Register(strategy.NewVelocity(logger), enabled(params.StrategyTickerVelocity))
	registry.Register(strategy.NewDominance(logger), enabled(params.StrategyBTCDominance))
	registry.Register(strategy.NewCrossExchange(quotes, logger), enabled(params.StrategyCrossExchangeSpread))
	registry.Register(strategy.NewIceberg(tracker, logger), enabled(params.StrategyIcebergDetector))
	registry.Register(strategy.NewSpreadLiquidity(logger), enabled(params.StrategySpreadLiquidity))

	if cfg.Onchain.MetricsURL != "" {
		source := venues.NewOnchainClient(cfg.Onchain.MetricsURL,
			time.Duration(cfg.Onchain.TimeoutSeconds)*time.Second)
		registry.Register(strategy.NewOnchain(source, logger), enabled(params.StrategyOnchainMetrics))
	} else {
		logger.Warn("No on-chain metrics source configured, strategy not registered",
			"strategy", params.StrategyOnchainMetrics)
	}

	return registry
}
