package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"market-intel-bot/config"
	"market-intel-bot/internal/alerts"
	"market-intel-bot/internal/api"
	"market-intel-bot/internal/events"
	"market-intel-bot/internal/journal"
	"market-intel-bot/internal/logging"
	"market-intel-bot/internal/market"
	"market-intel-bot/internal/ml"
	"market-intel-bot/internal/orchestrator"
	"market-intel-bot/internal/persistence"
	"market-intel-bot/internal/scanner"
	"market-intel-bot/internal/scheduler"
	sigengine "market-intel-bot/internal/signal"
	"market-intel-bot/internal/state"
	"market-intel-bot/internal/tickclient"
	"market-intel-bot/internal/upstream"
	"market-intel-bot/internal/uwclient"
)

func main() {
	// .env is optional; containers set the environment directly
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize structured logging
	logger := logging.New(&logging.Config{
		Level:      cfg.LoggingConfig.Level,
		Output:     cfg.LoggingConfig.Output,
		JSONFormat: cfg.LoggingConfig.JSONFormat,
		Component:  "main",
	})
	logging.SetDefault(logger)

	logger.Info("Starting market intelligence service",
		"watchlist", len(cfg.Watchlist),
		"data_dir", cfg.DataDir)

	eventBus := events.NewEventBus()

	sched, err := scheduler.New(scheduler.Config{
		DailyLimit:   cfg.SchedulerConfig.DailyLimit,
		SafetyMargin: cfg.SchedulerConfig.SafetyMargin,
		WarmEvery:    cfg.SchedulerConfig.WarmEvery,
		ColdEvery:    cfg.SchedulerConfig.ColdEvery,
	}, logger)
	if err != nil {
		log.Fatalf("Failed to create scheduler: %v", err)
	}

	store := state.NewStore(cfg.Watchlist)

	persist, err := persistence.New(cfg.DataDir, logger)
	if err != nil {
		log.Fatalf("Failed to open data directory: %v", err)
	}

	// Each vendor gets its own sliding-window limiter; the flow vendor's
	// successful calls also feed the daily budget counter.
	uw := uwclient.New(cfg.UpstreamConfig.FlowBaseURL, cfg.UpstreamConfig.FlowToken,
		upstream.NewSlidingWindow(upstream.DefaultWindowLimit, upstream.DefaultWindow), logger)
	uw.OnSuccess(sched.RecordCall)

	tick := tickclient.New(cfg.UpstreamConfig.TickBaseURL, cfg.UpstreamConfig.TickKey,
		upstream.NewSlidingWindow(upstream.DefaultWindowLimit, upstream.DefaultWindow), logger)

	if cfg.UpstreamConfig.MockMode {
		seed := time.Now().UnixNano()
		uw.EnableMock(seed)
		tick.EnableMock(seed)
	}

	tape := tickclient.NewCache()

	jr := journal.New(journal.Config{
		Cooldown:      time.Duration(cfg.JournalConfig.CooldownMins) * time.Minute,
		MaxPerTicker:  cfg.JournalConfig.MaxPerTicker,
		VersionBudget: cfg.JournalConfig.VersionBudget,
		AccountBudget: cfg.JournalConfig.AccountBudget,
	}, persist.ActiveSignalVersion(), sched.IsTradingSession)

	journalPath := filepath.Join(cfg.DataDir, "trade-journal.json")
	if err := jr.Load(journalPath); err != nil {
		// trade records are not reconstructable, refuse to run over them
		log.Fatalf("Failed to load trade journal: %v", err)
	}
	jr.SetPath(journalPath)

	model := ml.NewModel(logger)
	if err := model.Load(filepath.Join(cfg.DataDir, "calibrator.json")); err != nil {
		logger.Warn("Confidence calibrator unreadable, starting untrained", "error", err)
	}

	engine := sigengine.NewEngine(model, logger)
	alertEngine := alerts.NewEngine(logger)

	// The scanner scores candidates through the orchestrator's reduced
	// pipeline, so its scorer is bound late.
	var orch *orchestrator.Orchestrator
	var scan *scanner.Scanner
	if cfg.ScannerConfig.Enabled {
		scan = scanner.New(scanner.Config{
			MinConfidence: cfg.ScannerConfig.MinConfidence,
			MaxCandidates: cfg.ScannerConfig.MaxCandidates,
			Cooldown:      time.Duration(cfg.ScannerConfig.CooldownMins) * time.Minute,
			TopN:          cfg.ScannerConfig.TopN,
		}, func(ctx context.Context, ticker string) (*market.SignalResult, error) {
			return orch.QuickScore(ctx, ticker)
		}, logger)
	}

	orch, err = orchestrator.New(orchestrator.Config{Watchlist: cfg.Watchlist}, orchestrator.Deps{
		Scheduler: sched,
		Store:     store,
		UW:        uw,
		Tick:      tick,
		Tape:      tape,
		Engine:    engine,
		Alerts:    alertEngine,
		Scanner:   scan,
		Journal:   jr,
		Persist:   persist,
		Model:     model,
		Bus:       eventBus,
	}, logger)
	if err != nil {
		log.Fatalf("Failed to create orchestrator: %v", err)
	}

	// Warm start from the last snapshot when one is fresh enough
	orch.RestoreFromDisk()

	server := api.NewServer(api.ServerConfig{
		Port:           cfg.ServerConfig.Port,
		Host:           cfg.ServerConfig.Host,
		ProductionMode: cfg.ServerConfig.ProductionMode,
	}, store, jr, sched, eventBus, logger)
	orch.SetNotify(server.BroadcastFullState)

	ctx, cancel := context.WithCancel(context.Background())

	if cfg.UpstreamConfig.StreamEnabled && !cfg.UpstreamConfig.MockMode {
		socket := uwclient.NewSocket(cfg.UpstreamConfig.FlowSocketURL,
			cfg.UpstreamConfig.FlowToken, cfg.Watchlist, logger)
		socket.OnFlow = store.PushFlow
		socket.OnDarkPool = store.PushDarkPool
		go socket.Run(ctx)

		stream := tickclient.NewStream(cfg.UpstreamConfig.TickSocketURL,
			cfg.UpstreamConfig.TickKey, cfg.Watchlist, tape, logger)
		go stream.Run(ctx)
	}

	go func() {
		if err := server.Start(); err != nil {
			log.Fatalf("Failed to start web server: %v", err)
		}
	}()

	go func() {
		if err := orch.Run(ctx); err != nil && err != context.Canceled {
			logger.Error("Polling loop exited", "error", err)
		}
	}()

	logger.Info("Service started",
		"host", cfg.ServerConfig.Host,
		"port", cfg.ServerConfig.Port,
		"streams", cfg.UpstreamConfig.StreamEnabled)

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Web server shutdown error", "error", err)
	}

	// Final snapshot so the next start resumes counters and state
	cycle, daily, date := sched.Counters()
	if err := persist.SaveState(store, cycle, daily, date); err != nil {
		logger.Warn("Final state snapshot failed", "error", err)
	}

	logger.Info("Shutdown complete")
}
