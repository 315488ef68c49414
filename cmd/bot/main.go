package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/wachawo/trading-bot/internal/config"
	"github.com/wachawo/trading-bot/internal/dispatcher"
	"github.com/wachawo/trading-bot/internal/evaluator"
	"github.com/wachawo/trading-bot/internal/exchange"
	"github.com/wachawo/trading-bot/internal/marketdata"
	"github.com/wachawo/trading-bot/internal/notifier"
	"github.com/wachawo/trading-bot/internal/ratelimit"
	"github.com/wachawo/trading-bot/internal/scheduler"
	"github.com/wachawo/trading-bot/internal/store"
)

func main() {
	_ = godotenv.Load() // .env is optional

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	if lvl, err := zerolog.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil && lvl != zerolog.NoLevel {
		zerolog.SetGlobalLevel(lvl)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
	log.Info().Msg("trading-bot starting")

	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("config validation")
	}

	limiter, err := ratelimit.New(cfg.RateLimit.MaxCalls, cfg.RateLimit.Window.Std())
	if err != nil {
		log.Fatal().Err(err).Msg("init rate limiter")
	}

	var provider marketdata.Provider
	switch cfg.Provider.Name {
	case "apex":
		provider = marketdata.NewApexProvider(cfg.Provider.BaseURL, cfg.Proxy, cfg.Retry.Timeout.Std())
	case "mock":
		provider = &marketdata.MockProvider{}
	default:
		provider = marketdata.NewCoinGeckoProvider(cfg.Provider.BaseURL, cfg.Provider.APIKey, cfg.Proxy, cfg.Retry.Timeout.Std())
	}
	log.Info().Str("provider", provider.Name()).Msg("market data source selected")

	client := marketdata.NewClient(provider, limiter, cfg.Retry.MaxAttempts)

	var st store.Store
	if cfg.Database.SQLitePath != "" {
		sq, err := store.NewSQLiteStore(cfg.Database.SQLitePath)
		if err != nil {
			log.Warn().Err(err).Msg("sqlite store unavailable, falling back to memory")
			st = store.NewMemoryStore()
		} else {
			st = sq
			defer sq.Close()
		}
	} else {
		st = store.NewMemoryStore()
	}

	tg := notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy)
	disp := dispatcher.New(tg, dispatcher.Config{
		MaxAttempts: cfg.Alerts.MaxAttempts,
		Timeout:     cfg.Alerts.Timeout.Std(),
		Cooldown:    cfg.Alerts.Cooldown.Std(),
	})

	venue := exchange.NewPaperExchange(5)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sched, err := scheduler.New(ctx, client, st, disp, venue, scheduler.Options{
		Assets:       cfg.Assets,
		Window:       cfg.RSI.Window,
		LookbackDays: cfg.RSI.LookbackDays,
		Thresholds: evaluator.Thresholds{
			Oversold: cfg.Thresholds.Oversold,
			Reset:    cfg.Thresholds.Reset,
		},
		Interval:     cfg.Schedule.Interval.Std(),
		PersistState: cfg.PersistAlertState(),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("init scheduler")
	}
	if err := sched.Register(); err != nil {
		log.Fatal().Err(err).Msg("register market check")
	}
	sched.Start()
	defer sched.Stop()

	go tg.StartPolling(ctx, sched.HandleCommand)
	log.Info().Msg("telegram polling started")

	if os.Getenv("RUN_ON_START") == "true" {
		log.Info().Msg("RUN_ON_START enabled, executing market check now")
		go sched.RunTick()
	}

	log.Info().Msg("trading-bot is running, press Ctrl+C to stop")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info().Msg("shutdown signal received, stopping")
	cancel()
	log.Info().Msg("trading-bot stopped")
}
