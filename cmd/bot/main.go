package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/alejandrodnm/solbot/config"
	"github.com/alejandrodnm/solbot/internal/adapters/control"
	"github.com/alejandrodnm/solbot/internal/adapters/notify"
	"github.com/alejandrodnm/solbot/internal/adapters/oracle"
	"github.com/alejandrodnm/solbot/internal/adapters/storage"
	"github.com/alejandrodnm/solbot/internal/adapters/venue"
	"github.com/alejandrodnm/solbot/internal/application/engine"
	"github.com/alejandrodnm/solbot/internal/ports"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	once := flag.Bool("once", false, "run one evaluation cycle and exit")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	table := flag.Bool("table", false, "print full position table (default: compact 1-line)")
	buy := flag.String("buy", "", "open a position in the given token address and exit")
	amount := flag.Float64("amount", 0, "SOL amount for -buy (clamped to control file limits)")
	stats := flag.Bool("stats", false, "print ledger stats and recent trades, then exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)

	store, err := storage.NewSQLiteStore(cfg.Storage.DSN)
	if err != nil {
		slog.Error("failed to open storage", "err", err, "dsn", cfg.Storage.DSN)
		os.Exit(1)
	}
	defer store.Close()

	notifier := notify.NewConsole(*table)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *stats {
		printStats(ctx, store, notifier)
		return
	}

	provider, err := control.NewFileProvider(cfg.Control.Path)
	if err != nil {
		slog.Error("failed to open control file", "err", err, "path", cfg.Control.Path)
		os.Exit(1)
	}
	params := provider.Load(ctx)

	priceOracle := oracle.New(oracle.Config{
		DexScreenerBase:  cfg.API.DexScreenerBase,
		JupiterPriceBase: cfg.API.JupiterPriceBase,
		CoinGeckoURL:     cfg.API.CoinGeckoURL,
		CoinbaseURL:      cfg.API.CoinbaseURL,
	})

	// The venue is chosen once at startup. Flipping simulation_mode in the
	// control file takes effect on restart, never mid-flight.
	execVenue, err := buildVenue(cfg, params.SimulationMode, priceOracle)
	if err != nil {
		slog.Error("failed to build execution venue", "err", err)
		os.Exit(1)
	}

	slog.Info("solbot starting",
		"config", *configPath,
		"interval", cfg.PollInterval(),
		"simulation", params.SimulationMode,
		"once", *once,
	)

	eng := engine.New(priceOracle, store, execVenue, provider, notifier, engine.Config{
		PollInterval: cfg.PollInterval(),
		CallTimeout:  cfg.CallTimeout(),
	})

	if *buy != "" {
		pos, err := eng.OpenPosition(ctx, *buy, *amount)
		if err != nil {
			slog.Error("buy failed", "err", err, "address", *buy)
			os.Exit(1)
		}
		slog.Info("buy complete", "address", pos.ContractAddress, "amount_sol", pos.AmountBase)
		return
	}

	if *once {
		report, err := eng.RunOnce(ctx)
		if err != nil {
			slog.Error("cycle failed", "err", err)
			os.Exit(1)
		}
		if err := notifier.NotifyCycle(ctx, report); err != nil {
			slog.Warn("notifier error", "err", err)
		}
		return
	}

	if err := eng.Run(ctx); err != nil && ctx.Err() == nil {
		slog.Error("engine exited with error", "err", err)
		os.Exit(1)
	}

	slog.Info("solbot stopped cleanly")
}

// buildVenue selects the execution venue for the whole session. Real trading
// needs WALLET_PRIVATE_KEY in the environment; a missing or malformed key is
// a fatal configuration error, never a silent downgrade to simulation, so
// SIM_ fills can never end up booked against real positions.
func buildVenue(cfg *config.Config, simulation bool, priceOracle ports.PriceOracle) (ports.ExecutionVenue, error) {
	if simulation {
		return venue.NewSimulated(priceOracle), nil
	}

	key := config.WalletPrivateKey()
	if key == "" {
		return nil, errors.New("real trading enabled but WALLET_PRIVATE_KEY is not set")
	}
	wallet, err := solana.PrivateKeyFromBase58(key)
	if err != nil {
		return nil, fmt.Errorf("parse WALLET_PRIVATE_KEY: %w", err)
	}
	return venue.NewJupiter(venue.JupiterConfig{
		QuoteURL:    cfg.Venue.JupiterQuoteURL,
		SwapURL:     cfg.Venue.JupiterSwapURL,
		RPCURL:      cfg.Venue.SolanaRPCURL,
		SendRetries: cfg.Venue.SendRetries,
		HTTPTimeout: time.Duration(cfg.Venue.HTTPTimeoutSeconds) * time.Second,
	}, wallet), nil
}

func printStats(ctx context.Context, store *storage.SQLiteStore, notifier *notify.Console) {
	stats, err := store.GetStats(ctx)
	if err != nil {
		slog.Error("failed to load stats", "err", err)
		os.Exit(1)
	}
	notifier.PrintStats(stats)

	trades, err := store.GetTradeHistory(ctx, 20)
	if err != nil {
		slog.Error("failed to load trade history", "err", err)
		os.Exit(1)
	}
	notifier.PrintHistory(trades)
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
