// Package main is the entry point for the trend-following backtester.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/quantforge/trendfollow/internal/backtest"
	"github.com/quantforge/trendfollow/internal/config"
	"github.com/quantforge/trendfollow/internal/marketdata"
	"github.com/quantforge/trendfollow/internal/metrics"
	"github.com/quantforge/trendfollow/internal/quality"
	"github.com/quantforge/trendfollow/internal/store"
	"github.com/quantforge/trendfollow/internal/strategy"
	"github.com/quantforge/trendfollow/internal/types"
	"github.com/quantforge/trendfollow/internal/ui"
)

// Version information (set by build flags).
var (
	Version   = "1.0.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "version", "-v", "--version":
		cmdVersion()
	case "help", "-h", "--help":
		printUsage()
	case "download":
		cmdDownload(os.Args[2:])
	case "quality":
		cmdQuality(os.Args[2:])
	case "backtest":
		cmdBacktest(os.Args[2:])
	case "validate":
		cmdValidate(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Trendfollow - Daily Futures Trend-Following Backtester

Usage:
  trendfollow <command> [options]

Commands:
  download   Fetch daily price history into the local store
  quality    Screen stored price series for data defects
  backtest   Run the simulation over the configured universe
  validate   Validate configuration file
  version    Show version information
  help       Show this help message

Examples:
  trendfollow download --config config.yaml
  trendfollow quality --config config.yaml
  trendfollow backtest --config config.yaml --strategy breakout
  trendfollow validate --config config.yaml

Use "trendfollow <command> --help" for more information about a command.`)
}

func cmdVersion() {
	fmt.Printf("trendfollow version %s\n", Version)
	fmt.Printf("  Build time: %s\n", BuildTime)
	fmt.Printf("  Git commit: %s\n", GitCommit)
}

func setupLogging(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
}

func loadConfig(path string) *config.Config {
	cfg, err := config.Load(path)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	return cfg
}

func openStore(cfg *config.Config) *store.Store {
	s, err := store.Open(cfg.Data.DatabasePath)
	if err != nil {
		slog.Error("failed to open store", "path", cfg.Data.DatabasePath, "err", err)
		os.Exit(1)
	}
	return s
}

func cmdValidate(args []string) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "Path to configuration file")
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Configuration is valid!")
	fmt.Printf("  Initial capital: $%.2f\n", cfg.Account.InitialCapital)
	fmt.Printf("  Risk factor: %.4f\n", cfg.Account.RiskFactor)
	fmt.Printf("  Strategy: %s (shorts: %v)\n", cfg.Strategy.Variant, cfg.Strategy.AllowShorts)
	fmt.Printf("  Universe: %v\n", cfg.Data.Instruments)
	fmt.Printf("  Database: %s\n", cfg.Data.DatabasePath)
}

func cmdDownload(args []string) {
	fs := flag.NewFlagSet("download", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "Path to configuration file")
	verbose := fs.Bool("verbose", false, "Verbose output")
	fs.Parse(args)

	setupLogging(*verbose)
	cfg := loadConfig(*configPath)

	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db := openStore(cfg)
	defer func() { _ = db.Close() }()

	start, err := time.Parse("2006-01-02", cfg.Data.StartDate)
	if err != nil {
		slog.Error("invalid start date", "value", cfg.Data.StartDate, "err", err)
		os.Exit(1)
	}
	end := time.Now().UTC()
	if cfg.Data.EndDate != "" {
		if end, err = time.Parse("2006-01-02", cfg.Data.EndDate); err != nil {
			slog.Error("invalid end date", "value", cfg.Data.EndDate, "err", err)
			os.Exit(1)
		}
	}

	client := marketdata.NewClient(cfg.Data.RateLimitPerSec)
	recorder := metrics.NewRecorder()

	g, ctx := errgroup.WithContext(ctx)
	for _, name := range cfg.Data.Instruments {
		spec, err := types.FindInstrument(name)
		if err != nil {
			slog.Error("unknown instrument", "name", name, "err", err)
			os.Exit(1)
		}

		g.Go(func() error {
			if err := db.UpsertInstrument(ctx, spec); err != nil {
				return err
			}

			slog.Info("downloading", "instrument", spec.Name, "ticker", spec.Ticker)
			bars, err := client.FetchDailyBars(ctx, spec.Ticker, start, end)
			recorder.RecordDownload(spec.Ticker, err == nil)
			if err != nil {
				return fmt.Errorf("download %s: %w", spec.Name, err)
			}

			if err := db.StoreBars(ctx, spec.Name, bars); err != nil {
				return err
			}
			recorder.RecordBarsStored(spec.Name, len(bars))

			slog.Info("stored", "instrument", spec.Name, "bars", len(bars),
				"first", bars[0].Date.Format("2006-01-02"),
				"last", bars[len(bars)-1].Date.Format("2006-01-02"))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		slog.Error("download failed", "err", err)
		os.Exit(1)
	}
	slog.Info("download complete", "instruments", len(cfg.Data.Instruments))
}

func cmdQuality(args []string) {
	fs := flag.NewFlagSet("quality", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "Path to configuration file")
	verbose := fs.Bool("verbose", false, "Verbose output")
	fs.Parse(args)

	setupLogging(*verbose)
	cfg := loadConfig(*configPath)

	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db := openStore(cfg)
	defer func() { _ = db.Close() }()

	recorder := metrics.NewRecorder()
	qcfg := cfg.ToQualityConfig()
	total := 0

	for _, name := range cfg.Data.Instruments {
		bars, err := db.LoadBars(ctx, name)
		if err != nil {
			slog.Error("load bars", "instrument", name, "err", err)
			os.Exit(1)
		}

		issues, err := quality.Screen(name, bars, qcfg)
		if err != nil {
			slog.Error("quality screen", "instrument", name, "err", err)
			os.Exit(1)
		}
		if err := db.LogQualityIssues(ctx, issues); err != nil {
			slog.Error("log quality issues", "instrument", name, "err", err)
			os.Exit(1)
		}
		recorder.RecordQualityIssues(issues)
		total += len(issues)

		slog.Info("screened", "instrument", name, "bars", len(bars), "issues", len(issues))
		for _, issue := range issues {
			slog.Warn("quality issue",
				"instrument", issue.Instrument,
				"date", issue.Date.Format("2006-01-02"),
				"kind", issue.Kind,
				"detail", issue.Detail)
		}
	}

	if total > 0 {
		slog.Warn("quality screen finished with findings", "issues", total)
		return
	}
	slog.Info("quality screen clean")
}

type runOutput struct {
	instrument string
	result     *backtest.Result
	report     *backtest.Report
}

func cmdBacktest(args []string) {
	fs := flag.NewFlagSet("backtest", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "Path to configuration file")
	variant := fs.String("strategy", "", "Strategy override: crossover, breakout, core")
	save := fs.Bool("save", false, "Persist run output to the store")
	chart := fs.Bool("chart", false, "Render an ASCII equity chart per run")
	verbose := fs.Bool("verbose", false, "Verbose output")
	fs.Parse(args)

	setupLogging(*verbose)
	cfg := loadConfig(*configPath)
	if *variant != "" {
		cfg.Strategy.Variant = *variant
	}

	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db := openStore(cfg)
	defer func() { _ = db.Close() }()

	recorder := metrics.NewRecorder()
	if cfg.Metrics.Enabled {
		server := metrics.NewServer(metrics.ServerConfig{
			Port:        cfg.Metrics.Port,
			MetricsPath: cfg.Metrics.Path,
			HealthPath:  "/health",
		}, slog.Default())
		server.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Shutdown(shutdownCtx)
		}()
	}

	engineCfg := cfg.ToBacktestConfig()
	reportParams := cfg.ToReportParams()

	var mu sync.Mutex
	var outputs []runOutput

	g, ctx := errgroup.WithContext(ctx)
	for _, name := range cfg.Data.Instruments {
		spec, err := types.FindInstrument(name)
		if err != nil {
			slog.Error("unknown instrument", "name", name, "err", err)
			os.Exit(1)
		}

		g.Go(func() error {
			strat, err := strategy.New(cfg.Strategy.Variant, cfg.Strategy.AllowShorts)
			if err != nil {
				return err
			}

			bars, err := db.LoadBars(ctx, spec.Name)
			if err != nil {
				return err
			}

			engine, err := backtest.NewEngine(engineCfg, spec, strat)
			if err != nil {
				return err
			}

			started := time.Now()
			result, err := engine.Run(bars)
			if err != nil {
				return fmt.Errorf("run %s: %w", spec.Name, err)
			}
			recorder.RecordBarsProcessed(spec.Name, len(bars))
			for _, trade := range result.Trades {
				recorder.RecordTrade(trade)
			}
			recorder.RecordRun(spec.Name, result.Strategy, result.EndEquity, time.Since(started))

			report, err := backtest.ComputeReport(result.EquityCurve, result.Trades, reportParams)
			if err != nil {
				return fmt.Errorf("report %s: %w", spec.Name, err)
			}

			if *save {
				runID, err := db.SaveRun(ctx, store.RunRecord{
					Instrument:   result.Instrument,
					Strategy:     result.Strategy,
					StartCapital: result.StartCapital,
					EndEquity:    result.EndEquity,
				}, result.Trades, result.EquityCurve)
				if err != nil {
					return fmt.Errorf("save %s: %w", spec.Name, err)
				}
				slog.Info("run saved", "instrument", spec.Name, "run_id", runID)
			}

			mu.Lock()
			outputs = append(outputs, runOutput{
				instrument: spec.Name,
				result:     result,
				report:     report,
			})
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		slog.Error("backtest failed", "err", err)
		os.Exit(1)
	}

	sort.Slice(outputs, func(i, j int) bool {
		return outputs[i].instrument < outputs[j].instrument
	})

	for _, out := range outputs {
		fmt.Println()
		fmt.Print(ui.FormatReport(out.instrument, out.result.Strategy, out.report, true))
		if *chart {
			width := ui.TerminalWidth() - 14
			if width > 100 {
				width = 100
			}
			fmt.Println()
			fmt.Print(ui.EquityChart(out.result.EquityCurve, width, 12))
		}
		if out.result.Pending != nil {
			slog.Info("unexecuted signal on final bar",
				"instrument", out.instrument,
				"desired", out.result.Pending.Desired.String(),
				"signal_date", out.result.Pending.SignalDate.Format("2006-01-02"))
		}
	}
}
