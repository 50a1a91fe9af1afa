package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aluiziolira/commute-matrix/config"
	"github.com/aluiziolira/commute-matrix/flights"
	"github.com/aluiziolira/commute-matrix/matrix"
	"github.com/aluiziolira/commute-matrix/models"
	"github.com/aluiziolira/commute-matrix/notify"
	"github.com/aluiziolira/commute-matrix/pipeline"
	"github.com/aluiziolira/commute-matrix/report"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	defaultCfg := config.DefaultConfig()
	envFileDefault := ".env"
	if value, ok := config.EnvString("COMMUTE_ENV_FILE"); ok {
		envFileDefault = value
	}

	envFile := flag.String("env-file", envFileDefault, "Optional dotenv file with credentials")
	months := flag.Int("months", defaultCfg.MonthsToScan, "Number of anchor weeks to scan")
	threshold := flag.Int("threshold", defaultCfg.GoodPriceThreshold, "Totals below this are reported as deals")
	logFile := flag.String("log", defaultCfg.LogFile, "Matrix log file path")
	logFormat := flag.String("format", defaultCfg.LogFormat, "Log format: csv, json, or dual")
	matrixFile := flag.String("matrix", "", "YAML file overriding the itinerary matrix")
	calendarDir := flag.String("calendar-dir", defaultCfg.CalendarDir, "Directory for temporary calendar exports")
	metricsAddr := flag.String("metrics-addr", "", "Prometheus metrics listen address (e.g. :9090)")
	dryRun := flag.Bool("dry-run", false, "Log the report instead of sending email and push")
	verbose := flag.Bool("v", false, "Enable verbose logging")

	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load configuration: %v\n", err)
		os.Exit(1)
	}

	// Flags given on the command line win over the environment.
	var flagErr error
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "months":
			cfg.MonthsToScan = *months
		case "threshold":
			cfg.GoodPriceThreshold = *threshold
		case "log":
			cfg.LogFile = *logFile
		case "format":
			cfg.LogFormat = strings.ToLower(*logFormat)
		case "matrix":
			cfg.MatrixFile = *matrixFile
			m, err := config.LoadMatrix(*matrixFile)
			if err != nil {
				flagErr = err
				return
			}
			cfg.Matrix = m
		case "calendar-dir":
			cfg.CalendarDir = *calendarDir
		case "metrics-addr":
			cfg.MetricsAddr = *metricsAddr
		case "dry-run":
			cfg.DryRun = *dryRun
		case "v":
			cfg.Verbose = *verbose
		}
	})

	logger, level := newLogger(cfg.Verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	if flagErr != nil {
		slog.Error("invalid configuration", slog.Any("error", flagErr))
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	loc := cfg.Location()
	slog.Info("commute matrix initialized",
		slog.Int("months", cfg.MonthsToScan),
		slog.String("departures", cfg.Matrix.DepartureLabels()),
		slog.Int("cells", cfg.Matrix.Cells()),
		slog.String("work_airport", cfg.WorkAirport),
		slog.Bool("dry_run", cfg.DryRun),
	)

	client, err := flights.NewClient(cfg)
	if err != nil {
		slog.Error("initialising price client", slog.Any("error", err))
		os.Exit(1)
	}

	writer, err := createWriter(cfg)
	if err != nil {
		slog.Error("creating writer", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := writer.Close(); err != nil {
			slog.Error("close writer", slog.Any("error", err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	scanDone := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			slog.Info("shutdown signal received, remaining lookups will be skipped")
		case <-scanDone:
		}
	}()

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" && client.Metrics != nil {
		metricsServer = &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: promhttp.HandlerFor(client.Metrics.Registry, promhttp.HandlerOpts{}),
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
	}

	p := pipeline.NewPipeline(writer)
	analyzer := matrix.NewAnalyzer(cfg, client, p)

	result := &models.ScanResult{StartTime: time.Now()}
	anchors := matrix.AnchorWeeks(time.Now().In(loc), cfg.MonthsToScan)
	weeks, err := analyzer.Run(ctx, anchors)
	if err != nil {
		// Nothing is reported for a run whose log is incomplete.
		slog.Error("matrix log write failed", slog.Any("error", err))
		writer.Close()
		os.Exit(1)
	}
	close(scanDone)
	p.Close()

	reporter := report.NewReporter(cfg, newMailer(cfg), newPusher(cfg))
	outcome, err := reporter.Deliver(ctx, weeks)
	if err != nil {
		slog.Error("report delivery failed", slog.Any("error", err))
	}

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
		cancel()
	}

	stats := client.Stats()
	result.Weeks = weeks
	result.EndTime = time.Now()
	result.LookupCount = stats.Lookups
	result.FailedLookups = stats.Failed
	result.CacheHits = stats.CacheHits
	result.RetryCount = stats.Retries
	result.ErrorsByType = stats.ErrorsByType
	result.RecordCount = p.Processed()

	printSummary(result, outcome, cfg.LogFile, p.GetMetrics())
}

func createWriter(cfg *config.Config) (pipeline.OutputWriter, error) {
	var primary pipeline.OutputWriter
	var err error
	switch cfg.LogFormat {
	case "json":
		primary, err = pipeline.NewJSONWriter(cfg.LogFile)
	case "csv":
		primary, err = pipeline.NewCSVWriter(cfg.LogFile)
	case "dual":
		jsonFilename := strings.TrimSuffix(cfg.LogFile, ".csv") + ".jsonl"
		primary, err = pipeline.NewDualWriter(cfg.LogFile, jsonFilename)
	default:
		return nil, fmt.Errorf("unsupported format: %s", cfg.LogFormat)
	}
	if err != nil {
		return nil, err
	}
	if cfg.PostgresDSN == "" {
		return primary, nil
	}

	pg, err := pipeline.NewPostgresWriter(cfg.PostgresDSN)
	if err != nil {
		primary.Close()
		return nil, err
	}
	mw := pipeline.NewMultiWriter(primary)
	mw.AddMirror(pg)
	return mw, nil
}

func newMailer(cfg *config.Config) report.Mailer {
	if cfg.DryRun || !cfg.EmailEnabled() {
		if !cfg.DryRun {
			slog.Warn("email credentials not configured, report will only be logged")
		}
		return notify.LogMailer{Logger: slog.Default()}
	}
	m, err := notify.NewSMTPMailer(notify.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.EmailSender,
		Password: cfg.EmailPassword,
		From:     cfg.EmailSender,
		To:       cfg.EmailRecipient,
		Timeout:  cfg.Timeout,
	})
	if err != nil {
		slog.Error("smtp mailer unavailable", slog.Any("error", err))
		return notify.LogMailer{Logger: slog.Default()}
	}
	return m
}

func newPusher(cfg *config.Config) report.Pusher {
	if cfg.DryRun || !cfg.PushEnabled() {
		return nil
	}
	p, err := notify.NewPushover(cfg.PushoverURL, cfg.PushoverToken, cfg.PushoverUser, nil)
	if err != nil {
		slog.Debug("pushover unavailable", slog.Any("error", err))
		return nil
	}
	return p
}

func printSummary(result *models.ScanResult, outcome *report.Outcome, logFile string, metrics map[string]interface{}) {
	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	fmt.Println("Matrix scan complete")

	fmt.Printf("  Weeks:         %d\n", len(result.Weeks))
	for _, w := range result.Weeks {
		if best := w.Best(); best != nil {
			fmt.Printf("    %s  %-24s $%d\n", w.Anchor.Format("02 Jan"), best.Type(), best.Total)
		}
	}
	fmt.Printf("  Records:       %d\n", result.RecordCount)
	fmt.Printf("  Lookups:       %d\n", result.LookupCount)
	fmt.Printf("  Failed:        %d\n", result.FailedLookups)
	fmt.Printf("  Cache hits:    %d\n", result.CacheHits)
	fmt.Printf("  Retries:       %d\n", result.RetryCount)
	if len(result.ErrorsByType) > 0 {
		fmt.Printf("  Error types:   %v\n", result.ErrorsByType)
	}
	if valErrors, ok := metrics["validation_errors"].(map[string]int); ok && len(valErrors) > 0 {
		fmt.Printf("  Validation:    %v\n", valErrors)
	}
	if outcome != nil {
		fmt.Printf("  Deals:         %d\n", outcome.Deals)
		fmt.Printf("  Email sent:    %t\n", outcome.Sent)
	}
	fmt.Printf("  Duration:      %v\n", result.EndTime.Sub(result.StartTime).Round(time.Millisecond))
	fmt.Printf("  Log file:      %s\n", logFile)
	fmt.Println(separator)
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stdout) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
