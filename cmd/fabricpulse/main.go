package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"

	"github.com/fabricpulse/dashboard/internal/ai"
	"github.com/fabricpulse/dashboard/internal/alerts"
	"github.com/fabricpulse/dashboard/internal/cascade"
	"github.com/fabricpulse/dashboard/internal/dashboard"
	"github.com/fabricpulse/dashboard/internal/demo"
	"github.com/fabricpulse/dashboard/internal/insights"
	"github.com/fabricpulse/dashboard/internal/metrics"
	"github.com/fabricpulse/dashboard/internal/rtms"
)

var (
	// Set by LDFLAGS
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// alertSource fetches the backend's current alert rows. Both the live
// client and the demo source satisfy this.
type alertSource interface {
	Alerts(ctx context.Context, q rtms.Query) ([]rtms.Alert, error)
}

func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	showVersionFlag := flag.Bool("version", false, "show version and exit")
	verboseFlag := flag.Bool("verbose", false, "verbose mode - show debug logs")
	demoFlag := flag.Bool("demo", false, "serve synthetic data instead of a live RTMS backend")
	demoSeedFlag := flag.Int64("demo-seed", 0, "seed for the demo data source (0 = time-derived)")
	envFileFlag := flag.String("env-file", "", "load environment variables from this file")
	flag.Parse()

	if *showVersionFlag {
		fmt.Printf("version: %s, commit: %s, date: %s\n", version, commit, date)
		os.Exit(0)
	}

	log := newLogger(*verboseFlag)

	if *envFileFlag != "" {
		if err := godotenv.Load(*envFileFlag); err != nil {
			log.Error("failed to load env file", "path", *envFileFlag, "error", err)
			return err
		}
	} else {
		_ = godotenv.Load()
	}

	cfg := dashboard.ConfigFromEnv()
	cfg.DemoMode = cfg.DemoMode || *demoFlag
	if *demoSeedFlag != 0 {
		cfg.DemoSeed = *demoSeedFlag
	}
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Prometheus metrics server.
	if cfg.MetricsAddr != "" {
		metrics.BuildInfo.WithLabelValues(version, commit, date).Set(1)
		go func() {
			listener, err := net.Listen("tcp", cfg.MetricsAddr)
			if err != nil {
				log.Error("Failed to start prometheus metrics server listener", "error", err)
				os.Exit(1)
			}
			log.Info("Prometheus metrics server listening", "address", listener.Addr().String())
			http.Handle("/metrics", promhttp.Handler())
			if err := http.Serve(listener, nil); err != nil {
				log.Error("Failed to start prometheus metrics server", "error", err)
				os.Exit(1)
			}
		}()
	}

	clock := clockwork.NewRealClock()

	// Record source: live RTMS backend or the synthetic generator.
	var (
		provider cascade.OptionsProvider
		source   insights.RecordSource
		alertSrc alertSource
		pinger   dashboard.Pinger
	)
	if cfg.DemoMode {
		log.Info("demo mode enabled, serving synthetic data", "seed", cfg.DemoSeed)
		demoSource := demo.NewSource(cfg.DemoSeed)
		provider, source, alertSrc, pinger = demoSource, demoSource, demoSource, demoSource
	} else {
		rtmsClient, err := rtms.NewClient(
			rtms.WithBaseURL(cfg.RTMSBaseURL),
			rtms.WithLogger(log),
		)
		if err != nil {
			log.Error("failed to create rtms client", "error", err)
			return err
		}
		defer rtmsClient.Close()

		pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
		if err := rtmsClient.Ping(pingCtx); err != nil {
			log.Warn("rtms backend ping failed (continuing anyway)", "error", err)
		}
		pingCancel()

		provider, source, alertSrc, pinger = rtmsClient, rtmsClient, rtmsClient, rtmsClient
	}

	var completer ai.Completer
	if cfg.AIBaseURL != "" {
		aiClient, err := ai.NewClient(cfg.AIBaseURL, ai.WithLogger(log))
		if err != nil {
			log.Error("failed to create ai client", "error", err)
			return err
		}
		completer = aiClient
	} else {
		log.Warn("no AI collaborator configured, Q&A will degrade to fallback answers")
	}

	cascadeEngine, err := cascade.New(&cascade.Config{
		Logger:   log,
		Provider: provider,
	})
	if err != nil {
		log.Error("failed to create cascade engine", "error", err)
		return err
	}
	cascadeEngine.LoadUnitOptions(ctx)

	insightEngine, err := insights.New(&insights.Config{
		Logger: log,
		Clock:  clock,
		AI:     completer,
	})
	if err != nil {
		log.Error("failed to create insight engine", "error", err)
		return err
	}

	alertEngine := alerts.NewEngine()

	// Seed the alert collection from the backend's current alert rows so
	// the dashboard is populated before the first monitor tick completes.
	seedCtx, seedCancel := context.WithTimeout(ctx, 10*time.Second)
	if wire, err := alertSrc.Alerts(seedCtx, rtms.Query{}); err != nil {
		log.Warn("initial alert fetch failed", "error", err)
	} else {
		alertEngine.Replace(alerts.FromTransport(wire))
		log.Info("seeded alert collection", "alerts", len(wire))
	}
	seedCancel()

	var notifier alerts.Notifier
	if cfg.SlackToken != "" {
		notifier = alerts.NewSlackNotifier(cfg.SlackToken, cfg.SlackChannel, log)
		log.Info("slack notifications enabled", "channel", cfg.SlackChannel)
	}

	monitor, err := insights.NewMonitor(&insights.MonitorConfig{
		Logger:   log,
		Clock:    clock,
		Engine:   insightEngine,
		Source:   source,
		Alerts:   alertEngine,
		Notifier: notifier,
		Scope: func() rtms.Query {
			sel, _ := cascadeEngine.Snapshot()
			return dashboard.QueryForSelection(sel)
		},
		Interval: cfg.MonitorInterval,
	})
	if err != nil {
		log.Error("failed to create monitor", "error", err)
		return err
	}

	app, err := dashboard.NewApp(
		dashboard.WithAppLogger(log),
		dashboard.WithClock(clock),
		dashboard.WithCascade(cascadeEngine),
		dashboard.WithInsights(insightEngine),
		dashboard.WithAlerts(alertEngine),
		dashboard.WithSource(source),
		dashboard.WithPinger(pinger),
		dashboard.WithAIConfigured(completer != nil),
		dashboard.WithMonitorInterval(cfg.MonitorInterval),
	)
	if err != nil {
		log.Error("failed to create app", "error", err)
		return err
	}

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: app.Routes(),
	}

	go func() {
		<-ctx.Done()
		log.Info("shutting down server")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("shutdown error", "error", err)
		}
	}()

	monitorErrCh := monitor.Start(ctx)
	go func() {
		if err, ok := <-monitorErrCh; ok && err != nil {
			log.Error("monitor: error", "error", err)
		}
	}()

	log.Info("starting fabricpulse server",
		"port", cfg.Port,
		"rtms", cfg.RTMSBaseURL,
		"demo", cfg.DemoMode,
		"monitorInterval", cfg.MonitorInterval,
	)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Error("server failed", "error", err)
		return err
	}
	return nil
}

func newLogger(verbose bool) *slog.Logger {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	return slog.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level: logLevel,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				t := a.Value.Time().UTC()
				a.Value = slog.StringValue(formatRFC3339Millis(t))
			}
			if s, ok := a.Value.Any().(string); ok && s == "" {
				return slog.Attr{}
			}
			return a
		},
	}))
}

func formatRFC3339Millis(t time.Time) string {
	t = t.UTC()
	base := t.Format("2006-01-02T15:04:05")
	ms := t.Nanosecond() / 1_000_000
	return fmt.Sprintf("%s.%03dZ", base, ms)
}
