package insights

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/fabricpulse/dashboard/internal/alerts"
	"github.com/fabricpulse/dashboard/internal/metrics"
	"github.com/fabricpulse/dashboard/internal/rtms"
)

const defaultMonitorInterval = 10 * time.Minute

// RecordSource fetches operator records for a query. *rtms.Client
// satisfies this.
type RecordSource interface {
	Analyze(ctx context.Context, q rtms.Query) (*rtms.AnalyzeResponse, error)
}

// MonitorConfig configures the background monitor.
type MonitorConfig struct {
	Logger   *slog.Logger
	Clock    clockwork.Clock
	Engine   *Engine
	Source   RecordSource
	Alerts   *alerts.Engine
	Notifier alerts.Notifier // optional

	// Scope returns the query for the current filter selection. Optional;
	// nil means analyze unscoped.
	Scope func() rtms.Query

	Interval time.Duration
}

func (c *MonitorConfig) Validate() error {
	if c.Logger == nil {
		return errors.New("logger is required")
	}
	if c.Clock == nil {
		return errors.New("clock is required")
	}
	if c.Engine == nil {
		return errors.New("insight engine is required")
	}
	if c.Source == nil {
		return errors.New("record source is required")
	}
	if c.Alerts == nil {
		return errors.New("alert engine is required")
	}
	if c.Interval <= 0 {
		c.Interval = defaultMonitorInterval
	}
	return nil
}

// Monitor re-runs the analytics pipeline on a fixed interval, independent
// of user interaction. A user-triggered run racing an interval run is
// resolved by the engine's drop-the-newcomer rule, so the two can never
// apply to the same state concurrently.
type Monitor struct {
	log *slog.Logger
	cfg *MonitorConfig
}

// NewMonitor creates a background monitor.
func NewMonitor(cfg *MonitorConfig) (*Monitor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Monitor{log: cfg.Logger, cfg: cfg}, nil
}

// Start runs the monitor in a goroutine and reports a terminal error, if
// any, on the returned channel.
func (m *Monitor) Start(ctx context.Context) <-chan error {
	errCh := make(chan error)
	go func() {
		err := m.Run(ctx)
		if err != nil {
			select {
			case errCh <- err:
			default:
				m.log.Error("monitor: error channel is full, skipping error", "error", err)
			}
		}
		close(errCh)
	}()
	return errCh
}

// Run ticks immediately and then on every interval until ctx is done.
func (m *Monitor) Run(ctx context.Context) error {
	m.log.Info("monitor: starting", "interval", m.cfg.Interval)

	ticker := m.cfg.Clock.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	m.Tick(ctx)

	for {
		select {
		case <-ctx.Done():
			m.log.Info("monitor: context done, stopping", "reason", ctx.Err())
			return nil
		case <-ticker.Chan():
			m.Tick(ctx)
		}
	}
}

// Tick fetches the current record batch, runs the pipeline, and refreshes
// the alert collection from the run's underperformers. Every failure mode
// degrades: a fetch or analysis problem leaves the previous state in place.
func (m *Monitor) Tick(ctx context.Context) {
	var q rtms.Query
	if m.cfg.Scope != nil {
		q = m.cfg.Scope()
	}

	resp, err := m.cfg.Source.Analyze(ctx, q)
	if err != nil {
		m.log.Warn("monitor: record fetch failed", "error", err)
		metrics.MonitorTicksTotal.WithLabelValues("fetch_err").Inc()
		return
	}

	res, err := m.cfg.Engine.Analyze(ctx, resp.Operators)
	if err != nil {
		if errors.Is(err, ErrAnalysisInProgress) {
			m.log.Debug("monitor: analysis already running, skipping tick")
			metrics.MonitorTicksTotal.WithLabelValues("skipped").Inc()
			return
		}
		m.log.Error("monitor: analysis failed", "error", err)
		metrics.MonitorTicksTotal.WithLabelValues("analyze_err").Inc()
		return
	}

	fresh := alerts.FromRecords(res.Underperformers, m.cfg.Clock.Now().UTC())
	m.cfg.Alerts.Replace(fresh)

	if m.cfg.Notifier != nil && len(fresh) > 0 {
		if err := m.cfg.Notifier.NotifyAlerts(ctx, fresh); err != nil {
			m.log.Warn("monitor: alert notification failed", "error", err)
		}
	}

	m.log.Info("monitor: tick",
		"records", len(resp.Operators),
		"alerts", len(fresh),
		"avgEfficiency", res.Summary.AvgEfficiency,
	)
	metrics.MonitorTicksTotal.WithLabelValues("ok").Inc()
}
