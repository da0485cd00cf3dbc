// Package dashboard is the HTTP surface of the efficiency-monitoring
// service: one state snapshot endpoint the UI polls, plus command
// endpoints for filter selection, analysis runs, Q&A and alert triage.
package dashboard

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/fabricpulse/dashboard/internal/alerts"
	"github.com/fabricpulse/dashboard/internal/cascade"
	"github.com/fabricpulse/dashboard/internal/insights"
)

// Pinger probes backend reachability. Both the real RTMS client and the
// demo source satisfy this.
type Pinger interface {
	Ping(ctx context.Context) error
}

// App holds the engines and backends the handlers operate on.
type App struct {
	logger          *slog.Logger
	clock           clockwork.Clock
	cascade         *cascade.Engine
	insights        *insights.Engine
	alerts          *alerts.Engine
	source          insights.RecordSource
	pinger          Pinger
	aiConfigured    bool
	monitorInterval time.Duration
}

// AppOption configures the App.
type AppOption func(*App)

// WithCascade sets the filter cascade engine.
func WithCascade(e *cascade.Engine) AppOption {
	return func(a *App) {
		a.cascade = e
	}
}

// WithInsights sets the analytics engine.
func WithInsights(e *insights.Engine) AppOption {
	return func(a *App) {
		a.insights = e
	}
}

// WithAlerts sets the alert engine.
func WithAlerts(e *alerts.Engine) AppOption {
	return func(a *App) {
		a.alerts = e
	}
}

// WithSource sets the operator-record source.
func WithSource(s insights.RecordSource) AppOption {
	return func(a *App) {
		a.source = s
	}
}

// WithPinger sets the backend reachability probe.
func WithPinger(p Pinger) AppOption {
	return func(a *App) {
		a.pinger = p
	}
}

// WithAppLogger sets the logger.
func WithAppLogger(logger *slog.Logger) AppOption {
	return func(a *App) {
		a.logger = logger
	}
}

// WithClock sets the clock.
func WithClock(clock clockwork.Clock) AppOption {
	return func(a *App) {
		a.clock = clock
	}
}

// WithAIConfigured marks whether an AI collaborator is wired, for the
// status document.
func WithAIConfigured(configured bool) AppOption {
	return func(a *App) {
		a.aiConfigured = configured
	}
}

// WithMonitorInterval sets the monitoring interval reported by the status
// document.
func WithMonitorInterval(d time.Duration) AppOption {
	return func(a *App) {
		a.monitorInterval = d
	}
}

// NewApp creates a new App with the given options.
func NewApp(opts ...AppOption) (*App, error) {
	app := &App{}
	for _, opt := range opts {
		opt(app)
	}

	if app.logger == nil {
		app.logger = slog.Default()
	}
	if app.clock == nil {
		app.clock = clockwork.NewRealClock()
	}
	if app.monitorInterval <= 0 {
		app.monitorInterval = defaultMonitorInterval
	}

	if app.cascade == nil {
		return nil, errors.New("cascade engine is required: use WithCascade option")
	}
	if app.insights == nil {
		return nil, errors.New("insight engine is required: use WithInsights option")
	}
	if app.alerts == nil {
		return nil, errors.New("alert engine is required: use WithAlerts option")
	}
	if app.source == nil {
		return nil, errors.New("record source is required: use WithSource option")
	}
	if app.pinger == nil {
		return nil, errors.New("pinger is required: use WithPinger option")
	}

	return app, nil
}

// Routes returns the service mux.
func (a *App) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/dashboard/state", a.HandleState)
	mux.HandleFunc("/api/dashboard/select", a.HandleSelect)
	mux.HandleFunc("/api/dashboard/analyze", a.HandleAnalyze)
	mux.HandleFunc("/api/dashboard/ask", a.HandleAsk)
	mux.HandleFunc("/api/dashboard/suggest", a.HandleSuggest)
	mux.HandleFunc("/api/dashboard/summary", a.HandleSummary)
	mux.HandleFunc("/api/dashboard/alerts", a.HandleAlerts)
	mux.HandleFunc("/api/dashboard/alerts/read", a.HandleAlertRead)
	mux.HandleFunc("/api/dashboard/alerts/resolve", a.HandleAlertResolve)
	mux.HandleFunc("/api/status", a.HandleStatus)
	mux.HandleFunc("/healthz", a.HandleHealthz)
	return mux
}
