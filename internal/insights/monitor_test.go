package insights

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/fabricpulse/dashboard/internal/alerts"
	"github.com/fabricpulse/dashboard/internal/rtms"
)

type fakeSource struct {
	mu      sync.Mutex
	calls   int
	queries []rtms.Query
	records []rtms.OperatorRecord
	err     error
}

func (s *fakeSource) Analyze(ctx context.Context, q rtms.Query) (*rtms.AnalyzeResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.queries = append(s.queries, q)
	if s.err != nil {
		return nil, s.err
	}
	return &rtms.AnalyzeResponse{Operators: s.records}, nil
}

func (s *fakeSource) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type fakeNotifier struct {
	mu      sync.Mutex
	batches [][]alerts.Alert
	err     error
}

func (n *fakeNotifier) NotifyAlerts(ctx context.Context, batch []alerts.Alert) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.batches = append(n.batches, batch)
	return n.err
}

func newTestMonitor(t *testing.T, src *fakeSource, notifier alerts.Notifier, scope func() rtms.Query) (*Monitor, *alerts.Engine, *clockwork.FakeClock) {
	t.Helper()

	clock := clockwork.NewFakeClockAt(time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC))
	engine, err := New(&Config{Logger: slog.Default(), Clock: clock})
	require.NoError(t, err)

	alertEngine := alerts.NewEngine()
	m, err := NewMonitor(&MonitorConfig{
		Logger:   slog.Default(),
		Clock:    clock,
		Engine:   engine,
		Source:   src,
		Alerts:   alertEngine,
		Notifier: notifier,
		Scope:    scope,
		Interval: 10 * time.Minute,
	})
	require.NoError(t, err)
	return m, alertEngine, clock
}

func TestMonitor_Tick_RefreshesAlerts(t *testing.T) {
	t.Parallel()

	src := &fakeSource{records: recordsWithEfficiencies(45, 65, 95)}
	notifier := &fakeNotifier{}
	m, alertEngine, _ := newTestMonitor(t, src, notifier, nil)

	m.Tick(context.Background())

	all := alertEngine.All()
	require.Len(t, all, 2)
	require.Equal(t, alerts.PriorityHigh, all[0].Priority)
	require.Equal(t, alerts.PriorityLow, all[1].Priority)

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	require.Len(t, notifier.batches, 1)
	require.Len(t, notifier.batches[0], 2)
}

func TestMonitor_Tick_ScopesQuery(t *testing.T) {
	t.Parallel()

	src := &fakeSource{}
	scope := func() rtms.Query {
		return rtms.Query{UnitCode: "Unit-A", LineName: "Line-1"}
	}
	m, _, _ := newTestMonitor(t, src, nil, scope)

	m.Tick(context.Background())

	src.mu.Lock()
	defer src.mu.Unlock()
	require.Len(t, src.queries, 1)
	require.Equal(t, "Unit-A", src.queries[0].UnitCode)
	require.Equal(t, "Line-1", src.queries[0].LineName)
}

func TestMonitor_Tick_FetchFailureKeepsPreviousAlerts(t *testing.T) {
	t.Parallel()

	src := &fakeSource{records: recordsWithEfficiencies(45)}
	m, alertEngine, _ := newTestMonitor(t, src, nil, nil)

	m.Tick(context.Background())
	require.Len(t, alertEngine.All(), 1)

	src.mu.Lock()
	src.err = errors.New("backend down")
	src.mu.Unlock()

	m.Tick(context.Background())
	require.Len(t, alertEngine.All(), 1)
}

func TestMonitor_Tick_HealthyBatchClearsAlerts(t *testing.T) {
	t.Parallel()

	src := &fakeSource{records: recordsWithEfficiencies(45)}
	notifier := &fakeNotifier{}
	m, alertEngine, _ := newTestMonitor(t, src, notifier, nil)

	m.Tick(context.Background())
	require.Len(t, alertEngine.All(), 1)

	src.mu.Lock()
	src.records = recordsWithEfficiencies(90, 95)
	src.mu.Unlock()

	m.Tick(context.Background())
	require.Empty(t, alertEngine.All())

	// No alerts, no notification for the second tick.
	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	require.Len(t, notifier.batches, 1)
}

func TestMonitor_Run_TicksOnInterval(t *testing.T) {
	t.Parallel()

	src := &fakeSource{records: recordsWithEfficiencies(90)}
	m, _, clock := newTestMonitor(t, src, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := m.Start(ctx)

	// Immediate tick on start.
	require.Eventually(t, func() bool {
		return src.callCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(10 * time.Minute)
	require.Eventually(t, func() bool {
		return src.callCount() == 2
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(10 * time.Minute)
	require.Eventually(t, func() bool {
		return src.callCount() == 3
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.Eventually(t, func() bool {
		select {
		case _, open := <-errCh:
			return !open
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
}

func TestMonitorConfig_Validate(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	engine, err := New(&Config{Logger: slog.Default(), Clock: clock})
	require.NoError(t, err)

	cfg := &MonitorConfig{
		Logger: slog.Default(),
		Clock:  clock,
		Engine: engine,
		Source: &fakeSource{},
		Alerts: alerts.NewEngine(),
	}
	require.NoError(t, cfg.Validate())
	require.Equal(t, defaultMonitorInterval, cfg.Interval)

	cfg.Source = nil
	require.Error(t, cfg.Validate())
}
