package cascade

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	mu sync.Mutex

	unitsFn      func(ctx context.Context) ([]string, error)
	floorsFn     func(ctx context.Context, unit string) ([]string, error)
	linesFn      func(ctx context.Context, unit, floor string) ([]string, error)
	operationsFn func(ctx context.Context, unit, floor, line string) ([]string, error)

	floorCalls []string
}

func (p *fakeProvider) Units(ctx context.Context) ([]string, error) {
	if p.unitsFn != nil {
		return p.unitsFn(ctx)
	}
	return []string{"Unit-A", "Unit-B"}, nil
}

func (p *fakeProvider) Floors(ctx context.Context, unit string) ([]string, error) {
	p.mu.Lock()
	p.floorCalls = append(p.floorCalls, unit)
	p.mu.Unlock()
	if p.floorsFn != nil {
		return p.floorsFn(ctx, unit)
	}
	return []string{unit + "-Floor-1", unit + "-Floor-2"}, nil
}

func (p *fakeProvider) Lines(ctx context.Context, unit, floor string) ([]string, error) {
	if p.linesFn != nil {
		return p.linesFn(ctx, unit, floor)
	}
	return []string{floor + "-Line-1"}, nil
}

func (p *fakeProvider) Operations(ctx context.Context, unit, floor, line string) ([]string, error) {
	if p.operationsFn != nil {
		return p.operationsFn(ctx, unit, floor, line)
	}
	return []string{"Sewing", "Cutting"}, nil
}

func newTestEngine(t *testing.T, provider OptionsProvider) *Engine {
	t.Helper()
	e, err := New(&Config{
		Logger:   slog.Default(),
		Provider: provider,
	})
	require.NoError(t, err)
	return e
}

func TestCascadeEngine_LoadUnitOptions(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, &fakeProvider{})
	e.LoadUnitOptions(context.Background())

	require.Eventually(t, func() bool {
		_, opts := e.Snapshot()
		return !opts[LevelUnit].Loading && len(opts[LevelUnit].Values) == 2
	}, 2*time.Second, 10*time.Millisecond)

	_, opts := e.Snapshot()
	require.Equal(t, []string{"Unit-A", "Unit-B"}, opts[LevelUnit].Values)
}

func TestCascadeEngine_SelectUnit_ReloadsFloors(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, &fakeProvider{})
	e.SelectUnit(context.Background(), "Unit-A")

	require.Eventually(t, func() bool {
		_, opts := e.Snapshot()
		return !opts[LevelFloor].Loading && len(opts[LevelFloor].Values) == 2
	}, 2*time.Second, 10*time.Millisecond)

	sel, opts := e.Snapshot()
	require.Equal(t, "Unit-A", sel.Unit)
	require.Equal(t, []string{"Unit-A-Floor-1", "Unit-A-Floor-2"}, opts[LevelFloor].Values)
}

func TestCascadeEngine_SelectUnit_ClearsDescendants(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, &fakeProvider{})
	ctx := context.Background()

	e.SelectUnit(ctx, "Unit-A")
	require.Eventually(t, func() bool {
		_, opts := e.Snapshot()
		return len(opts[LevelFloor].Values) > 0
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, e.SelectFloor(ctx, "Unit-A-Floor-1"))
	require.Eventually(t, func() bool {
		_, opts := e.Snapshot()
		return len(opts[LevelLine].Values) > 0
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, e.SelectLine(ctx, "Unit-A-Floor-1-Line-1"))
	require.NoError(t, e.SelectOperation("Sewing"))

	// Changing the unit must wipe the floor, line and operation selections
	// and their option sets in the same transition.
	e.SelectUnit(ctx, "Unit-B")

	sel, opts := e.Snapshot()
	require.Equal(t, "Unit-B", sel.Unit)
	require.Empty(t, sel.Floor)
	require.Empty(t, sel.Line)
	require.Empty(t, sel.Operation)
	require.Empty(t, opts[LevelLine].Values)
	require.Empty(t, opts[LevelOperation].Values)
}

func TestCascadeEngine_SelectWithoutAncestor(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, &fakeProvider{})
	ctx := context.Background()

	require.ErrorIs(t, e.SelectFloor(ctx, "Floor-1"), ErrInvalidCascadeState)
	require.ErrorIs(t, e.SelectLine(ctx, "Line-1"), ErrInvalidCascadeState)
	require.ErrorIs(t, e.SelectOperation("Sewing"), ErrInvalidCascadeState)
}

func TestCascadeEngine_ClearUnitSkipsReload(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{}
	e := newTestEngine(t, p)
	ctx := context.Background()

	e.SelectUnit(ctx, "Unit-A")
	require.Eventually(t, func() bool {
		_, opts := e.Snapshot()
		return len(opts[LevelFloor].Values) > 0
	}, 2*time.Second, 10*time.Millisecond)

	e.SelectUnit(ctx, "")

	sel, opts := e.Snapshot()
	require.Empty(t, sel.Unit)
	require.False(t, opts[LevelFloor].Loading)
	require.Empty(t, opts[LevelFloor].Values)

	p.mu.Lock()
	defer p.mu.Unlock()
	require.Equal(t, []string{"Unit-A"}, p.floorCalls)
}

func TestCascadeEngine_StaleFloorResponseDiscarded(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	p := &fakeProvider{}
	p.floorsFn = func(ctx context.Context, unit string) ([]string, error) {
		if unit == "Unit-A" {
			// Simulate a slow first fetch that loses the race.
			select {
			case <-release:
			case <-ctx.Done():
			}
			return []string{"STALE"}, nil
		}
		return []string{"Unit-B-Floor-1"}, nil
	}
	e := newTestEngine(t, p)
	ctx := context.Background()

	e.SelectUnit(ctx, "Unit-A")
	e.SelectUnit(ctx, "Unit-B")

	require.Eventually(t, func() bool {
		_, opts := e.Snapshot()
		return !opts[LevelFloor].Loading && len(opts[LevelFloor].Values) > 0
	}, 2*time.Second, 10*time.Millisecond)

	close(release)

	// The slow Unit-A response must never surface, even after it lands.
	require.Never(t, func() bool {
		_, opts := e.Snapshot()
		return len(opts[LevelFloor].Values) == 1 && opts[LevelFloor].Values[0] == "STALE"
	}, 200*time.Millisecond, 20*time.Millisecond)

	sel, opts := e.Snapshot()
	require.Equal(t, "Unit-B", sel.Unit)
	require.Equal(t, []string{"Unit-B-Floor-1"}, opts[LevelFloor].Values)
}

func TestCascadeEngine_FailedReloadLeavesEmptyOptions(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{}
	p.floorsFn = func(ctx context.Context, unit string) ([]string, error) {
		return nil, errors.New("backend unavailable")
	}
	e := newTestEngine(t, p)

	e.SelectUnit(context.Background(), "Unit-A")

	require.Eventually(t, func() bool {
		_, opts := e.Snapshot()
		return !opts[LevelFloor].Loading
	}, 2*time.Second, 10*time.Millisecond)

	// The failure degrades to an empty option list; the selection stands.
	sel, opts := e.Snapshot()
	require.Equal(t, "Unit-A", sel.Unit)
	require.Empty(t, opts[LevelFloor].Values)
}

func TestCascadeEngine_SelectOperation_NoCascade(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, &fakeProvider{})
	ctx := context.Background()

	e.SelectUnit(ctx, "Unit-A")
	require.Eventually(t, func() bool {
		_, opts := e.Snapshot()
		return len(opts[LevelFloor].Values) > 0
	}, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, e.SelectFloor(ctx, "Unit-A-Floor-1"))
	require.Eventually(t, func() bool {
		_, opts := e.Snapshot()
		return len(opts[LevelLine].Values) > 0
	}, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, e.SelectLine(ctx, "Unit-A-Floor-1-Line-1"))
	require.Eventually(t, func() bool {
		_, opts := e.Snapshot()
		return len(opts[LevelOperation].Values) > 0
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, e.SelectOperation("Sewing"))
	require.NoError(t, e.SelectOperation("Cutting"))

	sel, opts := e.Snapshot()
	require.Equal(t, "Cutting", sel.Operation)
	require.Equal(t, []string{"Sewing", "Cutting"}, opts[LevelOperation].Values)
}
