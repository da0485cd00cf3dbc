package demo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fabricpulse/dashboard/internal/rtms"
)

func TestSource_Hierarchy(t *testing.T) {
	t.Parallel()

	s := NewSource(1)
	ctx := context.Background()

	units, err := s.Units(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"Unit-A", "Unit-B", "Unit-C", "Unit-D"}, units)

	floors, err := s.Floors(ctx, "Unit-A")
	require.NoError(t, err)
	require.Len(t, floors, floorsPerUnit)

	lines, err := s.Lines(ctx, "Unit-A", "Floor-1")
	require.NoError(t, err)
	require.Len(t, lines, linesPerFloor)

	ops, err := s.Operations(ctx, "Unit-A", "Floor-1", "Line-1")
	require.NoError(t, err)
	require.Equal(t, operations, ops)
}

func TestSource_Analyze_RespectsScope(t *testing.T) {
	t.Parallel()

	s := NewSource(1)
	q := rtms.Query{UnitCode: "Unit-B", FloorName: "Floor-2", LineName: "Line-3", Operation: "Sewing", Limit: 10}

	resp, err := s.Analyze(context.Background(), q)
	require.NoError(t, err)
	require.Len(t, resp.Operators, 10)
	for _, r := range resp.Operators {
		require.Equal(t, "Unit-B", r.UnitCode)
		require.Equal(t, "Floor-2", r.FloorName)
		require.Equal(t, "Line-3", r.LineName)
		require.Equal(t, "Sewing", r.Operation)
		require.GreaterOrEqual(t, r.Efficiency, 0.0)
		require.NotEmpty(t, r.EmployeeName)
	}
	require.Equal(t, len(resp.Operators), resp.RecordsAnalyzed)
	require.Positive(t, resp.OverallEfficiency)
}

func TestSource_Analyze_DeterministicWithSeed(t *testing.T) {
	t.Parallel()

	a, err := NewSource(42).Analyze(context.Background(), rtms.Query{})
	require.NoError(t, err)
	b, err := NewSource(42).Analyze(context.Background(), rtms.Query{})
	require.NoError(t, err)

	require.Equal(t, len(a.Operators), len(b.Operators))
	for i := range a.Operators {
		require.Equal(t, a.Operators[i].EmployeeName, b.Operators[i].EmployeeName)
		require.Equal(t, a.Operators[i].Efficiency, b.Operators[i].Efficiency)
	}
}

func TestSource_Alerts_OnlyUnderperformers(t *testing.T) {
	t.Parallel()

	s := NewSource(7)
	alerts, err := s.Alerts(context.Background(), rtms.Query{})
	require.NoError(t, err)
	for _, a := range alerts {
		require.Less(t, a.Efficiency, 70.0)
		require.NotEmpty(t, a.ID)
	}
}
