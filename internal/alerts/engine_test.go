package alerts

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fabricpulse/dashboard/internal/rtms"
)

func seedAlerts() []Alert {
	ts := time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)
	return []Alert{
		{ID: "a1", EmployeeCode: "EMP001", EmployeeName: "Asha Verma", LineName: "Line-1", Operation: "Sewing", Efficiency: 45, TargetEfficiency: 100, Priority: PriorityHigh, Status: StatusUnread, Timestamp: ts},
		{ID: "a2", EmployeeCode: "EMP002", EmployeeName: "Binod Rai", LineName: "Line-2", Operation: "Cutting", Efficiency: 55, TargetEfficiency: 100, Priority: PriorityMedium, Status: StatusUnread, Timestamp: ts},
		{ID: "a3", EmployeeCode: "EMP003", EmployeeName: "Chandra Devi", LineName: "Line-1", Operation: "Packing", Efficiency: 65, TargetEfficiency: 100, Priority: PriorityLow, Status: StatusUnread, Timestamp: ts},
	}
}

func newSeededEngine() *Engine {
	e := NewEngine()
	e.Replace(seedAlerts())
	return e
}

func TestAlertEngine_Filtered_Search(t *testing.T) {
	t.Parallel()

	e := newSeededEngine()

	e.SetSearchTerm("EMP001")
	got := e.Filtered()
	require.Len(t, got, 1)
	require.Equal(t, "EMP001", got[0].EmployeeCode)

	// Case-insensitive, matches name too.
	e.SetSearchTerm("binod")
	got = e.Filtered()
	require.Len(t, got, 1)
	require.Equal(t, "EMP002", got[0].EmployeeCode)

	// Line name matches multiple alerts, insertion order preserved.
	e.SetSearchTerm("line-1")
	got = e.Filtered()
	require.Len(t, got, 2)
	require.Equal(t, "EMP001", got[0].EmployeeCode)
	require.Equal(t, "EMP003", got[1].EmployeeCode)

	// Empty term matches everything.
	e.SetSearchTerm("")
	require.Len(t, e.Filtered(), 3)
}

func TestAlertEngine_Filtered_Conjunction(t *testing.T) {
	t.Parallel()

	e := newSeededEngine()
	e.MarkAsRead("a1")

	e.SetSearchTerm("line-1")
	e.SetPriorityFilter(string(PriorityHigh))
	e.SetStatusFilter(string(StatusRead))

	got := e.Filtered()
	require.Len(t, got, 1)
	require.Equal(t, "a1", got[0].ID)

	// Tightening any predicate to a non-matching value empties the view.
	e.SetStatusFilter(string(StatusUnread))
	require.Empty(t, e.Filtered())

	// FilterAll passes everything through again.
	e.SetSearchTerm("")
	e.SetPriorityFilter(FilterAll)
	e.SetStatusFilter(FilterAll)
	require.Len(t, e.Filtered(), 3)
}

func TestAlertEngine_StatusTransitions(t *testing.T) {
	t.Parallel()

	e := newSeededEngine()

	e.MarkAsRead("a1")
	require.Equal(t, StatusRead, e.All()[0].Status)

	// Reading a read alert is a no-op.
	e.MarkAsRead("a1")
	require.Equal(t, StatusRead, e.All()[0].Status)

	e.MarkAsResolved("a1")
	require.Equal(t, StatusResolved, e.All()[0].Status)

	// Nothing moves a resolved alert backwards.
	e.MarkAsRead("a1")
	require.Equal(t, StatusResolved, e.All()[0].Status)
	e.MarkAsResolved("a1")
	require.Equal(t, StatusResolved, e.All()[0].Status)

	// Resolving straight from unread is allowed.
	e.MarkAsResolved("a2")
	require.Equal(t, StatusResolved, e.All()[1].Status)

	// Unknown ids are ignored.
	e.MarkAsRead("nope")
	e.MarkAsResolved("nope")
	require.Equal(t, StatusUnread, e.All()[2].Status)
}

func TestAlertEngine_Counts(t *testing.T) {
	t.Parallel()

	e := newSeededEngine()
	require.Equal(t, Counts{Total: 3, Unread: 3, HighPriority: 1}, e.Counts())

	e.MarkAsRead("a1")
	e.MarkAsResolved("a2")
	require.Equal(t, Counts{Total: 3, Unread: 1, HighPriority: 1, Resolved: 1}, e.Counts())

	// Counts ignore the current filters.
	e.SetSearchTerm("EMP003")
	require.Equal(t, Counts{Total: 3, Unread: 1, HighPriority: 1, Resolved: 1}, e.Counts())
}

func TestAlertEngine_Replace_PreservesTriage(t *testing.T) {
	t.Parallel()

	e := newSeededEngine()
	e.MarkAsRead("a1")
	e.MarkAsResolved("a2")

	// EMP001 and EMP002 are still underperforming in the fresh batch;
	// EMP003 recovered and EMP004 is new.
	now := time.Date(2026, 8, 30, 9, 10, 0, 0, time.UTC)
	fresh := FromRecords([]rtms.OperatorRecord{
		{EmployeeCode: "EMP001", EmployeeName: "Asha Verma", LineName: "Line-1", Operation: "Sewing", Efficiency: 48},
		{EmployeeCode: "EMP002", EmployeeName: "Binod Rai", LineName: "Line-2", Operation: "Cutting", Efficiency: 57},
		{EmployeeCode: "EMP004", EmployeeName: "Divya Nair", LineName: "Line-3", Operation: "Finishing", Efficiency: 62},
	}, now)
	e.Replace(fresh)

	all := e.All()
	require.Len(t, all, 3)
	require.Equal(t, StatusRead, all[0].Status)
	require.Equal(t, StatusResolved, all[1].Status)
	require.Equal(t, StatusUnread, all[2].Status)
}

func TestFromRecords_PriorityThresholds(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	out := FromRecords([]rtms.OperatorRecord{
		{EmployeeCode: "EMP001", Efficiency: 49.9},
		{EmployeeCode: "EMP002", Efficiency: 50},
		{EmployeeCode: "EMP003", Efficiency: 59.9},
		{EmployeeCode: "EMP004", Efficiency: 60},
	}, now)

	require.Len(t, out, 4)
	require.Equal(t, PriorityHigh, out[0].Priority)
	require.Equal(t, PriorityMedium, out[1].Priority)
	require.Equal(t, PriorityMedium, out[2].Priority)
	require.Equal(t, PriorityLow, out[3].Priority)

	for _, a := range out {
		require.NotEmpty(t, a.ID)
		require.Equal(t, StatusUnread, a.Status)
		require.Equal(t, 100.0, a.TargetEfficiency)
		require.Equal(t, now, a.Timestamp)
	}
}

func TestFromTransport_Defaults(t *testing.T) {
	t.Parallel()

	out := FromTransport([]rtms.Alert{
		{EmployeeCode: "EMP001", Efficiency: 45},
		{ID: "keep", EmployeeCode: "EMP002", Efficiency: 72, Priority: "LOW", Status: "read"},
	})

	require.Len(t, out, 2)
	require.NotEmpty(t, out[0].ID)
	require.Equal(t, PriorityHigh, out[0].Priority)
	require.Equal(t, StatusUnread, out[0].Status)

	require.Equal(t, "keep", out[1].ID)
	require.Equal(t, PriorityLow, out[1].Priority)
	require.Equal(t, StatusRead, out[1].Status)
}

func TestAlertEngine_EmptyCollection(t *testing.T) {
	t.Parallel()

	e := NewEngine()
	require.Empty(t, e.Filtered())
	require.Equal(t, Counts{}, e.Counts())

	// Mutations on an empty collection are no-ops.
	e.MarkAsRead("a1")
	e.MarkAsResolved("a1")
	require.Empty(t, e.All())
}
