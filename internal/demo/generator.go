// Package demo is a synthetic stand-in for the RTMS backend, used when the
// service runs without a real production floor behind it. It serves the
// same surface the real client does: filter options, record batches and
// alert rows.
package demo

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"

	"github.com/fabricpulse/dashboard/internal/rtms"
)

const (
	unitsPerFactory   = 4
	floorsPerUnit     = 3
	linesPerFloor     = 4
	operatorsPerBatch = 40

	// Typical sewing-floor efficiency clusters around 88 with a wide
	// spread; roughly one in five operators lands well below target.
	baseEfficiency   = 88.0
	efficiencySpread = 15.0
	slumpFraction    = 0.2
)

var operations = []string{"Cutting", "Sewing", "Finishing", "Packing", "Quality Check"}

// Source generates a stable location hierarchy and randomized operator
// batches. Safe for concurrent use.
type Source struct {
	mu    sync.Mutex
	faker *gofakeit.Faker
	rnd   *rand.Rand
	now   func() time.Time
}

// NewSource creates a demo source. The seed fixes the generated names so
// repeated runs are comparable; pass 0 for a time-derived seed.
func NewSource(seed int64) *Source {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Source{
		faker: gofakeit.New(seed),
		rnd:   rand.New(rand.NewSource(seed)),
		now:   time.Now,
	}
}

// Units returns the unit codes.
func (s *Source) Units(ctx context.Context) ([]string, error) {
	out := make([]string, 0, unitsPerFactory)
	for i := 0; i < unitsPerFactory; i++ {
		out = append(out, fmt.Sprintf("Unit-%c", 'A'+i))
	}
	return out, nil
}

// Floors returns the floor names for a unit.
func (s *Source) Floors(ctx context.Context, unitCode string) ([]string, error) {
	out := make([]string, 0, floorsPerUnit)
	for i := 1; i <= floorsPerUnit; i++ {
		out = append(out, fmt.Sprintf("Floor-%d", i))
	}
	return out, nil
}

// Lines returns the line names for a unit and floor.
func (s *Source) Lines(ctx context.Context, unitCode, floorName string) ([]string, error) {
	out := make([]string, 0, linesPerFloor)
	for i := 1; i <= linesPerFloor; i++ {
		out = append(out, fmt.Sprintf("Line-%d", i))
	}
	return out, nil
}

// Operations returns the operation names for a line.
func (s *Source) Operations(ctx context.Context, unitCode, floorName, lineName string) ([]string, error) {
	return append([]string(nil), operations...), nil
}

// Analyze generates a fresh operator batch scoped to the query and the
// aggregates the real backend would compute over it.
func (s *Source) Analyze(ctx context.Context, q rtms.Query) (*rtms.AnalyzeResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := operatorsPerBatch
	if q.Limit > 0 && q.Limit < n {
		n = q.Limit
	}

	ts := s.now().UTC()
	records := make([]rtms.OperatorRecord, 0, n)
	var effSum float64
	var production, target int
	for i := 0; i < n; i++ {
		r := s.recordLocked(i, q, ts)
		effSum += r.Efficiency
		production += r.Production
		target += r.Target
		records = append(records, r)
	}

	resp := &rtms.AnalyzeResponse{
		TotalProduction:   production,
		TotalTarget:       target,
		Operators:         records,
		RecordsAnalyzed:   len(records),
		AnalysisTimestamp: ts.Format(time.RFC3339),
	}
	if len(records) > 0 {
		resp.OverallEfficiency = effSum / float64(len(records))
	}
	return resp, nil
}

// Alerts generates the alert rows the backend would derive from the
// current batch: one per operator below 70% efficiency.
func (s *Source) Alerts(ctx context.Context, q rtms.Query) ([]rtms.Alert, error) {
	resp, err := s.Analyze(ctx, q)
	if err != nil {
		return nil, err
	}

	var out []rtms.Alert
	for _, r := range resp.Operators {
		if r.Efficiency >= 70 {
			continue
		}
		out = append(out, rtms.Alert{
			ID:               uuid.NewString(),
			EmployeeCode:     r.EmployeeCode,
			EmployeeName:     r.EmployeeName,
			UnitCode:         r.UnitCode,
			FloorName:        r.FloorName,
			LineName:         r.LineName,
			Operation:        r.Operation,
			Efficiency:       r.Efficiency,
			TargetEfficiency: 100,
			Timestamp:        s.now().UTC(),
		})
	}
	return out, nil
}

// Ping always succeeds.
func (s *Source) Ping(ctx context.Context) error { return nil }

func (s *Source) recordLocked(i int, q rtms.Query, ts time.Time) rtms.OperatorRecord {
	unit := q.UnitCode
	if unit == "" {
		unit = fmt.Sprintf("Unit-%c", 'A'+s.rnd.Intn(unitsPerFactory))
	}
	floor := q.FloorName
	if floor == "" {
		floor = fmt.Sprintf("Floor-%d", 1+s.rnd.Intn(floorsPerUnit))
	}
	line := q.LineName
	if line == "" {
		line = fmt.Sprintf("Line-%d", 1+s.rnd.Intn(linesPerFloor))
	}
	operation := q.Operation
	if operation == "" {
		operation = operations[s.rnd.Intn(len(operations))]
	}

	eff := baseEfficiency + (s.rnd.Float64()*2-1)*efficiencySpread
	if s.rnd.Float64() < slumpFraction {
		eff = 40 + s.rnd.Float64()*28
	}
	if eff < 0 {
		eff = 0
	}

	target := 100 + s.rnd.Intn(50)
	return rtms.OperatorRecord{
		EmployeeCode: fmt.Sprintf("EMP%03d", i+1),
		EmployeeName: s.faker.Name(),
		UnitCode:     unit,
		FloorName:    floor,
		LineName:     line,
		Operation:    operation,
		OperationSeq: fmt.Sprintf("%d", 10+s.rnd.Intn(90)),
		Efficiency:   eff,
		Production:   int(float64(target) * eff / 100),
		Target:       target,
		Timestamp:    ts.Format(time.RFC3339),
	}
}
