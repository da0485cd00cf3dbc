// Package alerts owns the mutable alert collection for underperforming
// operators: multi-predicate filtering, forward-only status transitions and
// derived summary counts.
package alerts

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fabricpulse/dashboard/internal/metrics"
	"github.com/fabricpulse/dashboard/internal/rtms"
)

// Priority ranks an alert.
type Priority string

const (
	PriorityHigh   Priority = "HIGH"
	PriorityMedium Priority = "MEDIUM"
	PriorityLow    Priority = "LOW"
)

// Status is an alert's triage state. Transitions only move forward:
// unread → read → resolved. Resolving directly from unread is allowed,
// resolving twice is a no-op, and nothing ever returns to unread.
type Status string

const (
	StatusUnread   Status = "unread"
	StatusRead     Status = "read"
	StatusResolved Status = "resolved"
)

// FilterAll is the pass-through value for the priority and status filters.
const FilterAll = "all"

// Alert flags one underperforming operator.
type Alert struct {
	ID               string    `json:"id"`
	EmployeeCode     string    `json:"emp_code"`
	EmployeeName     string    `json:"emp_name"`
	UnitCode         string    `json:"unit_code"`
	FloorName        string    `json:"floor_name"`
	LineName         string    `json:"line_name"`
	Operation        string    `json:"operation"`
	Efficiency       float64   `json:"efficiency"`
	TargetEfficiency float64   `json:"target_efficiency"`
	Priority         Priority  `json:"priority"`
	Status           Status    `json:"status"`
	Timestamp        time.Time `json:"timestamp"`
}

// Counts is the summary of the whole collection, recomputed per call.
type Counts struct {
	Total        int `json:"total"`
	Unread       int `json:"unread"`
	HighPriority int `json:"high_priority"`
	Resolved     int `json:"resolved"`
}

// Engine holds the alert collection and the current filter predicates.
// Consumers read copies; the collection is never mutated in place by
// callers.
type Engine struct {
	mu       sync.RWMutex
	alerts   []Alert
	search   string
	priority string
	status   string
}

// NewEngine creates an empty alert engine with pass-through filters.
func NewEngine() *Engine {
	return &Engine{
		priority: FilterAll,
		status:   FilterAll,
	}
}

// SetSearchTerm sets the substring search predicate. Empty matches all.
func (e *Engine) SetSearchTerm(term string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.search = term
}

// SetPriorityFilter sets the priority predicate; FilterAll passes all.
func (e *Engine) SetPriorityFilter(p string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.priority = p
}

// SetStatusFilter sets the status predicate; FilterAll passes all.
func (e *Engine) SetStatusFilter(s string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.status = s
}

// Filtered returns the order-preserving subsequence of alerts for which
// every predicate holds. The search term matches case-insensitively
// against employee name, employee code, line name and operation.
func (e *Engine) Filtered() []Alert {
	e.mu.RLock()
	defer e.mu.RUnlock()

	term := strings.ToLower(strings.TrimSpace(e.search))
	out := make([]Alert, 0, len(e.alerts))
	for _, a := range e.alerts {
		if term != "" && !matchesSearch(a, term) {
			continue
		}
		if e.priority != "" && e.priority != FilterAll && string(a.Priority) != e.priority {
			continue
		}
		if e.status != "" && e.status != FilterAll && string(a.Status) != e.status {
			continue
		}
		out = append(out, a)
	}
	return out
}

func matchesSearch(a Alert, term string) bool {
	return strings.Contains(strings.ToLower(a.EmployeeName), term) ||
		strings.Contains(strings.ToLower(a.EmployeeCode), term) ||
		strings.Contains(strings.ToLower(a.LineName), term) ||
		strings.Contains(strings.ToLower(a.Operation), term)
}

// All returns a copy of the whole collection in insertion order.
func (e *Engine) All() []Alert {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]Alert(nil), e.alerts...)
}

// Counts recomputes the summary counts over the whole collection,
// independent of the current filters.
func (e *Engine) Counts() Counts {
	e.mu.RLock()
	defer e.mu.RUnlock()

	c := Counts{Total: len(e.alerts)}
	for _, a := range e.alerts {
		if a.Status == StatusUnread {
			c.Unread++
		}
		if a.Status == StatusResolved {
			c.Resolved++
		}
		if a.Priority == PriorityHigh {
			c.HighPriority++
		}
	}
	return c
}

// MarkAsRead moves an unread alert to read. Reading a read or resolved
// alert, or an unknown id, is a no-op.
func (e *Engine) MarkAsRead(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range e.alerts {
		if e.alerts[i].ID == id {
			if e.alerts[i].Status == StatusUnread {
				e.alerts[i].Status = StatusRead
				e.updateGaugesLocked()
			}
			return
		}
	}
}

// MarkAsResolved moves an alert to resolved from any state. Idempotent;
// unknown id is a no-op.
func (e *Engine) MarkAsResolved(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range e.alerts {
		if e.alerts[i].ID == id {
			if e.alerts[i].Status != StatusResolved {
				e.alerts[i].Status = StatusResolved
				e.updateGaugesLocked()
			}
			return
		}
	}
}

// Replace swaps in a freshly derived alert collection. Triage state of
// alerts that are still present (same employee, line and operation, still
// underperforming) survives the swap; everything else is dropped.
func (e *Engine) Replace(fresh []Alert) {
	e.mu.Lock()
	defer e.mu.Unlock()

	prev := make(map[string]Status, len(e.alerts))
	for _, a := range e.alerts {
		prev[alertKey(a)] = a.Status
	}
	for i := range fresh {
		if st, ok := prev[alertKey(fresh[i])]; ok {
			fresh[i].Status = st
		}
	}
	e.alerts = fresh
	e.updateGaugesLocked()
}

func alertKey(a Alert) string {
	return a.EmployeeCode + "|" + a.LineName + "|" + a.Operation
}

func (e *Engine) updateGaugesLocked() {
	var unread, read, resolved int
	for _, a := range e.alerts {
		switch a.Status {
		case StatusUnread:
			unread++
		case StatusRead:
			read++
		case StatusResolved:
			resolved++
		}
	}
	metrics.AlertsCurrent.WithLabelValues(string(StatusUnread)).Set(float64(unread))
	metrics.AlertsCurrent.WithLabelValues(string(StatusRead)).Set(float64(read))
	metrics.AlertsCurrent.WithLabelValues(string(StatusResolved)).Set(float64(resolved))
}

// FromRecords derives unread alerts from underperforming operator records.
// Priority falls out of how far below target the operator is: HIGH under
// 50%, MEDIUM under 60%, LOW otherwise.
func FromRecords(records []rtms.OperatorRecord, now time.Time) []Alert {
	out := make([]Alert, 0, len(records))
	for _, r := range records {
		out = append(out, Alert{
			ID:               uuid.NewString(),
			EmployeeCode:     r.EmployeeCode,
			EmployeeName:     r.EmployeeName,
			UnitCode:         r.UnitCode,
			FloorName:        r.FloorName,
			LineName:         r.LineName,
			Operation:        r.Operation,
			Efficiency:       r.Efficiency,
			TargetEfficiency: 100,
			Priority:         priorityForEfficiency(r.Efficiency),
			Status:           StatusUnread,
			Timestamp:        now,
		})
	}
	return out
}

// FromTransport converts wire alerts from the RTMS backend, defaulting
// missing priority and status fields.
func FromTransport(wire []rtms.Alert) []Alert {
	out := make([]Alert, 0, len(wire))
	for _, w := range wire {
		a := Alert{
			ID:               w.ID,
			EmployeeCode:     w.EmployeeCode,
			EmployeeName:     w.EmployeeName,
			UnitCode:         w.UnitCode,
			FloorName:        w.FloorName,
			LineName:         w.LineName,
			Operation:        w.Operation,
			Efficiency:       w.Efficiency,
			TargetEfficiency: w.TargetEfficiency,
			Priority:         Priority(w.Priority),
			Status:           Status(w.Status),
			Timestamp:        w.Timestamp,
		}
		if a.ID == "" {
			a.ID = uuid.NewString()
		}
		if a.Priority == "" {
			a.Priority = priorityForEfficiency(a.Efficiency)
		}
		if a.Status == "" {
			a.Status = StatusUnread
		}
		out = append(out, a)
	}
	return out
}

func priorityForEfficiency(efficiency float64) Priority {
	switch {
	case efficiency < 50:
		return PriorityHigh
	case efficiency < 60:
		return PriorityMedium
	default:
		return PriorityLow
	}
}
