// Package cascade owns the four-level production-location filter hierarchy:
// unit → floor → line → operation. A selection at one level gates which
// options are valid below it; selecting a new value invalidates everything
// beneath, and only the response belonging to the most-recently-issued
// option reload for a level may mutate that level's state.
package cascade

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/fabricpulse/dashboard/internal/metrics"
)

// ErrInvalidCascadeState is returned when a selection is attempted at a
// level whose ancestor selection is unset. The UI is expected to prevent
// this; hitting it indicates a caller bug, not a data condition.
var ErrInvalidCascadeState = errors.New("cascade: ancestor selection is unset")

// Level identifies one tier of the location hierarchy, ordered from the
// top down.
type Level int

const (
	LevelUnit Level = iota
	LevelFloor
	LevelLine
	LevelOperation

	numLevels
)

func (l Level) String() string {
	switch l {
	case LevelUnit:
		return "unit"
	case LevelFloor:
		return "floor"
	case LevelLine:
		return "line"
	case LevelOperation:
		return "operation"
	}
	return "unknown"
}

// Selection is the current value at each level. An empty string means
// unselected. Invariant: a level is non-empty only if every level above it
// is non-empty.
type Selection struct {
	Unit      string `json:"unit"`
	Floor     string `json:"floor"`
	Line      string `json:"line"`
	Operation string `json:"operation"`
}

// OptionSet is the available values at one level plus its loading flag.
// Options are only meaningful with respect to the ancestor selection they
// were fetched under; the engine clears them whenever an ancestor changes.
type OptionSet struct {
	Values  []string `json:"values"`
	Loading bool     `json:"loading"`
}

// OptionsProvider fetches the available values per level. *rtms.Client
// satisfies this.
type OptionsProvider interface {
	Units(ctx context.Context) ([]string, error)
	Floors(ctx context.Context, unitCode string) ([]string, error)
	Lines(ctx context.Context, unitCode, floorName string) ([]string, error)
	Operations(ctx context.Context, unitCode, floorName, lineName string) ([]string, error)
}

// Config configures the Engine.
type Config struct {
	Logger   *slog.Logger
	Provider OptionsProvider
}

func (c *Config) Validate() error {
	if c.Logger == nil {
		return errors.New("logger is required")
	}
	if c.Provider == nil {
		return errors.New("options provider is required")
	}
	return nil
}

// Engine keeps the selection and per-level option sets consistent. All
// state transitions happen under one mutex, so a reader can never observe
// a child selection paired with a stale parent. Option reloads run
// asynchronously; each carries the generation it was issued under, and a
// result whose generation no longer matches is discarded.
type Engine struct {
	log      *slog.Logger
	provider OptionsProvider

	mu      sync.Mutex
	sel     Selection
	options [numLevels]OptionSet
	gen     [numLevels]uint64
	cancel  [numLevels]context.CancelFunc
}

// New creates a new cascade engine with empty selection and options.
func New(cfg *Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		log:      cfg.Logger,
		provider: cfg.Provider,
	}, nil
}

// Snapshot returns a copy of the current selection and option sets.
func (e *Engine) Snapshot() (Selection, [4]OptionSet) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var opts [4]OptionSet
	for l := LevelUnit; l < numLevels; l++ {
		opts[l] = OptionSet{
			Values:  append([]string(nil), e.options[l].Values...),
			Loading: e.options[l].Loading,
		}
	}
	return e.sel, opts
}

// LoadUnitOptions fetches the top-level unit options. It has no parent
// dependency and can be called at any time.
func (e *Engine) LoadUnitOptions(ctx context.Context) {
	e.mu.Lock()
	gen, rctx := e.beginReloadLocked(ctx, LevelUnit)
	e.mu.Unlock()

	go e.reload(rctx, LevelUnit, gen, func(ctx context.Context) ([]string, error) {
		return e.provider.Units(ctx)
	})
}

// SelectUnit sets the unit selection, clearing everything below it. A
// non-empty unit triggers a reload of the floor options; clearing the unit
// leaves them empty.
func (e *Engine) SelectUnit(ctx context.Context, unit string) {
	e.mu.Lock()
	e.sel.Unit = unit
	e.clearBelowLocked(LevelUnit)
	if unit == "" {
		e.mu.Unlock()
		return
	}
	gen, rctx := e.beginReloadLocked(ctx, LevelFloor)
	e.mu.Unlock()

	go e.reload(rctx, LevelFloor, gen, func(ctx context.Context) ([]string, error) {
		return e.provider.Floors(ctx, unit)
	})
}

// SelectFloor sets the floor selection. It requires a unit to be selected.
func (e *Engine) SelectFloor(ctx context.Context, floor string) error {
	e.mu.Lock()
	if e.sel.Unit == "" {
		e.mu.Unlock()
		return ErrInvalidCascadeState
	}
	unit := e.sel.Unit
	e.sel.Floor = floor
	e.clearBelowLocked(LevelFloor)
	if floor == "" {
		e.mu.Unlock()
		return nil
	}
	gen, rctx := e.beginReloadLocked(ctx, LevelLine)
	e.mu.Unlock()

	go e.reload(rctx, LevelLine, gen, func(ctx context.Context) ([]string, error) {
		return e.provider.Lines(ctx, unit, floor)
	})
	return nil
}

// SelectLine sets the line selection. It requires a floor to be selected.
func (e *Engine) SelectLine(ctx context.Context, line string) error {
	e.mu.Lock()
	if e.sel.Floor == "" {
		e.mu.Unlock()
		return ErrInvalidCascadeState
	}
	unit, floor := e.sel.Unit, e.sel.Floor
	e.sel.Line = line
	e.clearBelowLocked(LevelLine)
	if line == "" {
		e.mu.Unlock()
		return nil
	}
	gen, rctx := e.beginReloadLocked(ctx, LevelOperation)
	e.mu.Unlock()

	go e.reload(rctx, LevelOperation, gen, func(ctx context.Context) ([]string, error) {
		return e.provider.Operations(ctx, unit, floor, line)
	})
	return nil
}

// SelectOperation sets the operation selection. It requires a line to be
// selected and cascades no further.
func (e *Engine) SelectOperation(operation string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sel.Line == "" {
		return ErrInvalidCascadeState
	}
	e.sel.Operation = operation
	return nil
}

// clearBelowLocked resets the selection and option set of every level under
// parent, bumps their generations so any in-flight reload result for them
// is discarded on arrival, and cancels those fetches outright.
func (e *Engine) clearBelowLocked(parent Level) {
	for l := parent + 1; l < numLevels; l++ {
		switch l {
		case LevelFloor:
			e.sel.Floor = ""
		case LevelLine:
			e.sel.Line = ""
		case LevelOperation:
			e.sel.Operation = ""
		}
		e.options[l] = OptionSet{}
		e.gen[l]++
		if e.cancel[l] != nil {
			e.cancel[l]()
			e.cancel[l] = nil
		}
	}
}

// beginReloadLocked opens a new request generation for a level, marks it
// loading, and returns the generation plus the context the fetch should run
// under. Any previous in-flight fetch for the level is cancelled.
func (e *Engine) beginReloadLocked(ctx context.Context, l Level) (uint64, context.Context) {
	e.gen[l]++
	e.options[l] = OptionSet{Loading: true}
	if e.cancel[l] != nil {
		e.cancel[l]()
	}
	rctx, cancel := context.WithCancel(ctx)
	e.cancel[l] = cancel
	return e.gen[l], rctx
}

// reload runs a fetch and applies its result if the level's generation is
// still the one the fetch was issued under. A failed fetch leaves the
// option set empty; the UI shows an empty list, not an error.
func (e *Engine) reload(ctx context.Context, l Level, gen uint64, fetch func(context.Context) ([]string, error)) {
	values, err := fetch(ctx)

	e.mu.Lock()
	defer e.mu.Unlock()

	if gen != e.gen[l] {
		metrics.CascadeStaleResponsesTotal.WithLabelValues(l.String()).Inc()
		e.log.Debug("discarding stale option response", "level", l.String(), "generation", gen, "current", e.gen[l])
		return
	}

	// This fetch is the current one; release its context.
	if e.cancel[l] != nil {
		e.cancel[l]()
		e.cancel[l] = nil
	}

	if err != nil {
		e.options[l] = OptionSet{}
		metrics.CascadeReloadsTotal.WithLabelValues(l.String(), "err").Inc()
		e.log.Warn("option reload failed", "level", l.String(), "error", err)
		return
	}

	e.options[l] = OptionSet{Values: values}
	metrics.CascadeReloadsTotal.WithLabelValues(l.String(), "ok").Inc()
}
