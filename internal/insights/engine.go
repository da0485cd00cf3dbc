// Package insights turns batches of operator efficiency records into
// aggregate metrics, classified insights, a short-horizon prediction and
// actionable recommendations, and proxies free-text Q&A through the AI
// collaborator.
package insights

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/fabricpulse/dashboard/internal/ai"
	"github.com/fabricpulse/dashboard/internal/metrics"
	"github.com/fabricpulse/dashboard/internal/rtms"
)

// ErrAnalysisInProgress is returned when Analyze is called while another
// run is active. The newcomer is dropped, never queued: the active run's
// result will land shortly, and the 10-minute monitor guarantees a fresh
// run soon regardless.
var ErrAnalysisInProgress = errors.New("insights: analysis already in progress")

const (
	// maxInsights bounds the retained insight list (most recent first).
	maxInsights = 50

	// Efficiency thresholds. An operator under lowPerformerThreshold is
	// flagged for intervention; at or above topPerformerThreshold they are
	// meeting full target.
	lowPerformerThreshold = 70.0
	topPerformerThreshold = 100.0

	fallbackAnswer = "AI assistant is temporarily unavailable. Please try again shortly."

	questionFraming = "You are a garment production efficiency expert analyzing real-time " +
		"operator data from a sewing floor. Answer the supervisor's question concisely " +
		"and concretely.\n\nQuestion: %s"
)

// Kind classifies an insight.
type Kind string

const (
	KindEfficiency     Kind = "efficiency"
	KindPrediction     Kind = "prediction"
	KindRecommendation Kind = "recommendation"
	KindAlert          Kind = "alert"
)

// Priority ranks an insight's urgency.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Insight is a derived, timestamped, confidence-scored statement about the
// data. Immutable once created.
type Insight struct {
	ID          string         `json:"id"`
	Kind        Kind           `json:"kind"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Confidence  float64        `json:"confidence"`
	Priority    Priority       `json:"priority"`
	Timestamp   time.Time      `json:"timestamp"`
	Data        map[string]any `json:"data,omitempty"`
}

// Trend is the predicted efficiency direction.
type Trend string

const (
	TrendIncreasing Trend = "increasing"
	TrendDecreasing Trend = "decreasing"
	TrendStable     Trend = "stable"
)

// Prediction is a first-order heuristic forecast, not a statistical model.
// It is replaced wholesale on each analysis run.
type Prediction struct {
	Efficiency float64 `json:"efficiency"`
	Trend      Trend   `json:"trend"`
	Confidence float64 `json:"confidence"`
	Timeframe  string  `json:"timeframe"`
}

// Status is the engine's run status.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusError    Status = "error"
)

// RunState is the analysis lifecycle state, mutated only by Analyze.
type RunState struct {
	IsAnalyzing           bool   `json:"is_analyzing"`
	LastAnalysisTimestamp string `json:"last_analysis_timestamp,omitempty"`
	Status                Status `json:"status"`
}

// Summary is the aggregate view of the most recent record batch.
type Summary struct {
	AvgEfficiency  float64 `json:"avg_efficiency"`
	TotalOperators int     `json:"total_operators"`
	LowPerformers  int     `json:"low_performers"`
	HighPerformers int     `json:"high_performers"`
}

// Result is what one Analyze run produced.
type Result struct {
	Summary         Summary
	Insights        []Insight
	Prediction      Prediction
	Recommendations []string
	Underperformers []rtms.OperatorRecord
}

// Config configures the Engine.
type Config struct {
	Logger *slog.Logger
	Clock  clockwork.Clock
	AI     ai.Completer // optional; Q&A degrades to a fixed fallback when nil
}

func (c *Config) Validate() error {
	if c.Logger == nil {
		return errors.New("logger is required")
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	return nil
}

// Engine owns the insight list, prediction and run state. External
// consumers read snapshots; only Analyze and RequestSuggestions mutate.
type Engine struct {
	log   *slog.Logger
	clock clockwork.Clock
	ai    ai.Completer

	mu              sync.Mutex
	analyzing       bool
	runState        RunState
	summary         Summary
	insights        []Insight
	prediction      Prediction
	recommendations []string
}

// New creates an engine with run state reset to inactive and no insights.
func New(cfg *Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		log:      cfg.Logger,
		clock:    cfg.Clock,
		ai:       cfg.AI,
		runState: RunState{Status: StatusInactive},
	}, nil
}

// Analyze runs the pipeline over a record batch: aggregate insights, then a
// prediction, then recommendations. The run state is active for the
// duration; isAnalyzing is cleared on every exit path. A second Analyze
// arriving while one is active is dropped with ErrAnalysisInProgress.
func (e *Engine) Analyze(ctx context.Context, records []rtms.OperatorRecord) (res *Result, err error) {
	e.mu.Lock()
	if e.analyzing {
		e.mu.Unlock()
		metrics.AnalyzeRunsTotal.WithLabelValues("dropped").Inc()
		return nil, ErrAnalysisInProgress
	}
	e.analyzing = true
	e.runState.IsAnalyzing = true
	e.runState.Status = StatusActive
	e.mu.Unlock()

	started := e.clock.Now()
	defer func() {
		e.mu.Lock()
		e.analyzing = false
		e.runState.IsAnalyzing = false
		e.runState.LastAnalysisTimestamp = e.clock.Now().UTC().Format(time.RFC3339)
		if err != nil {
			e.runState.Status = StatusError
			metrics.AnalyzeRunsTotal.WithLabelValues("err").Inc()
		} else {
			e.runState.Status = StatusInactive
			metrics.AnalyzeRunsTotal.WithLabelValues("ok").Inc()
		}
		e.mu.Unlock()
		metrics.AnalyzeDuration.Observe(time.Since(started).Seconds())
	}()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	summary := summarize(records)
	newInsights := e.aggregateInsights(summary)
	prediction := predict(summary)
	recs := recommend(summary)

	var underperformers []rtms.OperatorRecord
	for _, r := range records {
		if r.Efficiency < lowPerformerThreshold {
			underperformers = append(underperformers, r)
		}
	}

	e.mu.Lock()
	e.summary = summary
	e.record(newInsights...)
	e.prediction = prediction
	e.recommendations = recs
	e.mu.Unlock()

	e.log.Debug("analysis complete",
		"records", len(records),
		"avgEfficiency", summary.AvgEfficiency,
		"lowPerformers", summary.LowPerformers,
		"highPerformers", summary.HighPerformers,
	)

	return &Result{
		Summary:         summary,
		Insights:        newInsights,
		Prediction:      prediction,
		Recommendations: recs,
		Underperformers: underperformers,
	}, nil
}

// AskQuestion forwards a free-text question to the AI collaborator with a
// fixed domain-expert framing. It never fails: transport problems resolve
// to a fixed fallback string.
func (e *Engine) AskQuestion(ctx context.Context, question string) string {
	if e.ai == nil {
		return fallbackAnswer
	}
	answer, err := e.ai.Completion(ctx, fmt.Sprintf(questionFraming, question), 500, 0.7)
	if err != nil {
		e.log.Warn("ai question failed", "error", err)
		return fallbackAnswer
	}
	return answer
}

// RequestSuggestions asks the AI collaborator for ranked operation
// suggestions and records each as an efficiency insight, with priority
// derived from the suggestion's confidence. A transport failure yields an
// empty list, never an error.
func (e *Engine) RequestSuggestions(ctx context.Context, contextText, query string) []Insight {
	if e.ai == nil {
		return nil
	}
	suggestions, err := e.ai.SuggestOperations(ctx, contextText, query)
	if err != nil {
		e.log.Warn("ai suggestions failed", "error", err)
		return nil
	}

	now := e.clock.Now().UTC()
	out := make([]Insight, 0, len(suggestions))
	for _, s := range suggestions {
		out = append(out, Insight{
			ID:          uuid.NewString(),
			Kind:        KindEfficiency,
			Title:       "Suggested operation",
			Description: s.Label,
			Confidence:  s.Confidence,
			Priority:    priorityForConfidence(s.Confidence),
			Timestamp:   now,
		})
	}

	e.mu.Lock()
	e.record(out...)
	e.mu.Unlock()
	return out
}

// SummarizeInsights asks the AI collaborator for a short digest of the
// retained insight list. Returns an empty string when there is nothing to
// summarize or no collaborator is wired; transport failures degrade the
// same way.
func (e *Engine) SummarizeInsights(ctx context.Context) string {
	if e.ai == nil {
		return ""
	}

	e.mu.Lock()
	lines := make([]string, 0, len(e.insights))
	for _, ins := range e.insights {
		lines = append(lines, ins.Title+": "+ins.Description)
	}
	e.mu.Unlock()
	if len(lines) == 0 {
		return ""
	}

	digest, err := e.ai.Summarize(ctx, strings.Join(lines, "\n"), "short")
	if err != nil {
		e.log.Warn("ai summarize failed", "error", err)
		return ""
	}
	return digest
}

// Insights returns a copy of the retained insight list, most recent first.
func (e *Engine) Insights() []Insight {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Insight(nil), e.insights...)
}

// Prediction returns the latest prediction.
func (e *Engine) Prediction() Prediction {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.prediction
}

// Summary returns the latest aggregate summary.
func (e *Engine) Summary() Summary {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.summary
}

// Recommendations returns the latest recommendation list.
func (e *Engine) Recommendations() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.recommendations...)
}

// RunState returns the current analysis lifecycle state.
func (e *Engine) RunState() RunState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.runState
}

// record prepends insights to the retained list, newest first, capped.
// Callers must hold e.mu.
func (e *Engine) record(ins ...Insight) {
	if len(ins) == 0 {
		return
	}
	e.insights = append(append([]Insight(nil), ins...), e.insights...)
	if len(e.insights) > maxInsights {
		e.insights = e.insights[:maxInsights]
	}
}

// aggregateInsights emits the deterministic insights for a summary: one
// efficiency insight always, plus a critical alert insight when any
// operator is under the intervention threshold.
func (e *Engine) aggregateInsights(s Summary) []Insight {
	if s.TotalOperators == 0 {
		return nil
	}
	now := e.clock.Now().UTC()

	effPriority := PriorityMedium
	if s.AvgEfficiency < 80 {
		effPriority = PriorityHigh
	}
	out := []Insight{{
		ID:    uuid.NewString(),
		Kind:  KindEfficiency,
		Title: "Line efficiency summary",
		Description: fmt.Sprintf("Average efficiency is %.1f%% across %d operators: %d below %.0f%%, %d at or above %.0f%%.",
			s.AvgEfficiency, s.TotalOperators, s.LowPerformers, lowPerformerThreshold, s.HighPerformers, topPerformerThreshold),
		Confidence: 0.95,
		Priority:   effPriority,
		Timestamp:  now,
		Data: map[string]any{
			"avg_efficiency":  s.AvgEfficiency,
			"low_performers":  s.LowPerformers,
			"high_performers": s.HighPerformers,
		},
	}}

	if s.LowPerformers > 0 {
		out = append(out, Insight{
			ID:          uuid.NewString(),
			Kind:        KindAlert,
			Title:       "Underperforming operators",
			Description: fmt.Sprintf("%d operators are below %.0f%% efficiency and require intervention.", s.LowPerformers, lowPerformerThreshold),
			Confidence:  1.0,
			Priority:    PriorityCritical,
			Timestamp:   now,
			Data:        map[string]any{"low_performers": s.LowPerformers},
		})
	}
	return out
}

// summarize computes the aggregate metrics for a batch. An empty batch is a
// defined zero-state, not an error.
func summarize(records []rtms.OperatorRecord) Summary {
	s := Summary{TotalOperators: len(records)}
	if len(records) == 0 {
		return s
	}
	var sum float64
	for _, r := range records {
		sum += r.Efficiency
		if r.Efficiency < lowPerformerThreshold {
			s.LowPerformers++
		}
		if r.Efficiency >= topPerformerThreshold {
			s.HighPerformers++
		}
	}
	s.AvgEfficiency = sum / float64(len(records))
	return s
}

// predict derives the short-horizon trend forecast from the batch average.
func predict(s Summary) Prediction {
	if s.TotalOperators == 0 {
		return Prediction{Trend: TrendStable}
	}

	trend := TrendStable
	delta := 0.0
	switch {
	case s.AvgEfficiency > 85:
		trend = TrendIncreasing
		delta = 5
	case s.AvgEfficiency < 70:
		trend = TrendDecreasing
		delta = -5
	}

	return Prediction{
		Efficiency: clamp(s.AvgEfficiency+delta, 0, 100),
		Trend:      trend,
		Confidence: 0.85,
		Timeframe:  "next monitoring cycle",
	}
}

// recommend derives the advisory text for a summary. The list is
// order-stable and replaced wholesale on each run.
func recommend(s Summary) []string {
	var recs []string
	if s.LowPerformers > 0 {
		recs = append(recs,
			fmt.Sprintf("Provide focused training for %d underperforming operators", s.LowPerformers),
			"Review machine maintenance on the affected lines",
		)
	}
	if s.TotalOperators > 0 && s.AvgEfficiency < 80 {
		recs = append(recs,
			"Rebalance the workflow across operations to lift average efficiency",
			"Consider an incentive program for operators meeting target",
		)
	}
	if s.LowPerformers > 0 {
		recs = append(recs, "Schedule supervisor intervention for operators below the alert threshold")
	}
	return recs
}

func priorityForConfidence(confidence float64) Priority {
	switch {
	case confidence > 0.8:
		return PriorityHigh
	case confidence > 0.6:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
