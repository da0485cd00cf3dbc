package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/fabricpulse/dashboard/internal/alerts"
	"github.com/fabricpulse/dashboard/internal/cascade"
	"github.com/fabricpulse/dashboard/internal/insights"
	"github.com/fabricpulse/dashboard/internal/rtms"
)

const (
	analyzeTimeout = 60 * time.Second
	askTimeout     = 60 * time.Second
	pingTimeout    = 5 * time.Second
)

// QueryForSelection maps the current filter selection onto a record query.
// Unselected levels widen the scope.
func QueryForSelection(sel cascade.Selection) rtms.Query {
	return rtms.Query{
		UnitCode:  sel.Unit,
		FloorName: sel.Floor,
		LineName:  sel.Line,
		Operation: sel.Operation,
	}
}

type envelope struct {
	Status string `json:"status"`
	Data   any    `json:"data,omitempty"`
	Error  string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(envelope{Status: "success", Data: data})
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(envelope{Status: "error", Error: msg})
}

type optionsView struct {
	Units      cascade.OptionSet `json:"units"`
	Floors     cascade.OptionSet `json:"floors"`
	Lines      cascade.OptionSet `json:"lines"`
	Operations cascade.OptionSet `json:"operations"`
}

type stateView struct {
	Selection       cascade.Selection   `json:"selection"`
	Options         optionsView         `json:"options"`
	Summary         insights.Summary    `json:"summary"`
	Insights        []insights.Insight  `json:"insights"`
	Prediction      insights.Prediction `json:"prediction"`
	Recommendations []string            `json:"recommendations"`
	RunState        insights.RunState   `json:"run_state"`
	AlertCounts     alerts.Counts       `json:"alert_counts"`
}

// HandleState returns the full dashboard state snapshot the UI renders
// from. Read-only; safe to poll.
func (a *App) HandleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	sel, opts := a.cascade.Snapshot()
	writeJSON(w, http.StatusOK, stateView{
		Selection: sel,
		Options: optionsView{
			Units:      opts[cascade.LevelUnit],
			Floors:     opts[cascade.LevelFloor],
			Lines:      opts[cascade.LevelLine],
			Operations: opts[cascade.LevelOperation],
		},
		Summary:         a.insights.Summary(),
		Insights:        a.insights.Insights(),
		Prediction:      a.insights.Prediction(),
		Recommendations: a.insights.Recommendations(),
		RunState:        a.insights.RunState(),
		AlertCounts:     a.alerts.Counts(),
	})
}

type selectRequest struct {
	Level string `json:"level"`
	Value string `json:"value"`
}

// HandleSelect applies a filter selection at one level. An empty value
// clears the level; selecting under an unset ancestor is a conflict.
func (a *App) HandleSelect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req selectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	// Option reloads outlive this request; the cascade engine cancels them
	// itself when the selection changes again.
	ctx := context.WithoutCancel(r.Context())

	var err error
	switch req.Level {
	case "unit":
		a.cascade.SelectUnit(ctx, req.Value)
	case "floor":
		err = a.cascade.SelectFloor(ctx, req.Value)
	case "line":
		err = a.cascade.SelectLine(ctx, req.Value)
	case "operation":
		err = a.cascade.SelectOperation(req.Value)
	default:
		writeError(w, http.StatusBadRequest, "unknown level: "+req.Level)
		return
	}
	if err != nil {
		if errors.Is(err, cascade.ErrInvalidCascadeState) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	sel, _ := a.cascade.Snapshot()
	writeJSON(w, http.StatusOK, sel)
}

// HandleAnalyze fetches the record batch for the current selection and
// runs an analysis over it. Only one run may be active at a time.
func (a *App) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), analyzeTimeout)
	defer cancel()

	sel, _ := a.cascade.Snapshot()
	resp, err := a.source.Analyze(ctx, QueryForSelection(sel))
	if err != nil {
		a.logger.Error("record fetch failed", "error", err)
		writeError(w, http.StatusBadGateway, "record fetch failed")
		return
	}

	res, err := a.insights.Analyze(ctx, resp.Operators)
	if err != nil {
		if errors.Is(err, insights.ErrAnalysisInProgress) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		a.logger.Error("analysis failed", "error", err)
		writeError(w, http.StatusInternalServerError, "analysis failed")
		return
	}

	a.alerts.Replace(alerts.FromRecords(res.Underperformers, a.clock.Now().UTC()))

	writeJSON(w, http.StatusOK, map[string]any{
		"summary":         res.Summary,
		"insights":        res.Insights,
		"prediction":      res.Prediction,
		"recommendations": res.Recommendations,
		"operators":       resp.Operators,
	})
}

type askRequest struct {
	Question string `json:"question"`
}

// HandleAsk forwards a supervisor question to the AI collaborator. Always
// 200; AI unavailability degrades to a fixed fallback answer.
func (a *App) HandleAsk(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Question == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), askTimeout)
	defer cancel()

	writeJSON(w, http.StatusOK, map[string]string{
		"answer": a.insights.AskQuestion(ctx, req.Question),
	})
}

type suggestRequest struct {
	Context string `json:"context"`
	Query   string `json:"query"`
}

// HandleSuggest asks the AI collaborator for ranked operation suggestions
// and records them as insights.
func (a *App) HandleSuggest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req suggestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), askTimeout)
	defer cancel()

	writeJSON(w, http.StatusOK, map[string]any{
		"insights": a.insights.RequestSuggestions(ctx, req.Context, req.Query),
	})
}

// HandleSummary returns an AI digest of the retained insight list. An
// empty digest means no insights or no collaborator.
func (a *App) HandleSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), askTimeout)
	defer cancel()

	writeJSON(w, http.StatusOK, map[string]string{
		"summary": a.insights.SummarizeInsights(ctx),
	})
}

// HandleAlerts returns the filtered alert view plus collection-wide
// counts. Filter params persist until changed.
func (a *App) HandleAlerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	q := r.URL.Query()
	if q.Has("search") {
		a.alerts.SetSearchTerm(q.Get("search"))
	}
	if q.Has("priority") {
		a.alerts.SetPriorityFilter(q.Get("priority"))
	}
	if q.Has("status") {
		a.alerts.SetStatusFilter(q.Get("status"))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"alerts": a.alerts.Filtered(),
		"counts": a.alerts.Counts(),
	})
}

type alertActionRequest struct {
	ID string `json:"id"`
}

// HandleAlertRead marks an alert read. Unknown ids are a no-op.
func (a *App) HandleAlertRead(w http.ResponseWriter, r *http.Request) {
	a.handleAlertAction(w, r, a.alerts.MarkAsRead)
}

// HandleAlertResolve resolves an alert. Idempotent.
func (a *App) HandleAlertResolve(w http.ResponseWriter, r *http.Request) {
	a.handleAlertAction(w, r, a.alerts.MarkAsResolved)
}

func (a *App) handleAlertAction(w http.ResponseWriter, r *http.Request, action func(string)) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req alertActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.ID == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}

	action(req.ID)
	writeJSON(w, http.StatusOK, a.alerts.Counts())
}

type statusView struct {
	Service          string            `json:"service"`
	AIEnabled        bool              `json:"ai_enabled"`
	BackendReachable bool              `json:"backend_reachable"`
	MonitorInterval  string            `json:"monitor_interval"`
	RunState         insights.RunState `json:"run_state"`
	AlertCounts      alerts.Counts     `json:"alert_counts"`
}

// HandleStatus returns the service status document.
func (a *App) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
	defer cancel()

	reachable := a.pinger.Ping(ctx) == nil
	writeJSON(w, http.StatusOK, statusView{
		Service:          "fabricpulse",
		AIEnabled:        a.aiConfigured,
		BackendReachable: reachable,
		MonitorInterval:  a.monitorInterval.String(),
		RunState:         a.insights.RunState(),
		AlertCounts:      a.alerts.Counts(),
	})
}

// HandleHealthz probes RTMS backend reachability.
func (a *App) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
	defer cancel()

	if err := a.pinger.Ping(ctx); err != nil {
		a.logger.Error("health check failed", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("unhealthy: rtms backend unreachable"))
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
