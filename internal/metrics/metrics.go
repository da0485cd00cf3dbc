package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fabricpulse_build_info",
			Help: "Build information of the fabricpulse service",
		},
		[]string{"version", "commit", "date"},
	)

	RTMSRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fabricpulse_rtms_requests_total",
		Help: "Total number of requests to the RTMS backend",
	}, []string{"endpoint", "result"})

	RTMSOptionsCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fabricpulse_rtms_options_cache_hits_total",
		Help: "Total number of filter-option responses served from cache",
	})

	CascadeReloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fabricpulse_cascade_reloads_total",
		Help: "Total number of filter-option reloads by level and result",
	}, []string{"level", "result"})

	CascadeStaleResponsesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fabricpulse_cascade_stale_responses_total",
		Help: "Total number of late option responses discarded by the generation guard",
	}, []string{"level"})

	AnalyzeRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fabricpulse_analyze_runs_total",
		Help: "Total number of analysis runs by result",
	}, []string{"result"})

	AnalyzeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fabricpulse_analyze_duration_seconds",
		Help:    "Duration of analysis runs",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12), // ~0.5ms .. ~1s
	})

	AIRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fabricpulse_ai_requests_total",
		Help: "Total number of requests to the AI collaborator",
	}, []string{"operation", "result"})

	AlertsCurrent = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "fabricpulse_alerts_current",
		Help: "Current number of alerts by status",
	}, []string{"status"})

	AlertNotificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fabricpulse_alert_notifications_total",
		Help: "Total number of alert notifications sent by result",
	}, []string{"result"})

	MonitorTicksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fabricpulse_monitor_ticks_total",
		Help: "Total number of background monitor ticks by result",
	}, []string{"result"})
)
