package services

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	syncCacheRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "org_sync",
		Subsystem: "cache",
		Name:      "requests_total",
		Help:      "Total number of sync cache lookups broken down by cache and hit/miss.",
	}, []string{"cache", "result"})

	syncNodes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "org_sync",
		Subsystem: "nodes",
		Name:      "processed_total",
		Help:      "Total number of registry nodes reconciled broken down by outcome.",
	}, []string{"outcome"})

	syncMatchConflicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "org_sync",
		Subsystem: "match",
		Name:      "conflicts_total",
		Help:      "Total number of fallback matches rejected by the identity resolver broken down by reason.",
	}, []string{"reason"})

	syncRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "org_sync",
		Name:      "runs_total",
		Help:      "Total number of sync runs broken down by mode and status.",
	}, []string{"mode", "status"})

	syncRunDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "org_sync",
		Name:      "run_duration_seconds",
		Help:      "Duration of sync runs.",
		Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
	}, []string{"mode"})

	syncLastRun = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "org_sync",
		Name:      "last_run_timestamp_seconds",
		Help:      "Unix time of the last finished sync run.",
	}, []string{"mode"})

	syncLastRunNodes = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "org_sync",
		Name:      "last_run_nodes",
		Help:      "Node counts of the last finished sync run broken down by outcome.",
	}, []string{"mode", "outcome"})
)

func recordCacheRequest(cache string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	syncCacheRequests.WithLabelValues(cache, result).Inc()
}

func recordNode(outcome string) {
	syncNodes.WithLabelValues(outcome).Inc()
}

func recordMatchConflict(reason string) {
	if reason == "" {
		reason = "other"
	}
	syncMatchConflicts.WithLabelValues(reason).Inc()
}

func recordRun(dryRun bool, result SyncResult, err error, elapsed time.Duration) {
	mode := runMode(dryRun)
	status := "ok"
	switch {
	case err != nil:
		status = "failed"
	case result.HasErrors():
		status = "partial"
	}
	syncRuns.WithLabelValues(mode, status).Inc()
	syncRunDuration.WithLabelValues(mode).Observe(elapsed.Seconds())
	syncLastRun.WithLabelValues(mode).SetToCurrentTime()
	syncLastRunNodes.WithLabelValues(mode, "created").Set(float64(result.Created))
	syncLastRunNodes.WithLabelValues(mode, "updated").Set(float64(result.Updated))
	syncLastRunNodes.WithLabelValues(mode, "unchanged").Set(float64(result.Unchanged))
	syncLastRunNodes.WithLabelValues(mode, "error").Set(float64(len(result.Errors)))
}

func runMode(dryRun bool) string {
	if dryRun {
		return "dry_run"
	}
	return "apply"
}
