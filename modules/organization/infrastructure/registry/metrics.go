package registry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var documentCacheRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "org_sync",
	Subsystem: "document_cache",
	Name:      "requests_total",
	Help:      "Total number of registry document cache lookups broken down by hit/miss.",
}, []string{"result"})

func recordDocumentCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	documentCacheRequests.WithLabelValues(result).Inc()
}
