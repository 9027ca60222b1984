package pagination

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pagesFetched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "canvas_pagination_pages_fetched_total",
		Help: "Total number of collection pages fetched",
	})

	fetchAllDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "canvas_pagination_fetch_all_duration_seconds",
		Help:    "Duration of fetching every page of a collection",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
	})
)
