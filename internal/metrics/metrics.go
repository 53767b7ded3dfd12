package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RemoteFetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meteodaily_remote_fetch_total",
			Help: "Total bulk endpoint fetch attempts",
		},
		[]string{"granularity", "status"},
	)

	RemoteFetchLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "meteodaily_remote_fetch_latency_seconds",
			Help:    "Bulk endpoint fetch latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"granularity"},
	)

	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meteodaily_cache_lookups_total",
			Help: "Station cache lookups by result",
		},
		[]string{"granularity", "result"},
	)

	StationLoads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meteodaily_station_loads_total",
			Help: "Per-station loads by outcome",
		},
		[]string{"granularity", "status"},
	)

	RowsLoaded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meteodaily_rows_loaded_total",
			Help: "Rows returned by station loads after date filtering",
		},
		[]string{"granularity"},
	)

	PointResolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meteodaily_point_resolutions_total",
			Help: "Point resolutions by method",
		},
		[]string{"method"},
	)
)
