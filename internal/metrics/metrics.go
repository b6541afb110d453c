package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	AnalysisRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "canopy_analysis_runs_total",
		Help: "Analysis runs by final status",
	}, []string{"status"})
	AnalysisDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "canopy_analysis_duration_seconds",
		Help:    "Wall time of a full analysis run",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
	})
	TilesPlannedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "canopy_tiles_planned_total",
		Help: "Tiles produced by the partitioner across all runs",
	})
	TileFetchesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "canopy_tile_fetches_total",
		Help: "Tile fetch outcomes after retries",
	}, []string{"outcome"})
	TileFetchRetriesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "canopy_tile_fetch_retries_total",
		Help: "Individual tile fetch attempts that failed and were retried",
	})
	TileFetchDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "canopy_tile_fetch_duration_seconds",
		Help:    "Per-tile render and download duration including retries",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 240, 380},
	})
	StatsCacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "canopy_stats_cache_hits_total",
		Help: "Statistics responses served from the Redis cache",
	})
	StatsCacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "canopy_stats_cache_misses_total",
		Help: "Statistics lookups that missed the Redis cache",
	})
	ProtectedLookupsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "canopy_protected_lookups_total",
		Help: "Protected-area lookups by cache outcome",
	}, []string{"outcome"})
)

func init() {
	prometheus.MustRegister(AnalysisRunsTotal)
	prometheus.MustRegister(AnalysisDurationSeconds)
	prometheus.MustRegister(TilesPlannedTotal)
	prometheus.MustRegister(TileFetchesTotal)
	prometheus.MustRegister(TileFetchRetriesTotal)
	prometheus.MustRegister(TileFetchDurationSeconds)
	prometheus.MustRegister(StatsCacheHitsTotal)
	prometheus.MustRegister(StatsCacheMissesTotal)
	prometheus.MustRegister(ProtectedLookupsTotal)
}

// Handler exposes the registered collectors for scraping, mounted on
// /metrics by the API router.
func Handler() http.Handler { return promhttp.Handler() }
