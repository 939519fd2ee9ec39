package telemetry

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	JobsSubmitted    = prometheus.NewCounter(prometheus.CounterOpts{Name: "contract_jobs_submitted_total", Help: "Analysis jobs accepted for processing"})
	JobsCompleted    = prometheus.NewCounter(prometheus.CounterOpts{Name: "contract_jobs_completed_total", Help: "Jobs that produced a report"})
	JobsFailed       = prometheus.NewCounter(prometheus.CounterOpts{Name: "contract_jobs_failed_total", Help: "Jobs that ended in the error state"})
	JobsRejected     = prometheus.NewCounter(prometheus.CounterOpts{Name: "contract_jobs_rejected_total", Help: "Submissions refused because the pipeline was full"})
	RateLimitRejects = prometheus.NewCounter(prometheus.CounterOpts{Name: "contract_rate_limit_rejects_total", Help: "Requests rejected by rate limiter"})
	AnalysisRepairs  = prometheus.NewCounter(prometheus.CounterOpts{Name: "contract_analysis_repairs_total", Help: "Model answers that needed the repair request"})
	InFlightGauge    = prometheus.NewGauge(prometheus.GaugeOpts{Name: "contract_jobs_inflight", Help: "Jobs currently running in the pipeline"})
	JobDuration      = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "contract_job_duration_seconds",
		Help:    "Wall time from pipeline start to a terminal state",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
	})
)

// Handler exposes /metrics HTTP handler with a singleton registry.
func Handler() http.Handler {
	once.Do(func() {
		prometheus.MustRegister(
			JobsSubmitted,
			JobsCompleted,
			JobsFailed,
			JobsRejected,
			RateLimitRejects,
			AnalysisRepairs,
			InFlightGauge,
			JobDuration,
		)
	})
	return promhttp.Handler()
}
