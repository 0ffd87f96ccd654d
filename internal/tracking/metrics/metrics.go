package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Sample outcomes.
const (
	OutcomeProcessed = "processed"
	OutcomeDropped   = "dropped"
	OutcomePending   = "pending"
)

// Metrics provides observability for the tracking module.
// Tracks sample outcomes, accrued days, emitted events and loop health.
type Metrics struct {
	SamplesTotal      *prometheus.CounterVec
	DaysAccrued       prometheus.Counter
	EventsTotal       *prometheus.CounterVec
	TrackedCountries  prometheus.Gauge
	PendingSamples    prometheus.Gauge
	PersistFailures   *prometheus.CounterVec
	SampleDuration    prometheus.Histogram
	LoopQueueDepth    prometheus.Gauge
	LoopJobDuration   prometheus.Histogram
	LoopRejectedTotal prometheus.Counter
}

// New registers the tracking collectors on reg. Passing a fresh registry
// keeps tests isolated from the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SamplesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "supernomad_location_samples_total",
			Help: "Location samples handled by the tracking engine, by outcome",
		}, []string{"outcome"}),
		DaysAccrued: factory.NewCounter(prometheus.CounterOpts{
			Name: "supernomad_days_accrued_total",
			Help: "Country days counted",
		}),
		EventsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "supernomad_tracking_events_total",
			Help: "Tracking events emitted, by kind",
		}, []string{"kind"}),
		TrackedCountries: factory.NewGauge(prometheus.GaugeOpts{
			Name: "supernomad_tracked_countries",
			Help: "Number of tracked country records",
		}),
		PendingSamples: factory.NewGauge(prometheus.GaugeOpts{
			Name: "supernomad_pending_confirmations",
			Help: "VPN-suspect samples awaiting user confirmation",
		}),
		PersistFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "supernomad_persist_failures_total",
			Help: "Failed document saves, by key",
		}, []string{"key"}),
		SampleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "supernomad_sample_duration_seconds",
			Help:    "Duration of OnLocationUpdate",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		LoopQueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "supernomad_loop_queue_depth",
			Help: "Jobs waiting on the tracking loop",
		}),
		LoopJobDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "supernomad_loop_job_duration_seconds",
			Help:    "Duration of jobs executed on the tracking loop",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		LoopRejectedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "supernomad_loop_rejected_total",
			Help: "Jobs rejected because the loop queue was full",
		}),
	}
}

func (m *Metrics) ObserveSample(outcome string, start time.Time) {
	if m == nil {
		return
	}
	m.SamplesTotal.WithLabelValues(outcome).Inc()
	m.SampleDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncrementDaysAccrued() {
	if m == nil {
		return
	}
	m.DaysAccrued.Inc()
}

func (m *Metrics) IncrementEvent(kind string) {
	if m == nil {
		return
	}
	m.EventsTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) SetTrackedCountries(n int) {
	if m == nil {
		return
	}
	m.TrackedCountries.Set(float64(n))
}

func (m *Metrics) SetPendingSamples(n int) {
	if m == nil {
		return
	}
	m.PendingSamples.Set(float64(n))
}

func (m *Metrics) IncrementPersistFailure(key string) {
	if m == nil {
		return
	}
	m.PersistFailures.WithLabelValues(key).Inc()
}

func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.LoopQueueDepth.Set(float64(n))
}

// ObserveJob records the duration of one loop job.
// Call with time.Now() at the start of the job.
func (m *Metrics) ObserveJob(start time.Time) {
	if m == nil {
		return
	}
	m.LoopJobDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncrementRejected() {
	if m == nil {
		return
	}
	m.LoopRejectedTotal.Inc()
}
