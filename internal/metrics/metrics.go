package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
	OutcomeCached  = "cached"
)

var (
	EngineRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pvyield_engine_requests_total",
		Help: "Simulation engine calls by outcome",
	}, []string{"outcome"})

	EngineLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pvyield_engine_latency_seconds",
		Help:    "Simulation engine round trip time",
		Buckets: prometheus.DefBuckets,
	})

	Calculations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pvyield_calculations_total",
		Help: "Completed yield calculations by kind and outcome",
	}, []string{"kind", "outcome"})

	ArraysPerSite = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pvyield_site_arrays",
		Help:    "Sub-arrays simulated per site calculation",
		Buckets: []float64{1, 2, 3, 4, 6, 8, 12, 16, 32},
	})

	AnnualEnergy = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pvyield_annual_energy_kwh",
		Help:    "First-year AC energy of completed calculations",
		Buckets: prometheus.ExponentialBuckets(1000, 4, 10),
	})
)
