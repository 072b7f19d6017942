package telemetry

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector captures telemetry events emitted by the light curve pipeline.
//
// Hooks run inline with per-epoch work and must be cheap to call.
type Collector interface {
	IncEpoch(strategy, outcome string)
	IncFitFailure(strategy string)
	ObserveFitIterations(iterations int)
}

type noopCollector struct{}

// Noop returns a collector that discards all metrics.
func Noop() Collector {
	return noopCollector{}
}

func (noopCollector) IncEpoch(string, string)  {}
func (noopCollector) IncFitFailure(string)     {}
func (noopCollector) ObserveFitIterations(int) {}

// PrometheusCollector exposes pipeline counters via Prometheus.
type PrometheusCollector struct {
	epochs        *prometheus.CounterVec
	fitFailures   *prometheus.CounterVec
	fitIterations prometheus.Histogram
}

var (
	epochCounter          *prometheus.CounterVec
	epochCounterLock      sync.Mutex
	fitFailureCounter     *prometheus.CounterVec
	fitFailureCounterLock sync.Mutex
	fitIterationHist      prometheus.Histogram
	fitIterationHistLock  sync.Mutex
)

// NewPrometheusCollector registers the required metrics with the provided
// registerer. Metrics already registered by an earlier call are reused.
func NewPrometheusCollector(reg prometheus.Registerer) (*PrometheusCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	epochCounterLock.Lock()
	if epochCounter == nil {
		counter := prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "superbol_epochs_total",
			Help: "Number of light curve epochs processed per strategy and outcome.",
		}, []string{"strategy", "outcome"})
		existing, err := register(reg, counter)
		if err != nil {
			epochCounterLock.Unlock()
			return nil, err
		}
		epochCounter = existing
	}
	epochCounterLock.Unlock()

	fitFailureCounterLock.Lock()
	if fitFailureCounter == nil {
		counter := prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "superbol_fit_failures_total",
			Help: "Number of blackbody fits that failed to converge.",
		}, []string{"strategy"})
		existing, err := register(reg, counter)
		if err != nil {
			fitFailureCounterLock.Unlock()
			return nil, err
		}
		fitFailureCounter = existing
	}
	fitFailureCounterLock.Unlock()

	fitIterationHistLock.Lock()
	if fitIterationHist == nil {
		hist := prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "superbol_fit_iterations",
			Help:    "Levenberg-Marquardt iterations per successful blackbody fit.",
			Buckets: prometheus.LinearBuckets(5, 5, 10),
		})
		existing, err := register[prometheus.Histogram](reg, hist)
		if err != nil {
			fitIterationHistLock.Unlock()
			return nil, err
		}
		fitIterationHist = existing
	}
	fitIterationHistLock.Unlock()

	return &PrometheusCollector{
		epochs:        epochCounter,
		fitFailures:   fitFailureCounter,
		fitIterations: fitIterationHist,
	}, nil
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := already.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		var zero T
		return zero, err
	}
	return c, nil
}

// IncEpoch counts one processed epoch.
func (p *PrometheusCollector) IncEpoch(strategy, outcome string) {
	if p == nil || p.epochs == nil {
		return
	}
	p.epochs.WithLabelValues(strategy, outcome).Inc()
}

// IncFitFailure counts a failed blackbody fit.
func (p *PrometheusCollector) IncFitFailure(strategy string) {
	if p == nil || p.fitFailures == nil {
		return
	}
	p.fitFailures.WithLabelValues(strategy).Inc()
}

// ObserveFitIterations records the iteration count of a converged fit.
func (p *PrometheusCollector) ObserveFitIterations(iterations int) {
	if p == nil || p.fitIterations == nil {
		return
	}
	p.fitIterations.Observe(float64(iterations))
}
