// Package telemetry exports search progress as Prometheus metrics.
package telemetry

import (
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/YuminosukeSato/searchcv/pkg/errors"
	ms "github.com/YuminosukeSato/searchcv/sklearn/model_selection"
)

const namespace = "searchcv"

// Metrics implements model_selection.Observer.
type Metrics struct {
	candidates     *prometheus.CounterVec
	candidateScore *prometheus.GaugeVec
	fitDuration    *prometheus.HistogramVec
	searches       *prometheus.CounterVec
	searchDuration *prometheus.HistogramVec
	evaluations    *prometheus.CounterVec
	evaluationRows *prometheus.GaugeVec
	gatherer       prometheus.Gatherer

	mu   sync.Mutex
	best map[string]float64
}

var _ ms.Observer = (*Metrics)(nil)

// New registers the search metrics on reg. A nil reg uses a fresh registry,
// which Handler then serves.
func New(reg prometheus.Registerer) (*Metrics, error) {
	var gatherer prometheus.Gatherer = prometheus.DefaultGatherer
	if reg == nil {
		r := prometheus.NewRegistry()
		reg, gatherer = r, r
	} else if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	m := &Metrics{
		candidates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "candidates_evaluated_total",
			Help:      "Candidates evaluated across all folds.",
		}, []string{"estimator"}),
		candidateScore: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "candidate_best_mean_score",
			Help:      "Best mean test score seen so far per estimator.",
		}, []string{"estimator"}),
		fitDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "candidate_fit_duration_seconds",
			Help:      "Mean fit time per fold of a candidate.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}, []string{"estimator"}),
		searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_total",
			Help:      "Completed searches by kind and status.",
		}, []string{"estimator", "kind", "status"}),
		searchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Wall time of a search including the final refit.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"estimator", "kind"}),
		evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluations_total",
			Help:      "Fit-and-score evaluations by status.",
		}, []string{"estimator", "status"}),
		evaluationRows: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "evaluation_sample_rows",
			Help:      "Rows used by the last evaluation.",
		}, []string{"estimator"}),
		gatherer: gatherer,
		best:     make(map[string]float64),
	}

	collectors := []prometheus.Collector{
		m.candidates, m.candidateScore, m.fitDuration,
		m.searches, m.searchDuration, m.evaluations, m.evaluationRows,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, errors.Wrapf(err, "register %T", c)
		}
	}
	return m, nil
}

// CandidateEvaluated records one candidate.
func (m *Metrics) CandidateEvaluated(estimator string, _ int, meanScore float64, fitTime time.Duration) {
	m.candidates.WithLabelValues(estimator).Inc()
	m.fitDuration.WithLabelValues(estimator).Observe(fitTime.Seconds())

	if math.IsNaN(meanScore) {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if current, ok := m.best[estimator]; !ok || meanScore > current {
		m.best[estimator] = meanScore
		m.candidateScore.WithLabelValues(estimator).Set(meanScore)
	}
}

// SearchCompleted records a finished search.
func (m *Metrics) SearchCompleted(estimator string, kind ms.Kind, _ int, elapsed time.Duration, err error) {
	m.searches.WithLabelValues(estimator, kind.String(), status(err)).Inc()
	m.searchDuration.WithLabelValues(estimator, kind.String()).Observe(elapsed.Seconds())
}

// EvaluationCompleted records a finished evaluation.
func (m *Metrics) EvaluationCompleted(estimator string, samples int, _ time.Duration, err error) {
	m.evaluations.WithLabelValues(estimator, status(err)).Inc()
	if err == nil {
		m.evaluationRows.WithLabelValues(estimator).Set(float64(samples))
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
