package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder exposes the application's Prometheus instruments.
type Recorder struct {
	providerRequests *prometheus.CounterVec
	daysSkipped      *prometheus.CounterVec
	predictions      prometheus.Counter
	lastClose        *prometheus.GaugeVec
}

// New registers the instruments on the given registerer. Pass nil to use the
// default registry.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Recorder{
		providerRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fxcast_provider_requests_total",
				Help: "Provider day-fetch requests by outcome",
			},
			[]string{"outcome"},
		),
		daysSkipped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fxcast_days_skipped_total",
				Help: "Calendar days skipped during cache builds by reason",
			},
			[]string{"reason"},
		),
		predictions: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "fxcast_predictions_total",
				Help: "Predictions served over HTTP",
			},
		),
		lastClose: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fxcast_last_close_rate",
				Help: "Most recent cached closing rate per pair",
			},
			[]string{"pair"},
		),
	}
}

// ProviderRequest records the outcome of one day-fetch ("ok", "empty", "error").
func (r *Recorder) ProviderRequest(outcome string) {
	if r == nil {
		return
	}
	r.providerRequests.WithLabelValues(outcome).Inc()
}

// DaySkipped records a skipped calendar day ("closed", "unavailable", "error").
func (r *Recorder) DaySkipped(reason string) {
	if r == nil {
		return
	}
	r.daysSkipped.WithLabelValues(reason).Inc()
}

// PredictionServed counts one served prediction row.
func (r *Recorder) PredictionServed() {
	if r == nil {
		return
	}
	r.predictions.Inc()
}

// LastClose records the latest cached closing rate for a pair.
func (r *Recorder) LastClose(pair string, rate float64) {
	if r == nil {
		return
	}
	r.lastClose.WithLabelValues(pair).Set(rate)
}
