// Package metrics exposes Prometheus counters for score recomputation.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is what the recompute path reports into.
type Recorder interface {
	ObserveRecompute(outcome string, d time.Duration)
	AddScoresWritten(n int)
	AddScoreFailures(n int)
}

// Recompute outcomes.
const (
	OutcomeOK          = "ok"
	OutcomeNoRules     = "rules_not_configured"
	OutcomeNoResult    = "result_not_published"
	OutcomeWriteErrors = "write_errors"
	OutcomeError       = "error"
)

var _ Recorder = (*Service)(nil)

// Service holds the registered collectors.
type Service struct {
	Recomputes        *prometheus.CounterVec
	RecomputeDuration prometheus.Histogram
	ScoresWritten     prometheus.Counter
	ScoreFailures     prometheus.Counter
}

// NewService creates and registers the collectors.
// If no registerer is provided, it uses the default Prometheus registerer.
func NewService(registerer ...prometheus.Registerer) *Service {
	reg := prometheus.DefaultRegisterer
	if len(registerer) > 0 {
		reg = registerer[0]
	}

	s := &Service{
		Recomputes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "racepool_recomputes_total",
			Help: "Race score recomputations by outcome.",
		}, []string{"outcome"}),
		RecomputeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "racepool_recompute_duration_seconds",
			Help:    "Time to load, evaluate and persist one race.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
		ScoresWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "racepool_scores_written_total",
			Help: "Score rows upserted.",
		}),
		ScoreFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "racepool_score_write_failures_total",
			Help: "Score rows that could not be written.",
		}),
	}

	reg.MustRegister(s.Recomputes, s.RecomputeDuration, s.ScoresWritten, s.ScoreFailures)
	return s
}

func (s *Service) ObserveRecompute(outcome string, d time.Duration) {
	s.Recomputes.WithLabelValues(outcome).Inc()
	s.RecomputeDuration.Observe(d.Seconds())
}

func (s *Service) AddScoresWritten(n int) {
	s.ScoresWritten.Add(float64(n))
}

func (s *Service) AddScoreFailures(n int) {
	s.ScoreFailures.Add(float64(n))
}

// Handler returns an http.Handler for the given Gatherer.
// If no gatherer is provided, it uses the default one.
func Handler(gatherer ...prometheus.Gatherer) http.Handler {
	gath := prometheus.DefaultGatherer
	if len(gatherer) > 0 {
		gath = gatherer[0]
	}
	return promhttp.HandlerFor(gath, promhttp.HandlerOpts{})
}

// Nop discards everything.
type Nop struct{}

func (Nop) ObserveRecompute(string, time.Duration) {}
func (Nop) AddScoresWritten(int)                   {}
func (Nop) AddScoreFailures(int)                   {}
