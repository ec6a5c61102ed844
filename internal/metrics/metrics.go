package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/danielpatrickdp/exergate/internal/governance"
)

// Metrics exposes the engine's gating behavior to Prometheus. All methods
// are nil-safe so callers can run without metrics wired.
type Metrics struct {
	registry *prometheus.Registry

	phase              *prometheus.GaugeVec
	videoLocked        prometheus.Gauge
	activeParticipants prometheus.Gauge
	ghostParticipants  prometheus.Gauge
	transitionsTotal   *prometheus.CounterVec
	evaluationsTotal   *prometheus.CounterVec
	evalDuration       prometheus.Histogram
	challengeEvents    *prometheus.CounterVec
	httpRequestsTotal  *prometheus.CounterVec
	httpDuration       *prometheus.HistogramVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		phase: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "governance_phase",
			Help: "Current gating phase (1 for the active phase, 0 otherwise).",
		}, []string{"phase"}),
		videoLocked: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "governance_video_locked",
			Help: "Whether playback is currently locked (1) or permitted (0).",
		}),
		activeParticipants: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "governance_active_participants",
			Help: "Participants with fresh sensor data in the last evaluation.",
		}),
		ghostParticipants: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "governance_ghost_participants",
			Help: "Participants excluded from evaluation for stale sensor data.",
		}),
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "governance_transitions_total",
			Help: "Total phase transitions by from/to phase.",
		}, []string{"from", "to"}),
		evaluationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "governance_evaluations_total",
			Help: "Total evaluation cycles by trigger.",
		}, []string{"trigger"}),
		evalDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "governance_evaluation_duration_seconds",
			Help:    "Histogram of evaluation cycle durations.",
			Buckets: prometheus.DefBuckets,
		}),
		challengeEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "governance_challenge_events_total",
			Help: "Total challenge lifecycle events by kind.",
		}, []string{"event"}),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total count of HTTP requests processed by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request durations by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}

	m.registry.MustRegister(
		m.phase,
		m.videoLocked,
		m.activeParticipants,
		m.ghostParticipants,
		m.transitionsTotal,
		m.evaluationsTotal,
		m.evalDuration,
		m.challengeEvents,
		m.httpRequestsTotal,
		m.httpDuration,
	)

	return m
}

var allPhases = []governance.Phase{
	governance.PhaseIdle,
	governance.PhasePending,
	governance.PhaseUnlocked,
	governance.PhaseWarning,
	governance.PhaseLocked,
}

// ObserveState records the published state after an evaluation.
func (m *Metrics) ObserveState(st governance.State) {
	if m == nil {
		return
	}
	for _, p := range allPhases {
		v := 0.0
		if p == st.Phase {
			v = 1.0
		}
		m.phase.WithLabelValues(string(p)).Set(v)
	}
	if st.VideoLocked {
		m.videoLocked.Set(1)
	} else {
		m.videoLocked.Set(0)
	}
	m.activeParticipants.Set(float64(len(st.ActiveParticipantIDs)))
	m.ghostParticipants.Set(float64(len(st.GhostParticipantIDs)))
}

// ObserveTransition counts one phase change.
func (m *Metrics) ObserveTransition(from, to governance.Phase) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(string(from), string(to)).Inc()
}

// ObserveEvaluation records one evaluation cycle.
func (m *Metrics) ObserveEvaluation(trigger governance.Trigger, duration time.Duration) {
	if m == nil {
		return
	}
	m.evaluationsTotal.WithLabelValues(string(trigger)).Inc()
	m.evalDuration.Observe(duration.Seconds())
}

// ObserveChallengeEvent counts one challenge lifecycle event.
func (m *Metrics) ObserveChallengeEvent(event string) {
	if m == nil {
		return
	}
	m.challengeEvents.WithLabelValues(event).Inc()
}

// Handler serves the scrape endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// WrapHandler instruments an HTTP route with request counts and durations.
func (m *Metrics) WrapHandler(route string, next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(recorder, r)

		m.httpRequestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}
