// Package metrics exports session lifecycle counters to Prometheus.
package metrics

import (
	"github.com/bnema/qr-session-keeper/internal/domain"
	"github.com/bnema/qr-session-keeper/internal/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "qk"

type Prometheus struct {
	challenges  *prometheus.CounterVec
	validations *prometheus.CounterVec
	losses      *prometheus.CounterVec
	refreshes   *prometheus.CounterVec
	loggedIn    *prometheus.GaugeVec
}

var _ ports.Metrics = (*Prometheus)(nil)

// New registers the collectors on reg. Registering twice on the same
// registry panics.
func New(reg prometheus.Registerer) *Prometheus {
	factory := promauto.With(reg)

	return &Prometheus{
		challenges: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "challenges_total",
			Help:      "Challenge lifecycle events by outcome (issued, failed, or the watch end state).",
		}, []string{"platform", "outcome"}),
		validations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validations_total",
			Help:      "Validation verdicts by resulting session status.",
		}, []string{"platform", "result"}),
		losses: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "transitions_total",
			Help:      "Logged-in to logged-out transitions seen by the liveness monitor.",
		}, []string{"platform"}),
		refreshes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_total",
			Help:      "Keep-warm page reloads by outcome.",
		}, []string{"platform", "outcome"}),
		loggedIn: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "session_logged_in",
			Help:      "1 when the last liveness sweep saw the platform logged in.",
		}, []string{"platform"}),
	}
}

func (p *Prometheus) ChallengeIssued(platform domain.PlatformID, outcome string) {
	p.challenges.WithLabelValues(string(platform), outcome).Inc()
}

func (p *Prometheus) Validated(platform domain.PlatformID, status domain.SessionStatus) {
	p.validations.WithLabelValues(string(platform), string(status)).Inc()
}

func (p *Prometheus) SessionLost(platform domain.PlatformID) {
	p.losses.WithLabelValues(string(platform)).Inc()
}

func (p *Prometheus) Refreshed(platform domain.PlatformID, outcome string) {
	p.refreshes.WithLabelValues(string(platform), outcome).Inc()
}

func (p *Prometheus) LivenessObserved(platform domain.PlatformID, state domain.LivenessState) {
	value := 0.0
	if state == domain.LivenessLoggedIn {
		value = 1
	}
	p.loggedIn.WithLabelValues(string(platform)).Set(value)
}
