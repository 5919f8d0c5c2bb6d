package slackbot

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Event outcomes.
const (
	OutcomeOK           = "ok"
	OutcomeUnrecognized = "unrecognized"
	OutcomeBuildError   = "build_error"
	OutcomeRespondError = "respond_error"
	OutcomeUnauthorized = "unauthorized"
	OutcomeInvalid      = "invalid"
	OutcomeIgnored      = "ignored"
	OutcomeMalformed    = "malformed"
)

// Metrics are the bot's Prometheus counters.
type Metrics struct {
	Events        *prometheus.CounterVec
	BuildsStarted *prometheus.CounterVec
	Notifications *prometheus.CounterVec
}

// NewMetrics registers the counters on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Events: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "reviewbot_events_total",
			Help: "Slack events handled, by command and outcome.",
		}, []string{"command", "outcome"}),
		BuildsStarted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "reviewbot_builds_started_total",
			Help: "Deploy builds started, by project.",
		}, []string{"project"}),
		Notifications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "reviewbot_notifications_total",
			Help: "Build state change messages handled, by outcome.",
		}, []string{"outcome"}),
	}
}
