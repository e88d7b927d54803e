package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "taskhub"

// AuthMetrics counts authentication outcomes. A nil *AuthMetrics is a no-op.
type AuthMetrics struct {
	logins          *prometheus.CounterVec
	resolveFailures *prometheus.CounterVec
	passwordResets  *prometheus.CounterVec
}

// NewAuthMetrics creates the counters and registers them with reg.
func NewAuthMetrics(reg prometheus.Registerer) *AuthMetrics {
	m := &AuthMetrics{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "logins_total",
			Help:      "Login attempts by result.",
		}, []string{"result"}),
		resolveFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "resolve_failures_total",
			Help:      "Rejected identity resolutions by reason.",
		}, []string{"reason"}),
		passwordResets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "password_resets_total",
			Help:      "Password reset flow events by stage.",
		}, []string{"stage"}),
	}
	reg.MustRegister(m.logins, m.resolveFailures, m.passwordResets)
	return m
}

// Login records a login attempt ("success", "invalid_credentials", "error").
func (m *AuthMetrics) Login(result string) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(result).Inc()
}

// ResolveFailure records why a token was rejected.
func (m *AuthMetrics) ResolveFailure(reason string) {
	if m == nil {
		return
	}
	m.resolveFailures.WithLabelValues(reason).Inc()
}

// PasswordReset records a reset flow stage ("requested", "delivery_failed", "completed", "rejected").
func (m *AuthMetrics) PasswordReset(stage string) {
	if m == nil {
		return
	}
	m.passwordResets.WithLabelValues(stage).Inc()
}
