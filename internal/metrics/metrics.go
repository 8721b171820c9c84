// Package metrics exposes the session engine's prometheus counters.
// A nil *Recorder is valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "jober_auth"

type Recorder struct {
	registry *prometheus.Registry

	tokensIssued        prometheus.Counter
	refreshRotations    *prometheus.CounterVec
	refreshRevocations  *prometheus.CounterVec
	otpCreated          *prometheus.CounterVec
	otpVerifications    *prometheus.CounterVec
	authorizationDenied *prometheus.CounterVec
	sweepDeleted        *prometheus.CounterVec
}

func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		tokensIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_issued_total",
			Help:      "Token pairs issued.",
		}),
		refreshRotations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_rotations_total",
			Help:      "Refresh token rotations by result.",
		}, []string{"result"}),
		refreshRevocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_revocations_total",
			Help:      "Explicit refresh token revocations by result.",
		}, []string{"result"}),
		otpCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "otp_created_total",
			Help:      "OTP creation requests by result.",
		}, []string{"result"}),
		otpVerifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "otp_verifications_total",
			Help:      "OTP verification attempts by result.",
		}, []string{"result"}),
		authorizationDenied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "authorization_denied_total",
			Help:      "Rejected requests by reason.",
		}, []string{"reason"}),
		sweepDeleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_deleted_total",
			Help:      "Rows removed by the expiry sweeper.",
		}, []string{"table"}),
	}

	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.tokensIssued,
		r.refreshRotations,
		r.refreshRevocations,
		r.otpCreated,
		r.otpVerifications,
		r.authorizationDenied,
		r.sweepDeleted,
	)
	return r
}

// Handler serves the registry in the prometheus text format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Registry is exposed for tests.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

func (r *Recorder) TokenIssued() {
	if r == nil {
		return
	}
	r.tokensIssued.Inc()
}

func (r *Recorder) RefreshRotated(result string) {
	if r == nil {
		return
	}
	r.refreshRotations.WithLabelValues(result).Inc()
}

func (r *Recorder) RefreshRevoked(result string) {
	if r == nil {
		return
	}
	r.refreshRevocations.WithLabelValues(result).Inc()
}

func (r *Recorder) OTPCreated(result string) {
	if r == nil {
		return
	}
	r.otpCreated.WithLabelValues(result).Inc()
}

func (r *Recorder) OTPVerified(result string) {
	if r == nil {
		return
	}
	r.otpVerifications.WithLabelValues(result).Inc()
}

func (r *Recorder) AuthorizationDenied(reason string) {
	if r == nil {
		return
	}
	r.authorizationDenied.WithLabelValues(reason).Inc()
}

func (r *Recorder) SweepDeleted(table string, n int64) {
	if r == nil || n <= 0 {
		return
	}
	r.sweepDeleted.WithLabelValues(table).Add(float64(n))
}
