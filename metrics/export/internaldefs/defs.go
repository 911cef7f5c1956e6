package internaldefs

import (
	goSession "github.com/MrEthical07/goSession"
)

// CounterDef names one engine counter for exporters.
type CounterDef struct {
	ID   goSession.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram for exporters.
type HistogramDef struct {
	ID   goSession.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in MetricID order.
var CounterDefs = []CounterDef{
	{ID: goSession.MetricLoginSuccess, Name: "gosession_login_success_total", Help: "Completed OAuth logins."},
	{ID: goSession.MetricLoginFailure, Name: "gosession_login_failure_total", Help: "OAuth callbacks that did not open a session."},
	{ID: goSession.MetricStateRejected, Name: "gosession_oauth_state_rejected_total", Help: "Callbacks with a missing or forged state."},
	{ID: goSession.MetricRefreshSuccess, Name: "gosession_refresh_success_total", Help: "Successful refresh rotations."},
	{ID: goSession.MetricRefreshFailure, Name: "gosession_refresh_failure_total", Help: "Rejected refresh attempts."},
	{ID: goSession.MetricRefreshReuseDetected, Name: "gosession_refresh_reuse_detected_total", Help: "Refresh credentials that lost a rotation."},
	{ID: goSession.MetricSessionCreated, Name: "gosession_session_created_total", Help: "Created sessions."},
	{ID: goSession.MetricSessionRevoked, Name: "gosession_session_revoked_total", Help: "Revoked sessions."},
	{ID: goSession.MetricLogout, Name: "gosession_logout_total", Help: "Logout requests."},
	{ID: goSession.MetricAuthenticateFailure, Name: "gosession_authenticate_failure_total", Help: "Rejected access tokens."},
	{ID: goSession.MetricCSRFRejected, Name: "gosession_csrf_rejected_total", Help: "Failed double-submit CSRF checks."},
	{ID: goSession.MetricRateLimitHit, Name: "gosession_rate_limit_hit_total", Help: "Requests denied by the rate limiter."},
	{ID: goSession.MetricStoreUnavailable, Name: "gosession_collaborator_failure_total", Help: "Store and identity provider faults."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: goSession.MetricAuthenticateLatency, Name: "gosession_authenticate_latency_seconds", Help: "Access token verification latency."},
}

// HistogramBounds are the bucket upper bounds in seconds, as Prometheus labels.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix are the bounds in a form usable inside metric names.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed array, zero-filling short input.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
