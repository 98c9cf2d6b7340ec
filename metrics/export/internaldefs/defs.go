package internaldefs

import (
	"github.com/MrEthical07/twostep"
)

// CounterDef names one engine counter for export.
type CounterDef struct {
	ID   twostep.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram for export.
type HistogramDef struct {
	ID   twostep.MetricID
	Name string
	Help string
}

// CounterDefs lists the counters that are not flow step outcomes, in
// render order.
var CounterDefs = []CounterDef{
	{ID: twostep.MetricLogout, Name: "twostep_logout_total", Help: "Single-session logout operations."},
	{ID: twostep.MetricSessionCreated, Name: "twostep_session_created_total", Help: "Created sessions."},
	{ID: twostep.MetricSessionRevoked, Name: "twostep_session_revoked_total", Help: "Revoked sessions."},
	{ID: twostep.MetricRollback, Name: "twostep_rollback_total", Help: "Flow transactions rolled back."},
	{ID: twostep.MetricRateLimitHit, Name: "twostep_rate_limit_hit_total", Help: "Rate-limit checks that denied requests."},
}

// StepDef pairs the outcome counters of one flow step.
type StepDef struct {
	Flow    string
	Success twostep.MetricID
	Failure twostep.MetricID
}

// StepDefs lists every flow step with a success/failure pair.
var StepDefs = []StepDef{
	{Flow: "create_first", Success: twostep.MetricCreateFirstSuccess, Failure: twostep.MetricCreateFirstFailure},
	{Flow: "create_verify", Success: twostep.MetricCreateVerifySuccess, Failure: twostep.MetricCreateVerifyFailure},
	{Flow: "login_first", Success: twostep.MetricLoginFirstSuccess, Failure: twostep.MetricLoginFirstFailure},
	{Flow: "login_verify", Success: twostep.MetricLoginVerifySuccess, Failure: twostep.MetricLoginVerifyFailure},
	{Flow: "change_email_first", Success: twostep.MetricChangeEmailFirstSuccess, Failure: twostep.MetricChangeEmailFirstFailure},
	{Flow: "change_email_verify", Success: twostep.MetricChangeEmailVerifySuccess, Failure: twostep.MetricChangeEmailVerifyFailure},
	{Flow: "delete_first", Success: twostep.MetricDeleteFirstSuccess, Failure: twostep.MetricDeleteFirstFailure},
	{Flow: "delete_verify", Success: twostep.MetricDeleteVerifySuccess, Failure: twostep.MetricDeleteVerifyFailure},
	{Flow: "reset_password_first", Success: twostep.MetricResetPasswordFirstSuccess, Failure: twostep.MetricResetPasswordFirstFailure},
	{Flow: "reset_password_second", Success: twostep.MetricResetPasswordSecondSuccess, Failure: twostep.MetricResetPasswordSecondFailure},
	{Flow: "reset_password_verify", Success: twostep.MetricResetPasswordVerifySuccess, Failure: twostep.MetricResetPasswordVerifyFailure},
	{Flow: "authenticate", Success: twostep.MetricAuthenticateSuccess, Failure: twostep.MetricAuthenticateFailure},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: twostep.MetricFlowLatency, Name: "twostep_flow_latency_seconds", Help: "Flow step latency histogram."},
}

// HistogramBounds are the upper bounds of the engine buckets in seconds.
var HistogramBounds = []string{
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"1",
	"+Inf",
}

// HistogramBoundSuffix are HistogramBounds spelled for instrument names.
var HistogramBoundSuffix = []string{
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"1",
	"inf",
}

// NormalizeBuckets pads or truncates raw to the engine bucket count.
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
