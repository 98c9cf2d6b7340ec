// Package prometheus renders twostep engine metrics in Prometheus text
// exposition format.
//
// Flow step outcomes form one family, twostep_flow_steps_total, labeled by
// flow and outcome. Other counters are prefixed twostep_ and end in _total.
// The single histogram is twostep_flow_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry. Callers mount the Handler.
//   - Mutate engine state.
package prometheus
