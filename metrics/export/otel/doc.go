// Package otel binds twostep engine metrics to an OpenTelemetry meter.
//
// [NewOTelExporter] registers a small set of observable instruments and
// reports flow step outcomes on twostep.flow.steps with "flow" and
// "outcome" attributes. Latency buckets are one gauge keyed by "le". A
// single callback reads [twostep.Engine.MetricsSnapshot] on each collection
// cycle.
//
// # What this package must NOT do
//
//   - Own the MeterProvider. Callers supply the Meter.
//   - Mutate engine state.
package otel
