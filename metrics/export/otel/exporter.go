package otel

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/MrEthical07/twostep"
	"github.com/MrEthical07/twostep/metrics/export/internaldefs"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

// Instrument names.
const (
	StepsName          = "twostep.flow.steps"
	LatencyBucketsName = "twostep.flow.latency.buckets"
	LatencyCountName   = "twostep.flow.latency.count"
	SessionsName       = "twostep.sessions"
	LogoutsName        = "twostep.logouts"
	RollbacksName      = "twostep.rollbacks"
	RateLimitedName    = "twostep.rate_limited"
	AuditDroppedName   = "twostep.audit.dropped"
)

type metricsSource interface {
	MetricsSnapshot() twostep.MetricsSnapshot
	AuditDropped() uint64
}

// stepPoint is one precomputed (flow, outcome) data point of the steps
// counter.
type stepPoint struct {
	id    twostep.MetricID
	attrs metric.ObserveOption
}

// OTelExporter publishes engine counters as observable instruments. Flow
// step outcomes share one counter with "flow" and "outcome" attributes;
// each collection reads one snapshot.
type OTelExporter struct {
	source       metricsSource
	registration metric.Registration

	steps      metric.Int64ObservableCounter
	stepPoints []stepPoint

	buckets      metric.Int64ObservableGauge
	bucketAttrs  []metric.ObserveOption
	latencyCount metric.Int64ObservableGauge

	sessions     metric.Int64ObservableCounter
	created      metric.ObserveOption
	revoked      metric.ObserveOption
	logouts      metric.Int64ObservableCounter
	rollbacks    metric.Int64ObservableCounter
	rateLimited  metric.Int64ObservableCounter
	auditDropped metric.Int64ObservableCounter
}

// NewOTelExporter registers instruments on meter that read from engine.
func NewOTelExporter(meter metric.Meter, engine *twostep.Engine) (*OTelExporter, error) {
	return NewOTelExporterFromSource(meter, engine)
}

// NewOTelExporterFromSource registers instruments on meter that read from
// source.
func NewOTelExporterFromSource(meter metric.Meter, source metricsSource) (*OTelExporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &OTelExporter{
		source:     source,
		stepPoints: make([]stepPoint, 0, 2*len(internaldefs.StepDefs)),
		created:    metric.WithAttributes(attribute.String("event", "created")),
		revoked:    metric.WithAttributes(attribute.String("event", "revoked")),
	}
	for _, def := range internaldefs.StepDefs {
		flow := attribute.String("flow", def.Flow)
		e.stepPoints = append(e.stepPoints,
			stepPoint{id: def.Success, attrs: metric.WithAttributes(flow, attribute.String("outcome", "success"))},
			stepPoint{id: def.Failure, attrs: metric.WithAttributes(flow, attribute.String("outcome", "failure"))},
		)
	}
	for _, le := range internaldefs.HistogramBounds {
		e.bucketAttrs = append(e.bucketAttrs, metric.WithAttributes(attribute.String("le", le)))
	}

	var err error
	counter := func(name, desc string) metric.Int64ObservableCounter {
		if err != nil {
			return nil
		}
		var ins metric.Int64ObservableCounter
		ins, err = meter.Int64ObservableCounter(name, metric.WithDescription(desc))
		if err != nil {
			err = fmt.Errorf("create observable counter %s: %w", name, err)
		}
		return ins
	}
	gauge := func(name, desc string) metric.Int64ObservableGauge {
		if err != nil {
			return nil
		}
		var ins metric.Int64ObservableGauge
		ins, err = meter.Int64ObservableGauge(name, metric.WithDescription(desc))
		if err != nil {
			err = fmt.Errorf("create observable gauge %s: %w", name, err)
		}
		return ins
	}

	e.steps = counter(StepsName, "Flow step outcomes by flow and outcome.")
	e.buckets = gauge(LatencyBucketsName, "Cumulative flow latency bucket counts by upper bound in seconds.")
	e.latencyCount = gauge(LatencyCountName, "Flow latency sample count.")
	e.sessions = counter(SessionsName, "Session lifecycle events.")
	e.logouts = counter(LogoutsName, "Single-session logout operations.")
	e.rollbacks = counter(RollbacksName, "Flow transactions rolled back.")
	e.rateLimited = counter(RateLimitedName, "Rate-limit checks that denied requests.")
	e.auditDropped = counter(AuditDroppedName, "Dropped audit events due to dispatcher backpressure.")
	if err != nil {
		return nil, err
	}

	registration, err := meter.RegisterCallback(e.observe,
		e.steps, e.buckets, e.latencyCount, e.sessions,
		e.logouts, e.rollbacks, e.rateLimited, e.auditDropped,
	)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	e.registration = registration
	return e, nil
}

func (e *OTelExporter) observe(_ context.Context, o metric.Observer) error {
	snapshot := e.source.MetricsSnapshot()

	for _, p := range e.stepPoints {
		o.ObserveInt64(e.steps, int64(snapshot.Counters[p.id]), p.attrs)
	}

	cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(snapshot.Histograms[twostep.MetricFlowLatency]))
	for i, attrs := range e.bucketAttrs {
		o.ObserveInt64(e.buckets, int64(cumulative[i]), attrs)
	}
	o.ObserveInt64(e.latencyCount, int64(cumulative[len(cumulative)-1]))

	o.ObserveInt64(e.sessions, int64(snapshot.Counters[twostep.MetricSessionCreated]), e.created)
	o.ObserveInt64(e.sessions, int64(snapshot.Counters[twostep.MetricSessionRevoked]), e.revoked)
	o.ObserveInt64(e.logouts, int64(snapshot.Counters[twostep.MetricLogout]))
	o.ObserveInt64(e.rollbacks, int64(snapshot.Counters[twostep.MetricRollback]))
	o.ObserveInt64(e.rateLimited, int64(snapshot.Counters[twostep.MetricRateLimitHit]))
	o.ObserveInt64(e.auditDropped, int64(e.source.AuditDropped()))
	return nil
}

// Close unregisters the collection callback.
func (e *OTelExporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
