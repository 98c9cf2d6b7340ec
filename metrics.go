package twostep

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one in-process counter.
type MetricID uint16

const (
	MetricCreateFirstSuccess MetricID = iota
	MetricCreateFirstFailure
	MetricCreateVerifySuccess
	MetricCreateVerifyFailure
	MetricLoginFirstSuccess
	MetricLoginFirstFailure
	MetricLoginVerifySuccess
	MetricLoginVerifyFailure
	MetricChangeEmailFirstSuccess
	MetricChangeEmailFirstFailure
	MetricChangeEmailVerifySuccess
	MetricChangeEmailVerifyFailure
	MetricDeleteFirstSuccess
	MetricDeleteFirstFailure
	MetricDeleteVerifySuccess
	MetricDeleteVerifyFailure
	MetricResetPasswordFirstSuccess
	MetricResetPasswordFirstFailure
	MetricResetPasswordSecondSuccess
	MetricResetPasswordSecondFailure
	MetricResetPasswordVerifySuccess
	MetricResetPasswordVerifyFailure
	MetricAuthenticateSuccess
	MetricAuthenticateFailure
	MetricLogout
	// MetricSessionCreated counts sessions issued by verify steps.
	MetricSessionCreated
	// MetricSessionRevoked counts session rows removed, not revoke calls.
	MetricSessionRevoked
	// MetricRollback counts transactions rolled back after a failure.
	MetricRollback
	MetricRateLimitHit
	// MetricFlowLatency is a histogram-only ID covering every flow step.
	MetricFlowLatency
	metricIDCount
)

// flowMetric maps a flow step to its success and failure counters.
var flowMetric = map[Flow][2]MetricID{
	FlowCreateFirst:         {MetricCreateFirstSuccess, MetricCreateFirstFailure},
	FlowCreateVerify:        {MetricCreateVerifySuccess, MetricCreateVerifyFailure},
	FlowLoginFirst:          {MetricLoginFirstSuccess, MetricLoginFirstFailure},
	FlowLoginVerify:         {MetricLoginVerifySuccess, MetricLoginVerifyFailure},
	FlowChangeEmailFirst:    {MetricChangeEmailFirstSuccess, MetricChangeEmailFirstFailure},
	FlowChangeEmailVerify:   {MetricChangeEmailVerifySuccess, MetricChangeEmailVerifyFailure},
	FlowDeleteFirst:         {MetricDeleteFirstSuccess, MetricDeleteFirstFailure},
	FlowDeleteVerify:        {MetricDeleteVerifySuccess, MetricDeleteVerifyFailure},
	FlowResetPasswordFirst:  {MetricResetPasswordFirstSuccess, MetricResetPasswordFirstFailure},
	FlowResetPasswordSecond: {MetricResetPasswordSecondSuccess, MetricResetPasswordSecondFailure},
	FlowResetPasswordVerify: {MetricResetPasswordVerifySuccess, MetricResetPasswordVerifyFailure},
	FlowAuthenticate:        {MetricAuthenticateSuccess, MetricAuthenticateFailure},
}

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics is a fixed set of lock-free counters plus one latency histogram.
// A nil or disabled Metrics records nothing.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of every counter. Histograms holds
// bucket counts for latency IDs when histograms are enabled.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics returns counters configured by cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc adds one to id.
func (m *Metrics) Inc(id MetricID) {
	m.Add(id, 1)
}

// Add adds n to id.
func (m *Metrics) Add(id MetricID, n uint64) {
	if m == nil || !m.enabled || id >= metricIDCount || n == 0 {
		return
	}
	atomic.AddUint64(&m.counters[id].value, n)
}

// Observe records d in the histogram of id. Only MetricFlowLatency keeps a
// histogram.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if id != MetricFlowLatency {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

// Value returns the current count of id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies every counter.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 1),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricFlowLatency].buckets[i])
		}
		s.Histograms[MetricFlowLatency] = buckets
	}

	return s
}

// recordFlow counts the outcome of one flow step. Flows without a counter
// pair are ignored.
func (m *Metrics) recordFlow(flow Flow, err error) {
	ids, ok := flowMetric[flow]
	if !ok {
		return
	}
	if err != nil {
		m.Inc(ids[1])
		return
	}
	m.Inc(ids[0])
}

// Flow steps hash passwords and send mail, so buckets are wider than a
// token validation path would need.
func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 10:
		return 0
	case ms <= 25:
		return 1
	case ms <= 50:
		return 2
	case ms <= 100:
		return 3
	case ms <= 250:
		return 4
	case ms <= 500:
		return 5
	case ms <= 1000:
		return 6
	default:
		return 7
	}
}
