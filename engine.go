package twostep

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	internalaudit "github.com/MrEthical07/twostep/internal/audit"
	"github.com/MrEthical07/twostep/internal/flows"
	"github.com/MrEthical07/twostep/store"
)

// Engine runs the two-step flows. It is safe for concurrent use once built
// and holds no per-request state.
type Engine struct {
	config  Config
	flows   flows.Service
	audit   *internalaudit.Dispatcher
	metrics *Metrics
	tracer  trace.Tracer
	logger  *slog.Logger
}

// Close flushes pending audit events. It does not close the store.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped returns the number of audit events discarded under
// backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot copies the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Config returns a copy of the configuration the engine was built with.
func (e *Engine) Config() Config {
	if e == nil {
		return Config{}
	}
	return cloneConfig(e.config)
}

func (e *Engine) ready() bool {
	return e != nil && e.flows.Initialized()
}

func (e *Engine) observer() flows.Observer {
	return flows.Observer{
		SessionCreated: func(flows.Flow) {
			e.metrics.Inc(MetricSessionCreated)
		},
		SessionsRevoked: func(_ flows.Flow, n int64) {
			e.metrics.Add(MetricSessionRevoked, uint64(n))
		},
		RolledBack: func(flow flows.Flow) {
			e.metrics.Inc(MetricRollback)
		},
		RateLimited: func(flow flows.Flow) {
			e.metrics.Inc(MetricRateLimitHit)
		},
	}
}

// callMeta is what the engine knows about a call before the flow runs.
type callMeta struct {
	name   string
	ip     string
	device string
}

// observe runs fn under a span and records its outcome in metrics, logs and
// the audit trail.
func observe[B, S any](ctx context.Context, e *Engine, flow Flow, meta callMeta, fn func(context.Context) (Result[B, S], error)) (Result[B, S], error) {
	if !e.ready() {
		return Result[B, S]{}, ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, flow, meta)
	defer span.End()

	start := time.Now()
	res, err := fn(ctx)
	e.finish(ctx, span, flow, meta, res.Status, time.Since(start), err)
	return res, err
}

func (e *Engine) startSpan(ctx context.Context, flow Flow, meta callMeta) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.String("twostep.flow", string(flow)),
	}
	if meta.name != "" {
		attrs = append(attrs, attribute.String("twostep.name", meta.name))
	}
	if meta.ip != "" {
		attrs = append(attrs, attribute.String("twostep.ip", meta.ip))
	}
	return e.tracer.Start(ctx, "twostep."+string(flow), trace.WithAttributes(attrs...))
}

func (e *Engine) finish(ctx context.Context, span trace.Span, flow Flow, meta callMeta, status int, elapsed time.Duration, err error) {
	e.metrics.recordFlow(flow, err)
	e.metrics.Observe(MetricFlowLatency, elapsed)

	if err != nil {
		status = StatusOf(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(
			attribute.Int("twostep.status", status),
			attribute.IntSlice("twostep.codes", TraceOf(err)),
		)
		if KindOf(err) == KindInternal {
			e.logger.ErrorContext(ctx, "twostep: flow failed",
				"flow", string(flow), "name", meta.name, "codes", TraceOf(err), "error", err)
		} else {
			e.logger.DebugContext(ctx, "twostep: flow rejected",
				"flow", string(flow), "name", meta.name, "status", status, "codes", TraceOf(err))
		}
	} else {
		span.SetAttributes(attribute.Int("twostep.status", status))
		span.SetStatus(codes.Ok, "")
		e.logger.DebugContext(ctx, "twostep: flow completed",
			"flow", string(flow), "name", meta.name, "status", status, "elapsed", elapsed)
	}

	e.emitAudit(ctx, flow, meta, status, err)
}

// fillIP falls back to the address attached with WithClientIP.
func fillIP(ctx context.Context, ip string) string {
	if ip != "" {
		return ip
	}
	return clientIPFromContext(ctx)
}

// fillDevice falls back to the device attached with WithDevice.
func fillDevice(ctx context.Context, device string) string {
	if device != "" {
		return device
	}
	return deviceFromContext(ctx)
}

// Authenticate resolves a bearer session token presented from ip and
// device. cols narrows the account snapshot; none means the full row.
func (e *Engine) Authenticate(ctx context.Context, sessionToken, ip, device string, cols ...store.Column) (Principal, error) {
	ip, device = fillIP(ctx, ip), fillDevice(ctx, device)
	meta := callMeta{ip: ip, device: device}
	res, err := observe(ctx, e, FlowAuthenticate, meta, func(ctx context.Context) (Result[Principal, NoBody], error) {
		p, err := e.flows.Authenticate(ctx, sessionToken, ip, device, cols)
		if err != nil {
			return Result[Principal, NoBody]{}, err
		}
		return Result[Principal, NoBody]{Status: 200, Body: p}, nil
	})
	return res.Body, err
}

// Logout revokes the session the token is bound to. Other devices stay
// signed in.
func (e *Engine) Logout(ctx context.Context, sessionToken, ip, device string) error {
	ip, device = fillIP(ctx, ip), fillDevice(ctx, device)
	meta := callMeta{ip: ip, device: device}
	_, err := observe(ctx, e, FlowLogout, meta, func(ctx context.Context) (Result[NoBody, NoBody], error) {
		if err := e.flows.Logout(ctx, sessionToken, ip, device); err != nil {
			return Result[NoBody, NoBody]{}, err
		}
		e.metrics.Inc(MetricLogout)
		return Result[NoBody, NoBody]{Status: 204}, nil
	})
	return err
}

// ListSessions returns the live sessions of the named account.
func (e *Engine) ListSessions(ctx context.Context, name string) ([]SessionInfo, error) {
	res, err := observe(ctx, e, FlowListSessions, callMeta{name: name}, func(ctx context.Context) (Result[[]SessionInfo, NoBody], error) {
		list, err := e.flows.ListSessions(ctx, name)
		if err != nil {
			return Result[[]SessionInfo, NoBody]{}, err
		}
		return Result[[]SessionInfo, NoBody]{Status: 200, Body: list}, nil
	})
	return res.Body, err
}
