package twostep

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

const auditEventRateLimited = "rate_limit_triggered"

// AuditErrorCode is the stable error label written to audit events.
type AuditErrorCode string

const (
	auditErrInvalidRequest AuditErrorCode = "invalid_request"
	auditErrUnauthorized   AuditErrorCode = "unauthorized"
	auditErrForbidden      AuditErrorCode = "forbidden"
	auditErrNotFound       AuditErrorCode = "not_found"
	auditErrConflict       AuditErrorCode = "conflict"
	auditErrRateLimited    AuditErrorCode = "rate_limited"
	auditErrInternal       AuditErrorCode = "internal_error"
	auditErrUnclassified   AuditErrorCode = "unclassified"
)

func (e *Engine) emitAudit(ctx context.Context, flow Flow, meta callMeta, status int, err error) {
	if e == nil || e.audit == nil {
		return
	}

	event := AuditEvent{
		EventType: auditEventType(flow, err),
		Flow:      string(flow),
		Name:      meta.name,
		IP:        meta.ip,
		Device:    meta.device,
		Success:   err == nil,
		Status:    status,
	}
	if err != nil {
		event.Codes = TraceOf(err)
		event.Error = string(auditErrorCode(err))
	}
	if sc := trace.SpanFromContext(ctx).SpanContext(); sc.IsValid() {
		event.Metadata = map[string]string{
			"trace_id": sc.TraceID().String(),
			"span_id":  sc.SpanID().String(),
		}
	}

	e.audit.Emit(ctx, event)
}

func auditEventType(flow Flow, err error) string {
	switch {
	case err == nil:
		return string(flow) + "_success"
	case KindOf(err) == KindTooManyRequests:
		return auditEventRateLimited
	default:
		return string(flow) + "_failure"
	}
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}
	switch KindOf(err) {
	case KindInvalidRequest:
		return auditErrInvalidRequest
	case KindUnauthorized:
		return auditErrUnauthorized
	case KindForbidden:
		return auditErrForbidden
	case KindNotFound:
		return auditErrNotFound
	case KindConflict:
		return auditErrConflict
	case KindTooManyRequests:
		return auditErrRateLimited
	case KindInternal:
		return auditErrInternal
	default:
		return auditErrUnclassified
	}
}
