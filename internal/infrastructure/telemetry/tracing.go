package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Span attribute keys for CRM operations
const (
	SpanAttrTenantID    = "crm.tenant_id"
	SpanAttrUserID      = "crm.user_id"
	SpanAttrRequestID   = "crm.request_id"
	SpanAttrEntityType  = "crm.entity_type"
	SpanAttrEntityID    = "crm.entity_id"
	SpanAttrWorkflowID  = "crm.workflow_id"
	SpanAttrCampaignID  = "crm.campaign_id"
	SpanAttrTrigger     = "crm.trigger"
	SpanAttrMatched     = "crm.matched_rules"
	SpanAttrRecipients  = "crm.recipients"
	SpanAttrJobName     = "crm.job"
	SpanAttrDryRun      = "crm.dry_run"
	SpanAttrEventType   = "crm.event_type"
	SpanAttrSettingsKey = "crm.setting_key"
)

// StartSpan starts an internal span on the global CRM tracer. Values are
// given as alternating key and value.
//
//	ctx, span := telemetry.StartSpan(ctx, "workflow.execute", telemetry.SpanAttrWorkflowID, id)
//	defer span.End()
func StartSpan(ctx context.Context, name string, keyValues ...any) (context.Context, trace.Span) {
	return otel.Tracer(InstrumentationName).Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(Attributes(keyValues...)...),
	)
}

// Attributes converts alternating key/value pairs. A trailing key without
// value is dropped.
func Attributes(keyValues ...any) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(keyValues)/2)
	for i := 0; i+1 < len(keyValues); i += 2 {
		key, ok := keyValues[i].(string)
		if !ok {
			key = fmt.Sprint(keyValues[i])
		}
		attrs = append(attrs, toAttribute(key, keyValues[i+1]))
	}
	return attrs
}

// EndSpan records err, if any, sets the status and ends the span
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// TraceID returns the current trace id or ""
func TraceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.TraceID().IsValid() {
		return ""
	}
	return sc.TraceID().String()
}

func toAttribute(key string, value any) attribute.KeyValue {
	switch v := value.(type) {
	case string:
		return attribute.String(key, v)
	case int:
		return attribute.Int(key, v)
	case int64:
		return attribute.Int64(key, v)
	case float64:
		return attribute.Float64(key, v)
	case bool:
		return attribute.Bool(key, v)
	case []string:
		return attribute.StringSlice(key, v)
	case fmt.Stringer:
		return attribute.String(key, v.String())
	default:
		return attribute.String(key, fmt.Sprint(v))
	}
}
