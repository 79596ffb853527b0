package requesttrace

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const ctxTraceInfo contextKey = "CLINICA_REQUEST_TRACE"

// ActorKind represents who initiated a request.
type ActorKind string

const (
	ActorKindUser      ActorKind = "user"
	ActorKindAnonymous ActorKind = "anonymous"
	ActorKindSystem    ActorKind = "system"
)

// TraceInfo captures request-scoped metadata needed for traceability and
// auditing. ClinicID is set once the access guard resolves the tenant.
type TraceInfo struct {
	ActorKind ActorKind
	ClinicID  *int64
	RequestID string
}

// IntoContext stores the TraceInfo in the provided context.
func IntoContext(ctx context.Context, trace TraceInfo) context.Context {
	return context.WithValue(ctx, ctxTraceInfo, trace)
}

// FromContext extracts the TraceInfo from context, returning false when not
// present.
func FromContext(ctx context.Context) (TraceInfo, bool) {
	if ctx == nil {
		return TraceInfo{}, false
	}
	v := ctx.Value(ctxTraceInfo)
	if v == nil {
		return TraceInfo{}, false
	}

	trace, ok := v.(TraceInfo)
	return trace, ok
}

// FromContextOrAnonymous returns the TraceInfo stored on the context, or an
// anonymous record when absent.
func FromContextOrAnonymous(ctx context.Context) TraceInfo {
	if trace, ok := FromContext(ctx); ok {
		return trace
	}
	return Anonymous("")
}

// Anonymous builds a TraceInfo for unauthenticated requests.
func Anonymous(requestID string) TraceInfo {
	if requestID == "" {
		requestID = uuid.NewString()
	}
	return TraceInfo{ActorKind: ActorKindAnonymous, RequestID: requestID}
}

// System builds a TraceInfo for background/administrative operations.
func System(requestID string) TraceInfo {
	if requestID == "" {
		requestID = uuid.NewString()
	}
	return TraceInfo{ActorKind: ActorKindSystem, RequestID: requestID}
}
