package middleware

import (
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/clinica-io/clinica-backend/platform/go/requesttrace"
)

// RequestTrace seeds every request with an anonymous trace record carrying the
// chi request id. Downstream layers (the clinic guard, services) enrich it.
func RequestTrace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		trace := requesttrace.Anonymous(chimw.GetReqID(ctx))
		next.ServeHTTP(w, r.WithContext(requesttrace.IntoContext(ctx, trace)))
	})
}
