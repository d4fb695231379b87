package otel

import (
	"net/http"

	"github.com/riandyrn/otelchi"
	"go.opentelemetry.io/otel/trace"
)

// Middleware traces chi requests. The x-request-id and x-device-id headers
// are copied onto the server span when present.
func Middleware(serviceName string, opts ...otelchi.Option) func(http.Handler) http.Handler {
	traced := otelchi.Middleware(serviceName, opts...)

	return func(next http.Handler) http.Handler {
		return traced(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if span := trace.SpanFromContext(r.Context()); span.IsRecording() {
				if id := r.Header.Get("x-request-id"); id != "" {
					span.SetAttributes(RequestID(id))
				}
				if id := r.Header.Get("x-device-id"); id != "" {
					span.SetAttributes(DeviceID(id))
				}
			}
			next.ServeHTTP(w, r)
		}))
	}
}
