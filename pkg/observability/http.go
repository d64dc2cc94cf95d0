package observability

import (
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// statusWriter captures the response status for metric attributes.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusWriter) WriteHeader(status int) {
	sw.status = status
	sw.ResponseWriter.WriteHeader(status)
}

// Middleware wraps next with a server span and RED metrics per request.
// With a disabled provider it only pays for the span no-op.
func (p *Provider) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ctx, span := p.Tracer().Start(r.Context(), r.Method+" "+r.URL.Path,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.target", r.URL.Path),
			),
		)
		defer span.End()

		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r.WithContext(ctx))

		attrs := []attribute.KeyValue{
			attribute.String("http.method", r.Method),
			attribute.Int("http.status_code", sw.status),
		}
		span.SetAttributes(attribute.Int("http.status_code", sw.status))

		p.RecordRequest(ctx, attrs...)
		p.RecordDuration(ctx, time.Since(start), attrs...)
		if sw.status >= 500 {
			span.SetStatus(codes.Error, http.StatusText(sw.status))
			p.RecordError(ctx, attrs...)
		}
	})
}
