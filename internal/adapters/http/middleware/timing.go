package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"gymdesk/internal/adapters/http/perf"
)

// DefaultSlowRequestMs is the default threshold for slow request warnings.
const DefaultSlowRequestMs = 200

var slowRequestThreshold = perf.EnvThreshold("GYMDESK_SLOW_REQUEST_MS", DefaultSlowRequestMs)

var requestIDCounter uint64

// statusWriter captures the status code written by a handler.
type statusWriter struct {
	http.ResponseWriter
	status int
}

// WriteHeader records code and delegates.
// PRE: code is a valid HTTP status code
// POST: status stored, header written to the wrapped writer
func (sw *statusWriter) WriteHeader(code int) {
	sw.status = code
	sw.ResponseWriter.WriteHeader(code)
}

// Flush lets the MJPEG preview and other streamed responses reach the client.
func (sw *statusWriter) Flush() {
	if f, ok := sw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

var statusWriterPool = sync.Pool{
	New: func() any {
		return &statusWriter{}
	},
}

type routeKey struct{}

// routeSlot carries the matched mux pattern back out to Timing. Middlewares
// between the two clone the request, so r.Pattern alone never reaches it.
type routeSlot struct {
	pattern string
}

// Routed records the pattern the wrapped mux matched for Timing.
// PRE: next is the innermost handler, normally the ServeMux
func Routed(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r)
		if slot, ok := r.Context().Value(routeKey{}).(*routeSlot); ok {
			slot.pattern = r.Pattern
		}
	})
}

// routeLabel names a request by its mux pattern once routing has run, so
// /members/12/edit and /members/40/edit aggregate together.
func routeLabel(r *http.Request, pattern string) string {
	if pattern == "" {
		pattern = r.Pattern
	}
	if pattern != "" {
		if strings.Contains(pattern, " ") {
			return pattern
		}
		return r.Method + " " + pattern
	}
	return r.Method + " " + r.URL.Path
}

// Timing returns middleware that logs request duration and records it to collector.
// Requests to /static/ are excluded. Slow requests log at WARN, the rest at DEBUG.
func Timing(collector *perf.Collector) func(http.Handler) http.Handler {
	threshold := slowRequestThreshold()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasPrefix(r.URL.Path, "/static/") {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			reqID := atomic.AddUint64(&requestIDCounter, 1)

			slot := &routeSlot{}
			r = r.WithContext(context.WithValue(r.Context(), routeKey{}, slot))

			sw := statusWriterPool.Get().(*statusWriter)
			sw.ResponseWriter = w
			sw.status = http.StatusOK
			defer func() {
				durationMs := float64(time.Since(start).Microseconds()) / 1000.0
				label := routeLabel(r, slot.pattern)

				level := slog.LevelDebug
				msg := "request"
				if durationMs >= threshold {
					level, msg = slog.LevelWarn, "slow_request"
				}
				slog.Log(r.Context(), level, msg,
					"request_id", reqID,
					"route", label,
					"path", r.URL.Path,
					"status", sw.status,
					"duration_ms", durationMs,
				)

				if collector != nil {
					collector.Record(perf.Entry{
						Kind:       perf.KindRequest,
						Path:       label,
						StatusCode: sw.status,
						Failed:     sw.status >= http.StatusInternalServerError,
						DurationMs: durationMs,
						Timestamp:  start,
					})
				}

				sw.ResponseWriter = nil
				statusWriterPool.Put(sw)
			}()

			next.ServeHTTP(sw, r)
		})
	}
}
