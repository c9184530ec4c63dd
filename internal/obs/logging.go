package obs

import (
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/toko-storefront/internal/common"
)

// NewLogger configures a zerolog logger. format is json (default) or console.
func NewLogger(format, level string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	var out io.Writer = os.Stdout
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "console", "text":
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).With().Timestamp().Str("service", "toko-storefront").Logger()
}

// RequestLogger writes one http_request line per request.
// Handlers reach a request-scoped logger through zerolog.Ctx.
type RequestLogger struct {
	Logger zerolog.Logger
}

// Middleware implements chi middleware for structured request logs.
func (l RequestLogger) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := NewStatusRecorder(w)
		start := time.Now()
		reqID := middleware.GetReqID(r.Context())
		sessionID := common.SessionID(r.Context())

		scoped := l.Logger.With().Str("request_id", reqID)
		if sessionID != "" {
			scoped = scoped.Str("session_id", sessionID)
		}
		logger := scoped.Logger()
		ctx, notes := withAnnotations(logger.WithContext(r.Context()))
		r = r.WithContext(ctx)
		next.ServeHTTP(recorder, r)

		evt := l.Logger.Info()
		switch {
		case recorder.Status() >= http.StatusInternalServerError:
			evt = l.Logger.Error()
		case recorder.Status() >= http.StatusBadRequest:
			evt = l.Logger.Warn()
		}
		evt = evt.
			Str("method", r.Method).
			Str("route", routeOf(r, r.URL.Path)).
			Str("path", r.URL.Path).
			Int("status", recorder.Status()).
			Int64("duration_ms", time.Since(start).Milliseconds()).
			Int64("bytes", recorder.BytesWritten()).
			Str("request_id", reqID)
		if spanCtx := trace.SpanContextFromContext(r.Context()); spanCtx.IsValid() {
			evt = evt.Str("trace_id", spanCtx.TraceID().String()).Str("span_id", spanCtx.SpanID().String())
		}
		if userID, ok := common.UserID(r.Context()); ok && strings.TrimSpace(userID) != "" {
			evt = evt.Str("customer_id", userID)
		}
		if sessionID != "" {
			evt = evt.Str("session_id", sessionID)
		}
		notes.Each(func(k, v string) {
			if k != "session_id" {
				evt = evt.Str(k, v)
			}
		})
		if ip := strings.TrimSpace(r.RemoteAddr); ip != "" {
			evt = evt.Str("remote_addr", ip)
		}
		if ua := strings.TrimSpace(r.UserAgent()); ua != "" {
			evt = evt.Str("user_agent", ua)
		}
		evt.Msg("http_request")
	})
}
