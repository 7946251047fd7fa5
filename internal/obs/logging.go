package obs

import (
	"context"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/basket-api/internal/common"
)

// NewLogger builds the process logger. format is json (default) or console/text.
func NewLogger(format, level string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.DurationFieldUnit = time.Millisecond
	zerolog.SetGlobalLevel(parseLevel(level))

	var out io.Writer = os.Stdout
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "console", "text":
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).With().Timestamp().Str("service", "basket-api").Logger()
}

func parseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// RequestLogger emits one http_request event per request and puts Logger on the request context.
type RequestLogger struct {
	Logger zerolog.Logger
}

func (l RequestLogger) Middleware(next http.Handler) http.Handler {
	access := hlog.AccessHandler(l.access)
	return hlog.NewHandler(l.Logger)(access(next))
}

func (l RequestLogger) access(r *http.Request, status, size int, elapsed time.Duration) {
	if status == 0 {
		status = http.StatusOK
	}
	evt := l.Logger.WithLevel(levelForStatus(status)).
		Str("method", r.Method).
		Str("route", routeOf(r, r.URL.Path)).
		Str("path", r.URL.Path).
		Int("status", status).
		Int("bytes", size).
		Dur("duration_ms", elapsed).
		Str("request_id", middleware.GetReqID(r.Context()))
	if traceID, spanID := traceIDs(r.Context()); traceID != "" {
		evt = evt.Str("trace_id", traceID).Str("span_id", spanID)
	}
	optional := map[string]string{
		"basket_id":       chi.URLParam(r, "id"),
		"item_id":         chi.URLParam(r, "itemId"),
		"idempotency_key": strings.TrimSpace(r.Header.Get(common.IdempotencyHeader)),
		"client_ip":       common.ClientIP(r),
		"user_agent":      strings.TrimSpace(r.UserAgent()),
	}
	for key, value := range optional {
		if value != "" {
			evt = evt.Str(key, value)
		}
	}
	evt.Msg("http_request")
}

func levelForStatus(status int) zerolog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return zerolog.ErrorLevel
	case status >= http.StatusBadRequest:
		return zerolog.WarnLevel
	default:
		return zerolog.InfoLevel
	}
}

func traceIDs(ctx context.Context) (string, string) {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return "", ""
	}
	return sc.TraceID().String(), sc.SpanID().String()
}
