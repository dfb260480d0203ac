// Package reqlog tags each request with an id and logs it on completion.
package reqlog

import (
	"context"
	"net/http"
	"time"

	"github.com/dexit/dexdash/internal/app/system/auth"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Header carries the request id in both directions.
const Header = "X-Request-ID"

type ctxKey struct{}

// userSlot is filled by TagUser, which runs inside Middleware after the
// session loader has replaced the request.
type userSlot struct{ name string }

type userKey struct{}

// RequestID reuses a well-formed incoming X-Request-ID or mints a new one,
// stores it in the context and echoes it on the response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(Header)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(Header, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))
	})
}

// ID returns the request id stored by RequestID, or "".
func ID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// Logger returns base annotated with the request id when one is present.
func Logger(ctx context.Context, base *zap.Logger) *zap.Logger {
	if id := ID(ctx); id != "" {
		return base.With(zap.String("request_id", id))
	}
	return base
}

// Middleware logs one line per request. Server errors log at Error,
// client errors at Warn, everything else at Info. Static assets and
// health checks log at Debug.
func Middleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			slot := &userSlot{}

			next.ServeHTTP(ww, r.WithContext(context.WithValue(r.Context(), userKey{}, slot)))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			fields := []zap.Field{
				zap.String("request_id", ID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", status),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.Bool("htmx", r.Header.Get("HX-Request") == "true"),
			}
			if slot.name != "" {
				fields = append(fields, zap.String("user", slot.name))
			}

			switch {
			case status >= 500:
				logger.Error("http request", fields...)
			case status >= 400:
				logger.Warn("http request", fields...)
			case quiet(r.URL.Path):
				logger.Debug("http request", fields...)
			default:
				logger.Info("http request", fields...)
			}
		})
	}
}

// TagUser records the signed-in user for the access log line. Mount it
// after the session loader.
func TagUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if slot, ok := r.Context().Value(userKey{}).(*userSlot); ok {
			if u, ok := auth.CurrentUser(r); ok {
				slot.name = u.Name
			}
		}
		next.ServeHTTP(w, r)
	})
}

func quiet(path string) bool {
	return path == "/health" || len(path) >= 8 && path[:8] == "/static/"
}
