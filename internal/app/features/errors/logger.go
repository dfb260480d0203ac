// internal/app/features/errors/logger.go
package errors

import (
	"net/http"

	"github.com/dexit/dexdash/internal/app/system/reqlog"
	"go.uber.org/zap"
)

// ErrorLogger logs handler failures with the request id, method and path
// attached. It only logs; the handler decides what the visitor sees, which
// for login is always the generic form message.
type ErrorLogger struct {
	log *zap.Logger
}

// NewErrorLogger builds an ErrorLogger.
func NewErrorLogger(logger *zap.Logger) *ErrorLogger {
	return &ErrorLogger{log: logger}
}

// Error logs a failure on our side (session store, cookie codec).
func (e *ErrorLogger) Error(r *http.Request, msg string, err error, fields ...zap.Field) {
	e.logWith(r).Error(msg, append(fields, zap.Error(err))...)
}

// Upstream logs an analytics backend failure that is not a rejection.
func (e *ErrorLogger) Upstream(r *http.Request, msg string, err error, fields ...zap.Field) {
	e.logWith(r).Warn(msg, append(fields, zap.Error(err), zap.Bool("upstream", true))...)
}

// Warn logs a recoverable failure.
func (e *ErrorLogger) Warn(r *http.Request, msg string, err error, fields ...zap.Field) {
	e.logWith(r).Warn(msg, append(fields, zap.Error(err))...)
}

func (e *ErrorLogger) logWith(r *http.Request) *zap.Logger {
	return reqlog.Logger(r.Context(), e.log).With(
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
	)
}
