package logging

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/FreePeak/golang-mcp-gateway/internal/domain/shared"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const (
	loggerKey contextKey = "logger"

	// RequestIDHeader carries the request id assigned by Middleware.
	RequestIDHeader = "X-Request-Id"
)

// Middleware creates an HTTP middleware that adds a request-scoped logger to
// the request context and logs each completed request.
func Middleware(logger *Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get(RequestIDHeader)
			if requestID == "" {
				requestID = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, requestID)

			requestLogger := logger.With(Fields{
				"method":     r.Method,
				"path":       r.URL.Path,
				"remote":     r.RemoteAddr,
				"request_id": requestID,
			})

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()
			next.ServeHTTP(rec, r.WithContext(WithLogger(r.Context(), requestLogger)))

			requestLogger.Debug("request completed", Fields{
				"status":   rec.status,
				"duration": time.Since(start).String(),
			})
		})
	}
}

// statusRecorder captures the response status while keeping streaming
// responses working.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (r *statusRecorder) WriteHeader(code int) {
	if !r.wroteHeader {
		r.status = code
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	r.wroteHeader = true
	return r.ResponseWriter.Write(b)
}

// Flush forwards to the underlying writer when it supports flushing.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// WithLogger returns a copy of ctx carrying logger.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// GetLogger retrieves the logger from the context.
// If no logger is found, returns the default logger.
func GetLogger(ctx context.Context) *Logger {
	logger, ok := ctx.Value(loggerKey).(*Logger)
	if !ok || logger == nil {
		return Default()
	}
	return logger
}

// LogJSONRPCRequest logs JSON-RPC request details
func LogJSONRPCRequest(logger *Logger, request shared.JSONRPCRequest) {
	logger.Debug("JSON-RPC request", Fields{
		"id":           request.ID,
		"method":       request.Method,
		"notification": request.IsNotification(),
	})
}

// LogJSONRPCResponse logs JSON-RPC response details
func LogJSONRPCResponse(logger *Logger, response shared.JSONRPCResponse) {
	fields := Fields{
		"id": response.ID,
	}

	if response.Error != nil {
		fields["error_code"] = response.Error.Code
		fields["error_message"] = response.Error.Message
		logger.Warn("JSON-RPC response error", fields)
		return
	}
	logger.Debug("JSON-RPC response", fields)
}

// LogStartup logs gateway startup information
func LogStartup(logger *Logger, name, version, address string) {
	logger.Info("gateway starting", Fields{
		"name":    name,
		"version": version,
		"address": address,
	})
}
