// Package httpx holds the JSON envelope and the middleware chain shared by the
// services' HTTP adapters.
package httpx

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const HeaderRequestID = "X-Request-Id"

// ErrorBody is the envelope of every non-2xx response.
type ErrorBody struct {
	Status  string `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorMapper turns a domain error into status, machine code and client message.
type ErrorMapper func(err error) (status int, code, message string)

func JSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func Success(w http.ResponseWriter, status int, data any) {
	JSON(w, status, map[string]any{"status": "success", "data": data})
}

func Message(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]any{"status": "success", "message": message})
}

func Error(w http.ResponseWriter, status int, code, message string) {
	JSON(w, status, ErrorBody{Status: "error", Code: code, Message: message})
}

// Fail writes the mapped error envelope. Server-side failures log at Error,
// client mistakes at Warn.
func Fail(ctx context.Context, w http.ResponseWriter, logger *slog.Logger, mapErr ErrorMapper, operation string, err error) {
	status, code, message := mapErr(err)
	fields := []any{
		"operation", operation,
		"outcome", "failure",
		"status_code", status,
		"error_code", code,
		"request_id", RequestIDFrom(ctx),
		"error", err.Error(),
	}
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(ctx, "http operation failed", fields...)
	} else {
		logger.WarnContext(ctx, "http operation failed", fields...)
	}
	Error(w, status, code, message)
}

type requestIDKey struct{}

// RequestID propagates the caller's X-Request-Id or mints one.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(HeaderRequestID, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func Recover(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.ErrorContext(r.Context(), "http handler panicked",
						"outcome", "failure",
						"request_id", RequestIDFrom(r.Context()),
						"panic", rec,
					)
					Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			logger.DebugContext(r.Context(), "http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status_code", rec.status,
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", RequestIDFrom(r.Context()),
			)
		})
	}
}

// NewRouter returns a chi router with the shared middleware chain and the
// /healthz and /readyz health checks mounted.
func NewRouter(logger *slog.Logger) chi.Router {
	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Recover(logger))
	r.Use(Logging(logger))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { Message(w, http.StatusOK, "ok") })
	r.Get("/readyz", func(w http.ResponseWriter, _ *http.Request) { Message(w, http.StatusOK, "ready") })
	return r
}
