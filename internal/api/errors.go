package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/nonprofit-ranker/internal/model"
	"github.com/sells-group/nonprofit-ranker/internal/store"
)

// Error codes returned in ErrorResponse.
const (
	CodeBadRequest       = "bad_request"
	CodeInvalidProfile   = "invalid_profile"
	CodeInvalidWeights   = "invalid_weights"
	CodeNotFound         = "not_found"
	CodeUnavailable      = "unavailable"
	CodeStoreUnavailable = "store_unavailable"
	CodeInternal         = "internal"
)

// ErrorResponse is the JSON body of every non-2xx response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes one error.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("api: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: ErrorDetail{Code: code, Message: message}})
}

// classify maps an error to an HTTP status and code.
func classify(err error) (int, string) {
	switch {
	case eris.Is(err, model.ErrInvalidWeights):
		return http.StatusUnprocessableEntity, CodeInvalidWeights
	case eris.Is(err, model.ErrInvalidProfile):
		return http.StatusBadRequest, CodeInvalidProfile
	case eris.Is(err, store.ErrRunNotFound):
		return http.StatusNotFound, CodeNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, CodeUnavailable
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}

func writeErr(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		zap.L().Error("api: request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
		msg = "internal server error"
	}
	writeError(w, status, code, msg)
}

// requestLogger logs one line per request through the global zap logger.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("api: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
