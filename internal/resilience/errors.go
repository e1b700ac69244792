package resilience

import (
	"errors"
	"net"
	"net/http"
	"strings"
	"syscall"
)

// TransientError marks a failure that is safe to retry, such as a 429 or 5xx
// response from a provider.
type TransientError struct {
	Err        error
	StatusCode int
}

func (e *TransientError) Error() string { return e.Err.Error() }

func (e *TransientError) Unwrap() error { return e.Err }

// NewTransientError wraps err as retryable.
func NewTransientError(err error, statusCode int) *TransientError {
	return &TransientError{Err: err, StatusCode: statusCode}
}

var transientPatterns = []string{
	"connection reset by peer",
	"broken pipe",
	"no such host",
	"i/o timeout",
	"tls handshake timeout",
	"server closed idle connection",
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var te *TransientError
	if errors.As(err, &te) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// IsTransientStatus reports whether an HTTP status is retryable.
func IsTransientStatus(code int) bool {
	switch code {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}
