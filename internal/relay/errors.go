package relay

import (
	"fmt"
	"net/http"

	"peerlink/internal/domain"
)

// StatusError is a non-2xx response from the coordinating server.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("relay %s %s: %s", e.Method, e.Path, e.Status)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// Is lets callers match StatusError against the domain sentinels.
func (e *StatusError) Is(target error) bool {
	switch target {
	case domain.ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
	case domain.ErrPeerNotFound:
		return e.StatusCode == http.StatusNotFound
	case domain.ErrUsernameTaken:
		return e.StatusCode == http.StatusConflict
	}
	return false
}

// Temporary reports whether retrying the request may succeed.
func (e *StatusError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}
