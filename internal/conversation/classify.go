package conversation

import (
	"context"
	"errors"
	"net/http"
)

// ErrorKind is the user-facing category of a failed exchange.
type ErrorKind string

const (
	KindNone              ErrorKind = ""
	KindUnreachable       ErrorKind = "unreachable"
	KindBackendRestarting ErrorKind = "backend_restarting"
	KindAccessDenied      ErrorKind = "access_denied"
	KindServerError       ErrorKind = "server_error"
	KindTimeout           ErrorKind = "timeout"
	KindUnknown           ErrorKind = "unknown"
)

var kindText = map[ErrorKind]string{
	KindUnreachable:       "Network error: cannot connect to the server. Please check your connection.",
	KindBackendRestarting: "Server is temporarily unavailable. Please try again in a moment.",
	KindAccessDenied:      "Access denied: please check the server's cross-origin configuration.",
	KindServerError:       "The server hit an error. Please try again later.",
	KindTimeout:           "The request timed out. Please try again.",
	KindUnknown:           "Sorry, I encountered an error. Please try again.",
}

// Text is the message shown to the user for k.
func (k ErrorKind) Text() string {
	if text, ok := kindText[k]; ok {
		return text
	}
	return kindText[KindUnknown]
}

// Retryable reports whether an automatic retry may help.
func (k ErrorKind) Retryable() bool {
	return k == KindUnreachable || k == KindTimeout
}

// Classify maps a transport failure to exactly one ErrorKind. It is pure:
// the same error always yields the same kind. Cancellation anywhere in the
// chain counts as a timeout.
func Classify(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindTimeout
	}
	var te *TransportError
	if !errors.As(err, &te) {
		return KindUnknown
	}
	switch te.Kind {
	case FailureNetwork:
		return KindUnreachable
	case FailureTimeout:
		return KindTimeout
	case FailureStatus:
		switch {
		case te.StatusCode == http.StatusBadGateway:
			return KindBackendRestarting
		case te.StatusCode == http.StatusForbidden:
			return KindAccessDenied
		case te.StatusCode >= 500:
			return KindServerError
		}
	}
	return KindUnknown
}
