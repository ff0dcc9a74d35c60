package conversation

import (
	"context"
	"fmt"
)

// Reply is a successful round trip. SessionToken and ExchangeCount are nil
// when the service omitted them.
type Reply struct {
	Text          string
	SessionToken  *string
	ExchangeCount *int
}

// Transport performs one request/response exchange with the remote service.
// sessionToken is nil before the service has issued one. Implementations
// bound the call with their own timeout, do not retry, and report failures
// as *TransportError.
type Transport interface {
	Send(ctx context.Context, message string, sessionToken *string) (Reply, error)
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, message string, sessionToken *string) (Reply, error)

func (f TransportFunc) Send(ctx context.Context, message string, sessionToken *string) (Reply, error) {
	return f(ctx, message, sessionToken)
}

// FailureKind is the transport-level signal behind a TransportError.
type FailureKind int

const (
	// FailureNetwork means no response was received: dial, DNS, reset.
	FailureNetwork FailureKind = iota
	// FailureStatus means the service answered with a non-2xx status.
	FailureStatus
	// FailureTimeout means the local deadline elapsed or the request was cancelled.
	FailureTimeout
	// FailureProtocol means a 2xx answer that could not be decoded.
	FailureProtocol
)

func (k FailureKind) String() string {
	switch k {
	case FailureNetwork:
		return "network"
	case FailureStatus:
		return "status"
	case FailureTimeout:
		return "timeout"
	case FailureProtocol:
		return "protocol"
	default:
		return fmt.Sprintf("failure(%d)", int(k))
	}
}

// TransportError is the only failure type a Transport reports.
type TransportError struct {
	Kind       FailureKind
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	switch {
	case e.Kind == FailureStatus && e.Err != nil:
		return fmt.Sprintf("chat http %d: %v", e.StatusCode, e.Err)
	case e.Kind == FailureStatus:
		return fmt.Sprintf("chat http %d", e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("chat %s error: %v", e.Kind, e.Err)
	default:
		return fmt.Sprintf("chat %s error", e.Kind)
	}
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
