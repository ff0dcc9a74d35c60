package conversation_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"memchat/internal/conversation"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want conversation.ErrorKind
	}{
		{"connection refused", &conversation.TransportError{Kind: conversation.FailureNetwork, Err: errors.New("dial tcp 127.0.0.1:5000: connect: connection refused")}, conversation.KindUnreachable},
		{"bad gateway", &conversation.TransportError{Kind: conversation.FailureStatus, StatusCode: 502}, conversation.KindBackendRestarting},
		{"forbidden", &conversation.TransportError{Kind: conversation.FailureStatus, StatusCode: 403}, conversation.KindAccessDenied},
		{"internal error", &conversation.TransportError{Kind: conversation.FailureStatus, StatusCode: 500}, conversation.KindServerError},
		{"service unavailable", &conversation.TransportError{Kind: conversation.FailureStatus, StatusCode: 503}, conversation.KindServerError},
		{"bad request", &conversation.TransportError{Kind: conversation.FailureStatus, StatusCode: 400}, conversation.KindUnknown},
		{"not found", &conversation.TransportError{Kind: conversation.FailureStatus, StatusCode: 404}, conversation.KindUnknown},
		{"local timeout", &conversation.TransportError{Kind: conversation.FailureTimeout}, conversation.KindTimeout},
		{"protocol", &conversation.TransportError{Kind: conversation.FailureProtocol, Err: errors.New("invalid character")}, conversation.KindUnknown},
		{"deadline", context.DeadlineExceeded, conversation.KindTimeout},
		{"cancelled", fmt.Errorf("send: %w", context.Canceled), conversation.KindTimeout},
		{"network wrapping deadline", &conversation.TransportError{Kind: conversation.FailureNetwork, Err: context.DeadlineExceeded}, conversation.KindTimeout},
		{"wrapped transport error", fmt.Errorf("outer: %w", &conversation.TransportError{Kind: conversation.FailureStatus, StatusCode: 502}), conversation.KindBackendRestarting},
		{"plain error", errors.New("boom"), conversation.KindUnknown},
		{"nil", nil, conversation.KindUnknown},
		{"unknown failure kind", &conversation.TransportError{Kind: conversation.FailureKind(42)}, conversation.KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for i := 0; i < 3; i++ {
				if got := conversation.Classify(tt.err); got != tt.want {
					t.Fatalf("call %d: got %q, want %q", i, got, tt.want)
				}
			}
		})
	}
}

func TestErrorKindText(t *testing.T) {
	kinds := []conversation.ErrorKind{
		conversation.KindUnreachable,
		conversation.KindBackendRestarting,
		conversation.KindAccessDenied,
		conversation.KindServerError,
		conversation.KindTimeout,
		conversation.KindUnknown,
	}
	seen := map[string]bool{}
	for _, k := range kinds {
		text := k.Text()
		if text == "" {
			t.Fatalf("expected text for %q", k)
		}
		if seen[text] {
			t.Fatalf("expected distinct text per kind, %q repeated", text)
		}
		seen[text] = true
	}
	if conversation.ErrorKind("bogus").Text() != conversation.KindUnknown.Text() {
		t.Fatalf("expected unknown kinds to fall back to the generic text")
	}
}

func TestErrorKindRetryable(t *testing.T) {
	if !conversation.KindUnreachable.Retryable() || !conversation.KindTimeout.Retryable() {
		t.Fatalf("expected unreachable and timeout to be retryable")
	}
	if conversation.KindBackendRestarting.Retryable() || conversation.KindAccessDenied.Retryable() || conversation.KindUnknown.Retryable() {
		t.Fatalf("expected other kinds not to be retryable")
	}
}

func TestTransportErrorMessage(t *testing.T) {
	err := &conversation.TransportError{Kind: conversation.FailureStatus, StatusCode: 502, Err: errors.New("bad gateway")}
	if err.Error() != "chat http 502: bad gateway" {
		t.Fatalf("unexpected message: %q", err.Error())
	}
	inner := errors.New("connection refused")
	netErr := &conversation.TransportError{Kind: conversation.FailureNetwork, Err: inner}
	if !errors.Is(netErr, inner) {
		t.Fatalf("expected Unwrap to expose the cause")
	}
	if netErr.Error() != "chat network error: connection refused" {
		t.Fatalf("unexpected message: %q", netErr.Error())
	}
}
