package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"syscall"
)

// ErrorKind is the closed taxonomy every adapter failure is mapped into.
type ErrorKind string

const (
	KindTimeout          ErrorKind = "TIMEOUT"
	KindNetwork          ErrorKind = "NETWORK"
	KindAuth             ErrorKind = "AUTH"
	KindValidation       ErrorKind = "VALIDATION"
	KindCircuitOpen      ErrorKind = "CIRCUIT_OPEN"
	KindUpstreamBusiness ErrorKind = "UPSTREAM_BUSINESS"
	KindUnknown          ErrorKind = "UNKNOWN"
)

// Retryable reports whether the executor may retry a failure of this kind.
func (k ErrorKind) Retryable() bool {
	switch k {
	case KindTimeout, KindNetwork:
		return true
	default:
		return false
	}
}

// AdapterError is a classified failure enriched with the operation that
// produced it and the correlation id in flight, wrapping the original cause.
type AdapterError struct {
	Kind          ErrorKind
	Operation     string
	CorrelationID string
	Message       string
	Err           error
}

func (e *AdapterError) Error() string {
	msg := fmt.Sprintf("%s [%s]", e.Message, e.Kind)
	if e.Operation != "" {
		msg = e.Operation + ": " + msg
	}
	if e.CorrelationID != "" {
		msg += " uetr=" + e.CorrelationID
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AdapterError) Unwrap() error { return e.Err }

// Retryable reports whether the underlying kind allows a retry.
func (e *AdapterError) Retryable() bool { return e.Kind.Retryable() }

var kindMessages = map[ErrorKind]string{
	KindTimeout:          "remote call exceeded its deadline",
	KindNetwork:          "transport failure reaching remote system",
	KindAuth:             "authentication with remote system failed",
	KindValidation:       "request rejected as invalid",
	KindCircuitOpen:      "circuit breaker is open, call not attempted",
	KindUpstreamBusiness: "remote system reported a business error",
	KindUnknown:          "unclassified failure",
}

// NewError builds a classified error directly, for callers that already know
// the kind (validation failures, upstream business rejections).
func NewError(kind ErrorKind, operation, correlationID string, cause error) *AdapterError {
	return &AdapterError{
		Kind:          kind,
		Operation:     operation,
		CorrelationID: correlationID,
		Message:       kindMessages[kind],
		Err:           cause,
	}
}

// Classify maps an arbitrary failure into the taxonomy. Precedence: an error
// already carrying a classification keeps its original kind; context
// deadline/timeout signals map to TIMEOUT; transport failures to NETWORK;
// token/auth message content to AUTH; everything else to UNKNOWN.
// Pure function: no I/O, no state.
func Classify(err error, operation, correlationID string) *AdapterError {
	if err == nil {
		return nil
	}

	var prior *AdapterError
	if errors.As(err, &prior) {
		return &AdapterError{
			Kind:          prior.Kind,
			Operation:     operation,
			CorrelationID: firstNonEmpty(correlationID, prior.CorrelationID),
			Message:       kindMessages[prior.Kind],
			Err:           err,
		}
	}

	kind := KindUnknown
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) || isTimeout(err):
		kind = KindTimeout
	case isNetwork(err):
		kind = KindNetwork
	case containsAny(strings.ToLower(err.Error()), "token", "auth", "unauthorized", "forbidden"):
		kind = KindAuth
	}

	return &AdapterError{
		Kind:          kind,
		Operation:     operation,
		CorrelationID: correlationID,
		Message:       kindMessages[kind],
		Err:           err,
	}
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isNetwork(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	return errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET)
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
