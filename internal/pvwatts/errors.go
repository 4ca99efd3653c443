package pvwatts

import (
	"fmt"
	"strings"
)

type ErrorKind string

const (
	KindTransport   ErrorKind = "transport"
	KindStatus      ErrorKind = "status"
	KindEngine      ErrorKind = "engine"
	KindDecode      ErrorKind = "decode"
	KindTimeout     ErrorKind = "timeout"
	KindUnavailable ErrorKind = "unavailable"
)

// EngineError is returned for every failed simulation call. Message keeps
// the upstream text so it can be shown to the user as is.
type EngineError struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
	Errors     []string
	Err        error
}

func (e *EngineError) Error() string {
	msg := e.Message
	if msg == "" && len(e.Errors) > 0 {
		msg = strings.Join(e.Errors, ", ")
	}
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("pvwatts %s error (status %d): %s", e.Kind, e.StatusCode, msg)
	}
	return fmt.Sprintf("pvwatts %s error: %s", e.Kind, msg)
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

func (e *EngineError) Timeout() bool {
	return e.Kind == KindTimeout
}

// upstreamFault reports failures that count against the circuit breaker.
// A request the engine rejects says nothing about its health.
func (e *EngineError) upstreamFault() bool {
	switch e.Kind {
	case KindTransport, KindTimeout:
		return true
	case KindStatus:
		return e.StatusCode >= 500 || e.StatusCode == 429
	default:
		return false
	}
}
