package backend

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnknownAgent is returned when no agent is registered for a stage.
var ErrUnknownAgent = errors.New("unknown agent")

// TransportError means no usable response arrived: connection failure,
// timeout, or an open circuit breaker.
type TransportError struct {
	Agent string
	Err   error
}

func (e *TransportError) Error() string {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return fmt.Sprintf("%s agent: timed out", e.Agent)
	}
	return fmt.Sprintf("%s agent unreachable: %v", e.Agent, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Timeout reports whether the call ran out of time.
func (e *TransportError) Timeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}

// ApplicationError means the agent answered but signalled failure, either
// through a non-2xx HTTP status or a payload status other than "success".
type ApplicationError struct {
	Agent      string
	StatusCode int    // HTTP status; 0 when the failure came from the payload
	Detail     string // Agent-provided reason, if any
}

func (e *ApplicationError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Detail != "":
		return fmt.Sprintf("%s agent returned HTTP %d: %s", e.Agent, e.StatusCode, e.Detail)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s agent returned HTTP %d", e.Agent, e.StatusCode)
	default:
		return fmt.Sprintf("%s agent reported failure: %s", e.Agent, e.Detail)
	}
}

// MalformedResponseError means the response could not be decoded or lacks
// required fields.
type MalformedResponseError struct {
	Agent  string
	Reason string
	Err    error
}

func (e *MalformedResponseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed %s response: %s: %v", e.Agent, e.Reason, e.Err)
	}
	return fmt.Sprintf("malformed %s response: %s", e.Agent, e.Reason)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }
