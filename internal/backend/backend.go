// Package backend carries pipeline stage calls to the agent services.
package backend

import (
	"context"
	"encoding/json"
	"time"
)

// Executor invokes one pipeline stage on the agent serving it.
type Executor interface {
	// Execute sends request to the agent for stage and returns the raw
	// response body. The call is abandoned once timeout elapses or ctx is
	// done. Failures are *TransportError, *ApplicationError or
	// *MalformedResponseError.
	Execute(ctx context.Context, stage string, request any, timeout time.Duration) (json.RawMessage, error)
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, stage string, request any, timeout time.Duration) (json.RawMessage, error)

// Execute calls f.
func (f ExecutorFunc) Execute(ctx context.Context, stage string, request any, timeout time.Duration) (json.RawMessage, error) {
	return f(ctx, stage, request, timeout)
}
