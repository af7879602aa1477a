package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/aristath/autodev/internal/agents"
)

// maxResponseBytes bounds how much of an agent response is read.
const maxResponseBytes = 32 << 20

// HTTPExecutor posts stage requests to {address}/agents/{stage}. Each agent
// sits behind its own circuit breaker; failed calls are never retried.
type HTTPExecutor struct {
	registry *agents.Registry
	client   *http.Client
	breakers *BreakerRegistry
}

// NewHTTPExecutor creates an executor for the agents in registry. A nil
// client means http.DefaultClient; a nil breakers registry gets defaults.
func NewHTTPExecutor(registry *agents.Registry, client *http.Client, breakers *BreakerRegistry) *HTTPExecutor {
	if client == nil {
		client = http.DefaultClient
	}
	if breakers == nil {
		breakers = NewBreakerRegistry(BreakerConfig{})
	}
	return &HTTPExecutor{
		registry: registry,
		client:   client,
		breakers: breakers,
	}
}

// Breakers exposes the breaker registry, mainly for status reporting.
func (e *HTTPExecutor) Breakers() *BreakerRegistry {
	return e.breakers
}

// Execute implements Executor.
func (e *HTTPExecutor) Execute(ctx context.Context, stage string, request any, timeout time.Duration) (json.RawMessage, error) {
	agent, ok := e.registry.Lookup(stage)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAgent, stage)
	}

	body, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", stage, err)
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	result, err := e.breakers.Get(stage).Execute(func() (interface{}, error) {
		return e.post(ctx, agent, body)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &TransportError{Agent: stage, Err: err}
		}
		return nil, err
	}

	return result.(json.RawMessage), nil
}

func (e *HTTPExecutor) post(ctx context.Context, agent agents.Descriptor, body []byte) (json.RawMessage, error) {
	url := agent.Address + "/agents/" + agent.Name
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, &TransportError{Agent: agent.Name, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, &TransportError{Agent: agent.Name, Err: contextCause(ctx, err)}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &TransportError{Agent: agent.Name, Err: contextCause(ctx, err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &ApplicationError{
			Agent:      agent.Name,
			StatusCode: resp.StatusCode,
			Detail:     errorDetail(data),
		}
	}

	// The envelope check is lenient: an undecodable body is left for the
	// caller's typed decode to reject as malformed.
	var envelope struct {
		Status *string `json:"status"`
		Error  string  `json:"error"`
		Detail string  `json:"detail"`
	}
	if json.Unmarshal(data, &envelope) == nil && envelope.Status != nil && *envelope.Status != "success" {
		detail := envelope.Error
		if detail == "" {
			detail = envelope.Detail
		}
		if detail == "" {
			detail = "status " + *envelope.Status
		}
		return nil, &ApplicationError{Agent: agent.Name, Detail: detail}
	}

	return json.RawMessage(data), nil
}

// contextCause prefers the context error so timeouts and cancellation are
// recognisable with errors.Is regardless of how the transport wrapped them.
func contextCause(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}

// errorDetail extracts a human-readable reason from an error body.
func errorDetail(data []byte) string {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
		Error  string          `json:"error"`
	}
	if err := json.Unmarshal(data, &payload); err == nil {
		var s string
		if len(payload.Detail) > 0 && json.Unmarshal(payload.Detail, &s) == nil && s != "" {
			return s
		}
		if len(payload.Detail) > 0 && string(payload.Detail) != "null" {
			return string(payload.Detail)
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	text := strings.TrimSpace(string(data))
	if len(text) > 200 {
		text = text[:200] + "..."
	}
	return text
}
