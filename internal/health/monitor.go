// Package health polls every registered agent's liveness endpoint on a fixed
// interval and keeps the latest per-agent classification.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"

	"github.com/aristath/autodev/internal/agents"
)

// maxHealthBody caps how much of a /health response is read.
const maxHealthBody = 64 << 10

// Config configures a Monitor.
type Config struct {
	Interval time.Duration // Time between cycles (default 10s)
	Timeout  time.Duration // Per-request bound (default 2s)
	Client   *http.Client  // Optional; a fresh client is used when nil
}

// snapshot is replaced wholesale at the end of each cycle.
type snapshot struct {
	statuses  map[string]agents.Status
	checkedAt time.Time
}

// Monitor polls agent liveness. It is the only writer of the status snapshot
// and touches nothing else.
type Monitor struct {
	registry *agents.Registry
	client   *http.Client
	interval time.Duration
	timeout  time.Duration

	current atomic.Pointer[snapshot]

	mu     sync.Mutex // Guards cancel and done
	cancel context.CancelFunc
	done   chan struct{}
}

// NewMonitor creates a monitor with every agent in Unknown state.
func NewMonitor(registry *agents.Registry, cfg Config) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{}
	}

	m := &Monitor{
		registry: registry,
		client:   client,
		interval: cfg.Interval,
		timeout:  cfg.Timeout,
	}

	initial := make(map[string]agents.Status, registry.Len())
	for _, d := range registry.Agents() {
		initial[d.Name] = agents.StatusUnknown
	}
	m.current.Store(&snapshot{statuses: initial})

	return m
}

// Start begins the periodic check cycle. The first cycle runs immediately.
// Calling Start on a running monitor is a no-op.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cancel != nil {
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})

	go m.loop(loopCtx, m.done)
}

// Stop halts the check cycle and waits for the loop to exit.
func (m *Monitor) Stop() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (m *Monitor) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		m.CheckNow(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Snapshot returns a copy of the current per-agent statuses.
func (m *Monitor) Snapshot() map[string]agents.Status {
	snap := m.current.Load()
	out := make(map[string]agents.Status, len(snap.statuses))
	for name, s := range snap.statuses {
		out[name] = s
	}
	return out
}

// LastChecked returns when the current snapshot was produced, zero before
// the first completed cycle.
func (m *Monitor) LastChecked() time.Time {
	return m.current.Load().checkedAt
}

// CheckNow runs one cycle: every agent is checked concurrently, each bounded
// by the per-request timeout, and the snapshot is replaced once all checks
// resolve. A cycle interrupted by ctx cancellation is discarded.
func (m *Monitor) CheckNow(ctx context.Context) map[string]agents.Status {
	descriptors := m.registry.Agents()
	results := make([]agents.Status, len(descriptors))

	var g errgroup.Group
	for i, d := range descriptors {
		g.Go(func() error {
			results[i] = m.check(ctx, d)
			return nil
		})
	}
	_ = g.Wait()

	statuses := make(map[string]agents.Status, len(descriptors))
	for i, d := range descriptors {
		statuses[d.Name] = results[i]
	}

	if ctx.Err() != nil {
		return m.Snapshot()
	}

	m.current.Store(&snapshot{statuses: statuses, checkedAt: time.Now()})
	return m.Snapshot()
}

// healthResponse is the body of GET /health.
type healthResponse struct {
	Status string `json:"status"`
}

// check classifies one agent. Any transport failure is Offline; any received
// response is Healthy only if its status field reads "healthy".
func (m *Monitor) check(ctx context.Context, d agents.Descriptor) agents.Status {
	reqCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, d.Address+"/health", nil)
	if err != nil {
		return agents.StatusOffline
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return agents.StatusOffline
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return agents.StatusUnhealthy
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxHealthBody))
	if err != nil {
		// Body cut off by the timeout counts as no response
		return agents.StatusOffline
	}

	var hr healthResponse
	if err := json.Unmarshal(data, &hr); err != nil {
		return agents.StatusUnhealthy
	}
	if hr.Status != "healthy" {
		return agents.StatusUnhealthy
	}
	return agents.StatusHealthy
}

// WaitHealthy re-checks with exponential backoff until every agent is
// Healthy, maxWait elapses, or ctx is cancelled.
func (m *Monitor) WaitHealthy(ctx context.Context, maxWait time.Duration) error {
	operation := func() error {
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}

		statuses := m.CheckNow(ctx)
		var down []string
		for name, s := range statuses {
			if s != agents.StatusHealthy {
				down = append(down, fmt.Sprintf("%s=%s", name, s))
			}
		}
		if len(down) > 0 {
			sort.Strings(down)
			return fmt.Errorf("agents not healthy: %s", strings.Join(down, ", "))
		}
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 250 * time.Millisecond
	policy.MaxInterval = m.interval
	policy.MaxElapsedTime = maxWait

	return backoff.Retry(operation, backoff.WithContext(policy, ctx))
}
