package agents

import (
	"encoding/json"
	"fmt"
)

// Status is the liveness classification of an agent.
type Status int

const (
	StatusUnknown   Status = iota // Not checked yet
	StatusHealthy                 // Responded with status "healthy"
	StatusUnhealthy               // Responded, but not healthy
	StatusOffline                 // No response within the timeout, or transport error
)

func (s Status) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusUnhealthy:
		return "unhealthy"
	case StatusOffline:
		return "offline"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the status as its lowercase name.
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON accepts the names produced by MarshalJSON.
func (s *Status) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	switch name {
	case "unknown":
		*s = StatusUnknown
	case "healthy":
		*s = StatusHealthy
	case "unhealthy":
		*s = StatusUnhealthy
	case "offline":
		*s = StatusOffline
	default:
		return fmt.Errorf("unknown agent status %q", name)
	}
	return nil
}
