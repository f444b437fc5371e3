package client

import "time"

// Status is the snapshot served by GET {base}/status.
type Status struct {
	SessionID           string    `json:"session_id"`
	State               string    `json:"state"`
	StartedAt           time.Time `json:"started_at"`
	WindowStart         time.Time `json:"window_start"`
	Polls               int       `json:"polls"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	Rendered            int       `json:"rendered"`
	Duplicates          int       `json:"duplicates"`
	Stale               int       `json:"stale"`
	Tracked             int       `json:"tracked"`
	LastPoll            time.Time `json:"last_poll,omitzero"`
	LastError           string    `json:"last_error,omitempty"`
}

// Health is the body of GET {base}/healthz.
type Health struct {
	Status string `json:"status"`
	State  string `json:"state"`
	Error  string `json:"error,omitempty"`
}

// OK reports whether the tail is alive.
func (h Health) OK() bool { return h.Status == "ok" }

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error string `json:"error"`
}
