// Package types contains the run report shared by the HTTP API and the CLI.
package types

import "time"

// Report status values.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// FailureEntry describes one client that was not updated.
type FailureEntry struct {
	ClientID string `json:"client_id"`
	Stage    string `json:"stage"`
	Reason   string `json:"reason"`
}

// RunReport is the wire form of a finished scoring run.
type RunReport struct {
	Status      string         `json:"status"`
	RunID       string         `json:"run_id"`
	State       string         `json:"state"`
	Updated     int            `json:"updated"`
	ClientsRead int            `json:"clients_read"`
	Failed      int            `json:"failed"`
	Anomalies   int            `json:"anomalies"`
	Tiers       map[string]int `json:"tiers,omitempty"`
	Failures    []FailureEntry `json:"failures,omitempty"`
	StartedAt   time.Time      `json:"started_at"`
	DurationMs  int64          `json:"duration_ms"`
	Error       string         `json:"error,omitempty"`
}

// Succeeded reports whether the run completed.
func (r *RunReport) Succeeded() bool { return r.Status == StatusSuccess }
