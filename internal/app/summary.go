package service

import (
	"time"

	"github.com/phucmetlamroi/agency-manager/internal/domain/model"
	"github.com/phucmetlamroi/agency-manager/internal/domain/types"
)

// State is a run's position in Idle -> Running -> {Completed, Failed}.
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// Failure stages.
const (
	StageCompute = "compute"
	StagePersist = "persist"
)

// Failure records one client that was not updated.
type Failure struct {
	ClientID string
	Stage    string
	Err      error
}

// Summary is the outcome of one run.
type Summary struct {
	RunID        string
	State        State
	ClientsRead  int
	UpdatedCount int
	FailedCount  int
	AnomalyCount int
	Failures     []Failure
	TierCounts   map[model.Tier]int
	StartedAt    time.Time
	Duration     time.Duration
	Err          error
}

// Report converts the summary to its wire form.
func (s *Summary) Report() types.RunReport {
	r := types.RunReport{
		Status:      types.StatusSuccess,
		RunID:       s.RunID,
		State:       string(s.State),
		Updated:     s.UpdatedCount,
		ClientsRead: s.ClientsRead,
		Failed:      s.FailedCount,
		Anomalies:   s.AnomalyCount,
		StartedAt:   s.StartedAt,
		DurationMs:  s.Duration.Milliseconds(),
	}
	if s.State != StateCompleted {
		r.Status = types.StatusFailed
	}
	if s.Err != nil {
		r.Error = s.Err.Error()
	}
	if len(s.TierCounts) > 0 {
		r.Tiers = make(map[string]int, len(s.TierCounts))
		for t, n := range s.TierCounts {
			r.Tiers[t.String()] = n
		}
	}
	for _, f := range s.Failures {
		r.Failures = append(r.Failures, types.FailureEntry{ClientID: f.ClientID, Stage: f.Stage, Reason: f.Err.Error()})
	}
	return r
}
