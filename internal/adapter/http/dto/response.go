package dto

import (
	"time"

	"github.com/iho/freightsettle/internal/infrastructure/scheduler"
)

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// RunResponse describes one job run.
type RunResponse struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	DurationMS int64     `json:"duration_ms"`
	Error      string    `json:"error,omitempty"`
	Skipped    string    `json:"skipped,omitempty"`
}

// JobResponse describes a registered job.
type JobResponse struct {
	Name     string       `json:"name"`
	Schedule string       `json:"schedule"`
	Running  bool         `json:"running"`
	NextRun  *time.Time   `json:"next_run,omitempty"`
	LastRun  *RunResponse `json:"last_run,omitempty"`
}

// SchedulerResponse is the body of GET /api/v1/scheduler.
type SchedulerResponse struct {
	State string         `json:"state"`
	Jobs  []*JobResponse `json:"jobs"`
}

// JobRunResponse is the body returned after a manual run.
type JobRunResponse struct {
	Job     string       `json:"job"`
	Status  string       `json:"status"`
	LastRun *RunResponse `json:"last_run,omitempty"`
}

// RunFromScheduler converts a run record to a response.
func RunFromScheduler(r *scheduler.RunRecord) *RunResponse {
	if r == nil {
		return nil
	}
	return &RunResponse{
		RunID:      r.RunID,
		StartedAt:  r.StartedAt,
		DurationMS: r.Duration.Milliseconds(),
		Error:      r.Error,
		Skipped:    r.Skipped,
	}
}

// SchedulerFromStatus converts a scheduler status to a response.
func SchedulerFromStatus(st scheduler.Status) *SchedulerResponse {
	resp := &SchedulerResponse{
		State: st.State.String(),
		Jobs:  make([]*JobResponse, len(st.Jobs)),
	}
	for i, j := range st.Jobs {
		resp.Jobs[i] = &JobResponse{
			Name:     j.Name,
			Schedule: j.Schedule,
			Running:  j.Running,
			NextRun:  j.NextRun,
			LastRun:  RunFromScheduler(j.LastRun),
		}
	}
	return resp
}

// FindJob returns the named job from a status, or nil.
func FindJob(st scheduler.Status, name string) *scheduler.JobStatus {
	for i := range st.Jobs {
		if st.Jobs[i].Name == name {
			return &st.Jobs[i]
		}
	}
	return nil
}
