package dto

import (
	"testing"
	"time"

	"github.com/iho/freightsettle/internal/infrastructure/scheduler"
)

func TestSchedulerFromStatus(t *testing.T) {
	started := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	st := scheduler.Status{
		State: scheduler.StateRunning,
		Jobs: []scheduler.JobStatus{
			{Name: "hourly", Schedule: "@hourly", LastRun: &scheduler.RunRecord{
				RunID: "run-1", StartedAt: started, Duration: 1500 * time.Millisecond, Error: "boom",
			}},
			{Name: "daily", Schedule: "@daily"},
		},
	}

	resp := SchedulerFromStatus(st)

	if resp.State != "running" || len(resp.Jobs) != 2 {
		t.Fatalf("unexpected response %+v", resp)
	}
	if last := resp.Jobs[0].LastRun; last == nil || last.DurationMS != 1500 || last.Error != "boom" {
		t.Fatalf("unexpected last run %+v", last)
	}
	if resp.Jobs[1].LastRun != nil {
		t.Fatalf("expected no last run for daily")
	}

	if FindJob(st, "daily") == nil || FindJob(st, "weekly") != nil {
		t.Fatalf("FindJob returned unexpected results")
	}
}
