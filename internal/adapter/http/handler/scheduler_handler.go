package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/iho/freightsettle/internal/adapter/http/dto"
	"github.com/iho/freightsettle/internal/infrastructure/logging"
	"github.com/iho/freightsettle/internal/infrastructure/scheduler"
)

// JobRunner is the scheduler surface exposed over HTTP.
type JobRunner interface {
	Status() scheduler.Status
	RunNow(ctx context.Context, name string) error
}

// SchedulerHandler serves scheduler status and manual job runs.
type SchedulerHandler struct {
	runner JobRunner
	logger zerolog.Logger
}

// NewSchedulerHandler creates a new SchedulerHandler.
func NewSchedulerHandler(runner JobRunner, logger zerolog.Logger) *SchedulerHandler {
	return &SchedulerHandler{runner: runner, logger: logger}
}

// Status handles GET /api/v1/scheduler.
func (h *SchedulerHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, dto.SchedulerFromStatus(h.runner.Status()))
}

// RunJob handles POST /api/v1/jobs/{name}/run. The job runs to completion
// even if the client disconnects. With ?async=true it answers 202 at once.
func (h *SchedulerHandler) RunJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if dto.FindJob(h.runner.Status(), name) == nil {
		writeError(w, http.StatusNotFound, "job not found", name)
		return
	}

	ctx := logging.WithRequestID(context.WithoutCancel(r.Context()), chimiddleware.GetReqID(r.Context()))

	if r.URL.Query().Get("async") == "true" {
		go func() {
			if err := h.runner.RunNow(ctx, name); err != nil {
				h.logger.Error().Err(err).Str("job", name).Msg("manual job run failed")
			}
		}()
		writeJSON(w, http.StatusAccepted, dto.JobRunResponse{Job: name, Status: "accepted"})
		return
	}

	err := h.runner.RunNow(ctx, name)

	var last *dto.RunResponse
	if job := dto.FindJob(h.runner.Status(), name); job != nil {
		last = dto.RunFromScheduler(job.LastRun)
	}

	if err != nil {
		h.logger.Error().Err(err).Str("job", name).Msg("manual job run failed")
		writeError(w, mapDomainError(err), "job run failed", err.Error())
		return
	}

	status := "completed"
	if last != nil && last.Skipped != "" {
		status = "skipped"
	}

	writeJSON(w, http.StatusOK, dto.JobRunResponse{Job: name, Status: status, LastRun: last})
}
