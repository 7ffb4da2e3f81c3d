package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Trigger fires registered callbacks on a schedule.
type Trigger interface {
	Add(spec string, fn func()) (int, error)
	Remove(id int)
	Next(id int) time.Time
	Start()
	// Stop halts new firings. The returned context is done once running
	// callbacks have returned.
	Stop() context.Context
}

// CronTrigger is a Trigger backed by robfig/cron. A callback still running
// when its next firing comes due is skipped, and panics are recovered.
type CronTrigger struct {
	cron *cron.Cron
}

// NewCronTrigger creates a CronTrigger logging through logger.
func NewCronTrigger(logger *slog.Logger) *CronTrigger {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	c := cron.New(
		cron.WithLogger(cronLogger),
		cron.WithChain(
			cron.Recover(cronLogger),
			cron.SkipIfStillRunning(cronLogger),
		),
	)

	return &CronTrigger{cron: c}
}

// Add schedules fn. spec accepts standard five-field expressions and
// descriptors such as @hourly or @every 15m.
func (t *CronTrigger) Add(spec string, fn func()) (int, error) {
	id, err := t.cron.AddFunc(spec, fn)
	return int(id), err
}

// Remove unschedules a callback.
func (t *CronTrigger) Remove(id int) {
	t.cron.Remove(cron.EntryID(id))
}

// Next returns the next firing time, or zero if unknown.
func (t *CronTrigger) Next(id int) time.Time {
	return t.cron.Entry(cron.EntryID(id)).Next
}

// Start begins firing callbacks in a background goroutine.
func (t *CronTrigger) Start() {
	t.cron.Start()
}

// Stop halts the cron loop.
func (t *CronTrigger) Stop() context.Context {
	return t.cron.Stop()
}
