package janitor

import (
	"context"
	"time"

	"github.com/easel-cloud/easel/internal/generation"
	"github.com/easel-cloud/easel/pkg/log"
	"github.com/robfig/cron/v3"
)

// DefaultSchedule sweeps once a minute.
const DefaultSchedule = "* * * * *"

// Janitor periodically fails generations that have been processing
// for longer than the job timeout allows. Workers that crash mid-job
// leave such rows behind; without the sweep they would look in-flight
// forever.
type Janitor struct {
	cron    *cron.Cron
	store   *generation.Store
	timeout time.Duration
}

// New builds a janitor on the given cron schedule. An empty schedule
// falls back to DefaultSchedule.
func New(store *generation.Store, schedule string, timeout time.Duration) (*Janitor, error) {
	if schedule == "" {
		schedule = DefaultSchedule
	}

	j := &Janitor{
		cron:    cron.New(),
		store:   store,
		timeout: timeout,
	}

	if _, err := j.cron.AddFunc(schedule, j.sweep); err != nil {
		return nil, err
	}
	return j, nil
}

// Start begins sweeping in the background.
func (j *Janitor) Start() {
	j.cron.Start()
}

// Stop halts the schedule and waits for a running sweep to finish.
func (j *Janitor) Stop() {
	<-j.cron.Stop().Done()
}

func (j *Janitor) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	reaped, err := j.store.ReapStuck(ctx, j.timeout)
	if err != nil {
		log.Error("janitor sweep failed", "error", err)
		return
	}
	if reaped > 0 {
		log.Warn("janitor failed stuck generations", "count", reaped, "timeout", j.timeout)
	}
}
