// Package sched triggers time-of-day work: trading-session boundaries and
// the cache sweep. It is a thin list of (cron spec, callback) pairs; the
// components it drives receive plain callables and know nothing about cron.
package sched

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/trandminh/quote-ingest/internal/observ"
)

// Scheduler runs registered jobs at their cron times, evaluated in the
// market's timezone so session boundaries track the exchange, not the host.
type Scheduler struct {
	cron *cron.Cron
}

// New creates a stopped scheduler in the given location.
func New(loc *time.Location) *Scheduler {
	return &Scheduler{cron: cron.New(cron.WithLocation(loc))}
}

// Add registers a named job on a standard five-field cron spec.
func (s *Scheduler) Add(spec, name string, job func()) error {
	_, err := s.cron.AddFunc(spec, func() {
		observ.Log("scheduled_job_fired", map[string]any{"job": name})
		job()
	})
	if err != nil {
		return fmt.Errorf("register job %s (%q): %w", name, spec, err)
	}
	return nil
}

// Start begins firing jobs.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
