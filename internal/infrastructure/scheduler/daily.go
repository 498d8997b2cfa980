// Package scheduler drives the recurring daily brief.
package scheduler

import (
	"context"
	"time"

	"newsbrief/internal/config"
	"newsbrief/internal/ports"
)

// Daily fires once per day at the configured local hour.
type Daily struct {
	hour     int
	location *time.Location
	stop     chan struct{}
}

var _ ports.Scheduler = (*Daily)(nil)

// NewDaily builds a scheduler from configuration.
func NewDaily(cfg config.SchedulerConfig) *Daily {
	return &Daily{hour: cfg.Hour, location: cfg.Location()}
}

// Start launches the timer goroutine. Calling Start on a running scheduler
// is a no-op.
func (d *Daily) Start(ctx context.Context, job func(time.Time)) error {
	if job == nil {
		return nil
	}
	if d.stop != nil {
		return nil
	}

	d.stop = make(chan struct{})
	go func() {
		for {
			timer := time.NewTimer(time.Until(d.nextRun(time.Now())))
			select {
			case t := <-timer.C:
				job(t)
			case <-ctx.Done():
				timer.Stop()
				return
			case <-d.stop:
				timer.Stop()
				return
			}
		}
	}()

	return nil
}

// Stop halts the timer goroutine.
func (d *Daily) Stop(ctx context.Context) error {
	if d.stop == nil {
		return nil
	}
	close(d.stop)
	d.stop = nil
	return nil
}

func (d *Daily) nextRun(now time.Time) time.Time {
	local := now.In(d.location)
	next := time.Date(local.Year(), local.Month(), local.Day(), d.hour, 0, 0, 0, d.location)
	if !next.After(local) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
