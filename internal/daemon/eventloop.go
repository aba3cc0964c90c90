package daemon

import (
	"context"
	"time"
)

// EventLoop reports service health while the daemon runs
type EventLoop struct {
	daemon   *Daemon
	interval time.Duration
}

// NewEventLoop creates a new event loop
func NewEventLoop(d *Daemon) *EventLoop {
	return &EventLoop{
		daemon:   d,
		interval: 30 * time.Second,
	}
}

// Run ticks until ctx is cancelled
func (e *EventLoop) Run(ctx context.Context) {
	e.daemon.logger.Info().Msg("Event loop started")

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.daemon.logger.Info().Msg("Event loop stopping")
			return

		case <-ticker.C:
			e.processTasks(ctx)
		}
	}
}

// processTasks refreshes gauges and logs job state
func (e *EventLoop) processTasks(ctx context.Context) {
	d := e.daemon

	active := d.sessions.Len()
	d.metrics.SessionsActive.Set(float64(active))

	if n, err := d.counter.Value(ctx); err != nil {
		d.logger.Warn().Err(err).Msg("Failed to read visit count")
	} else {
		d.metrics.Visits.Set(float64(n))
	}

	for _, job := range d.cronService.ListJobs() {
		if job.LastError != "" {
			d.logger.Warn().
				Str("job", job.Name).
				Str("error", job.LastError).
				Time("last_run", job.LastRunAt).
				Msg("Housekeeping job failing")
		}
	}

	d.logger.Debug().Int("sessions", active).Msg("Event loop tick")
}
