package cron

import (
	"context"
	"time"
)

// JobFunc is the body of a housekeeping job. The returned count is how many
// items the run touched (files swept, sessions expired) and is only logged.
type JobFunc func(ctx context.Context) (int, error)

// Job is a named periodic job
type Job struct {
	Name     string
	Schedule string
	Run      JobFunc
}

// JobStatus is a snapshot of a job's schedule and last run
type JobStatus struct {
	Name      string    `json:"name"`
	Schedule  string    `json:"schedule"`
	NextRunAt time.Time `json:"next_run_at"`
	LastRunAt time.Time `json:"last_run_at,omitempty"`
	LastCount int       `json:"last_count"`
	LastError string    `json:"last_error,omitempty"`
	Runs      int64     `json:"runs"`
}
