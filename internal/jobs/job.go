// Package jobs runs periodic maintenance work next to the HTTP server.
package jobs

import "context"

// Job is a named unit of background work.
type Job interface {
	// Name identifies the job in logs and for on-demand runs.
	Name() string

	// Schedule is a cron expression ("0 3 * * *", "@every 1h"). Empty means
	// on-demand only.
	Schedule() string

	Execute(ctx context.Context) error
}
