package auth

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/courseloop/authd/pkg/observability"
)

// Janitor periodically removes expired token records. Expiry already denies
// validation on its own; the sweep only reclaims storage that would
// otherwise accumulate forever.
type Janitor struct {
	tokens   *TokenStore
	schedule string
	logger   *observability.Logger
	cron     *cron.Cron

	// OnSweep is invoked with the number of removed records; wired to
	// metrics by the caller.
	OnSweep func(removed int)
}

// NewJanitor creates a janitor with a cron schedule such as "@every 15m".
func NewJanitor(tokens *TokenStore, schedule string, logger *observability.Logger) *Janitor {
	if schedule == "" {
		schedule = "@every 15m"
	}
	return &Janitor{
		tokens:   tokens,
		schedule: schedule,
		logger:   logger,
	}
}

// Start registers the sweep and begins the schedule.
func (j *Janitor) Start() error {
	j.cron = cron.New()
	if _, err := j.cron.AddFunc(j.schedule, j.runOnce); err != nil {
		return err
	}
	j.cron.Start()
	j.logger.WithField("schedule", j.schedule).Info("token janitor started")
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (j *Janitor) Stop() {
	if j.cron != nil {
		<-j.cron.Stop().Done()
	}
}

func (j *Janitor) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	removed, err := j.tokens.SweepExpired(ctx)
	if err != nil {
		// Sweep failures are logged, never fatal; the next run retries.
		j.logger.WithError(err).Warn("token sweep failed")
		return
	}
	if removed > 0 {
		j.logger.WithField("removed", removed).Info("expired tokens swept")
	}
	if j.OnSweep != nil {
		j.OnSweep(removed)
	}
}
