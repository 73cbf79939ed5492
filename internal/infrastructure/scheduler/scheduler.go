package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Job is one unit of periodic work. RunOnce reports how many items it
// processed.
type Job interface {
	Name() string
	RunOnce(ctx context.Context) (int, error)
}

// Scheduler runs a Job on a fixed interval until its context is cancelled.
type Scheduler struct {
	job      Job
	interval time.Duration
}

func New(job Job, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = time.Second
	}
	return &Scheduler{job: job, interval: interval}
}

// Start launches the loop in a goroutine. The returned channel is closed
// once the loop has exited.
func (s *Scheduler) Start(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				log.Info().Str("job", s.job.Name()).Msg("Scheduler: stopped")
				return
			case <-ticker.C:
				n, err := s.job.RunOnce(ctx)
				if err != nil {
					log.Error().Err(err).Str("job", s.job.Name()).Msg("Scheduler: run failed")
				} else if n > 0 {
					log.Debug().Str("job", s.job.Name()).Int("processed", n).Msg("Scheduler: run finished")
				}
			}
		}
	}()
	return done
}
