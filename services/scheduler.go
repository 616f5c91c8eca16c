package services

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog/log"
)

// IdleSweeper drops per-key state that has been idle for longer than maxIdle.
type IdleSweeper interface {
	Cleanup(maxIdle time.Duration) int
}

// MaintenanceConfig selects the background jobs to run.
type MaintenanceConfig struct {
	PendingRequestTTL time.Duration // 0 disables request expiry
	ExpiryEvery       time.Duration
	Limiter           IdleSweeper // nil disables limiter cleanup
	LimiterIdle       time.Duration
}

// StartMaintenanceScheduler starts the periodic jobs. The returned scheduler
// must be shut down by the caller.
func (s *RequestService) StartMaintenanceScheduler(ctx context.Context, cfg MaintenanceConfig) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	if cfg.PendingRequestTTL > 0 {
		every := cfg.ExpiryEvery
		if every <= 0 {
			every = time.Minute
		}
		// Reject requests left pending past the TTL
		_, err = sched.NewJob(
			gocron.DurationJob(every),
			gocron.NewTask(func() {
				n, err := s.ExpireStale(ctx, s.now().Add(-cfg.PendingRequestTTL))
				if err != nil {
					log.Error().Err(err).Msg("[Scheduler] failed to expire pending requests")
					return
				}
				if n > 0 {
					log.Info().Int("expired", n).Msg("✅ [Scheduler] expired pending requests")
				}
			}),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			return nil, err
		}
	}

	if cfg.Limiter != nil {
		idle := cfg.LimiterIdle
		if idle <= 0 {
			idle = 10 * time.Minute
		}
		_, err = sched.NewJob(
			gocron.DurationJob(idle),
			gocron.NewTask(func() {
				if n := cfg.Limiter.Cleanup(idle); n > 0 {
					log.Debug().Int("removed", n).Msg("[Scheduler] dropped idle rate limiters")
				}
			}),
		)
		if err != nil {
			return nil, err
		}
	}

	sched.Start()
	return sched, nil
}
