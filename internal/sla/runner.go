package sla

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Runner sweeps every schedule once after StartDelay and then every
// Interval until its context ends. Sweepers run one after another; a sweep
// error is logged and the loop continues.
type Runner struct {
	Sweepers   []Sweeper
	Interval   time.Duration
	StartDelay time.Duration
}

// Run blocks until ctx is done and returns ctx.Err().
func (r *Runner) Run(ctx context.Context) error {
	log.Info().
		Dur("interval", r.Interval).
		Dur("start_delay", r.StartDelay).
		Int("sweepers", len(r.Sweepers)).
		Msg("sla: runner started")

	first := time.NewTimer(r.StartDelay)
	defer first.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-first.C:
	}
	r.SweepAll(ctx)

	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("sla: runner stopped")
			return ctx.Err()
		case <-ticker.C:
			r.SweepAll(ctx)
		}
	}
}

// SweepAll runs each sweeper once.
func (r *Runner) SweepAll(ctx context.Context) {
	for _, s := range r.Sweepers {
		rep, err := s.Sweep(ctx)
		if err != nil {
			log.Error().Err(err).Str("schedule", s.Name()).Msg("sla: sweep failed")
			continue
		}
		if len(rep) > 0 {
			ev := log.Info().Str("schedule", s.Name())
			for k, v := range rep {
				ev = ev.Int(k, v)
			}
			ev.Msg("sla: sweep done")
		}
	}
}
