// Package janitor runs periodic housekeeping: sweeping expired rooms,
// forgetting idle rate-limit buckets and writing store snapshots.
package janitor

import (
	"context"
	"errors"
	"time"

	"github.com/coder/quartz"
	"github.com/rs/zerolog"
)

// Task is one housekeeping job. A failing task is logged and retried on
// the next tick; it never stops the janitor.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

type Janitor struct {
	clock    quartz.Clock
	interval time.Duration
	logger   zerolog.Logger
	tasks    []Task
}

func New(clock quartz.Clock, interval time.Duration, logger zerolog.Logger, tasks ...Task) *Janitor {
	if clock == nil {
		clock = quartz.NewReal()
	}
	return &Janitor{
		clock:    clock,
		interval: interval,
		logger:   logger.With().Str("component", "janitor").Logger(),
		tasks:    tasks,
	}
}

// Run ticks until ctx is cancelled.
func (j *Janitor) Run(ctx context.Context) error {
	j.logger.Info().Dur("interval", j.interval).Int("tasks", len(j.tasks)).Msg("Janitor started")
	w := j.clock.TickerFunc(ctx, j.interval, func() error {
		j.Tick(ctx)
		return nil
	}, "janitor")

	err := w.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Tick runs every task once and returns how many failed.
func (j *Janitor) Tick(ctx context.Context) int {
	failed := 0
	for _, task := range j.tasks {
		start := j.clock.Now()
		if err := task.Run(ctx); err != nil {
			failed++
			j.logger.Error().Err(err).Str("task", task.Name).Msg("Janitor task failed")
			continue
		}
		j.logger.Debug().Str("task", task.Name).Dur("took", j.clock.Since(start)).Msg("Janitor task done")
	}
	return failed
}
