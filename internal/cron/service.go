package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"donation-payments/pkg/metrics"

	"github.com/rs/zerolog"
)

const defaultInterval = 5 * time.Minute

// Lock guards a cycle so only one worker instance runs it.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// ServiceParams configure the cron service.
type ServiceParams struct {
	Logger   zerolog.Logger
	Registry *Registry
	Lock     Lock
	Metrics  *metrics.CronJobMetrics
	Interval time.Duration
}

// Service runs registered jobs on a fixed cadence.
type Service struct {
	log      zerolog.Logger
	registry *Registry
	lock     Lock
	metrics  *metrics.CronJobMetrics
	interval time.Duration
}

// NewService builds a cron service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Lock == nil {
		return nil, errors.New("lock required")
	}
	registry := params.Registry
	if registry == nil {
		registry = NewRegistry()
	}
	interval := params.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Service{
		log:      params.Logger,
		registry: registry,
		lock:     params.Lock,
		metrics:  params.Metrics,
		interval: interval,
	}, nil
}

// Run executes a cycle immediately and then on every tick until ctx is canceled.
func (s *Service) Run(ctx context.Context) error {
	if err := s.RunOnce(ctx); err != nil {
		s.log.Error().Err(err).Msg("scheduled run failed")
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("cron service stopping")
			return ctx.Err()
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.log.Error().Err(err).Msg("scheduled run failed")
			}
		}
	}
}

// RunOnce runs every job once under the lock. A held lock skips the cycle.
func (s *Service) RunOnce(ctx context.Context) error {
	locked, err := s.lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("lock acquire: %w", err)
	}
	if !locked {
		s.log.Info().Msg("another worker holds the cron lock, skipping cycle")
		return nil
	}
	defer func() {
		if relErr := s.lock.Release(context.WithoutCancel(ctx)); relErr != nil {
			s.log.Error().Err(relErr).Msg("failed to release cron lock")
		}
	}()

	for _, job := range s.registry.Jobs() {
		s.runJob(ctx, job)
	}
	return nil
}

func (s *Service) runJob(ctx context.Context, job Job) {
	log := s.log.With().Str("job", job.Name()).Logger()
	start := time.Now()
	err := job.Run(log.WithContext(ctx))
	duration := time.Since(start)
	s.metrics.ObserveDuration(job.Name(), duration)

	if err != nil {
		log.Error().Err(err).Dur("duration", duration).Msg("job failed")
		s.metrics.IncFailure(job.Name())
		return
	}
	log.Info().Dur("duration", duration).Msg("job completed")
	s.metrics.IncSuccess(job.Name())
}
