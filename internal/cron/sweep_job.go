package cron

import (
	"context"
	"errors"

	"donation-payments/internal/core/ports"
)

// SweepJobName labels the reconciliation sweep in logs and metrics.
const SweepJobName = "reconcile_unapplied_events"

type sweepJob struct {
	reconciler ports.ReconcilerService
}

// NewSweepJob wraps the reconciler's sweep as a cron job.
func NewSweepJob(reconciler ports.ReconcilerService) (Job, error) {
	if reconciler == nil {
		return nil, errors.New("reconciler required")
	}
	return &sweepJob{reconciler: reconciler}, nil
}

func (j *sweepJob) Name() string { return SweepJobName }

func (j *sweepJob) Run(ctx context.Context) error {
	_, err := j.reconciler.SweepUnapplied(ctx)
	return err
}
