package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/lc-billing-api/internal/dto"
	"github.com/noah-isme/lc-billing-api/internal/models"
	appErrors "github.com/noah-isme/lc-billing-api/pkg/errors"
	"github.com/noah-isme/lc-billing-api/pkg/jobs"
)

const cycleJobType = "billing_cycle"

// CycleGenerator runs payment generation for one month.
type CycleGenerator interface {
	Generate(ctx context.Context, orgID, actorID, rawMonth string) (*dto.GenerationResult, error)
}

// CycleSalaryEnsurer materialises the month's payroll rows.
type CycleSalaryEnsurer interface {
	EnsureForMonth(ctx context.Context, orgID string, month time.Time) error
}

// BillingCycleService runs the monthly close asynchronously: payment
// generation followed by payroll materialisation, dispatched through a worker
// queue. Both steps are idempotent, so a retried job is harmless.
type BillingCycleService struct {
	generator CycleGenerator
	salaries  CycleSalaryEnsurer
	queue     *jobs.Queue
	metrics   *MetricsService
	logger    *zap.Logger
	now       func() time.Time
}

// BillingCycleConfig tunes the cycle worker pool.
type BillingCycleConfig struct {
	Workers    int
	MaxRetries int
	RetryDelay time.Duration
}

// NewBillingCycleService constructs the service and its queue. Call Start
// before enqueuing.
func NewBillingCycleService(generator CycleGenerator, salaries CycleSalaryEnsurer, metrics *MetricsService, logger *zap.Logger, cfg BillingCycleConfig) *BillingCycleService {
	s := &BillingCycleService{
		generator: generator,
		salaries:  salaries,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
	}
	s.queue = jobs.NewQueue(cycleJobType, s.run, jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})
	return s
}

// Start launches the cycle workers.
func (s *BillingCycleService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the workers.
func (s *BillingCycleService) Stop() {
	s.queue.Stop()
}

// Enqueue validates the request and queues one cycle run. The job ID is
// returned for log correlation.
func (s *BillingCycleService) Enqueue(orgID, rawMonth string) (string, error) {
	month, err := models.ParseMonth(rawMonth)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "month must be formatted as YYYY-MM")
	}
	if models.IsFutureMonth(month, s.now()) {
		return "", appErrors.ErrFutureMonth
	}

	jobID := uuid.NewString()
	err = s.queue.Enqueue(jobs.Job{
		ID:   jobID,
		Type: cycleJobType,
		Payload: dto.CyclePayload{
			OrganizationID: orgID,
			Month:          models.FormatMonth(month),
		},
	})
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "enqueue billing cycle")
	}

	s.logger.Info("billing cycle queued",
		zap.String("job_id", jobID),
		zap.String("organization_id", orgID),
		zap.String("month", models.FormatMonth(month)))
	return jobID, nil
}

func (s *BillingCycleService) run(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(dto.CyclePayload)
	if !ok {
		return fmt.Errorf("unexpected payload type %T", job.Payload)
	}

	result, err := s.generator.Generate(ctx, payload.OrganizationID, "", payload.Month)
	if err != nil {
		s.metrics.RecordCycleRun("failure")
		return fmt.Errorf("generate payments for %s: %w", payload.Month, err)
	}

	month, err := models.ParseMonth(payload.Month)
	if err != nil {
		s.metrics.RecordCycleRun("failure")
		return fmt.Errorf("parse cycle month %q: %w", payload.Month, err)
	}
	if err := s.salaries.EnsureForMonth(ctx, payload.OrganizationID, month); err != nil {
		s.metrics.RecordCycleRun("failure")
		return fmt.Errorf("ensure salaries for %s: %w", payload.Month, err)
	}

	s.metrics.RecordCycleRun("success")
	s.logger.Info("billing cycle finished",
		zap.String("job_id", job.ID),
		zap.String("organization_id", payload.OrganizationID),
		zap.String("month", payload.Month),
		zap.Int("payments_created", result.Created),
		zap.Int("payments_skipped", result.Skipped))
	return nil
}
