package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kt-lectures/broadcaster/internal/models"
	"github.com/kt-lectures/broadcaster/internal/publishing"
	"github.com/kt-lectures/broadcaster/pkg/queue"
)

// JobSource is the retry queue as seen by the worker.
type JobSource interface {
	Dequeue(ctx context.Context) (*queue.Job, error)
	Retry(ctx context.Context, job *queue.Job) error
}

// StepRunner replays publishing steps.
type StepRunner interface {
	RetryStep(ctx context.Context, videoID uuid.UUID, step publishing.Step) error
}

// StepProcessor replays degraded best-effort steps queued by the engine.
type StepProcessor struct {
	runner  StepRunner
	queue   JobSource
	logger  *zap.Logger
	backoff time.Duration
}

// NewStepProcessor creates a step retry processor.
func NewStepProcessor(runner StepRunner, q JobSource, backoff time.Duration, logger *zap.Logger) *StepProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if backoff <= 0 {
		backoff = queue.RetryBackoff
	}
	return &StepProcessor{runner: runner, queue: q, logger: logger, backoff: backoff}
}

// errDrop marks jobs that must not be retried.
var errDrop = errors.New("job dropped")

// Process executes one step retry job.
func (p *StepProcessor) Process(ctx context.Context, job *queue.Job) error {
	payload, err := job.StepRetry()
	if err != nil {
		return fmt.Errorf("%w: %v", errDrop, err)
	}
	err = p.runner.RetryStep(ctx, payload.VideoID, publishing.Step(payload.Step))
	switch {
	case err == nil:
		p.logger.Info("step retried",
			zap.String("video_id", payload.VideoID.String()),
			zap.String("step", payload.Step))
		return nil
	case errors.Is(err, publishing.ErrUnknownStep), errors.Is(err, models.ErrNotFound),
		errors.Is(err, publishing.ErrPlatformDisabled):
		return fmt.Errorf("%w: %v", errDrop, err)
	default:
		return err
	}
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *StepProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("step worker stopping")
			return
		default:
		}

		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			p.sleep(ctx)
			continue
		}
		if job == nil {
			continue
		}
		p.handle(ctx, job)
	}
}

func (p *StepProcessor) handle(ctx context.Context, job *queue.Job) {
	p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
	err := p.Process(ctx, job)
	if err == nil {
		return
	}
	if errors.Is(err, errDrop) {
		p.logger.Warn("job dropped", zap.String("job_id", job.ID), zap.Error(err))
		return
	}
	p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(err))
	if reErr := p.queue.Retry(ctx, job); reErr != nil {
		p.logger.Error("retry enqueue failed", zap.Error(reErr))
	}
	p.sleep(ctx)
}

func (p *StepProcessor) sleep(ctx context.Context) {
	t := time.NewTimer(p.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
