package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"paworker/internal/logging"
	"paworker/internal/metrics"
)

// DefaultPause is how long the consumer waits after a failed iteration.
const DefaultPause = 2 * time.Second

// Processor runs one attempt of a job.
type Processor interface {
	Process(ctx context.Context, job Job) Result
}

// FailureHandler decides what happens to a failed attempt.
type FailureHandler interface {
	Handle(ctx context.Context, job Job, res Result) error
}

// Consumer pops jobs one at a time and hands them to the Processor. A single
// job's failure or a dependency outage never stops the loop.
type Consumer struct {
	ID        string
	Queue     Queue
	Processor Processor
	Failures  FailureHandler
	Logger    *zap.Logger
	Metrics   *metrics.Metrics
	Pause     time.Duration
}

// Run blocks until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) {
	logger := c.logger()
	logger.Info("worker started")
	defer logger.Info("worker stopped")

	for {
		if ctx.Err() != nil {
			return
		}

		err := c.step(ctx)
		if err == nil {
			continue
		}
		if ctx.Err() != nil {
			return
		}

		logging.Critical(logger, "worker loop error", zap.Error(err))
		c.Metrics.RecordLoopError()

		select {
		case <-ctx.Done():
			return
		case <-time.After(c.pause()):
		}
	}
}

func (c *Consumer) step(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while handling job: %v", r)
		}
	}()

	payload, err := c.Queue.Pop(ctx)
	if errors.Is(err, ErrNoJob) {
		return nil
	}
	if err != nil {
		return err
	}

	job, err := Decode(payload)
	if err != nil {
		c.Metrics.RecordMalformed()
		c.logger().Warn("dropping malformed job payload", zap.Error(err), zap.ByteString("payload", payload))
		return nil
	}

	return c.dispatch(ctx, job)
}

func (c *Consumer) dispatch(ctx context.Context, job Job) error {
	logger := c.logger().With(
		zap.String(logging.FieldJobUUID, job.UUID),
		zap.Int64(logging.FieldDocumentID, job.DocumentID),
		zap.Int64(logging.FieldPARequestID, job.PARequestID),
		zap.Int(logging.FieldAttempt, job.Attempt),
	)
	logger.Info("processing job")

	// A popped job runs to completion even if shutdown starts meanwhile.
	ctx = context.WithoutCancel(ctx)

	start := time.Now()
	res := c.Processor.Process(ctx, job)
	c.Metrics.RecordAttempt(string(res.Kind()), time.Since(start))

	if !res.Failed() {
		logger.Info("job processed", zap.String("decision", res.Decision), zap.Int64("evidence_pack_id", res.PackID))
		return nil
	}

	logger.Error("job attempt failed", zap.String(logging.FieldErrorKind, string(res.Kind())), zap.Error(res.Err))
	if err := c.Failures.Handle(ctx, job, res); err != nil {
		return fmt.Errorf("handle failure of job %s: %w", job.UUID, err)
	}
	return nil
}

func (c *Consumer) pause() time.Duration {
	if c.Pause <= 0 {
		return DefaultPause
	}
	return c.Pause
}

func (c *Consumer) logger() *zap.Logger {
	base := c.Logger
	if base == nil {
		base = logging.NewNop()
	}
	if c.ID != "" {
		return base.With(zap.String("worker_id", c.ID))
	}
	return base
}
