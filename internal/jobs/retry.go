package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"paworker/internal/constants"
	"paworker/internal/logging"
	"paworker/internal/metrics"
)

// DefaultMaxRetries applies when RetryManager.MaxRetries is unset.
const DefaultMaxRetries = 3

// StateStore persists processing_jobs rows.
type StateStore interface {
	UpsertState(ctx context.Context, jobUUID string, documentID int64, status constants.JobStatus, attemptCount int, lastError string) error
}

// DeadLetterStore persists one dead-letter record per job lineage. inserted is
// false when a record for jobUUID already existed.
type DeadLetterStore interface {
	InsertDeadLetter(ctx context.Context, jobUUID string, documentID int64, reason string, payload []byte) (inserted bool, err error)
}

// AuditSink appends audit entries.
type AuditSink interface {
	Log(ctx context.Context, paRequestID int64, action constants.AuditAction, actor string, metadata map[string]any) error
}

// RetryManager decides what happens to a failed attempt: requeue with the next
// attempt number, or escalate to the dead-letter path once the budget is spent.
type RetryManager struct {
	Queue       Queue
	States      StateStore
	DeadLetters DeadLetterStore
	Audit       AuditSink
	MaxRetries  int
	Logger      *zap.Logger
	Metrics     *metrics.Metrics
	Now         func() time.Time
}

// Handle consumes a pipeline Result. Successful results are ignored.
func (r *RetryManager) Handle(ctx context.Context, job Job, res Result) error {
	if !res.Failed() {
		return nil
	}
	if job.Attempt >= r.maxRetries() {
		return r.deadLetter(ctx, job, res)
	}
	return r.retry(ctx, job, res)
}

func (r *RetryManager) retry(ctx context.Context, job Job, res Result) error {
	next := job
	next.Attempt = job.Attempt + 1

	payload, err := Encode(next)
	if err != nil {
		return fmt.Errorf("encode retry for job %s: %w", job.UUID, err)
	}
	if err := r.Queue.Requeue(ctx, payload); err != nil {
		return fmt.Errorf("requeue job %s: %w", job.UUID, err)
	}

	var errs []error
	note := fmt.Sprintf("retrying after attempt %d: %v", job.Attempt, res.Err)
	if err := r.States.UpsertState(ctx, job.UUID, job.DocumentID, constants.JobFailed, job.Attempt, note); err != nil {
		errs = append(errs, fmt.Errorf("persist retry state: %w", err))
	}
	if err := r.Audit.Log(ctx, job.PARequestID, constants.AuditJobRetried, constants.ActorWorker, map[string]any{
		"document_id": job.DocumentID,
		"attempt":     next.Attempt,
		"error_kind":  string(res.Kind()),
	}); err != nil {
		errs = append(errs, fmt.Errorf("audit retry: %w", err))
	}

	r.Metrics.RecordRetry()
	r.logger().Warn("job requeued",
		zap.String(logging.FieldJobUUID, job.UUID),
		zap.Int64(logging.FieldDocumentID, job.DocumentID),
		zap.Int(logging.FieldAttempt, next.Attempt),
		zap.String(logging.FieldErrorKind, string(res.Kind())),
	)
	return errors.Join(errs...)
}

// deadLetter writes the durable record first so that a redelivered copy of an
// exhausted job cannot escalate twice.
func (r *RetryManager) deadLetter(ctx context.Context, job Job, res Result) error {
	logger := r.logger().With(
		zap.String(logging.FieldJobUUID, job.UUID),
		zap.Int64(logging.FieldDocumentID, job.DocumentID),
		zap.Int(logging.FieldAttempt, job.Attempt),
	)

	reason := res.Err.Error()
	payload, err := EncodeDeadLetter(job, reason, r.now())
	if err != nil {
		return fmt.Errorf("encode dead letter for job %s: %w", job.UUID, err)
	}

	inserted, err := r.DeadLetters.InsertDeadLetter(ctx, job.UUID, job.DocumentID, reason, payload)
	if err != nil {
		// The job is already off the main list; the DLQ list is its only home.
		errs := []error{fmt.Errorf("record dead letter for job %s: %w", job.UUID, err)}
		if err := r.Queue.DeadLetter(ctx, payload); err != nil {
			errs = append(errs, fmt.Errorf("push dead letter: %w", err))
		}
		return errors.Join(errs...)
	}
	if !inserted {
		logger.Info("job already dead-lettered; skipping escalation")
		return nil
	}

	var errs []error
	if err := r.Queue.DeadLetter(ctx, payload); err != nil {
		errs = append(errs, fmt.Errorf("push dead letter: %w", err))
	}
	if err := r.States.UpsertState(ctx, job.UUID, job.DocumentID, constants.JobFailed, job.Attempt, reason); err != nil {
		errs = append(errs, fmt.Errorf("persist dead letter state: %w", err))
	}
	if err := r.Audit.Log(ctx, job.PARequestID, constants.AuditJobDLQ, constants.ActorWorker, map[string]any{
		"document_id": job.DocumentID,
		"attempts":    job.Attempt,
		"error":       reason,
		"error_kind":  string(res.Kind()),
	}); err != nil {
		errs = append(errs, fmt.Errorf("audit dead letter: %w", err))
	}

	r.Metrics.RecordDeadLetter()
	logger.Error("job sent to dead-letter queue",
		zap.String(logging.FieldErrorKind, string(res.Kind())),
		zap.Error(res.Err),
	)
	return errors.Join(errs...)
}

func (r *RetryManager) maxRetries() int {
	if r.MaxRetries < 1 {
		return DefaultMaxRetries
	}
	return r.MaxRetries
}

func (r *RetryManager) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func (r *RetryManager) logger() *zap.Logger {
	if r.Logger == nil {
		return logging.NewNop()
	}
	return r.Logger
}
