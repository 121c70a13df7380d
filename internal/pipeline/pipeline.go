// Package pipeline runs one attempt of a document-processing job: extraction,
// policy evaluation, evidence persistence and status propagation.
package pipeline

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"paworker/internal/common"
	"paworker/internal/constants"
	"paworker/internal/evidence"
	"paworker/internal/jobs"
	"paworker/internal/logging"
	"paworker/internal/metrics"
	"paworker/internal/policy"
)

type TextSource interface {
	FetchText(ctx context.Context, documentID int64) (text string, ok bool, err error)
}

type DocumentStatusStore interface {
	SetStatus(ctx context.Context, documentID int64, status constants.DocumentStatus) error
}

// RequestStatusStore transitions are guarded. A transition that matched no row
// returns common.ErrStatusGuard.
type RequestStatusStore interface {
	MarkEvidenceReady(ctx context.Context, paRequestID int64) error
	MarkNeedsMoreInfo(ctx context.Context, paRequestID int64) error
	MarkFailed(ctx context.Context, paRequestID int64) error
}

type EvidencePackStore interface {
	CreateOrGet(ctx context.Context, paRequestID int64) (int64, error)
	InsertFinding(ctx context.Context, packID, documentID int64, findings evidence.Findings) error
	Finalize(ctx context.Context, packID int64, outcome evidence.PackOutcome) error
}

type ProcessingStateStore interface {
	jobs.StateStore
	StartAttempt(ctx context.Context, jobUUID string, documentID int64, attempt int, traceID string) (int, error)
}

// Pipeline implements jobs.Processor.
type Pipeline struct {
	Texts     TextSource
	Documents DocumentStatusStore
	Requests  RequestStatusStore
	Packs     EvidencePackStore
	States    ProcessingStateStore
	Audit     jobs.AuditSink

	Extractor *evidence.Extractor
	Policy    policy.Evaluator

	Logger  *zap.Logger
	Metrics *metrics.Metrics

	Now        func() time.Time
	NewTraceID func() string
}

type attempt struct {
	job        jobs.Job
	traceID    string
	dispatches int
	started    time.Time
	logger     *zap.Logger
}

// Process never panics on domain failures and never swallows them: any error
// after the attempt was recorded runs the failure path and is returned in the
// Result for the retry manager.
func (p *Pipeline) Process(ctx context.Context, job jobs.Job) jobs.Result {
	a := &attempt{
		job:     job,
		traceID: p.traceID(),
		started: p.now(),
	}
	a.logger = p.logger().With(
		zap.String(logging.FieldJobUUID, job.UUID),
		zap.Int64(logging.FieldDocumentID, job.DocumentID),
		zap.Int64(logging.FieldPARequestID, job.PARequestID),
		zap.Int(logging.FieldAttempt, job.Attempt),
		zap.String(logging.FieldTraceID, a.traceID),
	)

	dispatches, err := p.States.StartAttempt(ctx, job.UUID, job.DocumentID, job.Attempt, a.traceID)
	if err != nil {
		return jobs.Result{Err: err}
	}
	a.dispatches = dispatches

	res := p.run(ctx, a)
	if res.Failed() {
		p.fail(ctx, a, res.Err)
	}
	return res
}

func (p *Pipeline) run(ctx context.Context, a *attempt) jobs.Result {
	job := a.job

	text, ok, err := p.Texts.FetchText(ctx, job.DocumentID)
	if err != nil {
		return jobs.Result{Err: err}
	}
	if !ok || strings.TrimSpace(text) == "" {
		return jobs.Result{Err: common.MissingContent(job.DocumentID)}
	}

	findings, err := p.extractor().Extract(text)
	if err != nil {
		return jobs.Result{Err: err}
	}

	evaluator := p.policy()
	decision := evaluator.Evaluate(findings)
	a.logger.Info("policy evaluated",
		zap.String("decision", string(decision.Outcome)),
		zap.Strings("missing_requirements", decision.MissingRequirements),
	)

	packID, err := p.Packs.CreateOrGet(ctx, job.PARequestID)
	if err != nil {
		return jobs.Result{Err: err}
	}
	fail := func(err error) jobs.Result {
		return jobs.Result{PackID: packID, Err: err}
	}

	if err := p.Packs.InsertFinding(ctx, packID, job.DocumentID, findings); err != nil {
		return fail(err)
	}

	outcome := evidence.PackOutcome{
		Decision:            decision.Outcome,
		Explanation:         decision.Explanation,
		MissingRequirements: decision.MissingRequirements,
		Sources:             findings.Sources(),
		Metadata: map[string]any{
			"missing_requirements": decision.MissingRequirements,
			"attempt":              job.Attempt,
			"dispatch_count":       a.dispatches,
			"latency_ms":           p.now().Sub(a.started).Milliseconds(),
			"trace_id":             a.traceID,
			"policy_id":            evaluator.ID(),
		},
	}
	if err := p.Packs.Finalize(ctx, packID, outcome); err != nil {
		return fail(err)
	}

	if err := p.Audit.Log(ctx, job.PARequestID, constants.AuditPackCreated, constants.ActorWorker, map[string]any{
		"evidence_pack_id": packID,
		"document_id":      job.DocumentID,
		"decision":         string(decision.Outcome),
		"trace_id":         a.traceID,
	}); err != nil {
		return fail(err)
	}

	if err := p.propagate(ctx, a, packID, decision); err != nil {
		return fail(err)
	}

	if err := p.Documents.SetStatus(ctx, job.DocumentID, constants.DocumentProcessed); err != nil {
		return fail(err)
	}
	if err := p.States.UpsertState(ctx, job.UUID, job.DocumentID, constants.JobSuccess, a.dispatches, ""); err != nil {
		return fail(err)
	}

	p.Metrics.RecordDecision(evaluator.ID(), string(decision.Outcome))
	a.logger.Info("document processed",
		zap.Int64("evidence_pack_id", packID),
		zap.Duration("latency", p.now().Sub(a.started)),
	)
	return jobs.Result{PackID: packID, Decision: string(decision.Outcome)}
}

// propagate moves the PA request to the status the decision implies. A guarded
// no-op is not an error; the audit entry records whether the update applied.
func (p *Pipeline) propagate(ctx context.Context, a *attempt, packID int64, decision policy.Decision) error {
	job := a.job

	if decision.Approved() {
		applied, err := p.guarded(a, p.Requests.MarkEvidenceReady(ctx, job.PARequestID))
		if err != nil {
			return err
		}
		return p.Audit.Log(ctx, job.PARequestID, constants.AuditEvidenceReady, constants.ActorWorker, map[string]any{
			"evidence_pack_id": packID,
			"applied":          applied,
		})
	}

	applied, err := p.guarded(a, p.Requests.MarkNeedsMoreInfo(ctx, job.PARequestID))
	if err != nil {
		return err
	}
	return p.Audit.Log(ctx, job.PARequestID, constants.AuditPANeedsInfo, constants.ActorWorker, map[string]any{
		"evidence_pack_id": packID,
		"missing":          decision.MissingRequirements,
		"applied":          applied,
	})
}

// guarded turns a status-guard no-op into applied=false.
func (p *Pipeline) guarded(a *attempt, err error) (applied bool, _ error) {
	if errors.Is(err, common.ErrStatusGuard) {
		a.logger.Debug("pa request status unchanged by guard")
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// fail records the failure side effects. Errors here are logged so they never
// replace the failure being reported.
func (p *Pipeline) fail(ctx context.Context, a *attempt, cause error) {
	job := a.job
	kind := common.KindOf(cause)
	a.logger.Error("document processing failed", zap.String(logging.FieldErrorKind, string(kind)), zap.Error(cause))

	if err := p.Documents.SetStatus(ctx, job.DocumentID, constants.DocumentFailed); err != nil {
		a.logger.Error("mark document failed", zap.Error(err))
	}
	if _, err := p.guarded(a, p.Requests.MarkFailed(ctx, job.PARequestID)); err != nil {
		a.logger.Error("mark pa request failed", zap.Error(err))
	}
	if err := p.States.UpsertState(ctx, job.UUID, job.DocumentID, constants.JobFailed, a.dispatches, cause.Error()); err != nil {
		a.logger.Error("mark job failed", zap.Error(err))
	}
	if err := p.Audit.Log(ctx, job.PARequestID, constants.AuditDocFailed, constants.ActorWorker, map[string]any{
		"document_id": job.DocumentID,
		"error":       cause.Error(),
		"error_kind":  string(kind),
		"attempt":     job.Attempt,
		"trace_id":    a.traceID,
	}); err != nil {
		a.logger.Error("audit document failure", zap.Error(err))
	}
}

func (p *Pipeline) extractor() *evidence.Extractor {
	if p.Extractor == nil {
		return evidence.NewExtractor()
	}
	return p.Extractor
}

func (p *Pipeline) policy() policy.Evaluator {
	if p.Policy == nil {
		return policy.TKAv1
	}
	return p.Policy
}

func (p *Pipeline) traceID() string {
	if p.NewTraceID != nil {
		return p.NewTraceID()
	}
	return uuid.NewString()
}

func (p *Pipeline) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

func (p *Pipeline) logger() *zap.Logger {
	if p.Logger == nil {
		return logging.NewNop()
	}
	return p.Logger
}
