// Package requests is the API side of the system: PA request creation,
// document upload with job enqueueing, and audit trail reads.
package requests

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"paworker/internal/common"
	"paworker/internal/constants"
	"paworker/internal/jobs"
	"paworker/internal/logging"
	"paworker/internal/store"
)

var ErrNotFound = common.ErrNotFound
var ErrInvalidInput = errors.New("invalid input")

type Service struct {
	DB     *gorm.DB
	Store  *store.Store
	Queue  jobs.Queue
	Logger *zap.Logger
}

// Detail is a request with its newest evidence pack, if any.
type Detail struct {
	Request    store.PARequest
	LatestPack *store.EvidencePack
}

type UploadInput struct {
	RequestUUID    string
	Text           string
	IdempotencyKey *string
	Actor          string
}

type UploadResult struct {
	DocumentUUID string
	DocumentID   int64
	JobUUID      string
	Status       constants.RequestStatus
	Replayed     bool
}

func (s *Service) Create(ctx context.Context, actor string) (store.PARequest, error) {
	ts := time.Now().UTC()
	req := store.PARequest{
		RequestUUID: uuid.NewString(),
		Status:      string(constants.RequestCreated),
		CreatedBy:   actor,
		ModifiedBy:  actor,
		CreatedAt:   ts,
		ModifiedAt:  ts,
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&req).Error; err != nil {
			return err
		}
		entry, err := store.NewAuditLog(req.ID, constants.AuditPACreated, actor, map[string]any{
			"request_uuid": req.RequestUUID,
		})
		if err != nil {
			return err
		}
		return tx.Create(&entry).Error
	})
	if err != nil {
		return store.PARequest{}, common.Persistence("create pa request", err)
	}
	return req, nil
}

func (s *Service) Get(ctx context.Context, requestUUID string) (Detail, error) {
	req, err := s.Store.Requests.GetByUUID(ctx, requestUUID)
	if err != nil {
		return Detail{}, err
	}
	pack, err := s.Store.Requests.LatestPack(ctx, req.ID)
	if err != nil {
		return Detail{}, err
	}
	return Detail{Request: req, LatestPack: pack}, nil
}

// Upload stores the document and its text, moves the request to PROCESSING
// and enqueues the first attempt. A repeated idempotency key returns the
// document created the first time, enqueueing it only if that never succeeded.
func (s *Service) Upload(ctx context.Context, in UploadInput) (UploadResult, error) {
	if strings.TrimSpace(in.Text) == "" {
		return UploadResult{}, fmt.Errorf("%w: document_text is required", ErrInvalidInput)
	}
	if in.IdempotencyKey != nil && strings.TrimSpace(*in.IdempotencyKey) == "" {
		in.IdempotencyKey = nil
	}

	req, err := s.Store.Requests.GetByUUID(ctx, in.RequestUUID)
	if err != nil {
		return UploadResult{}, err
	}

	if in.IdempotencyKey != nil {
		if res, ok, err := s.replay(ctx, req, *in.IdempotencyKey, in.Actor, true); err != nil || ok {
			return res, err
		}
	}

	ts := time.Now().UTC()
	doc := store.Document{
		DocumentUUID:   uuid.NewString(),
		PARequestID:    req.ID,
		IdempotencyKey: in.IdempotencyKey,
		Status:         string(constants.DocumentUploaded),
		CreatedBy:      in.Actor,
		ModifiedBy:     in.Actor,
		CreatedAt:      ts,
		ModifiedAt:     ts,
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&doc).Error; err != nil {
			return err
		}
		text := store.DocumentText{
			DocumentID: doc.ID,
			Text:       in.Text,
			CreatedBy:  in.Actor,
			ModifiedBy: in.Actor,
			CreatedAt:  ts,
		}
		if err := tx.Create(&text).Error; err != nil {
			return err
		}

		// A reviewer decision is terminal even for new documents.
		if err := store.GuardedStatus(tx, req.ID, constants.RequestProcessing, in.Actor, string(constants.RequestDecided)).Error; err != nil {
			return err
		}

		entry, err := store.NewAuditLog(req.ID, constants.AuditDocUploaded, in.Actor, map[string]any{
			"document_id":   doc.ID,
			"document_uuid": doc.DocumentUUID,
		})
		if err != nil {
			return err
		}
		return tx.Create(&entry).Error
	})
	if err != nil {
		// A concurrent upload with the same key won the unique index.
		if in.IdempotencyKey != nil {
			if res, ok, rerr := s.replay(ctx, req, *in.IdempotencyKey, in.Actor, false); rerr == nil && ok {
				return res, nil
			}
		}
		return UploadResult{}, common.Persistence("upload document", err)
	}

	job := jobs.Job{
		UUID:         uuid.NewString(),
		DocumentID:   doc.ID,
		PARequestID:  req.ID,
		Attempt:      1,
		DocumentUUID: doc.DocumentUUID,
		RequestUUID:  req.RequestUUID,
	}
	if err := s.enqueue(ctx, job, in.Actor); err != nil {
		return UploadResult{}, err
	}

	return UploadResult{
		DocumentUUID: doc.DocumentUUID,
		DocumentID:   doc.ID,
		JobUUID:      job.UUID,
		Status:       constants.RequestProcessing,
	}, nil
}

// replay answers a repeated idempotency key with the stored document and the
// request's current status. With redrive set, a document whose first enqueue
// failed, and that no worker has started, is enqueued again.
func (s *Service) replay(ctx context.Context, req store.PARequest, key, actor string, redrive bool) (UploadResult, bool, error) {
	doc, err := s.Store.Documents.FindByIdempotencyKey(ctx, req.ID, key)
	if errors.Is(err, common.ErrNotFound) {
		return UploadResult{}, false, nil
	}
	if err != nil {
		return UploadResult{}, false, err
	}

	res := UploadResult{
		DocumentUUID: doc.DocumentUUID,
		DocumentID:   doc.ID,
		Status:       constants.RequestStatus(req.Status),
		Replayed:     true,
	}
	if !redrive || doc.EnqueuedAt != nil || doc.Status != string(constants.DocumentUploaded) {
		return res, true, nil
	}

	started, err := s.Store.Jobs.AnyForDocument(ctx, doc.ID)
	if err != nil {
		return UploadResult{}, false, err
	}
	if started {
		return res, true, nil
	}

	job := jobs.Job{
		UUID:         uuid.NewString(),
		DocumentID:   doc.ID,
		PARequestID:  req.ID,
		Attempt:      1,
		DocumentUUID: doc.DocumentUUID,
		RequestUUID:  req.RequestUUID,
	}
	if err := s.enqueue(ctx, job, actor); err != nil {
		return UploadResult{}, false, err
	}
	res.JobUUID = job.UUID
	return res, true, nil
}

func (s *Service) enqueue(ctx context.Context, job jobs.Job, actor string) error {
	payload, err := jobs.Encode(job)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}
	if err := s.Queue.Enqueue(ctx, payload); err != nil {
		s.logger().Error("enqueue failed; document left UPLOADED",
			zap.String(logging.FieldJobUUID, job.UUID),
			zap.Int64(logging.FieldDocumentID, job.DocumentID),
			zap.Error(err),
		)
		return fmt.Errorf("enqueue job %s: %w", job.UUID, err)
	}
	if err := s.Store.Documents.MarkEnqueued(ctx, job.DocumentID); err != nil {
		s.logger().Warn("mark document enqueued failed", zap.Int64(logging.FieldDocumentID, job.DocumentID), zap.Error(err))
	}

	if err := s.Store.Audit.Log(ctx, job.PARequestID, constants.AuditJobEnqueued, actor, map[string]any{
		"job_uuid":    job.UUID,
		"document_id": job.DocumentID,
	}); err != nil {
		// The job is already on the queue; the missing audit row is not worth
		// failing the upload over.
		s.logger().Warn("audit job_enqueued failed", zap.String(logging.FieldJobUUID, job.UUID), zap.Error(err))
	}
	return nil
}

// Audit lists the request's audit trail, oldest first.
func (s *Service) Audit(ctx context.Context, requestUUID string, q store.AuditQuery) ([]store.AuditLog, error) {
	req, err := s.Store.Requests.GetByUUID(ctx, requestUUID)
	if err != nil {
		return nil, err
	}
	return s.Store.Audit.List(ctx, req.ID, q)
}

func (s *Service) logger() *zap.Logger {
	if s.Logger == nil {
		return logging.NewNop()
	}
	return s.Logger
}
