package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"paworker/internal/common"
	"paworker/internal/constants"
)

type Requests struct {
	DB *gorm.DB
}

// MarkEvidenceReady moves the request to EVIDENCE_READY unless it is DECIDED or
// already there. A guarded no-op returns common.ErrStatusGuard.
func (r *Requests) MarkEvidenceReady(ctx context.Context, paRequestID int64) error {
	return r.transition(ctx, paRequestID, constants.RequestEvidenceReady,
		constants.RequestDecided, constants.RequestEvidenceReady)
}

// MarkNeedsMoreInfo moves the request to NEEDS_MORE_INFO unless it is DECIDED
// or already there.
func (r *Requests) MarkNeedsMoreInfo(ctx context.Context, paRequestID int64) error {
	return r.transition(ctx, paRequestID, constants.RequestNeedsMoreInfo,
		constants.RequestDecided, constants.RequestNeedsMoreInfo)
}

// MarkFailed never overwrites DECIDED or EVIDENCE_READY.
func (r *Requests) MarkFailed(ctx context.Context, paRequestID int64) error {
	return r.transition(ctx, paRequestID, constants.RequestFailed,
		constants.RequestDecided, constants.RequestEvidenceReady)
}

func (r *Requests) transition(ctx context.Context, paRequestID int64, to constants.RequestStatus, unless ...constants.RequestStatus) error {
	excluded := make([]string, 0, len(unless))
	for _, s := range unless {
		excluded = append(excluded, string(s))
	}

	res := GuardedStatus(r.DB.WithContext(ctx), paRequestID, to, constants.ModifiedBy, excluded...)
	if res.Error != nil {
		return common.Persistence(fmt.Sprintf("set pa request %d to %s", paRequestID, to), res.Error)
	}
	if res.RowsAffected == 0 {
		return common.ErrStatusGuard
	}
	return nil
}

// GuardedStatus issues the conditional update shared by the worker and the
// API. The caller reads RowsAffected.
func GuardedStatus(tx *gorm.DB, paRequestID int64, to constants.RequestStatus, actor string, unless ...string) *gorm.DB {
	return tx.Model(&PARequest{}).
		Where("id = ? AND status NOT IN ?", paRequestID, unless).
		Updates(map[string]any{
			"status":      string(to),
			"modified_by": actor,
			"modified_at": now(),
		})
}

func (r *Requests) GetByUUID(ctx context.Context, requestUUID string) (PARequest, error) {
	var req PARequest
	err := r.DB.WithContext(ctx).Where("request_uuid = ?", requestUUID).Take(&req).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return PARequest{}, common.ErrNotFound
	}
	if err != nil {
		return PARequest{}, common.Persistence("get pa request", err)
	}
	return req, nil
}

func (r *Requests) Get(ctx context.Context, paRequestID int64) (PARequest, error) {
	var req PARequest
	err := r.DB.WithContext(ctx).Where("id = ?", paRequestID).Take(&req).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return PARequest{}, common.ErrNotFound
	}
	if err != nil {
		return PARequest{}, common.Persistence(fmt.Sprintf("get pa request %d", paRequestID), err)
	}
	return req, nil
}

// LatestPack returns the newest evidence pack of the request, or nil.
func (r *Requests) LatestPack(ctx context.Context, paRequestID int64) (*EvidencePack, error) {
	var packs []EvidencePack
	err := r.DB.WithContext(ctx).
		Where("pa_request_id = ?", paRequestID).
		Order("created_at desc, id desc").
		Limit(1).
		Find(&packs).Error
	if err != nil {
		return nil, common.Persistence("latest evidence pack", err)
	}
	if len(packs) == 0 {
		return nil, nil
	}
	return &packs[0], nil
}
