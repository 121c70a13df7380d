package store

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/gorm"

	"paworker/internal/common"
	"paworker/internal/constants"
)

const (
	DefaultAuditLimit = 50
	MaxAuditLimit     = 200
)

type Audit struct {
	DB *gorm.DB
}

// NewAuditLog builds an entry. A nil or empty metadata map is stored as NULL.
func NewAuditLog(paRequestID int64, action constants.AuditAction, actor string, metadata map[string]any) (AuditLog, error) {
	entry := AuditLog{
		PARequestID: paRequestID,
		Actor:       actor,
		Action:      string(action),
		CreatedBy:   actor,
		ModifiedBy:  actor,
		CreatedAt:   now(),
	}
	if len(metadata) > 0 {
		b, err := json.Marshal(metadata)
		if err != nil {
			return AuditLog{}, fmt.Errorf("encode audit metadata: %w", err)
		}
		entry.Metadata = b
	}
	return entry, nil
}

func (a *Audit) Log(ctx context.Context, paRequestID int64, action constants.AuditAction, actor string, metadata map[string]any) error {
	entry, err := NewAuditLog(paRequestID, action, actor, metadata)
	if err != nil {
		return common.Persistence("audit "+string(action), err)
	}
	return common.Persistence("audit "+string(action), a.DB.WithContext(ctx).Create(&entry).Error)
}

// AuditQuery pages through a request's audit trail. Page is 0-indexed.
type AuditQuery struct {
	Limit   int
	Page    int
	Actions []string
}

// Normalize clamps Limit and Page to their allowed ranges.
func (q AuditQuery) Normalize() AuditQuery {
	if q.Limit <= 0 {
		q.Limit = DefaultAuditLimit
	}
	if q.Limit > MaxAuditLimit {
		q.Limit = MaxAuditLimit
	}
	if q.Page < 0 {
		q.Page = 0
	}
	return q
}

// List returns entries oldest first.
func (a *Audit) List(ctx context.Context, paRequestID int64, q AuditQuery) ([]AuditLog, error) {
	q = q.Normalize()

	tx := a.DB.WithContext(ctx).Where("pa_request_id = ?", paRequestID)
	if len(q.Actions) > 0 {
		tx = tx.Where("action IN ?", q.Actions)
	}

	var rows []AuditLog
	err := tx.Order("created_at asc, id asc").
		Limit(q.Limit).
		Offset(q.Page * q.Limit).
		Find(&rows).Error
	if err != nil {
		return nil, common.Persistence("list audit logs", err)
	}
	return rows, nil
}
