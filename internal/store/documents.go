package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"paworker/internal/common"
	"paworker/internal/constants"
)

type Documents struct {
	DB *gorm.DB
}

// FetchText returns the stored text of a document. ok is false when the
// document has no text row.
func (d *Documents) FetchText(ctx context.Context, documentID int64) (text string, ok bool, err error) {
	var row DocumentText
	err = d.DB.WithContext(ctx).Where("document_id = ?", documentID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, common.Persistence(fmt.Sprintf("fetch text of document %d", documentID), err)
	}
	return row.Text, true, nil
}

func (d *Documents) SetStatus(ctx context.Context, documentID int64, status constants.DocumentStatus) error {
	err := d.DB.WithContext(ctx).Model(&Document{}).
		Where("id = ?", documentID).
		Updates(map[string]any{
			"status":      string(status),
			"modified_by": workerActor,
			"modified_at": now(),
		}).Error
	return common.Persistence(fmt.Sprintf("set status of document %d", documentID), err)
}

func (d *Documents) MarkEnqueued(ctx context.Context, documentID int64) error {
	err := d.DB.WithContext(ctx).Model(&Document{}).
		Where("id = ? AND enqueued_at IS NULL", documentID).
		Update("enqueued_at", now()).Error
	return common.Persistence(fmt.Sprintf("mark document %d enqueued", documentID), err)
}

// FindByIdempotencyKey returns the document previously uploaded to the request
// under key.
func (d *Documents) FindByIdempotencyKey(ctx context.Context, paRequestID int64, key string) (Document, error) {
	var doc Document
	err := d.DB.WithContext(ctx).
		Where("pa_request_id = ? AND idempotency_key = ?", paRequestID, key).
		Take(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Document{}, common.ErrNotFound
	}
	if err != nil {
		return Document{}, common.Persistence("find document by idempotency key", err)
	}
	return doc, nil
}

func (d *Documents) Get(ctx context.Context, documentID int64) (Document, error) {
	var doc Document
	err := d.DB.WithContext(ctx).Where("id = ?", documentID).Take(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Document{}, common.ErrNotFound
	}
	if err != nil {
		return Document{}, common.Persistence(fmt.Sprintf("get document %d", documentID), err)
	}
	return doc, nil
}
