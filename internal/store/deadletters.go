package store

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"paworker/internal/common"
)

type DeadLetters struct {
	DB *gorm.DB
}

// InsertDeadLetter writes the record unless one already exists for jobUUID.
// inserted reports whether this call wrote it.
func (d *DeadLetters) InsertDeadLetter(ctx context.Context, jobUUID string, documentID int64, reason string, payload []byte) (bool, error) {
	row := DeadLetterJob{
		JobUUID:    jobUUID,
		DocumentID: documentID,
		Reason:     reason,
		Payload:    json.RawMessage(payload),
		CreatedBy:  workerActor,
		ModifiedBy: workerActor,
		CreatedAt:  now(),
	}
	res := d.DB.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "job_uuid"}}, DoNothing: true}).
		Create(&row)
	if res.Error != nil {
		return false, common.Persistence(fmt.Sprintf("insert dead letter for job %s", jobUUID), res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (d *DeadLetters) List(ctx context.Context, limit int) ([]DeadLetterJob, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []DeadLetterJob
	err := d.DB.WithContext(ctx).Order("created_at desc, id desc").Limit(limit).Find(&rows).Error
	if err != nil {
		return nil, common.Persistence("list dead letters", err)
	}
	return rows, nil
}
