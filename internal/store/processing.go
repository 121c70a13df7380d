package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"paworker/internal/common"
	"paworker/internal/constants"
)

type ProcessingJobs struct {
	DB *gorm.DB
}

// StartAttempt marks the job PROCESSING and returns its attempt_count. A fresh
// row starts at attempt; on conflict the count becomes the larger of the
// previous count plus one and attempt, so redeliveries are counted too.
func (j *ProcessingJobs) StartAttempt(ctx context.Context, jobUUID string, documentID int64, attempt int, traceID string) (int, error) {
	if attempt < 1 {
		attempt = 1
	}
	ts := now()
	row := j.DB.WithContext(ctx).Raw(`
insert into processing_jobs
  (job_uuid, document_id, status, attempt_count, trace_id, created_by, modified_by, created_at, modified_at)
values (?, ?, ?, ?, ?, ?, ?, ?, ?)
on conflict (job_uuid)
do update set
  status = excluded.status,
  attempt_count = case
    when processing_jobs.attempt_count + 1 > excluded.attempt_count then processing_jobs.attempt_count + 1
    else excluded.attempt_count
  end,
  trace_id = excluded.trace_id,
  modified_by = excluded.modified_by,
  modified_at = excluded.modified_at
returning attempt_count`,
		jobUUID, documentID, string(constants.JobProcessing), attempt, nullable(traceID), workerActor, workerActor, ts, ts,
	).Row()

	var count int
	if err := row.Scan(&count); err != nil {
		return 0, common.Persistence(fmt.Sprintf("start attempt of job %s", jobUUID), err)
	}
	return count, nil
}

// UpsertState writes status and last_error. attempt_count never decreases.
func (j *ProcessingJobs) UpsertState(ctx context.Context, jobUUID string, documentID int64, status constants.JobStatus, attemptCount int, lastError string) error {
	ts := now()
	err := j.DB.WithContext(ctx).Exec(`
insert into processing_jobs
  (job_uuid, document_id, status, attempt_count, last_error, created_by, modified_by, created_at, modified_at)
values (?, ?, ?, ?, ?, ?, ?, ?, ?)
on conflict (job_uuid)
do update set
  status = excluded.status,
  attempt_count = case
    when excluded.attempt_count > processing_jobs.attempt_count then excluded.attempt_count
    else processing_jobs.attempt_count
  end,
  last_error = excluded.last_error,
  modified_by = excluded.modified_by,
  modified_at = excluded.modified_at`,
		jobUUID, documentID, string(status), attemptCount, nullable(lastError), workerActor, workerActor, ts, ts,
	).Error
	return common.Persistence(fmt.Sprintf("upsert state of job %s", jobUUID), err)
}

func (j *ProcessingJobs) Get(ctx context.Context, jobUUID string) (ProcessingJob, error) {
	var row ProcessingJob
	err := j.DB.WithContext(ctx).Where("job_uuid = ?", jobUUID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ProcessingJob{}, common.ErrNotFound
	}
	if err != nil {
		return ProcessingJob{}, common.Persistence(fmt.Sprintf("get job %s", jobUUID), err)
	}
	return row, nil
}

// AnyForDocument reports whether a worker ever started a job for the document.
func (j *ProcessingJobs) AnyForDocument(ctx context.Context, documentID int64) (bool, error) {
	var n int64
	err := j.DB.WithContext(ctx).Model(&ProcessingJob{}).Where("document_id = ?", documentID).Count(&n).Error
	if err != nil {
		return false, common.Persistence(fmt.Sprintf("count jobs of document %d", documentID), err)
	}
	return n > 0, nil
}
