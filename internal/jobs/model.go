package jobs

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"paworker/internal/common"
)

// Job is the queue descriptor for one document-processing attempt. UUID is
// stable across retries of the same logical job; Attempt is 1-indexed.
type Job struct {
	UUID        string `json:"job_uuid"`
	DocumentID  int64  `json:"document_id"`
	PARequestID int64  `json:"pa_request_id"`
	Attempt     int    `json:"attempt"`

	// Set by the API producer; informational only.
	DocumentUUID string `json:"document_uuid,omitempty"`
	RequestUUID  string `json:"request_uuid,omitempty"`
}

// DeadLetterPayload is what lands on the dead-letter list.
type DeadLetterPayload struct {
	Job
	Error    string  `json:"error"`
	FailedAt float64 `json:"failed_at"` // epoch seconds
}

type wireJob struct {
	UUID         string `json:"job_uuid"`
	DocumentID   *int64 `json:"document_id"`
	PARequestID  *int64 `json:"pa_request_id"`
	Attempt      *int   `json:"attempt"`
	DocumentUUID string `json:"document_uuid"`
	RequestUUID  string `json:"request_uuid"`
}

// Decode parses a queue payload. document_id and pa_request_id are required; a
// missing job_uuid is generated and a missing or non-positive attempt becomes 1.
func Decode(payload []byte) (Job, error) {
	var w wireJob
	if err := json.Unmarshal(payload, &w); err != nil {
		return Job{}, common.Malformed("decode job payload", err)
	}
	if w.DocumentID == nil || *w.DocumentID <= 0 {
		return Job{}, common.Malformed("job payload missing document_id", nil)
	}
	if w.PARequestID == nil || *w.PARequestID <= 0 {
		return Job{}, common.Malformed("job payload missing pa_request_id", nil)
	}

	job := Job{
		UUID:         w.UUID,
		DocumentID:   *w.DocumentID,
		PARequestID:  *w.PARequestID,
		Attempt:      1,
		DocumentUUID: w.DocumentUUID,
		RequestUUID:  w.RequestUUID,
	}
	if job.UUID == "" {
		job.UUID = uuid.NewString()
	}
	if w.Attempt != nil && *w.Attempt > 0 {
		job.Attempt = *w.Attempt
	}
	return job, nil
}

// Encode serializes job for the main queue.
func Encode(job Job) ([]byte, error) {
	return json.Marshal(job)
}

// EncodeDeadLetter serializes job with the failure that exhausted it.
func EncodeDeadLetter(job Job, cause string, failedAt time.Time) ([]byte, error) {
	return json.Marshal(DeadLetterPayload{
		Job:      job,
		Error:    cause,
		FailedAt: float64(failedAt.UnixNano()) / float64(time.Second),
	})
}

// Result is what one pipeline attempt returns to the retry logic.
type Result struct {
	PackID   int64
	Decision string
	Err      error
}

// Failed reports whether the attempt failed.
func (r Result) Failed() bool {
	return r.Err != nil
}

// Kind classifies the failure; empty on success.
func (r Result) Kind() common.Kind {
	return common.KindOf(r.Err)
}
