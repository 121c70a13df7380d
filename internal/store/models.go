package store

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// PARequest is a prior-authorization request.
type PARequest struct {
	ID          int64     `gorm:"primaryKey"`
	RequestUUID string    `gorm:"column:request_uuid;uniqueIndex;not null"`
	Status      string    `gorm:"index;not null"`
	CreatedBy   string    `gorm:"not null"`
	ModifiedBy  string    `gorm:"not null"`
	CreatedAt   time.Time `gorm:"not null"`
	ModifiedAt  time.Time `gorm:"not null"`
}

func (PARequest) TableName() string { return "pa_requests" }

// Document is one uploaded clinical document. IdempotencyKey is unique per
// request when set. EnqueuedAt is set once its first job reached the queue.
type Document struct {
	ID             int64     `gorm:"primaryKey"`
	DocumentUUID   string    `gorm:"column:document_uuid;uniqueIndex;not null"`
	PARequestID    int64     `gorm:"column:pa_request_id;index;not null;uniqueIndex:uq_documents_idem,priority:1"`
	IdempotencyKey *string   `gorm:"uniqueIndex:uq_documents_idem,priority:2"`
	Status         string    `gorm:"not null"`
	EnqueuedAt     *time.Time
	CreatedBy      string    `gorm:"not null"`
	ModifiedBy     string    `gorm:"not null"`
	CreatedAt      time.Time `gorm:"not null"`
	ModifiedAt     time.Time `gorm:"not null"`
}

func (Document) TableName() string { return "documents" }

// DocumentText holds the raw text apart from document metadata.
type DocumentText struct {
	DocumentID int64     `gorm:"primaryKey;autoIncrement:false"`
	Text       string    `gorm:"type:text;not null"`
	CreatedBy  string    `gorm:"not null"`
	ModifiedBy string    `gorm:"not null"`
	CreatedAt  time.Time `gorm:"not null"`
}

func (DocumentText) TableName() string { return "document_texts" }

// EvidencePack is the single evidence container of a PA request.
type EvidencePack struct {
	ID                  int64           `gorm:"primaryKey"`
	PARequestID         int64           `gorm:"column:pa_request_id;uniqueIndex;not null"`
	Status              string          `gorm:"not null"`
	Decision            *string         `gorm:"size:32"`
	Explanation         *string         `gorm:"type:text"`
	MissingRequirements StringList      `gorm:"not null"`
	Sources             json.RawMessage `gorm:"type:jsonb"`
	Metadata            json.RawMessage `gorm:"type:jsonb"`
	CreatedBy           string          `gorm:"not null"`
	ModifiedBy          string          `gorm:"not null"`
	CreatedAt           time.Time       `gorm:"not null"`
	ModifiedAt          time.Time       `gorm:"not null"`
}

func (EvidencePack) TableName() string { return "evidence_packs" }

// ExtractedEvidence is the extractor output of one document under one pack.
type ExtractedEvidence struct {
	ID                   int64           `gorm:"primaryKey"`
	EvidencePackID       int64           `gorm:"not null;uniqueIndex:uq_extracted_pack_doc,priority:1"`
	DocumentID           int64           `gorm:"not null;uniqueIndex:uq_extracted_pack_doc,priority:2"`
	Diagnosis            *string         `gorm:"type:text"`
	ImagingPresent       bool            `gorm:"not null"`
	TherapyAttempted     bool            `gorm:"not null"`
	FunctionalLimitation bool            `gorm:"not null"`
	TherapySubtypes      StringList      `gorm:"not null"`
	MissingFields        StringList      `gorm:"not null"`
	Sources              json.RawMessage `gorm:"type:jsonb"`
	Findings             json.RawMessage `gorm:"type:jsonb"`
	CreatedBy            string          `gorm:"not null"`
	ModifiedBy           string          `gorm:"not null"`
	CreatedAt            time.Time       `gorm:"not null"`
	ModifiedAt           time.Time       `gorm:"not null"`
}

func (ExtractedEvidence) TableName() string { return "extracted_evidence" }

// ProcessingJob tracks one logical job across its attempts.
type ProcessingJob struct {
	ID           int64     `gorm:"primaryKey"`
	JobUUID      string    `gorm:"column:job_uuid;uniqueIndex;not null"`
	DocumentID   int64     `gorm:"index;not null"`
	Status       string    `gorm:"not null"`
	AttemptCount int       `gorm:"not null"`
	LastError    *string   `gorm:"type:text"`
	TraceID      *string   `gorm:"size:64"`
	CreatedBy    string    `gorm:"not null"`
	ModifiedBy   string    `gorm:"not null"`
	CreatedAt    time.Time `gorm:"not null"`
	ModifiedAt   time.Time `gorm:"not null"`
}

func (ProcessingJob) TableName() string { return "processing_jobs" }

// DeadLetterJob is written once per job lineage that exhausted its retries.
type DeadLetterJob struct {
	ID         int64           `gorm:"primaryKey"`
	JobUUID    string          `gorm:"column:job_uuid;uniqueIndex;not null"`
	DocumentID int64           `gorm:"index;not null"`
	Reason     string          `gorm:"type:text;not null"`
	Payload    json.RawMessage `gorm:"type:jsonb;not null"`
	CreatedBy  string          `gorm:"not null"`
	ModifiedBy string          `gorm:"not null"`
	CreatedAt  time.Time       `gorm:"not null"`
}

func (DeadLetterJob) TableName() string { return "dead_letter_jobs" }

// AuditLog is append-only.
type AuditLog struct {
	ID          int64           `gorm:"primaryKey" json:"id"`
	PARequestID int64           `gorm:"column:pa_request_id;index;not null" json:"-"`
	Actor       string          `gorm:"not null" json:"actor"`
	Action      string          `gorm:"index;not null" json:"action"`
	Metadata    json.RawMessage `gorm:"type:jsonb" json:"metadata"`
	CreatedBy   string          `gorm:"not null" json:"-"`
	ModifiedBy  string          `gorm:"not null" json:"-"`
	CreatedAt   time.Time       `gorm:"index;not null" json:"created_at"`
}

func (AuditLog) TableName() string { return "audit_logs" }

// Models lists every table owned by this package, in migration order.
func Models() []any {
	return []any{
		&PARequest{},
		&Document{},
		&DocumentText{},
		&EvidencePack{},
		&ExtractedEvidence{},
		&ProcessingJob{},
		&DeadLetterJob{},
		&AuditLog{},
	}
}

// StringList is a text[] column on Postgres and a text column holding the same
// array literal elsewhere.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		l = StringList{}
	}
	return pq.StringArray(l).Value()
}

func (l *StringList) Scan(src any) error {
	var arr pq.StringArray
	if err := arr.Scan(src); err != nil {
		return err
	}
	*l = StringList(arr)
	if *l == nil {
		*l = StringList{}
	}
	return nil
}

func (StringList) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	if db.Dialector.Name() == "postgres" {
		return "text[]"
	}
	return "text"
}
