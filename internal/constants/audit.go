package constants

// AuditAction names an append-only audit event. Stored verbatim.
type AuditAction string

const (
	AuditPACreated     AuditAction = "pa_created"
	AuditPANeedsInfo   AuditAction = "pa_needs_more_info"
	AuditDocUploaded   AuditAction = "document_uploaded"
	AuditDocFailed     AuditAction = "document_processing_failed"
	AuditPackCreated   AuditAction = "evidence_pack_created"
	AuditEvidenceReady AuditAction = "evidence_ready"
	AuditJobEnqueued   AuditAction = "job_enqueued"
	AuditJobRetried    AuditAction = "job_retried"
	AuditJobDLQ        AuditAction = "job_sent_to_dlq"
)
