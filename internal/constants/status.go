package constants

// RequestStatus is the lifecycle status of a PA request row.
type RequestStatus string

const (
	RequestCreated       RequestStatus = "CREATED"
	RequestProcessing    RequestStatus = "PROCESSING"
	RequestEvidenceReady RequestStatus = "EVIDENCE_READY"
	RequestNeedsMoreInfo RequestStatus = "NEEDS_MORE_INFO"
	RequestFailed        RequestStatus = "FAILED"
	RequestDecided       RequestStatus = "DECIDED" // terminal, set by reviewers only
)

// DocumentStatus is the lifecycle status of an uploaded document.
type DocumentStatus string

const (
	DocumentUploaded  DocumentStatus = "UPLOADED"
	DocumentProcessed DocumentStatus = "PROCESSED"
	DocumentFailed    DocumentStatus = "FAILED"
)

// JobStatus is the status stored in processing_jobs.
type JobStatus string

const (
	JobProcessing JobStatus = "PROCESSING"
	JobSuccess    JobStatus = "SUCCESS"
	JobFailed     JobStatus = "FAILED"
)

// PackStatus is the lifecycle status of an evidence pack.
type PackStatus string

const (
	PackCreated   PackStatus = "CREATED"
	PackFinalized PackStatus = "FINALIZED"
)

// Decision is a policy outcome.
type Decision string

const (
	DecisionApprove       Decision = "APPROVE"
	DecisionNeedsMoreInfo Decision = "NEEDS_MORE_INFO"
)

// Actors recorded on rows written by the background worker.
const (
	ActorWorker = "WORKER"
	ModifiedBy  = "worker"
)
