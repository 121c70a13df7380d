package pipeline_test

import (
	"context"
	"errors"

	"paworker/internal/common"
	"paworker/internal/constants"
	"paworker/internal/evidence"
)

type jobState struct {
	status    constants.JobStatus
	attempts  int
	lastError string
}

type auditRecord struct {
	action   constants.AuditAction
	metadata map[string]any
}

// memStore implements every pipeline collaborator over maps. failOn makes the
// named operation return errStore.
type memStore struct {
	texts     map[int64]string
	documents map[int64]constants.DocumentStatus
	requests  map[int64]constants.RequestStatus
	packs     map[int64]int64
	findings  map[int64]evidence.Findings
	finalized map[int64]evidence.PackOutcome
	states    map[string]jobState
	audit     []auditRecord

	nextPack   int64
	stalePacks bool
	failOn     string
}

var errStore = errors.New("connection reset by peer")

func newMemStore() *memStore {
	return &memStore{
		texts:     map[int64]string{},
		documents: map[int64]constants.DocumentStatus{},
		requests:  map[int64]constants.RequestStatus{},
		packs:     map[int64]int64{},
		findings:  map[int64]evidence.Findings{},
		finalized: map[int64]evidence.PackOutcome{},
		states:    map[string]jobState{},
	}
}

func (m *memStore) check(op string) error {
	if m.failOn == op {
		return common.Persistence(op, errStore)
	}
	return nil
}

func (m *memStore) FetchText(_ context.Context, documentID int64) (string, bool, error) {
	if err := m.check("fetch"); err != nil {
		return "", false, err
	}
	text, ok := m.texts[documentID]
	return text, ok, nil
}

func (m *memStore) SetStatus(_ context.Context, documentID int64, status constants.DocumentStatus) error {
	if err := m.check("document_status"); err != nil {
		return err
	}
	m.documents[documentID] = status
	return nil
}

func (m *memStore) transition(id int64, to constants.RequestStatus, unless ...constants.RequestStatus) error {
	cur, ok := m.requests[id]
	if !ok {
		return common.ErrStatusGuard
	}
	for _, s := range unless {
		if cur == s {
			return common.ErrStatusGuard
		}
	}
	m.requests[id] = to
	return nil
}

func (m *memStore) MarkEvidenceReady(_ context.Context, id int64) error {
	return m.transition(id, constants.RequestEvidenceReady, constants.RequestDecided, constants.RequestEvidenceReady)
}

func (m *memStore) MarkNeedsMoreInfo(_ context.Context, id int64) error {
	return m.transition(id, constants.RequestNeedsMoreInfo, constants.RequestDecided, constants.RequestNeedsMoreInfo)
}

func (m *memStore) MarkFailed(_ context.Context, id int64) error {
	return m.transition(id, constants.RequestFailed, constants.RequestDecided, constants.RequestEvidenceReady)
}

func (m *memStore) CreateOrGet(_ context.Context, paRequestID int64) (int64, error) {
	if err := m.check("create_pack"); err != nil {
		return 0, err
	}
	if id, ok := m.packs[paRequestID]; ok {
		return id, nil
	}
	m.nextPack++
	m.packs[paRequestID] = m.nextPack
	return m.nextPack, nil
}

func (m *memStore) InsertFinding(_ context.Context, packID, _ int64, findings evidence.Findings) error {
	if err := m.check("insert_finding"); err != nil {
		return err
	}
	m.findings[packID] = findings
	return nil
}

func (m *memStore) Finalize(_ context.Context, packID int64, outcome evidence.PackOutcome) error {
	if m.stalePacks {
		return common.Persistence("finalize evidence pack", common.ErrNotFound)
	}
	m.finalized[packID] = outcome
	return nil
}

func (m *memStore) StartAttempt(_ context.Context, jobUUID string, documentID int64, attempt int, _ string) (int, error) {
	if err := m.check("start"); err != nil {
		return 0, err
	}
	st, ok := m.states[jobUUID]
	next := attempt
	if ok && st.attempts+1 > next {
		next = st.attempts + 1
	}
	m.states[jobUUID] = jobState{status: constants.JobProcessing, attempts: next}
	return next, nil
}

func (m *memStore) UpsertState(_ context.Context, jobUUID string, _ int64, status constants.JobStatus, attemptCount int, lastError string) error {
	st := m.states[jobUUID]
	if attemptCount > st.attempts {
		st.attempts = attemptCount
	}
	st.status = status
	st.lastError = lastError
	m.states[jobUUID] = st
	return nil
}

func (m *memStore) Log(_ context.Context, _ int64, action constants.AuditAction, _ string, metadata map[string]any) error {
	m.audit = append(m.audit, auditRecord{action: action, metadata: metadata})
	return nil
}

func (m *memStore) actions() []constants.AuditAction {
	out := make([]constants.AuditAction, 0, len(m.audit))
	for _, a := range m.audit {
		out = append(out, a.action)
	}
	return out
}
