package jobs_test

import (
	"context"
	"errors"
	"sync"

	"paworker/internal/constants"
	"paworker/internal/jobs"
)

// memQueue is a Queue backed by slices. Pop serves scripted payloads in order,
// then reports ErrNoJob.
type memQueue struct {
	mu        sync.Mutex
	pops      []popResult
	requeued  [][]byte
	dead      [][]byte
	enqueued  [][]byte
	failPush  error
	drained   chan struct{}
	drainOnce sync.Once
}

type popResult struct {
	payload []byte
	err     error
}

func newMemQueue(pops ...popResult) *memQueue {
	return &memQueue{pops: pops, drained: make(chan struct{})}
}

func (q *memQueue) Pop(ctx context.Context) ([]byte, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pops) == 0 {
		q.drainOnce.Do(func() { close(q.drained) })
		return nil, jobs.ErrNoJob
	}
	next := q.pops[0]
	q.pops = q.pops[1:]
	if next.err != nil {
		return nil, next.err
	}
	return next.payload, nil
}

func (q *memQueue) Enqueue(_ context.Context, payload []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.enqueued = append(q.enqueued, payload)
	return nil
}

func (q *memQueue) Requeue(_ context.Context, payload []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.failPush != nil {
		return q.failPush
	}
	q.requeued = append(q.requeued, payload)
	return nil
}

func (q *memQueue) DeadLetter(_ context.Context, payload []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.failPush != nil {
		return q.failPush
	}
	q.dead = append(q.dead, payload)
	return nil
}

type stateCall struct {
	jobUUID   string
	status    constants.JobStatus
	attempt   int
	lastError string
}

type fakeStates struct {
	mu    sync.Mutex
	calls []stateCall
}

func (s *fakeStates) UpsertState(_ context.Context, jobUUID string, _ int64, status constants.JobStatus, attemptCount int, lastError string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, stateCall{jobUUID: jobUUID, status: status, attempt: attemptCount, lastError: lastError})
	return nil
}

type fakeDeadLetters struct {
	mu      sync.Mutex
	records map[string][]byte
	err     error
}

func (d *fakeDeadLetters) InsertDeadLetter(_ context.Context, jobUUID string, _ int64, _ string, payload []byte) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return false, d.err
	}
	if d.records == nil {
		d.records = map[string][]byte{}
	}
	if _, ok := d.records[jobUUID]; ok {
		return false, nil
	}
	d.records[jobUUID] = payload
	return true, nil
}

type auditEntry struct {
	paRequestID int64
	action      constants.AuditAction
	metadata    map[string]any
}

type fakeAudit struct {
	mu      sync.Mutex
	entries []auditEntry
}

func (a *fakeAudit) Log(_ context.Context, paRequestID int64, action constants.AuditAction, _ string, metadata map[string]any) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, auditEntry{paRequestID: paRequestID, action: action, metadata: metadata})
	return nil
}

func (a *fakeAudit) actions() []constants.AuditAction {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]constants.AuditAction, 0, len(a.entries))
	for _, e := range a.entries {
		out = append(out, e.action)
	}
	return out
}

// scriptedProcessor fails every attempt listed in failOn.
type scriptedProcessor struct {
	mu     sync.Mutex
	failOn map[int]error
	panics bool
	seen   []jobs.Job
}

func (p *scriptedProcessor) Process(_ context.Context, job jobs.Job) jobs.Result {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seen = append(p.seen, job)
	if p.panics {
		panic("extractor exploded")
	}
	if err, ok := p.failOn[job.Attempt]; ok {
		return jobs.Result{Err: err}
	}
	return jobs.Result{Decision: string(constants.DecisionApprove), PackID: 1}
}

func (p *scriptedProcessor) jobs() []jobs.Job {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]jobs.Job(nil), p.seen...)
}

var errBoom = errors.New("boom")
