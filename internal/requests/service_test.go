package requests_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"paworker/internal/common"
	"paworker/internal/constants"
	"paworker/internal/db"
	"paworker/internal/jobs"
	"paworker/internal/requests"
	"paworker/internal/store"
)

const queueName = "document_processing_queue"

func newService(t *testing.T) (*requests.Service, *miniredis.Miniredis) {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "api.db")), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrateAndIndexes(gdb); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}

	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return &requests.Service{
		DB:    gdb,
		Store: store.New(gdb),
		Queue: jobs.NewRedisQueue(client, queueName, "document_processing_dlq", time.Second),
	}, srv
}

func key(s string) *string { return &s }

func TestCreateRequest(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	req, err := svc.Create(ctx, "USER:1")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if req.Status != string(constants.RequestCreated) || req.RequestUUID == "" {
		t.Fatalf("request = %+v", req)
	}

	detail, err := svc.Get(ctx, req.RequestUUID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if detail.LatestPack != nil {
		t.Fatal("new request has a pack")
	}

	entries, err := svc.Audit(ctx, req.RequestUUID, store.AuditQuery{})
	if err != nil {
		t.Fatalf("Audit failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Action != string(constants.AuditPACreated) || entries[0].Actor != "USER:1" {
		t.Fatalf("audit = %+v", entries)
	}
}

func TestUploadEnqueuesFirstAttempt(t *testing.T) {
	svc, srv := newService(t)
	ctx := context.Background()
	req, _ := svc.Create(ctx, "USER:1")

	res, err := svc.Upload(ctx, requests.UploadInput{
		RequestUUID:    req.RequestUUID,
		Text:           "Patient has osteoarthritis.",
		IdempotencyKey: key("upload-1"),
		Actor:          "USER:1",
	})
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if res.Replayed || res.Status != constants.RequestProcessing {
		t.Fatalf("result = %+v", res)
	}

	queued, err := srv.List(queueName)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(queued) != 1 {
		t.Fatalf("queue = %v", queued)
	}
	job, err := jobs.Decode([]byte(queued[0]))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if job.Attempt != 1 || job.DocumentID != res.DocumentID || job.PARequestID != req.ID || job.UUID != res.JobUUID {
		t.Fatalf("job = %+v", job)
	}
	if job.DocumentUUID != res.DocumentUUID || job.RequestUUID != req.RequestUUID {
		t.Fatalf("job uuids = %+v", job)
	}

	text, ok, err := svc.Store.Documents.FetchText(ctx, res.DocumentID)
	if err != nil || !ok || text != "Patient has osteoarthritis." {
		t.Fatalf("FetchText = %q, %v, %v", text, ok, err)
	}

	detail, _ := svc.Get(ctx, req.RequestUUID)
	if detail.Request.Status != string(constants.RequestProcessing) {
		t.Fatalf("request status = %s", detail.Request.Status)
	}

	entries, _ := svc.Audit(ctx, req.RequestUUID, store.AuditQuery{})
	want := []constants.AuditAction{constants.AuditPACreated, constants.AuditDocUploaded, constants.AuditJobEnqueued}
	if len(entries) != len(want) {
		t.Fatalf("audit = %+v", entries)
	}
	for i, a := range want {
		if entries[i].Action != string(a) {
			t.Fatalf("audit[%d] = %s, want %s", i, entries[i].Action, a)
		}
	}
}

func TestUploadIdempotencyKey(t *testing.T) {
	svc, srv := newService(t)
	ctx := context.Background()
	req, _ := svc.Create(ctx, "USER:1")
	in := requests.UploadInput{RequestUUID: req.RequestUUID, Text: "note", IdempotencyKey: key("k"), Actor: "USER:1"}

	first, err := svc.Upload(ctx, in)
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	second, err := svc.Upload(ctx, in)
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if !second.Replayed || second.DocumentUUID != first.DocumentUUID {
		t.Fatalf("second = %+v, first = %+v", second, first)
	}

	queued, _ := srv.List(queueName)
	if len(queued) != 1 {
		t.Fatalf("queue length = %d, want 1", len(queued))
	}

	third, err := svc.Upload(ctx, requests.UploadInput{RequestUUID: req.RequestUUID, Text: "note", Actor: "USER:1"})
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if third.DocumentUUID == first.DocumentUUID {
		t.Fatal("upload without key reused a document")
	}
}

func TestUploadErrors(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	req, _ := svc.Create(ctx, "USER:1")

	if _, err := svc.Upload(ctx, requests.UploadInput{RequestUUID: "missing", Text: "x"}); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("unknown request err = %v", err)
	}
	if _, err := svc.Upload(ctx, requests.UploadInput{RequestUUID: req.RequestUUID, Text: "   "}); !errors.Is(err, requests.ErrInvalidInput) {
		t.Fatalf("empty text err = %v", err)
	}
}

func TestUploadKeepsDecidedRequest(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	req, _ := svc.Create(ctx, "USER:1")
	svc.DB.Model(&store.PARequest{}).Where("id = ?", req.ID).Update("status", string(constants.RequestDecided))

	if _, err := svc.Upload(ctx, requests.UploadInput{RequestUUID: req.RequestUUID, Text: "note", Actor: "USER:1"}); err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	detail, _ := svc.Get(ctx, req.RequestUUID)
	if detail.Request.Status != string(constants.RequestDecided) {
		t.Fatalf("status = %s", detail.Request.Status)
	}
}

func TestUploadQueueDown(t *testing.T) {
	svc, srv := newService(t)
	ctx := context.Background()
	req, _ := svc.Create(ctx, "USER:1")
	srv.Close()

	if _, err := svc.Upload(ctx, requests.UploadInput{RequestUUID: req.RequestUUID, Text: "note", Actor: "USER:1"}); err == nil {
		t.Fatal("expected enqueue error")
	}
}

func TestUploadRetryAfterFailedEnqueue(t *testing.T) {
	svc, srv := newService(t)
	ctx := context.Background()
	req, _ := svc.Create(ctx, "USER:1")
	in := requests.UploadInput{RequestUUID: req.RequestUUID, Text: "note", IdempotencyKey: key("retry-me"), Actor: "USER:1"}

	srv.SetError("ERR queue unavailable")
	if _, err := svc.Upload(ctx, in); err == nil {
		t.Fatal("expected enqueue error")
	}
	srv.SetError("")

	res, err := svc.Upload(ctx, in)
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if !res.Replayed || res.JobUUID == "" {
		t.Fatalf("result = %+v, want a replay that enqueued", res)
	}
	queued, _ := srv.List(queueName)
	if len(queued) != 1 {
		t.Fatalf("queue length = %d, want 1", len(queued))
	}
	job, err := jobs.Decode([]byte(queued[0]))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if job.DocumentID != res.DocumentID || job.Attempt != 1 {
		t.Fatalf("job = %+v", job)
	}

	again, err := svc.Upload(ctx, in)
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if again.JobUUID != "" {
		t.Fatal("enqueued a document that already reached the queue")
	}
	queued, _ = srv.List(queueName)
	if len(queued) != 1 {
		t.Fatalf("queue length = %d, want 1", len(queued))
	}
}

func TestUploadReplayReportsRequestStatus(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	req, _ := svc.Create(ctx, "USER:1")
	in := requests.UploadInput{RequestUUID: req.RequestUUID, Text: "note", IdempotencyKey: key("k"), Actor: "USER:1"}

	if _, err := svc.Upload(ctx, in); err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if err := svc.Store.Requests.MarkNeedsMoreInfo(ctx, req.ID); err != nil {
		t.Fatalf("MarkNeedsMoreInfo failed: %v", err)
	}

	res, err := svc.Upload(ctx, in)
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if res.Status != constants.RequestNeedsMoreInfo {
		t.Fatalf("status = %s, want %s", res.Status, constants.RequestNeedsMoreInfo)
	}
}
