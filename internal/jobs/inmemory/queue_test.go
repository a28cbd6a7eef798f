package inmemory

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/finsight-app/finsight/internal/jobs"
)

func waitForStatus(t *testing.T, store *Store, jobID string, want jobs.JobStatus) *jobs.ArchiveStatementJob {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := store.GetJob(context.Background(), jobID)
		if err == nil && job.Status == want {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s never reached status %s", jobID, want)
	return nil
}

func TestQueueProcessesJob(t *testing.T) {
	store := NewStore()
	q := NewQueue(10, 2, store)
	defer q.Close()

	var handled atomic.Int32
	handler := func(ctx context.Context, job jobs.Job) error {
		handled.Add(1)
		return nil
	}

	if err := q.Start(context.Background(), handler); err != nil {
		t.Fatalf("Start: %v", err)
	}

	job := &jobs.ArchiveStatementJob{
		UserID:     "user-1",
		SourceFile: "statement.csv",
		ObjectName: "uploads/statement.csv",
	}
	if err := q.PublishArchiveStatement(context.Background(), job); err != nil {
		t.Fatalf("PublishArchiveStatement: %v", err)
	}

	if job.JobID == "" {
		t.Fatal("expected a job ID to be assigned on publish")
	}

	final := waitForStatus(t, store, job.JobID, jobs.JobStatusCompleted)
	if got := handled.Load(); got != 1 {
		t.Errorf("handler invoked %d times, want 1", got)
	}
	if final.CompletedAt == nil {
		t.Error("expected CompletedAt to be set")
	}
	if final.Error != "" {
		t.Errorf("unexpected error on completed job: %q", final.Error)
	}
}

func TestQueueRetriesFailedJob(t *testing.T) {
	store := NewStore()
	q := NewQueue(10, 1, store)
	defer q.Close()

	var attempts atomic.Int32
	handler := func(ctx context.Context, job jobs.Job) error {
		if attempts.Add(1) == 1 {
			return errors.New("transient failure")
		}
		return nil
	}

	if err := q.Start(context.Background(), handler); err != nil {
		t.Fatalf("Start: %v", err)
	}

	job := &jobs.ArchiveStatementJob{UserID: "user-1", MaxRetries: 2}
	if err := q.PublishArchiveStatement(context.Background(), job); err != nil {
		t.Fatalf("PublishArchiveStatement: %v", err)
	}

	final := waitForStatus(t, store, job.JobID, jobs.JobStatusCompleted)
	if got := attempts.Load(); got != 2 {
		t.Errorf("handler invoked %d times, want 2", got)
	}
	if final.RetryCount != 1 {
		t.Errorf("RetryCount = %d, want 1", final.RetryCount)
	}
}

func TestQueueExhaustsRetries(t *testing.T) {
	store := NewStore()
	q := NewQueue(10, 1, store)
	defer q.Close()

	handler := func(ctx context.Context, job jobs.Job) error {
		return errors.New("permanent failure")
	}

	if err := q.Start(context.Background(), handler); err != nil {
		t.Fatalf("Start: %v", err)
	}

	job := &jobs.ArchiveStatementJob{UserID: "user-1", MaxRetries: 1}
	if err := q.PublishArchiveStatement(context.Background(), job); err != nil {
		t.Fatalf("PublishArchiveStatement: %v", err)
	}

	final := waitForStatus(t, store, job.JobID, jobs.JobStatusFailed)
	if final.Error == "" {
		t.Error("expected the failure reason to be recorded")
	}
}

func TestQueuePublishAfterClose(t *testing.T) {
	q := NewQueue(1, 1, nil)
	if err := q.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	err := q.PublishArchiveStatement(context.Background(), &jobs.ArchiveStatementJob{UserID: "user-1"})
	if err == nil {
		t.Fatal("expected publish on closed queue to fail")
	}
}

func TestStoreListJobsFilters(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	base := time.Now()
	seed := []*jobs.ArchiveStatementJob{
		{JobID: "a", UserID: "u1", Status: jobs.JobStatusCompleted, CreatedAt: base.Add(-3 * time.Minute)},
		{JobID: "b", UserID: "u1", Status: jobs.JobStatusFailed, CreatedAt: base.Add(-2 * time.Minute)},
		{JobID: "c", UserID: "u2", Status: jobs.JobStatusCompleted, CreatedAt: base.Add(-1 * time.Minute)},
	}
	for _, j := range seed {
		if err := store.SaveJob(ctx, j); err != nil {
			t.Fatalf("SaveJob(%s): %v", j.JobID, err)
		}
	}

	got, err := store.ListJobs(ctx, jobs.JobFilter{UserID: "u1"})
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ListJobs(u1) returned %d jobs, want 2", len(got))
	}
	if got[0].JobID != "b" || got[1].JobID != "a" {
		t.Errorf("expected newest-first order [b a], got [%s %s]", got[0].JobID, got[1].JobID)
	}

	got, err = store.ListJobs(ctx, jobs.JobFilter{Status: jobs.JobStatusCompleted})
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ListJobs(completed) returned %d jobs, want 2", len(got))
	}

	got, err = store.ListJobs(ctx, jobs.JobFilter{Limit: 1})
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(got) != 1 || got[0].JobID != "c" {
		t.Errorf("ListJobs(limit=1) should return only the newest job")
	}
}

func TestStoreCopiesOnSaveAndGet(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	job := &jobs.ArchiveStatementJob{JobID: "x", Status: jobs.JobStatusPending}
	if err := store.SaveJob(ctx, job); err != nil {
		t.Fatalf("SaveJob: %v", err)
	}

	job.Status = jobs.JobStatusFailed

	stored, err := store.GetJob(ctx, "x")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if stored.Status != jobs.JobStatusPending {
		t.Errorf("stored job mutated by caller change: status %s", stored.Status)
	}

	stored.Status = jobs.JobStatusRunning
	again, err := store.GetJob(ctx, "x")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if again.Status != jobs.JobStatusPending {
		t.Errorf("stored job mutated by returned copy change: status %s", again.Status)
	}
}
