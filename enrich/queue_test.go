package enrich

import (
	"context"
	"testing"
	"time"

	"github.com/hazyhaar/courrier/dbopen"
	"github.com/hazyhaar/courrier/idgen"

	_ "modernc.org/sqlite"
)

func newTestQueue(t *testing.T, opts QueueOptions) *Queue {
	t.Helper()
	db := dbopen.OpenMemory(t)
	q := NewQueue(db, opts)
	if err := q.EnsureTable(context.Background()); err != nil {
		t.Fatalf("ensure table: %v", err)
	}
	return q
}

func TestQueue_PublishClaimAck(t *testing.T) {
	// WHAT: a published job is claimable exactly once within the visibility
	// window and disappears after ack.
	q := newTestQueue(t, QueueOptions{Visibility: time.Minute})
	ctx := context.Background()

	job := &Job{
		ID: idgen.Prefixed("job_", idgen.Default)(), AccountID: "acc",
		DocumentID: "doc_1", URL: "https://x.example/post",
		Source: SourceFeedpoll, JobType: JobContentEnrichment,
	}
	if err := q.Publish(ctx, job); err != nil {
		t.Fatalf("publish: %v", err)
	}

	claimed, err := q.Claim(ctx)
	if err != nil || claimed == nil {
		t.Fatalf("claim: %+v err=%v", claimed, err)
	}
	if claimed.DocumentID != "doc_1" || claimed.Attempt != 1 {
		t.Fatalf("claimed = %+v", claimed)
	}

	// Still inside the visibility window: invisible.
	again, err := q.Claim(ctx)
	if err != nil || again != nil {
		t.Fatalf("claimed job should be invisible, got %+v err=%v", again, err)
	}

	if err := q.Ack(ctx, claimed.ID); err != nil {
		t.Fatalf("ack: %v", err)
	}
	n, err := q.Len(ctx)
	if err != nil || n != 0 {
		t.Fatalf("len = %d err=%v, want 0", n, err)
	}
}

func TestQueue_NackRedelivers(t *testing.T) {
	// WHAT: a nacked job becomes visible again with a bumped attempt count.
	// WHY: redelivery is the retry mechanism for transient backend failures.
	q := newTestQueue(t, QueueOptions{Visibility: time.Minute})
	ctx := context.Background()

	if err := q.Publish(ctx, &Job{ID: "j1", DocumentID: "d1", JobType: JobImageCache}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	first, err := q.Claim(ctx)
	if err != nil || first == nil {
		t.Fatalf("claim: %v", err)
	}
	if err := q.Nack(ctx, first.ID); err != nil {
		t.Fatalf("nack: %v", err)
	}

	second, err := q.Claim(ctx)
	if err != nil || second == nil {
		t.Fatalf("reclaim after nack: %v", err)
	}
	if second.Attempt != 2 {
		t.Fatalf("attempt = %d, want 2", second.Attempt)
	}
}

func TestQueue_VisibilityTimeout(t *testing.T) {
	// WHAT: a claimed job reappears after the visibility window elapses, so
	// a crashed consumer never loses work.
	q := newTestQueue(t, QueueOptions{Visibility: 20 * time.Millisecond})
	ctx := context.Background()

	if err := q.Publish(ctx, &Job{ID: "j1", DocumentID: "d1"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if _, err := q.Claim(ctx); err != nil {
		t.Fatalf("claim: %v", err)
	}

	time.Sleep(30 * time.Millisecond)

	reclaimed, err := q.Claim(ctx)
	if err != nil || reclaimed == nil {
		t.Fatalf("job should reappear after timeout: %+v err=%v", reclaimed, err)
	}
}

func TestQueue_ClaimOrderOldestFirst(t *testing.T) {
	// WHAT: claims return the oldest visible job first.
	q := newTestQueue(t, QueueOptions{Visibility: time.Minute})
	ctx := context.Background()

	for _, id := range []string{"a", "b"} {
		if err := q.Publish(ctx, &Job{ID: id, DocumentID: id}); err != nil {
			t.Fatalf("publish %s: %v", id, err)
		}
		time.Sleep(2 * time.Millisecond) // distinct visible_at ordering
	}

	first, err := q.Claim(ctx)
	if err != nil || first == nil || first.ID != "a" {
		t.Fatalf("first claim = %+v err=%v, want a", first, err)
	}
}
