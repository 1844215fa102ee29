package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"install-pulse-service/internal/service"
)

func newTestQueue(t *testing.T) (service.StallQueue, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	q := service.NewRedisStallQueue(
		rdb,
		"alerts:processing:map",
		service.Lane{QueueKey: "alerts:queue:normal", ProcessingKey: "alerts:processing:normal"},
		service.Lane{QueueKey: "alerts:queue:high", ProcessingKey: "alerts:processing:high"},
	)
	return q, mr
}

func TestStallQueue_HighSeverityClaimedFirst(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(t)

	if err := q.Enqueue(ctx, "normal-1", service.SeverityNormal); err != nil {
		t.Fatalf("enqueue normal: %v", err)
	}
	if err := q.Enqueue(ctx, "high-1", service.SeverityHigh); err != nil {
		t.Fatalf("enqueue high: %v", err)
	}

	id, err := q.ClaimBlocking(ctx, 2*time.Second)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if id != "high-1" {
		t.Fatalf("expected high lane drained first, got %q", id)
	}

	id, err = q.ClaimBlocking(ctx, 2*time.Second)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if id != "normal-1" {
		t.Fatalf("expected normal-1 next, got %q", id)
	}
}

func TestStallQueue_AckRemovesFromProcessing(t *testing.T) {
	ctx := context.Background()
	q, mr := newTestQueue(t)

	if err := q.Enqueue(ctx, "exec-1", service.SeverityNormal); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, err := q.ClaimBlocking(ctx, 2*time.Second); err != nil {
		t.Fatalf("claim: %v", err)
	}

	if procLen := listLen(t, mr, "alerts:processing:normal"); procLen != 1 {
		t.Fatalf("expected 1 item in processing after claim, got %d", procLen)
	}

	if err := q.Ack(ctx, "exec-1"); err != nil {
		t.Fatalf("ack: %v", err)
	}
	if procLen := listLen(t, mr, "alerts:processing:normal"); procLen != 0 {
		t.Fatalf("expected processing empty after ack, got %d", procLen)
	}
}

func TestStallQueue_RequeueStaleReturnsToQueue(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(t)

	if err := q.Enqueue(ctx, "exec-1", service.SeverityHigh); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, err := q.ClaimBlocking(ctx, 2*time.Second); err != nil {
		t.Fatalf("claim: %v", err)
	}
	// worker dies here without ack

	moved, err := q.RequeueStale(ctx, 10)
	if err != nil {
		t.Fatalf("requeue: %v", err)
	}
	if moved != 1 {
		t.Fatalf("expected 1 requeued item, got %d", moved)
	}

	id, err := q.ClaimBlocking(ctx, 2*time.Second)
	if err != nil {
		t.Fatalf("claim after requeue: %v", err)
	}
	if id != "exec-1" {
		t.Fatalf("expected exec-1 back on the queue, got %q", id)
	}
}

func TestStallQueue_SeverityClamped(t *testing.T) {
	ctx := context.Background()
	q, mr := newTestQueue(t)

	if err := q.Enqueue(ctx, "exec-1", 99); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if qLen := listLen(t, mr, "alerts:queue:high"); qLen != 1 {
		t.Fatalf("severity above high must land in the high lane")
	}
}

func listLen(t *testing.T, mr *miniredis.Miniredis, key string) int {
	t.Helper()
	if !mr.Exists(key) {
		return 0
	}
	items, err := mr.List(key)
	if err != nil {
		t.Fatalf("list %s: %v", key, err)
	}
	return len(items)
}
