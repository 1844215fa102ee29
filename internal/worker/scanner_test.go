package worker_test

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"install-pulse-service/internal/service"
	"install-pulse-service/internal/worker"
)

type captureQueue struct {
	ids        []string
	severities []int
}

func (q *captureQueue) Enqueue(ctx context.Context, executionID string, severity int) error {
	q.ids = append(q.ids, executionID)
	q.severities = append(q.severities, severity)
	return nil
}

func (q *captureQueue) ClaimBlocking(ctx context.Context, timeout time.Duration) (string, error) {
	return "", context.Canceled
}
func (q *captureQueue) Ack(ctx context.Context, executionID string) error { return nil }
func (q *captureQueue) RequeueStale(ctx context.Context, maxPerLane int64) (int64, error) {
	return 0, nil
}

func TestSweep_EnqueuesOnlyNewlyStalled(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource()
	alerts := newFakeAlerts()
	queue := &captureQueue{}

	stalled := seedActive(src, 4*time.Hour)
	alreadyAlerted := seedActive(src, 8*time.Hour)
	alerts.alerted[alreadyAlerted.ID] = struct{}{}
	seedActive(src, 30*time.Minute) // fresh, ignored

	s := worker.NewScanner(src, alerts, queue, zap.NewNop(), 3, time.Minute).WithClock(clock(fixedNow))

	enqueued, err := s.Sweep(ctx)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if enqueued != 1 {
		t.Fatalf("expected 1 enqueued, got %d", enqueued)
	}
	if len(queue.ids) != 1 || queue.ids[0] != stalled.ID.String() {
		t.Fatalf("wrong executions enqueued: %v", queue.ids)
	}
	if queue.severities[0] != service.SeverityNormal {
		t.Fatalf("4h stall at 3h threshold is normal severity, got %d", queue.severities[0])
	}
}

func TestSweep_HighSeverityForDoubleThreshold(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource()
	queue := &captureQueue{}

	seedActive(src, 7*time.Hour)

	s := worker.NewScanner(src, newFakeAlerts(), queue, zap.NewNop(), 3, time.Minute).WithClock(clock(fixedNow))

	if _, err := s.Sweep(ctx); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(queue.severities) != 1 || queue.severities[0] != service.SeverityHigh {
		t.Fatalf("expected high severity, got %v", queue.severities)
	}
}

func TestSweep_ClearsRecoveredAlerts(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource()
	alerts := newFakeAlerts()
	queue := &captureQueue{}

	recovered := seedActive(src, 30*time.Minute)
	alerts.alerted[recovered.ID] = struct{}{}

	s := worker.NewScanner(src, alerts, queue, zap.NewNop(), 3, time.Minute).WithClock(clock(fixedNow))

	if _, err := s.Sweep(ctx); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(queue.ids) != 0 {
		t.Fatalf("nothing should be enqueued")
	}
	if len(alerts.cleared) != 1 || alerts.cleared[0] != recovered.ID {
		t.Fatalf("recovered execution's alert must be cleared, got %v", alerts.cleared)
	}
}
