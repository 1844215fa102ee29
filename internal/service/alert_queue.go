package service

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// StallQueue carries stall alerts from the scanner to the alert workers.
type StallQueue interface {
	Enqueue(ctx context.Context, executionID string, severity int) error
	ClaimBlocking(ctx context.Context, timeout time.Duration) (string, error)
	Ack(ctx context.Context, executionID string) error
	RequeueStale(ctx context.Context, maxPerLane int64) (int64, error)
}

// Alert severities. High means the execution sat idle for at least twice
// the stall threshold; those drain first.
const (
	SeverityNormal = 0
	SeverityHigh   = 1
)

type Lane struct {
	QueueKey      string
	ProcessingKey string
}

// redisStallQueue implements a reliable queue with severity lanes using
// Redis lists.
// Claim: BRPOPLPUSH lane.queue -> lane.processing
// Ack:   LREM from the correct processing list (stored in processingMapKey hash)
// A reaper moves entries from processing back to queue when a worker dies:
// at-least-once delivery.
type redisStallQueue struct {
	rdb              *redis.Client
	processingMapKey string

	normal Lane
	high   Lane
}

func NewRedisStallQueue(rdb *redis.Client, processingMapKey string, normal, high Lane) StallQueue {
	return &redisStallQueue{
		rdb:              rdb,
		processingMapKey: processingMapKey,
		normal:           normal,
		high:             high,
	}
}

func clampSeverity(s int) int {
	if s < SeverityNormal {
		return SeverityNormal
	}
	if s > SeverityHigh {
		return SeverityHigh
	}
	return s
}

func (q *redisStallQueue) laneBySeverity(s int) Lane {
	if clampSeverity(s) == SeverityHigh {
		return q.high
	}
	return q.normal
}

func (q *redisStallQueue) Enqueue(ctx context.Context, executionID string, severity int) error {
	ln := q.laneBySeverity(severity)
	return q.rdb.LPush(ctx, ln.QueueKey, executionID).Err()
}

// ClaimBlocking tries high->normal with small blocking slots, so it is
// "mostly blocking" but still drains the worst stalls first.
func (q *redisStallQueue) ClaimBlocking(ctx context.Context, timeout time.Duration) (string, error) {
	// if timeout <= 0, loop forever (like a worker daemon)
	forever := timeout <= 0
	deadline := time.Now().Add(timeout)

	slot := 1 * time.Second
	if !forever && timeout < slot {
		slot = timeout
	}

	for {
		if !forever && time.Now().After(deadline) {
			return "", redis.Nil
		}

		for _, ln := range []Lane{q.high, q.normal} {
			wait := slot
			if !forever {
				remain := time.Until(deadline)
				if remain <= 0 {
					return "", redis.Nil
				}
				if remain < wait {
					wait = remain
				}
			}

			id, err := q.rdb.BRPopLPush(ctx, ln.QueueKey, ln.ProcessingKey, wait).Result()
			if err == nil {
				// remember which processing list holds this id (for Ack)
				if hErr := q.rdb.HSet(ctx, q.processingMapKey, id, ln.ProcessingKey).Err(); hErr != nil {
					// can't safely ack later => return error
					return "", hErr
				}
				return id, nil
			}

			if errors.Is(err, redis.Nil) {
				// nothing in this lane during the wait slot
				continue
			}
			return "", err
		}
	}
}

func (q *redisStallQueue) Ack(ctx context.Context, executionID string) error {
	processingKey, err := q.rdb.HGet(ctx, q.processingMapKey, executionID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			// mapping is missing (old entries or manual surgery), try all lanes
			_ = q.rdb.LRem(ctx, q.high.ProcessingKey, 1, executionID).Err()
			_ = q.rdb.LRem(ctx, q.normal.ProcessingKey, 1, executionID).Err()
			return nil
		}
		return err
	}

	if err := q.rdb.LRem(ctx, processingKey, 1, executionID).Err(); err != nil {
		return err
	}
	_ = q.rdb.HDel(ctx, q.processingMapKey, executionID).Err()
	return nil
}

// RequeueStale moves items from processing back to queue per lane.
func (q *redisStallQueue) RequeueStale(ctx context.Context, maxPerLane int64) (int64, error) {
	var moved int64

	for _, ln := range []Lane{q.high, q.normal} {
		for i := int64(0); i < maxPerLane; i++ {
			id, err := q.rdb.RPopLPush(ctx, ln.ProcessingKey, ln.QueueKey).Result()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					break
				}
				return moved, err
			}
			if id != "" {
				moved++
				_ = q.rdb.HDel(ctx, q.processingMapKey, id).Err()
			}
		}
	}

	return moved, nil
}
