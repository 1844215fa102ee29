package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"install-pulse-service/internal/service"
)

type Pool struct {
	queue      service.StallQueue
	processor  *Processor
	workers    int
	claimDelay time.Duration
	logger     *zap.Logger
}

func NewPool(queue service.StallQueue, processor *Processor, workers int, logger *zap.Logger) *Pool {
	if workers <= 0 {
		workers = 4
	}
	return &Pool{
		queue:      queue,
		processor:  processor,
		workers:    workers,
		claimDelay: 5 * time.Second,
		logger:     logger,
	}
}

func (p *Pool) Run(ctx context.Context) {
	p.logger.Info("alert worker pool started", zap.Int("workers", p.workers))

	idCh := make(chan string)

	for i := 0; i < p.workers; i++ {
		go func(n int) {
			for executionID := range idCh {
				if err := p.processor.Process(ctx, executionID); err != nil {
					p.logger.Error("process stall alert",
						zap.Int("worker", n),
						zap.String("execution_id", executionID),
						zap.Error(err),
					)
				}

				// Ack regardless: the alert row is written (or the entry was
				// obsolete). If Process died before writing, the reaper puts
				// the id back.
				if ackErr := p.queue.Ack(ctx, executionID); ackErr != nil {
					p.logger.Error("ack stall alert",
						zap.Int("worker", n),
						zap.String("execution_id", executionID),
						zap.Error(ackErr),
					)
				}
			}
		}(i + 1)
	}

	// Listener: atomically claim from queue -> processing
	for {
		select {
		case <-ctx.Done():
			close(idCh)
			p.logger.Info("alert worker pool stopped")
			return
		default:
			executionID, err := p.queue.ClaimBlocking(ctx, p.claimDelay)
			if err != nil {
				// timeout, redis.Nil or ctx cancel, not fatal
				continue
			}
			select {
			case idCh <- executionID:
			case <-ctx.Done():
				close(idCh)
				return
			}
		}
	}
}
