package dispatch

import (
	"context"

	"github.com/ksred/intake-api/internal/types"
	"github.com/rs/zerolog/log"
)

// job is one unit of fan-out work: a sequenced order to both targets, or
// an execution notice to the publisher.
type job struct {
	order  *types.Order
	notice *types.ExecutionNotice
}

// Pool runs fan-out off the request path. Submissions are acknowledged
// once durably sequenced; workers pick up the delivery afterwards.
// Enqueueing never blocks: when the queue is full the job is dropped and
// counted, which is within the best-effort delivery contract.
type Pool struct {
	dispatcher *Dispatcher
	jobs       chan job
	workers    int
}

func NewPool(dispatcher *Dispatcher, workers, queueSize int) *Pool {
	return &Pool{
		dispatcher: dispatcher,
		jobs:       make(chan job, queueSize),
		workers:    workers,
	}
}

// Start launches the worker goroutines. They drain the queue until the
// context is cancelled; in-flight deliveries are abandoned on shutdown.
func (p *Pool) Start(ctx context.Context) {
	logger := log.With().Str("component", "dispatch_pool").Logger()
	logger.Info().Int("workers", p.workers).Msg("starting dispatch pool")

	for i := 0; i < p.workers; i++ {
		go p.worker(ctx)
	}
}

func (p *Pool) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-p.jobs:
			if j.order != nil {
				p.dispatcher.DispatchOrder(ctx, j.order)
			}
			if j.notice != nil {
				p.dispatcher.ForwardExecution(ctx, *j.notice)
			}
		}
	}
}

// EnqueueOrder queues fan-out of a newly sequenced order. Returns false
// if the queue was full and the job dropped.
func (p *Pool) EnqueueOrder(order *types.Order) bool {
	select {
	case p.jobs <- job{order: order}:
		return true
	default:
		queueDropped.Inc()
		log.Warn().
			Uint64("secnum", order.SequenceNumber).
			Msg("dispatch queue full, order fan-out dropped")
		return false
	}
}

// EnqueueExecution queues forwarding of an applied fill to the
// publisher. Returns false if the queue was full and the job dropped.
func (p *Pool) EnqueueExecution(notice types.ExecutionNotice) bool {
	select {
	case p.jobs <- job{notice: &notice}:
		return true
	default:
		queueDropped.Inc()
		log.Warn().
			Uint64("secnum", notice.SequenceNumber).
			Msg("dispatch queue full, execution forward dropped")
		return false
	}
}
