package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/ksred/intake-api/internal/types"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Result is the observable outcome of one delivery attempt to one
// target.
type Result struct {
	Target  string
	Err     error
	Latency time.Duration
}

// Delivered reports whether the target acknowledged receipt.
func (r Result) Delivered() bool {
	return r.Err == nil
}

// Dispatcher delivers sequenced orders and execution notices to the
// downstream targets. Targets are independent: each gets its own
// delivery attempt with its own timeout, and one target's failure never
// blocks or fails another's delivery.
type Dispatcher struct {
	router *Router
	client *Client
	db     *gorm.DB
}

// NewDispatcher creates a dispatcher. db may be nil, in which case
// delivery outcomes are logged and counted but not persisted.
func NewDispatcher(router *Router, client *Client, db *gorm.DB) *Dispatcher {
	return &Dispatcher{
		router: router,
		client: client,
		db:     db,
	}
}

type delivery struct {
	endpoint Endpoint
	path     string
	// routeErr short-circuits the attempt when endpoint resolution
	// already failed for this target.
	routeErr error
}

// DispatchOrder delivers a sequenced order to the matching engine and
// the market-data publisher concurrently. Both attempts are always made;
// the returned results are in target order (engine first).
func (d *Dispatcher) DispatchOrder(ctx context.Context, order *types.Order) []Result {
	payload := order.Sequenced()

	engine, routeErr := d.router.EngineFor(order.Symbol)
	deliveries := []delivery{
		{endpoint: engine, path: "/order", routeErr: routeErr},
		{endpoint: d.router.Publisher(), path: "/order"},
	}

	results := make([]Result, len(deliveries))
	var wg sync.WaitGroup
	for i, del := range deliveries {
		wg.Add(1)
		go func(i int, del delivery) {
			defer wg.Done()
			results[i] = d.deliver(ctx, del, order.SequenceNumber, types.DispatchKindOrder, payload)
		}(i, del)
	}
	wg.Wait()

	return results
}

// ForwardExecution delivers an applied fill to the market-data
// publisher, best effort.
func (d *Dispatcher) ForwardExecution(ctx context.Context, notice types.ExecutionNotice) Result {
	del := delivery{endpoint: d.router.Publisher(), path: "/executions"}
	return d.deliver(ctx, del, notice.SequenceNumber, types.DispatchKindExecution, notice)
}

func (d *Dispatcher) deliver(ctx context.Context, del delivery, secnum uint64, kind string, payload interface{}) Result {
	logger := log.With().
		Uint64("secnum", secnum).
		Str("target", del.endpoint.Name).
		Str("kind", kind).
		Logger()

	start := time.Now()
	err := del.routeErr
	if err == nil {
		err = d.client.Post(ctx, del.endpoint, del.path, payload)
	}
	latency := time.Since(start)

	result := Result{
		Target:  del.endpoint.Name,
		Err:     err,
		Latency: latency,
	}

	status := types.DispatchDelivered
	if err != nil {
		status = types.DispatchFailed
		logger.Warn().
			Err(err).
			Dur("latency", latency).
			Msg("delivery failed")
	} else {
		logger.Debug().
			Dur("latency", latency).
			Msg("delivery acknowledged")
	}

	dispatchTotal.WithLabelValues(del.endpoint.Name, kind, status).Inc()
	dispatchLatency.WithLabelValues(del.endpoint.Name).Observe(latency.Seconds())

	d.record(secnum, del.endpoint.Name, kind, status, err, latency)

	return result
}

func (d *Dispatcher) record(secnum uint64, target, kind, status string, err error, latency time.Duration) {
	if d.db == nil {
		return
	}

	record := types.DispatchRecord{
		SequenceNumber: secnum,
		Target:         target,
		Kind:           kind,
		Status:         status,
		LatencyMS:      latency.Milliseconds(),
		CreatedAt:      time.Now(),
	}
	if err != nil {
		record.Error = err.Error()
	}

	if dbErr := d.db.Create(&record).Error; dbErr != nil {
		log.Error().Err(dbErr).
			Uint64("secnum", secnum).
			Str("target", target).
			Msg("failed to persist dispatch record")
	}
}
