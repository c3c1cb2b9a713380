package relay

import (
	"context"

	"github.com/ksred/intake-api/internal/dispatch"
	"github.com/ksred/intake-api/internal/orders"
	"github.com/ksred/intake-api/internal/types"
	"github.com/rs/zerolog/log"
)

// Service relays execution reports from the matching engine to the
// market-data publisher. The relay is not a sequencing authority: it
// trusts the engine's fill identity and quantity, applies the fill to
// the order record, and only then forwards a copy. A fill the repository
// rejects is never forwarded, since publishing a record-inconsistent
// execution would corrupt downstream market-data state.
type Service struct {
	repo *orders.Repository
	pool *dispatch.Pool
}

func NewService(repo *orders.Repository, pool *dispatch.Pool) *Service {
	return &Service{
		repo: repo,
		pool: pool,
	}
}

// HandleFill applies the report to the order record and, on success,
// queues the publisher forward. Repository failures (unknown order,
// overfill) surface to the caller and suppress forwarding. A duplicate
// report returns the current order state without forwarding again.
func (s *Service) HandleFill(ctx context.Context, report types.FillReport) (*types.Order, error) {
	logger := log.With().
		Uint64("secnum", report.SequenceNumber).
		Int64("quantity", report.Quantity).
		Str("service", "relay").
		Logger()

	order, execution, err := s.repo.ApplyExecution(ctx, report.SequenceNumber, report.Quantity, report.ExecutionID)
	if err != nil {
		logger.Warn().Err(err).Msg("execution report rejected, not forwarded")
		return nil, err
	}

	if execution == nil {
		// Already applied and forwarded on first delivery.
		return order, nil
	}

	notice := types.ExecutionNotice{
		SequencedOrder:   order.Sequenced(),
		QuantityExecuted: execution.QuantityExecuted,
		ExecutionID:      execution.ExecutionID,
	}
	s.pool.EnqueueExecution(notice)

	logger.Info().
		Str("execution_id", execution.ExecutionID).
		Bool("filled", order.Filled()).
		Msg("execution relayed")

	return order, nil
}
