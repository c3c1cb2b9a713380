package orders

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/ksred/intake-api/internal/sequencer"
	"github.com/ksred/intake-api/internal/types"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

var (
	// ErrOrderNotFound means the sequence number was never assigned.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOverfill means the execution would drive the remaining
	// quantity below zero. The order is left untouched.
	ErrOverfill = errors.New("execution exceeds remaining quantity")
)

// Repository wraps the sequencer store and owns the post-insert mutable
// state: remaining quantity and the execution history.
type Repository struct {
	store *sequencer.Store
	db    *gorm.DB
}

func NewRepository(store *sequencer.Store) *Repository {
	return &Repository{
		store: store,
		db:    store.DB(),
	}
}

// Sequence assigns a sequence number and durably records the order.
func (r *Repository) Sequence(ctx context.Context, order *types.Order) (uint64, error) {
	return r.store.AssignAndPersist(ctx, order)
}

// Get retrieves an order by its sequence number.
func (r *Repository) Get(ctx context.Context, secnum uint64) (*types.Order, error) {
	var order types.Order
	if err := r.db.WithContext(ctx).First(&order, "sequence_number = ?", secnum).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return &order, nil
}

// ApplyExecution decrements the order's remaining quantity and records
// the execution, atomically. The conditional update serializes against
// concurrent applications on the same order: the decrement only lands if
// enough quantity remains at commit time.
//
// When the report carries an execution id that was already applied, the
// current order state is returned with a nil execution and nothing is
// decremented. Reports without an id get a generated one and are applied
// unconditionally.
func (r *Repository) ApplyExecution(ctx context.Context, secnum uint64, quantity int64, executionID string) (*types.Order, *types.Execution, error) {
	logger := log.With().
		Uint64("secnum", secnum).
		Int64("quantity", quantity).
		Logger()

	dedup := executionID != ""
	if !dedup {
		executionID = uuid.New().String()
	}

	var order types.Order
	var recorded *types.Execution

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if dedup {
			var existing types.Execution
			lookupErr := tx.First(&existing, "execution_id = ?", executionID).Error
			if lookupErr == nil {
				logger.Info().
					Str("execution_id", executionID).
					Msg("duplicate execution report, not reapplied")
				return tx.First(&order, "sequence_number = ?", secnum).Error
			}
			if !errors.Is(lookupErr, gorm.ErrRecordNotFound) {
				return lookupErr
			}
		}

		res := tx.Model(&types.Order{}).
			Where("sequence_number = ? AND quantity_remaining >= ?", secnum, quantity).
			Updates(map[string]interface{}{
				"quantity_remaining": gorm.Expr("quantity_remaining - ?", quantity),
				"updated_at":         time.Now(),
			})
		if res.Error != nil {
			return res.Error
		}

		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&types.Order{}).Where("sequence_number = ?", secnum).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return ErrOrderNotFound
			}
			return ErrOverfill
		}

		execution := types.Execution{
			ExecutionID:      executionID,
			SequenceNumber:   secnum,
			QuantityExecuted: quantity,
			CreatedAt:        time.Now(),
		}
		if err := tx.Create(&execution).Error; err != nil {
			return err
		}

		recorded = &execution
		return tx.First(&order, "sequence_number = ?", secnum).Error
	})
	if err != nil {
		return nil, nil, err
	}

	if recorded != nil {
		logger.Info().
			Str("execution_id", executionID).
			Int64("quantity_remaining", order.QuantityRemaining).
			Bool("filled", order.Filled()).
			Msg("execution applied")
	}

	return &order, recorded, nil
}

// Executions returns the recorded execution history for an order.
func (r *Repository) Executions(ctx context.Context, secnum uint64) ([]types.Execution, error) {
	var executions []types.Execution
	err := r.db.WithContext(ctx).
		Where("sequence_number = ?", secnum).
		Order("id asc").
		Find(&executions).Error
	return executions, err
}
