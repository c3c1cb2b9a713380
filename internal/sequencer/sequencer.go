package sequencer

import (
	"context"
	"errors"
	"fmt"

	"github.com/ksred/intake-api/internal/types"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// ErrStoreUnavailable wraps any insert failure. Nothing was persisted
// and the caller may retry the submission.
var ErrStoreUnavailable = errors.New("sequencer store unavailable")

// Store is the sequencing authority: a single atomic insert durably
// records the order and yields its sequence number. The number is the
// sqlite AUTOINCREMENT primary key, so it is unique, strictly
// increasing, and never reassigned even across restarts. Concurrent
// inserts are serialized by the single-writer connection; their relative
// order is whatever the writer commits, consistent for every reader.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// AssignAndPersist records the order and returns its assigned sequence
// number. Either the row is durable and a number is returned, or nothing
// was written and the error is retryable.
func (s *Store) AssignAndPersist(ctx context.Context, order *types.Order) (uint64, error) {
	if err := s.db.WithContext(ctx).Create(order).Error; err != nil {
		log.Error().Err(err).
			Str("symbol", order.Symbol).
			Int64("quantity", order.Quantity).
			Msg("order insert failed, nothing persisted")
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	log.Debug().
		Uint64("secnum", order.SequenceNumber).
		Str("symbol", order.Symbol).
		Msg("order sequenced")

	return order.SequenceNumber, nil
}

// IsRetryable reports whether the submission may be retried by the
// caller without risking a duplicate record.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}

// DB exposes the underlying connection for components layered on the
// same store.
func (s *Store) DB() *gorm.DB {
	return s.db
}
