package orders_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ksred/intake-api/internal/database"
	"github.com/ksred/intake-api/internal/orders"
	"github.com/ksred/intake-api/internal/sequencer"
	"github.com/ksred/intake-api/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepository(t *testing.T) *orders.Repository {
	t.Helper()
	db, err := database.NewDatabase(":memory:")
	require.NoError(t, err)
	return orders.NewRepository(sequencer.NewStore(db))
}

func sequenceOrder(t *testing.T, repo *orders.Repository, symbol string, quantity int64) uint64 {
	t.Helper()
	secnum, err := repo.Sequence(context.Background(), &types.Order{
		UserID:            7,
		TimestampNS:       time.Now().UnixNano(),
		Price:             101.25,
		Symbol:            symbol,
		Quantity:          quantity,
		OrderType:         "LIMIT",
		TraderType:        "RETAIL",
		QuantityRemaining: quantity,
	})
	require.NoError(t, err)
	return secnum
}

func TestGet(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	secnum := sequenceOrder(t, repo, "AAPL", 50)

	t.Run("returns a sequenced order", func(t *testing.T) {
		order, err := repo.Get(ctx, secnum)
		require.NoError(t, err)
		assert.Equal(t, secnum, order.SequenceNumber)
		assert.Equal(t, "AAPL", order.Symbol)
	})

	t.Run("unknown sequence number", func(t *testing.T) {
		_, err := repo.Get(ctx, 999999)
		assert.ErrorIs(t, err, orders.ErrOrderNotFound)
	})
}

func TestApplyExecutionRoundTrip(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	secnum := sequenceOrder(t, repo, "AAPL", 100)

	order, execution, err := repo.ApplyExecution(ctx, secnum, 40, "")
	require.NoError(t, err)
	require.NotNil(t, execution)
	assert.Equal(t, int64(60), order.QuantityRemaining)
	assert.False(t, order.Filled())

	order, execution, err = repo.ApplyExecution(ctx, secnum, 60, "")
	require.NoError(t, err)
	require.NotNil(t, execution)
	assert.Equal(t, int64(0), order.QuantityRemaining)
	assert.True(t, order.Filled())

	history, err := repo.Executions(ctx, secnum)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, int64(40), history[0].QuantityExecuted)
	assert.Equal(t, int64(60), history[1].QuantityExecuted)
}

func TestApplyExecutionOverfill(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	secnum := sequenceOrder(t, repo, "AAPL", 10)

	_, _, err := repo.ApplyExecution(ctx, secnum, 15, "")
	assert.ErrorIs(t, err, orders.ErrOverfill)

	// Rejection leaves the order untouched and records nothing.
	order, err := repo.Get(ctx, secnum)
	require.NoError(t, err)
	assert.Equal(t, int64(10), order.QuantityRemaining)

	history, err := repo.Executions(ctx, secnum)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestApplyExecutionUnknownOrder(t *testing.T) {
	repo := newTestRepository(t)

	_, _, err := repo.ApplyExecution(context.Background(), 999999, 5, "")
	assert.ErrorIs(t, err, orders.ErrOrderNotFound)
}

func TestApplyExecutionDeduplication(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	secnum := sequenceOrder(t, repo, "AAPL", 100)

	order, execution, err := repo.ApplyExecution(ctx, secnum, 40, "ENG-FILL-1")
	require.NoError(t, err)
	require.NotNil(t, execution)
	assert.Equal(t, int64(60), order.QuantityRemaining)

	// Same report delivered again: no second decrement.
	order, execution, err = repo.ApplyExecution(ctx, secnum, 40, "ENG-FILL-1")
	require.NoError(t, err)
	assert.Nil(t, execution)
	assert.Equal(t, int64(60), order.QuantityRemaining)

	history, err := repo.Executions(ctx, secnum)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestConcurrentApplyExecution(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	secnum := sequenceOrder(t, repo, "AAPL", 100)

	// Ten concurrent fills of 10 must land exactly once each.
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := repo.ApplyExecution(ctx, secnum, 10, "")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	order, err := repo.Get(ctx, secnum)
	require.NoError(t, err)
	assert.Equal(t, int64(0), order.QuantityRemaining)
	assert.True(t, order.Filled())

	history, err := repo.Executions(ctx, secnum)
	require.NoError(t, err)
	assert.Len(t, history, 10)
}
