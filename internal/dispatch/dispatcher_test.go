package dispatch_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ksred/intake-api/internal/database"
	"github.com/ksred/intake-api/internal/dispatch"
	"github.com/ksred/intake-api/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// capture records what a stub downstream target received.
type capture struct {
	mu         sync.Mutex
	orders     []types.SequencedOrder
	executions []types.ExecutionNotice
}

func (c *capture) orderCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.orders)
}

func (c *capture) executionCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.executions)
}

func newTargetServer(t *testing.T, c *capture) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/order", func(w http.ResponseWriter, r *http.Request) {
		var order types.SequencedOrder
		require.NoError(t, json.NewDecoder(r.Body).Decode(&order))
		c.mu.Lock()
		c.orders = append(c.orders, order)
		c.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/executions", func(w http.ResponseWriter, r *http.Request) {
		var notice types.ExecutionNotice
		require.NoError(t, json.NewDecoder(r.Body).Decode(&notice))
		c.mu.Lock()
		c.executions = append(c.executions, notice)
		c.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func testOrder() *types.Order {
	return &types.Order{
		SequenceNumber:    42,
		UserID:            7,
		TimestampNS:       time.Now().UnixNano(),
		Price:             101.25,
		Symbol:            "AAPL",
		Quantity:          50,
		OrderType:         "LIMIT",
		TraderType:        "RETAIL",
		QuantityRemaining: 50,
	}
}

func TestDispatchOrderDeliversToBothTargets(t *testing.T) {
	var engineSeen, publisherSeen capture
	engine := newTargetServer(t, &engineSeen)
	publisher := newTargetServer(t, &publisherSeen)

	router := dispatch.NewRouter(map[string]string{"AAPL": engine.URL}, "", publisher.URL)
	dispatcher := dispatch.NewDispatcher(router, dispatch.NewClient(time.Second), nil)

	results := dispatcher.DispatchOrder(context.Background(), testOrder())

	require.Len(t, results, 2)
	for _, result := range results {
		assert.True(t, result.Delivered(), "target %s: %v", result.Target, result.Err)
	}

	require.Equal(t, 1, engineSeen.orderCount())
	require.Equal(t, 1, publisherSeen.orderCount())

	// Both targets carry the same sequenced body; side is the order type.
	for _, seen := range []types.SequencedOrder{engineSeen.orders[0], publisherSeen.orders[0]} {
		assert.Equal(t, uint64(42), seen.SequenceNumber)
		assert.Equal(t, 101.25, seen.Price)
		assert.Equal(t, int64(50), seen.Quantity)
		assert.Equal(t, "AAPL", seen.Symbol)
		assert.Equal(t, "LIMIT", seen.Side)
	}
}

func TestFanOutIsolation(t *testing.T) {
	var publisherSeen capture
	publisher := newTargetServer(t, &publisherSeen)

	// Engine target points at a dead server.
	dead := httptest.NewServer(http.NotFoundHandler())
	dead.Close()

	router := dispatch.NewRouter(map[string]string{"AAPL": dead.URL}, "", publisher.URL)
	dispatcher := dispatch.NewDispatcher(router, dispatch.NewClient(time.Second), nil)

	results := dispatcher.DispatchOrder(context.Background(), testOrder())

	require.Len(t, results, 2)
	assert.Equal(t, dispatch.TargetEngine, results[0].Target)
	assert.False(t, results[0].Delivered())
	assert.Equal(t, dispatch.TargetPublisher, results[1].Target)
	assert.True(t, results[1].Delivered())

	assert.Equal(t, 1, publisherSeen.orderCount())
}

func TestNoRouteIsTargetLevelFailure(t *testing.T) {
	var publisherSeen capture
	publisher := newTargetServer(t, &publisherSeen)

	router := dispatch.NewRouter(nil, "", publisher.URL)
	dispatcher := dispatch.NewDispatcher(router, dispatch.NewClient(time.Second), nil)

	results := dispatcher.DispatchOrder(context.Background(), testOrder())

	require.Len(t, results, 2)
	assert.ErrorIs(t, results[0].Err, dispatch.ErrNoRoute)
	assert.True(t, results[1].Delivered())
	assert.Equal(t, 1, publisherSeen.orderCount())
}

func TestSlowTargetDoesNotInflateFanOut(t *testing.T) {
	var publisherSeen capture
	publisher := newTargetServer(t, &publisherSeen)

	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(slow.Close)

	router := dispatch.NewRouter(map[string]string{"AAPL": slow.URL}, "", publisher.URL)
	dispatcher := dispatch.NewDispatcher(router, dispatch.NewClient(200*time.Millisecond), nil)

	start := time.Now()
	results := dispatcher.DispatchOrder(context.Background(), testOrder())
	elapsed := time.Since(start)

	// The slow engine is abandoned at its own timeout; the publisher is
	// unaffected and the fan-out never waits out the full 2s sleep.
	assert.False(t, results[0].Delivered())
	assert.True(t, results[1].Delivered())
	assert.Less(t, elapsed, 1500*time.Millisecond)
	assert.Equal(t, 1, publisherSeen.orderCount())
}

func TestForwardExecution(t *testing.T) {
	var publisherSeen capture
	publisher := newTargetServer(t, &publisherSeen)

	router := dispatch.NewRouter(nil, "", publisher.URL)
	dispatcher := dispatch.NewDispatcher(router, dispatch.NewClient(time.Second), nil)

	order := testOrder()
	notice := types.ExecutionNotice{
		SequencedOrder:   order.Sequenced(),
		QuantityExecuted: 40,
		ExecutionID:      "ENG-FILL-1",
	}

	result := dispatcher.ForwardExecution(context.Background(), notice)
	require.True(t, result.Delivered())

	require.Equal(t, 1, publisherSeen.executionCount())
	seen := publisherSeen.executions[0]
	assert.Equal(t, uint64(42), seen.SequenceNumber)
	assert.Equal(t, int64(40), seen.QuantityExecuted)
	assert.Equal(t, "ENG-FILL-1", seen.ExecutionID)
}

func TestDispatchOutcomesPersisted(t *testing.T) {
	db, err := database.NewDatabase(":memory:")
	require.NoError(t, err)

	var publisherSeen capture
	publisher := newTargetServer(t, &publisherSeen)

	dead := httptest.NewServer(http.NotFoundHandler())
	dead.Close()

	router := dispatch.NewRouter(map[string]string{"AAPL": dead.URL}, "", publisher.URL)
	dispatcher := dispatch.NewDispatcher(router, dispatch.NewClient(time.Second), db)

	dispatcher.DispatchOrder(context.Background(), testOrder())

	var records []types.DispatchRecord
	require.NoError(t, db.Where("sequence_number = ?", 42).Find(&records).Error)
	require.Len(t, records, 2)

	byTarget := make(map[string]types.DispatchRecord)
	for _, record := range records {
		byTarget[record.Target] = record
	}
	assert.Equal(t, types.DispatchFailed, byTarget[dispatch.TargetEngine].Status)
	assert.NotEmpty(t, byTarget[dispatch.TargetEngine].Error)
	assert.Equal(t, types.DispatchDelivered, byTarget[dispatch.TargetPublisher].Status)
}
