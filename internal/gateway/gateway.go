package gateway

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ksred/intake-api/internal/dispatch"
	"github.com/ksred/intake-api/internal/orders"
	"github.com/ksred/intake-api/internal/relay"
	"github.com/ksred/intake-api/internal/types"
	"github.com/ksred/intake-api/pkg/response"
	"github.com/rs/zerolog/log"
)

// Service orchestrates order intake: assign a sequence number and
// persist, then hand the sequenced order to the fan-out pool. Durability
// is the contract with the submitter; the acknowledgment never waits on
// downstream delivery.
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

// SubmitOrder sequences and persists the submission, then queues
// fan-out. Sequencing failure aborts the request with nothing recorded
// and nothing dispatched; fan-out is attempted for every order that was
// durably sequenced.
func (s *Service) SubmitOrder(ctx context.Context, req types.NewOrderRequest) (*types.Order, error) {
	now := time.Now()
	order := &types.Order{
		UserID:            req.UserID,
		TimestampNS:       req.TimestampNS,
		Price:             req.Price,
		Symbol:            req.Symbol,
		Quantity:          req.Quantity,
		OrderType:         req.OrderType,
		TraderType:        req.TraderType,
		QuantityRemaining: req.Quantity,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	secnum, err := s.repo.Sequence(ctx, order)
	if err != nil {
		return nil, err
	}

	s.pool.EnqueueOrder(order)

	log.Info().
		Uint64("secnum", secnum).
		Str("symbol", order.Symbol).
		Int64("quantity", order.Quantity).
		Str("order_type", order.OrderType).
		Msg("order accepted")

	return order, nil
}

// GetOrder retrieves an order's current state by sequence number.
func (s *Service) GetOrder(ctx context.Context, secnum uint64) (*types.Order, error) {
	return s.repo.Get(ctx, secnum)
}

// GinHandlers contains HTTP handlers for the gateway endpoints.
type GinHandlers struct {
	service *Service
	relay   *relay.Service
}

func NewGinHandlers(service *Service, relayService *relay.Service) *GinHandlers {
	return &GinHandlers{
		service: service,
		relay:   relayService,
	}
}

// SubmitOrderHandler handles POST /order. The 201 acknowledges that the
// order is durably sequenced; fan-out outcome is not reflected here.
func (h *GinHandlers) SubmitOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req types.NewOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		if _, err := h.service.SubmitOrder(c.Request.Context(), req); err != nil {
			response.HandleError(c, err)
			return
		}

		c.Status(http.StatusCreated)
	}
}

// OrderFillHandler handles POST /order-fill. The response reflects only
// whether the repository accepted the update, not publisher delivery.
func (h *GinHandlers) OrderFillHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var report types.FillReport
		if err := c.ShouldBindJSON(&report); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		order, err := h.relay.HandleFill(c.Request.Context(), report)
		if err != nil {
			response.HandleError(c, err)
			return
		}

		response.Success(c, order.State())
	}
}

// GetOrderHandler handles GET /order/:secnum.
func (h *GinHandlers) GetOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		secnum, err := strconv.ParseUint(c.Param("secnum"), 10, 64)
		if err != nil {
			response.BadRequest(c, "invalid sequence number")
			return
		}

		order, err := h.service.GetOrder(c.Request.Context(), secnum)
		if err != nil {
			response.HandleError(c, err)
			return
		}

		response.Success(c, order.State())
	}
}

// LivenessHandler handles GET /.
func (h *GinHandlers) LivenessHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.String(http.StatusOK, "order intake gateway is available")
	}
}
