package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fbsamples/cp-reference/internal/application/ordersync"
	"github.com/fbsamples/cp-reference/internal/domain/integration"
	"github.com/fbsamples/cp-reference/internal/domain/order"
	"github.com/fbsamples/cp-reference/internal/infrastructure/logger"
	"github.com/fbsamples/cp-reference/internal/infrastructure/scheduler"
)

// OrderQueries reads order views
type OrderQueries interface {
	ListStoreOrders(ctx context.Context, storeID uuid.UUID) ([]ordersync.OrderResponse, error)
	GetOrder(ctx context.Context, id uuid.UUID) (*ordersync.OrderResponse, error)
}

// OrderActions applies lifecycle actions to orders
type OrderActions interface {
	FulfillByID(ctx context.Context, orderID uuid.UUID, req ordersync.FulfillRequest) (*ordersync.Result, error)
	CancelByID(ctx context.Context, orderID uuid.UUID, req ordersync.CancelRequest) (*ordersync.Result, error)
	RefundByID(ctx context.Context, orderID uuid.UUID, req ordersync.RefundRequest) (*ordersync.Result, error)
}

// SyncTrigger enqueues on-demand store syncs
type SyncTrigger interface {
	TriggerStore(storeID uuid.UUID) (scheduler.SyncJob, error)
}

// ---------------------------------------------------------------------------
// Request / response bodies
// ---------------------------------------------------------------------------

// ActionItemRequest selects a quantity of one product
type ActionItemRequest struct {
	RetailerID string `json:"retailer_id" binding:"required,max=255"`
	Quantity   int    `json:"quantity" binding:"required,gt=0"`
}

// FulfillOrderRequest is the body of POST /orders/:id/fulfill
type FulfillOrderRequest struct {
	Carrier        string              `json:"carrier" binding:"required,max=100"`
	TrackingNumber string              `json:"tracking_number" binding:"required,max=100"`
	Items          []ActionItemRequest `json:"items" binding:"omitempty,dive"`
}

// CancelOrderRequest is the body of POST /orders/:id/cancel.
// Defaults: reason CUSTOMER_REQUESTED, restock_items true.
type CancelOrderRequest struct {
	ReasonCode   string              `json:"reason_code" binding:"omitempty,cancel_reason"`
	RestockItems *bool               `json:"restock_items"`
	Items        []ActionItemRequest `json:"items" binding:"omitempty,dive"`
}

// RefundOrderRequest is the body of POST /orders/:id/refund. Defaults to BUYERS_REMORSE.
type RefundOrderRequest struct {
	ReasonCode string              `json:"reason_code" binding:"omitempty,refund_reason"`
	Items      []ActionItemRequest `json:"items" binding:"omitempty,dive"`
}

// SyncJobResponse describes an enqueued sync run
type SyncJobResponse struct {
	JobID     string    `json:"job_id"`
	StoreID   string    `json:"store_id"`
	Status    string    `json:"status"`
	RunAt     time.Time `json:"run_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func toActionItems(items []ActionItemRequest) []integration.ActionItem {
	if len(items) == 0 {
		return nil
	}
	out := make([]integration.ActionItem, len(items))
	for i, item := range items {
		out[i] = integration.ActionItem{RetailerID: item.RetailerID, Quantity: item.Quantity}
	}
	return out
}

// ToFulfillRequest converts the body to a lifecycle request
func (r FulfillOrderRequest) ToFulfillRequest() ordersync.FulfillRequest {
	return ordersync.FulfillRequest{
		Carrier:        r.Carrier,
		TrackingNumber: r.TrackingNumber,
		Items:          toActionItems(r.Items),
	}
}

// ToCancelRequest converts the body to a lifecycle request, applying defaults
func (r CancelOrderRequest) ToCancelRequest() ordersync.CancelRequest {
	req := ordersync.CancelRequest{
		ReasonCode:   order.CancelReasonCustomerRequested,
		RestockItems: true,
		Items:        toActionItems(r.Items),
	}
	if r.ReasonCode != "" {
		req.ReasonCode = order.CancellationReasonCode(r.ReasonCode)
	}
	if r.RestockItems != nil {
		req.RestockItems = *r.RestockItems
	}
	return req
}

// ToRefundRequest converts the body to a lifecycle request, applying defaults
func (r RefundOrderRequest) ToRefundRequest() ordersync.RefundRequest {
	req := ordersync.RefundRequest{
		ReasonCode: order.RefundReasonBuyersRemorse,
		Items:      toActionItems(r.Items),
	}
	if r.ReasonCode != "" {
		req.ReasonCode = order.RefundReasonCode(r.ReasonCode)
	}
	return req
}

// ---------------------------------------------------------------------------
// OrderHandler
// ---------------------------------------------------------------------------

// OrderHandler serves store sync and order lifecycle endpoints
type OrderHandler struct {
	BaseHandler
	queries OrderQueries
	actions OrderActions
	syncs   SyncTrigger
}

// NewOrderHandler creates a new OrderHandler
func NewOrderHandler(queries OrderQueries, actions OrderActions, syncs SyncTrigger) *OrderHandler {
	return &OrderHandler{
		queries: queries,
		actions: actions,
		syncs:   syncs,
	}
}

// RegisterRoutes mounts the order routes
func (h *OrderHandler) RegisterRoutes(rg *gin.RouterGroup) {
	stores := rg.Group("/stores/:store_id")
	stores.POST("/orders/sync", h.TriggerSync)
	stores.GET("/orders", h.ListStoreOrders)

	orders := rg.Group("/orders/:id")
	orders.GET("", h.GetOrder)
	orders.POST("/fulfill", h.Fulfill)
	orders.POST("/cancel", h.Cancel)
	orders.POST("/refund", h.Refund)
}

// TriggerSync godoc
// @ID           triggerStoreSync
// @Summary      Trigger a store order sync
// @Description  Enqueues an immediate fetch, write and acknowledgment run for the store
// @Tags         orders
// @Produce      json
// @Param        store_id path string true "Store ID" format(uuid)
// @Success      202 {object} dto.Response{data=SyncJobResponse}
// @Failure      400 {object} dto.Response
// @Failure      500 {object} dto.Response
// @Failure      503 {object} dto.Response
// @Router       /stores/{store_id}/orders/sync [post]
func (h *OrderHandler) TriggerSync(c *gin.Context) {
	storeID, ok := h.bindStoreID(c)
	if !ok {
		return
	}

	job, err := h.syncs.TriggerStore(storeID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	logger.GetGinLogger(c).Info("Store sync enqueued",
		zap.String("job_id", job.ID.String()),
	)
	h.Accepted(c, SyncJobResponse{
		JobID:     job.ID.String(),
		StoreID:   job.StoreID.String(),
		Status:    string(job.Status),
		RunAt:     job.RunAt,
		ExpiresAt: job.ExpiresAt,
	})
}

// ListStoreOrders godoc
// @ID           listStoreOrders
// @Summary      List store orders
// @Description  Returns the store's orders, newest first, with items, totals and available actions
// @Tags         orders
// @Produce      json
// @Param        store_id path string true "Store ID" format(uuid)
// @Success      200 {object} dto.Response{data=[]ordersync.OrderResponse}
// @Failure      400 {object} dto.Response
// @Failure      500 {object} dto.Response
// @Router       /stores/{store_id}/orders [get]
func (h *OrderHandler) ListStoreOrders(c *gin.Context) {
	storeID, ok := h.bindStoreID(c)
	if !ok {
		return
	}

	views, err := h.queries.ListStoreOrders(c.Request.Context(), storeID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, views)
}

// GetOrder godoc
// @ID           getOrder
// @Summary      Get order by ID
// @Description  Returns one order with its customer, items, totals and available actions
// @Tags         orders
// @Produce      json
// @Param        id path string true "Order ID" format(uuid)
// @Success      200 {object} dto.Response{data=ordersync.OrderResponse}
// @Failure      400 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Failure      500 {object} dto.Response
// @Router       /orders/{id} [get]
func (h *OrderHandler) GetOrder(c *gin.Context) {
	orderID, ok := h.bindOrderID(c)
	if !ok {
		return
	}

	view, err := h.queries.GetOrder(c.Request.Context(), orderID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, view)
}

// Fulfill godoc
// @ID           fulfillOrder
// @Summary      Fulfill order
// @Description  Creates a shipment on the commerce platform and marks the order fulfilled
// @Tags         orders
// @Accept       json
// @Produce      json
// @Param        id path string true "Order ID" format(uuid)
// @Param        request body FulfillOrderRequest true "Shipment details"
// @Success      200 {object} dto.Response{data=ordersync.OrderResponse}
// @Failure      400 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Failure      409 {object} dto.Response
// @Failure      422 {object} dto.Response
// @Failure      500 {object} dto.Response
// @Failure      502 {object} dto.Response
// @Router       /orders/{id}/fulfill [post]
func (h *OrderHandler) Fulfill(c *gin.Context) {
	orderID, ok := h.bindOrderID(c)
	if !ok {
		return
	}
	var body FulfillOrderRequest
	if !h.bindOptionalJSON(c, &body) {
		return
	}

	result, err := h.actions.FulfillByID(c.Request.Context(), orderID, body.ToFulfillRequest())
	h.respondAction(c, orderID, result, err)
}

// Cancel godoc
// @ID           cancelOrder
// @Summary      Cancel order
// @Description  Cancels the order on the commerce platform. Defaults to CUSTOMER_REQUESTED with restock_items true
// @Tags         orders
// @Accept       json
// @Produce      json
// @Param        id path string true "Order ID" format(uuid)
// @Param        request body CancelOrderRequest false "Cancellation reason"
// @Success      200 {object} dto.Response{data=ordersync.OrderResponse}
// @Failure      400 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Failure      409 {object} dto.Response
// @Failure      422 {object} dto.Response
// @Failure      500 {object} dto.Response
// @Failure      502 {object} dto.Response
// @Router       /orders/{id}/cancel [post]
func (h *OrderHandler) Cancel(c *gin.Context) {
	orderID, ok := h.bindOrderID(c)
	if !ok {
		return
	}
	var body CancelOrderRequest
	if !h.bindOptionalJSON(c, &body) {
		return
	}

	result, err := h.actions.CancelByID(c.Request.Context(), orderID, body.ToCancelRequest())
	h.respondAction(c, orderID, result, err)
}

// Refund godoc
// @ID           refundOrder
// @Summary      Refund order
// @Description  Refunds the order on the commerce platform. Defaults to BUYERS_REMORSE
// @Tags         orders
// @Accept       json
// @Produce      json
// @Param        id path string true "Order ID" format(uuid)
// @Param        request body RefundOrderRequest false "Refund reason"
// @Success      200 {object} dto.Response{data=ordersync.OrderResponse}
// @Failure      400 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Failure      409 {object} dto.Response
// @Failure      422 {object} dto.Response
// @Failure      500 {object} dto.Response
// @Failure      502 {object} dto.Response
// @Router       /orders/{id}/refund [post]
func (h *OrderHandler) Refund(c *gin.Context) {
	orderID, ok := h.bindOrderID(c)
	if !ok {
		return
	}
	var body RefundOrderRequest
	if !h.bindOptionalJSON(c, &body) {
		return
	}

	result, err := h.actions.RefundByID(c.Request.Context(), orderID, body.ToRefundRequest())
	h.respondAction(c, orderID, result, err)
}

// respondAction answers with the updated order view, or the error.
// A declined action surfaces as ERR_REMOTE_REJECTED.
func (h *OrderHandler) respondAction(c *gin.Context, orderID uuid.UUID, result *ordersync.Result, err error) {
	if err == nil && result != nil {
		err = result.Err()
	}
	if err != nil {
		h.HandleError(c, err)
		return
	}

	view, err := h.queries.GetOrder(c.Request.Context(), orderID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, view)
}
