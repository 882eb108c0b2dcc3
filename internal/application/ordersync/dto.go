package ordersync

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fbsamples/cp-reference/internal/domain/catalog"
	"github.com/fbsamples/cp-reference/internal/domain/integration"
	"github.com/fbsamples/cp-reference/internal/domain/order"
)

// ==================== Order Views ====================

// OrderResponse is the operator view of an order
type OrderResponse struct {
	ID                  uuid.UUID           `json:"id"`
	StoreID             uuid.UUID           `json:"store_id"`
	ExternalOrderID     string              `json:"external_order_id"`
	Status              string              `json:"status"`
	DisplayStatus       string              `json:"display_status"`
	FulfillmentState    string              `json:"fulfillment_state"`
	FulfillmentDisplay  string              `json:"fulfillment_display"`
	CancellationState   string              `json:"cancellation_state"`
	CancellationDisplay string              `json:"cancellation_display"`
	RefundState         string              `json:"refund_state"`
	RefundDisplay       string              `json:"refund_display"`
	MissingItems        bool                `json:"missing_items"`
	Currency            string              `json:"currency"`
	Customer            *CustomerResponse   `json:"customer,omitempty"`
	Items               []OrderItemResponse `json:"items"`
	TotalPrice          decimal.Decimal     `json:"total_price"`
	TotalItems          int                 `json:"total_items"`
	CanFulfill          bool                `json:"can_fulfill"`
	CanCancel           bool                `json:"can_cancel"`
	CanRefund           bool                `json:"can_refund"`
	CreatedAt           time.Time           `json:"created_at"`
	UpdatedAt           time.Time           `json:"updated_at"`
}

// CustomerResponse is the buyer of an order with the address parsed back
type CustomerResponse struct {
	ID       uuid.UUID                   `json:"id"`
	FullName string                      `json:"full_name"`
	Email    string                      `json:"email"`
	Address  integration.ShippingAddress `json:"address"`
}

// OrderItemResponse is one line of an order. Product fields are empty when
// the product is no longer in the catalog.
type OrderItemResponse struct {
	ID           uuid.UUID       `json:"id"`
	ProductID    *string         `json:"product_id"`
	Title        string          `json:"title,omitempty"`
	Quantity     int             `json:"quantity"`
	UnitAmount   decimal.Decimal `json:"unit_amount"`
	PriceForItem decimal.Decimal `json:"price_for_item"`
}

// ToCustomerResponse converts a customer
func ToCustomerResponse(c *order.Customer) *CustomerResponse {
	if c == nil {
		return nil
	}
	return &CustomerResponse{
		ID:       c.ID,
		FullName: c.FullName,
		Email:    c.Email,
		Address:  integration.ParseShippingAddress(c.Address),
	}
}

// ToOrderResponse builds the view of an order. products holds the catalog
// entries of its items; unknown products count zero toward the total.
func ToOrderResponse(o *order.Order, customer *order.Customer, products map[string]*catalog.Product) OrderResponse {
	items := make([]OrderItemResponse, 0, len(o.Items))
	total := decimal.Zero
	for _, item := range o.Items {
		line := OrderItemResponse{
			ID:           item.ID,
			ProductID:    item.ProductID,
			Quantity:     item.Quantity,
			UnitAmount:   decimal.Zero,
			PriceForItem: decimal.Zero,
		}
		if item.ProductID != nil {
			if p, ok := products[*item.ProductID]; ok {
				line.Title = p.Title
				line.UnitAmount = p.Amount
				line.PriceForItem = p.PriceFor(item.Quantity)
			}
		}
		total = total.Add(line.PriceForItem)
		items = append(items, line)
	}

	return OrderResponse{
		ID:                  o.ID,
		StoreID:             o.StoreID,
		ExternalOrderID:     o.ExternalOrderID,
		Status:              o.Status.String(),
		DisplayStatus:       o.DisplayStatus(),
		FulfillmentState:    o.FulfillmentState.String(),
		FulfillmentDisplay:  o.FulfillmentState.DisplayName(),
		CancellationState:   o.CancellationState.String(),
		CancellationDisplay: o.CancellationState.DisplayName(),
		RefundState:         o.RefundState.String(),
		RefundDisplay:       o.RefundState.DisplayName(),
		MissingItems:        o.MissingItems,
		Currency:            o.Currency,
		Customer:            ToCustomerResponse(customer),
		Items:               items,
		TotalPrice:          total,
		TotalItems:          o.TotalQuantity(),
		CanFulfill:          o.CanFulfill(),
		CanCancel:           o.CanCancel(),
		CanRefund:           o.CanRefund(),
		CreatedAt:           o.CreatedAt,
		UpdatedAt:           o.UpdatedAt,
	}
}

// ==================== Sync Report ====================

// SyncReportResponse summarizes a sync run
type SyncReportResponse struct {
	StoreID       uuid.UUID `json:"store_id"`
	Status        string    `json:"status"`
	Fetched       int       `json:"fetched"`
	Acknowledged  int       `json:"acknowledged"`
	Confirmed     int       `json:"confirmed"`
	Deleted       int       `json:"deleted"`
	WriteFailures []string  `json:"write_failures,omitempty"`
	MissingItems  []string  `json:"missing_items,omitempty"`
	DurationMs    int64     `json:"duration_ms"`
}

// ToSyncReportResponse converts a sync report
func ToSyncReportResponse(r *integration.SyncReport) SyncReportResponse {
	return SyncReportResponse{
		StoreID:       r.StoreID,
		Status:        r.Status.String(),
		Fetched:       len(r.Fetched),
		Acknowledged:  len(r.Acknowledged),
		Confirmed:     r.Confirmed,
		Deleted:       r.Deleted,
		WriteFailures: r.WriteFailures,
		MissingItems:  r.MissingItems,
		DurationMs:    r.Duration().Milliseconds(),
	}
}
