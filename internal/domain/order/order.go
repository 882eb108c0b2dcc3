// Package order holds the local order ledger: orders ingested from the commerce
// platform, their buyers and line items, and the lifecycle transitions applied
// after fulfillment, cancellation and refund calls succeed remotely.
package order

import (
	"fmt"
	"strings"
	"time"

	"github.com/fbsamples/cp-reference/internal/domain/shared"
	"github.com/google/uuid"
)

// DefaultCurrency is used when the platform does not report one
const DefaultCurrency = "USD"

// Order is a local copy of a platform order. The four state axes move
// independently; COMPLETED says nothing about which of them reached "fully".
type Order struct {
	shared.BaseEntity
	StoreID           uuid.UUID
	CustomerID        uuid.UUID
	ExternalOrderID   string
	Status            OrderStatus
	FulfillmentState  FulfillmentState
	CancellationState CancellationState
	RefundState       RefundState
	MissingItems      bool
	Currency          string
	BillingAddress    string
	Items             []OrderItem
}

// OrderItem is one product line of an order. ProductID is nil once the
// product has been removed from the catalog.
type OrderItem struct {
	ID        uuid.UUID
	OrderID   uuid.UUID
	ProductID *string
	Quantity  int
	CreatedAt time.Time
}

// NewOrder creates an order in FB_CREATED with every other axis at its "none" value
func NewOrder(storeID, customerID uuid.UUID, externalOrderID string) (*Order, error) {
	if storeID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_STORE", "Store ID cannot be empty")
	}
	if customerID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_CUSTOMER", "Customer ID cannot be empty")
	}
	if strings.TrimSpace(externalOrderID) == "" {
		return nil, shared.NewDomainError("INVALID_EXTERNAL_ID", "External order ID cannot be empty")
	}

	return &Order{
		BaseEntity:        shared.NewBaseEntity(),
		StoreID:           storeID,
		CustomerID:        customerID,
		ExternalOrderID:   externalOrderID,
		Status:            OrderStatusCreated,
		FulfillmentState:  FulfillmentStateNone,
		CancellationState: CancellationStateNone,
		RefundState:       RefundStateNone,
		Currency:          DefaultCurrency,
	}, nil
}

// NewOrderItem creates a line item for a resolved product
func NewOrderItem(orderID uuid.UUID, productID string, quantity int) (*OrderItem, error) {
	if productID == "" {
		return nil, shared.NewDomainError("INVALID_PRODUCT", "Product ID cannot be empty")
	}
	if quantity < 1 {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "Quantity must be at least 1")
	}
	return &OrderItem{
		ID:        uuid.New(),
		OrderID:   orderID,
		ProductID: &productID,
		Quantity:  quantity,
		CreatedAt: time.Now(),
	}, nil
}

// ---------------------------------------------------------------------------
// Ingestion transitions
// ---------------------------------------------------------------------------

// MarkInProgress records that the platform already considers the order acknowledged.
// Only valid for an order that has just been created locally.
func (o *Order) MarkInProgress() error {
	if o.Status != OrderStatusCreated {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot backfill order in %s status", o.Status))
	}
	o.Status = OrderStatusInProgress
	o.Touch()
	return nil
}

// FlagMissingItems marks the order as referencing products unknown locally
func (o *Order) FlagMissingItems() {
	o.MissingItems = true
	o.Touch()
}

// Confirm applies a successful acknowledgment
func (o *Order) Confirm() error {
	if o.IsCompleted() {
		return shared.NewDomainError("INVALID_STATE", "Cannot confirm a completed order")
	}
	o.Status = OrderStatusConfirmed
	o.Touch()
	return nil
}

// ---------------------------------------------------------------------------
// Lifecycle transitions
// ---------------------------------------------------------------------------

// CanFulfill reports whether a shipment may still be created
func (o *Order) CanFulfill() bool {
	return o.CancellationState != CancellationStateFully && o.FulfillmentState != FulfillmentStateFully
}

// CanCancel reports whether the order may still be cancelled
func (o *Order) CanCancel() bool {
	return o.CancellationState != CancellationStateFully && o.FulfillmentState != FulfillmentStateFully
}

// CanRefund reports whether a refund is possible. Nothing can be refunded before it shipped.
func (o *Order) CanRefund() bool {
	return o.RefundState != RefundStateFully && o.FulfillmentState != FulfillmentStateNone
}

// MarkFulfilled applies a successful whole-order shipment
func (o *Order) MarkFulfilled() error {
	if !o.CanFulfill() {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot fulfill order in %s/%s state", o.FulfillmentState, o.CancellationState))
	}
	o.FulfillmentState = FulfillmentStateFully
	o.Status = OrderStatusCompleted
	o.Touch()
	return nil
}

// MarkCancelled applies a successful whole-order cancellation
func (o *Order) MarkCancelled() error {
	if !o.CanCancel() {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot cancel order in %s/%s state", o.FulfillmentState, o.CancellationState))
	}
	o.CancellationState = CancellationStateFully
	o.Status = OrderStatusCompleted
	o.Touch()
	return nil
}

// MarkRefunded applies a successful whole-order refund
func (o *Order) MarkRefunded() error {
	if !o.CanRefund() {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot refund order in %s/%s state", o.FulfillmentState, o.RefundState))
	}
	o.RefundState = RefundStateFully
	o.Status = OrderStatusCompleted
	o.Touch()
	return nil
}

// ---------------------------------------------------------------------------
// Queries
// ---------------------------------------------------------------------------

// DisplayStatus is the status shown to operators
func (o *Order) DisplayStatus() string {
	if o.MissingItems {
		return "Issues with Order"
	}
	return o.Status.DisplayName()
}

// IsCompleted reports whether the order reached its terminal status
func (o *Order) IsCompleted() bool {
	return o.Status == OrderStatusCompleted
}

// TotalQuantity sums the quantities of all items
func (o *Order) TotalQuantity() int {
	total := 0
	for _, item := range o.Items {
		total += item.Quantity
	}
	return total
}
