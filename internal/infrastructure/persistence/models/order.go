package models

import (
	"time"

	"github.com/fbsamples/cp-reference/internal/domain/order"
	"github.com/google/uuid"
)

// OrderModel is the persistence model for the Order domain entity.
// Items are stored in order_items and loaded separately by the repository.
type OrderModel struct {
	BaseModel
	StoreID           uuid.UUID               `gorm:"type:uuid;not null;uniqueIndex:idx_order_store_external,priority:1;index:idx_order_store_created,priority:1"`
	CustomerID        uuid.UUID               `gorm:"type:uuid;not null;index"`
	ExternalOrderID   string                  `gorm:"type:varchar(64);not null;uniqueIndex:idx_order_store_external,priority:2"`
	Status            order.OrderStatus       `gorm:"type:varchar(20);not null;default:'FB_CREATED'"`
	FulfillmentState  order.FulfillmentState  `gorm:"type:varchar(30);not null;default:'NO_FULFILLMENT'"`
	CancellationState order.CancellationState `gorm:"type:varchar(30);not null;default:'NO_CANCELLATION'"`
	RefundState       order.RefundState       `gorm:"type:varchar(30);not null;default:'NO_REFUNDS'"`
	MissingItems      bool                    `gorm:"not null;default:false"`
	Currency          string                  `gorm:"type:varchar(3);not null;default:'USD'"`
	BillingAddress    string                  `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (OrderModel) TableName() string {
	return "orders"
}

// ToDomain converts the persistence model to a domain Order. Items are attached by the caller.
func (m *OrderModel) ToDomain() *order.Order {
	return &order.Order{
		BaseEntity:        m.BaseModel.ToDomain(),
		StoreID:           m.StoreID,
		CustomerID:        m.CustomerID,
		ExternalOrderID:   m.ExternalOrderID,
		Status:            m.Status,
		FulfillmentState:  m.FulfillmentState,
		CancellationState: m.CancellationState,
		RefundState:       m.RefundState,
		MissingItems:      m.MissingItems,
		Currency:          m.Currency,
		BillingAddress:    m.BillingAddress,
	}
}

// FromDomain populates the persistence model from a domain Order
func (m *OrderModel) FromDomain(o *order.Order) {
	m.FromDomainBaseEntity(o.BaseEntity)
	m.StoreID = o.StoreID
	m.CustomerID = o.CustomerID
	m.ExternalOrderID = o.ExternalOrderID
	m.Status = o.Status
	m.FulfillmentState = o.FulfillmentState
	m.CancellationState = o.CancellationState
	m.RefundState = o.RefundState
	m.MissingItems = o.MissingItems
	m.Currency = o.Currency
	m.BillingAddress = o.BillingAddress
}

// OrderModelFromDomain creates a new OrderModel from a domain Order
func OrderModelFromDomain(o *order.Order) *OrderModel {
	m := &OrderModel{}
	m.FromDomain(o)
	return m
}

// OrderItemModel is the persistence model for one order line.
// ProductID becomes NULL when the product is deleted.
type OrderItemModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	OrderID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_order_item_order_product,priority:1"`
	ProductID *string   `gorm:"type:varchar(100);uniqueIndex:idx_order_item_order_product,priority:2"`
	Quantity  int       `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (OrderItemModel) TableName() string {
	return "order_items"
}

// ToDomain converts the persistence model to a domain OrderItem
func (m *OrderItemModel) ToDomain() order.OrderItem {
	return order.OrderItem{
		ID:        m.ID,
		OrderID:   m.OrderID,
		ProductID: m.ProductID,
		Quantity:  m.Quantity,
		CreatedAt: m.CreatedAt,
	}
}

// FromDomain populates the persistence model from a domain OrderItem
func (m *OrderItemModel) FromDomain(item *order.OrderItem) {
	m.ID = item.ID
	m.OrderID = item.OrderID
	m.ProductID = item.ProductID
	m.Quantity = item.Quantity
	m.CreatedAt = item.CreatedAt
}
