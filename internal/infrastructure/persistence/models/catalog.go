package models

import (
	"time"

	"github.com/fbsamples/cp-reference/internal/domain/catalog"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductModel is the persistence model for the Product domain entity.
// The primary key is the retailer ID the commerce platform reports on order items.
type ProductModel struct {
	ID        string          `gorm:"type:varchar(100);primary_key"`
	StoreID   uuid.UUID       `gorm:"type:uuid;not null;index"`
	Title     string          `gorm:"type:varchar(255);not null"`
	Inventory int             `gorm:"not null;default:0"`
	Amount    decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
	Currency  string          `gorm:"type:varchar(3);not null;default:'USD'"`
	CreatedAt time.Time       `gorm:"not null"`
	UpdatedAt time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ProductModel) TableName() string {
	return "products"
}

// ToDomain converts the persistence model to a domain Product entity.
func (m *ProductModel) ToDomain() *catalog.Product {
	return &catalog.Product{
		ID:        m.ID,
		StoreID:   m.StoreID,
		Title:     m.Title,
		Inventory: m.Inventory,
		Amount:    m.Amount,
		Currency:  m.Currency,
	}
}

// FromDomain populates the persistence model from a domain Product entity.
func (m *ProductModel) FromDomain(p *catalog.Product) {
	m.ID = p.ID
	m.StoreID = p.StoreID
	m.Title = p.Title
	m.Inventory = p.Inventory
	m.Amount = p.Amount
	m.Currency = p.Currency
}
