// Package catalog exposes the read side of store products that order
// processing depends on. Catalog management itself lives elsewhere.
package catalog

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is a sellable product variant, identified by its retailer ID
type Product struct {
	ID        string
	StoreID   uuid.UUID
	Title     string
	Inventory int
	Amount    decimal.Decimal
	Currency  string
}

// PriceFor returns the price of quantity units
func (p *Product) PriceFor(quantity int) decimal.Decimal {
	return p.Amount.Mul(decimal.NewFromInt(int64(quantity)))
}

// ProductLookup resolves products by retailer ID
type ProductLookup interface {
	FindByID(ctx context.Context, id string) (*Product, bool, error)
	// FindByIDs returns the products that exist, keyed by ID. Unknown IDs are absent from the map.
	FindByIDs(ctx context.Context, ids []string) (map[string]*Product, error)
}

// InventorySink applies stock changes to products
type InventorySink interface {
	AdjustInventory(ctx context.Context, productID string, delta int) error
}
