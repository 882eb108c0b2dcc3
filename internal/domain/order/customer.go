package order

import (
	"strings"

	"github.com/fbsamples/cp-reference/internal/domain/shared"
	"github.com/google/uuid"
)

// Customer is a buyer of a store. Two orders share a customer only when store,
// name, email and serialized shipping address are all identical.
type Customer struct {
	shared.BaseEntity
	StoreID  uuid.UUID
	FullName string
	Email    string
	Address  string
}

// CustomerKey is the deduplication key of a customer
type CustomerKey struct {
	StoreID  uuid.UUID
	FullName string
	Email    string
	Address  string
}

// NewCustomer creates a customer from its dedup key
func NewCustomer(key CustomerKey) (*Customer, error) {
	if key.StoreID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_STORE", "Store ID cannot be empty")
	}
	if strings.TrimSpace(key.FullName) == "" && strings.TrimSpace(key.Email) == "" {
		return nil, shared.NewDomainError("INVALID_CUSTOMER", "Customer needs a name or an email")
	}
	return &Customer{
		BaseEntity: shared.NewBaseEntity(),
		StoreID:    key.StoreID,
		FullName:   key.FullName,
		Email:      key.Email,
		Address:    key.Address,
	}, nil
}

// Key returns the dedup key of the customer
func (c *Customer) Key() CustomerKey {
	return CustomerKey{
		StoreID:  c.StoreID,
		FullName: c.FullName,
		Email:    c.Email,
		Address:  c.Address,
	}
}
