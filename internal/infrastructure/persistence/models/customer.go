package models

import (
	"github.com/fbsamples/cp-reference/internal/domain/order"
	"github.com/google/uuid"
)

// CustomerModel is the persistence model for the Customer domain entity.
// The unique index is the dedup key of a buyer within a store.
type CustomerModel struct {
	BaseModel
	StoreID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_customer_dedup,priority:1"`
	FullName string    `gorm:"type:varchar(255);not null;default:'';uniqueIndex:idx_customer_dedup,priority:2"`
	Email    string    `gorm:"type:varchar(255);not null;default:'';uniqueIndex:idx_customer_dedup,priority:3"`
	Address  string    `gorm:"type:text;not null;default:'';uniqueIndex:idx_customer_dedup,priority:4"`
}

// TableName returns the table name for GORM
func (CustomerModel) TableName() string {
	return "customers"
}

// ToDomain converts the persistence model to a domain Customer entity.
func (m *CustomerModel) ToDomain() *order.Customer {
	return &order.Customer{
		BaseEntity: m.BaseModel.ToDomain(),
		StoreID:    m.StoreID,
		FullName:   m.FullName,
		Email:      m.Email,
		Address:    m.Address,
	}
}

// FromDomain populates the persistence model from a domain Customer entity.
func (m *CustomerModel) FromDomain(c *order.Customer) {
	m.FromDomainBaseEntity(c.BaseEntity)
	m.StoreID = c.StoreID
	m.FullName = c.FullName
	m.Email = c.Email
	m.Address = c.Address
}
