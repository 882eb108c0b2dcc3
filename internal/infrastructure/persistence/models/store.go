package models

import (
	"github.com/fbsamples/cp-reference/internal/domain/integration"
)

// StoreModel is a merchant store. Stores are provisioned elsewhere; this
// service only reads the commerce channel and token of each store.
type StoreModel struct {
	BaseModel
	Name        string `gorm:"type:varchar(255);not null"`
	ChannelID   string `gorm:"type:varchar(64);not null;default:''"`
	AccessToken string `gorm:"type:text;not null;default:''"`
}

// TableName returns the table name for GORM
func (StoreModel) TableName() string {
	return "stores"
}

// Connected reports whether the store has both a channel and a token
func (m *StoreModel) Connected() bool {
	return m.ChannelID != "" && m.AccessToken != ""
}

// Credentials returns the commerce credentials of the store
func (m *StoreModel) Credentials() integration.Credentials {
	return integration.Credentials{
		ChannelID:   m.ChannelID,
		AccessToken: m.AccessToken,
	}
}
