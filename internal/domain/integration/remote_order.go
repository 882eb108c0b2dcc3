package integration

import (
	"encoding/json"
)

// ---------------------------------------------------------------------------
// RemoteOrderState
// ---------------------------------------------------------------------------

// RemoteOrderState is the order state as reported by the platform
type RemoteOrderState string

const (
	RemoteStateProcessing RemoteOrderState = "FB_PROCESSING"
	RemoteStateCreated    RemoteOrderState = "CREATED"
	RemoteStateInProgress RemoteOrderState = "IN_PROGRESS"
	RemoteStateCompleted  RemoteOrderState = "COMPLETED"
)

// IsValid returns true if the state is known
func (s RemoteOrderState) IsValid() bool {
	switch s {
	case RemoteStateProcessing, RemoteStateCreated, RemoteStateInProgress, RemoteStateCompleted:
		return true
	default:
		return false
	}
}

// String returns the string representation of RemoteOrderState
func (s RemoteOrderState) String() string {
	return string(s)
}

var (
	// DefaultListStates is used when a listing does not name states
	DefaultListStates = []RemoteOrderState{RemoteStateCreated, RemoteStateInProgress, RemoteStateCompleted}
	// SyncListStates are fetched by a sync run. IN_PROGRESS is included to catch
	// orders a previous acknowledgment run acknowledged but failed to record.
	SyncListStates = []RemoteOrderState{RemoteStateCreated, RemoteStateInProgress}
	// DefaultOrderFields are always requested; caller fields are added to them
	DefaultOrderFields = []string{"id", "order_status", "items", "buyer_details", "shipping_address"}
)

// ---------------------------------------------------------------------------
// Value Objects
// ---------------------------------------------------------------------------

// RemoteOrder is an order as returned by the platform, with every item page resolved
type RemoteOrder struct {
	ID              string          `json:"id"`
	OrderStatus     RemoteStatus    `json:"order_status"`
	Items           []RemoteItem    `json:"items"`
	BuyerDetails    BuyerDetails    `json:"buyer_details"`
	ShippingAddress ShippingAddress `json:"shipping_address"`
}

// State returns the remote state of the order
func (o RemoteOrder) State() RemoteOrderState {
	return o.OrderStatus.State
}

// RemoteStatus wraps the platform order state
type RemoteStatus struct {
	State RemoteOrderState `json:"state"`
}

// RemoteItem is one line of a remote order
type RemoteItem struct {
	ID          string `json:"id"`
	RetailerID  string `json:"retailer_id"`
	Quantity    int    `json:"quantity"`
	ProductName string `json:"product_name,omitempty"`
}

// BuyerDetails identifies the buyer of a remote order
type BuyerDetails struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// ShippingAddress is the delivery address of a remote order
type ShippingAddress struct {
	Name       string `json:"name,omitempty"`
	Street1    string `json:"street1,omitempty"`
	Street2    string `json:"street2,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country,omitempty"`
}

// Serialize returns the canonical JSON form used as part of the customer key.
// Field order is fixed by the struct, so equal addresses serialize identically.
func (a ShippingAddress) Serialize() string {
	b, _ := json.Marshal(a)
	return string(b)
}

// ParseShippingAddress decodes a serialized address. Invalid input yields an empty address.
func ParseShippingAddress(s string) ShippingAddress {
	var a ShippingAddress
	_ = json.Unmarshal([]byte(s), &a)
	return a
}

// ListOrdersOptions filters a listing
type ListOrdersOptions struct {
	// States overrides DefaultListStates when non-empty
	States []RemoteOrderState
	// Fields are added to DefaultOrderFields
	Fields []string
}
