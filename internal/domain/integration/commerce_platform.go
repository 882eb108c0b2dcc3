package integration

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// MaxAckBatchSize is the largest number of orders one acknowledgment may carry
const MaxAckBatchSize = 100

// ---------------------------------------------------------------------------
// Credentials
// ---------------------------------------------------------------------------

// Credentials identify a store on the platform
type Credentials struct {
	ChannelID   string
	AccessToken string
}

// Validate checks both parts are present
func (c Credentials) Validate() error {
	if c.ChannelID == "" {
		return ErrMissingChannelID
	}
	if c.AccessToken == "" {
		return ErrMissingAccessToken
	}
	return nil
}

// CredentialLookup resolves the platform credentials of a store.
// found is false for stores that are not connected yet.
type CredentialLookup interface {
	FindCredentials(ctx context.Context, storeID uuid.UUID) (creds Credentials, found bool, err error)
	// ListConnectedStores returns the stores that have credentials
	ListConnectedStores(ctx context.Context) ([]uuid.UUID, error)
}

// ---------------------------------------------------------------------------
// CommercePlatform Port
// ---------------------------------------------------------------------------

// CommercePlatform is the port to the remote commerce platform.
// Every mutating call generates its own idempotency key, so calling twice
// for the same logical action is not deduplicated by the platform.
type CommercePlatform interface {
	// ListOrders returns every matching order with all item pages resolved
	ListOrders(ctx context.Context, creds Credentials, opts ListOrdersOptions) ([]RemoteOrder, error)
	// AcknowledgeOrders confirms receipt of at most MaxAckBatchSize orders
	AcknowledgeOrders(ctx context.Context, creds Credentials, entries []AckEntry) ([]AckOutcome, error)
	CreateShipment(ctx context.Context, creds Credentials, req ShipmentRequest) (*ActionResponse, error)
	CancelOrder(ctx context.Context, creds Credentials, req CancellationRequest) (*ActionResponse, error)
	RefundOrder(ctx context.Context, creds Credentials, req RefundRequest) (*ActionResponse, error)
}

// ---------------------------------------------------------------------------
// Acknowledgment
// ---------------------------------------------------------------------------

// AckEntry pairs a remote order with the local order ID it was written under
type AckEntry struct {
	ID                     string `json:"id"`
	MerchantOrderReference string `json:"merchant_order_reference"`
}

// AckOutcome is the per-order result of an acknowledgment
type AckOutcome struct {
	ID    string           `json:"id"`
	State RemoteOrderState `json:"state,omitempty"`
}

// Accepted reports whether the platform moved the order to IN_PROGRESS
func (o AckOutcome) Accepted() bool {
	return o.State == RemoteStateInProgress
}

// ValidateAckBatch rejects batches the platform would refuse
func ValidateAckBatch(entries []AckEntry) error {
	if len(entries) > MaxAckBatchSize {
		return fmt.Errorf("%w: got %d", ErrBatchLimitExceeded, len(entries))
	}
	for _, e := range entries {
		if e.ID == "" || e.MerchantOrderReference == "" {
			return fmt.Errorf("%w: acknowledgment entry needs id and merchant reference", ErrInvalidRequest)
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Order actions
// ---------------------------------------------------------------------------

// ActionItem selects a quantity of one product for an order action
type ActionItem struct {
	RetailerID string `json:"retailer_id"`
	Quantity   int    `json:"quantity"`
}

func validateItems(items []ActionItem) error {
	for _, item := range items {
		if item.RetailerID == "" {
			return fmt.Errorf("%w: item retailer_id is required", ErrInvalidRequest)
		}
		if item.Quantity < 1 {
			return fmt.Errorf("%w: item quantity must be positive", ErrInvalidRequest)
		}
	}
	return nil
}

// ShipmentRequest fulfills an order remotely
type ShipmentRequest struct {
	ExternalOrderID string
	Items           []ActionItem
	Carrier         string
	TrackingNumber  string
}

// Validate validates the request
func (r ShipmentRequest) Validate() error {
	if r.ExternalOrderID == "" {
		return ErrMissingExternalOrderID
	}
	if r.Carrier == "" || r.TrackingNumber == "" {
		return fmt.Errorf("%w: carrier and tracking number are required", ErrInvalidRequest)
	}
	return validateItems(r.Items)
}

// CancellationRequest cancels an order remotely.
// RestockItems is only forwarded; local inventory is never restocked.
type CancellationRequest struct {
	ExternalOrderID   string
	ReasonCode        string
	ReasonDescription string
	RestockItems      bool
	Items             []ActionItem
}

// Validate validates the request
func (r CancellationRequest) Validate() error {
	if r.ExternalOrderID == "" {
		return ErrMissingExternalOrderID
	}
	if r.ReasonCode == "" {
		return fmt.Errorf("%w: reason code is required", ErrInvalidRequest)
	}
	return validateItems(r.Items)
}

// RefundRequest refunds an order remotely
type RefundRequest struct {
	ExternalOrderID string
	ReasonCode      string
	Items           []ActionItem
}

// Validate validates the request
func (r RefundRequest) Validate() error {
	if r.ExternalOrderID == "" {
		return ErrMissingExternalOrderID
	}
	if r.ReasonCode == "" {
		return fmt.Errorf("%w: reason code is required", ErrInvalidRequest)
	}
	return validateItems(r.Items)
}

// ActionResponse is the platform answer to a shipment, cancellation or refund
type ActionResponse struct {
	Success bool
	// Raw holds the undecoded response body for logging
	Raw []byte
}
