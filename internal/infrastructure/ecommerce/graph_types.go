package ecommerce

import (
	"github.com/fbsamples/cp-reference/internal/domain/integration"
)

// ---------------------------------------------------------------------------
// Shared
// ---------------------------------------------------------------------------

// graphPaging is the cursor block of a paged Graph response
type graphPaging struct {
	Cursors *struct {
		Before string `json:"before"`
		After  string `json:"after"`
	} `json:"cursors,omitempty"`
	Next     string `json:"next,omitempty"`
	Previous string `json:"previous,omitempty"`
}

func nextURL(p *graphPaging) string {
	if p == nil {
		return ""
	}
	return p.Next
}

// graphErrorResponse is the error envelope returned with HTTP errors
type graphErrorResponse struct {
	Error *struct {
		Message   string `json:"message"`
		Type      string `json:"type"`
		Code      int    `json:"code"`
		FBTraceID string `json:"fbtrace_id"`
	} `json:"error"`
}

// ---------------------------------------------------------------------------
// Orders
// ---------------------------------------------------------------------------

type graphOrderPage struct {
	Data   []graphOrder `json:"data"`
	Paging *graphPaging `json:"paging,omitempty"`
}

type graphOrder struct {
	ID              string                      `json:"id"`
	OrderStatus     integration.RemoteStatus    `json:"order_status"`
	Items           graphItemPage               `json:"items"`
	BuyerDetails    integration.BuyerDetails    `json:"buyer_details"`
	ShippingAddress integration.ShippingAddress `json:"shipping_address"`
}

type graphItemPage struct {
	Data   []integration.RemoteItem `json:"data"`
	Paging *graphPaging             `json:"paging,omitempty"`
}

// ---------------------------------------------------------------------------
// Acknowledgment
// ---------------------------------------------------------------------------

type graphAckResponse struct {
	Orders []integration.AckOutcome `json:"orders"`
}

// ---------------------------------------------------------------------------
// Order actions
// ---------------------------------------------------------------------------

type graphTrackingInfo struct {
	Carrier        string `json:"carrier"`
	TrackingNumber string `json:"tracking_number"`
}

type graphShipmentBody struct {
	AccessToken    string                   `json:"access_token"`
	Items          []integration.ActionItem `json:"items"`
	TrackingInfo   graphTrackingInfo        `json:"tracking_info"`
	IdempotencyKey string                   `json:"idempotency_key"`
}

type graphCancelReason struct {
	ReasonCode        string `json:"reason_code"`
	ReasonDescription string `json:"reason_description"`
}

type graphCancellationBody struct {
	AccessToken    string                   `json:"access_token"`
	IdempotencyKey string                   `json:"idempotency_key"`
	CancelReason   graphCancelReason        `json:"cancel_reason"`
	RestockItems   bool                     `json:"restock_items"`
	Items          []integration.ActionItem `json:"items,omitempty"`
}

type graphRefundBody struct {
	AccessToken    string                   `json:"access_token"`
	IdempotencyKey string                   `json:"idempotency_key"`
	ReasonCode     string                   `json:"reason_code"`
	Items          []integration.ActionItem `json:"items,omitempty"`
}

// graphActionResponse treats a missing success field as false
type graphActionResponse struct {
	Success bool `json:"success"`
}
