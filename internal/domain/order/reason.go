package order

// CancellationReasonCode is sent to the platform when an order is cancelled
type CancellationReasonCode string

const (
	CancelReasonCustomerRequested CancellationReasonCode = "CUSTOMER_REQUESTED"
	CancelReasonOutOfStock        CancellationReasonCode = "OUT_OF_STOCK"
	CancelReasonInvalidAddress    CancellationReasonCode = "INVALID_ADDRESS"
	CancelReasonSuspiciousOrder   CancellationReasonCode = "SUSPICIOUS_ORDER"
	CancelReasonOther             CancellationReasonCode = "CANCEL_REASON_OTHER"
)

// IsValid checks if the code is a known cancellation reason
func (c CancellationReasonCode) IsValid() bool {
	_, ok := cancellationDescriptions[c]
	return ok
}

// Description returns the buyer-facing reason text
func (c CancellationReasonCode) Description() string {
	return cancellationDescriptions[c]
}

var cancellationDescriptions = map[CancellationReasonCode]string{
	CancelReasonCustomerRequested: "Cancellation requested by the buyer.",
	CancelReasonOutOfStock:        "Product is out of stock at fulfillment.",
	CancelReasonInvalidAddress:    "Unable to ship to address provided by the buyer.",
	CancelReasonSuspiciousOrder:   "Order is suspicious/possible fraud.",
	CancelReasonOther:             "Other cancellation reason.",
}

// RefundReasonCode is sent to the platform when an order is refunded
type RefundReasonCode string

const (
	RefundReasonBuyersRemorse  RefundReasonCode = "BUYERS_REMORSE"
	RefundReasonDamagedGoods   RefundReasonCode = "DAMAGED_GOODS"
	RefundReasonNotAsDescribed RefundReasonCode = "NOT_AS_DESCRIBED"
	RefundReasonQualityIssue   RefundReasonCode = "QUALITY_ISSUE"
	RefundReasonOther          RefundReasonCode = "REFUND_REASON_OTHER"
	RefundReasonWrongItem      RefundReasonCode = "WRONG_ITEM"
)

// IsValid checks if the code is a known refund reason
func (c RefundReasonCode) IsValid() bool {
	_, ok := refundDescriptions[c]
	return ok
}

// Description returns the reason text
func (c RefundReasonCode) Description() string {
	return refundDescriptions[c]
}

var refundDescriptions = map[RefundReasonCode]string{
	RefundReasonBuyersRemorse:  "Refunded by buyers remorse.",
	RefundReasonDamagedGoods:   "Refunded as goods were delivered damaged.",
	RefundReasonNotAsDescribed: "Product not as described.",
	RefundReasonQualityIssue:   "Product had quality issues.",
	RefundReasonOther:          "Other refund reason.",
	RefundReasonWrongItem:      "Wrong product delivered.",
}
