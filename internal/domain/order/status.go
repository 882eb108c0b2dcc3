package order

// OrderStatus is the overall status of a local order
type OrderStatus string

const (
	// OrderStatusCreated is the initial state of an order fetched from the platform and not yet acknowledged
	OrderStatusCreated OrderStatus = "FB_CREATED"
	// OrderStatusConfirmed is set once the platform accepted the acknowledgment
	OrderStatusConfirmed OrderStatus = "CONFIRMED_ORDER"
	// OrderStatusInProgress is used when an order was already acknowledged remotely but missing locally
	OrderStatusInProgress OrderStatus = "IN_PROGRESS"
	// OrderStatusCompleted is terminal, reached through fulfillment, cancellation or refund
	OrderStatusCompleted OrderStatus = "COMPLETED"
)

// IsValid checks if the status is a valid OrderStatus
func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusCreated, OrderStatusConfirmed, OrderStatusInProgress, OrderStatusCompleted:
		return true
	}
	return false
}

// String returns the string representation of OrderStatus
func (s OrderStatus) String() string {
	return string(s)
}

// DisplayName returns the human readable label
func (s OrderStatus) DisplayName() string {
	switch s {
	case OrderStatusCreated:
		return "FB Created"
	case OrderStatusConfirmed:
		return "Confirmed Order"
	case OrderStatusInProgress:
		return "In progress"
	case OrderStatusCompleted:
		return "Completed"
	}
	return string(s)
}

// FulfillmentState tracks shipment progress of an order.
// PARTIALLY_FULFILLED is part of the model but only whole-order fulfillment is implemented.
type FulfillmentState string

const (
	FulfillmentStateNone      FulfillmentState = "NO_FULFILLMENT"
	FulfillmentStatePartially FulfillmentState = "PARTIALLY_FULFILLED"
	FulfillmentStateFully     FulfillmentState = "FULLY_FULFILLED"
)

// IsValid checks if the state is a valid FulfillmentState
func (s FulfillmentState) IsValid() bool {
	switch s {
	case FulfillmentStateNone, FulfillmentStatePartially, FulfillmentStateFully:
		return true
	}
	return false
}

// String returns the string representation of FulfillmentState
func (s FulfillmentState) String() string {
	return string(s)
}

// DisplayName returns the human readable label
func (s FulfillmentState) DisplayName() string {
	switch s {
	case FulfillmentStateNone:
		return "No fulfillment"
	case FulfillmentStatePartially:
		return "Partially fulfilled"
	case FulfillmentStateFully:
		return "Fully fulfilled"
	}
	return string(s)
}

// CancellationState tracks cancellation of an order.
// PARTIALLY_CANCELLED is never produced.
type CancellationState string

const (
	CancellationStateNone      CancellationState = "NO_CANCELLATION"
	CancellationStatePartially CancellationState = "PARTIALLY_CANCELLED"
	CancellationStateFully     CancellationState = "FULLY_CANCELLED"
)

// IsValid checks if the state is a valid CancellationState
func (s CancellationState) IsValid() bool {
	switch s {
	case CancellationStateNone, CancellationStatePartially, CancellationStateFully:
		return true
	}
	return false
}

// String returns the string representation of CancellationState
func (s CancellationState) String() string {
	return string(s)
}

// DisplayName returns the human readable label
func (s CancellationState) DisplayName() string {
	switch s {
	case CancellationStateNone:
		return "No cancellation"
	case CancellationStatePartially:
		return "Partially cancelled"
	case CancellationStateFully:
		return "Fully cancelled"
	}
	return string(s)
}

// RefundState tracks refunds of an order.
// PARTIALLY_REFUNDED is never produced.
type RefundState string

const (
	RefundStateNone      RefundState = "NO_REFUNDS"
	RefundStatePartially RefundState = "PARTIALLY_REFUNDED"
	RefundStateFully     RefundState = "FULLY_REFUNDED"
)

// IsValid checks if the state is a valid RefundState
func (s RefundState) IsValid() bool {
	switch s {
	case RefundStateNone, RefundStatePartially, RefundStateFully:
		return true
	}
	return false
}

// String returns the string representation of RefundState
func (s RefundState) String() string {
	return string(s)
}

// DisplayName returns the human readable label
func (s RefundState) DisplayName() string {
	switch s {
	case RefundStateNone:
		return "No refunds"
	case RefundStatePartially:
		return "Partially refunded"
	case RefundStateFully:
		return "Fully refunded"
	}
	return string(s)
}
