package integration

import "errors"

var (
	// Remote errors
	ErrRemoteUnavailable       = errors.New("integration: commerce platform unavailable")
	ErrRemoteRejected          = errors.New("integration: commerce platform rejected the request")
	ErrInvalidResponse         = errors.New("integration: invalid commerce platform response")
	ErrPaginationLimitExceeded = errors.New("integration: pagination limit exceeded")

	// Request errors
	ErrBatchLimitExceeded     = errors.New("integration: too many orders to acknowledge, limit is 100")
	ErrInvalidRequest         = errors.New("integration: invalid request")
	ErrCredentialsNotFound    = errors.New("integration: store has no commerce credentials")
	ErrMissingAccessToken     = errors.New("integration: access token is required")
	ErrMissingChannelID       = errors.New("integration: channel ID is required")
	ErrMissingExternalOrderID = errors.New("integration: external order ID is required")
)
