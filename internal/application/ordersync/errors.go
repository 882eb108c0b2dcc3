package ordersync

import "errors"

var (
	// ErrAcknowledgeLoopFailed wraps the error of the batch that stopped an acknowledgment loop.
	// Batches applied before it stay committed; every order still pending was deleted.
	ErrAcknowledgeLoopFailed = errors.New("ordersync: acknowledgment loop failed")

	// ErrSyncInProgress is returned when another run holds the store's sync lock
	ErrSyncInProgress = errors.New("ordersync: sync already in progress for this store")
)
