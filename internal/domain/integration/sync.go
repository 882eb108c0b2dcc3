package integration

import (
	"time"

	"github.com/google/uuid"
)

// SyncStatus represents the outcome of a sync run
type SyncStatus string

const (
	// SyncStatusSuccess indicates every fetched order was written and every candidate acknowledged
	SyncStatusSuccess SyncStatus = "SUCCESS"
	// SyncStatusPartial indicates some orders could not be written
	SyncStatusPartial SyncStatus = "PARTIAL"
	// SyncStatusFailed indicates the run aborted
	SyncStatusFailed SyncStatus = "FAILED"
	// SyncStatusNotConnected indicates the store has no credentials; nothing was fetched
	SyncStatusNotConnected SyncStatus = "NOT_CONNECTED"
)

// IsValid returns true if the status is valid
func (s SyncStatus) IsValid() bool {
	switch s {
	case SyncStatusSuccess, SyncStatusPartial, SyncStatusFailed, SyncStatusNotConnected:
		return true
	default:
		return false
	}
}

// String returns the string representation of SyncStatus
func (s SyncStatus) String() string {
	return string(s)
}

// SyncReport summarizes one sync run of a store
type SyncReport struct {
	StoreID uuid.UUID
	Status  SyncStatus
	// Fetched is every order returned by the platform. Nil when not connected.
	Fetched []RemoteOrder
	// Acknowledged holds the entries of every batch the platform answered. Nil when not connected.
	Acknowledged []AckEntry
	// Confirmed and Deleted count the per-order acknowledgment outcomes
	Confirmed int
	Deleted   int
	// WriteFailures lists remote order IDs that could not be written
	WriteFailures []string
	// MissingItems lists remote order IDs flagged with unknown products
	MissingItems []string
	StartedAt    time.Time
	FinishedAt   time.Time
}

// Duration returns how long the run took
func (r *SyncReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
