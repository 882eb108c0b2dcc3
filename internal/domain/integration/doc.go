// Package integration contains the boundary with the remote commerce platform.
//
// Key concepts:
//   - CommercePlatform: port for listing, acknowledging, shipping, cancelling and refunding orders
//   - RemoteOrder: value object for an order as the platform reports it
//   - CredentialLookup: port resolving a store's channel ID and access token
//   - SyncReport: outcome of one per-store sync run
//
// Design Pattern: Ports & Adapters
//   - Ports (interfaces) are defined here in the domain layer
//   - Adapters (implementations) are in the infrastructure layer
package integration
