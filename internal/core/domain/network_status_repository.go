package domain

import "context"

// NetworkStatusRepository is the abstraction for any kind of database
// intended to persist per-network block cursors.
type NetworkStatusRepository interface {
	// GetStatus returns the network's cursor, or nil if no block has been
	// observed yet.
	GetStatus(ctx context.Context, networkId string) (*NetworkStatus, error)
	// UpsertStatus records the latest observed block of a network.
	UpsertStatus(ctx context.Context, status NetworkStatus) error
}
