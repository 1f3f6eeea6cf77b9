package domain

// NetworkStatus is the per-network cursor of the latest observed block
// height, fed by an external poller. Confirmation depth is derived purely
// from this cursor and the block recorded on each operation.
type NetworkStatus struct {
	NetworkId   string
	BlockNumber uint64
	Timestamp   int64
}
