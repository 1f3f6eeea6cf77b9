package crawler

const (
	QuitSignal EventType = iota
	NetworkBlock
	TransactionMined
)

type EventType int

// Event is the common interface implemented by every event the crawler
// publishes on its event channel.
type Event interface {
	Type() EventType
}

func (et EventType) String() string {
	switch et {
	case QuitSignal:
		return "QuitSignal"
	case NetworkBlock:
		return "NetworkBlock"
	case TransactionMined:
		return "TransactionMined"
	default:
		return "Unknown"
	}
}

type QuitEvent struct{}

func (q QuitEvent) Type() EventType {
	return QuitSignal
}

// BlockEvent is emitted whenever the observed head of a network advances.
type BlockEvent struct {
	NetworkId   string
	BlockNumber uint64
}

func (b BlockEvent) Type() EventType {
	return NetworkBlock
}

// TransactionEvent is emitted once a watched transaction is seen included in
// a block.
type TransactionEvent struct {
	TxId        []byte
	BlockNumber uint64
}

func (t TransactionEvent) Type() EventType {
	return TransactionMined
}
