package chord

import (
	"context"
	"io"
)

type LookupKind int

const (
	// Successor is the final answer of a lookup
	Successor LookupKind = iota
	// ClosestPrecedingNode is the next hop the caller should ask
	ClosestPrecedingNode
)

func (k LookupKind) String() string {
	switch k {
	case Successor:
		return "successor"
	case ClosestPrecedingNode:
		return "closest_preceding_node"
	default:
		return "unknown"
	}
}

// Lookup is the tagged result of FindSuccessor. A ClosestPrecedingNode
// result is a normal step of an iterative lookup, not a failure.
type Lookup struct {
	Kind LookupKind
	Node Peer
}

type Status int

const (
	Dead Status = iota
	Alive
)

func (s Status) String() string {
	if s == Alive {
		return "alive"
	}
	return "dead"
}

type VNode interface {
	ID() uint64
	Identity() Peer

	// Ping succeeds when the node is hosted and reachable. It is the liveness
	// probe, and never checks other peers.
	Ping(ctx context.Context) error

	FindSuccessor(ctx context.Context, key uint64) (Lookup, error)
	GetPredecessor(ctx context.Context) (Peer, error)
}

// PeerHandle is a VNode reached over the network. Close releases the
// underlying transport and must be called exactly once.
type PeerHandle interface {
	VNode
	io.Closer
}

type HandleFactory interface {
	CreatePeerHandle(peer Peer) (PeerHandle, error)
}
