package chord

import (
	"context"

	"go.miragespace.co/chord/rpc"
	"go.miragespace.co/chord/spec/chord"
	rpcSpec "go.miragespace.co/chord/spec/rpc"

	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// RemoteNode is a chord.PeerHandle backed by a pooled gRPC channel
type RemoteNode struct {
	peer    chord.Peer
	logger  *zap.Logger
	channel *rpc.Channel
	client  rpcSpec.NodeServiceClient
	closed  *atomic.Bool
}

var _ chord.PeerHandle = (*RemoteNode)(nil)

func NewRemoteNode(logger *zap.Logger, peer chord.Peer, channel *rpc.Channel) *RemoteNode {
	return &RemoteNode{
		peer:    peer,
		logger:  logger,
		channel: channel,
		client:  rpcSpec.NewNodeServiceClient(channel.Conn()),
		closed:  atomic.NewBool(false),
	}
}

func (n *RemoteNode) ID() uint64 {
	return n.peer.ID
}

func (n *RemoteNode) Identity() chord.Peer {
	return n.peer
}

func (n *RemoteNode) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, n.channel.RequestTimeout())
	defer cancel()

	_, err := n.client.Ping(ctx, &rpcSpec.PingRequest{
		NodeId: rpcSpec.FormatID(n.peer.ID),
	})
	if err != nil {
		return rpcSpec.UnwrapError(n.peer.ID, err)
	}
	return nil
}

func (n *RemoteNode) FindSuccessor(ctx context.Context, key uint64) (chord.Lookup, error) {
	ctx, cancel := context.WithTimeout(ctx, n.channel.RequestTimeout())
	defer cancel()

	resp, err := n.client.FindSuccessor(ctx, &rpcSpec.FindSuccessorRequest{
		NodeId: rpcSpec.FormatID(n.peer.ID),
		Id:     rpcSpec.FormatID(key),
	})
	if err != nil {
		return chord.Lookup{}, rpcSpec.UnwrapError(n.peer.ID, err)
	}

	var (
		kind chord.LookupKind
		info *rpcSpec.PeerInfo
	)
	switch {
	case resp.GetSuccessor() != nil:
		kind, info = chord.Successor, resp.GetSuccessor()
	case resp.GetClosestPrecedingNode() != nil:
		kind, info = chord.ClosestPrecedingNode, resp.GetClosestPrecedingNode()
	default:
		return chord.Lookup{}, chord.InvalidResponse(n.peer.ID)
	}

	node, err := rpcSpec.PeerFromInfo(info)
	if err != nil {
		return chord.Lookup{}, err
	}
	return chord.Lookup{Kind: kind, Node: node}, nil
}

func (n *RemoteNode) GetPredecessor(ctx context.Context) (chord.Peer, error) {
	ctx, cancel := context.WithTimeout(ctx, n.channel.RequestTimeout())
	defer cancel()

	resp, err := n.client.GetPredecessor(ctx, &rpcSpec.GetPredecessorRequest{
		NodeId: rpcSpec.FormatID(n.peer.ID),
	})
	if err != nil {
		return chord.Peer{}, rpcSpec.UnwrapError(n.peer.ID, err)
	}
	if resp.GetNode() == nil {
		return chord.Peer{}, chord.InvalidResponse(n.peer.ID)
	}
	return rpcSpec.PeerFromInfo(resp.GetNode())
}

// Close releases the channel. Calls after the first are no-ops.
func (n *RemoteNode) Close() error {
	if !n.closed.CompareAndSwap(false, true) {
		return nil
	}
	n.channel.Release()
	return nil
}
