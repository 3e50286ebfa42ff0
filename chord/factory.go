package chord

import (
	"go.miragespace.co/chord/rpc"
	"go.miragespace.co/chord/spec/chord"

	"go.uber.org/zap"
)

// Factory hands out RemoteNodes over channels from a shared pool. One
// Factory may serve every virtual node in the process.
type Factory struct {
	Logger *zap.Logger
	Pool   *rpc.Pool
}

var _ chord.HandleFactory = (*Factory)(nil)

func (f *Factory) CreatePeerHandle(peer chord.Peer) (chord.PeerHandle, error) {
	channel, err := f.Pool.Acquire(peer)
	if err != nil {
		return nil, err
	}
	return NewRemoteNode(f.Logger, peer, channel), nil
}
