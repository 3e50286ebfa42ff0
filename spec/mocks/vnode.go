package mocks

import (
	"context"

	"go.miragespace.co/chord/spec/chord"

	"github.com/stretchr/testify/mock"
)

type VNode struct {
	mock.Mock
}

var _ chord.PeerHandle = (*VNode)(nil)

func (n *VNode) ID() uint64 {
	args := n.Called()
	return args.Get(0).(uint64)
}

func (n *VNode) Identity() chord.Peer {
	args := n.Called()
	return args.Get(0).(chord.Peer)
}

func (n *VNode) Ping(ctx context.Context) error {
	args := n.Called(ctx)
	return args.Error(0)
}

func (n *VNode) FindSuccessor(ctx context.Context, key uint64) (chord.Lookup, error) {
	args := n.Called(ctx, key)
	return args.Get(0).(chord.Lookup), args.Error(1)
}

func (n *VNode) GetPredecessor(ctx context.Context) (chord.Peer, error) {
	args := n.Called(ctx)
	return args.Get(0).(chord.Peer), args.Error(1)
}

func (n *VNode) Close() error {
	args := n.Called()
	return args.Error(0)
}
