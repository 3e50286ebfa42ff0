package mocks

import (
	"go.miragespace.co/chord/spec/chord"

	"github.com/stretchr/testify/mock"
)

type HandleFactory struct {
	mock.Mock
}

var _ chord.HandleFactory = (*HandleFactory)(nil)

func (f *HandleFactory) CreatePeerHandle(peer chord.Peer) (chord.PeerHandle, error) {
	args := f.Called(peer)
	h := args.Get(0)
	e := args.Error(1)
	if h == nil {
		return nil, e
	}
	return h.(chord.PeerHandle), e
}
