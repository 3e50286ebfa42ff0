package rpc

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"go.miragespace.co/chord/spec/chord"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestErrorCode(t *testing.T) {
	tables := []struct {
		err  error
		code codes.Code
	}{
		{err: chord.InvalidResponse(3), code: codes.InvalidArgument},
		{err: chord.PeerCallFailed(3, status.Error(codes.Unavailable, "down")), code: codes.Internal},
		{err: chord.PeerCallFailed(3, chord.NodeNotFound(3)), code: codes.Internal},
		{err: chord.ConversionFailed("bad integer %q", "x"), code: codes.Internal},
		{err: chord.ErrNoViableCandidate, code: codes.Unknown},
		{err: chord.NodeNotFound(9), code: codes.NotFound},
		{err: chord.InvalidIdString("x", errors.New("syntax")), code: codes.InvalidArgument},
		{err: context.Canceled, code: codes.Canceled},
		{err: fmt.Errorf("waiting: %w", context.DeadlineExceeded), code: codes.DeadlineExceeded},
		{err: errors.New("anything"), code: codes.Unknown},
	}

	for _, table := range tables {
		t.Run(table.err.Error(), func(t *testing.T) {
			as := require.New(t)
			wrapped := WrapError(table.err)
			as.Equal(table.code, status.Code(wrapped))
			as.Equal(table.err.Error(), status.Convert(wrapped).Message())
		})
	}

	require.Nil(t, WrapError(nil))
}

func TestUnwrapError(t *testing.T) {
	as := require.New(t)

	remote := WrapError(chord.NodeNotFound(5))
	err := UnwrapError(5, remote)
	as.ErrorIs(err, chord.ErrPeerCallFailed)
	as.ErrorIs(err, chord.ErrNodeNotFound)
	as.Equal(codes.Internal, ErrorCode(err))

	remote = WrapError(chord.ErrNoViableCandidate)
	err = UnwrapError(5, remote)
	as.ErrorIs(err, chord.ErrNoViableCandidate)
	as.True(chord.ErrorIsRetryable(err))

	transport := status.Error(codes.Unavailable, "connection refused")
	err = UnwrapError(5, transport)
	as.ErrorIs(err, chord.ErrPeerCallFailed)
	as.Equal(codes.Unavailable, status.Code(err))
	as.False(chord.ErrorIsRetryable(err))
}
