package rpc

import (
	"context"
	"errors"
	"fmt"

	"go.miragespace.co/chord/spec/chord"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func ErrorCode(err error) codes.Code {
	switch {
	case err == nil:
		return codes.OK
	// peer failures may wrap a remote sentinel, so they are matched first
	case errors.Is(err, chord.ErrPeerCallFailed):
		return codes.Internal
	case errors.Is(err, chord.ErrConversion):
		return codes.Internal
	case errors.Is(err, chord.ErrInvalidResponse):
		return codes.InvalidArgument
	case errors.Is(err, chord.ErrInvalidIdString):
		return codes.InvalidArgument
	case errors.Is(err, chord.ErrNodeNotFound):
		return codes.NotFound
	case errors.Is(err, chord.ErrNoViableCandidate):
		return codes.Unknown
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	default:
		return codes.Unknown
	}
}

func WrapError(err error) error {
	if err == nil {
		return nil
	}
	return status.Error(ErrorCode(err), err.Error())
}

// UnwrapError turns a failed outbound call into chord.ErrPeerCallFailed,
// mapping the remote message back to a known error when possible.
func UnwrapError(peer uint64, err error) error {
	mapped := chord.ErrorMapper(err)
	if mapped == err {
		return chord.PeerCallFailed(peer, err)
	}
	return chord.PeerCallFailed(peer, fmt.Errorf("%s: %w", status.Code(err), mapped))
}
