package rpc

import (
	"fmt"

	"go.miragespace.co/chord/timing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/keepalive"
)

// Codec encodes VTMarshaler messages. Its output is plain protobuf, so it
// registers under the "proto" content subtype.
type Codec struct{}

func (Codec) Marshal(v any) ([]byte, error) {
	m, ok := v.(VTMarshaler)
	if !ok {
		return nil, fmt.Errorf("rpc: cannot marshal %T", v)
	}
	return m.MarshalVT()
}

func (Codec) Unmarshal(data []byte, v any) error {
	m, ok := v.(VTMarshaler)
	if !ok {
		return fmt.Errorf("rpc: cannot unmarshal into %T", v)
	}
	return m.UnmarshalVT(data)
}

func (Codec) Name() string {
	return "proto"
}

// ServerOptions returns the options a grpc.Server needs to speak NodeService
func ServerOptions() []grpc.ServerOption {
	return []grpc.ServerOption{
		grpc.ForceServerCodec(Codec{}),
		// pooled clients ping idle connections
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             timing.ChordKeepAliveInterval / 2,
			PermitWithoutStream: true,
		}),
	}
}
