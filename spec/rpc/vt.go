package rpc

// VTMarshaler is implemented by every message on the wire
type VTMarshaler interface {
	MarshalVT() (dAtA []byte, err error)
	UnmarshalVT(dAtA []byte) error
	SizeVT() int
}
