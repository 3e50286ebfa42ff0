package rpc

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"google.golang.org/protobuf/encoding/protowire"
)

// Wire messages of chord.NodeService, encoded with the protobuf wire format:
//
//	message PeerInfo { string id = 1; string ip = 2; uint32 port = 3; }
//	message FindSuccessorRequest { string node_id = 1; string id = 2; }
//	message FindSuccessorResponse {
//	  oneof result { PeerInfo successor = 1; PeerInfo closest_preceding_node = 2; }
//	}
//	message GetPredecessorRequest { string node_id = 1; }
//	message GetPredecessorResponse { PeerInfo node = 1; }
//	message PingRequest { string node_id = 1; }
//	message PingResponse {}

var (
	ErrWireType    = errors.New("rpc: unexpected wire type")
	ErrBothOneof   = errors.New("rpc: both successor and closest_preceding_node are set")
	ErrInvalidUTF8 = errors.New("rpc: string field contains invalid UTF-8")
)

type PeerInfo struct {
	Id   string
	Ip   string
	Port uint32
}

type FindSuccessorRequest struct {
	NodeId string
	Id     string
}

// FindSuccessorResponse carries exactly one of Successor or ClosestPrecedingNode
type FindSuccessorResponse struct {
	Successor            *PeerInfo
	ClosestPrecedingNode *PeerInfo
}

type GetPredecessorRequest struct {
	NodeId string
}

type GetPredecessorResponse struct {
	Node *PeerInfo
}

type PingRequest struct {
	NodeId string
}

type PingResponse struct{}

var (
	_ VTMarshaler = (*PeerInfo)(nil)
	_ VTMarshaler = (*FindSuccessorRequest)(nil)
	_ VTMarshaler = (*FindSuccessorResponse)(nil)
	_ VTMarshaler = (*GetPredecessorRequest)(nil)
	_ VTMarshaler = (*GetPredecessorResponse)(nil)
	_ VTMarshaler = (*PingRequest)(nil)
	_ VTMarshaler = (*PingResponse)(nil)
)

func (m *PeerInfo) GetId() string {
	if m == nil {
		return ""
	}
	return m.Id
}

func (m *PeerInfo) GetIp() string {
	if m == nil {
		return ""
	}
	return m.Ip
}

func (m *PeerInfo) GetPort() uint32 {
	if m == nil {
		return 0
	}
	return m.Port
}

func (m *PeerInfo) SizeVT() int {
	if m == nil {
		return 0
	}
	return sizeString(1, m.Id) + sizeString(2, m.Ip) + sizeUint32(3, m.Port)
}

func (m *PeerInfo) appendVT(b []byte) []byte {
	b = appendString(b, 1, m.Id)
	b = appendString(b, 2, m.Ip)
	b = appendUint32(b, 3, m.Port)
	return b
}

func (m *PeerInfo) MarshalVT() ([]byte, error) {
	return m.appendVT(make([]byte, 0, m.SizeVT())), nil
}

func (m *PeerInfo) UnmarshalVT(b []byte) error {
	*m = PeerInfo{}
	return unmarshalFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeString(typ, b, &m.Id)
		case 2:
			return consumeString(typ, b, &m.Ip)
		case 3:
			return consumeUint32(typ, b, &m.Port)
		}
		return 0, nil
	})
}

func (m *FindSuccessorRequest) GetNodeId() string {
	if m == nil {
		return ""
	}
	return m.NodeId
}

func (m *FindSuccessorRequest) GetId() string {
	if m == nil {
		return ""
	}
	return m.Id
}

func (m *FindSuccessorRequest) SizeVT() int {
	if m == nil {
		return 0
	}
	return sizeString(1, m.NodeId) + sizeString(2, m.Id)
}

func (m *FindSuccessorRequest) MarshalVT() ([]byte, error) {
	b := make([]byte, 0, m.SizeVT())
	b = appendString(b, 1, m.NodeId)
	b = appendString(b, 2, m.Id)
	return b, nil
}

func (m *FindSuccessorRequest) UnmarshalVT(b []byte) error {
	*m = FindSuccessorRequest{}
	return unmarshalFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeString(typ, b, &m.NodeId)
		case 2:
			return consumeString(typ, b, &m.Id)
		}
		return 0, nil
	})
}

func (m *FindSuccessorResponse) GetSuccessor() *PeerInfo {
	if m == nil {
		return nil
	}
	return m.Successor
}

func (m *FindSuccessorResponse) GetClosestPrecedingNode() *PeerInfo {
	if m == nil {
		return nil
	}
	return m.ClosestPrecedingNode
}

func (m *FindSuccessorResponse) SizeVT() int {
	if m == nil {
		return 0
	}
	return sizeMessage(1, m.Successor) + sizeMessage(2, m.ClosestPrecedingNode)
}

func (m *FindSuccessorResponse) MarshalVT() ([]byte, error) {
	if m.Successor != nil && m.ClosestPrecedingNode != nil {
		return nil, ErrBothOneof
	}
	b := make([]byte, 0, m.SizeVT())
	b = appendMessage(b, 1, m.Successor)
	b = appendMessage(b, 2, m.ClosestPrecedingNode)
	return b, nil
}

func (m *FindSuccessorResponse) UnmarshalVT(b []byte) error {
	*m = FindSuccessorResponse{}
	return unmarshalFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		// last member of the oneof on the wire wins
		switch num {
		case 1:
			m.ClosestPrecedingNode = nil
			m.Successor = &PeerInfo{}
			return consumeMessage(typ, b, m.Successor)
		case 2:
			m.Successor = nil
			m.ClosestPrecedingNode = &PeerInfo{}
			return consumeMessage(typ, b, m.ClosestPrecedingNode)
		}
		return 0, nil
	})
}

func (m *GetPredecessorRequest) GetNodeId() string {
	if m == nil {
		return ""
	}
	return m.NodeId
}

func (m *GetPredecessorRequest) SizeVT() int {
	if m == nil {
		return 0
	}
	return sizeString(1, m.NodeId)
}

func (m *GetPredecessorRequest) MarshalVT() ([]byte, error) {
	return appendString(make([]byte, 0, m.SizeVT()), 1, m.NodeId), nil
}

func (m *GetPredecessorRequest) UnmarshalVT(b []byte) error {
	*m = GetPredecessorRequest{}
	return unmarshalFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == 1 {
			return consumeString(typ, b, &m.NodeId)
		}
		return 0, nil
	})
}

func (m *GetPredecessorResponse) GetNode() *PeerInfo {
	if m == nil {
		return nil
	}
	return m.Node
}

func (m *GetPredecessorResponse) SizeVT() int {
	if m == nil {
		return 0
	}
	return sizeMessage(1, m.Node)
}

func (m *GetPredecessorResponse) MarshalVT() ([]byte, error) {
	return appendMessage(make([]byte, 0, m.SizeVT()), 1, m.Node), nil
}

func (m *GetPredecessorResponse) UnmarshalVT(b []byte) error {
	*m = GetPredecessorResponse{}
	return unmarshalFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == 1 {
			m.Node = &PeerInfo{}
			return consumeMessage(typ, b, m.Node)
		}
		return 0, nil
	})
}

func (m *PingRequest) GetNodeId() string {
	if m == nil {
		return ""
	}
	return m.NodeId
}

func (m *PingRequest) SizeVT() int {
	if m == nil {
		return 0
	}
	return sizeString(1, m.NodeId)
}

func (m *PingRequest) MarshalVT() ([]byte, error) {
	return appendString(make([]byte, 0, m.SizeVT()), 1, m.NodeId), nil
}

func (m *PingRequest) UnmarshalVT(b []byte) error {
	*m = PingRequest{}
	return unmarshalFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == 1 {
			return consumeString(typ, b, &m.NodeId)
		}
		return 0, nil
	})
}

func (m *PingResponse) SizeVT() int {
	return 0
}

func (m *PingResponse) MarshalVT() ([]byte, error) {
	return []byte{}, nil
}

func (m *PingResponse) UnmarshalVT(b []byte) error {
	return unmarshalFields(b, func(protowire.Number, protowire.Type, []byte) (int, error) {
		return 0, nil
	})
}

func sizeString(num protowire.Number, s string) int {
	if s == "" {
		return 0
	}
	return protowire.SizeTag(num) + protowire.SizeBytes(len(s))
}

func sizeUint32(num protowire.Number, v uint32) int {
	if v == 0 {
		return 0
	}
	return protowire.SizeTag(num) + protowire.SizeVarint(uint64(v))
}

// a present but empty message is still encoded, so oneof presence survives
func sizeMessage(num protowire.Number, m *PeerInfo) int {
	if m == nil {
		return 0
	}
	return protowire.SizeTag(num) + protowire.SizeBytes(m.SizeVT())
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendUint32(b []byte, num protowire.Number, v uint32) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(v))
}

func appendMessage(b []byte, num protowire.Number, m *PeerInfo) []byte {
	if m == nil {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	b = protowire.AppendVarint(b, uint64(m.SizeVT()))
	return m.appendVT(b)
}

// unmarshalFields walks every field in b. The callback returns the number of
// bytes it consumed, or 0 to have an unknown field skipped.
func unmarshalFields(b []byte, field func(num protowire.Number, typ protowire.Type, b []byte) (int, error)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		n, err := field(num, typ, b)
		if err != nil {
			return err
		}
		if n == 0 {
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return protowire.ParseError(n)
			}
		}
		b = b[n:]
	}
	return nil
}

func consumeString(typ protowire.Type, b []byte, dst *string) (int, error) {
	if typ != protowire.BytesType {
		return 0, fmt.Errorf("%w: %d", ErrWireType, typ)
	}
	v, n := protowire.ConsumeString(b)
	if n < 0 {
		return 0, protowire.ParseError(n)
	}
	if !utf8.ValidString(v) {
		return 0, ErrInvalidUTF8
	}
	*dst = v
	return n, nil
}

func consumeUint32(typ protowire.Type, b []byte, dst *uint32) (int, error) {
	if typ != protowire.VarintType {
		return 0, fmt.Errorf("%w: %d", ErrWireType, typ)
	}
	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return 0, protowire.ParseError(n)
	}
	*dst = uint32(v)
	return n, nil
}

func consumeMessage(typ protowire.Type, b []byte, dst *PeerInfo) (int, error) {
	if typ != protowire.BytesType {
		return 0, fmt.Errorf("%w: %d", ErrWireType, typ)
	}
	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return 0, protowire.ParseError(n)
	}
	if err := dst.UnmarshalVT(v); err != nil {
		return 0, err
	}
	return n, nil
}
