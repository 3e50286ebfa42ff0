package rpc

import (
	"net/netip"
	"testing"

	"go.miragespace.co/chord/spec/chord"

	"github.com/stretchr/testify/require"
)

func TestPeerConversionRoundTrip(t *testing.T) {
	peers := []chord.Peer{
		{ID: 0, Host: netip.MustParseAddr("127.0.0.1"), Port: 0},
		{ID: 20, Host: netip.MustParseAddr("10.1.2.3"), Port: 7000},
		{ID: ^uint64(0), Host: netip.MustParseAddr("2001:db8::1"), Port: 65535},
		{ID: 7, Host: netip.MustParseAddr("::ffff:192.168.0.1"), Port: 80},
		{ID: 9, Host: netip.MustParseAddr("fe80::1%eth0"), Port: 443},
	}

	for _, p := range peers {
		t.Run(p.String(), func(t *testing.T) {
			as := require.New(t)

			info := PeerToInfo(p)
			b, err := info.MarshalVT()
			as.NoError(err)

			decoded := &PeerInfo{}
			as.NoError(decoded.UnmarshalVT(b))

			back, err := PeerFromInfo(decoded)
			as.NoError(err)
			as.Equal(p, back)
		})
	}
}

func TestPeerConversionFailure(t *testing.T) {
	tables := []struct {
		name string
		info *PeerInfo
	}{
		{name: "nil", info: nil},
		{name: "empty id", info: &PeerInfo{Id: "", Ip: "127.0.0.1", Port: 1}},
		{name: "negative id", info: &PeerInfo{Id: "-1", Ip: "127.0.0.1", Port: 1}},
		{name: "overflow id", info: &PeerInfo{Id: "18446744073709551616", Ip: "127.0.0.1", Port: 1}},
		{name: "hostname", info: &PeerInfo{Id: "1", Ip: "localhost", Port: 1}},
		{name: "empty ip", info: &PeerInfo{Id: "1", Ip: "", Port: 1}},
		{name: "port", info: &PeerInfo{Id: "1", Ip: "127.0.0.1", Port: 65536}},
	}

	for _, table := range tables {
		t.Run(table.name, func(t *testing.T) {
			as := require.New(t)
			_, err := PeerFromInfo(table.info)
			as.ErrorIs(err, chord.ErrConversion)
		})
	}
}

func TestParseID(t *testing.T) {
	as := require.New(t)

	id, err := ParseID("18446744073709551615")
	as.NoError(err)
	as.Equal(^uint64(0), id)
	as.Equal("18446744073709551615", FormatID(id))

	_, err = ParseID("0x10")
	as.ErrorIs(err, chord.ErrInvalidIdString)
	as.Contains(err.Error(), "0x10")
}
