package server

import (
	"net/netip"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "nodes.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestConfigLoad(t *testing.T) {
	as := require.New(t)

	path := writeConfig(t, `
version: 1
advertise: 127.0.0.1:7946
fingerSize: 8
poolSize: 16
client:
  connectTimeout: 2s
  requestTimeout: 4s
liveness:
  size: 32
  ttl: 10s
nodes:
  - id: 10
    predecessors:
      - id: 5
        host: 127.0.0.1
        port: 7947
    successors:
      - id: 20
        host: 127.0.0.1
        port: 7947
    fingers:
      - index: 0
        id: 20
        host: 127.0.0.1
        port: 7947
      - index: 6
        id: 80
        host: "::1"
        port: 7948
`)
	cfg, err := NewConfig(path)
	as.NoError(err)

	ap, ok := cfg.AdvertiseAddr()
	as.True(ok)
	as.Equal(netip.MustParseAddrPort("127.0.0.1:7946"), ap)
	as.Equal(8, cfg.FingerSize)
	as.Equal(16, cfg.PoolSize)
	as.Equal(2*time.Second, cfg.Client.ConnectTimeout)
	as.Equal(4*time.Second, cfg.Client.RequestTimeout)
	as.Zero(cfg.Client.KeepAliveTimeout)
	as.Equal(32, cfg.Liveness.Size)
	as.Equal(10*time.Second, cfg.Liveness.TTL)

	as.Len(cfg.Nodes, 1)
	ft, err := cfg.Nodes[0].FingerTable(cfg.FingerSize)
	as.NoError(err)
	as.Equal(8, ft.Size())
	as.Len(ft.Predecessors, 1)
	as.EqualValues(5, ft.Predecessors[0].ID)
	as.Len(ft.Successors, 1)
	as.NotNil(ft.Entries[0])
	as.EqualValues(20, ft.Entries[0].ID)
	as.NotNil(ft.Entries[6])
	as.Equal(netip.IPv6Loopback(), ft.Entries[6].Host)
	as.EqualValues(7948, ft.Entries[6].Port)
	for _, k := range []int{1, 2, 3, 4, 5, 7} {
		as.Nil(ft.Entries[k])
	}
}

func TestConfigInvalid(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{
			name:    "wrong version",
			content: "version: 2\n",
		},
		{
			name:    "finger size too large",
			content: "version: 1\nfingerSize: 65\n",
		},
		{
			name:    "bad advertise",
			content: "version: 1\nadvertise: localhost\n",
		},
		{
			name: "duplicated node",
			content: `
version: 1
nodes:
  - id: 1
  - id: 1
`,
		},
		{
			name: "finger out of range",
			content: `
version: 1
fingerSize: 4
nodes:
  - id: 1
    fingers:
      - index: 4
        id: 9
        host: 127.0.0.1
        port: 1
`,
		},
		{
			name: "finger points at owner",
			content: `
version: 1
nodes:
  - id: 1
    fingers:
      - index: 0
        id: 1
        host: 127.0.0.1
        port: 1
`,
		},
		{
			name: "successor without host",
			content: `
version: 1
nodes:
  - id: 1
    successors:
      - id: 2
        port: 1
`,
		},
		{
			name:    "malformed yaml",
			content: "version: [1\n",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewConfig(writeConfig(t, tc.content))
			require.Error(t, err)
		})
	}
}

func TestConfigMissingFile(t *testing.T) {
	_, err := NewConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
