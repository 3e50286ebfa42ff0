package chord

import (
	"context"
	"net"
	"testing"

	"go.miragespace.co/chord/rpc"
	"go.miragespace.co/chord/spec/chord"
	rpcSpec "go.miragespace.co/chord/spec/rpc"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

type testCluster struct {
	registry *Registry
	pool     *rpc.Pool
	factory  *Factory
	nodes    map[uint64]*LocalNode
	lis      *bufconn.Listener
	server   *grpc.Server
}

func (c *testCluster) dial(t *testing.T) *grpc.ClientConn {
	conn, err := grpc.NewClient("passthrough:///bufnet",
		append(c.pool.DialOptions, grpc.WithTransportCredentials(insecure.NewCredentials()))...,
	)
	require.NoError(t, err)
	return conn
}

func (c *testCluster) Stop() {
	for _, n := range c.nodes {
		n.Liveness().Wait()
	}
	c.pool.Close()
	c.server.Stop()
}

// newTestCluster hosts every node on one in-memory server; peers reach each
// other through the pool as if they were remote.
func newTestCluster(t *testing.T, as *require.Assertions, ids ...uint64) *testCluster {
	logger := zaptest.NewLogger(t, zaptest.WrapOptions(zap.AddCaller()))

	lis := bufconn.Listen(1 << 20)
	pool := rpc.NewPool(rpc.PoolConfig{
		Logger: logger,
		Size:   16,
		Client: rpc.DefaultClientConfig(),
		DialOptions: []grpc.DialOption{
			grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
				return lis.DialContext(ctx)
			}),
		},
	})
	factory := &Factory{
		Logger: logger,
		Pool:   pool,
	}

	nodes := make(map[uint64]*LocalNode)
	for _, id := range ids {
		nodes[id] = NewLocalNode(devConfig(t, id, factory))
	}
	registry := NewRegistry()
	as.NoError(registry.Initialize(nodes))

	server := grpc.NewServer(rpcSpec.ServerOptions()...)
	rpcSpec.RegisterNodeServiceServer(server, &Server{
		Logger:   logger,
		Registry: registry,
	})
	go server.Serve(lis)

	return &testCluster{
		registry: registry,
		pool:     pool,
		factory:  factory,
		nodes:    nodes,
		lis:      lis,
		server:   server,
	}
}

// newTestRing builds 10 -> 20 -> 30 -> 10
func newTestRing(t *testing.T, as *require.Assertions) *testCluster {
	c := newTestCluster(t, as, 10, 20, 30)
	as.NoError(c.nodes[10].SetFingerTable(fingerTable(chord.MaxFingerEntries,
		[]chord.Peer{testPeer(30)},
		[]chord.Peer{testPeer(20)},
		map[int]chord.Peer{0: testPeer(20), 4: testPeer(30)},
	)))
	as.NoError(c.nodes[20].SetFingerTable(fingerTable(chord.MaxFingerEntries,
		[]chord.Peer{testPeer(10)},
		[]chord.Peer{testPeer(30)},
		map[int]chord.Peer{0: testPeer(30)},
	)))
	as.NoError(c.nodes[30].SetFingerTable(fingerTable(chord.MaxFingerEntries,
		[]chord.Peer{testPeer(20)},
		[]chord.Peer{testPeer(10)},
		map[int]chord.Peer{0: testPeer(10)},
	)))
	return c
}

func TestRemoteFindSuccessor(t *testing.T) {
	as := require.New(t)

	c := newTestRing(t, as)
	defer c.Stop()

	handle, err := c.factory.CreatePeerHandle(testPeer(10))
	as.NoError(err)
	defer handle.Close()

	as.NoError(handle.Ping(context.Background()))

	result, err := handle.FindSuccessor(context.Background(), 15)
	as.NoError(err)
	as.Equal(chord.Lookup{Kind: chord.Successor, Node: testPeer(20)}, result)

	result, err = handle.FindSuccessor(context.Background(), 25)
	as.NoError(err)
	as.Equal(chord.Lookup{Kind: chord.ClosestPrecedingNode, Node: testPeer(20)}, result)

	status, ok := c.nodes[10].Liveness().Peek(testPeer(20))
	as.True(ok)
	as.Equal(chord.Alive, status)
}

func TestRemoteGetPredecessor(t *testing.T) {
	as := require.New(t)

	c := newTestRing(t, as)
	defer c.Stop()

	handle, err := c.factory.CreatePeerHandle(testPeer(20))
	as.NoError(err)
	defer handle.Close()

	pre, err := handle.GetPredecessor(context.Background())
	as.NoError(err)
	as.Equal(testPeer(10), pre)
}

func TestRemoteErrors(t *testing.T) {
	as := require.New(t)

	c := newTestCluster(t, as, 10, 20)
	defer c.Stop()

	// 10 only knows 99, which nobody hosts
	as.NoError(c.nodes[10].SetFingerTable(fingerTable(chord.MaxFingerEntries,
		[]chord.Peer{testPeer(99)},
		[]chord.Peer{testPeer(99)},
		nil,
	)))

	missing, err := c.factory.CreatePeerHandle(testPeer(99))
	as.NoError(err)
	defer missing.Close()

	err = missing.Ping(context.Background())
	as.ErrorIs(err, chord.ErrPeerCallFailed)
	as.ErrorIs(err, chord.ErrNodeNotFound)

	_, err = missing.FindSuccessor(context.Background(), 1)
	as.ErrorIs(err, chord.ErrNodeNotFound)
	as.Equal(codes.Internal, rpcSpec.ErrorCode(err))

	handle, err := c.factory.CreatePeerHandle(testPeer(10))
	as.NoError(err)
	defer handle.Close()

	_, err = handle.FindSuccessor(context.Background(), 50)
	as.ErrorIs(err, chord.ErrPeerCallFailed)
	as.ErrorIs(err, chord.ErrNoViableCandidate)
	as.True(chord.ErrorIsRetryable(err))

	_, err = handle.GetPredecessor(context.Background())
	as.ErrorIs(err, chord.ErrNoViableCandidate)

	status, ok := c.nodes[10].Liveness().Peek(testPeer(99))
	as.True(ok)
	as.Equal(chord.Dead, status)

	// the handle is released once, later calls are no-ops
	as.NoError(handle.Close())
	as.NoError(handle.Close())
}

func TestServerStatusCodes(t *testing.T) {
	as := require.New(t)

	c := newTestCluster(t, as, 10)
	defer c.Stop()

	conn := c.dial(t)
	defer conn.Close()

	client := rpcSpec.NewNodeServiceClient(conn)

	_, err := client.FindSuccessor(context.Background(), &rpcSpec.FindSuccessorRequest{NodeId: "ten", Id: "1"})
	as.Equal(codes.InvalidArgument, status.Code(err))
	as.ErrorIs(chord.ErrorMapper(err), chord.ErrInvalidIdString)

	_, err = client.FindSuccessor(context.Background(), &rpcSpec.FindSuccessorRequest{NodeId: "10", Id: "-1"})
	as.Equal(codes.InvalidArgument, status.Code(err))

	_, err = client.GetPredecessor(context.Background(), &rpcSpec.GetPredecessorRequest{NodeId: "11"})
	as.Equal(codes.NotFound, status.Code(err))
	as.ErrorIs(chord.ErrorMapper(err), chord.ErrNodeNotFound)

	_, err = client.FindSuccessor(context.Background(), &rpcSpec.FindSuccessorRequest{NodeId: "10", Id: "1"})
	as.Equal(codes.Unknown, status.Code(err))
	as.ErrorIs(chord.ErrorMapper(err), chord.ErrNoViableCandidate)

	_, err = client.Ping(context.Background(), &rpcSpec.PingRequest{NodeId: "10"})
	as.NoError(err)
}
