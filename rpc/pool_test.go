package rpc

import (
	"net/netip"
	"testing"
	"time"

	"go.miragespace.co/chord/spec/chord"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc/connectivity"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testPool(t *testing.T, size int) *Pool {
	return NewPool(PoolConfig{
		Logger: zaptest.NewLogger(t, zaptest.WrapOptions(zap.AddCaller())),
		Size:   size,
		Client: DefaultClientConfig(),
	})
}

// 192.0.2.0/24 is reserved for documentation, nothing answers there
func unreachable(id uint64, port uint16) chord.Peer {
	return chord.Peer{ID: id, Host: netip.MustParseAddr("192.0.2.1"), Port: port}
}

func TestPoolKeyedByID(t *testing.T) {
	as := require.New(t)

	p := testPool(t, DefaultPoolSize)
	defer p.Close()

	start := time.Now()
	a, err := p.Acquire(unreachable(1, 7000))
	as.NoError(err)
	defer a.Release()
	// construction is lazy and never waits on the network
	as.Less(time.Since(start), time.Second)
	as.Equal(connectivity.Idle, a.conn.GetState())

	other := unreachable(1, 8000)
	other.Host = netip.MustParseAddr("192.0.2.99")
	b, err := p.Acquire(other)
	as.NoError(err)
	defer b.Release()

	as.Same(a, b)
	as.Equal(uint16(7000), b.Peer().Port)
	as.Equal(1, p.Len())

	c, err := p.Acquire(unreachable(2, 7000))
	as.NoError(err)
	defer c.Release()
	as.NotSame(a, c)
	as.Equal(2, p.Len())

	created, open := p.Stats()
	as.Equal(uint64(2), created)
	as.Equal(int64(2), open)
}

func TestPoolEvictionKeepsHolders(t *testing.T) {
	as := require.New(t)

	p := testPool(t, 2)
	defer p.Close()

	first, err := p.Acquire(unreachable(1, 7000))
	as.NoError(err)

	for id := uint64(2); id <= 3; id++ {
		ch, err := p.Acquire(unreachable(id, 7000))
		as.NoError(err)
		ch.Release()
	}
	as.Equal(2, p.Len())

	// evicted from the pool, but still usable by its holder
	as.NotEqual(connectivity.Shutdown, first.conn.GetState())

	again, err := p.Acquire(unreachable(1, 7000))
	as.NoError(err)
	as.NotSame(first, again)
	again.Release()

	first.Release()
	as.Equal(connectivity.Shutdown, first.conn.GetState())
}

func TestPoolEvictsLeastRecentlyUsed(t *testing.T) {
	as := require.New(t)

	p := testPool(t, 2)
	defer p.Close()

	one, err := p.Acquire(unreachable(1, 7000))
	as.NoError(err)
	one.Release()

	two, err := p.Acquire(unreachable(2, 7000))
	as.NoError(err)
	two.Release()

	// touch 1 so that 2 becomes the oldest
	touched, err := p.Acquire(unreachable(1, 7000))
	as.NoError(err)
	as.Same(one, touched)
	touched.Release()

	three, err := p.Acquire(unreachable(3, 7000))
	as.NoError(err)
	three.Release()

	as.Equal(connectivity.Shutdown, two.conn.GetState())
	as.NotEqual(connectivity.Shutdown, one.conn.GetState())
}

func TestPoolConfigCapturedAtCreation(t *testing.T) {
	as := require.New(t)

	p := testPool(t, 4)
	defer p.Close()

	a, err := p.Acquire(unreachable(1, 7000))
	as.NoError(err)
	defer a.Release()

	p.Client.RequestTimeout = time.Millisecond * 500

	b, err := p.Acquire(unreachable(2, 7000))
	as.NoError(err)
	defer b.Release()

	as.Equal(DefaultClientConfig().RequestTimeout, a.RequestTimeout())
	as.Equal(time.Millisecond*500, b.RequestTimeout())
}

func TestPoolClose(t *testing.T) {
	as := require.New(t)

	p := testPool(t, 4)

	held, err := p.Acquire(unreachable(1, 7000))
	as.NoError(err)

	p.Close()
	p.Close()

	_, err = p.Acquire(unreachable(2, 7000))
	as.ErrorIs(err, ErrPoolClosed)

	as.NotEqual(connectivity.Shutdown, held.conn.GetState())
	held.Release()
	as.Equal(connectivity.Shutdown, held.conn.GetState())

	_, open := p.Stats()
	as.Equal(int64(0), open)
}

func TestPoolConfigValidate(t *testing.T) {
	as := require.New(t)

	var nilConf *PoolConfig
	as.Error(nilConf.Validate())
	as.Error((&PoolConfig{Size: 1, Client: DefaultClientConfig()}).Validate())

	logger := zaptest.NewLogger(t)
	as.Error((&PoolConfig{Logger: logger, Client: DefaultClientConfig()}).Validate())
	as.Error((&PoolConfig{Logger: logger, Size: 1}).Validate())
	as.NoError((&PoolConfig{Logger: logger, Size: 1, Client: DefaultClientConfig()}).Validate())
}
