package server

import (
	"errors"
	"net"
	"sync"

	"go.uber.org/atomic"
)

// multiListener fans the connections of several listeners into one Accept,
// so a single grpc.Server can serve every configured address.
type multiListener struct {
	listeners []net.Listener
	stop      chan struct{}
	connCh    chan net.Conn
	closeOnce sync.Once
	wg        sync.WaitGroup
	err       atomic.Error
}

func newMultiListener(listeners []net.Listener) net.Listener {
	if len(listeners) == 1 {
		return listeners[0]
	}

	m := &multiListener{
		listeners: listeners,
		stop:      make(chan struct{}),
		connCh:    make(chan net.Conn, len(listeners)),
	}
	for _, l := range listeners {
		m.wg.Add(1)
		go m.serve(l)
	}
	go func() {
		m.wg.Wait()
		close(m.connCh)
	}()
	return m
}

func (m *multiListener) serve(l net.Listener) {
	defer m.wg.Done()
	for {
		conn, err := l.Accept()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) && m.err.Load() == nil {
				m.err.Store(err)
			}
			return
		}
		select {
		case m.connCh <- conn:
		case <-m.stop:
			conn.Close()
			return
		}
	}
}

func (m *multiListener) Accept() (net.Conn, error) {
	select {
	case conn, ok := <-m.connCh:
		if !ok {
			if err := m.err.Load(); err != nil {
				return nil, err
			}
			return nil, net.ErrClosed
		}
		return conn, nil
	case <-m.stop:
		return nil, net.ErrClosed
	}
}

func (m *multiListener) Close() error {
	m.closeOnce.Do(func() {
		close(m.stop)
		for _, l := range m.listeners {
			l.Close()
		}
		m.wg.Wait()
	})
	return m.err.Load()
}

func (m *multiListener) Addr() net.Addr {
	if len(m.listeners) == 0 {
		return nil
	}
	return m.listeners[0].Addr()
}

// listenerGuard closes listeners that were never handed to a server
type listenerGuard struct {
	listeners []net.Listener
	released  bool
}

func (g *listenerGuard) Release() []net.Listener {
	g.released = true
	return g.listeners
}

func (g *listenerGuard) Close() {
	if g.released {
		return
	}
	for _, l := range g.listeners {
		l.Close()
	}
}
