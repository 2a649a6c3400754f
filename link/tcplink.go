package link

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/horus-rt/horus/herrors"
	"github.com/horus-rt/horus/wire"
)

// ConnectionState is the observable connection lifecycle for a
// TCP-backed endpoint (TCPLink or the router Client).
type ConnectionState int32

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
)

func (s ConnectionState) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateConnecting:
		return "reconnecting"
	default:
		return "disconnected"
	}
}

const (
	// DefaultSendQueue and DefaultRecvQueue bound the background I/O
	// goroutine's queues so a slow or disconnected peer cannot make the
	// caller block.
	DefaultSendQueue = 256
	DefaultRecvQueue = 1024
)

// TCPLinkOptions configures a TCPLink.
type TCPLinkOptions struct {
	SendQueue int
	RecvQueue int
	Reconnect bool
	Logger    *zap.SugaredLogger
}

func (o TCPLinkOptions) withDefaults() TCPLinkOptions {
	if o.SendQueue <= 0 {
		o.SendQueue = DefaultSendQueue
	}
	if o.RecvQueue <= 0 {
		o.RecvQueue = DefaultRecvQueue
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop().Sugar()
	}
	return o
}

// TCPLink is the point-to-point TCP variant of Link. The producer
// dials; the consumer accepts exactly one connection at a time (1P1C).
// Both sides decouple the socket from the caller via a bounded queue
// drained/filled by a background I/O goroutine. The producer retries its
// first dial with exponential backoff until it connects; once a
// connection breaks, the producer redials and the consumer accepts a new
// connection only if TCPLinkOptions.Reconnect is set.
type TCPLink[T Message] struct {
	addr       string
	isProducer bool
	opts       TCPLinkOptions
	newMsg     func() T

	state atomic.Int32

	sendCh chan []byte
	recvCh chan []byte

	mu       sync.Mutex
	conn     net.Conn
	listener net.Listener

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// DialTCPLink constructs a producer-side Link that connects to the
// consumer's listening address.
func DialTCPLink[T Message](addr string, opts TCPLinkOptions) (*TCPLink[T], error) {
	l := newTCPLink[T](addr, true, nil, opts)
	l.wg.Add(1)
	go l.dialLoop()
	return l, nil
}

// ListenTCPLink constructs a consumer-side Link that accepts exactly
// one connection on addr.
func ListenTCPLink[T Message](addr string, newMsg func() T, opts TCPLinkOptions) (*TCPLink[T], error) {
	l := newTCPLink[T](addr, false, newMsg, opts)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, herrors.New(herrors.Communication, "listen", addr, err)
	}
	l.listener = ln
	l.wg.Add(1)
	go l.acceptLoop()
	return l, nil
}

func newTCPLink[T Message](addr string, isProducer bool, newMsg func() T, opts TCPLinkOptions) *TCPLink[T] {
	opts = opts.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	l := &TCPLink[T]{
		addr:       addr,
		isProducer: isProducer,
		opts:       opts,
		newMsg:     newMsg,
		sendCh:     make(chan []byte, opts.SendQueue),
		recvCh:     make(chan []byte, opts.RecvQueue),
		ctx:        ctx,
		cancel:     cancel,
	}
	l.state.Store(int32(StateDisconnected))
	return l
}

// State returns the current observable connection state.
func (l *TCPLink[T]) State() ConnectionState {
	return ConnectionState(l.state.Load())
}

func (l *TCPLink[T]) setState(s ConnectionState) {
	l.state.Store(int32(s))
}

func (l *TCPLink[T]) dialLoop() {
	defer l.wg.Done()
	backoff := 200 * time.Millisecond
	const maxBackoff = 5 * time.Second
	for {
		if l.ctx.Err() != nil {
			return
		}
		l.setState(StateConnecting)
		conn, err := net.DialTimeout("tcp", l.addr, 3*time.Second)
		if err != nil {
			l.opts.Logger.Warnw("tcplink: dial failed, retrying", "addr", l.addr, "err", err, "backoff", backoff)
			select {
			case <-l.ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff < maxBackoff {
				backoff *= 2
			}
			continue
		}
		backoff = 200 * time.Millisecond
		if tc, ok := conn.(*net.TCPConn); ok {
			_ = tc.SetNoDelay(true)
		}
		l.setConn(conn)
		l.setState(StateConnected)
		l.writeUntilBroken(conn)
		if !l.opts.Reconnect || l.ctx.Err() != nil {
			l.setState(StateDisconnected)
			return
		}
		l.setState(StateDisconnected)
	}
}

func (l *TCPLink[T]) acceptLoop() {
	defer l.wg.Done()
	for {
		conn, err := l.listener.Accept()
		if err != nil {
			if l.ctx.Err() != nil {
				return
			}
			l.opts.Logger.Warnw("tcplink: accept failed", "addr", l.addr, "err", err)
			return
		}
		if tc, ok := conn.(*net.TCPConn); ok {
			_ = tc.SetNoDelay(true)
		}
		l.setConn(conn)
		l.setState(StateConnected)
		l.readUntilBroken(conn)
		l.setState(StateDisconnected)
		if !l.opts.Reconnect || l.ctx.Err() != nil {
			return
		}
		// Await the next connection attempt from the producer.
	}
}

func (l *TCPLink[T]) setConn(c net.Conn) {
	l.mu.Lock()
	l.conn = c
	l.mu.Unlock()
}

func (l *TCPLink[T]) writeUntilBroken(conn net.Conn) {
	defer conn.Close()
	for {
		select {
		case <-l.ctx.Done():
			return
		case frame := <-l.sendCh:
			if err := wire.WriteFrame(conn, frame); err != nil {
				l.opts.Logger.Warnw("tcplink: write failed", "addr", l.addr, "err", err)
				return
			}
		}
	}
}

func (l *TCPLink[T]) readUntilBroken(conn net.Conn) {
	defer conn.Close()
	for {
		frame, err := wire.ReadFrame(conn)
		if err != nil {
			if l.ctx.Err() == nil {
				l.opts.Logger.Warnw("tcplink: read failed", "addr", l.addr, "err", err)
			}
			return
		}
		select {
		case l.recvCh <- frame:
		default:
			l.opts.Logger.Warnw("tcplink: receive queue full, dropping frame", "addr", l.addr)
		}
	}
}

// Send enqueues msg for the background writer. Producer-only. Returns a
// typed queue-full error immediately if the bounded queue is
// saturated, rather than blocking the caller.
func (l *TCPLink[T]) Send(msg T) error {
	if !l.isProducer {
		return herrors.New(herrors.InvalidInput, "send", l.addr, fmt.Errorf("link is a consumer"))
	}
	b, err := msg.MarshalMsg(nil)
	if err != nil {
		return herrors.New(herrors.Communication, "send", l.addr, err)
	}
	select {
	case l.sendCh <- b:
		return nil
	default:
		return herrors.New(herrors.Communication, "send", l.addr, fmt.Errorf("queue full"))
	}
}

// Recv returns the next message already buffered, non-blocking.
func (l *TCPLink[T]) Recv() (msg T, ok bool, err error) {
	if l.isProducer {
		var zero T
		return zero, false, herrors.New(herrors.InvalidInput, "recv", l.addr, fmt.Errorf("link is a producer"))
	}
	select {
	case frame := <-l.recvCh:
		out := l.newMsg()
		if _, err := out.UnmarshalMsg(frame); err != nil {
			var zero T
			return zero, false, herrors.New(herrors.Communication, "recv", l.addr, err)
		}
		return out, true, nil
	default:
		var zero T
		return zero, false, nil
	}
}

// RecvTimeout blocks until a message arrives or d elapses.
func (l *TCPLink[T]) RecvTimeout(d time.Duration) (msg T, ok bool, err error) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case frame := <-l.recvCh:
		out := l.newMsg()
		if _, err := out.UnmarshalMsg(frame); err != nil {
			var zero T
			return zero, false, herrors.New(herrors.Communication, "recv", l.addr, err)
		}
		return out, true, nil
	case <-timer.C:
		var zero T
		return zero, false, nil
	}
}

// Close stops background I/O and releases the socket/listener.
func (l *TCPLink[T]) Close() error {
	l.cancel()
	l.mu.Lock()
	if l.conn != nil {
		l.conn.Close()
	}
	l.mu.Unlock()
	if l.listener != nil {
		l.listener.Close()
	}
	l.wg.Wait()
	return nil
}
