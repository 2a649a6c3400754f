// Package router implements the TCP router backend for the Hub: a
// central fan-out daemon multiplexing many publishers and subscribers
// across hosts, and the client used to talk to it.
//
// The client's background-task-plus-bounded-queue shape follows the
// same pattern as link.TCPLink: a dedicated reconnect loop owns the
// socket, with bounded send/receive queues fronting the caller so it
// never blocks on I/O; the frame layout is wire.RouterPacket.
package router

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/horus-rt/horus/herrors"
	"github.com/horus-rt/horus/wire"
)

var errQueueFull = errors.New("queue full")

// DefaultAddr is the router daemon's conventional listen address.
const DefaultAddr = ":7777"

// ConnState mirrors link.ConnectionState for router clients.
type ConnState int32

const (
	Disconnected ConnState = iota
	Connecting
	Connected
)

// ClientOptions configures a Client.
type ClientOptions struct {
	SendQueue int
	RecvQueue int
	Logger    *zap.SugaredLogger
}

func (o ClientOptions) withDefaults() ClientOptions {
	if o.SendQueue <= 0 {
		o.SendQueue = 256
	}
	if o.RecvQueue <= 0 {
		o.RecvQueue = 1024
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop().Sugar()
	}
	return o
}

// Client is a long-lived connection to the router daemon. It streams
// RouterPackets in both directions over a dedicated background
// goroutine, fronted by bounded send/receive queues so the caller
// never blocks on socket I/O.
type Client struct {
	addr string
	opts ClientOptions

	state atomic.Int32
	seq   atomic.Uint32

	sendCh chan *wire.RouterPacket
	recvCh chan *wire.RouterPacket

	mu   sync.Mutex
	conn net.Conn

	subscriptions map[string]bool

	// dialWarnLimiter caps how often a failing reconnect loop logs its
	// "dial failed, retrying" warning, independent of the backoff delay
	// between actual dial attempts.
	dialWarnLimiter *rate.Limiter

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Dial connects to the router daemon at addr and starts its background
// I/O and reconnect loop.
func Dial(addr string, opts ClientOptions) *Client {
	opts = opts.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		addr:            addr,
		opts:            opts,
		sendCh:          make(chan *wire.RouterPacket, opts.SendQueue),
		recvCh:          make(chan *wire.RouterPacket, opts.RecvQueue),
		subscriptions:   make(map[string]bool),
		dialWarnLimiter: rate.NewLimiter(rate.Every(time.Second), 1),
		ctx:             ctx,
		cancel:          cancel,
	}
	c.wg.Add(1)
	go c.connectLoop()
	return c
}

// State returns the current observable connection state.
func (c *Client) State() ConnState { return ConnState(c.state.Load()) }

func (c *Client) connectLoop() {
	defer c.wg.Done()
	backoff := 200 * time.Millisecond
	const maxBackoff = 5 * time.Second
	for {
		if c.ctx.Err() != nil {
			return
		}
		c.state.Store(int32(Connecting))
		conn, err := net.DialTimeout("tcp", c.addr, 3*time.Second)
		if err != nil {
			if c.dialWarnLimiter.Allow() {
				c.opts.Logger.Warnw("router client: dial failed, retrying", "addr", c.addr, "err", err, "backoff", backoff)
			}
			select {
			case <-c.ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff < maxBackoff {
				backoff *= 2
			}
			continue
		}
		if tc, ok := conn.(*net.TCPConn); ok {
			_ = tc.SetNoDelay(true)
		}
		backoff = 200 * time.Millisecond
		c.mu.Lock()
		c.conn = conn
		c.mu.Unlock()
		c.state.Store(int32(Connected))

		c.resubscribe(conn)

		var ioWG sync.WaitGroup
		ioWG.Add(2)
		go func() { defer ioWG.Done(); c.writeLoop(conn) }()
		go func() { defer ioWG.Done(); c.readLoop(conn) }()
		ioWG.Wait()

		c.state.Store(int32(Disconnected))
		if c.ctx.Err() != nil {
			return
		}
	}
}

func (c *Client) resubscribe(conn net.Conn) {
	c.mu.Lock()
	topics := make([]string, 0, len(c.subscriptions))
	for t := range c.subscriptions {
		topics = append(topics, t)
	}
	c.mu.Unlock()
	for _, t := range topics {
		pkt := &wire.RouterPacket{Type: wire.MsgSubscribe, Topic: t}
		_ = wire.WriteFrame(conn, pkt.Encode())
	}
}

func (c *Client) writeLoop(conn net.Conn) {
	defer conn.Close()
	for {
		select {
		case <-c.ctx.Done():
			return
		case pkt := <-c.sendCh:
			if err := wire.WriteFrame(conn, pkt.Encode()); err != nil {
				c.opts.Logger.Warnw("router client: write failed", "addr", c.addr, "err", err)
				return
			}
		}
	}
}

func (c *Client) readLoop(conn net.Conn) {
	defer conn.Close()
	for {
		frame, err := wire.ReadFrame(conn)
		if err != nil {
			if c.ctx.Err() == nil {
				c.opts.Logger.Warnw("router client: read failed", "addr", c.addr, "err", err)
			}
			return
		}
		pkt, err := wire.DecodeRouterPacket(frame)
		if err != nil {
			c.opts.Logger.Warnw("router client: malformed packet", "addr", c.addr, "err", err)
			continue
		}
		select {
		case c.recvCh <- pkt:
		default:
			c.opts.Logger.Warnw("router client: receive queue full, dropping packet", "addr", c.addr, "topic", pkt.Topic)
		}
	}
}

// Subscribe registers interest in topic, re-sent automatically across
// reconnects.
func (c *Client) Subscribe(topic string) error {
	c.mu.Lock()
	c.subscriptions[topic] = true
	c.mu.Unlock()
	return c.enqueue(&wire.RouterPacket{Type: wire.MsgSubscribe, Topic: topic})
}

// Unsubscribe withdraws interest in topic.
func (c *Client) Unsubscribe(topic string) error {
	c.mu.Lock()
	delete(c.subscriptions, topic)
	c.mu.Unlock()
	return c.enqueue(&wire.RouterPacket{Type: wire.MsgUnsubscribe, Topic: topic})
}

// Publish sends payload on topic, fragmenting it first if it exceeds
// wire.FragmentThreshold.
func (c *Client) Publish(topic string, payload []byte) error {
	seq := c.seq.Add(1)
	if len(payload) <= wire.FragmentThreshold {
		return c.enqueue(&wire.RouterPacket{Type: wire.MsgPublish, Topic: topic, Sequence: seq, Payload: payload})
	}
	for _, f := range wire.SplitFragments(seq, payload) {
		if err := c.enqueue(&wire.RouterPacket{Type: wire.MsgFragment, Topic: topic, Sequence: seq, Payload: f.Encode()}); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) enqueue(pkt *wire.RouterPacket) error {
	select {
	case c.sendCh <- pkt:
		return nil
	default:
		return herrors.New(herrors.Communication, "publish", pkt.Topic, errQueueFull)
	}
}

// Recv returns the next received packet, non-blocking.
func (c *Client) Recv() (*wire.RouterPacket, bool) {
	select {
	case pkt := <-c.recvCh:
		return pkt, true
	default:
		return nil, false
	}
}

// RecvTimeout blocks until a packet arrives or d elapses.
func (c *Client) RecvTimeout(d time.Duration) (*wire.RouterPacket, bool) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case pkt := <-c.recvCh:
		return pkt, true
	case <-timer.C:
		return nil, false
	}
}

// Close stops the client's background goroutines.
func (c *Client) Close() error {
	c.cancel()
	c.mu.Lock()
	if c.conn != nil {
		c.conn.Close()
	}
	c.mu.Unlock()
	c.wg.Wait()
	return nil
}
