package router

import (
	"context"
	"net"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/horus-rt/horus/wire"
)

// Server is the central router daemon: it maintains a subscription
// table, fans out each published frame to matching subscribers, never
// persists anything, and drops frames to a slow consumer rather than
// blocking the fan-out loop.
type Server struct {
	logger *zap.SugaredLogger

	mu   sync.RWMutex
	subs map[string]map[*subConn]struct{} // topic -> connected subscribers

	listener net.Listener
}

type subConn struct {
	conn net.Conn
	out  chan []byte
}

// NewServer constructs a router daemon Server. Pass a nil logger to use
// a no-op logger.
func NewServer(logger *zap.SugaredLogger) *Server {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Server{logger: logger, subs: make(map[string]map[*subConn]struct{})}
}

// Addr returns the listener's bound address once Serve has started, or
// "" before that — useful in tests that bind an ephemeral port.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Serve listens on addr and fans out frames until ctx is canceled.
func (s *Server) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	s.logger.Infow("router: listening", "addr", addr)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-ctx.Done()
		return ln.Close()
	})
	g.Go(func() error {
		for {
			conn, err := ln.Accept()
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
			go s.handleConn(ctx, conn)
		}
	})
	return g.Wait()
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	sc := &subConn{conn: conn, out: make(chan []byte, 1024)}
	defer s.removeAll(sc)
	defer conn.Close()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case frame, ok := <-sc.out:
				if !ok {
					return
				}
				if err := wire.WriteFrame(conn, frame); err != nil {
					return
				}
			}
		}
	}()

	for {
		frame, err := wire.ReadFrame(conn)
		if err != nil {
			return
		}
		pkt, err := wire.DecodeRouterPacket(frame)
		if err != nil {
			s.logger.Warnw("router: malformed packet", "err", err)
			continue
		}
		switch pkt.Type {
		case wire.MsgSubscribe:
			s.addSub(pkt.Topic, sc)
		case wire.MsgUnsubscribe:
			s.removeSub(pkt.Topic, sc)
		case wire.MsgPublish, wire.MsgFragment:
			s.fanOut(pkt)
		}
	}
}

func (s *Server) addSub(topic string, sc *subConn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subs[topic] == nil {
		s.subs[topic] = make(map[*subConn]struct{})
	}
	s.subs[topic][sc] = struct{}{}
	subscribersGauge.WithLabelValues(topic).Set(float64(len(s.subs[topic])))
}

func (s *Server) removeSub(topic string, sc *subConn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs[topic], sc)
	subscribersGauge.WithLabelValues(topic).Set(float64(len(s.subs[topic])))
}

func (s *Server) removeAll(sc *subConn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for topic, set := range s.subs {
		if _, ok := set[sc]; ok {
			delete(set, sc)
			subscribersGauge.WithLabelValues(topic).Set(float64(len(set)))
		}
	}
	close(sc.out)
}

// fanOut delivers pkt to every subscriber of its topic. A subscriber
// whose outbound queue is full is skipped rather than stalling the
// rest. Fragment frames keep their wire.MsgFragment tag so subscribers
// can still reassemble them; a plain Publish is relabeled
// wire.MsgRouterPublish to mark it as server-relayed.
func (s *Server) fanOut(pkt *wire.RouterPacket) {
	relayType := wire.MsgRouterPublish
	if pkt.Type == wire.MsgFragment {
		relayType = wire.MsgFragment
	}
	out := &wire.RouterPacket{Type: relayType, Topic: pkt.Topic, Sequence: pkt.Sequence, Payload: pkt.Payload}
	frame := out.Encode()

	s.mu.RLock()
	defer s.mu.RUnlock()
	for sc := range s.subs[pkt.Topic] {
		select {
		case sc.out <- frame:
			framesFannedOut.WithLabelValues(pkt.Topic).Inc()
		default:
			framesDropped.WithLabelValues(pkt.Topic).Inc()
			s.logger.Warnw("router: slow consumer, dropping frame", "topic", pkt.Topic)
		}
	}
}
