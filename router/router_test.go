package router

import (
	"context"
	"testing"
	"time"
)

func startTestServer(t *testing.T) (addr string, stop func()) {
	t.Helper()
	srv := NewServer(nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = srv.Serve(ctx, "127.0.0.1:0")
	}()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if a := srv.Addr(); a != "" {
			return a, func() {
				cancel()
				<-done
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("server never started listening")
	return "", nil
}

func TestPublishFansOutToSubscriber(t *testing.T) {
	addr, stop := startTestServer(t)
	defer stop()

	sub := Dial(addr, ClientOptions{})
	defer sub.Close()
	pub := Dial(addr, ClientOptions{})
	defer pub.Close()

	waitConnected(t, sub)
	waitConnected(t, pub)

	if err := sub.Subscribe("demo.scan"); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	time.Sleep(50 * time.Millisecond) // let the subscription register server-side

	if err := pub.Publish("demo.scan", []byte("hello")); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	pkt, ok := sub.RecvTimeout(time.Second)
	if !ok {
		t.Fatal("expected the subscriber to receive the published frame")
	}
	if pkt.Topic != "demo.scan" || string(pkt.Payload) != "hello" {
		t.Fatalf("got %+v", pkt)
	}
}

func TestUnsubscribedClientReceivesNothing(t *testing.T) {
	addr, stop := startTestServer(t)
	defer stop()

	sub := Dial(addr, ClientOptions{})
	defer sub.Close()
	pub := Dial(addr, ClientOptions{})
	defer pub.Close()

	waitConnected(t, sub)
	waitConnected(t, pub)

	// sub never subscribes.
	if err := pub.Publish("demo.scan", []byte("hello")); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	if _, ok := sub.RecvTimeout(100 * time.Millisecond); ok {
		t.Fatal("expected no frame for a client that never subscribed")
	}
}

func waitConnected(t *testing.T, c *Client) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if c.State() == Connected {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("client never reached Connected state")
}
