package discovery

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"
)

func startResponder(t *testing.T, controlPort int) *Responder {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	r := NewResponder("127.0.0.1", 0, controlPort)
	if err := r.Listen(ctx); err != nil {
		t.Fatal(err)
	}
	done := make(chan error, 1)
	go func() { done <- r.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Serve returned %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Error("Serve did not stop")
		}
	})
	return r
}

func TestReply(t *testing.T) {
	if got := string(Reply(11111)); got != `{"alpacaport": 11111}` {
		t.Errorf("Reply = %s", got)
	}
}

func TestResponder_AnswersProbe(t *testing.T) {
	r := startResponder(t, 11111)

	conn, err := net.DialUDP("udp4", nil, r.Addr().(*net.UDPAddr))
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte(Magic)); err != nil {
		t.Fatal(err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 256)
	n, err := conn.Read(buf)
	if err != nil {
		t.Fatal(err)
	}
	if got := string(buf[:n]); got != `{"alpacaport": 11111}` {
		t.Errorf("reply = %s", got)
	}
}

func TestResponder_IgnoresOtherPayloads(t *testing.T) {
	r := startResponder(t, 11111)

	conn, err := net.DialUDP("udp4", nil, r.Addr().(*net.UDPAddr))
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte("hello")); err != nil {
		t.Fatal(err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	buf := make([]byte, 256)
	if _, err := conn.Read(buf); err == nil {
		t.Error("expected no reply to a non-discovery datagram")
	}
}

func TestProbe(t *testing.T) {
	r := startResponder(t, 4567)

	servers, err := Probe(context.Background(), r.Addr().String(), 300*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	if len(servers) != 1 {
		t.Fatalf("found %d servers, want 1", len(servers))
	}
	if servers[0].AlpacaPort != 4567 || servers[0].Address != "127.0.0.1" {
		t.Errorf("server = %+v", servers[0])
	}
}

func TestServe_RequiresListen(t *testing.T) {
	r := NewResponder("127.0.0.1", 0, 1)
	if err := r.Serve(context.Background()); err == nil {
		t.Error("expected error before Listen")
	}
}

// failingConn returns a read error on every call.
type failingConn struct {
	net.PacketConn
	reads atomic.Int32
}

func (c *failingConn) ReadFrom([]byte) (int, net.Addr, error) {
	c.reads.Add(1)
	return 0, nil, errors.New("transient read error")
}

func (c *failingConn) Close() error { return nil }

func TestServe_BacksOffOnReadErrors(t *testing.T) {
	conn := &failingConn{}
	r := &Responder{controlPort: 11111, conn: conn}

	ctx, cancel := context.WithTimeout(context.Background(), 350*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- r.Serve(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Serve() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}

	// 100ms then 200ms of backoff fit in the window: at most three reads.
	if got := conn.reads.Load(); got < 1 || got > 4 {
		t.Errorf("reads = %d, want between 1 and 4", got)
	}
}
