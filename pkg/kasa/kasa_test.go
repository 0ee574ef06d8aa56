package kasa

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/urmzd/alpacaswitch/pkg/device"
)

func TestCipherRoundTrip(t *testing.T) {
	plain := []byte(`{"system":{"get_sysinfo":{}}}`)
	enc := encrypt(plain)
	if bytes.Equal(enc, plain) {
		t.Fatal("encrypt returned plaintext")
	}
	// First byte is 171 ^ '{'.
	if enc[0] != 171^'{' {
		t.Errorf("enc[0] = %d, want %d", enc[0], 171^'{')
	}
	if got := decrypt(enc); !bytes.Equal(got, plain) {
		t.Errorf("decrypt = %s", got)
	}
}

func TestFrameLimit(t *testing.T) {
	hdr := []byte{0x00, 0x10, 0x00, 0x01}
	if _, err := readFrame(bytes.NewReader(hdr)); !errors.Is(err, errFrameTooLarge) {
		t.Errorf("err = %v, want errFrameTooLarge", err)
	}
}

// fakePlug serves the Kasa TCP and UDP protocol on loopback.
type fakePlug struct {
	mu      sync.Mutex
	alias   string
	on      bool
	errCode int

	tcp net.Listener
	udp net.PacketConn
}

func newFakePlug(t *testing.T, alias string) *fakePlug {
	t.Helper()
	p := &fakePlug{alias: alias}

	var err error
	p.tcp, err = net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	p.udp, err = net.ListenPacket("udp4", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		p.tcp.Close()
		p.udp.Close()
	})

	go p.serveTCP()
	go p.serveUDP()
	return p
}

func (p *fakePlug) handle(req []byte) []byte {
	p.mu.Lock()
	defer p.mu.Unlock()

	var msg struct {
		System struct {
			GetSysinfo    *struct{}            `json:"get_sysinfo"`
			SetRelayState *struct{ State int } `json:"set_relay_state"`
		} `json:"system"`
	}
	_ = json.Unmarshal(req, &msg)

	switch {
	case msg.System.SetRelayState != nil:
		if p.errCode == 0 {
			p.on = msg.System.SetRelayState.State == 1
		}
		return []byte(`{"system":{"set_relay_state":{"err_code":` + strconv.Itoa(p.errCode) + `}}}`)
	default:
		state := 0
		if p.on {
			state = 1
		}
		return []byte(`{"system":{"get_sysinfo":{"alias":"` + p.alias + `","model":"HS103(US)","relay_state":` + strconv.Itoa(state) + `,"err_code":0}}}`)
	}
}

func (p *fakePlug) serveTCP() {
	for {
		conn, err := p.tcp.Accept()
		if err != nil {
			return
		}
		go func(c net.Conn) {
			defer c.Close()
			req, err := readFrame(c)
			if err != nil {
				return
			}
			_ = writeFrame(c, p.handle(req))
		}(conn)
	}
}

func (p *fakePlug) serveUDP() {
	buf := make([]byte, 1024)
	for {
		n, peer, err := p.udp.ReadFrom(buf)
		if err != nil {
			return
		}
		_, _ = p.udp.WriteTo(encrypt(p.handle(decrypt(buf[:n]))), peer)
	}
}

func (p *fakePlug) tcpPort() int {
	return p.tcp.Addr().(*net.TCPAddr).Port
}

func (p *fakePlug) udpPort() int {
	return p.udp.LocalAddr().(*net.UDPAddr).Port
}

func TestDiscover_Broadcast(t *testing.T) {
	plug := newFakePlug(t, "Mount")
	d := New(Config{
		BroadcastAddress: "127.0.0.1",
		DiscoveryPort:    plug.udpPort(),
		Port:             plug.tcpPort(),
		DiscoveryTimeout: 200 * time.Millisecond,
	})

	infos, err := d.Discover(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(infos) != 1 {
		t.Fatalf("found %d plugs, want 1", len(infos))
	}
	want := device.Info{
		Address: net.JoinHostPort("127.0.0.1", strconv.Itoa(plug.tcpPort())),
		Name:    "Mount",
		Model:   "HS103(US)",
		Driver:  device.DriverKasa,
	}
	if infos[0] != want {
		t.Errorf("info = %+v, want %+v", infos[0], want)
	}
}

func TestDiscover_StaticHostsDeduplicated(t *testing.T) {
	plug := newFakePlug(t, "Camera")
	addr := plug.tcp.Addr().String()
	d := New(Config{
		BroadcastAddress: "127.0.0.1",
		DiscoveryPort:    plug.udpPort(),
		Port:             plug.tcpPort(),
		DiscoveryTimeout: 200 * time.Millisecond,
		Hosts:            []string{addr, "127.0.0.1:1"},
	})

	infos, err := d.Discover(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(infos) != 1 || infos[0].Address != addr {
		t.Errorf("infos = %+v", infos)
	}
}

func TestStateAndSetState(t *testing.T) {
	plug := newFakePlug(t, "Heater")
	d := New(Config{})
	sw := device.Info{Address: plug.tcp.Addr().String(), Driver: device.DriverKasa}
	ctx := context.Background()

	on, err := d.State(ctx, sw)
	if err != nil || on {
		t.Fatalf("State = %v, %v; want false", on, err)
	}
	if err := d.SetState(ctx, sw, true); err != nil {
		t.Fatal(err)
	}
	on, err = d.State(ctx, sw)
	if err != nil || !on {
		t.Fatalf("State = %v, %v; want true", on, err)
	}

	plug.mu.Lock()
	plug.errCode = -3
	plug.mu.Unlock()
	if err := d.SetState(ctx, sw, false); !errors.Is(err, device.ErrRefused) {
		t.Errorf("err = %v, want ErrRefused", err)
	}
}

func TestUnreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close()

	d := New(Config{IOTimeout: 500 * time.Millisecond})
	_, err = d.State(context.Background(), device.Info{Address: addr})
	if !errors.Is(err, device.ErrUnreachable) && !errors.Is(err, device.ErrTimeout) {
		t.Errorf("err = %v, want unreachable or timeout", err)
	}
}

func TestClosedConnectionIsUnreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			c.Close()
		}
	}()

	d := New(Config{})
	_, err = d.State(context.Background(), device.Info{Address: ln.Addr().String()})
	if !errors.Is(err, device.ErrUnreachable) {
		t.Errorf("err = %v, want ErrUnreachable", err)
	}
}
