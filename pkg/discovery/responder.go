// Package discovery implements the Alpaca UDP discovery handshake.
package discovery

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	// DefaultPort is the well-known Alpaca discovery port.
	DefaultPort = 32227

	// Magic is the probe payload clients broadcast.
	Magic = "alpacadiscovery1"

	minReadBackoff = 100 * time.Millisecond
	maxReadBackoff = 2 * time.Second
)

// Reply renders the responder payload for a control port.
func Reply(controlPort int) []byte {
	return []byte(fmt.Sprintf(`{"alpacaport": %d}`, controlPort))
}

// Responder answers discovery probes with the HTTP control port.
type Responder struct {
	addr        string
	controlPort int
	conn        net.PacketConn
}

// NewResponder creates a responder that will listen on host:port and
// advertise controlPort.
func NewResponder(host string, port, controlPort int) *Responder {
	return &Responder{
		addr:        net.JoinHostPort(host, strconv.Itoa(port)),
		controlPort: controlPort,
	}
}

// Listen binds the UDP socket with address and port reuse enabled.
func (r *Responder) Listen(ctx context.Context) error {
	lc := net.ListenConfig{Control: reuseControl}
	conn, err := lc.ListenPacket(ctx, "udp4", r.addr)
	if err != nil {
		return fmt.Errorf("listen discovery %s: %w", r.addr, err)
	}
	r.conn = conn
	log.Info().Str("address", conn.LocalAddr().String()).Int("alpaca_port", r.controlPort).Msg("Discovery responder listening")
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (r *Responder) Addr() net.Addr {
	if r.conn == nil {
		return nil
	}
	return r.conn.LocalAddr()
}

// Serve answers probes until ctx is cancelled. Listen must be called first.
func (r *Responder) Serve(ctx context.Context) error {
	if r.conn == nil {
		return errors.New("discovery responder not listening")
	}

	go func() {
		<-ctx.Done()
		r.conn.Close()
	}()

	reply := Reply(r.controlPort)
	buf := make([]byte, 1024)
	backoff := minReadBackoff
	for {
		n, peer, err := r.conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			log.Warn().Err(err).Dur("retry_in", backoff).Msg("Discovery read failed")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, maxReadBackoff)
			continue
		}
		backoff = minReadBackoff
		if !bytes.Contains(buf[:n], []byte(Magic)) {
			log.Debug().Str("peer", peer.String()).Int("bytes", n).Msg("Ignoring non-discovery datagram")
			continue
		}
		if _, err := r.conn.WriteTo(reply, peer); err != nil {
			log.Warn().Err(err).Str("peer", peer.String()).Msg("Discovery reply failed")
			continue
		}
		log.Debug().Str("peer", peer.String()).Msg("Answered discovery probe")
	}
}
