package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"
)

// Server is one responder found by Probe.
type Server struct {
	Address    string `json:"address"`
	AlpacaPort int    `json:"alpacaport"`
}

// Probe sends a discovery datagram to target (host:port, typically a
// broadcast address) and collects replies until timeout elapses.
func Probe(ctx context.Context, target string, timeout time.Duration) ([]Server, error) {
	dst, err := net.ResolveUDPAddr("udp4", target)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", target, err)
	}

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{})
	if err != nil {
		return nil, fmt.Errorf("open probe socket: %w", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return nil, err
	}

	if _, err := conn.WriteTo([]byte(Magic), dst); err != nil {
		return nil, fmt.Errorf("send probe: %w", err)
	}

	var found []Server
	buf := make([]byte, 1024)
	for {
		n, peer, err := conn.ReadFromUDP(buf)
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				return found, nil
			}
			return found, err
		}
		var s Server
		if err := json.Unmarshal(buf[:n], &s); err != nil || s.AlpacaPort == 0 {
			continue
		}
		s.Address = peer.IP.String()
		found = append(found, s)
	}
}
