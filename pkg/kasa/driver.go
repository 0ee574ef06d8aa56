package kasa

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/urmzd/alpacaswitch/pkg/device"
)

// DefaultPort is the plug's local control port for both TCP and UDP.
const DefaultPort = 9999

// Config controls discovery and per-call timeouts.
type Config struct {
	BroadcastAddress string        // UDP broadcast target; empty disables broadcast discovery
	DiscoveryPort    int           // UDP port probed on the broadcast address
	Port             int           // TCP control port on each plug
	DiscoveryTimeout time.Duration // how long to gather broadcast replies
	IOTimeout        time.Duration // per TCP exchange
	Hosts            []string      // plugs queried directly, host or host:port
}

// Driver implements device.Driver for Kasa plugs.
type Driver struct {
	cfg    Config
	dialer net.Dialer
}

// New creates a Kasa driver, filling zero config fields with defaults.
func New(cfg Config) *Driver {
	if cfg.DiscoveryPort == 0 {
		cfg.DiscoveryPort = DefaultPort
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.DiscoveryTimeout <= 0 {
		cfg.DiscoveryTimeout = 3 * time.Second
	}
	if cfg.IOTimeout <= 0 {
		cfg.IOTimeout = 2 * time.Second
	}
	return &Driver{cfg: cfg}
}

func (d *Driver) Name() string {
	return device.DriverKasa
}

// Discover broadcasts a sysinfo probe and queries every static host. Plugs
// answering both ways are reported once.
func (d *Driver) Discover(ctx context.Context) ([]device.Info, error) {
	var (
		mu    sync.Mutex
		found = map[string]device.Info{}
		wg    sync.WaitGroup
	)
	add := func(info device.Info) {
		mu.Lock()
		defer mu.Unlock()
		if _, ok := found[info.Address]; !ok {
			found[info.Address] = info
		}
	}

	var broadcastErr error
	if d.cfg.BroadcastAddress != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			infos, err := d.broadcast(ctx)
			if err != nil {
				broadcastErr = err
				return
			}
			for _, info := range infos {
				add(info)
			}
		}()
	}

	for _, host := range d.cfg.Hosts {
		wg.Add(1)
		go func(addr string) {
			defer wg.Done()
			si, err := d.sysinfo(ctx, addr)
			if err != nil {
				log.Warn().Err(err).Str("host", addr).Msg("Kasa host did not answer")
				return
			}
			add(infoFrom(addr, si))
		}(d.hostAddr(host))
	}
	wg.Wait()

	if broadcastErr != nil && len(d.cfg.Hosts) == 0 {
		return nil, broadcastErr
	}
	if broadcastErr != nil {
		log.Warn().Err(broadcastErr).Msg("Kasa broadcast discovery failed")
	}

	out := make([]device.Info, 0, len(found))
	for _, info := range found {
		out = append(out, info)
	}
	return out, nil
}

func (d *Driver) broadcast(ctx context.Context) ([]device.Info, error) {
	dst, err := net.ResolveUDPAddr("udp4", net.JoinHostPort(d.cfg.BroadcastAddress, strconv.Itoa(d.cfg.DiscoveryPort)))
	if err != nil {
		return nil, fmt.Errorf("resolve broadcast address: %w", err)
	}
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{})
	if err != nil {
		return nil, fmt.Errorf("open discovery socket: %w", err)
	}
	defer conn.Close()

	_ = conn.SetDeadline(deadline(ctx, d.cfg.DiscoveryTimeout))
	if _, err := conn.WriteToUDP(encrypt(getSysinfo), dst); err != nil {
		return nil, fmt.Errorf("send discovery: %w", err)
	}

	var infos []device.Info
	buf := make([]byte, 4096)
	for {
		n, peer, err := conn.ReadFromUDP(buf)
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				return infos, nil
			}
			return infos, err
		}
		r, err := parseReply(decrypt(buf[:n]))
		if err != nil || r.System.GetSysinfo == nil {
			log.Debug().Str("peer", peer.String()).Msg("Ignoring unrecognised discovery reply")
			continue
		}
		addr := net.JoinHostPort(peer.IP.String(), strconv.Itoa(d.cfg.Port))
		infos = append(infos, infoFrom(addr, r.System.GetSysinfo))
	}
}

// State reads relay_state from the plug.
func (d *Driver) State(ctx context.Context, sw device.Info) (bool, error) {
	si, err := d.sysinfo(ctx, sw.Address)
	if err != nil {
		return false, err
	}
	return si.RelayState == 1, nil
}

// SetState switches the relay. A non-zero err_code means the plug refused.
func (d *Driver) SetState(ctx context.Context, sw device.Info, on bool) error {
	r, err := d.exchange(ctx, sw.Address, relayCommand(on))
	if err != nil {
		return err
	}
	res := r.System.SetRelayState
	if res == nil {
		return fmt.Errorf("%w: no set_relay_state in reply", device.ErrRefused)
	}
	if res.ErrCode != 0 {
		return fmt.Errorf("%w: err_code %d %s", device.ErrRefused, res.ErrCode, res.ErrMsg)
	}
	return nil
}

func (d *Driver) sysinfo(ctx context.Context, addr string) (*sysInfo, error) {
	r, err := d.exchange(ctx, addr, getSysinfo)
	if err != nil {
		return nil, err
	}
	if r.System.GetSysinfo == nil {
		return nil, fmt.Errorf("%w: no sysinfo in reply from %s", device.ErrRefused, addr)
	}
	return r.System.GetSysinfo, nil
}

// exchange performs one request/response over a fresh TCP connection.
func (d *Driver) exchange(ctx context.Context, addr string, msg []byte) (*reply, error) {
	ctx, cancel := context.WithDeadline(ctx, deadline(ctx, d.cfg.IOTimeout))
	defer cancel()

	conn, err := d.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, device.Classify(err)
	}
	defer conn.Close()

	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(dl)
	}
	if err := writeFrame(conn, msg); err != nil {
		return nil, device.Classify(err)
	}
	body, err := readFrame(conn)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: %s closed connection: %w", device.ErrUnreachable, addr, err)
		}
		return nil, device.Classify(err)
	}
	return parseReply(body)
}

func (d *Driver) hostAddr(host string) string {
	if _, _, err := net.SplitHostPort(host); err == nil {
		return host
	}
	return net.JoinHostPort(host, strconv.Itoa(d.cfg.Port))
}

func infoFrom(addr string, si *sysInfo) device.Info {
	name := si.Alias
	if name == "" {
		name = addr
	}
	return device.Info{
		Address: addr,
		Name:    name,
		Model:   si.Model,
		Driver:  device.DriverKasa,
	}
}

// deadline is the earlier of ctx's deadline and now+timeout.
func deadline(ctx context.Context, timeout time.Duration) time.Time {
	dl := time.Now().Add(timeout)
	if ctxDl, ok := ctx.Deadline(); ok && ctxDl.Before(dl) {
		return ctxDl
	}
	return dl
}
