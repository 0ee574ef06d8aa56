// Package relay drives LCUS-type USB serial relay boards.
package relay

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"go.bug.st/serial"

	"github.com/urmzd/alpacaswitch/pkg/device"
)

const (
	frameStart  = 0xA0
	defaultBaud = 9600
)

// Board is one relay board on a serial port.
type Board struct {
	Port     string
	Channels int
	Names    []string // optional display names, by channel
}

// Config lists the configured boards.
type Config struct {
	Boards   []Board
	BaudRate int
}

// Opener opens a serial port for writing.
type Opener func(path string, mode *serial.Mode) (io.WriteCloser, error)

// Lister enumerates the serial ports present on the host.
type Lister func() ([]string, error)

func openSerial(path string, mode *serial.Mode) (io.WriteCloser, error) {
	return serial.Open(path, mode)
}

// Driver implements device.Driver for relay boards. The boards cannot report
// their relay state, so State returns the last state written.
type Driver struct {
	cfg  Config
	open Opener
	list Lister

	mu     sync.Mutex
	ports  map[string]io.WriteCloser
	states map[string]bool
}

// Option configures a Driver.
type Option func(*Driver)

// WithPorts replaces the serial port opener and lister.
func WithPorts(open Opener, list Lister) Option {
	return func(d *Driver) {
		d.open = open
		d.list = list
	}
}

// New creates a relay driver.
func New(cfg Config, opts ...Option) *Driver {
	if cfg.BaudRate == 0 {
		cfg.BaudRate = defaultBaud
	}
	d := &Driver{
		cfg:    cfg,
		open:   openSerial,
		list:   serial.GetPortsList,
		ports:  map[string]io.WriteCloser{},
		states: map[string]bool{},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Driver) Name() string {
	return device.DriverRelay
}

// Discover reports one switch per channel of every configured board whose
// port is present.
func (d *Driver) Discover(ctx context.Context) ([]device.Info, error) {
	present, err := d.list()
	if err != nil {
		return nil, fmt.Errorf("list serial ports: %w", err)
	}

	var infos []device.Info
	for _, b := range d.cfg.Boards {
		if !portPresent(present, b.Port) {
			log.Warn().Str("port", b.Port).Msg("Relay board not present")
			continue
		}
		for ch := 1; ch <= b.Channels; ch++ {
			infos = append(infos, device.Info{
				Address: address(b.Port, ch),
				Name:    channelName(b, ch),
				Model:   fmt.Sprintf("LCUS-%d", b.Channels),
				Driver:  device.DriverRelay,
			})
		}
	}
	return infos, nil
}

// portPresent reports whether port is among the listed ports, either by
// name or because both resolve to the same device node. Boards are usually
// configured by a stable /dev/serial/by-id link while the host lists the
// ttyUSB node it points at.
func portPresent(present []string, port string) bool {
	if slices.Contains(present, port) {
		return true
	}
	target, err := filepath.EvalSymlinks(port)
	if err != nil {
		return false
	}
	for _, p := range present {
		if p == target {
			return true
		}
		if resolved, err := filepath.EvalSymlinks(p); err == nil && resolved == target {
			return true
		}
	}
	return false
}

// State returns the last state written to the channel, or ErrStateUnknown
// before the first write.
func (d *Driver) State(ctx context.Context, sw device.Info) (bool, error) {
	if _, _, err := d.parse(sw.Address); err != nil {
		return false, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	on, ok := d.states[sw.Address]
	if !ok {
		return false, fmt.Errorf("%w: %s", device.ErrStateUnknown, sw.Address)
	}
	return on, nil
}

// SetState writes a relay frame. A failed write closes the port so the next
// command reopens it.
func (d *Driver) SetState(ctx context.Context, sw device.Info, on bool) error {
	board, ch, err := d.parse(sw.Address)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	port, ok := d.ports[board.Port]
	if !ok {
		port, err = d.open(board.Port, &serial.Mode{
			BaudRate: d.cfg.BaudRate,
			DataBits: 8,
			Parity:   serial.NoParity,
			StopBits: serial.OneStopBit,
		})
		if err != nil {
			return fmt.Errorf("%w: open %s: %w", device.ErrUnreachable, board.Port, err)
		}
		log.Info().Str("port", board.Port).Msg("Relay port opened")
		d.ports[board.Port] = port
	}

	if _, err := port.Write(frame(ch, on)); err != nil {
		_ = port.Close()
		delete(d.ports, board.Port)
		return fmt.Errorf("%w: write %s: %w", device.ErrUnreachable, board.Port, err)
	}
	d.states[sw.Address] = on
	return nil
}

// Close closes every open port.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	var first error
	for path, p := range d.ports {
		if err := p.Close(); err != nil && first == nil {
			first = err
		}
		delete(d.ports, path)
	}
	return first
}

func (d *Driver) parse(addr string) (Board, int, error) {
	path, chStr, ok := strings.Cut(addr, "#")
	if !ok {
		return Board{}, 0, fmt.Errorf("%w: relay address %q", device.ErrNotFound, addr)
	}
	ch, err := strconv.Atoi(chStr)
	if err != nil {
		return Board{}, 0, fmt.Errorf("%w: relay address %q", device.ErrNotFound, addr)
	}
	for _, b := range d.cfg.Boards {
		if b.Port == path && ch >= 1 && ch <= b.Channels {
			return b, ch, nil
		}
	}
	return Board{}, 0, fmt.Errorf("%w: relay address %q", device.ErrNotFound, addr)
}

// frame builds the 4-byte command: start, channel, state, checksum.
func frame(ch int, on bool) []byte {
	var state byte
	if on {
		state = 1
	}
	c := byte(ch)
	return []byte{frameStart, c, state, frameStart + c + state}
}

func address(port string, ch int) string {
	return port + "#" + strconv.Itoa(ch)
}

func channelName(b Board, ch int) string {
	if ch <= len(b.Names) && b.Names[ch-1] != "" {
		return b.Names[ch-1]
	}
	return fmt.Sprintf("%s relay %d", filepath.Base(b.Port), ch)
}
