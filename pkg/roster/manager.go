package roster

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/urmzd/alpacaswitch/pkg/device"
)

// Cycle names a background loop.
type Cycle string

const (
	CycleDiscovery Cycle = "discovery"
	CyclePoll      Cycle = "poll"
)

// Skip reasons reported to observers.
const (
	SkipBusy      = "busy"
	SkipDiscovery = "discovery"
)

// Observer receives roster lifecycle events.
type Observer interface {
	DiscoveryCompleted(switches int, elapsed time.Duration, err error)
	PollCompleted(switches, failures int)
	CycleSkipped(cycle Cycle, reason string)
	DeviceFailed(operation string, info device.Info, err error)
}

// StateSink is told whenever a switch's cached state changes.
type StateSink interface {
	StateChanged(info device.Info, on bool, at time.Time)
}

// Config holds loop timing.
type Config struct {
	DiscoveryInterval time.Duration
	PollInterval      time.Duration
	DiscoveryTimeout  time.Duration
	DeviceTimeout     time.Duration
}

// DefaultConfig returns the standard timings.
func DefaultConfig() Config {
	return Config{
		DiscoveryInterval: 30 * time.Second,
		PollInterval:      2 * time.Second,
		DiscoveryTimeout:  10 * time.Second,
		DeviceTimeout:     2 * time.Second,
	}
}

// Manager owns the roster and the two background loops that maintain it.
type Manager struct {
	driver   device.Driver
	cfg      Config
	observer Observer
	sinks    []StateSink
	now      func() time.Time

	current     atomic.Pointer[Roster]
	discovering atomic.Bool
	polling     atomic.Bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithObserver sets the lifecycle observer.
func WithObserver(o Observer) Option {
	return func(m *Manager) { m.observer = o }
}

// WithStateSink adds a state change sink.
func WithStateSink(s StateSink) Option {
	return func(m *Manager) { m.sinks = append(m.sinks, s) }
}

// NewManager creates a manager with an empty roster. Zero durations in cfg
// fall back to DefaultConfig.
func NewManager(driver device.Driver, cfg Config, opts ...Option) *Manager {
	def := DefaultConfig()
	if cfg.DiscoveryInterval <= 0 {
		cfg.DiscoveryInterval = def.DiscoveryInterval
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.DiscoveryTimeout <= 0 {
		cfg.DiscoveryTimeout = def.DiscoveryTimeout
	}
	if cfg.DeviceTimeout <= 0 {
		cfg.DeviceTimeout = def.DeviceTimeout
	}

	m := &Manager{
		driver:   driver,
		cfg:      cfg,
		observer: nopObserver{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.current.Store(empty)
	return m
}

// Snapshot returns the current roster. It never returns nil.
func (m *Manager) Snapshot() *Roster {
	return m.current.Load()
}

// Discovering reports whether a discovery cycle is in progress.
func (m *Manager) Discovering() bool {
	return m.discovering.Load()
}

// Run drives both loops until ctx is cancelled. Discovery runs immediately;
// the first poll waits one poll interval.
func (m *Manager) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		m.runDiscovery(ctx)
		m.every(ctx, m.cfg.DiscoveryInterval, m.runDiscovery)
		return nil
	})
	g.Go(func() error {
		m.every(ctx, m.cfg.PollInterval, m.runPoll)
		return nil
	})
	return g.Wait()
}

func (m *Manager) every(ctx context.Context, interval time.Duration, fn func(context.Context)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}

func (m *Manager) runDiscovery(ctx context.Context) {
	_ = m.Discover(ctx)
}

func (m *Manager) runPoll(ctx context.Context) {
	_ = m.Poll(ctx)
}

// Discover rebuilds the roster. A failed discovery keeps the previous roster.
// Returns ErrBusy without doing anything if a discovery is already running.
func (m *Manager) Discover(ctx context.Context) error {
	if !m.discovering.CompareAndSwap(false, true) {
		m.skip(CycleDiscovery, SkipBusy)
		return ErrBusy
	}
	defer m.discovering.Store(false)

	start := m.now()
	dctx, cancel := context.WithTimeout(ctx, m.cfg.DiscoveryTimeout)
	defer cancel()

	var infos []device.Info
	err := safely(func() error {
		var err error
		infos, err = m.driver.Discover(dctx)
		return err
	})
	elapsed := m.now().Sub(start)
	if err != nil {
		log.Warn().Err(err).Dur("elapsed", elapsed).Msg("Switch discovery failed, keeping previous roster")
		m.observer.DiscoveryCompleted(m.Snapshot().Len(), elapsed, err)
		return err
	}

	next := newRoster(infos, m.Snapshot(), m.now())
	m.current.Store(next)

	log.Info().Int("switches", next.Len()).Dur("elapsed", elapsed).Msg("Switch discovery complete")
	m.observer.DiscoveryCompleted(next.Len(), elapsed, nil)
	return nil
}

// Poll refreshes the cached state of every switch in the current roster.
// A failing device is logged and skipped. Returns ErrDiscovering or ErrBusy
// when the cycle is skipped.
func (m *Manager) Poll(ctx context.Context) error {
	if m.discovering.Load() {
		m.skip(CyclePoll, SkipDiscovery)
		return ErrDiscovering
	}
	if !m.polling.CompareAndSwap(false, true) {
		m.skip(CyclePoll, SkipBusy)
		return ErrBusy
	}
	defer m.polling.Store(false)

	r := m.Snapshot()
	failures := 0
	for _, sw := range r.switches {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if _, err := m.Refresh(ctx, sw); err != nil && !errors.Is(err, device.ErrStateUnknown) {
			failures++
		}
	}
	m.observer.PollCompleted(r.Len(), failures)
	return nil
}

// Refresh queries one switch and updates its cached state.
func (m *Manager) Refresh(ctx context.Context, sw *Switch) (bool, error) {
	dctx, cancel := context.WithTimeout(ctx, m.cfg.DeviceTimeout)
	defer cancel()

	var on bool
	err := safely(func() error {
		var err error
		on, err = m.driver.State(dctx, sw.info)
		return err
	})
	if errors.Is(err, device.ErrStateUnknown) {
		log.Debug().Str("switch", sw.info.Name).Msg("Switch state not yet known")
		return false, err
	}
	if err != nil {
		err = device.Classify(err)
		log.Warn().Err(err).Str("switch", sw.info.Name).Str("address", sw.info.Address).Msg("Switch state query failed")
		m.observer.DeviceFailed("state", sw.info, err)
		return false, err
	}
	m.record(sw, on)
	return on, nil
}

// SetState commands a switch and, on success, updates its cached state.
func (m *Manager) SetState(ctx context.Context, sw *Switch, on bool) error {
	dctx, cancel := context.WithTimeout(ctx, m.cfg.DeviceTimeout)
	defer cancel()

	err := safely(func() error {
		return m.driver.SetState(dctx, sw.info, on)
	})
	if err != nil {
		err = device.Classify(err)
		log.Warn().Err(err).Str("switch", sw.info.Name).Bool("on", on).Msg("Switch command failed")
		m.observer.DeviceFailed("set", sw.info, err)
		return err
	}

	log.Info().Str("switch", sw.info.Name).Bool("on", on).Msg("Switch state set")
	m.record(sw, on)
	return nil
}

func (m *Manager) skip(cycle Cycle, reason string) {
	log.Debug().Str("cycle", string(cycle)).Str("reason", reason).Msg("Cycle skipped")
	m.observer.CycleSkipped(cycle, reason)
}

func (m *Manager) record(sw *Switch, on bool) {
	if !sw.store(on) {
		return
	}
	at := m.now()
	for _, s := range m.sinks {
		s.StateChanged(sw.info, on, at)
	}
}

// safely runs fn, converting a panic into an error so a misbehaving driver
// cannot take down a background loop.
func safely(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("driver panic: %v", r)
		}
	}()
	return fn()
}

type nopObserver struct{}

func (nopObserver) DiscoveryCompleted(int, time.Duration, error) {}
func (nopObserver) PollCompleted(int, int) {}
func (nopObserver) CycleSkipped(Cycle, string) {}
func (nopObserver) DeviceFailed(string, device.Info, error) {}
