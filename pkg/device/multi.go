package device

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

// Multi combines several drivers into one. Discovery fans out to every
// child; state operations are routed by Info.Driver.
type Multi struct {
	drivers []Driver
	byName  map[string]Driver
}

// NewMulti creates a Multi over drivers. Later drivers with a duplicate
// name are ignored.
func NewMulti(drivers ...Driver) *Multi {
	m := &Multi{byName: make(map[string]Driver)}
	for _, d := range drivers {
		if _, dup := m.byName[d.Name()]; dup {
			log.Warn().Str("driver", d.Name()).Msg("Duplicate switch driver ignored")
			continue
		}
		m.byName[d.Name()] = d
		m.drivers = append(m.drivers, d)
	}
	return m
}

func (m *Multi) Name() string {
	return "multi"
}

// Discover collects switches from every driver. A driver that fails is
// logged and skipped; the error is returned only when all of them fail.
func (m *Multi) Discover(ctx context.Context) ([]Info, error) {
	var (
		found    []Info
		failures int
		lastErr  error
	)
	for _, d := range m.drivers {
		infos, err := d.Discover(ctx)
		if err != nil {
			failures++
			lastErr = err
			log.Warn().Err(err).Str("driver", d.Name()).Msg("Switch discovery failed")
			continue
		}
		for _, info := range infos {
			if info.Driver == "" {
				info.Driver = d.Name()
			}
			found = append(found, info)
		}
	}
	if failures > 0 && failures == len(m.drivers) {
		return nil, fmt.Errorf("all drivers failed: %w", lastErr)
	}
	return found, nil
}

func (m *Multi) State(ctx context.Context, sw Info) (bool, error) {
	d, err := m.route(sw)
	if err != nil {
		return false, err
	}
	return d.State(ctx, sw)
}

func (m *Multi) SetState(ctx context.Context, sw Info, on bool) error {
	d, err := m.route(sw)
	if err != nil {
		return err
	}
	return d.SetState(ctx, sw, on)
}

func (m *Multi) route(sw Info) (Driver, error) {
	d, ok := m.byName[sw.Driver]
	if !ok {
		return nil, fmt.Errorf("switch %q: no driver %q: %w", sw.Name, sw.Driver, ErrUnsupported)
	}
	return d, nil
}
