package roster

import (
	"sort"
	"sync/atomic"
	"time"

	"github.com/urmzd/alpacaswitch/pkg/device"
)

const (
	stateUnknown int32 = iota
	stateOff
	stateOn
)

// Switch is one roster slot. Its identity is fixed; only the cached state
// changes, and it changes atomically.
type Switch struct {
	info  device.Info
	state atomic.Int32
}

// Info returns the switch identity.
func (s *Switch) Info() device.Info {
	return s.info
}

// State returns the last known state and whether any state is known yet.
func (s *Switch) State() (on bool, known bool) {
	switch s.state.Load() {
	case stateOn:
		return true, true
	case stateOff:
		return false, true
	default:
		return false, false
	}
}

// Label renders the cached state as "on", "off" or "unknown".
func (s *Switch) Label() string {
	switch s.state.Load() {
	case stateOn:
		return "on"
	case stateOff:
		return "off"
	default:
		return "unknown"
	}
}

// store records a state and reports whether it differs from the previous one.
func (s *Switch) store(on bool) bool {
	next := stateOff
	if on {
		next = stateOn
	}
	return s.state.Swap(next) != next
}

// Roster is an immutable, ordered snapshot of known switches. Indices are
// stable for the lifetime of a Roster; a rediscovery produces a new one.
type Roster struct {
	switches []*Switch
	built    time.Time
}

var empty = &Roster{}

// newRoster orders infos by display name (address breaks ties) and carries
// cached state over from prev for switches that were already known.
func newRoster(infos []device.Info, prev *Roster, now time.Time) *Roster {
	sorted := make([]device.Info, len(infos))
	copy(sorted, infos)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Name != sorted[j].Name {
			return sorted[i].Name < sorted[j].Name
		}
		return sorted[i].Address < sorted[j].Address
	})

	known := make(map[[2]string]*Switch)
	if prev != nil {
		for _, sw := range prev.switches {
			known[[2]string{sw.info.Driver, sw.info.Address}] = sw
		}
	}

	r := &Roster{switches: make([]*Switch, len(sorted)), built: now}
	for i, info := range sorted {
		sw := &Switch{info: info}
		if old, ok := known[[2]string{info.Driver, info.Address}]; ok {
			sw.state.Store(old.state.Load())
		}
		r.switches[i] = sw
	}
	return r
}

// Len returns the number of switches.
func (r *Roster) Len() int {
	return len(r.switches)
}

// At returns the switch at index i.
func (r *Roster) At(i int) (*Switch, bool) {
	if i < 0 || i >= len(r.switches) {
		return nil, false
	}
	return r.switches[i], true
}

// Switches returns the switches in index order.
func (r *Roster) Switches() []*Switch {
	out := make([]*Switch, len(r.switches))
	copy(out, r.switches)
	return out
}

// BuiltAt returns when the roster was discovered; zero before the first discovery.
func (r *Roster) BuiltAt() time.Time {
	return r.built
}
