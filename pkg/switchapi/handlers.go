// Package switchapi binds the Alpaca Common and Switch methods to a roster.
package switchapi

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"

	"github.com/urmzd/alpacaswitch/pkg/alpaca"
	"github.com/urmzd/alpacaswitch/pkg/device"
	"github.com/urmzd/alpacaswitch/pkg/roster"
)

// Switches is the roster capability the handlers need.
type Switches interface {
	Snapshot() *roster.Roster
	SetState(ctx context.Context, sw *roster.Switch, on bool) error
	Refresh(ctx context.Context, sw *roster.Switch) (bool, error)
}

// Info holds the static strings reported by the Common methods.
type Info struct {
	Name              string
	Description       string
	DriverInfo        string
	DriverVersion     string
	InterfaceVersion  int
	SwitchDescription string
}

// DefaultInfo returns the strings used when none are configured.
func DefaultInfo(version string) Info {
	return Info{
		Name:              "Alpaca switch server",
		Description:       "Alpaca switch server",
		DriverInfo:        "Alpaca switch server for Kasa plugs and USB relay boards",
		DriverVersion:     version,
		InterfaceVersion:  1,
		SwitchDescription: "a network switch",
	}
}

// Handlers is the server context shared by every bound method: the roster and
// the client connection flag.
type Handlers struct {
	switches  Switches
	info      Info
	connected atomic.Bool
}

// New creates the handler set.
func New(switches Switches, info Info) *Handlers {
	return &Handlers{switches: switches, info: info}
}

// Connected reports the flag last written by PUT connected.
func (h *Handlers) Connected() bool {
	return h.connected.Load()
}

// Bindings returns a handler for every Common and Switch method.
func (h *Handlers) Bindings() []alpaca.Binding {
	get := func(name string, fn alpaca.HandlerFunc) alpaca.Binding {
		return alpaca.Binding{Verb: alpaca.VerbGet, Name: name, Handler: fn}
	}
	put := func(name string, fn alpaca.HandlerFunc) alpaca.Binding {
		return alpaca.Binding{Verb: alpaca.VerbPut, Name: name, Handler: fn}
	}

	return []alpaca.Binding{
		get("connected", h.getConnected),
		get("description", h.constant(h.info.Description)),
		get("driverinfo", h.constant(h.info.DriverInfo)),
		get("driverversion", h.constant(h.info.DriverVersion)),
		get("interfaceversion", h.constant(h.info.InterfaceVersion)),
		get("name", h.constant(h.info.Name)),
		get("supportedactions", h.constant([]string{})),
		get("maxswitch", h.maxSwitch),
		get("canwrite", h.perSwitch(func(tx *alpaca.Transaction, sw *roster.Switch) alpaca.Response {
			return alpaca.Value(tx, true)
		})),
		get("getswitch", h.perSwitch(h.getSwitch)),
		get("getswitchvalue", h.perSwitch(h.getSwitchValue)),
		get("getswitchname", h.perSwitch(func(tx *alpaca.Transaction, sw *roster.Switch) alpaca.Response {
			return alpaca.Value(tx, sw.Info().Name)
		})),
		get("getswitchdescription", h.perSwitch(h.getSwitchDescription)),
		get("minswitchvalue", h.perSwitch(func(tx *alpaca.Transaction, sw *roster.Switch) alpaca.Response {
			return alpaca.Value(tx, 0)
		})),
		get("maxswitchvalue", h.perSwitch(func(tx *alpaca.Transaction, sw *roster.Switch) alpaca.Response {
			return alpaca.Value(tx, 1)
		})),
		get("switchstep", h.perSwitch(func(tx *alpaca.Transaction, sw *roster.Switch) alpaca.Response {
			return alpaca.Value(tx, 1)
		})),

		put("connected", h.setConnected),
		put("setswitch", h.setSwitch),
		put("setswitchvalue", h.setSwitchValue),
		put("setswitchname", notSupported),
		put("action", notSupported),
		put("commandblind", notSupported),
		put("commandbool", notSupported),
		put("commandstring", notSupported),
	}
}

func notSupported(ctx context.Context, tx *alpaca.Transaction) alpaca.Response {
	return alpaca.NotSupported(tx)
}

func (h *Handlers) constant(v any) alpaca.HandlerFunc {
	return func(ctx context.Context, tx *alpaca.Transaction) alpaca.Response {
		return alpaca.Value(tx, v)
	}
}

func (h *Handlers) getConnected(ctx context.Context, tx *alpaca.Transaction) alpaca.Response {
	return alpaca.Value(tx, h.connected.Load())
}

func (h *Handlers) setConnected(ctx context.Context, tx *alpaca.Transaction) alpaca.Response {
	v, _ := tx.Param("connected")
	h.connected.Store(isTrue(v))
	return alpaca.Nominal(tx)
}

func (h *Handlers) maxSwitch(ctx context.Context, tx *alpaca.Transaction) alpaca.Response {
	return alpaca.Value(tx, h.switches.Snapshot().Len())
}

// lookup resolves the id parameter against the current roster snapshot.
func (h *Handlers) lookup(tx *alpaca.Transaction) (*roster.Switch, *alpaca.Response) {
	raw, _ := tx.Param("id")
	id, err := strconv.Atoi(raw)
	if err != nil {
		resp := alpaca.Error(tx, alpaca.InvalidValue, fmt.Sprintf("invalid switch id: %s", raw))
		return nil, &resp
	}
	sw, ok := h.switches.Snapshot().At(id)
	if !ok {
		resp := alpaca.Error(tx, alpaca.InvalidValue, fmt.Sprintf("invalid switch id: %d", id))
		return nil, &resp
	}
	return sw, nil
}

func (h *Handlers) perSwitch(fn func(*alpaca.Transaction, *roster.Switch) alpaca.Response) alpaca.HandlerFunc {
	return func(ctx context.Context, tx *alpaca.Transaction) alpaca.Response {
		sw, errResp := h.lookup(tx)
		if errResp != nil {
			return *errResp
		}
		return fn(tx, sw)
	}
}

func (h *Handlers) getSwitch(tx *alpaca.Transaction, sw *roster.Switch) alpaca.Response {
	on, known := sw.State()
	if !known {
		return alpaca.Error(tx, alpaca.ValueNotSet, fmt.Sprintf("state of %s not yet known", sw.Info().Name))
	}
	return alpaca.Value(tx, on)
}

func (h *Handlers) getSwitchValue(tx *alpaca.Transaction, sw *roster.Switch) alpaca.Response {
	on, known := sw.State()
	if !known {
		return alpaca.Error(tx, alpaca.ValueNotSet, fmt.Sprintf("state of %s not yet known", sw.Info().Name))
	}
	if on {
		return alpaca.Value(tx, 1)
	}
	return alpaca.Value(tx, 0)
}

func (h *Handlers) getSwitchDescription(tx *alpaca.Transaction, sw *roster.Switch) alpaca.Response {
	if model := sw.Info().Model; model != "" {
		return alpaca.Value(tx, fmt.Sprintf("%s (%s)", h.info.SwitchDescription, model))
	}
	return alpaca.Value(tx, h.info.SwitchDescription)
}

func (h *Handlers) setSwitch(ctx context.Context, tx *alpaca.Transaction) alpaca.Response {
	sw, errResp := h.lookup(tx)
	if errResp != nil {
		return *errResp
	}
	state, _ := tx.Param("state")
	if err := h.switches.SetState(ctx, sw, isTrue(state)); err != nil {
		return deviceFailure(tx, err, "unable to set switch state")
	}
	return alpaca.Nominal(tx)
}

func (h *Handlers) setSwitchValue(ctx context.Context, tx *alpaca.Transaction) alpaca.Response {
	sw, errResp := h.lookup(tx)
	if errResp != nil {
		return *errResp
	}
	value, _ := tx.Param("value")
	if err := h.switches.SetState(ctx, sw, value == "1"); err != nil {
		return deviceFailure(tx, err, "unable to set switch state")
	}
	if _, err := h.switches.Refresh(ctx, sw); err != nil {
		return deviceFailure(tx, err, "unable to get switch state")
	}
	return alpaca.Nominal(tx)
}

// deviceFailure maps a driver error: transport faults become HTTP 500, an
// answering device that failed becomes VALUE_NOT_SET.
func deviceFailure(tx *alpaca.Transaction, err error, msg string) alpaca.Response {
	if errors.Is(err, device.ErrUnreachable) || errors.Is(err, device.ErrTimeout) {
		return alpaca.DeviceError(fmt.Sprintf("%s: %v", msg, err))
	}
	return alpaca.Error(tx, alpaca.ValueNotSet, msg)
}

// isTrue matches only the literal spellings clients are known to send.
func isTrue(s string) bool {
	return s == "true" || s == "True"
}
