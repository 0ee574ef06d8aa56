package switchapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/urmzd/alpacaswitch/pkg/alpaca"
	"github.com/urmzd/alpacaswitch/pkg/device"
	"github.com/urmzd/alpacaswitch/pkg/roster"
)

type plugs struct {
	mu     sync.Mutex
	states map[string]bool
	err    error
}

func (p *plugs) Name() string { return "fake" }

func (p *plugs) Discover(ctx context.Context) ([]device.Info, error) {
	return []device.Info{
		{Address: "10.0.0.3", Name: "Mount", Model: "HS103", Driver: "fake"},
		{Address: "10.0.0.1", Name: "Camera", Model: "HS103", Driver: "fake"},
		{Address: "10.0.0.2", Name: "Dew heater", Driver: "fake"},
	}, nil
}

func (p *plugs) State(ctx context.Context, sw device.Info) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return false, p.err
	}
	return p.states[sw.Address], nil
}

func (p *plugs) SetState(ctx context.Context, sw device.Info, on bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.states[sw.Address] = on
	return nil
}

func setup(t *testing.T) (*alpaca.Dispatcher, *plugs, *Handlers) {
	t.Helper()
	drv := &plugs{states: map[string]bool{"10.0.0.1": true}}
	m := roster.NewManager(drv, roster.Config{})
	if err := m.Discover(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := m.Poll(context.Background()); err != nil {
		t.Fatal(err)
	}

	reg, err := alpaca.NewRegistry(alpaca.CommonMethods, alpaca.SwitchMethods)
	if err != nil {
		t.Fatal(err)
	}
	h := New(m, DefaultInfo("test"))
	if err := reg.BindAll(h.Bindings()); err != nil {
		t.Fatal(err)
	}
	return alpaca.NewDispatcher(reg), drv, h
}

func call(t *testing.T, d *alpaca.Dispatcher, verb, path, body string) (alpaca.Response, map[string]any) {
	t.Helper()
	resp := d.Dispatch(context.Background(), verb, path, body)
	if !resp.IsJSON() {
		return resp, nil
	}
	b, _, err := resp.Encode()
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatal(err)
	}
	return resp, m
}

func TestEveryMethodBound(t *testing.T) {
	reg, err := alpaca.NewRegistry(alpaca.CommonMethods, alpaca.SwitchMethods)
	if err != nil {
		t.Fatal(err)
	}
	h := New(roster.NewManager(device.NewNullDriver(), roster.Config{}), DefaultInfo("test"))
	if err := reg.BindAll(h.Bindings()); err != nil {
		t.Fatal(err)
	}
	if unbound := reg.Unbound(); len(unbound) != 0 {
		t.Errorf("unbound methods: %v", unbound)
	}
}

func TestMaxSwitch(t *testing.T) {
	d, _, _ := setup(t)
	resp, body := call(t, d, "GET", "/api/v1/switch/0/maxswitch", "")
	if resp.Status != http.StatusOK || body["Value"] != float64(3) {
		t.Errorf("maxswitch = %d %v", resp.Status, body)
	}
	if body["ErrorNumber"] != float64(0) {
		t.Errorf("ErrorNumber = %v", body["ErrorNumber"])
	}
}

func TestSwitchesOrderedByName(t *testing.T) {
	d, _, _ := setup(t)
	for i, want := range []string{"Camera", "Dew heater", "Mount"} {
		_, body := call(t, d, "GET", "/api/v1/switch/0/getswitchname?Id="+string(rune('0'+i)), "")
		if body["Value"] != want {
			t.Errorf("switch %d name = %v, want %s", i, body["Value"], want)
		}
	}
}

func TestGetSwitchValue(t *testing.T) {
	d, _, _ := setup(t)

	_, body := call(t, d, "GET", "/api/v1/switch/0/getswitchvalue?Id=0", "")
	if body["Value"] != float64(1) {
		t.Errorf("on switch value = %v, want 1", body["Value"])
	}
	_, body = call(t, d, "GET", "/api/v1/switch/0/getswitchvalue?Id=1", "")
	if body["Value"] != float64(0) {
		t.Errorf("off switch value = %v, want 0", body["Value"])
	}
	_, body = call(t, d, "GET", "/api/v1/switch/0/getswitch?Id=0", "")
	if body["Value"] != true {
		t.Errorf("getswitch = %v, want true", body["Value"])
	}
}

func TestInvalidSwitchID(t *testing.T) {
	d, _, _ := setup(t)

	resp, body := call(t, d, "PUT", "/api/v1/switch/0/setswitch", "ClientID=5&ClientTransactionID=7&Id=99&State=true")
	if resp.Status != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.Status)
	}
	if body["ErrorNumber"] != float64(alpaca.InvalidValue) {
		t.Errorf("ErrorNumber = %v, want %d", body["ErrorNumber"], alpaca.InvalidValue)
	}
	if msg, _ := body["ErrorMessage"].(string); !strings.Contains(msg, "99") {
		t.Errorf("ErrorMessage = %q, should mention 99", msg)
	}
	if body["ClientTransactionID"] != float64(7) {
		t.Errorf("ClientTransactionID = %v, want 7", body["ClientTransactionID"])
	}

	for _, id := range []string{"-1", "abc", "3"} {
		_, body := call(t, d, "GET", "/api/v1/switch/0/canwrite?Id="+id, "")
		if body["ErrorNumber"] != float64(alpaca.InvalidValue) {
			t.Errorf("canwrite id=%s ErrorNumber = %v", id, body["ErrorNumber"])
		}
	}
}

func TestSetSwitch(t *testing.T) {
	d, drv, _ := setup(t)

	resp, body := call(t, d, "PUT", "/api/v1/switch/0/setswitch", "Id=1&State=True")
	if resp.Status != http.StatusOK || body["ErrorNumber"] != float64(0) {
		t.Fatalf("setswitch = %d %v", resp.Status, body)
	}
	if _, ok := body["Value"]; ok {
		t.Error("setswitch must not carry a Value")
	}
	if !drv.states["10.0.0.2"] {
		t.Error("device not switched on")
	}
	_, body = call(t, d, "GET", "/api/v1/switch/0/getswitch?Id=1", "")
	if body["Value"] != true {
		t.Errorf("cached state = %v, want true", body["Value"])
	}

	// Only the literal spellings count as true.
	call(t, d, "PUT", "/api/v1/switch/0/setswitch", "Id=1&State=TRUE")
	if drv.states["10.0.0.2"] {
		t.Error("TRUE must be treated as false")
	}
}

func TestSetSwitchValue(t *testing.T) {
	d, drv, _ := setup(t)

	call(t, d, "PUT", "/api/v1/switch/0/setswitchvalue", "Id=2&Value=1")
	if !drv.states["10.0.0.3"] {
		t.Error("value 1 should switch on")
	}
	call(t, d, "PUT", "/api/v1/switch/0/setswitchvalue", "Id=2&Value=1.0")
	if drv.states["10.0.0.3"] {
		t.Error("only the literal 1 switches on")
	}
}

func TestDeviceFailures(t *testing.T) {
	d, drv, _ := setup(t)

	drv.err = device.ErrRefused
	resp, body := call(t, d, "PUT", "/api/v1/switch/0/setswitch", "Id=0&State=false")
	if resp.Status != http.StatusOK || body["ErrorNumber"] != float64(alpaca.ValueNotSet) {
		t.Errorf("refused = %d %v", resp.Status, body)
	}

	drv.err = errors.Join(device.ErrUnreachable, errors.New("connection refused"))
	resp, _ = call(t, d, "PUT", "/api/v1/switch/0/setswitch", "Id=0&State=false")
	if resp.Status != http.StatusInternalServerError {
		t.Errorf("unreachable status = %d, want 500", resp.Status)
	}
	if resp.IsJSON() || !strings.Contains(resp.Text, "unable to set switch state") {
		t.Errorf("unreachable body = %q", resp.Text)
	}
}

func TestUnknownStateIsNotSet(t *testing.T) {
	drv := &plugs{states: map[string]bool{}}
	m := roster.NewManager(drv, roster.Config{})
	_ = m.Discover(context.Background())

	reg, _ := alpaca.NewRegistry(alpaca.CommonMethods, alpaca.SwitchMethods)
	_ = reg.BindAll(New(m, DefaultInfo("test")).Bindings())
	d := alpaca.NewDispatcher(reg)

	_, body := call(t, d, "GET", "/api/v1/switch/0/getswitch?Id=0", "")
	if body["ErrorNumber"] != float64(alpaca.ValueNotSet) {
		t.Errorf("ErrorNumber = %v, want VALUE_NOT_SET", body["ErrorNumber"])
	}
}

func TestConnected(t *testing.T) {
	d, _, h := setup(t)

	call(t, d, "PUT", "/api/v1/switch/0/connected", "Connected=True")
	if !h.Connected() {
		t.Error("expected connected")
	}
	_, body := call(t, d, "GET", "/api/v1/switch/0/connected", "")
	if body["Value"] != true {
		t.Errorf("connected = %v", body["Value"])
	}
	call(t, d, "PUT", "/api/v1/switch/0/connected", "Connected=yes")
	if h.Connected() {
		t.Error("yes must not count as true")
	}
}

func TestNotImplemented(t *testing.T) {
	d, _, _ := setup(t)
	tests := []struct {
		path, body string
	}{
		{"/api/v1/switch/0/action", "Action=x&Parameters="},
		{"/api/v1/switch/0/commandblind", "Command=x&Raw=false"},
		{"/api/v1/switch/0/commandbool", "Command=x&Raw=false"},
		{"/api/v1/switch/0/commandstring", "Command=x&Raw=false"},
		{"/api/v1/switch/0/setswitchname", "Id=0&Name=x"},
	}
	for _, tt := range tests {
		_, body := call(t, d, "PUT", tt.path, tt.body)
		if body["ErrorNumber"] != float64(alpaca.ActionNotImplemented) {
			t.Errorf("%s ErrorNumber = %v", tt.path, body["ErrorNumber"])
		}
	}
}

func TestStaticProperties(t *testing.T) {
	d, _, _ := setup(t)
	tests := []struct {
		path string
		want any
	}{
		{"/api/v1/switch/0/canwrite?Id=0", true},
		{"/api/v1/switch/0/minswitchvalue?Id=0", float64(0)},
		{"/api/v1/switch/0/maxswitchvalue?Id=0", float64(1)},
		{"/api/v1/switch/0/switchstep?Id=0", float64(1)},
		{"/api/v1/switch/0/interfaceversion", float64(1)},
		{"/api/v1/switch/0/driverversion", "test"},
		{"/api/v1/switch/0/getswitchdescription?Id=0", "a network switch (HS103)"},
		{"/api/v1/switch/0/getswitchdescription?Id=1", "a network switch"},
	}
	for _, tt := range tests {
		_, body := call(t, d, "GET", tt.path, "")
		if body["Value"] != tt.want {
			t.Errorf("%s = %v, want %v", tt.path, body["Value"], tt.want)
		}
	}

	_, body := call(t, d, "GET", "/api/v1/switch/0/supportedactions", "")
	if actions, ok := body["Value"].([]any); !ok || len(actions) != 0 {
		t.Errorf("supportedactions = %v", body["Value"])
	}
}
