package alpaca

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/rs/zerolog/log"
)

// APIVersion is the Alpaca API version served under /api/v1.
const APIVersion = 1

// Description is the body of /management/v1/description.
type Description struct {
	ServerName          string `json:"ServerName"`
	Manufacturer        string `json:"Manufacturer"`
	ManufacturerVersion string `json:"ManufacturerVersion"`
	Location            string `json:"Location"`
}

// ConfiguredDevice is one entry of /management/v1/configureddevices.
type ConfiguredDevice struct {
	DeviceName   string `json:"DeviceName"`
	DeviceType   string `json:"DeviceType"`
	DeviceNumber int    `json:"DeviceNumber"`
	UniqueID     string `json:"UniqueID"`
}

// Observer is notified once per dispatched request.
type Observer interface {
	TransactionCompleted(family Family, method string, status int)
}

// Dispatcher validates requests against a Registry and invokes bound handlers.
// The only state it carries across requests is the transaction counter.
type Dispatcher struct {
	registry    *Registry
	description Description
	devices     []ConfiguredDevice
	observer    Observer

	counter atomic.Uint32
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithDescription sets the management description.
func WithDescription(d Description) Option {
	return func(disp *Dispatcher) { disp.description = d }
}

// WithConfiguredDevices sets the management device list.
func WithConfiguredDevices(devices ...ConfiguredDevice) Option {
	return func(disp *Dispatcher) { disp.devices = devices }
}

// WithObserver registers a per-request observer.
func WithObserver(o Observer) Option {
	return func(disp *Dispatcher) { disp.observer = o }
}

// NewDispatcher creates a dispatcher over registry.
func NewDispatcher(registry *Registry, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		registry: registry,
		devices:  []ConfiguredDevice{},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// WarnUnbound logs every declared method without a handler. Unbound methods
// are served as invalid requests.
func (d *Dispatcher) WarnUnbound() int {
	unbound := d.registry.Unbound()
	for _, spec := range unbound {
		log.Warn().Str("verb", string(spec.Verb)).Str("method", spec.Name).Msg("Alpaca method not bound")
	}
	return len(unbound)
}

// LastTransactionID returns the most recently allocated server transaction id.
func (d *Dispatcher) LastTransactionID() uint32 {
	return d.counter.Load()
}

// Dispatch processes one request. verb is the HTTP method, path the request
// URI including any query string, body the raw url-encoded body (may be empty).
func (d *Dispatcher) Dispatch(ctx context.Context, verb, path, body string) Response {
	req := ParseRequest(path, body)

	tx := &Transaction{
		ClientTransactionID: req.ClientTransactionID(),
		ServerTransactionID: d.counter.Add(1),
		ClientID:            req.ClientID(),
		Verb:                verb,
		Path:                path,
		Method:              req.Method,
		Params:              req.Params,
	}

	var resp Response
	switch req.Family {
	case FamilyManagement:
		resp = d.management(tx)
	case FamilyDeviceControl:
		resp = d.deviceControl(ctx, tx)
	default:
		resp = InvalidRequest(fmt.Sprintf("Unsupported path %q (expected /api/v1/switch/0/<method> or /management/...)", path))
	}

	log.Debug().
		Str("verb", verb).
		Str("method", tx.Method).
		Str("client_id", tx.ClientID).
		Uint32("client_tx", tx.ClientTransactionID).
		Uint32("server_tx", tx.ServerTransactionID).
		Int("status", resp.Status).
		Msg("Alpaca transaction")

	if d.observer != nil {
		d.observer.TransactionCompleted(req.Family, tx.Method, resp.Status)
	}
	return resp
}

func (d *Dispatcher) management(tx *Transaction) Response {
	switch tx.Method {
	case "apiversions":
		return Management(tx, []int{APIVersion})
	case "description":
		return Management(tx, d.description)
	case "configureddevices":
		return Management(tx, d.devices)
	default:
		return InvalidRequest(fmt.Sprintf("Unrecognized %s method %q", tx.Verb, tx.Method))
	}
}

func (d *Dispatcher) deviceControl(ctx context.Context, tx *Transaction) Response {
	verb, err := ParseVerb(tx.Verb)
	if err != nil {
		return InvalidRequest(fmt.Sprintf("Expected GET or PUT request, got %q", tx.Verb))
	}

	if tx.Params["device_type"] == "" || tx.Params["device_number"] == "" || tx.Method == "" {
		return InvalidRequest(fmt.Sprintf("Unsupported path %q (expected /api/v1/switch/0/<method>)", tx.Path))
	}

	spec, handler, ok := d.registry.resolve(verb, tx.Method)
	if !ok {
		return InvalidRequest(fmt.Sprintf("Unrecognized %s method %q", verb, tx.Method))
	}

	var missing []string
	for _, p := range spec.Required {
		if _, present := tx.Params[p.Name]; !present {
			missing = append(missing, p.Name)
		}
	}
	if len(missing) > 0 {
		return InvalidRequest("Missing parameter(s): " + strings.Join(missing, ", "))
	}

	return handler.Handle(ctx, tx)
}
