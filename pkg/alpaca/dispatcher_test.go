package alpaca

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"testing"
)

func newTestDispatcher(t *testing.T, opts ...Option) (*Dispatcher, *Registry) {
	t.Helper()
	r, err := NewRegistry(CommonMethods, SwitchMethods)
	if err != nil {
		t.Fatal(err)
	}
	maxSwitch := HandlerFunc(func(ctx context.Context, tx *Transaction) Response {
		return Value(tx, 3)
	})
	if err := r.Bind(VerbGet, "maxswitch", maxSwitch); err != nil {
		t.Fatal(err)
	}
	if err := r.Bind(VerbPut, "setswitch", HandlerFunc(okHandler)); err != nil {
		t.Fatal(err)
	}
	return NewDispatcher(r, opts...), r
}

func decode(t *testing.T, resp Response) map[string]any {
	t.Helper()
	b, _, err := resp.Encode()
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("response is not JSON: %s", b)
	}
	return m
}

func TestDispatch_MaxSwitch(t *testing.T) {
	d, _ := newTestDispatcher(t)

	resp := d.Dispatch(context.Background(), "GET", "/api/v1/switch/0/maxswitch", "")
	if resp.Status != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.Status)
	}
	body := decode(t, resp)
	if body["Value"] != float64(3) {
		t.Errorf("Value = %v, want 3", body["Value"])
	}
	if body["ClientTransactionID"] != float64(0) {
		t.Errorf("ClientTransactionID = %v, want 0", body["ClientTransactionID"])
	}
	if body["ServerTransactionID"] != float64(1) {
		t.Errorf("ServerTransactionID = %v, want 1", body["ServerTransactionID"])
	}
	if body["ErrorNumber"] != float64(0) || body["ErrorMessage"] != "" {
		t.Errorf("unexpected error fields: %v", body)
	}
}

func TestDispatch_TransactionCounterCountsEveryRequest(t *testing.T) {
	d, _ := newTestDispatcher(t)
	ctx := context.Background()

	requests := []struct {
		verb, path string
	}{
		{"GET", "/api/v1/switch/0/maxswitch"},
		{"GET", "/nonsense"},
		{"POST", "/api/v1/switch/0/maxswitch"},
		{"GET", "/api/v1/switch/0/nosuchmethod"},
		{"PUT", "/api/v1/switch/0/setswitch"},
		{"GET", "/management/v1/bogus"},
		{"GET", "/api/v1/switch/0/maxswitch"},
	}
	for i, r := range requests {
		d.Dispatch(ctx, r.verb, r.path, "")
		if got := d.LastTransactionID(); got != uint32(i+1) {
			t.Fatalf("after request %d: transaction id = %d, want %d", i, got, i+1)
		}
	}

	body := decode(t, d.Dispatch(ctx, "GET", "/api/v1/switch/0/maxswitch", ""))
	if body["ServerTransactionID"] != float64(len(requests)+1) {
		t.Errorf("ServerTransactionID = %v, want %d", body["ServerTransactionID"], len(requests)+1)
	}
}

func TestDispatch_ConcurrentTransactionIDsAreUnique(t *testing.T) {
	d, _ := newTestDispatcher(t)

	const n = 200
	ids := make(chan float64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp := d.Dispatch(context.Background(), "GET", "/api/v1/switch/0/maxswitch", "")
			b, _, _ := resp.Encode()
			var m map[string]any
			_ = json.Unmarshal(b, &m)
			ids <- m["ServerTransactionID"].(float64)
		}()
	}
	wg.Wait()
	close(ids)

	seen := map[float64]bool{}
	for id := range ids {
		if seen[id] {
			t.Fatalf("duplicate server transaction id %v", id)
		}
		seen[id] = true
	}
	if d.LastTransactionID() != n {
		t.Errorf("last id = %d, want %d", d.LastTransactionID(), n)
	}
}

func TestDispatch_ClientTransactionEcho(t *testing.T) {
	d, _ := newTestDispatcher(t)
	ctx := context.Background()

	body := decode(t, d.Dispatch(ctx, "GET", "/api/v1/switch/0/maxswitch?ClientTransactionID=42", ""))
	if body["ClientTransactionID"] != float64(42) {
		t.Errorf("ClientTransactionID = %v, want 42", body["ClientTransactionID"])
	}

	body = decode(t, d.Dispatch(ctx, "GET", "/api/v1/switch/0/maxswitch?ClientTransactionID=forty-two", ""))
	if body["ClientTransactionID"] != float64(0) {
		t.Errorf("non-numeric ClientTransactionID echoed as %v, want 0", body["ClientTransactionID"])
	}
}

func TestDispatch_UnknownAndUnboundAreIdentical(t *testing.T) {
	d, _ := newTestDispatcher(t)
	ctx := context.Background()

	// getswitch is declared but never bound in newTestDispatcher.
	unknown := d.Dispatch(ctx, "GET", "/api/v1/switch/0/frobnicate?Id=0", "")
	unbound := d.Dispatch(ctx, "GET", "/api/v1/switch/0/getswitch?Id=0", "")

	if unknown.Status != http.StatusBadRequest || unbound.Status != http.StatusBadRequest {
		t.Fatalf("statuses = %d/%d, want 400/400", unknown.Status, unbound.Status)
	}
	if !strings.HasPrefix(unknown.Text, "Unrecognized GET method") || !strings.HasPrefix(unbound.Text, "Unrecognized GET method") {
		t.Errorf("messages differ in class: %q vs %q", unknown.Text, unbound.Text)
	}
	if unknown.IsJSON() || unbound.IsJSON() {
		t.Error("invalid requests must be plain text")
	}
}

func TestDispatch_MissingParamsListsAll(t *testing.T) {
	d, _ := newTestDispatcher(t)

	resp := d.Dispatch(context.Background(), "PUT", "/api/v1/switch/0/setswitch", "ClientID=1")
	if resp.Status != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.Status)
	}
	if !strings.Contains(resp.Text, "id") || !strings.Contains(resp.Text, "state") {
		t.Errorf("message %q should name both id and state", resp.Text)
	}
	b, ctype, _ := resp.Encode()
	if !strings.HasPrefix(ctype, "text/plain") {
		t.Errorf("content type = %q", ctype)
	}
	if string(b) != resp.Text {
		t.Errorf("encoded body = %q", b)
	}
}

func TestDispatch_RejectsOtherVerbs(t *testing.T) {
	d, _ := newTestDispatcher(t)

	resp := d.Dispatch(context.Background(), "DELETE", "/api/v1/switch/0/maxswitch", "")
	if resp.Status != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.Status)
	}
	if !strings.Contains(resp.Text, "DELETE") {
		t.Errorf("message %q should name the verb", resp.Text)
	}
}

func TestDispatch_EmptyMethod(t *testing.T) {
	d, _ := newTestDispatcher(t)

	resp := d.Dispatch(context.Background(), "GET", "/api/v1/switch/0/", "")
	if resp.Status != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.Status)
	}
}

func TestDispatch_Management(t *testing.T) {
	d, _ := newTestDispatcher(t,
		WithDescription(Description{ServerName: "hub", Manufacturer: "me", ManufacturerVersion: "1", Location: "here"}),
		WithConfiguredDevices(ConfiguredDevice{DeviceName: "hub", DeviceType: "Switch", DeviceNumber: 0, UniqueID: "abc"}),
	)
	ctx := context.Background()

	body := decode(t, d.Dispatch(ctx, "GET", "/management/apiversions?ClientTransactionID=3", ""))
	versions, ok := body["Value"].([]any)
	if !ok || len(versions) != 1 || versions[0] != float64(1) {
		t.Errorf("apiversions Value = %v", body["Value"])
	}
	if body["ClientTransactionID"] != float64(3) {
		t.Errorf("ClientTransactionID = %v", body["ClientTransactionID"])
	}
	if _, ok := body["ErrorNumber"]; ok {
		t.Error("management envelope must not carry ErrorNumber")
	}
	if _, ok := body["ErrorMessage"]; ok {
		t.Error("management envelope must not carry ErrorMessage")
	}

	body = decode(t, d.Dispatch(ctx, "GET", "/management/v1/description", ""))
	desc, _ := body["Value"].(map[string]any)
	if desc["ServerName"] != "hub" {
		t.Errorf("description = %v", body["Value"])
	}

	body = decode(t, d.Dispatch(ctx, "GET", "/management/v1/configureddevices", ""))
	devs, _ := body["Value"].([]any)
	if len(devs) != 1 {
		t.Fatalf("configureddevices = %v", body["Value"])
	}
	if devs[0].(map[string]any)["UniqueID"] != "abc" {
		t.Errorf("device = %v", devs[0])
	}

	if resp := d.Dispatch(ctx, "GET", "/management/v1/other", ""); resp.Status != http.StatusBadRequest {
		t.Errorf("unknown management method status = %d, want 400", resp.Status)
	}
}

func TestDispatch_HandlerResultReturnedVerbatim(t *testing.T) {
	d, r := newTestDispatcher(t)
	err := r.Bind(VerbGet, "getswitch", HandlerFunc(func(ctx context.Context, tx *Transaction) Response {
		return DeviceError("device unreachable")
	}))
	if err != nil {
		t.Fatal(err)
	}

	resp := d.Dispatch(context.Background(), "GET", "/api/v1/switch/0/getswitch?id=0", "")
	if resp.Status != http.StatusInternalServerError || resp.Text != "device unreachable" {
		t.Errorf("resp = %+v", resp)
	}
}

type recordingObserver struct {
	mu    sync.Mutex
	calls []int
}

func (o *recordingObserver) TransactionCompleted(family Family, method string, status int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, status)
}

func TestDispatch_Observer(t *testing.T) {
	obs := &recordingObserver{}
	d, _ := newTestDispatcher(t, WithObserver(obs))
	ctx := context.Background()

	d.Dispatch(ctx, "GET", "/api/v1/switch/0/maxswitch", "")
	d.Dispatch(ctx, "GET", "/bad", "")

	if len(obs.calls) != 2 || obs.calls[0] != 200 || obs.calls[1] != 400 {
		t.Errorf("observer calls = %v", obs.calls)
	}
}

func TestWarnUnbound(t *testing.T) {
	d, _ := newTestDispatcher(t)
	want := len(CommonMethods.Methods) + len(SwitchMethods.Methods) - 2
	if got := d.WarnUnbound(); got != want {
		t.Errorf("WarnUnbound() = %d, want %d", got, want)
	}
}
