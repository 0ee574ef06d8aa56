package alpaca

import "testing"

func TestParseRequest_DeviceControl(t *testing.T) {
	req := ParseRequest("/api/v1/switch/0/getswitch?Id=2&ClientTransactionID=9", "")

	if req.Family != FamilyDeviceControl {
		t.Fatalf("family = %s, want %s", req.Family, FamilyDeviceControl)
	}
	if req.Method != "getswitch" {
		t.Errorf("method = %q, want getswitch", req.Method)
	}
	want := map[string]string{
		"device_type":         "switch",
		"device_number":       "0",
		"id":                  "2",
		"clienttransactionid": "9",
	}
	for k, v := range want {
		if req.Params[k] != v {
			t.Errorf("params[%q] = %q, want %q", k, req.Params[k], v)
		}
	}
}

func TestParseRequest_BodyOverridesQuery(t *testing.T) {
	req := ParseRequest("/api/v1/switch/0/setswitch?Id=1&State=false", "ID=2&State=true&ClientID=5")

	if req.Params["id"] != "2" {
		t.Errorf("id = %q, want body value 2", req.Params["id"])
	}
	if req.Params["state"] != "true" {
		t.Errorf("state = %q, want body value true", req.Params["state"])
	}
	if req.ClientID() != "5" {
		t.Errorf("client id = %q, want 5", req.ClientID())
	}
}

func TestParseRequest_RepeatedKeyKeepsFirst(t *testing.T) {
	req := ParseRequest("/api/v1/switch/0/getswitch?id=3&id=4", "")
	if req.Params["id"] != "3" {
		t.Errorf("id = %q, want 3", req.Params["id"])
	}
}

func TestParseRequest_Management(t *testing.T) {
	req := ParseRequest("/management/v1/configureddevices?ClientTransactionID=4", "")

	if req.Family != FamilyManagement {
		t.Fatalf("family = %s, want %s", req.Family, FamilyManagement)
	}
	if req.Method != "configureddevices" {
		t.Errorf("method = %q", req.Method)
	}
	if req.ClientTransactionID() != 4 {
		t.Errorf("client transaction id = %d, want 4", req.ClientTransactionID())
	}
}

func TestParseRequest_Unrecognized(t *testing.T) {
	paths := []string{
		"/",
		"/foo/bar",
		"/api/v1/switch/0",
		"/api/v1/switch/0/getswitch/extra",
		"/setup",
	}
	for _, p := range paths {
		if req := ParseRequest(p, ""); req.Family != FamilyUnrecognized {
			t.Errorf("%s: family = %s, want unrecognized", p, req.Family)
		}
	}
}

func TestParseRequest_MalformedPairDoesNotDropOthers(t *testing.T) {
	req := ParseRequest("/api/v1/switch/0/getswitch?bad=%zz&Id=1", "")
	if req.Params["id"] != "1" {
		t.Errorf("id = %q, want 1", req.Params["id"])
	}
}

func TestClientDefaults(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		wantID string
		wantTx uint32
	}{
		{"absent", "/api/v1/switch/0/maxswitch", "0", 0},
		{"numeric", "/api/v1/switch/0/maxswitch?ClientID=12&ClientTransactionID=34", "12", 34},
		{"non-numeric", "/api/v1/switch/0/maxswitch?ClientTransactionID=abc", "0", 0},
		{"negative", "/api/v1/switch/0/maxswitch?ClientTransactionID=-1", "0", 0},
		{"empty", "/api/v1/switch/0/maxswitch?ClientTransactionID=", "0", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := ParseRequest(tt.path, "")
			if got := req.ClientID(); got != tt.wantID {
				t.Errorf("ClientID() = %q, want %q", got, tt.wantID)
			}
			if got := req.ClientTransactionID(); got != tt.wantTx {
				t.Errorf("ClientTransactionID() = %d, want %d", got, tt.wantTx)
			}
		})
	}
}

func TestParseRequest_CaseVariantsLaterWins(t *testing.T) {
	tests := []struct {
		name string
		path string
		body string
		key  string
		want string
		runs int
	}{
		{"query id", "/api/v1/switch/0/getswitch?Id=1&id=2", "", "id", "2", 200},
		{"query id reversed", "/api/v1/switch/0/getswitch?id=2&Id=1", "", "id", "1", 200},
		{"body transaction", "/api/v1/switch/0/setswitch", "ClientTransactionID=7&clienttransactionid=8", "clienttransactionid", "8", 200},
		{"repeat then variant", "/api/v1/switch/0/getswitch?id=1&Id=2&id=3", "", "id", "2", 200},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for i := 0; i < tt.runs; i++ {
				req := ParseRequest(tt.path, tt.body)
				if got := req.Params[tt.key]; got != tt.want {
					t.Fatalf("run %d: %s = %q, want %q", i, tt.key, got, tt.want)
				}
			}
		})
	}

	req := ParseRequest("/api/v1/switch/0/maxswitch", "ClientTransactionID=7&clienttransactionid=8")
	if got := req.ClientTransactionID(); got != 8 {
		t.Errorf("ClientTransactionID() = %d, want 8", got)
	}
}
