package alpaca

import (
	"net/url"
	"strconv"
	"strings"
)

// Family is the API family a request path targets.
type Family string

const (
	FamilyDeviceControl Family = "device-control"
	FamilyManagement    Family = "management"
	FamilyUnrecognized  Family = "unrecognized"
)

// Request is the normalized form of an inbound HTTP request.
type Request struct {
	Family Family
	Method string
	Params map[string]string
}

// ParseRequest splits a request path (with optional query string) and an
// optional url-encoded body into a Request. Parameter names are lowercased;
// body values overwrite query values of the same name.
//
// Device-control paths have exactly five segments:
//
//	/api/<version>/<device-type>/<device-number>/<method>[?query]
func ParseRequest(path, body string) Request {
	req := Request{
		Family: FamilyUnrecognized,
		Params: map[string]string{},
	}

	rawPath, rawQuery, _ := strings.Cut(path, "?")
	fields := strings.Split(rawPath, "/")

	switch {
	case len(fields) == 6 && fields[1] == "api":
		req.Family = FamilyDeviceControl
		req.Params["device_type"] = fields[3]
		req.Params["device_number"] = fields[4]
		req.Method = fields[5]
		mergeForm(req.Params, rawQuery)
	case len(fields) >= 2 && fields[1] == "management":
		req.Family = FamilyManagement
		req.Method = fields[len(fields)-1]
		mergeForm(req.Params, rawQuery)
	}

	mergeForm(req.Params, body)
	return req
}

// mergeForm decodes a url-encoded form into params, walking pairs in the
// order they were sent. Repeats of the same key keep the first value; keys
// that differ only in case collapse to one lowercased name and the one
// that appears later wins. Malformed pairs are dropped; the rest still
// merge.
func mergeForm(params map[string]string, raw string) {
	seen := make(map[string]bool)
	for raw != "" {
		var pair string
		pair, raw, _ = strings.Cut(raw, "&")
		if pair == "" {
			continue
		}
		rawKey, rawValue, _ := strings.Cut(pair, "=")
		key, err := url.QueryUnescape(rawKey)
		if err != nil {
			continue
		}
		value, err := url.QueryUnescape(rawValue)
		if err != nil {
			continue
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		params[strings.ToLower(key)] = value
	}
}

// ClientID returns the clientid parameter, or "0" when absent.
func (r Request) ClientID() string {
	if id, ok := r.Params["clientid"]; ok {
		return id
	}
	return "0"
}

// ClientTransactionID returns the clienttransactionid parameter. Absent and
// unparseable values both yield 0.
func (r Request) ClientTransactionID() uint32 {
	raw, ok := r.Params["clienttransactionid"]
	if !ok {
		return 0
	}
	id, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 32)
	if err != nil {
		return 0
	}
	return uint32(id)
}
