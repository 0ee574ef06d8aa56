package alpaca

import (
	"encoding/json"
	"net/http"
)

// Response is what a handler hands back to the transport: a status code and
// either a JSON body (status 200) or a plain-text message.
type Response struct {
	Status int
	Body   any
	Text   string
}

// IsJSON reports whether the response carries a JSON body.
func (r Response) IsJSON() bool {
	return r.Status == http.StatusOK
}

// Encode renders the response payload and its content type.
func (r Response) Encode() ([]byte, string, error) {
	if !r.IsJSON() {
		return []byte(r.Text), "text/plain; charset=utf-8", nil
	}
	b, err := json.Marshal(r.Body)
	if err != nil {
		return nil, "", err
	}
	return b, "application/json", nil
}

type deviceEnvelope struct {
	ClientTransactionID uint32    `json:"ClientTransactionID"`
	ServerTransactionID uint32    `json:"ServerTransactionID"`
	ErrorNumber         ErrorCode `json:"ErrorNumber"`
	ErrorMessage        string    `json:"ErrorMessage"`
}

type valueEnvelope struct {
	Value any `json:"Value"`
	deviceEnvelope
}

type managementEnvelope struct {
	Value               any    `json:"Value"`
	ClientTransactionID uint32 `json:"ClientTransactionID"`
	ServerTransactionID uint32 `json:"ServerTransactionID"`
}

func envelope(tx *Transaction, code ErrorCode, msg string) deviceEnvelope {
	return deviceEnvelope{
		ClientTransactionID: tx.ClientTransactionID,
		ServerTransactionID: tx.ServerTransactionID,
		ErrorNumber:         code,
		ErrorMessage:        msg,
	}
}

// Nominal is a successful device-control response without a Value field.
func Nominal(tx *Transaction) Response {
	return Response{Status: http.StatusOK, Body: envelope(tx, Success, "")}
}

// Value is a successful device-control response carrying v.
func Value(tx *Transaction, v any) Response {
	return Response{
		Status: http.StatusOK,
		Body:   valueEnvelope{Value: v, deviceEnvelope: envelope(tx, Success, "")},
	}
}

// Error is a protocol-level failure: the exchange itself succeeds and the
// client reads ErrorNumber to learn what went wrong.
func Error(tx *Transaction, code ErrorCode, msg string) Response {
	return Response{Status: http.StatusOK, Body: envelope(tx, code, msg)}
}

// NotSupported answers methods this server declares but does not implement.
func NotSupported(tx *Transaction) Response {
	return Error(tx, ActionNotImplemented, "method not implemented")
}

// InvalidRequest rejects a malformed request with HTTP 400.
func InvalidRequest(msg string) Response {
	return Response{Status: http.StatusBadRequest, Text: msg}
}

// DeviceError reports a device or internal fault with HTTP 500.
func DeviceError(msg string) Response {
	return Response{Status: http.StatusInternalServerError, Text: msg}
}

// Management wraps v in the management envelope, which has no error fields.
func Management(tx *Transaction, v any) Response {
	return Response{
		Status: http.StatusOK,
		Body: managementEnvelope{
			Value:               v,
			ClientTransactionID: tx.ClientTransactionID,
			ServerTransactionID: tx.ServerTransactionID,
		},
	}
}
