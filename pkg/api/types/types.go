package types

import "time"

// HealthResponse is returned from GET /health
type HealthResponse struct {
	Status        string     `json:"status"`
	Switches      int        `json:"switches"`
	Discovering   bool       `json:"discovering"`
	LastDiscovery *time.Time `json:"last_discovery,omitempty"`
	Transactions  uint32     `json:"transactions"`
	Timestamp     time.Time  `json:"timestamp"`
}

// AlpacaResponse is the JSON envelope of a device-control reply. Value is
// omitted for methods that return nothing.
type AlpacaResponse struct {
	Value               any    `json:"Value,omitempty"`
	ClientTransactionID uint32 `json:"ClientTransactionID"`
	ServerTransactionID uint32 `json:"ServerTransactionID"`
	ErrorNumber         int    `json:"ErrorNumber"`
	ErrorMessage        string `json:"ErrorMessage"`
}
