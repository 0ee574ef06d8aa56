package mcp

import (
	"time"

	"github.com/urmzd/alpacaswitch/pkg/db"
	"github.com/urmzd/alpacaswitch/pkg/roster"
)

// --- Health Tool ---

// GetHealthOutput is the output for the get_health tool
type GetHealthOutput struct {
	Status        string `json:"status" jsonschema:"description=healthy once a roster exists, starting before the first discovery"`
	Switches      int    `json:"switches" jsonschema:"description=Number of switches in the roster"`
	Discovering   bool   `json:"discovering" jsonschema:"description=Whether a discovery cycle is running"`
	LastDiscovery string `json:"last_discovery,omitempty" jsonschema:"description=ISO8601 time the roster was built"`
	Timestamp     string `json:"timestamp" jsonschema:"description=ISO8601 timestamp"`
}

// --- List Switches Tool ---

// ListSwitchesOutput is the output for the list_switches tool
type ListSwitchesOutput struct {
	Switches []SwitchInfo `json:"switches" jsonschema:"description=Switches in roster order"`
	Count    int          `json:"count" jsonschema:"description=Total number of switches"`
}

// SwitchInfo represents a switch in tool outputs
type SwitchInfo struct {
	ID      int    `json:"id" jsonschema:"description=Roster index, the Alpaca switch id"`
	Name    string `json:"name" jsonschema:"description=Display name reported by the device"`
	Address string `json:"address" jsonschema:"description=Driver-specific address"`
	Model   string `json:"model,omitempty" jsonschema:"description=Hardware model"`
	Driver  string `json:"driver" jsonschema:"description=Driver that discovered the switch"`
	State   string `json:"state" jsonschema:"description=on, off or unknown"`
}

// --- Get Switch Tool ---

// GetSwitchOutput is the output for the get_switch tool
type GetSwitchOutput struct {
	Switch SwitchInfo `json:"switch" jsonschema:"description=Switch with freshly read state"`
}

// --- Set Switch Tool ---

// SetSwitchOutput is the output for the set_switch tool
type SetSwitchOutput struct {
	Switch SwitchInfo `json:"switch" jsonschema:"description=Switch after the write"`
}

// --- Rediscover Tool ---

// RediscoverOutput is the output for the rediscover tool
type RediscoverOutput struct {
	Switches []SwitchInfo `json:"switches" jsonschema:"description=The rebuilt roster"`
	Count    int          `json:"count" jsonschema:"description=Total number of switches"`
}

// --- Switch History Tool ---

// SwitchHistoryOutput is the output for the switch_history tool
type SwitchHistoryOutput struct {
	Events []*db.Event `json:"events" jsonschema:"description=Newest transitions first"`
	Count  int         `json:"count" jsonschema:"description=Number of events returned"`
}

// --- Helper conversions ---

// SwitchToInfo converts the roster switch at index i to SwitchInfo
func SwitchToInfo(i int, sw *roster.Switch) SwitchInfo {
	info := sw.Info()
	return SwitchInfo{
		ID:      i,
		Name:    info.Name,
		Address: info.Address,
		Model:   info.Model,
		Driver:  info.Driver,
		State:   sw.Label(),
	}
}

func rosterInfos(r *roster.Roster) []SwitchInfo {
	out := make([]SwitchInfo, 0, r.Len())
	for i, sw := range r.Switches() {
		out = append(out, SwitchToInfo(i, sw))
	}
	return out
}

func timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
