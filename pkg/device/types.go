package device

// Info identifies a discovered switch. It never changes for the lifetime of a
// roster; only a rediscovery can produce a different Info for a slot.
type Info struct {
	Address string `json:"address"` // Driver-specific address (host, serial port and channel)
	Name    string `json:"name"`    // Display name reported by the device
	Model   string `json:"model"`   // Hardware model
	Driver  string `json:"driver"`  // Name of the driver that discovered it
}

// Driver names
const (
	DriverKasa  = "kasa"
	DriverRelay = "relay"
	DriverNull  = "null"
)
