package device

import "context"

// NullDriver is a no-op driver used when no switch hardware is configured.
// It allows the server to run with an empty roster.
type NullDriver struct{}

// NewNullDriver creates a new NullDriver.
func NewNullDriver() *NullDriver {
	return &NullDriver{}
}

func (d *NullDriver) Name() string {
	return DriverNull
}

func (d *NullDriver) Discover(ctx context.Context) ([]Info, error) {
	return []Info{}, nil
}

func (d *NullDriver) State(ctx context.Context, sw Info) (bool, error) {
	return false, ErrNotFound
}

func (d *NullDriver) SetState(ctx context.Context, sw Info, on bool) error {
	return ErrNotFound
}
