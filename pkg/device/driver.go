package device

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Driver is the capability the roster uses to find and operate switches.
// This abstraction allows the Alpaca server to front different switch
// hardware (Kasa plugs, USB relay boards) through one interface.
type Driver interface {
	// Name identifies the driver; it is stamped into every Info it discovers
	Name() string

	// Discover returns every switch currently reachable
	Discover(ctx context.Context) ([]Info, error)

	// State queries the live on/off state of a switch
	State(ctx context.Context, sw Info) (bool, error)

	// SetState commands a switch on or off and returns once it acknowledges
	SetState(ctx context.Context, sw Info, on bool) error
}

// Classify wraps transport failures so callers can tell an unreachable device
// (ErrUnreachable, ErrTimeout) from one that answered and refused.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrUnreachable) || errors.Is(err, ErrTimeout) || errors.Is(err, ErrRefused) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return fmt.Errorf("%w: %w", ErrTimeout, err)
		}
		return fmt.Errorf("%w: %w", ErrUnreachable, err)
	}
	return err
}
