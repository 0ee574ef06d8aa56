package roster

import "errors"

var (
	// ErrBusy indicates the cycle was skipped because it is already running
	ErrBusy = errors.New("cycle already running")

	// ErrDiscovering indicates a poll was skipped because discovery is running
	ErrDiscovering = errors.New("discovery in progress")
)
