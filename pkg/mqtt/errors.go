package mqtt

import "errors"

var (
	// ErrConnectionFailed is returned when the initial connection attempt fails
	ErrConnectionFailed = errors.New("mqtt: connection failed")

	// ErrPublishFailed is returned when a publish is not acknowledged
	ErrPublishFailed = errors.New("mqtt: publish failed")

	// ErrNotConnected is returned when publishing without a broker connection
	ErrNotConnected = errors.New("mqtt: client not connected")
)
