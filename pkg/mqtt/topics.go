package mqtt

import "strings"

// Topics builds topic names under a prefix.
type Topics struct {
	Prefix string
}

// Status is the retained availability topic, also the LWT topic.
func (t Topics) Status() string {
	return t.Prefix + "/status"
}

// SwitchState is the retained state topic of one switch.
func (t Topics) SwitchState(address string) string {
	return t.Prefix + "/switch/" + topicSegment(address) + "/state"
}

var segmentReplacer = strings.NewReplacer("/", "_", "#", "_", "+", "_", ":", "_")

// topicSegment makes a driver address safe as a single topic level.
func topicSegment(address string) string {
	return strings.Trim(segmentReplacer.Replace(address), "_")
}
