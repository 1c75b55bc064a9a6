package mqtt

import (
	"strings"

	"github.com/muurk/remootio/internal/config"
)

// Topics builds the topic names under a prefix.
//
//	t := mqtt.NewTopics("home/remootio")
//	t.State("RM4100000042") // home/remootio/RM4100000042/state
type Topics struct {
	prefix string
}

// NewTopics returns a builder for prefix. An empty prefix selects the
// default, and surrounding slashes are dropped.
func NewTopics(prefix string) Topics {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = config.DefaultTopicPrefix
	}
	return Topics{prefix: prefix}
}

// Prefix returns the topic prefix.
func (t Topics) Prefix() string {
	return t.prefix
}

// BridgeStatus carries the bridge last will.
func (t Topics) BridgeStatus() string {
	return t.prefix + "/bridge/status"
}

// State carries the JSON state of a device.
func (t Topics) State(serial string) string {
	return t.prefix + "/" + serial + "/state"
}

// Availability carries "online" or "offline" for a device.
func (t Topics) Availability(serial string) string {
	return t.prefix + "/" + serial + "/availability"
}
