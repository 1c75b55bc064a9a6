package discovery

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/muurk/remootio/internal/remootio"
)

// Device represents a Remootio device found on the network
type Device struct {
	// Name is the mDNS instance name (e.g., "Remootio-Garage")
	Name string

	// Hostname is the mDNS hostname (e.g., "remootio-a1b2c3.local.")
	Hostname string

	// IP is the device address, IPv4 when the device announced one
	IP string

	// Port is the websocket API port. Remootio always serves the API on 8080,
	// whatever port the mDNS record advertises.
	Port int

	// AdvertisedPort is the port from the mDNS record
	AdvertisedPort int

	// Metadata contains the mDNS TXT record data
	Metadata map[string]string

	// DiscoveredAt is when the device was discovered
	DiscoveredAt time.Time
}

// String returns a human-readable string representation of the device
func (d *Device) String() string {
	return fmt.Sprintf("Remootio %s (%s) at %s", d.Name, d.Hostname, d.Host())
}

// Host returns the address to enter as the host of the config flow: the IP
// alone on the default port, ip:port otherwise.
func (d *Device) Host() string {
	if d.Port == 0 || d.Port == remootio.DefaultPort {
		return d.IP
	}
	return net.JoinHostPort(d.IP, strconv.Itoa(d.Port))
}

// Matches reports whether match names this device: its instance name,
// hostname, IP or config flow host.
func (d *Device) Matches(match string) bool {
	m := strings.TrimSuffix(strings.ToLower(match), ".")
	return strings.EqualFold(d.Name, m) ||
		strings.TrimSuffix(strings.ToLower(d.Hostname), ".") == m ||
		d.IP == m ||
		d.Host() == m
}

// GetMetadata retrieves a metadata value by key, or returns empty string if not found
func (d *Device) GetMetadata(key string) string {
	if d.Metadata == nil {
		return ""
	}
	return d.Metadata[key]
}
