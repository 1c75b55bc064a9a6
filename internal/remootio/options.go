package remootio

import (
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"
)

// DefaultPort is the port the Remootio WebSocket API listens on.
const DefaultPort = 8080

var (
	// HostPattern matches a dotted IPv4 address or a hostname, optionally
	// followed by a ":port" suffix.
	HostPattern = regexp.MustCompile(`^(((25[0-5]|2[0-4][0-9]|1[0-9]{2}|[1-9]?[0-9])\.){3}(25[0-5]|2[0-4][0-9]|1[0-9]{2}|[1-9]?[0-9])|(([a-zA-Z0-9]|[a-zA-Z0-9][a-zA-Z0-9\-]*[a-zA-Z0-9])\.)*([A-Za-z0-9]|[A-Za-z0-9][A-Za-z0-9\-]*[A-Za-z0-9]))(:[0-9]{1,5})?$`)

	// KeyPattern matches an API secret or auth key: 64 uppercase hex characters.
	KeyPattern = regexp.MustCompile(`^[A-F0-9]{64}$`)
)

// ConnectionOptions holds what is needed to open a session with a device.
type ConnectionOptions struct {
	Host         string // hostname or IP, optionally with ":port"
	APISecretKey string // 64 hex characters
	APIAuthKey   string // 64 hex characters
}

// NewConnectionOptions returns options with both keys uppercased.
func NewConnectionOptions(host, secretKey, authKey string) ConnectionOptions {
	return ConnectionOptions{
		Host:         strings.TrimSpace(host),
		APISecretKey: strings.ToUpper(strings.TrimSpace(secretKey)),
		APIAuthKey:   strings.ToUpper(strings.TrimSpace(authKey)),
	}
}

// SplitHost splits "host[:port]" and applies DefaultPort when no port is given.
func SplitHost(hostport string) (string, int, error) {
	if !strings.Contains(hostport, ":") {
		return hostport, DefaultPort, nil
	}
	host, portStr, err := net.SplitHostPort(hostport)
	if err != nil {
		return "", 0, fmt.Errorf("invalid host %q: %w", hostport, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return "", 0, fmt.Errorf("invalid port %q", portStr)
	}
	return host, port, nil
}

// Address returns the "host:port" dial address with the default port applied.
func (o ConnectionOptions) Address() (string, error) {
	host, port, err := SplitHost(o.Host)
	if err != nil {
		return "", err
	}
	return net.JoinHostPort(host, strconv.Itoa(port)), nil
}

// URL returns the WebSocket URL of the device API.
func (o ConnectionOptions) URL() (string, error) {
	addr, err := o.Address()
	if err != nil {
		return "", err
	}
	return "ws://" + addr + "/", nil
}
