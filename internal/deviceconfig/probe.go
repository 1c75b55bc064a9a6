package deviceconfig

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/muurk/remootio/internal/remootio"
)

// DefaultProbeTimeout bounds a reachability probe.
const DefaultProbeTimeout = 5 * time.Second

// Prober checks whether anything answers on a device's API port before a
// full session is attempted.
type Prober struct {
	// Timeout bounds both probe attempts together (default: 5s)
	Timeout time.Duration

	// Logger receives debug output for failed attempts
	Logger *zap.Logger

	dialer *websocket.Dialer
}

// NewProber creates a prober with the default timeout
func NewProber() *Prober {
	return &Prober{
		Timeout: DefaultProbeTimeout,
		Logger:  zap.NewNop(),
		dialer:  &websocket.Dialer{},
	}
}

// Probe tries a WebSocket upgrade on host ("host[:port]") and falls back to a
// plain TCP connect. It returns a NotReady DeviceError when neither works.
func (p *Prober) Probe(ctx context.Context, host string) error {
	h, port, err := remootio.SplitHost(host)
	if err != nil {
		return NewFieldError(FieldHost, err.Error())
	}
	addr := net.JoinHostPort(h, strconv.Itoa(port))

	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	dialer := p.dialer
	if dialer == nil {
		dialer = &websocket.Dialer{}
	}

	conn, _, wsErr := dialer.DialContext(ctx, "ws://"+addr+"/", nil)
	if wsErr == nil {
		_ = conn.Close()
		logger.Debug("Probe succeeded", zap.String("host", addr), zap.String("method", "websocket"))
		return nil
	}
	logger.Debug("WebSocket probe failed, trying TCP",
		zap.String("host", addr),
		zap.Error(wsErr),
	)

	var d net.Dialer
	tcpConn, tcpErr := d.DialContext(ctx, "tcp", addr)
	if tcpErr == nil {
		_ = tcpConn.Close()
		logger.Debug("Probe succeeded", zap.String("host", addr), zap.String("method", "tcp"))
		return nil
	}

	logger.Info("Device not reachable",
		zap.String("host", addr),
		zap.Error(tcpErr),
	)
	return NewNotReadyError(addr, tcpErr)
}

// CheckDeviceAvailability reports whether a TCP connection to host:port can
// be opened within DefaultProbeTimeout.
func CheckDeviceAvailability(ctx context.Context, host string, port int) bool {
	d := net.Dialer{Timeout: DefaultProbeTimeout}
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}
