package deviceconfig

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/remootio/internal/remootio"
)

const (
	// DefaultConnectTimeout bounds opening a session and waiting for it to
	// become connected
	DefaultConnectTimeout = 30 * time.Second

	// DefaultPollInterval is how often the connected flag is checked
	DefaultPollInterval = 500 * time.Millisecond

	// MinimumAPIVersion is the oldest supported device API version
	MinimumAPIVersion = 3
)

// DeviceClient is the part of a device session the bootstrap needs.
// *remootio.Client implements it.
type DeviceClient interface {
	Connect(ctx context.Context) error
	Connected() bool
	Err() error
	State() remootio.State
	APIVersion() int
	SerialNumber() string
	Host() string
	Done() <-chan struct{}
	OnStateChange(fn func(remootio.State))
	Close() error
}

// ClientFactory creates an unconnected DeviceClient.
type ClientFactory func(opts remootio.ConnectionOptions, logger *zap.Logger) (DeviceClient, error)

// NewRemootioClient is the ClientFactory backed by the remootio package.
func NewRemootioClient(opts remootio.ConnectionOptions, logger *zap.Logger) (DeviceClient, error) {
	c, err := remootio.NewClient(opts, remootio.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	return c, nil
}

// ReachabilityProber checks that a host answers before a session is opened.
type ReachabilityProber interface {
	Probe(ctx context.Context, host string) error
}

// Step identifies a stage of the bootstrap for progress reporting.
type Step int

const (
	StepValidate Step = iota
	StepProbe
	StepConnect
	StepSensor
	StepAPIVersion
	StepSerial
)

// Steps lists the stages in execution order.
var Steps = []Step{StepValidate, StepProbe, StepConnect, StepSensor, StepAPIVersion, StepSerial}

func (s Step) String() string {
	switch s {
	case StepValidate:
		return "Validate connection parameters"
	case StepProbe:
		return "Check device is reachable"
	case StepConnect:
		return "Open authenticated session"
	case StepSensor:
		return "Check gate sensor"
	case StepAPIVersion:
		return "Check API version"
	case StepSerial:
		return "Read serial number"
	default:
		return fmt.Sprintf("Step(%d)", int(s))
	}
}

// StepEvent reports progress. Err is nil while a step starts and when it
// succeeds; Done distinguishes the two.
type StepEvent struct {
	Step   Step
	Done   bool
	Err    error
	Detail string
}

// Bootstrapper validates connection parameters and opens device sessions
type Bootstrapper struct {
	// ConnectTimeout bounds session setup (default: 30s)
	ConnectTimeout time.Duration

	// PollInterval is the wait-loop interval (default: 500ms)
	PollInterval time.Duration

	// MinimumAPIVersion is the lowest accepted API version (default: 3)
	MinimumAPIVersion int

	// NewClient creates device sessions (default: NewRemootioClient)
	NewClient ClientFactory

	// Prober checks reachability before FetchSerialNumber (default: NewProber())
	Prober ReachabilityProber

	Logger *zap.Logger

	// OnStep, when set, receives progress events
	OnStep func(StepEvent)
}

// NewBootstrapper creates a Bootstrapper with default settings
func NewBootstrapper(logger *zap.Logger) *Bootstrapper {
	if logger == nil {
		logger = zap.NewNop()
	}
	prober := NewProber()
	prober.Logger = logger
	return &Bootstrapper{
		ConnectTimeout:    DefaultConnectTimeout,
		PollInterval:      DefaultPollInterval,
		MinimumAPIVersion: MinimumAPIVersion,
		NewClient:         NewRemootioClient,
		Prober:            prober,
		Logger:            logger,
	}
}

// Validate normalizes and validates params, then connects to the device to
// read its serial number. Field errors are returned before any network
// activity.
func (b *Bootstrapper) Validate(ctx context.Context, params ConnectionParams) (*DeviceRecord, error) {
	params = params.Normalize()

	b.step(StepEvent{Step: StepValidate})
	if err := ValidateConnectionParams(params); err != nil {
		b.step(StepEvent{Step: StepValidate, Done: true, Err: err})
		return nil, err
	}
	b.step(StepEvent{Step: StepValidate, Done: true})

	serial, err := b.FetchSerialNumber(ctx, params.ConnectionOptions())
	if err != nil {
		return nil, err
	}

	return &DeviceRecord{
		Host:         params.Host,
		APISecretKey: params.APISecretKey,
		APIAuthKey:   params.APIAuthKey,
		DeviceClass:  params.DeviceClass,
		SerialNumber: serial,
	}, nil
}

// FetchSerialNumber probes the device, opens a session, verifies the device
// is supported and returns its serial number. The session is closed before
// returning.
func (b *Bootstrapper) FetchSerialNumber(ctx context.Context, opts remootio.ConnectionOptions) (string, error) {
	b.step(StepEvent{Step: StepProbe})
	if err := b.prober().Probe(ctx, opts.Host); err != nil {
		b.step(StepEvent{Step: StepProbe, Done: true, Err: err})
		return "", err
	}
	b.step(StepEvent{Step: StepProbe, Done: true})

	client, err := b.connect(ctx, opts)
	if err != nil {
		return "", err
	}
	defer client.Close()

	if err := b.checkSensor(client, true); err != nil {
		return "", err
	}
	if err := b.checkAPIVersion(client); err != nil {
		return "", err
	}

	b.step(StepEvent{Step: StepSerial})
	serial := client.SerialNumber()
	if serial == "" {
		err := &DeviceError{Type: ErrTypeUnknown, Message: "device did not report a serial number", Host: opts.Host}
		b.step(StepEvent{Step: StepSerial, Done: true, Err: err})
		return "", err
	}
	b.step(StepEvent{Step: StepSerial, Done: true, Detail: serial})

	return serial, nil
}

// CreateClient opens a long-lived session. A missing sensor is logged but
// not fatal. When expectedSerial is non-empty the device must report the
// same serial number. The caller owns the returned client.
func (b *Bootstrapper) CreateClient(ctx context.Context, opts remootio.ConnectionOptions, expectedSerial string) (DeviceClient, error) {
	client, err := b.connect(ctx, opts)
	if err != nil {
		return nil, err
	}

	if err := b.checkSensor(client, false); err != nil {
		client.Close()
		return nil, err
	}
	if err := b.checkAPIVersion(client); err != nil {
		client.Close()
		return nil, err
	}

	if expectedSerial != "" {
		b.step(StepEvent{Step: StepSerial})
		if got := client.SerialNumber(); got != expectedSerial {
			client.Close()
			err := NewSerialMismatchError(opts.Host, expectedSerial, got)
			b.step(StepEvent{Step: StepSerial, Done: true, Err: err})
			return nil, err
		}
		b.step(StepEvent{Step: StepSerial, Done: true, Detail: expectedSerial})
	}

	return client, nil
}

func (b *Bootstrapper) connect(ctx context.Context, opts remootio.ConnectionOptions) (DeviceClient, error) {
	b.step(StepEvent{Step: StepConnect})

	factory := b.NewClient
	if factory == nil {
		factory = NewRemootioClient
	}
	client, err := factory(opts, b.logger())
	if err != nil {
		devErr := &DeviceError{Type: ErrTypeUnknown, Message: "failed to create client", Err: err, Host: opts.Host}
		b.step(StepEvent{Step: StepConnect, Done: true, Err: devErr})
		return nil, devErr
	}

	timeout := b.ConnectTimeout
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	if err := client.Connect(ctx); err != nil {
		client.Close()
		devErr := b.classifyConnectError(opts.Host, err)
		b.step(StepEvent{Step: StepConnect, Done: true, Err: devErr})
		return nil, devErr
	}

	if err := b.waitForConnected(ctx, client); err != nil {
		client.Close()
		devErr := b.classifyConnectError(opts.Host, err)
		b.step(StepEvent{Step: StepConnect, Done: true, Err: devErr})
		return nil, devErr
	}

	b.logger().Info("Connected to device",
		zap.String("host", opts.Host),
		zap.String("serial", client.SerialNumber()),
		zap.Int("api_version", client.APIVersion()),
		zap.Duration("elapsed", time.Since(start)),
	)
	b.step(StepEvent{Step: StepConnect, Done: true})
	return client, nil
}

// waitForConnected polls until the client reports connected, the session
// fails or ctx ends.
func (b *Bootstrapper) waitForConnected(ctx context.Context, client DeviceClient) error {
	interval := b.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if client.Connected() {
			return nil
		}
		if err := client.Err(); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (b *Bootstrapper) classifyConnectError(host string, err error) error {
	var connErr *remootio.ConnectionEstablishmentError
	switch {
	case errors.Is(err, remootio.ErrAuthentication):
		return NewAuthError(host, err)
	case errors.Is(err, context.DeadlineExceeded):
		return NewConnectTimeoutError(host, err)
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("connect to %s: %w", host, err)
	case errors.As(err, &connErr):
		return NewCannotConnectError(host, connErr.Err)
	}

	var apiErr *remootio.APIError
	if errors.As(err, &apiErr) {
		return &DeviceError{Type: ErrTypeUnknown, Message: apiErr.Message, Err: err, Host: host}
	}
	// The session dropped during the handshake.
	return NewCannotConnectError(host, err)
}

func (b *Bootstrapper) checkSensor(client DeviceClient, fatal bool) error {
	b.step(StepEvent{Step: StepSensor})
	if client.State() != remootio.StateNoSensorInstalled {
		b.step(StepEvent{Step: StepSensor, Done: true, Detail: client.State().String()})
		return nil
	}

	if !fatal {
		b.logger().Error("Your Remootio device isn't supported - no sensor installed",
			zap.String("host", client.Host()),
		)
		b.step(StepEvent{Step: StepSensor, Done: true, Detail: "no sensor installed"})
		return nil
	}

	err := NewUnsupportedDeviceError(client.Host())
	b.step(StepEvent{Step: StepSensor, Done: true, Err: err})
	return err
}

func (b *Bootstrapper) checkAPIVersion(client DeviceClient) error {
	b.step(StepEvent{Step: StepAPIVersion})
	minimum := b.MinimumAPIVersion
	if minimum <= 0 {
		minimum = MinimumAPIVersion
	}
	if v := client.APIVersion(); v < minimum {
		err := NewUnsupportedAPIVersionError(client.Host(), v, minimum)
		b.step(StepEvent{Step: StepAPIVersion, Done: true, Err: err})
		return err
	}
	b.step(StepEvent{Step: StepAPIVersion, Done: true, Detail: fmt.Sprintf("v%d", client.APIVersion())})
	return nil
}

func (b *Bootstrapper) prober() ReachabilityProber {
	if b.Prober == nil {
		p := NewProber()
		p.Logger = b.logger()
		return p
	}
	return b.Prober
}

func (b *Bootstrapper) logger() *zap.Logger {
	if b.Logger == nil {
		return zap.NewNop()
	}
	return b.Logger
}

func (b *Bootstrapper) step(ev StepEvent) {
	if b.OnStep != nil {
		b.OnStep(ev)
	}
}
