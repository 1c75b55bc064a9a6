package remootio

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// DefaultPingInterval is how often a PING frame keeps the session alive.
	DefaultPingInterval = 60 * time.Second

	// DefaultHandshakeTimeout bounds the WebSocket upgrade.
	DefaultHandshakeTimeout = 10 * time.Second

	writeTimeout = 5 * time.Second
)

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger used for connection and frame events.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithDialer replaces the WebSocket dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(c *Client) {
		if d != nil {
			c.dialer = d
		}
	}
}

// WithPingInterval sets the keepalive interval. Zero disables keepalive.
func WithPingInterval(d time.Duration) Option {
	return func(c *Client) {
		c.pingInterval = d
	}
}

// Client is a session with a single Remootio device.
//
// Connect only opens the socket and starts the handshake. The session is
// usable once Connected reports true: the device has identified itself,
// the AUTH challenge was answered and the initial state query returned.
type Client struct {
	opts         ConnectionOptions
	secretKey    []byte
	authKey      []byte
	logger       *zap.Logger
	dialer       *websocket.Dialer
	pingInterval time.Duration

	conn    *websocket.Conn
	writeMu sync.Mutex

	mu            sync.RWMutex
	connected     bool
	authenticated bool
	state         State
	apiVersion    int
	serialNumber  string
	sessionKey    []byte
	lastActionID  int
	err           error
	listeners     []func(State)

	done      chan struct{}
	closeOnce sync.Once
}

// NewClient validates the keys in opts and returns an unconnected client.
func NewClient(opts ConnectionOptions, options ...Option) (*Client, error) {
	secret, err := DecodeKey(opts.APISecretKey)
	if err != nil {
		return nil, fmt.Errorf("api secret key: %w", err)
	}
	auth, err := DecodeKey(opts.APIAuthKey)
	if err != nil {
		return nil, fmt.Errorf("api auth key: %w", err)
	}

	c := &Client{
		opts:         opts,
		secretKey:    secret,
		authKey:      auth,
		logger:       zap.NewNop(),
		dialer:       &websocket.Dialer{HandshakeTimeout: DefaultHandshakeTimeout},
		pingInterval: DefaultPingInterval,
		done:         make(chan struct{}),
	}
	for _, o := range options {
		o(c)
	}
	return c, nil
}

// Connect dials the device and sends HELLO. The rest of the handshake runs
// in the background.
func (c *Client) Connect(ctx context.Context) error {
	u, err := c.opts.URL()
	if err != nil {
		return &ConnectionEstablishmentError{Host: c.opts.Host, Err: err}
	}

	conn, _, err := c.dialer.DialContext(ctx, u, nil)
	if err != nil {
		return &ConnectionEstablishmentError{Host: c.opts.Host, Err: err}
	}
	c.conn = conn
	c.logger.Info("Connection event",
		zap.String("host", c.opts.Host),
		zap.String("event", "connected"),
	)

	if err := c.send(&Frame{Type: FrameHello}); err != nil {
		c.shutdown(err)
		return &ConnectionEstablishmentError{Host: c.opts.Host, Err: err}
	}

	go c.readLoop()
	if c.pingInterval > 0 {
		go c.keepalive()
	}
	return nil
}

// Connected reports whether the session is authenticated and the initial
// state is known.
func (c *Client) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// Err returns the error that ended the session, if any.
func (c *Client) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.err
}

// State returns the last known door state.
func (c *Client) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// APIVersion returns the API version from SERVER_HELLO.
func (c *Client) APIVersion() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.apiVersion
}

// SerialNumber returns the serial number from SERVER_HELLO.
func (c *Client) SerialNumber() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.serialNumber
}

// Host returns the host the client was created for.
func (c *Client) Host() string {
	return c.opts.Host
}

// Done is closed when the session ends.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// OnStateChange registers fn to be called after every state update.
func (c *Client) OnStateChange(fn func(State)) {
	c.mu.Lock()
	c.listeners = append(c.listeners, fn)
	c.mu.Unlock()
}

// Close ends the session.
func (c *Client) Close() error {
	c.shutdown(ErrClosed)
	return nil
}

func (c *Client) shutdown(err error) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.connected = false
		if c.err == nil {
			c.err = err
		}
		c.mu.Unlock()

		if c.conn != nil {
			c.writeMu.Lock()
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			c.writeMu.Unlock()
			_ = c.conn.Close()
		}
		close(c.done)

		if errors.Is(err, ErrClosed) {
			c.logger.Debug("Connection event",
				zap.String("host", c.opts.Host),
				zap.String("event", "closed"),
			)
		} else {
			c.logger.Warn("Connection lost",
				zap.String("host", c.opts.Host),
				zap.Error(err),
			)
		}
	})
}

func (c *Client) send(f *Frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("write %s frame: %w", f.Type, err)
	}
	c.logger.Debug("Frame sent",
		zap.String("host", c.opts.Host),
		zap.String("type", string(f.Type)),
	)
	return nil
}

func (c *Client) sendAction(typ string) error {
	c.mu.Lock()
	id := NextActionID(c.lastActionID)
	c.lastActionID = id
	key := c.sessionKey
	c.mu.Unlock()

	f, err := Seal(&Payload{Action: &Action{Type: typ, ID: id}}, key, c.authKey)
	if err != nil {
		return err
	}
	return c.send(f)
}

func (c *Client) readLoop() {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
			default:
				c.shutdown(fmt.Errorf("read: %w", err))
			}
			return
		}

		var f Frame
		if err := json.Unmarshal(data, &f); err != nil {
			c.logger.Warn("Dropping malformed frame",
				zap.String("host", c.opts.Host),
				zap.Error(err),
			)
			continue
		}
		c.logger.Debug("Frame received",
			zap.String("host", c.opts.Host),
			zap.String("type", string(f.Type)),
		)

		if err := c.handle(&f); err != nil {
			c.shutdown(err)
			return
		}
	}
}

func (c *Client) handle(f *Frame) error {
	switch f.Type {
	case FrameServerHello:
		c.mu.Lock()
		c.apiVersion = f.APIVersion
		c.serialNumber = f.SerialNumber
		c.mu.Unlock()
		return c.send(&Frame{Type: FrameAuth})

	case FrameEncrypted:
		return c.handleEncrypted(f)

	case FrameError:
		if strings.Contains(strings.ToLower(f.ErrorMessage), "authentication") {
			return fmt.Errorf("%w: %s", ErrAuthentication, f.ErrorMessage)
		}
		return &APIError{Message: f.ErrorMessage}

	case FramePong:
		return nil

	default:
		c.logger.Debug("Ignoring frame",
			zap.String("host", c.opts.Host),
			zap.String("type", string(f.Type)),
		)
		return nil
	}
}

func (c *Client) handleEncrypted(f *Frame) error {
	c.mu.RLock()
	key := c.sessionKey
	c.mu.RUnlock()
	if key == nil {
		key = c.secretKey
	}

	p, err := Open(f, key, c.authKey)
	if err != nil {
		c.mu.RLock()
		authenticated := c.authenticated
		c.mu.RUnlock()
		if !authenticated {
			return fmt.Errorf("%w: %v", ErrAuthentication, err)
		}
		return fmt.Errorf("open frame: %w", err)
	}

	switch {
	case p.Challenge != nil:
		sessionKey, err := base64.StdEncoding.DecodeString(p.Challenge.SessionKey)
		if err != nil || len(sessionKey) != 32 {
			return fmt.Errorf("%w: invalid session key", ErrAuthentication)
		}
		c.mu.Lock()
		c.sessionKey = sessionKey
		c.lastActionID = p.Challenge.InitialActionID
		c.authenticated = true
		c.mu.Unlock()
		return c.sendAction(ActionQuery)

	case p.Response != nil:
		if p.Response.Type == ActionQuery {
			if !p.Response.Success {
				return &APIError{Message: "query failed: " + p.Response.ErrorCode}
			}
			c.mu.Lock()
			c.connected = true
			c.mu.Unlock()
			c.setState(ParseState(p.Response.State))
		}
		return nil

	case p.Event != nil:
		if p.Event.Type == EventStateChange {
			c.setState(ParseState(p.Event.State))
		}
		return nil
	}
	return nil
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	c.state = s
	listeners := make([]func(State), len(c.listeners))
	copy(listeners, c.listeners)
	c.mu.Unlock()

	c.logger.Debug("State updated",
		zap.String("host", c.opts.Host),
		zap.String("state", s.String()),
	)
	for _, fn := range listeners {
		fn(s)
	}
}

func (c *Client) keepalive() {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if err := c.send(&Frame{Type: FramePing}); err != nil {
				c.shutdown(err)
				return
			}
		}
	}
}
