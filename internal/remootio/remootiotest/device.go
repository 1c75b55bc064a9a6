// Package remootiotest provides an in-process fake Remootio device for tests.
package remootiotest

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/muurk/remootio/internal/remootio"
)

// Test keys accepted by a Device created with DefaultConfig.
const (
	SecretKey    = "0123456789ABCDEF0123456789ABCDEF0123456789ABCDEF0123456789ABCDEF"
	AuthKey      = "FEDCBA9876543210FEDCBA9876543210FEDCBA9876543210FEDCBA9876543210"
	SerialNumber = "RM4100000042"
)

// Config describes how the fake device behaves.
type Config struct {
	SecretKey    string
	AuthKey      string
	APIVersion   int
	SerialNumber string
	State        remootio.State

	// Silent devices accept the WebSocket but never answer a frame.
	Silent bool
}

// DefaultConfig returns a supported device with a closed door.
func DefaultConfig() Config {
	return Config{
		SecretKey:    SecretKey,
		AuthKey:      AuthKey,
		APIVersion:   3,
		SerialNumber: SerialNumber,
		State:        remootio.StateClosed,
	}
}

// Device is a fake Remootio API endpoint served by httptest.
type Device struct {
	cfg       Config
	secretKey []byte
	authKey   []byte
	server    *httptest.Server
	upgrader  websocket.Upgrader

	mu       sync.Mutex
	state    remootio.State
	sessions map[*session]struct{}
	accepted int
}

type session struct {
	conn       *websocket.Conn
	writeMu    sync.Mutex
	sessionKey []byte
}

// NewDevice starts a fake device. Callers must Close it.
func NewDevice(cfg Config) *Device {
	secret, err := remootio.DecodeKey(cfg.SecretKey)
	if err != nil {
		panic("remootiotest: " + err.Error())
	}
	auth, err := remootio.DecodeKey(cfg.AuthKey)
	if err != nil {
		panic("remootiotest: " + err.Error())
	}

	d := &Device{
		cfg:       cfg,
		secretKey: secret,
		authKey:   auth,
		state:     cfg.State,
		sessions:  make(map[*session]struct{}),
	}
	d.server = httptest.NewServer(http.HandlerFunc(d.serveWS))
	return d
}

// Host returns "127.0.0.1:port", suitable for ConnectionOptions.Host.
func (d *Device) Host() string {
	return strings.TrimPrefix(d.server.URL, "http://")
}

// Accepted returns the number of WebSocket sessions accepted so far.
func (d *Device) Accepted() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.accepted
}

// SetState changes the door state and pushes a StateChange event to every
// authenticated session.
func (d *Device) SetState(s remootio.State) {
	d.mu.Lock()
	d.state = s
	sessions := make([]*session, 0, len(d.sessions))
	for sess := range d.sessions {
		if sess.sessionKey != nil {
			sessions = append(sessions, sess)
		}
	}
	d.mu.Unlock()

	for _, sess := range sessions {
		d.sendEncrypted(sess, &remootio.Payload{
			Event: &remootio.Event{Type: remootio.EventStateChange, State: s.String()},
		})
	}
}

// DropConnections closes every open session from the device side.
func (d *Device) DropConnections() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for sess := range d.sessions {
		_ = sess.conn.Close()
	}
}

// Close stops the device.
func (d *Device) Close() {
	d.DropConnections()
	d.server.Close()
}

func (d *Device) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := d.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	sess := &session{conn: conn}

	d.mu.Lock()
	d.sessions[sess] = struct{}{}
	d.accepted++
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		delete(d.sessions, sess)
		d.mu.Unlock()
		_ = conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if d.cfg.Silent {
			continue
		}

		var f remootio.Frame
		if err := json.Unmarshal(data, &f); err != nil {
			d.send(sess, &remootio.Frame{Type: remootio.FrameError, ErrorMessage: "json error"})
			continue
		}
		d.handle(sess, &f)
	}
}

func (d *Device) handle(sess *session, f *remootio.Frame) {
	switch f.Type {
	case remootio.FrameHello:
		d.send(sess, &remootio.Frame{
			Type:         remootio.FrameServerHello,
			APIVersion:   d.cfg.APIVersion,
			SerialNumber: d.cfg.SerialNumber,
			Message:      "Remootio fake device",
		})

	case remootio.FramePing:
		d.send(sess, &remootio.Frame{Type: remootio.FramePong})

	case remootio.FrameAuth:
		key := make([]byte, 32)
		_, _ = rand.Read(key)
		challenge := &remootio.Payload{Challenge: &remootio.Challenge{
			SessionKey:      base64.StdEncoding.EncodeToString(key),
			InitialActionID: 1000,
		}}
		d.mu.Lock()
		sess.sessionKey = key
		d.mu.Unlock()
		d.sendEncryptedWith(sess, challenge, d.secretKey)

	case remootio.FrameEncrypted:
		if sess.sessionKey == nil {
			d.send(sess, &remootio.Frame{Type: remootio.FrameError, ErrorMessage: "authentication error"})
			return
		}
		p, err := remootio.Open(f, sess.sessionKey, d.authKey)
		if err != nil {
			d.send(sess, &remootio.Frame{Type: remootio.FrameError, ErrorMessage: "authentication error"})
			return
		}
		if p.Action != nil && p.Action.Type == remootio.ActionQuery {
			d.mu.Lock()
			state := d.state
			d.mu.Unlock()
			d.sendEncrypted(sess, &remootio.Payload{Response: &remootio.Response{
				Type:    remootio.ActionQuery,
				ID:      p.Action.ID,
				Success: true,
				State:   state.String(),
			}})
		}
	}
}

func (d *Device) sendEncrypted(sess *session, p *remootio.Payload) {
	d.sendEncryptedWith(sess, p, sess.sessionKey)
}

func (d *Device) sendEncryptedWith(sess *session, p *remootio.Payload, key []byte) {
	f, err := remootio.Seal(p, key, d.authKey)
	if err != nil {
		return
	}
	d.send(sess, f)
}

func (d *Device) send(sess *session, f *remootio.Frame) {
	data, err := json.Marshal(f)
	if err != nil {
		return
	}
	sess.writeMu.Lock()
	defer sess.writeMu.Unlock()
	_ = sess.conn.WriteMessage(websocket.TextMessage, data)
}
