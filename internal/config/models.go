package config

import (
	"sort"
	"time"

	"github.com/muurk/remootio/internal/deviceconfig"
	"github.com/muurk/remootio/internal/remootio"
)

// Registry represents the entire user configuration file.
// It stores the config entries of onboarded devices and application preferences.
type Registry struct {
	Version     int               `yaml:"version"`
	Entries     map[string]*Entry `yaml:"entries,omitempty"` // Keyed by device serial number
	Preferences *Preferences      `yaml:"preferences,omitempty"`
}

// Entry is the persisted record of one onboarded Remootio device.
type Entry struct {
	Title        string    `yaml:"title"`
	Host         string    `yaml:"host"`
	APISecretKey string    `yaml:"api_secret_key"`
	APIAuthKey   string    `yaml:"api_auth_key"`
	DeviceClass  string    `yaml:"device_class"`
	SerialNumber string    `yaml:"serial_number"`
	CreatedAt    time.Time `yaml:"created_at"`
	UpdatedAt    time.Time `yaml:"updated_at"`
	LastSeen     time.Time `yaml:"last_seen,omitempty"` // Last successful connection
}

// Preferences represents application-wide user preferences.
type Preferences struct {
	AutoDiscover    bool         `yaml:"auto_discover"`    // Scan for devices when the wizard starts
	DiscoverTimeout int          `yaml:"discover_timeout"` // mDNS discovery timeout in seconds
	Bridge          *BridgePrefs `yaml:"bridge,omitempty"`
}

// BridgePrefs configures the remootio-bridge process.
type BridgePrefs struct {
	ListenAddr        string     `yaml:"listen_addr"`         // HTTP API and metrics listen address
	RetryInitialDelay int        `yaml:"retry_initial_delay"` // Seconds before the first reconnect attempt
	RetryMaxDelay     int        `yaml:"retry_max_delay"`     // Upper bound for reconnect backoff, in seconds
	MQTT              *MQTTPrefs `yaml:"mqtt,omitempty"`      // State publishing; disabled when nil
}

// MQTTPrefs configures state publishing.
type MQTTPrefs struct {
	Broker      string `yaml:"broker"` // e.g. tcp://localhost:1883
	ClientID    string `yaml:"client_id,omitempty"`
	Username    string `yaml:"username,omitempty"`
	Password    string `yaml:"password,omitempty"`
	TopicPrefix string `yaml:"topic_prefix,omitempty"`
}

// Default preference values.
const (
	DefaultDiscoverTimeout   = 10
	DefaultListenAddr        = ":9480"
	DefaultRetryInitialDelay = 5
	DefaultRetryMaxDelay     = 300
	DefaultTopicPrefix       = "remootio"
)

// NewRegistry creates a new Registry with default values.
func NewRegistry() *Registry {
	return &Registry{
		Version:     1,
		Entries:     make(map[string]*Entry),
		Preferences: DefaultPreferences(),
	}
}

// DefaultPreferences returns the preferences used when the file has none.
func DefaultPreferences() *Preferences {
	return &Preferences{
		AutoDiscover:    true,
		DiscoverTimeout: DefaultDiscoverTimeout,
		Bridge: &BridgePrefs{
			ListenAddr:        DefaultListenAddr,
			RetryInitialDelay: DefaultRetryInitialDelay,
			RetryMaxDelay:     DefaultRetryMaxDelay,
		},
	}
}

// applyDefaults fills zero values left by an older or hand-edited file.
func (r *Registry) applyDefaults() {
	if r.Entries == nil {
		r.Entries = make(map[string]*Entry)
	}
	if r.Preferences == nil {
		r.Preferences = DefaultPreferences()
		return
	}
	if r.Preferences.DiscoverTimeout <= 0 {
		r.Preferences.DiscoverTimeout = DefaultDiscoverTimeout
	}
	if r.Preferences.Bridge == nil {
		r.Preferences.Bridge = DefaultPreferences().Bridge
	}
	b := r.Preferences.Bridge
	if b.ListenAddr == "" {
		b.ListenAddr = DefaultListenAddr
	}
	if b.RetryInitialDelay <= 0 {
		b.RetryInitialDelay = DefaultRetryInitialDelay
	}
	if b.RetryMaxDelay <= 0 {
		b.RetryMaxDelay = DefaultRetryMaxDelay
	}
	if b.MQTT != nil && b.MQTT.TopicPrefix == "" {
		b.MQTT.TopicPrefix = DefaultTopicPrefix
	}
}

// GetEntry retrieves an entry by serial number.
// Returns nil if the device hasn't been onboarded.
func (r *Registry) GetEntry(serial string) *Entry {
	return r.Entries[serial]
}

// SortedEntries returns all entries ordered by title.
func (r *Registry) SortedEntries() []*Entry {
	out := make([]*Entry, 0, len(r.Entries))
	for _, e := range r.Entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Title == out[j].Title {
			return out[i].SerialNumber < out[j].SerialNumber
		}
		return out[i].Title < out[j].Title
	})
	return out
}

// NewEntry builds an entry from a validated device record.
func NewEntry(rec *deviceconfig.DeviceRecord, now time.Time) *Entry {
	return &Entry{
		Title:        rec.Title(),
		Host:         rec.Host,
		APISecretKey: rec.APISecretKey,
		APIAuthKey:   rec.APIAuthKey,
		DeviceClass:  string(rec.DeviceClass),
		SerialNumber: rec.SerialNumber,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// apply overwrites the connection data of e with rec.
func (e *Entry) apply(rec *deviceconfig.DeviceRecord, now time.Time) {
	e.Title = rec.Title()
	e.Host = rec.Host
	e.APISecretKey = rec.APISecretKey
	e.APIAuthKey = rec.APIAuthKey
	e.DeviceClass = string(rec.DeviceClass)
	e.UpdatedAt = now
}

// ConnectionOptions returns the options used to open a session.
func (e *Entry) ConnectionOptions() remootio.ConnectionOptions {
	return remootio.NewConnectionOptions(e.Host, e.APISecretKey, e.APIAuthKey)
}

// Redacted returns a copy with both API keys masked, for display.
func (e *Entry) Redacted() Entry {
	c := *e
	c.APISecretKey = redactKey(e.APISecretKey)
	c.APIAuthKey = redactKey(e.APIAuthKey)
	return c
}

func redactKey(k string) string {
	if len(k) <= 4 {
		return "****"
	}
	return k[:4] + "…"
}
