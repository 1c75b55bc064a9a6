package config

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/muurk/remootio/internal/deviceconfig"
)

func TestGetConfigDir(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("XDG override only applies on linux")
	}
	tmp := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmp)

	configDir, err := GetConfigDir()
	if err != nil {
		t.Fatalf("GetConfigDir() error = %v", err)
	}
	if want := filepath.Join(tmp, "remootio"); configDir != want {
		t.Errorf("GetConfigDir() = %v, want %v", configDir, want)
	}

	configPath, err := GetConfigPath()
	if err != nil {
		t.Fatalf("GetConfigPath() error = %v", err)
	}
	if filepath.Base(configPath) != "config.yaml" {
		t.Errorf("GetConfigPath() should end with 'config.yaml', got: %v", configPath)
	}
}

func TestNewRegistry(t *testing.T) {
	reg := NewRegistry()

	if reg.Version != 1 {
		t.Errorf("NewRegistry().Version = %v, want 1", reg.Version)
	}
	if reg.Entries == nil {
		t.Error("NewRegistry().Entries should not be nil")
	}
	if !reg.Preferences.AutoDiscover {
		t.Error("NewRegistry().Preferences.AutoDiscover should be true by default")
	}
	if reg.Preferences.DiscoverTimeout != 10 {
		t.Errorf("DiscoverTimeout = %v, want 10", reg.Preferences.DiscoverTimeout)
	}
	if reg.Preferences.Bridge.ListenAddr != DefaultListenAddr {
		t.Errorf("ListenAddr = %q, want %q", reg.Preferences.Bridge.ListenAddr, DefaultListenAddr)
	}
	if reg.Preferences.Bridge.MQTT != nil {
		t.Error("MQTT should be disabled by default")
	}
}

func testRecord(serial, host string) *deviceconfig.DeviceRecord {
	return &deviceconfig.DeviceRecord{
		Host:         host,
		APISecretKey: strings.Repeat("A", 64),
		APIAuthKey:   strings.Repeat("B", 64),
		DeviceClass:  deviceconfig.DeviceClassGarage,
		SerialNumber: serial,
	}
}

func openTestStore(t *testing.T) *FileStore {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "sub", "config.yaml"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return s
}

func TestFileStore_AddAndReload(t *testing.T) {
	s := openTestStore(t)

	e, err := s.AddEntry(testRecord("RM1", "192.168.1.20"))
	if err != nil {
		t.Fatalf("AddEntry() error = %v", err)
	}
	if e.Title != "Remootio Device (Host: 192.168.1.20, S/N: RM1)" {
		t.Errorf("Title = %q", e.Title)
	}
	if e.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}

	info, err := os.Stat(s.Path())
	if err != nil {
		t.Fatalf("config file not written: %v", err)
	}
	if runtime.GOOS != "windows" && info.Mode().Perm() != 0600 {
		t.Errorf("config file mode = %v, want 0600", info.Mode().Perm())
	}

	reopened, err := Open(s.Path())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	got, ok := reopened.GetEntry("RM1")
	if !ok {
		t.Fatal("entry missing after reopen")
	}
	if got.Host != "192.168.1.20" || got.DeviceClass != "garage" {
		t.Errorf("reloaded entry = %+v", got)
	}
	if got.APISecretKey != strings.Repeat("A", 64) {
		t.Errorf("APISecretKey not persisted")
	}
}

func TestFileStore_SharedFile(t *testing.T) {
	cli := openTestStore(t)
	bridge, err := Open(cli.Path())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	if _, err := bridge.AddEntry(testRecord("RM1", "192.168.1.20")); err != nil {
		t.Fatalf("bridge.AddEntry() error = %v", err)
	}
	if _, err := cli.AddEntry(testRecord("RM2", "192.168.1.21")); err != nil {
		t.Fatalf("cli.AddEntry() error = %v", err)
	}
	if !cli.HasEntry("RM1") {
		t.Error("cli store did not pick up the bridge's entry")
	}

	// The bridge records a connection without dropping the CLI's entry.
	if err := bridge.TouchEntry("RM1", time.Now()); err != nil {
		t.Fatalf("TouchEntry() error = %v", err)
	}
	if !bridge.HasEntry("RM2") {
		t.Error("bridge store did not pick up the cli's entry")
	}

	reopened, err := Open(cli.Path())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if n := len(reopened.Entries()); n != 2 {
		t.Errorf("persisted entries = %d, want 2", n)
	}
}

func TestFileStore_AddDuplicate(t *testing.T) {
	s := openTestStore(t)

	if _, err := s.AddEntry(testRecord("RM1", "10.0.0.1")); err != nil {
		t.Fatalf("AddEntry() error = %v", err)
	}
	_, err := s.AddEntry(testRecord("RM1", "10.0.0.2"))
	if !errors.Is(err, ErrEntryExists) {
		t.Fatalf("AddEntry() duplicate error = %v, want ErrEntryExists", err)
	}
	if got := len(s.Entries()); got != 1 {
		t.Errorf("len(Entries()) = %d, want 1", got)
	}
}

func TestFileStore_Update(t *testing.T) {
	s := openTestStore(t)
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s.now = func() time.Time { return base }

	if _, err := s.AddEntry(testRecord("RM1", "10.0.0.1")); err != nil {
		t.Fatalf("AddEntry() error = %v", err)
	}

	s.now = func() time.Time { return base.Add(time.Hour) }
	rec := testRecord("RM1", "10.0.0.9")
	rec.DeviceClass = deviceconfig.DeviceClassGate
	e, err := s.UpdateEntry(rec)
	if err != nil {
		t.Fatalf("UpdateEntry() error = %v", err)
	}

	if e.Host != "10.0.0.9" || e.DeviceClass != "gate" {
		t.Errorf("updated entry = %+v", e)
	}
	if !e.CreatedAt.Equal(base) {
		t.Errorf("CreatedAt = %v, want unchanged %v", e.CreatedAt, base)
	}
	if !e.UpdatedAt.Equal(base.Add(time.Hour)) {
		t.Errorf("UpdatedAt = %v", e.UpdatedAt)
	}
	if !strings.Contains(e.Title, "10.0.0.9") {
		t.Errorf("Title not refreshed: %q", e.Title)
	}

	if _, err := s.UpdateEntry(testRecord("RM2", "x")); !errors.Is(err, ErrEntryNotFound) {
		t.Errorf("UpdateEntry(unknown) error = %v, want ErrEntryNotFound", err)
	}
}

func TestFileStore_RemoveAndTouch(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.AddEntry(testRecord("RM1", "10.0.0.1")); err != nil {
		t.Fatalf("AddEntry() error = %v", err)
	}

	seen := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	if err := s.TouchEntry("RM1", seen); err != nil {
		t.Fatalf("TouchEntry() error = %v", err)
	}
	e, _ := s.GetEntry("RM1")
	if !e.LastSeen.Equal(seen) {
		t.Errorf("LastSeen = %v, want %v", e.LastSeen, seen)
	}

	if err := s.RemoveEntry("RM1"); err != nil {
		t.Fatalf("RemoveEntry() error = %v", err)
	}
	if s.HasEntry("RM1") {
		t.Error("HasEntry() = true after removal")
	}
	if err := s.RemoveEntry("RM1"); !errors.Is(err, ErrEntryNotFound) {
		t.Errorf("RemoveEntry() twice error = %v, want ErrEntryNotFound", err)
	}
	if err := s.TouchEntry("RM1", seen); !errors.Is(err, ErrEntryNotFound) {
		t.Errorf("TouchEntry(removed) error = %v, want ErrEntryNotFound", err)
	}
}

func TestFileStore_EntriesSorted(t *testing.T) {
	s := openTestStore(t)
	for _, r := range []*deviceconfig.DeviceRecord{
		testRecord("RM3", "10.0.0.3"),
		testRecord("RM1", "10.0.0.1"),
		testRecord("RM2", "10.0.0.2"),
	} {
		if _, err := s.AddEntry(r); err != nil {
			t.Fatalf("AddEntry() error = %v", err)
		}
	}

	entries := s.Entries()
	for i, want := range []string{"RM1", "RM2", "RM3"} {
		if entries[i].SerialNumber != want {
			t.Errorf("Entries()[%d] = %s, want %s", i, entries[i].SerialNumber, want)
		}
	}
}

func TestLoadRegistry_Defaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `version: 1
entries:
  RM9:
    title: Old
    host: 10.1.1.1
    api_secret_key: AA
    api_auth_key: BB
    device_class: gate
    serial_number: RM9
preferences:
  auto_discover: false
  bridge:
    mqtt:
      broker: tcp://localhost:1883
`
	if err := os.WriteFile(path, []byte(data), 0600); err != nil {
		t.Fatal(err)
	}

	reg, err := LoadRegistry(path)
	if err != nil {
		t.Fatalf("LoadRegistry() error = %v", err)
	}
	if reg.GetEntry("RM9") == nil {
		t.Fatal("entry RM9 missing")
	}
	p := reg.Preferences
	if p.AutoDiscover {
		t.Error("AutoDiscover should keep explicit false")
	}
	if p.DiscoverTimeout != DefaultDiscoverTimeout {
		t.Errorf("DiscoverTimeout = %d, want default", p.DiscoverTimeout)
	}
	if p.Bridge.ListenAddr != DefaultListenAddr || p.Bridge.RetryMaxDelay != DefaultRetryMaxDelay {
		t.Errorf("bridge defaults not applied: %+v", p.Bridge)
	}
	if p.Bridge.MQTT.TopicPrefix != DefaultTopicPrefix {
		t.Errorf("TopicPrefix = %q, want %q", p.Bridge.MQTT.TopicPrefix, DefaultTopicPrefix)
	}
}

func TestLoadRegistry_BadVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("version: 7\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadRegistry(path); err == nil {
		t.Error("LoadRegistry() error = nil, want unsupported version error")
	}
}

func TestFileStore_Preferences(t *testing.T) {
	s := openTestStore(t)
	err := s.UpdatePreferences(func(p *Preferences) {
		p.Bridge.MQTT = &MQTTPrefs{Broker: "tcp://broker:1883"}
	})
	if err != nil {
		t.Fatalf("UpdatePreferences() error = %v", err)
	}

	p := s.Preferences()
	if p.Bridge.MQTT == nil || p.Bridge.MQTT.TopicPrefix != DefaultTopicPrefix {
		t.Fatalf("MQTT prefs = %+v", p.Bridge.MQTT)
	}

	// The returned value is a copy.
	p.Bridge.MQTT.Broker = "changed"
	if s.Preferences().Bridge.MQTT.Broker != "tcp://broker:1883" {
		t.Error("Preferences() leaked internal state")
	}
}

func TestEntryRedacted(t *testing.T) {
	e := NewEntry(testRecord("RM1", "10.0.0.1"), time.Now())
	r := e.Redacted()
	if r.APISecretKey != "AAAA…" || r.APIAuthKey != "BBBB…" {
		t.Errorf("Redacted() keys = %q, %q", r.APISecretKey, r.APIAuthKey)
	}
	if e.APISecretKey != strings.Repeat("A", 64) {
		t.Error("Redacted() modified the original")
	}
}
