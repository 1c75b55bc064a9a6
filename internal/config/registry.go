package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/muurk/remootio/internal/deviceconfig"
)

const (
	appName    = "remootio"
	configFile = "config.yaml"
)

var (
	// ErrEntryExists is returned when adding a serial number that is already configured.
	ErrEntryExists = errors.New("entry already configured")
	// ErrEntryNotFound is returned when a serial number has no entry.
	ErrEntryNotFound = errors.New("entry not found")
)

// GetConfigDir returns the OS-appropriate configuration directory for the application.
// This follows platform conventions:
//   - Linux: $XDG_CONFIG_HOME/remootio or $HOME/.config/remootio
//   - macOS: $HOME/.config/remootio (following XDG convention on macOS)
//   - Windows: %LOCALAPPDATA%\remootio
func GetConfigDir() (string, error) {
	var baseDir string

	switch runtime.GOOS {
	case "windows":
		localAppData := os.Getenv("LOCALAPPDATA")
		if localAppData == "" {
			// Fallback to USERPROFILE\AppData\Local if LOCALAPPDATA not set
			userProfile := os.Getenv("USERPROFILE")
			if userProfile == "" {
				return "", fmt.Errorf("cannot determine user profile directory (LOCALAPPDATA and USERPROFILE not set)")
			}
			baseDir = filepath.Join(userProfile, "AppData", "Local", appName)
		} else {
			baseDir = filepath.Join(localAppData, appName)
		}

	case "darwin":
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine home directory: %w", err)
		}
		baseDir = filepath.Join(homeDir, ".config", appName)

	default:
		xdgConfigHome := os.Getenv("XDG_CONFIG_HOME")
		if xdgConfigHome != "" {
			baseDir = filepath.Join(xdgConfigHome, appName)
		} else {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("cannot determine home directory: %w", err)
			}
			baseDir = filepath.Join(homeDir, ".config", appName)
		}
	}

	return baseDir, nil
}

// GetConfigPath returns the full path to the configuration file.
func GetConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, configFile), nil
}

// LoadRegistry reads the registry at path.
// If the file doesn't exist, returns a new default registry.
func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return NewRegistry(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var registry Registry
	if err := yaml.Unmarshal(data, &registry); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if registry.Version != 1 {
		return nil, fmt.Errorf("unsupported config version: %d (expected 1)", registry.Version)
	}

	registry.applyDefaults()
	return &registry, nil
}

// SaveRegistry writes r to path.
// Performs an atomic write to prevent corruption on crash.
func SaveRegistry(path string, r *Registry) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# Remootio Configuration File
# This file stores the config entries of onboarded Remootio devices.
#
# Security Note: entries contain the devices' API secret and auth keys.
# Keep this file private (it is written with 0600 permissions).
#
# Location: ` + path + `

`)
	data = append(header, data...)

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary config file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save config file: %w", err)
	}

	return nil
}

// FileStore is a Registry backed by a YAML file. Every mutation is saved
// immediately. Mutations first pick up changes another process wrote to the
// file, so the config CLI and a running bridge can share it. Safe for
// concurrent use.
type FileStore struct {
	path string
	now  func() time.Time

	mu   sync.Mutex
	reg  *Registry
	info os.FileInfo // file as last loaded or saved, nil if absent
}

// Open loads the store at path. An empty path selects GetConfigPath().
func Open(path string) (*FileStore, error) {
	if path == "" {
		p, err := GetConfigPath()
		if err != nil {
			return nil, fmt.Errorf("failed to get config path: %w", err)
		}
		path = p
	}

	reg, err := LoadRegistry(path)
	if err != nil {
		return nil, err
	}
	return &FileStore{path: path, now: time.Now, reg: reg, info: stat(path)}, nil
}

func stat(path string) os.FileInfo {
	info, err := os.Stat(path)
	if err != nil {
		return nil
	}
	return info
}

// refreshLocked re-reads the file when it was replaced since the last load
// or save. Saves rename a temporary file into place, so a replaced file is a
// different file. Caller holds mu.
func (s *FileStore) refreshLocked() error {
	cur := stat(s.path)
	if cur == nil {
		return nil
	}
	if s.info != nil && os.SameFile(s.info, cur) && cur.Size() == s.info.Size() && cur.ModTime().Equal(s.info.ModTime()) {
		return nil
	}
	reg, err := LoadRegistry(s.path)
	if err != nil {
		return err
	}
	s.reg = reg
	s.info = cur
	return nil
}

// saveLocked writes the registry. Caller holds mu.
func (s *FileStore) saveLocked() error {
	if err := SaveRegistry(s.path, s.reg); err != nil {
		return err
	}
	s.info = stat(s.path)
	return nil
}

// Path returns the file backing the store.
func (s *FileStore) Path() string {
	return s.path
}

// Reload discards in-memory state and re-reads the file.
// This is useful for picking up changes made by another process.
func (s *FileStore) Reload() error {
	reg, err := LoadRegistry(s.path)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.reg = reg
	s.info = stat(s.path)
	s.mu.Unlock()
	return nil
}

// Preferences returns a copy of the stored preferences.
func (s *FileStore) Preferences() Preferences {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := *s.reg.Preferences
	if p.Bridge != nil {
		b := *p.Bridge
		if b.MQTT != nil {
			m := *b.MQTT
			b.MQTT = &m
		}
		p.Bridge = &b
	}
	return p
}

// UpdatePreferences applies fn to the preferences and saves.
func (s *FileStore) UpdatePreferences(fn func(p *Preferences)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.refreshLocked(); err != nil {
		return err
	}

	fn(s.reg.Preferences)
	s.reg.applyDefaults()
	return s.saveLocked()
}

// HasEntry reports whether serial is configured.
func (s *FileStore) HasEntry(serial string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reg.GetEntry(serial) != nil
}

// GetEntry returns a copy of the entry for serial.
func (s *FileStore) GetEntry(serial string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.reg.GetEntry(serial)
	if e == nil {
		return Entry{}, false
	}
	return *e, true
}

// Entries returns copies of all entries ordered by title.
func (s *FileStore) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	sorted := s.reg.SortedEntries()
	out := make([]Entry, len(sorted))
	for i, e := range sorted {
		out[i] = *e
	}
	return out
}

// AddEntry stores a new entry for rec. It fails with ErrEntryExists when
// the serial number is already configured.
func (s *FileStore) AddEntry(rec *deviceconfig.DeviceRecord) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.refreshLocked(); err != nil {
		return Entry{}, err
	}

	if _, ok := s.reg.Entries[rec.SerialNumber]; ok {
		return Entry{}, fmt.Errorf("%s: %w", rec.SerialNumber, ErrEntryExists)
	}

	e := NewEntry(rec, s.now())
	s.reg.Entries[rec.SerialNumber] = e
	if err := s.saveLocked(); err != nil {
		delete(s.reg.Entries, rec.SerialNumber)
		return Entry{}, err
	}
	return *e, nil
}

// UpdateEntry overwrites the connection data of an existing entry.
func (s *FileStore) UpdateEntry(rec *deviceconfig.DeviceRecord) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.refreshLocked(); err != nil {
		return Entry{}, err
	}

	e, ok := s.reg.Entries[rec.SerialNumber]
	if !ok {
		return Entry{}, fmt.Errorf("%s: %w", rec.SerialNumber, ErrEntryNotFound)
	}

	prev := *e
	e.apply(rec, s.now())
	if err := s.saveLocked(); err != nil {
		*e = prev
		return Entry{}, err
	}
	return *e, nil
}

// RemoveEntry deletes the entry for serial.
func (s *FileStore) RemoveEntry(serial string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.refreshLocked(); err != nil {
		return err
	}

	e, ok := s.reg.Entries[serial]
	if !ok {
		return fmt.Errorf("%s: %w", serial, ErrEntryNotFound)
	}

	delete(s.reg.Entries, serial)
	if err := s.saveLocked(); err != nil {
		s.reg.Entries[serial] = e
		return err
	}
	return nil
}

// TouchEntry records a successful connection time for serial.
func (s *FileStore) TouchEntry(serial string, seen time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.refreshLocked(); err != nil {
		return err
	}

	e, ok := s.reg.Entries[serial]
	if !ok {
		return fmt.Errorf("%s: %w", serial, ErrEntryNotFound)
	}
	e.LastSeen = seen
	return s.saveLocked()
}
