// Package config provides the persistent store of onboarded Remootio devices.
//
// This package manages a YAML-based configuration file holding one config entry
// per device (keyed by serial number) and application preferences, including
// the settings of the remootio-bridge process. The configuration follows
// OS-specific conventions for storage location.
//
// # Configuration File Location
//
// The configuration file is stored in platform-appropriate locations:
//   - Linux: $XDG_CONFIG_HOME/remootio/config.yaml or $HOME/.config/remootio/config.yaml
//   - macOS: $HOME/.config/remootio/config.yaml
//   - Windows: %LOCALAPPDATA%\remootio\config.yaml
//
// # Security
//
// Entries contain the API secret and auth keys of each device. The file is
// written with 0600 permissions inside a 0700 directory. Use Entry.Redacted
// before displaying an entry.
//
// # Usage Example
//
//	store, err := config.Open("")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if !store.HasEntry(record.SerialNumber) {
//	    if _, err := store.AddEntry(record); err != nil {
//	        log.Fatal(err)
//	    }
//	}
//
// # Thread Safety
//
// FileStore guards its registry with a mutex; every mutation is written
// atomically (temporary file and rename).
package config
