package deviceconfig

import (
	"fmt"
	"strings"

	"github.com/muurk/remootio/internal/remootio"
)

// DeviceClass is how the controlled door is presented to users.
type DeviceClass string

const (
	DeviceClassGarage DeviceClass = "garage"
	DeviceClassGate   DeviceClass = "gate"
)

// DefaultDeviceClass is preselected on the onboarding form.
const DefaultDeviceClass = DeviceClassGarage

// DeviceClasses lists the accepted device classes in display order.
var DeviceClasses = []DeviceClass{DeviceClassGarage, DeviceClassGate}

// ParseDeviceClass converts user input into a DeviceClass.
func ParseDeviceClass(s string) (DeviceClass, error) {
	dc := DeviceClass(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range DeviceClasses {
		if dc == known {
			return dc, nil
		}
	}
	return "", fmt.Errorf("unknown device class %q (want garage or gate)", s)
}

// ConnectionParams is the user-supplied input of the onboarding form.
type ConnectionParams struct {
	Host         string      `json:"host" yaml:"host"`
	APISecretKey string      `json:"api_secret_key" yaml:"api_secret_key"`
	APIAuthKey   string      `json:"api_auth_key" yaml:"api_auth_key"`
	DeviceClass  DeviceClass `json:"device_class" yaml:"device_class"`
}

// Normalize trims every field, uppercases both keys and applies the default
// device class when none was chosen.
func (p ConnectionParams) Normalize() ConnectionParams {
	p.Host = strings.TrimSpace(p.Host)
	p.APISecretKey = strings.ToUpper(strings.TrimSpace(p.APISecretKey))
	p.APIAuthKey = strings.ToUpper(strings.TrimSpace(p.APIAuthKey))
	p.DeviceClass = DeviceClass(strings.ToLower(strings.TrimSpace(string(p.DeviceClass))))
	if p.DeviceClass == "" {
		p.DeviceClass = DefaultDeviceClass
	}
	return p
}

// ConnectionOptions converts the parameters into client options.
func (p ConnectionParams) ConnectionOptions() remootio.ConnectionOptions {
	return remootio.NewConnectionOptions(p.Host, p.APISecretKey, p.APIAuthKey)
}

// DeviceRecord is a validated device, ready to be stored as a config entry.
type DeviceRecord struct {
	Host         string      `json:"host"`
	APISecretKey string      `json:"api_secret_key"`
	APIAuthKey   string      `json:"api_auth_key"`
	DeviceClass  DeviceClass `json:"device_class"`
	SerialNumber string      `json:"serial_number"`
}

// Title returns the display name of the config entry.
func (r *DeviceRecord) Title() string {
	return fmt.Sprintf("Remootio Device (Host: %s, S/N: %s)", r.Host, r.SerialNumber)
}
