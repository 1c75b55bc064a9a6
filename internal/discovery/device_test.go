package discovery

import (
	"testing"
)

func TestDevice_Host(t *testing.T) {
	tests := []struct {
		name     string
		device   *Device
		expected string
	}{
		{"default port", &Device{IP: "192.168.4.16", Port: 8080}, "192.168.4.16"},
		{"port unset", &Device{IP: "192.168.4.16"}, "192.168.4.16"},
		{"custom port", &Device{IP: "10.0.0.5", Port: 9000}, "10.0.0.5:9000"},
		{"ipv6 custom port", &Device{IP: "fe80::1", Port: 9000}, "[fe80::1]:9000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.device.Host(); got != tt.expected {
				t.Errorf("Device.Host() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestDevice_String(t *testing.T) {
	device := &Device{
		Name:     "Remootio-Garage",
		Hostname: "remootio-a1b2c3.local.",
		IP:       "192.168.4.16",
		Port:     8080,
	}

	expected := "Remootio Remootio-Garage (remootio-a1b2c3.local.) at 192.168.4.16"
	if device.String() != expected {
		t.Errorf("Device.String() = %v, want %v", device.String(), expected)
	}
}

func TestDevice_Matches(t *testing.T) {
	device := &Device{Name: "Remootio-Garage", Hostname: "remootio-a1b2c3.local.", IP: "192.168.4.16"}

	for _, m := range []string{"remootio-garage", "remootio-a1b2c3.local", "REMOOTIO-A1B2C3.local.", "192.168.4.16"} {
		if !device.Matches(m) {
			t.Errorf("Matches(%q) = false, want true", m)
		}
	}
	if device.Matches("192.168.4.17") {
		t.Error("Matches(other IP) = true")
	}
}

func TestDevice_GetMetadata(t *testing.T) {
	device := &Device{Metadata: map[string]string{"path": "/"}}

	if got := device.GetMetadata("path"); got != "/" {
		t.Errorf("GetMetadata(path) = %q", got)
	}
	if got := device.GetMetadata("missing"); got != "" {
		t.Errorf("GetMetadata(missing) = %q", got)
	}
	if got := (&Device{}).GetMetadata("anything"); got != "" {
		t.Errorf("GetMetadata() with nil map = %q, want empty string", got)
	}
}
