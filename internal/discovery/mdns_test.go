package discovery

import (
	"net"
	"testing"
	"time"

	"github.com/grandcat/zeroconf"
)

func TestParseServiceEntry(t *testing.T) {
	tests := []struct {
		name           string
		entry          *zeroconf.ServiceEntry
		wantNil        bool
		wantName       string
		wantIP         string
		wantAdvertised int
	}{
		{
			name: "remootio instance with IPv4",
			entry: &zeroconf.ServiceEntry{
				ServiceRecord: zeroconf.ServiceRecord{Instance: "Remootio-Garage"},
				HostName:      "remootio-a1b2c3.local.",
				Port:          80,
				AddrIPv4:      []net.IP{net.ParseIP("192.168.4.16")},
				Text:          []string{"path=/"},
			},
			wantName:       "Remootio-Garage",
			wantIP:         "192.168.4.16",
			wantAdvertised: 80,
		},
		{
			name: "matched by hostname only",
			entry: &zeroconf.ServiceEntry{
				ServiceRecord: zeroconf.ServiceRecord{Instance: "Gate"},
				HostName:      "Remootio-0042.local.",
				Port:          8080,
				AddrIPv4:      []net.IP{net.ParseIP("10.0.0.5")},
			},
			wantName:       "Gate",
			wantIP:         "10.0.0.5",
			wantAdvertised: 8080,
		},
		{
			name: "name falls back to hostname",
			entry: &zeroconf.ServiceEntry{
				HostName: "remootio-0042.local.",
				AddrIPv4: []net.IP{net.ParseIP("10.0.0.6")},
			},
			wantName: "remootio-0042",
			wantIP:   "10.0.0.6",
		},
		{
			name: "other http service",
			entry: &zeroconf.ServiceEntry{
				ServiceRecord: zeroconf.ServiceRecord{Instance: "Printer"},
				HostName:      "printer.local.",
				Port:          80,
				AddrIPv4:      []net.IP{net.ParseIP("192.168.1.1")},
			},
			wantNil: true,
		},
		{
			name: "no IP address",
			entry: &zeroconf.ServiceEntry{
				ServiceRecord: zeroconf.ServiceRecord{Instance: "Remootio"},
				HostName:      "remootio.local.",
			},
			wantNil: true,
		},
		{
			name: "IPv6 only device",
			entry: &zeroconf.ServiceEntry{
				ServiceRecord: zeroconf.ServiceRecord{Instance: "Remootio"},
				HostName:      "remootio.local.",
				AddrIPv6:      []net.IP{net.ParseIP("fe80::1")},
			},
			wantName: "Remootio",
			wantIP:   "fe80::1",
		},
		{
			name: "prefers IPv4",
			entry: &zeroconf.ServiceEntry{
				ServiceRecord: zeroconf.ServiceRecord{Instance: "Remootio"},
				HostName:      "remootio.local.",
				AddrIPv4:      []net.IP{net.ParseIP("192.168.1.50")},
				AddrIPv6:      []net.IP{net.ParseIP("fe80::2")},
			},
			wantName: "Remootio",
			wantIP:   "192.168.1.50",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			device := parseServiceEntry(tt.entry)

			if tt.wantNil {
				if device != nil {
					t.Errorf("parseServiceEntry() = %v, want nil", device)
				}
				return
			}
			if device == nil {
				t.Fatal("parseServiceEntry() = nil, want non-nil device")
			}

			if device.Name != tt.wantName {
				t.Errorf("device.Name = %v, want %v", device.Name, tt.wantName)
			}
			if device.IP != tt.wantIP {
				t.Errorf("device.IP = %v, want %v", device.IP, tt.wantIP)
			}
			if device.Port != 8080 {
				t.Errorf("device.Port = %v, want the API port 8080", device.Port)
			}
			if device.AdvertisedPort != tt.wantAdvertised {
				t.Errorf("device.AdvertisedPort = %v, want %v", device.AdvertisedPort, tt.wantAdvertised)
			}
			if time.Since(device.DiscoveredAt) > time.Second {
				t.Errorf("device.DiscoveredAt is not recent: %v", device.DiscoveredAt)
			}
		})
	}
}

func TestParseServiceEntry_Metadata(t *testing.T) {
	entry := &zeroconf.ServiceEntry{
		ServiceRecord: zeroconf.ServiceRecord{Instance: "Remootio"},
		HostName:      "remootio.local.",
		AddrIPv4:      []net.IP{net.ParseIP("192.168.4.16")},
		Text:          []string{"path=/", "fw=2.31", "flag", "eq=a=b"},
	}

	device := parseServiceEntry(entry)
	if device == nil {
		t.Fatal("parseServiceEntry() = nil, want device")
	}

	want := map[string]string{"path": "/", "fw": "2.31", "flag": "", "eq": "a=b"}
	if len(device.Metadata) != len(want) {
		t.Errorf("device.Metadata has %d entries, want %d", len(device.Metadata), len(want))
	}
	for k, v := range want {
		if got := device.Metadata[k]; got != v {
			t.Errorf("device.Metadata[%q] = %q, want %q", k, got, v)
		}
	}
}

func TestNamePattern(t *testing.T) {
	tests := []struct {
		name  string
		match bool
	}{
		{"Remootio-Garage", true},
		{"remootio", true},
		{"REMOOTIO-1", true},
		{"my-remootio", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := namePattern.MatchString(tt.name); got != tt.match {
			t.Errorf("namePattern.MatchString(%q) = %v, want %v", tt.name, got, tt.match)
		}
	}
}

func TestSortDevices(t *testing.T) {
	devices := []*Device{
		{Name: "B", IP: "10.0.0.1"},
		{Name: "A", IP: "10.0.0.9"},
		{Name: "A", IP: "10.0.0.2"},
	}
	sortDevices(devices)
	want := []string{"10.0.0.2", "10.0.0.9", "10.0.0.1"}
	for i, ip := range want {
		if devices[i].IP != ip {
			t.Errorf("devices[%d].IP = %s, want %s", i, devices[i].IP, ip)
		}
	}
}

func TestNewScanner(t *testing.T) {
	scanner := NewScanner()
	if scanner.Timeout != DefaultScanTimeout {
		t.Errorf("scanner.Timeout = %v, want %v", scanner.Timeout, DefaultScanTimeout)
	}
}

// Live mDNS discovery needs a network with multicast and is not covered here.
