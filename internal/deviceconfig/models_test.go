package deviceconfig

import (
	"strings"
	"testing"
)

func TestParseDeviceClass(t *testing.T) {
	tests := []struct {
		in      string
		want    DeviceClass
		wantErr bool
	}{
		{"garage", DeviceClassGarage, false},
		{"Gate", DeviceClassGate, false},
		{" gate ", DeviceClassGate, false},
		{"door", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDeviceClass(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseDeviceClass(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseDeviceClass(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestConnectionParamsNormalize(t *testing.T) {
	p := ConnectionParams{
		Host:         " 192.168.1.20:8080 ",
		APISecretKey: strings.ToLower(validSecret),
		APIAuthKey:   " " + strings.ToLower(validAuth),
	}.Normalize()

	if p.Host != "192.168.1.20:8080" {
		t.Errorf("Host = %q", p.Host)
	}
	if p.APISecretKey != validSecret {
		t.Errorf("APISecretKey = %q, want uppercase", p.APISecretKey)
	}
	if p.APIAuthKey != validAuth {
		t.Errorf("APIAuthKey = %q, want uppercase", p.APIAuthKey)
	}
	if p.DeviceClass != DefaultDeviceClass {
		t.Errorf("DeviceClass = %q, want default %q", p.DeviceClass, DefaultDeviceClass)
	}

	opts := p.ConnectionOptions()
	if opts.Host != p.Host || opts.APISecretKey != validSecret {
		t.Errorf("ConnectionOptions() = %+v", opts)
	}
}

func TestDeviceRecordTitle(t *testing.T) {
	r := &DeviceRecord{Host: "192.168.1.20", SerialNumber: "RM123"}
	want := "Remootio Device (Host: 192.168.1.20, S/N: RM123)"
	if got := r.Title(); got != want {
		t.Errorf("Title() = %q, want %q", got, want)
	}
}
