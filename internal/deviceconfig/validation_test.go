package deviceconfig

import (
	"strings"
	"testing"
)

const (
	validSecret = "0123456789ABCDEF0123456789ABCDEF0123456789ABCDEF0123456789ABCDEF"
	validAuth   = "FEDCBA9876543210FEDCBA9876543210FEDCBA9876543210FEDCBA9876543210"
)

func TestValidateHost(t *testing.T) {
	tests := []struct {
		name    string
		host    string
		wantErr bool
	}{
		{"ipv4", "192.168.1.20", false},
		{"ipv4 with port", "192.168.1.20:8080", false},
		{"hostname", "remootio-garage.local", false},
		{"hostname with port", "remootio:9000", false},
		{"empty", "", true},
		{"scheme", "ws://192.168.1.20", true},
		{"space", "192.168.1.20 ", true},
		{"port zero", "192.168.1.20:0", true},
		{"port too large", "192.168.1.20:99999", true},
		{"underscore", "my_host", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateHost(tt.host)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateHost(%q) error = %v, wantErr %v", tt.host, err, tt.wantErr)
			}
			if err != nil {
				devErr, ok := AsDeviceError(err)
				if !ok || devErr.Field != FieldHost {
					t.Errorf("ValidateHost(%q) error field = %v, want %q", tt.host, err, FieldHost)
				}
			}
		})
	}
}

func TestValidateKeys(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantErr bool
	}{
		{"uppercase", validSecret, false},
		{"lowercase accepted", strings.ToLower(validSecret), false},
		{"too short", validSecret[:63], true},
		{"too long", validSecret + "0", true},
		{"non hex", "G" + validSecret[1:], true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAPISecretKey(tt.key)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateAPISecretKey() error = %v, wantErr %v", err, tt.wantErr)
			}
			if devErr, ok := AsDeviceError(err); ok && devErr.Field != FieldAPISecretKey {
				t.Errorf("secret key error field = %q, want %q", devErr.Field, FieldAPISecretKey)
			}

			err = ValidateAPIAuthKey(tt.key)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateAPIAuthKey() error = %v, wantErr %v", err, tt.wantErr)
			}
			if devErr, ok := AsDeviceError(err); ok && devErr.Field != FieldAPIAuthKey {
				t.Errorf("auth key error field = %q, want %q", devErr.Field, FieldAPIAuthKey)
			}
		})
	}
}

func TestValidateConnectionParams_Order(t *testing.T) {
	tests := []struct {
		name      string
		params    ConnectionParams
		wantField string
	}{
		{
			name:      "host checked first",
			params:    ConnectionParams{Host: "bad host", APISecretKey: "x", APIAuthKey: "y", DeviceClass: "boat"},
			wantField: FieldHost,
		},
		{
			name:      "secret before auth",
			params:    ConnectionParams{Host: "10.0.0.2", APISecretKey: "x", APIAuthKey: "y", DeviceClass: DeviceClassGate},
			wantField: FieldAPISecretKey,
		},
		{
			name:      "auth key",
			params:    ConnectionParams{Host: "10.0.0.2", APISecretKey: validSecret, APIAuthKey: "y", DeviceClass: DeviceClassGate},
			wantField: FieldAPIAuthKey,
		},
		{
			name:      "device class",
			params:    ConnectionParams{Host: "10.0.0.2", APISecretKey: validSecret, APIAuthKey: validAuth, DeviceClass: "boat"},
			wantField: FieldDeviceClass,
		},
		{
			name:   "valid",
			params: ConnectionParams{Host: "10.0.0.2", APISecretKey: validSecret, APIAuthKey: validAuth, DeviceClass: DeviceClassGarage},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateConnectionParams(tt.params)
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("ValidateConnectionParams() error = %v, want nil", err)
				}
				return
			}
			devErr, ok := AsDeviceError(err)
			if !ok {
				t.Fatalf("ValidateConnectionParams() error = %v, want DeviceError", err)
			}
			if devErr.Field != tt.wantField {
				t.Errorf("field = %q, want %q", devErr.Field, tt.wantField)
			}
		})
	}
}

func TestValidateAllAndFormat(t *testing.T) {
	errs := ValidateAll(ConnectionParams{Host: "", APISecretKey: "x", APIAuthKey: validAuth, DeviceClass: DeviceClassGate})
	if len(errs) != 2 {
		t.Fatalf("ValidateAll() returned %d errors, want 2: %v", len(errs), errs)
	}

	out := FormatValidationErrors(errs)
	if !strings.HasPrefix(out, "Validation errors:") {
		t.Errorf("FormatValidationErrors() = %q", out)
	}
	if !strings.Contains(out, "host cannot be empty") || !strings.Contains(out, "API secret key") {
		t.Errorf("FormatValidationErrors() missing messages: %q", out)
	}
	if FormatValidationErrors(nil) != "" {
		t.Error("FormatValidationErrors(nil) should be empty")
	}
}
