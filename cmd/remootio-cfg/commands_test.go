package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/muurk/remootio/internal/deviceconfig"
	"github.com/muurk/remootio/internal/discovery"
	"github.com/muurk/remootio/internal/flow"
)

func TestFlowOutcome(t *testing.T) {
	tests := []struct {
		name     string
		result   *flow.Result
		wantErr  bool
		wantType deviceconfig.ErrorType
		wantKey  string
	}{
		{
			name: "created",
			result: &flow.Result{
				Type:  flow.ResultCreateEntry,
				Title: "Remootio Device (Host: 10.0.0.5, S/N: RM1)",
				Data:  &deviceconfig.DeviceRecord{SerialNumber: "RM1", DeviceClass: deviceconfig.DeviceClassGarage},
			},
			wantKey: "Serial number",
		},
		{
			name:    "already configured is a success",
			result:  &flow.Result{Type: flow.ResultAbort, Reason: flow.AbortAlreadyExists},
			wantKey: "Result",
		},
		{
			name:     "no sensor",
			result:   &flow.Result{Type: flow.ResultAbort, Reason: flow.AbortUnsupported},
			wantErr:  true,
			wantType: deviceconfig.ErrTypeUnsupportedDevice,
		},
		{
			name:     "old firmware",
			result:   &flow.Result{Type: flow.ResultAbort, Reason: flow.AbortAPIVersion},
			wantErr:  true,
			wantType: deviceconfig.ErrTypeUnsupportedAPIVersion,
		},
		{
			name:     "invalid auth",
			result:   &flow.Result{Type: flow.ResultForm, Errors: map[string]string{flow.FieldBase: flow.ErrInvalidAuth}},
			wantErr:  true,
			wantType: deviceconfig.ErrTypeAuth,
		},
		{
			name:     "cannot connect",
			result:   &flow.Result{Type: flow.ResultForm, Errors: map[string]string{flow.FieldBase: flow.ErrCannotConnect}},
			wantErr:  true,
			wantType: deviceconfig.ErrTypeCannotConnect,
		},
		{
			name:     "field error",
			result:   &flow.Result{Type: flow.ResultForm, Errors: map[string]string{deviceconfig.FieldAPIAuthKey: flow.ErrAuthKeyBad}},
			wantErr:  true,
			wantType: deviceconfig.ErrTypeValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			details, err := flowOutcome(tt.result, "10.0.0.5")
			if tt.wantErr {
				devErr, ok := deviceconfig.AsDeviceError(err)
				if !ok {
					t.Fatalf("err = %v, want DeviceError", err)
				}
				if devErr.Type != tt.wantType {
					t.Errorf("Type = %v, want %v", devErr.Type, tt.wantType)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			found := false
			for _, d := range details {
				if d.Key == tt.wantKey {
					found = true
				}
			}
			if !found {
				t.Errorf("details %v missing %q", details, tt.wantKey)
			}
		})
	}
}

func TestFlowOutcome_FieldErrorNamesField(t *testing.T) {
	_, err := flowOutcome(&flow.Result{
		Type:   flow.ResultForm,
		Errors: map[string]string{deviceconfig.FieldHost: flow.ErrHostInvalid},
	}, "bad host")
	devErr, ok := deviceconfig.AsDeviceError(err)
	if !ok || devErr.Field != deviceconfig.FieldHost {
		t.Errorf("err = %v, want host field error", err)
	}
}

func TestReportOutcome(t *testing.T) {
	var buf bytes.Buffer
	err := reportOutcome(&buf, &flow.Result{Type: flow.ResultAbort, Reason: flow.AbortAPIVersion}, "10.0.0.5")
	if err == nil {
		t.Fatal("failed flow returned nil error")
	}
	if !strings.Contains(buf.String(), "Device not added") {
		t.Errorf("output missing failure box: %q", buf.String())
	}

	buf.Reset()
	err = reportOutcome(&buf, &flow.Result{Type: flow.ResultAbort, Reason: flow.AbortAlreadyExists}, "10.0.0.5")
	if err != nil {
		t.Errorf("already configured: err = %v, want nil", err)
	}
}

func TestResolveHost(t *testing.T) {
	found := &discovery.Device{Name: "remootio-garage", IP: "192.168.1.50", Port: 8080}

	tests := []struct {
		name      string
		match     string
		findErr   error
		want      string
		wantCalls int
	}{
		{name: "empty", match: "", want: ""},
		{name: "ip", match: "192.168.1.50", want: "192.168.1.50"},
		{name: "explicit port", match: "garage.lan:8080", want: "garage.lan:8080"},
		{name: "announced name", match: "remootio-garage", want: "192.168.1.50", wantCalls: 1},
		{name: "unannounced name", match: "garage.lan", findErr: errors.New("not found"), want: "garage.lan", wantCalls: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			find := func(_ context.Context, match string) (*discovery.Device, error) {
				calls++
				if tt.findErr != nil {
					return nil, tt.findErr
				}
				return found, nil
			}
			if got := resolveHost(context.Background(), find, tt.match); got != tt.want {
				t.Errorf("resolveHost(%q) = %q, want %q", tt.match, got, tt.want)
			}
			if calls != tt.wantCalls {
				t.Errorf("finder called %d times, want %d", calls, tt.wantCalls)
			}
		})
	}
}

func TestInvalidParams(t *testing.T) {
	p := deviceconfig.ConnectionParams{Host: "", APISecretKey: "xyz", APIAuthKey: "abc"}.Normalize()
	errs := deviceconfig.ValidateAll(p)
	if len(errs) != 3 {
		t.Fatalf("ValidateAll() returned %d errors, want 3: %v", len(errs), errs)
	}

	err := invalidParams(errs)
	devErr, ok := deviceconfig.AsDeviceError(err)
	if !ok || devErr.Type != deviceconfig.ErrTypeValidation {
		t.Fatalf("err = %v, want validation error", err)
	}
	for _, want := range []string{"host cannot be empty", "API secret key", "API auth key"} {
		if !strings.Contains(devErr.Message, want) {
			t.Errorf("message missing %q: %q", want, devErr.Message)
		}
	}

	single := deviceconfig.ValidateAll(deviceconfig.ConnectionParams{Host: "", APISecretKey: strings.Repeat("A", 64), APIAuthKey: strings.Repeat("B", 64)}.Normalize())
	if got := invalidParams(single); got != single[0] {
		t.Errorf("single error = %v, want it unchanged", got)
	}
}

func TestAddHelpNamesMinimumAPIVersion(t *testing.T) {
	want := fmt.Sprintf("API version %d or later", deviceconfig.MinimumAPIVersion)
	if !strings.Contains(addCmd.Long, want) {
		t.Errorf("add help missing %q", want)
	}
}
