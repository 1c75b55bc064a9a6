package deviceconfig

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"syscall"
	"testing"
)

func TestClassifyNetworkError_Timeout(t *testing.T) {
	err := &url.Error{
		Op:  "GET",
		URL: "ws://192.168.1.20:8080/",
		Err: &net.OpError{
			Op:  "dial",
			Net: "tcp",
			Err: &timeoutError{},
		},
	}

	devErr := ClassifyNetworkError(err, "192.168.1.20:8080")

	if devErr == nil {
		t.Fatal("Expected DeviceError, got nil")
	}
	if devErr.Type != ErrTypeTimeout {
		t.Errorf("Expected error type %v, got %v", ErrTypeTimeout, devErr.Type)
	}
	if devErr.NetworkSubtype != NetworkErrorTimeout {
		t.Errorf("Expected network subtype %v, got %v", NetworkErrorTimeout, devErr.NetworkSubtype)
	}
	if !devErr.Retryable {
		t.Error("Expected timeout error to be retryable")
	}
}

func TestClassifyNetworkError_ConnectionRefused(t *testing.T) {
	err := &net.OpError{
		Op:  "dial",
		Net: "tcp",
		Err: syscall.ECONNREFUSED,
	}

	devErr := ClassifyNetworkError(err, "192.168.1.20:8080")

	if devErr.Type != ErrTypeConnectionRefused {
		t.Errorf("Expected error type %v, got %v", ErrTypeConnectionRefused, devErr.Type)
	}
	if devErr.NetworkSubtype != NetworkErrorConnectionRefused {
		t.Errorf("Expected network subtype %v, got %v", NetworkErrorConnectionRefused, devErr.NetworkSubtype)
	}
}

func TestClassifyNetworkError_DNS(t *testing.T) {
	err := &net.DNSError{
		Err:        "no such host",
		Name:       "remootio.invalid",
		IsNotFound: true,
	}

	devErr := ClassifyNetworkError(err, "remootio.invalid")

	if devErr.Type != ErrTypeDNS {
		t.Errorf("Expected error type %v, got %v", ErrTypeDNS, devErr.Type)
	}
	if devErr.Retryable {
		t.Error("Expected DNS error to be non-retryable")
	}
}

func TestClassifyNetworkError_HostUnreachable(t *testing.T) {
	err := fmt.Errorf("dial: %w", &net.OpError{
		Op:  "dial",
		Net: "tcp",
		Err: syscall.EHOSTUNREACH,
	})

	devErr := ClassifyNetworkError(err, "192.168.1.20:8080")

	if devErr.Type != ErrTypeNetwork {
		t.Errorf("Expected error type %v, got %v", ErrTypeNetwork, devErr.Type)
	}
	if devErr.NetworkSubtype != NetworkErrorHostUnreachable {
		t.Errorf("Expected network subtype %v, got %v", NetworkErrorHostUnreachable, devErr.NetworkSubtype)
	}
}

func TestClassifyNetworkError_Nil(t *testing.T) {
	if got := ClassifyNetworkError(nil, "x"); got != nil {
		t.Errorf("ClassifyNetworkError(nil) = %v, want nil", got)
	}
}

func TestNewNotReadyError(t *testing.T) {
	err := NewNotReadyError("10.0.0.9:8080", &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED})

	if err.Type != ErrTypeNotReady {
		t.Errorf("Type = %v, want %v", err.Type, ErrTypeNotReady)
	}
	if !err.Retryable {
		t.Error("Expected not ready error to be retryable")
	}
	if err.NetworkSubtype != NetworkErrorConnectionRefused {
		t.Errorf("NetworkSubtype = %v, want %v", err.NetworkSubtype, NetworkErrorConnectionRefused)
	}
	for _, want := range []string{"10.0.0.9:8080", "powered on", "connected to your network", "port are correct", "API access is enabled", "firewall"} {
		if !strings.Contains(err.Message, want) {
			t.Errorf("Message missing %q:\n%s", want, err.Message)
		}
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"not ready", NewNotReadyError("h", errors.New("x")), true},
		{"connect timeout", NewConnectTimeoutError("h", errors.New("x")), true},
		{"cannot connect", NewCannotConnectError("h", errors.New("x")), true},
		{"auth", NewAuthError("h", nil), false},
		{"validation", NewFieldError(FieldHost, "bad"), false},
		{"unsupported device", NewUnsupportedDeviceError("h"), false},
		{"unsupported api", NewUnsupportedAPIVersionError("h", 2, 3), false},
		{"serial mismatch", NewSerialMismatchError("h", "A", "B"), false},
		{"wrapped not ready", fmt.Errorf("setup: %w", NewNotReadyError("h", nil)), true},
		{"plain error", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.retryable {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.retryable)
			}
		})
	}
}

func TestPredicates(t *testing.T) {
	wrapped := fmt.Errorf("bootstrap: %w", NewAuthError("h", nil))
	if !IsAuthError(wrapped) {
		t.Error("IsAuthError(wrapped) = false, want true")
	}
	if IsConnectivityError(wrapped) {
		t.Error("IsConnectivityError(auth) = true, want false")
	}
	if !IsConnectivityError(NewCannotConnectError("h", errors.New("x"))) {
		t.Error("IsConnectivityError(cannot connect) = false, want true")
	}
	if !IsValidationError(NewFieldError(FieldAPIAuthKey, "bad")) {
		t.Error("IsValidationError() = false, want true")
	}
	if !IsUnsupportedError(NewUnsupportedAPIVersionError("h", 1, 3)) {
		t.Error("IsUnsupportedError(api version) = false, want true")
	}
	if IsUnsupportedError(errors.New("x")) {
		t.Error("IsUnsupportedError(plain) = true, want false")
	}
}

func TestGetShortErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"timeout", &DeviceError{Type: ErrTypeTimeout}, "Device not responding (timeout)"},
		{"auth", NewAuthError("h", nil), "Authentication failed - check API keys"},
		{"no sensor", NewUnsupportedDeviceError("h"), "Device not supported - no sensor installed"},
		{"validation", NewFieldError(FieldHost, "Invalid host"), "Invalid host"},
		{"plain", errors.New("plain failure"), "plain failure"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetShortErrorMessage(tt.err); got != tt.want {
				t.Errorf("GetShortErrorMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGetTroubleshootingHint(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		expectedTexts []string
	}{
		{
			name:          "Timeout error",
			err:           &DeviceError{Type: ErrTypeTimeout},
			expectedTexts: []string{"did not respond in time", "Troubleshooting:", "powered on"},
		},
		{
			name:          "Connection refused",
			err:           &DeviceError{Type: ErrTypeConnectionRefused},
			expectedTexts: []string{"refused the connection", "Enable the API", "8080"},
		},
		{
			name:          "Auth error",
			err:           NewAuthError("h", nil),
			expectedTexts: []string{"Authentication failed", "API Secret Key"},
		},
		{
			name: "Host unreachable",
			err: &DeviceError{
				Type:           ErrTypeNotReady,
				NetworkSubtype: NetworkErrorHostUnreachable,
				Host:           "192.168.1.20:8080",
			},
			expectedTexts: []string{"could not be reached", "ping 192.168.1.20", "same network"},
		},
		{
			name:          "No sensor",
			err:           NewUnsupportedDeviceError("h"),
			expectedTexts: []string{"no gate status sensor"},
		},
		{
			name:          "Old firmware",
			err:           NewUnsupportedAPIVersionError("h", 2, 3),
			expectedTexts: []string{"firmware is too old"},
		},
		{
			name:          "Not a device error",
			err:           errors.New("x"),
			expectedTexts: []string{"unexpected error"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hint := GetTroubleshootingHint(tt.err)
			for _, expectedText := range tt.expectedTexts {
				if !strings.Contains(hint, expectedText) {
					t.Errorf("GetTroubleshootingHint() missing expected text %q\nGot: %s", expectedText, hint)
				}
			}
		})
	}
}

func TestErrorTypeString(t *testing.T) {
	tests := []struct {
		errorType ErrorType
		expected  string
	}{
		{ErrTypeNetwork, "Network Error"},
		{ErrTypeAuth, "Authentication Error"},
		{ErrTypeValidation, "Validation Error"},
		{ErrTypeNotReady, "Device Not Ready"},
		{ErrTypeUnsupportedDevice, "Unsupported Device"},
		{ErrTypeUnsupportedAPIVersion, "Unsupported API Version"},
		{ErrTypeUnknown, "Unknown Error"},
		{ErrorType(99), "ErrorType(99)"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.errorType.String(); got != tt.expected {
				t.Errorf("ErrorType.String() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestDeviceErrorUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := NewCannotConnectError("h", cause)
	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false, want true")
	}
	if !strings.Contains(err.Error(), "root cause") {
		t.Errorf("Error() = %q, want cause included", err.Error())
	}
}

// timeoutError is a mock error that implements timeout behavior
type timeoutError struct{}

func (e *timeoutError) Error() string   { return "i/o timeout" }
func (e *timeoutError) Timeout() bool   { return true }
func (e *timeoutError) Temporary() bool { return true }
