package deviceconfig

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"syscall"
)

// Form field names. Validation errors carry the field they belong to.
const (
	FieldHost         = "host"
	FieldAPISecretKey = "api_secret_key"
	FieldAPIAuthKey   = "api_auth_key"
	FieldDeviceClass  = "device_class"
)

// ErrorType represents the category of error that occurred
type ErrorType int

const (
	// ErrTypeNetwork indicates a network-level error (unreachable, reset, etc.)
	ErrTypeNetwork ErrorType = iota
	// ErrTypeTimeout indicates the device did not answer in time
	ErrTypeTimeout
	// ErrTypeConnectionRefused indicates the device refused the connection
	ErrTypeConnectionRefused
	// ErrTypeDNS indicates a DNS resolution failure
	ErrTypeDNS
	// ErrTypeValidation indicates a malformed input field
	ErrTypeValidation
	// ErrTypeNotReady indicates the device is not reachable or did not finish
	// the handshake; trying again later may succeed
	ErrTypeNotReady
	// ErrTypeCannotConnect indicates the WebSocket session could not be opened
	ErrTypeCannotConnect
	// ErrTypeAuth indicates the device rejected the API keys
	ErrTypeAuth
	// ErrTypeUnsupportedDevice indicates the device has no sensor installed
	ErrTypeUnsupportedDevice
	// ErrTypeUnsupportedAPIVersion indicates firmware older than the minimum API version
	ErrTypeUnsupportedAPIVersion
	// ErrTypeSerialMismatch indicates a different device answered at a known address
	ErrTypeSerialMismatch
	// ErrTypeUnknown indicates an unknown or unexpected error
	ErrTypeUnknown
)

// NetworkErrorSubtype provides more specific network error classification
type NetworkErrorSubtype int

const (
	NetworkErrorGeneral NetworkErrorSubtype = iota
	NetworkErrorTimeout
	NetworkErrorConnectionRefused
	NetworkErrorDNS
	NetworkErrorHostUnreachable
	NetworkErrorNetworkUnreachable
)

// String returns a human-readable name for the error type
func (et ErrorType) String() string {
	switch et {
	case ErrTypeNetwork:
		return "Network Error"
	case ErrTypeTimeout:
		return "Timeout"
	case ErrTypeConnectionRefused:
		return "Connection Refused"
	case ErrTypeDNS:
		return "DNS Error"
	case ErrTypeValidation:
		return "Validation Error"
	case ErrTypeNotReady:
		return "Device Not Ready"
	case ErrTypeCannotConnect:
		return "Cannot Connect"
	case ErrTypeAuth:
		return "Authentication Error"
	case ErrTypeUnsupportedDevice:
		return "Unsupported Device"
	case ErrTypeUnsupportedAPIVersion:
		return "Unsupported API Version"
	case ErrTypeSerialMismatch:
		return "Serial Number Mismatch"
	case ErrTypeUnknown:
		return "Unknown Error"
	default:
		return fmt.Sprintf("ErrorType(%d)", et)
	}
}

// DeviceError represents an error that occurred while validating or
// connecting to a device
type DeviceError struct {
	Type           ErrorType           // Category of error
	Message        string              // Human-readable error message
	Field          string              // Form field for validation errors
	Err            error               // Underlying error (if any)
	NetworkSubtype NetworkErrorSubtype // More specific network error type
	Host           string              // Device address (for context)
	Retryable      bool                // Whether the error is retryable
}

// Error implements the error interface
func (e *DeviceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for error chain inspection
func (e *DeviceError) Unwrap() error {
	return e.Err
}

// AsDeviceError returns the DeviceError in err's chain, if any.
func AsDeviceError(err error) (*DeviceError, bool) {
	var devErr *DeviceError
	if errors.As(err, &devErr) {
		return devErr, true
	}
	return nil, false
}

// ClassifyNetworkError analyzes an error and returns a more specific error type
func ClassifyNetworkError(err error, host string) *DeviceError {
	if err == nil {
		return nil
	}

	// Check for timeout errors
	if os.IsTimeout(err) {
		return &DeviceError{
			Type:           ErrTypeTimeout,
			Message:        "Request timed out",
			Err:            err,
			NetworkSubtype: NetworkErrorTimeout,
			Host:           host,
			Retryable:      true,
		}
	}

	// Check for DNS errors
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return &DeviceError{
			Type:           ErrTypeDNS,
			Message:        fmt.Sprintf("DNS resolution failed for %s", dnsErr.Name),
			Err:            err,
			NetworkSubtype: NetworkErrorDNS,
			Host:           host,
			Retryable:      false,
		}
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if opErr.Timeout() {
			return &DeviceError{
				Type:           ErrTypeTimeout,
				Message:        "Request timed out",
				Err:            err,
				NetworkSubtype: NetworkErrorTimeout,
				Host:           host,
				Retryable:      true,
			}
		}
		if errors.Is(opErr.Err, syscall.ECONNREFUSED) {
			return &DeviceError{
				Type:           ErrTypeConnectionRefused,
				Message:        "Device refused connection",
				Err:            err,
				NetworkSubtype: NetworkErrorConnectionRefused,
				Host:           host,
				Retryable:      true,
			}
		}
		if errors.Is(opErr.Err, syscall.EHOSTUNREACH) {
			return &DeviceError{
				Type:           ErrTypeNetwork,
				Message:        "Host unreachable",
				Err:            err,
				NetworkSubtype: NetworkErrorHostUnreachable,
				Host:           host,
				Retryable:      true,
			}
		}
		if errors.Is(opErr.Err, syscall.ENETUNREACH) {
			return &DeviceError{
				Type:           ErrTypeNetwork,
				Message:        "Network unreachable",
				Err:            err,
				NetworkSubtype: NetworkErrorNetworkUnreachable,
				Host:           host,
				Retryable:      true,
			}
		}
	}

	// Check for URL errors
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		// Recursively classify the underlying error
		return ClassifyNetworkError(urlErr.Err, host)
	}

	// Generic network error
	return &DeviceError{
		Type:           ErrTypeNetwork,
		Message:        "Network error occurred",
		Err:            err,
		NetworkSubtype: NetworkErrorGeneral,
		Host:           host,
		Retryable:      true,
	}
}

// NewFieldError creates a validation error for a single form field
func NewFieldError(field, message string) *DeviceError {
	return &DeviceError{
		Type:      ErrTypeValidation,
		Field:     field,
		Message:   message,
		Retryable: false,
	}
}

// NewNotReadyError creates a retryable error for a device that could not be
// reached. The message lists the usual causes.
func NewNotReadyError(host string, err error) *DeviceError {
	subtype := NetworkErrorGeneral
	if classified := ClassifyNetworkError(err, host); classified != nil {
		subtype = classified.NetworkSubtype
	}
	return &DeviceError{
		Type: ErrTypeNotReady,
		Message: strings.Join([]string{
			fmt.Sprintf("Device not available at %s. Please check if:", host),
			"1. The device is powered on",
			"2. It is connected to your network",
			"3. The IP address and port are correct",
			"4. API access is enabled in the Remootio app",
			"5. No firewall blocks the connection",
		}, "\n"),
		Err:            err,
		NetworkSubtype: subtype,
		Host:           host,
		Retryable:      true,
	}
}

// NewConnectTimeoutError creates the error returned when the session did not
// become connected in time
func NewConnectTimeoutError(host string, err error) *DeviceError {
	return &DeviceError{
		Type:           ErrTypeNotReady,
		Message:        "Failed to connect to device",
		Err:            err,
		NetworkSubtype: NetworkErrorTimeout,
		Host:           host,
		Retryable:      true,
	}
}

// NewCannotConnectError creates an error for a failed WebSocket session
func NewCannotConnectError(host string, err error) *DeviceError {
	subtype := NetworkErrorGeneral
	if classified := ClassifyNetworkError(err, host); classified != nil {
		subtype = classified.NetworkSubtype
	}
	return &DeviceError{
		Type:           ErrTypeCannotConnect,
		Message:        fmt.Sprintf("Connection failed: %v", err),
		Err:            err,
		NetworkSubtype: subtype,
		Host:           host,
		Retryable:      true,
	}
}

// NewAuthError creates an authentication error
func NewAuthError(host string, err error) *DeviceError {
	return &DeviceError{
		Type:      ErrTypeAuth,
		Message:   "The device rejected the API keys",
		Err:       err,
		Host:      host,
		Retryable: false,
	}
}

// NewUnsupportedDeviceError creates the error for a device without a sensor
func NewUnsupportedDeviceError(host string) *DeviceError {
	return &DeviceError{
		Type:      ErrTypeUnsupportedDevice,
		Message:   "Device has no sensor installed",
		Host:      host,
		Retryable: false,
	}
}

// NewUnsupportedAPIVersionError creates the error for outdated firmware
func NewUnsupportedAPIVersionError(host string, got, minimum int) *DeviceError {
	return &DeviceError{
		Type:      ErrTypeUnsupportedAPIVersion,
		Message:   fmt.Sprintf("API version %d is not supported. Minimum required version is %d", got, minimum),
		Host:      host,
		Retryable: false,
	}
}

// NewSerialMismatchError creates the error for a device whose serial number
// differs from the configured one
func NewSerialMismatchError(host, expected, got string) *DeviceError {
	return &DeviceError{
		Type:      ErrTypeSerialMismatch,
		Message:   fmt.Sprintf("Serial number mismatch. Expected: %s, Got: %s", expected, got),
		Host:      host,
		Retryable: false,
	}
}

// IsConnectivityError checks if an error means the device could not be
// reached or did not complete the handshake
func IsConnectivityError(err error) bool {
	if devErr, ok := AsDeviceError(err); ok {
		switch devErr.Type {
		case ErrTypeNetwork, ErrTypeTimeout, ErrTypeConnectionRefused, ErrTypeDNS,
			ErrTypeNotReady, ErrTypeCannotConnect:
			return true
		}
	}
	return false
}

// IsAuthError checks if an error is an authentication error
func IsAuthError(err error) bool {
	devErr, ok := AsDeviceError(err)
	return ok && devErr.Type == ErrTypeAuth
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	devErr, ok := AsDeviceError(err)
	return ok && devErr.Type == ErrTypeValidation
}

// IsUnsupportedError checks if an error is a terminal device-capability error
func IsUnsupportedError(err error) bool {
	devErr, ok := AsDeviceError(err)
	return ok && (devErr.Type == ErrTypeUnsupportedDevice || devErr.Type == ErrTypeUnsupportedAPIVersion)
}

// IsRetryable checks if an error should be retried
func IsRetryable(err error) bool {
	if devErr, ok := AsDeviceError(err); ok {
		return devErr.Retryable
	}
	// Unknown errors are not retryable by default
	return false
}

// GetTroubleshootingHint returns user-friendly troubleshooting advice for an error
func GetTroubleshootingHint(err error) string {
	devErr, ok := AsDeviceError(err)
	if !ok {
		return "An unexpected error occurred. Please try again."
	}

	switch devErr.Type {
	case ErrTypeTimeout:
		return strings.Join([]string{
			"The device did not respond in time.",
			"Troubleshooting:",
			"  • Check that your device is powered on",
			"  • Verify the device is connected to your WiFi network",
			"  • Check that no other client holds the device's API connection",
		}, "\n")

	case ErrTypeConnectionRefused:
		return strings.Join([]string{
			"The device refused the connection.",
			"Troubleshooting:",
			"  • Enable the API in the Remootio app (Device settings → API)",
			"  • Verify the port number (default is 8080)",
			"  • Reboot the device from the Remootio app",
		}, "\n")

	case ErrTypeDNS:
		return strings.Join([]string{
			"Could not resolve the device hostname.",
			"Troubleshooting:",
			"  • Use the IP address instead of hostname",
			"  • Check your network DNS settings",
			"  • Run 'remootio-cfg scan' to find the device's address",
		}, "\n")

	case ErrTypeAuth:
		return strings.Join([]string{
			"Authentication failed.",
			"Troubleshooting:",
			"  • Copy the API Secret Key and API Auth Key again from the Remootio app",
			"  • Keys were regenerated if the API was disabled and re-enabled",
			"  • Make sure both keys belong to this device",
		}, "\n")

	case ErrTypeNotReady, ErrTypeCannotConnect, ErrTypeNetwork:
		hint := []string{"The device could not be reached."}

		switch devErr.NetworkSubtype {
		case NetworkErrorHostUnreachable:
			hint = append(hint,
				"Troubleshooting:",
				"  • Verify the device IP address is correct",
				"  • Check that you're on the same network as the device",
				"  • Try pinging the device: ping "+hostOnly(devErr.Host))

		case NetworkErrorNetworkUnreachable:
			hint = append(hint,
				"Troubleshooting:",
				"  • Check your network adapter settings",
				"  • Verify your computer is connected to the network")

		default:
			hint = append(hint,
				"Troubleshooting:",
				"  • Check that the device is powered on",
				"  • Check that the device is connected to your network",
				"  • Check that API access is enabled in the Remootio app",
				"  • Check that no firewall blocks port 8080")
		}

		return strings.Join(hint, "\n")

	case ErrTypeUnsupportedDevice:
		return strings.Join([]string{
			"This Remootio has no gate status sensor installed.",
			"The open/closed state cannot be reported without a sensor.",
			"Install and enable the sensor in the Remootio app, then try again.",
		}, "\n")

	case ErrTypeUnsupportedAPIVersion:
		return strings.Join([]string{
			"The device firmware is too old.",
			"Update the firmware from the Remootio app, then try again.",
		}, "\n")

	case ErrTypeSerialMismatch:
		return strings.Join([]string{
			"A different Remootio device answered at this address.",
			"The device's IP address probably changed.",
			"Remove the entry and add the device again.",
		}, "\n")

	case ErrTypeValidation:
		return "The connection parameters are invalid. Check the error message for details."

	default:
		return "An error occurred. Please check the error message for details."
	}
}

// GetShortErrorMessage returns a concise, user-friendly error message
func GetShortErrorMessage(err error) string {
	devErr, ok := AsDeviceError(err)
	if !ok {
		return err.Error()
	}

	switch devErr.Type {
	case ErrTypeTimeout:
		return "Device not responding (timeout)"
	case ErrTypeConnectionRefused:
		return "Device refused connection - is the API enabled?"
	case ErrTypeDNS:
		return "Cannot resolve device hostname"
	case ErrTypeAuth:
		return "Authentication failed - check API keys"
	case ErrTypeNotReady:
		return "Device not ready - check power and network"
	case ErrTypeCannotConnect:
		return "Cannot connect to device"
	case ErrTypeNetwork:
		switch devErr.NetworkSubtype {
		case NetworkErrorHostUnreachable:
			return "Device unreachable - check network connection"
		case NetworkErrorNetworkUnreachable:
			return "Network unreachable - check network connection"
		default:
			return "Network error - check connection"
		}
	case ErrTypeUnsupportedDevice:
		return "Device not supported - no sensor installed"
	case ErrTypeUnsupportedAPIVersion:
		return "Device firmware too old"
	default:
		return devErr.Message
	}
}

func hostOnly(hostport string) string {
	if h, _, err := net.SplitHostPort(hostport); err == nil {
		return h
	}
	return hostport
}
