package flow

import "fmt"

var messages = map[string]string{
	ErrCannotConnect:   "Failed to connect. Check that the device is on and API access is enabled.",
	ErrHostInvalid:     "Invalid host. Enter an IPv4 address or hostname, optionally with a port.",
	ErrSecretKeyBad:    "Invalid API Secret Key. It is 64 hexadecimal characters.",
	ErrAuthKeyBad:      "Invalid API Auth Key. It is 64 hexadecimal characters.",
	ErrDeviceClassBad:  "Invalid device class. Choose garage or gate.",
	ErrInvalidAuth:     "Authentication failed. Check the API Secret Key and API Auth Key.",
	ErrUnknown:         "Unexpected error.",
	AbortUnsupported:   "This Remootio device has no gate status sensor installed and cannot be added.",
	AbortAPIVersion:    "The device firmware is too old. Update it from the Remootio app.",
	AbortAlreadyExists: "This device is already configured. Its entry was updated with the new settings.",
}

// Message returns the English text for an error code or abort reason.
func Message(code string) string {
	if m, ok := messages[code]; ok {
		return m
	}
	return fmt.Sprintf("Unexpected error (%s).", code)
}
