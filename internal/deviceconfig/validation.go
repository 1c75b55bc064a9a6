package deviceconfig

import (
	"fmt"
	"strings"

	"github.com/muurk/remootio/internal/remootio"
)

// ValidateHost validates a "host[:port]" string. Hostnames and dotted IPv4
// addresses are accepted; the port must be 1-65535.
func ValidateHost(host string) error {
	if host == "" {
		return NewFieldError(FieldHost, "host cannot be empty")
	}
	if !remootio.HostPattern.MatchString(host) {
		return NewFieldError(FieldHost, fmt.Sprintf("invalid host %q (expected hostname or IP, optionally with :port)", host))
	}
	if _, _, err := remootio.SplitHost(host); err != nil {
		return NewFieldError(FieldHost, err.Error())
	}
	return nil
}

// ValidateAPISecretKey validates the API secret key shown in the Remootio app.
// The key is compared case-insensitively.
func ValidateAPISecretKey(key string) error {
	return validateKey(FieldAPISecretKey, "API secret key", key)
}

// ValidateAPIAuthKey validates the API auth key shown in the Remootio app.
// The key is compared case-insensitively.
func ValidateAPIAuthKey(key string) error {
	return validateKey(FieldAPIAuthKey, "API auth key", key)
}

func validateKey(field, label, key string) error {
	key = strings.ToUpper(key)
	if !remootio.KeyPattern.MatchString(key) {
		return NewFieldError(field, fmt.Sprintf("%s must be 64 hexadecimal characters, got %d characters", label, len(key)))
	}
	return nil
}

// ValidateDeviceClass validates the selected device class.
func ValidateDeviceClass(dc DeviceClass) error {
	if _, err := ParseDeviceClass(string(dc)); err != nil {
		return NewFieldError(FieldDeviceClass, err.Error())
	}
	return nil
}

// ValidateConnectionParams checks the fields in form order and returns the
// first failure. It performs no network activity.
func ValidateConnectionParams(p ConnectionParams) error {
	if err := ValidateHost(p.Host); err != nil {
		return err
	}
	if err := ValidateAPISecretKey(p.APISecretKey); err != nil {
		return err
	}
	if err := ValidateAPIAuthKey(p.APIAuthKey); err != nil {
		return err
	}
	return ValidateDeviceClass(p.DeviceClass)
}

// ValidateAll checks every field and returns all failures.
// Returns a slice of validation errors (empty if valid).
func ValidateAll(p ConnectionParams) []error {
	var errs []error
	if err := ValidateHost(p.Host); err != nil {
		errs = append(errs, err)
	}
	if err := ValidateAPISecretKey(p.APISecretKey); err != nil {
		errs = append(errs, err)
	}
	if err := ValidateAPIAuthKey(p.APIAuthKey); err != nil {
		errs = append(errs, err)
	}
	if err := ValidateDeviceClass(p.DeviceClass); err != nil {
		errs = append(errs, err)
	}
	return errs
}

// FormatValidationErrors formats a list of validation errors for display.
func FormatValidationErrors(errs []error) string {
	if len(errs) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("Validation errors:\n")
	for _, err := range errs {
		msg := err.Error()
		if devErr, ok := AsDeviceError(err); ok {
			msg = devErr.Message
		}
		sb.WriteString(fmt.Sprintf("  • %s\n", msg))
	}
	return sb.String()
}
