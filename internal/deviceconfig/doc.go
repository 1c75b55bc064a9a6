// Package deviceconfig validates Remootio connection parameters and opens
// device sessions for onboarding and for long-running use.
//
// # Onboarding
//
// Bootstrapper.Validate runs the onboarding checks in a fixed order:
//  1. Field validation (host, API secret key, API auth key, device class).
//     Keys are uppercased first. No network activity happens if a field is invalid.
//  2. Reachability probe: a WebSocket upgrade, falling back to a TCP connect,
//     bounded by a 5 second timeout.
//  3. Session setup under a 30 second timeout, polling every 500ms until the
//     client reports connected.
//  4. Sensor check, API version check, serial number.
//
// # Usage Example
//
//	b := deviceconfig.NewBootstrapper(logger)
//	record, err := b.Validate(ctx, deviceconfig.ConnectionParams{
//	    Host:         "192.168.1.20",
//	    APISecretKey: secret,
//	    APIAuthKey:   auth,
//	    DeviceClass:  deviceconfig.DeviceClassGarage,
//	})
//	if err != nil {
//	    fmt.Println(deviceconfig.GetTroubleshootingHint(err))
//	    return err
//	}
//	fmt.Println(record.Title())
//
// # Long-running Sessions
//
// CreateClient opens a session for an already configured device. A missing
// sensor is only logged, and the device must report the expected serial
// number.
//
// # Error Handling
//
// Every failure is a *DeviceError (possibly wrapped). Use IsRetryable to decide
// whether to try again, and GetTroubleshootingHint / GetShortErrorMessage for
// user-facing text.
package deviceconfig
