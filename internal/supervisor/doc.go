// Package supervisor keeps a session open to every configured device.
//
// Each config entry gets its own goroutine. Setup goes through
// deviceconfig.Bootstrapper.CreateClient with the entry's serial number, so a
// different device answering at a known address is rejected. Retryable
// failures back off exponentially; anything else parks the entry in
// setup_error until the entry is updated or the bridge restarts.
package supervisor
