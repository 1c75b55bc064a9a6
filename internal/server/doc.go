// Package server implements the Remootio bridge.
//
// The bridge loads the config entries written by remootio-cfg, keeps an
// authenticated session open to every device (see package supervisor) and
// serves a small HTTP API next to the Prometheus metrics.
//
// # HTTP API
//
//	GET    /healthz               {"status":"ok","entries":2}
//	GET    /metrics               Prometheus exposition
//	GET    /api/entries           entries with runtime status, keys redacted
//	GET    /api/entries/:serial   one entry
//	DELETE /api/entries/:serial   remove an entry and close its session
//	POST   /api/flow/user         run the config flow (empty body = blank form)
//
// A flow that creates an entry, or updates an existing one, triggers a
// supervisor sync so the device is picked up without a restart.
//
// # Usage Example
//
//	srv, err := server.New(&server.Config{
//	    ListenAddr: ":9480",
//	    LogLevel:   "info",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Start blocks until shutdown signal or error
//	if err := srv.Start(); err != nil {
//	    log.Fatal(err)
//	}
//
// # Graceful Shutdown
//
// On SIGINT or SIGTERM the server:
//  1. Stops accepting HTTP requests
//  2. Closes every device session
//  3. Publishes the bridge "offline" status and disconnects from MQTT
package server
