// Package logging provides structured logging for the Remootio tools.
//
// This package wraps a global zap logger with convenience functions. Components
// that take a *zap.Logger (the device client, bootstrapper, supervisor) get a
// child logger from Named.
//
// # Log Levels
//
//   - Debug: Frames sent and received, served HTTP requests
//   - Info: Connections, state changes, created config entries
//   - Warn: Dropped sessions, retries, failed publishes
//   - Error: Setup failures and unexpected errors
//
// # Configuration
//
// The CLI is silent unless REMOOTIO_LOG_LEVEL (or --log-level) is set:
//
//	if err := logging.Initialize(level); err != nil {
//	    return err
//	}
//	defer logging.Sync()
//
//	b := deviceconfig.NewBootstrapper(logging.Named("bootstrap"))
//
// Output goes to stderr in console format so it never mixes with command
// output on stdout.
package logging
