// Package ui provides terminal output components for the remootio-cfg CLI.
//
// This package uses Lipgloss and the Bubbles progress bar to render styled
// output for device commands. Unlike the interactive wizard, these
// components follow a "run once and exit" pattern: they print as the
// command progresses and need no user interaction, except for the typed
// confirmation before removing an entry.
//
// # Architecture
//
//   - Header: Command banner showing operation name and parameters
//   - Progress: Step list with status markers and a progress bar
//   - Result: Success, warning and failure boxes; failures carry
//     troubleshooting tips derived from device errors
//   - Printer: Writes the components and simple tables
//
// The Runner ties them to a deviceconfig.Bootstrapper: it receives the
// bootstrap's step events and prints the header, each finished step and the
// final result.
//
// # Usage Pattern
//
//	b := deviceconfig.NewBootstrapper(logger)
//	runner := ui.NewRunner(ui.RunnerConfig{
//	    Title:   "Probe Device",
//	    Command: "remootio-cfg probe",
//	    Params:  map[string]string{"Host": host},
//	})
//	runner.Attach(b)
//
//	err := runner.Run(func() ([]ui.Detail, error) {
//	    rec, err := b.Validate(ctx, params)
//	    if err != nil {
//	        return nil, err
//	    }
//	    return []ui.Detail{{Key: "Serial number", Value: rec.SerialNumber}}, nil
//	})
//
// # Logging Integration
//
// Logging is controlled via the REMOOTIO_LOG_LEVEL environment variable.
// When unset, zap logging is silent so the styled output stays clean.
package ui
