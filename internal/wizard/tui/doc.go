// Package tui implements the terminal user interface for the Remootio setup wizard.
//
// The wizard walks the user through adding a Remootio device: find it on the
// network, enter the API keys from the Remootio app, and let the onboarding
// flow validate the keys against the live device before the entry is saved.
// Built on Bubble Tea, every screen is a value model updated by messages.
//
// # Screens
//
//  1. Discovery: browses mDNS for devices, or accepts a manually typed host.
//  2. Form: host, API Secret Key, API Auth Key and device class.
//  3. Validating: spinner plus live bootstrap steps (probe, connect, sensor,
//     API version, serial number).
//  4. Result: the added entry, an "already configured" notice, or the abort
//     reason. Form errors return to the form with the offending field focused.
//
// # Usage Example
//
//	steps := make(chan deviceconfig.StepEvent, 16)
//	b := deviceconfig.NewBootstrapper(logger)
//	b.OnStep = func(ev deviceconfig.StepEvent) {
//	    select {
//	    case steps <- ev:
//	    default:
//	    }
//	}
//	f := flow.New(b, store, flow.WithLogger(logger))
//
//	app := tui.NewAppModel(f, tui.WithStepEvents(steps))
//	final, err := tea.NewProgram(app, tea.WithAltScreen()).Run()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result := final.(tui.AppModel).Outcome()
//
// # Key Bindings
//
//   - Discovery: ↑/↓ navigate, Enter select, r rescan, m manual host, q quit
//   - Form: Tab/Shift+Tab move, ←/→ device class, Enter next or submit, Esc back
//   - Result: a add another device, q/Enter quit
//
// Ctrl+C quits from any screen. The flow call in progress is not cancelled;
// the bootstrapper's own timeouts bound it.
package tui
