// Package flow implements the config flow that onboards a Remootio device.
//
// The flow has a single "user" step. Submitting the form validates the
// connection parameters against the device, then creates a config entry
// keyed by the device serial number. Validation failures re-show the form
// with an error code per field (or under "base"); unsupported devices and
// duplicates abort the flow.
//
//	f := flow.New(deviceconfig.NewBootstrapper(logger), store, flow.WithLogger(logger))
//	result := f.StepUser(ctx, &flow.UserInput{Host: "192.168.1.40", ...})
//	switch result.Type {
//	case flow.ResultCreateEntry:
//	case flow.ResultForm:
//	case flow.ResultAbort:
//	}
package flow
