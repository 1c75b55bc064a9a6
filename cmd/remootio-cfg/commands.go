package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/muurk/remootio/internal/config"
	"github.com/muurk/remootio/internal/deviceconfig"
	"github.com/muurk/remootio/internal/discovery"
	"github.com/muurk/remootio/internal/flow"
	"github.com/muurk/remootio/internal/logging"
	"github.com/muurk/remootio/internal/ui"
	"github.com/muurk/remootio/internal/wizard/tui"
)

// Environment variables read when the key flags are not given
const (
	envSecretKey = "REMOOTIO_API_SECRET_KEY"
	envAuthKey   = "REMOOTIO_API_AUTH_KEY"
)

// Command flags
var (
	deviceHost   string
	secretKey    string
	authKey      string
	deviceClass  string
	scanTimeout  int
	outputFormat string
	assumeYes    bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&deviceHost, "device", "", "Device host or mDNS name (skips discovery in the wizard)")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(wizardCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(probeCmd)
}

func addKeyFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&secretKey, "secret-key", "", "API Secret Key (default: $"+envSecretKey+", else prompt)")
	cmd.Flags().StringVar(&authKey, "auth-key", "", "API Auth Key (default: $"+envAuthKey+", else prompt)")
}

// scanCmd discovers devices on the network
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for Remootio devices on the network",
	Long: `Scan for Remootio devices using mDNS/DNS-SD discovery.

Devices announce their web interface over mDNS. The serial number is not part
of the announcement; it is read from the device when it is added.`,
	Example: `  # Scan for 10 seconds (default)
  remootio-cfg scan

  # Quick 3-second scan
  remootio-cfg scan --timeout 3`,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().IntVar(&scanTimeout, "timeout", 0, "Scan timeout in seconds (default: preferences.discover_timeout)")
}

func runScan(cmd *cobra.Command, args []string) error {
	store, err := config.Open(configPath)
	if err != nil {
		return err
	}
	scanner := newScanner(store)

	p := ui.NewPrinter(cmd.OutOrStdout())
	p.PrintPleaseWait("Scanning for Remootio devices", scanner.Timeout.String())

	devices, err := scanner.ScanForDevicesWithContext(cmd.Context())
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	if len(devices) == 0 {
		p.PrintWarning("No devices found",
			ui.Detail{Key: "Hint", Value: "Check that the device is powered on and on this network"},
			ui.Detail{Key: "Hint", Value: "Try increasing --timeout for slower networks"},
			ui.Detail{Key: "Hint", Value: "Use 'remootio-cfg add --host <ip>' if discovery fails"},
		)
		return nil
	}

	rows := make([][]string, 0, len(devices))
	for _, d := range devices {
		configured := ""
		for _, e := range store.Entries() {
			if d.Matches(e.Host) {
				configured = e.SerialNumber
			}
		}
		rows = append(rows, []string{d.Name, d.Host(), d.Hostname, configured})
	}
	p.PrintTable([]string{"Name", "Address", "Hostname", "Configured as"}, rows)
	p.Newline()
	p.Println("Use 'remootio-cfg add --host <address>' or 'remootio-cfg wizard' to add a device")
	return nil
}

func newScanner(store *config.FileStore) *discovery.Scanner {
	s := discovery.NewScanner()
	s.Logger = logging.Named("discovery")
	if scanTimeout > 0 {
		s.Timeout = time.Duration(scanTimeout) * time.Second
	} else if t := store.Preferences().DiscoverTimeout; t > 0 {
		s.Timeout = time.Duration(t) * time.Second
	}
	return s
}

// wizardCmd launches the interactive TUI wizard
var wizardCmd = &cobra.Command{
	Use:   "wizard",
	Short: "Launch interactive setup wizard",
	Long: `Launch an interactive TUI wizard that adds a Remootio device.

The wizard finds devices on the network, asks for the API keys shown in the
Remootio app and validates them against the device before saving the entry.`,
	Example: `  # Launch wizard with auto-discovery
  remootio-cfg wizard
  # Or simply (wizard is default):
  remootio-cfg

  # Launch wizard for specific device
  remootio-cfg wizard --device 192.168.1.50`,
	RunE: runWizard,
}

func runWizard(cmd *cobra.Command, args []string) error {
	store, err := config.Open(configPath)
	if err != nil {
		return err
	}

	steps := make(chan deviceconfig.StepEvent, 2*len(deviceconfig.Steps))
	b := deviceconfig.NewBootstrapper(logging.Named("bootstrap"))
	b.OnStep = func(ev deviceconfig.StepEvent) {
		select {
		case steps <- ev:
		default:
		}
	}
	f := flow.New(b, store, flow.WithLogger(logging.Named("flow")))

	scanner := newScanner(store)
	deviceHost = resolveHost(cmd.Context(), scanner.WaitForDeviceWithContext, deviceHost)
	opts := []tui.Option{
		tui.WithStepEvents(steps),
		tui.WithScan(scanner.ScanForDevicesWithContext),
	}
	switch {
	case deviceHost != "":
		opts = append(opts, tui.WithHost(deviceHost))
	case !store.Preferences().AutoDiscover:
		opts = append(opts, tui.WithManualEntry())
	}

	final, err := tea.NewProgram(tui.NewAppModel(f, opts...), tea.WithAltScreen()).Run()
	if err != nil {
		return fmt.Errorf("wizard error: %w", err)
	}

	app, ok := final.(tui.AppModel)
	if !ok || app.Outcome() == nil {
		return nil
	}
	return reportOutcome(cmd.OutOrStdout(), app.Outcome(), deviceHost)
}

// reportOutcome prints the result box of a finished wizard and returns the
// flow error so the exit status matches the add command.
func reportOutcome(w io.Writer, r *flow.Result, host string) error {
	details, err := flowOutcome(r, host)
	p := ui.NewPrinter(w)
	if err != nil {
		p.PrintError("Device not added", err)
		return err
	}
	p.PrintSuccess("Setup complete", details...)
	return nil
}

// resolveHost looks a device name up over mDNS. Addresses, explicit ports and
// names nobody announces are used as given.
func resolveHost(ctx context.Context, find deviceFinder, match string) string {
	if match == "" || net.ParseIP(match) != nil {
		return match
	}
	if _, _, err := net.SplitHostPort(match); err == nil {
		return match
	}
	d, err := find(ctx, match)
	if err != nil {
		logging.Debug("Device not announced, using host as given", zap.String("host", match), zap.Error(err))
		return match
	}
	logging.Info("Resolved device", zap.String("match", match), zap.String("host", d.Host()))
	return d.Host()
}

type deviceFinder func(ctx context.Context, match string) (*discovery.Device, error)

// invalidParams reports every failing field at once.
func invalidParams(errs []error) error {
	if len(errs) == 1 {
		return errs[0]
	}
	return &deviceconfig.DeviceError{
		Type:    deviceconfig.ErrTypeValidation,
		Message: strings.TrimSpace(deviceconfig.FormatValidationErrors(errs)),
	}
}

// addCmd runs the onboarding flow without the TUI
var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a device",
	Long: fmt.Sprintf(`Validate the API keys against the device and store a config entry.

The device must be reachable, accept the keys, have its gate status sensor
enabled and run API version %d or later. Adding a device that is already
configured updates its host and keys.

The host may also be the mDNS name of a device, e.g. remootio-garage.`, deviceconfig.MinimumAPIVersion),
	Example: `  # Prompt for both keys
  remootio-cfg add --host 192.168.1.50

  # Keys from the environment, gate instead of garage door
  REMOOTIO_API_SECRET_KEY=... REMOOTIO_API_AUTH_KEY=... \
    remootio-cfg add --host 192.168.1.50 --device-class gate`,
	RunE: runAdd,
}

func init() {
	addCmd.Flags().StringVar(&deviceHost, "host", "", "Device IP address or hostname, optionally with :port")
	addCmd.Flags().StringVar(&deviceClass, "device-class", string(deviceconfig.DefaultDeviceClass), "Device class (garage, gate)")
	addKeyFlags(addCmd)
	_ = addCmd.MarkFlagRequired("host")
}

func runAdd(cmd *cobra.Command, args []string) error {
	if err := resolveKeys(cmd); err != nil {
		return err
	}
	store, err := config.Open(configPath)
	if err != nil {
		return err
	}
	deviceHost = resolveHost(cmd.Context(), newScanner(store).WaitForDeviceWithContext, deviceHost)

	b := deviceconfig.NewBootstrapper(logging.Named("bootstrap"))
	runner := ui.NewRunner(ui.RunnerConfig{
		Title:   "Add Device",
		Command: "remootio-cfg add",
		Params: map[string]string{
			"Host":         deviceHost,
			"Device class": deviceClass,
			"Config":       store.Path(),
		},
		Output: cmd.OutOrStdout(),
	})
	runner.Attach(b)
	f := flow.New(b, store, flow.WithLogger(logging.Named("flow")))

	return runner.Run(func() ([]ui.Detail, error) {
		p := deviceconfig.ConnectionParams{
			Host:         deviceHost,
			APISecretKey: secretKey,
			APIAuthKey:   authKey,
			DeviceClass:  deviceconfig.DeviceClass(deviceClass),
		}.Normalize()
		if errs := deviceconfig.ValidateAll(p); len(errs) > 0 {
			return nil, invalidParams(errs)
		}
		result := f.StepUser(cmd.Context(), &flow.UserInput{
			Host:         deviceHost,
			APISecretKey: secretKey,
			APIAuthKey:   authKey,
			DeviceClass:  deviceClass,
		})
		return flowOutcome(result, deviceHost)
	})
}

// flowOutcome turns a finished flow into result box details, or the error to
// report. An already configured device is a success: its entry was updated.
func flowOutcome(r *flow.Result, host string) ([]ui.Detail, error) {
	switch r.Type {
	case flow.ResultCreateEntry:
		return []ui.Detail{
			{Key: "Entry", Value: r.Title},
			{Key: "Serial number", Value: r.Data.SerialNumber},
			{Key: "Device class", Value: string(r.Data.DeviceClass)},
		}, nil

	case flow.ResultAbort:
		if r.Reason == flow.AbortAlreadyExists {
			return []ui.Detail{{Key: "Result", Value: flow.Message(r.Reason)}}, nil
		}
		switch r.Reason {
		case flow.AbortUnsupported:
			return nil, deviceconfig.NewUnsupportedDeviceError(host)
		case flow.AbortAPIVersion:
			return nil, &deviceconfig.DeviceError{
				Type:    deviceconfig.ErrTypeUnsupportedAPIVersion,
				Message: flow.Message(r.Reason),
				Host:    host,
			}
		}
		return nil, errors.New(flow.Message(r.Reason))
	}

	if code, ok := r.Errors[flow.FieldBase]; ok {
		switch code {
		case flow.ErrInvalidAuth:
			return nil, deviceconfig.NewAuthError(host, errors.New(flow.Message(code)))
		case flow.ErrCannotConnect:
			return nil, deviceconfig.NewCannotConnectError(host, errors.New(flow.Message(code)))
		}
		return nil, errors.New(flow.Message(code))
	}
	for _, field := range []string{deviceconfig.FieldHost, deviceconfig.FieldAPISecretKey, deviceconfig.FieldAPIAuthKey, deviceconfig.FieldDeviceClass} {
		if code, ok := r.Errors[field]; ok {
			return nil, deviceconfig.NewFieldError(field, flow.Message(code))
		}
	}
	return nil, errors.New(flow.Message(flow.ErrUnknown))
}

// resolveKeys fills missing keys from the environment, then from a prompt
func resolveKeys(cmd *cobra.Command) error {
	var err error
	if secretKey == "" {
		secretKey = os.Getenv(envSecretKey)
	}
	if secretKey == "" {
		if secretKey, err = promptSecret(cmd, "API Secret Key: "); err != nil {
			return err
		}
	}
	if authKey == "" {
		authKey = os.Getenv(envAuthKey)
	}
	if authKey == "" {
		if authKey, err = promptSecret(cmd, "API Auth Key: "); err != nil {
			return err
		}
	}
	return nil
}

func promptSecret(cmd *cobra.Command, prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("%s is required (flag or environment) when stdin is not a terminal", strings.TrimSuffix(prompt, ": "))
	}
	fmt.Fprint(cmd.ErrOrStderr(), prompt)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(cmd.ErrOrStderr())
	if err != nil {
		return "", fmt.Errorf("failed to read key: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}

// listCmd prints the configured devices
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured devices",
	Example: `  remootio-cfg list
  remootio-cfg list --format yaml`,
	RunE: runList,
}

func init() {
	listCmd.Flags().StringVar(&outputFormat, "format", "table", "Output format (table, yaml)")
}

func runList(cmd *cobra.Command, args []string) error {
	store, err := config.Open(configPath)
	if err != nil {
		return err
	}
	entries := store.Entries()

	switch outputFormat {
	case "yaml":
		redacted := make([]config.Entry, len(entries))
		for i := range entries {
			redacted[i] = entries[i].Redacted()
		}
		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		if err := enc.Encode(redacted); err != nil {
			return fmt.Errorf("failed to encode entries: %w", err)
		}
		return enc.Close()

	case "table":
		p := ui.NewPrinter(cmd.OutOrStdout())
		if len(entries) == 0 {
			p.Println("No devices configured. Run 'remootio-cfg wizard' to add one.")
			return nil
		}
		rows := make([][]string, 0, len(entries))
		for _, e := range entries {
			rows = append(rows, []string{e.SerialNumber, e.Title, e.Host, e.DeviceClass, formatSeen(e.LastSeen)})
		}
		p.PrintTable([]string{"Serial", "Title", "Host", "Class", "Last seen"}, rows)
		return nil

	default:
		return fmt.Errorf("unknown format %q (want table or yaml)", outputFormat)
	}
}

func formatSeen(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Local().Format("2006-01-02 15:04")
}

// removeCmd deletes a config entry
var removeCmd = &cobra.Command{
	Use:   "remove <serial>",
	Short: "Remove a configured device",
	Example: `  remootio-cfg remove RM0123456789
  remootio-cfg remove RM0123456789 --yes`,
	Args: cobra.ExactArgs(1),
	RunE: runRemove,
}

func init() {
	removeCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Skip the confirmation prompt")
}

func runRemove(cmd *cobra.Command, args []string) error {
	store, err := config.Open(configPath)
	if err != nil {
		return err
	}
	serial := args[0]
	entry, ok := store.GetEntry(serial)
	if !ok {
		return fmt.Errorf("%w: %s", config.ErrEntryNotFound, serial)
	}

	if !assumeYes && !ui.ConfirmRemoval(cmd.InOrStdin(), cmd.OutOrStdout(), serial, entry.Title) {
		return nil
	}
	if err := store.RemoveEntry(serial); err != nil {
		return err
	}
	ui.NewPrinter(cmd.OutOrStdout()).PrintSuccess("Device removed",
		ui.Detail{Key: "Entry", Value: entry.Title},
		ui.Detail{Key: "Serial number", Value: serial},
	)
	return nil
}

// probeCmd connects to a device without changing the configuration
var probeCmd = &cobra.Command{
	Use:   "probe [serial]",
	Short: "Check the connection to a device",
	Long: `Open an authenticated session to a device and report what it answers.

With a serial number, the host and keys of that config entry are used and the
device must still report the same serial. Otherwise --host and both keys are
required.`,
	Example: `  # Check a configured device
  remootio-cfg probe RM0123456789

  # Check keys before adding
  remootio-cfg probe --host 192.168.1.50`,
	Args: cobra.MaximumNArgs(1),
	RunE: runProbe,
}

func init() {
	probeCmd.Flags().StringVar(&deviceHost, "host", "", "Device IP address or hostname, optionally with :port")
	addKeyFlags(probeCmd)
}

func runProbe(cmd *cobra.Command, args []string) error {
	b := deviceconfig.NewBootstrapper(logging.Named("bootstrap"))
	params := map[string]string{}
	var op ui.Operation

	if len(args) == 1 {
		store, err := config.Open(configPath)
		if err != nil {
			return err
		}
		entry, ok := store.GetEntry(args[0])
		if !ok {
			return fmt.Errorf("%w: %s", config.ErrEntryNotFound, args[0])
		}
		params["Entry"] = entry.Title
		params["Host"] = entry.Host
		op = func() ([]ui.Detail, error) {
			return probeEntry(cmd.Context(), b, entry, store)
		}
	} else {
		if deviceHost == "" {
			return errors.New("either a serial number or --host is required")
		}
		if err := resolveKeys(cmd); err != nil {
			return err
		}
		p := deviceconfig.ConnectionParams{Host: deviceHost, APISecretKey: secretKey, APIAuthKey: authKey}.Normalize()
		params["Host"] = p.Host
		op = func() ([]ui.Detail, error) {
			if errs := deviceconfig.ValidateAll(p); len(errs) > 0 {
				return nil, invalidParams(errs)
			}
			serial, err := b.FetchSerialNumber(cmd.Context(), p.ConnectionOptions())
			if err != nil {
				return nil, err
			}
			return []ui.Detail{{Key: "Serial number", Value: serial}}, nil
		}
	}

	runner := ui.NewRunner(ui.RunnerConfig{
		Title:   "Probe Device",
		Command: "remootio-cfg probe",
		Params:  params,
		Output:  cmd.OutOrStdout(),
	})
	runner.Attach(b)
	return runner.Run(op)
}

func probeEntry(ctx context.Context, b *deviceconfig.Bootstrapper, entry config.Entry, store *config.FileStore) ([]ui.Detail, error) {
	client, err := b.CreateClient(ctx, entry.ConnectionOptions(), entry.SerialNumber)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	if err := store.TouchEntry(entry.SerialNumber, time.Now()); err != nil {
		logging.Warn("Failed to record last seen time")
	}
	return []ui.Detail{
		{Key: "Serial number", Value: client.SerialNumber()},
		{Key: "API version", Value: fmt.Sprintf("%d", client.APIVersion())},
		{Key: "State", Value: client.State().String()},
	}, nil
}
