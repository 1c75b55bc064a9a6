package tui

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/remootio/internal/discovery"
)

// ScanFunc discovers devices on the local network
type ScanFunc func(ctx context.Context) ([]*discovery.Device, error)

// DefaultScan browses mDNS for the default scan timeout
func DefaultScan(ctx context.Context) ([]*discovery.Device, error) {
	return discovery.NewScanner().ScanForDevicesWithContext(ctx)
}

// Messages for async operations
type scanStartMsg struct{}
type scanCompleteMsg struct {
	devices []*discovery.Device
	err     error
}

// discoveryKeyMap defines key bindings for the device list
type discoveryKeyMap struct {
	Up     key.Binding
	Down   key.Binding
	Enter  key.Binding
	Rescan key.Binding
	Manual key.Binding
	Quit   key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k discoveryKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Enter, k.Rescan, k.Manual, k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k discoveryKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Enter},
		{k.Rescan, k.Manual, k.Quit},
	}
}

// manualModeKeyMap defines key bindings for manual host entry
type manualModeKeyMap struct {
	Confirm key.Binding
	Cancel  key.Binding
}

func (m manualModeKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{m.Confirm, m.Cancel}
}

func (m manualModeKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{m.Confirm, m.Cancel}}
}

// deviceItem wraps a Device for use with bubbles/list. Manual items carry
// the host exactly as typed.
type deviceItem struct {
	device *discovery.Device
	manual string
}

func (d deviceItem) host() string {
	if d.manual != "" {
		return d.manual
	}
	return d.device.Host()
}

// FilterValue implements list.Item
func (d deviceItem) FilterValue() string {
	if d.manual != "" {
		return d.manual
	}
	return d.device.Name + " " + d.device.IP + " " + d.device.Hostname
}

func (d deviceItem) Title() string {
	if d.manual != "" {
		return "Manual: " + d.manual
	}
	return d.device.Name
}

// deviceDelegate renders each device as a card
type deviceDelegate struct {
	width int
}

func (d deviceDelegate) Height() int { return 7 }

func (d deviceDelegate) Spacing() int { return 1 }

func (d deviceDelegate) Update(msg tea.Msg, m *list.Model) tea.Cmd { return nil }

func (d deviceDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, ok := item.(deviceItem)
	if !ok {
		return
	}
	selected := index == m.Index()

	var content strings.Builder
	if selected {
		content.WriteString(SelectedMenuItemStyle.Render("→ " + it.Title()))
	} else {
		content.WriteString("  " + it.Title())
	}
	content.WriteString("\n\n")

	if it.manual != "" {
		content.WriteString(fmt.Sprintf("  Host:     %s\n", it.manual))
		content.WriteString("  Source:   entered manually")
	} else {
		content.WriteString(fmt.Sprintf("  Host:     %s\n", it.device.Host()))
		content.WriteString(fmt.Sprintf("  mDNS:     %s (port %d)\n", strings.TrimSuffix(it.device.Hostname, "."), it.device.AdvertisedPort))
		content.WriteString(fmt.Sprintf("  Found:    %s", it.device.DiscoveredAt.Format("15:04:05")))
	}

	cardWidth := d.width - 6
	if cardWidth < MinTerminalWidth-6 {
		cardWidth = MinTerminalWidth - 6
	}
	if cardWidth > MaxContentWidth-6 {
		cardWidth = MaxContentWidth - 6
	}

	cardStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(BorderColor).
		Padding(0, 2).
		MarginLeft(2).
		Width(cardWidth)
	if selected {
		cardStyle = cardStyle.BorderForeground(HighlightColor)
	}

	fmt.Fprint(w, cardStyle.Render(content.String()))
}

// DiscoveryModel is the first screen: scan for devices or enter a host
type DiscoveryModel struct {
	Scanning   bool
	DeviceList list.Model
	Selected   bool
	Err        error

	ManualMode bool
	HostInput  textinput.Model

	Width         int
	Height        int
	Spinner       spinner.Model
	ProgressBar   progress.Model
	ScanStartTime time.Time
	ScanTimeout   time.Duration
	Help          help.Model
	Keys          discoveryKeyMap
	ManualKeys    manualModeKeyMap

	scan ScanFunc
}

// NewDiscoveryModel creates a new discovery screen model
func NewDiscoveryModel(scan ScanFunc) DiscoveryModel {
	if scan == nil {
		scan = DefaultScan
	}

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	hostInput := textinput.New()
	hostInput.Placeholder = "192.168.1.50"
	hostInput.CharLimit = 253
	hostInput.Width = 40

	progressBar := progress.New(progress.WithDefaultGradient())
	progressBar.Width = 40

	deviceList := list.New([]list.Item{}, deviceDelegate{width: MinTerminalWidth}, 0, 0)
	deviceList.Title = "Discovered Remootio Devices"
	deviceList.SetShowStatusBar(false)
	deviceList.SetShowHelp(false)
	deviceList.SetFilteringEnabled(false)
	deviceList.Styles.Title = TitleStyle

	keys := discoveryKeyMap{
		Up:     key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "move up")),
		Down:   key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "move down")),
		Enter:  key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "select")),
		Rescan: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "rescan")),
		Manual: key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "enter host")),
		Quit:   key.NewBinding(key.WithKeys("q", "esc"), key.WithHelp("q", "quit")),
	}
	manualKeys := manualModeKeyMap{
		Confirm: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "confirm")),
		Cancel:  key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
	}

	return DiscoveryModel{
		DeviceList:  deviceList,
		HostInput:   hostInput,
		Spinner:     s,
		ProgressBar: progressBar,
		ScanTimeout: discovery.DefaultScanTimeout,
		Help:        help.New(),
		Keys:        keys,
		ManualKeys:  manualKeys,
		scan:        scan,
	}
}

// Init starts the first scan
func (m DiscoveryModel) Init() tea.Cmd {
	return m.startScan()
}

func (m DiscoveryModel) startScan() tea.Cmd {
	scan := m.scan
	return tea.Batch(
		func() tea.Msg { return scanStartMsg{} },
		func() tea.Msg {
			devices, err := scan(context.Background())
			return scanCompleteMsg{devices: devices, err: err}
		},
		m.Spinner.Tick,
	)
}

// Update handles messages and updates the model
func (m DiscoveryModel) Update(msg tea.Msg) (DiscoveryModel, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.ManualMode {
			return m.updateManualMode(msg)
		}
		return m.updateNormalMode(msg)

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.DeviceList.SetDelegate(deviceDelegate{width: msg.Width})
		m.DeviceList.SetSize(msg.Width-4, msg.Height-8)

	case scanStartMsg:
		m.Scanning = true
		m.ScanStartTime = time.Now()

	case scanCompleteMsg:
		m.Scanning = false
		m.Err = msg.err
		// Keep manually entered hosts across rescans
		var items []list.Item
		for _, it := range m.DeviceList.Items() {
			if it.(deviceItem).manual != "" {
				items = append(items, it)
			}
		}
		for _, dev := range msg.devices {
			items = append(items, deviceItem{device: dev})
		}
		cmd = m.DeviceList.SetItems(items)

	case spinner.TickMsg:
		if !m.Scanning {
			return m, nil
		}
		m.Spinner, cmd = m.Spinner.Update(msg)
	}

	return m, cmd
}

func (m DiscoveryModel) updateNormalMode(msg tea.KeyMsg) (DiscoveryModel, tea.Cmd) {
	switch msg.String() {
	case "enter":
		if m.DeviceList.SelectedItem() != nil {
			m.Selected = true
		}
		return m, nil

	case "r":
		if m.Scanning {
			return m, nil
		}
		m.Err = nil
		return m, m.startScan()

	case "m":
		m.ManualMode = true
		m.HostInput.SetValue("")
		return m, m.HostInput.Focus()
	}

	if m.Scanning {
		return m, nil
	}
	var cmd tea.Cmd
	m.DeviceList, cmd = m.DeviceList.Update(msg)
	return m, cmd
}

func (m DiscoveryModel) updateManualMode(msg tea.KeyMsg) (DiscoveryModel, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.ManualMode = false
		m.HostInput.SetValue("")
		m.HostInput.Blur()
		return m, nil

	case "enter":
		value := strings.TrimSpace(m.HostInput.Value())
		if value == "" {
			return m, nil
		}
		items := append([]list.Item{deviceItem{manual: value}}, m.DeviceList.Items()...)
		cmd := m.DeviceList.SetItems(items)
		m.DeviceList.Select(0)
		m.ManualMode = false
		m.HostInput.SetValue("")
		m.HostInput.Blur()
		m.Selected = true
		return m, cmd
	}

	var cmd tea.Cmd
	m.HostInput, cmd = m.HostInput.Update(msg)
	return m, cmd
}

// SelectedHost returns the host of the chosen device, or "" when none was chosen
func (m DiscoveryModel) SelectedHost() string {
	if !m.Selected {
		return ""
	}
	if it, ok := m.DeviceList.SelectedItem().(deviceItem); ok {
		return it.host()
	}
	return ""
}

// View renders the discovery screen
func (m DiscoveryModel) View() string {
	width := m.Width
	if width == 0 {
		width = defaultWidth
	}

	var content, helpText string
	switch {
	case m.ManualMode:
		content = m.renderManualEntry()
		helpText = m.Help.View(m.ManualKeys)
	case m.Scanning:
		content = m.renderScanning(width)
		helpText = m.Help.View(m.Keys)
	default:
		content = m.renderDeviceResults()
		helpText = m.Help.View(m.Keys)
	}

	return RenderApplicationContainer(content, helpText, m.Width, m.Height)
}

func (m DiscoveryModel) renderScanning(width int) string {
	elapsed := time.Since(m.ScanStartTime)
	percent := elapsed.Seconds() / m.ScanTimeout.Seconds()
	if percent > 1 {
		percent = 1
	}

	content := lipgloss.JoinVertical(lipgloss.Center,
		"",
		TitleStyle.Render(fmt.Sprintf("%s SEARCHING FOR DEVICES", m.Spinner.View())),
		SubtitleStyle.Render("Browsing mDNS for Remootio devices..."),
		"",
		m.ProgressBar.ViewAs(percent),
		"",
		SubtitleStyle.Render(fmt.Sprintf("Elapsed: %ds", int(elapsed.Seconds()))),
		"",
	)
	return lipgloss.Place(width, 0, lipgloss.Center, lipgloss.Top, content)
}

func (m DiscoveryModel) renderDeviceResults() string {
	var b strings.Builder
	b.WriteString("\n")

	switch {
	case m.Err != nil:
		b.WriteString(RenderError(fmt.Sprintf("Scan failed: %v", m.Err)))
		b.WriteString("\n\n")
		b.WriteString(noDevicesHelp)

	case len(m.DeviceList.Items()) == 0:
		b.WriteString("  ")
		b.WriteString(lipgloss.NewStyle().Foreground(WarningColor).Bold(true).Render("⚠ No Remootio devices found on your network"))
		b.WriteString("\n\n")
		b.WriteString(noDevicesHelp)

	default:
		b.WriteString(m.DeviceList.View())
	}

	return b.String()
}

const noDevicesHelp = `  Troubleshooting:
    • Ensure the device is powered on and connected to your WiFi
    • Ensure this computer is on the same network segment
    • mDNS (UDP port 5353) must not be blocked by a firewall
    • Press 'm' to enter the device's IP address instead
`

func (m DiscoveryModel) renderManualEntry() string {
	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(RenderSubtitle("  Enter the IP address or hostname of the device"))
	b.WriteString("\n\n")
	b.WriteString("  Host: ")
	b.WriteString(m.HostInput.View())
	b.WriteString("\n\n")
	b.WriteString(SubtitleStyle.Render("  The API port defaults to 8080; append :port to use another."))
	b.WriteString("\n")
	return b.String()
}
