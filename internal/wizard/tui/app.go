package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/muurk/remootio/internal/deviceconfig"
	"github.com/muurk/remootio/internal/flow"
	"github.com/muurk/remootio/internal/ui"
)

// Screen represents the current active screen in the application
type Screen string

const (
	ScreenDiscovery  Screen = "discovery"
	ScreenForm       Screen = "form"
	ScreenValidating Screen = "validating"
	ScreenResult     Screen = "result"
)

// FlowRunner runs the onboarding flow. *flow.ConfigFlow implements it.
type FlowRunner interface {
	StepUser(ctx context.Context, input *flow.UserInput) *flow.Result
}

type flowResultMsg struct {
	result *flow.Result
}

type stepMsg struct {
	event deviceconfig.StepEvent
}

// resultKeyMap defines key bindings for the result screen
type resultKeyMap struct {
	Another key.Binding
	Quit    key.Binding
}

func (k resultKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Another, k.Quit}
}

func (k resultKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Another, k.Quit}}
}

// Option configures the AppModel
type Option func(*AppModel)

// WithScan replaces mDNS discovery
func WithScan(scan ScanFunc) Option {
	return func(m *AppModel) { m.scan = scan }
}

// WithHost skips discovery and opens the form with host filled in
func WithHost(host string) Option {
	return func(m *AppModel) { m.startHost = host }
}

// WithManualEntry starts with the host prompt instead of a scan
func WithManualEntry() Option {
	return func(m *AppModel) { m.manual = true }
}

// WithStepEvents shows bootstrap progress received on ch while validating.
// Connect the channel to Bootstrapper.OnStep.
func WithStepEvents(ch <-chan deviceconfig.StepEvent) Option {
	return func(m *AppModel) { m.steps = ch }
}

// AppModel is the top-level model coordinating the screens
type AppModel struct {
	CurrentScreen Screen

	Discovery DiscoveryModel
	Form      FormModel
	Spinner   spinner.Model
	Progress  *ui.Progress
	Result    *flow.Result

	Width  int
	Height int

	Help       help.Model
	ResultKeys resultKeyMap

	flow      FlowRunner
	scan      ScanFunc
	steps     <-chan deviceconfig.StepEvent
	startHost string
	manual    bool
}

// NewAppModel creates the wizard. It starts with discovery unless WithHost
// was given.
func NewAppModel(runner FlowRunner, opts ...Option) AppModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	m := AppModel{
		flow:    runner,
		Spinner: s,
		Help:    help.New(),
		ResultKeys: resultKeyMap{
			Another: key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add another device")),
			Quit:    key.NewBinding(key.WithKeys("q", "enter", "esc"), key.WithHelp("q/enter", "quit")),
		},
	}
	for _, o := range opts {
		o(&m)
	}

	m.Discovery = NewDiscoveryModel(m.scan)
	m.CurrentScreen = ScreenDiscovery
	switch {
	case m.startHost != "":
		m.CurrentScreen = ScreenForm
		m.Form = NewFormModel(m.startHost)
	case m.manual:
		m.Discovery.ManualMode = true
		m.Discovery.HostInput.Focus()
	}
	return m
}

// Init initializes the starting screen
func (m AppModel) Init() tea.Cmd {
	switch {
	case m.CurrentScreen == ScreenForm:
		return m.Form.Init()
	case m.manual:
		return textinput.Blink
	}
	return m.Discovery.Init()
}

// Update handles all messages and routes them to the active screen
func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		var cmd tea.Cmd
		m.Discovery, cmd = m.Discovery.Update(msg)
		m.Form, _ = m.Form.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}

	case stepMsg:
		if m.Progress != nil {
			m.Progress.UpdateStep(stepNumber(msg.event.Step), stepStatus(msg.event), stepNote(msg.event))
		}
		return m, m.waitForStep()

	case flowResultMsg:
		return m.handleFlowResult(msg.result)
	}

	switch m.CurrentScreen {
	case ScreenDiscovery:
		return m.updateDiscovery(msg)
	case ScreenForm:
		return m.updateForm(msg)
	case ScreenValidating:
		if _, ok := msg.(spinner.TickMsg); ok {
			var cmd tea.Cmd
			m.Spinner, cmd = m.Spinner.Update(msg)
			return m, cmd
		}
	case ScreenResult:
		if keyMsg, ok := msg.(tea.KeyMsg); ok {
			switch {
			case key.Matches(keyMsg, m.ResultKeys.Another):
				return m.toDiscovery()
			case key.Matches(keyMsg, m.ResultKeys.Quit):
				return m, tea.Quit
			}
		}
	}
	return m, nil
}

func (m AppModel) updateDiscovery(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok && !m.Discovery.ManualMode {
		if s := keyMsg.String(); s == "q" || s == "esc" {
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.Discovery, cmd = m.Discovery.Update(msg)

	if host := m.Discovery.SelectedHost(); host != "" {
		m.CurrentScreen = ScreenForm
		m.Form = NewFormModel(host)
		m.Form.Width, m.Form.Height = m.Width, m.Height
		return m, tea.Batch(cmd, m.Form.Init())
	}
	return m, cmd
}

func (m AppModel) updateForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	m.Form, cmd = m.Form.Update(msg)

	switch {
	case m.Form.Back:
		return m.toDiscovery()

	case m.Form.Submitted:
		m.CurrentScreen = ScreenValidating
		m.Progress = newStepProgress()
		input := m.Form.Input()
		runner := m.flow
		return m, tea.Batch(
			m.Spinner.Tick,
			m.waitForStep(),
			func() tea.Msg {
				return flowResultMsg{result: runner.StepUser(context.Background(), input)}
			},
		)
	}
	return m, cmd
}

func (m AppModel) handleFlowResult(r *flow.Result) (tea.Model, tea.Cmd) {
	if r.Type == flow.ResultForm {
		m.CurrentScreen = ScreenForm
		m.Form = m.Form.WithErrors(r.Errors)
		return m, m.Form.Init()
	}
	if m.Progress != nil {
		m.Progress.SkipPending()
	}
	m.Result = r
	m.CurrentScreen = ScreenResult
	return m, nil
}

func (m AppModel) toDiscovery() (tea.Model, tea.Cmd) {
	m.CurrentScreen = ScreenDiscovery
	m.Result = nil
	m.Discovery = NewDiscoveryModel(m.scan)
	m.Discovery, _ = m.Discovery.Update(tea.WindowSizeMsg{Width: m.Width, Height: m.Height})
	return m, m.Discovery.Init()
}

// waitForStep delivers the next bootstrap event. It returns nil when no
// channel was configured.
func (m AppModel) waitForStep() tea.Cmd {
	if m.steps == nil {
		return nil
	}
	ch := m.steps
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return nil
		}
		return stepMsg{event: ev}
	}
}

// Outcome returns the final flow result, nil when the user quit before one
func (m AppModel) Outcome() *flow.Result {
	return m.Result
}

// View renders the current screen
func (m AppModel) View() string {
	switch m.CurrentScreen {
	case ScreenDiscovery:
		return m.Discovery.View()
	case ScreenForm:
		return m.Form.View()
	case ScreenValidating:
		return m.renderValidating()
	case ScreenResult:
		return m.renderResult()
	default:
		return "Unknown screen"
	}
}

func (m AppModel) renderValidating() string {
	var b strings.Builder
	b.WriteString(RenderTitle(m.Spinner.View() + " Connecting to " + m.Form.Input().Host))
	b.WriteString("\n")
	if m.Progress != nil {
		b.WriteString(m.Progress.Render())
		b.WriteString("\n")
	}
	return RenderApplicationContainer(b.String(), "ctrl+c quit", m.Width, m.Height)
}

func (m AppModel) renderResult() string {
	var b strings.Builder
	r := m.Result

	switch {
	case r.Type == flow.ResultCreateEntry:
		b.WriteString(RenderTitle("✓ Device added"))
		b.WriteString("\n")
		details := []string{r.Title}
		if r.Data != nil {
			details = append(details,
				"",
				"Serial number: "+r.Data.SerialNumber,
				"Host:          "+r.Data.Host,
				"Device class:  "+string(r.Data.DeviceClass),
			)
		}
		b.WriteString(SuccessBoxStyle.Render(strings.Join(details, "\n")))

	case r.Reason == flow.AbortAlreadyExists:
		b.WriteString(RenderTitle("⚠ Already configured"))
		b.WriteString("\n")
		b.WriteString(WarningBoxStyle.Render(flow.Message(r.Reason)))

	default:
		b.WriteString(RenderTitle("✗ Device cannot be added"))
		b.WriteString("\n")
		b.WriteString(ErrorBoxStyle.Render(flow.Message(r.Reason)))
	}
	b.WriteString("\n\n")

	if m.Progress != nil {
		b.WriteString(m.Progress.Render())
		b.WriteString("\n")
	}

	return RenderApplicationContainer(b.String(), m.Help.View(m.ResultKeys), m.Width, m.Height)
}

func newStepProgress() *ui.Progress {
	names := make([]string, len(deviceconfig.Steps))
	for i, s := range deviceconfig.Steps {
		names[i] = s.String()
	}
	return ui.NewProgress(names)
}

func stepNumber(step deviceconfig.Step) int {
	for i, s := range deviceconfig.Steps {
		if s == step {
			return i + 1
		}
	}
	return 0
}

func stepStatus(ev deviceconfig.StepEvent) ui.StepStatus {
	switch {
	case !ev.Done:
		return ui.StepRunning
	case ev.Err != nil:
		return ui.StepFailed
	default:
		return ui.StepComplete
	}
}

func stepNote(ev deviceconfig.StepEvent) string {
	if ev.Err != nil {
		return deviceconfig.GetShortErrorMessage(ev.Err)
	}
	return ev.Detail
}
