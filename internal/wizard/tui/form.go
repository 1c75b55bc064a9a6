package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/remootio/internal/deviceconfig"
	"github.com/muurk/remootio/internal/flow"
	"github.com/muurk/remootio/internal/urls"
)

// Focus positions on the form
const (
	focusHost = iota
	focusSecret
	focusAuth
	focusClass
	focusSubmit
	focusCount
)

type formKeyMap struct {
	Next   key.Binding
	Prev   key.Binding
	Toggle key.Binding
	Submit key.Binding
	Back   key.Binding
}

func (k formKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Next, k.Prev, k.Toggle, k.Submit, k.Back}
}

func (k formKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Next, k.Prev}, {k.Toggle, k.Submit, k.Back}}
}

// FormModel is the onboarding form: host, both API keys and the device class
type FormModel struct {
	inputs    [3]textinput.Model
	classIdx  int
	focus     int
	Errors    map[string]string
	Submitted bool
	Back      bool

	Width  int
	Height int
	Help   help.Model
	Keys   formKeyMap
}

// NewFormModel creates the form with host prefilled
func NewFormModel(host string) FormModel {
	mk := func(placeholder string, limit int, secret bool) textinput.Model {
		ti := textinput.New()
		ti.Placeholder = placeholder
		ti.CharLimit = limit
		ti.Width = 66
		if secret {
			ti.EchoMode = textinput.EchoPassword
			ti.EchoCharacter = '•'
		}
		return ti
	}

	m := FormModel{
		inputs: [3]textinput.Model{
			mk("192.168.1.50", 253, false),
			mk("64 hex characters from the Remootio app", 64, true),
			mk("64 hex characters from the Remootio app", 64, true),
		},
		Help: help.New(),
		Keys: formKeyMap{
			Next:   key.NewBinding(key.WithKeys("tab", "down"), key.WithHelp("tab/↓", "next")),
			Prev:   key.NewBinding(key.WithKeys("shift+tab", "up"), key.WithHelp("shift+tab/↑", "previous")),
			Toggle: key.NewBinding(key.WithKeys("left", "right", " "), key.WithHelp("←/→", "device class")),
			Submit: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "next/submit")),
			Back:   key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		},
	}
	for i, dc := range deviceconfig.DeviceClasses {
		if dc == deviceconfig.DefaultDeviceClass {
			m.classIdx = i
		}
	}

	m.inputs[focusHost].SetValue(host)
	if host != "" {
		m.focus = focusSecret
	}
	m.applyFocus()
	return m
}

// Init starts the cursor blink
func (m FormModel) Init() tea.Cmd {
	return textinput.Blink
}

// Input returns the values as flow input
func (m FormModel) Input() *flow.UserInput {
	return &flow.UserInput{
		Host:         strings.TrimSpace(m.inputs[focusHost].Value()),
		APISecretKey: strings.TrimSpace(m.inputs[focusSecret].Value()),
		APIAuthKey:   strings.TrimSpace(m.inputs[focusAuth].Value()),
		DeviceClass:  string(deviceconfig.DeviceClasses[m.classIdx]),
	}
}

// WithErrors returns the form showing errors, ready to be submitted again.
// Focus moves to the first invalid field.
func (m FormModel) WithErrors(errs map[string]string) FormModel {
	m.Errors = errs
	m.Submitted = false
	for i, field := range []string{deviceconfig.FieldHost, deviceconfig.FieldAPISecretKey, deviceconfig.FieldAPIAuthKey, deviceconfig.FieldDeviceClass} {
		if _, ok := errs[field]; ok {
			m.focus = i
			m.applyFocus()
			return m
		}
	}
	return m
}

func (m *FormModel) applyFocus() {
	for i := range m.inputs {
		if i == m.focus {
			m.inputs[i].Focus()
		} else {
			m.inputs[i].Blur()
		}
	}
}

// Update handles messages and updates the model
func (m FormModel) Update(msg tea.Msg) (FormModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.Keys.Back):
			m.Back = true
			return m, nil

		case key.Matches(msg, m.Keys.Next):
			m.focus = (m.focus + 1) % focusCount
			m.applyFocus()
			return m, nil

		case key.Matches(msg, m.Keys.Prev):
			m.focus = (m.focus + focusCount - 1) % focusCount
			m.applyFocus()
			return m, nil

		case key.Matches(msg, m.Keys.Submit):
			if m.focus == focusSubmit {
				m.Submitted = true
				return m, nil
			}
			m.focus++
			m.applyFocus()
			return m, nil

		case m.focus == focusClass && key.Matches(msg, m.Keys.Toggle):
			m.classIdx = (m.classIdx + 1) % len(deviceconfig.DeviceClasses)
			return m, nil
		}
	}

	if m.focus < len(m.inputs) {
		var cmd tea.Cmd
		m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
		return m, cmd
	}
	return m, nil
}

// View renders the form
func (m FormModel) View() string {
	var b strings.Builder

	b.WriteString(RenderTitle("Add a Remootio device"))
	b.WriteString("\n")
	b.WriteString(SubtitleStyle.Render("  Enable the API in the Remootio app to see both keys. See " + urls.APIDocumentation))
	b.WriteString("\n\n")

	if code, ok := m.Errors[flow.FieldBase]; ok {
		b.WriteString(RenderError(flow.Message(code)))
		b.WriteString("\n\n")
	}

	fields := []struct {
		label string
		field string
	}{
		{"Host", deviceconfig.FieldHost},
		{"API Secret Key", deviceconfig.FieldAPISecretKey},
		{"API Auth Key", deviceconfig.FieldAPIAuthKey},
	}
	for i, f := range fields {
		b.WriteString(m.label(i, f.label))
		b.WriteString(m.inputs[i].View())
		b.WriteString("\n")
		m.writeFieldError(&b, f.field)
		b.WriteString("\n")
	}

	b.WriteString(m.label(focusClass, "Device class"))
	var classes []string
	for i, dc := range deviceconfig.DeviceClasses {
		if i == m.classIdx {
			classes = append(classes, SelectedMenuItemStyle.UnsetPaddingLeft().Render("● "+string(dc)))
		} else {
			classes = append(classes, SubtitleStyle.Render("○ "+string(dc)))
		}
	}
	b.WriteString(strings.Join(classes, "   "))
	b.WriteString("\n")
	m.writeFieldError(&b, deviceconfig.FieldDeviceClass)
	b.WriteString("\n")

	button := ButtonStyle
	if m.focus == focusSubmit {
		button = FocusedButtonStyle
	}
	b.WriteString(lipgloss.NewStyle().PaddingLeft(20).Render(button.Render("Connect and add")))
	b.WriteString("\n")

	return RenderApplicationContainer(b.String(), m.Help.View(m.Keys), m.Width, m.Height)
}

func (m FormModel) label(idx int, text string) string {
	if m.focus == idx {
		return "  " + FocusedLabelStyle.Render(text)
	}
	return "  " + LabelStyle.Render(text)
}

func (m FormModel) writeFieldError(b *strings.Builder, field string) {
	if code, ok := m.Errors[field]; ok {
		b.WriteString(FieldErrorStyle.Render(flow.Message(code)))
		b.WriteString("\n")
	}
}
