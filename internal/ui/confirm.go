package ui

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// ConfirmTyped displays a warning box and asks the user to type phrase to
// proceed. Returns true only when the typed line equals phrase.
func ConfirmTyped(in io.Reader, out io.Writer, title string, warnings []string, phrase string) bool {
	width := GetTerminalWidth()

	lines := []string{"", WarningTitleStyle.Render(fmt.Sprintf("   %s  WARNING  ─  %s", WarningMarker, title)), ""}
	bullet := lipgloss.NewStyle().Foreground(TextColor)
	for _, w := range warnings {
		lines = append(lines, bullet.Render("   • "+w))
	}
	lines = append(lines, "")

	_, _ = fmt.Fprintln(out, boxStyle(WarningColor, width).Render(strings.Join(lines, "\n")))
	_, _ = fmt.Fprintln(out)

	prompt := WarningTitleStyle.Render(fmt.Sprintf("To proceed, type %q and press Enter: ", phrase))
	_, _ = fmt.Fprint(out, prompt)

	input, err := bufio.NewReader(in).ReadString('\n')
	_, _ = fmt.Fprintln(out)
	if err != nil && input == "" {
		return false
	}

	if strings.TrimSpace(input) == phrase {
		return true
	}

	_, _ = fmt.Fprintln(out, lipgloss.NewStyle().Foreground(MutedColor).Render("  Operation cancelled."))
	_, _ = fmt.Fprintln(out)
	return false
}

// ConfirmRemoval asks the user to type the serial number of the entry
// being removed.
func ConfirmRemoval(in io.Reader, out io.Writer, serial, title string) bool {
	return ConfirmTyped(in, out,
		"REMOVE DEVICE",
		[]string{
			"This removes " + title + " from the configuration",
			"A running bridge stops controlling the device once it reloads",
			"The API keys must be entered again to add it back",
		},
		serial,
	)
}
