// Package ui renders status markers for command output. Styling switches
// off when stdout is not a terminal, when the terminal does not do color,
// or when the user passes --no-color.
package ui

import (
	"os"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

var (
	passStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	accentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

var (
	mu      sync.Mutex
	noColor bool
)

// SetNoColor forces plain output regardless of terminal capabilities.
func SetNoColor(v bool) {
	mu.Lock()
	defer mu.Unlock()
	noColor = v
}

func colorEnabled() bool {
	mu.Lock()
	off := noColor
	mu.Unlock()
	if off {
		return false
	}
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return false
	}
	return termenv.EnvColorProfile() != termenv.Ascii
}

func render(style lipgloss.Style, s string) string {
	if !colorEnabled() {
		return s
	}
	return style.Render(s)
}

// RenderPass styles a success marker.
func RenderPass(s string) string { return render(passStyle, s) }

// RenderWarn styles a warning marker.
func RenderWarn(s string) string { return render(warnStyle, s) }

// RenderFail styles a failure marker.
func RenderFail(s string) string { return render(failStyle, s) }

// RenderAccent styles a highlighted marker.
func RenderAccent(s string) string { return render(accentStyle, s) }

// RenderMuted styles de-emphasized text.
func RenderMuted(s string) string { return render(mutedStyle, s) }
