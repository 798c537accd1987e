package ui

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

// Sprint color functions for building styled strings.
var (
	Bold        = color.New(color.Bold).SprintFunc()
	Dim         = color.New(color.Faint).SprintFunc()
	Cyan        = color.New(color.FgCyan).SprintFunc()
	Green       = color.New(color.FgGreen).SprintFunc()
	Red         = color.New(color.FgRed).SprintFunc()
	Yellow      = color.New(color.FgYellow).SprintFunc()
	Magenta     = color.New(color.FgMagenta).SprintFunc()
	BoldCyan    = color.New(color.Bold, color.FgCyan).SprintFunc()
	BoldGreen   = color.New(color.Bold, color.FgGreen).SprintFunc()
	BoldRed     = color.New(color.Bold, color.FgRed).SprintFunc()
	BoldYellow  = color.New(color.Bold, color.FgYellow).SprintFunc()
	BoldMagenta = color.New(color.Bold, color.FgMagenta).SprintFunc()
	BoldWhite   = color.New(color.Bold, color.FgWhite).SprintFunc()
)

// Heading writes a bold title with a rule underneath.
func Heading(w io.Writer, icon, title string) {
	rule := make([]rune, 0, len(title)+3)
	for range []rune(title) {
		rule = append(rule, '═')
	}
	rule = append(rule, '═', '═', '═')
	fmt.Fprintf(w, "%s %s\n", icon, BoldCyan(title))
	fmt.Fprintln(w, Cyan(string(rule)))
}

// StatusIcon returns a colored icon for a phase status.
func StatusIcon(status string) string {
	switch status {
	case "completed":
		return Green("✓")
	case "in_progress":
		return Cyan("●")
	case "delayed":
		return Red("⚠")
	default:
		return Dim("◌")
	}
}

// Health returns a colored label for an index rating.
func Health(h string) string {
	switch h {
	case "on_track":
		return Green("on track")
	case "at_risk":
		return Yellow("at risk")
	case "behind":
		return BoldRed("behind")
	default:
		return Dim(h)
	}
}

// Signed colors a variance green when favorable and red when not.
func Signed(v float64, text string) string {
	switch {
	case v > 0:
		return Green(text)
	case v < 0:
		return Red(text)
	default:
		return text
	}
}

// Utilization colors a utilization percentage by load.
func Utilization(pct float64) string {
	text := fmt.Sprintf("%.0f%%", pct)
	switch {
	case pct > 100:
		return BoldRed(text)
	case pct >= 90:
		return Yellow(text)
	default:
		return Green(text)
	}
}
