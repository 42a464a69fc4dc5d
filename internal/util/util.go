package util

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

var (
	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF4757")).
			Bold(true)

	debugErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B")).
			Bold(true).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#FF4757")).
			Padding(1, 2)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFA726")).
			Bold(true)
)

// ErrorHandler renders an error for the terminal. In debug mode the full
// pkg/errors stack is shown.
func ErrorHandler(err error) string {
	if err == nil {
		return ""
	}
	if IsDebug {
		header := errorStyle.Render("DEBUG ERROR")
		return fmt.Sprintf("%s\n%s", header, debugErrorStyle.Render(fmt.Sprintf("%+v", err)))
	}

	styledError := errorStyle.Render(fmt.Sprintf("error: %v", err))
	styledHint := warningStyle.Render("hint: run with --debug to see every resolution stage")
	return fmt.Sprintf("%s\n%s", styledError, styledHint)
}
