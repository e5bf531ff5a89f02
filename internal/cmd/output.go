package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/tmuxsnap/tmuxsnap/internal/config"
	"github.com/tmuxsnap/tmuxsnap/internal/errors"
)

var (
	primaryColor = lipgloss.Color("#A78BFA")
	successColor = lipgloss.Color("#10B981")
	warningColor = lipgloss.Color("#F59E0B")
	errorColor   = lipgloss.Color("#F87171")
	mutedColor   = lipgloss.Color("#9CA3AF")

	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(primaryColor)
	successStyle = lipgloss.NewStyle().Foreground(successColor)
	warningStyle = lipgloss.NewStyle().Foreground(warningColor)
	errorStyle   = lipgloss.NewStyle().Foreground(errorColor)
	mutedStyle   = lipgloss.NewStyle().Foreground(mutedColor)
)

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// render styles s only when w is a terminal.
func render(w io.Writer, style lipgloss.Style, s string) string {
	if !isTerminal(w) {
		return s
	}
	return style.Render(s)
}

func printTitle(w io.Writer, s string) {
	fmt.Fprintln(w, render(w, titleStyle, s))
}

func printSuccess(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, render(w, successStyle, "✓ "+fmt.Sprintf(format, args...)))
}

func printWarning(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, render(w, warningStyle, "! "+fmt.Sprintf(format, args...)))
}

func printError(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, render(w, errorStyle, "✗ "+fmt.Sprintf(format, args...)))
}

func printMuted(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, render(w, mutedStyle, fmt.Sprintf(format, args...)))
}

// diagnostic returns the one-line message printed for a failed command.
// Output captured from tmux or git stays in the log.
func diagnostic(err error) string {
	if errors.IsUserFacing(err) {
		return err.Error()
	}
	var cmdErr *errors.CommandError
	if errors.As(err, &cmdErr) {
		name := cmdErr.Command
		if len(cmdErr.Args) > 0 {
			name += " " + cmdErr.Args[0]
		}
		logPath := filepath.Join(config.Get().Paths.LogDir(), cliLogFile)
		return fmt.Sprintf("%s failed (%v), see %s", name, cmdErr.Err, logPath)
	}
	return err.Error()
}
