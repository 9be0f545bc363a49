package output

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Styles holds the lipgloss styles used by command output.
type Styles struct {
	Header1       lipgloss.Style
	Header2       lipgloss.Style
	Muted         lipgloss.Style
	Bold          lipgloss.Style
	Success       lipgloss.Style
	Warning       lipgloss.Style
	Error         lipgloss.Style
	Info          lipgloss.Style
	Pill          lipgloss.Style
	Missing       lipgloss.Style
	StatusSuccess lipgloss.Style
	StatusFailed  lipgloss.Style
	StatusPending lipgloss.Style
}

// DefaultStyles returns the colored terminal styles.
func DefaultStyles() *Styles {
	return &Styles{
		Header1:       lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).MarginBottom(1),
		Header2:       lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14")),
		Muted:         lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		Bold:          lipgloss.NewStyle().Bold(true),
		Success:       lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		Warning:       lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		Error:         lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
		Info:          lipgloss.NewStyle().Foreground(lipgloss.Color("12")),
		Pill:          lipgloss.NewStyle().Foreground(lipgloss.Color("0")).Background(lipgloss.Color("14")).Padding(0, 1),
		Missing:       lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Italic(true),
		StatusSuccess: lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true),
		StatusFailed:  lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		StatusPending: lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
	}
}

// PlainStyles returns styles that render text unchanged.
func PlainStyles() *Styles {
	plain := lipgloss.NewStyle()
	return &Styles{
		Header1:       plain,
		Header2:       plain,
		Muted:         plain,
		Bold:          plain,
		Success:       plain,
		Warning:       plain,
		Error:         plain,
		Info:          plain,
		Pill:          plain,
		Missing:       plain,
		StatusSuccess: plain,
		StatusFailed:  plain,
		StatusPending: plain,
	}
}

// Status picks the style for an execution, template or step status.
func (s *Styles) Status(status string) lipgloss.Style {
	switch strings.ToLower(status) {
	case "completed", "published", "success", "sent", "ok", "done":
		return s.StatusSuccess
	case "failed", "cancelled", "error", "blocked":
		return s.StatusFailed
	default:
		return s.StatusPending
	}
}

// Title title-cases a status or label for display.
func Title(s string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(s, "_", " "))
}
