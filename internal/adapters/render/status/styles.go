package status

import "github.com/charmbracelet/lipgloss"

type styles struct {
	title    lipgloss.Style
	header   lipgloss.Style
	account  lipgloss.Style
	current  lipgloss.Style
	detail   lipgloss.Style
	label    lipgloss.Style
	warning  lipgloss.Style
	section  lipgloss.Style
	empty    lipgloss.Style
	address  lipgloss.Style
	size     lipgloss.Style
	planGood lipgloss.Style
	planNone lipgloss.Style
}

func newStyles() styles {
	return styles{
		title:    lipgloss.NewStyle().Bold(true),
		header:   lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		account:  lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		current:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		detail:   lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		label:    lipgloss.NewStyle().Foreground(lipgloss.Color("250")),
		warning:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203")),
		section:  lipgloss.NewStyle().MarginTop(1),
		empty:    lipgloss.NewStyle().Faint(true),
		address:  lipgloss.NewStyle().Foreground(lipgloss.Color("159")),
		size:     lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		planGood: lipgloss.NewStyle().Foreground(lipgloss.Color("114")),
		planNone: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
	}
}
