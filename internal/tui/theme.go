package tui

import "github.com/charmbracelet/lipgloss"

type Theme struct {
	name        string
	border      lipgloss.Style
	title       lipgloss.Style
	label       lipgloss.Style
	head        lipgloss.Style
	tabActive   lipgloss.Style
	tabInactive lipgloss.Style
	row         lipgloss.Style
	rowSelected lipgloss.Style
	footer      lipgloss.Style
	ok          lipgloss.Style
	warn        lipgloss.Style
	bad         lipgloss.Style
}

func themes() []Theme {
	b := lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	return []Theme{
		{
			name:        "default",
			border:      b.BorderForeground(lipgloss.Color("63")),
			title:       lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("81")),
			label:       lipgloss.NewStyle().Faint(true),
			head:        lipgloss.NewStyle().Foreground(lipgloss.Color("213")).Bold(true),
			tabActive:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("219")),
			tabInactive: lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
			row:         lipgloss.NewStyle(),
			rowSelected: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("229")),
			footer:      lipgloss.NewStyle().Faint(true),
			ok:          lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
			warn:        lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
			bad:         lipgloss.NewStyle().Foreground(lipgloss.Color("203")),
		},
		{
			name:        "mono",
			border:      b.BorderForeground(lipgloss.Color("245")),
			title:       lipgloss.NewStyle().Bold(true),
			label:       lipgloss.NewStyle().Faint(true),
			head:        lipgloss.NewStyle().Bold(true).Underline(true),
			tabActive:   lipgloss.NewStyle().Bold(true).Reverse(true),
			tabInactive: lipgloss.NewStyle().Faint(true),
			row:         lipgloss.NewStyle(),
			rowSelected: lipgloss.NewStyle().Reverse(true),
			footer:      lipgloss.NewStyle().Faint(true),
			ok:          lipgloss.NewStyle().Bold(true),
			warn:        lipgloss.NewStyle().Bold(true),
			bad:         lipgloss.NewStyle().Bold(true).Underline(true),
		},
	}
}

func defaultTheme() Theme { return themes()[0] }
