// SPDX-License-Identifier: GPL-3.0-or-later
package output

import "github.com/charmbracelet/lipgloss"

var (
	Primary = lipgloss.Color("#1cc2e3")
	Green   = lipgloss.Color("#10B981")
	Yellow  = lipgloss.Color("#F59E0B")
	Red     = lipgloss.Color("#EF4444")
	Gray    = lipgloss.Color("#6B7280")

	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(Primary)

	SuccessStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(Green)

	WarningStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(Yellow)

	ErrorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(Red)

	MutedStyle = lipgloss.NewStyle().
			Foreground(Gray)
)
