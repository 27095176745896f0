package main

import "github.com/charmbracelet/lipgloss"

// Centralized style definitions for the monitor and the projects commands.
var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6")) // cyan
	labelStyle = lipgloss.NewStyle().Bold(true)

	connectedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("2")) // green
	disconnectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1")) // red
	playingStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("3"))

	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8")) // gray
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))

	projectNameStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("4")) // blue
)
