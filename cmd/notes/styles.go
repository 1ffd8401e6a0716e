package main

import "github.com/charmbracelet/lipgloss"

var (
	colorCyan = lipgloss.Color("#00FFFF")
	colorGray = lipgloss.Color("#666666")
	colorRed  = lipgloss.Color("#FF0000")
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorCyan)

	labelStyle = lipgloss.NewStyle().
			Foreground(colorCyan).
			Width(20)

	dimStyle = lipgloss.NewStyle().
			Foreground(colorGray)

	errorStyle = lipgloss.NewStyle().
			Foreground(colorRed).
			Bold(true)

	transcriptStyle = lipgloss.NewStyle().
			PaddingLeft(2).
			Width(88)
)
