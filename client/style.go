package client

import "github.com/charmbracelet/lipgloss"

var (
	accent  = lipgloss.Color("#FABD2F")
	muted   = lipgloss.Color("#888888")
	frame   = lipgloss.Color("#3C3836")
	ownText = lipgloss.Color("#83A598")

	statusBarStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFF7DB")).
			Background(frame).
			Padding(0, 1)

	chatHeaderStyle = lipgloss.NewStyle().
			Foreground(accent).
			Bold(true).
			Padding(0, 1).
			MarginBottom(1)

	// height bounds visibleMessages
	messagesStyle = lipgloss.NewStyle().
			Height(20).
			Padding(1, 1, 0, 1)

	myMessageStyle = lipgloss.NewStyle().
			Foreground(ownText).
			BorderLeft(true).
			BorderForeground(frame).
			Padding(0, 1)

	otherMessageStyle = lipgloss.NewStyle().
				Foreground(accent).
				Padding(0, 1)

	userListStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#458588")).
			Bold(true)

	userListContainerStyle = lipgloss.NewStyle().
				Width(40).
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("#458588")).
				Padding(0, 1)

	helpStyle = lipgloss.NewStyle().
			Foreground(muted).
			Padding(0, 1).
			MarginTop(1)

	appStyle = lipgloss.NewStyle().
			Margin(1, 2)
)
