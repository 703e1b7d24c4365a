package main

import (
	"time"

	"github.com/charmbracelet/lipgloss"
)

const (
	appName = "iwd Wireless Manager"

	maxHelpWidth   = 80
	helpWidthRatio = 0.8
	maxListWidth   = 96
	minListWidth   = 40
	listWidthRatio = 0.85

	maxPassphraseLen   = 63 // WPA passphrase limit
	maxPassphraseWidth = 60
	minPassphraseWidth = 40

	noticeTimeout    = 4 * time.Second
	connectTimeout   = 30 * time.Second
	operationTimeout = 20 * time.Second
	rescanInterval   = 20 * time.Second
)

// Link quality bands, percent.
const (
	qualityHigh = 70
	qualityFair = 40
)

// ANSI palette indexes, so the UI follows the terminal theme.
var (
	colorPrimary = lipgloss.Color("5")
	colorHeading = lipgloss.Color("4")
	colorAccent  = lipgloss.Color("6")
	colorGood    = lipgloss.Color("2")
	colorBad     = lipgloss.Color("1")
	colorWarn    = lipgloss.Color("3")
	colorMuted   = lipgloss.Color("8")
	colorText    = lipgloss.Color("7")
)

func fg(c lipgloss.Color) lipgloss.Style { return lipgloss.NewStyle().Foreground(c) }

var (
	appStyle         = lipgloss.NewStyle().Margin(1, 1)
	headerTitleStyle = fg(colorPrimary).Bold(true).Padding(0, 1).MarginBottom(1)
	labelStyle       = fg(colorMuted)
	helpBarStyle     = fg(colorMuted)

	listHeadingStyle   = fg(colorHeading).Bold(true).Padding(0, 1)
	rowStyle           = fg(colorText).PaddingLeft(2)
	rowActiveStyle     = fg(colorPrimary).Bold(true).PaddingLeft(1)
	rowDescStyle       = fg(colorMuted).PaddingLeft(2)
	rowActiveDescStyle = fg(colorPrimary).PaddingLeft(1)
	emptyListStyle     = fg(colorMuted).Faint(true).Margin(1, 0).Align(lipgloss.Center)

	noticeBaseStyle = lipgloss.NewStyle().MarginTop(1)
	errorStyle      = noticeBaseStyle.Foreground(colorBad).Bold(true)
	successStyle    = noticeBaseStyle.Foreground(colorGood).Bold(true)
	warningStyle    = noticeBaseStyle.Foreground(colorWarn)
	infoStyle       = noticeBaseStyle.Foreground(colorMuted)
	connectingStyle = fg(colorAccent)

	infoBoxStyle          = lipgloss.NewStyle().Border(lipgloss.RoundedBorder(), true).BorderForeground(colorAccent).Padding(1, 2).MarginTop(1)
	passphrasePromptStyle = fg(colorMuted)
	passphraseBoxStyle    = lipgloss.NewStyle().Border(lipgloss.NormalBorder(), true).BorderForeground(colorMuted).Padding(1).MarginTop(1)

	statusConnectedStyle    = fg(colorGood)
	statusConnectingStyle   = fg(colorAccent)
	statusDisconnectedStyle = fg(colorBad)

	qualityHighStyle = fg(colorGood)
	qualityFairStyle = fg(colorWarn)
	qualityLowStyle  = fg(colorBad)
)

// qualityStyle picks the colour band for a 0-100 link quality.
func qualityStyle(q int) lipgloss.Style {
	switch {
	case q >= qualityHigh:
		return qualityHighStyle
	case q >= qualityFair:
		return qualityFairStyle
	}
	return qualityLowStyle
}
