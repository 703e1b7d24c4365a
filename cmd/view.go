package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"iwtui/goiwd"
)

func (m appModel) View() string {
	availableWidth := m.width - appStyle.GetHorizontalFrameSize()

	header := m.headerView(availableWidth)
	k := m.keys
	k.active = m.screen
	footer := m.footerView(availableWidth, m.help.View(k))

	var content string
	switch m.screen {
	case screenNetworks:
		content = m.networkList.View()
	case screenKnown:
		if m.busy {
			content = fmt.Sprintf("%s Loading known networks...", m.spinner.View())
		} else {
			content = m.knownList.View()
		}
	case screenDevices:
		content = m.deviceList.View()
	case screenPassphrase:
		content = m.passphraseView()
	case screenConnecting:
		content = fmt.Sprintf("\n%s %s", m.spinner.View(), m.notice)
	case screenResult:
		content = "\n" + m.notice + "\n\n" + labelStyle.Render("Press enter to continue")
	case screenLinkInfo:
		content = m.linkView.View()
	case screenConfirmDisconnect:
		content = m.confirmView(fmt.Sprintf("Disconnect from %s?", m.svc.Status().SSID))
	case screenConfirmForget:
		content = m.confirmView(fmt.Sprintf("Forget network %s? Its stored credentials will be removed.", m.selectedKnown))
	case screenConfirmOpen:
		content = m.confirmView(fmt.Sprintf("%s is an open network. Traffic will not be encrypted. Connect anyway?", m.selected.SSID))
	}

	if m.listWidth > 0 && isListScreen(m.screen) {
		content = lipgloss.NewStyle().Width(m.listWidth).Render(content)
	}

	return appStyle.Render(lipgloss.JoinVertical(lipgloss.Left, header, content, footer))
}

func isListScreen(v screen) bool {
	return v == screenNetworks || v == screenKnown || v == screenDevices
}

func (m appModel) headerView(width int) string {
	title := headerTitleStyle.Render(appName)
	status := renderStatus(m.svc.Status())
	if m.scanning {
		status += "  " + m.spinner.View() + labelStyle.Render(" scanning")
	}
	if width <= 0 {
		return lipgloss.JoinVertical(lipgloss.Left, title, status)
	}
	return lipgloss.JoinVertical(lipgloss.Left, title, lipgloss.NewStyle().MaxWidth(width).Render(status))
}

func (m appModel) footerView(width int, helpView string) string {
	var parts []string
	if m.notice != "" && m.screen != screenConnecting && m.screen != screenResult {
		parts = append(parts, m.notice)
	}
	parts = append(parts, helpBarStyle.MarginTop(1).Render(helpView))
	footer := lipgloss.JoinVertical(lipgloss.Left, parts...)
	if width > 0 {
		footer = lipgloss.NewStyle().MaxWidth(width).Render(footer)
	}
	return footer
}

func (m appModel) passphraseView() string {
	security := m.selected.Security.String()
	prompt := fmt.Sprintf("Enter password for %s (%s)", m.selected.SSID, security)
	return lipgloss.JoinVertical(lipgloss.Left,
		passphrasePromptStyle.Render(prompt),
		passphraseBoxStyle.Render(m.passphrase.View()),
	)
}

func (m appModel) confirmView(question string) string {
	return "\n" + question + "\n\n" + labelStyle.Render("enter: confirm   esc: cancel")
}

func renderStatus(state goiwd.ConnectionState) string {
	switch state.Phase {
	case goiwd.PhaseConnected:
		return statusConnectedStyle.Render("● " + state.String())
	case goiwd.PhaseConnecting:
		return statusConnectingStyle.Render(fmt.Sprintf("◌ connecting to %s on %s", state.SSID, state.Device))
	default:
		return statusDisconnectedStyle.Render("○ " + state.String())
	}
}

// formatLinkInfo renders the link details shown in the info view.
func formatLinkInfo(state goiwd.ConnectionState, info *goiwd.LinkInfo) string {
	var b strings.Builder
	row := func(label, value string) {
		if value == "" {
			value = "-"
		}
		fmt.Fprintf(&b, "%s %s\n", labelStyle.Render(fmt.Sprintf("%-12s", label+":")), value)
	}

	ssid := info.SSID
	if ssid == "" {
		ssid = state.SSID
	}

	b.WriteString(lipgloss.NewStyle().Bold(true).Foreground(colorPrimary).Render("Connection Details") + "\n\n")
	row("Network", ssid)
	row("Interface", info.Interface)
	row("MAC", info.HardwareAddr)
	row("BSSID", info.BSSID)
	if info.FrequencyMHz > 0 {
		row("Frequency", fmt.Sprintf("%d MHz", info.FrequencyMHz))
	} else {
		row("Frequency", "")
	}
	if info.SignalDBm != 0 {
		row("Signal", fmt.Sprintf("%d dBm", info.SignalDBm))
	} else {
		row("Signal", "")
	}
	if info.RxBitrate > 0 {
		row("RX rate", fmt.Sprintf("%.1f Mbit/s", float64(info.RxBitrate)/1e6))
	}
	if info.TxBitrate > 0 {
		row("TX rate", fmt.Sprintf("%.1f Mbit/s", float64(info.TxBitrate)/1e6))
	}
	row("IPv4", info.NetV4)
	return b.String()
}
