package main

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"iwtui/goiwd"
)

func (m appModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.layout()

	case spinner.TickMsg:
		if m.busy || m.scanning {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}

	case statusChangedMsg:
		// Redraw only; the header reads Status() directly.
		m.log.Debugf("Header status now %s", msg.state)

	case clearNoticeMsg:
		if isListScreen(m.screen) {
			m.clearNotice()
		}

	case rescanTickMsg:
		if m.screen == screenNetworks && !m.busy && !m.scanning {
			m.scanning = true
			cmds = append(cmds, m.scan(), m.spinner.Tick)
		}
		cmds = append(cmds, rescanTick())

	case networksLoadedMsg:
		cmds = append(cmds, m.onNetworks(msg.outcome))

	case devicesLoadedMsg:
		m.busy = false
		if !msg.outcome.OK {
			m.flash(msg.outcome.Message, errorStyle)
			cmds = append(cmds, clearNoticeLater())
			break
		}
		cmds = append(cmds, m.setDevices(m.svc.Devices()))

	case knownLoadedMsg:
		if m.screen == screenKnown {
			m.busy = false
		}
		if !msg.outcome.OK {
			m.log.Warnf("Loading known networks: %s", msg.outcome.Message)
			if m.screen == screenKnown {
				m.flash(msg.outcome.Message, errorStyle)
			}
			break
		}
		// Known marks on the scan results change with the known list.
		cmds = append(cmds, m.setKnown(m.svc.KnownNetworks()), m.setNetworks(m.svc.Networks()))

	case connectResultMsg:
		cmds = append(cmds, m.onConnect(msg))

	case disconnectResultMsg:
		m.busy = false
		m.flashOutcome(msg.outcome)
		m.show(screenNetworks)
		m.scanning = true
		cmds = append(cmds, m.scan(), m.spinner.Tick, clearNoticeLater())

	case powerResultMsg:
		m.flashOutcome(msg.outcome)
		// SetPower leaves the store alone, so reload to show the new state.
		m.busy = true
		cmds = append(cmds, m.loadDevices(), m.spinner.Tick, clearNoticeLater())

	case forgetResultMsg:
		m.busy = false
		m.flashOutcome(msg.outcome)
		m.show(m.returnTo)
		cmds = append(cmds, m.setKnown(m.svc.KnownNetworks()), m.setNetworks(m.svc.Networks()), clearNoticeLater())

	case linkInfoMsg:
		m.busy = false
		if msg.err != nil {
			m.linkView.SetContent(errorStyle.Render(fmt.Sprintf("Could not read link details: %v", msg.err)))
			break
		}
		m.linkView.SetContent(formatLinkInfo(m.svc.Status(), msg.info))

	case tea.KeyMsg:
		cmds = append(cmds, m.handleKey(msg))

	default:
		// Filter matching and status timers are internal list messages.
		switch m.screen {
		case screenNetworks:
			var cmd tea.Cmd
			m.networkList, cmd = m.networkList.Update(msg)
			cmds = append(cmds, cmd)
		case screenKnown:
			var cmd tea.Cmd
			m.knownList, cmd = m.knownList.Update(msg)
			cmds = append(cmds, cmd)
		}
	}

	return m, tea.Batch(cmds...)
}

func (m *appModel) flashOutcome(out goiwd.Outcome) {
	if out.OK {
		m.flash(out.Message, successStyle)
		return
	}
	m.flash(out.Message, errorStyle)
}

func (m *appModel) onNetworks(out goiwd.Outcome) tea.Cmd {
	m.scanning, m.busy = false, false
	if !out.OK {
		m.log.Warnf("Scan failed: %s", out.Message)
		if len(m.networkList.Items()) == 0 {
			m.networkList.Title = "Scan failed"
		}
		if m.screen != screenNetworks {
			return nil
		}
		m.flash(out.Message, errorStyle)
		return clearNoticeLater()
	}
	return tea.Batch(m.setNetworks(m.svc.Networks()), m.setDevices(m.svc.Devices()), m.saveSnapshot())
}

func (m *appModel) onConnect(msg connectResultMsg) tea.Cmd {
	m.busy = false
	out := msg.outcome

	// iwd rejected the stored credentials: ask for a passphrase instead.
	if !out.OK && msg.storedCredentials && out.Failure == goiwd.ExecutionFailure && m.selected.SSID == msg.ssid {
		m.log.Infof("Stored credentials for '%s' failed, asking for a passphrase", msg.ssid)
		m.flash(fmt.Sprintf("Stored credentials for %s were rejected. Enter the passphrase:", msg.ssid), warningStyle)
		return m.askPassphrase()
	}

	m.lastConnectOK = out.OK
	if out.OK {
		m.flash(out.Message, successStyle)
	} else {
		m.flash(fmt.Sprintf("%s (%s)", out.Message, out.Failure), errorStyle)
	}
	m.show(screenResult)
	m.scanning = true
	return tea.Batch(m.scan(), m.loadKnown(), m.spinner.Tick)
}

func (m *appModel) askPassphrase() tea.Cmd {
	m.show(screenPassphrase)
	m.passphrase.Reset()
	return m.passphrase.Focus()
}

func (m *appModel) startConnect(passphrase *string, stored bool) tea.Cmd {
	m.busy = true
	m.show(screenConnecting)
	m.flash(fmt.Sprintf("Connecting to %s...", m.selected.SSID), connectingStyle)
	return tea.Batch(m.connect(m.selected.SSID, passphrase, stored), m.spinner.Tick)
}

// filtering reports whether keystrokes belong to a text field.
func (m appModel) filtering() bool {
	switch m.screen {
	case screenPassphrase:
		return true
	case screenNetworks:
		return m.networkList.FilterState() == list.Filtering
	case screenKnown:
		return m.knownList.FilterState() == list.Filtering
	}
	return false
}

func (m *appModel) handleKey(msg tea.KeyMsg) tea.Cmd {
	if msg.String() == "ctrl+c" {
		return tea.Quit
	}
	if !m.filtering() {
		switch {
		case key.Matches(msg, m.keys.Quit):
			return tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
			m.layout()
			return nil
		}
	}

	switch m.screen {
	case screenNetworks:
		return m.networksKey(msg)
	case screenKnown:
		return m.knownKey(msg)
	case screenDevices:
		return m.devicesKey(msg)
	case screenPassphrase:
		return m.passphraseKey(msg)
	case screenResult:
		if key.Matches(msg, m.keys.Select, m.keys.Back) {
			m.show(screenNetworks)
			m.clearNotice()
		}
	case screenLinkInfo:
		if key.Matches(msg, m.keys.Back) {
			m.show(screenNetworks)
			return nil
		}
		var cmd tea.Cmd
		m.linkView, cmd = m.linkView.Update(msg)
		return cmd
	case screenConfirmDisconnect, screenConfirmForget, screenConfirmOpen:
		return m.confirmKey(msg)
	}
	return nil
}

func (m *appModel) networksKey(msg tea.KeyMsg) tea.Cmd {
	if m.filtering() {
		var cmd tea.Cmd
		m.networkList, cmd = m.networkList.Update(msg)
		return cmd
	}

	switch {
	case key.Matches(msg, m.keys.Select):
		item, ok := m.networkList.SelectedItem().(networkItem)
		if !ok {
			return nil
		}
		m.selected = item.Network
		return m.choose(item)

	case key.Matches(msg, m.keys.Rescan):
		if m.scanning {
			return nil
		}
		m.scanning = true
		m.clearNotice()
		return tea.Batch(m.scan(), m.loadKnown(), m.spinner.Tick)

	case key.Matches(msg, m.keys.Devices):
		m.show(screenDevices)
		m.busy = true
		m.clearNotice()
		return tea.Batch(m.loadDevices(), m.spinner.Tick)

	case key.Matches(msg, m.keys.Known):
		m.show(screenKnown)
		m.busy = true
		m.clearNotice()
		return tea.Batch(m.loadKnown(), m.spinner.Tick)

	case key.Matches(msg, m.keys.Disconnect):
		status := m.svc.Status()
		if status.Phase != goiwd.PhaseConnected {
			m.flash("Not connected", infoStyle)
			return clearNoticeLater()
		}
		m.show(screenConfirmDisconnect)
		return nil

	case key.Matches(msg, m.keys.Forget):
		item, ok := m.networkList.SelectedItem().(networkItem)
		if !ok {
			return nil
		}
		if !item.Known {
			m.flash(fmt.Sprintf("%s is not a known network", item.SSID), infoStyle)
			return clearNoticeLater()
		}
		m.selectedKnown, m.returnTo = item.SSID, screenNetworks
		m.show(screenConfirmForget)
		return nil

	case key.Matches(msg, m.keys.Details):
		status := m.svc.Status()
		if status.Phase != goiwd.PhaseConnected {
			m.flash("No active connection", infoStyle)
			return clearNoticeLater()
		}
		m.show(screenLinkInfo)
		m.busy = true
		m.linkView.SetContent("Reading link details...")
		m.linkView.GotoTop()
		return tea.Batch(loadLinkInfo(status.Device), m.spinner.Tick)
	}

	var cmd tea.Cmd
	m.networkList, cmd = m.networkList.Update(msg)
	return cmd
}

// choose starts the right flow for the selected network.
func (m *appModel) choose(n networkItem) tea.Cmd {
	m.clearNotice()
	m.log.Infof("Selected '%s' (known=%t, open=%t, connected=%t)", n.SSID, n.Known, n.open(), n.Connected)

	switch {
	case n.Connected:
		m.show(screenConfirmDisconnect)
		return nil
	case n.Known:
		return m.startConnect(nil, true)
	case n.open():
		m.show(screenConfirmOpen)
		return nil
	}
	return m.askPassphrase()
}

func (m *appModel) knownKey(msg tea.KeyMsg) tea.Cmd {
	if m.busy {
		return nil
	}
	if !m.filtering() {
		switch {
		case key.Matches(msg, m.keys.Back):
			m.show(screenNetworks)
			m.clearNotice()
			return nil
		case key.Matches(msg, m.keys.Forget):
			if item, ok := m.knownList.SelectedItem().(knownItem); ok {
				m.selectedKnown, m.returnTo = item.Name, screenKnown
				m.show(screenConfirmForget)
			}
			return nil
		}
	}
	var cmd tea.Cmd
	m.knownList, cmd = m.knownList.Update(msg)
	return cmd
}

func (m *appModel) devicesKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.Back):
		m.show(screenNetworks)
		m.clearNotice()
		return nil

	case key.Matches(msg, m.keys.Rescan):
		m.busy = true
		return tea.Batch(m.loadDevices(), m.spinner.Tick)

	case key.Matches(msg, m.keys.Select):
		item, ok := m.deviceList.SelectedItem().(deviceItem)
		if !ok || m.busy {
			return nil
		}
		m.busy = true
		m.flash(fmt.Sprintf("Switching %s %s...", item.Name, onOff(!item.Powered)), infoStyle)
		return tea.Batch(m.togglePower(item.Name), m.spinner.Tick)
	}

	var cmd tea.Cmd
	m.deviceList, cmd = m.deviceList.Update(msg)
	return cmd
}

func (m *appModel) passphraseKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.Back):
		m.passphrase.Blur()
		m.show(screenNetworks)
		m.clearNotice()
		return nil

	case key.Matches(msg, m.keys.Select):
		pass := m.passphrase.Value()
		if pass == "" {
			m.flash("Passphrase cannot be empty", warningStyle)
			return nil
		}
		m.passphrase.Blur()
		return m.startConnect(&pass, false)
	}

	var cmd tea.Cmd
	m.passphrase, cmd = m.passphrase.Update(msg)
	return cmd
}

func (m *appModel) confirmKey(msg tea.KeyMsg) tea.Cmd {
	if key.Matches(msg, m.keys.Back) {
		if m.screen == screenConfirmForget {
			m.show(m.returnTo)
		} else {
			m.show(screenNetworks)
		}
		m.clearNotice()
		return nil
	}
	if !key.Matches(msg, m.keys.Select) {
		return nil
	}

	switch m.screen {
	case screenConfirmDisconnect:
		status := m.svc.Status()
		if status.Phase != goiwd.PhaseConnected {
			m.show(screenNetworks)
			m.flash("Nothing to disconnect", infoStyle)
			return clearNoticeLater()
		}
		m.busy = true
		m.flash(fmt.Sprintf("Disconnecting from %s...", status.SSID), infoStyle)
		return tea.Batch(m.disconnect(status.Device), m.spinner.Tick)

	case screenConfirmForget:
		m.busy = true
		m.flash(fmt.Sprintf("Forgetting %s...", m.selectedKnown), infoStyle)
		return tea.Batch(m.forget(m.selectedKnown), m.spinner.Tick)

	case screenConfirmOpen:
		return m.startConnect(nil, false)
	}
	return nil
}
