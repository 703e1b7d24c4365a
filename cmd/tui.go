package main

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sirupsen/logrus"

	"iwtui/cache"
	"iwtui/goiwd"
)

type screen int

const (
	screenNetworks screen = iota
	screenPassphrase
	screenConnecting
	screenResult
	screenLinkInfo
	screenConfirmDisconnect
	screenConfirmForget
	screenConfirmOpen
	screenKnown
	screenDevices
)

func (s screen) String() string {
	switch s {
	case screenNetworks:
		return "networks"
	case screenPassphrase:
		return "passphrase"
	case screenConnecting:
		return "connecting"
	case screenResult:
		return "result"
	case screenLinkInfo:
		return "link-info"
	case screenConfirmDisconnect:
		return "confirm-disconnect"
	case screenConfirmForget:
		return "confirm-forget"
	case screenConfirmOpen:
		return "confirm-open"
	case screenKnown:
		return "known"
	case screenDevices:
		return "devices"
	}
	return fmt.Sprintf("screen(%d)", int(s))
}

// Results of the service calls made from tea.Cmds.
type (
	networksLoadedMsg   struct{ outcome goiwd.Outcome }
	devicesLoadedMsg    struct{ outcome goiwd.Outcome }
	knownLoadedMsg      struct{ outcome goiwd.Outcome }
	disconnectResultMsg struct{ outcome goiwd.Outcome }

	connectResultMsg struct {
		ssid    string
		outcome goiwd.Outcome
		// storedCredentials is set when no passphrase was supplied for a known network.
		storedCredentials bool
	}
	powerResultMsg struct {
		device  string
		outcome goiwd.Outcome
	}
	forgetResultMsg struct {
		ssid    string
		outcome goiwd.Outcome
	}
	linkInfoMsg struct {
		info *goiwd.LinkInfo
		err  error
	}

	statusChangedMsg struct{ state goiwd.ConnectionState }
	clearNoticeMsg   struct{}
	rescanTickMsg    struct{}
)

type appModel struct {
	svc   *goiwd.Service
	cache *cache.Cache
	log   logrus.FieldLogger

	screen   screen
	returnTo screen

	networkList list.Model
	knownList   list.Model
	deviceList  list.Model
	passphrase  textinput.Model
	spinner     spinner.Model
	linkView    viewport.Model
	help        help.Model
	keys        keyMap

	selected      goiwd.Network
	selectedKnown string
	notice        string
	lastConnectOK bool

	busy     bool
	scanning bool

	width, height int
	listWidth     int
}

func newList(title, empty string) list.Model {
	l := list.New(nil, rowDelegate{}, 0, 0)
	l.Title = title
	l.Styles.Title = listHeadingStyle
	l.Styles.NoItems = emptyListStyle.SetString(empty)
	l.Styles.FilterPrompt = fg(colorPrimary)
	l.Styles.FilterCursor = fg(colorPrimary)
	l.SetShowHelp(false)
	l.SetShowStatusBar(false)
	l.DisableQuitKeybindings()
	return l
}

func initialModel(svc *goiwd.Service, c *cache.Cache, log logrus.FieldLogger) appModel {
	m := appModel{
		svc:         svc,
		cache:       c,
		log:         log,
		screen:      screenNetworks,
		networkList: newList("Scanning...", "No networks found. Press r to rescan or v to check devices."),
		knownList:   newList("Known Networks", "No known networks."),
		deviceList:  newList("Devices", "No wireless devices found."),
		passphrase:  textinput.New(),
		spinner:     spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(connectingStyle)),
		linkView:    viewport.New(0, 0),
		help:        help.New(),
		keys:        defaultKeys,
		busy:        true,
		scanning:    true,
	}

	m.networkList.SetShowStatusBar(true)
	m.networkList.SetStatusBarItemName("network", "networks")
	m.deviceList.SetFilteringEnabled(false)

	m.passphrase.Prompt = passphrasePromptStyle.Render("Passphrase: ")
	m.passphrase.Placeholder = "8 to 63 characters"
	m.passphrase.EchoMode = textinput.EchoPassword
	m.passphrase.EchoCharacter = '•'
	m.passphrase.CharLimit = maxPassphraseLen
	m.passphrase.Cursor.Style = fg(colorAccent)

	m.linkView.Style = infoBoxStyle

	muted := fg(colorMuted)
	m.help.Styles.ShortKey, m.help.Styles.ShortDesc = muted, muted
	m.help.Styles.FullKey, m.help.Styles.FullDesc = muted, muted
	m.help.Styles.ShortSeparator, m.help.Styles.FullSeparator = muted, muted
	m.help.Styles.Ellipsis = muted

	// A cached snapshot fills the lists until the first refresh lands.
	if c != nil {
		m.restoreSnapshot(c)
	}
	return m
}

func (m *appModel) restoreSnapshot(c *cache.Cache) {
	networks, err := c.Networks()
	switch {
	case err != nil:
		m.log.Warnf("Failed to read network cache: %v", err)
	case len(networks) > 0:
		m.setNetworks(networks)
		m.log.Debugf("Showing %d cached networks", len(networks))
	}

	devices, err := c.Devices()
	switch {
	case err != nil:
		m.log.Warnf("Failed to read device cache: %v", err)
	case len(devices) > 0:
		m.setDevices(devices)
		m.log.Debugf("Showing %d cached devices", len(devices))
	}
}

func (m appModel) Init() tea.Cmd {
	return tea.Batch(m.scan(), m.loadKnown(), m.spinner.Tick, rescanTick())
}

// call runs fn off the UI goroutine under its own deadline.
func call(timeout time.Duration, fn func(ctx context.Context) tea.Msg) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return fn(ctx)
	}
}

// scan refreshes devices first so the scan can pick a station.
func (m appModel) scan() tea.Cmd {
	svc := m.svc
	return call(operationTimeout, func(ctx context.Context) tea.Msg {
		if out := svc.RefreshDevices(ctx); !out.OK {
			return networksLoadedMsg{out}
		}
		return networksLoadedMsg{svc.Scan(ctx, "")}
	})
}

func (m appModel) loadDevices() tea.Cmd {
	svc := m.svc
	return call(operationTimeout, func(ctx context.Context) tea.Msg {
		return devicesLoadedMsg{svc.RefreshDevices(ctx)}
	})
}

func (m appModel) loadKnown() tea.Cmd {
	svc := m.svc
	return call(operationTimeout, func(ctx context.Context) tea.Msg {
		return knownLoadedMsg{svc.RefreshKnownNetworks(ctx)}
	})
}

func (m appModel) connect(ssid string, passphrase *string, stored bool) tea.Cmd {
	svc := m.svc
	return call(connectTimeout, func(ctx context.Context) tea.Msg {
		return connectResultMsg{ssid: ssid, outcome: svc.Connect(ctx, "", ssid, passphrase), storedCredentials: stored}
	})
}

func (m appModel) disconnect(device string) tea.Cmd {
	svc := m.svc
	return call(operationTimeout, func(ctx context.Context) tea.Msg {
		return disconnectResultMsg{svc.Disconnect(ctx, device)}
	})
}

func (m appModel) togglePower(device string) tea.Cmd {
	svc := m.svc
	return call(operationTimeout, func(ctx context.Context) tea.Msg {
		return powerResultMsg{device: device, outcome: svc.TogglePower(ctx, device)}
	})
}

func (m appModel) forget(ssid string) tea.Cmd {
	svc := m.svc
	return call(operationTimeout, func(ctx context.Context) tea.Msg {
		return forgetResultMsg{ssid: ssid, outcome: svc.Forget(ctx, ssid)}
	})
}

func loadLinkInfo(device string) tea.Cmd {
	return func() tea.Msg {
		info, err := goiwd.GetLinkInfo(device)
		return linkInfoMsg{info: info, err: err}
	}
}

func (m appModel) saveSnapshot() tea.Cmd {
	if m.cache == nil {
		return nil
	}
	c, log := m.cache, m.log
	networks, devices := m.svc.Networks(), m.svc.Devices()
	return func() tea.Msg {
		if err := c.SaveNetworks(networks); err != nil {
			log.Warnf("Failed to cache networks: %v", err)
		}
		if err := c.SaveDevices(devices); err != nil {
			log.Warnf("Failed to cache devices: %v", err)
		}
		return nil
	}
}

func clearNoticeLater() tea.Cmd {
	return tea.Tick(noticeTimeout, func(time.Time) tea.Msg { return clearNoticeMsg{} })
}

func rescanTick() tea.Cmd {
	return tea.Tick(rescanInterval, func(time.Time) tea.Msg { return rescanTickMsg{} })
}

func (m *appModel) flash(msg string, style lipgloss.Style) { m.notice = style.Render(msg) }

func (m *appModel) clearNotice() { m.notice = "" }

func (m *appModel) show(s screen) {
	m.screen = s
	m.keys.active = s
}

func (m *appModel) setNetworks(networks []goiwd.Network) tea.Cmd {
	items := networkItems(networks)
	known := 0
	for _, item := range items {
		if item.(networkItem).Known {
			known++
		}
	}
	m.networkList.Title = fmt.Sprintf("Networks: %d known, %d other", known, len(items)-known)
	return m.networkList.SetItems(items)
}

func (m *appModel) setDevices(devices []goiwd.Device) tea.Cmd {
	items := make([]list.Item, 0, len(devices))
	for _, d := range devices {
		items = append(items, deviceItem{d})
	}
	m.deviceList.Title = fmt.Sprintf("Devices (%d)", len(items))
	return m.deviceList.SetItems(items)
}

func (m *appModel) setKnown(known []goiwd.KnownNetwork) tea.Cmd {
	items := make([]list.Item, 0, len(known))
	for _, k := range known {
		items = append(items, knownItem{k})
	}
	m.knownList.Title = fmt.Sprintf("Known Networks (%d)", len(items))
	return m.knownList.SetItems(items)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// layout sizes every component from the terminal size.
func (m *appModel) layout() {
	w := m.width - appStyle.GetHorizontalFrameSize()
	h := m.height - appStyle.GetVerticalFrameSize()

	m.help.Width = clamp(int(float64(w)*helpWidthRatio), 20, maxHelpWidth)

	content := h - lipgloss.Height(m.headerView(w)) - lipgloss.Height(m.footerView(w, m.help.View(m.keys)))
	if content < 0 {
		content = 0
	}

	m.listWidth = clamp(int(float64(w)*listWidthRatio), minListWidth, maxListWidth)
	for _, l := range []*list.Model{&m.networkList, &m.knownList, &m.deviceList} {
		l.SetSize(m.listWidth, content)
	}

	m.linkView.Width = w - infoBoxStyle.GetHorizontalFrameSize()
	m.linkView.Height = clamp(content-infoBoxStyle.GetVerticalFrameSize(), 0, content)

	boxWidth := clamp(w*2/3, minPassphraseWidth, maxPassphraseWidth)
	m.passphrase.Width = boxWidth - lipgloss.Width(m.passphrase.Prompt) - passphraseBoxStyle.GetHorizontalFrameSize()
}
