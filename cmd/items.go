package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"iwtui/goiwd"
)

// row is what rowDelegate knows how to draw.
type row interface {
	list.Item
	Heading() string
	Detail() string
}

// rowDelegate draws two-line rows with a cursor mark on the selected one.
type rowDelegate struct{}

func (rowDelegate) Height() int                         { return 2 }
func (rowDelegate) Spacing() int                        { return 1 }
func (rowDelegate) Update(tea.Msg, *list.Model) tea.Cmd { return nil }

func (rowDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	r, ok := item.(row)
	if !ok {
		return
	}
	heading, detail := rowStyle, rowDescStyle
	mark := "  "
	if index == m.Index() {
		heading, detail = rowActiveStyle, rowActiveDescStyle
		mark = "▸ "
	}
	fmt.Fprint(w, heading.Render(mark+r.Heading())+"\n"+detail.Render("  "+r.Detail()))
}

// signalPercent maps an absolute dBm reading onto 0-100 link quality.
// -50 dBm and better is 100, -100 dBm and worse is 0.
func signalPercent(strength int) int {
	q := 2 * (100 - strength)
	switch {
	case q < 0:
		return 0
	case q > 100:
		return 100
	}
	return q
}

func signalBars(q int) string {
	const bars = "▂▄▆█"
	lit := 0
	switch {
	case q >= qualityHigh:
		lit = 4
	case q >= qualityFair:
		lit = 3
	case q > 0:
		lit = 2
	}
	runes := []rune(bars)
	return qualityStyle(q).Render(string(runes[:lit])) + labelStyle.Render(string(runes[lit:]))
}

type networkItem struct {
	goiwd.Network
}

func (n networkItem) open() bool { return n.Security == goiwd.SecurityOpen }

func (n networkItem) Heading() string {
	h := n.SSID
	switch {
	case n.Connected:
		h += fg(colorGood).Render(" ✔")
	case n.Known:
		h += fg(colorAccent).Render(" ★")
	}
	if n.open() {
		h += fg(colorWarn).Render(" 🔓")
	}
	return h
}

func (n networkItem) Detail() string {
	signal := labelStyle.Render("unknown")
	if !n.SignalUnknown {
		q := signalPercent(n.SignalStrength)
		signal = signalBars(q) + " " + qualityStyle(q).Render(fmt.Sprintf("%d%% (-%d dBm)", q, n.SignalStrength))
	}
	return fmt.Sprintf("%s %s%s%s %s",
		labelStyle.Render("Signal:"), signal,
		labelStyle.Render(" │ "),
		labelStyle.Render("Security:"), labelStyle.Render(n.Security.String()))
}

func (n networkItem) FilterValue() string { return n.SSID }

type knownItem struct {
	goiwd.KnownNetwork
}

func (k knownItem) Heading() string     { return k.Name }
func (k knownItem) Detail() string      { return labelStyle.Render("Security: " + k.Security.String()) }
func (k knownItem) FilterValue() string { return k.Name }

type deviceItem struct {
	goiwd.Device
}

func (d deviceItem) Heading() string {
	h := fmt.Sprintf("%s (%s)", d.Name, d.Kind)
	if d.Connected {
		h += fg(colorGood).Render(" ✔")
	}
	return h
}

func (d deviceItem) Detail() string {
	power := statusDisconnectedStyle.Render("off")
	if d.Powered {
		power = statusConnectedStyle.Render("on")
	}
	detail := labelStyle.Render("Powered: ") + power
	if network, ok := d.NetworkName(); d.Connected && ok {
		detail += labelStyle.Render(" │ Network: ") + network
	}
	return detail
}

func (d deviceItem) FilterValue() string { return d.Name }

// stronger reports whether a has a better reading than b. Rows without a dBm
// reading lose to any measured row.
func stronger(a, b goiwd.Network) bool {
	if a.SignalUnknown != b.SignalUnknown {
		return b.SignalUnknown
	}
	return a.SignalStrength < b.SignalStrength
}

// networkItems collapses repeated SSIDs into the strongest reading and orders
// the result: connected, known, strongest signal, then name.
func networkItems(networks []goiwd.Network) []list.Item {
	best := make(map[string]int)
	var merged []goiwd.Network
	for _, n := range networks {
		i, seen := best[n.SSID]
		if !seen {
			best[n.SSID] = len(merged)
			merged = append(merged, n)
			continue
		}
		prev := merged[i]
		if !stronger(n, prev) {
			n.SignalStrength, n.SignalUnknown, n.Security = prev.SignalStrength, prev.SignalUnknown, prev.Security
		}
		n.Connected = n.Connected || prev.Connected
		n.Known = n.Known || prev.Known
		merged[i] = n
	}

	sort.SliceStable(merged, func(i, j int) bool {
		a, b := merged[i], merged[j]
		switch {
		case a.Connected != b.Connected:
			return a.Connected
		case a.Known != b.Known:
			return a.Known
		case stronger(a, b) || stronger(b, a):
			return stronger(a, b)
		}
		return strings.ToLower(a.SSID) < strings.ToLower(b.SSID)
	})

	items := make([]list.Item, len(merged))
	for i, n := range merged {
		items[i] = networkItem{n}
	}
	return items
}
