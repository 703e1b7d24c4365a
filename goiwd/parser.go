// iwtui/goiwd/parser.go
package goiwd

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/x/ansi"
)

// --- Table layout of iwctl output ---
const (
	deviceHeaderLines  = 3
	networkHeaderLines = 4
	knownHeaderLines   = 4

	defaultSignalStrength = 50

	tokenStation   = "station"
	tokenPowerOn   = "on"
	tokenConnected = "connected"
	markerActive   = ">"
	signalSuffix   = "dBm"
)

// tableRows strips colour codes, drops the fixed header and returns the data
// rows that are neither blank nor separators.
func tableRows(text string, headerLines int) []string {
	lines := strings.Split(ansi.Strip(text), "\n")
	if len(lines) <= headerLines {
		return nil
	}
	var rows []string
	for _, line := range lines[headerLines:] {
		line = strings.TrimRight(line, "\r")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "-") {
			continue
		}
		rows = append(rows, line)
	}
	return rows
}

func hasToken(tokens []string, want string) bool {
	for _, t := range tokens {
		if t == want {
			return true
		}
	}
	return false
}

// ParseDevices parses `iwctl device list`. Rows with fewer than three tokens are skipped.
func ParseDevices(text string) []Device {
	devices := []Device{}
	for _, row := range tableRows(text, deviceHeaderLines) {
		parts := strings.Fields(row)
		if len(parts) < 3 {
			continue
		}
		dev := Device{
			Name:      parts[0],
			Powered:   hasToken(parts[1:], tokenPowerOn),
			Connected: hasToken(parts[1:], tokenConnected),
		}
		if parts[1] == tokenStation {
			dev.Kind = KindStation
		}
		if dev.Connected {
			for i := 1; i < len(parts)-1; i++ {
				if parts[i] == tokenConnected {
					network := parts[i+1]
					dev.Network = &network
					break
				}
			}
		}
		devices = append(devices, dev)
	}
	return devices
}

// ParseNetworks parses `iwctl station <dev> get-networks`.
func ParseNetworks(text string) []Network {
	networks := []Network{}
	for _, row := range tableRows(text, networkHeaderLines) {
		parts := strings.Fields(row)
		connected := strings.Contains(row, markerActive)
		if len(parts) > 0 && parts[0] == markerActive {
			parts = parts[1:]
		}
		if len(parts) == 0 {
			continue
		}
		strength, measured := parseSignal(parts)
		networks = append(networks, Network{
			SSID:           parts[0],
			Security:       parseSecurity(row, parts[1:]),
			SignalStrength: strength,
			SignalUnknown:  !measured,
			Connected:      connected,
		})
	}
	return networks
}

// ParseKnownNetworks parses `iwctl known-networks list`.
func ParseKnownNetworks(text string) []KnownNetwork {
	known := []KnownNetwork{}
	for _, row := range tableRows(text, knownHeaderLines) {
		parts := strings.Fields(row)
		if len(parts) == 0 {
			continue
		}
		known = append(known, KnownNetwork{Name: parts[0], Security: parseSecurity(row, parts[1:])})
	}
	return known
}

// parseSecurity also accepts iwctl's own lowercase security column (psk, 8021x),
// but only as whole tokens after the SSID.
func parseSecurity(row string, rest []string) Security {
	if strings.Contains(row, "PSK") || strings.Contains(row, "802.1X") {
		return SecuritySecured
	}
	if hasToken(rest, "psk") || hasToken(rest, "8021x") {
		return SecuritySecured
	}
	return SecurityOpen
}

// parseSignal reports whether a dBm token was found; iwctl's star rating is not one.
func parseSignal(parts []string) (int, bool) {
	for _, part := range parts {
		if !strings.Contains(part, signalSuffix) {
			continue
		}
		value, err := strconv.Atoi(strings.TrimSpace(strings.Replace(part, signalSuffix, "", -1)))
		if err != nil {
			return defaultSignalStrength, false
		}
		if value < 0 {
			value = -value
		}
		return value, true
	}
	return defaultSignalStrength, false
}

// oneLine collapses multi-line utility output into a single display line.
func oneLine(s string) string {
	return strings.Join(strings.Fields(ansi.Strip(s)), " ")
}
