// iwtui/goiwd/status.go
package goiwd

// Project derives the connection summary from a device snapshot. The first
// connected device in list order wins.
func Project(devices []Device) ConnectionState {
	for _, d := range devices {
		if !d.Connected {
			continue
		}
		ssid, _ := d.NetworkName()
		return Connected(ssid, d.Name)
	}
	return Disconnected()
}
