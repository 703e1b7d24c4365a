// iwtui/goiwd/linkinfo.go
package goiwd

import (
	"fmt"
	"net"

	"github.com/mdlayher/wifi"
	"github.com/pkg/errors"
)

// LinkInfo is the live nl80211 view of an associated interface.
type LinkInfo struct {
	Interface    string `json:"interface"`
	HardwareAddr string `json:"mac,omitempty"`
	SSID         string `json:"ssid,omitempty"`
	BSSID        string `json:"bssid,omitempty"`
	FrequencyMHz int    `json:"frequencyMHz,omitempty"`
	SignalDBm    int    `json:"signalDBm,omitempty"`
	RxBitrate    int    `json:"rxBitrate,omitempty"`
	TxBitrate    int    `json:"txBitrate,omitempty"`
	IPv4         string `json:"ipV4,omitempty"`
	NetV4        string `json:"netV4,omitempty"`
}

// GetLinkInfo reads station details for the named interface straight from the kernel.
func GetLinkInfo(name string) (*LinkInfo, error) {
	client, err := wifi.New()
	if err != nil {
		return nil, errors.Wrap(err, "could not init a wifi interface client")
	}
	defer client.Close()

	ifaces, err := client.Interfaces()
	if err != nil {
		return nil, errors.Wrap(err, "could not list wifi interfaces")
	}

	var ifi *wifi.Interface
	for _, candidate := range ifaces {
		if candidate.Name == name {
			ifi = candidate
			break
		}
	}
	if ifi == nil {
		return nil, errors.Errorf("no wifi interface named %s", name)
	}

	info := &LinkInfo{Interface: ifi.Name, FrequencyMHz: ifi.Frequency}
	if ifi.HardwareAddr != nil {
		info.HardwareAddr = ifi.HardwareAddr.String()
	}

	if bss, err := client.BSS(ifi); err == nil {
		info.SSID = bss.SSID
		info.BSSID = bss.BSSID.String()
		if bss.Frequency != 0 {
			info.FrequencyMHz = bss.Frequency
		}
	}

	stations, err := client.StationInfo(ifi)
	if err != nil {
		return nil, errors.Wrapf(err, "could not read station info for %s", name)
	}
	if len(stations) > 0 {
		info.SignalDBm = stations[0].Signal
		info.RxBitrate = stations[0].ReceiveBitrate
		info.TxBitrate = stations[0].TransmitBitrate
	}

	info.IPv4, info.NetV4 = interfaceIPv4(name)
	return info, nil
}

func interfaceIPv4(name string) (string, string) {
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return "", ""
	}
	addrs, err := iface.Addrs()
	if err != nil {
		return "", ""
	}
	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok {
			continue
		}
		if ip4 := ipNet.IP.To4(); ip4 != nil {
			ones, _ := ipNet.Mask.Size()
			return ip4.String(), fmt.Sprintf("%s/%d", ip4, ones)
		}
	}
	return "", ""
}
