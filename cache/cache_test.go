package cache

import (
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"iwtui/goiwd"
)

func openTemp(t *testing.T) (*Cache, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), FileName)
	c, err := Open(path)
	if err != nil {
		t.Fatalf("Open() = %v", err)
	}
	return c, path
}

func TestEmptyCache(t *testing.T) {
	c, _ := openTemp(t)
	defer c.Close()

	networks, err := c.Networks()
	if err != nil || networks != nil {
		t.Errorf("Networks() = %v, %v on an empty cache", networks, err)
	}
	devices, err := c.Devices()
	if err != nil || devices != nil {
		t.Errorf("Devices() = %v, %v on an empty cache", devices, err)
	}
}

func TestSnapshotSurvivesReopen(t *testing.T) {
	c, path := openTemp(t)

	home := "HomeNet"
	devices := []goiwd.Device{{Name: "wlan0", Kind: goiwd.KindStation, Powered: true, Connected: true, Network: &home}}
	networks := []goiwd.Network{
		{SSID: "HomeNet", Security: goiwd.SecuritySecured, SignalStrength: 40, Connected: true, Known: true},
		{SSID: "CafeGuest", Security: goiwd.SecurityOpen, SignalStrength: 80},
	}
	if err := c.SaveDevices(devices); err != nil {
		t.Fatalf("SaveDevices() = %v", err)
	}
	if err := c.SaveNetworks(networks); err != nil {
		t.Fatalf("SaveNetworks() = %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close() = %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("Open() = %v", err)
	}
	defer reopened.Close()

	gotNetworks, err := reopened.Networks()
	if err != nil {
		t.Fatalf("Networks() = %v", err)
	}
	if diff := cmp.Diff(networks, gotNetworks); diff != "" {
		t.Errorf("Networks() mismatch (-want +got):\n%s", diff)
	}
	gotDevices, err := reopened.Devices()
	if err != nil {
		t.Fatalf("Devices() = %v", err)
	}
	if diff := cmp.Diff(devices, gotDevices); diff != "" {
		t.Errorf("Devices() mismatch (-want +got):\n%s", diff)
	}
}

func TestSaveReplaces(t *testing.T) {
	c, _ := openTemp(t)
	defer c.Close()

	c.SaveNetworks([]goiwd.Network{{SSID: "A"}, {SSID: "B"}})
	c.SaveNetworks([]goiwd.Network{{SSID: "C"}})

	got, _ := c.Networks()
	if diff := cmp.Diff([]goiwd.Network{{SSID: "C"}}, got); diff != "" {
		t.Errorf("Networks() mismatch (-want +got):\n%s", diff)
	}
}
