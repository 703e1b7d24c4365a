// iwtui/goiwd/store.go
package goiwd

import "sync"

// Store holds the last-known snapshot. Every Set replaces the previous list wholesale.
type Store struct {
	mu       sync.RWMutex
	devices  []Device
	networks []Network
	known    []KnownNetwork
}

func NewStore() *Store {
	return &Store{}
}

func (s *Store) SetDevices(devices []Device) {
	snapshot := copyDevices(devices)
	s.mu.Lock()
	s.devices = snapshot
	s.mu.Unlock()
}

func (s *Store) SetNetworks(networks []Network) {
	snapshot := append([]Network(nil), networks...)
	s.mu.Lock()
	s.networks = snapshot
	s.mu.Unlock()
}

// SetKnownNetworks replaces the known list and re-marks Known on the stored scan results.
func (s *Store) SetKnownNetworks(known []KnownNetwork) {
	snapshot := append([]KnownNetwork(nil), known...)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.known = snapshot
	if len(s.networks) == 0 {
		return
	}
	marked := append([]Network(nil), s.networks...)
	markKnown(marked, snapshot)
	s.networks = marked
}

func (s *Store) Devices() []Device {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyDevices(s.devices)
}

func (s *Store) Networks() []Network {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Network(nil), s.networks...)
}

func (s *Store) KnownNetworks() []KnownNetwork {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]KnownNetwork(nil), s.known...)
}

// Device looks a device up by name in the current snapshot.
func (s *Store) Device(name string) (Device, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, d := range s.devices {
		if d.Name == name {
			return copyDevice(d), true
		}
	}
	return Device{}, false
}

func markKnown(networks []Network, known []KnownNetwork) {
	names := make(map[string]struct{}, len(known))
	for _, k := range known {
		names[k.Name] = struct{}{}
	}
	for i := range networks {
		_, networks[i].Known = names[networks[i].SSID]
	}
}

func copyDevice(d Device) Device {
	if d.Network != nil {
		network := *d.Network
		d.Network = &network
	}
	return d
}

func copyDevices(devices []Device) []Device {
	if devices == nil {
		return nil
	}
	out := make([]Device, len(devices))
	for i, d := range devices {
		out[i] = copyDevice(d)
	}
	return out
}
