// iwtui/goiwd/service.go
package goiwd

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Masterminds/semver"
	"golang.org/x/sync/singleflight"
)

const DefaultBinary = "iwctl"

// Config wires a Service. Zero fields take their defaults.
type Config struct {
	Binary         string
	CommandTimeout time.Duration
	SettleDelay    time.Duration
	Runner         Runner
	Settler        Settler
	Logger         Logger
	// OnStatus is called whenever the derived connection state changes.
	OnStatus func(ConnectionState)
}

func DefaultConfig() Config {
	return Config{
		Binary:         DefaultBinary,
		CommandTimeout: DefaultCommandTimeout,
		SettleDelay:    DefaultSettleDelay,
	}
}

// Service is the network control service: it drives iwctl, parses the output
// into the Store and verifies that state changes took effect.
type Service struct {
	binary         string
	commandTimeout time.Duration
	settleDelay    time.Duration
	run            Runner
	settler        Settler
	log            Logger
	onStatus       func(ConnectionState)

	store *Store

	// Mutations hold gate shared plus their device lock; RefreshDevices holds gate exclusively.
	gate      sync.RWMutex
	devices   keyedMutex
	refreshes singleflight.Group

	statusMu sync.Mutex
	// connecting holds the in-flight Connect calls keyed by device.
	connecting map[string]ConnectionState
	lastStatus ConnectionState
}

func New(config Config) *Service {
	defaults := DefaultConfig()
	if config.Binary == "" {
		config.Binary = defaults.Binary
	}
	if config.CommandTimeout <= 0 {
		config.CommandTimeout = defaults.CommandTimeout
	}
	if config.SettleDelay <= 0 {
		config.SettleDelay = defaults.SettleDelay
	}
	if config.Logger == nil {
		config.Logger = noopLogger{}
	}
	if config.Runner == nil {
		config.Runner = NewExecRunner(config.CommandTimeout, config.Logger)
	}
	if config.Settler == nil {
		config.Settler = ClockSettler{}
	}

	return &Service{
		binary:         config.Binary,
		commandTimeout: config.CommandTimeout,
		settleDelay:    config.SettleDelay,
		run:            config.Runner,
		settler:        config.Settler,
		log:            config.Logger,
		onStatus:       config.OnStatus,
		store:          NewStore(),
		devices:        keyedMutex{locks: make(map[string]*keyedEntry)},
		connecting:     make(map[string]ConnectionState),
	}
}

// --- Snapshot accessors ---

func (s *Service) Devices() []Device             { return s.store.Devices() }
func (s *Service) Networks() []Network           { return s.store.Networks() }
func (s *Service) KnownNetworks() []KnownNetwork { return s.store.KnownNetworks() }

// Status is Connecting while a Connect call is in flight, otherwise the projection of the stored devices.
func (s *Service) Status() ConnectionState {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	return s.statusLocked()
}

// statusLocked prefers the in-flight connect of the first device in store
// order; devices missing from the store fall back to name order.
func (s *Service) statusLocked() ConnectionState {
	if len(s.connecting) == 0 {
		return Project(s.store.Devices())
	}
	for _, d := range s.store.Devices() {
		if state, ok := s.connecting[d.Name]; ok {
			return state
		}
	}
	names := make([]string, 0, len(s.connecting))
	for name := range s.connecting {
		names = append(names, name)
	}
	sort.Strings(names)
	return s.connecting[names[0]]
}

func (s *Service) notifyStatus() {
	s.statusMu.Lock()
	current := s.statusLocked()
	changed := current != s.lastStatus
	s.lastStatus = current
	s.statusMu.Unlock()

	if changed {
		s.log.Debugf("Connection state: %s", current)
		if s.onStatus != nil {
			s.onStatus(current)
		}
	}
}

func (s *Service) beginConnecting(device, ssid string) {
	s.statusMu.Lock()
	s.connecting[device] = Connecting(ssid, device)
	s.statusMu.Unlock()
	s.notifyStatus()
}

func (s *Service) endConnecting(device string) {
	s.statusMu.Lock()
	delete(s.connecting, device)
	s.statusMu.Unlock()
	s.notifyStatus()
}

// --- Command plumbing ---

func (s *Service) iwctl(ctx context.Context, stdin *string, args ...string) CommandResult {
	return s.run.Run(ctx, s.binary, args, stdin)
}

// shared runs fn once for all concurrent callers of key. fn runs on a context
// detached from the callers' cancellation; a caller whose ctx ends returns
// early and the run continues for the rest.
func (s *Service) shared(ctx context.Context, key string, fn func(context.Context) Outcome) Outcome {
	detached := context.WithoutCancel(ctx)
	ch := s.refreshes.DoChan(key, func() (interface{}, error) {
		return fn(detached), nil
	})
	select {
	case res := <-ch:
		return res.Val.(Outcome)
	case <-ctx.Done():
		return failed(ExecutionFailure, "Refreshing %s interrupted: %v", key, ctx.Err())
	}
}

func (s *Service) lockDevice(name string) func() {
	s.gate.RLock()
	unlock := s.devices.Lock(name)
	return func() {
		unlock()
		s.gate.RUnlock()
	}
}

// --- Operations ---

// RefreshDevices re-reads the device list. On failure the Store is left untouched.
// Concurrent calls share a single execution.
func (s *Service) RefreshDevices(ctx context.Context) Outcome {
	return s.shared(ctx, "devices", func(ctx context.Context) Outcome {
		s.gate.Lock()
		defer s.gate.Unlock()

		ctx, cancel := context.WithTimeout(ctx, s.commandTimeout)
		defer cancel()
		return s.refreshDevices(ctx)
	})
}

func (s *Service) refreshDevices(ctx context.Context) Outcome {
	res := s.iwctl(ctx, nil, "device", "list")
	if !res.OK {
		return failed(ExecutionFailure, "Failed to list devices: %s", res.Output)
	}
	devices := ParseDevices(res.Output)
	s.store.SetDevices(devices)
	s.notifyStatus()
	s.log.Debugf("Refreshed %d devices", len(devices))
	return succeeded("Found %d devices", len(devices))
}

// firstStation picks the first powered station device of the current snapshot.
func (s *Service) firstStation() (string, bool) {
	for _, d := range s.store.Devices() {
		if d.IsStation() && d.Powered {
			return d.Name, true
		}
	}
	return "", false
}

// Scan triggers a scan, waits for results to materialise and stores the network list.
// An empty device selects the first powered station.
func (s *Service) Scan(ctx context.Context, device string) Outcome {
	if device == "" {
		name, ok := s.firstStation()
		if !ok {
			return failed(NotFound, "no device")
		}
		device = name
	}

	unlock := s.lockDevice(device)
	defer unlock()

	s.log.Infof("Scanning on %s", device)
	if res := s.iwctl(ctx, nil, "station", device, "scan"); !res.OK {
		// Listing still returns the utility's previous results.
		s.log.Warnf("Scan trigger on %s failed: %s", device, oneLine(res.Output))
	}
	if err := s.settler.Settle(ctx, s.settleDelay); err != nil {
		return failed(ExecutionFailure, "Scan on %s interrupted: %v", device, err)
	}

	res := s.iwctl(ctx, nil, "station", device, "get-networks")
	if !res.OK {
		return failed(ExecutionFailure, "Failed to list networks on %s: %s", device, res.Output)
	}
	networks := ParseNetworks(res.Output)
	if known := s.store.KnownNetworks(); len(known) > 0 {
		markKnown(networks, known)
	}
	s.store.SetNetworks(networks)
	s.log.Infof("Found %d networks on %s", len(networks), device)
	return succeeded("Found %d networks on %s", len(networks), device)
}

// Connect asks the utility to join ssid and then verifies that some device
// actually reports the association. The password only ever travels on stdin.
// An empty device selects the first powered station.
func (s *Service) Connect(ctx context.Context, device, ssid string, password *string) Outcome {
	if device == "" {
		name, ok := s.firstStation()
		if !ok {
			return failed(NotFound, "no device")
		}
		device = name
	}

	unlock := s.lockDevice(device)
	defer unlock()

	s.beginConnecting(device, ssid)
	defer s.endConnecting(device)

	s.log.Infof("Connecting %s to '%s' (password: %t)", device, ssid, password != nil)
	res := s.iwctl(ctx, password, "station", device, "connect", ssid)
	if !res.OK {
		s.log.Warnf("Connect to '%s' failed: %s", ssid, oneLine(res.Output))
		return failed(ExecutionFailure, "Connection failed: %s", res.Output)
	}

	if err := s.settler.Settle(ctx, s.settleDelay); err != nil {
		return failed(ExecutionFailure, "Connection to %s interrupted: %v", ssid, err)
	}

	refreshed := s.refreshDevices(ctx)
	if !refreshed.OK {
		if ctx.Err() != nil {
			return failed(ExecutionFailure, "Connection to %s interrupted: %v", ssid, ctx.Err())
		}
		return failed(VerificationFailure, "Connection verification failed: %s", refreshed.Message)
	}

	for _, d := range s.store.Devices() {
		if name, ok := d.NetworkName(); d.Connected && ok && name == ssid {
			s.log.Infof("Verified %s connected to '%s'", d.Name, ssid)
			return succeeded("Connected to %s", ssid)
		}
	}
	s.log.Warnf("Connect to '%s' accepted but no device reports it", ssid)
	return failed(VerificationFailure, "Connection verification failed: %s did not come up", ssid)
}

func (s *Service) Disconnect(ctx context.Context, device string) Outcome {
	unlock := s.lockDevice(device)
	defer unlock()

	res := s.iwctl(ctx, nil, "station", device, "disconnect")
	if !res.OK {
		return failed(ExecutionFailure, "Disconnect failed: %s", res.Output)
	}
	return succeeded("Disconnected")
}

// SetPower looks the device up in the current snapshot and sets its Powered
// property. The caller refreshes devices to observe the change.
func (s *Service) SetPower(ctx context.Context, device string, on bool) Outcome {
	unlock := s.lockDevice(device)
	defer unlock()
	return s.setPower(ctx, device, on)
}

// TogglePower flips the stored Powered value of device.
func (s *Service) TogglePower(ctx context.Context, device string) Outcome {
	unlock := s.lockDevice(device)
	defer unlock()

	dev, ok := s.store.Device(device)
	if !ok {
		return failed(NotFound, "Device %s not found", device)
	}
	return s.setPower(ctx, device, !dev.Powered)
}

func (s *Service) setPower(ctx context.Context, device string, on bool) Outcome {
	if _, ok := s.store.Device(device); !ok {
		return failed(NotFound, "Device %s not found", device)
	}
	state := "off"
	if on {
		state = "on"
	}
	res := s.iwctl(ctx, nil, "device", device, "set-property", "Powered", state)
	if !res.OK {
		return failed(ExecutionFailure, "Failed to power %s %s: %s", state, device, res.Output)
	}
	return succeeded("Powered %s %s", state, device)
}

// RefreshKnownNetworks re-reads the utility's known-networks store and marks
// the stored scan results accordingly.
func (s *Service) RefreshKnownNetworks(ctx context.Context) Outcome {
	return s.shared(ctx, "known networks", func(ctx context.Context) Outcome {
		ctx, cancel := context.WithTimeout(ctx, s.commandTimeout)
		defer cancel()

		res := s.iwctl(ctx, nil, "known-networks", "list")
		if !res.OK {
			return failed(ExecutionFailure, "Failed to list known networks: %s", res.Output)
		}
		known := ParseKnownNetworks(res.Output)
		s.store.SetKnownNetworks(known)
		return succeeded("Found %d known networks", len(known))
	})
}

// Forget removes ssid from the utility's known-networks store.
func (s *Service) Forget(ctx context.Context, ssid string) Outcome {
	found := false
	for _, k := range s.store.KnownNetworks() {
		if k.Name == ssid {
			found = true
			break
		}
	}
	if !found {
		return failed(NotFound, "%s is not a known network", ssid)
	}

	res := s.iwctl(ctx, nil, "known-networks", ssid, "forget")
	if !res.OK {
		return failed(ExecutionFailure, "Failed to forget %s: %s", ssid, res.Output)
	}
	if refreshed := s.RefreshKnownNetworks(ctx); !refreshed.OK {
		s.log.Warnf("Known networks refresh after forgetting '%s' failed: %s", ssid, refreshed.Message)
	}
	return succeeded("Forgot network: %s", ssid)
}

// Version reports the installed utility's version. A binary that runs but
// prints something unparsable yields VerificationFailure.
func (s *Service) Version(ctx context.Context) (*semver.Version, Outcome) {
	res := s.iwctl(ctx, nil, "--version")
	if !res.OK {
		return nil, failed(ExecutionFailure, "'%s' is not installed or not found in PATH: %s", s.binary, res.Output)
	}
	raw := strings.TrimSpace(res.Output)
	if fields := strings.Fields(raw); len(fields) > 0 {
		raw = fields[len(fields)-1]
	}
	v, err := semver.NewVersion(raw)
	if err != nil {
		return nil, failed(VerificationFailure, "Unrecognised %s version %q: %v", s.binary, raw, err)
	}
	return v, succeeded("%s %s", s.binary, v)
}

// --- Per-device serialisation ---

type keyedEntry struct {
	mu   sync.Mutex
	refs int
}

type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedEntry
}

// Lock blocks until key is free and returns its unlock function.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		e = &keyedEntry{}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
