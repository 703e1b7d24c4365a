package goiwd

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

const (
	cmdDeviceList  = "iwctl device list"
	cmdScan        = "iwctl station wlan0 scan"
	cmdGetNetworks = "iwctl station wlan0 get-networks"
	cmdConnect     = "iwctl station wlan0 connect OfficeWiFi"
	cmdDisconnect  = "iwctl station wlan0 disconnect"
	cmdKnownList   = "iwctl known-networks list"
)

var (
	devicesDisconnected = deviceHeader + "  wlan0  station  on  disconnected\n"
	devicesConnected    = deviceHeader + "  wlan0  station  on  connected  OfficeWiFi\n"
	networksOffice      = networkHeader + "  OfficeWiFi  PSK  -55dBm\n  CafeGuest  open  -80dBm\n"
)

func TestRefreshDevices(t *testing.T) {
	r := newFakeRunner()
	r.expect(cmdDeviceList, ok(deviceHeader+"  wlan0  station  on  connected  HomeNet\n"))
	svc, _ := newTestService(r)

	out := svc.RefreshDevices(context.Background())
	if !out.OK || out.Failure != FailureNone {
		t.Fatalf("RefreshDevices() = %+v", out)
	}

	want := []Device{{Name: "wlan0", Kind: KindStation, Powered: true, Connected: true, Network: strPtr("HomeNet")}}
	if diff := cmp.Diff(want, svc.Devices()); diff != "" {
		t.Errorf("Devices() mismatch (-want +got):\n%s", diff)
	}
	if got := svc.Status(); got != Connected("HomeNet", "wlan0") {
		t.Errorf("Status() = %+v", got)
	}
}

func TestRefreshDevicesFailureKeepsStore(t *testing.T) {
	r := newFakeRunner()
	r.expect(cmdDeviceList, ok(devicesConnected), fail("dbus: iwd is not running"))
	svc, _ := newTestService(r)

	if out := svc.RefreshDevices(context.Background()); !out.OK {
		t.Fatalf("first RefreshDevices() = %+v", out)
	}
	before := svc.Devices()

	out := svc.RefreshDevices(context.Background())
	if out.OK || out.Failure != ExecutionFailure {
		t.Fatalf("second RefreshDevices() = %+v, want execution failure", out)
	}
	if !strings.Contains(out.Message, "iwd is not running") {
		t.Errorf("message %q does not carry the diagnostic", out.Message)
	}
	if diff := cmp.Diff(before, svc.Devices()); diff != "" {
		t.Errorf("store changed after a failed refresh (-before +after):\n%s", diff)
	}
}

func TestRefreshDevicesIsIdempotent(t *testing.T) {
	r := newFakeRunner()
	r.expect(cmdDeviceList, ok(devicesConnected+"  wlan1  ap  off\n"))
	svc, _ := newTestService(r)

	svc.RefreshDevices(context.Background())
	first := svc.Devices()
	svc.RefreshDevices(context.Background())
	second := svc.Devices()

	if len(second) != 2 {
		t.Fatalf("got %d devices after two refreshes, want 2", len(second))
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("refreshes differ (-first +second):\n%s", diff)
	}
}

func TestScan(t *testing.T) {
	r := newFakeRunner()
	r.expect(cmdDeviceList, ok(deviceHeader+"  wlan9  ap  on\n  wlan1  station  off\n  wlan0  station  on\n"))
	r.expect(cmdScan, ok(""))
	r.expect(cmdGetNetworks, ok(networksOffice))
	svc, settler := newTestService(r)
	svc.RefreshDevices(context.Background())

	out := svc.Scan(context.Background(), "")
	if !out.OK {
		t.Fatalf("Scan() = %+v", out)
	}

	wantCommands := []string{cmdDeviceList, cmdScan, cmdGetNetworks}
	if diff := cmp.Diff(wantCommands, r.commands()); diff != "" {
		t.Errorf("commands mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]time.Duration{DefaultSettleDelay}, settler.waits); diff != "" {
		t.Errorf("settle waits mismatch (-want +got):\n%s", diff)
	}

	want := []Network{
		{SSID: "OfficeWiFi", Security: SecuritySecured, SignalStrength: 55},
		{SSID: "CafeGuest", Security: SecurityOpen, SignalStrength: 80},
	}
	if diff := cmp.Diff(want, svc.Networks()); diff != "" {
		t.Errorf("Networks() mismatch (-want +got):\n%s", diff)
	}
}

func TestScanWithoutStation(t *testing.T) {
	r := newFakeRunner()
	r.expect(cmdDeviceList, ok(deviceHeader+"  wlan0  station  off\n  wlan1  ap  on\n"))
	svc, _ := newTestService(r)
	svc.RefreshDevices(context.Background())

	out := svc.Scan(context.Background(), "")
	if out.OK || out.Failure != NotFound || out.Message != "no device" {
		t.Errorf("Scan() = %+v, want not found 'no device'", out)
	}
	if n := len(r.commands()); n != 1 {
		t.Errorf("issued %d commands, want only the device listing", n)
	}
}

func TestScanTriggerFailureStillLists(t *testing.T) {
	r := newFakeRunner()
	r.expect(cmdScan, fail("Operation already in progress"))
	r.expect(cmdGetNetworks, ok(networksOffice))
	svc, _ := newTestService(r)

	if out := svc.Scan(context.Background(), "wlan0"); !out.OK {
		t.Fatalf("Scan() = %+v", out)
	}
	if n := len(svc.Networks()); n != 2 {
		t.Errorf("stored %d networks, want 2", n)
	}
}

func TestScanListingFailureKeepsStore(t *testing.T) {
	r := newFakeRunner()
	r.expect(cmdScan, ok(""))
	r.expect(cmdGetNetworks, ok(networksOffice), fail("No station on device"))
	svc, _ := newTestService(r)

	svc.Scan(context.Background(), "wlan0")
	before := svc.Networks()

	out := svc.Scan(context.Background(), "wlan0")
	if out.OK || out.Failure != ExecutionFailure {
		t.Fatalf("Scan() = %+v, want execution failure", out)
	}
	if diff := cmp.Diff(before, svc.Networks()); diff != "" {
		t.Errorf("store changed after a failed scan (-before +after):\n%s", diff)
	}
}

func TestScanMarksKnownNetworks(t *testing.T) {
	r := newFakeRunner()
	r.expect(cmdKnownList, ok(knownHeader+"  CafeGuest  open  No  Sep 1, 1:02 PM\n"))
	r.expect(cmdScan, ok(""))
	r.expect(cmdGetNetworks, ok(networksOffice))
	svc, _ := newTestService(r)

	if out := svc.RefreshKnownNetworks(context.Background()); !out.OK {
		t.Fatalf("RefreshKnownNetworks() = %+v", out)
	}
	svc.Scan(context.Background(), "wlan0")

	for _, n := range svc.Networks() {
		if n.Known != (n.SSID == "CafeGuest") {
			t.Errorf("%s known = %t", n.SSID, n.Known)
		}
	}
}

func TestConnectVerified(t *testing.T) {
	r := newFakeRunner()
	r.expect(cmdDeviceList, ok(devicesDisconnected), ok(devicesConnected))
	r.expect(cmdConnect, ok(""))
	var mu sync.Mutex
	var states []ConnectionState
	settler := &noSettle{}
	svc := New(Config{Runner: r, Settler: settler, OnStatus: func(s ConnectionState) {
		mu.Lock()
		states = append(states, s)
		mu.Unlock()
	}})
	svc.RefreshDevices(context.Background())

	out := svc.Connect(context.Background(), "wlan0", "OfficeWiFi", strPtr("secret"))
	if !out.OK || out.Message != "Connected to OfficeWiFi" {
		t.Fatalf("Connect() = %+v", out)
	}

	wantStates := []ConnectionState{Connecting("OfficeWiFi", "wlan0"), Connected("OfficeWiFi", "wlan0")}
	mu.Lock()
	defer mu.Unlock()
	if diff := cmp.Diff(wantStates, states); diff != "" {
		t.Errorf("status transitions mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]time.Duration{DefaultSettleDelay}, settler.waits); diff != "" {
		t.Errorf("settle waits mismatch (-want +got):\n%s", diff)
	}
}

func TestConnectPasswordOnlyOnStdin(t *testing.T) {
	r := newFakeRunner()
	r.expect(cmdDeviceList, ok(devicesConnected))
	r.expect(cmdConnect, ok(""))
	svc, _ := newTestService(r)

	svc.Connect(context.Background(), "wlan0", "OfficeWiFi", strPtr("secret"))

	var connectCall *call
	for i := range r.calls {
		if strings.Contains(r.calls[i].command, "secret") {
			t.Errorf("password leaked into argv: %s", r.calls[i].command)
		}
		if r.calls[i].command == cmdConnect {
			connectCall = &r.calls[i]
		}
	}
	if connectCall == nil || connectCall.stdin == nil || *connectCall.stdin != "secret" {
		t.Errorf("connect call did not receive the password on stdin: %+v", connectCall)
	}
}

func TestConnectVerificationFailure(t *testing.T) {
	r := newFakeRunner()
	r.expect(cmdDeviceList, ok(devicesDisconnected))
	r.expect(cmdConnect, ok(""))
	svc, _ := newTestService(r)
	svc.RefreshDevices(context.Background())

	out := svc.Connect(context.Background(), "wlan0", "OfficeWiFi", strPtr("secret"))
	if out.OK || out.Failure != VerificationFailure {
		t.Fatalf("Connect() = %+v, want verification failure", out)
	}
	if !strings.Contains(out.Message, "verification failed") {
		t.Errorf("message %q does not mention verification", out.Message)
	}
	if got := svc.Status(); got.Phase != PhaseDisconnected {
		t.Errorf("Status() = %+v after failed connect", got)
	}
}

func TestConnectCommandFailure(t *testing.T) {
	r := newFakeRunner()
	r.expect(cmdConnect, fail("Operation failed: invalid passphrase"))
	svc, settler := newTestService(r)

	out := svc.Connect(context.Background(), "wlan0", "OfficeWiFi", strPtr("wrong"))
	if out.OK || out.Failure != ExecutionFailure {
		t.Fatalf("Connect() = %+v, want execution failure", out)
	}
	if out.Message != "Connection failed: Operation failed: invalid passphrase" {
		t.Errorf("message = %q", out.Message)
	}
	if strings.Contains(out.Message, "verification") {
		t.Errorf("command failure reported as verification failure: %q", out.Message)
	}
	if len(settler.waits) != 0 || r.count(cmdDeviceList) != 0 {
		t.Errorf("failed connect waited %d times and refreshed %d times", len(settler.waits), r.count(cmdDeviceList))
	}
}

func TestConnectCancelledDuringSettle(t *testing.T) {
	r := newFakeRunner()
	r.expect(cmdConnect, ok(""))
	r.expect(cmdDeviceList, ok(devicesConnected))
	svc := New(Config{Runner: r, Settler: ClockSettler{}, SettleDelay: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(10*time.Millisecond, cancel)

	out := svc.Connect(ctx, "wlan0", "OfficeWiFi", nil)
	if out.OK || out.Failure != ExecutionFailure {
		t.Fatalf("Connect() = %+v, want execution failure", out)
	}
	if r.count(cmdDeviceList) != 0 {
		t.Error("cancelled connect still verified")
	}
}

func TestConnectSelectsStation(t *testing.T) {
	r := newFakeRunner()
	r.expect(cmdDeviceList, ok(devicesDisconnected), ok(devicesConnected))
	r.expect(cmdConnect, ok(""))
	svc, _ := newTestService(r)
	svc.RefreshDevices(context.Background())

	if out := svc.Connect(context.Background(), "", "OfficeWiFi", nil); !out.OK {
		t.Fatalf("Connect() = %+v", out)
	}
	if r.count(cmdConnect) != 1 {
		t.Errorf("commands = %v", r.commands())
	}
}

func TestDisconnect(t *testing.T) {
	r := newFakeRunner()
	r.expect(cmdDisconnect, ok(""), fail("Not connected"))
	svc, _ := newTestService(r)

	if out := svc.Disconnect(context.Background(), "wlan0"); !out.OK || out.Message != "Disconnected" {
		t.Errorf("Disconnect() = %+v", out)
	}
	out := svc.Disconnect(context.Background(), "wlan0")
	if out.OK || out.Failure != ExecutionFailure || out.Message != "Disconnect failed: Not connected" {
		t.Errorf("Disconnect() = %+v", out)
	}
}

func TestSetPower(t *testing.T) {
	r := newFakeRunner()
	r.expect(cmdDeviceList, ok(devicesDisconnected))
	r.expect("iwctl device wlan0 set-property Powered off", ok(""))
	r.expect("iwctl device wlan0 set-property Powered on", fail("Busy"))
	svc, _ := newTestService(r)

	if out := svc.SetPower(context.Background(), "wlan0", false); out.Failure != NotFound {
		t.Errorf("SetPower() before refresh = %+v, want not found", out)
	}
	if n := len(r.commands()); n != 0 {
		t.Errorf("SetPower on unknown device issued %d commands", n)
	}

	svc.RefreshDevices(context.Background())
	if out := svc.SetPower(context.Background(), "wlan0", false); !out.OK {
		t.Errorf("SetPower(off) = %+v", out)
	}
	if out := svc.SetPower(context.Background(), "wlan0", true); out.OK || out.Failure != ExecutionFailure {
		t.Errorf("SetPower(on) = %+v, want execution failure", out)
	}
	if n := r.count(cmdDeviceList); n != 1 {
		t.Errorf("SetPower refreshed devices: %d listings", n)
	}
	if !svc.Devices()[0].Powered {
		t.Error("store changed without a refresh")
	}
}

func TestTogglePower(t *testing.T) {
	r := newFakeRunner()
	r.expect(cmdDeviceList, ok(devicesDisconnected))
	r.expect("iwctl device wlan0 set-property Powered off", ok(""))
	svc, _ := newTestService(r)
	svc.RefreshDevices(context.Background())

	if out := svc.TogglePower(context.Background(), "wlan0"); !out.OK {
		t.Errorf("TogglePower() = %+v", out)
	}
	if out := svc.TogglePower(context.Background(), "wlan7"); out.Failure != NotFound {
		t.Errorf("TogglePower(wlan7) = %+v, want not found", out)
	}
}

func TestForget(t *testing.T) {
	r := newFakeRunner()
	r.expect(cmdKnownList,
		ok(knownHeader+"  HomeNet  psk  No  Oct 12, 9:41 AM\n"),
		ok(knownHeader))
	r.expect("iwctl known-networks HomeNet forget", ok(""))
	svc, _ := newTestService(r)

	if out := svc.Forget(context.Background(), "HomeNet"); out.Failure != NotFound {
		t.Errorf("Forget() before listing = %+v, want not found", out)
	}

	svc.RefreshKnownNetworks(context.Background())
	if out := svc.Forget(context.Background(), "HomeNet"); !out.OK {
		t.Fatalf("Forget() = %+v", out)
	}
	if got := svc.KnownNetworks(); len(got) != 0 {
		t.Errorf("KnownNetworks() = %+v after forgetting", got)
	}
}

func TestVersion(t *testing.T) {
	r := newFakeRunner()
	r.expect("iwctl --version", ok("2.14\n"), fail("exec: \"iwctl\": executable file not found in $PATH"))
	svc, _ := newTestService(r)

	v, out := svc.Version(context.Background())
	if !out.OK || v == nil || v.Major() != 2 || v.Minor() != 14 {
		t.Fatalf("Version() = %v, %+v", v, out)
	}

	v, out = svc.Version(context.Background())
	if out.OK || v != nil || out.Failure != ExecutionFailure {
		t.Errorf("Version() = %v, %+v, want execution failure", v, out)
	}
}

func TestOutcomeErr(t *testing.T) {
	if err := succeeded("fine").Err(); err != nil {
		t.Errorf("Err() = %v for a success", err)
	}
	err := failed(NotFound, "Device %s not found", "wlan3").Err()
	if err == nil || err.Error() != "Device wlan3 not found" {
		t.Errorf("Err() = %v", err)
	}
}

func TestKeyedMutexSerialisesSameKey(t *testing.T) {
	k := keyedMutex{locks: make(map[string]*keyedEntry)}
	unlock := k.Lock("wlan0")

	acquired := make(chan struct{})
	go func() {
		release := k.Lock("wlan0")
		close(acquired)
		release()
	}()

	otherReleased := make(chan struct{})
	go func() {
		release := k.Lock("wlan1")
		release()
		close(otherReleased)
	}()

	select {
	case <-otherReleased:
	case <-time.After(time.Second):
		t.Fatal("a different key was blocked")
	}
	select {
	case <-acquired:
		t.Fatal("same key acquired while held")
	case <-time.After(20 * time.Millisecond):
	}

	unlock()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("same key never acquired after release")
	}
}

func TestVersionUnparsable(t *testing.T) {
	r := newFakeRunner()
	r.expect("iwctl --version", ok("iwctl development build\n"))
	svc, _ := newTestService(r)

	v, out := svc.Version(context.Background())
	if out.OK || v != nil || out.Failure != VerificationFailure {
		t.Errorf("Version() = %v, %+v, want verification failure", v, out)
	}
}

func recv(t *testing.T, ch <-chan Outcome) Outcome {
	t.Helper()
	select {
	case out := <-ch:
		return out
	case <-time.After(time.Second):
		t.Fatal("operation did not return")
		return Outcome{}
	}
}

func TestRefreshDevicesSurvivesOtherCallerCancelling(t *testing.T) {
	r := newHeldRunner(cmdDeviceList)
	r.expect(cmdDeviceList, ok(devicesConnected))
	svc, _ := newTestService(r)

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan Outcome, 1)
	go func() { first <- svc.RefreshDevices(ctx) }()
	waitFor(t, r.entered, "device list")

	second := make(chan Outcome, 1)
	go func() { second <- svc.RefreshDevices(context.Background()) }()
	// Give the second caller time to join the running refresh.
	time.Sleep(20 * time.Millisecond)

	cancel()
	if out := recv(t, first); out.OK || out.Failure != ExecutionFailure {
		t.Errorf("cancelled caller got %+v, want execution failure", out)
	}

	close(r.release)
	if out := recv(t, second); !out.OK {
		t.Fatalf("live caller got %+v after the other caller cancelled", out)
	}
	if n := r.count(cmdDeviceList); n != 1 {
		t.Errorf("device list ran %d times, want 1", n)
	}
	if got := svc.Status(); got != Connected("OfficeWiFi", "wlan0") {
		t.Errorf("Status() = %+v", got)
	}
}

func TestConcurrentRefreshesShareOneExecution(t *testing.T) {
	r := newHeldRunner(cmdDeviceList)
	r.expect(cmdDeviceList, ok(devicesConnected))
	svc, _ := newTestService(r)

	const callers = 5
	results := make(chan Outcome, callers)
	go func() { results <- svc.RefreshDevices(context.Background()) }()
	waitFor(t, r.entered, "device list")
	for i := 1; i < callers; i++ {
		go func() { results <- svc.RefreshDevices(context.Background()) }()
	}
	time.Sleep(20 * time.Millisecond)
	close(r.release)

	for i := 0; i < callers; i++ {
		if out := recv(t, results); !out.OK {
			t.Errorf("caller %d got %+v", i, out)
		}
	}
	if n := r.count(cmdDeviceList); n != 1 {
		t.Errorf("device list ran %d times for %d callers, want 1", n, callers)
	}
}

func TestRefreshWaitsForInFlightScan(t *testing.T) {
	r := newFakeRunner()
	r.expect(cmdScan, ok(""))
	r.expect(cmdGetNetworks, ok(networksOffice))
	r.expect(cmdDeviceList, ok(devicesConnected))
	settler := newHeldSettler()
	svc := New(Config{Runner: r, Settler: settler})

	scanned := make(chan Outcome, 1)
	go func() { scanned <- svc.Scan(context.Background(), "wlan0") }()
	release := settler.next(t)

	refreshed := make(chan Outcome, 1)
	go func() { refreshed <- svc.RefreshDevices(context.Background()) }()
	time.Sleep(20 * time.Millisecond)
	if n := r.count(cmdDeviceList); n != 0 {
		t.Fatalf("device list ran %d times while a scan was settling", n)
	}

	close(release)
	if out := recv(t, scanned); !out.OK {
		t.Fatalf("Scan() = %+v", out)
	}
	if out := recv(t, refreshed); !out.OK {
		t.Fatalf("RefreshDevices() = %+v", out)
	}
	want := []string{cmdScan, cmdGetNetworks, cmdDeviceList}
	if diff := cmp.Diff(want, r.commands()); diff != "" {
		t.Errorf("command order mismatch (-want +got):\n%s", diff)
	}
}

func TestConnectingTracksEachDevice(t *testing.T) {
	const (
		twoIdle = deviceHeader + "  wlan0  station  on  disconnected\n  wlan1  station  on  disconnected\n"
		firstUp = deviceHeader + "  wlan0  station  on  connected  OfficeWiFi\n  wlan1  station  on  disconnected\n"
		bothUp  = deviceHeader + "  wlan0  station  on  connected  OfficeWiFi\n  wlan1  station  on  connected  Lab\n"
	)
	r := newFakeRunner()
	r.expect(cmdDeviceList, ok(twoIdle), ok(firstUp), ok(bothUp))
	r.expect(cmdConnect, ok(""))
	r.expect("iwctl station wlan1 connect Lab", ok(""))
	settler := newHeldSettler()
	svc := New(Config{Runner: r, Settler: settler})
	svc.RefreshDevices(context.Background())

	first := make(chan Outcome, 1)
	go func() { first <- svc.Connect(context.Background(), "wlan0", "OfficeWiFi", nil) }()
	releaseFirst := settler.next(t)
	second := make(chan Outcome, 1)
	go func() { second <- svc.Connect(context.Background(), "wlan1", "Lab", nil) }()
	releaseSecond := settler.next(t)

	if got := svc.Status(); got != Connecting("OfficeWiFi", "wlan0") {
		t.Errorf("Status() with both in flight = %s", got)
	}

	close(releaseFirst)
	if out := recv(t, first); !out.OK {
		t.Fatalf("first Connect() = %+v", out)
	}
	if got := svc.Status(); got != Connecting("Lab", "wlan1") {
		t.Errorf("Status() while wlan1 still connecting = %s", got)
	}

	close(releaseSecond)
	if out := recv(t, second); !out.OK {
		t.Fatalf("second Connect() = %+v", out)
	}
	if got := svc.Status(); got != Connected("OfficeWiFi", "wlan0") {
		t.Errorf("Status() after both connects = %s", got)
	}
}
