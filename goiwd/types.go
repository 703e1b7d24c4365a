// iwtui/goiwd/types.go
package goiwd

import "fmt"

// --- Device ---

type DeviceKind int

const (
	KindOther DeviceKind = iota
	KindStation
)

func (k DeviceKind) String() string {
	if k == KindStation {
		return "station"
	}
	return "other"
}

// Device is one row of `iwctl device list`.
// Network is nil when no network was reported; a pointer to "" is a literally empty SSID.
type Device struct {
	Name      string     `json:"name"`
	Kind      DeviceKind `json:"kind"`
	Powered   bool       `json:"powered"`
	Connected bool       `json:"connected"`
	Network   *string    `json:"network,omitempty"`
}

// NetworkName returns the associated network and whether one was reported.
func (d Device) NetworkName() (string, bool) {
	if d.Network == nil {
		return "", false
	}
	return *d.Network, true
}

func (d Device) IsStation() bool { return d.Kind == KindStation }

// --- Networks ---

type Security int

const (
	SecurityOpen Security = iota
	SecuritySecured
)

func (s Security) String() string {
	if s == SecuritySecured {
		return "secured"
	}
	return "open"
}

type Network struct {
	SSID           string   `json:"ssid"`
	Security       Security `json:"security"`
	SignalStrength int      `json:"signalStrength"`
	// SignalUnknown marks rows without a dBm reading; SignalStrength then holds the default.
	SignalUnknown  bool     `json:"signalUnknown,omitempty"`
	Connected      bool     `json:"connected"`
	Known          bool     `json:"known"`
}

type KnownNetwork struct {
	Name     string   `json:"name"`
	Security Security `json:"security"`
}

// --- Connection state ---

type Phase int

const (
	PhaseDisconnected Phase = iota
	PhaseConnecting
	PhaseConnected
)

func (p Phase) String() string {
	switch p {
	case PhaseConnecting:
		return "connecting"
	case PhaseConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// ConnectionState is derived, never stored. SSID and Device are empty when Disconnected.
type ConnectionState struct {
	Phase  Phase
	SSID   string
	Device string
}

func Disconnected() ConnectionState { return ConnectionState{Phase: PhaseDisconnected} }

func Connecting(ssid, device string) ConnectionState {
	return ConnectionState{Phase: PhaseConnecting, SSID: ssid, Device: device}
}

func Connected(ssid, device string) ConnectionState {
	return ConnectionState{Phase: PhaseConnected, SSID: ssid, Device: device}
}

func (s ConnectionState) String() string {
	switch s.Phase {
	case PhaseConnecting:
		return fmt.Sprintf("connecting to %s on %s", s.SSID, s.Device)
	case PhaseConnected:
		return fmt.Sprintf("connected to %s on %s", s.SSID, s.Device)
	default:
		return "disconnected"
	}
}

// --- Outcomes ---

type Failure int

const (
	FailureNone Failure = iota
	ExecutionFailure
	NotFound
	VerificationFailure
)

func (f Failure) String() string {
	switch f {
	case ExecutionFailure:
		return "execution failure"
	case NotFound:
		return "not found"
	case VerificationFailure:
		return "verification failure"
	default:
		return "none"
	}
}

// Outcome is what every Service operation returns. Message is always a single line.
type Outcome struct {
	OK      bool
	Failure Failure
	Message string
}

func succeeded(format string, args ...interface{}) Outcome {
	return Outcome{OK: true, Message: oneLine(fmt.Sprintf(format, args...))}
}

func failed(kind Failure, format string, args ...interface{}) Outcome {
	return Outcome{Failure: kind, Message: oneLine(fmt.Sprintf(format, args...))}
}

// Err converts a failed outcome into an error for callers that prefer Go errors.
func (o Outcome) Err() error {
	if o.OK {
		return nil
	}
	return &OutcomeError{Outcome: o}
}

type OutcomeError struct {
	Outcome Outcome
}

func (e *OutcomeError) Error() string { return e.Outcome.Message }
