package goiwd

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"
)

type call struct {
	command string
	stdin   *string
}

// fakeRunner replays pre-programmed results keyed by "name arg1 arg2 ...".
// Queued results are consumed in order; the last one sticks.
type fakeRunner struct {
	mu        sync.Mutex
	calls     []call
	responses map[string][]CommandResult
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{responses: make(map[string][]CommandResult)}
}

func (f *fakeRunner) expect(command string, results ...CommandResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[command] = append(f.responses[command], results...)
}

func (f *fakeRunner) Run(_ context.Context, name string, args []string, stdin *string) CommandResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	command := strings.TrimSpace(name + " " + strings.Join(args, " "))
	f.calls = append(f.calls, call{command: command, stdin: stdin})
	queue := f.responses[command]
	if len(queue) == 0 {
		return CommandResult{Output: "unexpected command: " + command}
	}
	result := queue[0]
	if len(queue) > 1 {
		f.responses[command] = queue[1:]
	}
	return result
}

func (f *fakeRunner) commands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.command
	}
	return out
}

func (f *fakeRunner) count(command string) int {
	n := 0
	for _, c := range f.commands() {
		if c == command {
			n++
		}
	}
	return n
}

type noSettle struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (n *noSettle) Settle(ctx context.Context, d time.Duration) error {
	n.mu.Lock()
	n.waits = append(n.waits, d)
	n.mu.Unlock()
	return ctx.Err()
}

func ok(output string) CommandResult { return CommandResult{OK: true, Output: output} }

func fail(output string) CommandResult { return CommandResult{Output: output} }

const deviceHeader = `                                    Devices
--------------------------------------------------------------------------------
  Name                  Mode        Powered     State       Network
`

const networkHeader = `                               Available networks
--------------------------------------------------------------------------------
      Network name                      Security            Signal
--------------------------------------------------------------------------------
`

const knownHeader = `                                  Known Networks
--------------------------------------------------------------------------------
  Name                              Security     Hidden   Last connected
--------------------------------------------------------------------------------
`

func newTestService(r Runner) (*Service, *noSettle) {
	settler := &noSettle{}
	return New(Config{Runner: r, Settler: settler}), settler
}

// heldRunner parks every run of command until release is closed, or until the
// run's ctx ends. Everything else goes straight to the fakeRunner.
type heldRunner struct {
	*fakeRunner
	command string
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newHeldRunner(command string) *heldRunner {
	return &heldRunner{
		fakeRunner: newFakeRunner(),
		command:    command,
		entered:    make(chan struct{}),
		release:    make(chan struct{}),
	}
}

func (h *heldRunner) Run(ctx context.Context, name string, args []string, stdin *string) CommandResult {
	if strings.TrimSpace(name+" "+strings.Join(args, " ")) == h.command {
		h.once.Do(func() { close(h.entered) })
		select {
		case <-h.release:
		case <-ctx.Done():
			return fail("cancelled: " + ctx.Err().Error())
		}
	}
	return h.fakeRunner.Run(ctx, name, args, stdin)
}

// heldSettler parks each Settle call and hands its release channel to the test
// in arrival order.
type heldSettler struct {
	entered chan chan struct{}
}

func newHeldSettler() *heldSettler {
	return &heldSettler{entered: make(chan chan struct{}, 8)}
}

func (h *heldSettler) Settle(ctx context.Context, _ time.Duration) error {
	release := make(chan struct{})
	h.entered <- release
	select {
	case <-release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// next waits for the following Settle call to park.
func (h *heldSettler) next(t testing.TB) chan struct{} {
	t.Helper()
	select {
	case release := <-h.entered:
		return release
	case <-time.After(time.Second):
		t.Fatal("no Settle call arrived")
		return nil
	}
}

// waitFor fails the test if ch is not closed within a second.
func waitFor(t testing.TB, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
}
