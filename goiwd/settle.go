// iwtui/goiwd/settle.go
package goiwd

import (
	"context"
	"time"

	"github.com/juju/clock"
)

const DefaultSettleDelay = 2 * time.Second

// Settler waits for the utility's asynchronous work to materialise.
// Settle returns ctx.Err() when interrupted.
type Settler interface {
	Settle(ctx context.Context, d time.Duration) error
}

// ClockSettler is a fixed delay on a clock.
type ClockSettler struct {
	Clock clock.Clock
}

func (s ClockSettler) Settle(ctx context.Context, d time.Duration) error {
	c := s.Clock
	if c == nil {
		c = clock.WallClock
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-c.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
