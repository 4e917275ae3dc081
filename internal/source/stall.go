package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"
)

// errStalled marks a transfer that delivered no data within the fetch timeout.
var errStalled = errors.New("transfer stalled")

// stallGuard cancels a transfer when no Read delivers data within idle.
// The deadline starts at construction and is re-armed by every Read that
// returns bytes, so a slow but steady body never trips it.
type stallGuard struct {
	r       io.Reader
	idle    time.Duration
	timer   *time.Timer
	stalled atomic.Bool
}

func newStallGuard(r io.Reader, idle time.Duration, cancel context.CancelFunc) *stallGuard {
	g := &stallGuard{r: r, idle: idle}
	if idle > 0 {
		g.timer = time.AfterFunc(idle, func() {
			g.stalled.Store(true)
			cancel()
		})
	}
	return g
}

func (g *stallGuard) Read(p []byte) (int, error) {
	n, err := g.r.Read(p)
	if g.timer != nil && n > 0 && !g.stalled.Load() {
		g.timer.Reset(g.idle)
	}
	if err != nil && !errors.Is(err, io.EOF) && g.stalled.Load() {
		return n, fmt.Errorf("%w: no data for %s: %w", errStalled, g.idle, err)
	}
	return n, err
}

// Stop disarms the deadline.
func (g *stallGuard) Stop() {
	if g.timer != nil {
		g.timer.Stop()
	}
}
