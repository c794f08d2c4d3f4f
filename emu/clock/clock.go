/*
 * vmux - Global tick clock.
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in
 * all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

// Package clock provides the emulator's monotonic tick counter and the
// wait-for-N-ticks primitive every Core and instruction delay blocks on.
//
// A Clock is injected, never a package singleton, so tests can advance a
// virtual instance deterministically instead of sleeping on wall time.
package clock

import (
	"log/slog"
	"sync"
	"time"

	"github.com/vmux-emu/vmux/config/debugconfig"
)

// DebugLevel is this package's registered debugconfig level, adjustable at
// runtime from a "debug CLOCK,<level>" config.txt line.
var DebugLevel = new(slog.LevelVar)

func init() {
	debugconfig.Register("CLOCK", DebugLevel)
}

// Tick is the discrete time unit every wait() and every utilization window
// entry is measured in.
type Tick uint64

// Clock is a process-wide tick counter advanced by one dedicated worker.
// Multiple waiters observe the same edges; Run never skips a tick.
type Clock struct {
	mu      sync.Mutex
	cond    *sync.Cond
	now     Tick
	done    chan struct{}
	stopped bool
	wg      sync.WaitGroup

	period time.Duration // wall-clock cadence per tick; 0 disables the worker (virtual clock)
}

// New returns a Clock advancing every period. A period of 0 produces a
// virtual clock: call Advance explicitly (from tests) instead of Run.
func New(period time.Duration) *Clock {
	c := &Clock{period: period, done: make(chan struct{})}
	c.cond = sync.NewCond(&c.mu)
	return c
}

// Now returns the current tick count. Safe for concurrent use.
func (c *Clock) Now() Tick {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by one tick and wakes every waiter.
// Exposed so a virtual clock (period == 0) can be driven from tests; the
// real worker (Run) calls it on its own cadence.
func (c *Clock) Advance() {
	c.mu.Lock()
	c.now++
	c.mu.Unlock()
	c.cond.Broadcast()
}

// Wait suspends the caller until the clock has advanced by at least n ticks
// from the value observed at call entry, or until Stop is called. n == 0
// returns immediately; n >= 1 otherwise blocks through at least one edge.
func (c *Clock) Wait(n Tick) {
	if n == 0 {
		return
	}
	c.mu.Lock()
	target := c.now + n
	for c.now < target && !c.stopped {
		c.cond.Wait()
	}
	c.mu.Unlock()
}

// Run starts the tick worker goroutine. No-op if the clock was built with a
// zero period (virtual clock mode).
func (c *Clock) Run() {
	if c.period <= 0 {
		return
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.period)
		defer ticker.Stop()
		for {
			select {
			case <-c.done:
				return
			case <-ticker.C:
				c.Advance()
			}
		}
	}()
}

// Stop signals the tick worker to exit, wakes every goroutine parked in
// Wait (which returns immediately regardless of its target tick), and
// waits for the worker to finish.
func (c *Clock) Stop() {
	c.mu.Lock()
	select {
	case <-c.done:
		c.mu.Unlock()
		return // already stopped
	default:
		close(c.done)
		c.stopped = true
	}
	c.mu.Unlock()
	c.cond.Broadcast()
	c.wg.Wait()
}
