package syncclient

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

const (
	pingInterval = 2 * time.Second

	// экспоненциальное сглаживание: 0.7 старой оценки + 0.3 новой
	smoothKeep = 0.7
	smoothNew  = 0.3
)

// ClockSync estimates the offset between the local clock and the server's:
// serverTime ≈ localTime + OffsetMs(). Missed replies just skip a cycle;
// staleness degrades quality instead of failing.
type ClockSync struct {
	clock clockwork.Clock

	mu       sync.Mutex
	offsetMs float64
	rttMs    float64
	seeded   bool
}

func NewClockSync(clock clockwork.Clock) *ClockSync {
	return &ClockSync{clock: clock}
}

// Run sends a timestamped ping every pingInterval until ctx is done.
// Send errors are ignored: the next tick retries.
func (c *ClockSync) Run(ctx context.Context, send func(t0 int64) error) {
	_ = send(c.clock.Now().UnixMilli())

	ticker := c.clock.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			_ = send(c.clock.Now().UnixMilli())
		}
	}
}

// OnPong feeds a reply carrying the echoed t0 and the server clock reading.
// The first sample seeds the estimate directly.
func (c *ClockSync) OnPong(t0, serverMs int64) {
	now := c.clock.Now().UnixMilli()
	rtt := float64(now - t0)
	if rtt < 0 {
		return // echoed timestamp from a previous connection
	}
	offset := float64(serverMs) - (float64(t0) + rtt/2)

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.seeded {
		c.offsetMs = offset
		c.rttMs = rtt
		c.seeded = true
		return
	}
	c.offsetMs = smoothKeep*c.offsetMs + smoothNew*offset
	c.rttMs = smoothKeep*c.rttMs + smoothNew*rtt
}

// OffsetMs returns the current smoothed offset estimate.
func (c *ClockSync) OffsetMs() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.offsetMs
}

// RTTMs — диагностика качества синхронизации.
func (c *ClockSync) RTTMs() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rttMs
}

func (c *ClockSync) Seeded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seeded
}
