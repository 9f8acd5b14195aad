package sim

import (
	"sync"
	"time"

	"github.com/itohio/wally/pkg/hal"
)

// Clock is a virtual monotonic clock. Time only moves when the code under test
// sleeps, plus an optional fixed step every time the microsecond counter is
// read, which models the cost of a busy-poll iteration.
type Clock struct {
	mu      sync.Mutex
	elapsed uint64 // µs since the clock was created
	offset  uint32 // initial value of the wrapping µs counter
	step    uint32
	wall    time.Time
}

var _ hal.Clock = (*Clock)(nil)

// NewClock creates a virtual clock whose µs counter starts at start and
// advances by step on every Micros call.
func NewClock(start uint32, step uint32) *Clock {
	return &Clock{
		offset: start,
		step:   step,
		wall:   time.Unix(1_700_000_000, 0),
	}
}

func (c *Clock) Micros() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := c.offset + uint32(c.elapsed)
	c.elapsed += uint64(c.step)
	return v
}

func (c *Clock) Millis() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return uint32(c.elapsed / 1000)
}

func (c *Clock) SleepMicros(us uint32) {
	c.Advance(time.Duration(us) * time.Microsecond)
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.wall.Add(time.Duration(c.elapsed) * time.Microsecond)
}

// Advance moves virtual time forward.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.elapsed += uint64(d / time.Microsecond)
}

// Elapsed returns the virtual time since creation.
func (c *Clock) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Duration(c.elapsed) * time.Microsecond
}
