package ledger

import (
	"sync"
	"sync/atomic"
	"time"
)

// Tick is the host ledger's view of "now": a unix timestamp and a sequence
// number that strictly increases between reads.
type Tick struct {
	Timestamp uint64
	Sequence  uint64
}

type Clock interface {
	Now() Tick
}

type SystemClock struct {
	sequence atomic.Uint64
}

// NewSystemClock returns a wall clock whose first tick carries sequence
// lastSequence+1.
func NewSystemClock(lastSequence uint64) *SystemClock {
	clock := &SystemClock{}
	clock.sequence.Store(lastSequence)
	return clock
}

func (c *SystemClock) Now() Tick {
	return Tick{
		Timestamp: uint64(time.Now().Unix()),
		Sequence:  c.sequence.Add(1),
	}
}

// ManualClock is a Clock driven by the caller.
type ManualClock struct {
	mu        sync.Mutex
	timestamp uint64
	sequence  uint64
}

func NewManualClock(timestamp uint64) *ManualClock {
	return &ManualClock{timestamp: timestamp}
}

func (c *ManualClock) Now() Tick {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sequence++
	return Tick{Timestamp: c.timestamp, Sequence: c.sequence}
}

func (c *ManualClock) Set(timestamp uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timestamp = timestamp
}

func (c *ManualClock) Advance(seconds uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timestamp += seconds
}

// SetSequence makes the next Now return sequence+1.
func (c *ManualClock) SetSequence(sequence uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sequence = sequence
}
