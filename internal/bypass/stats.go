package bypass

import "sync/atomic"

// Stats holds monotonic counters, each read-only from the outside except
// via Reset. atomic.Uint64 gives the spec's "read-only from the outside"
// guarantee without a mutex's critical section.
type Stats struct {
	packetsTotal    atomic.Uint64
	packetsBypassed atomic.Uint64
	packetsDropped  atomic.Uint64
	bytesTotal      atomic.Uint64
}

// StatsSnapshot is an immutable copy of Stats for serialization (status
// command responses, logging).
type StatsSnapshot struct {
	PacketsTotal    uint64
	PacketsBypassed uint64
	PacketsDropped  uint64
	BytesTotal      uint64
}

func (s *Stats) addTotal(n uint64) { s.packetsTotal.Add(1); s.bytesTotal.Add(n) }
func (s *Stats) addBypassed()      { s.packetsBypassed.Add(1) }
func (s *Stats) addDropped()       { s.packetsDropped.Add(1) }

// Snapshot returns a consistent-enough point-in-time copy of the counters.
func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		PacketsTotal:    s.packetsTotal.Load(),
		PacketsBypassed: s.packetsBypassed.Load(),
		PacketsDropped:  s.packetsDropped.Load(),
		BytesTotal:      s.bytesTotal.Load(),
	}
}

// Reset zeroes every counter.
func (s *Stats) Reset() {
	s.packetsTotal.Store(0)
	s.packetsBypassed.Store(0)
	s.packetsDropped.Store(0)
	s.bytesTotal.Store(0)
}
