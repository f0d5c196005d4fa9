// Package pvmstats provides lightweight, always-cheap counters for the two
// memory engines: page faults by kind and sbrk activity. Counters are
// unconditional rather than gated behind a build flag — atomic increments
// are cheap enough for a single-threaded VM, and the numbers are useful
// test/debug signal on every build.
package pvmstats

import (
	"fmt"
	"sync/atomic"

	"github.com/jamzig/jamzig-sub004/memerr"
)

// Counters accumulates activity for one Memory instance. The zero value is
// ready to use.
type Counters struct {
	writeProtection uint64
	accessViolation uint64
	nonAllocated    uint64
	sbrkCalls       uint64
	sbrkBytes       uint64
}

// Fault records one page fault of the given kind.
func (c *Counters) Fault(kind memerr.ViolationKind) {
	switch kind {
	case memerr.WriteProtection:
		atomic.AddUint64(&c.writeProtection, 1)
	case memerr.AccessViolation:
		atomic.AddUint64(&c.accessViolation, 1)
	case memerr.NonAllocated:
		atomic.AddUint64(&c.nonAllocated, 1)
	}
}

// Sbrk records one successful sbrk(n) call that granted n bytes.
func (c *Counters) Sbrk(n uint32) {
	atomic.AddUint64(&c.sbrkCalls, 1)
	atomic.AddUint64(&c.sbrkBytes, uint64(n))
}

// Snapshot is a point-in-time copy of a Counters value.
type Snapshot struct {
	WriteProtectionFaults uint64
	AccessViolationFaults uint64
	NonAllocatedFaults    uint64
	SbrkCalls             uint64
	SbrkBytesGranted      uint64
}

// Snapshot returns the current counter values.
func (c *Counters) Snapshot() Snapshot {
	return Snapshot{
		WriteProtectionFaults: atomic.LoadUint64(&c.writeProtection),
		AccessViolationFaults: atomic.LoadUint64(&c.accessViolation),
		NonAllocatedFaults:    atomic.LoadUint64(&c.nonAllocated),
		SbrkCalls:             atomic.LoadUint64(&c.sbrkCalls),
		SbrkBytesGranted:      atomic.LoadUint64(&c.sbrkBytes),
	}
}

// String renders the snapshot for diagnostic logging.
func (s Snapshot) String() string {
	return fmt.Sprintf(
		"faults{write_protection=%d access_violation=%d non_allocated=%d} sbrk{calls=%d bytes=%d}",
		s.WriteProtectionFaults, s.AccessViolationFaults, s.NonAllocatedFaults,
		s.SbrkCalls, s.SbrkBytesGranted,
	)
}
