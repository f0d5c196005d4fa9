package flatmem

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jamzig/jamzig-sub004/addrspace"
)

// newTestMemory builds a Memory with a tiny, self-consistent layout entirely
// under the caller's control, sidestepping the real address space's
// multi-gigabyte heap-to-stack gap.
func newTestMemory(heapBase, heapTop, stackBase uint32, dynamic bool) *Memory {
	heapCap := addrspace.NextPageBoundary(heapTop+addrspace.PageSize) - heapBase
	return &Memory{
		heap:              region{base: heapBase, data: make([]byte, heapTop-heapBase, heapCap), writable: true},
		stack:             region{base: stackBase, data: make([]byte, addrspace.PageSize), writable: true},
		heapBase:          heapBase,
		heapTop:           heapTop,
		dynamicAllocation: dynamic,
	}
}

func TestSbrkRejectsExactStackBoundary(t *testing.T) {
	heapBase := uint32(0x20000)
	stackBase := heapBase + 3*addrspace.PageSize
	heapTop := stackBase - 8
	m := newTestMemory(heapBase, heapTop, stackBase, true)

	got := m.Sbrk(8) // would set new_top == stack.base exactly
	assert.Equal(t, uint32(0), got)
	assert.Equal(t, heapTop, m.heapTop, "heap_top must be unchanged when sbrk would land exactly on the stack boundary")
}
