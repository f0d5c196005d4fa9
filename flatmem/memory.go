// Package flatmem implements the flat PVM memory engine: four contiguous,
// page-aligned byte buffers — one per region — addressed by a cascaded
// range check instead of a page table.
//
// Where the paged engine answers "which page (if any) covers this
// address?" with a binary search, the flat engine answers "which region
// (if any) covers this address?" with four bounds checks in a fixed order:
// stack, heap, read-only, input. Reads and writes never split across a
// page boundary inside a region the way the paged engine's cursor does,
// because each region here is one dense allocation rather than a
// collection of independently placed pages — a cross-region access is
// simply out of bounds.
package flatmem

import (
	"encoding/binary"

	"github.com/jamzig/jamzig-sub004/addrspace"
	"github.com/jamzig/jamzig-sub004/memerr"
	"github.com/jamzig/jamzig-sub004/memslice"
	"github.com/jamzig/jamzig-sub004/memsnap"
	"github.com/jamzig/jamzig-sub004/pvmstats"
)

// region is one of the engine's four dense, contiguous buffers.
type region struct {
	base     uint32
	data     []byte
	writable bool
}

func (r *region) end() uint32 { return r.base + uint32(len(r.data)) }

func (r *region) contains(addr, size uint32) bool {
	if len(r.data) == 0 {
		return false
	}
	return addr >= r.base && uint64(addr)+uint64(size) <= uint64(r.end())
}

// Memory is the flat engine's address space: four fixed regions plus a
// movable heap_top watermark within the heap region's backing buffer.
type Memory struct {
	ro    region
	heap  region
	input region
	stack region

	heapBase          uint32
	heapTop           uint32
	heapPagesGranted  int // pages added by Sbrk, excluding the construction-time HeapPages allotment
	dynamicAllocation bool
	heapAllocationLimit *uint64

	lastViolation *memerr.Violation
	stats         pvmstats.Counters
}

// Options mirrors pagedmem.Options; the two engines are built from the
// same construction parameters.
type Options struct {
	ReadOnlyBytes       []byte
	ReadWriteBytes      []byte
	InputBytes          []byte
	StackBytes          uint32
	HeapPages           uint32
	DynamicAllocation   bool
	HeapAllocationLimit *uint64
}

// NewEmpty returns a Memory with all four regions empty.
func NewEmpty(dynamicAllocation bool) *Memory {
	return &Memory{
		heapBase:          addrspace.HeapBase(0),
		dynamicAllocation: dynamicAllocation,
	}
}

// NewWithCapacity validates the layout equation and allocates the four
// fixed regions, all zeroed, with heap_top set to the heap base.
func NewWithCapacity(opts Options) (*Memory, error) {
	roSize := uint64(len(opts.ReadOnlyBytes))
	inputSize := uint64(len(opts.InputBytes))
	stackPages := uint32(addrspace.BytesToPages(uint64(opts.StackBytes)))

	layout, err := addrspace.NewLayout(roSize, inputSize, stackPages, opts.HeapPages)
	if err != nil {
		return nil, err
	}

	m := &Memory{
		ro:                  region{base: layout.ROBase, data: make([]byte, layout.ROAllocSize), writable: false},
		heap:                region{base: layout.HeapBase, data: make([]byte, uint64(opts.HeapPages)*addrspace.PageSize), writable: true},
		input:               region{base: layout.InputBase, data: make([]byte, layout.InputAllocSize), writable: false},
		stack:               region{base: layout.StackBottom, data: make([]byte, uint64(stackPages)*addrspace.PageSize), writable: true},
		heapBase:            layout.HeapBase,
		dynamicAllocation:   opts.DynamicAllocation,
		heapAllocationLimit: opts.HeapAllocationLimit,
	}
	m.heapTop = layout.HeapBase
	return m, nil
}

// New builds on NewWithCapacity, then copies the supplied payloads into
// their regions and advances heap_top to the top of the initial heap
// allotment.
func New(opts Options) (*Memory, error) {
	m, err := NewWithCapacity(opts)
	if err != nil {
		return nil, err
	}
	copy(m.ro.data, opts.ReadOnlyBytes)
	copy(m.heap.data, opts.ReadWriteBytes)
	copy(m.input.data, opts.InputBytes)
	m.heapTop = m.heapBase + opts.HeapPages*addrspace.PageSize
	return m, nil
}

// HeapStart returns the fixed base of the heap region.
func (m *Memory) HeapStart() uint32 { return m.heapBase }

// LastViolation returns the most recently recorded fault, or nil.
func (m *Memory) LastViolation() *memerr.Violation { return m.lastViolation }

// Stats returns a snapshot of this engine's diagnostic counters.
func (m *Memory) Stats() pvmstats.Snapshot { return m.stats.Snapshot() }

func (m *Memory) recordFault(kind memerr.ViolationKind, addr, size uint32) error {
	v := memerr.Violation{Kind: kind, Address: addr, AttemptedSize: size}
	m.lastViolation = &v
	m.stats.Fault(kind)
	return &memerr.PageFault{Violation: v}
}

// regions in cascade-check order: stack, heap, read-only, input.
func (m *Memory) regions() [4]*region {
	return [4]*region{&m.stack, &m.heap, &m.ro, &m.input}
}

// resolve finds the region covering [addr, addr+size). If checkWritable is
// set, a hit on a non-writable region is reported as WriteProtection;
// otherwise any region hit succeeds regardless of permission. A miss is
// reported as NonAllocated at align_down(addr+size); that address is a
// hint, since the paged engine reports align_down(addr) instead.
func (m *Memory) resolve(addr, size uint32, checkWritable bool) (*region, error) {
	for _, r := range m.regions() {
		if r.contains(addr, size) {
			if checkWritable && !r.writable {
				return nil, m.recordFault(memerr.WriteProtection, r.base, size)
			}
			return r, nil
		}
	}
	faultAddr := addrspace.AlignDownPage(addr + size)
	return nil, m.recordFault(memerr.NonAllocated, faultAddr, size)
}

// ReadIntRaw performs the little-endian load of width bytes at addr. The
// flat engine never splits a load across regions: the whole access must
// fall inside one of the four buffers.
func (m *Memory) ReadIntRaw(addr uint32, width addrspace.Width) (uint64, error) {
	size := uint32(width)
	r, err := m.resolve(addr, size, false)
	if err != nil {
		return 0, err
	}
	off := addr - r.base
	var buf [8]byte
	copy(buf[:size], r.data[off:off+size])
	return binary.LittleEndian.Uint64(buf[:]), nil
}

// WriteIntRaw performs the little-endian store of width bytes at addr,
// after confirming the covering region is writable.
func (m *Memory) WriteIntRaw(addr uint32, width addrspace.Width, value uint64) error {
	size := uint32(width)
	r, err := m.resolve(addr, size, true)
	if err != nil {
		return err
	}
	var raw [8]byte
	binary.LittleEndian.PutUint64(raw[:], value)
	off := addr - r.base
	copy(r.data[off:off+size], raw[:size])
	return nil
}

// ReadSlice returns a borrowed view over n bytes starting at addr; the
// flat engine's dense regions make every in-bounds read a direct alias,
// never an owned copy. n == 0 returns an empty borrow.
func (m *Memory) ReadSlice(addr uint32, n int) (memslice.Slice, error) {
	if n == 0 {
		return memslice.Empty(), nil
	}
	r, err := m.resolve(addr, uint32(n), false)
	if err != nil {
		return memslice.Slice{}, err
	}
	off := addr - r.base
	return memslice.Borrowed(r.data[off : off+uint32(n)]), nil
}

// ReadSliceOwned is like ReadSlice but always returns an independently
// allocated copy.
func (m *Memory) ReadSliceOwned(addr uint32, n int) (memslice.Slice, error) {
	s, err := m.ReadSlice(addr, n)
	if err != nil {
		return memslice.Slice{}, err
	}
	return memslice.Owned(s.TakeOwnership()), nil
}

// WriteSlice writes data into the single region covering its whole range,
// after confirming that region is writable.
func (m *Memory) WriteSlice(addr uint32, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	n := uint32(len(data))
	r, err := m.resolve(addr, n, true)
	if err != nil {
		return err
	}
	off := addr - r.base
	copy(r.data[off:off+n], data)
	return nil
}

// IsRangeValid reports whether [addr, addr+n) falls entirely within one of
// the four regions. n == 0 is always false.
func (m *Memory) IsRangeValid(addr, n uint32) bool {
	if n == 0 {
		return false
	}
	for _, r := range m.regions() {
		if r.contains(addr, n) {
			return true
		}
	}
	return false
}

// Sbrk advances heap_top by n bytes, growing the heap region's backing
// buffer up to the page boundary at or above the new heap_top, and returns
// the previous heap_top.
// The buffer's length always equals the page-aligned allocated extent (so
// Snapshot reports the same page boundaries the paged engine would);
// growth over-allocates spare capacity to amortize repeated small sbrk
// calls without repeated copies. It returns 0 on overflow, on a grow that
// would make new_top equal to or past the stack region's base (the
// stack bottom), if dynamic
// allocation is disabled and growth would require new pages, or if the
// pages Sbrk itself has granted so far would exceed an optional
// heap_allocation_limit testing aid — the construction-time HeapPages
// allotment is not counted against that limit.
func (m *Memory) Sbrk(n uint32) uint32 {
	if n == 0 {
		return m.heapTop
	}
	if m.heapTop == 0 {
		m.heapTop = m.heapBase
	}
	newTop := uint64(m.heapTop) + uint64(n)
	if newTop >= uint64(m.stack.base) {
		return 0
	}

	allocatedEnd := uint64(m.heap.base) + uint64(len(m.heap.data))
	if newTop > allocatedEnd {
		if !m.dynamicAllocation {
			return 0
		}
		newBoundary := uint64(addrspace.NextPageBoundary(uint32(newTop)))
		grownPages := int((newBoundary - allocatedEnd) / addrspace.PageSize)
		if m.heapAllocationLimit != nil {
			grantedAfter := uint64(m.heapPagesGranted+grownPages) * addrspace.PageSize
			if grantedAfter > *m.heapAllocationLimit {
				return 0
			}
		}
		needed := newBoundary - uint64(m.heap.base)
		if needed > uint64(cap(m.heap.data)) {
			grown := make([]byte, needed, needed*2)
			copy(grown, m.heap.data)
			m.heap.data = grown
		} else {
			m.heap.data = m.heap.data[:needed]
		}
		m.heapPagesGranted += grownPages
	}

	old := m.heapTop
	m.heapTop = uint32(newTop)
	m.stats.Sbrk(n)
	return old
}

// DeepClone produces an independent Memory with per-region data copied and
// identical sizing/violation fields.
func (m *Memory) DeepClone() (*Memory, error) {
	clone := &Memory{
		ro:                  m.ro.clone(),
		heap:                m.heap.clone(),
		input:               m.input.clone(),
		stack:               m.stack.clone(),
		heapBase:            m.heapBase,
		heapTop:             m.heapTop,
		heapPagesGranted:    m.heapPagesGranted,
		dynamicAllocation:   m.dynamicAllocation,
		heapAllocationLimit: m.heapAllocationLimit,
	}
	if m.lastViolation != nil {
		v := *m.lastViolation
		clone.lastViolation = &v
	}
	return clone, nil
}

func (r region) clone() region {
	data := make([]byte, len(r.data))
	copy(data, r.data)
	return region{base: r.base, data: data, writable: r.writable}
}

// Snapshot returns a memsnap.Snapshot chunked into page-sized regions
// across all four buffers, sorted ascending by address. Chunking every
// region the same way the paged engine's page table does keeps the two
// engines' snapshots directly comparable address-by-address.
func (m *Memory) Snapshot() (memsnap.Snapshot, error) {
	var regions []memsnap.Region
	for _, r := range []region{m.ro, m.heap, m.input, m.stack} {
		for off := 0; off < len(r.data); off += addrspace.PageSize {
			end := off + addrspace.PageSize
			if end > len(r.data) {
				end = len(r.data)
			}
			data := make([]byte, end-off)
			copy(data, r.data[off:end])
			regions = append(regions, memsnap.Region{
				Address:  r.base + uint32(off),
				Data:     data,
				Writable: r.writable,
			})
		}
	}
	snap := memsnap.Snapshot{Regions: regions}
	snap.Sort()
	return snap, nil
}
