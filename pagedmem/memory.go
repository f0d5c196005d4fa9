// Package pagedmem implements the paged PVM memory engine: a sparse table
// of fixed, permission-bearing pages reached through a page table.
//
// Every access resolves the address to a page, faults if it is missing,
// and either hands back a slice into the page (read) or writes through it
// after a permission check (write). No locking is needed: a Memory is
// single-threaded and exclusively owned by its interpreter.
package pagedmem

import (
	"encoding/binary"

	"github.com/jamzig/jamzig-sub004/addrspace"
	"github.com/jamzig/jamzig-sub004/memerr"
	"github.com/jamzig/jamzig-sub004/memslice"
	"github.com/jamzig/jamzig-sub004/memsnap"
	"github.com/jamzig/jamzig-sub004/pagetable"
	"github.com/jamzig/jamzig-sub004/pvmstats"
)

// Memory is the paged engine's address space.
type Memory struct {
	table *pagetable.Table

	roBase    uint32
	roSize    uint32 // page-aligned extent actually backing the region
	heapBase  uint32
	inputBase uint32
	inputSize uint32 // page-aligned extent actually backing the region

	stackBase   uint32 // top
	stackBottom uint32

	heapTop           uint32
	heapSizeInPages   int
	dynamicAllocation bool
	heapAllocationLimit *uint64

	lastViolation *memerr.Violation
	stats         pvmstats.Counters
}

// Options mirrors the construction parameters accepted by the
// constructors below.
type Options struct {
	ReadOnlyBytes       []byte
	ReadWriteBytes      []byte
	InputBytes          []byte
	StackBytes          uint32
	HeapPages           uint32
	DynamicAllocation   bool
	HeapAllocationLimit *uint64
}

// NewEmpty returns a Memory with no allocated pages and zero region sizes
// ("Empty" construction variant).
func NewEmpty(dynamicAllocation bool) *Memory {
	return &Memory{
		table:             &pagetable.Table{},
		roBase:            addrspace.ROBase,
		heapBase:          addrspace.HeapBase(0),
		inputBase:         addrspace.InputBase(),
		stackBase:         addrspace.StackBase(),
		stackBottom:       addrspace.StackBase(),
		dynamicAllocation: dynamicAllocation,
	}
}

// NewWithCapacity validates the layout equation and allocates the four
// fixed page ranges — read-only, heap, input, stack — all zeroed, in that
// order, setting heap_top to the heap base ("With capacity" variant).
func NewWithCapacity(opts Options) (*Memory, error) {
	roSize := uint64(len(opts.ReadOnlyBytes))
	inputSize := uint64(len(opts.InputBytes))
	stackPages := uint32(addrspace.BytesToPages(uint64(opts.StackBytes)))

	layout, err := addrspace.NewLayout(roSize, inputSize, stackPages, opts.HeapPages)
	if err != nil {
		return nil, err
	}

	m := &Memory{
		table:               &pagetable.Table{},
		roBase:              layout.ROBase,
		roSize:              layout.ROAllocSize,
		heapBase:            layout.HeapBase,
		inputBase:           layout.InputBase,
		inputSize:           layout.InputAllocSize,
		stackBase:           layout.StackBase,
		stackBottom:         layout.StackBottom,
		dynamicAllocation:   opts.DynamicAllocation,
		heapAllocationLimit: opts.HeapAllocationLimit,
	}

	roPages := int(addrspace.BytesToPages(roSize))
	if err := m.table.Allocate(layout.ROBase, roPages, pagetable.ReadOnly); err != nil {
		return nil, err
	}
	if err := m.table.Allocate(layout.HeapBase, int(opts.HeapPages), pagetable.ReadWrite); err != nil {
		return nil, err
	}
	inputPages := int(addrspace.BytesToPages(inputSize))
	if err := m.table.Allocate(layout.InputBase, inputPages, pagetable.ReadOnly); err != nil {
		return nil, err
	}
	if err := m.table.Allocate(layout.StackBottom, int(stackPages), pagetable.ReadWrite); err != nil {
		return nil, err
	}

	m.heapTop = layout.HeapBase
	return m, nil
}

// New builds on NewWithCapacity, then writes the supplied read-only,
// read-write, and input payloads into their regions and advances heap_top
// to the top of the initial heap allotment ("With data" variant).
func New(opts Options) (*Memory, error) {
	m, err := NewWithCapacity(opts)
	if err != nil {
		return nil, err
	}
	if len(opts.ReadOnlyBytes) > 0 {
		if err := m.initMemory(m.roBase, opts.ReadOnlyBytes); err != nil {
			return nil, err
		}
	}
	if len(opts.ReadWriteBytes) > 0 {
		if err := m.initMemory(m.heapBase, opts.ReadWriteBytes); err != nil {
			return nil, err
		}
	}
	if len(opts.InputBytes) > 0 {
		if err := m.initMemory(m.inputBase, opts.InputBytes); err != nil {
			return nil, err
		}
	}
	m.heapTop = m.heapBase + opts.HeapPages*addrspace.PageSize
	return m, nil
}

// HeapStart returns the fixed base of the heap region.
func (m *Memory) HeapStart() uint32 { return m.heapBase }

// LastViolation returns the most recently recorded fault, or nil.
func (m *Memory) LastViolation() *memerr.Violation { return m.lastViolation }

// Stats returns a snapshot of this engine's diagnostic counters.
func (m *Memory) Stats() pvmstats.Snapshot { return m.stats.Snapshot() }

func (m *Memory) recordFault(kind memerr.ViolationKind, addr, size uint32, pageBase *uint32) error {
	v := memerr.Violation{Kind: kind, Address: addr, AttemptedSize: size, PageBase: pageBase}
	m.lastViolation = &v
	m.stats.Fault(kind)
	return &memerr.PageFault{Violation: v}
}

// faultNotAllocated records a NonAllocated fault at the start of the page
// containing addr. The address is a hint: the flat engine reports
// align_down(addr+size) for the same kind of fault.
func (m *Memory) faultNotAllocated(addr, size uint32) error {
	return m.recordFault(memerr.NonAllocated, addrspace.AlignDownPage(addr), size, nil)
}

func (m *Memory) faultWriteProtected(page *pagetable.Page, size uint32) error {
	base := page.Base
	return m.recordFault(memerr.WriteProtection, page.Base, size, &base)
}

// ReadIntRaw performs the little-endian load of width bytes at addr,
// transparently crossing at most one page boundary.
func (m *Memory) ReadIntRaw(addr uint32, width addrspace.Width) (uint64, error) {
	size := uint32(width)
	cur, ok := m.table.Find(addr)
	if !ok {
		return 0, m.faultNotAllocated(addr, size)
	}
	page := cur.Page()
	off := addr - page.Base
	firstLen := addrspace.PageSize - off

	var buf [8]byte
	if size <= firstLen {
		copy(buf[:size], page.Data[off:off+size])
	} else {
		copy(buf[:firstLen], page.Data[off:])
		nc, ok := cur.NextContiguous()
		if !ok {
			return 0, m.faultNotAllocated(page.End(), size-firstLen)
		}
		copy(buf[firstLen:size], nc.Page().Data[:size-firstLen])
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

// WriteIntRaw performs a two-phase little-endian store of width bytes at
// addr: every page the store will touch is checked for writability before
// any byte is written.
func (m *Memory) WriteIntRaw(addr uint32, width addrspace.Width, value uint64) error {
	size := uint32(width)
	var raw [8]byte
	binary.LittleEndian.PutUint64(raw[:], value)

	cur, ok := m.table.Find(addr)
	if !ok {
		return m.faultNotAllocated(addr, size)
	}
	page := cur.Page()
	off := addr - page.Base
	firstLen := addrspace.PageSize - off

	var second *pagetable.Page
	if size > firstLen {
		nc, ok := cur.NextContiguous()
		if !ok {
			return m.faultNotAllocated(page.End(), size-firstLen)
		}
		second = nc.Page()
	}

	if !page.Flags.Writable() {
		return m.faultWriteProtected(page, size)
	}
	if second != nil && !second.Flags.Writable() {
		return m.faultWriteProtected(second, size-firstLen)
	}

	if second == nil {
		copy(page.Data[off:off+size], raw[:size])
	} else {
		copy(page.Data[off:], raw[:firstLen])
		copy(second.Data[:size-firstLen], raw[firstLen:size])
	}
	return nil
}

// ReadSlice returns a view over n bytes starting at addr. When the range
// lies within one page it borrows directly into page storage; otherwise it
// allocates an owned buffer and copies the pages in order. n == 0 returns
// an empty borrow.
func (m *Memory) ReadSlice(addr uint32, n int) (memslice.Slice, error) {
	if n == 0 {
		return memslice.Empty(), nil
	}
	cur, ok := m.table.Find(addr)
	if !ok {
		return memslice.Slice{}, m.faultNotAllocated(addr, uint32(n))
	}
	page := cur.Page()
	off := addr - page.Base
	avail := int(addrspace.PageSize - off)
	if n <= avail {
		return memslice.Borrowed(page.Data[off : off+uint32(n)]), nil
	}

	buf := make([]byte, n)
	copied := 0
	for copied < n {
		p := cur.Page()
		o := addr + uint32(copied) - p.Base
		chunk := int(addrspace.PageSize - o)
		if remaining := n - copied; chunk > remaining {
			chunk = remaining
		}
		copy(buf[copied:copied+chunk], p.Data[o:o+uint32(chunk)])
		copied += chunk
		if copied == n {
			break
		}
		nc, ok := cur.NextContiguous()
		if !ok {
			return memslice.Slice{}, m.faultNotAllocated(p.End(), uint32(n-copied))
		}
		cur = nc
	}
	return memslice.Owned(buf), nil
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

// WriteSlice writes data across however many pages it spans, in order.
// Each page is checked for writability only when first touched — unlike
// WriteIntRaw's upfront two-phase check, this asymmetry is observed
// behavior rather than a defect to correct. A fault partway through
// leaves earlier pages' writes in place.
func (m *Memory) WriteSlice(addr uint32, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	n := uint32(len(data))
	cur, ok := m.table.Find(addr)
	if !ok {
		return m.faultNotAllocated(addr, n)
	}

	var written uint32
	for written < n {
		page := cur.Page()
		off := addr + written - page.Base
		if !page.Flags.Writable() {
			return m.faultWriteProtected(page, n-written)
		}
		chunk := addrspace.PageSize - off
		if remaining := n - written; chunk > remaining {
			chunk = remaining
		}
		copy(page.Data[off:off+chunk], data[written:written+chunk])
		written += chunk
		if written == n {
			break
		}
		nc, ok := cur.NextContiguous()
		if !ok {
			return m.faultNotAllocated(page.End(), n-written)
		}
		cur = nc
	}
	return nil
}

// initMemory writes data across however many pages it spans, bypassing the
// writability check entirely. It is used only during construction, to seed
// the read-only, heap, and input regions.
func (m *Memory) initMemory(addr uint32, data []byte) error {
	n := uint32(len(data))
	cur, ok := m.table.Find(addr)
	if !ok {
		return m.faultNotAllocated(addr, n)
	}
	var written uint32
	for written < n {
		page := cur.Page()
		off := addr + written - page.Base
		chunk := addrspace.PageSize - off
		if remaining := n - written; chunk > remaining {
			chunk = remaining
		}
		copy(page.Data[off:off+chunk], data[written:written+chunk])
		written += chunk
		if written == n {
			break
		}
		nc, ok := cur.NextContiguous()
		if !ok {
			return m.faultNotAllocated(page.End(), n-written)
		}
		cur = nc
	}
	return nil
}

// IsRangeValid reports whether any page overlapping [addr, addr+n) is
// currently allocated. n == 0 is always false.
func (m *Memory) IsRangeValid(addr, n uint32) bool {
	if n == 0 {
		return false
	}
	start := addrspace.AlignDownPage(addr)
	end := addr + n
	for base := start; base < end; base += addrspace.PageSize {
		if _, ok := m.table.FindIndex(base); ok {
			return true
		}
	}
	return false
}

// Sbrk advances heap_top by n bytes, allocating zeroed read-write pages for
// every new page boundary crossed, and returns the previous heap_top. It
// returns 0 on overflow, on a grow that would make new_top equal to or
// past stack_bottom, if dynamic allocation is disabled and growth would
// require new pages, or if the pages Sbrk itself has granted so far would
// exceed an optional heap_allocation_limit testing aid — the
// construction-time HeapPages allotment is not counted against that
// limit.
func (m *Memory) Sbrk(n uint32) uint32 {
	if n == 0 {
		return m.heapTop
	}
	if m.heapTop == 0 {
		m.heapTop = m.heapBase
	}
	newTop := uint64(m.heapTop) + uint64(n)
	if newTop >= uint64(m.stackBottom) {
		return 0
	}

	curBoundary := addrspace.NextPageBoundary(m.heapTop)
	needsGrowth := newTop > uint64(curBoundary)
	if needsGrowth {
		if !m.dynamicAllocation {
			return 0
		}
		newBoundary := addrspace.NextPageBoundary(uint32(newTop))
		grownPages := int((newBoundary - curBoundary) / addrspace.PageSize)
		if m.heapAllocationLimit != nil {
			grantedAfter := uint64(m.heapSizeInPages+grownPages) * addrspace.PageSize
			if grantedAfter > *m.heapAllocationLimit {
				return 0
			}
		}
		if err := m.table.Allocate(curBoundary, grownPages, pagetable.ReadWrite); err != nil {
			return 0
		}
		m.heapSizeInPages += grownPages
	}

	old := m.heapTop
	m.heapTop = uint32(newTop)
	m.stats.Sbrk(n)
	return old
}

// DeepClone produces an independent Memory with per-page data copied and
// identical sizing/violation fields. A stored last-violation's page
// reference, if present, is re-bound to the cloned page by matching base
// address.
func (m *Memory) DeepClone() (*Memory, error) {
	clone := &Memory{
		table:               m.table.Clone(),
		roBase:              m.roBase,
		roSize:              m.roSize,
		heapBase:            m.heapBase,
		inputBase:           m.inputBase,
		inputSize:           m.inputSize,
		stackBase:           m.stackBase,
		stackBottom:         m.stackBottom,
		heapTop:             m.heapTop,
		heapSizeInPages:     m.heapSizeInPages,
		dynamicAllocation:   m.dynamicAllocation,
		heapAllocationLimit: m.heapAllocationLimit,
	}
	if m.lastViolation != nil {
		v := *m.lastViolation
		if v.PageBase != nil {
			base := *v.PageBase
			v.PageBase = &base
		}
		clone.lastViolation = &v
	}
	return clone, nil
}

// Snapshot returns a MemorySnapShot with one region per allocated page,
// sorted ascending by address.
func (m *Memory) Snapshot() (memsnap.Snapshot, error) {
	pages := m.table.Pages()
	regions := make([]memsnap.Region, len(pages))
	for i, p := range pages {
		data := make([]byte, len(p.Data))
		copy(data, p.Data)
		regions[i] = memsnap.Region{Address: p.Base, Data: data, Writable: p.Flags.Writable()}
	}
	snap := memsnap.Snapshot{Regions: regions}
	snap.Sort()
	return snap, nil
}
