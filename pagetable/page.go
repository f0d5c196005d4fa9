// Package pagetable implements the paged engine's sparse, permission-bearing
// page store: a Page is a fixed-size buffer with a base address and a
// permission flag; a Table is the sorted collection of Pages a client
// allocates, frees, and navigates.
//
// Pages are kept in a flat, address-sorted slice rather than a tree: the
// expected page count per address space is small enough that a binary
// search over a slice beats the constant overhead of a balanced tree, and
// the table never needs reference counting since each Memory owns its
// pages outright.
package pagetable

import (
	"sort"

	"github.com/jamzig/jamzig-sub004/addrspace"
	"github.com/jamzig/jamzig-sub004/memerr"
)

// Flags is a page's permission flag.
type Flags int

const (
	ReadOnly Flags = iota
	ReadWrite
)

// Writable reports whether f permits stores.
func (f Flags) Writable() bool { return f == ReadWrite }

// Page is one fixed-size, permission-bearing unit of paged-engine storage.
type Page struct {
	Base  uint32
	Data  []byte
	Flags Flags
}

func newPage(base uint32, flags Flags) *Page {
	return &Page{Base: base, Data: make([]byte, addrspace.PageSize), Flags: flags}
}

// Clone returns an independent copy of p, used by Table.Clone for
// deep-cloning a Memory.
func (p *Page) Clone() *Page {
	data := make([]byte, len(p.Data))
	copy(data, p.Data)
	return &Page{Base: p.Base, Data: data, Flags: p.Flags}
}

// End returns the address one past the page.
func (p *Page) End() uint32 { return p.Base + addrspace.PageSize }

// Table is a sorted collection of non-overlapping Pages.
type Table struct {
	pages []*Page
}

// Len reports the number of allocated pages.
func (t *Table) Len() int { return len(t.pages) }

// Pages returns the pages in ascending base-address order. Callers must
// not mutate the returned slice; it aliases the table's storage.
func (t *Table) Pages() []*Page { return t.pages }

func rangesOverlap(aStart, aEnd, bStart, bEnd uint32) bool {
	return aStart < bEnd && bStart < aEnd
}

// Allocate creates n fresh, zeroed pages of the given permission starting
// at the page-aligned address start, and re-sorts the table by base
// address. It fails with UnalignedAddress if start is not a multiple of
// PageSize, or PageOverlap if any existing page would overlap the new
// range. n == 0 is a no-op.
func (t *Table) Allocate(start uint32, n int, flags Flags) error {
	if n == 0 {
		return nil
	}
	if start%addrspace.PageSize != 0 {
		return memerr.UnalignedAddress(start)
	}
	end := start + uint32(n)*addrspace.PageSize
	for _, p := range t.pages {
		if rangesOverlap(p.Base, p.End(), start, end) {
			return memerr.PageOverlap(start, n)
		}
	}
	fresh := make([]*Page, n)
	for i := 0; i < n; i++ {
		fresh[i] = newPage(start+uint32(i)*addrspace.PageSize, flags)
	}
	t.pages = append(t.pages, fresh...)
	sort.Slice(t.pages, func(i, j int) bool { return t.pages[i].Base < t.pages[j].Base })
	return nil
}

// Free removes every page whose range intersects [start, start+n*PageSize).
// Freeing a range with no allocated pages is a no-op.
func (t *Table) Free(start uint32, n int) {
	if n == 0 {
		return
	}
	end := start + uint32(n)*addrspace.PageSize
	kept := t.pages[:0:0]
	for _, p := range t.pages {
		if rangesOverlap(p.Base, p.End(), start, end) {
			continue
		}
		kept = append(kept, p)
	}
	t.pages = kept
}

// FindIndex binary-searches for the page containing address.
func (t *Table) FindIndex(address uint32) (int, bool) {
	base := addrspace.AlignDownPage(address)
	i := sort.Search(len(t.pages), func(i int) bool { return t.pages[i].Base >= base })
	if i < len(t.pages) && t.pages[i].Base == base {
		return i, true
	}
	return 0, false
}

// Find returns a Cursor over the page containing address.
func (t *Table) Find(address uint32) (*Cursor, bool) {
	idx, ok := t.FindIndex(address)
	if !ok {
		return nil, false
	}
	return &Cursor{table: t, index: idx}, true
}

// Clone returns an independent copy of the table with every page
// deep-copied, preserving sort order.
func (t *Table) Clone() *Table {
	cp := make([]*Page, len(t.pages))
	for i, p := range t.pages {
		cp[i] = p.Clone()
	}
	return &Table{pages: cp}
}

// Cursor navigates the table by index. A Cursor must not be retained
// across a call that may re-sort or reallocate the table (Allocate/Free);
// re-resolve with Find after any such mutation.
type Cursor struct {
	table *Table
	index int
}

// Page returns the page the cursor currently points at.
func (c *Cursor) Page() *Page { return c.table.pages[c.index] }

// Next returns a cursor over the following page in address order, or false
// if this is the last page.
func (c *Cursor) Next() (*Cursor, bool) {
	if c.index+1 >= len(c.table.pages) {
		return nil, false
	}
	return &Cursor{table: c.table, index: c.index + 1}, true
}

// NextContiguous is like Next but only succeeds if the following page's
// base address is exactly PageSize higher than this one's.
func (c *Cursor) NextContiguous() (*Cursor, bool) {
	nc, ok := c.Next()
	if !ok {
		return nil, false
	}
	if nc.Page().Base != c.Page().Base+addrspace.PageSize {
		return nil, false
	}
	return nc, true
}
