// Package memslice provides Slice, a read view over engine memory that is
// either a borrow of engine-owned storage or an owned copy allocated for a
// cross-page/cross-region read.
//
// A contiguous, single-page read can alias the page's backing array
// directly; a read spanning more than one page or region has no single
// backing array to alias, so it must copy into a fresh buffer. Slice makes
// that choice explicit in the return type instead of hiding it behind a
// streaming copy loop. Because this runs under the Go garbage collector,
// "dropping" a slice (borrowed or owned) needs no explicit release: there
// is no Deinit/Free method, and TakeOwnership never has to coordinate with
// an allocator's free list.
package memslice

// Slice is a read view over memory. A borrowed Slice aliases the engine's
// backing storage directly; an owned Slice holds an independently
// allocated copy (produced when a read crosses more than one page/region).
type Slice struct {
	data  []byte
	owned bool
}

// Borrowed wraps b as a view that aliases engine storage.
func Borrowed(b []byte) Slice {
	return Slice{data: b}
}

// Owned wraps b as an independently allocated view.
func Owned(b []byte) Slice {
	return Slice{data: b, owned: true}
}

// Empty returns a zero-length borrowed slice, the canonical result of a
// zero-length read.
func Empty() Slice {
	return Slice{}
}

// Bytes returns the underlying bytes. For a borrowed Slice this aliases
// engine storage; callers must not retain it past the engine's lifetime or
// across a mutating call.
func (s Slice) Bytes() []byte { return s.data }

// Len reports the number of bytes in the view.
func (s Slice) Len() int { return len(s.data) }

// IsOwned reports whether this view holds an independent allocation.
func (s Slice) IsOwned() bool { return s.owned }

// TakeOwnership returns the view's bytes as an independent allocation: a
// borrow is duplicated, while an owned Slice hands back its own buffer
// without copying. The idiomatic use is
// s = Owned(s.TakeOwnership()) to upgrade a borrow in place.
func (s Slice) TakeOwnership() []byte {
	if s.owned {
		return s.data
	}
	cp := make([]byte, len(s.data))
	copy(cp, s.data)
	return cp
}
