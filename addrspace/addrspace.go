// Package addrspace defines the PVM's fixed 32-bit address-space layout:
// zone and page sizes, the statically placed regions, and the alignment
// arithmetic both memory engines share.
package addrspace

import (
	"github.com/jamzig/jamzig-sub004/memerr"
)

// Fixed, bit-exact address-space constants.
const (
	// PageSize is Z_P, the unit of page-table granularity.
	PageSize = 0x1000
	// ZoneSize is Z_Z, the unit used to compute region base addresses.
	ZoneSize = 0x10000
	// InputZoneSize is Z_I, the maximum size of the input region.
	InputZoneSize = 0x1000000

	// ROBase is the fixed base of the read-only region.
	ROBase uint32 = ZoneSize

	// addressSpaceSize is 2^32, one past the highest legal address.
	addressSpaceSize = uint64(0xFFFFFFFF) + 1
	maxAddress       = uint64(0xFFFFFFFF)
)

// InputBase returns the fixed base address of the input region.
func InputBase() uint32 {
	return uint32(addressSpaceSize - ZoneSize - InputZoneSize)
}

// StackBase returns the fixed top-of-stack address (stack grows down from
// here).
func StackBase() uint32 {
	return uint32(addressSpaceSize - 2*ZoneSize - InputZoneSize)
}

// HeapBase returns the heap region's base address for a read-only payload
// of roContentSize bytes (the raw, unaligned payload length).
func HeapBase(roContentSize uint64) uint32 {
	return uint32(2*ZoneSize + roundUp(roContentSize, ZoneSize))
}

// Width is the byte width of a little-endian memory access.
type Width uint8

const (
	Width1 Width = 1
	Width2 Width = 2
	Width4 Width = 4
	Width8 Width = 8
)

// Unsigned is satisfied by the unsigned integer types read_int/write_int
// operate over.
type Unsigned interface {
	~uint8 | ~uint16 | ~uint32 | ~uint64
}

// Signed is satisfied by the signed integer types read_int_sign_extend
// operates over.
type Signed interface {
	~int8 | ~int16 | ~int32 | ~int64
}

// WidthOfUnsigned reports the byte width of T.
func WidthOfUnsigned[T Unsigned]() Width {
	var zero T
	switch any(zero).(type) {
	case uint8:
		return Width1
	case uint16:
		return Width2
	case uint32:
		return Width4
	case uint64:
		return Width8
	default:
		panic("addrspace: unsupported unsigned width")
	}
}

// WidthOfSigned reports the byte width of T.
func WidthOfSigned[T Signed]() Width {
	var zero T
	switch any(zero).(type) {
	case int8:
		return Width1
	case int16:
		return Width2
	case int32:
		return Width4
	case int64:
		return Width8
	default:
		panic("addrspace: unsupported signed width")
	}
}

// SignExtend sign-extends the low width bytes of raw (already isolated by
// the caller) to a full 64-bit register value.
func SignExtend(raw uint64, width Width) int64 {
	shift := uint(64 - 8*width)
	return int64(raw<<shift) >> shift
}

// Int is satisfied by all built-in integer types; it backs the rounding
// helpers below.
type Int interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr
}

// Min returns the smaller of a and b.
func Min[T Int](a, b T) T {
	if a < b {
		return a
	}
	return b
}

func roundDown[T Int](v, unit T) T {
	return v - (v % unit)
}

func roundUp[T Int](v, unit T) T {
	return roundDown(v+unit-1, unit)
}

// AlignToPage rounds n up to the nearest multiple of PageSize. It fails
// with SizeTooLarge if n does not fit in the 32-bit address space.
func AlignToPage(n uint64) (uint64, error) {
	return alignUp(n, PageSize)
}

// AlignToSection rounds n up to the nearest multiple of ZoneSize. It fails
// with SizeTooLarge if n does not fit in the 32-bit address space.
func AlignToSection(n uint64) (uint64, error) {
	return alignUp(n, ZoneSize)
}

func alignUp(n, unit uint64) (uint64, error) {
	if n > maxAddress {
		return 0, memerr.SizeTooLarge(n)
	}
	r := roundUp(n, unit)
	if r > maxAddress {
		return 0, memerr.SizeTooLarge(r)
	}
	return r, nil
}

// BytesToPages returns ceil(n / PageSize).
func BytesToPages(n uint64) uint64 {
	return (n + PageSize - 1) / PageSize
}

// NextPageBoundary rounds the address a up to the next multiple of
// PageSize (a itself, if already aligned).
func NextPageBoundary(a uint32) uint32 {
	return uint32(roundUp(uint64(a), PageSize))
}

// AlignDownPage rounds the address a down to the start of its page.
func AlignDownPage(a uint32) uint32 {
	return uint32(roundDown(uint64(a), PageSize))
}
