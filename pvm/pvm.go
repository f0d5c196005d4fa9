// Package pvm exposes the two interchangeable memory engines — paged and
// flat — behind one Memory interface, along with generic helpers for typed
// integer access.
package pvm

import (
	"github.com/jamzig/jamzig-sub004/addrspace"
	"github.com/jamzig/jamzig-sub004/flatmem"
	"github.com/jamzig/jamzig-sub004/memerr"
	"github.com/jamzig/jamzig-sub004/memslice"
	"github.com/jamzig/jamzig-sub004/memsnap"
	"github.com/jamzig/jamzig-sub004/pagedmem"
	"github.com/jamzig/jamzig-sub004/pvmstats"
)

// Options are the construction parameters common to both engines.
type Options struct {
	ReadOnlyBytes       []byte
	ReadWriteBytes      []byte
	InputBytes          []byte
	StackBytes          uint32
	HeapPages           uint32
	DynamicAllocation   bool
	HeapAllocationLimit *uint64
}

func (o Options) pagedOptions() pagedmem.Options {
	return pagedmem.Options{
		ReadOnlyBytes:       o.ReadOnlyBytes,
		ReadWriteBytes:      o.ReadWriteBytes,
		InputBytes:          o.InputBytes,
		StackBytes:          o.StackBytes,
		HeapPages:           o.HeapPages,
		DynamicAllocation:   o.DynamicAllocation,
		HeapAllocationLimit: o.HeapAllocationLimit,
	}
}

func (o Options) flatOptions() flatmem.Options {
	return flatmem.Options{
		ReadOnlyBytes:       o.ReadOnlyBytes,
		ReadWriteBytes:      o.ReadWriteBytes,
		InputBytes:          o.InputBytes,
		StackBytes:          o.StackBytes,
		HeapPages:           o.HeapPages,
		DynamicAllocation:   o.DynamicAllocation,
		HeapAllocationLimit: o.HeapAllocationLimit,
	}
}

// Memory is the interface both the paged and flat engines satisfy. Generic
// typed access is layered on top as free functions (ReadInt, WriteInt,
// ReadIntSignExtend) rather than interface methods, since Go does not
// allow a generic method on an interface type.
type Memory interface {
	ReadIntRaw(addr uint32, width addrspace.Width) (uint64, error)
	WriteIntRaw(addr uint32, width addrspace.Width, value uint64) error
	ReadSlice(addr uint32, n int) (memslice.Slice, error)
	ReadSliceOwned(addr uint32, n int) (memslice.Slice, error)
	WriteSlice(addr uint32, data []byte) error
	IsRangeValid(addr, n uint32) bool
	Sbrk(n uint32) uint32
	HeapStart() uint32
	LastViolation() *memerr.Violation
	DeepClone() (Memory, error)
	Snapshot() (memsnap.Snapshot, error)
	Stats() pvmstats.Snapshot
}

// pagedAdapter and flatAdapter narrow DeepClone's concrete return type to
// the Memory interface, since the underlying engines return their own
// concrete pointer type.
type pagedAdapter struct{ *pagedmem.Memory }

func (a pagedAdapter) DeepClone() (Memory, error) {
	c, err := a.Memory.DeepClone()
	if err != nil {
		return nil, err
	}
	return pagedAdapter{c}, nil
}

type flatAdapter struct{ *flatmem.Memory }

func (a flatAdapter) DeepClone() (Memory, error) {
	c, err := a.Memory.DeepClone()
	if err != nil {
		return nil, err
	}
	return flatAdapter{c}, nil
}

// NewPagedEmpty returns an empty paged-engine Memory.
func NewPagedEmpty(dynamicAllocation bool) Memory {
	return pagedAdapter{pagedmem.NewEmpty(dynamicAllocation)}
}

// NewPagedWithCapacity returns a paged-engine Memory with its regions
// allocated but not yet populated.
func NewPagedWithCapacity(opts Options) (Memory, error) {
	m, err := pagedmem.NewWithCapacity(opts.pagedOptions())
	if err != nil {
		return nil, err
	}
	return pagedAdapter{m}, nil
}

// NewPaged returns a paged-engine Memory with its regions allocated and
// populated from opts.
func NewPaged(opts Options) (Memory, error) {
	m, err := pagedmem.New(opts.pagedOptions())
	if err != nil {
		return nil, err
	}
	return pagedAdapter{m}, nil
}

// NewFlatEmpty returns an empty flat-engine Memory.
func NewFlatEmpty(dynamicAllocation bool) Memory {
	return flatAdapter{flatmem.NewEmpty(dynamicAllocation)}
}

// NewFlatWithCapacity returns a flat-engine Memory with its regions
// allocated but not yet populated.
func NewFlatWithCapacity(opts Options) (Memory, error) {
	m, err := flatmem.NewWithCapacity(opts.flatOptions())
	if err != nil {
		return nil, err
	}
	return flatAdapter{m}, nil
}

// NewFlat returns a flat-engine Memory with its regions allocated and
// populated from opts.
func NewFlat(opts Options) (Memory, error) {
	m, err := flatmem.New(opts.flatOptions())
	if err != nil {
		return nil, err
	}
	return flatAdapter{m}, nil
}

// ReadInt loads a T-sized unsigned value at addr.
func ReadInt[T addrspace.Unsigned](m Memory, addr uint32) (T, error) {
	width := addrspace.WidthOfUnsigned[T]()
	raw, err := m.ReadIntRaw(addr, width)
	if err != nil {
		return 0, err
	}
	return T(raw), nil
}

// WriteInt stores a T-sized unsigned value at addr.
func WriteInt[T addrspace.Unsigned](m Memory, addr uint32, value T) error {
	width := addrspace.WidthOfUnsigned[T]()
	return m.WriteIntRaw(addr, width, uint64(value))
}

// ReadIntSignExtend loads a T-sized value at addr and sign-extends it to a
// full 64-bit signed register value.
func ReadIntSignExtend[T addrspace.Signed](m Memory, addr uint32) (int64, error) {
	width := addrspace.WidthOfSigned[T]()
	raw, err := m.ReadIntRaw(addr, width)
	if err != nil {
		return 0, err
	}
	return addrspace.SignExtend(raw, width), nil
}
