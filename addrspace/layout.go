package addrspace

import (
	"fmt"

	"github.com/jamzig/jamzig-sub004/memerr"
)

// Layout is the fully resolved placement of every region for one Memory
// construction. ROAllocSize/InputAllocSize are the page-rounded extents
// actually backing those regions; ROContentSize/InputContentSize are the
// raw payload lengths. HeapBase is placed from the raw read-only length.
type Layout struct {
	ROBase           uint32
	ROContentSize    uint32
	ROAllocSize      uint32
	HeapBase         uint32
	InputBase        uint32
	InputContentSize uint32
	InputAllocSize   uint32
	StackBase        uint32 // top of stack; grows downward from here
	StackBottom      uint32
	StackPages       uint32
}

// NewLayout computes the address-space layout for the given read-only
// payload size, input payload size, stack page count, and initial heap
// page count, and validates that the five fixed zones plus the three
// section-aligned regions fit within the 32-bit address space:
//
//	5*ZoneSize + align_up(ro,ZoneSize) + align_up(heap,ZoneSize) + align_up(stack,ZoneSize) + InputZoneSize <= 2^32
//
// It fails with MemoryLimitExceeded if the equation does not hold, or
// SizeTooLarge if any input overflows the 32-bit address space.
func NewLayout(roSize, inputSize uint64, stackPages, heapPages uint32) (Layout, error) {
	if inputSize > InputZoneSize {
		return Layout{}, memerr.SizeTooLarge(inputSize)
	}

	roZoneAligned, err := AlignToSection(roSize)
	if err != nil {
		return Layout{}, err
	}
	heapBytes := uint64(heapPages) * PageSize
	heapZoneAligned, err := AlignToSection(heapBytes)
	if err != nil {
		return Layout{}, err
	}
	stackBytes := uint64(stackPages) * PageSize
	stackZoneAligned, err := AlignToSection(stackBytes)
	if err != nil {
		return Layout{}, err
	}

	total := uint64(5)*ZoneSize + roZoneAligned + heapZoneAligned + stackZoneAligned + InputZoneSize
	if total > addressSpaceSize {
		return Layout{}, memerr.MemoryLimitExceeded(fmt.Sprintf("layout requires %d bytes, address space holds %d", total, addressSpaceSize))
	}

	roAlloc, err := AlignToPage(roSize)
	if err != nil {
		return Layout{}, err
	}
	inputAlloc, err := AlignToPage(inputSize)
	if err != nil {
		return Layout{}, err
	}

	stackBase := StackBase()
	stackBottom := stackBase - uint32(stackBytes)

	return Layout{
		ROBase:           ROBase,
		ROContentSize:    uint32(roSize),
		ROAllocSize:      uint32(roAlloc),
		HeapBase:         HeapBase(roSize),
		InputBase:        InputBase(),
		InputContentSize: uint32(inputSize),
		InputAllocSize:   uint32(inputAlloc),
		StackBase:        stackBase,
		StackBottom:      stackBottom,
		StackPages:       stackPages,
	}, nil
}
