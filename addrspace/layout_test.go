package addrspace_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamzig/jamzig-sub004/addrspace"
	"github.com/jamzig/jamzig-sub004/memerr"
)

func TestNewLayoutBasic(t *testing.T) {
	layout, err := addrspace.NewLayout(100, 50, 2, 3)
	require.NoError(t, err)

	assert.Equal(t, addrspace.ROBase, layout.ROBase)
	assert.Equal(t, uint32(100), layout.ROContentSize)
	assert.Equal(t, uint32(addrspace.PageSize), layout.ROAllocSize)
	assert.Equal(t, addrspace.HeapBase(100), layout.HeapBase)
	assert.Equal(t, addrspace.InputBase(), layout.InputBase)
	assert.Equal(t, uint32(50), layout.InputContentSize)
	assert.Equal(t, uint32(addrspace.PageSize), layout.InputAllocSize)
	assert.Equal(t, addrspace.StackBase(), layout.StackBase)
	assert.Equal(t, layout.StackBase-2*addrspace.PageSize, layout.StackBottom)
}

func TestNewLayoutInputTooLarge(t *testing.T) {
	_, err := addrspace.NewLayout(0, addrspace.InputZoneSize+1, 0, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, memerr.ErrSizeTooLarge)
}

func TestNewLayoutExceedsAddressSpace(t *testing.T) {
	// A heap this large individually fits within the 32-bit address space
	// but, combined with the five fixed zones and the input zone, the
	// total layout no longer does.
	_, err := addrspace.NewLayout(0, 0, 0, 1048560)
	require.Error(t, err)
	assert.ErrorIs(t, err, memerr.ErrMemoryLimitExceeded)
}

func TestNewLayoutZero(t *testing.T) {
	layout, err := addrspace.NewLayout(0, 0, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), layout.ROAllocSize)
	assert.Equal(t, uint32(0), layout.InputAllocSize)
	assert.Equal(t, layout.StackBase, layout.StackBottom)
}
