package memsnap_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jamzig/jamzig-sub004/memsnap"
)

func TestSortOrdersAscending(t *testing.T) {
	snap := memsnap.Snapshot{Regions: []memsnap.Region{
		{Address: 0x3000, Data: []byte{1}},
		{Address: 0x1000, Data: []byte{2}},
		{Address: 0x2000, Data: []byte{3}},
	}}
	snap.Sort()
	assert.Equal(t, []uint32{0x1000, 0x2000, 0x3000}, []uint32{
		snap.Regions[0].Address, snap.Regions[1].Address, snap.Regions[2].Address,
	})
}

func TestEqualIdentical(t *testing.T) {
	a := memsnap.Snapshot{Regions: []memsnap.Region{{Address: 1, Data: []byte{1, 2}, Writable: true}}}
	b := memsnap.Snapshot{Regions: []memsnap.Region{{Address: 1, Data: []byte{1, 2}, Writable: true}}}
	assert.True(t, a.Equal(b))
}

func TestEqualIgnoresOrder(t *testing.T) {
	a := memsnap.Snapshot{Regions: []memsnap.Region{
		{Address: 1, Data: []byte{1}},
		{Address: 2, Data: []byte{2}},
	}}
	b := memsnap.Snapshot{Regions: []memsnap.Region{
		{Address: 2, Data: []byte{2}},
		{Address: 1, Data: []byte{1}},
	}}
	assert.True(t, a.Equal(b))
}

func TestDiffDetectsDataMismatch(t *testing.T) {
	a := memsnap.Snapshot{Regions: []memsnap.Region{{Address: 1, Data: []byte{1}}}}
	b := memsnap.Snapshot{Regions: []memsnap.Region{{Address: 1, Data: []byte{2}}}}
	diffs := memsnap.Diff(a, b)
	assert.Len(t, diffs, 1)
	assert.Contains(t, diffs[0], "data mismatch")
}

func TestDiffDetectsWritableMismatch(t *testing.T) {
	a := memsnap.Snapshot{Regions: []memsnap.Region{{Address: 1, Data: []byte{1}, Writable: true}}}
	b := memsnap.Snapshot{Regions: []memsnap.Region{{Address: 1, Data: []byte{1}, Writable: false}}}
	diffs := memsnap.Diff(a, b)
	assert.Len(t, diffs, 1)
	assert.Contains(t, diffs[0], "writable mismatch")
}

func TestDiffDetectsMissingRegions(t *testing.T) {
	a := memsnap.Snapshot{Regions: []memsnap.Region{{Address: 1, Data: []byte{1}}}}
	b := memsnap.Snapshot{Regions: []memsnap.Region{{Address: 2, Data: []byte{1}}}}
	diffs := memsnap.Diff(a, b)
	assert.Len(t, diffs, 2)
}
