// Package memsnap defines Snapshot, the page-granular materialization of a
// Memory's contents used for golden-file and cross-engine equivalence
// testing.
package memsnap

import (
	"bytes"
	"fmt"
	"sort"
)

// Region is one page's worth of memory content, addressed and tagged with
// whether it is writable.
type Region struct {
	Address  uint32
	Data     []byte
	Writable bool
}

// Snapshot is an ordered sequence of Regions, one per allocated page,
// sorted ascending by Address.
type Snapshot struct {
	Regions []Region
}

// Sort orders the regions ascending by address, giving the snapshot a
// stable, comparable layout regardless of allocation order.
func (s *Snapshot) Sort() {
	sort.Slice(s.Regions, func(i, j int) bool { return s.Regions[i].Address < s.Regions[j].Address })
}

// Equal reports whether s and other agree on the set of
// (address, data, writable) tuples they contain, ignoring region order.
func (s Snapshot) Equal(other Snapshot) bool {
	return len(Diff(s, other)) == 0
}

// Diff returns a human-readable list of mismatches between s and other,
// empty if they are equivalent. Used by cmd/pvmsnapdiff to report
// cross-engine divergence.
func Diff(a, b Snapshot) []string {
	var diffs []string
	byAddr := make(map[uint32]Region, len(b.Regions))
	for _, r := range b.Regions {
		byAddr[r.Address] = r
	}
	seen := make(map[uint32]bool, len(a.Regions))
	for _, r := range a.Regions {
		seen[r.Address] = true
		o, ok := byAddr[r.Address]
		if !ok {
			diffs = append(diffs, fmt.Sprintf("0x%08x: present in first snapshot only", r.Address))
			continue
		}
		if o.Writable != r.Writable {
			diffs = append(diffs, fmt.Sprintf("0x%08x: writable mismatch (%v vs %v)", r.Address, r.Writable, o.Writable))
		}
		if !bytes.Equal(o.Data, r.Data) {
			diffs = append(diffs, fmt.Sprintf("0x%08x: data mismatch", r.Address))
		}
	}
	for _, r := range b.Regions {
		if !seen[r.Address] {
			diffs = append(diffs, fmt.Sprintf("0x%08x: present in second snapshot only", r.Address))
		}
	}
	return diffs
}
