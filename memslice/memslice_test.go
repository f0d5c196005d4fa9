package memslice_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jamzig/jamzig-sub004/memslice"
)

func TestBorrowedAliasesStorage(t *testing.T) {
	backing := []byte{1, 2, 3}
	s := memslice.Borrowed(backing)
	assert.False(t, s.IsOwned())
	assert.Equal(t, 3, s.Len())

	backing[0] = 99
	assert.Equal(t, byte(99), s.Bytes()[0], "a borrowed slice must alias its backing array")
}

func TestOwnedIsIndependent(t *testing.T) {
	s := memslice.Owned([]byte{1, 2, 3})
	assert.True(t, s.IsOwned())
}

func TestEmpty(t *testing.T) {
	s := memslice.Empty()
	assert.Equal(t, 0, s.Len())
	assert.False(t, s.IsOwned())
}

func TestTakeOwnershipDuplicatesBorrow(t *testing.T) {
	backing := []byte{1, 2, 3}
	s := memslice.Borrowed(backing)
	copied := s.TakeOwnership()
	copied[0] = 42
	assert.Equal(t, byte(1), backing[0], "TakeOwnership on a borrow must not alias the source")
}

func TestTakeOwnershipOnOwnedReturnsSameBacking(t *testing.T) {
	original := []byte{1, 2, 3}
	s := memslice.Owned(original)
	got := s.TakeOwnership()
	got[0] = 77
	assert.Equal(t, byte(77), original[0], "TakeOwnership on an already-owned slice must not copy")
}
