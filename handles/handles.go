// Package handles implements the handle table: a bounded array of open
// file slots, indexed by handle value.
package handles

import (
	"github.com/mistfs/corefs/errors"
	"github.com/mistfs/corefs/fat32"
)

// Capacity is the fixed number of slots in the table (N = 32 in the
// reference implementation).
const Capacity = 32

// Table is a fixed-capacity, ordered sequence of slots, each either empty or
// owning one *fat32.File. Handle values equal slot index.
type Table struct {
	slots [Capacity]*fat32.File
}

// New returns an empty handle table.
func New() *Table {
	return &Table{}
}

// Allocate scans for the first empty slot, stores file there, and returns
// its index. Fails ErrNoFreeHandle if every slot is occupied.
func (t *Table) Allocate(file *fat32.File) (int, error) {
	for i, slot := range t.slots {
		if slot == nil {
			t.slots[i] = file
			return i, nil
		}
	}
	return 0, errors.ErrNoFreeHandle
}

// Release frees slot h, returning the file it held so the caller can close
// it. Fails ErrBadHandle if h is out of range or already empty.
func (t *Table) Release(h int) (*fat32.File, error) {
	file, err := t.Get(h)
	if err != nil {
		return nil, err
	}
	t.slots[h] = nil
	return file, nil
}

// Get returns the file owning handle h without releasing it. Fails
// ErrBadHandle if h is out of range or empty.
func (t *Table) Get(h int) (*fat32.File, error) {
	if h < 0 || h >= Capacity {
		return nil, errors.ErrBadHandle
	}
	file := t.slots[h]
	if file == nil {
		return nil, errors.ErrBadHandle
	}
	return file, nil
}
