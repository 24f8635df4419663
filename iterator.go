package rowcask

import (
	"errors"
	"iter"
)

// Iterator walks the rows that were live when Scan was called, in ascending
// row id order. Rows deleted after Scan are still returned. An Iterator is not
// safe for concurrent use.
type Iterator struct {
	store   *Store
	rowIDs  []uint64
	offsets []uint64
	index   int
	value   []byte
	err     error
}

// Scan returns an iterator over the live rows. It does not touch any cache.
func (s *Store) Scan() *Iterator {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	it := &Iterator{store: s, index: -1}
	if s.closed {
		it.err = ErrClosed
		return it
	}
	for i, offset := range s.offsets {
		if offset == tombstone {
			continue
		}
		it.rowIDs = append(it.rowIDs, uint64(i+1))
		it.offsets = append(it.offsets, offset)
	}
	return it
}

// Next reads the next row. It returns false at the end of the scan or on the
// first error, which Err then reports.
func (it *Iterator) Next() bool {
	if it.err != nil {
		return false
	}
	it.index++
	if it.index >= len(it.rowIDs) {
		it.value = nil
		return false
	}

	it.value, it.err = it.read(it.rowIDs[it.index], it.offsets[it.index])
	return it.err == nil
}

func (it *Iterator) read(rowID, offset uint64) ([]byte, error) {
	s := it.store
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}
	return s.readRecord(rowID, offset)
}

// RowID returns the id of the current row, or 0 when Next has not
// returned true.
func (it *Iterator) RowID() uint64 {
	if it.index < 0 || it.index >= len(it.rowIDs) || it.err != nil {
		return 0
	}
	return it.rowIDs[it.index]
}

// Value returns the payload of the current row.
func (it *Iterator) Value() []byte {
	return it.value
}

// Err returns the error that stopped the iteration, if any.
func (it *Iterator) Err() error {
	return it.err
}

// Len returns the number of rows the scan covers.
func (it *Iterator) Len() int {
	return len(it.rowIDs)
}

// Reset rewinds the iterator to the first row and clears a row error.
func (it *Iterator) Reset() {
	it.index = -1
	it.value = nil
	if !errors.Is(it.err, ErrClosed) {
		it.err = nil
	}
}

// All rewinds the iterator and yields every row. Check Err afterwards.
func (it *Iterator) All() iter.Seq2[uint64, []byte] {
	return func(yield func(uint64, []byte) bool) {
		it.Reset()
		for it.Next() {
			if !yield(it.RowID(), it.Value()) {
				return
			}
		}
	}
}
