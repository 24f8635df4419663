package rowcask

import "fmt"

// BatchPut appends every payload under a single lock and returns their row
// ids in order. If any payload fails, the rows already appended by this call
// are rolled back and no id is returned.
func (s *Store) BatchPut(payloads [][]byte) ([]uint64, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	rows, size := len(s.offsets), s.size
	ids := make([]uint64, 0, len(payloads))
	for i, payload := range payloads {
		rowID, err := s.put(payload)
		if err != nil {
			s.rollback(rows, size)
			return nil, fmt.Errorf("failed to put batch entry %d: %w", i, err)
		}
		ids = append(ids, rowID)
	}
	return ids, nil
}

// rollback drops the rows appended after the store held rows rows and size
// bytes. Callers hold the write lock.
func (s *Store) rollback(rows int, size int64) {
	if len(s.offsets) == rows {
		return
	}
	s.offsets = s.offsets[:rows]
	s.size = size
	_ = s.dataFile.Truncate(size)
	_ = s.indexFile.Truncate(indexOffset(rows))
}

// BatchGet returns the payloads of the given rows. Missing and deleted rows
// are left out of the result; any other error aborts the call.
func (s *Store) BatchGet(rowIDs []uint64) (map[uint64][]byte, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}

	result := make(map[uint64][]byte, len(rowIDs))
	for _, rowID := range rowIDs {
		offset, ok := s.lookup(rowID)
		if !ok {
			continue
		}
		payload, err := s.readRecord(rowID, offset)
		if err != nil {
			return nil, fmt.Errorf("failed to get row %d: %w", rowID, err)
		}
		result[rowID] = payload
	}
	return result, nil
}
