package rowcask

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/yonwoo9/go-rowcask/internal/codec"
)

// Open opens the store in dir, creating dir and both files when absent.
//
// An existing store is validated (magic, version, matching row counts) and
// recovered: rows whose record was only partly written, and anything appended
// after the last Close, are discarded. Validation failures return
// ErrCorruptHeader.
func Open(dir string, opts ...ConfOption) (*Store, error) {
	config, err := newConfig(opts)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, ioFailure("create directory", err)
	}

	s := &Store{
		directory: dir,
		codec:     codec.New(config.MaxValueSize),
		config:    config,
		logger:    config.Logger,
	}

	if err := s.loadFiles(); err != nil {
		return nil, fmt.Errorf("failed to open store %s: %w", dir, err)
	}

	return s, nil
}

// Put appends payload as a new row and returns its id. Ids start at 1.
func (s *Store) Put(payload []byte) (uint64, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return s.put(payload)
}

func (s *Store) put(payload []byte) (uint64, error) {
	if s.closed {
		return 0, ErrClosed
	}

	record, err := s.codec.Encode(payload)
	if err != nil {
		return 0, err
	}

	if s.size+int64(len(record)) > s.config.MaxDBSize {
		return 0, &LimitError{Err: ErrCapacityExceeded, Size: s.size, Limit: s.config.MaxDBSize}
	}
	row := len(s.offsets)
	if uint64(row) >= math.MaxUint32 {
		return 0, &LimitError{Err: ErrCapacityExceeded, Size: int64(row), Limit: math.MaxUint32}
	}

	offset := s.size

	// 先写数据，再写索引；两者都成功后才对读者可见
	if _, err := s.dataFile.WriteAt(record, offset); err != nil {
		_ = s.dataFile.Truncate(offset)
		return 0, ioFailure("append to data log", err)
	}
	if err := s.writeIndexEntry(row, uint64(offset)); err != nil {
		_ = s.dataFile.Truncate(offset)
		_ = s.indexFile.Truncate(indexOffset(row))
		return 0, err
	}

	s.offsets = append(s.offsets, uint64(offset))
	s.size = offset + int64(len(record))
	return uint64(row + 1), nil
}

// Get returns the payload of row rowID.
func (s *Store) Get(rowID uint64) ([]byte, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}

	offset, ok := s.lookup(rowID)
	if !ok {
		return nil, notFound(rowID)
	}
	return s.readRecord(rowID, offset)
}

// lookup returns the record offset of a live row. Callers hold the lock.
func (s *Store) lookup(rowID uint64) (uint64, bool) {
	if rowID == 0 || rowID > uint64(len(s.offsets)) {
		return 0, false
	}
	offset := s.offsets[rowID-1]
	return offset, offset != tombstone
}

func (s *Store) readRecord(rowID, offset uint64) ([]byte, error) {
	payload, err := s.codec.ReadAt(s.dataFile, int64(offset))
	if err != nil {
		if errors.Is(err, ErrCorruptRecord) {
			return nil, &RowError{RowID: rowID, Err: err}
		}
		return nil, ioFailure(fmt.Sprintf("read row %d", rowID), err)
	}
	return payload, nil
}

// Delete tombstones row rowID. The record stays in the data log.
// Deleting a row that is already deleted returns ErrNotFound.
func (s *Store) Delete(rowID uint64) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.closed {
		return ErrClosed
	}

	if _, ok := s.lookup(rowID); !ok {
		return notFound(rowID)
	}
	if err := s.writeIndexEntry(int(rowID-1), tombstone); err != nil {
		return err
	}
	s.offsets[rowID-1] = tombstone
	return nil
}

// Len returns the number of rows ever written, deleted rows included.
func (s *Store) Len() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.offsets)
}

// Size returns the size of the data log in bytes.
func (s *Store) Size() int64 {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.size
}

// Dir returns the directory holding the store files.
func (s *Store) Dir() string {
	return s.directory
}

// Snapshot writes a consistent copy of the store into snapshotDir.
// The copy can be opened with Open while this store stays in use.
func (s *Store) Snapshot(snapshotDir string) error {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if s.closed {
		return ErrClosed
	}

	if err := os.MkdirAll(snapshotDir, 0o755); err != nil {
		return ioFailure("create snapshot directory", err)
	}

	rows := uint32(len(s.offsets))
	if err := copyFilePrefix(s.dataFile, filepath.Join(snapshotDir, dataFileName), s.size, encodeDataHeader(rows)); err != nil {
		return fmt.Errorf("failed to copy data log: %w", err)
	}
	if err := copyFilePrefix(s.indexFile, filepath.Join(snapshotDir, indexFileName), indexOffset(int(rows)), encodeIndexHeader(rows)); err != nil {
		return fmt.Errorf("failed to copy offset index: %w", err)
	}

	s.logger.Info("wrote snapshot", "dir", s.directory, "snapshot", snapshotDir, "rows", rows)
	return nil
}

// Close commits the row count to both file headers, syncs both files to
// stable storage and releases them. Calling Close again is a no-op.
func (s *Store) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	// 即使写头部失败也要释放文件和锁
	err := s.writeHeaders()
	if err == nil {
		err = s.syncFiles()
	}
	if cerr := s.closeFiles(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("failed to close store %s: %w", s.directory, err)
	}

	s.logger.Debug("closed store", "dir", s.directory, "rows", len(s.offsets), "bytes", s.size)
	return nil
}
