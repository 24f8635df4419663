package rowcask

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/yonwoo9/go-rowcask/internal/codec"
)

func (s *Store) getDataFilePath() string {
	return filepath.Join(s.directory, dataFileName)
}

func (s *Store) getIndexFilePath() string {
	return filepath.Join(s.directory, indexFileName)
}

// loadFiles creates a fresh store or opens and recovers an existing one.
func (s *Store) loadFiles() error {
	dataExists, err := fileExists(s.getDataFilePath())
	if err != nil {
		return err
	}
	indexExists, err := fileExists(s.getIndexFilePath())
	if err != nil {
		return err
	}

	switch {
	case !dataExists && !indexExists:
		return s.createFiles()
	case !indexExists:
		return corruptHeader("offset index %s is missing", s.getIndexFilePath())
	case !dataExists:
		return corruptHeader("data log %s is missing", s.getDataFilePath())
	}
	return s.openExistingFiles()
}

func fileExists(path string) (bool, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, ioFailure("stat "+filepath.Base(path), err)
	}
	return true, nil
}

func (s *Store) createFiles() (err error) {
	dataPath, indexPath := s.getDataFilePath(), s.getIndexFilePath()
	defer func() {
		if err != nil {
			_ = s.closeFiles()
			_ = os.Remove(dataPath)
			_ = os.Remove(indexPath)
		}
	}()

	if s.dataFile, err = os.OpenFile(dataPath, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644); err != nil {
		return ioFailure("create data log", err)
	}
	if err := lockFile(s.dataFile); err != nil {
		return err
	}
	if s.indexFile, err = os.OpenFile(indexPath, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644); err != nil {
		return ioFailure("create offset index", err)
	}

	s.offsets = []uint64{}
	s.size = dataHeaderSize
	if err := s.writeHeaders(); err != nil {
		return err
	}
	// 新建的文件立即落盘，保证崩溃后至少能通过头部校验
	if err := s.syncFiles(); err != nil {
		return err
	}

	s.logger.Debug("created store", "dir", s.directory)
	return nil
}

func (s *Store) openExistingFiles() (err error) {
	defer func() {
		if err != nil {
			_ = s.closeFiles()
		}
	}()

	if s.dataFile, err = os.OpenFile(s.getDataFilePath(), os.O_RDWR, 0o644); err != nil {
		return ioFailure("open data log", err)
	}
	if err := lockFile(s.dataFile); err != nil {
		return err
	}
	if s.indexFile, err = os.OpenFile(s.getIndexFilePath(), os.O_RDWR, 0o644); err != nil {
		return ioFailure("open offset index", err)
	}

	dataSize, err := fileSize(s.dataFile)
	if err != nil {
		return err
	}
	indexSize, err := fileSize(s.indexFile)
	if err != nil {
		return err
	}

	declared, err := readDataHeader(s.dataFile, dataSize)
	if err != nil {
		return err
	}
	count, err := readIndexHeader(s.indexFile, indexSize)
	if err != nil {
		return err
	}
	if count != declared {
		return corruptHeader("offset index holds %d rows, data log declares %d", count, declared)
	}
	if want := indexOffset(int(count)); indexSize < want {
		return corruptHeader("offset index is %d bytes, %d rows need %d", indexSize, count, want)
	}

	entries, err := readIndexEntries(s.indexFile, int(count))
	if err != nil {
		return err
	}
	starts, end, err := scanDataLog(s.codec, s.dataFile, dataSize, int(declared))
	if err != nil {
		return err
	}

	// 校验索引中的偏移与数据文件中的记录位置一致
	for i, start := range starts {
		if entries[i] != tombstone && entries[i] != start {
			return corruptHeader("row %d: index offset %d, record starts at %d", i+1, entries[i], start)
		}
	}
	if err := checkTornTail(entries, len(starts), end, dataSize); err != nil {
		return err
	}

	s.offsets = entries[:len(starts)]
	s.size = end
	if err := s.recover(int(declared), dataSize, indexSize); err != nil {
		return err
	}

	s.logger.Info("opened store", "dir", s.directory, "rows", len(s.offsets), "bytes", s.size)
	return nil
}

// recover discards torn trailing rows and uncommitted tail bytes left by a
// crash, so that both files hold exactly the rows in s.offsets.
func (s *Store) recover(declared int, dataSize, indexSize int64) error {
	rows := len(s.offsets)
	if rows < declared {
		s.logger.Warn("rolled back incomplete rows", "dir", s.directory, "declared", declared, "complete", rows)
	}

	if dataSize > s.size {
		s.logger.Warn("discarding uncommitted data log bytes", "dir", s.directory, "bytes", dataSize-s.size)
		if err := s.dataFile.Truncate(s.size); err != nil {
			return ioFailure("truncate data log", err)
		}
	}
	if want := indexOffset(rows); indexSize > want {
		if err := s.indexFile.Truncate(want); err != nil {
			return ioFailure("truncate offset index", err)
		}
	}

	if rows == declared {
		return nil
	}
	if err := s.writeHeaders(); err != nil {
		return err
	}
	return s.syncFiles()
}

// scanDataLog walks the framing of up to rows records after the header and
// returns the start offset of every complete record and the end of the last.
// A length over the payload limit is ErrCorruptHeader.
func scanDataLog(c codec.Codec, file *os.File, size int64, rows int) ([]uint64, int64, error) {
	mf, err := mmapFile(file, size)
	if err != nil {
		return nil, 0, err
	}
	defer func() {
		_ = mf.unmap()
	}()

	starts := make([]uint64, 0, rows)
	pos := int64(dataHeaderSize)
	for len(starts) < rows {
		n, complete, err := c.Frame(mf.data[pos:])
		if err != nil {
			return nil, 0, fmt.Errorf("%w: row %d at offset %d: %w", ErrCorruptHeader, len(starts)+1, pos, err)
		}
		if !complete {
			break
		}
		starts = append(starts, uint64(pos))
		pos += n
	}
	return starts, pos, nil
}

// checkTornTail verifies that the rows the scan could not frame, entries[torn:],
// are a torn tail: the first must start where the scan stopped and none of the
// others may start inside the file. Anything else means an earlier record is
// damaged, and rolling back would drop committed rows.
func checkTornTail(entries []uint64, torn int, end, dataSize int64) error {
	if torn >= len(entries) {
		return nil
	}
	if e := entries[torn]; e != tombstone && e != uint64(end) {
		return corruptHeader("row %d: index offset %d, incomplete record at %d", torn+1, e, end)
	}
	for i := torn + 1; i < len(entries); i++ {
		if entries[i] != tombstone && entries[i] < uint64(dataSize) {
			return corruptHeader("row %d at offset %d follows incomplete row %d", i+1, entries[i], torn+1)
		}
	}
	return nil
}

type mmapedFile struct {
	data []byte
}

func mmapFile(file *os.File, size int64) (*mmapedFile, error) {
	if size == 0 {
		return &mmapedFile{data: []byte{}}, nil
	}
	data, err := unix.Mmap(int(file.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, ioFailure("mmap data log", err)
	}
	return &mmapedFile{data: data}, nil
}

func (mf *mmapedFile) unmap() error {
	if len(mf.data) == 0 {
		return nil
	}
	if err := unix.Munmap(mf.data); err != nil {
		return ioFailure("munmap data log", err)
	}
	mf.data = nil
	return nil
}

// lockFile takes an exclusive advisory lock so that only one handle, in this
// or any other process, writes to the store.
func lockFile(file *os.File) error {
	if err := unix.Flock(int(file.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		if errors.Is(err, unix.EWOULDBLOCK) {
			return fmt.Errorf("%w: %s", ErrLocked, file.Name())
		}
		return ioFailure("lock data log", err)
	}
	return nil
}

func fileSize(file *os.File) (int64, error) {
	info, err := file.Stat()
	if err != nil {
		return 0, ioFailure("stat "+filepath.Base(file.Name()), err)
	}
	return info.Size(), nil
}

func readDataHeader(file *os.File, size int64) (uint32, error) {
	if size < dataHeaderSize {
		return 0, corruptHeader("data log is %d bytes, shorter than its header", size)
	}
	header := make([]byte, dataHeaderSize)
	if _, err := file.ReadAt(header, 0); err != nil {
		return 0, ioFailure("read data log header", err)
	}
	if !bytes.Equal(header[:len(dataMagic)], dataMagic) {
		return 0, corruptHeader("invalid data log magic %q", header[:len(dataMagic)])
	}
	if version := binary.LittleEndian.Uint32(header[8:12]); version != formatVersion {
		return 0, corruptHeader("unsupported data log version %d", version)
	}
	return binary.LittleEndian.Uint32(header[12:16]), nil
}

func readIndexHeader(file *os.File, size int64) (uint32, error) {
	if size < indexHeaderSize {
		return 0, corruptHeader("offset index is %d bytes, shorter than its header", size)
	}
	header := make([]byte, indexHeaderSize)
	if _, err := file.ReadAt(header, 0); err != nil {
		return 0, ioFailure("read offset index header", err)
	}
	if !bytes.Equal(header[:len(indexMagic)], indexMagic) {
		return 0, corruptHeader("invalid offset index magic %q", header[:len(indexMagic)])
	}
	return binary.LittleEndian.Uint32(header[8:12]), nil
}

func readIndexEntries(file *os.File, count int) ([]uint64, error) {
	if count == 0 {
		return []uint64{}, nil
	}
	buf := make([]byte, count*indexEntrySize)
	if _, err := file.ReadAt(buf, indexHeaderSize); err != nil {
		return nil, ioFailure("read offset index", err)
	}
	entries := make([]uint64, count)
	for i := range entries {
		entries[i] = binary.LittleEndian.Uint64(buf[i*indexEntrySize:])
	}
	return entries, nil
}

func encodeDataHeader(rows uint32) []byte {
	header := make([]byte, dataHeaderSize)
	copy(header, dataMagic)
	binary.LittleEndian.PutUint32(header[8:12], formatVersion)
	binary.LittleEndian.PutUint32(header[12:16], rows)
	return header
}

func encodeIndexHeader(count uint32) []byte {
	header := make([]byte, indexHeaderSize)
	copy(header, indexMagic)
	binary.LittleEndian.PutUint32(header[8:12], count)
	return header
}

func indexOffset(row int) int64 {
	return indexHeaderSize + int64(row)*indexEntrySize
}

// writeHeaders commits the current row count to both files.
func (s *Store) writeHeaders() error {
	rows := uint32(len(s.offsets))
	if _, err := s.dataFile.WriteAt(encodeDataHeader(rows), 0); err != nil {
		return ioFailure("write data log header", err)
	}
	if _, err := s.indexFile.WriteAt(encodeIndexHeader(rows), 0); err != nil {
		return ioFailure("write offset index header", err)
	}
	return nil
}

func (s *Store) writeIndexEntry(row int, offset uint64) error {
	var entry [indexEntrySize]byte
	binary.LittleEndian.PutUint64(entry[:], offset)
	if _, err := s.indexFile.WriteAt(entry[:], indexOffset(row)); err != nil {
		return ioFailure("write offset index", err)
	}
	return nil
}

func (s *Store) syncFiles() error {
	if err := s.dataFile.Sync(); err != nil {
		return ioFailure("sync data log", err)
	}
	if err := s.indexFile.Sync(); err != nil {
		return ioFailure("sync offset index", err)
	}
	return nil
}

// closeFiles closes whatever is open and returns the first error.
func (s *Store) closeFiles() error {
	var errs []error
	if s.indexFile != nil {
		if err := s.indexFile.Close(); err != nil {
			errs = append(errs, ioFailure("close offset index", err))
		}
		s.indexFile = nil
	}
	if s.dataFile != nil {
		if err := s.dataFile.Close(); err != nil {
			errs = append(errs, ioFailure("close data log", err))
		}
		s.dataFile = nil
	}
	return errors.Join(errs...)
}

// copyFilePrefix writes header followed by src[len(header):n] to dst and syncs it.
func copyFilePrefix(src *os.File, dst string, n int64, header []byte) (err error) {
	destFile, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return ioFailure("create "+filepath.Base(dst), err)
	}
	defer func() {
		if cerr := destFile.Close(); cerr != nil && err == nil {
			err = ioFailure("close "+filepath.Base(dst), cerr)
		}
	}()

	if _, err := destFile.Write(header); err != nil {
		return ioFailure("write "+filepath.Base(dst), err)
	}
	body := io.NewSectionReader(src, int64(len(header)), n-int64(len(header)))
	if _, err := io.Copy(destFile, body); err != nil {
		return ioFailure("copy "+filepath.Base(dst), err)
	}
	if err := destFile.Sync(); err != nil {
		return ioFailure("sync "+filepath.Base(dst), err)
	}
	return nil
}
