// Package codec frames row payloads as self-delimited records for the data log.
//
// Record layout (little endian):
//
//	+-------------+-------------+------------------+
//	| length (4B) | crc32  (4B) | payload (length) |
//	+-------------+-------------+------------------+
//
// The checksum is CRC-32 (IEEE) over the payload. The payload itself is opaque.
package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
)

// HeaderSize is the size of the framing that precedes every payload.
const HeaderSize = 8 // 4(length) + 4(crc)

var (
	ErrValueTooLarge    = errors.New("value too large")
	ErrCapacityExceeded = errors.New("capacity exceeded")
	ErrCorruptRecord    = errors.New("corrupt record")
)

// LimitError reports a size that went over a configured limit.
// Err is ErrValueTooLarge or ErrCapacityExceeded.
type LimitError struct {
	Err   error
	Size  int64
	Limit int64
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("%v: %d bytes (limit %d)", e.Err, e.Size, e.Limit)
}

func (e *LimitError) Unwrap() error {
	return e.Err
}

// Codec encodes and decodes records, enforcing a maximum payload size.
type Codec struct {
	maxValueSize int
}

// New returns a Codec that rejects payloads larger than maxValueSize bytes.
func New(maxValueSize int) Codec {
	return Codec{maxValueSize: maxValueSize}
}

// MaxValueSize returns the configured payload limit.
func (c Codec) MaxValueSize() int {
	return c.maxValueSize
}

// Size returns the encoded size of an n byte payload.
func Size(n int) int64 {
	return int64(HeaderSize) + int64(n)
}

// Encode frames payload into a single record.
func (c Codec) Encode(payload []byte) ([]byte, error) {
	if len(payload) > c.maxValueSize {
		return nil, &LimitError{Err: ErrValueTooLarge, Size: int64(len(payload)), Limit: int64(c.maxValueSize)}
	}

	record := make([]byte, HeaderSize+len(payload))
	binary.LittleEndian.PutUint32(record[0:4], uint32(len(payload)))
	binary.LittleEndian.PutUint32(record[4:8], crc32.ChecksumIEEE(payload))
	copy(record[HeaderSize:], payload)
	return record, nil
}

// Decode returns the payload of a record. record must hold exactly one record.
func (c Codec) Decode(record []byte) ([]byte, error) {
	if len(record) < HeaderSize {
		return nil, fmt.Errorf("%w: %d bytes is shorter than the record header", ErrCorruptRecord, len(record))
	}
	length, sum := parseHeader(record)
	if length > uint32(c.maxValueSize) {
		return nil, fmt.Errorf("%w: length %d over limit %d", ErrCorruptRecord, length, c.maxValueSize)
	}
	if int64(len(record)) != Size(int(length)) {
		return nil, fmt.Errorf("%w: length %d does not match record size %d", ErrCorruptRecord, length, len(record))
	}
	payload := record[HeaderSize:]
	if crc32.ChecksumIEEE(payload) != sum {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrCorruptRecord)
	}
	return payload, nil
}

// ReadAt reads and decodes the record starting at off.
// A record cut short by the end of r is reported as ErrCorruptRecord.
func (c Codec) ReadAt(r io.ReaderAt, off int64) ([]byte, error) {
	header := make([]byte, HeaderSize)
	if _, err := r.ReadAt(header, off); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: truncated header at offset %d", ErrCorruptRecord, off)
		}
		return nil, fmt.Errorf("failed to read record header: %w", err)
	}

	length, _ := parseHeader(header)
	if length > uint32(c.maxValueSize) {
		return nil, fmt.Errorf("%w: length %d over limit %d at offset %d", ErrCorruptRecord, length, c.maxValueSize, off)
	}

	record := make([]byte, Size(int(length)))
	copy(record, header)
	if _, err := r.ReadAt(record[HeaderSize:], off+HeaderSize); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: truncated payload at offset %d", ErrCorruptRecord, off)
		}
		return nil, fmt.Errorf("failed to read record payload: %w", err)
	}

	payload, err := c.Decode(record)
	if err != nil {
		return nil, fmt.Errorf("offset %d: %w", off, err)
	}
	return payload, nil
}

// Frame inspects the record at the start of buf without verifying the checksum.
// It returns the full record size and whether buf holds all of it. A length
// over the payload limit cannot come from Encode and is ErrCorruptRecord.
func (c Codec) Frame(buf []byte) (size int64, complete bool, err error) {
	if len(buf) < HeaderSize {
		return 0, false, nil
	}
	length, _ := parseHeader(buf)
	if length > uint32(c.maxValueSize) {
		return 0, false, fmt.Errorf("%w: length %d over limit %d", ErrCorruptRecord, length, c.maxValueSize)
	}
	size = Size(int(length))
	return size, int64(len(buf)) >= size, nil
}

func parseHeader(b []byte) (length, sum uint32) {
	return binary.LittleEndian.Uint32(b[0:4]), binary.LittleEndian.Uint32(b[4:8])
}
