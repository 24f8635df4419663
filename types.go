package rowcask

import (
	"log/slog"
	"os"
	"sync"

	"github.com/yonwoo9/go-rowcask/internal/codec"
)

// Store is a durable, append-only row store backed by two files: a data log
// holding the encoded rows and an offset index mapping each row id to the
// position of its record (0 once the row is deleted).
//
// One writer and any number of readers may use a Store concurrently: Put,
// Delete and Close take the write lock, Get and Scan the read lock.
//
// Durability: writes reach the operating system immediately but are only
// forced to stable storage, and the row count only committed to the file
// headers, by Close. After a crash every row and tombstone written since the
// last successful Close may be lost; Open then exposes the rows of the last
// Close.
type Store struct {
	directory string
	dataFile  *os.File
	indexFile *os.File
	// offsets[i] is the record offset of row i+1, 0 for a tombstone.
	offsets []uint64
	size    int64
	codec   codec.Codec
	mutex   sync.RWMutex
	config  *Config
	logger  *slog.Logger
	closed  bool
}

const (
	dataFileName  = "db.rows"
	indexFileName = "db.rows.idx"

	formatVersion = 1

	dataHeaderSize  = 16 // 8(magic) + 4(version) + 4(rowCount)
	indexHeaderSize = 12 // 8(magic) + 4(count)
	indexEntrySize  = 8

	// tombstone marks a deleted row in the offset index. No record can start
	// at offset 0 because the data log header lives there.
	tombstone = 0
)

var (
	dataMagic  = []byte("RCASKDB\n")
	indexMagic = []byte("RCASKIX\n")
)
