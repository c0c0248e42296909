// Package snapcache implements the on-disk snapshot cache described in
// spec.md §4.2/§6: a derived, rebuildable index over a data file of packed
// entities, used to skip replaying the journal from the start on restart.
package snapcache

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dojam/dojam/pkg/fs"
)

// DataMagic identifies the snapshot cache data file.
const DataMagic = "DOSD0001"

// IndexMagic identifies the snapshot cache index file.
const IndexMagic = "DOSI0001"

// HeaderSize is the fixed 16-byte header shared by both files: 8 bytes
// magic, 8 bytes insignia.
const HeaderSize = 16

// IndexEntrySize is the fixed size of one index record: 3 little-endian
// uint64 fields (spec.md §6).
const IndexEntrySize = 24

// SyncByte prefixes every entity record in the data file.
const SyncByte = 0xFA

// ErrFormat reports a bad magic or truncated header.
var ErrFormat = errors.New("snapcache: format error")

// ErrInsigniaMismatch reports that the data and index files (or the cache
// and its journal) carry different insignia values, making the cache
// unusable (spec.md §3 invariant 4).
var ErrInsigniaMismatch = errors.New("snapcache: insignia mismatch")

// ErrEmpty reports that the index file has no entries yet, so there is
// nothing to restore.
var ErrEmpty = errors.New("snapcache: empty index")

// IndexEntry is one append-only index record pointing at a manifest.
type IndexEntry struct {
	TsMicro        int64
	ManifestOffset int64
	JournalOffset  int64
}

// Cache is the pair of correlated snapshot-cache files.
//
// The host is the sole writer, invoked only between journal appends
// (spec.md §4.2: "This component must never block the append path"), so no
// internal locking beyond what [pkg/fs.File] itself provides is needed.
type Cache struct {
	data     fs.File
	index    fs.File
	insignia uint64

	dataSize  int64
	indexSize int64
}

// Create creates a new, empty cache pair bound to insignia.
func Create(fsys fs.FS, dataPath, indexPath string, insignia uint64) (*Cache, error) {
	data, err := fsys.OpenFile(dataPath, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, fmt.Errorf("snapcache: create %q: %w", dataPath, err)
	}

	index, err := fsys.OpenFile(indexPath, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		_ = data.Close()

		return nil, fmt.Errorf("snapcache: create %q: %w", indexPath, err)
	}

	if err := writeHeader(data, DataMagic, insignia); err != nil {
		_ = data.Close()
		_ = index.Close()

		return nil, err
	}

	if err := writeHeader(index, IndexMagic, insignia); err != nil {
		_ = data.Close()
		_ = index.Close()

		return nil, err
	}

	return &Cache{
		data:      data,
		index:     index,
		insignia:  insignia,
		dataSize:  HeaderSize,
		indexSize: HeaderSize,
	}, nil
}

// Open opens an existing cache pair and validates both headers agree with
// wantInsignia. A returned [ErrInsigniaMismatch] or [ErrFormat] tells the
// caller the cache is unusable and must be recreated (spec.md §3 invariant
// 4, §4.2).
func Open(fsys fs.FS, dataPath, indexPath string, wantInsignia uint64) (*Cache, error) {
	data, err := fsys.OpenFile(dataPath, os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("snapcache: open %q: %w", dataPath, err)
	}

	index, err := fsys.OpenFile(indexPath, os.O_RDWR, 0o600)
	if err != nil {
		_ = data.Close()

		return nil, fmt.Errorf("snapcache: open %q: %w", indexPath, err)
	}

	dataInsignia, err := readHeader(data, DataMagic)
	if err != nil {
		_ = data.Close()
		_ = index.Close()

		return nil, err
	}

	indexInsignia, err := readHeader(index, IndexMagic)
	if err != nil {
		_ = data.Close()
		_ = index.Close()

		return nil, err
	}

	if dataInsignia != indexInsignia {
		_ = data.Close()
		_ = index.Close()

		return nil, fmt.Errorf("%w: data=%d index=%d", ErrInsigniaMismatch, dataInsignia, indexInsignia)
	}

	if dataInsignia != wantInsignia {
		_ = data.Close()
		_ = index.Close()

		return nil, fmt.Errorf("%w: cache=%d journal=%d", ErrInsigniaMismatch, dataInsignia, wantInsignia)
	}

	dataInfo, err := data.Stat()
	if err != nil {
		_ = data.Close()
		_ = index.Close()

		return nil, fmt.Errorf("snapcache: stat: %w", err)
	}

	indexInfo, err := index.Stat()
	if err != nil {
		_ = data.Close()
		_ = index.Close()

		return nil, fmt.Errorf("snapcache: stat: %w", err)
	}

	if (indexInfo.Size()-HeaderSize)%IndexEntrySize != 0 {
		_ = data.Close()
		_ = index.Close()

		return nil, fmt.Errorf("%w: index size %d violates entry-size invariant", ErrFormat, indexInfo.Size())
	}

	return &Cache{
		data:      data,
		index:     index,
		insignia:  dataInsignia,
		dataSize:  dataInfo.Size(),
		indexSize: indexInfo.Size(),
	}, nil
}

// Close closes both underlying files.
func (c *Cache) Close() error {
	err1 := c.data.Close()
	err2 := c.index.Close()

	if err1 != nil {
		return fmt.Errorf("snapcache: close: %w", err1)
	}

	if err2 != nil {
		return fmt.Errorf("snapcache: close: %w", err2)
	}

	return nil
}

// Insignia returns the 64-bit value this cache pair is bound to.
func (c *Cache) Insignia() uint64 { return c.insignia }

func writeHeader(f fs.File, magic string, insignia uint64) error {
	buf := make([]byte, 0, HeaderSize)
	buf = append(buf, magic...)
	buf = binary.LittleEndian.AppendUint64(buf, insignia)

	if _, err := f.Write(buf); err != nil {
		return fmt.Errorf("snapcache: write header: %w", err)
	}

	return nil
}

func readHeader(f fs.File, wantMagic string) (uint64, error) {
	buf := make([]byte, HeaderSize)

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return 0, fmt.Errorf("snapcache: seek: %w", err)
	}

	if _, err := io.ReadFull(f, buf); err != nil {
		return 0, fmt.Errorf("%w: read header: %v", ErrFormat, err) //nolint:errorlint // wrapped message, not the sentinel
	}

	if string(buf[:8]) != wantMagic {
		return 0, fmt.Errorf("%w: bad magic", ErrFormat)
	}

	return binary.LittleEndian.Uint64(buf[8:16]), nil
}
