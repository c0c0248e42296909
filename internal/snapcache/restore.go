package snapcache

import (
	"encoding/binary"
	"fmt"

	"github.com/dojam/dojam/internal/model"
)

// LastIndexEntry returns the most recently appended index entry, or
// [ErrEmpty] if the index has none yet.
func (c *Cache) LastIndexEntry() (IndexEntry, error) {
	if c.indexSize <= HeaderSize {
		return IndexEntry{}, ErrEmpty
	}

	offset := c.indexSize - IndexEntrySize

	buf, err := readAt(c.index, offset, IndexEntrySize)
	if err != nil {
		return IndexEntry{}, fmt.Errorf("snapcache: read last index entry: %w", err)
	}

	return IndexEntry{
		TsMicro:        int64(binary.LittleEndian.Uint64(buf[0:8])),
		ManifestOffset: int64(binary.LittleEndian.Uint64(buf[8:16])),
		JournalOffset:  int64(binary.LittleEndian.Uint64(buf[16:24])),
	}, nil
}

// Restore rebuilds a [model.Snapshot] from the most recent manifest, per
// spec.md §4.2's restart procedure, and reports the journal offset the
// caller must replay forward from.
func (c *Cache) Restore() (*model.Snapshot, int64, error) {
	entry, err := c.LastIndexEntry()
	if err != nil {
		return nil, 0, err
	}

	manifestBuf, err := readAt(c.data, entry.ManifestOffset, int(c.dataSize-entry.ManifestOffset))
	if err != nil {
		return nil, 0, fmt.Errorf("snapcache: restore: read manifest: %w", err)
	}

	m, err := decodeManifest(manifestBuf)
	if err != nil {
		return nil, 0, fmt.Errorf("snapcache: restore: %w", err)
	}

	snap := model.New()

	for _, off := range m.bookOffsets {
		buf, err := readAt(c.data, off, int(c.dataSize-off))
		if err != nil {
			return nil, 0, fmt.Errorf("snapcache: restore: read book: %w", err)
		}

		b, _, err := decodeBook(buf)
		if err != nil {
			return nil, 0, fmt.Errorf("snapcache: restore: %w", err)
		}

		b.SnapshotCacheOffset = off
		snap.Books = append(snap.Books, b)
	}

	for _, off := range m.docOffsets {
		buf, err := readAt(c.data, off, int(c.dataSize-off))
		if err != nil {
			return nil, 0, fmt.Errorf("snapcache: restore: read document: %w", err)
		}

		d, _, err := decodeDocument(buf)
		if err != nil {
			return nil, 0, fmt.Errorf("snapcache: restore: %w", err)
		}

		d.SnapshotCacheOffset = off
		snap.Documents = append(snap.Documents, d)
	}

	for _, off := range m.mimOffsets {
		buf, err := readAt(c.data, off, int(c.dataSize-off))
		if err != nil {
			return nil, 0, fmt.Errorf("snapcache: restore: read mim-state: %w", err)
		}

		ms, _, err := decodeMimState(buf)
		if err != nil {
			return nil, 0, fmt.Errorf("snapcache: restore: %w", err)
		}

		ms.SnapshotCacheOffset = off
		snap.MimStates = append(snap.MimStates, ms)
	}

	return snap, entry.JournalOffset, nil
}
