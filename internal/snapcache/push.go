package snapcache

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/dojam/dojam/internal/model"
)

// Push packs every entity in snap whose SnapshotCacheOffset is still zero,
// writes a new manifest referencing every entity (old and new), and appends
// one index entry pointing at it (spec.md §4.2's push policy). Entities that
// already have an offset are left untouched in the data file; only their
// offset is reused in the new manifest, so unmutated entities are never
// rewritten.
//
// Push mutates the SnapshotCacheOffset field of every entity it packs, so
// callers should push the same *model.Snapshot the host keeps as upstream.
func (c *Cache) Push(snap *model.Snapshot, journalOffset, tsMicro int64) error {
	if _, err := c.data.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("snapcache: push: seek: %w", err)
	}

	for i := range snap.Books {
		if snap.Books[i].SnapshotCacheOffset != 0 {
			continue
		}

		off, err := c.appendData(encodeBook(snap.Books[i]))
		if err != nil {
			return err
		}

		snap.Books[i].SnapshotCacheOffset = off
	}

	for i := range snap.Documents {
		if snap.Documents[i].SnapshotCacheOffset != 0 {
			continue
		}

		off, err := c.appendData(encodeDocument(snap.Documents[i]))
		if err != nil {
			return err
		}

		snap.Documents[i].SnapshotCacheOffset = off
	}

	for i := range snap.MimStates {
		if snap.MimStates[i].SnapshotCacheOffset != 0 {
			continue
		}

		off, err := c.appendData(encodeMimState(snap.MimStates[i]))
		if err != nil {
			return err
		}

		snap.MimStates[i].SnapshotCacheOffset = off
	}

	m := manifest{
		bookOffsets: offsetsOfBooks(snap.Books),
		docOffsets:  offsetsOfDocuments(snap.Documents),
		mimOffsets:  offsetsOfMimStates(snap.MimStates),
	}

	manifestOffset := c.dataSize

	if _, err := c.appendData(encodeManifest(m)); err != nil {
		return err
	}

	return c.appendIndexEntry(IndexEntry{
		TsMicro:        tsMicro,
		ManifestOffset: manifestOffset,
		JournalOffset:  journalOffset,
	})
}

func (c *Cache) appendData(b []byte) (int64, error) {
	offset := c.dataSize

	if _, err := c.data.Write(b); err != nil {
		return 0, fmt.Errorf("snapcache: push: write data: %w", err)
	}

	c.dataSize += int64(len(b))

	return offset, nil
}

func (c *Cache) appendIndexEntry(e IndexEntry) error {
	buf := make([]byte, 0, IndexEntrySize)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(e.TsMicro))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(e.ManifestOffset))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(e.JournalOffset))

	if _, err := c.index.Write(buf); err != nil {
		return fmt.Errorf("snapcache: push: write index: %w", err)
	}

	c.indexSize += IndexEntrySize

	return nil
}

func offsetsOfBooks(books []model.Book) []int64 {
	out := make([]int64, len(books))
	for i, b := range books {
		out[i] = b.SnapshotCacheOffset
	}

	return out
}

func offsetsOfDocuments(docs []model.Document) []int64 {
	out := make([]int64, len(docs))
	for i, d := range docs {
		out[i] = d.SnapshotCacheOffset
	}

	return out
}

func offsetsOfMimStates(states []model.MimState) []int64 {
	out := make([]int64, len(states))
	for i, m := range states {
		out[i] = m.SnapshotCacheOffset
	}

	return out
}
