package snapcache

import (
	"fmt"
	"io"

	"github.com/dojam/dojam/internal/leb128"
)

// manifest lists, in order, the data-file offsets of every entity live in a
// snapshot at the moment a push wrote it (spec.md §4.2).
type manifest struct {
	bookOffsets []int64
	docOffsets  []int64
	mimOffsets  []int64
}

func encodeManifest(m manifest) []byte {
	buf := make([]byte, 0, 8+8*(len(m.bookOffsets)+len(m.docOffsets)+len(m.mimOffsets)))
	buf = leb128.AppendUvarint(buf, uint64(len(m.bookOffsets)))
	buf = leb128.AppendUvarint(buf, uint64(len(m.docOffsets)))
	buf = leb128.AppendUvarint(buf, uint64(len(m.mimOffsets)))

	for _, o := range m.bookOffsets {
		buf = leb128.AppendVarint(buf, o)
	}

	for _, o := range m.docOffsets {
		buf = leb128.AppendVarint(buf, o)
	}

	for _, o := range m.mimOffsets {
		buf = leb128.AppendVarint(buf, o)
	}

	return buf
}

func decodeManifest(buf []byte) (manifest, error) {
	numBooks, n, err := leb128.Uvarint(buf)
	if err != nil {
		return manifest{}, fmt.Errorf("snapcache: decode manifest book count: %w", err)
	}

	pos := n

	numDocs, n, err := leb128.Uvarint(buf[pos:])
	if err != nil {
		return manifest{}, fmt.Errorf("snapcache: decode manifest doc count: %w", err)
	}

	pos += n

	numMims, n, err := leb128.Uvarint(buf[pos:])
	if err != nil {
		return manifest{}, fmt.Errorf("snapcache: decode manifest mim-state count: %w", err)
	}

	pos += n

	readOffsets := func(count uint64) ([]int64, error) {
		out := make([]int64, count)

		for i := range out {
			v, n, err := leb128.Varint(buf[pos:])
			if err != nil {
				return nil, fmt.Errorf("snapcache: decode manifest offset: %w", err)
			}

			out[i] = v
			pos += n
		}

		return out, nil
	}

	bookOffsets, err := readOffsets(numBooks)
	if err != nil {
		return manifest{}, err
	}

	docOffsets, err := readOffsets(numDocs)
	if err != nil {
		return manifest{}, err
	}

	mimOffsets, err := readOffsets(numMims)
	if err != nil {
		return manifest{}, err
	}

	return manifest{bookOffsets: bookOffsets, docOffsets: docOffsets, mimOffsets: mimOffsets}, nil
}

// readAt reads length bytes at offset from f without disturbing any other
// caller's notion of the file's position (callers seek before every read).
func readAt(f interface {
	io.Reader
	io.Seeker
}, offset int64, length int) ([]byte, error) {
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return nil, fmt.Errorf("snapcache: seek: %w", err)
	}

	buf := make([]byte, length)
	if _, err := io.ReadFull(f, buf); err != nil {
		return nil, fmt.Errorf("snapcache: read: %w", err)
	}

	return buf, nil
}
