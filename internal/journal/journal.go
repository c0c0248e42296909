// Package journal implements the append-only journal file described in
// spec.md §4.1/§6: a header-prefixed file of framed entries, exposed
// through append/pread/size, backed by a bounded in-memory ring so recent
// writes are visible to readers before they reach disk.
package journal

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/dojam/dojam/internal/leb128"
	"github.com/dojam/dojam/internal/ring"
	"github.com/dojam/dojam/pkg/fs"
)

// Magic identifies a DO_JAM_JOURNAL file (spec.md §6).
const Magic = "DOJO0001"

// FormatVersion is the only version this package writes or accepts.
const FormatVersion uint64 = 10000

// HeaderSize is the fixed 24-byte header: 8 bytes magic, 8 bytes version,
// 8 bytes insignia.
const HeaderSize = 24

// SyncByte prefixes every framed entry.
const SyncByte = 0xFA

// ErrFormat reports a bad magic, wrong version, or truncated header.
var ErrFormat = errors.New("journal: format error")

// ErrBufferFull is re-exported from [ring.ErrBufferFull] for callers that
// only import this package.
var ErrBufferFull = ring.ErrBufferFull

// ErrReadOutOfRange is returned by Pread when the requested range exceeds
// the journal's current size.
var ErrReadOutOfRange = errors.New("journal: read out of range")

// Entry is one committed mim message, framed per spec.md §6.
type Entry struct {
	TsMicro   int64
	ArtistID  int64
	SessionID int64
	Tracer    int64
	Payload   []byte
}

// Journal is an append-only file plus its in-memory ring of recent writes.
//
// The host tick is the only appender; any number of peers/readers may call
// Pread/Size concurrently without blocking the appender (spec.md §5).
type Journal struct {
	file     fs.File
	insignia uint64

	mu   sync.Mutex // guards size bookkeeping and file writes
	size int64       // logical size, updated immediately on Write (pre-flush)

	buf *ring.Buffer
}

// Create creates a new journal file at path with a random insignia.
func Create(fsys fs.FS, path string, ringSizeLog2 int) (*Journal, error) {
	file, err := fsys.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, fmt.Errorf("journal: create %q: %w", path, err)
	}

	insignia, err := randomInsignia()
	if err != nil {
		_ = file.Close()

		return nil, err
	}

	header := make([]byte, 0, HeaderSize)
	header = append(header, Magic...)
	header = binary.LittleEndian.AppendUint64(header, FormatVersion)
	header = binary.LittleEndian.AppendUint64(header, insignia)

	if _, err := file.Write(header); err != nil {
		_ = file.Close()

		return nil, fmt.Errorf("journal: write header: %w", err)
	}

	buf := ring.New(1 << ringSizeLog2)
	buf.SeedAt(HeaderSize)

	return &Journal{
		file:     file,
		insignia: insignia,
		size:     HeaderSize,
		buf:      buf,
	}, nil
}

// Open opens an existing journal file, validating its header.
func Open(fsys fs.FS, path string, ringSizeLog2 int) (*Journal, error) {
	file, err := fsys.OpenFile(path, os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("journal: open %q: %w", path, err)
	}

	header := make([]byte, HeaderSize)

	_, err = io.ReadFull(newFileReader(file, 0), header)
	if err != nil {
		_ = file.Close()

		return nil, fmt.Errorf("%w: read header: %v", ErrFormat, err) //nolint:errorlint // wrapped message, not the sentinel
	}

	if string(header[:8]) != Magic {
		_ = file.Close()

		return nil, fmt.Errorf("%w: bad magic", ErrFormat)
	}

	version := binary.LittleEndian.Uint64(header[8:16])
	if version != FormatVersion {
		_ = file.Close()

		return nil, fmt.Errorf("%w: version %d unsupported", ErrFormat, version)
	}

	insignia := binary.LittleEndian.Uint64(header[16:24])

	info, err := file.Stat()
	if err != nil {
		_ = file.Close()

		return nil, fmt.Errorf("journal: stat: %w", err)
	}

	buf := ring.New(1 << ringSizeLog2)
	buf.SeedAt(uint64(info.Size()))

	return &Journal{
		file:     file,
		insignia: insignia,
		size:     info.Size(),
		buf:      buf,
	}, nil
}

// Insignia returns the 64-bit value bound to this journal at creation, used
// to validate snapshot-cache freshness (spec.md §3 invariant 4).
func (j *Journal) Insignia() uint64 { return j.insignia }

// Size returns the logical size of the journal, reflecting appends
// immediately, before they are flushed to disk (spec.md §4.1).
func (j *Journal) Size() int64 {
	j.mu.Lock()
	defer j.mu.Unlock()

	return j.size
}

// Close closes the underlying file.
func (j *Journal) Close() error {
	if err := j.file.Close(); err != nil {
		return fmt.Errorf("journal: close: %w", err)
	}

	return nil
}

// Append frames e and appends it, returning the offset the entry starts at.
// If sync is true, the file is fsync'd before Append returns.
//
// Append may fail with [ErrBufferFull] if the in-memory ring lacks
// free space for the frame; callers should drain acknowledgements
// and retry (spec.md §7).
func (j *Journal) Append(e Entry, sync bool) (int64, error) {
	frame := encodeEntry(e)

	j.mu.Lock()
	defer j.mu.Unlock()

	offset := j.size

	if err := j.buf.Write(frame); err != nil {
		return 0, fmt.Errorf("journal: append: %w", err)
	}

	if _, err := j.file.Write(frame); err != nil {
		return 0, fmt.Errorf("journal: append: write: %w", err)
	}

	j.size += int64(len(frame))

	if sync {
		if err := j.file.Sync(); err != nil {
			return 0, fmt.Errorf("journal: append: sync: %w", err)
		}
	}

	return offset, nil
}

// Pread reads length bytes starting at offset, preferring the in-memory
// ring for ranges that are still resident there (spec.md §4.1).
func (j *Journal) Pread(offset int64, length int) ([]byte, error) {
	j.mu.Lock()
	size := j.size
	j.mu.Unlock()

	if offset < 0 || offset+int64(length) > size {
		return nil, fmt.Errorf("%w: offset=%d length=%d size=%d", ErrReadOutOfRange, offset, length, size)
	}

	out := make([]byte, length)

	fromRing := j.buf.PeekRange(uint64(offset), out)
	if fromRing == length {
		return out, nil
	}

	// Any part not resident in the ring: re-read the whole range from the file.
	if _, err := j.file.Seek(offset, io.SeekStart); err != nil {
		return nil, fmt.Errorf("journal: pread: seek: %w", err)
	}

	if _, err := io.ReadFull(j.file, out); err != nil {
		return nil, fmt.Errorf("journal: pread: %w", err)
	}

	return out, nil
}

// ReplayFrom decodes every entry between offset and the journal's current
// end, in order. It's how a host or peer rebuilds a snapshot on startup:
// replay from 0 for a fresh journal, or from a snapshot-cache restore's
// journal offset to catch up the rest (spec.md §8 property 2).
func (j *Journal) ReplayFrom(offset int64) ([]Entry, error) {
	j.mu.Lock()
	size := j.size
	j.mu.Unlock()

	if offset < 0 || offset > size {
		return nil, fmt.Errorf("%w: offset=%d size=%d", ErrReadOutOfRange, offset, size)
	}

	buf, err := j.Pread(offset, int(size-offset))
	if err != nil {
		return nil, fmt.Errorf("journal: replay: %w", err)
	}

	var entries []Entry

	for len(buf) > 0 {
		e, consumed, err := DecodeEntry(buf)
		if err != nil {
			return nil, fmt.Errorf("journal: replay: %w", err)
		}

		entries = append(entries, e)
		buf = buf[consumed:]
	}

	return entries, nil
}

// EvictFlushed releases ring-buffer space for bytes up through offset once
// the caller knows they are durably on disk (or no longer need buffering).
// It is safe to call with an offset before the ring's current tail.
func (j *Journal) EvictFlushed(offset int64) {
	tail := j.buf.TailOffset()

	if uint64(offset) <= tail {
		return
	}

	j.buf.Advance(int(uint64(offset) - tail))
}

func randomInsignia() (uint64, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("journal: generate insignia: %w", err)
	}

	return binary.LittleEndian.Uint64(b[:]), nil
}

func encodeEntry(e Entry) []byte {
	buf := make([]byte, 0, 32+len(e.Payload))
	buf = append(buf, SyncByte)
	buf = leb128.AppendVarint(buf, e.TsMicro)
	buf = leb128.AppendVarint(buf, e.ArtistID)
	buf = leb128.AppendVarint(buf, e.SessionID)
	buf = leb128.AppendVarint(buf, e.Tracer)
	buf = leb128.AppendUvarint(buf, uint64(len(e.Payload)))
	buf = append(buf, e.Payload...)

	return buf
}

// fileReader adapts fs.File (which may not expose ReadAt) to io.Reader at
// a fixed starting offset, used only for the one-shot header read.
type fileReader struct {
	f      fs.File
	offset int64
}

func newFileReader(f fs.File, offset int64) *fileReader {
	return &fileReader{f: f, offset: offset}
}

func (r *fileReader) Read(p []byte) (int, error) {
	if _, err := r.f.Seek(r.offset, io.SeekStart); err != nil {
		return 0, fmt.Errorf("journal: seek: %w", err)
	}

	n, err := r.f.Read(p)
	r.offset += int64(n)

	return n, err //nolint:wrapcheck // io.Reader contract: caller checks io.EOF etc.
}
