// Package ring implements a single-producer single-consumer byte ring
// buffer with a power-of-two capacity and atomic head/tail indices.
//
// It backs two call sites named in spec.md: the journal's in-memory ring
// (§4.1, so recent appends are visible to readers before they reach disk)
// and the peer-to-host mim ring used when a peer and the host share a
// process (§4.5/§5). Both want the same contract - non-blocking producer
// writes that are all-or-nothing across the wrap, and a consumer that reads
// a contiguous range before advancing tail - so one implementation serves
// both, following moby/moby's idiom of bounded ring buffers with
// acquire/release atomics over raw byte copies.
package ring

import (
	"errors"
	"sync/atomic"
)

// ErrBufferFull is returned by Write when there is not enough free space
// for the whole record (a record that wraps is split across the end). Callers should retry after the consumer
// has drained acknowledgements (spec.md §4.1/§7).
var ErrBufferFull = errors.New("ring: buffer full")

// ErrTooLarge is returned when a single write can never fit, regardless of
// how much the consumer drains.
var ErrTooLarge = errors.New("ring: record larger than capacity")

// Buffer is an SPSC byte ring. The zero value is not usable; use [New].
type Buffer struct {
	buf  []byte
	mask uint64

	head atomic.Uint64 // write position, advanced only by the producer
	tail atomic.Uint64 // read position, advanced only by the consumer
}

// New creates a Buffer with the given capacity, rounded up to a power of two.
func New(capacity int) *Buffer {
	size := uint64(1)
	for size < uint64(capacity) {
		size <<= 1
	}

	if size == 0 {
		size = 1
	}

	return &Buffer{
		buf:  make([]byte, size),
		mask: size - 1,
	}
}

// Cap returns the buffer's capacity in bytes.
func (b *Buffer) Cap() int { return len(b.buf) }

// SeedAt resets both head and tail to pos, as if the buffer had been
// created empty starting at absolute position pos rather than 0.
//
// Callers whose logical offsets don't start at zero - the journal's ring
// sits behind a fixed-size file header, so its first writable byte is at
// offset HeaderSize, not 0 - must call this once before the first Write so
// PeekRange's tail/head bounds line up with those offsets. Must be called
// before any Write/Read; it is not safe to call concurrently with either.
func (b *Buffer) SeedAt(pos uint64) {
	b.head.Store(pos)
	b.tail.Store(pos)
}

// Len returns the number of bytes currently readable.
func (b *Buffer) Len() int {
	return int(b.head.Load() - b.tail.Load())
}

// Free returns the number of bytes currently writable.
func (b *Buffer) Free() int {
	return len(b.buf) - b.Len()
}

// Write appends p to the ring as a single contiguous record. It fails with
// [ErrBufferFull] if there is not currently enough free space, or
// [ErrTooLarge] if p can never fit. Writes are all-or-nothing: on error, no
// bytes are written.
//
// Write must only be called by the single producer goroutine/thread.
func (b *Buffer) Write(p []byte) error {
	if len(p) > len(b.buf) {
		return ErrTooLarge
	}

	if len(p) > b.Free() {
		return ErrBufferFull
	}

	head := b.head.Load()
	start := head & b.mask

	n := copy(b.buf[start:], p)
	if n < len(p) {
		copy(b.buf, p[n:]) // wraps around: split into two memcpys
	}

	b.head.Store(head + uint64(len(p)))

	return nil
}

// Peek copies up to len(p) readable bytes starting at the current tail into
// p without advancing the consumer position, returning the number copied.
func (b *Buffer) Peek(p []byte) int {
	return b.peekAt(b.tail.Load(), p)
}

// peekAt copies readable bytes starting at absolute position pos into p,
// clamped to what is currently resident between pos and head.
func (b *Buffer) peekAt(pos uint64, p []byte) int {
	head := b.head.Load()

	available := int(head - pos)
	if available < 0 {
		available = 0
	}

	n := len(p)
	if n > available {
		n = available
	}

	start := pos & b.mask

	first := copy(p[:n], b.buf[start:])
	if first < n {
		copy(p[first:n], b.buf[:n-first])
	}

	return n
}

// Advance moves the consumer's tail forward by n bytes, releasing that
// space back to the producer. n must not exceed Len().
//
// Advance must only be called by the single consumer goroutine/thread.
func (b *Buffer) Advance(n int) {
	b.tail.Add(uint64(n))
}

// Read copies up to len(p) readable bytes into p and advances tail by the
// amount copied, returning the number read.
func (b *Buffer) Read(p []byte) int {
	n := b.Peek(p)
	b.Advance(n)

	return n
}

// TailOffset returns the consumer's current absolute read position. Useful
// for callers (the journal) that want to correlate ring positions with
// on-disk file offsets.
func (b *Buffer) TailOffset() uint64 { return b.tail.Load() }

// HeadOffset returns the producer's current absolute write position.
func (b *Buffer) HeadOffset() uint64 { return b.head.Load() }

// PeekRange copies bytes in the absolute range [from, from+len(p)) into p,
// returning the number of bytes actually resident in the ring for that
// range (may be less than len(p) if part of the range has already been
// evicted or has not been written yet).
//
// This supports the journal's requirement that reads targeting ranges
// already resident in the ring are satisfied from memory (spec.md §4.1).
func (b *Buffer) PeekRange(from uint64, p []byte) int {
	tail := b.tail.Load()
	head := b.head.Load()

	if from < tail || from > head {
		return 0
	}

	return b.peekAt(from, p)
}
