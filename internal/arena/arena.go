// Package arena implements the scratch bump allocator described in
// spec.md §4.7/§9: a fixed-capacity byte arena used for every transient
// allocation the mie compiler and vmie VM make during one compile+run
// cycle. Out-of-memory is an explicit result, never a non-local exit
// (spec.md's "Non-local exits for OOM" design note).
package arena

import "errors"

// ErrOOM reports that capacity was exhausted. Callers wrap a compile+run
// cycle in Begin/End and should discard all allocations made since Begin
// when this is returned.
var ErrOOM = errors.New("arena: out of memory")

// ErrNotMostRecent is returned by Shrink when newSize is negative or larger
// than the handle's current size. Resizing an older allocation is not an
// error: Grow copies it to a fresh tail region and Shrink narrows it
// without reclaiming space.
var ErrNotMostRecent = errors.New("arena: not the most recent allocation")

// Handle identifies one allocation's position and size within the arena.
// It is stable across unrelated allocations but invalidated by Reset.
type Handle struct {
	offset int
	size   int
}

// Arena is a bump allocator over one fixed-size backing buffer. There is no
// per-allocation free; memory is reclaimed only by Reset or by rewinding to
// a Mark taken earlier in the same scope.
type Arena struct {
	buf       []byte
	len       int
	lastAlloc int // offset of the most recent allocation, or -1
}

// New returns an Arena with the given fixed capacity.
func New(capacity int) *Arena {
	return &Arena{buf: make([]byte, capacity), lastAlloc: -1}
}

// Cap returns the arena's fixed capacity.
func (a *Arena) Cap() int { return len(a.buf) }

// Len returns the number of bytes currently allocated.
func (a *Arena) Len() int { return a.len }

// Mark is a rewind point captured by Begin and consumed by End.
type Mark struct {
	len       int
	lastAlloc int
}

// Begin captures the arena's current allocation point, to be restored by
// End on OOM or on normal scope exit (spec.md §4.7's begin/end scope pair).
func (a *Arena) Begin() Mark {
	return Mark{len: a.len, lastAlloc: a.lastAlloc}
}

// End rewinds the arena to m, discarding every allocation made since the
// matching Begin.
func (a *Arena) End(m Mark) {
	a.len = m.len
	a.lastAlloc = m.lastAlloc
}

// Alloc reserves size bytes and returns a handle to them, or [ErrOOM] if
// the arena lacks room.
func (a *Arena) Alloc(size int) (Handle, error) {
	if size < 0 {
		size = 0
	}

	if a.len+size > len(a.buf) {
		return Handle{}, ErrOOM
	}

	h := Handle{offset: a.len, size: size}
	a.len += size
	a.lastAlloc = h.offset

	return h, nil
}

// Bytes returns the backing slice for h. The slice aliases the arena's
// buffer and is only valid until the next Reset/End that would rewind past
// h's allocation.
func (a *Arena) Bytes(h Handle) []byte {
	return a.buf[h.offset : h.offset+h.size]
}

// Grow resizes h to newSize. The most recent allocation is resized in
// place (a smaller newSize is handed to Shrink); any other allocation is
// copied to a fresh tail region (spec.md §4.7: "Allocations may be shrunk or grown in place if they are
// the most recent allocation; growth otherwise memcpy's to a fresh tail
// region").
func (a *Arena) Grow(h Handle, newSize int) (Handle, error) {
	if h.offset != a.lastAlloc {
		return a.reallocTail(h, newSize)
	}

	delta := newSize - h.size
	if delta < 0 {
		return a.Shrink(h, newSize)
	}

	if a.len+delta > len(a.buf) {
		return Handle{}, ErrOOM
	}

	a.len += delta

	return Handle{offset: h.offset, size: newSize}, nil
}

// Shrink resizes h in place to a smaller newSize. Only the most recent
// allocation can release its trailing bytes back to the arena; shrinking
// an older allocation just returns a handle describing fewer live bytes
// without reclaiming space.
func (a *Arena) Shrink(h Handle, newSize int) (Handle, error) {
	if newSize < 0 || newSize > h.size {
		return Handle{}, ErrNotMostRecent
	}

	if h.offset == a.lastAlloc {
		a.len = h.offset + newSize
	}

	return Handle{offset: h.offset, size: newSize}, nil
}

// reallocTail grows an allocation that is not the most recent one by
// copying it to a fresh allocation at the current tail.
func (a *Arena) reallocTail(h Handle, newSize int) (Handle, error) {
	if newSize < h.size {
		newSize = h.size
	}

	fresh, err := a.Alloc(newSize)
	if err != nil {
		return Handle{}, err
	}

	copy(a.buf[fresh.offset:], a.buf[h.offset:h.offset+h.size])

	return fresh, nil
}

// Reset discards every allocation, making the full capacity available
// again.
func (a *Arena) Reset() {
	a.len = 0
	a.lastAlloc = -1
}
