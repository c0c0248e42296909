package journal

import (
	"errors"
	"fmt"

	"github.com/dojam/dojam/internal/leb128"
)

// ErrTruncatedEntry reports an entry frame that ends before its declared
// payload length, or a missing sync byte.
var ErrTruncatedEntry = errors.New("journal: truncated entry")

// DecodeEntry decodes one framed entry from the start of buf, returning the
// entry and the number of bytes consumed.
func DecodeEntry(buf []byte) (Entry, int, error) {
	if len(buf) == 0 || buf[0] != SyncByte {
		return Entry{}, 0, fmt.Errorf("%w: missing sync byte", ErrTruncatedEntry)
	}

	pos := 1

	ts, n, err := leb128.Varint(buf[pos:])
	if err != nil {
		return Entry{}, 0, fmt.Errorf("%w: ts: %v", ErrTruncatedEntry, err) //nolint:errorlint
	}

	pos += n

	artistID, n, err := leb128.Varint(buf[pos:])
	if err != nil {
		return Entry{}, 0, fmt.Errorf("%w: artist_id: %v", ErrTruncatedEntry, err) //nolint:errorlint
	}

	pos += n

	sessionID, n, err := leb128.Varint(buf[pos:])
	if err != nil {
		return Entry{}, 0, fmt.Errorf("%w: session_id: %v", ErrTruncatedEntry, err) //nolint:errorlint
	}

	pos += n

	tracer, n, err := leb128.Varint(buf[pos:])
	if err != nil {
		return Entry{}, 0, fmt.Errorf("%w: tracer: %v", ErrTruncatedEntry, err) //nolint:errorlint
	}

	pos += n

	payloadLen, n, err := leb128.Uvarint(buf[pos:])
	if err != nil {
		return Entry{}, 0, fmt.Errorf("%w: payload_len: %v", ErrTruncatedEntry, err) //nolint:errorlint
	}

	pos += n

	if uint64(len(buf)-pos) < payloadLen {
		return Entry{}, 0, fmt.Errorf("%w: payload short by %d bytes", ErrTruncatedEntry, int(payloadLen)-(len(buf)-pos))
	}

	payload := append([]byte(nil), buf[pos:pos+int(payloadLen)]...)
	pos += int(payloadLen)

	return Entry{
		TsMicro:   ts,
		ArtistID:  artistID,
		SessionID: sessionID,
		Tracer:    tracer,
		Payload:   payload,
	}, pos, nil
}

// TailEntry pairs a decoded entry with the journal offset it starts at.
type TailEntry struct {
	Offset int64
	Entry  Entry
}

// Tail reads and decodes every entry in [fromOffset, Size()), in order.
// Used by the host to broadcast a journal segment and by peers to spool
// raw journal bytes into their upstream snapshot (spec.md §4.4/§4.5).
func (j *Journal) Tail(fromOffset int64) ([]TailEntry, error) {
	size := j.Size()
	if fromOffset >= size {
		return nil, nil
	}

	raw, err := j.Pread(fromOffset, int(size-fromOffset))
	if err != nil {
		return nil, fmt.Errorf("journal: tail: %w", err)
	}

	var (
		out []TailEntry
		pos int
	)

	for pos < len(raw) {
		entry, n, err := DecodeEntry(raw[pos:])
		if err != nil {
			return nil, fmt.Errorf("journal: tail: %w", err)
		}

		out = append(out, TailEntry{Offset: fromOffset + int64(pos), Entry: entry})
		pos += n
	}

	return out, nil
}
