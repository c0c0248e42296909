// Package wire encodes and decodes the four message shapes that cross the
// peer/host transport boundary (spec.md §6). It never performs I/O itself -
// transport framing (WebSocket or otherwise) is explicitly out of scope
// (spec.md §1) - it only turns messages into bytes and back.
package wire

import (
	"errors"
	"fmt"

	"github.com/dojam/dojam/internal/journal"
	"github.com/dojam/dojam/internal/leb128"
)

// Opcodes, spec.md §6.
const (
	OpHello         byte = 0 // WS0_HELLO, peer -> host
	OpMim           byte = 1 // WS0_MIM, peer -> host
	OpHostHello     byte = 0 // WS1_HELLO, host -> peer
	OpJournalUpdate byte = 1 // WS1_JOURNAL_UPDATE, host -> peer
)

// ErrDecode reports a malformed wire message.
var ErrDecode = errors.New("wire: decode error")

// Hello is WS0_HELLO: a peer announcing the last journal offset it has seen.
type Hello struct {
	LastJournalOffset int64
}

// Encode serializes h as WS0_HELLO.
func (h Hello) Encode() []byte {
	buf := []byte{OpHello}

	return leb128.AppendVarint(buf, h.LastJournalOffset)
}

// DecodeHello decodes a WS0_HELLO message body (opcode byte included).
func DecodeHello(buf []byte) (Hello, error) {
	if len(buf) < 1 || buf[0] != OpHello {
		return Hello{}, fmt.Errorf("%w: hello: bad opcode", ErrDecode)
	}

	offset, _, err := leb128.Varint(buf[1:])
	if err != nil {
		return Hello{}, fmt.Errorf("%w: hello: %v", ErrDecode, err) //nolint:errorlint
	}

	return Hello{LastJournalOffset: offset}, nil
}

// Mim is WS0_MIM: a peer submitting one mim message for a session.
type Mim struct {
	SessionID int64
	Tracer    int64
	Payload   []byte
}

// Encode serializes m as WS0_MIM.
func (m Mim) Encode() []byte {
	buf := []byte{OpMim}
	buf = leb128.AppendVarint(buf, m.SessionID)
	buf = leb128.AppendVarint(buf, m.Tracer)

	return append(buf, m.Payload...)
}

// DecodeMim decodes a WS0_MIM message body (opcode byte included). The mim
// payload runs to the end of buf, since the message boundary is opaque and
// owned by the transport (spec.md §1/§6).
func DecodeMim(buf []byte) (Mim, error) {
	if len(buf) < 1 || buf[0] != OpMim {
		return Mim{}, fmt.Errorf("%w: mim: bad opcode", ErrDecode)
	}

	pos := 1

	sessionID, n, err := leb128.Varint(buf[pos:])
	if err != nil {
		return Mim{}, fmt.Errorf("%w: mim: session_id: %v", ErrDecode, err) //nolint:errorlint
	}

	pos += n

	tracer, n, err := leb128.Varint(buf[pos:])
	if err != nil {
		return Mim{}, fmt.Errorf("%w: mim: tracer: %v", ErrDecode, err) //nolint:errorlint
	}

	pos += n

	return Mim{
		SessionID: sessionID,
		Tracer:    tracer,
		Payload:   append([]byte(nil), buf[pos:]...),
	}, nil
}

// HostHello is WS1_HELLO: the host assigning a new artist id to a connection.
type HostHello struct {
	AssignedArtistID int64
}

// Encode serializes h as WS1_HELLO.
func (h HostHello) Encode() []byte {
	buf := []byte{OpHostHello}

	return leb128.AppendVarint(buf, h.AssignedArtistID)
}

// DecodeHostHello decodes a WS1_HELLO message body (opcode byte included).
func DecodeHostHello(buf []byte) (HostHello, error) {
	if len(buf) < 1 || buf[0] != OpHostHello {
		return HostHello{}, fmt.Errorf("%w: host_hello: bad opcode", ErrDecode)
	}

	artistID, _, err := leb128.Varint(buf[1:])
	if err != nil {
		return HostHello{}, fmt.Errorf("%w: host_hello: %v", ErrDecode, err) //nolint:errorlint
	}

	return HostHello{AssignedArtistID: artistID}, nil
}

// JournalUpdate is WS1_JOURNAL_UPDATE: a batch of raw journal bytes the
// host broadcasts after each commit (spec.md §4.5/§6).
type JournalUpdate struct {
	// Entries are full framed journal entries (sync byte through payload),
	// exactly as they appear on disk, so a peer can feed them straight into
	// [journal.DecodeEntry].
	Entries [][]byte
}

// Encode serializes u as WS1_JOURNAL_UPDATE.
func (u JournalUpdate) Encode() []byte {
	buf := []byte{OpJournalUpdate}
	buf = leb128.AppendUvarint(buf, uint64(len(u.Entries)))

	for _, e := range u.Entries {
		buf = append(buf, e...)
	}

	return buf
}

// DecodeJournalUpdate decodes a WS1_JOURNAL_UPDATE message body (opcode
// byte included), splitting the trailing byte stream back into individual
// framed entries using [journal.DecodeEntry] to find each boundary.
func DecodeJournalUpdate(buf []byte) (JournalUpdate, error) {
	if len(buf) < 1 || buf[0] != OpJournalUpdate {
		return JournalUpdate{}, fmt.Errorf("%w: journal_update: bad opcode", ErrDecode)
	}

	pos := 1

	count, n, err := leb128.Uvarint(buf[pos:])
	if err != nil {
		return JournalUpdate{}, fmt.Errorf("%w: journal_update: count: %v", ErrDecode, err) //nolint:errorlint
	}

	pos += n

	entries := make([][]byte, 0, count)

	for i := uint64(0); i < count; i++ {
		_, consumed, err := journal.DecodeEntry(buf[pos:])
		if err != nil {
			return JournalUpdate{}, fmt.Errorf("%w: journal_update: entry %d: %v", ErrDecode, i, err) //nolint:errorlint
		}

		entries = append(entries, append([]byte(nil), buf[pos:pos+consumed]...))
		pos += consumed
	}

	return JournalUpdate{Entries: entries}, nil
}
