package snapcache

import (
	"encoding/binary"
	"fmt"

	"github.com/dojam/dojam/internal/leb128"
	"github.com/dojam/dojam/internal/model"
)

// entityKind tags which struct a packed record decodes into. It is not
// part of the on-disk format by itself; the manifest already knows how many
// of each kind to expect and in what order (spec.md §4.2).
type entityKind int

const (
	kindBook entityKind = iota
	kindDocument
	kindMimState
)

func encodeBook(b model.Book) []byte {
	buf := make([]byte, 0, 24)
	buf = append(buf, SyncByte)
	buf = leb128.AppendVarint(buf, b.BookID)
	buf = leb128.AppendVarint(buf, int64(b.Fundament))

	return buf
}

func decodeBook(buf []byte) (model.Book, int, error) {
	pos, err := expectSync(buf)
	if err != nil {
		return model.Book{}, 0, err
	}

	bookID, n, err := leb128.Varint(buf[pos:])
	if err != nil {
		return model.Book{}, 0, fmt.Errorf("snapcache: decode book id: %w", err)
	}

	pos += n

	fundament, n, err := leb128.Varint(buf[pos:])
	if err != nil {
		return model.Book{}, 0, fmt.Errorf("snapcache: decode book fundament: %w", err)
	}

	pos += n

	return model.Book{BookID: bookID, Fundament: model.Fundament(fundament)}, pos, nil
}

func encodeDocument(d model.Document) []byte {
	buf := make([]byte, 0, 64+len(d.Chars)*6)
	buf = append(buf, SyncByte)
	buf = leb128.AppendVarint(buf, d.BookID)
	buf = leb128.AppendVarint(buf, d.DocID)
	buf = leb128.AppendUvarint(buf, uint64(len(d.Name)))
	buf = append(buf, d.Name...)
	buf = leb128.AppendUvarint(buf, uint64(len(d.Chars)))

	for _, c := range d.Chars {
		buf = leb128.AppendVarint(buf, int64(c.Codepoint))
		buf = binary.LittleEndian.AppendUint16(buf, uint16(c.Splash4))
		buf = append(buf, byte(c.Flags))
		buf = leb128.AppendVarint(buf, c.TsMicro)
	}

	return buf
}

func decodeDocument(buf []byte) (model.Document, int, error) {
	pos, err := expectSync(buf)
	if err != nil {
		return model.Document{}, 0, err
	}

	bookID, n, err := leb128.Varint(buf[pos:])
	if err != nil {
		return model.Document{}, 0, fmt.Errorf("snapcache: decode document book id: %w", err)
	}

	pos += n

	docID, n, err := leb128.Varint(buf[pos:])
	if err != nil {
		return model.Document{}, 0, fmt.Errorf("snapcache: decode document doc id: %w", err)
	}

	pos += n

	nameLen, n, err := leb128.Uvarint(buf[pos:])
	if err != nil {
		return model.Document{}, 0, fmt.Errorf("snapcache: decode document name length: %w", err)
	}

	pos += n

	if pos+int(nameLen) > len(buf) {
		return model.Document{}, 0, fmt.Errorf("%w: truncated document name", ErrFormat)
	}

	name := string(buf[pos : pos+int(nameLen)])
	pos += int(nameLen)

	numChars, n, err := leb128.Uvarint(buf[pos:])
	if err != nil {
		return model.Document{}, 0, fmt.Errorf("snapcache: decode document char count: %w", err)
	}

	pos += n

	chars := make([]model.DocChar, numChars)

	for i := range chars {
		cp, n, err := leb128.Varint(buf[pos:])
		if err != nil {
			return model.Document{}, 0, fmt.Errorf("snapcache: decode char codepoint: %w", err)
		}

		pos += n

		if pos+2 > len(buf) {
			return model.Document{}, 0, fmt.Errorf("%w: truncated char splash4", ErrFormat)
		}

		splash := model.Splash4(binary.LittleEndian.Uint16(buf[pos:]))
		pos += 2

		if pos+1 > len(buf) {
			return model.Document{}, 0, fmt.Errorf("%w: truncated char flags", ErrFormat)
		}

		flags := model.EditFlag(buf[pos])
		pos++

		ts, n, err := leb128.Varint(buf[pos:])
		if err != nil {
			return model.Document{}, 0, fmt.Errorf("snapcache: decode char timestamp: %w", err)
		}

		pos += n

		chars[i] = model.DocChar{
			ColorChar: model.ColorChar{Codepoint: rune(cp), Splash4: splash},
			Flags:     flags,
			TsMicro:   ts,
		}
	}

	return model.Document{BookID: bookID, DocID: docID, Name: name, Chars: chars}, pos, nil
}

func encodeMimState(m model.MimState) []byte {
	buf := make([]byte, 0, 48+len(m.Carets)*20)
	buf = append(buf, SyncByte)
	buf = leb128.AppendVarint(buf, m.ArtistID)
	buf = leb128.AppendVarint(buf, m.SessionID)
	buf = leb128.AppendVarint(buf, m.BookID)
	buf = leb128.AppendVarint(buf, m.DocID)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(m.Splash4))
	buf = leb128.AppendUvarint(buf, uint64(len(m.Carets)))

	for _, c := range m.Carets {
		buf = leb128.AppendVarint(buf, c.Tag)
		buf = leb128.AppendVarint(buf, int64(c.CaretLoc.Line))
		buf = leb128.AppendVarint(buf, int64(c.CaretLoc.Column))
		buf = leb128.AppendVarint(buf, int64(c.AnchorLoc.Line))
		buf = leb128.AppendVarint(buf, int64(c.AnchorLoc.Column))
	}

	return buf
}

func decodeMimState(buf []byte) (model.MimState, int, error) {
	pos, err := expectSync(buf)
	if err != nil {
		return model.MimState{}, 0, err
	}

	fields := make([]int64, 4)

	for i := range fields {
		v, n, err := leb128.Varint(buf[pos:])
		if err != nil {
			return model.MimState{}, 0, fmt.Errorf("snapcache: decode mim-state field %d: %w", i, err)
		}

		fields[i] = v
		pos += n
	}

	if pos+2 > len(buf) {
		return model.MimState{}, 0, fmt.Errorf("%w: truncated mim-state splash4", ErrFormat)
	}

	splash := model.Splash4(binary.LittleEndian.Uint16(buf[pos:]))
	pos += 2

	numCarets, n, err := leb128.Uvarint(buf[pos:])
	if err != nil {
		return model.MimState{}, 0, fmt.Errorf("snapcache: decode caret count: %w", err)
	}

	pos += n

	carets := make([]model.Caret, numCarets)

	for i := range carets {
		vals := make([]int64, 5)

		for j := range vals {
			v, n, err := leb128.Varint(buf[pos:])
			if err != nil {
				return model.MimState{}, 0, fmt.Errorf("snapcache: decode caret field %d: %w", j, err)
			}

			vals[j] = v
			pos += n
		}

		carets[i] = model.Caret{
			Tag:       vals[0],
			CaretLoc:  model.Location{Line: int(vals[1]), Column: int(vals[2])},
			AnchorLoc: model.Location{Line: int(vals[3]), Column: int(vals[4])},
		}
	}

	return model.MimState{
		ArtistID:  fields[0],
		SessionID: fields[1],
		BookID:    fields[2],
		DocID:     fields[3],
		Splash4:   splash,
		Carets:    carets,
	}, pos, nil
}

func expectSync(buf []byte) (int, error) {
	if len(buf) == 0 || buf[0] != SyncByte {
		return 0, fmt.Errorf("%w: missing sync byte", ErrFormat)
	}

	return 1, nil
}
