package mim

import (
	"fmt"
	"unicode/utf8"

	"github.com/dojam/dojam/internal/model"
)

func (p *parser) currentDoc() (*model.Document, error) {
	if p.snap.BookIndex(p.st.BookID) < 0 {
		return nil, fmt.Errorf("%w: %d", ErrUnknownBook, p.st.BookID)
	}

	doc, err := p.snap.Document(model.DocKey{BookID: p.st.BookID, DocID: p.st.DocID})
	if err != nil {
		return nil, fmt.Errorf("%w: book=%d doc=%d", ErrUnknownDoc, p.st.BookID, p.st.DocID)
	}

	return doc, nil
}

func (p *parser) cmdCreateCaret() error {
	a, err := p.wantArgs(3)
	if err != nil {
		return err
	}

	tag, line, col := a[0], a[1], a[2]

	doc, err := p.currentDoc()
	if err != nil {
		return err
	}

	loc := doc.Constrain(model.Location{Line: int(line), Column: int(col)})

	if i := p.st.CaretByTag(tag); i >= 0 {
		p.st.Carets[i] = model.Caret{Tag: tag, CaretLoc: loc, AnchorLoc: loc}

		return nil
	}

	p.st.Carets = append(p.st.Carets, model.Caret{Tag: tag, CaretLoc: loc, AnchorLoc: loc})

	return nil
}

func (p *parser) caretIndex(tag int64) (int, error) {
	i := p.st.CaretByTag(tag)
	if i < 0 {
		return 0, fmt.Errorf("%w: %d", ErrUnknownTag, tag)
	}

	return i, nil
}

// cmdBackspace implements `X`: at caret==anchor, delete one character to
// the left; otherwise delete the selection (spec.md §4.3).
func (p *parser) cmdBackspace() error {
	a, err := p.wantArgs(1)
	if err != nil {
		return err
	}

	idx, err := p.caretIndex(a[0])
	if err != nil {
		return err
	}

	doc, err := p.currentDoc()
	if err != nil {
		return err
	}

	caret := p.st.Carets[idx]

	if caret.HasSelection() {
		low, high := caret.Range()

		return p.deleteRange(doc, low, high)
	}

	if caret.CaretLoc == (model.Location{Line: 1, Column: 1}) {
		return nil // nothing to the left of the document start
	}

	leftOf := caret.CaretLoc

	startIdx, ok := doc.Index(leftOf)
	if !ok || startIdx == 0 {
		return nil
	}

	before := doc.Location(startIdx - 1)

	return p.deleteRange(doc, before, leftOf)
}

// cmdDelete implements `x`: the mirror of X on the right.
func (p *parser) cmdDelete() error {
	a, err := p.wantArgs(1)
	if err != nil {
		return err
	}

	idx, err := p.caretIndex(a[0])
	if err != nil {
		return err
	}

	doc, err := p.currentDoc()
	if err != nil {
		return err
	}

	caret := p.st.Carets[idx]

	if caret.HasSelection() {
		low, high := caret.Range()

		return p.deleteRange(doc, low, high)
	}

	endIdx, ok := doc.Index(caret.CaretLoc)
	if !ok || endIdx >= len(doc.Chars) {
		return nil // nothing to the right of the document end
	}

	after := doc.Location(endIdx + 1)

	return p.deleteRange(doc, caret.CaretLoc, after)
}

// deleteRange deletes every character between low (inclusive) and high
// (exclusive) in doc. A character already marked IS_INSERT is removed
// physically; any other character is marked IS_DELETE in place, per
// spec.md §4.3's delete semantics.
func (p *parser) deleteRange(doc *model.Document, low, high model.Location) error {
	lowIdx, ok := doc.Index(low)
	if !ok {
		return fmt.Errorf("%w: delete range start", ErrTruncated)
	}

	highIdx, ok := doc.Index(high)
	if !ok {
		return fmt.Errorf("%w: delete range end", ErrTruncated)
	}

	// Walk right to left so physical removals don't invalidate the indices
	// of characters still to be processed.
	for i := highIdx - 1; i >= lowIdx; i-- {
		if i >= len(doc.Chars) {
			continue
		}

		if doc.Chars[i].Flags.Has(model.IsInsert) {
			p.removeChar(doc, i)

			continue
		}

		doc.Chars[i].Flags = doc.Chars[i].Flags.Set(model.IsDelete)
		doc.Chars[i].TsMicro = p.ts
	}

	return nil
}

// removeChar physically removes doc.Chars[i] and adjusts every caret in the
// snapshot as if a deletion occurred at that index (spec.md §4.3's caret
// adjustment rule, mirrored for deletion).
func (p *parser) removeChar(doc *model.Document, i int) {
	removed := doc.Chars[i]
	loc := doc.Location(i)

	doc.Chars = append(doc.Chars[:i], doc.Chars[i+1:]...)

	adjustCaretsForDelete(p.snap, p.st.BookID, p.st.DocID, loc, removed.Codepoint == '\n')
}

// cmdInsert implements `i`/`I`: insert UTF-8 text, deleting any active
// selection first (spec.md §4.3).
func (p *parser) cmdInsert(perCharColor bool) error {
	a, err := p.wantArgs(2)
	if err != nil {
		return err
	}

	tag, byteLen := a[0], a[1]

	idx, err := p.caretIndex(tag)
	if err != nil {
		return err
	}

	raw, err := p.readRawBytes(int(byteLen))
	if err != nil {
		return err
	}

	doc, err := p.currentDoc()
	if err != nil {
		return err
	}

	caret := p.st.Carets[idx]

	if caret.HasSelection() {
		low, high := caret.Range()
		if err := p.deleteRange(doc, low, high); err != nil {
			return err
		}

		// deleteRange moves carets (via adjustCaretsForDelete) for each
		// IS_INSERT character it physically removes; characters it only
		// flags IS_DELETE leave carets in place. Re-read the fresh value.
		caret = p.st.Carets[idx]
	}

	chars, err := decodeInsertChars(raw, perCharColor, p.st.Splash4)
	if err != nil {
		return err
	}

	at := caret.CaretLoc

	atIdx, ok := doc.Index(at)
	if !ok {
		return fmt.Errorf("%w: insert location", ErrTruncated)
	}

	docChars := make([]model.DocChar, len(chars))

	for i, c := range chars {
		docChars[i] = model.DocChar{
			ColorChar: c,
			Flags:     model.IsInsert,
			TsMicro:   p.ts,
		}
	}

	doc.Chars = append(doc.Chars[:atIdx], append(docChars, doc.Chars[atIdx:]...)...)

	// Apply the caret-adjustment rule one character at a time, left to
	// right. This also advances the typing caret itself back to just past
	// the inserted run, since spec.md §4.3 gives carets no owner exemption.
	for _, c := range chars {
		adjustCaretsForInsert(p.snap, p.st.BookID, p.st.DocID, at, c.Codepoint == '\n')
		at = shiftForInsert(at, at, c.Codepoint == '\n')
	}

	return nil
}

// decodeInsertChars decodes raw either as plain UTF-8 painted with color, or
// (perCharColor) as UTF-8 codepoints interleaved with one 16-bit splash4 per
// codepoint (spec.md §4.3's `I<n>:<...>` command).
func decodeInsertChars(raw []byte, perCharColor bool, color model.Splash4) ([]model.ColorChar, error) {
	if err := validateUTF8(raw); err != nil && !perCharColor {
		return nil, err
	}

	var out []model.ColorChar

	if !perCharColor {
		for _, r := range string(raw) {
			out = append(out, model.ColorChar{Codepoint: r, Splash4: color})
		}

		return out, nil
	}

	pos := 0

	for pos < len(raw) {
		r, size := decodeRune(raw[pos:])
		if r < 0 {
			return nil, ErrInvalidUTF8
		}

		pos += size

		if pos+2 > len(raw) {
			return nil, fmt.Errorf("%w: missing inline color", ErrTruncated)
		}

		splash := model.Splash4(uint16(raw[pos]) | uint16(raw[pos+1])<<8)
		pos += 2

		if err := model.ValidateSplash4(splash); err != nil {
			return nil, err
		}

		out = append(out, model.ColorChar{Codepoint: rune(r), Splash4: splash})
	}

	return out, nil
}

func decodeRune(b []byte) (rune, int) {
	r, size := utf8.DecodeRune(b)
	if r == utf8.RuneError && size <= 1 {
		return -1, 0
	}

	return r, size
}

// cmdSetColor implements `~`: set the mim-state's current paint color.
func (p *parser) cmdSetColor() error {
	a, err := p.wantArgs(1)
	if err != nil {
		return err
	}

	splash := model.Splash4(uint16(a[0]))
	if err := model.ValidateSplash4(splash); err != nil {
		return err
	}

	p.st.Splash4 = splash

	return nil
}

// cmdPaint implements `P`: paint every character between caret and anchor.
func (p *parser) cmdPaint() error {
	a, err := p.wantArgs(1)
	if err != nil {
		return err
	}

	idx, err := p.caretIndex(a[0])
	if err != nil {
		return err
	}

	doc, err := p.currentDoc()
	if err != nil {
		return err
	}

	caret := p.st.Carets[idx]
	low, high := caret.Range()

	lowIdx, ok := doc.Index(low)
	if !ok {
		return fmt.Errorf("%w: paint range start", ErrTruncated)
	}

	highIdx, ok := doc.Index(high)
	if !ok {
		return fmt.Errorf("%w: paint range end", ErrTruncated)
	}

	for i := lowIdx; i < highIdx && i < len(doc.Chars); i++ {
		doc.Chars[i].Splash4 = p.st.Splash4
	}

	return nil
}
