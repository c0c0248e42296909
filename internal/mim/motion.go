package mim

import (
	"fmt"

	"github.com/dojam/dojam/internal/model"
)

// cmdMove implements `S` (collapse=true) and `M` (collapse=false): move the
// addressed caret by one motion sub-command (spec.md §4.3).
func (p *parser) cmdMove(collapse bool) error {
	a, err := p.wantArgs(1)
	if err != nil {
		return err
	}

	idx, err := p.caretIndex(a[0])
	if err != nil {
		return err
	}

	motion, err := p.readRawBytes(1)
	if err != nil {
		return err
	}

	doc, err := p.currentDoc()
	if err != nil {
		return err
	}

	caret := p.st.Carets[idx]

	next, err := applyMotion(doc, caret.CaretLoc, motion[0])
	if err != nil {
		return err
	}

	caret.CaretLoc = next
	if collapse {
		caret.AnchorLoc = next
	}

	p.st.Carets[idx] = caret

	return nil
}

// applyMotion moves loc by one of h/l/k/j, clamping the result with
// [model.Document.Constrain] (spec.md §9: "the source clamps ... retain
// this clamping behavior").
func applyMotion(doc *model.Document, loc model.Location, motion byte) (model.Location, error) {
	switch motion {
	case 'h':
		loc.Column--
	case 'l':
		loc.Column++
	case 'k':
		loc.Line--
	case 'j':
		loc.Line++
	default:
		return model.Location{}, fmt.Errorf("%w: motion %q", ErrUnknownCommand, string(motion))
	}

	return doc.Constrain(loc), nil
}
