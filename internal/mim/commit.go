package mim

import (
	"fmt"

	"github.com/dojam/dojam/internal/model"
)

// cmdCommit implements `!`: commit every character in the run reachable
// from the tag's caret (spec.md §4.3).
func (p *parser) cmdCommit() error {
	return p.commitOrCancel(false)
}

// cmdCancel implements `/`: cancel every character in the run reachable
// from the tag's caret.
func (p *parser) cmdCancel() error {
	return p.commitOrCancel(true)
}

func (p *parser) commitOrCancel(cancel bool) error {
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

	seeds := map[int]struct{}{}

	for _, loc := range []model.Location{caret.CaretLoc, caret.AnchorLoc} {
		at, ok := doc.Index(loc)
		if !ok {
			return fmt.Errorf("%w: commit/cancel seed", ErrTruncated)
		}

		seeds[at] = struct{}{}
		seeds[at-1] = struct{}{}
	}

	lo, hi := runBoundsFromSeeds(doc, seeds)
	if lo >= hi {
		return nil // idempotent: nothing pending at this caret
	}

	// Walk right to left so physical removals don't disturb earlier indices.
	for i := hi - 1; i >= lo; i-- {
		c := doc.Chars[i]

		switch {
		case c.Flags.Has(model.IsInsert) && !cancel:
			doc.Chars[i].Flags = model.FlagNone
		case c.Flags.Has(model.IsInsert) && cancel:
			p.removeChar(doc, i)
		case c.Flags.Has(model.IsDelete) && !cancel:
			p.removeChar(doc, i)
		case c.Flags.Has(model.IsDelete) && cancel:
			doc.Chars[i].Flags = model.FlagNone
		}
	}

	return nil
}

// runBoundsFromSeeds expands each seed index outward while adjacent
// characters carry IS_INSERT or IS_DELETE and not IS_DEFER, returning the
// union as a single [lo, hi) range (spec.md §4.3: "The run is bounded by
// characters that are neither-insert-nor-delete, or that carry IS_DEFER").
func runBoundsFromSeeds(doc *model.Document, seeds map[int]struct{}) (lo, hi int) {
	lo, hi = len(doc.Chars), 0

	inRun := func(i int) bool {
		if i < 0 || i >= len(doc.Chars) {
			return false
		}

		c := doc.Chars[i]
		if c.Flags.Has(model.IsDefer) {
			return false
		}

		return c.Flags.Has(model.IsInsert) || c.Flags.Has(model.IsDelete)
	}

	for seed := range seeds {
		if !inRun(seed) {
			continue
		}

		left := seed
		for inRun(left - 1) {
			left--
		}

		right := seed + 1
		for inRun(right) {
			right++
		}

		if left < lo {
			lo = left
		}

		if right > hi {
			hi = right
		}
	}

	return lo, hi
}
