// Package mie implements the compiler described in spec.md §4.6: it
// tokenizes a ThickChar source (a fiddle document's text, each character
// carrying its Splash4 color) into vmie bytecode, supporting user-defined
// words, compile-time execution, and sew scopes for metaprogramming.
package mie

import "github.com/dojam/dojam/internal/model"

// ThickChar is one source character: a codepoint plus the color it was
// typed with (spec.md §4.6). Color currently has no effect on compilation;
// it exists so a future syntax-highlighting-driven dialect can dispatch on
// it without changing the wire format.
type ThickChar struct {
	Codepoint rune
	Color     model.Splash4
}

// FromDocument turns a document's characters into ThickChars, skipping
// ones marked deleted (spec.md §4.3's tombstone-retaining delete).
func FromDocument(doc *model.Document) []ThickChar {
	chars := make([]ThickChar, 0, len(doc.Chars))

	for _, c := range doc.Chars {
		if c.Flags.Has(model.IsDelete) {
			continue
		}

		chars = append(chars, ThickChar{Codepoint: c.Codepoint, Color: c.Splash4})
	}

	return chars
}
