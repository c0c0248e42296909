package model

// ColorChar is a single Unicode codepoint paired with a packed color.
type ColorChar struct {
	Codepoint rune
	Splash4   Splash4
}

// EditFlag marks the provisional state of a [DocChar] awaiting commit or cancel.
type EditFlag uint8

// Edit flags, spec.md §3. A character can carry IS_INSERT or IS_DELETE (never
// both), plus the orthogonal FLIPPED_* and FILL/IS_DEFER markers used while
// committing or cancelling a run.
const (
	FlagNone EditFlag = 0

	// IsInsert marks an uncommitted insertion: the character is visible in
	// the buffer but not yet part of the committed document.
	IsInsert EditFlag = 1 << (iota + 1)

	// IsDelete marks a pending deletion: the original character stays in the
	// buffer with this flag set until committed (physically removed) or
	// cancelled (flag cleared).
	IsDelete

	// FlippedInsert is a reserved flag bit; the mim interpreter never sets
	// it (cancelling a delete run clears the flags directly, see
	// commitOrCancel in commit.go of the mim package).
	FlippedInsert

	// FlippedDelete is a reserved flag bit; the mim interpreter never sets it.
	FlippedDelete

	// Fill is a reserved flag bit; the mim interpreter never sets it.
	// Committing an insert run clears the flags in one step, with no
	// intermediate Fill state.
	Fill

	// IsDefer marks a character that bounds a commit/cancel run without
	// itself participating in one — connected runs stop here.
	IsDefer
)

// Has reports whether flag is set on f.
func (f EditFlag) Has(flag EditFlag) bool { return f&flag != 0 }

// Set returns f with flag set.
func (f EditFlag) Set(flag EditFlag) EditFlag { return f | flag }

// Clear returns f with flag cleared.
func (f EditFlag) Clear(flag EditFlag) EditFlag { return f &^ flag }

// DocChar is one character of a [Document]'s buffer: a colored codepoint,
// edit flags describing its commit state, and the timestamp it was written.
type DocChar struct {
	ColorChar
	Flags   EditFlag
	TsMicro int64
}

// Committed reports whether c carries neither IsInsert nor IsDelete, i.e. it
// is ordinary committed text (spec.md §3's "A character is committed..." rule).
func (c DocChar) Committed() bool {
	return !c.Flags.Has(IsInsert) && !c.Flags.Has(IsDelete)
}
