// Package mim implements the mim byte-stream edit command language
// (spec.md §4.3): caret motion, insertion, deletion, commit/cancel,
// colorization, and the ex meta-command sub-language. Applying a message is
// all-or-nothing: on any failure the snapshot is left exactly as it was
// (spec.md §4.3 "Failure semantics").
package mim

import (
	"errors"
	"fmt"

	"github.com/dojam/dojam/internal/model"
)

// Sentinel errors, returned wrapped with the offending detail. Callers
// should use errors.Is.
var (
	ErrUnknownCommand  = errors.New("mim: unknown command")
	ErrWrongArity      = errors.New("mim: wrong arity")
	ErrUnknownMimState = errors.New("mim: unknown mim-state")
	ErrUnknownBook     = errors.New("mim: unknown book")
	ErrUnknownDoc      = errors.New("mim: unknown document")
	ErrUnknownTag      = errors.New("mim: unknown caret tag")
	ErrInvalidUTF8     = errors.New("mim: invalid utf-8")
	ErrTruncated       = errors.New("mim: truncated message")
	ErrInvalidEx       = errors.New("mim: invalid ex command")
)

// Envelope identifies the mim-state a message applies to.
type Envelope struct {
	ArtistID  int64
	SessionID int64
}

// interpreter mode, named after spec.md §4.3's pushdown-automaton states.
// Only a subset of the named modes needs a dedicated Go type: COMMAND and
// NUMBER are folded into the scanning loop in parse.go because the automaton
// has no real branch between them beyond "currently inside a decimal
// literal", which readNumber's inner digit loop captures.
type mode int

const (
	modeCommand mode = iota
	modeEx
)

// Apply parses payload as one mim message and applies it to snap on behalf
// of env, mutating snap only if the entire message is well-formed
// (spec.md §4.3). tsMicro stamps every character this message touches.
func Apply(snap *model.Snapshot, env Envelope, payload []byte, tsMicro int64) error {
	working := snap.Clone()

	st, err := working.MimState(model.MimKey{ArtistID: env.ArtistID, SessionID: env.SessionID})
	if err != nil {
		return fmt.Errorf("%w: artist=%d session=%d", ErrUnknownMimState, env.ArtistID, env.SessionID)
	}

	p := &parser{
		snap: working,
		st:   st,
		ts:   tsMicro,
		buf:  payload,
	}

	if err := p.run(); err != nil {
		return err
	}

	*snap = *working

	return nil
}
