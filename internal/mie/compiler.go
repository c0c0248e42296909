package mie

import (
	"github.com/dojam/dojam/internal/arena"
	"github.com/dojam/dojam/internal/vmie"
)

// wordDef is one entry in the compiler's scope stack (spec.md §4.6):
// metadata about a user-defined word plus its address in the program
// buffer.
type wordDef struct {
	Name       string
	IsComptime bool
	IsAddr     bool // defined with ':&' - invoking it pushes its address, not a call
	IsSealed   bool // ';' has been reached; the definition is complete
	Addr       int
}

// opByName inverts vmie's opcode-name table so the compiler can resolve a
// bare word like "I+" straight to its Op.
var opByName = buildOpByName()

func buildOpByName() map[string]vmie.Op {
	names := map[string]vmie.Op{}
	for op := vmie.Op(0); op < vmie.Op(256); op++ {
		if n := op.Name(); n != "<op>" {
			names[n] = op
		}
	}

	return names
}

// Compiler turns a ThickChar source into a vmie program buffer.
type Compiler struct {
	lex *Lexer

	Program []int32
	cursor  int // write position; equals len(Program) outside sew/comptime redirection

	dict     []*wordDef
	defining *wordDef

	pendingComptimeMark bool
	pendingSkip         []int // operand-word indices of skip-jumps awaiting their landing address

	sewDepth int

	strings []string

	globalsLen int
	arena      *arena.Arena
}

// New returns a Compiler over src, ready to emit into a fresh program
// buffer. globalsLen sizes the VM globals table comptime words execute
// against; arenaCap sizes the scratch arena shared with comptime runs.
func New(src []ThickChar, globalsLen int, arenaCap int) *Compiler {
	return &Compiler{
		lex:        NewLexer(src),
		globalsLen: globalsLen,
		arena:      arena.New(arenaCap),
	}
}

// Strings returns the string-literal table referenced by STR-tagged values
// the compiled program produces (spec.md's STR type payload is an index
// into this table, since a 32-bit Val can't hold a string inline).
func (c *Compiler) Strings() []string { return c.strings }

// Compile runs the tokenizer/emitter to completion and returns the
// finished program buffer.
func (c *Compiler) Compile() ([]int32, error) {
	for {
		tok, err := c.lex.Next()
		if err != nil {
			return nil, err
		}

		if tok.Kind == TokenEOF {
			break
		}

		if err := c.compileToken(tok); err != nil {
			return nil, err
		}
	}

	if c.defining != nil {
		return nil, &LocatedError{Msg: "unterminated word definition", Err: ErrUnterminatedDef}
	}

	if c.sewDepth != 0 {
		return nil, &LocatedError{Msg: "unbalanced '<#'/'#>'", Err: ErrSewScopeMismatch}
	}

	return c.Program, nil
}

func (c *Compiler) compileToken(tok Token) error {
	switch tok.Kind {
	case TokenInt:
		c.emitLiteral(false, tok.IntVal, c.sewDepth)
		return nil
	case TokenFloat:
		c.emitLiteral(true, int32FromFloatBits(tok.F32Val), c.sewDepth)
		return nil
	case TokenString:
		idx := int32(len(c.strings))
		c.strings = append(c.strings, tok.Text)
		c.emitLiteral(false, idx, c.sewDepth)
		c.emitLiteral(false, int32(vmie.TypeStr), c.sewDepth)
		c.emitOpAtDepth(vmie.OpCast, c.sewDepth)

		return nil
	case TokenWord:
		return c.compileWord(tok)
	}

	return nil
}

func int32FromFloatBits(f float32) int32 {
	return vmie.Float(f).Bits
}

func (c *Compiler) compileWord(tok Token) error {
	switch tok.Text {
	case ":":
		return c.beginDef(tok, false)
	case ":&":
		return c.beginDef(tok, true)
	case ";":
		return c.endDef(tok)
	case "comptime":
		c.pendingComptimeMark = true
		return nil
	case "<#":
		c.sewDepth++
		return nil
	case "#>":
		if c.sewDepth == 0 {
			return &LocatedError{Line: tok.Line, Column: tok.Column, Msg: "'#>' without matching '<#'", Err: ErrSewScopeMismatch}
		}

		c.sewDepth--

		return nil
	}

	if wd := c.lookup(tok.Text); wd != nil {
		return c.compileWordRef(wd)
	}

	if op, ok := opByName[tok.Text]; ok {
		c.emitOpAtDepth(op, c.sewDepth)
		return nil
	}

	return &LocatedError{Line: tok.Line, Column: tok.Column, Msg: "undefined word '" + tok.Text + "'", Err: ErrUndefinedWord}
}

func (c *Compiler) lookup(name string) *wordDef {
	for i := len(c.dict) - 1; i >= 0; i-- {
		if c.dict[i].Name == name {
			return c.dict[i]
		}
	}

	return nil
}

func (c *Compiler) beginDef(tok Token, isAddr bool) error {
	if c.defining != nil {
		return &LocatedError{Line: tok.Line, Column: tok.Column, Msg: "nested word definition", Err: ErrUnterminatedDef}
	}

	name, err := c.lex.Next()
	if err != nil {
		return err
	}

	if name.Kind != TokenWord {
		return &LocatedError{Line: tok.Line, Column: tok.Column, Msg: "expected word name after ':'"}
	}

	if _, ok := opByName[name.Text]; ok {
		return &LocatedError{Line: name.Line, Column: name.Column, Msg: "'" + name.Text + "' is a built-in", Err: ErrRedefinedBuiltin}
	}

	// Skip-jump over the body so falling straight through the program
	// buffer at the top level doesn't execute the definition as code
	// (spec.md §4.6's pending-skip-jump list).
	c.emit(int32(vmie.OpJmp))
	skipOperand := c.cursorIndex()
	c.emit(0) // patched in endDef

	wd := &wordDef{Name: name.Text, IsAddr: isAddr, Addr: c.cursorIndex()}
	if c.pendingComptimeMark {
		wd.IsComptime = true
		c.pendingComptimeMark = false
	}

	c.dict = append(c.dict, wd)
	c.defining = wd
	c.pendingSkip = append(c.pendingSkip, skipOperand)

	return nil
}

func (c *Compiler) endDef(tok Token) error {
	if c.defining == nil {
		return &LocatedError{Line: tok.Line, Column: tok.Column, Msg: "';' without matching ':'", Err: ErrUnexpectedSemi}
	}

	c.emit(int32(vmie.OpReturn))

	landing := c.cursorIndex()
	operandIdx := c.pendingSkip[len(c.pendingSkip)-1]
	c.pendingSkip = c.pendingSkip[:len(c.pendingSkip)-1]
	c.Program[operandIdx] = int32(landing)

	c.defining.IsSealed = true
	c.defining = nil

	return nil
}

// compileWordRef compiles an invocation of a previously defined word: a
// comptime word runs immediately against the embedded VM (spec.md §4.6);
// an address-only (':&') word pushes its address as a literal; an
// ordinary word compiles to a subroutine call.
func (c *Compiler) compileWordRef(wd *wordDef) error {
	if wd.IsComptime {
		return c.runComptime(wd)
	}

	if wd.IsAddr {
		c.emitLiteral(false, int32(wd.Addr), c.sewDepth)
		return nil
	}

	c.emit(int32(vmie.OpJsr))
	c.emit(int32(wd.Addr))

	return nil
}

// runComptime suspends source emission and runs wd's body now, with the
// VM's sew target pointed at the compiler's current cursor so SEW ops the
// word executes land exactly where compilation would otherwise continue.
// On return, compilation resumes wherever the word left SewTarget.
func (c *Compiler) runComptime(wd *wordDef) error {
	vm := vmie.New(c.Program, c.globalsLen, c.arena)
	vm.SewTarget = c.cursor
	vm.Reset(wd.Addr)

	if err := vm.Run(); err != nil {
		return err
	}

	c.Program = vm.Program
	c.cursor = vm.SewTarget

	return nil
}

// emit appends or overwrites one program word at the compiler's cursor,
// mirroring vmie's own sewWord so a comptime word's SEW ops and the plain
// compiler share identical positioning rules.
func (c *Compiler) emit(word int32) {
	if c.cursor < len(c.Program) {
		c.Program[c.cursor] = word
	} else {
		c.Program = append(c.Program, word)
	}

	c.cursor++
}

func (c *Compiler) cursorIndex() int { return c.cursor }

// emitOpAtDepth compiles a bare opcode, recursively lifting it through sew
// depth as a literal-then-SEW pair (spec.md §4.6's literal-lifting rule,
// generalized to opcodes so that `<# <# I+ #> #>`-style double nesting is
// well-defined, not just the depth-1 case spec.md spells out literally).
func (c *Compiler) emitOpAtDepth(op vmie.Op, depth int) {
	if depth == 0 {
		c.emit(int32(op))
		return
	}

	c.emitLiteral(false, int32(op), depth-1)
	c.emitOpAtDepth(vmie.OpSew, depth-1)
}

// emitLiteral compiles a literal push, lifting it through sew depth per
// spec.md §4.6: "LITERAL v" at depth d expands into code that, when run
// one level shallower, sews both the literal opcode and its value into
// the program buffer at the VM's current sew target.
func (c *Compiler) emitLiteral(isFloat bool, bits int32, depth int) {
	if depth == 0 {
		if isFloat {
			c.emit(int32(vmie.OpFloatLiteral))
		} else {
			c.emit(int32(vmie.OpIntLiteral))
		}

		c.emit(bits)

		return
	}

	litOp := vmie.OpIntLiteral
	if isFloat {
		litOp = vmie.OpFloatLiteral
	}

	c.emitLiteral(false, int32(litOp), depth-1)
	c.emitLiteral(isFloat, bits, depth-1)
	c.emitOpAtDepth(vmie.OpSew, depth-1)
	c.emitOpAtDepth(vmie.OpSew, depth-1)
}
