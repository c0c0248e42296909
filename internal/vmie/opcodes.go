package vmie

// Op is a single vmie instruction. Instructions encode as one 32-bit
// program word, except the deferred-operand ops (JMP, JMP0, JSR,
// INT_LITERAL, FLOAT_LITERAL) which read a second word as their operand
// (spec.md §4.7).
type Op int32

const (
	OpNop Op = iota
	OpHalt
	OpReturn
	OpDrop
	OpPick
	OpRotate
	OpEq
	OpTypeof
	OpCast
	OpHere
	OpJmpI
	OpJsrI
	OpI2R
	OpR2I
	OpF2I
	OpI2F
	OpSetGlobal
	OpGetGlobal

	OpFAdd
	OpFNeg
	OpFMul
	OpFMod
	OpFInv
	OpFDiv
	OpFLt
	OpFLe
	OpFNe
	OpFEq
	OpFGe
	OpFGt

	OpIAdd
	OpINeg
	OpIMul
	OpIDiv
	OpIMod
	OpIBAnd
	OpIBOr
	OpIBXor
	OpIBNot
	OpILAnd
	OpILOr
	OpILXor
	OpILNot
	OpILShift
	OpIRShift
	OpILt
	OpILe
	OpIEq
	OpINe
	OpIGe
	OpIGt

	OpArrNew
	OpArrLen
	OpArrGet
	OpArrPut
	OpArrPop
	OpArrSet
	OpArrJoin
	OpArrSplit

	OpMapNew
	OpMapHas
	OpMapGet
	OpMapSet
	OpMapDel

	OpThere
	OpNavigate
	OpSew
	OpSewJmp
	OpSewJmp0
	OpSewJsr
	OpSewAddr
	OpSewLit
	OpSewColon
	OpSewSemicolon

	// Deferred-operand ops: the word following the opcode is the operand.
	OpJmp
	OpJmp0
	OpJsr
	OpIntLiteral
	OpFloatLiteral
)

// HasOperand reports whether op consumes the program word that follows it.
func (op Op) HasOperand() bool {
	switch op {
	case OpJmp, OpJmp0, OpJsr, OpIntLiteral, OpFloatLiteral:
		return true
	default:
		return false
	}
}

// opNames mirrors mie.c's LIST_OF_OP_WORDS string column, used for error
// messages, disassembly, and the mie compiler's word lookup. An op whose C
// source string is NULL matches its own enum name instead (mie.c's
// match_builtin_word: "match word's S if not null, else #E") - NOP, PICK,
// ROTATE, CAST, JMPI, JSRI, ARRGET, ARRSET, ARRSPLIT, and SEW are listed
// here with their upper-case enum name as the bare word accordingly.
var opNames = map[Op]string{
	OpNop:       "NOP",
	OpHalt:      "halt",
	OpReturn:    "return",
	OpDrop:      "drop",
	OpPick:      "PICK",
	OpRotate:    "ROTATE",
	OpEq:        "=",
	OpTypeof:    "typeof",
	OpCast:      "CAST",
	OpHere:      "here",
	OpJmpI:      "JMPI",
	OpJsrI:      "JSRI",
	OpI2R:       "I>R",
	OpR2I:       "R>I",
	OpF2I:       "F>I",
	OpI2F:       "I>F",
	OpSetGlobal: "SET-GLOBAL",
	OpGetGlobal: "GET-GLOBAL",

	OpFAdd: "F+", OpFNeg: "F~", OpFMul: "F*", OpFMod: "F%", OpFInv: "F1/",
	OpFDiv: "F/", OpFLt: "F<", OpFLe: "F<=", OpFNe: "F!=", OpFEq: "F=",
	OpFGe: "F>=", OpFGt: "F>",

	OpIAdd: "I+", OpINeg: "I~", OpIMul: "I*", OpIDiv: "I/", OpIMod: "I%",
	OpIBAnd: "I&", OpIBOr: "I|", OpIBXor: "I^", OpIBNot: "I!",
	OpILAnd: "I&&", OpILOr: "I||", OpILXor: "I^^", OpILNot: "I!!",
	OpILShift: "I<<", OpIRShift: "I>>",
	OpILt: "I<", OpILe: "I<=", OpIEq: "I=", OpINe: "I!=", OpIGe: "I>=", OpIGt: "I>",

	OpArrNew: "arrnew", OpArrLen: "arrlen", OpArrGet: "ARRGET", OpArrPut: "arrput",
	OpArrPop: "arrpop", OpArrSet: "ARRSET", OpArrJoin: "arrjoin", OpArrSplit: "ARRSPLIT",

	OpMapNew: "mapnew", OpMapHas: "maphas", OpMapGet: "mapget",
	OpMapSet: "mapset", OpMapDel: "mapdel",

	OpThere: "there", OpNavigate: "navigate", OpSew: "SEW",
	OpSewJmp: "SEW-JMP", OpSewJmp0: "SEW-JMP0", OpSewJsr: "SEW-JSR",
	OpSewAddr: "SEW-ADDR", OpSewLit: "SEW-LIT",
	OpSewColon: "SEW-COLON", OpSewSemicolon: "SEW-SEMICOLON",
}

// Name returns op's bare-word surface form. The deferred-operand ops
// (JMP, JMP0, JSR, INT_LITERAL, FLOAT_LITERAL) have no bare-word form - they
// are only ever compiler-emitted, never typed in mie source - and fall
// through to the "<op>" placeholder.
func (op Op) Name() string {
	if s, ok := opNames[op]; ok {
		return s
	}

	return "<op>"
}
