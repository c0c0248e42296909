// Package vmie implements the stack machine described in spec.md §4.7: a
// 32-bit tagged-value VM with a separate return stack, a value store for
// arrays/maps, and a globals table. It is the runtime the mie compiler
// targets and also the engine that executes comptime words during
// compilation. Dispatch follows the table-of-operations style used by
// go-ethereum's core/vm interpreter (jump_table.go), adapted to vmie's
// single flat opcode space rather than EVM's hard-fork-versioned tables.
package vmie

import (
	"errors"
	"fmt"

	"github.com/dojam/dojam/internal/arena"
)

var (
	ErrStackUnderflow = errors.New("vmie: stack underflow")
	ErrRStackUnderflow = errors.New("vmie: return stack underflow")
	ErrBadHandle      = errors.New("vmie: invalid handle")
	ErrIndexOOB       = errors.New("vmie: index out of bounds")
	ErrDivByZero      = errors.New("vmie: division by zero")
	ErrBadOpcode      = errors.New("vmie: unknown opcode")
	ErrCallDepth      = errors.New("vmie: call depth exceeded")
	ErrHalted         = errors.New("vmie: halt instruction executed")
)

// errReturnToTopLevel signals RETURN executed with an empty return stack,
// the convention by which a top-level program ends (spec.md §4.7's RETURN
// "pops and jumps" has nowhere to jump once the initial call frame
// returns).
var errReturnToTopLevel = errors.New("vmie: return to top level")

// LocatedError wraps a VM error with the program counter it occurred at,
// matching spec.md §7's "halt with a located message" requirement. The
// compiler maps PCs back to source line:column; the VM itself only knows PCs.
type LocatedError struct {
	PC  int
	Err error
}

func (e *LocatedError) Error() string { return fmt.Sprintf("vmie: pc=%d: %v", e.PC, e.Err) }
func (e *LocatedError) Unwrap() error { return e.Err }

const maxCallDepth = 4096

// operation is one jump-table entry, in go-ethereum core/vm's style:
// a minimum-stack-height guard plus the execution function.
type operation struct {
	execute  func(vm *VM) error
	minStack int
}

// VM is one instance of the stack machine. Globals and the value store
// persist across Run calls; Stack/RStack are cleared by Reset.
type VM struct {
	Program []int32
	PC      int

	Stack  []Val
	RStack []int32

	Globals []Val
	store   *store

	Arena *arena.Arena

	// SewTarget is where SEW/SEW-* ops write, set by the compiler before
	// invoking a comptime word (spec.md §4.6).
	SewTarget int

	table [256]operation
}

// New returns a VM over program, with globalsLen globals pre-sized to Nil.
func New(program []int32, globalsLen int, a *arena.Arena) *VM {
	vm := &VM{
		Program: program,
		Globals: make([]Val, globalsLen),
		store:   newStore(),
		Arena:   a,
	}
	vm.buildTable()

	return vm
}

// Reset clears the data and return stacks and repositions PC, without
// discarding globals or the value store.
func (vm *VM) Reset(pc int) {
	vm.Stack = vm.Stack[:0]
	vm.RStack = vm.RStack[:0]
	vm.PC = pc
}

func (vm *VM) push(v Val) { vm.Stack = append(vm.Stack, v) }

func (vm *VM) pop() (Val, error) {
	if len(vm.Stack) == 0 {
		return Val{}, ErrStackUnderflow
	}

	v := vm.Stack[len(vm.Stack)-1]
	vm.Stack = vm.Stack[:len(vm.Stack)-1]

	return v, nil
}

func (vm *VM) pushR(i int32) { vm.RStack = append(vm.RStack, i) }

func (vm *VM) popR() (int32, error) {
	if len(vm.RStack) == 0 {
		return 0, ErrRStackUnderflow
	}

	i := vm.RStack[len(vm.RStack)-1]
	vm.RStack = vm.RStack[:len(vm.RStack)-1]

	return i, nil
}

// Run executes from the VM's current PC until HALT, RETURN off an empty
// return stack, or an error. It returns the located error, if any.
func (vm *VM) Run() error {
	depth := 0

	for vm.PC < len(vm.Program) {
		startPC := vm.PC
		word := vm.Program[vm.PC]
		op := Op(word)
		vm.PC++

		if op == OpJsr || op == OpJsrI {
			depth++
			if depth > maxCallDepth {
				return &LocatedError{PC: startPC, Err: ErrCallDepth}
			}
		}

		if op == OpReturn {
			depth--
		}

		entry := vm.table[op&0xff]
		if entry.execute == nil {
			return &LocatedError{PC: startPC, Err: fmt.Errorf("%w: %d", ErrBadOpcode, op)}
		}

		if len(vm.Stack) < entry.minStack {
			return &LocatedError{PC: startPC, Err: ErrStackUnderflow}
		}

		if err := entry.execute(vm); err != nil {
			if errors.Is(err, errReturnToTopLevel) {
				return nil
			}

			return &LocatedError{PC: startPC, Err: err}
		}
	}

	return nil
}
