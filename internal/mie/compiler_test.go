package mie_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dojam/dojam/internal/mie"
	"github.com/dojam/dojam/internal/vmie"
)

func chars(s string) []mie.ThickChar {
	out := make([]mie.ThickChar, 0, len(s))
	for _, r := range s {
		out = append(out, mie.ThickChar{Codepoint: r})
	}

	return out
}

func runProgram(t *testing.T, prog []int32) *vmie.VM {
	t.Helper()

	vm := vmie.New(prog, 0, nil)
	require.NoError(t, vm.Run())

	return vm
}

func TestCompileUserWordDefinitionAndCall(t *testing.T) {
	c := mie.New(chars(": add5 5i I+ ; 10i add5"), 0, 256)

	prog, err := c.Compile()
	require.NoError(t, err)

	vm := runProgram(t, prog)
	require.Equal(t, int32(15), vm.Stack[len(vm.Stack)-1].I32())
}

func TestCompileSkipsDefinitionBodyAtTopLevel(t *testing.T) {
	c := mie.New(chars(": unused 1i 2i I+ ; 7i"), 0, 256)

	prog, err := c.Compile()
	require.NoError(t, err)

	vm := runProgram(t, prog)
	require.Len(t, vm.Stack, 1)
	require.Equal(t, int32(7), vm.Stack[0].I32())
}

func TestCompileAddressOfWordPushesAddrInsteadOfCalling(t *testing.T) {
	c := mie.New(chars(":& target 42 ; target"), 0, 256)

	prog, err := c.Compile()
	require.NoError(t, err)

	vm := runProgram(t, prog)
	// The body (42) is never executed; "target" pushes its own address,
	// which is where its skip-jump landed (word index 2).
	require.Equal(t, int32(2), vm.Stack[len(vm.Stack)-1].I32())
}

func TestCompileComptimeWordSewsLiteralAtCallSite(t *testing.T) {
	c := mie.New(chars("comptime : inject 99i SEW-LIT ; inject"), 0, 256)

	prog, err := c.Compile()
	require.NoError(t, err)

	vm := runProgram(t, prog)
	require.Equal(t, int32(99), vm.Stack[len(vm.Stack)-1].I32())
}

func TestCompileUndefinedWordErrors(t *testing.T) {
	c := mie.New(chars("nosuchword"), 0, 256)

	_, err := c.Compile()
	require.ErrorIs(t, err, mie.ErrUndefinedWord)
}

func TestCompileUnterminatedDefinitionErrors(t *testing.T) {
	c := mie.New(chars(": foo 1 2 I+"), 0, 256)

	_, err := c.Compile()
	require.ErrorIs(t, err, mie.ErrUnterminatedDef)
}

func TestCompileUnbalancedSewScopeErrors(t *testing.T) {
	c := mie.New(chars("<# <# 1 #>"), 0, 256)

	_, err := c.Compile()
	require.ErrorIs(t, err, mie.ErrSewScopeMismatch)
}

func TestCompileSemicolonWithoutColonErrors(t *testing.T) {
	c := mie.New(chars(";"), 0, 256)

	_, err := c.Compile()
	require.ErrorIs(t, err, mie.ErrUnexpectedSemi)
}

func TestCompileNestedCommentsAreSkipped(t *testing.T) {
	c := mie.New(chars("1i (outer (inner) still outer) 2i I+"), 0, 256)

	prog, err := c.Compile()
	require.NoError(t, err)

	vm := runProgram(t, prog)
	require.Equal(t, int32(3), vm.Stack[len(vm.Stack)-1].I32())
}

func TestCompilePickWordDuplicatesStackTopForFloatSquare(t *testing.T) {
	c := mie.New(chars(": fsqr 0i PICK F* ; 42 fsqr"), 0, 256)

	prog, err := c.Compile()
	require.NoError(t, err)

	vm := runProgram(t, prog)
	require.InDelta(t, float32(1764.0), vm.Stack[len(vm.Stack)-1].F32(), 0.0001)
}

func TestCompileCastWordReinterpretsValueType(t *testing.T) {
	c := mie.New(chars("5i 2i CAST"), 0, 256)

	prog, err := c.Compile()
	require.NoError(t, err)

	vm := runProgram(t, prog)
	require.Equal(t, vmie.TypeFloat, vm.Stack[len(vm.Stack)-1].Type)
}

func TestCompileArrGetWordReadsElementByIndex(t *testing.T) {
	c := mie.New(chars("arrnew 10i arrput 0i ARRGET"), 0, 256)

	prog, err := c.Compile()
	require.NoError(t, err)

	vm := runProgram(t, prog)
	require.Equal(t, int32(10), vm.Stack[len(vm.Stack)-1].I32())
}

func TestCompileFloatLiteral(t *testing.T) {
	c := mie.New(chars("1.5 2.5 F+"), 0, 256)

	prog, err := c.Compile()
	require.NoError(t, err)

	vm := runProgram(t, prog)
	require.InDelta(t, float32(4.0), vm.Stack[len(vm.Stack)-1].F32(), 0.0001)
}
