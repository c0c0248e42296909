package vmie

import "fmt"

// buildTable wires every Op to its jump-table entry (go-ethereum
// core/vm.newFrontierInstructionSet style: one array slot per opcode,
// populated up front rather than switched on at dispatch time).
func (vm *VM) buildTable() {
	t := &vm.table

	t[OpNop] = operation{execute: opNop}
	t[OpHalt] = operation{execute: opHalt}
	t[OpReturn] = operation{execute: opReturn}
	t[OpDrop] = operation{execute: opDrop, minStack: 1}
	t[OpPick] = operation{execute: opPick, minStack: 1}
	t[OpRotate] = operation{execute: opRotate, minStack: 2}
	t[OpEq] = operation{execute: opEq, minStack: 2}
	t[OpTypeof] = operation{execute: opTypeof, minStack: 1}
	t[OpCast] = operation{execute: opCast, minStack: 2}
	t[OpHere] = operation{execute: opHere}
	t[OpJmpI] = operation{execute: opJmpI, minStack: 1}
	t[OpJsrI] = operation{execute: opJsrI, minStack: 1}
	t[OpI2R] = operation{execute: opI2R, minStack: 1}
	t[OpR2I] = operation{execute: opR2I}
	t[OpF2I] = operation{execute: opF2I, minStack: 1}
	t[OpI2F] = operation{execute: opI2F, minStack: 1}
	t[OpSetGlobal] = operation{execute: opSetGlobal, minStack: 2}
	t[OpGetGlobal] = operation{execute: opGetGlobal, minStack: 1}

	t[OpFAdd] = floatBinOp(func(a, b float32) float32 { return a + b })
	t[OpFMul] = floatBinOp(func(a, b float32) float32 { return a * b })
	t[OpFDiv] = floatBinOp(func(a, b float32) float32 { return a / b })
	t[OpFMod] = floatBinOp(fmod32)
	t[OpFLt] = floatCmp(func(a, b float32) bool { return a < b })
	t[OpFLe] = floatCmp(func(a, b float32) bool { return a <= b })
	t[OpFEq] = floatCmp(func(a, b float32) bool { return a == b })
	t[OpFNe] = floatCmp(func(a, b float32) bool { return a != b })
	t[OpFGe] = floatCmp(func(a, b float32) bool { return a >= b })
	t[OpFGt] = floatCmp(func(a, b float32) bool { return a > b })
	t[OpFNeg] = operation{execute: opFNeg, minStack: 1}
	t[OpFInv] = operation{execute: opFInv, minStack: 1}

	t[OpIAdd] = intBinOp(func(a, b int32) int32 { return a + b })
	t[OpIMul] = intBinOp(func(a, b int32) int32 { return a * b })
	t[OpIBAnd] = intBinOp(func(a, b int32) int32 { return a & b })
	t[OpIBOr] = intBinOp(func(a, b int32) int32 { return a | b })
	t[OpIBXor] = intBinOp(func(a, b int32) int32 { return a ^ b })
	t[OpILAnd] = intBinOp(func(a, b int32) int32 { return boolI32(a != 0 && b != 0) })
	t[OpILOr] = intBinOp(func(a, b int32) int32 { return boolI32(a != 0 || b != 0) })
	t[OpILXor] = intBinOp(func(a, b int32) int32 { return boolI32((a != 0) != (b != 0)) })
	t[OpILShift] = intBinOp(func(a, b int32) int32 { return a << uint32(b&31) })
	t[OpIRShift] = intBinOp(func(a, b int32) int32 { return a >> uint32(b&31) })
	t[OpILt] = intCmp(func(a, b int32) bool { return a < b })
	t[OpILe] = intCmp(func(a, b int32) bool { return a <= b })
	t[OpIEq] = intCmp(func(a, b int32) bool { return a == b })
	t[OpINe] = intCmp(func(a, b int32) bool { return a != b })
	t[OpIGe] = intCmp(func(a, b int32) bool { return a >= b })
	t[OpIGt] = intCmp(func(a, b int32) bool { return a > b })
	t[OpINeg] = operation{execute: opINeg, minStack: 1}
	t[OpIBNot] = operation{execute: opIBNot, minStack: 1}
	t[OpILNot] = operation{execute: opILNot, minStack: 1}
	t[OpIDiv] = operation{execute: opIDiv, minStack: 2}
	t[OpIMod] = operation{execute: opIMod, minStack: 2}

	t[OpArrNew] = operation{execute: opArrNew}
	t[OpArrLen] = operation{execute: opArrLen, minStack: 1}
	t[OpArrGet] = operation{execute: opArrGet, minStack: 2}
	t[OpArrPut] = operation{execute: opArrPut, minStack: 2}
	t[OpArrPop] = operation{execute: opArrPop, minStack: 1}
	t[OpArrSet] = operation{execute: opArrSet, minStack: 3}
	t[OpArrJoin] = operation{execute: opArrJoin, minStack: 2}
	t[OpArrSplit] = operation{execute: opArrSplit, minStack: 2}

	t[OpMapNew] = operation{execute: opMapNew}
	t[OpMapHas] = operation{execute: opMapHas, minStack: 2}
	t[OpMapGet] = operation{execute: opMapGet, minStack: 2}
	t[OpMapSet] = operation{execute: opMapSet, minStack: 3}
	t[OpMapDel] = operation{execute: opMapDel, minStack: 2}

	t[OpThere] = operation{execute: opThere}
	t[OpNavigate] = operation{execute: opNavigate, minStack: 1}
	t[OpSew] = operation{execute: opSew, minStack: 1}
	t[OpSewJmp] = operation{execute: opSewJmp, minStack: 1}
	t[OpSewJmp0] = operation{execute: opSewJmp0, minStack: 1}
	t[OpSewJsr] = operation{execute: opSewJsr, minStack: 1}
	t[OpSewAddr] = operation{execute: opSewAddr, minStack: 1}
	t[OpSewLit] = operation{execute: opSewLit, minStack: 1}
	t[OpSewColon] = operation{execute: opSewColon, minStack: 1}
	t[OpSewSemicolon] = operation{execute: opSewSemicolon}

	t[OpJmp] = operation{execute: opJmp}
	t[OpJmp0] = operation{execute: opJmp0, minStack: 1}
	t[OpJsr] = operation{execute: opJsr}
	t[OpIntLiteral] = operation{execute: opIntLiteral}
	t[OpFloatLiteral] = operation{execute: opFloatLiteral}
}

func boolI32(b bool) int32 {
	if b {
		return 1
	}

	return 0
}

func fmod32(a, b float32) float32 {
	q := float32(int32(a / b))
	return a - q*b
}

func opNop(_ *VM) error { return nil }

func opHalt(_ *VM) error { return ErrHalted }

func opReturn(vm *VM) error {
	addr, err := vm.popR()
	if err != nil {
		return errReturnToTopLevel
	}

	vm.PC = int(addr)

	return nil
}

func opDrop(vm *VM) error {
	_, err := vm.pop()
	return err
}

// opPick duplicates the nth-from-top element (after popping the index),
// per "Pop n:i32, duplicate stack value (n -- stack[-1-n])".
func opPick(vm *VM) error {
	n, err := vm.pop()
	if err != nil {
		return err
	}

	idx := len(vm.Stack) - 1 - int(n.I32())
	if idx < 0 || idx >= len(vm.Stack) {
		return ErrIndexOOB
	}

	vm.push(vm.Stack[idx])

	return nil
}

// opRotate pops d then n, and rotates the top n stack elements by d places.
func opRotate(vm *VM) error {
	d, err := vm.pop()
	if err != nil {
		return err
	}

	nv, err := vm.pop()
	if err != nil {
		return err
	}

	n := int(nv.I32())
	if n < 0 || n > len(vm.Stack) {
		return ErrIndexOOB
	}

	shift := int(d.I32())
	if n == 0 {
		return nil
	}

	shift = ((shift % n) + n) % n

	window := vm.Stack[len(vm.Stack)-n:]
	rotated := make([]Val, n)

	for i := 0; i < n; i++ {
		rotated[(i+shift)%n] = window[i]
	}

	copy(window, rotated)

	return nil
}

func opEq(vm *VM) error {
	b, err := vm.pop()
	if err != nil {
		return err
	}

	a, err := vm.pop()
	if err != nil {
		return err
	}

	vm.push(Int(boolI32(a == b)))

	return nil
}

func opTypeof(vm *VM) error {
	a, err := vm.pop()
	if err != nil {
		return err
	}

	vm.push(Int(int32(a.Type)))

	return nil
}

func opCast(vm *VM) error {
	ty, err := vm.pop()
	if err != nil {
		return err
	}

	a, err := vm.pop()
	if err != nil {
		return err
	}

	vm.push(Val{Type: Type(ty.I32()), Bits: a.Bits})

	return nil
}

func opHere(vm *VM) error {
	vm.pushR(int32(vm.PC))
	return nil
}

func opJmpI(vm *VM) error {
	addr, err := vm.pop()
	if err != nil {
		return err
	}

	vm.PC = int(addr.I32())

	return nil
}

func opJsrI(vm *VM) error {
	addr, err := vm.pop()
	if err != nil {
		return err
	}

	vm.pushR(int32(vm.PC))
	vm.PC = int(addr.I32())

	return nil
}

func opI2R(vm *VM) error {
	v, err := vm.pop()
	if err != nil {
		return err
	}

	vm.pushR(v.I32())

	return nil
}

func opR2I(vm *VM) error {
	i, err := vm.popR()
	if err != nil {
		return err
	}

	vm.push(Int(i))

	return nil
}

func opF2I(vm *VM) error {
	a, err := vm.pop()
	if err != nil {
		return err
	}

	vm.push(Int(int32(a.F32())))

	return nil
}

func opI2F(vm *VM) error {
	a, err := vm.pop()
	if err != nil {
		return err
	}

	vm.push(Float(float32(a.I32())))

	return nil
}

func opSetGlobal(vm *VM) error {
	idx, err := vm.pop()
	if err != nil {
		return err
	}

	val, err := vm.pop()
	if err != nil {
		return err
	}

	i := int(idx.I32())
	if i < 0 || i >= len(vm.Globals) {
		return ErrIndexOOB
	}

	vm.Globals[i] = val

	return nil
}

func opGetGlobal(vm *VM) error {
	idx, err := vm.pop()
	if err != nil {
		return err
	}

	i := int(idx.I32())
	if i < 0 || i >= len(vm.Globals) {
		return ErrIndexOOB
	}

	vm.push(vm.Globals[i])

	return nil
}

func floatBinOp(f func(a, b float32) float32) operation {
	return operation{minStack: 2, execute: func(vm *VM) error {
		b, err := vm.pop()
		if err != nil {
			return err
		}

		a, err := vm.pop()
		if err != nil {
			return err
		}

		vm.push(Float(f(a.F32(), b.F32())))

		return nil
	}}
}

func floatCmp(f func(a, b float32) bool) operation {
	return operation{minStack: 2, execute: func(vm *VM) error {
		b, err := vm.pop()
		if err != nil {
			return err
		}

		a, err := vm.pop()
		if err != nil {
			return err
		}

		vm.push(Int(boolI32(f(a.F32(), b.F32()))))

		return nil
	}}
}

func opFNeg(vm *VM) error {
	a, err := vm.pop()
	if err != nil {
		return err
	}

	vm.push(Float(-a.F32()))

	return nil
}

func opFInv(vm *VM) error {
	a, err := vm.pop()
	if err != nil {
		return err
	}

	vm.push(Float(1.0 / a.F32()))

	return nil
}

func intBinOp(f func(a, b int32) int32) operation {
	return operation{minStack: 2, execute: func(vm *VM) error {
		b, err := vm.pop()
		if err != nil {
			return err
		}

		a, err := vm.pop()
		if err != nil {
			return err
		}

		vm.push(Int(f(a.I32(), b.I32())))

		return nil
	}}
}

func intCmp(f func(a, b int32) bool) operation {
	return operation{minStack: 2, execute: func(vm *VM) error {
		b, err := vm.pop()
		if err != nil {
			return err
		}

		a, err := vm.pop()
		if err != nil {
			return err
		}

		vm.push(Int(boolI32(f(a.I32(), b.I32()))))

		return nil
	}}
}

func opINeg(vm *VM) error {
	a, err := vm.pop()
	if err != nil {
		return err
	}

	vm.push(Int(-a.I32()))

	return nil
}

func opIBNot(vm *VM) error {
	a, err := vm.pop()
	if err != nil {
		return err
	}

	vm.push(Int(^a.I32()))

	return nil
}

func opILNot(vm *VM) error {
	a, err := vm.pop()
	if err != nil {
		return err
	}

	vm.push(Int(boolI32(a.I32() == 0)))

	return nil
}

// divEucl implements Euclidean integer division (stb_div_eucl): the
// remainder is always non-negative, unlike Go's truncated '/'.
func divEucl(a, b int32) int32 {
	q := a / b
	r := a % b

	if r < 0 {
		if b > 0 {
			q--
		} else {
			q++
		}
	}

	return q
}

func modEucl(a, b int32) int32 {
	r := a % b
	if r < 0 {
		if b > 0 {
			r += b
		} else {
			r -= b
		}
	}

	return r
}

func opIDiv(vm *VM) error {
	b, err := vm.pop()
	if err != nil {
		return err
	}

	a, err := vm.pop()
	if err != nil {
		return err
	}

	if b.I32() == 0 {
		return ErrDivByZero
	}

	vm.push(Int(divEucl(a.I32(), b.I32())))

	return nil
}

func opIMod(vm *VM) error {
	b, err := vm.pop()
	if err != nil {
		return err
	}

	a, err := vm.pop()
	if err != nil {
		return err
	}

	if b.I32() == 0 {
		return ErrDivByZero
	}

	vm.push(Int(modEucl(a.I32(), b.I32())))

	return nil
}

func opArrNew(vm *VM) error {
	vm.push(Handle(TypeArr, vm.store.newArray()))
	return nil
}

func opArrLen(vm *VM) error {
	h, err := vm.pop()
	if err != nil {
		return err
	}

	arr, err := vm.store.array(h.Bits)
	if err != nil {
		return err
	}

	vm.push(Int(int32(len(arr))))

	return nil
}

func opArrGet(vm *VM) error {
	idx, err := vm.pop()
	if err != nil {
		return err
	}

	h, err := vm.pop()
	if err != nil {
		return err
	}

	arr, err := vm.store.array(h.Bits)
	if err != nil {
		return err
	}

	i := int(idx.I32())
	if i < 0 || i >= len(arr) {
		return ErrIndexOOB
	}

	vm.push(arr[i])

	return nil
}

func opArrPut(vm *VM) error {
	v, err := vm.pop()
	if err != nil {
		return err
	}

	h, err := vm.pop()
	if err != nil {
		return err
	}

	arr, err := vm.store.array(h.Bits)
	if err != nil {
		return err
	}

	arr = append(arr, v)
	if err := vm.store.setArray(h.Bits, arr); err != nil {
		return err
	}

	vm.push(h)

	return nil
}

func opArrPop(vm *VM) error {
	h, err := vm.pop()
	if err != nil {
		return err
	}

	arr, err := vm.store.array(h.Bits)
	if err != nil {
		return err
	}

	if len(arr) == 0 {
		return ErrIndexOOB
	}

	top := arr[len(arr)-1]
	if err := vm.store.setArray(h.Bits, arr[:len(arr)-1]); err != nil {
		return err
	}

	vm.push(h)
	vm.push(top)

	return nil
}

func opArrSet(vm *VM) error {
	v, err := vm.pop()
	if err != nil {
		return err
	}

	idx, err := vm.pop()
	if err != nil {
		return err
	}

	h, err := vm.pop()
	if err != nil {
		return err
	}

	arr, err := vm.store.array(h.Bits)
	if err != nil {
		return err
	}

	i := int(idx.I32())
	if i < 0 || i >= len(arr) {
		return ErrIndexOOB
	}

	arr[i] = v
	vm.push(h)

	return nil
}

func opArrJoin(vm *VM) error {
	h2, err := vm.pop()
	if err != nil {
		return err
	}

	h1, err := vm.pop()
	if err != nil {
		return err
	}

	a1, err := vm.store.array(h1.Bits)
	if err != nil {
		return err
	}

	a2, err := vm.store.array(h2.Bits)
	if err != nil {
		return err
	}

	joined := vm.store.newArray()
	combined := append(append([]Val{}, a1...), a2...)

	if err := vm.store.setArray(joined, combined); err != nil {
		return err
	}

	vm.push(Handle(TypeArr, joined))

	return nil
}

func opArrSplit(vm *VM) error {
	pivot, err := vm.pop()
	if err != nil {
		return err
	}

	h, err := vm.pop()
	if err != nil {
		return err
	}

	arr, err := vm.store.array(h.Bits)
	if err != nil {
		return err
	}

	p := int(pivot.I32())
	if p < 0 || p > len(arr) {
		return ErrIndexOOB
	}

	left := vm.store.newArray()
	if err := vm.store.setArray(left, append([]Val{}, arr[:p]...)); err != nil {
		return err
	}

	right := vm.store.newArray()
	if err := vm.store.setArray(right, append([]Val{}, arr[p:]...)); err != nil {
		return err
	}

	vm.push(Handle(TypeArr, left))
	vm.push(Handle(TypeArr, right))

	return nil
}

func opMapNew(vm *VM) error {
	vm.push(Handle(TypeMap, vm.store.newMap()))
	return nil
}

func opMapHas(vm *VM) error {
	key, err := vm.pop()
	if err != nil {
		return err
	}

	h, err := vm.pop()
	if err != nil {
		return err
	}

	m, err := vm.store.mapAt(h.Bits)
	if err != nil {
		return err
	}

	_, ok := m[key]
	vm.push(Int(boolI32(ok)))

	return nil
}

func opMapGet(vm *VM) error {
	key, err := vm.pop()
	if err != nil {
		return err
	}

	h, err := vm.pop()
	if err != nil {
		return err
	}

	m, err := vm.store.mapAt(h.Bits)
	if err != nil {
		return err
	}

	v, ok := m[key]
	if !ok {
		return fmt.Errorf("%w: map key not found", ErrIndexOOB)
	}

	vm.push(v)

	return nil
}

func opMapSet(vm *VM) error {
	val, err := vm.pop()
	if err != nil {
		return err
	}

	key, err := vm.pop()
	if err != nil {
		return err
	}

	h, err := vm.pop()
	if err != nil {
		return err
	}

	m, err := vm.store.mapAt(h.Bits)
	if err != nil {
		return err
	}

	m[key] = val
	vm.push(h)

	return nil
}

func opMapDel(vm *VM) error {
	key, err := vm.pop()
	if err != nil {
		return err
	}

	h, err := vm.pop()
	if err != nil {
		return err
	}

	m, err := vm.store.mapAt(h.Bits)
	if err != nil {
		return err
	}

	delete(m, key)
	vm.push(h)

	return nil
}

// There/Navigate/Sew and the SEW-* ops let a comptime word (spec.md §4.6)
// inspect and write into the compiler's program buffer, addressed through
// vm.SewTarget rather than the VM's own PC.

func opThere(vm *VM) error {
	vm.push(Int(int32(vm.SewTarget)))
	return nil
}

func opNavigate(vm *VM) error {
	addr, err := vm.pop()
	if err != nil {
		return err
	}

	vm.SewTarget = int(addr.I32())

	return nil
}

func (vm *VM) sewWord(w int32) {
	if vm.SewTarget < len(vm.Program) {
		vm.Program[vm.SewTarget] = w
	} else {
		vm.Program = append(vm.Program, w)
	}

	vm.SewTarget++
}

func opSew(vm *VM) error {
	v, err := vm.pop()
	if err != nil {
		return err
	}

	vm.sewWord(v.Bits)

	return nil
}

func opSewJmp(vm *VM) error {
	addr, err := vm.pop()
	if err != nil {
		return err
	}

	vm.sewWord(int32(OpJmp))
	vm.sewWord(addr.I32())

	return nil
}

func opSewJmp0(vm *VM) error {
	addr, err := vm.pop()
	if err != nil {
		return err
	}

	vm.sewWord(int32(OpJmp0))
	vm.sewWord(addr.I32())

	return nil
}

func opSewJsr(vm *VM) error {
	addr, err := vm.pop()
	if err != nil {
		return err
	}

	vm.sewWord(int32(OpJsr))
	vm.sewWord(addr.I32())

	return nil
}

func opSewAddr(vm *VM) error {
	addr, err := vm.pop()
	if err != nil {
		return err
	}

	vm.sewWord(addr.I32())

	return nil
}

func opSewLit(vm *VM) error {
	lit, err := vm.pop()
	if err != nil {
		return err
	}

	if lit.Type == TypeFloat {
		vm.sewWord(int32(OpFloatLiteral))
	} else {
		vm.sewWord(int32(OpIntLiteral))
	}

	vm.sewWord(lit.Bits)

	return nil
}

// opSewColon/opSewSemicolon are placeholders the compiler's own word table
// drives; at the VM level SEW-COLON pops and discards one value and
// SEW-SEMICOLON does nothing. Neither touches SewTarget.
func opSewColon(vm *VM) error {
	_, err := vm.pop()
	return err
}

func opSewSemicolon(_ *VM) error { return nil }

func opJmp(vm *VM) error {
	addr := vm.Program[vm.PC]
	vm.PC = int(addr)

	return nil
}

func opJmp0(vm *VM) error {
	addr := vm.Program[vm.PC]
	vm.PC++

	cond, err := vm.pop()
	if err != nil {
		return err
	}

	if cond.I32() == 0 {
		vm.PC = int(addr)
	}

	return nil
}

func opJsr(vm *VM) error {
	addr := vm.Program[vm.PC]
	vm.PC++
	vm.pushR(int32(vm.PC))
	vm.PC = int(addr)

	return nil
}

func opIntLiteral(vm *VM) error {
	vm.push(Int(vm.Program[vm.PC]))
	vm.PC++

	return nil
}

func opFloatLiteral(vm *VM) error {
	vm.push(Val{Type: TypeFloat, Bits: vm.Program[vm.PC]})
	vm.PC++

	return nil
}
